// Package mdv runs the external mdv binary to match Markdown documents
// against Markdown schemas.
//
// mdv reads the document on stdin and the schema from a file:
//
//	mdv - schema.md
//
// On a match it exits 0 and prints the extracted data as a JSON object. On a
// mismatch it exits non-zero and describes the problem on stderr.
package mdv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/maruel/markdb/internal/cache"
	"github.com/maruel/markdb/internal/storage/entity"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Result is the outcome of matching a document against a schema.
type Result struct {
	Success bool           `json:"success"`
	Output  map[string]any `json:"output,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Validator matches input against schema.
//
// A mismatch is a Result with Success false, not an error. Errors mean the
// match could not be attempted.
type Validator interface {
	Validate(ctx context.Context, input, schema string) (Result, error)
}

// Config configures a Runner.
type Config struct {
	// Path is the mdv binary, looked up in PATH when not absolute.
	Path string
	// Timeout bounds a single run.
	Timeout time.Duration
	// MaxConcurrent is the number of mdv processes allowed at once.
	MaxConcurrent int64
}

// Runner is a Validator backed by the mdv binary.
type Runner struct {
	cfg     Config
	sem     *semaphore.Weighted
	group   singleflight.Group
	cache   cache.Cache[Result]
	metrics *Metrics
}

// NewRunner returns a Runner. c and m may be nil.
func NewRunner(cfg Config, c cache.Cache[Result], m *Metrics) *Runner {
	if cfg.Path == "" {
		cfg.Path = "mdv"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if c == nil {
		c = cache.Nop[Result]{}
	}
	return &Runner{
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		cache:   c,
		metrics: m,
	}
}

// Check reports whether the mdv binary can be found.
func (r *Runner) Check() error {
	_, err := exec.LookPath(r.cfg.Path)
	return err
}

// Clone returns a copy of r whose Output shares nothing with r's.
func (r Result) Clone() Result {
	r.Output = entity.CloneData(r.Output)
	return r
}

// Validate implements Validator.
//
// Results are cached by content. Concurrent calls with the same input and
// schema share a single mdv process. Each caller gets its own copy of the
// result.
func (r *Runner) Validate(ctx context.Context, input, schema string) (Result, error) {
	key := cache.Key(input, schema)
	if res, ok := r.cache.Get(ctx, key); ok {
		r.metrics.cacheHit()
		return res.Clone(), nil
	}
	ch := r.group.DoChan(key, func() (any, error) {
		// Callers sharing this run must not be failed by the first one going away.
		res, err := r.run(context.WithoutCancel(ctx), input, schema)
		if err != nil {
			return nil, err
		}
		r.cache.Set(context.WithoutCancel(ctx), key, res)
		return res, nil
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case v := <-ch:
		if v.Err != nil {
			return Result{}, v.Err
		}
		if v.Shared {
			slog.DebugContext(ctx, "Shared mdv run", "key", key[:12])
		}
		return v.Val.(Result).Clone(), nil
	}
}

// run bounds both the wait for a free slot and the mdv process by the
// configured timeout.
func (r *Runner) run(ctx context.Context, input, schema string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("mdv timed out after %s waiting for a free slot: %w", r.cfg.Timeout, err)
	}
	defer r.sem.Release(1)

	f, err := os.CreateTemp("", "markdb-schema-*.md")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create schema file: %w", err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.WriteString(schema); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("failed to write schema file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("failed to close schema file: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.cfg.Path, "-", f.Name())
	cmd.Stdin = strings.NewReader(input)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			r.metrics.observe(resultError, elapsed)
			return Result{}, fmt.Errorf("mdv timed out after %s: %w", r.cfg.Timeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			r.metrics.observe(resultError, elapsed)
			return Result{}, fmt.Errorf("failed to run %s: %w", r.cfg.Path, err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = fmt.Sprintf("mdv exited with code %d", exitErr.ExitCode())
		}
		r.metrics.observe(resultMismatch, elapsed)
		slog.DebugContext(ctx, "mdv mismatch", "code", exitErr.ExitCode(), "dur", elapsed)
		return Result{Success: false, Error: msg}, nil
	}

	out, err := parseOutput(stdout.Bytes())
	if err != nil {
		r.metrics.observe(resultError, elapsed)
		return Result{}, err
	}
	r.metrics.observe(resultSuccess, elapsed)
	slog.DebugContext(ctx, "mdv match", "dur", elapsed)
	return Result{Success: true, Output: out}, nil
}

// parseOutput decodes mdv's stdout, which must be a JSON object or empty.
func parseOutput(b []byte) (map[string]any, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("mdv output is not a JSON object: %w", err)
	}
	if out == nil {
		return nil, errors.New("mdv output is not a JSON object: null")
	}
	return out, nil
}
