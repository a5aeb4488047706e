// Package history keeps every revision of every document in a git repository.
//
// Each document is stored as documents/<id>.md and every create, update or
// delete is one commit. A nil *Repo is valid and records nothing.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage/entity"
)

// Actions recorded in commit messages.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const maxLog = 1000

// ErrNotRecorded is returned by Content when the revision does not exist.
var ErrNotRecorded = errors.New("revision not found")

// Author identifies who made a change.
type Author struct {
	Name  string
	Email string
}

// Commit is one revision of a document.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Email   string
	When    time.Time
}

// Repo is a git repository of document revisions.
type Repo struct {
	dir  string
	repo *gogit.Repository
	mu   sync.Mutex
}

// Open opens the repository in dir, initializing it when needed.
func Open(dir string) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		repo, err = gogit.PlainInit(dir, false)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history repo: %w", err)
		}
	}
	return &Repo{dir: dir, repo: repo}, nil
}

func docPath(id ksid.ID) string {
	return path.Join("documents", id.String()+".md")
}

// Record commits the current state of doc.
//
// For ActionDelete the file is removed. Recording an unchanged document is a
// no-op.
func (r *Repo) Record(ctx context.Context, doc *entity.Document, author Author, action string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	rel := docPath(doc.ID)
	abs := filepath.Join(r.dir, filepath.FromSlash(rel))
	if action == ActionDelete {
		if _, err := os.Stat(abs); os.IsNotExist(err) {
			return nil
		}
		if _, err := w.Remove(rel); err != nil {
			return fmt.Errorf("failed to stage removal: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
			return fmt.Errorf("failed to create documents directory: %w", err)
		}
		if err := os.WriteFile(abs, []byte(doc.Content), 0o644); err != nil { //nolint:gosec // G306: documents are not secret
			return fmt.Errorf("failed to write document: %w", err)
		}
		if _, err := w.Add(rel); err != nil {
			return fmt.Errorf("failed to stage document: %w", err)
		}
	}

	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to get worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	name := author.Name
	if name == "" {
		name = "markdb"
	}
	email := author.Email
	if email == "" {
		email = "markdb@localhost"
	}
	now := time.Now()
	_, err = w.Commit(action+" "+doc.Name, &gogit.CommitOptions{
		Author:    &object.Signature{Name: name, Email: email, When: now},
		Committer: &object.Signature{Name: "markdb", Email: "markdb@localhost", When: now},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Log returns the revisions of document id, newest first.
func (r *Repo) Log(ctx context.Context, id ksid.ID) ([]Commit, error) {
	if r == nil {
		return []Commit{}, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := docPath(id)
	iter, err := r.repo.Log(&gogit.LogOptions{FileName: &p})
	if err != nil {
		// No commits yet.
		return []Commit{}, nil
	}
	defer iter.Close()

	out := []Commit{}
	for range maxLog {
		c, err := iter.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to read history: %w", err)
			}
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		out = append(out, Commit{
			Hash:    c.Hash.String(),
			Message: subject,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
		})
	}
	return out, nil
}

// Content returns the document content as of the given commit.
func (r *Repo) Content(ctx context.Context, id ksid.ID, hash string) (string, error) {
	if r == nil {
		return "", ErrNotRecorded
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !plumbing.IsHash(hash) {
		return "", ErrNotRecorded
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return "", ErrNotRecorded
	}
	f, err := c.File(docPath(id))
	if err != nil {
		return "", ErrNotRecorded
	}
	s, err := f.Contents()
	if err != nil {
		return "", fmt.Errorf("failed to read document at %s: %w", hash, err)
	}
	return s, nil
}
