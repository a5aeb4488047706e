// Package cache stores validation results keyed by their inputs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Cache is a best-effort key/value store. Failures are reported as misses.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, v V)
}

// Key returns a stable key for the pair of strings.
//
// Each part is length-prefixed so ("ab", "c") and ("a", "bc") differ.
func Key(input, schema string) string {
	h := sha256.New()
	var n [8]byte
	for _, s := range []string{input, schema} {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Nop never stores anything.
type Nop[V any] struct{}

// Get implements Cache.
func (Nop[V]) Get(context.Context, string) (V, bool) {
	var zero V
	return zero, false
}

// Set implements Cache.
func (Nop[V]) Set(context.Context, string, V) {}
