// Provides concurrent-safe, in-memory unique secondary indexes for tables.

package jsonldb

import (
	"fmt"
	"sync"

	"github.com/maruel/ksid"
)

// UniqueIndex provides O(1) lookup by a unique secondary key.
//
// The index is built from existing table data when created and kept
// synchronized via the [TableObserver] interface. Appends and updates that
// would give two rows the same key fail with [ErrDuplicate].
type UniqueIndex[K comparable, T Row[T]] struct {
	name    string
	table   *Table[T]
	keyFunc func(T) K
	mu      sync.Mutex
	byKey   map[K]ksid.ID
}

// NewUniqueIndex creates a unique index on the given table.
//
// name is used in error messages, e.g. "email".
func NewUniqueIndex[K comparable, T Row[T]](table *Table[T], name string, keyFunc func(T) K) *UniqueIndex[K, T] {
	idx := &UniqueIndex[K, T]{
		name:    name,
		table:   table,
		keyFunc: keyFunc,
		byKey:   make(map[K]ksid.ID),
	}
	table.AddObserver(idx)
	return idx
}

// Name returns the indexed field name.
func (idx *UniqueIndex[K, T]) Name() string {
	return idx.name
}

// Get returns the row with the given key, or the zero value if not found.
func (idx *UniqueIndex[K, T]) Get(key K) T {
	idx.mu.Lock()
	id, ok := idx.byKey[key]
	idx.mu.Unlock()
	if !ok {
		var zero T
		return zero
	}
	return idx.table.Get(id)
}

// Upsert applies fn to a clone of the row having the same key as row, or
// appends row if there is none. The lookup and the write are done under the
// table lock so concurrent callers never both append.
func (idx *UniqueIndex[K, T]) Upsert(row T, fn func(dst T) error) (T, error) {
	var zero T
	t := idx.table
	t.mu.Lock()
	defer t.mu.Unlock()

	idx.mu.Lock()
	id, ok := idx.byKey[idx.keyFunc(row)]
	idx.mu.Unlock()
	if !ok {
		if err := t.appendLocked(row); err != nil {
			return zero, err
		}
		return row.Clone(), nil
	}
	return t.replaceLocked(id, func(prev T) (T, error) {
		curr := prev.Clone()
		return curr, fn(curr)
	})
}

func (idx *UniqueIndex[K, T]) check(row T) error {
	key := idx.keyFunc(row)
	idx.mu.Lock()
	id, ok := idx.byKey[key]
	idx.mu.Unlock()
	if ok && id != row.GetID() {
		return fmt.Errorf("%w: %s", ErrDuplicate, idx.name)
	}
	return nil
}

// OnAppend implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnAppend(row T) {
	idx.mu.Lock()
	idx.byKey[idx.keyFunc(row)] = row.GetID()
	idx.mu.Unlock()
}

// OnUpdate implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnUpdate(prev, curr T) {
	oldKey := idx.keyFunc(prev)
	newKey := idx.keyFunc(curr)
	idx.mu.Lock()
	if oldKey != newKey {
		delete(idx.byKey, oldKey)
	}
	idx.byKey[newKey] = curr.GetID()
	idx.mu.Unlock()
}

// OnDelete implements [TableObserver].
func (idx *UniqueIndex[K, T]) OnDelete(row T) {
	idx.mu.Lock()
	delete(idx.byKey, idx.keyFunc(row))
	idx.mu.Unlock()
}
