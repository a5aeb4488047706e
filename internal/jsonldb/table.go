package jsonldb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/maruel/ksid"
)

var (
	// ErrNotFound is returned when a row ID is not in the table.
	ErrNotFound = errors.New("row not found")
	// ErrDuplicate is returned when a row collides with a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// Row is implemented by every type stored in a Table.
type Row[T any] interface {
	Clone() T
	GetID() ksid.ID
	Validate() error
}

// TableObserver is notified after each successful mutation.
type TableObserver[T any] interface {
	OnAppend(row T)
	OnUpdate(prev, curr T)
	OnDelete(row T)
}

// constraint is implemented by observers that can veto a mutation.
type constraint[T any] interface {
	check(row T) error
}

// Table handles storage and in-memory caching for a single table in JSONL format.
type Table[T Row[T]] struct {
	path string

	mu        sync.RWMutex
	rows      []T
	byID      map[ksid.ID]int
	observers []TableObserver[T]
}

// NewTable creates a new Table and loads all data from the file.
func NewTable[T Row[T]](path string) (*Table[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	table := &Table[T]{path: path}
	if err := table.load(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t *Table[T]) load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.rows = nil
			t.byID = map[ksid.ID]int{}
			return nil
		}
		return fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var rows []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row T
		if err := json.Unmarshal(line, &row); err != nil {
			return fmt.Errorf("failed to unmarshal row %d in %s: %w", lineNo, t.path, err)
		}
		if err := row.Validate(); err != nil {
			return fmt.Errorf("invalid row %d in %s: %w", lineNo, t.path, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read table file %s: %w", t.path, err)
	}

	if !slices.IsSortedFunc(rows, compareRows[T]) {
		slices.SortStableFunc(rows, compareRows[T])
	}
	t.rows = rows
	t.reindex()
	return nil
}

func compareRows[T Row[T]](a, b T) int {
	switch x, y := a.GetID(), b.GetID(); {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

func (t *Table[T]) reindex() {
	t.byID = make(map[ksid.ID]int, len(t.rows))
	for i, row := range t.rows {
		t.byID[row.GetID()] = i
	}
}

// AddObserver registers an observer and replays the existing rows into it.
func (t *Table[T]) AddObserver(o TableObserver[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
	for _, row := range t.rows {
		o.OnAppend(row)
	}
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given ID, or the zero value.
func (t *Table[T]) Get(id ksid.ID) T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.byID[id]
	if !ok {
		var zero T
		return zero
	}
	return t.rows[i].Clone()
}

// All returns an iterator over clones of all rows, in ID order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds a new row to the table and persists it.
func (t *Table[T]) Append(row T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(row)
}

func (t *Table[T]) appendLocked(row T) error {
	if err := row.Validate(); err != nil {
		return err
	}
	if _, ok := t.byID[row.GetID()]; ok {
		return fmt.Errorf("%w: id %s", ErrDuplicate, row.GetID())
	}
	if err := t.checkConstraints(row); err != nil {
		return err
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G302: table files are not secret
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	row = row.Clone()
	t.rows = append(t.rows, row)
	if n := len(t.rows); n > 1 && t.rows[n-2].GetID() > row.GetID() {
		slices.SortStableFunc(t.rows, compareRows[T])
		t.reindex()
	} else {
		t.byID[row.GetID()] = n - 1
	}
	for _, o := range t.observers {
		o.OnAppend(row)
	}
	return nil
}

// Update applies fn to a clone of the row with the given ID and persists the
// result. The ID must not be changed by fn.
func (t *Table[T]) Update(id ksid.ID, fn func(T) error) (T, error) {
	return t.replace(id, func(prev T) (T, error) {
		curr := prev.Clone()
		return curr, fn(curr)
	})
}

// Put replaces the row having the same ID as row.
func (t *Table[T]) Put(row T) (T, error) {
	return t.replace(row.GetID(), func(T) (T, error) {
		return row.Clone(), nil
	})
}

func (t *Table[T]) replace(id ksid.ID, fn func(prev T) (T, error)) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.replaceLocked(id, fn)
}

func (t *Table[T]) replaceLocked(id ksid.ID, fn func(prev T) (T, error)) (T, error) {
	var zero T
	i, ok := t.byID[id]
	if !ok {
		return zero, ErrNotFound
	}
	prev := t.rows[i]
	curr, err := fn(prev)
	if err != nil {
		return zero, err
	}
	if curr.GetID() != id {
		return zero, fmt.Errorf("row id changed from %s to %s", id, curr.GetID())
	}
	if err := curr.Validate(); err != nil {
		return zero, err
	}
	if err := t.checkConstraints(curr); err != nil {
		return zero, err
	}

	rows := slices.Clone(t.rows)
	rows[i] = curr
	if err := t.write(rows); err != nil {
		return zero, err
	}
	t.rows = rows
	for _, o := range t.observers {
		o.OnUpdate(prev, curr)
	}
	return curr.Clone(), nil
}

// Delete removes the row with the given ID and returns it.
func (t *Table[T]) Delete(id ksid.ID) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byID[id]
	if !ok {
		return zero, ErrNotFound
	}
	prev := t.rows[i]
	rows := slices.Delete(slices.Clone(t.rows), i, i+1)
	if err := t.write(rows); err != nil {
		return zero, err
	}
	t.rows = rows
	t.reindex()
	for _, o := range t.observers {
		o.OnDelete(prev)
	}
	return prev, nil
}

// Clear removes all rows and returns how many were deleted.
func (t *Table[T]) Clear() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.write(nil); err != nil {
		return 0, err
	}
	prev := t.rows
	t.rows = nil
	t.reindex()
	for _, row := range prev {
		for _, o := range t.observers {
			o.OnDelete(row)
		}
	}
	return len(prev), nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return err
		}
	}
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, compareRows[T])

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.write(rows); err != nil {
		return err
	}
	prev := t.rows
	t.rows = rows
	t.reindex()
	for _, o := range t.observers {
		for _, row := range prev {
			o.OnDelete(row)
		}
		for _, row := range rows {
			o.OnAppend(row)
		}
	}
	return nil
}

func (t *Table[T]) checkConstraints(row T) error {
	for _, o := range t.observers {
		if c, ok := o.(constraint[T]); ok {
			if err := c.check(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// write persists rows to a temporary file and renames it over the table.
func (t *Table[T]) write(rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp table file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	writer := bufio.NewWriter(tmp)
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to marshal row: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write row: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp table file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}
