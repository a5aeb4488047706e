package jsonldb

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/maruel/ksid"
)

// testRow is a simple row type for testing.
type testRow struct {
	ID   ksid.ID `json:"id"`
	Name string  `json:"name"`
	Note string  `json:"note,omitempty"`
}

func (r *testRow) Clone() *testRow {
	c := *r
	return &c
}

func (r *testRow) GetID() ksid.ID {
	return r.ID
}

func (r *testRow) Validate() error {
	if r.ID.IsZero() {
		return errors.New("id is required")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// setupTable creates a table in the test's temp directory.
func setupTable(t *testing.T) (*Table[*testRow], string) {
	path := filepath.Join(t.TempDir(), "test.jsonl")
	table, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, path
}

func names(table *Table[*testRow]) []string {
	var out []string
	for r := range table.All() {
		out = append(out, r.Name)
	}
	return out
}

func TestTable(t *testing.T) {
	t.Run("append and reload", func(t *testing.T) {
		table, path := setupTable(t)
		for _, name := range []string{"One", "Two"} {
			if err := table.Append(&testRow{ID: ksid.NewID(), Name: name}); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}
		if got := table.Len(); got != 2 {
			t.Errorf("Len() = %d, want 2", got)
		}

		table2, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatalf("re-loading table failed: %v", err)
		}
		if got := names(table2); !slices.Equal(got, []string{"One", "Two"}) {
			t.Errorf("re-loaded names = %v, want [One Two]", got)
		}
	})

	t.Run("append invalid row", func(t *testing.T) {
		table, _ := setupTable(t)
		if err := table.Append(&testRow{ID: ksid.NewID()}); err == nil {
			t.Error("Append of invalid row succeeded, want error")
		}
		if got := table.Len(); got != 0 {
			t.Errorf("Len() = %d, want 0", got)
		}
	})

	t.Run("append duplicate id", func(t *testing.T) {
		table, _ := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "a"}); err != nil {
			t.Fatal(err)
		}
		if err := table.Append(&testRow{ID: id, Name: "b"}); !errors.Is(err, ErrDuplicate) {
			t.Errorf("Append duplicate = %v, want ErrDuplicate", err)
		}
	})

	t.Run("get returns clone", func(t *testing.T) {
		table, _ := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "orig"}); err != nil {
			t.Fatal(err)
		}
		got := table.Get(id)
		if got == nil {
			t.Fatal("Get returned nil")
		}
		got.Name = "changed"
		if table.Get(id).Name != "orig" {
			t.Error("mutating Get result changed the table")
		}
		if table.Get(ksid.NewID()) != nil {
			t.Error("Get of unknown id returned a row")
		}
	})

	t.Run("update", func(t *testing.T) {
		table, path := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "before"}); err != nil {
			t.Fatal(err)
		}
		got, err := table.Update(id, func(r *testRow) error {
			r.Name = "after"
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got.Name != "after" {
			t.Errorf("Update() Name = %q, want %q", got.Name, "after")
		}
		table2, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		if got := table2.Get(id).Name; got != "after" {
			t.Errorf("reloaded Name = %q, want %q", got, "after")
		}
		if _, err := table.Update(ksid.NewID(), func(*testRow) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update unknown = %v, want ErrNotFound", err)
		}
	})

	t.Run("update callback error leaves row", func(t *testing.T) {
		table, _ := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "keep"}); err != nil {
			t.Fatal(err)
		}
		want := errors.New("nope")
		_, err := table.Update(id, func(r *testRow) error {
			r.Name = "lost"
			return want
		})
		if !errors.Is(err, want) {
			t.Errorf("Update error = %v, want %v", err, want)
		}
		if got := table.Get(id).Name; got != "keep" {
			t.Errorf("Name = %q, want %q", got, "keep")
		}
	})

	t.Run("put", func(t *testing.T) {
		table, _ := setupTable(t)
		id := ksid.NewID()
		if err := table.Append(&testRow{ID: id, Name: "before"}); err != nil {
			t.Fatal(err)
		}
		in := &testRow{ID: id, Name: "after"}
		if _, err := table.Put(in); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		in.Name = "mutated"
		if got := table.Get(id).Name; got != "after" {
			t.Errorf("Name = %q, want %q", got, "after")
		}
		if _, err := table.Put(&testRow{ID: ksid.NewID(), Name: "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Put unknown = %v, want ErrNotFound", err)
		}
		if _, err := table.Put(&testRow{ID: id}); err == nil {
			t.Error("Put of invalid row succeeded, want error")
		}
	})

	t.Run("delete", func(t *testing.T) {
		table, path := setupTable(t)
		a, b := ksid.NewID(), ksid.NewID()
		for _, r := range []*testRow{{ID: a, Name: "a"}, {ID: b, Name: "b"}} {
			if err := table.Append(r); err != nil {
				t.Fatal(err)
			}
		}
		deleted, err := table.Delete(a)
		if err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if deleted.Name != "a" {
			t.Errorf("deleted Name = %q, want %q", deleted.Name, "a")
		}
		if got := table.Get(b); got == nil || got.Name != "b" {
			t.Errorf("Get(b) after delete = %v", got)
		}
		if _, err := table.Delete(a); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Delete = %v, want ErrNotFound", err)
		}
		table2, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		if got := names(table2); !slices.Equal(got, []string{"b"}) {
			t.Errorf("reloaded names = %v, want [b]", got)
		}
	})

	t.Run("clear", func(t *testing.T) {
		table, path := setupTable(t)
		for range 3 {
			if err := table.Append(&testRow{ID: ksid.NewID(), Name: "x"}); err != nil {
				t.Fatal(err)
			}
		}
		n, err := table.Clear()
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("Clear() = %d, want 3", n)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) != 0 {
			t.Errorf("file content = %q, want empty", data)
		}
		if n, _ := table.Clear(); n != 0 {
			t.Errorf("second Clear() = %d, want 0", n)
		}
	})

	t.Run("load sorts rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.jsonl")
		a, b := ksid.NewID(), ksid.NewID()
		rb := `{"id":"` + b.String() + `","name":"b"}`
		ra := `{"id":"` + a.String() + `","name":"a"}`
		if err := os.WriteFile(path, []byte(strings.Join([]string{rb, "", ra, ""}, "\n")), 0o644); err != nil {
			t.Fatal(err)
		}
		table, err := NewTable[*testRow](path)
		if err != nil {
			t.Fatal(err)
		}
		if got := names(table); !slices.Equal(got, []string{"a", "b"}) {
			t.Errorf("names = %v, want [a b]", got)
		}
	})

	t.Run("load corrupted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "test.jsonl")
		if err := os.WriteFile(path, []byte("{not json\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewTable[*testRow](path); err == nil {
			t.Error("NewTable on corrupted file succeeded, want error")
		}
	})
}

func TestUniqueIndex(t *testing.T) {
	table, _ := setupTable(t)
	existing := &testRow{ID: ksid.NewID(), Name: "taken"}
	if err := table.Append(existing); err != nil {
		t.Fatal(err)
	}
	// Built after the first append: the index must replay existing rows.
	idx := NewUniqueIndex(table, "name", func(r *testRow) string { return r.Name })

	if got := idx.Get("taken"); got == nil || got.ID != existing.ID {
		t.Errorf("Get(taken) = %v, want %v", got, existing)
	}
	if err := table.Append(&testRow{ID: ksid.NewID(), Name: "taken"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Append duplicate name = %v, want ErrDuplicate", err)
	}

	other := &testRow{ID: ksid.NewID(), Name: "other"}
	if err := table.Append(other); err != nil {
		t.Fatal(err)
	}
	if _, err := table.Update(other.ID, func(r *testRow) error {
		r.Name = "taken"
		return nil
	}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Update to duplicate name = %v, want ErrDuplicate", err)
	}
	// Renaming a row to its own name is not a conflict.
	if _, err := table.Update(existing.ID, func(r *testRow) error { return nil }); err != nil {
		t.Errorf("Update without change = %v", err)
	}

	if _, err := table.Update(existing.ID, func(r *testRow) error {
		r.Name = "renamed"
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get("taken"); got != nil {
		t.Errorf("Get(taken) after rename = %v, want nil", got)
	}
	if got := idx.Get("renamed"); got == nil {
		t.Error("Get(renamed) = nil")
	}

	if _, err := table.Delete(other.ID); err != nil {
		t.Fatal(err)
	}
	if got := idx.Get("other"); got != nil {
		t.Errorf("Get(other) after delete = %v, want nil", got)
	}
}

func TestUniqueIndex_Upsert(t *testing.T) {
	table, path := setupTable(t)
	idx := NewUniqueIndex(table, "name", func(r *testRow) string { return r.Name })

	first := &testRow{ID: ksid.NewID(), Name: "a", Note: "1"}
	got, err := idx.Upsert(first, func(*testRow) error {
		t.Error("fn called on insert")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID {
		t.Errorf("ID = %v, want %v", got.ID, first.ID)
	}
	got, err = idx.Upsert(&testRow{ID: ksid.NewID(), Name: "a"}, func(r *testRow) error {
		r.Note = "2"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != first.ID || got.Note != "2" {
		t.Errorf("Upsert() = %+v, want id %v note 2", got, first.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Go(func() {
			_, err := idx.Upsert(&testRow{ID: ksid.NewID(), Name: "b"}, func(r *testRow) error {
				r.Note = strings.Repeat("x", i+1)
				return nil
			})
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Upsert() = %v", err)
		}
	}
	if got := names(table); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("names = %q, want [a b]", got)
	}

	reloaded, err := NewTable[*testRow](path)
	if err != nil {
		t.Fatal(err)
	}
	if n := reloaded.Len(); n != 2 {
		t.Errorf("reloaded Len() = %d, want 2", n)
	}
}
