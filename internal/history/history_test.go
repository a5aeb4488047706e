package history

import (
	"errors"
	"testing"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage/entity"
)

func TestRepo(t *testing.T) {
	ctx := t.Context()
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	doc := &entity.Document{ID: ksid.NewID(), Name: "hello", Content: "# Hi\n"}
	other := &entity.Document{ID: ksid.NewID(), Name: "other", Content: "# Other\n"}
	alice := Author{Name: "Alice", Email: "alice@example.com"}

	steps := []struct {
		doc    *entity.Document
		action string
	}{
		{doc, ActionCreate},
		{other, ActionCreate},
		{doc, ActionUpdate}, // unchanged: no commit
	}
	for _, s := range steps {
		if err := r.Record(ctx, s.doc, alice, s.action); err != nil {
			t.Fatalf("Record(%s %s) = %v", s.action, s.doc.Name, err)
		}
	}
	doc.Content = "# Hello\n"
	if err := r.Record(ctx, doc, Author{}, ActionUpdate); err != nil {
		t.Fatal(err)
	}

	log, err := r.Log(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct{ msg, author string }{
		{"update hello", "markdb"},
		{"create hello", "Alice"},
	}
	if len(log) != len(want) {
		t.Fatalf("Log() = %+v, want %d commits", log, len(want))
	}
	for i, w := range want {
		if log[i].Message != w.msg || log[i].Author != w.author {
			t.Errorf("Log()[%d] = %q by %q, want %q by %q", i, log[i].Message, log[i].Author, w.msg, w.author)
		}
	}

	got, err := r.Content(ctx, doc.ID, log[1].Hash)
	if err != nil {
		t.Fatal(err)
	}
	if got != "# Hi\n" {
		t.Errorf("Content() = %q, want %q", got, "# Hi\n")
	}
	if _, err := r.Content(ctx, other.ID, log[1].Hash); !errors.Is(err, ErrNotRecorded) {
		t.Errorf("Content(other at first commit) = %v, want ErrNotRecorded", err)
	}
	if _, err := r.Content(ctx, doc.ID, "zz"); !errors.Is(err, ErrNotRecorded) {
		t.Errorf("Content(bad hash) = %v, want ErrNotRecorded", err)
	}

	if err := r.Record(ctx, doc, alice, ActionDelete); err != nil {
		t.Fatal(err)
	}
	log, err = r.Log(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 3 || log[0].Message != "delete hello" {
		t.Errorf("Log() after delete = %+v", log)
	}
	// Deleting twice is a no-op.
	if err := r.Record(ctx, doc, alice, ActionDelete); err != nil {
		t.Fatal(err)
	}
}

func TestRepo_Reopen(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	doc := &entity.Document{ID: ksid.NewID(), Name: "n", Content: "c"}
	if err := r.Record(t.Context(), doc, Author{}, ActionCreate); err != nil {
		t.Fatal(err)
	}
	r2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	log, err := r2.Log(t.Context(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 1 {
		t.Errorf("len(Log()) = %d, want 1", len(log))
	}
}

func TestRepo_Nil(t *testing.T) {
	var r *Repo
	doc := &entity.Document{ID: ksid.NewID(), Name: "n"}
	if err := r.Record(t.Context(), doc, Author{}, ActionCreate); err != nil {
		t.Errorf("Record() = %v", err)
	}
	log, err := r.Log(t.Context(), doc.ID)
	if err != nil || log == nil || len(log) != 0 {
		t.Errorf("Log() = %v, %v; want empty", log, err)
	}
	if _, err := r.Content(t.Context(), doc.ID, "x"); !errors.Is(err, ErrNotRecorded) {
		t.Errorf("Content() = %v, want ErrNotRecorded", err)
	}
}

func TestRepo_LogEmpty(t *testing.T) {
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	log, err := r.Log(t.Context(), ksid.NewID())
	if err != nil || len(log) != 0 {
		t.Errorf("Log() = %v, %v; want empty", log, err)
	}
}
