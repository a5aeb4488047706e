// Package storagetest holds the conformance suite every storage backend runs.
package storagetest

import (
	"sync"
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
	"github.com/stretchr/testify/require"
)

// Run exercises s through the storage.Store contract. The store must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, s) })
	t.Run("tags", func(t *testing.T) { testTags(t, s) })
	t.Run("documents", func(t *testing.T) { testDocuments(t, s) })
	t.Run("extracted", func(t *testing.T) { testExtracted(t, s) })
	t.Run("wipe", func(t *testing.T) { testWipe(t, s) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func testUsers(t *testing.T, s storage.Store) {
	require := require.New(t)
	ctx := t.Context()
	users := s.Users()

	alice := &entity.User{ID: ksid.NewID(), Name: "Alice", Email: "Alice@Example.com", PasswordHash: "h1", Created: now()}
	require.NoError(users.Create(ctx, alice))
	bob := &entity.User{ID: ksid.NewID(), Name: "Bob", Email: "bob@example.com", PasswordHash: "h2", Created: now()}
	require.NoError(users.Create(ctx, bob))

	got, err := users.Get(ctx, alice.ID)
	require.NoError(err)
	require.Equal(alice.Name, got.Name)
	require.Equal(alice.Email, got.Email)
	require.True(alice.Created.Equal(got.Created), "Created = %v, want %v", got.Created, alice.Created)

	got, err = users.ByEmail(ctx, "  alice@example.COM ")
	require.NoError(err)
	require.Equal(alice.ID, got.ID)

	_, err = users.ByEmail(ctx, "nobody@example.com")
	require.ErrorIs(err, storage.ErrNotFound)

	dup := &entity.User{ID: ksid.NewID(), Name: "Other", Email: "alice@example.com", PasswordHash: "h3", Created: now()}
	require.ErrorIs(users.Create(ctx, dup), storage.ErrConflict)

	list, err := users.List(ctx)
	require.NoError(err)
	require.Len(list, 2)
	require.Equal(alice.ID, list[0].ID)
	require.Equal(bob.ID, list[1].ID)

	bob.Email = "ALICE@example.com"
	require.ErrorIs(users.Update(ctx, bob), storage.ErrConflict)
	bob.Email = "robert@example.com"
	bob.Name = "Robert"
	require.NoError(users.Update(ctx, bob))
	got, err = users.Get(ctx, bob.ID)
	require.NoError(err)
	require.Equal("Robert", got.Name)
	got, err = users.ByEmail(ctx, "robert@example.com")
	require.NoError(err)
	require.Equal(bob.ID, got.ID)

	missing := &entity.User{ID: ksid.NewID(), Name: "Ghost", Email: "ghost@example.com", PasswordHash: "h", Created: now()}
	require.ErrorIs(users.Update(ctx, missing), storage.ErrNotFound)

	require.NoError(users.Delete(ctx, bob.ID))
	_, err = users.Get(ctx, bob.ID)
	require.ErrorIs(err, storage.ErrNotFound)
	require.ErrorIs(users.Delete(ctx, bob.ID), storage.ErrNotFound)
}

func testTags(t *testing.T, s storage.Store) {
	require := require.New(t)
	ctx := t.Context()
	tags := s.Tags()

	a := &entity.Tag{ID: ksid.NewID(), Name: "draft", Created: now()}
	require.NoError(tags.Create(ctx, a))
	require.ErrorIs(tags.Create(ctx, &entity.Tag{ID: ksid.NewID(), Name: "draft", Created: now()}), storage.ErrConflict)

	b := &entity.Tag{ID: ksid.NewID(), Name: "final", Created: now()}
	require.NoError(tags.Create(ctx, b))
	b.Name = "draft"
	require.ErrorIs(tags.Update(ctx, b), storage.ErrConflict)

	// Saving a row with its own unique value is not a conflict.
	require.NoError(tags.Update(ctx, a))

	_, err := tags.Get(ctx, ksid.NewID())
	require.ErrorIs(err, storage.ErrNotFound)
}

func testDocuments(t *testing.T, s storage.Store) {
	require := require.New(t)
	ctx := t.Context()
	docs := s.Documents()

	schema := &entity.Schema{ID: ksid.NewID(), Name: "greeting", Content: "# Hi\n", Created: now()}
	require.NoError(s.Schemas().Create(ctx, schema))

	tag := ksid.NewID()
	d := &entity.Document{
		ID:       ksid.NewID(),
		Name:     "hello",
		SchemaID: schema.ID,
		Content:  "# Hi\n",
		Author:   ksid.NewID(),
		Tags:     []ksid.ID{tag},
		Created:  now(),
	}
	require.NoError(docs.Create(ctx, d))
	require.ErrorIs(docs.Create(ctx, &entity.Document{
		ID: ksid.NewID(), Name: "hello", SchemaID: schema.ID, Content: "x", Author: d.Author, Created: now(),
	}), storage.ErrConflict)

	got, err := docs.Get(ctx, d.ID)
	require.NoError(err)
	require.Equal(d.SchemaID, got.SchemaID)
	require.Equal(d.Author, got.Author)
	require.True(got.HasTag(tag))

	got.Tags = nil
	got.Content = "# Hello\n"
	require.NoError(docs.Update(ctx, got))
	got, err = docs.Get(ctx, d.ID)
	require.NoError(err)
	require.Empty(got.Tags)
	require.Equal("# Hello\n", got.Content)
}

func testExtracted(t *testing.T, s storage.Store) {
	require := require.New(t)
	ctx := t.Context()
	ex := s.Extracted()

	doc := ksid.NewID()
	_, err := ex.ForDocument(ctx, doc)
	require.ErrorIs(err, storage.ErrNotFound)

	first := &entity.Extracted{Document: doc, Data: map[string]any{"title": "Hi"}, Created: now()}
	require.NoError(ex.Upsert(ctx, first))
	require.False(first.ID.IsZero())

	second := &entity.Extracted{Document: doc, Data: map[string]any{"title": "Hello"}, Created: now()}
	require.NoError(ex.Upsert(ctx, second))
	require.Equal(first.ID, second.ID)

	got, err := ex.ForDocument(ctx, doc)
	require.NoError(err)
	require.Equal("Hello", got.Data["title"])

	require.NoError(ex.DeleteForDocument(ctx, doc))
	require.ErrorIs(ex.DeleteForDocument(ctx, doc), storage.ErrNotFound)

	// Concurrent upserts for a new document must converge on a single record.
	racy := ksid.NewID()
	results := make([]*entity.Extracted, 8)
	errs := make([]error, len(results))
	var wg sync.WaitGroup
	for i := range results {
		results[i] = &entity.Extracted{Document: racy, Data: map[string]any{"n": i}, Created: now()}
		wg.Go(func() { errs[i] = ex.Upsert(ctx, results[i]) })
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(err, "upsert %d", i)
		require.Equal(results[0].ID, results[i].ID, "upsert %d", i)
	}
	got, err = ex.ForDocument(ctx, racy)
	require.NoError(err)
	require.Equal(results[0].ID, got.ID)
	require.NoError(ex.DeleteForDocument(ctx, racy))
	require.ErrorIs(ex.DeleteForDocument(ctx, racy), storage.ErrNotFound)
}

func testWipe(t *testing.T, s storage.Store) {
	require := require.New(t)
	ctx := t.Context()

	require.NoError(s.Extracted().Upsert(ctx, &entity.Extracted{Document: ksid.NewID(), Data: map[string]any{}, Created: now()}))
	counts, err := storage.Wipe(ctx, s)
	require.NoError(err)
	// Left over by the previous subtests: alice, 2 tags, 1 schema, 1 document.
	require.Equal(storage.DeletedCounts{Users: 1, Schemas: 1, Documents: 1, Tags: 2, Extracted: 1}, counts)

	for name, fn := range map[string]func() (int, error){
		"users":     func() (int, error) { l, err := s.Users().List(ctx); return len(l), err },
		"tags":      func() (int, error) { l, err := s.Tags().List(ctx); return len(l), err },
		"schemas":   func() (int, error) { l, err := s.Schemas().List(ctx); return len(l), err },
		"documents": func() (int, error) { l, err := s.Documents().List(ctx); return len(l), err },
	} {
		n, err := fn()
		require.NoError(err, name)
		require.Zero(n, name)
	}
	counts, err = storage.Wipe(ctx, s)
	require.NoError(err)
	require.Equal(storage.DeletedCounts{}, counts)
}
