// Package jsonlstore implements storage.Store on top of JSONL tables.
//
// Each collection is a file under the root directory:
//
//	users.jsonl tags.jsonl schemas.jsonl documents.jsonl extracted.jsonl
package jsonlstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/jsonldb"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
)

// Store is a storage.Store persisted as JSONL files.
type Store struct {
	users     *userRepo
	tags      *repo[*entity.Tag]
	schemas   *repo[*entity.Schema]
	documents *repo[*entity.Document]
	extracted *extractedRepo
}

// Open loads or creates the tables in dir.
func Open(dir string) (*Store, error) {
	users, err := jsonldb.NewTable[*entity.User](filepath.Join(dir, "users.jsonl"))
	if err != nil {
		return nil, err
	}
	tags, err := jsonldb.NewTable[*entity.Tag](filepath.Join(dir, "tags.jsonl"))
	if err != nil {
		return nil, err
	}
	schemas, err := jsonldb.NewTable[*entity.Schema](filepath.Join(dir, "schemas.jsonl"))
	if err != nil {
		return nil, err
	}
	documents, err := jsonldb.NewTable[*entity.Document](filepath.Join(dir, "documents.jsonl"))
	if err != nil {
		return nil, err
	}
	extracted, err := jsonldb.NewTable[*entity.Extracted](filepath.Join(dir, "extracted.jsonl"))
	if err != nil {
		return nil, err
	}
	jsonldb.NewUniqueIndex(tags, "name", func(t *entity.Tag) string { return t.Name })
	jsonldb.NewUniqueIndex(documents, "name", func(d *entity.Document) string { return d.Name })
	return &Store{
		users: &userRepo{
			repo:    repo[*entity.User]{table: users},
			byEmail: jsonldb.NewUniqueIndex(users, "email", func(u *entity.User) string { return entity.NormalizeEmail(u.Email) }),
		},
		tags:      &repo[*entity.Tag]{table: tags},
		schemas:   &repo[*entity.Schema]{table: schemas},
		documents: &repo[*entity.Document]{table: documents},
		extracted: &extractedRepo{
			table:      extracted,
			byDocument: jsonldb.NewUniqueIndex(extracted, "document", func(e *entity.Extracted) ksid.ID { return e.Document }),
		},
	}, nil
}

// Driver implements storage.Store.
func (s *Store) Driver() string { return "jsonl" }

// Users implements storage.Store.
func (s *Store) Users() storage.UserRepository { return s.users }

// Tags implements storage.Store.
func (s *Store) Tags() storage.Repository[*entity.Tag] { return s.tags }

// Schemas implements storage.Store.
func (s *Store) Schemas() storage.Repository[*entity.Schema] { return s.schemas }

// Documents implements storage.Store.
func (s *Store) Documents() storage.Repository[*entity.Document] { return s.documents }

// Extracted implements storage.Store.
func (s *Store) Extracted() storage.ExtractedRepository { return s.extracted }

// Close implements storage.Store. Every write is already on disk.
func (s *Store) Close() error { return nil }

type row[T any] interface {
	jsonldb.Row[T]
	comparable
}

type repo[T row[T]] struct {
	table *jsonldb.Table[T]
}

func (r *repo[T]) List(ctx context.Context) ([]T, error) {
	return slices.Collect(r.table.All()), nil
}

func (r *repo[T]) Get(ctx context.Context, id ksid.ID) (T, error) {
	var zero T
	row := r.table.Get(id)
	if row == zero {
		return zero, storage.ErrNotFound
	}
	return row, nil
}

func (r *repo[T]) Create(ctx context.Context, row T) error {
	return mapErr(r.table.Append(row))
}

func (r *repo[T]) Update(ctx context.Context, row T) error {
	_, err := r.table.Put(row)
	return mapErr(err)
}

func (r *repo[T]) Delete(ctx context.Context, id ksid.ID) error {
	_, err := r.table.Delete(id)
	return mapErr(err)
}

func (r *repo[T]) DeleteAll(ctx context.Context) (int64, error) {
	n, err := r.table.Clear()
	return int64(n), err
}

type userRepo struct {
	repo[*entity.User]
	byEmail *jsonldb.UniqueIndex[string, *entity.User]
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*entity.User, error) {
	u := r.byEmail.Get(entity.NormalizeEmail(email))
	if u == nil {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

type extractedRepo struct {
	table      *jsonldb.Table[*entity.Extracted]
	byDocument *jsonldb.UniqueIndex[ksid.ID, *entity.Extracted]
}

func (r *extractedRepo) ForDocument(ctx context.Context, doc ksid.ID) (*entity.Extracted, error) {
	e := r.byDocument.Get(doc)
	if e == nil {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (r *extractedRepo) Upsert(ctx context.Context, e *entity.Extracted) error {
	if e.ID.IsZero() {
		e.ID = ksid.NewID()
	}
	got, err := r.byDocument.Upsert(e, func(dst *entity.Extracted) error {
		dst.Data = e.Data
		dst.Created = e.Created
		return nil
	})
	if err != nil {
		return mapErr(err)
	}
	e.ID = got.ID
	return nil
}

func (r *extractedRepo) DeleteForDocument(ctx context.Context, doc ksid.ID) error {
	prev := r.byDocument.Get(doc)
	if prev == nil {
		return storage.ErrNotFound
	}
	_, err := r.table.Delete(prev.ID)
	return mapErr(err)
}

func (r *extractedRepo) DeleteAll(ctx context.Context) (int64, error) {
	n, err := r.table.Clear()
	return int64(n), err
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jsonldb.ErrNotFound):
		return storage.ErrNotFound
	case errors.Is(err, jsonldb.ErrDuplicate):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	}
	return err
}
