// Package storage defines the persistence contract shared by every backend.
//
// Backends live in sub-packages:
//   - jsonlstore: JSONL files on local disk (default)
//   - sqlstore: SQL databases through gorm (sqlite, mysql)
//   - mongostore: MongoDB
//
// All of them return ErrNotFound and ErrConflict so callers never depend on a
// particular driver's error types.
package storage

import (
	"context"
	"errors"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage/entity"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break a unique constraint.
	ErrConflict = errors.New("conflict")
)

// Repository is the set of operations available on every collection.
//
// List returns rows in creation order. Create and Update return an error
// wrapping ErrConflict when a unique field collides with another row.
type Repository[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id ksid.ID) (T, error)
	Create(ctx context.Context, row T) error
	Update(ctx context.Context, row T) error
	Delete(ctx context.Context, id ksid.ID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// UserRepository adds lookups by email.
type UserRepository interface {
	Repository[*entity.User]
	// ByEmail returns the user with the email, compared after
	// entity.NormalizeEmail.
	ByEmail(ctx context.Context, email string) (*entity.User, error)
}

// ExtractedRepository stores at most one Extracted record per document.
type ExtractedRepository interface {
	ForDocument(ctx context.Context, doc ksid.ID) (*entity.Extracted, error)
	// Upsert replaces the record for e.Document, keeping the existing ID if
	// there is one.
	Upsert(ctx context.Context, e *entity.Extracted) error
	DeleteForDocument(ctx context.Context, doc ksid.ID) error
	DeleteAll(ctx context.Context) (int64, error)
}

// Store is a complete markdb database.
type Store interface {
	// Driver returns the backend name, e.g. "jsonl".
	Driver() string
	Users() UserRepository
	Tags() Repository[*entity.Tag]
	Schemas() Repository[*entity.Schema]
	Documents() Repository[*entity.Document]
	Extracted() ExtractedRepository
	Close() error
}
