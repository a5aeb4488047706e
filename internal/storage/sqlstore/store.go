// Package sqlstore implements storage.Store on SQL databases through gorm.
//
// Supported drivers are "sqlite" and "mysql". Tables are created or migrated
// when the store is opened.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store is a storage.Store backed by gorm.
type Store struct {
	db     *gorm.DB
	driver string

	users     *userRepo
	tags      *repo[*entity.Tag, tagRow]
	schemas   *repo[*entity.Schema, schemaRow]
	documents *repo[*entity.Document, documentRow]
	extracted *extractedRepo
}

// Open connects to the database and migrates the tables.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		cfg, err := mysqldrv.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		// Updates report matched rows, not changed rows, so saving an
		// unchanged row is not mistaken for a missing one.
		cfg.ClientFoundRows = true
		cfg.ParseTime = true
		dialector = mysql.Open(cfg.FormatDSN())
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// One connection: in-memory databases live as long as it does.
		sqlDB.SetMaxOpenConns(1)
	}
	s := &Store{
		db:     db,
		driver: driver,
		users: &userRepo{repo: repo[*entity.User, userRow]{
			db: db, unique: "email", toRow: toUserRow, fromRow: fromUserRow,
		}},
		tags:      &repo[*entity.Tag, tagRow]{db: db, unique: "name", toRow: toTagRow, fromRow: fromTagRow},
		schemas:   &repo[*entity.Schema, schemaRow]{db: db, toRow: toSchemaRow, fromRow: fromSchemaRow},
		documents: &repo[*entity.Document, documentRow]{db: db, unique: "name", toRow: toDocumentRow, fromRow: fromDocumentRow},
		extracted: &extractedRepo{repo: repo[*entity.Extracted, extractedRow]{
			db: db, unique: "document", toRow: toExtractedRow, fromRow: fromExtractedRow,
		}},
	}
	if err := s.AutoMigrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// AutoMigrate creates or updates the tables to match the row definitions.
func (s *Store) AutoMigrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	for name, model := range map[string]any{
		"users":     &userRow{},
		"tags":      &tagRow{},
		"schemas":   &schemaRow{},
		"documents": &documentRow{},
		"extracted": &extractedRow{},
	} {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrating %s table: %w", name, err)
		}
	}
	return nil
}

// Driver implements storage.Store.
func (s *Store) Driver() string { return s.driver }

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

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type identified interface {
	GetID() ksid.ID
}

// repo maps entity E to gorm row R.
type repo[E identified, R any] struct {
	db      *gorm.DB
	unique  string
	toRow   func(E) *R
	fromRow func(*R) (E, error)
}

func (r *repo[E, R]) List(ctx context.Context) ([]E, error) {
	var rows []R
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing rows: %w", err)
	}
	out := make([]E, 0, len(rows))
	for i := range rows {
		e, err := r.fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *repo[E, R]) Get(ctx context.Context, id ksid.ID) (E, error) {
	return r.first(ctx, "id = ?", id.String())
}

func (r *repo[E, R]) first(ctx context.Context, query string, args ...any) (E, error) {
	var zero E
	var row R
	if err := r.db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, storage.ErrNotFound
		}
		return zero, fmt.Errorf("retrieving row: %w", err)
	}
	return r.fromRow(&row)
}

func (r *repo[E, R]) Create(ctx context.Context, e E) error {
	if err := r.db.WithContext(ctx).Create(r.toRow(e)).Error; err != nil {
		return r.mapErr("inserting row", err)
	}
	return nil
}

func (r *repo[E, R]) Update(ctx context.Context, e E) error {
	row := r.toRow(e)
	result := r.db.WithContext(ctx).Model(row).Select("*").Updates(row)
	if result.Error != nil {
		return r.mapErr("updating row", result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo[E, R]) Delete(ctx context.Context, id ksid.ID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(new(R))
	if result.Error != nil {
		return fmt.Errorf("deleting row %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *repo[E, R]) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(R))
	if result.Error != nil {
		return 0, fmt.Errorf("deleting all rows: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *repo[E, R]) mapErr(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", storage.ErrConflict, r.unique)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type userRepo struct {
	repo[*entity.User, userRow]
}

func (r *userRepo) ByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(ctx, "email_key = ?", entity.NormalizeEmail(email))
}

type extractedRepo struct {
	repo[*entity.Extracted, extractedRow]
}

func (r *extractedRepo) ForDocument(ctx context.Context, doc ksid.ID) (*entity.Extracted, error) {
	return r.first(ctx, "document_id = ?", doc.String())
}

func (r *extractedRepo) Upsert(ctx context.Context, e *entity.Extracted) error {
	if e.ID.IsZero() {
		e.ID = ksid.NewID()
	}
	row := toExtractedRow(e)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "created"}),
		}).Create(row).Error
		if err != nil {
			return r.mapErr("upserting extracted data", err)
		}
		// On conflict the existing row keeps its ID.
		var got extractedRow
		if err := tx.Select("id").Where("document_id = ?", row.DocumentID).First(&got).Error; err != nil {
			return fmt.Errorf("retrieving extracted data: %w", err)
		}
		id, err := parseID("extracted", got.ID)
		if err != nil {
			return err
		}
		e.ID = id
		return nil
	})
}

func (r *extractedRepo) DeleteForDocument(ctx context.Context, doc ksid.ID) error {
	result := r.db.WithContext(ctx).Where("document_id = ?", doc.String()).Delete(&extractedRow{})
	if result.Error != nil {
		return fmt.Errorf("deleting extracted data for %s: %w", doc, result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
