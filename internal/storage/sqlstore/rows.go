package sqlstore

import (
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage/entity"
)

type userRow struct {
	ID           string    `gorm:"primaryKey;type:varchar(16)"`
	Name         string    `gorm:"type:varchar(255);not null"`
	Email        string    `gorm:"type:varchar(255);not null"`
	EmailKey     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	Created      time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

func toUserRow(u *entity.User) *userRow {
	return &userRow{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		EmailKey:     entity.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Created:      u.Created,
	}
}

func fromUserRow(r *userRow) (*entity.User, error) {
	id, err := parseID("user", r.ID)
	if err != nil {
		return nil, err
	}
	return &entity.User{ID: id, Name: r.Name, Email: r.Email, PasswordHash: r.PasswordHash, Created: r.Created}, nil
}

type tagRow struct {
	ID      string    `gorm:"primaryKey;type:varchar(16)"`
	Name    string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	Created time.Time `gorm:"not null"`
}

func (tagRow) TableName() string { return "tags" }

func toTagRow(t *entity.Tag) *tagRow {
	return &tagRow{ID: t.ID.String(), Name: t.Name, Created: t.Created}
}

func fromTagRow(r *tagRow) (*entity.Tag, error) {
	id, err := parseID("tag", r.ID)
	if err != nil {
		return nil, err
	}
	return &entity.Tag{ID: id, Name: r.Name, Created: r.Created}, nil
}

type schemaRow struct {
	ID      string    `gorm:"primaryKey;type:varchar(16)"`
	Name    string    `gorm:"type:varchar(255);not null"`
	Content string    `gorm:"type:text;not null"`
	Created time.Time `gorm:"not null"`
}

func (schemaRow) TableName() string { return "schemas" }

func toSchemaRow(s *entity.Schema) *schemaRow {
	return &schemaRow{ID: s.ID.String(), Name: s.Name, Content: s.Content, Created: s.Created}
}

func fromSchemaRow(r *schemaRow) (*entity.Schema, error) {
	id, err := parseID("schema", r.ID)
	if err != nil {
		return nil, err
	}
	return &entity.Schema{ID: id, Name: r.Name, Content: r.Content, Created: r.Created}, nil
}

type documentRow struct {
	ID       string    `gorm:"primaryKey;type:varchar(16)"`
	Name     string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	SchemaID string    `gorm:"type:varchar(16);not null;index"`
	Content  string    `gorm:"type:text;not null"`
	Author   string    `gorm:"type:varchar(16);not null"`
	Tags     []string  `gorm:"serializer:json"`
	Created  time.Time `gorm:"not null"`
}

func (documentRow) TableName() string { return "documents" }

func toDocumentRow(d *entity.Document) *documentRow {
	tags := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		tags[i] = t.String()
	}
	return &documentRow{
		ID:       d.ID.String(),
		Name:     d.Name,
		SchemaID: d.SchemaID.String(),
		Content:  d.Content,
		Author:   d.Author.String(),
		Tags:     tags,
		Created:  d.Created,
	}
}

func fromDocumentRow(r *documentRow) (*entity.Document, error) {
	id, err := parseID("document", r.ID)
	if err != nil {
		return nil, err
	}
	schemaID, err := parseID("schema", r.SchemaID)
	if err != nil {
		return nil, err
	}
	author, err := parseID("author", r.Author)
	if err != nil {
		return nil, err
	}
	var tags []ksid.ID
	for _, s := range r.Tags {
		t, err := parseID("tag", s)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return &entity.Document{
		ID:       id,
		Name:     r.Name,
		SchemaID: schemaID,
		Content:  r.Content,
		Author:   author,
		Tags:     tags,
		Created:  r.Created,
	}, nil
}

type extractedRow struct {
	ID         string         `gorm:"primaryKey;type:varchar(16)"`
	DocumentID string         `gorm:"type:varchar(16);not null;uniqueIndex"`
	Data       map[string]any `gorm:"serializer:json"`
	Created    time.Time      `gorm:"not null"`
}

func (extractedRow) TableName() string { return "extracted" }

func toExtractedRow(e *entity.Extracted) *extractedRow {
	return &extractedRow{ID: e.ID.String(), DocumentID: e.Document.String(), Data: e.Data, Created: e.Created}
}

func fromExtractedRow(r *extractedRow) (*entity.Extracted, error) {
	id, err := parseID("extracted", r.ID)
	if err != nil {
		return nil, err
	}
	doc, err := parseID("document", r.DocumentID)
	if err != nil {
		return nil, err
	}
	return &entity.Extracted{ID: id, Document: doc, Data: r.Data, Created: r.Created}, nil
}

func parseID(kind, s string) (ksid.ID, error) {
	id, err := ksid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", kind, s, err)
	}
	return id, nil
}
