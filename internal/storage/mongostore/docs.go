package mongostore

import (
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/storage/entity"
)

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	EmailKey     string    `bson:"email_key"`
	PasswordHash string    `bson:"password_hash"`
	Created      time.Time `bson:"created"`
}

func toUserDoc(u *entity.User) *userDoc {
	return &userDoc{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		EmailKey:     entity.NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		Created:      u.Created,
	}
}

func fromUserDoc(d *userDoc) (*entity.User, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	return &entity.User{ID: id, Name: d.Name, Email: d.Email, PasswordHash: d.PasswordHash, Created: d.Created}, nil
}

type tagDoc struct {
	ID      string    `bson:"_id"`
	Name    string    `bson:"name"`
	Created time.Time `bson:"created"`
}

func toTagDoc(t *entity.Tag) *tagDoc {
	return &tagDoc{ID: t.ID.String(), Name: t.Name, Created: t.Created}
}

func fromTagDoc(d *tagDoc) (*entity.Tag, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	return &entity.Tag{ID: id, Name: d.Name, Created: d.Created}, nil
}

type schemaDoc struct {
	ID      string    `bson:"_id"`
	Name    string    `bson:"name"`
	Content string    `bson:"content"`
	Created time.Time `bson:"created"`
}

func toSchemaDoc(s *entity.Schema) *schemaDoc {
	return &schemaDoc{ID: s.ID.String(), Name: s.Name, Content: s.Content, Created: s.Created}
}

func fromSchemaDoc(d *schemaDoc) (*entity.Schema, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	return &entity.Schema{ID: id, Name: d.Name, Content: d.Content, Created: d.Created}, nil
}

type documentDoc struct {
	ID       string    `bson:"_id"`
	Name     string    `bson:"name"`
	SchemaID string    `bson:"schema_id"`
	Content  string    `bson:"content"`
	Author   string    `bson:"author"`
	Tags     []string  `bson:"tags"`
	Created  time.Time `bson:"created"`
}

func toDocumentDoc(d *entity.Document) *documentDoc {
	tags := make([]string, len(d.Tags))
	for i, t := range d.Tags {
		tags[i] = t.String()
	}
	return &documentDoc{
		ID:       d.ID.String(),
		Name:     d.Name,
		SchemaID: d.SchemaID.String(),
		Content:  d.Content,
		Author:   d.Author.String(),
		Tags:     tags,
		Created:  d.Created,
	}
}

func fromDocumentDoc(d *documentDoc) (*entity.Document, error) {
	ids := make([]ksid.ID, 0, 2+len(d.Tags))
	for _, s := range append([]string{d.ID, d.SchemaID, d.Author}, d.Tags...) {
		id, err := parseID(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	doc := &entity.Document{
		ID:       ids[0],
		Name:     d.Name,
		SchemaID: ids[1],
		Content:  d.Content,
		Author:   ids[2],
		Created:  d.Created,
	}
	if len(ids) > 3 {
		doc.Tags = ids[3:]
	}
	return doc, nil
}

type extractedDoc struct {
	ID       string         `bson:"_id"`
	Document string         `bson:"document"`
	Data     map[string]any `bson:"data"`
	Created  time.Time      `bson:"created"`
}

func toExtractedDoc(e *entity.Extracted) *extractedDoc {
	return &extractedDoc{ID: e.ID.String(), Document: e.Document.String(), Data: e.Data, Created: e.Created}
}

func fromExtractedDoc(d *extractedDoc) (*entity.Extracted, error) {
	id, err := parseID(d.ID)
	if err != nil {
		return nil, err
	}
	doc, err := parseID(d.Document)
	if err != nil {
		return nil, err
	}
	return &entity.Extracted{ID: id, Document: doc, Data: d.Data, Created: d.Created}, nil
}

func parseID(s string) (ksid.ID, error) {
	id, err := ksid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
