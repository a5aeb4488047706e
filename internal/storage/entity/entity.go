// Package entity defines the domain models persisted by every storage backend.
//
// All types implement Clone, GetID and Validate so they can be stored in a
// jsonldb table directly. The SQL and mongo backends convert them to their
// own row types.
package entity

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/maruel/ksid"
)

var (
	errIDRequired       = errors.New("id is required")
	errNameRequired     = errors.New("name is required")
	errEmailRequired    = errors.New("email is required")
	errPasswordRequired = errors.New("password hash is required")
	errContentRequired  = errors.New("content is required")
	errSchemaRequired   = errors.New("schema id is required")
	errAuthorRequired   = errors.New("author is required")
	errDocumentRequired = errors.New("document id is required")
)

// NormalizeEmail returns the canonical form of an email address used for
// uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is an account able to author documents.
type User struct {
	ID           ksid.ID   `json:"id" jsonschema:"description=Unique user identifier"`
	Name         string    `json:"name" jsonschema:"description=Display name"`
	Email        string    `json:"email" jsonschema:"description=Email address, unique"`
	PasswordHash string    `json:"password_hash" jsonschema:"description=Bcrypt-hashed password"`
	Created      time.Time `json:"created" jsonschema:"description=Creation timestamp"`
}

// Clone returns a copy of the User.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// GetID returns the User's ID.
func (u *User) GetID() ksid.ID {
	return u.ID
}

// Validate checks that the User is valid.
func (u *User) Validate() error {
	if u.ID.IsZero() {
		return errIDRequired
	}
	if u.Name == "" {
		return errNameRequired
	}
	if u.Email == "" {
		return errEmailRequired
	}
	if u.PasswordHash == "" {
		return errPasswordRequired
	}
	return nil
}

// Tag is a label that can be attached to documents.
type Tag struct {
	ID      ksid.ID   `json:"id"`
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// Clone returns a copy of the Tag.
func (t *Tag) Clone() *Tag {
	c := *t
	return &c
}

// GetID returns the Tag's ID.
func (t *Tag) GetID() ksid.ID {
	return t.ID
}

// Validate checks that the Tag is valid.
func (t *Tag) Validate() error {
	if t.ID.IsZero() {
		return errIDRequired
	}
	if t.Name == "" {
		return errNameRequired
	}
	return nil
}

// Schema is a Markdown description of the structure documents must follow.
//
// It is interpreted by the mdv tool, never by this program.
type Schema struct {
	ID      ksid.ID   `json:"id"`
	Name    string    `json:"name"`
	Content string    `json:"content"`
	Created time.Time `json:"created"`
}

// Clone returns a copy of the Schema.
func (s *Schema) Clone() *Schema {
	c := *s
	return &c
}

// GetID returns the Schema's ID.
func (s *Schema) GetID() ksid.ID {
	return s.ID
}

// Validate checks that the Schema is valid.
func (s *Schema) Validate() error {
	if s.ID.IsZero() {
		return errIDRequired
	}
	if s.Name == "" {
		return errNameRequired
	}
	if s.Content == "" {
		return errContentRequired
	}
	return nil
}

// Document is a Markdown document conforming to a Schema.
type Document struct {
	ID       ksid.ID   `json:"id"`
	Name     string    `json:"name"`
	SchemaID ksid.ID   `json:"schema_id"`
	Content  string    `json:"content"`
	Author   ksid.ID   `json:"author"`
	Tags     []ksid.ID `json:"tags,omitempty"`
	Created  time.Time `json:"created"`
}

// Clone returns a deep copy of the Document.
func (d *Document) Clone() *Document {
	c := *d
	if d.Tags != nil {
		c.Tags = slices.Clone(d.Tags)
	}
	return &c
}

// GetID returns the Document's ID.
func (d *Document) GetID() ksid.ID {
	return d.ID
}

// Validate checks that the Document is valid.
func (d *Document) Validate() error {
	if d.ID.IsZero() {
		return errIDRequired
	}
	if d.Name == "" {
		return errNameRequired
	}
	if d.SchemaID.IsZero() {
		return errSchemaRequired
	}
	if d.Content == "" {
		return errContentRequired
	}
	if d.Author.IsZero() {
		return errAuthorRequired
	}
	return nil
}

// HasTag reports whether the document carries the tag.
func (d *Document) HasTag(id ksid.ID) bool {
	return slices.Contains(d.Tags, id)
}

// Extracted is the data mdv produced the last time a document was validated.
type Extracted struct {
	ID       ksid.ID        `json:"id"`
	Document ksid.ID        `json:"document"`
	Data     map[string]any `json:"data"`
	Created  time.Time      `json:"created"`
}

// Clone returns a deep copy of the Extracted record.
func (e *Extracted) Clone() *Extracted {
	c := *e
	c.Data = CloneData(e.Data)
	return &c
}

// CloneData returns a deep copy of a decoded JSON object.
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return CloneData(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// GetID returns the Extracted record's ID.
func (e *Extracted) GetID() ksid.ID {
	return e.ID
}

// Validate checks that the Extracted record is valid.
func (e *Extracted) Validate() error {
	if e.ID.IsZero() {
		return errIDRequired
	}
	if e.Document.IsZero() {
		return errDocumentRequired
	}
	return nil
}
