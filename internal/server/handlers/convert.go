package handlers

import (
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/history"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/storage/entity"
)

// --- ID decoding helpers ---

// decodeRef parses an ID sent in a request body. An unparsable ID cannot
// name an existing row, so it is reported as not found.
func decodeRef(s, resource string) (ksid.ID, error) {
	id, err := ksid.Parse(s)
	if err != nil || id.IsZero() {
		return 0, dto.NotFound(resource)
	}
	return id, nil
}

// --- Time formatting ---

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// --- Entity to DTO conversions ---

func userToResponse(u *entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: formatTime(u.Created),
	}
}

func tagToResponse(t *entity.Tag) dto.TagResponse {
	return dto.TagResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		CreatedAt: formatTime(t.Created),
	}
}

func schemaToResponse(s *entity.Schema) dto.SchemaResponse {
	return dto.SchemaResponse{
		ID:        s.ID.String(),
		Name:      s.Name,
		Content:   s.Content,
		CreatedAt: formatTime(s.Created),
	}
}

// documentToResponse converts d. ex may be nil.
func documentToResponse(d *entity.Document, ex *entity.Extracted) dto.DocumentResponse {
	tags := make([]string, len(d.Tags))
	for i, id := range d.Tags {
		tags[i] = id.String()
	}
	r := dto.DocumentResponse{
		ID:        d.ID.String(),
		Name:      d.Name,
		SchemaID:  d.SchemaID.String(),
		Content:   d.Content,
		Author:    d.Author.String(),
		Tags:      tags,
		CreatedAt: formatTime(d.Created),
	}
	if ex != nil {
		r.Extracted = outputOf(ex.Data)
	}
	return r
}

// outputOf returns m for a response field that must be present even when
// empty.
func outputOf(m map[string]any) *map[string]any {
	if m == nil {
		m = map[string]any{}
	}
	return &m
}

func commitToResponse(c history.Commit) dto.Commit {
	return dto.Commit{
		Hash:        c.Hash,
		Message:     c.Message,
		AuthorName:  c.Author,
		AuthorEmail: c.Email,
		When:        formatTime(c.When),
	}
}
