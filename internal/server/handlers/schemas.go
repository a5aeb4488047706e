package handlers

import (
	"context"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/storage/entity"
)

// SchemaHandler handles schema CRUD.
//
// Schemas are opaque text here; only mdv interprets them.
type SchemaHandler struct {
	svc *Services
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(svc *Services) *SchemaHandler {
	return &SchemaHandler{svc: svc}
}

// ListSchemas returns every schema.
func (h *SchemaHandler) ListSchemas(ctx context.Context, _ *dto.ListSchemasRequest) (*dto.ListSchemasResponse, error) {
	schemas, err := h.svc.Store.Schemas().List(ctx)
	if err != nil {
		return nil, dto.InternalWithError("Failed to list schemas", err)
	}
	out := make(dto.ListSchemasResponse, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, schemaToResponse(s))
	}
	return &out, nil
}

// GetSchema returns one schema.
func (h *SchemaHandler) GetSchema(ctx context.Context, req *dto.GetSchemaRequest) (*dto.SchemaResponse, error) {
	s, err := h.svc.Store.Schemas().Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	r := schemaToResponse(s)
	return &r, nil
}

// CreateSchema stores a schema.
func (h *SchemaHandler) CreateSchema(ctx context.Context, req *dto.CreateSchemaRequest) (*dto.CreateSchemaResponse, error) {
	s := &entity.Schema{ID: ksid.NewID(), Name: req.Name, Content: req.Content, Created: time.Now().UTC()}
	if err := h.svc.Store.Schemas().Create(ctx, s); err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	return &dto.CreateSchemaResponse{SchemaResponse: schemaToResponse(s)}, nil
}

// UpdateSchema changes the name or content of a schema.
//
// Documents are not revalidated; they are checked against the new content on
// their next update.
func (h *SchemaHandler) UpdateSchema(ctx context.Context, req *dto.UpdateSchemaRequest) (*dto.SchemaResponse, error) {
	schemas := h.svc.Store.Schemas()
	s, err := schemas.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	if req.Name != nil {
		s.Name = *req.Name
	}
	if req.Content != nil {
		s.Content = *req.Content
	}
	if err := schemas.Update(ctx, s); err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	r := schemaToResponse(s)
	return &r, nil
}

// DeleteSchema removes a schema.
func (h *SchemaHandler) DeleteSchema(ctx context.Context, req *dto.DeleteSchemaRequest) (*dto.MessageResponse, error) {
	if err := h.svc.Store.Schemas().Delete(ctx, req.ID); err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	return &dto.MessageResponse{Message: "Schema deleted successfully"}, nil
}
