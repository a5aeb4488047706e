package handlers

import (
	"context"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/storage/entity"
)

// TagHandler handles tag CRUD.
type TagHandler struct {
	svc *Services
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(svc *Services) *TagHandler {
	return &TagHandler{svc: svc}
}

// ListTags returns every tag.
func (h *TagHandler) ListTags(ctx context.Context, _ *dto.ListTagsRequest) (*dto.ListTagsResponse, error) {
	tags, err := h.svc.Store.Tags().List(ctx)
	if err != nil {
		return nil, dto.InternalWithError("Failed to list tags", err)
	}
	out := make(dto.ListTagsResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, tagToResponse(t))
	}
	return &out, nil
}

// GetTag returns one tag.
func (h *TagHandler) GetTag(ctx context.Context, req *dto.GetTagRequest) (*dto.TagResponse, error) {
	t, err := h.svc.Store.Tags().Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Tag", "name")
	}
	r := tagToResponse(t)
	return &r, nil
}

// CreateTag creates a tag. Names are unique.
func (h *TagHandler) CreateTag(ctx context.Context, req *dto.CreateTagRequest) (*dto.CreateTagResponse, error) {
	t := &entity.Tag{ID: ksid.NewID(), Name: req.Name, Created: time.Now().UTC()}
	if err := h.svc.Store.Tags().Create(ctx, t); err != nil {
		return nil, storeError(err, "Tag", "name")
	}
	return &dto.CreateTagResponse{TagResponse: tagToResponse(t)}, nil
}

// UpdateTag renames a tag.
func (h *TagHandler) UpdateTag(ctx context.Context, req *dto.UpdateTagRequest) (*dto.TagResponse, error) {
	tags := h.svc.Store.Tags()
	t, err := tags.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Tag", "name")
	}
	if req.Name != nil {
		t.Name = *req.Name
		if err := tags.Update(ctx, t); err != nil {
			return nil, storeError(err, "Tag", "name")
		}
	}
	r := tagToResponse(t)
	return &r, nil
}

// DeleteTag removes a tag. Documents keep the dangling ID until their tags are
// next updated.
func (h *TagHandler) DeleteTag(ctx context.Context, req *dto.DeleteTagRequest) (*dto.MessageResponse, error) {
	if err := h.svc.Store.Tags().Delete(ctx, req.ID); err != nil {
		return nil, storeError(err, "Tag", "name")
	}
	return &dto.MessageResponse{Message: "Tag deleted successfully"}, nil
}
