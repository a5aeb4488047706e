package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/history"
	"github.com/maruel/markdb/internal/mdv"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/server/reqctx"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// DocumentHandler handles documents, their validation and their history.
type DocumentHandler struct {
	svc *Services
	md  goldmark.Markdown
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(svc *Services) *DocumentHandler {
	return &DocumentHandler{
		svc: svc,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// ListDocuments returns every document, or those carrying req.TagID.
func (h *DocumentHandler) ListDocuments(ctx context.Context, req *dto.ListDocumentsRequest) (*dto.ListDocumentsResponse, error) {
	var tag ksid.ID
	if req.TagID != "" {
		// Already checked by Validate.
		tag, _ = ksid.Parse(req.TagID)
	}
	docs, err := h.svc.Store.Documents().List(ctx)
	if err != nil {
		return nil, dto.InternalWithError("Failed to list documents", err)
	}
	out := make(dto.ListDocumentsResponse, 0, len(docs))
	for _, d := range docs {
		if !tag.IsZero() && !d.HasTag(tag) {
			continue
		}
		ex, err := h.extracted(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, documentToResponse(d, ex))
	}
	return &out, nil
}

// GetDocument returns one document with its extracted data.
func (h *DocumentHandler) GetDocument(ctx context.Context, req *dto.GetDocumentRequest) (*dto.DocumentResponse, error) {
	d, err := h.svc.Store.Documents().Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Document", "name")
	}
	ex, err := h.extracted(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	r := documentToResponse(d, ex)
	return &r, nil
}

// CreateDocument validates the content against its schema, then stores the
// document and the extracted data.
func (h *DocumentHandler) CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	schema, err := h.schema(ctx, req.SchemaID)
	if err != nil {
		return nil, err
	}
	author := reqctx.UserID(ctx)
	if req.Author != "" {
		if author, err = decodeRef(req.Author, "User"); err != nil {
			return nil, err
		}
	}
	if author.IsZero() {
		return nil, dto.MissingField("author")
	}
	if _, err := h.svc.Store.Users().Get(ctx, author); err != nil {
		return nil, storeError(err, "User", "email")
	}
	tags, err := h.resolveTags(ctx, req.Tags)
	if err != nil {
		return nil, err
	}
	res, err := h.check(ctx, req.Content, schema.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	d := &entity.Document{
		ID:       ksid.NewID(),
		Name:     req.Name,
		SchemaID: schema.ID,
		Content:  req.Content,
		Author:   author,
		Tags:     tags,
		Created:  now,
	}
	if err := h.svc.Store.Documents().Create(ctx, d); err != nil {
		return nil, storeError(err, "Document", "name")
	}
	ex := &entity.Extracted{Document: d.ID, Data: res.Output, Created: now}
	if err := h.svc.Store.Extracted().Upsert(ctx, ex); err != nil {
		// Undo the create so the error response matches the stored state.
		if err2 := h.svc.Store.Documents().Delete(ctx, d.ID); err2 != nil {
			slog.ErrorContext(ctx, "Failed to remove document after extraction error", "id", d.ID, "err", err2)
		}
		return nil, dto.InternalWithError("Failed to store extracted data", err)
	}
	h.record(ctx, d, history.ActionCreate)
	slog.InfoContext(ctx, "Document created", "id", d.ID, "schema", d.SchemaID)
	return &dto.CreateDocumentResponse{
		DocumentResponse: documentToResponse(d, ex),
		ValidationResult: dto.ValidateResponse{Success: true, Output: outputOf(res.Output)},
	}, nil
}

// UpdateDocument changes the fields present in the request.
//
// Changing the content or the schema revalidates the document and replaces
// its extracted data. On a mismatch nothing is written.
func (h *DocumentHandler) UpdateDocument(ctx context.Context, req *dto.UpdateDocumentRequest) (*dto.DocumentResponse, error) {
	docs := h.svc.Store.Documents()
	d, err := docs.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Document", "name")
	}
	prev := d.Clone()
	if req.Name != nil {
		d.Name = *req.Name
	}
	if req.Content != nil {
		d.Content = *req.Content
	}
	if req.Tags != nil {
		if d.Tags, err = h.resolveTags(ctx, *req.Tags); err != nil {
			return nil, err
		}
	}

	var ex *entity.Extracted
	if req.Content != nil || req.SchemaID != nil {
		schemaRef := d.SchemaID.String()
		if req.SchemaID != nil {
			schemaRef = *req.SchemaID
		}
		schema, err := h.schema(ctx, schemaRef)
		if err != nil {
			return nil, err
		}
		d.SchemaID = schema.ID
		res, err := h.check(ctx, d.Content, schema.Content)
		if err != nil {
			return nil, err
		}
		ex = &entity.Extracted{Document: d.ID, Data: res.Output, Created: time.Now().UTC()}
	}

	if err := docs.Update(ctx, d); err != nil {
		return nil, storeError(err, "Document", "name")
	}
	// The document is written first so a name conflict leaves the extracted
	// data untouched. A failed upsert restores the previous document.
	if ex != nil {
		if err := h.svc.Store.Extracted().Upsert(ctx, ex); err != nil {
			if err2 := docs.Update(ctx, prev); err2 != nil {
				slog.ErrorContext(ctx, "Failed to restore document after extraction error", "id", d.ID, "err", err2)
			}
			return nil, dto.InternalWithError("Failed to store extracted data", err)
		}
	} else if ex, err = h.extracted(ctx, d.ID); err != nil {
		return nil, err
	}
	h.record(ctx, d, history.ActionUpdate)
	r := documentToResponse(d, ex)
	return &r, nil
}

// DeleteDocument removes a document and its extracted data.
func (h *DocumentHandler) DeleteDocument(ctx context.Context, req *dto.DeleteDocumentRequest) (*dto.MessageResponse, error) {
	docs := h.svc.Store.Documents()
	d, err := docs.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "Document", "name")
	}
	if err := docs.Delete(ctx, d.ID); err != nil {
		return nil, storeError(err, "Document", "name")
	}
	if err := h.svc.Store.Extracted().DeleteForDocument(ctx, d.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Failed to delete extracted data", "id", d.ID, "err", err)
	}
	h.record(ctx, d, history.ActionDelete)
	return &dto.MessageResponse{Message: "Document deleted successfully"}, nil
}

// DocumentHistory lists the revisions of a document, newest first.
func (h *DocumentHandler) DocumentHistory(ctx context.Context, req *dto.DocumentHistoryRequest) (*dto.DocumentHistoryResponse, error) {
	if _, err := h.svc.Store.Documents().Get(ctx, req.ID); err != nil {
		return nil, storeError(err, "Document", "name")
	}
	log, err := h.svc.History.Log(ctx, req.ID)
	if err != nil {
		return nil, dto.InternalWithError("Failed to read history", err)
	}
	out := make([]dto.Commit, len(log))
	for i, c := range log {
		out[i] = commitToResponse(c)
	}
	return &dto.DocumentHistoryResponse{History: out}, nil
}

// DocumentVersion returns the content of a document at a revision.
func (h *DocumentHandler) DocumentVersion(ctx context.Context, req *dto.DocumentVersionRequest) (*dto.DocumentVersionResponse, error) {
	if _, err := h.svc.Store.Documents().Get(ctx, req.ID); err != nil {
		return nil, storeError(err, "Document", "name")
	}
	content, err := h.svc.History.Content(ctx, req.ID, req.Hash)
	if err != nil {
		if errors.Is(err, history.ErrNotRecorded) {
			return nil, dto.NotFound("Revision")
		}
		return nil, dto.InternalWithError("Failed to read revision", err)
	}
	return &dto.DocumentVersionResponse{Hash: req.Hash, Content: content}, nil
}

// RenderHTML writes the document content as HTML. Raw HTML in the source is
// escaped.
func (h *DocumentHandler) RenderHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := ksid.Parse(r.PathValue("id"))
	if err != nil {
		writeErrorResponse(w, dto.NotFound("Document"))
		return
	}
	d, err := h.svc.Store.Documents().Get(ctx, id)
	if err != nil {
		writeErrorResponse(w, storeError(err, "Document", "name"))
		return
	}
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(d.Content), &buf); err != nil {
		slog.ErrorContext(ctx, "Failed to render document", "id", id, "err", err)
		writeErrorResponse(w, dto.InternalWithError("Failed to render document", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// schema loads the schema referenced by a request.
func (h *DocumentHandler) schema(ctx context.Context, ref string) (*entity.Schema, error) {
	id, err := decodeRef(ref, "Schema")
	if err != nil {
		return nil, err
	}
	s, err := h.svc.Store.Schemas().Get(ctx, id)
	if err != nil {
		return nil, storeError(err, "Schema", "name")
	}
	return s, nil
}

// resolveTags checks that every tag exists and drops duplicates.
func (h *DocumentHandler) resolveTags(ctx context.Context, refs []string) ([]ksid.ID, error) {
	out := make([]ksid.ID, 0, len(refs))
	for _, ref := range refs {
		id, err := decodeRef(ref, "Tag")
		if err != nil {
			return nil, err
		}
		if slices.Contains(out, id) {
			continue
		}
		if _, err := h.svc.Store.Tags().Get(ctx, id); err != nil {
			return nil, storeError(err, "Tag", "name")
		}
		out = append(out, id)
	}
	return out, nil
}

// check runs the validator and converts a mismatch into a 422.
func (h *DocumentHandler) check(ctx context.Context, content, schema string) (mdv.Result, error) {
	res, err := h.svc.Validator.Validate(ctx, content, schema)
	if err != nil {
		return res, dto.InternalWithError("Failed to run validator", err)
	}
	if !res.Success {
		return res, dto.DocumentMismatch(res.Error)
	}
	if res.Output == nil {
		res.Output = map[string]any{}
	}
	return res, nil
}

// extracted returns the extracted data of a document, or nil if it has none.
func (h *DocumentHandler) extracted(ctx context.Context, id ksid.ID) (*entity.Extracted, error) {
	ex, err := h.svc.Store.Extracted().ForDocument(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, dto.InternalWithError("Failed to load extracted data", err)
	}
	return ex, nil
}

// record commits d to the history, attributing the change to the caller or,
// for anonymous requests, to the document author. Failures are logged only.
func (h *DocumentHandler) record(ctx context.Context, d *entity.Document, action string) {
	if h.svc.History == nil {
		return
	}
	actor := reqctx.UserID(ctx)
	if actor.IsZero() {
		actor = d.Author
	}
	var a history.Author
	if u, err := h.svc.Store.Users().Get(ctx, actor); err == nil {
		a = history.Author{Name: u.Name, Email: u.Email}
	}
	if err := h.svc.History.Record(ctx, d, a, action); err != nil {
		slog.WarnContext(ctx, "Failed to record history", "id", d.ID, "action", action, "err", err)
	}
}
