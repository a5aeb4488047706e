package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"

	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/server/reqctx"
	"github.com/maruel/markdb/internal/storage"
)

// AdminHandler handles administrative endpoints.
type AdminHandler struct {
	svc      *Services
	password []byte
}

// NewAdminHandler creates a new admin handler guarded by password.
func NewAdminHandler(svc *Services, password string) *AdminHandler {
	return &AdminHandler{svc: svc, password: []byte(password)}
}

// Wipe deletes every row of every collection.
func (h *AdminHandler) Wipe(ctx context.Context, req *dto.WipeRequest) (*dto.WipeResponse, error) {
	if len(h.password) == 0 || subtle.ConstantTimeCompare([]byte(req.Password), h.password) != 1 {
		slog.WarnContext(ctx, "Rejected wipe", "ip", reqctx.ClientIP(ctx))
		return nil, dto.Unauthorized("Invalid admin password")
	}
	c, err := storage.Wipe(ctx, h.svc.Store)
	if err != nil {
		return nil, dto.InternalWithError("Failed to wipe database", err)
	}
	slog.WarnContext(ctx, "Database wiped", "ip", reqctx.ClientIP(ctx),
		"users", c.Users, "schemas", c.Schemas, "documents", c.Documents, "tags", c.Tags, "extracted", c.Extracted)
	return &dto.WipeResponse{
		Message: "Database wiped successfully",
		DeletedCounts: dto.DeletedCounts{
			Users:     c.Users,
			Schemas:   c.Schemas,
			Documents: c.Documents,
			Tags:      c.Tags,
			Extracted: c.Extracted,
		},
	}, nil
}
