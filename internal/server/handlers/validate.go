package handlers

import (
	"context"

	"github.com/maruel/markdb/internal/server/dto"
)

// ValidateHandler checks ad-hoc input against a schema without storing
// anything.
type ValidateHandler struct {
	svc *Services
}

// NewValidateHandler creates a new validate handler.
func NewValidateHandler(svc *Services) *ValidateHandler {
	return &ValidateHandler{svc: svc}
}

// Validate runs the validator. A mismatch is answered with 400 and the same
// body shape as a success.
func (h *ValidateHandler) Validate(ctx context.Context, req *dto.ValidateRequest) (*dto.ValidateResponse, error) {
	res, err := h.svc.Validator.Validate(ctx, req.Input, req.Schema)
	if err != nil {
		return nil, dto.InternalWithError("Failed to run validator", err)
	}
	if !res.Success {
		return &dto.ValidateResponse{Error: res.Error}, nil
	}
	return &dto.ValidateResponse{Success: true, Output: outputOf(res.Output)}, nil
}
