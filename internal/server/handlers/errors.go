// Provides helper functions for writing error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/storage"
)

// storeError converts a storage error on resource into an APIError.
//
// field names the unique field reported on a conflict.
func storeError(err error, resource, field string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return dto.NotFound(resource)
	case errors.Is(err, storage.ErrConflict):
		return dto.AlreadyExists(resource, field)
	}
	return dto.InternalWithError("Storage error", err)
}

// writeErrorResponse writes an APIError as a JSON response.
// Use this in raw http.HandlerFunc handlers that don't use server.Wrap.
func writeErrorResponse(w http.ResponseWriter, err error) {
	resp := dto.ErrorResponse{Error: "Internal server error", Code: dto.ErrorCodeInternal}
	statusCode := http.StatusInternalServerError
	var ewsErr dto.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		resp.Error = ewsErr.Error()
		resp.Code = ewsErr.Code()
		resp.Reason = ewsErr.Reason()
		if d := ewsErr.Details(); len(d) != 0 {
			resp.Details = d
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}
