package dto

import (
	"errors"
	"net/http"
	"testing"
)

func TestAPIError(t *testing.T) {
	t.Run("NewAPIError", func(t *testing.T) {
		err := NewAPIError(http.StatusNotFound, ErrorCodeNotFound, "resource not found")
		if err.StatusCode() != http.StatusNotFound {
			t.Errorf("StatusCode() = %d, want %d", err.StatusCode(), http.StatusNotFound)
		}
		if err.Code() != ErrorCodeNotFound {
			t.Errorf("Code() = %s, want %s", err.Code(), ErrorCodeNotFound)
		}
		if err.Error() != "resource not found" {
			t.Errorf("Error() = %q, want %q", err.Error(), "resource not found")
		}
		if err.Details() == nil {
			t.Error("Details() = nil, want non-nil map")
		}
		if err.Reason() != "" {
			t.Errorf("Reason() = %q, want empty", err.Reason())
		}
	})
	t.Run("WithDetails", func(t *testing.T) {
		err := (&APIError{statusCode: http.StatusBadRequest, code: ErrorCodeValidationFailed, message: "test"}).
			WithDetails(map[string]any{"field": "email", "why": "invalid format"})
		if err.Details()["field"] != "email" {
			t.Errorf("Details()[field] = %v, want email", err.Details()["field"])
		}
		if err.Details()["why"] != "invalid format" {
			t.Errorf("Details()[why] = %v, want %q", err.Details()["why"], "invalid format")
		}
	})
	t.Run("WithDetail", func(t *testing.T) {
		err := (&APIError{statusCode: http.StatusBadRequest, code: ErrorCodeValidationFailed, message: "test"}).
			WithDetail("key", "value")
		if err.Details()["key"] != "value" {
			t.Error("WithDetail did not initialize the nil map")
		}
	})
	t.Run("Wrap", func(t *testing.T) {
		origErr := errors.New("original error")
		err := NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, "wrapped error").Wrap(origErr)
		if !errors.Is(err, origErr) {
			t.Error("errors.Is(err, origErr) = false, want true")
		}
		if err.Error() != "wrapped error: original error" {
			t.Errorf("Error() = %q, want %q", err.Error(), "wrapped error: original error")
		}
	})
	t.Run("ErrorWithStatus", func(t *testing.T) {
		var err error = NotFound("Tag")
		var ews ErrorWithStatus
		if !errors.As(err, &ews) {
			t.Fatal("errors.As(ErrorWithStatus) = false, want true")
		}
	})
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   ErrorCode
		wantMsg    string
		wantReason string
	}{
		{"NotFound", NotFound("Document"), http.StatusNotFound, ErrorCodeNotFound, "Document not found", ""},
		{"BadRequest", BadRequest("nope"), http.StatusBadRequest, ErrorCodeValidationFailed, "nope", ""},
		{"MissingField", MissingField("name"), http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: name", ""},
		{"InvalidField", InvalidField("email", "Invalid email address"), http.StatusBadRequest, ErrorCodeInvalidFormat, "Invalid email address", ""},
		{"AlreadyExists", AlreadyExists("User", "email"), http.StatusBadRequest, ErrorCodeConflict, "User with this email already exists", ""},
		{"Unauthorized", Unauthorized("Invalid admin password"), http.StatusUnauthorized, ErrorCodeUnauthorized, "Invalid admin password", ""},
		{
			"DocumentMismatch",
			DocumentMismatch("Node content mismatch"),
			http.StatusUnprocessableEntity, ErrorCodeDocumentMismatch, "Node content mismatch", ReasonValidationError,
		},
		{"RateLimitExceeded", RateLimitExceeded(30), http.StatusTooManyRequests, ErrorCodeRateLimitExceeded, "Too many requests", ""},
		{"PayloadTooLarge", PayloadTooLarge(1024), http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "Request body too large", ""},
		{"Internal", Internal("boom"), http.StatusInternalServerError, ErrorCodeInternal, "boom", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.StatusCode(); got != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", got, tt.wantStatus)
			}
			if got := tt.err.Code(); got != tt.wantCode {
				t.Errorf("Code() = %s, want %s", got, tt.wantCode)
			}
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Reason(); got != tt.wantReason {
				t.Errorf("Reason() = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestValidateResponse_StatusCode(t *testing.T) {
	if got := (&ValidateResponse{Success: true}).StatusCode(); got != http.StatusOK {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusOK)
	}
	if got := (&ValidateResponse{Error: "x"}).StatusCode(); got != http.StatusBadRequest {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusBadRequest)
	}
}
