package contract

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/maruel/markdb/internal/server/dto"
)

func TestSchemas(t *testing.T) {
	s := Schemas()
	names := Names()
	if len(s) != len(names) {
		t.Fatalf("len(Schemas()) = %d, want %d", len(s), len(names))
	}
	for _, n := range names {
		if s[n] == nil {
			t.Errorf("Schemas()[%q] is missing", n)
		}
	}
	if got := s["ListDocumentsResponse"].Type; got != "array" {
		t.Errorf("ListDocumentsResponse type = %q, want %q", got, "array")
	}
	if got := s["UserResponse"].Type; got != "object" {
		t.Errorf("UserResponse type = %q, want %q", got, "object")
	}
	if _, ok := s["LoginResponse"].Properties.Get("token"); !ok {
		t.Error("LoginResponse is missing the token property")
	}
	if _, ok := s["LoginResponse"].Properties.Get("email"); !ok {
		t.Error("LoginResponse is missing the embedded email property")
	}
}

func TestChecker(t *testing.T) {
	c, err := NewChecker()
	if err != nil {
		t.Fatal(err)
	}
	mustJSON := func(v any) []byte {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	tests := []struct {
		name    string
		typ     string
		payload []byte
		wantErr bool
	}{
		{
			name: "error response",
			typ:  "ErrorResponse",
			payload: mustJSON(dto.ErrorResponse{
				Error:  "Document does not match its schema",
				Code:   dto.ErrorCodeDocumentMismatch,
				Reason: dto.ReasonValidationError,
			}),
		},
		{
			name:    "error response missing code",
			typ:     "ErrorResponse",
			payload: []byte(`{"error":"x"}`),
			wantErr: true,
		},
		{
			name: "document list",
			typ:  "ListDocumentsResponse",
			payload: mustJSON(dto.ListDocumentsResponse{{
				ID:        "1",
				Name:      "a",
				SchemaID:  "2",
				Content:   "# a",
				Author:    "3",
				Tags:      []string{},
				CreatedAt: "2024-01-02T03:04:05Z",
				Extracted: &map[string]any{"title": "a"},
			}}),
		},
		{
			name:    "document list with null tags",
			typ:     "ListDocumentsResponse",
			payload: []byte(`[{"id":"1","name":"a","schemaId":"2","content":"","author":"3","tags":null,"createdAt":""}]`),
			wantErr: true,
		},
		{
			name:    "unknown property",
			typ:     "TagResponse",
			payload: []byte(`{"id":"1","name":"a","createdAt":"","color":"red"}`),
			wantErr: true,
		},
		{
			name:    "validate success",
			typ:     "ValidateResponse",
			payload: mustJSON(dto.ValidateResponse{Success: true, Output: &map[string]any{"n": 1}}),
		},
		{
			name:    "health enum",
			typ:     "HealthResponse",
			payload: []byte(`{"status":"ok","version":"v1","storage":"jsonl","mdv":"broken"}`),
			wantErr: true,
		},
		{
			name:    "not json",
			typ:     "MessageResponse",
			payload: []byte(`{`),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Check(tt.typ, tt.payload)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%q) error = %v, wantErr %v", tt.typ, err, tt.wantErr)
			}
		})
	}
}

func TestChecker_UnknownType(t *testing.T) {
	c, err := NewChecker()
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Check("Nope", []byte(`{}`)); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Check(Nope) = %v, want ErrUnknownType", err)
	}
}
