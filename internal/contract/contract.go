// Package contract publishes the API request and response types as JSON
// Schema and validates payloads against them.
//
// The schemas are reflected from the dto package so the server and the
// client can never disagree on them.
package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/maruel/markdb/internal/server/dto"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrUnknownType is returned by Check for a name not in Names().
var ErrUnknownType = errors.New("unknown contract type")

// types lists every type published in the contract.
var types = []any{
	dto.ErrorResponse{},
	dto.MessageResponse{},

	dto.CreateUserRequest{},
	dto.UpdateUserRequest{},
	dto.LoginRequest{},
	dto.UserResponse{},
	dto.ListUsersResponse{},
	dto.CreateUserResponse{},
	dto.LoginResponse{},

	dto.CreateTagRequest{},
	dto.UpdateTagRequest{},
	dto.TagResponse{},
	dto.ListTagsResponse{},
	dto.CreateTagResponse{},

	dto.CreateSchemaRequest{},
	dto.UpdateSchemaRequest{},
	dto.SchemaResponse{},
	dto.ListSchemasResponse{},
	dto.CreateSchemaResponse{},

	dto.CreateDocumentRequest{},
	dto.UpdateDocumentRequest{},
	dto.DocumentResponse{},
	dto.ListDocumentsResponse{},
	dto.CreateDocumentResponse{},
	dto.DocumentHistoryResponse{},
	dto.DocumentVersionResponse{},

	dto.ValidateRequest{},
	dto.ValidateResponse{},
	dto.WipeRequest{},
	dto.WipeResponse{},
	dto.HealthResponse{},
}

// Schemas returns the JSON Schema of every contract type, keyed by Go type
// name, e.g. "DocumentResponse".
func Schemas() map[string]*jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	out := make(map[string]*jsonschema.Schema, len(types))
	for _, v := range types {
		t := reflect.TypeOf(v)
		out[t.Name()] = r.ReflectFromType(t)
	}
	return out
}

// Names returns the sorted contract type names.
func Names() []string {
	names := make([]string, 0, len(types))
	for _, v := range types {
		names = append(names, reflect.TypeOf(v).Name())
	}
	sort.Strings(names)
	return names
}

// Checker validates payloads against the compiled contract.
type Checker struct {
	schemas map[string]*sjsonschema.Schema
}

// NewChecker compiles every contract schema.
func NewChecker() (*Checker, error) {
	c := sjsonschema.NewCompiler()
	urls := map[string]string{}
	for name, s := range Schemas() {
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema %s: %w", name, err)
		}
		doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("failed to decode schema %s: %w", name, err)
		}
		u := "contract/" + name + ".json"
		if err := c.AddResource(u, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
		}
		urls[name] = u
	}
	out := &Checker{schemas: make(map[string]*sjsonschema.Schema, len(urls))}
	for name, u := range urls {
		s, err := c.Compile(u)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		out.schemas[name] = s
	}
	return out, nil
}

// Check validates payload against the schema of the named type.
func (c *Checker) Check(name string, payload []byte) error {
	s := c.schemas[name]
	if s == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	v, err := sjsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: invalid JSON: %w", name, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
