// Package client is a typed client for the markdb HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/maruel/markdb/internal/contract"
	"github.com/maruel/markdb/internal/server/dto"
)

// DefaultBaseURL is used when MARKDB_BASE_URL is not set.
const DefaultBaseURL = "http://localhost:3001"

// Error is a non-2xx response.
type Error struct {
	Status  int
	Code    string
	Message string
	Reason  string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// IsMismatch reports whether the error is a document not matching its
// schema.
func (e *Error) IsMismatch() bool {
	return e.Reason == dto.ReasonValidationError
}

// Client calls a markdb server.
type Client struct {
	baseURL   string
	hc        *http.Client
	token     string
	checker   *contract.Checker
	retryOpts []retry.Option
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithToken sends token as a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithChecker validates every successful response against the contract.
func WithChecker(checker *contract.Checker) Option {
	return func(c *Client) { c.checker = checker }
}

// WithRetry replaces the default retry policy.
func WithRetry(opts ...retry.Option) Option {
	return func(c *Client) { c.retryOpts = opts }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		hc:        http.DefaultClient,
		retryOpts: []retry.Option{retry.Attempts(3), retry.Delay(500 * time.Millisecond)},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Validate checks input against schema. A mismatch is not an error: the
// response has Success false.
func (c *Client) Validate(ctx context.Context, input, schema string) (*dto.ValidateResponse, error) {
	out := &dto.ValidateResponse{}
	err := c.do(ctx, http.MethodPost, "/api/validate", &dto.ValidateRequest{Input: input, Schema: schema}, "ValidateResponse", out)
	var apiErr *Error
	// A mismatch is sent as 400 with a ValidateResponse body, which has no
	// code.
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && apiErr.Code == "" {
		return &dto.ValidateResponse{Error: apiErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListDocuments returns all documents, or only those carrying tagID when not
// empty.
func (c *Client) ListDocuments(ctx context.Context, tagID string) (dto.ListDocumentsResponse, error) {
	p := "/api/documents"
	if tagID != "" {
		p += "?" + url.Values{"tagId": {tagID}}.Encode()
	}
	var out dto.ListDocumentsResponse
	if err := c.do(ctx, http.MethodGet, p, nil, "ListDocumentsResponse", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument returns a document.
func (c *Client) GetDocument(ctx context.Context, id string) (*dto.DocumentResponse, error) {
	out := &dto.DocumentResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(id), nil, "DocumentResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDocument validates and stores a document.
func (c *Client) CreateDocument(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	out := &dto.CreateDocumentResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/documents", req, "CreateDocumentResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDocument changes the non-nil fields of req.
func (c *Client) UpdateDocument(ctx context.Context, id string, req *dto.UpdateDocumentRequest) (*dto.DocumentResponse, error) {
	out := &dto.DocumentResponse{}
	if err := c.do(ctx, http.MethodPut, "/api/documents/"+url.PathEscape(id), req, "DocumentResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListSchemas returns all schemas.
func (c *Client) ListSchemas(ctx context.Context) (dto.ListSchemasResponse, error) {
	var out dto.ListSchemasResponse
	if err := c.do(ctx, http.MethodGet, "/api/schemas", nil, "ListSchemasResponse", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateSchema stores a schema.
func (c *Client) CreateSchema(ctx context.Context, name, content string) (*dto.CreateSchemaResponse, error) {
	out := &dto.CreateSchemaResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/schemas", &dto.CreateSchemaRequest{Name: name, Content: content}, "CreateSchemaResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login returns the user and a session token. It does not change the token
// used by c.
func (c *Client) Login(ctx context.Context, email, password string) (*dto.LoginResponse, error) {
	out := &dto.LoginResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", &dto.LoginRequest{Email: email, Password: password}, "LoginResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// Wipe deletes all data.
func (c *Client) Wipe(ctx context.Context, password string) (*dto.WipeResponse, error) {
	out := &dto.WipeResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/admin/wipe", &dto.WipeRequest{Password: password}, "WipeResponse", out); err != nil {
		return nil, err
	}
	return out, nil
}

// do sends in as JSON and decodes the response into out.
//
// Transport errors and 5xx responses are retried for idempotent methods
// only. typ is the contract type of a successful response.
func (c *Client) do(ctx context.Context, method, path string, in any, typ string, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	opts := append([]retry.Option{retry.Context(ctx), retry.LastErrorOnly(true)}, c.retryOpts...)
	var b []byte
	err := retry.New(opts...).Do(func() error {
		var err error
		b, err = c.roundTrip(ctx, method, path, body)
		if err == nil {
			return nil
		}
		// A POST may have been applied even though the response was lost.
		if !idempotent(method) {
			return retry.Unrecoverable(err)
		}
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return retry.Unrecoverable(err)
		}
		return err
	})
	if err != nil {
		return err
	}
	if c.checker != nil {
		if err := c.checker.Check(typ, b); err != nil {
			return fmt.Errorf("%s %s: response does not match the contract: %w", method, path, err)
		}
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return b, nil
	}
	return nil, decodeError(resp.StatusCode, b)
}

func decodeError(status int, b []byte) *Error {
	var e dto.ErrorResponse
	if err := json.Unmarshal(b, &e); err != nil || e.Error == "" {
		return &Error{Status: status, Message: http.StatusText(status)}
	}
	return &Error{Status: status, Code: string(e.Code), Message: e.Error, Reason: e.Reason}
}
