package dto

import "net/http"

// StatusCoder is implemented by responses that are not sent with 200 OK.
type StatusCoder interface {
	StatusCode() int
}

// MessageResponse is a response carrying a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// --- Users ---

// UserResponse is a user as returned by the API. It never includes the
// password.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt" jsonschema:"format=date-time"`
}

// ListUsersResponse is the list of all users.
type ListUsersResponse []UserResponse

// CreateUserResponse is the user created by POST /api/users.
type CreateUserResponse struct {
	UserResponse
}

// StatusCode implements StatusCoder.
func (*CreateUserResponse) StatusCode() int { return http.StatusCreated }

// LoginResponse is the logged in user and its session token.
type LoginResponse struct {
	UserResponse
	Token     string `json:"token" jsonschema:"description=HS256 JWT to send as a bearer token"`
	ExpiresAt string `json:"expiresAt" jsonschema:"format=date-time"`
}

// --- Tags ---

// TagResponse is a tag as returned by the API.
type TagResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt" jsonschema:"format=date-time"`
}

// ListTagsResponse is the list of all tags.
type ListTagsResponse []TagResponse

// CreateTagResponse is the tag created by POST /api/tags.
type CreateTagResponse struct {
	TagResponse
}

// StatusCode implements StatusCoder.
func (*CreateTagResponse) StatusCode() int { return http.StatusCreated }

// --- Schemas ---

// SchemaResponse is a schema as returned by the API.
type SchemaResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt" jsonschema:"format=date-time"`
}

// ListSchemasResponse is the list of all schemas.
type ListSchemasResponse []SchemaResponse

// CreateSchemaResponse is the schema created by POST /api/schemas.
type CreateSchemaResponse struct {
	SchemaResponse
}

// StatusCode implements StatusCoder.
func (*CreateSchemaResponse) StatusCode() int { return http.StatusCreated }

// --- Documents ---

// DocumentResponse is a document with the data extracted by its last
// successful validation.
type DocumentResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	SchemaID  string         `json:"schemaId"`
	Content   string         `json:"content"`
	Author    string         `json:"author"`
	Tags      []string       `json:"tags"`
	CreatedAt string         `json:"createdAt" jsonschema:"format=date-time"`
	// Extracted is absent when the document was never validated.
	Extracted *map[string]any `json:"extracted,omitempty"`
}

// ListDocumentsResponse is a list of documents.
type ListDocumentsResponse []DocumentResponse

// CreateDocumentResponse is the document created by POST /api/documents.
type CreateDocumentResponse struct {
	DocumentResponse
	ValidationResult ValidateResponse `json:"validationResult"`
}

// StatusCode implements StatusCoder.
func (*CreateDocumentResponse) StatusCode() int { return http.StatusCreated }

// Commit is one revision of a document.
type Commit struct {
	Hash        string `json:"hash"`
	Message     string `json:"message"`
	AuthorName  string `json:"authorName"`
	AuthorEmail string `json:"authorEmail"`
	When        string `json:"when" jsonschema:"format=date-time"`
}

// DocumentHistoryResponse lists the revisions of a document, newest first.
type DocumentHistoryResponse struct {
	History []Commit `json:"history"`
}

// DocumentVersionResponse is the content of a document at a revision.
type DocumentVersionResponse struct {
	Hash    string `json:"hash"`
	Content string `json:"content"`
}

// --- Validation ---

// ValidateResponse is the outcome of running mdv.
//
// It is sent with 400 Bad Request when the input does not match.
type ValidateResponse struct {
	Success bool           `json:"success"`
	Output  *map[string]any `json:"output,omitempty"` // set on success, possibly empty
	Error   string         `json:"error,omitempty"`
}

// StatusCode implements StatusCoder.
func (r *ValidateResponse) StatusCode() int {
	if r.Success {
		return http.StatusOK
	}
	return http.StatusBadRequest
}

// --- Admin ---

// DeletedCounts is the number of rows deleted per collection.
type DeletedCounts struct {
	Users     int64 `json:"users"`
	Schemas   int64 `json:"schemas"`
	Documents int64 `json:"documents"`
	Tags      int64 `json:"tags"`
	Extracted int64 `json:"extracted"`
}

// WipeResponse is the result of wiping the database.
type WipeResponse struct {
	Message       string        `json:"message"`
	DeletedCounts DeletedCounts `json:"deletedCounts"`
}

// --- Health ---

// HealthResponse is the server status.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Storage string `json:"storage" jsonschema:"description=Storage driver name"`
	MDV     string `json:"mdv" jsonschema:"enum=ok,enum=missing"`
}
