package dto

import "github.com/maruel/ksid"

// --- Users ---

// ListUsersRequest is a request to list all users.
type ListUsersRequest struct{}

// Validate is a no-op for ListUsersRequest.
func (r *ListUsersRequest) Validate() error {
	return nil
}

// GetUserRequest is a request to get a user.
type GetUserRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for GetUserRequest; an unknown ID is reported as not
// found by the handler.
func (r *GetUserRequest) Validate() error {
	return nil
}

// CreateUserRequest is a request to create a user.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8" jsonschema:"minLength=8"`
}

// Validate validates the create user request fields.
func (r *CreateUserRequest) Validate() error {
	return validateStruct(r)
}

// UpdateUserRequest is a request to update a user. Nil fields are unchanged.
type UpdateUserRequest struct {
	ID       ksid.ID `path:"id" json:"-"`
	Name     *string `json:"name,omitempty" validate:"omitnil,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitnil,email"`
	Password *string `json:"password,omitempty" validate:"omitnil,min=8" jsonschema:"minLength=8"`
}

// Validate validates the update user request fields.
func (r *UpdateUserRequest) Validate() error {
	return validateStruct(r)
}

// DeleteUserRequest is a request to delete a user.
type DeleteUserRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for DeleteUserRequest.
func (r *DeleteUserRequest) Validate() error {
	return nil
}

// LoginRequest is a request to log in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the login request fields.
func (r *LoginRequest) Validate() error {
	return validateStruct(r)
}

// --- Tags ---

// ListTagsRequest is a request to list all tags.
type ListTagsRequest struct{}

// Validate is a no-op for ListTagsRequest.
func (r *ListTagsRequest) Validate() error {
	return nil
}

// GetTagRequest is a request to get a tag.
type GetTagRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for GetTagRequest.
func (r *GetTagRequest) Validate() error {
	return nil
}

// CreateTagRequest is a request to create a tag.
type CreateTagRequest struct {
	Name string `json:"name" validate:"required"`
}

// Validate validates the create tag request fields.
func (r *CreateTagRequest) Validate() error {
	return validateStruct(r)
}

// UpdateTagRequest is a request to rename a tag.
type UpdateTagRequest struct {
	ID   ksid.ID `path:"id" json:"-"`
	Name *string `json:"name,omitempty" validate:"omitnil,min=1"`
}

// Validate validates the update tag request fields.
func (r *UpdateTagRequest) Validate() error {
	return validateStruct(r)
}

// DeleteTagRequest is a request to delete a tag.
type DeleteTagRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for DeleteTagRequest.
func (r *DeleteTagRequest) Validate() error {
	return nil
}

// --- Schemas ---

// ListSchemasRequest is a request to list all schemas.
type ListSchemasRequest struct{}

// Validate is a no-op for ListSchemasRequest.
func (r *ListSchemasRequest) Validate() error {
	return nil
}

// GetSchemaRequest is a request to get a schema.
type GetSchemaRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for GetSchemaRequest.
func (r *GetSchemaRequest) Validate() error {
	return nil
}

// CreateSchemaRequest is a request to create a schema.
type CreateSchemaRequest struct {
	Name    string `json:"name" validate:"required"`
	Content string `json:"content" validate:"required" jsonschema:"description=Markdown schema understood by mdv"`
}

// Validate validates the create schema request fields.
func (r *CreateSchemaRequest) Validate() error {
	return validateStruct(r)
}

// UpdateSchemaRequest is a request to update a schema.
type UpdateSchemaRequest struct {
	ID      ksid.ID `path:"id" json:"-"`
	Name    *string `json:"name,omitempty" validate:"omitnil,min=1"`
	Content *string `json:"content,omitempty" validate:"omitnil,min=1"`
}

// Validate validates the update schema request fields.
func (r *UpdateSchemaRequest) Validate() error {
	return validateStruct(r)
}

// DeleteSchemaRequest is a request to delete a schema.
type DeleteSchemaRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for DeleteSchemaRequest.
func (r *DeleteSchemaRequest) Validate() error {
	return nil
}

// --- Documents ---

// ListDocumentsRequest is a request to list documents, optionally only those
// carrying a tag.
type ListDocumentsRequest struct {
	TagID string `query:"tagId" json:"-"`
}

// Validate validates the list documents request fields.
func (r *ListDocumentsRequest) Validate() error {
	if r.TagID != "" {
		if _, err := ksid.Parse(r.TagID); err != nil {
			return InvalidField("tagId", "Invalid tag ID")
		}
	}
	return nil
}

// GetDocumentRequest is a request to get a document.
type GetDocumentRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for GetDocumentRequest.
func (r *GetDocumentRequest) Validate() error {
	return nil
}

// CreateDocumentRequest is a request to create a document.
//
// Author defaults to the user of the bearer token.
type CreateDocumentRequest struct {
	Name     string   `json:"name" validate:"required"`
	SchemaID string   `json:"schemaId" validate:"required"`
	Content  string   `json:"content" validate:"required"`
	Author   string   `json:"author,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// Validate validates the create document request fields.
func (r *CreateDocumentRequest) Validate() error {
	return validateStruct(r)
}

// UpdateDocumentRequest is a request to update a document. Nil fields are
// unchanged. Changing Content or SchemaID revalidates the document.
type UpdateDocumentRequest struct {
	ID       ksid.ID   `path:"id" json:"-"`
	Name     *string   `json:"name,omitempty" validate:"omitnil,min=1"`
	SchemaID *string   `json:"schemaId,omitempty" validate:"omitnil,min=1"`
	Content  *string   `json:"content,omitempty" validate:"omitnil,min=1"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Validate validates the update document request fields.
func (r *UpdateDocumentRequest) Validate() error {
	return validateStruct(r)
}

// DeleteDocumentRequest is a request to delete a document.
type DeleteDocumentRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for DeleteDocumentRequest.
func (r *DeleteDocumentRequest) Validate() error {
	return nil
}

// DocumentHistoryRequest is a request to list the revisions of a document.
type DocumentHistoryRequest struct {
	ID ksid.ID `path:"id" json:"-"`
}

// Validate is a no-op for DocumentHistoryRequest.
func (r *DocumentHistoryRequest) Validate() error {
	return nil
}

// DocumentVersionRequest is a request to get a document at a revision.
type DocumentVersionRequest struct {
	ID   ksid.ID `path:"id" json:"-"`
	Hash string  `path:"hash" json:"-"`
}

// Validate validates the document version request fields.
func (r *DocumentVersionRequest) Validate() error {
	if r.Hash == "" {
		return MissingField("hash")
	}
	return nil
}

// --- Validation ---

// ValidateRequest is a request to check input against a schema without
// storing anything.
type ValidateRequest struct {
	Input  string `json:"input" jsonschema:"description=Markdown document"`
	Schema string `json:"schema" validate:"required" jsonschema:"description=Markdown schema"`
}

// Validate validates the validate request fields.
func (r *ValidateRequest) Validate() error {
	return validateStruct(r)
}

// --- Admin ---

// WipeRequest is a request to delete all data.
type WipeRequest struct {
	Password string `json:"password"`
}

// Validate is a no-op for WipeRequest; an empty password is rejected like
// any other wrong password.
func (r *WipeRequest) Validate() error {
	return nil
}

// --- Health ---

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}
