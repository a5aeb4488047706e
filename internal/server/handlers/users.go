package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/markdb/internal/auth"
	"github.com/maruel/markdb/internal/server/dto"
	"github.com/maruel/markdb/internal/storage"
	"github.com/maruel/markdb/internal/storage/entity"
)

const errInvalidCredentials = "Invalid email or password"

// UserHandler handles user management and login.
type UserHandler struct {
	svc *Services
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *Services) *UserHandler {
	return &UserHandler{svc: svc}
}

// ListUsers returns every user.
func (h *UserHandler) ListUsers(ctx context.Context, _ *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	users, err := h.svc.Store.Users().List(ctx)
	if err != nil {
		return nil, dto.InternalWithError("Failed to list users", err)
	}
	out := make(dto.ListUsersResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}
	return &out, nil
}

// GetUser returns one user.
func (h *UserHandler) GetUser(ctx context.Context, req *dto.GetUserRequest) (*dto.UserResponse, error) {
	u, err := h.svc.Store.Users().Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "User", "email")
	}
	r := userToResponse(u)
	return &r, nil
}

// CreateUser registers a user.
func (h *UserHandler) CreateUser(ctx context.Context, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error) {
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, dto.InternalWithError("Failed to hash password", err)
	}
	u := &entity.User{
		ID:           ksid.NewID(),
		Name:         req.Name,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Created:      time.Now().UTC(),
	}
	if err := h.svc.Store.Users().Create(ctx, u); err != nil {
		return nil, storeError(err, "User", "email")
	}
	slog.InfoContext(ctx, "User created", "id", u.ID)
	return &dto.CreateUserResponse{UserResponse: userToResponse(u)}, nil
}

// UpdateUser changes the fields present in the request.
func (h *UserHandler) UpdateUser(ctx context.Context, req *dto.UpdateUserRequest) (*dto.UserResponse, error) {
	users := h.svc.Store.Users()
	u, err := users.Get(ctx, req.ID)
	if err != nil {
		return nil, storeError(err, "User", "email")
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Email != nil {
		u.Email = strings.TrimSpace(*req.Email)
	}
	if req.Password != nil {
		if u.PasswordHash, err = auth.HashPassword(*req.Password); err != nil {
			return nil, dto.InternalWithError("Failed to hash password", err)
		}
	}
	if err := users.Update(ctx, u); err != nil {
		return nil, storeError(err, "User", "email")
	}
	r := userToResponse(u)
	return &r, nil
}

// DeleteUser removes a user. Documents they authored are kept.
func (h *UserHandler) DeleteUser(ctx context.Context, req *dto.DeleteUserRequest) (*dto.MessageResponse, error) {
	if err := h.svc.Store.Users().Delete(ctx, req.ID); err != nil {
		return nil, storeError(err, "User", "email")
	}
	return &dto.MessageResponse{Message: "User deleted successfully"}, nil
}

// Login checks the credentials and issues a session token.
//
// Unknown emails and wrong passwords get the same answer.
func (h *UserHandler) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	u, err := h.svc.Store.Users().ByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, dto.Unauthorized(errInvalidCredentials)
		}
		return nil, dto.InternalWithError("Failed to look up user", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, dto.Unauthorized(errInvalidCredentials)
	}
	token, expiresAt, err := h.svc.Tokens.Issue(u.ID)
	if err != nil {
		return nil, dto.InternalWithError("Failed to issue token", err)
	}
	return &dto.LoginResponse{
		UserResponse: userToResponse(u),
		Token:        token,
		ExpiresAt:    formatTime(expiresAt),
	}, nil
}
