// Defines shared service dependencies for handlers.

// Package handlers implements the HTTP API endpoints.
//
// Handlers have the signature func(context.Context, *dto.XRequest)
// (*dto.XResponse, error) and are adapted to http.Handler by server.Wrap. A
// few endpoints that do not return JSON are plain http.HandlerFunc.
package handlers

import (
	"net/netip"

	"github.com/maruel/markdb/internal/auth"
	"github.com/maruel/markdb/internal/history"
	"github.com/maruel/markdb/internal/mdv"
	"github.com/maruel/markdb/internal/storage"
)

// Services holds all service dependencies for handlers.
type Services struct {
	Store     storage.Store
	Validator mdv.Validator
	Tokens    *auth.Tokens
	History   *history.Repo // nil when history is disabled
}

// Config holds configuration values needed by handlers.
type Config struct {
	AdminPassword       string
	Version             string
	MaxRequestBodyBytes int64
	// MDVCheck reports whether the validator binary can be run. May be nil.
	MDVCheck func() error
	// TrustedProxies are the peers allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
}
