package ratelimit

import (
	"net/http"
	"time"
)

// Scope selects what identifies a client.
type Scope int

const (
	// ScopeIP keys buckets by client IP address.
	ScopeIP Scope = iota
	// ScopeUser keys buckets by authenticated user ID.
	ScopeUser
)

// Tier is a named limiter applied to a set of routes.
type Tier struct {
	Name    string
	Limiter *Limiter
	Scope   Scope
}

// Config holds the limiters of the API. A nil tier is unlimited.
type Config struct {
	Login    *Tier
	Validate *Tier
}

// NewConfig returns limiters for login attempts and ad-hoc validations, both
// per client IP. A rate of zero or less disables the tier.
//
// Validation bursts up to a sixth of the per-minute rate so that a client
// pasting several documents quickly is not throttled.
func NewConfig(loginPerMinute, validatePerMinute int) *Config {
	c := &Config{}
	if loginPerMinute > 0 {
		c.Login = &Tier{
			Name:    "login",
			Limiter: NewLimiter(loginPerMinute, time.Minute, loginPerMinute),
			Scope:   ScopeIP,
		}
	}
	if validatePerMinute > 0 {
		c.Validate = &Tier{
			Name:    "validate",
			Limiter: NewLimiter(validatePerMinute, time.Minute, max(validatePerMinute/6, 1)),
			Scope:   ScopeIP,
		}
	}
	return c
}

// Match returns the tier for a request, or nil when it is not limited.
func (c *Config) Match(method, path string) *Tier {
	if c == nil || method != http.MethodPost {
		return nil
	}
	switch path {
	case "/api/users/login":
		return c.Login
	case "/api/validate":
		return c.Validate
	}
	return nil
}

// Close stops every limiter.
func (c *Config) Close() {
	if c == nil {
		return
	}
	for _, t := range []*Tier{c.Login, c.Validate} {
		if t != nil {
			t.Limiter.Close()
		}
	}
}
