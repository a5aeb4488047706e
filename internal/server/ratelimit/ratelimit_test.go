package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(5, time.Minute, 5)
	defer l.Close()

	for i := range 5 {
		res := l.Allow("k")
		if !res.Allowed {
			t.Errorf("request %d: Allowed = false, want true", i+1)
		}
		if res.Limit != 5 {
			t.Errorf("Limit = %d, want 5", res.Limit)
		}
		if res.RetryAfter != 0 {
			t.Errorf("RetryAfter = %v, want 0", res.RetryAfter)
		}
	}
	res := l.Allow("k")
	if res.Allowed {
		t.Error("6th request: Allowed = true, want false")
	}
	if res.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v, want >= 1s", res.RetryAfter)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	if !res.ResetAt.After(time.Now()) {
		t.Errorf("ResetAt = %v, want in the future", res.ResetAt)
	}

	if !l.Allow("other").Allowed {
		t.Error("other key: Allowed = false, want true")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(60, time.Minute, 1)
	defer l.Close()
	l.Allow("a")
	if got := l.len(); got != 1 {
		t.Fatalf("len() = %d, want 1", got)
	}
	// Not stale yet.
	l.cleanup(time.Now())
	if got := l.len(); got != 1 {
		t.Fatalf("len() = %d, want 1", got)
	}
	// Stale and refilled.
	l.cleanup(time.Now().Add(2 * staleAfter))
	if got := l.len(); got != 0 {
		t.Errorf("len() = %d, want 0", got)
	}
	l.Close()
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		scope Scope
		id    string
		tier  string
		want  string
	}{
		{ScopeIP, "10.0.0.1", "login", "ip:10.0.0.1:login"},
		{ScopeUser, "abc", "validate", "user:abc:validate"},
		{Scope(42), "x", "y", "unknown:x:y"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := BuildKey(tt.scope, tt.id, tt.tier); got != tt.want {
				t.Errorf("BuildKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteHeaders(t *testing.T) {
	reset := time.Unix(1700000000, 0)
	tests := []struct {
		name       string
		result     Result
		wantRetry  string
		wantRemain string
	}{
		{"allowed", Result{Allowed: true, Limit: 10, Remaining: 9, ResetAt: reset}, "", "9"},
		{"throttled", Result{Limit: 10, ResetAt: reset, RetryAfter: 6 * time.Second}, "6", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteHeaders(w, tt.result)
			if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
				t.Errorf("X-RateLimit-Limit = %q, want %q", got, "10")
			}
			if got := w.Header().Get("X-RateLimit-Remaining"); got != tt.wantRemain {
				t.Errorf("X-RateLimit-Remaining = %q, want %q", got, tt.wantRemain)
			}
			if got := w.Header().Get("X-RateLimit-Reset"); got != "1700000000" {
				t.Errorf("X-RateLimit-Reset = %q, want %q", got, "1700000000")
			}
			if got := w.Header().Get("Retry-After"); got != tt.wantRetry {
				t.Errorf("Retry-After = %q, want %q", got, tt.wantRetry)
			}
		})
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec, Result{Allowed: true, Limit: 3, Remaining: 2})
	rw.WriteHeader(http.StatusCreated)
	_, _ = rw.Write([]byte("{}"))
	if rec.Code != http.StatusCreated {
		t.Errorf("Code = %d, want %d", rec.Code, http.StatusCreated)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "2")
	}
	if rw.Unwrap() != rec {
		t.Error("Unwrap() did not return the wrapped writer")
	}
}

func TestConfig_Match(t *testing.T) {
	cfg := NewConfig(10, 120)
	defer cfg.Close()
	tests := []struct {
		method   string
		path     string
		wantTier string
	}{
		{"POST", "/api/users/login", "login"},
		{"POST", "/api/validate", "validate"},
		{"GET", "/api/validate", ""},
		{"POST", "/api/documents", ""},
		{"GET", "/api/health", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			tier := cfg.Match(tt.method, tt.path)
			got := ""
			if tier != nil {
				got = tier.Name
				if tier.Scope != ScopeIP {
					t.Errorf("Scope = %d, want ScopeIP", tier.Scope)
				}
			}
			if got != tt.wantTier {
				t.Errorf("Match() = %q, want %q", got, tt.wantTier)
			}
		})
	}
}

func TestConfig_Disabled(t *testing.T) {
	cfg := NewConfig(0, 0)
	defer cfg.Close()
	if tier := cfg.Match("POST", "/api/users/login"); tier != nil {
		t.Errorf("Match() = %q, want nil", tier.Name)
	}
	var nilCfg *Config
	if tier := nilCfg.Match("POST", "/api/validate"); tier != nil {
		t.Errorf("Match() = %q, want nil", tier.Name)
	}
	nilCfg.Close()
}
