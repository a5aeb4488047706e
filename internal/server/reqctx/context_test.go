package reqctx

import (
	"net/http"
	"net/netip"
	"testing"

	"github.com/maruel/ksid"
)

func TestGetClientIP(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "::1"})
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trusted    []netip.Prefix
		want       string
	}{
		{"RemoteAddr with port", nil, "192.168.1.1:12345", nil, "192.168.1.1"},
		{"RemoteAddr without port", nil, "192.168.1.1", nil, "192.168.1.1"},
		{"IPv6 RemoteAddr", nil, "[::1]:8080", nil, "::1"},
		{"IPv6 RemoteAddr without port", nil, "[::1]", nil, "::1"},
		{"X-Forwarded-For ignored without proxies", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "192.0.2.9:8080", nil, "192.0.2.9"},
		{"X-Real-IP ignored without proxies", map[string]string{"X-Real-IP": "203.0.113.7"}, "192.0.2.9:8080", nil, "192.0.2.9"},
		{"X-Forwarded-For from untrusted peer", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "192.0.2.9:8080", trusted, "192.0.2.9"},
		{"X-Forwarded-For single", map[string]string{"X-Forwarded-For": "203.0.113.195"}, "127.0.0.1:8080", trusted, "203.0.113.195"},
		{"X-Forwarded-For spaces", map[string]string{"X-Forwarded-For": "  203.0.113.195  "}, "127.0.0.1:8080", trusted, "203.0.113.195"},
		{"X-Forwarded-For spoofed prefix", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.195"}, "127.0.0.1:8080", trusted, "203.0.113.195"},
		{"X-Forwarded-For proxy chain", map[string]string{"X-Forwarded-For": "203.0.113.195, 10.1.2.3"}, "127.0.0.1:8080", trusted, "203.0.113.195"},
		{"X-Forwarded-For only proxies", map[string]string{"X-Forwarded-For": "10.0.0.2, 10.0.0.3"}, "127.0.0.1:8080", trusted, "10.0.0.2"},
		{"X-Real-IP", map[string]string{"X-Real-IP": "203.0.113.7"}, "127.0.0.1:8080", trusted, "203.0.113.7"},
		{
			"X-Forwarded-For wins",
			map[string]string{"X-Forwarded-For": "203.0.113.195", "X-Real-IP": "10.0.0.1"},
			"127.0.0.1:8080", trusted, "203.0.113.195",
		},
		{"IPv6 X-Forwarded-For", map[string]string{"X-Forwarded-For": "2001:db8::1"}, "[::1]:8080", trusted, "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, "/", http.NoBody)
			if err != nil {
				t.Fatal(err)
			}
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := GetClientIP(req, tt.trusted); got != tt.want {
				t.Errorf("GetClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	got, err := ParseTrustedProxies([]string{"10.1.2.3/8", "192.0.2.1", "2001:db8::/32"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"10.0.0.0/8", "192.0.2.1/32", "2001:db8::/32"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, p := range got {
		if p.String() != want[i] {
			t.Errorf("[%d] = %q, want %q", i, p, want[i])
		}
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Error("ParseTrustedProxies() succeeded on a host name")
	}
}

func TestContextValues(t *testing.T) {
	ctx := t.Context()
	if got := ClientIP(ctx); got != "" {
		t.Errorf("ClientIP() = %q, want empty", got)
	}
	if got := UserID(ctx); !got.IsZero() {
		t.Errorf("UserID() = %v, want zero", got)
	}
	id := ksid.NewID()
	ctx = WithUserID(WithRequestID(WithClientIP(ctx, "10.0.0.1"), "req-1"), id)
	if got := ClientIP(ctx); got != "10.0.0.1" {
		t.Errorf("ClientIP() = %q, want %q", got, "10.0.0.1")
	}
	if got := RequestID(ctx); got != "req-1" {
		t.Errorf("RequestID() = %q, want %q", got, "req-1")
	}
	if got := UserID(ctx); got != id {
		t.Errorf("UserID() = %v, want %v", got, id)
	}
}
