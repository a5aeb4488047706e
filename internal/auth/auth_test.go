package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "correct horse" {
		t.Fatal("HashPassword returned the password")
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword(correct) = %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("CheckPassword(wrong) = %v, want ErrInvalidPassword", err)
	}
	if err := CheckPassword("not a hash", "x"); err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Errorf("CheckPassword(bad hash) = %v, want a non-mismatch error", err)
	}
}

func TestTokens(t *testing.T) {
	tok := &Tokens{Secret: []byte("secret"), TTL: time.Hour}
	id := ksid.NewID()
	s, exp, err := tok.Issue(id)
	if err != nil {
		t.Fatal(err)
	}
	if d := time.Until(exp); d < 59*time.Minute || d > time.Hour {
		t.Errorf("expiration in %v, want ~1h", d)
	}
	got, err := tok.Verify(s)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got != id {
		t.Errorf("Verify() = %v, want %v", got, id)
	}

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"garbage", func(*testing.T) string { return "not.a.token" }},
		{"other secret", func(t *testing.T) string {
			s, _, err := (&Tokens{Secret: []byte("other")}).Issue(id)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"expired", func(t *testing.T) string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"sub": id.String(),
				"exp": time.Now().Add(-time.Minute).Unix(),
			}).SignedString(tok.Secret)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"unsigned", func(t *testing.T) string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": id.String()}).
				SignedString(jwt.UnsafeAllowNoneSignatureType)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
		{"bad subject", func(t *testing.T) string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "!!"}).SignedString(tok.Secret)
			if err != nil {
				t.Fatal(err)
			}
			return s
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tok.Verify(tt.token(t)); err == nil {
				t.Error("Verify() succeeded, want error")
			}
		})
	}
}

func TestNewSecret(t *testing.T) {
	a, err := NewSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewSecret()
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 || a == b {
		t.Errorf("NewSecret() = %q, %q", a, b)
	}
}
