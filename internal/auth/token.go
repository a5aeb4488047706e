package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maruel/ksid"
)

// DefaultTokenTTL is used when Tokens.TTL is zero.
const DefaultTokenTTL = 24 * time.Hour

var (
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid token claims")
	errInvalidUserID = errors.New("invalid user ID in token")
)

// Tokens issues and verifies HS256 JWTs whose subject is a user ID.
type Tokens struct {
	Secret []byte
	TTL    time.Duration
}

// Issue returns a signed token for userID and its expiration time.
func (t *Tokens) Issue(userID ksid.ID) (string, time.Time, error) {
	ttl := t.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return s, expiresAt, nil
}

// Verify checks the signature and expiration of tokenString and returns the
// user ID it was issued for.
func (t *Tokens) Verify(tokenString string) (ksid.ID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.Secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidClaims
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return 0, errInvalidUserID
	}
	id, err := ksid.Parse(sub)
	if err != nil {
		return 0, errInvalidUserID
	}
	return id, nil
}

// NewSecret returns a random hex-encoded secret suitable for Tokens.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
