// Package auth verifies bearer tokens presented to the relay.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JakeFAU/salesnav-relay/internal/scrape"
)

// Config configures a JWTVerifier.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

// Claims are the token claims the relay reads. Some identity providers put the
// user id in uid or user_id instead of sub.
type Claims struct {
	UID    string `json:"uid,omitempty"`
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ scrape.Verifier = (*JWTVerifier)(nil)

// NewJWTVerifier returns a verifier for cfg. An empty secret is rejected.
func NewJWTVerifier(cfg Config) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTVerifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

// Verify returns the user id carried by token.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", scrape.Unauthorized("missing bearer token", nil)
	}
	claims := &Claims{}
	tkn, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !tkn.Valid {
		return "", scrape.Unauthorized("invalid authentication credentials", err)
	}
	for _, id := range []string{claims.Subject, claims.UID, claims.UserID} {
		if id != "" {
			return id, nil
		}
	}
	return "", scrape.Unauthorized("token carries no user id", nil)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(hdr[7:])
}

// Sign mints a token for userID valid for ttl. The CLI and tests use it.
func Sign(secret, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
