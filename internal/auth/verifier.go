// Package auth provides the token-verification gate's default
// implementation. Generalized from the teacher's auth.KeycloakClient
// shape (context injection, claim extraction) away from the Keycloak SDK
// per spec.md's explicit non-goal on auth-provider specifics — any
// implementation of httpmw.Verifier can be substituted.
package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token-verification failure; the
// caller never leaks more detail to the client (§7).
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// JWTVerifier validates bearer tokens with a static HMAC secret. Swap for
// a JWKS-backed verifier without touching httpmw callers.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier from a shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify implements httpmw.Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (string, map[string]interface{}, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", nil, ErrInvalidToken
	}
	return sub, claims, nil
}
