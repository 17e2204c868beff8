package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestVerify_AcceptsValidToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "test-secret", jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(time.Hour).Unix()})

	sub, claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected verification error: %v", err)
	}
	if sub != "user-123" {
		t.Fatalf("expected subject user-123, got %s", sub)
	}
	if claims["sub"] != "user-123" {
		t.Fatalf("expected claims to include sub, got %v", claims)
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "wrong-secret", jwt.MapClaims{"sub": "user-123"})

	if _, _, err := v.Verify(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a mis-signed token, got %v", err)
	}
}

func TestVerify_RejectsExpiredToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "test-secret", jwt.MapClaims{"sub": "user-123", "exp": time.Now().Add(-time.Hour).Unix()})

	if _, _, err := v.Verify(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for an expired token, got %v", err)
	}
}

func TestVerify_RejectsMissingSubject(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	token := signToken(t, "test-secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	if _, _, err := v.Verify(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a token without a subject, got %v", err)
	}
}

func TestVerify_RejectsMalformedToken(t *testing.T) {
	v := NewJWTVerifier("test-secret")
	if _, _, err := v.Verify(context.Background(), "not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for a malformed token, got %v", err)
	}
}
