package infra

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestHMACVerifier_Subject(t *testing.T) {
	v := NewHMACVerifier("secret")
	raw := signHS256(t, "secret", jwt.MapClaims{
		"sub":  "user-1",
		"role": "driver",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	tok, err := v.VerifyIDToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.UID != "user-1" {
		t.Errorf("uid = %q, want user-1", tok.UID)
	}
	if tok.Claims["role"] != "driver" {
		t.Errorf("role claim lost: %v", tok.Claims)
	}
}

func TestHMACVerifier_UserIDClaim(t *testing.T) {
	v := NewHMACVerifier("secret")
	raw := signHS256(t, "secret", jwt.MapClaims{"user_id": "user-2"})
	tok, err := v.VerifyIDToken(context.Background(), raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.UID != "user-2" {
		t.Errorf("uid = %q, want user-2", tok.UID)
	}
}

func TestHMACVerifier_Rejects(t *testing.T) {
	v := NewHMACVerifier("secret")
	cases := map[string]string{
		"wrong secret": signHS256(t, "other", jwt.MapClaims{"sub": "u"}),
		"expired":      signHS256(t, "secret", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()}),
		"no subject":   signHS256(t, "secret", jwt.MapClaims{"role": "driver"}),
		"garbage":      "not.a.token",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.VerifyIDToken(context.Background(), raw); err == nil {
				t.Fatal("expected verification failure")
			}
		})
	}
}
