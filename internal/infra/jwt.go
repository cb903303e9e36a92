// README: HMAC JWT verifier used when no Firebase project is configured.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type hmacVerifier struct {
	secret []byte
}

// NewHMACVerifier accepts HS256 tokens whose subject (or user_id claim) is the caller uid.
func NewHMACVerifier(secret string) TokenVerifier {
	return &hmacVerifier{secret: []byte(secret)}
}

func (v *hmacVerifier) VerifyIDToken(_ context.Context, idToken string) (*AuthToken, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	uid, _ := claims.GetSubject()
	if uid == "" {
		uid, _ = claims["user_id"].(string)
	}
	if uid == "" {
		return nil, ErrInvalidToken
	}
	return &AuthToken{UID: uid, Claims: claims}, nil
}
