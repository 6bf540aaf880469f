package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens with a bad signature or payload.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies session tokens with a fixed HMAC key.
//
// Tokens carry no expiry. A token stays usable for as long as it is present in
// the owner's active token set, so revocation is handled entirely by removing
// it there.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for secret. An empty secret is rejected.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &TokenIssuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue returns a signed token for userID. The random jti keeps tokens
// issued within the same second distinct.
func (i *TokenIssuer) Issue(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(i.now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks the signature of tokenString and returns its subject.
func (i *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}
