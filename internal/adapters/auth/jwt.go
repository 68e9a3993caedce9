// Package auth verifies the bearer tokens issued by the identity service and
// turns them into a domain.Caller.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rental_portal/internal/domain"
)

const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Verifier struct{ secret []byte }

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// Verify checks an HS256 token and returns the caller it names.
func (v *Verifier) Verify(token string) (domain.Caller, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid || strings.TrimSpace(claims.Email) == "" {
		return domain.Caller{}, ErrInvalidToken
	}
	return domain.Caller{
		Email: strings.ToLower(strings.TrimSpace(claims.Email)),
		Admin: claims.Role == RoleAdmin,
	}, nil
}

// Issue signs a token. Used by tests and local tooling.
func (v *Verifier) Issue(email, role string, ttl time.Duration) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: email,
		Role:  role,
	})
	return t.SignedString(v.secret)
}
