// Package auth turns bearer tokens issued by the identity service into actors.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/domestiq/bookingcore/internal/domain"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	issuer string
}

func NewTokenManager(secret, issuer string) *TokenManager {
	return &TokenManager{secret: []byte(secret), issuer: issuer}
}

// CreateAccessToken signs an HS256 token for the actor. Used by tooling and tests; production
// tokens come from the identity service with the same shape.
func (m *TokenManager) CreateAccessToken(actor domain.Actor, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:  string(actor.Role),
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ParseValidate checks the signature, expiry and issuer and returns the claims.
func (m *TokenManager) ParseValidate(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// Actor resolves the token to the user it was issued for. The system role is never
// accepted from a token.
func (m *TokenManager) Actor(tokenStr string) (domain.Actor, error) {
	c, err := m.ParseValidate(tokenStr)
	if err != nil {
		return domain.Actor{}, err
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, c.Subject)
	}
	role, err := domain.ParseRole(c.Role)
	if err != nil || role == domain.RoleSystem {
		return domain.Actor{}, fmt.Errorf("%w: role %q", ErrInvalidToken, c.Role)
	}
	return domain.Actor{ID: id, Role: role}, nil
}
