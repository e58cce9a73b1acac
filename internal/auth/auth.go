// Package auth verifies the bearer credential presented at connection time.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/huddlehq/huddle/internal/domain"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator turns a bearer credential into a verified identity. The
// connection must not reach the registry before this succeeds.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (domain.User, error)
}

// Claims is the data the identity service signs into each token.
type Claims struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Avatar    string `json:"avatar,omitempty"`
	jwt.RegisteredClaims
}

// TokenAuthenticator validates HS256-signed tokens issued by the identity
// service sharing the same secret.
type TokenAuthenticator struct {
	secret []byte
}

func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

func (a *TokenAuthenticator) Authenticate(_ context.Context, tokenString string) (domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return domain.User{}, errors.Join(ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return domain.User{}, ErrUnauthenticated
	}
	return domain.User{
		ID:        domain.UserID(claims.UserID),
		Username:  claims.Username,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Avatar:    claims.Avatar,
	}, nil
}

// IssueToken signs a token for a user. The gateway itself never issues
// tokens in production; this exists for the identity service's client
// library and for tests.
func IssueToken(secret string, user domain.User, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:    string(user.ID),
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Avatar:    user.Avatar,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "huddle",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
