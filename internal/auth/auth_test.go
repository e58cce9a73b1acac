package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/domain"
)

const secret = "test-secret"

func TestAuthenticate_Round_Trip(t *testing.T) {
	req := require.New(t)
	user := domain.User{ID: "u1", Username: "ada", FirstName: "Ada", LastName: "Lovelace"}

	token, err := IssueToken(secret, user, time.Hour)
	req.NoError(err)

	got, err := NewTokenAuthenticator(secret).Authenticate(context.Background(), token)
	req.NoError(err)
	req.Equal(user, got)
}

func TestAuthenticate_Expired(t *testing.T) {
	req := require.New(t)
	token, err := IssueToken(secret, domain.User{ID: "u1"}, -time.Minute)
	req.NoError(err)

	_, err = NewTokenAuthenticator(secret).Authenticate(context.Background(), token)
	req.ErrorIs(err, ErrUnauthenticated)
}

func TestAuthenticate_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	token, err := IssueToken("other-secret", domain.User{ID: "u1"}, time.Hour)
	req.NoError(err)

	_, err = NewTokenAuthenticator(secret).Authenticate(context.Background(), token)
	req.ErrorIs(err, ErrUnauthenticated)
}

func TestAuthenticate_Garbage(t *testing.T) {
	req := require.New(t)

	_, err := NewTokenAuthenticator(secret).Authenticate(context.Background(), "not-a-token")
	req.ErrorIs(err, ErrUnauthenticated)
}
