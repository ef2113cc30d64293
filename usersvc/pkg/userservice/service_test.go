package userservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ichigozero/todokit/usersvc"
	"github.com/ichigozero/todokit/usersvc/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := basicService{users: inmem.NewUserRepository(), now: func() time.Time { return clock }}

	first, err := svc.SignIn(ctx, usersvc.User{UID: "alice", Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, clock, first.CreatedAt)
	assert.Equal(t, clock, first.LastSignInAt)

	clock = clock.Add(24 * time.Hour)
	second, err := svc.SignIn(ctx, usersvc.User{UID: "alice", Name: "Alice Liddell"})
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, clock, second.LastSignInAt)

	got, err := svc.User(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)

	_, err = svc.SignIn(ctx, usersvc.User{})
	assert.ErrorIs(t, err, usersvc.ErrInvalidArgument)

	_, err = svc.User(ctx, "bob")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)
}

type brokenRepository struct{ err error }

func (r brokenRepository) Find(context.Context, string) (usersvc.User, error) {
	return usersvc.User{}, r.err
}

func (r brokenRepository) Save(context.Context, usersvc.User) error { return r.err }

func TestSignInRepositoryFailure(t *testing.T) {
	boom := errors.New("disk full")
	svc := NewBasicService(brokenRepository{err: boom})

	_, err := svc.SignIn(context.Background(), usersvc.User{UID: "alice"})
	assert.ErrorIs(t, err, boom)
}
