package usersvc

import (
	"context"
	"errors"
	"time"
)

// User is an account known to the app. Accounts are created on the first
// sign-in through the identity provider and keep the latest profile.
type User struct {
	UID           string `gorm:"primaryKey"`
	Name          string
	Email         string
	AvatarURL     string
	EmailVerified bool
	CreatedAt     time.Time
	LastSignInAt  time.Time
}

type UserRepository interface {
	Find(ctx context.Context, uid string) (User, error)
	Save(ctx context.Context, user User) error
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUserNotFound    = errors.New("user not found")
)
