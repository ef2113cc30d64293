package userservice

import (
	"context"
	"errors"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/usersvc"
)

type Service interface {
	// SignIn records a sign-in of user, creating the account the first time
	// its uid is seen. The profile fields are replaced by the given ones.
	SignIn(ctx context.Context, user usersvc.User) (usersvc.User, error)
	User(ctx context.Context, uid string) (usersvc.User, error)
}

func New(users usersvc.UserRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(users)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

func NewBasicService(users usersvc.UserRepository) Service {
	return basicService{users: users, now: time.Now}
}

type basicService struct {
	users usersvc.UserRepository
	now   func() time.Time
}

func (s basicService) SignIn(ctx context.Context, user usersvc.User) (usersvc.User, error) {
	if user.UID == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}

	now := s.now()
	existing, err := s.users.Find(ctx, user.UID)
	switch {
	case err == nil:
		user.CreatedAt = existing.CreatedAt
	case errors.Is(err, usersvc.ErrUserNotFound):
		user.CreatedAt = now
	default:
		return usersvc.User{}, err
	}
	user.LastSignInAt = now

	if err := s.users.Save(ctx, user); err != nil {
		return usersvc.User{}, err
	}
	return user, nil
}

func (s basicService) User(ctx context.Context, uid string) (usersvc.User, error) {
	if uid == "" {
		return usersvc.User{}, usersvc.ErrInvalidArgument
	}
	return s.users.Find(ctx, uid)
}
