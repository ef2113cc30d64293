package userservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) SignIn(ctx context.Context, user usersvc.User) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "SignIn", "uid", user.UID, "created_at", u.CreatedAt, "err", err)
	}()
	return mw.next.SignIn(ctx, user)
}

func (mw loggingMiddleware) User(ctx context.Context, uid string) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "User", "uid", uid, "err", err)
	}()
	return mw.next.User(ctx, uid)
}
