package authservice

import (
	"context"

	"github.com/go-kit/kit/log"
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

func (mw loggingMiddleware) Login(ctx context.Context, uid string) (at AccessToken, err error) {
	defer func() {
		mw.logger.Log("method", "Login", "uid", uid, "access_uuid", at.UUID, "err", err)
	}()
	return mw.next.Login(ctx, uid)
}

func (mw loggingMiddleware) Logout(ctx context.Context, accessUUID string) (v bool, err error) {
	defer func() {
		mw.logger.Log("method", "Logout", "access_uuid", accessUUID, "v", v, "err", err)
	}()
	return mw.next.Logout(ctx, accessUUID)
}

// Validate runs on every task call, so only failures are logged.
func (mw loggingMiddleware) Validate(ctx context.Context, accessUUID string) (v bool, err error) {
	defer func() {
		if err != nil || !v {
			mw.logger.Log("method", "Validate", "access_uuid", accessUUID, "v", v, "err", err)
		}
	}()
	return mw.next.Validate(ctx, accessUUID)
}
