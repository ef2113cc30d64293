package authservice

import (
	"context"
	"errors"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/inmem"
)

// Service issues access tokens for signed-in principals and keeps the
// registry of tokens that have not been revoked.
type Service interface {
	Login(ctx context.Context, uid string) (AccessToken, error)
	Logout(ctx context.Context, accessUUID string) (bool, error)
	Validate(ctx context.Context, accessUUID string) (bool, error)
}

func New(t Tokenizer, c inmem.Client, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t, c)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tokenizer Tokenizer
	client    inmem.Client
}

func NewBasicService(t Tokenizer, c inmem.Client) Service {
	return &basicService{tokenizer: t, client: c}
}

func (s *basicService) Login(_ context.Context, uid string) (AccessToken, error) {
	if uid == "" {
		return AccessToken{}, authsvc.ErrInvalidArgument
	}

	at, err := s.tokenizer.Generate(uid)
	if err != nil {
		return AccessToken{}, err
	}

	if err := s.client.Put(at.UUID, []byte(uid)); err != nil {
		return AccessToken{}, err
	}

	return *at, nil
}

func (s *basicService) Logout(_ context.Context, accessUUID string) (bool, error) {
	if accessUUID == "" {
		return false, authsvc.ErrInvalidArgument
	}

	if err := s.client.Delete(accessUUID); err != nil {
		return false, err
	}

	return true, nil
}

func (s *basicService) Validate(_ context.Context, accessUUID string) (bool, error) {
	if accessUUID == "" {
		return false, authsvc.ErrInvalidArgument
	}

	err := s.client.Get(accessUUID)
	if errors.Is(err, inmem.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
