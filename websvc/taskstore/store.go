package taskstore

import (
	"context"
	"fmt"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/websvc"
)

// Store is the task collection as seen by one principal. Each call is a
// single request to the task service with no retry. Read failures wrap
// tasksvc.ErrRead and write failures wrap tasksvc.ErrWrite; the cause stays
// reachable with errors.Is.
type Store interface {
	FetchAllForOwner(ctx context.Context, p websvc.Principal) ([]tasksvc.Task, error)
	Create(ctx context.Context, p websvc.Principal, task tasksvc.Task) (string, error)
	UpdateFields(ctx context.Context, p websvc.Principal, taskID string, f tasksvc.Fields) error
	Delete(ctx context.Context, p websvc.Principal, taskID string) error
}

type store struct {
	tasks taskservice.Service
}

// New wraps either the in-process task service or the endpoints of a remote
// one.
func New(s taskservice.Service) Store {
	return store{tasks: s}
}

// as scopes ctx to p. Remote transports read the bearer token from the
// context; the in-process service reads the returned Auth.
func as(ctx context.Context, p websvc.Principal) (context.Context, tasksvc.Auth) {
	ctx = context.WithValue(ctx, kitjwt.JWTContextKey, p.AccessToken)
	return ctx, tasksvc.Auth{AccessUUID: p.AccessUUID, UserID: p.UID}
}

func (s store) FetchAllForOwner(ctx context.Context, p websvc.Principal) ([]tasksvc.Task, error) {
	ctx, a := as(ctx, p)
	tasks, err := s.tasks.Tasks(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tasksvc.ErrRead, err)
	}
	return tasks, nil
}

func (s store) Create(ctx context.Context, p websvc.Principal, task tasksvc.Task) (string, error) {
	ctx, a := as(ctx, p)
	id, err := s.tasks.CreateTask(ctx, a, task)
	if err != nil {
		return "", fmt.Errorf("%w: %w", tasksvc.ErrWrite, err)
	}
	return id, nil
}

func (s store) UpdateFields(ctx context.Context, p websvc.Principal, taskID string, f tasksvc.Fields) error {
	ctx, a := as(ctx, p)
	if err := s.tasks.UpdateTask(ctx, a, taskID, f); err != nil {
		return fmt.Errorf("%w: %w", tasksvc.ErrWrite, err)
	}
	return nil
}

func (s store) Delete(ctx context.Context, p websvc.Principal, taskID string) error {
	ctx, a := as(ctx, p)
	if err := s.tasks.DeleteTask(ctx, a, taskID); err != nil {
		return fmt.Errorf("%w: %w", tasksvc.ErrWrite, err)
	}
	return nil
}
