package taskservice

import (
	"context"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc"
)

type Service interface {
	Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.Task, error)
	CreateTask(ctx context.Context, a tasksvc.Auth, task tasksvc.Task) (string, error)
	UpdateTask(ctx context.Context, a tasksvc.Auth, taskID string, f tasksvc.Fields) error
	DeleteTask(ctx context.Context, a tasksvc.Auth, taskID string) error
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t}
}

func (s basicService) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.Task, error) {
	if a.UserID == "" {
		return nil, tasksvc.ErrInvalidArgument
	}
	return s.tasks.FindAll(ctx, a.UserID)
}

// CreateTask stores task under the caller. Whatever owner and id the caller
// put on task are ignored.
func (s basicService) CreateTask(ctx context.Context, a tasksvc.Auth, task tasksvc.Task) (string, error) {
	if a.UserID == "" {
		return "", tasksvc.ErrInvalidArgument
	}

	task.ID = ""
	task.UID = a.UserID
	if err := task.Validate(); err != nil {
		return "", err
	}

	return s.tasks.Create(ctx, task)
}

// UpdateTask merges f into one of the caller's tasks. Every write must carry
// updatedAt.
func (s basicService) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID string, f tasksvc.Fields) error {
	if a.UserID == "" || taskID == "" || f.UpdatedAt == nil {
		return tasksvc.ErrInvalidArgument
	}
	if f.Text != nil && strings.TrimSpace(*f.Text) == "" {
		return tasksvc.ErrInvalidArgument
	}
	if f.Deadline != nil {
		if _, err := tasksvc.ParseDeadline(*f.Deadline); err != nil {
			return err
		}
	}

	return s.tasks.Update(ctx, a.UserID, taskID, f)
}

func (s basicService) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID string) error {
	if a.UserID == "" || taskID == "" {
		return tasksvc.ErrInvalidArgument
	}
	return s.tasks.Delete(ctx, a.UserID, taskID)
}
