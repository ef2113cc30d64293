package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/authsvc"
	"github.com/ichigozero/todokit/authsvc/pkg/authendpoint"
	"github.com/ichigozero/todokit/tasksvc"
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

func (mw loggingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"access_uuid", a.AccessUUID,
			"uid", a.UserID,
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, a)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, task tasksvc.Task) (id string, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"access_uuid", a.AccessUUID,
			"uid", a.UserID,
			"task", task.Text,
			"deadline", task.Deadline,
			"task_id", id,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, a, task)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID string, f tasksvc.Fields) (err error) {
	defer func() {
		keyvals := []interface{}{
			"method", "UpdateTask",
			"access_uuid", a.AccessUUID,
			"uid", a.UserID,
			"task_id", taskID,
		}
		if f.Text != nil {
			keyvals = append(keyvals, "task", *f.Text)
		}
		if f.Deadline != nil {
			keyvals = append(keyvals, "deadline", *f.Deadline)
		}
		if f.Starred != nil {
			keyvals = append(keyvals, "starred", *f.Starred)
		}
		mw.logger.Log(append(keyvals, "err", err)...)
	}()
	return mw.next.UpdateTask(ctx, a, taskID, f)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID string) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"access_uuid", a.AccessUUID,
			"uid", a.UserID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, a, taskID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time) {
	mw.requestCount.With("method", method).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.Task, error) {
	defer mw.observe("tasks", time.Now())
	return mw.next.Tasks(ctx, a)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, task tasksvc.Task) (string, error) {
	defer mw.observe("create_task", time.Now())
	return mw.next.CreateTask(ctx, a, task)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID string, f tasksvc.Fields) error {
	defer mw.observe("update_task", time.Now())
	return mw.next.UpdateTask(ctx, a, taskID, f)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID string) error {
	defer mw.observe("delete_task", time.Now())
	return mw.next.DeleteTask(ctx, a, taskID)
}

// ProxingMiddleware rejects calls whose access token has been revoked.
// validateUUID is the auth service's Validate endpoint.
func ProxingMiddleware(validateUUID endpoint.Endpoint) Middleware {
	return func(next Service) Service {
		return proxingMiddleware{next, validateUUID}
	}
}

type proxingMiddleware struct {
	next         Service
	validateUUID endpoint.Endpoint
}

func (mw proxingMiddleware) Tasks(ctx context.Context, a tasksvc.Auth) ([]tasksvc.Task, error) {
	if err := mw.validate(ctx, a); err != nil {
		return nil, err
	}
	return mw.next.Tasks(ctx, a)
}

func (mw proxingMiddleware) CreateTask(ctx context.Context, a tasksvc.Auth, task tasksvc.Task) (string, error) {
	if err := mw.validate(ctx, a); err != nil {
		return "", err
	}
	return mw.next.CreateTask(ctx, a, task)
}

func (mw proxingMiddleware) UpdateTask(ctx context.Context, a tasksvc.Auth, taskID string, f tasksvc.Fields) error {
	if err := mw.validate(ctx, a); err != nil {
		return err
	}
	return mw.next.UpdateTask(ctx, a, taskID, f)
}

func (mw proxingMiddleware) DeleteTask(ctx context.Context, a tasksvc.Auth, taskID string) error {
	if err := mw.validate(ctx, a); err != nil {
		return err
	}
	return mw.next.DeleteTask(ctx, a, taskID)
}

func (mw proxingMiddleware) validate(ctx context.Context, a tasksvc.Auth) error {
	if a.AccessUUID == "" {
		return tasksvc.ErrClaimsInvalid
	}

	response, err := mw.validateUUID(ctx, authendpoint.ValidateRequest{AccessUUID: a.AccessUUID})
	if err != nil {
		return err
	}

	resp := response.(authendpoint.ValidateResponse)
	if resp.Err != nil {
		return resp.Err
	}
	if !resp.V {
		return authsvc.ErrTokenRevoked
	}
	return nil
}
