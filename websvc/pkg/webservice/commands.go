// Package webservice holds the task mutations a signed-in browser session
// can issue. Each one validates, writes through the store and refetches the
// collection on success. No optimistic change is ever applied.
package webservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/websvc"
	"github.com/ichigozero/todokit/websvc/session"
	"github.com/ichigozero/todokit/websvc/taskstore"
)

type Commands struct {
	identity   *session.Identity
	collection *session.Collection
	store      taskstore.Store
	logger     log.Logger
	now        func() time.Time
}

func New(identity *session.Identity, collection *session.Collection, store taskstore.Store, logger log.Logger) *Commands {
	return &Commands{
		identity:   identity,
		collection: collection,
		store:      store,
		logger:     logger,
		now:        time.Now,
	}
}

// ForSession builds the commands of one browser session.
func ForSession(s *session.Session, store taskstore.Store, logger log.Logger) *Commands {
	return New(s.Identity, s.Collection, store, log.With(logger, "session", s.ID))
}

func (c *Commands) principal() (websvc.Principal, error) {
	p := c.identity.Principal()
	if p == nil {
		return websvc.Principal{}, websvc.ErrUnauthenticated
	}
	return *p, nil
}

func validText(text string) bool {
	return strings.TrimSpace(text) != ""
}

func validDeadline(deadline string) bool {
	_, err := tasksvc.ParseDeadline(deadline)
	return err == nil
}

// AddTask creates an unstarred task owned by the principal.
func (c *Commands) AddTask(ctx context.Context, text, deadline string) error {
	p, err := c.principal()
	if err != nil {
		return err
	}
	if !validText(text) || !validDeadline(deadline) {
		return websvc.ErrInvalidArgument
	}

	now := c.now()
	task := tasksvc.Task{
		Text:      text,
		Deadline:  deadline,
		Starred:   false,
		UID:       p.UID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := c.store.Create(ctx, p, task); err != nil {
		return c.fail("add", err)
	}
	return c.refresh(ctx)
}

// UpdateTask replaces the text and deadline of a task in the collection.
func (c *Commands) UpdateTask(ctx context.Context, taskID, text, deadline string) error {
	p, err := c.principal()
	if err != nil {
		return err
	}
	if _, ok := c.collection.Find(taskID); !ok {
		return websvc.ErrTaskNotFound
	}
	if !validText(text) || !validDeadline(deadline) {
		return websvc.ErrInvalidArgument
	}

	now := c.now()
	f := tasksvc.Fields{Text: &text, Deadline: &deadline, UpdatedAt: &now}
	if err := c.store.UpdateFields(ctx, p, taskID, f); err != nil {
		return c.fail("update", err, "task_id", taskID)
	}
	return c.refresh(ctx)
}

// ToggleStar sets the starred flag of a task in the collection.
func (c *Commands) ToggleStar(ctx context.Context, taskID string, starred bool) error {
	p, err := c.principal()
	if err != nil {
		return err
	}
	if _, ok := c.collection.Find(taskID); !ok {
		return websvc.ErrTaskNotFound
	}

	now := c.now()
	f := tasksvc.Fields{Starred: &starred, UpdatedAt: &now}
	if err := c.store.UpdateFields(ctx, p, taskID, f); err != nil {
		return c.fail("star", err, "task_id", taskID)
	}
	return c.refresh(ctx)
}

// DeleteTask removes a task. A task that is already gone counts as deleted.
func (c *Commands) DeleteTask(ctx context.Context, taskID string) error {
	p, err := c.principal()
	if err != nil {
		return err
	}
	if taskID == "" {
		return websvc.ErrInvalidArgument
	}

	if err := c.store.Delete(ctx, p, taskID); err != nil {
		if !errors.Is(err, tasksvc.ErrTaskNotFound) {
			return c.fail("delete", err, "task_id", taskID)
		}
		level.Debug(c.logger).Log("op", "delete", "task_id", taskID, "msg", "already deleted")
	}
	return c.refresh(ctx)
}

func (c *Commands) refresh(ctx context.Context) error {
	if err := c.collection.Refresh(ctx); err != nil {
		return c.fail("refresh", err)
	}
	return nil
}

func (c *Commands) fail(op string, err error, keyvals ...interface{}) error {
	keyvals = append([]interface{}{"op", op, "err", err}, keyvals...)
	level.Error(c.logger).Log(keyvals...)
	return err
}

// IsStoreFailure reports whether err came from the store rather than from
// validation.
func IsStoreFailure(err error) bool {
	return errors.Is(err, tasksvc.ErrRead) || errors.Is(err, tasksvc.ErrWrite)
}
