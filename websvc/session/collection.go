package session

import (
	"context"
	"sync"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/websvc"
	"github.com/ichigozero/todokit/websvc/taskstore"
)

// Collection holds the session principal's tasks as last fetched from the
// store. Every refresh replaces the snapshot wholesale. Concurrent refreshes
// are not ordered: the last one to complete wins.
//
// The snapshot remembers whose tasks it holds and reads as empty once the
// session principal is someone else.
type Collection struct {
	identity *Identity
	store    taskstore.Store

	mtx     sync.RWMutex
	owner   string
	tasks   []tasksvc.Task
	version uint64
}

func NewCollection(identity *Identity, store taskstore.Store) *Collection {
	return &Collection{identity: identity, store: store}
}

func (c *Collection) principalUID() string {
	if p := c.identity.Principal(); p != nil {
		return p.UID
	}
	return ""
}

// Refresh fetches the principal's tasks and replaces the snapshot. Without a
// principal it fails with websvc.ErrUnauthenticated and does not touch the
// store. A failed fetch leaves the snapshot as it was, and so does a fetch
// that completes after the principal changed.
func (c *Collection) Refresh(ctx context.Context) error {
	p := c.identity.Principal()
	if p == nil {
		return websvc.ErrUnauthenticated
	}

	tasks, err := c.store.FetchAllForOwner(ctx, *p)
	if err != nil {
		return err
	}

	if c.principalUID() != p.UID {
		return websvc.ErrUnauthenticated
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.owner = p.UID
	c.tasks = append([]tasksvc.Task(nil), tasks...)
	c.version++
	return nil
}

// Tasks returns a copy of the snapshot in store order.
func (c *Collection) Tasks() []tasksvc.Task {
	uid := c.principalUID()

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if uid == "" || uid != c.owner {
		return []tasksvc.Task{}
	}
	return append([]tasksvc.Task{}, c.tasks...)
}

func (c *Collection) Find(taskID string) (tasksvc.Task, bool) {
	uid := c.principalUID()

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if uid == "" || uid != c.owner {
		return tasksvc.Task{}, false
	}
	for _, t := range c.tasks {
		if t.ID == taskID {
			return t, true
		}
	}
	return tasksvc.Task{}, false
}

// Version increases every time the snapshot is replaced or cleared.
func (c *Collection) Version() uint64 {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.version
}

// Clear empties the snapshot, as on sign-out.
func (c *Collection) Clear() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.owner = ""
	c.tasks = nil
	c.version++
}
