package inmem

import (
	"context"
	"sync"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/twinj/uuid"
)

type taskRepository struct {
	mtx   sync.RWMutex
	tasks map[string]tasksvc.Task
	ids   []string
}

// NewTaskRepository returns a process-local task collection.
func NewTaskRepository() tasksvc.TaskRepository {
	return &taskRepository{tasks: make(map[string]tasksvc.Task)}
}

func (r *taskRepository) Create(_ context.Context, task tasksvc.Task) (string, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	task.ID = uuid.NewV4().String()
	r.tasks[task.ID] = task
	r.ids = append(r.ids, task.ID)
	return task.ID, nil
}

func (r *taskRepository) FindAll(_ context.Context, uid string) ([]tasksvc.Task, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	res := []tasksvc.Task{}
	for _, id := range r.ids {
		if t := r.tasks[id]; t.UID == uid {
			res = append(res, t)
		}
	}
	return res, nil
}

func (r *taskRepository) Find(_ context.Context, uid, taskID string) (tasksvc.Task, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	t, ok := r.tasks[taskID]
	if !ok || t.UID != uid {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return t, nil
}

func (r *taskRepository) Update(_ context.Context, uid, taskID string, f tasksvc.Fields) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.UID != uid {
		return tasksvc.ErrTaskNotFound
	}
	if f.UpdatedAt != nil && f.UpdatedAt.Before(t.CreatedAt) {
		return tasksvc.ErrInvalidArgument
	}

	f.Apply(&t)
	r.tasks[taskID] = t
	return nil
}

func (r *taskRepository) Delete(_ context.Context, uid, taskID string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.UID != uid {
		return tasksvc.ErrTaskNotFound
	}

	delete(r.tasks, taskID)
	for i, id := range r.ids {
		if id == taskID {
			r.ids = append(r.ids[:i], r.ids[i+1:]...)
			break
		}
	}
	return nil
}
