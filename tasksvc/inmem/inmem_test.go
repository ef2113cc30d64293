package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository()
	now := time.Now()

	first, err := repo.Create(ctx, tasksvc.Task{UID: "alice", Text: "B", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	second, err := repo.Create(ctx, tasksvc.Task{UID: "alice", Text: "A", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	_, err = repo.Create(ctx, tasksvc.Task{UID: "bob", Text: "C", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	tasks, err := repo.FindAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "B", tasks[0].Text)
	assert.Equal(t, "A", tasks[1].Text)

	_, err = repo.Find(ctx, "bob", first)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	starred := true
	later := now.Add(time.Minute)
	require.NoError(t, repo.Update(ctx, "alice", first, tasksvc.Fields{Starred: &starred, UpdatedAt: &later}))

	got, err := repo.Find(ctx, "alice", first)
	require.NoError(t, err)
	assert.True(t, got.Starred)
	assert.Equal(t, later, got.UpdatedAt)

	earlier := now.Add(-time.Minute)
	assert.ErrorIs(t, repo.Update(ctx, "alice", first, tasksvc.Fields{UpdatedAt: &earlier}), tasksvc.ErrInvalidArgument)
	assert.ErrorIs(t, repo.Update(ctx, "bob", first, tasksvc.Fields{UpdatedAt: &later}), tasksvc.ErrTaskNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "bob", first), tasksvc.ErrTaskNotFound)
	require.NoError(t, repo.Delete(ctx, "alice", first))
	assert.ErrorIs(t, repo.Delete(ctx, "alice", first), tasksvc.ErrTaskNotFound)

	tasks, err = repo.FindAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, second, tasks[0].ID)
}
