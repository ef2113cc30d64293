package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/ichigozero/todokit/usersvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	stdgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *stdgorm.DB {
	t.Helper()

	db, err := stdgorm.Open(sqlite.Open(":memory:"), &stdgorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(setupTestDB(t))
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := repo.Find(ctx, "alice")
	assert.ErrorIs(t, err, usersvc.ErrUserNotFound)

	user := usersvc.User{UID: "alice", Name: "Alice", CreatedAt: created, LastSignInAt: created}
	require.NoError(t, repo.Save(ctx, user))

	user.Name = "Alice Liddell"
	user.LastSignInAt = created.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, user))

	got, err := repo.Find(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", got.Name)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.LastSignInAt.Equal(created.Add(time.Hour)))
}
