package gorm

import (
	"context"
	"errors"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/twinj/uuid"
	stdgorm "gorm.io/gorm"
)

// taskRecord keeps the document field names of the tasks collection.
// Timestamps are written by the caller, never by gorm.
type taskRecord struct {
	ID        string    `gorm:"column:id;primaryKey"`
	UID       string    `gorm:"column:uid;index;not null"`
	Text      string    `gorm:"column:task;not null"`
	Deadline  string    `gorm:"column:deadline"`
	Starred   bool      `gorm:"column:starred"`
	CreatedAt time.Time `gorm:"column:createdAt;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"column:updatedAt;autoUpdateTime:false"`
}

func (taskRecord) TableName() string { return "tasks" }

func (r taskRecord) task() tasksvc.Task {
	return tasksvc.Task{
		ID:        r.ID,
		UID:       r.UID,
		Text:      r.Text,
		Deadline:  r.Deadline,
		Starred:   r.Starred,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type taskRepository struct {
	db *stdgorm.DB
}

func NewTaskRepository(db *stdgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

// AutoMigrate creates the tasks table.
func AutoMigrate(db *stdgorm.DB) error {
	return db.AutoMigrate(&taskRecord{})
}

var newID = func() string { return uuid.NewV4().String() }

func (t taskRepository) Create(ctx context.Context, task tasksvc.Task) (string, error) {
	rec := taskRecord{
		ID:        newID(),
		UID:       task.UID,
		Text:      task.Text,
		Deadline:  task.Deadline,
		Starred:   task.Starred,
		CreatedAt: task.CreatedAt,
		UpdatedAt: task.UpdatedAt,
	}
	result := t.db.WithContext(ctx).Create(&rec)
	if result.Error != nil {
		return "", result.Error
	}

	return rec.ID, nil
}

func (t taskRepository) FindAll(ctx context.Context, uid string) ([]tasksvc.Task, error) {
	var recs []taskRecord
	result := t.db.WithContext(ctx).Where("uid = ?", uid).Find(&recs)
	if result.Error != nil {
		return nil, result.Error
	}

	tasks := make([]tasksvc.Task, 0, len(recs))
	for _, r := range recs {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (t taskRepository) Find(ctx context.Context, uid, taskID string) (tasksvc.Task, error) {
	var rec taskRecord
	result := t.db.WithContext(ctx).Where("id = ? AND uid = ?", taskID, uid).First(&rec)
	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}

	return rec.task(), nil
}

func (t taskRepository) Update(ctx context.Context, uid, taskID string, f tasksvc.Fields) error {
	tk, err := t.Find(ctx, uid, taskID)
	if err != nil {
		return err
	}
	if f.UpdatedAt != nil && f.UpdatedAt.Before(tk.CreatedAt) {
		return tasksvc.ErrInvalidArgument
	}

	updates := map[string]interface{}{}
	if f.Text != nil {
		updates["task"] = *f.Text
	}
	if f.Deadline != nil {
		updates["deadline"] = *f.Deadline
	}
	if f.Starred != nil {
		updates["starred"] = *f.Starred
	}
	if f.UpdatedAt != nil {
		updates["updatedAt"] = *f.UpdatedAt
	}
	if len(updates) == 0 {
		return nil
	}

	result := t.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("id = ? AND uid = ?", taskID, uid).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}

	return nil
}

func (t taskRepository) Delete(ctx context.Context, uid, taskID string) error {
	result := t.db.WithContext(ctx).Where("id = ? AND uid = ?", taskID, uid).Delete(&taskRecord{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}

	return nil
}
