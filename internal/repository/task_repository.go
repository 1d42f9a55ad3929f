package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"taskshare/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// FindByID returns the task or gorm.ErrRecordNotFound.
func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListByList(ctx context.Context, listID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("list_id = ?", listID).
		Order("state ASC, due_at IS NULL, due_at ASC, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListUnfiled returns the user's tasks that are not in any list.
func (r *TaskRepository) ListUnfiled(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND list_id IS NULL", userID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskFilter narrows the tasks of one user. Zero fields do not filter.
type TaskFilter struct {
	State    model.TaskState
	Priority *int
	MyDay    bool
	// DueBefore keeps unfinished tasks due strictly before it.
	DueBefore *time.Time
}

// ListByUser returns the user's own tasks matching filter.
func (r *TaskRepository) ListByUser(ctx context.Context, userID uint, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.MyDay {
		q = q.Where("my_day = ?", true)
	}
	order := "created_at DESC"
	if filter.DueBefore != nil {
		q = q.Where("due_at IS NOT NULL AND due_at < ? AND state <> ?", filter.DueBefore.UTC(), model.TaskCompleted)
		order = "due_at ASC"
	}
	var tasks []model.Task
	if err := q.Order(order).Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("filter tasks: %w", err)
	}
	return tasks, nil
}

// ListStats counts the tasks of a list by state.
type ListStats struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completadas"`
	Pending   int64 `json:"pendientes"`
	Overdue   int64 `json:"vencidas"`
}

// StatsByList counts the tasks of a list. Overdue tasks are unfinished ones
// due before dueBefore.
func (r *TaskRepository) StatsByList(ctx context.Context, listID uint, dueBefore time.Time) (ListStats, error) {
	var stats ListStats
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN state <> ? AND due_at IS NOT NULL AND due_at < ? THEN 1 ELSE 0 END), 0) AS overdue`,
			model.TaskCompleted, model.TaskPending, model.TaskCompleted, dueBefore.UTC()).
		Where("list_id = ?", listID).
		Scan(&stats).Error
	if err != nil {
		return ListStats{}, fmt.Errorf("list stats: %w", err)
	}
	return stats, nil
}

func (r *TaskRepository) SetMyDay(ctx context.Context, task *model.Task, on bool) error {
	task.MyDay = on
	if err := r.db.WithContext(ctx).Model(task).Update("my_day", on).Error; err != nil {
		return fmt.Errorf("set my day: %w", err)
	}
	return nil
}

// Update saves the editable fields of a task.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Model(task).Select("name", "description", "priority", "due_at").
		Updates(task).Error; err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

func (r *TaskRepository) MarkCompleted(ctx context.Context, task *model.Task, completedAt time.Time) error {
	task.State = model.TaskCompleted
	task.CompletedAt = &completedAt
	if err := r.db.WithContext(ctx).Model(task).Select("state", "completed_at").
		Updates(task).Error; err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Move(ctx context.Context, task *model.Task, listID *uint) error {
	task.ListID = listID
	if err := r.db.WithContext(ctx).Model(task).Update("list_id", listID).Error; err != nil {
		return fmt.Errorf("move task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
