package service

import (
	"context"
	"time"

	"taskshare/internal/access"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

const (
	maxTaskName = 255
	minPriority = 0
	maxPriority = 3
)

// TaskInput represents the editable fields of a task. Nil fields are left as
// is on update.
type TaskInput struct {
	Name        *string
	Description *string
	Priority    *int
	DueAt       *time.Time
	ListID      *uint
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
	authz    Authorizer
}

func NewTaskService(taskRepo *repository.TaskRepository, authz Authorizer) *TaskService {
	return &TaskService{taskRepo: taskRepo, authz: authz}
}

// CreateTask adds a task. Creating it inside a list requires edit permission
// on the list; tasks without a list are private to the actor.
func (s *TaskService) CreateTask(ctx context.Context, actorID uint, input TaskInput) (*model.Task, error) {
	if input.Name == nil {
		return nil, &ValidationError{Field: "nombre", Message: "is required"}
	}
	task := model.Task{UserID: actorID, State: model.TaskPending}
	if err := applyTaskInput(&task, input); err != nil {
		return nil, err
	}
	if input.ListID != nil {
		if _, err := authorize(ctx, s.authz, actorID, model.KindList, *input.ListID, access.ActionEdit); err != nil {
			return nil, err
		}
		listID := *input.ListID
		task.ListID = &listID
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListUnfiled returns the actor's tasks that are not in any list.
func (s *TaskService) ListUnfiled(ctx context.Context, actorID uint) ([]model.Task, error) {
	return s.taskRepo.ListUnfiled(ctx, actorID)
}

// TasksByState returns the actor's own tasks in the given state.
func (s *TaskService) TasksByState(ctx context.Context, actorID uint, raw string) ([]model.Task, error) {
	state, ok := model.ParseTaskState(raw)
	if !ok {
		return nil, &ValidationError{Field: "estado", Message: "must be pendiente or completada"}
	}
	return s.taskRepo.ListByUser(ctx, actorID, repository.TaskFilter{State: state})
}

// TasksByPriority returns the actor's own tasks with the given priority.
func (s *TaskService) TasksByPriority(ctx context.Context, actorID uint, priority int) ([]model.Task, error) {
	if priority < minPriority || priority > maxPriority {
		return nil, &ValidationError{Field: "prioridad", Message: "must be between 0 and 3"}
	}
	return s.taskRepo.ListByUser(ctx, actorID, repository.TaskFilter{Priority: &priority})
}

// OverdueTasks returns the actor's unfinished tasks due before the start of
// the day containing now.
func (s *TaskService) OverdueTasks(ctx context.Context, actorID uint, now time.Time) ([]model.Task, error) {
	today := startOfDay(now)
	return s.taskRepo.ListByUser(ctx, actorID, repository.TaskFilter{DueBefore: &today})
}

// MyDayTasks returns the actor's tasks flagged for today.
func (s *TaskService) MyDayTasks(ctx context.Context, actorID uint) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, actorID, repository.TaskFilter{MyDay: true})
}

// SetMyDay flags or unflags a task for today.
func (s *TaskService) SetMyDay(ctx context.Context, actorID, taskID uint, on bool) (*model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionEdit); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.SetMyDay(ctx, task, on); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, actorID, taskID uint) (*model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionView); err != nil {
		return nil, err
	}
	return s.load(ctx, taskID)
}

func (s *TaskService) UpdateTask(ctx context.Context, actorID, taskID uint, input TaskInput) (*model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionEdit); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := applyTaskInput(task, input); err != nil {
		return nil, err
	}
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// CompleteTask marks a task as done.
func (s *TaskService) CompleteTask(ctx context.Context, actorID, taskID uint, completedAt time.Time) (*model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionEdit); err != nil {
		return nil, err
	}
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.State == model.TaskCompleted {
		return task, nil
	}
	if err := s.taskRepo.MarkCompleted(ctx, task, completedAt); err != nil {
		return nil, err
	}
	return task, nil
}

// MoveTask puts the task into another list, or out of any list when listID
// is nil. It needs move permission on the task and edit permission on the
// destination.
func (s *TaskService) MoveTask(ctx context.Context, actorID, taskID uint, listID *uint) (*model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionMove); err != nil {
		return nil, err
	}
	if listID != nil {
		if _, err := authorize(ctx, s.authz, actorID, model.KindList, *listID, access.ActionEdit); err != nil {
			return nil, err
		}
	}
	task, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.taskRepo.Move(ctx, task, listID); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely.
func (s *TaskService) DeleteTask(ctx context.Context, actorID, taskID uint) error {
	if _, err := authorize(ctx, s.authz, actorID, model.KindTask, taskID, access.ActionDelete); err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, taskID)
}

func (s *TaskService) load(ctx context.Context, taskID uint) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, missing(model.KindTask, taskID, err)
	}
	return task, nil
}

// applyTaskInput copies the editable fields. ListID is handled by the caller.
func applyTaskInput(task *model.Task, input TaskInput) error {
	if input.Name != nil {
		name, err := cleanName("nombre", *input.Name, maxTaskName)
		if err != nil {
			return err
		}
		task.Name = name
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		if *input.Priority < minPriority || *input.Priority > maxPriority {
			return &ValidationError{Field: "prioridad", Message: "must be between 0 and 3"}
		}
		task.Priority = *input.Priority
	}
	if input.DueAt != nil {
		// Stored in UTC so due dates order the same as text in SQLite.
		due := input.DueAt.UTC()
		task.DueAt = &due
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
