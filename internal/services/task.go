package services

import (
	"context"

	"github.com/jjudge-oj/practice/types"
)

type TaskRepository interface {
	FetchAll(ctx context.Context) ([]types.Task, error)
	FetchByLevel(ctx context.Context, level types.Level) ([]types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
}

// TaskService is the task store the practice views read from.
type TaskService struct {
	repo TaskRepository
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

func (s *TaskService) FetchAll(ctx context.Context) ([]types.Task, error) {
	tasks, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, &FetchError{Op: "tasks", Err: err}
	}
	return tasks, nil
}

func (s *TaskService) FetchByLevel(ctx context.Context, level types.Level) ([]types.Task, error) {
	tasks, err := s.repo.FetchByLevel(ctx, level)
	if err != nil {
		return nil, &FetchError{Op: string(level) + " tasks", Err: err}
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, task types.Task) (types.Task, error) {
	return s.repo.Create(ctx, task.Normalize())
}
