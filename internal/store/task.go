package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/practice/types"
)

// TaskRepository handles persistence for practice tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, title, level, category, type, code, correct, option_a, option_b, option_c, option_d, created_at`

// FetchAll returns every task in insertion order.
func (r *TaskRepository) FetchAll(ctx context.Context) ([]types.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// FetchByLevel returns the tasks of one level in insertion order.
func (r *TaskRepository) FetchByLevel(ctx context.Context, level types.Level) ([]types.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE level = $1 ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, string(level))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTasks(rows)
}

// Create inserts a task, assigning an id when none is set.
func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	task = task.Normalize()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CreatedAt = time.Now()

	const query = `
		INSERT INTO tasks (id, title, level, category, type, code, correct, option_a, option_b, option_c, option_d, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title,
			level = EXCLUDED.level,
			category = EXCLUDED.category,
			type = EXCLUDED.type,
			code = EXCLUDED.code,
			correct = EXCLUDED.correct,
			option_a = EXCLUDED.option_a,
			option_b = EXCLUDED.option_b,
			option_c = EXCLUDED.option_c,
			option_d = EXCLUDED.option_d`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		task.ID,
		task.Title,
		string(task.Level),
		task.Category,
		string(task.Type),
		task.Code,
		task.Correct,
		task.OptionA,
		task.OptionB,
		task.OptionC,
		task.OptionD,
		task.CreatedAt,
	); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]types.Task, error) {
	tasks := make([]types.Task, 0)
	for rows.Next() {
		var task types.Task
		var level, taskType string
		if err := rows.Scan(
			&task.ID,
			&task.Title,
			&level,
			&task.Category,
			&taskType,
			&task.Code,
			&task.Correct,
			&task.OptionA,
			&task.OptionB,
			&task.OptionC,
			&task.OptionD,
			&task.CreatedAt,
		); err != nil {
			return nil, err
		}
		task.Level = types.Level(level)
		task.Type = types.TaskType(taskType)
		tasks = append(tasks, task.Normalize())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
