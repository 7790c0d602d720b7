// Package seed loads tasks and leaderboard scores from YAML files.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jjudge-oj/practice/internal/store"
	"github.com/jjudge-oj/practice/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Score assigns a score to the account registered under Email.
type Score struct {
	Email string `yaml:"email"`
	Score int    `yaml:"score"`
}

type TaskStore interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	FetchAll(ctx context.Context) ([]types.Task, error)
}

type ScoreWriter interface {
	Upsert(ctx context.Context, record types.ScoreRecord) error
}

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (types.User, error)
}

// Seeder writes seed files into the stores.
type Seeder struct {
	tasks  TaskStore
	scores ScoreWriter
	users  UserReader
	logger *zap.Logger
}

func New(tasks TaskStore, scores ScoreWriter, users UserReader, logger *zap.Logger) *Seeder {
	return &Seeder{tasks: tasks, scores: scores, users: users, logger: logger}
}

// ReadTasks decodes a YAML list of tasks and checks each one.
func ReadTasks(r io.Reader) ([]types.Task, error) {
	var tasks []types.Task
	if err := yaml.NewDecoder(r).Decode(&tasks); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	for i, task := range tasks {
		if err := validateTask(task.Normalize()); err != nil {
			return nil, fmt.Errorf("task %d (%q): %w", i, task.Title, err)
		}
	}
	return tasks, nil
}

// ReadScores decodes a YAML list of scores.
func ReadScores(r io.Reader) ([]Score, error) {
	var scores []Score
	if err := yaml.NewDecoder(r).Decode(&scores); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	for i, score := range scores {
		if score.Email == "" {
			return nil, fmt.Errorf("score %d: email is required", i)
		}
	}
	return scores, nil
}

func validateTask(task types.Task) error {
	if _, err := types.ParseLevel(string(task.Level)); err != nil {
		return err
	}
	if task.Correct == "" {
		return errors.New("correct answer is required")
	}
	switch task.Type {
	case types.TaskTypeChoice:
		if task.OptionA == "" || task.OptionB == "" {
			return errors.New("choice tasks need options a and b")
		}
		valid := false
		for _, opt := range task.Options() {
			if opt.Key == task.Correct {
				valid = true
			}
		}
		if !valid {
			return fmt.Errorf("correct answer %q is not an option key", task.Correct)
		}
	case types.TaskTypeInput:
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
	return nil
}

// Tasks stores every task. Tasks with an id replace the stored task of the
// same id.
func (s *Seeder) Tasks(ctx context.Context, tasks []types.Task) (int, error) {
	for i, task := range tasks {
		created, err := s.tasks.Create(ctx, task)
		if err != nil {
			return i, fmt.Errorf("create task %q: %w", task.Title, err)
		}
		s.logger.Debug("seeded task", zap.String("id", created.ID), zap.String("level", string(created.Level)))
	}
	return len(tasks), nil
}

// LevelCounts reports how many stored tasks each level has. Every level is
// present, with zero when it has no tasks.
func (s *Seeder) LevelCounts(ctx context.Context) (map[types.Level]int, error) {
	tasks, err := s.tasks.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[types.Level]int, len(types.Levels))
	for _, level := range types.Levels {
		counts[level] = 0
	}
	for _, task := range tasks {
		counts[task.Level]++
	}
	return counts, nil
}

// Scores stores a score for every listed account that exists. Unknown emails
// are skipped.
func (s *Seeder) Scores(ctx context.Context, scores []Score) (int, error) {
	written := 0
	for _, score := range scores {
		user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(score.Email)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("skipping score for unknown account", zap.String("email", score.Email))
				continue
			}
			return written, err
		}
		if err := s.scores.Upsert(ctx, types.ScoreRecord{
			UserID:   user.ID,
			Username: user.Username,
			PhotoURL: user.PhotoURL,
			Score:    score.Score,
		}); err != nil {
			return written, fmt.Errorf("upsert score for %s: %w", score.Email, err)
		}
		written++
	}
	return written, nil
}

// TasksFile reads and stores the tasks of the file at path.
func (s *Seeder) TasksFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	tasks, err := ReadTasks(f)
	if err != nil {
		return 0, err
	}
	return s.Tasks(ctx, tasks)
}

// ScoresFile reads and stores the scores of the file at path.
func (s *Seeder) ScoresFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scores, err := ReadScores(f)
	if err != nil {
		return 0, err
	}
	return s.Scores(ctx, scores)
}
