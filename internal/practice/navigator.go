package practice

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/jjudge-oj/practice/types"
)

var (
	// ErrTaskNotFound is returned when selecting an id outside the loaded tasks.
	ErrTaskNotFound = errors.New("task not found")

	// ErrNoTaskSelected is returned when submitting with nothing selected.
	ErrNoTaskSelected = errors.New("no task selected")

	// ErrSuperseded is returned by a load whose result was discarded because
	// a later load was issued or the navigator was closed.
	ErrSuperseded = errors.New("load superseded")
)

// TaskFetcher is the task store query the navigator loads from.
type TaskFetcher interface {
	FetchByLevel(ctx context.Context, level types.Level) ([]types.Task, error)
}

// Navigator holds the task list of one level for one client: which task is
// selected, which categories are expanded, the pending input of the blank
// and the last evaluation output.
type Navigator struct {
	fetcher TaskFetcher

	mu       sync.Mutex
	level    types.Level
	tasks    []types.Task
	selected string
	expanded map[string]bool
	pending  string
	output   Result
	loading  bool
	loadErr  error

	// token identifies the most recently issued load.
	token      uint64
	cancelLoad context.CancelFunc
	closed     bool
}

func NewNavigator(fetcher TaskFetcher) *Navigator {
	return &Navigator{
		fetcher:  fetcher,
		expanded: make(map[string]bool),
		output:   Idle,
	}
}

// LoadForLevel replaces the task list with the tasks of level. On success
// every category is expanded and the first task, if any, is selected. Only
// the last issued load is applied: earlier in-flight loads are cancelled and
// return ErrSuperseded.
func (n *Navigator) LoadForLevel(ctx context.Context, level types.Level) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return ErrSuperseded
	}
	if n.cancelLoad != nil {
		n.cancelLoad()
	}
	n.token++
	token := n.token
	n.cancelLoad = cancel
	n.level = level
	n.loading = true
	n.loadErr = nil
	n.mu.Unlock()

	tasks, err := n.fetcher.FetchByLevel(ctx, level)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed || token != n.token {
		return ErrSuperseded
	}
	n.cancelLoad = nil
	n.loading = false

	if err != nil {
		n.tasks = nil
		n.expanded = make(map[string]bool)
		n.selectLocked("")
		n.loadErr = fmt.Errorf("load %s tasks: %w", level, err)
		return n.loadErr
	}

	n.tasks = tasks
	n.expanded = make(map[string]bool)
	for _, category := range categoriesOf(tasks) {
		n.expanded[category] = true
	}
	first := ""
	if len(tasks) > 0 {
		first = tasks[0].ID
	}
	n.selectLocked(first)
	return nil
}

// Select makes taskID the current task and starts it fresh: the pending
// input is cleared and the output returns to idle, also when taskID is
// already selected.
func (n *Navigator) Select(taskID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.findLocked(taskID); !ok {
		return ErrTaskNotFound
	}
	n.selectLocked(taskID)
	return nil
}

func (n *Navigator) selectLocked(taskID string) {
	n.selected = taskID
	n.pending = ""
	n.output = Idle
}

// ToggleCategory flips the expansion of category. Unknown categories count
// as collapsed, so the first toggle expands them.
func (n *Navigator) ToggleCategory(category string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expanded[category] = !n.expanded[category]
}

// Expanded reports whether category is expanded.
func (n *Navigator) Expanded(category string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.expanded[category]
}

// VisibleTasks yields the tasks of category in fetch order, or nothing when
// the category is collapsed. The sequence can be ranged over repeatedly.
func (n *Navigator) VisibleTasks(category string) iter.Seq[types.Task] {
	n.mu.Lock()
	tasks := n.tasks
	open := n.expanded[category]
	n.mu.Unlock()

	return func(yield func(types.Task) bool) {
		if !open {
			return
		}
		for _, task := range tasks {
			if task.Category != category {
				continue
			}
			if !yield(task) {
				return
			}
		}
	}
}

// Categories returns the distinct categories in ascending order.
func (n *Navigator) Categories() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return categoriesOf(n.tasks)
}

// Tasks returns the loaded tasks in fetch order.
func (n *Navigator) Tasks() []types.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.tasks)
}

// Current returns the selected task.
func (n *Navigator) Current() (types.Task, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.findLocked(n.selected)
}

// Level returns the level of the most recent load.
func (n *Navigator) Level() types.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.level
}

// SetInput records what was typed into the blank of the current task.
func (n *Navigator) SetInput(value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = value
}

// PendingInput returns what was typed for the current task.
func (n *Navigator) PendingInput() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending
}

// Output returns the last evaluation output.
func (n *Navigator) Output() Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.output
}

// Submit evaluates answer against the current task and keeps the result as
// output. An empty answer falls back to the pending input, which is how
// input tasks are submitted.
func (n *Navigator) Submit(answer string) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	task, ok := n.findLocked(n.selected)
	if !ok {
		return Result{}, ErrNoTaskSelected
	}
	if answer == "" {
		answer = n.pending
	}
	n.output = Evaluate(task, answer)
	return n.output, nil
}

// Close cancels any in-flight load. Later loads return ErrSuperseded.
func (n *Navigator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	if n.cancelLoad != nil {
		n.cancelLoad()
		n.cancelLoad = nil
	}
}

func (n *Navigator) findLocked(taskID string) (types.Task, bool) {
	if taskID == "" {
		return types.Task{}, false
	}
	for _, task := range n.tasks {
		if task.ID == taskID {
			return task, true
		}
	}
	return types.Task{}, false
}

func categoriesOf(tasks []types.Task) []string {
	seen := make(map[string]struct{}, len(tasks))
	categories := make([]string, 0)
	for _, task := range tasks {
		if _, ok := seen[task.Category]; ok {
			continue
		}
		seen[task.Category] = struct{}{}
		categories = append(categories, task.Category)
	}
	slices.Sort(categories)
	return categories
}
