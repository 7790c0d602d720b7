package practice

import "github.com/jjudge-oj/practice/types"

// State is the render model of a navigator.
type State struct {
	Level        types.Level     `json:"level"`
	Loading      bool            `json:"loading"`
	Error        string          `json:"error,omitempty"`
	Empty        bool            `json:"empty"`
	Categories   []CategoryState `json:"categories"`
	Current      *CurrentTask    `json:"current,omitempty"`
	PendingInput string          `json:"pending_input"`
	Output       Result          `json:"output"`
}

// CategoryState is one sidebar folder.
type CategoryState struct {
	Name     string        `json:"name"`
	Expanded bool          `json:"expanded"`
	Tasks    []TaskSummary `json:"tasks"`
}

// TaskSummary is one sidebar entry.
type TaskSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Selected bool   `json:"selected"`
}

// CurrentTask is the task shown in the editor. The correct answer is never
// part of it.
type CurrentTask struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Type    types.TaskType `json:"type"`
	Layout  CodeLayout     `json:"layout"`
	Options []types.Option `json:"options,omitempty"`
}

// State returns the render model of the navigator.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()

	state := State{
		Level:        n.level,
		Loading:      n.loading,
		Empty:        !n.loading && n.loadErr == nil && len(n.tasks) == 0,
		Categories:   make([]CategoryState, 0),
		PendingInput: n.pending,
		Output:       n.output,
	}
	if n.loadErr != nil {
		state.Error = "could not load tasks"
	}

	for _, category := range categoriesOf(n.tasks) {
		cs := CategoryState{Name: category, Expanded: n.expanded[category], Tasks: make([]TaskSummary, 0)}
		if cs.Expanded {
			for _, task := range n.tasks {
				if task.Category == category {
					cs.Tasks = append(cs.Tasks, TaskSummary{ID: task.ID, Title: task.Title, Selected: task.ID == n.selected})
				}
			}
		}
		state.Categories = append(state.Categories, cs)
	}

	if task, ok := n.findLocked(n.selected); ok {
		state.Current = &CurrentTask{
			ID:      task.ID,
			Title:   task.Title,
			Type:    task.Type,
			Layout:  Layout(task),
			Options: task.Options(),
		}
	}
	return state
}
