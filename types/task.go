package types

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCategory is assigned to tasks stored without a category.
const DefaultCategory = "General Modules"

// Placeholder marks the blank in the code of an input task.
const Placeholder = "____"

// Level is the difficulty tier a task belongs to.
type Level string

const (
	LevelJunior Level = "junior"
	LevelMiddle Level = "middle"
	LevelSenior Level = "senior"
)

// Levels lists every level in ascending difficulty.
var Levels = []Level{LevelJunior, LevelMiddle, LevelSenior}

// ParseLevel validates a raw level string.
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	switch level {
	case LevelJunior, LevelMiddle, LevelSenior:
		return level, nil
	default:
		return "", fmt.Errorf("unknown level %q", raw)
	}
}

// TaskType selects how answers to a task are given and checked.
type TaskType string

const (
	// TaskTypeChoice tasks are answered with one of the option keys a..d.
	TaskTypeChoice TaskType = "choice"

	// TaskTypeInput tasks are answered with free text typed into the blank.
	TaskTypeInput TaskType = "input"
)

// Task is a single practice problem: a code snippet, the accepted answer and,
// for choice tasks, up to four options.
type Task struct {
	// ID is the store-assigned opaque identifier.
	ID string `json:"id" db:"id" yaml:"id"`

	Title string `json:"title" db:"title" yaml:"title"`

	Level Level `json:"level" db:"level" yaml:"level"`

	// Category groups tasks within a level. Empty values are stored as
	// DefaultCategory.
	Category string `json:"category" db:"category" yaml:"category"`

	Type TaskType `json:"type" db:"type" yaml:"type"`

	// Code may contain a single Placeholder for input tasks.
	Code string `json:"code" db:"code" yaml:"code"`

	// Correct is an option key for choice tasks and the expected text for
	// input tasks. It is never sent to the browser.
	Correct string `json:"-" db:"correct" yaml:"correct"`

	OptionA string `json:"option_a,omitempty" db:"option_a" yaml:"option_a"`
	OptionB string `json:"option_b,omitempty" db:"option_b" yaml:"option_b"`
	OptionC string `json:"option_c,omitempty" db:"option_c" yaml:"option_c"`
	OptionD string `json:"option_d,omitempty" db:"option_d" yaml:"option_d"`

	CreatedAt time.Time `json:"created_at" db:"created_at" yaml:"-"`
}

// Option is a labelled answer of a choice task.
type Option struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Options returns the non-empty options in key order. Options a and b are
// always present for choice tasks; c and d are optional.
func (t Task) Options() []Option {
	if t.Type != TaskTypeChoice {
		return nil
	}
	options := []Option{{Key: "a", Text: t.OptionA}, {Key: "b", Text: t.OptionB}}
	if t.OptionC != "" {
		options = append(options, Option{Key: "c", Text: t.OptionC})
	}
	if t.OptionD != "" {
		options = append(options, Option{Key: "d", Text: t.OptionD})
	}
	return options
}

// Normalize fills defaults the store relies on.
func (t Task) Normalize() Task {
	if strings.TrimSpace(t.Category) == "" {
		t.Category = DefaultCategory
	}
	if t.Type == "" {
		t.Type = TaskTypeChoice
	}
	return t
}
