package practice

import (
	"strings"

	"github.com/jjudge-oj/practice/types"
)

const missingCode = "# Code missing"

// CodeLayout describes how the code of a task is rendered. Inline layouts
// put a text field between Prefix and Suffix on the line that holds the
// placeholder; other layouts are plain numbered lines.
type CodeLayout struct {
	Inline bool   `json:"inline"`
	Before string `json:"before,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Suffix string `json:"suffix,omitempty"`
	After  string `json:"after,omitempty"`

	Lines []string `json:"lines,omitempty"`
}

// Layout splits the code of an input task around its placeholder.
func Layout(task types.Task) CodeLayout {
	if task.Type == types.TaskTypeInput && strings.Contains(task.Code, types.Placeholder) {
		lines := strings.Split(task.Code, "\n")
		idx := 0
		for i, line := range lines {
			if strings.Contains(line, types.Placeholder) {
				idx = i
				break
			}
		}
		parts := strings.SplitN(lines[idx], types.Placeholder, 2)
		return CodeLayout{
			Inline: true,
			Before: strings.Join(lines[:idx], "\n"),
			Prefix: parts[0],
			Suffix: parts[1],
			After:  strings.Join(lines[idx+1:], "\n"),
		}
	}

	code := task.Code
	if code == "" {
		code = missingCode
	}
	return CodeLayout{Lines: strings.Split(code, "\n")}
}
