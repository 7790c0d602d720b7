// Package practice implements the task navigation and answer evaluation
// state of a practice session.
package practice

import (
	"fmt"
	"strings"

	"github.com/jjudge-oj/practice/types"
)

// IdleMessage is shown before anything is submitted for the current task.
const IdleMessage = "Ready to run..."

// Result is the display verdict of one evaluation.
type Result struct {
	Verdict types.Verdict `json:"verdict"`
	Message string        `json:"message"`
}

// Idle is the output of a freshly selected task.
var Idle = Result{Verdict: types.VerdictIdle, Message: IdleMessage}

// Success reports whether the answer was accepted.
func (r Result) Success() bool {
	return r.Verdict == types.VerdictSuccess
}

// Evaluate checks submitted against the task's correct answer. Choice tasks
// compare option keys exactly; input tasks compare trimmed, lower-cased
// text. It never mutates the task.
func Evaluate(task types.Task, submitted string) Result {
	var ok bool
	switch task.Type {
	case types.TaskTypeInput:
		ok = normalizeInput(submitted) == normalizeInput(task.Correct)
	default:
		ok = submitted == task.Correct
	}

	if ok {
		return Result{
			Verdict: types.VerdictSuccess,
			Message: fmt.Sprintf(">> BUILD SUCCESSFUL [0.5s]\n>> Input accepted: \"%s\"", submitted),
		}
	}
	return Result{
		Verdict: types.VerdictFailure,
		Message: fmt.Sprintf(
			">> FATAL ERROR: LogicException.\n"+
				">> The argument '%s' caused a runtime error.\n"+
				">> Expected: '%s'.\n"+
				">> Please review the syntax and try again.\n"+
				">> Process finished with exit code 1.",
			submitted, task.Correct,
		),
	}
}

func normalizeInput(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
