package practice

import (
	"testing"

	"github.com/jjudge-oj/practice/types"
	"github.com/stretchr/testify/assert"
)

func choiceTask(correct string) types.Task {
	return types.Task{
		ID:      "c1",
		Type:    types.TaskTypeChoice,
		Code:    "print(1 + 1)",
		Correct: correct,
		OptionA: "1",
		OptionB: "2",
		OptionC: "3",
		OptionD: "11",
	}
}

func TestEvaluateChoice(t *testing.T) {
	task := choiceTask("b")

	for _, key := range []string{"a", "b", "c", "d"} {
		got := Evaluate(task, key)
		if key == task.Correct {
			assert.Equal(t, types.VerdictSuccess, got.Verdict, key)
			assert.Contains(t, got.Message, `Input accepted: "b"`)
		} else {
			assert.Equal(t, types.VerdictFailure, got.Verdict, key)
			assert.Contains(t, got.Message, "'"+key+"'")
			assert.Contains(t, got.Message, "Expected: 'b'")
		}
	}
}

func TestEvaluateChoiceIsCaseSensitive(t *testing.T) {
	task := choiceTask("b")

	assert.Equal(t, types.VerdictFailure, Evaluate(task, "B").Verdict)
	assert.Equal(t, types.VerdictFailure, Evaluate(task, " b").Verdict)
}

func TestEvaluateInput(t *testing.T) {
	task := types.Task{ID: "i1", Type: types.TaskTypeInput, Code: "print(____)", Correct: "Hello"}

	cases := []struct {
		submitted string
		want      types.Verdict
	}{
		{"Hello", types.VerdictSuccess},
		{" hello ", types.VerdictSuccess},
		{"HELLO\t", types.VerdictSuccess},
		{"Hell", types.VerdictFailure},
		{"", types.VerdictFailure},
		{"Hello world", types.VerdictFailure},
	}
	for _, tc := range cases {
		got := Evaluate(task, tc.submitted)
		assert.Equal(t, tc.want, got.Verdict, "submitted %q", tc.submitted)
	}
}

func TestEvaluateInputTrimsStoredAnswer(t *testing.T) {
	task := types.Task{Type: types.TaskTypeInput, Correct: "  Return \n"}
	assert.True(t, Evaluate(task, "return").Success())
}

func TestEvaluateIsIdempotent(t *testing.T) {
	task := choiceTask("a")
	before := task

	first := Evaluate(task, "c")
	second := Evaluate(task, "c")

	assert.Equal(t, first, second)
	assert.Equal(t, before, task)
	assert.Contains(t, first.Message, "Process finished with exit code 1.")
}
