package types

import (
	"encoding/json"
	"fmt"
)

// Verdict represents the outcome of checking a submitted answer.
type Verdict int

const (
	// VerdictIdle means nothing has been submitted for the current task.
	VerdictIdle Verdict = iota

	// VerdictSuccess means the submitted answer matched.
	VerdictSuccess

	// VerdictFailure means the submitted answer did not match.
	VerdictFailure
)

// String returns the wire name of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictIdle:
		return "IDLE"
	case VerdictSuccess:
		return "SUCCESS"
	case VerdictFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes the verdict as its string name.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON parses a verdict name written by MarshalJSON.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "IDLE":
		*v = VerdictIdle
	case "SUCCESS":
		*v = VerdictSuccess
	case "FAILURE":
		*v = VerdictFailure
	default:
		return fmt.Errorf("unknown verdict %q", name)
	}
	return nil
}
