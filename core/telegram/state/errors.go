package state

import "fmt"

// ValidationError rejects user input. The executor keeps the session on the
// same step and asks the user to try again.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Invalid builds a ValidationError from a format string.
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// DuplicateCommandError is returned by NewRegistry when two commands share a name.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("state: duplicate command %q", e.Name)
}

// InvalidCommandError is returned by NewRegistry for malformed definitions.
type InvalidCommandError struct {
	Name   string
	Reason string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("state: invalid command %q: %s", e.Name, e.Reason)
}

// Phase names the step operation that failed.
type Phase string

const (
	PhaseEnter Phase = "enter"
	PhaseInput Phase = "input"
)

// StepError wraps an unexpected error raised by a step.
type StepError struct {
	Command string
	Index   int
	Phase   Phase
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("state: command %s step %d %s: %v", e.Command, e.Index, e.Phase, e.Err)
}

// Unwrap exposes the step's original error to errors.Is and errors.As.
func (e *StepError) Unwrap() error { return e.Err }
