package environment

import (
	"errors"
	"fmt"
)

// ErrNotReset is returned by Step when no episode has been started.
var ErrNotReset error = NotResetError{}

// ErrRenderUnsupported is reported through the warning handler by Render.
var ErrRenderUnsupported = errors.New("environment: rendering is not supported")

// NotResetError means Step was called before the first Reset.
type NotResetError struct{}

func (NotResetError) Error() string {
	return "environment: call Reset before using Step"
}

// ModelInvalidError describes why a transition or reward model was rejected.
// State and Action are -1 when the problem is not tied to a particular pair.
type ModelInvalidError struct {
	State  int
	Action int
	Reason string
}

func (e *ModelInvalidError) Error() string {
	switch {
	case e.State >= 0 && e.Action >= 0:
		return fmt.Sprintf("environment: invalid model at (s=%d, a=%d): %s", e.State, e.Action, e.Reason)
	case e.State >= 0:
		return fmt.Sprintf("environment: invalid model at s=%d: %s", e.State, e.Reason)
	default:
		return "environment: invalid model: " + e.Reason
	}
}

func invalidModel(s, a int, format string, args ...any) *ModelInvalidError {
	return &ModelInvalidError{State: s, Action: a, Reason: fmt.Sprintf(format, args...)}
}

// InvalidActionError is returned by Step for an action outside the action space.
type InvalidActionError struct {
	Action     int
	NumActions int
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("environment: action %d not in Discrete(%d)", e.Action, e.NumActions)
}

// PostTerminalWarning is emitted once per episode when Step keeps being
// called after the episode returned done.
type PostTerminalWarning struct {
	Steps int
}

func (w *PostTerminalWarning) Error() string {
	return "environment: Step called even though this environment has already returned done = true; " +
		"call Reset once you receive done = true, any further steps are undefined behavior"
}
