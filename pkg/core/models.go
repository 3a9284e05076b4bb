package core

import "fmt"

// Observation is what the environment shows the caller. For the tabular
// engines it is the state index itself.
type Observation int

// Action indexes into an environment's ActionSpace.
type Action int

// Info carries auxiliary diagnostics. Callers must not branch on it.
type Info map[string]any

// StepResult is the outcome of a single Environment.Step call.
type StepResult struct {
	Observation Observation
	Reward      float64
	Done        bool
	Info        Info
}

// Transition records one step of an episode.
type Transition struct {
	State  Observation
	Action Action
	Reward float64
	Next   Observation
	Done   bool
}

func (t Transition) String() string {
	return fmt.Sprintf("s=%d a=%d r=%.3f s'=%d done=%v", t.State, t.Action, t.Reward, t.Next, t.Done)
}

// Discrete is a finite space {0, ..., N-1}.
type Discrete struct {
	N int
}

// Contains reports whether x lies in the space.
func (d Discrete) Contains(x int) bool {
	return x >= 0 && x < d.N
}

func (d Discrete) String() string {
	return fmt.Sprintf("Discrete(%d)", d.N)
}
