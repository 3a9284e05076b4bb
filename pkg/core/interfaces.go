package core

// Environment is the step/reset contract every simulated MDP exposes.
// Implementations are not safe for concurrent use.
type Environment interface {
	// Reset starts a new episode and returns the initial observation
	Reset(opts ...ResetOption) Observation
	// Step advances the episode by one transition under the given action
	Step(action Action) (StepResult, error)
	// Render reports that the environment cannot be drawn; it never fails
	Render()
	// ObservationSpace returns the set of observations Step and Reset can produce
	ObservationSpace() Discrete
	// ActionSpace returns the set of actions Step accepts
	ActionSpace() Discrete
}

// ResetOptions holds the optional arguments to Environment.Reset.
type ResetOptions struct {
	Seed    int64
	HasSeed bool
}

type ResetOption func(*ResetOptions)

// WithSeed reseeds the environment's generator before the episode starts.
func WithSeed(seed int64) ResetOption {
	return func(o *ResetOptions) {
		o.Seed = seed
		o.HasSeed = true
	}
}

// ApplyResetOptions folds opts into a ResetOptions value.
func ApplyResetOptions(opts ...ResetOption) ResetOptions {
	var o ResetOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
