package registry

import "github.com/boristopalov/mellowmdp/pkg/core"

// TruncatedKey is set in Info when TimeLimit ended the episode.
const TruncatedKey = "TimeLimit.truncated"

// TimeLimit ends episodes after a fixed number of successful steps. The
// wrapped environment never sees the cap.
type TimeLimit struct {
	env      core.Environment
	maxSteps int
	elapsed  int
}

var _ core.Environment = (*TimeLimit)(nil)

func NewTimeLimit(env core.Environment, maxSteps int) *TimeLimit {
	return &TimeLimit{env: env, maxSteps: maxSteps}
}

// Unwrap returns the wrapped environment.
func (t *TimeLimit) Unwrap() core.Environment { return t.env }

func (t *TimeLimit) MaxEpisodeSteps() int { return t.maxSteps }

func (t *TimeLimit) Reset(opts ...core.ResetOption) core.Observation {
	t.elapsed = 0
	return t.env.Reset(opts...)
}

func (t *TimeLimit) Step(action core.Action) (core.StepResult, error) {
	res, err := t.env.Step(action)
	if err != nil {
		return res, err
	}
	t.elapsed++
	if t.elapsed >= t.maxSteps && !res.Done {
		res.Done = true
		if res.Info == nil {
			res.Info = core.Info{}
		}
		res.Info[TruncatedKey] = true
	}
	return res, nil
}

func (t *TimeLimit) Render() { t.env.Render() }

func (t *TimeLimit) ObservationSpace() core.Discrete { return t.env.ObservationSpace() }

func (t *TimeLimit) ActionSpace() core.Discrete { return t.env.ActionSpace() }

// Truncated reports whether res was ended by a TimeLimit.
func Truncated(res core.StepResult) bool {
	v, _ := res.Info[TruncatedKey].(bool)
	return v
}
