package environment

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// warnings collects everything an engine reports through its warning handler.
type warnings struct {
	got []error
}

func (w *warnings) handle(err error) { w.got = append(w.got, err) }

func (w *warnings) postTerminal() int {
	n := 0
	for _, err := range w.got {
		var ptw *PostTerminalWarning
		if errors.As(err, &ptw) {
			n++
		}
	}
	return n
}

func newSimple(t *testing.T, w *warnings) *Engine {
	t.Helper()
	opts := []Option{WithLogger(quietLogger())}
	if w != nil {
		opts = append(opts, WithWarningHandler(w.handle))
	}
	env, err := NewSimpleMDP(opts...)
	require.NoError(t, err)
	return env
}

// runToTerminal steps with action 0 until the episode ends.
func runToTerminal(t *testing.T, env *Engine) core.StepResult {
	t.Helper()
	for i := 0; i < 10000; i++ {
		res, err := env.Step(0)
		require.NoError(t, err)
		if res.Done {
			return res
		}
	}
	t.Fatal("episode never terminated")
	return core.StepResult{}
}

func TestNew_ValidatesModel(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Model)
	}{
		{"row sums to 0.9", func(m *Model) { m.Transition[0][0] = []float64{0.6, 0.3} }},
		{"negative entry", func(m *Model) { m.Transition[0][1] = []float64{1.1, -0.1} }},
		{"row too short", func(m *Model) { m.Transition[1][0] = []float64{1} }},
		{"missing action", func(m *Model) { m.Transition[1] = m.Transition[1][:1] }},
		{"reward shape", func(m *Model) { m.Reward = m.Reward[:1] }},
		{"start out of range", func(m *Model) { m.StartState = 2 }},
		{"terminal out of range", func(m *Model) { m.TerminalStates = []int{5} }},
		{"empty", func(m *Model) { *m = Model{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := SimpleModel()
			tt.mutate(&m)
			env, err := New(m)
			require.Error(t, err)
			assert.Nil(t, env)
			var invalid *ModelInvalidError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestNew_AcceptsRoundingWithinTolerance(t *testing.T) {
	m := SimpleModel()
	m.Transition[0][0] = []float64{0.66, 0.34 + 1e-12}
	_, err := New(m, WithLogger(quietLogger()))
	assert.NoError(t, err)
}

func TestNew_DefaultTerminalIsLastState(t *testing.T) {
	m := SimpleModel()
	m.TerminalStates = nil
	env, err := New(m, WithLogger(quietLogger()))
	require.NoError(t, err)
	env.Reset(core.WithSeed(1))
	res := runToTerminal(t, env)
	assert.Equal(t, core.Observation(1), res.Observation)
}

func TestNew_CopiesModel(t *testing.T) {
	m := SimpleModel()
	m.Transition[0][0] = []float64{1, 0}
	env, err := New(m, WithLogger(quietLogger()))
	require.NoError(t, err)

	m.Transition[0][0][0], m.Transition[0][0][1] = 0, 1
	m.Reward[0][0] = 99

	env.Reset()
	for i := 0; i < 50; i++ {
		res, err := env.Step(0)
		require.NoError(t, err)
		assert.Equal(t, core.Observation(0), res.Observation)
		assert.Equal(t, 0.122, res.Reward)
	}
}

func TestSpaces(t *testing.T) {
	env := newSimple(t, nil)
	assert.Equal(t, core.Discrete{N: 2}, env.ObservationSpace())
	assert.Equal(t, core.Discrete{N: 2}, env.ActionSpace())
}

func TestReset_ReturnsStartState(t *testing.T) {
	env := newSimple(t, nil)
	for i := 0; i < 3; i++ {
		assert.Equal(t, core.Observation(0), env.Reset())
		assert.Equal(t, Running, env.Phase())
	}
	assert.Equal(t, core.Observation(0), env.Reset(core.WithSeed(42)))
}

func TestStep_BeforeReset(t *testing.T) {
	env := newSimple(t, nil)

	_, err := env.Step(0)
	require.ErrorIs(t, err, ErrNotReset)
	var notReset NotResetError
	assert.ErrorAs(t, err, &notReset)
	assert.Equal(t, Unstarted, env.Phase())

	// the failed call must not leave anything behind
	assert.Equal(t, core.Observation(0), env.Reset(core.WithSeed(3)))
	res, err := env.Step(1)
	require.NoError(t, err)
	assert.Equal(t, 0.033, res.Reward)
}

func TestStep_InvalidAction(t *testing.T) {
	env := newSimple(t, nil)
	env.Reset(core.WithSeed(1))

	for _, a := range []core.Action{-1, 2, 100} {
		_, err := env.Step(a)
		var invalid *InvalidActionError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, int(a), invalid.Action)
		assert.Equal(t, 2, invalid.NumActions)
	}
	assert.Equal(t, Running, env.Phase())

	// an unstarted engine reports the bad action too
	fresh := newSimple(t, nil)
	_, err := fresh.Step(7)
	var invalid *InvalidActionError
	assert.ErrorAs(t, err, &invalid)
}

func TestStep_RewardDependsOnPreTransitionState(t *testing.T) {
	env := newSimple(t, nil)
	env.Reset(core.WithSeed(11))

	sawStay, sawTerminal := false, false
	for i := 0; i < 200 && !(sawStay && sawTerminal); i++ {
		env.Reset()
		res, err := env.Step(0)
		require.NoError(t, err)
		assert.Equal(t, 0.122, res.Reward)
		assert.Empty(t, res.Info)
		switch res.Observation {
		case 0:
			sawStay = true
			assert.False(t, res.Done)
		case 1:
			sawTerminal = true
			assert.True(t, res.Done)
		}
	}
	assert.True(t, sawStay, "never stayed in S1")
	assert.True(t, sawTerminal, "never reached S2")
}

func TestStep_PostTerminal(t *testing.T) {
	w := &warnings{}
	env := newSimple(t, w)
	env.Reset(core.WithSeed(5))

	res := runToTerminal(t, env)
	assert.Equal(t, 0.122, res.Reward)
	assert.Equal(t, Terminated, env.Phase())
	n, ok := env.PostTerminalSteps()
	assert.True(t, ok)
	assert.Equal(t, 0, n)
	assert.Zero(t, w.postTerminal())

	for i := 1; i <= 5; i++ {
		res, err := env.Step(core.Action(i % 2))
		require.NoError(t, err)
		assert.Equal(t, core.Observation(1), res.Observation)
		assert.Equal(t, 0.0, res.Reward)
		assert.True(t, res.Done)

		n, _ := env.PostTerminalSteps()
		assert.Equal(t, i, n)
		assert.Equal(t, TerminatedWarned, env.Phase())
		assert.Equal(t, 1, w.postTerminal(), "warning must fire exactly once")
	}
}

func TestStep_PostTerminalZeroesNonZeroReward(t *testing.T) {
	m := SimpleModel()
	m.Reward[1] = []float64{5, 5}
	w := &warnings{}
	env, err := New(m, WithLogger(quietLogger()), WithWarningHandler(w.handle))
	require.NoError(t, err)
	env.Reset(core.WithSeed(2))
	runToTerminal(t, env)

	res, err := env.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Reward)
	assert.Equal(t, 1, w.postTerminal())
}

func TestReset_ClearsPreviousEpisode(t *testing.T) {
	w := &warnings{}
	env := newSimple(t, w)
	env.Reset(core.WithSeed(9))
	runToTerminal(t, env)
	_, err := env.Step(0)
	require.NoError(t, err)
	require.Equal(t, 1, w.postTerminal())

	assert.Equal(t, core.Observation(0), env.Reset())
	assert.Equal(t, Running, env.Phase())
	_, ok := env.PostTerminalSteps()
	assert.False(t, ok)

	// a new episode warns again, once
	runToTerminal(t, env)
	_, err = env.Step(0)
	require.NoError(t, err)
	_, err = env.Step(0)
	require.NoError(t, err)
	assert.Equal(t, 2, w.postTerminal())
}

func TestReset_SeedIsReproducible(t *testing.T) {
	record := func(env *Engine, seed int64) []core.StepResult {
		env.Reset(core.WithSeed(seed))
		actions := []core.Action{0, 1, 1, 0, 0, 1, 0, 0, 1, 0}
		var out []core.StepResult
		for _, a := range actions {
			res, err := env.Step(a)
			require.NoError(t, err)
			out = append(out, res)
		}
		return out
	}

	env := newSimple(t, nil)
	first := record(env, 1234)
	second := record(env, 1234)
	assert.Equal(t, first, second)

	other := newSimple(t, nil)
	assert.Equal(t, first, record(other, 1234))
}

func TestWithSeed_SeedsConstruction(t *testing.T) {
	a, err := NewSimpleMDP(WithSeed(77), WithLogger(quietLogger()))
	require.NoError(t, err)
	b, err := NewSimpleMDP(WithSeed(77), WithLogger(quietLogger()))
	require.NoError(t, err)

	a.Reset()
	b.Reset()
	for i := 0; i < 100; i++ {
		ra, _ := a.Step(0)
		rb, _ := b.Step(0)
		require.Equal(t, ra, rb)
		if ra.Done {
			a.Reset()
			b.Reset()
		}
	}
}

func TestStep_TerminationFrequency(t *testing.T) {
	env := newSimple(t, nil)
	env.Reset(core.WithSeed(2024))

	const trials = 20000
	hits := 0
	for i := 0; i < trials; i++ {
		env.Reset()
		res, err := env.Step(0)
		require.NoError(t, err)
		if res.Observation == 1 {
			hits++
		}
	}
	assert.InDelta(t, 0.34, float64(hits)/trials, 0.02)
}

func TestRender_Warns(t *testing.T) {
	w := &warnings{}
	env := newSimple(t, w)
	assert.NotPanics(t, env.Render)
	require.Len(t, w.got, 1)
	assert.ErrorIs(t, w.got[0], ErrRenderUnsupported)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "unstarted", Unstarted.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "terminated (warned)", TerminatedWarned.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
