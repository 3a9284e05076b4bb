package environment

import (
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

// Engine simulates a tabular MDP through the core.Environment contract.
// An Engine is not safe for concurrent use; run one per goroutine.
type Engine struct {
	model    Model
	obsSpace core.Discrete
	actSpace core.Discrete
	terminal []bool
	samplers [][]distuv.Categorical
	src      *rand.PCG

	logger    *slog.Logger
	onWarning func(error)

	// episode state, owned by Reset and Step
	state        int
	phase        Phase
	postTerminal int
}

var _ core.Environment = (*Engine)(nil)

type engineParams struct {
	logger    *slog.Logger
	onWarning func(error)
	seed      uint64
	hasSeed   bool
}

type Option func(*engineParams)

// WithLogger sets the logger used for warnings and debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *engineParams) {
		p.logger = logger
	}
}

// WithWarningHandler replaces the default handler, which logs at warn level.
// The handler receives *PostTerminalWarning and ErrRenderUnsupported.
func WithWarningHandler(fn func(error)) Option {
	return func(p *engineParams) {
		p.onWarning = fn
	}
}

// WithSeed seeds the generator at construction. Reset(core.WithSeed) reseeds later.
func WithSeed(seed int64) Option {
	return func(p *engineParams) {
		p.seed = uint64(seed)
		p.hasSeed = true
	}
}

// New validates model and builds an engine around a private copy of it.
func New(model Model, opts ...Option) (*Engine, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}

	params := &engineParams{logger: slog.Default()}
	for _, opt := range opts {
		opt(params)
	}
	if !params.hasSeed {
		params.seed = rand.Uint64()
	}

	m := model.clone()
	S, A := m.NumStates(), m.NumActions()
	e := &Engine{
		model:    m,
		obsSpace: core.Discrete{N: S},
		actSpace: core.Discrete{N: A},
		terminal: make([]bool, S),
		samplers: make([][]distuv.Categorical, S),
		src:      rand.NewPCG(params.seed, 0),
		logger:   params.logger,
		phase:    Unstarted,
	}
	for _, t := range m.TerminalStates {
		e.terminal[t] = true
	}
	for s := 0; s < S; s++ {
		e.samplers[s] = make([]distuv.Categorical, A)
		for a := 0; a < A; a++ {
			e.samplers[s][a] = distuv.NewCategorical(m.Transition[s][a], e.src)
		}
	}
	e.onWarning = params.onWarning
	if e.onWarning == nil {
		e.onWarning = func(err error) {
			e.logger.Warn(err.Error())
		}
	}
	return e, nil
}

// NewSimpleMDP builds an engine over SimpleModel.
func NewSimpleMDP(opts ...Option) (*Engine, error) {
	return New(SimpleModel(), opts...)
}

// NewRandomMDP builds an engine over RandomModel(states, actions, seed).
func NewRandomMDP(states, actions int, seed int64, opts ...Option) (*Engine, error) {
	m, err := RandomModel(states, actions, seed)
	if err != nil {
		return nil, err
	}
	return New(m, opts...)
}

func (e *Engine) ObservationSpace() core.Discrete { return e.obsSpace }

func (e *Engine) ActionSpace() core.Discrete { return e.actSpace }

// Phase returns the lifecycle phase of the current episode.
func (e *Engine) Phase() Phase { return e.phase }

// PostTerminalSteps returns how many steps were taken after the first done
// this episode. ok is false until the episode has terminated.
func (e *Engine) PostTerminalSteps() (n int, ok bool) {
	if e.phase < Terminated {
		return 0, false
	}
	return e.postTerminal, true
}

// Reset starts a new episode in the start state. A seed reseeds the generator
// in place, so equal seeds replay equal transition sequences.
func (e *Engine) Reset(opts ...core.ResetOption) core.Observation {
	o := core.ApplyResetOptions(opts...)
	if o.HasSeed {
		e.src.Seed(uint64(o.Seed), 0)
	}
	e.state = e.model.StartState
	e.phase = Running
	e.postTerminal = 0
	return core.Observation(e.state)
}

// Step samples the next state and returns the reward for the pre-transition
// state and action. Once the episode is done further steps still transition
// but pay 0; the second such step emits a PostTerminalWarning.
func (e *Engine) Step(action core.Action) (core.StepResult, error) {
	if !e.actSpace.Contains(int(action)) {
		return core.StepResult{}, &InvalidActionError{Action: int(action), NumActions: e.actSpace.N}
	}
	if e.phase == Unstarted {
		return core.StepResult{}, ErrNotReset
	}

	prev := e.state
	next := int(e.samplers[prev][action].Rand())
	reward := e.model.Reward[prev][action]
	e.state = next
	done := e.terminal[next]

	if done {
		switch e.phase {
		case Running:
			e.phase = Terminated
			e.postTerminal = 0
		default:
			if e.postTerminal == 0 {
				e.phase = TerminatedWarned
				e.onWarning(&PostTerminalWarning{Steps: e.postTerminal + 1})
			}
			e.postTerminal++
			reward = 0.0
		}
	}

	e.logger.Debug("step",
		slog.Int("state", prev),
		slog.Int("action", int(action)),
		slog.Int("next", next),
		slog.Float64("reward", reward),
		slog.Bool("done", done),
	)

	return core.StepResult{
		Observation: core.Observation(next),
		Reward:      reward,
		Done:        done,
		Info:        core.Info{},
	}, nil
}

// Render is unsupported; it reports ErrRenderUnsupported and returns.
func (e *Engine) Render() {
	e.onWarning(ErrRenderUnsupported)
}
