package environment

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// probTolerance bounds how far a transition row may drift from summing to one.
const probTolerance = 1e-9

// Model is a tabular MDP. Transition is indexed [s][a][s'] and Reward [s][a];
// the reward is earned for taking a in the pre-transition state s.
type Model struct {
	Transition [][][]float64 `yaml:"transition"`
	Reward     [][]float64   `yaml:"reward"`
	StartState int           `yaml:"start_state"`
	// TerminalStates defaults to the highest-index state when nil.
	TerminalStates []int `yaml:"terminal_states"`
}

// NumStates returns S.
func (m Model) NumStates() int { return len(m.Transition) }

// NumActions returns A, or 0 for an empty model.
func (m Model) NumActions() int {
	if len(m.Transition) == 0 {
		return 0
	}
	return len(m.Transition[0])
}

// Terminals returns the terminal set with the default applied.
func (m Model) Terminals() []int {
	if m.TerminalStates == nil && m.NumStates() > 0 {
		return []int{m.NumStates() - 1}
	}
	return m.TerminalStates
}

// Validate checks shapes and that every P[s][a][.] is a probability distribution.
func (m Model) Validate() error {
	S, A := m.NumStates(), m.NumActions()
	if S == 0 {
		return invalidModel(-1, -1, "no states")
	}
	if A == 0 {
		return invalidModel(-1, -1, "no actions")
	}
	if len(m.Reward) != S {
		return invalidModel(-1, -1, "reward has %d rows, want %d", len(m.Reward), S)
	}
	for s := 0; s < S; s++ {
		if len(m.Transition[s]) != A {
			return invalidModel(s, -1, "transition has %d actions, want %d", len(m.Transition[s]), A)
		}
		if len(m.Reward[s]) != A {
			return invalidModel(s, -1, "reward has %d actions, want %d", len(m.Reward[s]), A)
		}
		for a := 0; a < A; a++ {
			row := m.Transition[s][a]
			if len(row) != S {
				return invalidModel(s, a, "transition row has %d entries, want %d", len(row), S)
			}
			if math.IsNaN(m.Reward[s][a]) || math.IsInf(m.Reward[s][a], 0) {
				return invalidModel(s, a, "reward %v is not finite", m.Reward[s][a])
			}
			if floats.HasNaN(row) {
				return invalidModel(s, a, "transition row contains NaN")
			}
			if floats.Min(row) < 0 {
				return invalidModel(s, a, "transition row has negative probability %v", floats.Min(row))
			}
			if sum := floats.Sum(row); !scalar.EqualWithinAbs(sum, 1, probTolerance) {
				return invalidModel(s, a, "transition row sums to %v, want 1", sum)
			}
		}
	}
	if m.StartState < 0 || m.StartState >= S {
		return invalidModel(-1, -1, "start state %d out of range [0, %d)", m.StartState, S)
	}
	for _, t := range m.Terminals() {
		if t < 0 || t >= S {
			return invalidModel(-1, -1, "terminal state %d out of range [0, %d)", t, S)
		}
	}
	return nil
}

func (m Model) clone() Model {
	c := Model{
		Transition: make([][][]float64, len(m.Transition)),
		Reward:     make([][]float64, len(m.Reward)),
		StartState: m.StartState,
	}
	for s := range m.Transition {
		c.Transition[s] = make([][]float64, len(m.Transition[s]))
		for a := range m.Transition[s] {
			c.Transition[s][a] = append([]float64(nil), m.Transition[s][a]...)
		}
	}
	for s := range m.Reward {
		c.Reward[s] = append([]float64(nil), m.Reward[s]...)
	}
	c.TerminalStates = append([]int(nil), m.Terminals()...)
	return c
}

// SimpleModel returns the two-state MDP from Asadi & Littman, "An Alternative
// Softmax Operator for Reinforcement Learning" (2017).
//
//	state | action | reward | P(S1) | P(S2)
//	S1    | a      | 0.122  | 0.66  | 0.34
//	S1    | b      | 0.033  | 0.99  | 0.01
//	S2    | *      | 0      | 0     | 1
func SimpleModel() Model {
	return Model{
		Transition: [][][]float64{
			{{0.66, 0.34}, {0.99, 0.01}},
			{{0.0, 1.0}, {0.0, 1.0}},
		},
		Reward: [][]float64{
			{0.122, 0.033},
			{0.0, 0.0},
		},
		StartState:     0,
		TerminalStates: []int{1},
	}
}

// RandomModel draws an MDP with the given shape. Rows of non-terminal states
// come from a flat Dirichlet and their rewards from U[0, 1). The last state is
// terminal, absorbing and pays nothing.
func RandomModel(states, actions int, seed int64) (Model, error) {
	if states < 2 {
		return Model{}, invalidModel(-1, -1, "random model needs at least 2 states, got %d", states)
	}
	if actions < 1 {
		return Model{}, invalidModel(-1, -1, "random model needs at least 1 action, got %d", actions)
	}

	src := rand.NewPCG(uint64(seed), 0)
	alpha := make([]float64, states)
	floats.AddConst(1, alpha)
	dirichlet := distmv.NewDirichlet(alpha, src)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: src}

	terminal := states - 1
	m := Model{
		Transition:     make([][][]float64, states),
		Reward:         make([][]float64, states),
		TerminalStates: []int{terminal},
	}
	for s := 0; s < states; s++ {
		m.Transition[s] = make([][]float64, actions)
		m.Reward[s] = make([]float64, actions)
		for a := 0; a < actions; a++ {
			if s == terminal {
				row := make([]float64, states)
				row[terminal] = 1
				m.Transition[s][a] = row
				continue
			}
			row := dirichlet.Rand(nil)
			// Renormalise so rounding in the draw never trips validation.
			floats.Scale(1/floats.Sum(row), row)
			m.Transition[s][a] = row
			m.Reward[s][a] = uniform.Rand()
		}
	}
	return m, m.Validate()
}
