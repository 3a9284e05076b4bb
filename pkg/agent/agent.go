package agent

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/boristopalov/mellowmdp/pkg/core"
)

// Policy picks the action to take for an observation. Policies only drive
// episodes; they do not learn.
type Policy interface {
	Name() string
	Act(obs core.Observation, space core.Discrete) core.Action
}

type PolicyParams struct {
	Seed   int64
	Action core.Action
	Table  map[core.Observation]core.Action
}

type PolicyOption func(*PolicyParams)

// WithSeed seeds stochastic policies.
func WithSeed(seed int64) PolicyOption {
	return func(p *PolicyParams) {
		p.Seed = seed
	}
}

// WithAction sets the action of a constant policy, and the fallback of a table policy.
func WithAction(a core.Action) PolicyOption {
	return func(p *PolicyParams) {
		p.Action = a
	}
}

// WithTable sets the observation to action map of a table policy.
func WithTable(table map[core.Observation]core.Action) PolicyOption {
	return func(p *PolicyParams) {
		p.Table = table
	}
}

var kinds = map[string]func(*PolicyParams) Policy{
	"uniform": func(p *PolicyParams) Policy {
		return NewUniformRandom(p.Seed)
	},
	"constant": func(p *PolicyParams) Policy {
		return Constant{Action: p.Action}
	},
	"table": func(p *PolicyParams) Policy {
		return Table{Actions: p.Table, Fallback: p.Action}
	},
}

// Kinds lists the names accepted by New.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// New builds a policy by kind: uniform, constant or table.
func New(kind string, opts ...PolicyOption) (Policy, error) {
	build, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown policy %q (want one of %s)", kind, strings.Join(Kinds(), ", "))
	}
	params := &PolicyParams{}
	for _, opt := range opts {
		opt(params)
	}
	return build(params), nil
}

// UniformRandom picks every action with equal probability.
type UniformRandom struct {
	rng *rand.Rand
}

func NewUniformRandom(seed int64) *UniformRandom {
	return &UniformRandom{rng: rand.New(rand.NewPCG(uint64(seed), 1))}
}

func (u *UniformRandom) Name() string { return "uniform" }

func (u *UniformRandom) Act(_ core.Observation, space core.Discrete) core.Action {
	return core.Action(u.rng.IntN(space.N))
}

// Constant always takes the same action.
type Constant struct {
	Action core.Action
}

func (c Constant) Name() string { return fmt.Sprintf("constant-%d", c.Action) }

func (c Constant) Act(core.Observation, core.Discrete) core.Action { return c.Action }

// Table maps observations to actions and falls back for unlisted ones.
type Table struct {
	Actions  map[core.Observation]core.Action
	Fallback core.Action
}

func (t Table) Name() string { return "table" }

func (t Table) Act(obs core.Observation, _ core.Discrete) core.Action {
	if a, ok := t.Actions[obs]; ok {
		return a
	}
	return t.Fallback
}
