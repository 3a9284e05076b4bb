// Package registry maps environment ids onto engine factories and applies
// each id's episode step cap.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/boristopalov/mellowmdp/pkg/core"
	"github.com/boristopalov/mellowmdp/pkg/environment"
)

var (
	ErrUnknownEnv   = errors.New("registry: unknown environment id")
	ErrDuplicateEnv = errors.New("registry: environment id already registered")
)

// Factory builds a fresh environment from the options passed to Make.
type Factory func(p *MakeParams) (core.Environment, error)

// Spec describes one registered environment.
type Spec struct {
	ID              string
	MaxEpisodeSteps int
	Factory         Factory
}

type MakeParams struct {
	MaxEpisodeSteps int
	EngineOptions   []environment.Option

	// used by RandomMDP-v0
	States  int
	Actions int
	Seed    int64

	maxStepsSet bool
}

type MakeOption func(*MakeParams)

// WithMaxEpisodeSteps overrides the registered step cap. Zero disables it.
func WithMaxEpisodeSteps(n int) MakeOption {
	return func(p *MakeParams) {
		p.MaxEpisodeSteps = n
		p.maxStepsSet = true
	}
}

// WithEngineOptions forwards options to the engine constructor.
func WithEngineOptions(opts ...environment.Option) MakeOption {
	return func(p *MakeParams) {
		p.EngineOptions = append(p.EngineOptions, opts...)
	}
}

// WithRandomShape sets the size and model seed of RandomMDP-v0.
func WithRandomShape(states, actions int, seed int64) MakeOption {
	return func(p *MakeParams) {
		p.States = states
		p.Actions = actions
		p.Seed = seed
	}
}

// Registry is an id to factory map. The package-level registry is filled in
// init and only read afterwards; a Registry built with New is not guarded
// against concurrent Register calls.
type Registry struct {
	specs map[string]Spec
}

func New() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

func (r *Registry) Register(spec Spec) error {
	if spec.ID == "" || spec.Factory == nil {
		return fmt.Errorf("registry: spec needs an id and a factory")
	}
	if _, exists := r.specs[spec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEnv, spec.ID)
	}
	r.specs[spec.ID] = spec
	return nil
}

func (r *Registry) Lookup(id string) (Spec, bool) {
	spec, ok := r.specs[id]
	return spec, ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.specs))
	for id := range r.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Make builds the environment registered under id, wrapped in a TimeLimit
// when it has a positive step cap.
func (r *Registry) Make(id string, opts ...MakeOption) (core.Environment, error) {
	spec, ok := r.specs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnv, id)
	}

	params := &MakeParams{States: 5, Actions: 2}
	for _, opt := range opts {
		opt(params)
	}
	if !params.maxStepsSet {
		params.MaxEpisodeSteps = spec.MaxEpisodeSteps
	}

	env, err := spec.Factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to make %s: %w", id, err)
	}
	if params.MaxEpisodeSteps > 0 {
		env = NewTimeLimit(env, params.MaxEpisodeSteps)
	}
	return env, nil
}

var defaultRegistry = New()

func init() {
	for _, spec := range []Spec{
		{
			ID:              "SimpleMDP-v0",
			MaxEpisodeSteps: 1000,
			Factory: func(p *MakeParams) (core.Environment, error) {
				env, err := environment.NewSimpleMDP(p.EngineOptions...)
				if err != nil {
					return nil, err
				}
				return env, nil
			},
		},
		{
			ID:              "RandomMDP-v0",
			MaxEpisodeSteps: 1000,
			Factory: func(p *MakeParams) (core.Environment, error) {
				env, err := environment.NewRandomMDP(p.States, p.Actions, p.Seed, p.EngineOptions...)
				if err != nil {
					return nil, err
				}
				return env, nil
			},
		},
	} {
		if err := defaultRegistry.Register(spec); err != nil {
			panic(err)
		}
	}
}

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Make builds id from the process-wide registry.
func Make(id string, opts ...MakeOption) (core.Environment, error) {
	return defaultRegistry.Make(id, opts...)
}

// IDs lists the process-wide registry.
func IDs() []string { return defaultRegistry.IDs() }

// Lookup finds id in the process-wide registry.
func Lookup(id string) (Spec, bool) { return defaultRegistry.Lookup(id) }
