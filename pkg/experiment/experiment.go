package experiment

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/boristopalov/mellowmdp/pkg/agent"
	"github.com/boristopalov/mellowmdp/pkg/core"
	"github.com/boristopalov/mellowmdp/pkg/memory"
	"github.com/boristopalov/mellowmdp/pkg/messaging"
	"github.com/boristopalov/mellowmdp/pkg/registry"
)

// EpisodeStats summarises one episode.
type EpisodeStats struct {
	Episode    int
	Return     float64
	Length     int
	Terminated bool // reached a terminal state
	Truncated  bool // ended by the step cap
}

// Summary aggregates the episodes of a run.
type Summary struct {
	Episodes        int
	MeanReturn      float64
	StdReturn       float64
	MeanLength      float64
	TerminationRate float64
}

// Status reports whether a run is in progress.
type Status struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Err       error
}

// Runner drives an environment with a policy for a number of episodes.
type Runner struct {
	id       uuid.UUID
	name     string
	env      core.Environment
	policy   agent.Policy
	episodes int
	seed     int64
	hasSeed  bool

	publisher messaging.Publisher
	history   *memory.History[core.Transition]
	stats     io.Writer
	logger    *slog.Logger

	mu     sync.RWMutex
	status Status
}

type RunnerOption func(*Runner)

func WithName(name string) RunnerOption {
	return func(r *Runner) {
		r.name = name
	}
}

func WithEpisodes(n int) RunnerOption {
	return func(r *Runner) {
		r.episodes = n
	}
}

// WithSeed makes the run reproducible: episode i is reset with seed+i.
func WithSeed(seed int64) RunnerOption {
	return func(r *Runner) {
		r.seed = seed
		r.hasSeed = true
	}
}

// WithPublisher publishes every transition as a messaging.Event.
func WithPublisher(p messaging.Publisher) RunnerOption {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithHistory keeps the latest transitions in h.
func WithHistory(h *memory.History[core.Transition]) RunnerOption {
	return func(r *Runner) {
		r.history = h
	}
}

// WithStatsWriter writes one CSV row per episode to w.
func WithStatsWriter(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.stats = w
	}
}

func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

func New(env core.Environment, policy agent.Policy, opts ...RunnerOption) *Runner {
	r := &Runner{
		id:       uuid.New(),
		name:     "run",
		env:      env,
		policy:   policy,
		episodes: 1,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) ID() uuid.UUID { return r.id }

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Run plays all episodes. It stops between steps when ctx is cancelled and
// returns the episodes completed so far.
func (r *Runner) Run(ctx context.Context) ([]EpisodeStats, error) {
	r.mu.Lock()
	r.status = Status{Running: true, StartTime: time.Now()}
	r.mu.Unlock()

	results, err := r.runLoop(ctx)

	r.mu.Lock()
	r.status.Running = false
	r.status.EndTime = time.Now()
	r.status.Err = err
	r.mu.Unlock()

	return results, err
}

func (r *Runner) runLoop(ctx context.Context) ([]EpisodeStats, error) {
	logger := r.logger.With(slog.String("run", r.name), slog.String("run_id", r.id.String()))

	var w *csv.Writer
	if r.stats != nil {
		w = csv.NewWriter(r.stats)
		if err := w.Write([]string{"episode", "return", "length", "terminated", "truncated"}); err != nil {
			return nil, fmt.Errorf("failed to write stats header: %w", err)
		}
	}

	results := make([]EpisodeStats, 0, r.episodes)
	for ep := 0; ep < r.episodes; ep++ {
		st, err := r.runEpisode(ctx, ep)
		if err != nil {
			return results, fmt.Errorf("episode %d: %w", ep, err)
		}
		results = append(results, st)
		logger.Debug("episode finished",
			slog.Int("episode", ep),
			slog.Float64("return", st.Return),
			slog.Int("length", st.Length),
			slog.Bool("truncated", st.Truncated),
		)

		if w != nil {
			if err := w.Write(st.record()); err != nil {
				return results, fmt.Errorf("failed to write stats: %w", err)
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return results, fmt.Errorf("failed to write stats: %w", err)
			}
		}
	}

	sum := Summarize(results)
	logger.Info("run finished",
		slog.Int("episodes", sum.Episodes),
		slog.Float64("mean_return", sum.MeanReturn),
		slog.Float64("std_return", sum.StdReturn),
		slog.Float64("mean_length", sum.MeanLength),
		slog.Float64("termination_rate", sum.TerminationRate),
	)
	return results, nil
}

func (r *Runner) runEpisode(ctx context.Context, ep int) (EpisodeStats, error) {
	st := EpisodeStats{Episode: ep}

	var obs core.Observation
	if r.hasSeed {
		obs = r.env.Reset(core.WithSeed(r.seed + int64(ep)))
	} else {
		obs = r.env.Reset()
	}

	space := r.env.ActionSpace()
	for {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}

		action := r.policy.Act(obs, space)
		res, err := r.env.Step(action)
		if err != nil {
			return st, err
		}

		st.Length++
		st.Return += res.Reward
		truncated := registry.Truncated(res)
		tr := core.Transition{
			State:  obs,
			Action: action,
			Reward: res.Reward,
			Next:   res.Observation,
			Done:   res.Done,
		}
		r.record(ep, st.Length, tr, truncated)
		obs = res.Observation

		if res.Done {
			st.Truncated = truncated
			st.Terminated = !truncated
			return st, nil
		}
	}
}

func (r *Runner) record(ep, step int, tr core.Transition, truncated bool) {
	if r.history != nil {
		r.history.Store(tr)
	}
	if r.publisher == nil {
		return
	}
	ev := messaging.Event{
		RunID:      r.id,
		Episode:    ep,
		Step:       step,
		Transition: tr,
		Truncated:  truncated,
		Timestamp:  time.Now(),
	}
	if err := r.publisher.Publish(ev); err != nil {
		r.logger.Warn("failed to publish transition", slog.Any("error", err))
	}
}

func (s EpisodeStats) record() []string {
	return []string{
		strconv.Itoa(s.Episode),
		strconv.FormatFloat(s.Return, 'f', -1, 64),
		strconv.Itoa(s.Length),
		strconv.FormatBool(s.Terminated),
		strconv.FormatBool(s.Truncated),
	}
}

// Returns extracts the per-episode returns.
func Returns(results []EpisodeStats) []float64 {
	out := make([]float64, len(results))
	for i, r := range results {
		out[i] = r.Return
	}
	return out
}

// Summarize computes aggregate statistics over results.
func Summarize(results []EpisodeStats) Summary {
	sum := Summary{Episodes: len(results)}
	if len(results) == 0 {
		return sum
	}

	returns := Returns(results)
	lengths := make([]float64, len(results))
	terminated := 0
	for i, r := range results {
		lengths[i] = float64(r.Length)
		if r.Terminated {
			terminated++
		}
	}

	sum.MeanReturn, sum.StdReturn = stat.MeanStdDev(returns, nil)
	if len(results) == 1 {
		sum.StdReturn = 0
	}
	sum.MeanLength = stat.Mean(lengths, nil)
	sum.TerminationRate = float64(terminated) / float64(len(results))
	return sum
}
