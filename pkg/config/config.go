package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/boristopalov/mellowmdp/pkg/agent"
	"github.com/boristopalov/mellowmdp/pkg/environment"
)

var ErrInvalidConfig = errors.New("invalid config")

type ExperimentConfig struct {
	Name        string       `yaml:"name"`
	Episodes    int          `yaml:"episodes"`
	Seed        *int64       `yaml:"seed"`
	HistorySize int          `yaml:"history_size"`
	Environment EnvConfig    `yaml:"environment"`
	Policy      PolicyConfig `yaml:"policy"`
	Logging     LogConfig    `yaml:"logging"`
	Report      ReportConfig `yaml:"report"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	NoColor bool   `yaml:"no_color"`
}

type PolicyConfig struct {
	Kind   string      `yaml:"kind"`
	Seed   int64       `yaml:"seed"`
	Action int         `yaml:"action"`
	Table  map[int]int `yaml:"table"`
}

// EnvConfig names a registered environment. When Model is set it replaces
// the registered model and ID is only used as a label.
type EnvConfig struct {
	ID              string             `yaml:"id"`
	MaxEpisodeSteps *int               `yaml:"max_episode_steps"`
	States          int                `yaml:"states"`
	Actions         int                `yaml:"actions"`
	ModelSeed       int64              `yaml:"model_seed"`
	Model           *environment.Model `yaml:"model"`
}

type ReportConfig struct {
	StatsPath string `yaml:"stats_path"`
	ChartPath string `yaml:"chart_path"`
	Trace     int    `yaml:"trace"`
}

// Default returns the configuration used when no file is given.
func Default() *ExperimentConfig {
	return &ExperimentConfig{
		Name:        "simple_mdp",
		Episodes:    100,
		HistorySize: 1000,
		Environment: EnvConfig{ID: "SimpleMDP-v0"},
		Policy:      PolicyConfig{Kind: "uniform"},
		Logging:     LogConfig{Level: "info"},
	}
}

// LoadConfig reads a YAML experiment file. ${VAR} references are expanded
// from the environment before parsing and unset fields keep their defaults.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*ExperimentConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ExperimentConfig) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be positive, got %d", ErrInvalidConfig, c.Episodes)
	}
	if c.HistorySize <= 0 {
		return fmt.Errorf("%w: history_size must be positive, got %d", ErrInvalidConfig, c.HistorySize)
	}
	if c.Environment.ID == "" && c.Environment.Model == nil {
		return fmt.Errorf("%w: environment needs an id or a model", ErrInvalidConfig)
	}
	if n := c.Environment.MaxEpisodeSteps; n != nil && *n < 0 {
		return fmt.Errorf("%w: max_episode_steps must not be negative, got %d", ErrInvalidConfig, *n)
	}
	if m := c.Environment.Model; m != nil {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if !slices.Contains(agent.Kinds(), c.Policy.Kind) {
		return fmt.Errorf("%w: unknown policy %q", ErrInvalidConfig, c.Policy.Kind)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}
	return nil
}
