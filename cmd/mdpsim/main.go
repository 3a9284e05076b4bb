package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/mellowmdp/internal/logging"
	"github.com/boristopalov/mellowmdp/pkg/agent"
	"github.com/boristopalov/mellowmdp/pkg/config"
	"github.com/boristopalov/mellowmdp/pkg/core"
	"github.com/boristopalov/mellowmdp/pkg/environment"
	"github.com/boristopalov/mellowmdp/pkg/experiment"
	"github.com/boristopalov/mellowmdp/pkg/memory"
	"github.com/boristopalov/mellowmdp/pkg/registry"
	"github.com/boristopalov/mellowmdp/pkg/report"
)

type runFlags struct {
	configPath string
	envID      string
	episodes   int
	seed       int64
	policy     string
	action     int
	maxSteps   int
	statsPath  string
	chartPath  string
	trace      int
	logLevel   string
	noColor    bool
}

func main() {
	for _, envFile := range []string{
		".env",
		"../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mdpsim",
		Short:        "mdpsim simulates small tabular MDPs used to benchmark value backup operators.",
		SilenceUsage: true,
	}

	envsCmd := &cobra.Command{
		Use:   "envs",
		Short: "List registered environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, id := range registry.IDs() {
				spec, _ := registry.Lookup(id)
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s max_episode_steps=%d\n", id, spec.MaxEpisodeSteps)
			}
			return nil
		},
	}

	f := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run episodes of an environment under a fixed policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, f)
		},
	}
	runCmd.Flags().StringVarP(&f.configPath, "config", "c", "", "experiment YAML file")
	runCmd.Flags().StringVar(&f.envID, "env", "", "registered environment id")
	runCmd.Flags().IntVarP(&f.episodes, "episodes", "n", 0, "number of episodes")
	runCmd.Flags().Int64Var(&f.seed, "seed", 0, "base seed; episode i resets with seed+i")
	runCmd.Flags().StringVar(&f.policy, "policy", "", "policy kind (constant, table, uniform)")
	runCmd.Flags().IntVar(&f.action, "action", 0, "action taken by the constant policy")
	runCmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "override the registered step cap, 0 disables it")
	runCmd.Flags().StringVar(&f.statsPath, "stats", "", "write per-episode CSV stats to this file")
	runCmd.Flags().StringVar(&f.chartPath, "chart", "", "write an HTML returns chart to this file")
	runCmd.Flags().IntVar(&f.trace, "trace", 0, "print the last N transitions")
	runCmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	runCmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable coloured output")

	rootCmd.AddCommand(envsCmd, runCmd)
	return rootCmd
}

// loadConfig reads the config file, if any, and applies flags the user set.
func loadConfig(cmd *cobra.Command, f *runFlags) (*config.ExperimentConfig, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(f.configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("env") {
		cfg.Environment.ID = f.envID
		cfg.Environment.Model = nil
	}
	if flags.Changed("episodes") {
		cfg.Episodes = f.episodes
	}
	if flags.Changed("seed") {
		cfg.Seed = &f.seed
	}
	if flags.Changed("policy") {
		cfg.Policy.Kind = f.policy
	}
	if flags.Changed("action") {
		cfg.Policy.Action = f.action
	}
	if flags.Changed("max-steps") {
		cfg.Environment.MaxEpisodeSteps = &f.maxSteps
	}
	if flags.Changed("stats") {
		cfg.Report.StatsPath = f.statsPath
	}
	if flags.Changed("chart") {
		cfg.Report.ChartPath = f.chartPath
	}
	if flags.Changed("trace") {
		cfg.Report.Trace = f.trace
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if flags.Changed("no-color") {
		cfg.Logging.NoColor = f.noColor
	}
	return cfg, cfg.Validate()
}

func makeEnv(cfg *config.ExperimentConfig, logger *slog.Logger) (core.Environment, error) {
	engineOpts := []environment.Option{environment.WithLogger(logger)}
	if cfg.Seed != nil {
		engineOpts = append(engineOpts, environment.WithSeed(*cfg.Seed))
	}

	ec := cfg.Environment
	if ec.Model != nil {
		env, err := environment.New(*ec.Model, engineOpts...)
		if err != nil {
			return nil, err
		}
		if ec.MaxEpisodeSteps != nil && *ec.MaxEpisodeSteps > 0 {
			return registry.NewTimeLimit(env, *ec.MaxEpisodeSteps), nil
		}
		return env, nil
	}

	opts := []registry.MakeOption{registry.WithEngineOptions(engineOpts...)}
	if ec.MaxEpisodeSteps != nil {
		opts = append(opts, registry.WithMaxEpisodeSteps(*ec.MaxEpisodeSteps))
	}
	if ec.States > 0 || ec.Actions > 0 {
		opts = append(opts, registry.WithRandomShape(ec.States, ec.Actions, ec.ModelSeed))
	}
	return registry.Make(ec.ID, opts...)
}

func makePolicy(cfg *config.ExperimentConfig) (agent.Policy, error) {
	pc := cfg.Policy
	opts := []agent.PolicyOption{
		agent.WithSeed(pc.Seed),
		agent.WithAction(core.Action(pc.Action)),
	}
	if len(pc.Table) > 0 {
		table := make(map[core.Observation]core.Action, len(pc.Table))
		for obs, a := range pc.Table {
			table[core.Observation(obs)] = core.Action(a)
		}
		opts = append(opts, agent.WithTable(table))
	}
	return agent.New(pc.Kind, opts...)
}

func runExperiment(cmd *cobra.Command, f *runFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger := logging.New(cmd.ErrOrStderr(), level, cfg.Logging.NoColor)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	env, err := makeEnv(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create environment: %w", err)
	}
	policy, err := makePolicy(cfg)
	if err != nil {
		return fmt.Errorf("failed to create policy: %w", err)
	}

	history := memory.NewHistory[core.Transition](cfg.HistorySize)
	opts := []experiment.RunnerOption{
		experiment.WithName(cfg.Name),
		experiment.WithEpisodes(cfg.Episodes),
		experiment.WithHistory(history),
		experiment.WithLogger(logger),
	}
	if cfg.Seed != nil {
		opts = append(opts, experiment.WithSeed(*cfg.Seed))
	}
	if cfg.Report.StatsPath != "" {
		statsFile, err := os.Create(cfg.Report.StatsPath)
		if err != nil {
			return fmt.Errorf("failed to create stats file: %w", err)
		}
		defer statsFile.Close()
		opts = append(opts, experiment.WithStatsWriter(statsFile))
	}

	runner := experiment.New(env, policy, opts...)
	logger.Info("starting run",
		slog.String("run_id", runner.ID().String()),
		slog.String("env", cfg.Environment.ID),
		slog.String("policy", policy.Name()),
		slog.Int("episodes", cfg.Episodes),
	)
	results, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	if cfg.Report.ChartPath != "" {
		if err := writeChart(cfg, policy, results); err != nil {
			return err
		}
		logger.Info("wrote returns chart", slog.String("path", cfg.Report.ChartPath))
	}
	if cfg.Report.Trace > 0 {
		return report.PrintTrace(cmd.OutOrStdout(), history.Last(cfg.Report.Trace), !cfg.Logging.NoColor)
	}
	return nil
}

func writeChart(cfg *config.ExperimentConfig, policy agent.Policy, results []experiment.EpisodeStats) error {
	chartFile, err := os.Create(cfg.Report.ChartPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer chartFile.Close()

	series := report.Series{Name: policy.Name(), Returns: experiment.Returns(results)}
	if err := report.WriteReturnsChart(chartFile, cfg.Name, series); err != nil {
		return fmt.Errorf("failed to write chart: %w", err)
	}
	return nil
}
