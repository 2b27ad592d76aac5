package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/dexter/internal/config"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&flags.maxSteps, "max-steps", 20, "")
	cmd.Flags().IntVar(&flags.maxStepsPerTask, "max-steps-per-task", 3, "")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "")
	return cmd
}

func TestApplyFlagOverrides_OnlyChangedFlags(t *testing.T) {
	t.Cleanup(func() { flags = globalFlags{} })

	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--max-steps-per-task", "5", "--log-level", "debug"}))

	cfg := &config.Config{
		Run: config.RunConfig{GlobalStepBudget: 12, PerTaskAttemptBudget: 2},
	}
	applyFlagOverrides(cmd, cfg)

	assert.Equal(t, 12, cfg.Run.GlobalStepBudget, "unset flag must not override config")
	assert.Equal(t, 5, cfg.Run.PerTaskAttemptBudget)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyFlagOverrides_NoFlags(t *testing.T) {
	t.Cleanup(func() { flags = globalFlags{} })

	cmd := newFlagCommand()
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := &config.Config{
		Run:     config.RunConfig{GlobalStepBudget: 7, PerTaskAttemptBudget: 1},
		Logging: config.LoggingConfig{Level: "warn"},
	}
	applyFlagOverrides(cmd, cfg)

	assert.Equal(t, 7, cfg.Run.GlobalStepBudget)
	assert.Equal(t, 1, cfg.Run.PerTaskAttemptBudget)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ask", "repl", "serve", "mcp", "watch", "version"} {
		assert.True(t, names[want], want)
	}
}
