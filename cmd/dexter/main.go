// Package main implements the dexter CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// version information, set at build time with -ldflags.
	version = "dev"
	commit  = "none"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath      string
	logLevel        string
	maxSteps        int
	maxStepsPerTask int
}

var flags globalFlags

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dexter",
	Short: "Autonomous financial research agent",
	Long: `dexter answers research questions by planning them into tasks, running
tools for each task, checking the results and writing an answer grounded in
what it found.

Running dexter without a command starts the interactive prompt.

Examples:
  # Interactive session
  dexter

  # One-shot question
  dexter ask "How did AAPL's price move relative to MSFT this year?"

  # HTTP API with embedded event bus
  dexter serve --embedded-nats`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runREPLCommand,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/dexter/config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	pf.IntVar(&flags.maxSteps, "max-steps", 20, "global step budget per run")
	pf.IntVar(&flags.maxStepsPerTask, "max-steps-per-task", 3, "attempt budget per task")

	rootCmd.SetVersionTemplate(fmt.Sprintf("dexter %s (%s)\n", version, commit))
}
