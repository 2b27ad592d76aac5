package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/dexter/internal/config"
	"github.com/fyrsmithlabs/dexter/internal/events"
	"github.com/fyrsmithlabs/dexter/internal/monitor"
	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

var watchFlags struct {
	url    string
	prefix string
	json   bool
	tui    bool
}

var watchCmd = &cobra.Command{
	Use:   "watch [run-id]",
	Short: "Follow run events published on NATS",
	Long: `Subscribe to run lifecycle events. With a run ID the command exits when
that run completes or aborts; without one it follows every run.

Examples:
  dexter watch
  dexter watch 3f2a6c1e-0d4b-4f7a-9a55-1c1f2b7f8e10 --json

  # Live dashboard
  dexter watch --tui`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.url, "url", "", "NATS URL (default from config events.url)")
	watchCmd.Flags().StringVar(&watchFlags.prefix, "prefix", "", "subject prefix (default from config events.subject_prefix)")
	watchCmd.Flags().BoolVar(&watchFlags.json, "json", false, "print raw event JSON")
	watchCmd.Flags().BoolVar(&watchFlags.tui, "tui", false, "open the live run dashboard")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	url, prefix := cfg.Events.URL, cfg.Events.SubjectPrefix
	if watchFlags.url != "" {
		url = watchFlags.url
	}
	if watchFlags.prefix != "" {
		prefix = watchFlags.prefix
	}

	nc, err := nats.Connect(url, nats.Name("dexter-watch"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	defer nc.Close()

	var runID string
	if len(args) == 1 {
		runID = args[0]
	}

	if watchFlags.tui {
		return runDashboard(cmd.Context(), nc, prefix, runID, cfg.Run.GlobalStepBudget)
	}

	out := cmd.OutOrStdout()
	return events.Watch(cmd.Context(), nc, prefix, runID, func(ev orchestrator.Event) {
		if watchFlags.json {
			data, _ := json.Marshal(ev)
			fmt.Fprintln(out, string(data))
			return
		}
		fmt.Fprintln(out, formatEvent(ev))
	})
}

func formatEvent(ev orchestrator.Event) string {
	line := fmt.Sprintf("%s %s %-16s", ev.At.Local().Format(time.TimeOnly), shortID(ev.RunID), ev.Type)
	if ev.TaskID > 0 {
		line += fmt.Sprintf(" task=%d", ev.TaskID)
	}
	if ev.Tool != "" {
		line += " tool=" + ev.Tool
	}
	if ev.Message != "" {
		line += " " + truncate(ev.Message, maxArgsWidth)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// runDashboard feeds NATS events into the bubbletea dashboard until the user
// quits or ctx is cancelled.
func runDashboard(ctx context.Context, nc *nats.Conn, prefix, runID string, budget int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan orchestrator.Event, 64)
	watchErr := make(chan error, 1)
	go func() {
		defer close(ch)
		watchErr <- events.Watch(ctx, nc, prefix, runID, func(ev orchestrator.Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		})
	}()

	p := tea.NewProgram(monitor.NewModel(runID, budget, ch), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	cancel()
	if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
