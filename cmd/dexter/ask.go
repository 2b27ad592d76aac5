package main

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

var askFlags struct {
	json  bool
	quiet bool
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single research question",
	Long: `Run one question through the planner, tools and answerer, then exit.

Examples:
  dexter ask "What is Tesla's market cap divided by its revenue?"

  # Machine-readable result
  dexter ask --json "Current price of NVDA"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askFlags.json, "json", false, "print the result as JSON")
	askCmd.Flags().BoolVarP(&askFlags.quiet, "quiet", "q", false, "hide progress output")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printer := newProgressPrinter(cmd.ErrOrStderr(), askFlags.quiet || askFlags.json)
	a, err := newApp(ctx, cfg, appOptions{progress: printer.Progress})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	res, runErr := a.orch.Run(ctx, strings.Join(args, " "))
	if res == nil {
		return runErr
	}

	if askFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), res)
	}

	if res.Status != orchestrator.StatusDone {
		return errors.New("research run aborted")
	}
	return nil
}
