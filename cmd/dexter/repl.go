package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const replPrompt = ">> "

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive research session (default)",
	Long: `Read questions from the terminal and answer them one at a time.
Type exit or quit to leave.`,
	Args: cobra.NoArgs,
	RunE: runREPLCommand,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// runner is the part of the orchestrator the REPL needs.
type runner interface {
	Run(ctx context.Context, query string, opts ...orchestrator.RunOption) (*orchestrator.Result, error)
}

func runREPLCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	printer := newProgressPrinter(cmd.OutOrStdout(), false)
	a, err := newApp(ctx, cfg, appOptions{progress: printer.Progress})
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("dexter "+version)+" · ask a research question, or type exit")
	return repl(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.orch)
}

// repl reads one question per line until EOF, exit or quit. A failed run is
// reported and the session continues.
func repl(ctx context.Context, in io.Reader, out io.Writer, r runner) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		res, err := r.Run(ctx, line)
		switch {
		case res != nil:
			renderResult(out, res)
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			fmt.Fprintln(out, errorStyle.Render("error: ")+err.Error())
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
