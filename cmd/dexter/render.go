package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	taskStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("51")).
			Padding(0, 1)
)

// maxArgsWidth truncates tool arguments in progress lines.
const maxArgsWidth = 80

// progressPrinter renders run events as they happen. It is safe for concurrent use.
type progressPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
}

func newProgressPrinter(out io.Writer, quiet bool) *progressPrinter {
	return &progressPrinter{out: out, quiet: quiet}
}

// Progress implements orchestrator.ProgressCallback.
func (p *progressPrinter) Progress(ev orchestrator.Event, snap orchestrator.Snapshot) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Type {
	case orchestrator.EventPlanned:
		fmt.Fprintln(p.out, titleStyle.Render("Planned tasks:"))
		for _, t := range snap.Tasks {
			fmt.Fprintf(p.out, "  %d. %s\n", t.ID, t.Description)
		}
	case orchestrator.EventTaskStarted:
		fmt.Fprintln(p.out, taskStyle.Render(fmt.Sprintf("▸ Task %d: %s", ev.TaskID, ev.Message)))
	case orchestrator.EventToolInvoked:
		fmt.Fprintln(p.out, toolStyle.Render(fmt.Sprintf("    ↳ %s %s", ev.Tool, truncate(ev.Message, maxArgsWidth))))
	case orchestrator.EventToolRejected:
		fmt.Fprintln(p.out, warnStyle.Render(fmt.Sprintf("    ↳ %s skipped (%s)", ev.Tool, strings.ReplaceAll(ev.Message, "_", " "))))
	case orchestrator.EventTaskCompleted:
		fmt.Fprintln(p.out, doneStyle.Render(fmt.Sprintf("  ✓ Task %d done", ev.TaskID)))
	case orchestrator.EventTaskFailed:
		fmt.Fprintln(p.out, errorStyle.Render(fmt.Sprintf("  ✗ Task %d failed", ev.TaskID))+" "+ev.Message)
	case orchestrator.EventBudgetExhausted:
		fmt.Fprintln(p.out, warnStyle.Render("! "+ev.Message))
	}
}

// renderResult writes the final answer, or the abort reason and partial log.
func renderResult(out io.Writer, res *orchestrator.Result) {
	if res == nil {
		return
	}

	if res.Status == orchestrator.StatusDone {
		fmt.Fprintln(out, answerStyle.Render(strings.TrimSpace(res.Answer)))
		if res.BudgetExhausted {
			fmt.Fprintln(out, warnStyle.Render("Answer is based on partial research: the step budget ran out."))
		}
		fmt.Fprintln(out, toolStyle.Render(fmt.Sprintf("%d steps · %s", res.Steps, res.Duration.Round(100*time.Millisecond))))
		return
	}

	fmt.Fprintln(out, errorStyle.Render("Run aborted: ")+res.Reason)
	if len(res.PartialOutputLog) > 0 {
		fmt.Fprintln(out, titleStyle.Render("Collected so far:"))
		for _, e := range res.PartialOutputLog {
			if e.Kind == orchestrator.EntryFailure {
				fmt.Fprintf(out, "  - task %d, %s failed: %s\n", e.TaskID, e.Tool, truncate(e.Error, maxArgsWidth))
				continue
			}
			fmt.Fprintf(out, "  - task %d, %s: %s\n", e.TaskID, e.Tool, truncate(e.Output, maxArgsWidth))
		}
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
