package monitor

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/dexter/internal/orchestrator"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	maxQueryWidth   = 60
)

// Model is the bubbletea dashboard for a single run.
type Model struct {
	runID    string
	budget   int
	events   <-chan orchestrator.Event
	run      RunView
	closed   bool
	quitting bool

	stepProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard fed by events. runID may be empty to follow
// whichever run publishes next. budget is the global step budget shown in the
// progress bar.
func NewModel(runID string, budget int, events <-chan orchestrator.Event) Model {
	return Model{
		runID:  runID,
		budget: budget,
		events: events,
		run:    NewRunView(),
		stepProgress: progress.New(
			progress.WithGradient("#00ff00", "#ff0000"),
			progress.WithWidth(40),
		),
	}
}

// Run returns the current view of the run.
func (m Model) Run() RunView {
	return m.run
}

type eventMsg orchestrator.Event
type closedMsg struct{}

// Init starts waiting for the first event.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case eventMsg:
		ev := orchestrator.Event(msg)
		if m.runID != "" && ev.RunID != m.runID {
			return m, waitForEvent(m.events)
		}
		m.run = m.run.Apply(ev)
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		return m, nil
	}

	return m, nil
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" dexter run monitor ") + "\n")

	if m.run.RunID == "" {
		b.WriteString("\n" + dimStyle.Render("Waiting for run events") + "\n")
		b.WriteString(m.footer())
		return containerStyle.Render(b.String())
	}

	b.WriteString(fmt.Sprintf("%s   %s %s   %s %s\n",
		statusBadge(m.run.Phase),
		dimStyle.Render("Run:"), valueStyle.Render(m.run.RunID),
		dimStyle.Render("Elapsed:"), valueStyle.Render(FormatElapsed(m.run.Elapsed()))))
	if m.run.Query != "" {
		b.WriteString(labelStyle.Render("Query: ") + truncate(m.run.Query, maxQueryWidth) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Budget") + "\n")
	ratio := StepRatio(m.run.Steps, m.budget)
	b.WriteString(labelStyle.Render("  Steps: ") +
		valueStyle.Render(FormatSteps(m.run.Steps, m.budget)) + "  " +
		m.stepProgress.ViewAs(ratio) + " " + dimStyle.Render(FormatPercentage(ratio)) + "\n")
	if m.run.Note != "" {
		b.WriteString("  " + warningStyle.Render("! "+m.run.Note) + "\n")
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Tasks") + "\n")
	if m.run.Planned != "" {
		b.WriteString(dimStyle.Render("  planned "+m.run.Planned) + "\n")
	}
	for _, t := range m.run.Tasks {
		b.WriteString(fmt.Sprintf("  %s %d. %s\n", taskBadge(t.Status), t.ID, truncate(t.Description, maxQueryWidth)))
	}

	b.WriteString("\n" + sectionStyle.Render("┃ Tools") + "\n")
	for _, name := range m.run.ToolNames() {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-18s", name)) +
			valueStyle.Render(fmt.Sprintf("%d", m.run.ToolCalls[name])) + "\n")
	}
	b.WriteString(labelStyle.Render("  Rejected: ") + valueStyle.Render(fmt.Sprintf("%d", m.run.Rejections)) + "\n")
	b.WriteString(labelStyle.Render("  Gap (s): ") + createSparkline(m.run.ToolGapHistory) + "\n")

	b.WriteString(m.footer())
	return containerStyle.Render(b.String())
}

func (m Model) footer() string {
	footer := "\n" + footerKeyStyle.Render("[q]") + footerStyle.Render(" quit")
	if m.closed {
		footer += footerStyle.Render("  event stream closed")
	}
	return footer
}

// statusBadge returns the run status badge for a phase.
func statusBadge(phase orchestrator.Phase) string {
	switch phase {
	case orchestrator.PhaseDone:
		return healthyStyle.Render("✓ DONE")
	case orchestrator.PhaseAborted:
		return errorStyle.Render("✗ ABORTED")
	}
	return warningStyle.Render("● " + string(phase))
}

func taskBadge(status orchestrator.TaskStatus) string {
	switch status {
	case orchestrator.TaskDone:
		return healthyStyle.Render("[✓]")
	case orchestrator.TaskFailed:
		return errorStyle.Render("[✗]")
	case orchestrator.TaskInProgress:
		return warningStyle.Render("[▸]")
	}
	return dimStyle.Render("[ ]")
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render("no data")
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}

func truncate(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
