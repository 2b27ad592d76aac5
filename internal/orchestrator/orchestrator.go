package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/dexter/internal/logging"
)

// Orchestrator runs queries through the phase state machine. It holds no
// per-run state, so one Orchestrator may serve concurrent Run calls.
type Orchestrator struct {
	cfg       RunConfig
	planner   *Planner
	executor  *Executor
	validator *Validator
	answerer  *Answerer

	logger   *logging.Logger
	tracer   trace.Tracer
	sink     EventSink
	progress ProgressCallback
	newID    func() string
	known    map[string]struct{}

	redactor Redactor
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer for phase spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithEventSink publishes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithRedactor scrubs tool output before it is logged or shown to the model.
func WithRedactor(r Redactor) Option {
	return func(o *Orchestrator) { o.redactor = r }
}

// WithProgress registers a callback invoked after every event.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) { o.progress = cb }
}

// WithIDGenerator overrides run ID generation. IDs must be alphanumeric,
// hyphen or underscore.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// New creates an Orchestrator. If tools implements ToolCatalog its
// descriptions are used in the planning and action prompts.
func New(reasoning ReasoningPort, tools ToolPort, cfg RunConfig, opts ...Option) (*Orchestrator, error) {
	if reasoning == nil {
		return nil, fmt.Errorf("%w: reasoning port is required", ErrInvalidConfig)
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool port is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:    cfg,
		logger: logging.NewNop(),
		tracer: defaultTracer(),
		newID:  uuid.NewString,
		known:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(o)
	}

	var specs []ToolSpec
	if catalog, ok := tools.(ToolCatalog); ok {
		specs = catalog.Tools()
	}
	for _, s := range specs {
		o.known[s.Name] = struct{}{}
	}

	o.planner = NewPlanner(reasoning, specs)
	o.executor = NewExecutor(reasoning, tools, specs, o.redactor, cfg.ToolTimeout)
	o.validator = NewValidator(reasoning)
	o.answerer = NewAnswerer(reasoning)
	o.logger = o.logger.Named("orchestrator")
	return o, nil
}

// Config returns the run configuration.
func (o *Orchestrator) Config() RunConfig {
	return o.cfg
}

// run is the state of one orchestration. Only the goroutine inside Run touches it.
type run struct {
	id      string
	query   string
	phase   Phase
	ledger  *Ledger
	active  int
	log     []OutputEntry
	steps   int
	quota   *QuotaGuard
	history *InvocationHistory
	started time.Time

	// notes holds rejected-call descriptions per task ID.
	notes map[int][]string
	// validationFailures counts validator reasoning failures per task ID.
	validationFailures map[int]int
	// cycleCharged is set once the current execute/validate cycle cost an attempt.
	cycleCharged    bool
	budgetExhausted bool

	answer string
	reason error

	progress ProgressCallback
}

// RunOption adjusts a single Run call.
type RunOption func(*runOptions)

type runOptions struct {
	id       string
	progress ProgressCallback
}

// WithRunID fixes the ID of the run instead of generating one.
func WithRunID(id string) RunOption {
	return func(ro *runOptions) { ro.id = id }
}

// WithRunProgress registers a callback for this run only. It is invoked
// after the Orchestrator-wide callback, if any.
func WithRunProgress(cb ProgressCallback) RunOption {
	return func(ro *runOptions) { ro.progress = cb }
}

var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// Run executes query to a terminal phase. The returned error is non-nil only
// for a blank query, an invalid run ID or an ABORTED run, in which case it
// wraps ErrPlanningFailed or ErrAnswerSynthesisFailed and the Result still
// carries the partial log.
func (o *Orchestrator) Run(ctx context.Context, query string, opts ...RunOption) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.id == "" {
		ro.id = o.newID()
	}
	if !runIDPattern.MatchString(ro.id) {
		return nil, fmt.Errorf("%w: invalid run id %q", ErrInvalidConfig, ro.id)
	}

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	r := &run{
		id:                 ro.id,
		query:              query,
		progress:           ro.progress,
		phase:              PhasePlanning,
		active:             -1,
		quota:              NewQuotaGuard(o.cfg.Quotas),
		history:            NewInvocationHistory(o.cfg.PerTaskAttemptBudget),
		started:            time.Now(),
		notes:              map[int][]string{},
		validationFailures: map[int]int{},
	}

	ctx = logging.WithRunID(ctx, r.id)
	ctx, span := o.startSpan(ctx, "orchestrator.run", r)

	o.logger.Info(ctx, "run started", zap.Int("global_step_budget", o.cfg.GlobalStepBudget))
	o.emit(ctx, r, EventRunStarted, 0, "", query)

	for !r.phase.IsTerminal() {
		var next Phase
		switch r.phase {
		case PhasePlanning:
			next = o.plan(ctx, r)
		case PhaseRouting:
			next = o.route(ctx, r)
		case PhaseExecuting:
			next = o.execute(ctx, r)
		case PhaseValidating:
			next = o.validate(ctx, r)
		case PhaseAnswering:
			next = o.synthesize(ctx, r)
		}
		if err := o.transition(ctx, r, next); err != nil {
			endSpan(span, err)
			return nil, err
		}
	}

	result := o.result(r)
	span.SetAttributes(
		attribute.String("run.status", string(result.Status)),
		attribute.Int("run.steps", r.steps),
		attribute.Bool("run.budget_exhausted", r.budgetExhausted),
	)

	RunsTotal.WithLabelValues(string(result.Status)).Inc()
	RunDuration.Observe(result.Duration.Seconds())
	StepsPerRun.Observe(float64(r.steps))

	if r.phase == PhaseAborted {
		endSpan(span, r.reason)
		o.logger.Warn(ctx, "run aborted", zap.Error(r.reason), zap.Int("steps", r.steps))
		o.emit(ctx, r, EventRunAborted, 0, "", r.reason.Error())
		return result, r.reason
	}

	o.logger.Info(ctx, "run completed",
		zap.Int("steps", r.steps),
		zap.Bool("budget_exhausted", r.budgetExhausted),
		zap.Duration("duration", result.Duration),
	)
	o.emit(ctx, r, EventRunCompleted, 0, "", "")
	span.End()
	return result, nil
}

func (o *Orchestrator) transition(ctx context.Context, r *run, next Phase) error {
	if !r.phase.CanTransitionTo(next) {
		return fmt.Errorf("orchestrator: invalid phase transition %s -> %s", r.phase, next)
	}
	o.logger.Debug(ctx, "phase transition",
		zap.String("from", string(r.phase)),
		zap.String("to", string(next)),
	)
	r.phase = next
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, r *run) Phase {
	pctx, span := o.startSpan(ctx, "orchestrator.plan", r)
	cctx, cancel := o.callContext(pctx, o.cfg.ReasoningTimeout)
	descriptions, err := o.planner.Plan(cctx, r.query)
	cancel()

	if err != nil && o.cfg.PlanFallback {
		o.logger.Warn(ctx, "planning failed, using query as single task", zap.Error(err))
		descriptions, err = []string{r.query}, nil
	}
	if err == nil {
		r.ledger, err = NewLedger(descriptions, o.cfg.PerTaskAttemptBudget)
	}
	if err == nil {
		span.SetAttributes(attribute.Int("plan.tasks", r.ledger.Len()))
	}
	endSpan(span, err)

	if err != nil {
		r.reason = err
		if !errors.Is(err, ErrPlanningFailed) {
			r.reason = fmt.Errorf("%w: %w", ErrPlanningFailed, err)
		}
		return PhaseAborted
	}

	r.active = 0
	o.logger.Info(ctx, "plan created", zap.Int("tasks", r.ledger.Len()))
	o.emit(ctx, r, EventPlanned, 0, "", fmt.Sprintf("%d tasks", r.ledger.Len()))
	return PhaseRouting
}

func (o *Orchestrator) route(ctx context.Context, r *run) Phase {
	idx := r.ledger.Next(r.active)
	if idx < 0 {
		r.active = -1
		return PhaseAnswering
	}

	// Next only returns pending or in-progress tasks, so Start cannot fail.
	_ = r.ledger.Start(idx)
	r.active = idx
	r.cycleCharged = false

	task := r.ledger.Task(idx)
	o.logger.Info(logging.WithTaskID(ctx, task.ID), "task started", zap.String("description", task.Description))
	o.emit(ctx, r, EventTaskStarted, task.ID, "", task.Description)
	return PhaseExecuting
}

func (o *Orchestrator) execute(ctx context.Context, r *run) Phase {
	if !o.takeStep(ctx, r) {
		return PhaseAnswering
	}

	task := r.ledger.Task(r.active)
	tctx := logging.WithTaskID(ctx, task.ID)
	sctx, span := o.startSpan(tctx, "orchestrator.execute", r)
	cctx, cancel := o.callContext(sctx, o.cfg.ReasoningTimeout)
	exec := o.executor.Execute(cctx, ExecutorInput{
		Query:   r.query,
		Task:    task,
		Recent:  r.recent(o.cfg.ContextWindow),
		Prior:   r.entriesFor(task.ID),
		Notes:   r.notes[task.ID],
		Quota:   r.quota,
		History: r.history,
	})
	cancel()

	span.SetAttributes(
		attribute.String("tool.name", exec.Tool),
		attribute.String("execution.outcome", string(exec.Kind)),
	)
	endSpan(span, exec.Err)
	ToolCallsTotal.WithLabelValues(toolLabelFor(exec, o.known), string(exec.Kind)).Inc()
	r.cycleCharged = false

	switch exec.Kind {
	case ExecSucceeded:
		r.append(OutputEntry{TaskID: task.ID, Tool: exec.Tool, Kind: EntryOutput, Output: exec.Output})
		o.logger.Info(tctx, "tool succeeded", zap.String("tool", exec.Tool), zap.Int("output_len", len(exec.Output)))
		o.emit(ctx, r, EventToolInvoked, task.ID, exec.Tool, exec.Canonical)
		return PhaseValidating

	case ExecToolFailed:
		r.append(OutputEntry{TaskID: task.ID, Tool: exec.Tool, Kind: EntryFailure, Error: o.redact(exec.Err.Error())})
		o.logger.Warn(tctx, "tool call failed", zap.String("tool", exec.Tool), zap.Error(exec.Err))
		typ := EventToolInvoked
		if !exec.Invoked() {
			// the selection itself failed, no tool ran
			typ = EventToolRejected
		}
		o.emit(ctx, r, typ, task.ID, exec.Tool, o.redact(exec.Err.Error()))

	case ExecLoopDetected, ExecQuotaExceeded:
		note := fmt.Sprintf("%s %s: %v", exec.Tool, exec.Kind, exec.Err)
		r.notes[task.ID] = append(r.notes[task.ID], note)
		o.logger.Warn(tctx, "tool call rejected", zap.String("tool", exec.Tool), zap.String("reason", string(exec.Kind)))
		o.emit(ctx, r, EventToolRejected, task.ID, exec.Tool, string(exec.Kind))
	}

	if o.charge(tctx, r) {
		return PhaseRouting
	}
	return PhaseValidating
}

func (o *Orchestrator) validate(ctx context.Context, r *run) Phase {
	if !o.takeStep(ctx, r) {
		return PhaseAnswering
	}

	task := r.ledger.Task(r.active)
	tctx := logging.WithTaskID(ctx, task.ID)
	sctx, span := o.startSpan(tctx, "orchestrator.validate", r)
	cctx, cancel := o.callContext(sctx, o.cfg.ReasoningTimeout)
	verdict, err := o.validator.Validate(cctx, task, r.entriesFor(task.ID))
	cancel()
	span.SetAttributes(attribute.String("validation.verdict", string(verdict)))
	endSpan(span, err)

	if err != nil {
		r.validationFailures[task.ID]++
		if r.validationFailures[task.ID] > 1 {
			_ = r.ledger.Fail(r.active)
			o.resolved(tctx, r, task.ID, TaskFailed, "validation failed repeatedly")
			return PhaseRouting
		}
		o.logger.Warn(tctx, "validation failed, retrying task", zap.Error(err))
		verdict = VerdictRetry
	}

	if verdict == VerdictComplete {
		_ = r.ledger.Complete(r.active)
		o.resolved(tctx, r, task.ID, TaskDone, "")
		return PhaseRouting
	}

	if !r.cycleCharged && o.charge(tctx, r) {
		return PhaseRouting
	}
	return PhaseExecuting
}

// synthesize runs the Answerer outside the run deadline so a timeout that
// fires mid-answer does not discard the gathered output. With no answer
// timeout configured the run context is kept unless it is already done.
func (o *Orchestrator) synthesize(ctx context.Context, r *run) Phase {
	actx := ctx
	if o.cfg.AnswerTimeout > 0 || ctx.Err() != nil {
		actx = context.WithoutCancel(ctx)
	}
	sctx, span := o.startSpan(actx, "orchestrator.answer", r)
	cctx, cancel := o.callContext(sctx, o.cfg.AnswerTimeout)
	answer, err := o.answerer.Answer(cctx, r.query, r.snapshotLog(), r.ledger.Tasks(), r.budgetExhausted)
	cancel()
	endSpan(span, err)

	if err != nil {
		r.reason = err
		return PhaseAborted
	}
	r.answer = answer
	return PhaseDone
}

// takeStep checks the global budget and the run context before a step and
// consumes one step when allowed.
func (o *Orchestrator) takeStep(ctx context.Context, r *run) bool {
	if r.steps >= o.cfg.GlobalStepBudget || ctx.Err() != nil {
		if !r.budgetExhausted {
			r.budgetExhausted = true
			BudgetExhaustedTotal.Inc()
			msg := "global step budget exhausted"
			if ctx.Err() != nil {
				msg = "run deadline reached"
			}
			o.logger.Warn(ctx, msg, zap.Int("steps", r.steps), zap.Int("unresolved_tasks", len(r.ledger.Unresolved())))
			o.emit(ctx, r, EventBudgetExhausted, 0, "", msg)
		}
		return false
	}
	r.steps++
	return true
}

// charge counts one attempt against the active task and reports whether the
// task failed as a result.
func (o *Orchestrator) charge(ctx context.Context, r *run) bool {
	r.cycleCharged = true
	failed, err := r.ledger.ChargeAttempt(r.active)
	if err != nil {
		o.logger.Error(ctx, "attempt accounting failed", zap.Error(err))
		return false
	}
	if failed {
		o.resolved(ctx, r, r.ledger.Task(r.active).ID, TaskFailed, "attempt budget exhausted")
	}
	return failed
}

func (o *Orchestrator) resolved(ctx context.Context, r *run, taskID int, status TaskStatus, why string) {
	TasksTotal.WithLabelValues(string(status)).Inc()
	if status == TaskFailed {
		o.logger.Warn(ctx, "task failed", zap.String("reason", why))
		o.emit(ctx, r, EventTaskFailed, taskID, "", why)
		return
	}
	o.logger.Info(ctx, "task completed")
	o.emit(ctx, r, EventTaskCompleted, taskID, "", "")
}

func (o *Orchestrator) callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (o *Orchestrator) emit(ctx context.Context, r *run, typ EventType, taskID int, tool, msg string) {
	ev := Event{
		RunID:   r.id,
		Type:    typ,
		Phase:   r.phase,
		TaskID:  taskID,
		Tool:    tool,
		Message: o.redact(msg),
		Steps:   r.steps,
		At:      time.Now().UTC(),
	}
	if o.sink != nil {
		if err := o.sink.Publish(context.WithoutCancel(ctx), ev); err != nil {
			o.logger.Warn(ctx, "event publish failed", zap.String("event", string(typ)), zap.Error(err))
		}
	}
	if o.progress == nil && r.progress == nil {
		return
	}
	snap := r.snapshot()
	if o.progress != nil {
		o.progress(ev, snap)
	}
	if r.progress != nil {
		r.progress(ev, snap)
	}
}

func (o *Orchestrator) redact(s string) string {
	if o.redactor == nil {
		return s
	}
	return o.redactor.Redact(s)
}

func (o *Orchestrator) result(r *run) *Result {
	res := &Result{
		RunID:           r.id,
		Query:           r.query,
		Steps:           r.steps,
		BudgetExhausted: r.budgetExhausted,
		Duration:        time.Since(r.started),
	}
	if r.ledger != nil {
		res.Tasks = r.ledger.Tasks()
	}
	if r.phase == PhaseDone {
		res.Status = StatusDone
		res.Answer = r.answer
		return res
	}
	res.Status = StatusAborted
	res.Reason = r.reason.Error()
	res.PartialOutputLog = r.snapshotLog()
	return res
}

func (r *run) append(e OutputEntry) {
	e.At = time.Now().UTC()
	r.log = append(r.log, e)
}

func (r *run) entriesFor(taskID int) []OutputEntry {
	var out []OutputEntry
	for _, e := range r.log {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

func (r *run) recent(n int) []OutputEntry {
	if n <= 0 || len(r.log) == 0 {
		return nil
	}
	start := len(r.log) - n
	if start < 0 {
		start = 0
	}
	out := make([]OutputEntry, len(r.log)-start)
	copy(out, r.log[start:])
	return out
}

func (r *run) snapshotLog() []OutputEntry {
	out := make([]OutputEntry, len(r.log))
	copy(out, r.log)
	return out
}

func (r *run) snapshot() Snapshot {
	snap := Snapshot{
		RunID:       r.id,
		Query:       r.query,
		Phase:       r.phase,
		ActiveIndex: r.active,
		Steps:       r.steps,
		OutputLog:   r.snapshotLog(),
	}
	if r.ledger != nil {
		snap.Tasks = r.ledger.Tasks()
	}
	if r.quota != nil {
		snap.Quotas = r.quota.Snapshot()
	}
	return snap
}
