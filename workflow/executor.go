package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/types"
)

const tracerName = "github.com/BaSui01/releaseflow/workflow"

// Result is the outcome of a run: the last context reached and the report.
type Result[C any, S any] struct {
	Context *Context[C, S]
	Report  *Report
}

type executorOptions struct {
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	newID   func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger *zap.Logger) ExecutorOption {
	return func(o *executorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ExecutorOption {
	return func(o *executorOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run and task spans.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(o *executorOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithRunIDGenerator overrides how execution ids are generated.
func WithRunIDGenerator(fn func() string) ExecutorOption {
	return func(o *executorOptions) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// Executor walks a plan sequentially, threading the context through every
// task and undoing completed work when a later step fails.
type Executor[C any, S any] struct {
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer
	newID   func() string
}

// NewExecutor creates an executor.
func NewExecutor[C any, S any](opts ...ExecutorOption) *Executor[C, S] {
	o := executorOptions{
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer(tracerName),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Executor[C, S]{
		logger:  o.logger.With(zap.String("component", "executor")),
		metrics: o.metrics,
		tracer:  o.tracer,
		newID:   o.newID,
	}
}

// RunTasks builds a plan from standalone tasks and runs it.
func (e *Executor[C, S]) RunTasks(ctx context.Context, tasks []*Task[C, S], initial *Context[C, S]) (*Result[C, S], error) {
	return e.RunGraph(ctx, NewGraphBuilder[C, S]().AddTasks(tasks...), initial)
}

// RunGraph builds the plan and runs it. A construction error returns before
// any task executes, with a failed report and no rollback.
func (e *Executor[C, S]) RunGraph(ctx context.Context, b *GraphBuilder[C, S], initial *Context[C, S]) (*Result[C, S], error) {
	plan, err := b.withFallbackLogger(e.logger).Build()
	if err != nil {
		report := newReport(e.newID())
		nerr := types.Normalize(err, "")
		report.recordFailed("", nerr, 0)
		report.Duration = time.Since(report.StartedAt)
		e.logger.Error("task graph rejected", zap.Error(nerr))
		return &Result[C, S]{Context: initial, Report: report}, nerr
	}
	return e.Run(ctx, plan, initial)
}

// Run executes a plan. The result is never nil; the error is the normalized
// forward failure, if any.
func (e *Executor[C, S]) Run(ctx context.Context, plan *Plan[C, S], initial *Context[C, S]) (*Result[C, S], error) {
	r := &run[C, S]{
		exec:     e,
		plan:     plan,
		current:  initial,
		report:   newReport(e.newID()),
		visited:  make(map[string]bool),
		rollback: NewRollbackManager[C, S](e.logger),
	}
	r.rollback.metrics = e.metrics

	ctx = types.WithRunID(ctx, r.report.ExecutionID)
	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("workflow.execution_id", r.report.ExecutionID),
	))
	defer span.End()

	err := r.execute(ctx)

	r.report.Duration = time.Since(r.report.StartedAt)
	e.metrics.RecordRun(err == nil, r.report.Duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("workflow run failed",
			zap.String("execution_id", r.report.ExecutionID),
			zap.Int("executed", len(r.report.Executed)),
			zap.Bool("rollback_ran", r.report.RollbackRan),
			zap.Duration("duration", r.report.Duration),
			zap.Error(err),
		)
		return &Result[C, S]{Context: r.current, Report: r.report}, err
	}

	e.logger.Info("workflow run completed",
		zap.String("execution_id", r.report.ExecutionID),
		zap.Int("executed", len(r.report.Executed)),
		zap.Int("skipped", len(r.report.Skipped)),
		zap.Duration("duration", r.report.Duration),
	)
	return &Result[C, S]{Context: r.current, Report: r.report}, nil
}

// run holds the state of a single walk.
type run[C any, S any] struct {
	exec     *Executor[C, S]
	plan     *Plan[C, S]
	current  *Context[C, S]
	report   *Report
	visited  map[string]bool
	rollback *RollbackManager[C, S]
}

func (r *run[C, S]) execute(ctx context.Context) error {
	if r.plan == nil {
		return r.fail(ctx, "", types.Invalid("plan cannot be nil"), 0)
	}
	if r.current == nil {
		return r.fail(ctx, "", types.Invalid("initial context cannot be nil"), 0)
	}

	r.exec.logger.Info("starting workflow run",
		zap.String("execution_id", r.report.ExecutionID),
		zap.Strings("order", r.plan.Order()),
	)

	remaining := r.plan.Tasks()
	for len(remaining) > 0 {
		task := remaining[0]
		remaining = remaining[1:]

		if err := ctx.Err(); err != nil {
			return r.fail(ctx, "", types.Normalize(err, ""), 0)
		}

		next, err := r.step(ctx, task, remaining)
		if err != nil {
			return err
		}
		remaining = next
	}

	r.rollback.Clear()
	r.report.Success = true
	return nil
}

// step visits one task and returns the walk that follows it.
func (r *run[C, S]) step(ctx context.Context, task *Task[C, S], remaining []*Task[C, S]) ([]*Task[C, S], error) {
	r.visited[task.id] = true
	log := r.exec.logger.With(zap.String("task_id", task.id))

	ctx = types.WithTaskID(ctx, task.id)
	ctx, span := r.exec.tracer.Start(ctx, "workflow.task", trace.WithAttributes(
		attribute.String("workflow.task.id", task.id),
		attribute.String("workflow.task.kind", string(task.metadata.Kind)),
	))
	defer span.End()

	start := time.Now()

	decision, err := r.evaluateSkip(ctx, task)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, r.fail(ctx, task.id, types.Normalize(err, task.id), time.Since(start))
	}

	if decision.Redirect && !decision.Skip {
		err := types.Invalid("task %s redirects without skipping", task.id).WithTask(task.id)
		return nil, r.fail(ctx, task.id, err, time.Since(start))
	}

	if decision.Skip {
		reason := decision.Reason
		if reason == "" {
			reason = "skip predicate returned true"
		}

		var targets []*Task[C, S]
		if decision.Redirect {
			var berr *types.Error
			if targets, berr = r.resolveBranch(task.id, decision.Next); berr != nil {
				return nil, r.fail(ctx, task.id, berr, time.Since(start))
			}
		}

		log.Info("skipping task", zap.String("reason", reason))
		span.AddEvent("skipped", trace.WithAttributes(attribute.String("reason", reason)))
		r.recordSkipped(task.id, reason, time.Since(start))

		if !decision.Redirect {
			return remaining, nil
		}
		return r.redirect(task.id, reason, remaining, targets), nil
	}

	for _, dep := range task.dependencies {
		if !r.visited[dep] {
			err := types.Invalid("task %s reached before its dependency %s", task.id, dep).WithTask(task.id)
			return nil, r.fail(ctx, task.id, err, time.Since(start))
		}
	}

	log.Info("executing task", zap.String("description", task.description))

	before := r.current
	after, err := r.invoke(ctx, task)
	if err == nil && after == nil {
		err = types.Invalid("task %s returned a nil context", task.id)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, r.fail(ctx, task.id, types.Normalize(err, task.id), time.Since(start))
	}

	r.current = after
	if task.CanUndo() {
		if err := r.rollback.Push(task, before); err != nil {
			return nil, r.fail(ctx, task.id, types.Normalize(err, task.id), time.Since(start))
		}
	}

	// Resolve the branch first so a bad target leaves a single failed outcome.
	ids, err := r.nextTasks(ctx, task)
	if err != nil {
		return nil, r.fail(ctx, task.id, types.Normalize(err, task.id), time.Since(start))
	}
	var targets []*Task[C, S]
	if ids != nil {
		var berr *types.Error
		if targets, berr = r.resolveBranch(task.id, ids); berr != nil {
			return nil, r.fail(ctx, task.id, berr, time.Since(start))
		}
	}

	elapsed := time.Since(start)
	published := changedKeys(before, after)
	r.report.recordExecuted(task.id, published, elapsed)
	r.exec.metrics.RecordTask(task.id, StatusExecuted, elapsed)
	log.Debug("task executed",
		zap.Duration("duration", elapsed),
		zap.Strings("published", published),
	)

	if ids == nil {
		return remaining, nil
	}
	return r.redirect(task.id, "branched by "+task.id, remaining, targets), nil
}

// resolveBranch looks up branch targets. Unknown ids are NotFound; targets
// already visited or listed twice are Invalid.
func (r *run[C, S]) resolveBranch(from string, ids []string) ([]*Task[C, S], *types.Error) {
	targets := make([]*Task[C, S], 0, len(ids))
	chosen := make(map[string]bool, len(ids))
	for _, id := range ids {
		t, ok := r.plan.Task(id)
		if !ok {
			return nil, types.NotFound("task %s branches to unknown task %s", from, id).WithTask(from)
		}
		if r.visited[id] || chosen[id] {
			return nil, types.Invalid("task %s branches to %s which was already visited", from, id).WithTask(from)
		}
		chosen[id] = true
		targets = append(targets, t)
	}
	return targets, nil
}

// redirect replaces the remaining walk with targets. Tasks dropped from the
// walk are recorded as skipped with the branching reason.
func (r *run[C, S]) redirect(from, reason string, remaining, targets []*Task[C, S]) []*Task[C, S] {
	chosen := make(map[string]bool, len(targets))
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		chosen[t.id] = true
		ids = append(ids, t.id)
	}

	for _, t := range remaining {
		if chosen[t.id] {
			continue
		}
		r.visited[t.id] = true
		r.recordSkipped(t.id, reason, 0)
	}

	r.exec.logger.Debug("walk redirected",
		zap.String("from", from),
		zap.Strings("next", ids),
	)
	return targets
}

func (r *run[C, S]) recordSkipped(id, reason string, d time.Duration) {
	r.report.recordSkipped(id, reason, d)
	r.exec.metrics.RecordTask(id, StatusSkipped, d)
}

// fail records the failure, runs the rollback and returns err.
func (r *run[C, S]) fail(ctx context.Context, taskID string, err *types.Error, d time.Duration) error {
	r.report.recordFailed(taskID, err, d)
	if taskID != "" {
		r.exec.metrics.RecordTask(taskID, StatusFailed, d)
	}

	r.exec.logger.Error("task failed",
		zap.String("task_id", taskID),
		zap.String("code", string(err.Code)),
		zap.Error(err),
	)

	if r.rollback.HasOperations() {
		r.report.RollbackRan = true
		outcomes, rbErr := r.rollback.Execute(context.WithoutCancel(ctx), r.current)
		r.report.Rollback = outcomes
		if rbErr != nil {
			r.exec.logger.Error("rollback incomplete", zap.Error(rbErr))
		}
	}

	return err
}

func (r *run[C, S]) evaluateSkip(ctx context.Context, task *Task[C, S]) (d SkipDecision, err error) {
	defer recoverTask(task.id, "skip predicate", &err)
	return task.ShouldSkip(ctx, r.current)
}

func (r *run[C, S]) invoke(ctx context.Context, task *Task[C, S]) (out *Context[C, S], err error) {
	defer recoverTask(task.id, "execute", &err)
	return task.Execute(ctx, r.current)
}

func (r *run[C, S]) nextTasks(ctx context.Context, task *Task[C, S]) (ids []string, err error) {
	defer recoverTask(task.id, "next tasks", &err)
	return task.NextTasks(ctx, r.current)
}

func recoverTask(taskID, stage string, err *error) {
	if p := recover(); p != nil {
		*err = types.Unexpected("%s panicked", stage).WithTask(taskID).WithCause(fmt.Errorf("%v", p))
	}
}
