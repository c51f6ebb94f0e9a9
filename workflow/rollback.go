package workflow

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/types"
)

// UndoOutcome records the result of one compensating action.
type UndoOutcome struct {
	TaskID   string        `json:"task_id" yaml:"task_id"`
	Success  bool          `json:"success" yaml:"success"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

type undoEntry[C any, S any] struct {
	task   *Task[C, S]
	before *Context[C, S]
}

// RollbackManager is the undo stack of a run. It is driven by the executor
// on a single goroutine and is not safe for concurrent use.
type RollbackManager[C any, S any] struct {
	stack   []undoEntry[C, S]
	logger  *zap.Logger
	metrics MetricsRecorder
}

// NewRollbackManager creates an empty rollback manager.
func NewRollbackManager[C any, S any](logger *zap.Logger) *RollbackManager[C, S] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RollbackManager[C, S]{
		logger:  logger.With(zap.String("component", "rollback_manager")),
		metrics: nopMetrics{},
	}
}

// Push records a successfully executed task together with the snapshot it
// started from.
func (m *RollbackManager[C, S]) Push(task *Task[C, S], before *Context[C, S]) error {
	if task == nil {
		return types.InvalidOperation("cannot push a nil task")
	}
	if !task.CanUndo() {
		return types.InvalidOperation("task %s has no undo", task.id).WithTask(task.id)
	}
	m.stack = append(m.stack, undoEntry[C, S]{task: task, before: before})
	return nil
}

// HasOperations reports whether any undo is pending.
func (m *RollbackManager[C, S]) HasOperations() bool {
	return len(m.stack) > 0
}

// Len returns the number of pending undos.
func (m *RollbackManager[C, S]) Len() int {
	return len(m.stack)
}

// Pending returns the ids of pending undos in the order they would run.
func (m *RollbackManager[C, S]) Pending() []string {
	out := make([]string, 0, len(m.stack))
	for i := len(m.stack) - 1; i >= 0; i-- {
		out = append(out, m.stack[i].task.id)
	}
	return out
}

// Clear discards pending undos without running them.
func (m *RollbackManager[C, S]) Clear() {
	m.stack = nil
}

// Execute runs every pending undo in reverse execution order against the
// most recent snapshot. A failing undo is recorded and the walk continues;
// the returned error aggregates every failure. The stack is empty afterwards.
func (m *RollbackManager[C, S]) Execute(ctx context.Context, current *Context[C, S]) ([]UndoOutcome, error) {
	if len(m.stack) == 0 {
		return nil, nil
	}

	m.logger.Info("starting rollback", zap.Int("operations", len(m.stack)))

	outcomes := make([]UndoOutcome, 0, len(m.stack))
	var errs error

	for i := len(m.stack) - 1; i >= 0; i-- {
		e := m.stack[i]
		m.logger.Info("undoing task",
			zap.String("task_id", e.task.id),
			zap.String("description", e.task.description),
		)

		start := time.Now()
		err := m.undoOne(types.WithTaskID(ctx, e.task.id), e.task, current)
		outcome := UndoOutcome{TaskID: e.task.id, Success: err == nil, Duration: time.Since(start)}

		if err != nil {
			outcome.Error = err.Error()
			errs = multierr.Append(errs, err)
			m.logger.Error("undo failed, continuing rollback",
				zap.String("task_id", e.task.id),
				zap.Duration("duration", outcome.Duration),
				zap.Error(err),
			)
		} else {
			m.logger.Debug("undo completed",
				zap.String("task_id", e.task.id),
				zap.Duration("duration", outcome.Duration),
			)
		}
		m.metrics.RecordUndo(e.task.id, err == nil, outcome.Duration)
		outcomes = append(outcomes, outcome)
	}

	m.stack = nil

	m.logger.Info("rollback finished",
		zap.Int("undone", len(outcomes)),
		zap.Int("failed", len(multierr.Errors(errs))),
	)

	return outcomes, errs
}

// undoOne isolates a single undo, turning a panic into an error.
func (m *RollbackManager[C, S]) undoOne(ctx context.Context, task *Task[C, S], current *Context[C, S]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.Unexpected("undo panicked").WithTask(task.id).WithCause(fmt.Errorf("%v", r))
		}
	}()
	if err := task.RunUndo(ctx, current); err != nil {
		return types.Normalize(err, task.id)
	}
	return nil
}
