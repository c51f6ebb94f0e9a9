package workflow

import (
	"context"
	"slices"
	"time"

	"github.com/BaSui01/releaseflow/types"
)

// TaskKind classifies what a task does. Informational only.
type TaskKind string

const (
	// TaskKindValidation checks a precondition
	TaskKindValidation TaskKind = "validation"
	// TaskKindMutation changes external state
	TaskKindMutation TaskKind = "mutation"
	// TaskKindNotification informs an external party
	TaskKindNotification TaskKind = "notification"
	// TaskKindQuery reads external state
	TaskKindQuery TaskKind = "query"
)

// Phase places a task in the coarse release timeline. Informational only.
type Phase string

const (
	PhaseSetup   Phase = "setup"
	PhaseMain    Phase = "main"
	PhaseCleanup Phase = "cleanup"
)

// Metadata is consumed for ordering tie-breaks and reporting, never for
// control flow.
type Metadata struct {
	Kind      TaskKind      `json:"kind" yaml:"kind"`
	Phase     Phase         `json:"phase" yaml:"phase"`
	Priority  int           `json:"priority" yaml:"priority"`
	Retryable bool          `json:"retryable" yaml:"retryable"`
	Tags      []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SkipDecision is the outcome of a skip predicate.
//
// When Skip and Redirect are both set the remaining walk is replaced by Next,
// resolved by id against the whole plan. A redirect with an empty Next ends
// the walk. Redirect without Skip is rejected as Invalid.
type SkipDecision struct {
	Skip     bool
	Reason   string
	Redirect bool
	Next     []string
}

// Proceed lets the task run.
func Proceed() SkipDecision {
	return SkipDecision{}
}

// Skip bypasses the task and continues in declared order.
func Skip(reason string) SkipDecision {
	return SkipDecision{Skip: true, Reason: reason}
}

// SkipTo bypasses the task and continues with the given tasks only.
func SkipTo(reason string, next ...string) SkipDecision {
	return SkipDecision{Skip: true, Reason: reason, Redirect: true, Next: slices.Clone(next)}
}

// SkipFunc decides, immediately before execution, whether a task is bypassed.
type SkipFunc[C any, S any] func(ctx context.Context, wc *Context[C, S]) (SkipDecision, error)

// ExecuteFunc performs the task and returns the next snapshot.
type ExecuteFunc[C any, S any] func(ctx context.Context, wc *Context[C, S]) (*Context[C, S], error)

// UndoFunc compensates a successful execute. It receives the most recent
// snapshot of the run, not the one the task started from.
type UndoFunc[C any, S any] func(ctx context.Context, wc *Context[C, S]) error

// NextFunc computes the ids that replace the remaining walk once the task has
// executed. A nil slice keeps the declared order.
type NextFunc[C any, S any] func(ctx context.Context, wc *Context[C, S]) ([]string, error)

// Task is a named unit of work. It is immutable once built.
type Task[C any, S any] struct {
	id           string
	description  string
	dependencies []string
	metadata     Metadata
	shouldSkip   SkipFunc[C, S]
	execute      ExecuteFunc[C, S]
	undo         UndoFunc[C, S]
	next         NextFunc[C, S]
}

// ID returns the task id.
func (t *Task[C, S]) ID() string { return t.id }

// Description returns the human-readable description.
func (t *Task[C, S]) Description() string { return t.description }

// Dependencies returns a copy of the static dependency ids.
func (t *Task[C, S]) Dependencies() []string { return slices.Clone(t.dependencies) }

// Metadata returns a copy of the task metadata.
func (t *Task[C, S]) Metadata() Metadata {
	m := t.metadata
	m.Tags = slices.Clone(m.Tags)
	return m
}

// CanUndo reports whether the task is rollback-capable.
func (t *Task[C, S]) CanUndo() bool { return t.undo != nil }

// IsController reports whether the task computes its successors at run time.
func (t *Task[C, S]) IsController() bool { return t.next != nil }

// ShouldSkip evaluates the skip predicate. Tasks without one always proceed.
func (t *Task[C, S]) ShouldSkip(ctx context.Context, wc *Context[C, S]) (SkipDecision, error) {
	if t.shouldSkip == nil {
		return Proceed(), nil
	}
	return t.shouldSkip(ctx, wc)
}

// Execute runs the task body.
func (t *Task[C, S]) Execute(ctx context.Context, wc *Context[C, S]) (*Context[C, S], error) {
	return t.execute(ctx, wc)
}

// RunUndo invokes the compensating action.
func (t *Task[C, S]) RunUndo(ctx context.Context, wc *Context[C, S]) error {
	if t.undo == nil {
		return types.InvalidOperation("task %s has no undo", t.id).WithTask(t.id)
	}
	return t.undo(ctx, wc)
}

// NextTasks evaluates the controller function, if any.
func (t *Task[C, S]) NextTasks(ctx context.Context, wc *Context[C, S]) ([]string, error) {
	if t.next == nil {
		return nil, nil
	}
	return t.next(ctx, wc)
}

// withSkip returns a copy of t with a different skip predicate. Used when a
// group wraps its members.
func (t *Task[C, S]) withSkip(fn SkipFunc[C, S]) *Task[C, S] {
	clone := *t
	clone.shouldSkip = fn
	return &clone
}

// withDependencies returns a copy of t with extra dependencies appended.
func (t *Task[C, S]) withDependencies(ids ...string) *Task[C, S] {
	clone := *t
	clone.dependencies = appendUnique(slices.Clone(t.dependencies), ids...)
	return &clone
}

// TaskBuilder provides a fluent API for constructing tasks.
type TaskBuilder[C any, S any] struct {
	task Task[C, S]
}

// NewTask starts building a task with the given id.
func NewTask[C any, S any](id string) *TaskBuilder[C, S] {
	return &TaskBuilder[C, S]{
		task: Task[C, S]{
			id:       id,
			metadata: Metadata{Kind: TaskKindMutation, Phase: PhaseMain},
		},
	}
}

// Describe sets the description.
func (b *TaskBuilder[C, S]) Describe(desc string) *TaskBuilder[C, S] {
	b.task.description = desc
	return b
}

// DependsOn adds static dependencies.
func (b *TaskBuilder[C, S]) DependsOn(ids ...string) *TaskBuilder[C, S] {
	b.task.dependencies = appendUnique(b.task.dependencies, ids...)
	return b
}

// Kind sets the task kind.
func (b *TaskBuilder[C, S]) Kind(kind TaskKind) *TaskBuilder[C, S] {
	b.task.metadata.Kind = kind
	return b
}

// Phase sets the task phase.
func (b *TaskBuilder[C, S]) Phase(phase Phase) *TaskBuilder[C, S] {
	b.task.metadata.Phase = phase
	return b
}

// Priority sets the ordering priority; higher runs first among ready siblings.
func (b *TaskBuilder[C, S]) Priority(p int) *TaskBuilder[C, S] {
	b.task.metadata.Priority = p
	return b
}

// Retryable marks the task as idempotent on retry.
func (b *TaskBuilder[C, S]) Retryable(r bool) *TaskBuilder[C, S] {
	b.task.metadata.Retryable = r
	return b
}

// Tags adds tags.
func (b *TaskBuilder[C, S]) Tags(tags ...string) *TaskBuilder[C, S] {
	b.task.metadata.Tags = appendUnique(b.task.metadata.Tags, tags...)
	return b
}

// Timeout records a timeout hint for the task body.
func (b *TaskBuilder[C, S]) Timeout(d time.Duration) *TaskBuilder[C, S] {
	b.task.metadata.Timeout = d
	return b
}

// SkipWhen sets the skip predicate.
func (b *TaskBuilder[C, S]) SkipWhen(fn SkipFunc[C, S]) *TaskBuilder[C, S] {
	b.task.shouldSkip = fn
	return b
}

// Executes sets the task body.
func (b *TaskBuilder[C, S]) Executes(fn ExecuteFunc[C, S]) *TaskBuilder[C, S] {
	b.task.execute = fn
	return b
}

// Undoes sets the compensating action.
func (b *TaskBuilder[C, S]) Undoes(fn UndoFunc[C, S]) *TaskBuilder[C, S] {
	b.task.undo = fn
	return b
}

// NextTasks turns the task into a controller.
func (b *TaskBuilder[C, S]) NextTasks(fn NextFunc[C, S]) *TaskBuilder[C, S] {
	b.task.next = fn
	return b
}

// Build validates the task and returns it.
func (b *TaskBuilder[C, S]) Build() (*Task[C, S], error) {
	t := b.task
	if t.id == "" {
		return nil, types.Invalid("task id is required")
	}
	if t.description == "" {
		return nil, types.Invalid("task %s has no description", t.id).WithTask(t.id)
	}
	if t.execute == nil {
		return nil, types.Invalid("task %s has no execute function", t.id).WithTask(t.id)
	}
	t.dependencies = slices.Clone(t.dependencies)
	t.metadata.Tags = slices.Clone(t.metadata.Tags)
	return &t, nil
}

// MustBuild is Build that panics on error. Intended for static task tables.
func (b *TaskBuilder[C, S]) MustBuild() *Task[C, S] {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}

// Passthrough is an execute function that returns the context unchanged.
// Controller and terminal tasks use it.
func Passthrough[C any, S any](_ context.Context, wc *Context[C, S]) (*Context[C, S], error) {
	return wc, nil
}

func appendUnique(dst []string, ids ...string) []string {
	for _, id := range ids {
		if id != "" && !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}
