package workflow

import (
	"context"
	"slices"

	"github.com/BaSui01/releaseflow/types"
)

// GroupSkipFunc decides whether a whole group is bypassed.
type GroupSkipFunc[C any, S any] func(wc *Context[C, S]) bool

// TaskGroup is a named, ordered bundle of tasks sharing an all-or-nothing
// skip predicate. Groups are flattened into their tasks before ordering.
type TaskGroup[C any, S any] struct {
	id              string
	description     string
	dependsOnGroups []string
	skipWhen        GroupSkipFunc[C, S]
	skipReason      string
	tasks           []*Task[C, S]
}

// ID returns the group id.
func (g *TaskGroup[C, S]) ID() string { return g.id }

// Description returns the group description.
func (g *TaskGroup[C, S]) Description() string { return g.description }

// DependsOnGroups returns a copy of the group dependencies.
func (g *TaskGroup[C, S]) DependsOnGroups() []string { return slices.Clone(g.dependsOnGroups) }

// Tasks returns a copy of the member tasks in declared order.
func (g *TaskGroup[C, S]) Tasks() []*Task[C, S] { return slices.Clone(g.tasks) }

// SkipReason returns the reason recorded when the group is skipped.
func (g *TaskGroup[C, S]) SkipReason() string { return g.skipReason }

// ShouldSkip evaluates the group predicate.
func (g *TaskGroup[C, S]) ShouldSkip(wc *Context[C, S]) bool {
	return g.skipWhen != nil && g.skipWhen(wc)
}

// flatten returns the member tasks rewritten for the graph: every member
// depends on its predecessor, the first member depends on every task of the
// groups listed in upstream, and the group predicate gates each member.
func (g *TaskGroup[C, S]) flatten(upstream []string) []*Task[C, S] {
	out := make([]*Task[C, S], 0, len(g.tasks))
	for i, t := range g.tasks {
		member := t
		if i == 0 && len(upstream) > 0 {
			member = member.withDependencies(upstream...)
		}
		if i > 0 {
			member = member.withDependencies(g.tasks[i-1].id)
		}
		if g.skipWhen != nil {
			member = member.withSkip(g.gate(t))
		}
		out = append(out, member)
	}
	return out
}

func (g *TaskGroup[C, S]) gate(t *Task[C, S]) SkipFunc[C, S] {
	return func(ctx context.Context, wc *Context[C, S]) (SkipDecision, error) {
		if g.skipWhen(wc) {
			return Skip(g.skipReason), nil
		}
		return t.ShouldSkip(ctx, wc)
	}
}

// GroupBuilder provides a fluent API for constructing task groups. Build
// fails closed on a missing description or an empty task list.
type GroupBuilder[C any, S any] struct {
	group TaskGroup[C, S]
}

// NewGroup starts building a group with the given id.
func NewGroup[C any, S any](id string) *GroupBuilder[C, S] {
	return &GroupBuilder[C, S]{group: TaskGroup[C, S]{id: id}}
}

// Describe sets the group description.
func (b *GroupBuilder[C, S]) Describe(desc string) *GroupBuilder[C, S] {
	b.group.description = desc
	return b
}

// DependsOnGroups adds group-level dependencies.
func (b *GroupBuilder[C, S]) DependsOnGroups(ids ...string) *GroupBuilder[C, S] {
	b.group.dependsOnGroups = appendUnique(b.group.dependsOnGroups, ids...)
	return b
}

// SkipWhen sets the group predicate and the reason reported for its members.
func (b *GroupBuilder[C, S]) SkipWhen(fn GroupSkipFunc[C, S], reason string) *GroupBuilder[C, S] {
	b.group.skipWhen = fn
	b.group.skipReason = reason
	return b
}

// Add appends member tasks.
func (b *GroupBuilder[C, S]) Add(tasks ...*Task[C, S]) *GroupBuilder[C, S] {
	b.group.tasks = append(b.group.tasks, tasks...)
	return b
}

// Build validates the group and returns it.
func (b *GroupBuilder[C, S]) Build() (*TaskGroup[C, S], error) {
	g := b.group
	if g.id == "" {
		return nil, types.Invalid("group id is required")
	}
	if g.description == "" {
		return nil, types.Invalid("group %s has no description", g.id)
	}
	if len(g.tasks) == 0 {
		return nil, types.Invalid("group %s has no tasks", g.id)
	}
	for i, t := range g.tasks {
		if t == nil {
			return nil, types.Invalid("group %s has a nil task at position %d", g.id, i)
		}
	}
	if g.skipWhen != nil && g.skipReason == "" {
		g.skipReason = "group " + g.id + " skipped"
	}
	g.tasks = slices.Clone(g.tasks)
	g.dependsOnGroups = slices.Clone(g.dependsOnGroups)
	return &g, nil
}
