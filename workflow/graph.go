package workflow

import (
	"container/heap"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/types"
)

// entry is either a standalone task or a group, kept in declaration order.
type entry[C any, S any] struct {
	task  *Task[C, S]
	group *TaskGroup[C, S]
}

// GraphBuilder validates a task set and produces a deterministic Plan.
type GraphBuilder[C any, S any] struct {
	entries   []entry[C, S]
	logger    *zap.Logger
	hasLogger bool
}

// NewGraphBuilder creates an empty graph builder.
func NewGraphBuilder[C any, S any]() *GraphBuilder[C, S] {
	return &GraphBuilder[C, S]{
		logger: zap.NewNop(),
	}
}

// WithLogger sets a custom logger
func (b *GraphBuilder[C, S]) WithLogger(logger *zap.Logger) *GraphBuilder[C, S] {
	if logger != nil {
		b.logger = logger.With(zap.String("component", "graph_builder"))
		b.hasLogger = true
	}
	return b
}

// withFallbackLogger returns b when it already has a logger, otherwise a
// shallow copy using logger. b itself is never modified.
func (b *GraphBuilder[C, S]) withFallbackLogger(logger *zap.Logger) *GraphBuilder[C, S] {
	if b.hasLogger || logger == nil {
		return b
	}
	cp := *b
	cp.entries = slices.Clone(b.entries)
	return cp.WithLogger(logger)
}

// AddTasks registers standalone tasks in declaration order.
func (b *GraphBuilder[C, S]) AddTasks(tasks ...*Task[C, S]) *GraphBuilder[C, S] {
	for _, t := range tasks {
		b.entries = append(b.entries, entry[C, S]{task: t})
	}
	return b
}

// AddGroups registers groups in declaration order.
func (b *GraphBuilder[C, S]) AddGroups(groups ...*TaskGroup[C, S]) *GraphBuilder[C, S] {
	for _, g := range groups {
		b.entries = append(b.entries, entry[C, S]{group: g})
	}
	return b
}

// Build flattens groups, validates the graph and orders it.
func (b *GraphBuilder[C, S]) Build() (*Plan[C, S], error) {
	tasks, err := b.flatten()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, dup := index[t.id]; dup {
			return nil, types.Invalid("duplicate task id %q", t.id).WithTask(t.id)
		}
		index[t.id] = i
	}

	for _, t := range tasks {
		for _, dep := range t.dependencies {
			if _, ok := index[dep]; !ok {
				return nil, types.NotFound("task %s depends on unknown task %s", t.id, dep).WithTask(t.id)
			}
		}
	}

	if cycle := findCycle(tasks, index); cycle != nil {
		return nil, types.Invalid("cycle detected: %s", strings.Join(cycle, " -> ")).WithTask(cycle[0])
	}

	ordered := topoOrder(tasks, index)
	plan := newPlan(ordered)

	b.logger.Debug("task graph built",
		zap.Int("tasks", len(ordered)),
		zap.Strings("order", plan.Order()),
	)

	return plan, nil
}

// flatten expands groups into member tasks, preserving declaration order.
func (b *GraphBuilder[C, S]) flatten() ([]*Task[C, S], error) {
	groups := make(map[string]*TaskGroup[C, S])
	owner := make(map[string]string)
	for _, e := range b.entries {
		if e.task == nil && e.group == nil {
			return nil, types.Invalid("nil task or group registered")
		}
		if e.group == nil {
			continue
		}
		if _, dup := groups[e.group.id]; dup {
			return nil, types.Invalid("duplicate group id %q", e.group.id)
		}
		groups[e.group.id] = e.group
		for _, t := range e.group.tasks {
			if prev, ok := owner[t.id]; ok {
				return nil, types.Invalid("task %s belongs to groups %s and %s", t.id, prev, e.group.id).WithTask(t.id)
			}
			owner[t.id] = e.group.id
		}
	}

	var out []*Task[C, S]
	for _, e := range b.entries {
		if e.task != nil {
			out = append(out, e.task)
			continue
		}

		var upstream []string
		for _, gid := range e.group.dependsOnGroups {
			dep, ok := groups[gid]
			if !ok {
				return nil, types.NotFound("group %s depends on unknown group %s", e.group.id, gid)
			}
			for _, t := range dep.tasks {
				upstream = append(upstream, t.id)
			}
		}
		out = append(out, e.group.flatten(upstream)...)
	}

	if len(out) == 0 {
		return nil, types.Invalid("graph has no tasks")
	}
	return out, nil
}

// findCycle runs a three-color DFS over dependency edges in declaration
// order and returns the first cycle found as a closed path, or nil.
func findCycle[C any, S any](tasks []*Task[C, S], index map[string]int) []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(tasks))
	var path []string
	var cycle []string

	var visit func(i int) bool
	visit = func(i int) bool {
		color[i] = gray
		path = append(path, tasks[i].id)
		for _, dep := range tasks[i].dependencies {
			j := index[dep]
			switch color[j] {
			case gray:
				start := slices.Index(path, tasks[j].id)
				cycle = append(slices.Clone(path[start:]), tasks[j].id)
				return true
			case white:
				if visit(j) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[i] = black
		return false
	}

	for i := range tasks {
		if color[i] == white && visit(i) {
			return cycle
		}
	}
	return nil
}

// readyQueue orders ready tasks by priority descending, then declaration
// index ascending.
type readyQueue struct {
	idx      []int
	priority []int
}

func (q *readyQueue) Len() int { return len(q.idx) }
func (q *readyQueue) Less(i, j int) bool {
	a, b := q.idx[i], q.idx[j]
	if q.priority[a] != q.priority[b] {
		return q.priority[a] > q.priority[b]
	}
	return a < b
}
func (q *readyQueue) Swap(i, j int) { q.idx[i], q.idx[j] = q.idx[j], q.idx[i] }
func (q *readyQueue) Push(x any)   { q.idx = append(q.idx, x.(int)) }
func (q *readyQueue) Pop() any {
	old := q.idx
	n := len(old)
	x := old[n-1]
	q.idx = old[:n-1]
	return x
}

// topoOrder is Kahn's algorithm over a validated, acyclic task set.
func topoOrder[C any, S any](tasks []*Task[C, S], index map[string]int) []*Task[C, S] {
	indeg := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	priority := make([]int, len(tasks))
	for i, t := range tasks {
		priority[i] = t.metadata.Priority
		indeg[i] = len(t.dependencies)
		for _, dep := range t.dependencies {
			j := index[dep]
			dependents[j] = append(dependents[j], i)
		}
	}

	q := &readyQueue{priority: priority}
	for i := range tasks {
		if indeg[i] == 0 {
			q.idx = append(q.idx, i)
		}
	}
	heap.Init(q)

	out := make([]*Task[C, S], 0, len(tasks))
	for q.Len() > 0 {
		n := heap.Pop(q).(int)
		out = append(out, tasks[n])
		for _, m := range dependents[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(q, m)
			}
		}
	}
	return out
}

// Plan is a validated, ordered task set ready for execution.
type Plan[C any, S any] struct {
	tasks    []*Task[C, S]
	byID     map[string]*Task[C, S]
	position map[string]int
}

func newPlan[C any, S any](ordered []*Task[C, S]) *Plan[C, S] {
	p := &Plan[C, S]{
		tasks:    ordered,
		byID:     make(map[string]*Task[C, S], len(ordered)),
		position: make(map[string]int, len(ordered)),
	}
	for i, t := range ordered {
		p.byID[t.id] = t
		p.position[t.id] = i
	}
	return p
}

// BuildPlan is shorthand for a GraphBuilder over standalone tasks.
func BuildPlan[C any, S any](tasks ...*Task[C, S]) (*Plan[C, S], error) {
	return NewGraphBuilder[C, S]().AddTasks(tasks...).Build()
}

// Tasks returns the tasks in execution order.
func (p *Plan[C, S]) Tasks() []*Task[C, S] {
	return slices.Clone(p.tasks)
}

// Task retrieves a task by id.
func (p *Plan[C, S]) Task(id string) (*Task[C, S], bool) {
	t, ok := p.byID[id]
	return t, ok
}

// Order returns the task ids in execution order.
func (p *Plan[C, S]) Order() []string {
	out := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.id
	}
	return out
}

// Len returns the number of tasks.
func (p *Plan[C, S]) Len() int {
	return len(p.tasks)
}
