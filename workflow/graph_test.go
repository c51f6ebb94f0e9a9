package workflow

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/releaseflow/types"
)

func TestGraphBuilder_LinearChain(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(releaseChain(nil)...)
	require.NoError(t, err)
	assert.Equal(t, []string{"preflight", "determine", "bump", "commit", "tag", "push"}, plan.Order())
	assert.Equal(t, 6, plan.Len())

	task, ok := plan.Task("tag")
	require.True(t, ok)
	assert.Equal(t, "tag", task.ID())
	_, ok = plan.Task("missing")
	assert.False(t, ok)
}

func TestGraphBuilder_DependencyBeforeDeclaration(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(
		recordingTask("push", "tag").MustBuild(),
		recordingTask("tag", "commit").MustBuild(),
		recordingTask("commit").MustBuild(),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"commit", "tag", "push"}, plan.Order())
}

func TestGraphBuilder_PriorityThenDeclarationOrder(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(
		recordingTask("root").MustBuild(),
		recordingTask("low", "root").Priority(-5).MustBuild(),
		recordingTask("first", "root").MustBuild(),
		recordingTask("high", "root").Priority(10).MustBuild(),
		recordingTask("second", "root").MustBuild(),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "high", "first", "second", "low"}, plan.Order())
}

func TestGraphBuilder_MissingDependency(t *testing.T) {
	t.Parallel()

	_, err := BuildPlan(
		recordingTask("commit").MustBuild(),
		recordingTask("tag", "commit", "bump").MustBuild(),
	)
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "task tag depends on unknown task bump")
}

func TestGraphBuilder_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tasks []*ttask
		path  string
	}{
		{
			name:  "self",
			tasks: []*ttask{recordingTask("a", "a").MustBuild()},
			path:  "a -> a",
		},
		{
			name: "two",
			tasks: []*ttask{
				recordingTask("a", "b").MustBuild(),
				recordingTask("b", "a").MustBuild(),
			},
			path: "a -> b -> a",
		},
		{
			name: "three behind a root",
			tasks: []*ttask{
				recordingTask("root").MustBuild(),
				recordingTask("x", "root", "z").MustBuild(),
				recordingTask("y", "x").MustBuild(),
				recordingTask("z", "y").MustBuild(),
			},
			path: "x -> z -> y -> x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPlan(tt.tasks...)
			require.Error(t, err)
			assert.Equal(t, types.ErrInvalid, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), "cycle detected: "+tt.path)
		})
	}
}

func TestGraphBuilder_Rejections(t *testing.T) {
	t.Parallel()

	_, err := BuildPlan(recordingTask("a").MustBuild(), recordingTask("a").MustBuild())
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalid, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), `duplicate task id "a"`)

	_, err = BuildPlan[testConfig, *journal]()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graph has no tasks")

	_, err = BuildPlan[testConfig, *journal](nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil task or group")
}

func TestPlan_TasksReturnsCopy(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan(recordingTask("a").MustBuild(), recordingTask("b", "a").MustBuild())
	require.NoError(t, err)

	tasks := plan.Tasks()
	tasks[0] = nil
	assert.Equal(t, []string{"a", "b"}, plan.Order())
}

// randomGraph declares n tasks in reverse index order, each depending on a
// random subset of lower-indexed tasks, so declaration order is never already
// topological.
func randomGraph(n int, seed int64) []*ttask {
	rng := rand.New(rand.NewSource(seed))
	tasks := make([]*ttask, 0, n)
	for i := n - 1; i >= 0; i-- {
		var deps []string
		for j := 0; j < i; j++ {
			if rng.Intn(3) == 0 {
				deps = append(deps, fmt.Sprintf("t%d", j))
			}
		}
		tasks = append(tasks, recordingTask(fmt.Sprintf("t%d", i), deps...).
			Priority(rng.Intn(3)).
			MustBuild())
	}
	return tasks
}

func TestProperty_OrderIsTopologicalAndDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("every task follows its dependencies and rebuilds agree", prop.ForAll(
		func(n int, seed int64) bool {
			tasks := randomGraph(n, seed)

			first, err := BuildPlan(tasks...)
			if err != nil {
				t.Logf("build failed: %v", err)
				return false
			}
			second, err := BuildPlan(tasks...)
			if err != nil {
				return false
			}

			pos := make(map[string]int, n)
			for i, id := range first.Order() {
				pos[id] = i
			}
			if len(pos) != n {
				return false
			}
			for _, task := range tasks {
				for _, dep := range task.Dependencies() {
					if pos[dep] >= pos[task.ID()] {
						t.Logf("%s ordered before its dependency %s", task.ID(), dep)
						return false
					}
				}
			}

			return assert.ObjectsAreEqual(first.Order(), second.Order())
		},
		gen.IntRange(1, 12),
		gen.Int64(),
	))

	properties.Property("a back edge is always reported as a cycle", prop.ForAll(
		func(n int, seed int64) bool {
			tasks := randomGraph(n, seed)
			// Tie the first and last declared tasks into a two-node loop.
			last := tasks[len(tasks)-1]
			loop := recordingTask(last.ID(), append(last.Dependencies(), tasks[0].ID())...).MustBuild()
			head := recordingTask(tasks[0].ID(), last.ID()).MustBuild()

			mutated := append([]*ttask{head}, tasks[1:len(tasks)-1]...)
			mutated = append(mutated, loop)

			_, err := BuildPlan(mutated...)
			return types.IsCode(err, types.ErrInvalid)
		},
		gen.IntRange(2, 10),
		gen.Int64(),
	))

	properties.TestingRun(t)
}
