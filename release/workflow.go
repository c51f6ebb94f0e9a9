package release

import (
	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/workflow"
)

// Groups returns the release task groups in declaration order.
func Groups() ([]*workflow.TaskGroup[Options, *Services], error) {
	prepare, err := workflow.NewGroup[Options, *Services](GroupPrepare).
		Describe("compute the next version and update release files").
		Add(PreflightTask(), DetermineVersionTask(), BumpVersionTask(), ChangelogTask()).
		Build()
	if err != nil {
		return nil, err
	}

	git, err := workflow.NewGroup[Options, *Services](GroupGit).
		Describe("record and publish the release in git").
		DependsOnGroups(GroupPrepare).
		Add(CommitTask(), TagTask(), PushTask()).
		Build()
	if err != nil {
		return nil, err
	}

	publish, err := workflow.NewGroup[Options, *Services](GroupPublish).
		Describe("publish the hosted release").
		DependsOnGroups(GroupGit).
		Add(ReleaseGateTask(), CreateReleaseTask(), DoneTask()).
		Build()
	if err != nil {
		return nil, err
	}

	return []*workflow.TaskGroup[Options, *Services]{prepare, git, publish}, nil
}

// NewGraph returns the graph builder for the standard release workflow.
func NewGraph(logger *zap.Logger) (*workflow.GraphBuilder[Options, *Services], error) {
	groups, err := Groups()
	if err != nil {
		return nil, err
	}
	return workflow.NewGraphBuilder[Options, *Services]().
		WithLogger(logger).
		AddGroups(groups...), nil
}

// NewPlan builds and validates the standard release plan.
func NewPlan(logger *zap.Logger) (*workflow.Plan[Options, *Services], error) {
	b, err := NewGraph(logger)
	if err != nil {
		return nil, err
	}
	return b.Build()
}
