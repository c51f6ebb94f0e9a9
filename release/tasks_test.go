package release_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/release"
	"github.com/BaSui01/releaseflow/testutil"
	"github.com/BaSui01/releaseflow/testutil/mocks"
	"github.com/BaSui01/releaseflow/types"
	"github.com/BaSui01/releaseflow/workflow"
)

func runRelease(t *testing.T, rs *mocks.ReleaseServices, opts release.Options) (*workflow.Result[release.Options, *release.Services], error) {
	t.Helper()
	return runReleaseCtx(t, context.Background(), rs, opts)
}

func runReleaseCtx(t *testing.T, ctx context.Context, rs *mocks.ReleaseServices, opts release.Options) (*workflow.Result[release.Options, *release.Services], error) {
	t.Helper()
	b, err := release.NewGraph(zap.NewNop())
	require.NoError(t, err)
	exec := workflow.NewExecutor[release.Options, *release.Services](workflow.WithExecutorLogger(zap.NewNop()))
	res, err := exec.RunGraph(ctx, b, release.NewContext(opts, rs.Services(nil)))
	require.NotNil(t, res)
	require.NotNil(t, res.Report)
	return res, err
}

func defaultServices() *mocks.ReleaseServices {
	rs := mocks.NewReleaseServices("1.2.3", "feat: initial")
	rs.Git.WithTag("v1.2.3").WithCommits("fix: handle empty input", "feat(cli): add --report flag", "docs: typo")
	return rs
}

func TestRelease_FullRun(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	res, err := runRelease(t, rs, release.DefaultOptions())
	require.NoError(t, err)

	r := res.Report
	assert.True(t, r.Success)
	assert.Equal(t, []string{
		release.TaskPreflight, release.TaskDetermine, release.TaskBumpVersion, release.TaskChangelog,
		release.TaskCommit, release.TaskTag, release.TaskPush,
		release.TaskReleaseGate, release.TaskCreateRelease, release.TaskDone,
	}, r.Executed)
	assert.Empty(t, r.Skipped)
	assert.False(t, r.RollbackRan)

	assert.Equal(t, "1.3.0\n", rs.FS.Content("VERSION"))
	changelog := rs.FS.Content("CHANGELOG.md")
	assert.True(t, strings.HasPrefix(changelog, "# Changelog\n\n## [1.3.0] - 2026-10-19\n"))
	assert.Contains(t, changelog, "- **cli:** add --report flag")
	assert.Contains(t, changelog, "### Bug Fixes")

	assert.Equal(t, "chore(release): 1.3.0", rs.Git.HeadSubject())
	assert.True(t, rs.Git.HasTag("v1.3.0"))
	assert.True(t, rs.Git.HasRemoteTag("v1.3.0"))
	assert.Contains(t, rs.Git.GetCalls(), "Add VERSION CHANGELOG.md")
	assert.Contains(t, rs.Git.GetCalls(), "Push origin HEAD refs/tags/v1.3.0")

	created := rs.Host.GetCreated()
	require.Len(t, created, 1)
	assert.Equal(t, "v1.3.0", created[0].TagName)
	assert.Contains(t, created[0].Body, "## [1.3.0]")

	url, err := workflow.Value[string](res.Context, release.KeyReleaseURL)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/releases/v1.3.0", url)
	prev, _ := workflow.Value[string](res.Context, release.KeyPreviousTag)
	assert.Equal(t, "v1.2.3", prev)
	kind, _ := workflow.Value[string](res.Context, release.KeyBumpKind)
	assert.Equal(t, "minor", kind)
}

func TestRelease_SkipGit(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithDirty(" M README.md").WithBranch("feature/x")
	opts := release.DefaultOptions()
	opts.SkipGit = true

	res, err := runRelease(t, rs, opts)
	require.NoError(t, err)

	r := res.Report
	assert.True(t, r.Success)
	assert.Equal(t, []string{
		release.TaskPreflight, release.TaskDetermine, release.TaskBumpVersion, release.TaskChangelog,
	}, r.Executed)
	for _, id := range []string{
		release.TaskCommit, release.TaskTag, release.TaskPush,
		release.TaskReleaseGate, release.TaskCreateRelease, release.TaskDone,
	} {
		reason, ok := r.SkipReason(id)
		assert.True(t, ok, id)
		assert.Equal(t, "skipGit enabled", reason, id)
	}

	assert.Equal(t, "1.3.0\n", rs.FS.Content("VERSION"))
	assert.False(t, rs.Git.HasTag("v1.3.0"))
	assert.Empty(t, rs.Host.GetCreated())
	for _, call := range rs.Git.GetCalls() {
		assert.NotContains(t, []string{"Status", "CurrentBranch"}, call)
	}
}

func TestRelease_SkipChangelog(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	opts := release.DefaultOptions()
	opts.SkipChangelog = true

	res, err := runRelease(t, rs, opts)
	require.NoError(t, err)

	reason, ok := res.Report.SkipReason(release.TaskChangelog)
	assert.True(t, ok)
	assert.Equal(t, "skipChangelog enabled", reason)
	assert.False(t, rs.FS.Exists("CHANGELOG.md"))
	assert.Contains(t, rs.Git.GetCalls(), "Add VERSION")

	created := rs.Host.GetCreated()
	require.Len(t, created, 1)
	assert.Equal(t, "Release v1.3.0", created[0].Body)
}

func TestRelease_SkipRelease(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	opts := release.DefaultOptions()
	opts.SkipRelease = true

	res, err := runRelease(t, rs, opts)
	require.NoError(t, err)

	r := res.Report
	require.Len(t, r.Skipped, 1)
	testutil.AssertSkipped(t, r, release.TaskCreateRelease, "branched by release-gate")
	assert.Contains(t, r.Executed, release.TaskDone)
	assert.Empty(t, rs.Host.GetCreated())
	assert.True(t, rs.Git.HasRemoteTag("v1.3.0"))
}

func TestRelease_TagFailureRollsBack(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.FS.WithFile("CHANGELOG.md", "# Changelog\n\n## [1.2.3] - 2026-01-01\n\n- old\n")
	rs.Git.WithError("Tag", types.Conflict("tag v1.3.0 already exists"))
	before := rs.Git.CommitCount()

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))

	r := res.Report
	assert.Equal(t, 1, r.ExitCode())
	testutil.AssertFailedAt(t, r, release.TaskTag)
	testutil.AssertRolledBack(t, r, release.TaskCommit, release.TaskChangelog, release.TaskBumpVersion)

	assert.Equal(t, "1.2.3\n", rs.FS.Content("VERSION"))
	assert.Equal(t, "# Changelog\n\n## [1.2.3] - 2026-01-01\n\n- old\n", rs.FS.Content("CHANGELOG.md"))
	assert.Equal(t, before, rs.Git.CommitCount())
	assert.Contains(t, rs.Git.GetCalls(), "ResetLastCommit")
}

func TestRelease_CreatedChangelogRemovedOnRollback(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithError("Commit", types.Failed("git commit: hook rejected"))

	_, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	assert.False(t, rs.FS.Exists("CHANGELOG.md"))
	assert.Equal(t, "1.2.3\n", rs.FS.Content("VERSION"))
}

func TestRelease_PushFailureDeletesTag(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithError("Push", types.Failed("git push: connection refused").WithRetryable(true))

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	testutil.AssertFailedAt(t, res.Report, release.TaskPush)
	assert.False(t, rs.Git.HasTag("v1.3.0"))
	assert.Contains(t, rs.Git.GetCalls(), "DeleteTag v1.3.0")
	assert.NotContains(t, rs.Git.GetCalls(), "DeleteRemoteTag origin v1.3.0")
}

func TestRelease_HostFailureUndoesPush(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Host.WithCreateError(types.Failed("POST releases: 502 bad gateway"))

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	testutil.AssertFailedAt(t, res.Report, release.TaskCreateRelease)
	testutil.AssertRolledBack(t, res.Report,
		release.TaskPush, release.TaskTag, release.TaskCommit, release.TaskChangelog, release.TaskBumpVersion)
	assert.False(t, rs.Git.HasRemoteTag("v1.3.0"))
	assert.False(t, rs.Git.HasTag("v1.3.0"))
}

func TestRelease_PushedCommitIsKeptOnRollback(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Host.WithCreateError(types.Failed("POST releases: 502 bad gateway"))
	before := rs.Git.CommitCount()
	logger, logs := testutil.ObservedLogger()

	b, err := release.NewGraph(logger)
	require.NoError(t, err)
	exec := workflow.NewExecutor[release.Options, *release.Services](workflow.WithExecutorLogger(logger))
	res, err := exec.RunGraph(testutil.TestContext(t), b, release.NewContext(release.DefaultOptions(), rs.Services(logger)))
	require.Error(t, err)
	assert.Equal(t, 1, res.Report.ExitCode())

	// 提交已推送，本地分支与文件保持与远端一致
	assert.NotContains(t, rs.Git.GetCalls(), "ResetLastCommit")
	assert.Equal(t, before+1, rs.Git.CommitCount())
	assert.Equal(t, "1.3.0\n", rs.FS.Content("VERSION"))
	assert.Contains(t, rs.FS.Content("CHANGELOG.md"), "## [1.3.0]")
	testutil.AssertLogged(t, logs, "release commit already pushed, leaving it in place")
}

func TestRelease_RollbackFailureExitCode(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithError("Tag", errors.New("tag refused")).
		WithError("ResetLastCommit", errors.New("index locked"))

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, types.ErrUnexpected, types.GetErrorCode(err))
	assert.True(t, res.Report.RollbackFailed())
	assert.Equal(t, 2, res.Report.ExitCode())
	assert.Equal(t, "1.2.3\n", rs.FS.Content("VERSION"))
}

func TestRelease_PreflightConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(rs *mocks.ReleaseServices, opts *release.Options)
		code    types.ErrorCode
		message string
	}{
		{
			name:    "dirty tree",
			setup:   func(rs *mocks.ReleaseServices, _ *release.Options) { rs.Git.WithDirty(" M main.go", "?? tmp") },
			code:    types.ErrConflict,
			message: "2 uncommitted change(s)",
		},
		{
			name:    "wrong branch",
			setup:   func(rs *mocks.ReleaseServices, _ *release.Options) { rs.Git.WithBranch("develop") },
			code:    types.ErrConflict,
			message: "current branch is develop",
		},
		{
			name: "missing version file",
			setup: func(_ *mocks.ReleaseServices, opts *release.Options) {
				opts.VersionFile = "package.json"
			},
			code:    types.ErrNotFound,
			message: "package.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := defaultServices()
			opts := release.DefaultOptions()
			tt.setup(rs, &opts)

			res, err := runRelease(t, rs, opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, res.Report.Executed)
			assert.False(t, res.Report.RollbackRan)
			assert.Empty(t, rs.FS.GetWrites())
		})
	}
}

func TestRelease_AllowDirtyAndAnyBranch(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithDirty(" M notes.md").WithBranch("hotfix")
	opts := release.DefaultOptions()
	opts.AllowDirty = true
	opts.Branch = ""

	res, err := runRelease(t, rs, opts)
	require.NoError(t, err)
	assert.True(t, res.Report.Success)
}

func TestRelease_NoReleasableChanges(t *testing.T) {
	t.Parallel()

	rs := mocks.NewReleaseServices("1.2.3", "feat: initial")
	rs.Git.WithTag("v1.2.3").WithCommits("docs: readme", "chore: deps")

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "no releasable changes since v1.2.3")
	assert.Equal(t, release.TaskDetermine, res.Report.Failed.ID)
	assert.Empty(t, rs.FS.GetWrites())
}

func TestRelease_ForcedBump(t *testing.T) {
	t.Parallel()

	rs := mocks.NewReleaseServices("0.9.0", "chore: first")
	opts := release.DefaultOptions()
	opts.Bump = release.BumpMajor

	_, err := runRelease(t, rs, opts)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0\n", rs.FS.Content("VERSION"))
	assert.True(t, rs.Git.HasTag("v1.0.0"))
}

func TestRelease_JSONManifest(t *testing.T) {
	t.Parallel()

	rs := mocks.NewReleaseServices("0.0.0", "fix: first")
	rs.FS.WithFile("package.json", `{"name":"demo","version":"2.4.1","private":true}`)
	opts := release.DefaultOptions()
	opts.VersionFile = "package.json"

	_, err := runRelease(t, rs, opts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"demo","version":"2.4.2","private":true}`, rs.FS.Content("package.json"))
	assert.Contains(t, rs.Git.GetCalls(), "Add package.json CHANGELOG.md")
}

func TestRelease_DryRun(t *testing.T) {
	t.Parallel()

	for _, viaContext := range []bool{false, true} {
		rs := defaultServices()
		opts := release.DefaultOptions()
		ctx := context.Background()
		if viaContext {
			ctx = types.WithDryRun(ctx, true)
		} else {
			opts.DryRun = true
		}
		commitsBefore := rs.Git.CommitCount()

		res, err := runReleaseCtx(t, ctx, rs, opts)
		require.NoError(t, err)
		assert.True(t, res.Report.Success)

		assert.Empty(t, rs.FS.GetWrites())
		assert.Equal(t, commitsBefore, rs.Git.CommitCount())
		assert.False(t, rs.Git.HasTag("v1.3.0"))
		assert.Empty(t, rs.Host.GetCreated())
		for _, call := range rs.Git.GetCalls() {
			op := strings.Fields(call)[0]
			assert.Contains(t, []string{"Status", "CurrentBranch", "LatestTag", "CommitsSince"}, op)
		}

		next, _ := workflow.Value[string](res.Context, release.KeyNextVersion)
		assert.Equal(t, "1.3.0", next)
		tag, _ := workflow.Value[string](res.Context, release.KeyTagName)
		assert.Equal(t, "v1.3.0", tag)
	}
}

func TestRelease_InterruptedTagRollsBack(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	rs.Git.WithError("Tag", context.Canceled)

	res, err := runRelease(t, rs, release.DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, types.ErrFailed, types.GetErrorCode(err))
	assert.True(t, res.Report.RollbackRan)
	assert.Equal(t, "1.2.3\n", rs.FS.Content("VERSION"))
}

func TestRelease_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	res, err := runReleaseCtx(t, testutil.CancelledContext(t), rs, release.DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, types.ErrFailed, types.GetErrorCode(err))

	r := res.Report
	assert.Empty(t, r.Executed)
	assert.False(t, r.RollbackRan)
	assert.Equal(t, 1, r.ExitCode())
	assert.Equal(t, "1.2.3\n", rs.FS.Content("VERSION"))
	assert.Empty(t, rs.Git.GetCalls())
}

func TestNewPlan(t *testing.T) {
	t.Parallel()

	plan, err := release.NewPlan(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{
		release.TaskPreflight, release.TaskDetermine, release.TaskBumpVersion, release.TaskChangelog,
		release.TaskCommit, release.TaskTag, release.TaskPush,
		release.TaskReleaseGate, release.TaskCreateRelease, release.TaskDone,
	}, plan.Order())
}

func TestRelease_LogsThroughServicesLogger(t *testing.T) {
	t.Parallel()

	rs := defaultServices()
	logger, logs := testutil.ObservedLogger()

	b, err := release.NewGraph(logger)
	require.NoError(t, err)
	exec := workflow.NewExecutor[release.Options, *release.Services](workflow.WithExecutorLogger(logger))
	res, err := exec.RunGraph(testutil.TestContext(t), b, release.NewContext(release.DefaultOptions(), rs.Services(logger)))
	require.NoError(t, err)
	assert.True(t, res.Report.Success)

	testutil.AssertLogged(t, logs, "next version determined")
	testutil.AssertLogged(t, logs, "release finished")

	finished := logs.FilterMessage("release finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, release.TaskDone, finished[0].ContextMap()["task_id"])
}
