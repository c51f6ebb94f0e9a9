package release

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/releaseflow/types"
)

// fakeGit answers git invocations from a table keyed by the joined args.
type fakeGit struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
	dirs    []string
}

func newFakeGit() *fakeGit {
	return &fakeGit{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeGit) run(ctx context.Context, dir string, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	f.dirs = append(f.dirs, dir)
	if err := f.errs[key]; err != nil {
		return "", err
	}
	return f.outputs[key], nil
}

func newTestGit(f *fakeGit) *GitCLI {
	return NewGitCLI("/repo", nil).WithRunner(f.run)
}

func TestGitCLI_StatusAndBranch(t *testing.T) {
	t.Parallel()

	f := newFakeGit()
	f.outputs["status --porcelain"] = " M VERSION\n?? notes.txt\n\n"
	f.outputs["rev-parse --abbrev-ref HEAD"] = "main\n"
	g := newTestGit(f)

	lines, err := g.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{" M VERSION", "?? notes.txt"}, lines)

	branch, err := g.CurrentBranch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Equal(t, []string{"/repo", "/repo"}, f.dirs)

	f.outputs["rev-parse --abbrev-ref HEAD"] = "HEAD\n"
	_, err = g.CurrentBranch(context.Background())
	assert.Equal(t, types.ErrConflict, types.GetErrorCode(err))
}

func TestGitCLI_LatestTag(t *testing.T) {
	t.Parallel()

	f := newFakeGit()
	f.outputs["tag --list v* --sort=-v:refname"] = "vnext\nv1.4.0\nv1.3.9\n"
	g := newTestGit(f)

	tag, err := g.LatestTag(context.Background(), "v")
	require.NoError(t, err)
	assert.Equal(t, "v1.4.0", tag)

	f.outputs["tag --list v* --sort=-v:refname"] = ""
	tag, err = g.LatestTag(context.Background(), "v")
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestGitCLI_CommitsSince(t *testing.T) {
	t.Parallel()

	log := "aaa111\x1ffeat: add x\x1f\x1e\n" +
		"bbb222\x1ffix: y\x1fCloses #4\n\nBREAKING CHANGE: z\n\x1e\n"

	f := newFakeGit()
	f.outputs["log --format=%H%x1f%s%x1f%b%x1e v1.0.0..HEAD"] = log
	f.outputs["log --format=%H%x1f%s%x1f%b%x1e"] = log
	g := newTestGit(f)

	got, err := g.CommitsSince(context.Background(), "v1.0.0")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, Commit{SHA: "aaa111", Subject: "feat: add x"}, got[0])
	assert.Equal(t, "bbb222", got[1].SHA)
	assert.Equal(t, "Closes #4\n\nBREAKING CHANGE: z", got[1].Body)

	_, err = g.CommitsSince(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "log --format=%H%x1f%s%x1f%b%x1e", f.calls[len(f.calls)-1])
}

func TestGitCLI_Mutations(t *testing.T) {
	t.Parallel()

	f := newFakeGit()
	f.outputs["rev-parse HEAD"] = "cafebabe\n"
	g := newTestGit(f)
	ctx := context.Background()

	require.NoError(t, g.Add(ctx, "VERSION", "CHANGELOG.md"))
	sha, err := g.Commit(ctx, "chore(release): 1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "cafebabe", sha)
	require.NoError(t, g.Tag(ctx, "v1.1.0", "Release 1.1.0"))
	require.NoError(t, g.Push(ctx, "origin", "HEAD", "refs/tags/v1.1.0"))
	require.NoError(t, g.DeleteRemoteTag(ctx, "origin", "v1.1.0"))
	require.NoError(t, g.DeleteTag(ctx, "v1.1.0"))
	require.NoError(t, g.ResetLastCommit(ctx))

	assert.Equal(t, []string{
		"add -- VERSION CHANGELOG.md",
		"commit -m chore(release): 1.1.0",
		"rev-parse HEAD",
		"tag -a v1.1.0 -m Release 1.1.0",
		"push origin HEAD refs/tags/v1.1.0",
		"push origin --delete refs/tags/v1.1.0",
		"tag -d v1.1.0",
		"reset HEAD~1",
	}, f.calls)
}

func TestGitCLI_RunnerError(t *testing.T) {
	t.Parallel()

	f := newFakeGit()
	boom := types.Failed("git commit: nothing to commit")
	f.errs["commit -m msg"] = boom
	g := newTestGit(f)

	_, err := g.Commit(context.Background(), "msg")
	assert.True(t, errors.Is(err, boom))
	assert.Len(t, f.calls, 1)
}
