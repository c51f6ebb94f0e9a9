package release

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/types"
)

// CommandRunner runs git with args in dir and returns its standard output.
type CommandRunner func(ctx context.Context, dir string, args ...string) (string, error)

// execGit runs the git binary found on PATH.
func execGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", types.Failed("git %s: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String())).WithCause(err)
	}
	return stdout.String(), nil
}

// GitCLI implements SourceControl by shelling out to git.
type GitCLI struct {
	dir    string
	run    CommandRunner
	logger *zap.Logger
}

// NewGitCLI creates a SourceControl for the repository at dir.
func NewGitCLI(dir string, logger *zap.Logger) *GitCLI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitCLI{
		dir:    dir,
		run:    execGit,
		logger: logger.With(zap.String("component", "git")),
	}
}

// WithRunner replaces how git is invoked.
func (g *GitCLI) WithRunner(run CommandRunner) *GitCLI {
	if run != nil {
		g.run = run
	}
	return g
}

func (g *GitCLI) git(ctx context.Context, args ...string) (string, error) {
	g.logger.Debug("running git", zap.Strings("args", args))
	return g.run(ctx, g.dir, args...)
}

func (g *GitCLI) gitLines(ctx context.Context, args ...string) ([]string, error) {
	out, err := g.git(ctx, args...)
	if err != nil {
		return nil, err
	}
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \t"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Status returns the porcelain status lines.
func (g *GitCLI) Status(ctx context.Context) ([]string, error) {
	return g.gitLines(ctx, "status", "--porcelain")
}

// CurrentBranch returns the checked out branch.
func (g *GitCLI) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", types.Conflict("repository is in detached HEAD state")
	}
	return branch, nil
}

// LatestTag returns the highest version tag carrying prefix.
func (g *GitCLI) LatestTag(ctx context.Context, prefix string) (string, error) {
	tags, err := g.gitLines(ctx, "tag", "--list", prefix+"*", "--sort=-v:refname")
	if err != nil {
		return "", err
	}
	for _, tag := range tags {
		if _, err := VersionFromTag(prefix, tag); err == nil {
			return tag, nil
		}
	}
	return "", nil
}

const (
	fieldSep  = "\x1f"
	recordSep = "\x1e"
)

// CommitsSince lists commits in ref..HEAD, newest first.
func (g *GitCLI) CommitsSince(ctx context.Context, ref string) ([]Commit, error) {
	args := []string{"log", "--format=%H%x1f%s%x1f%b%x1e"}
	if ref != "" {
		args = append(args, ref+"..HEAD")
	}
	out, err := g.git(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func parseLog(out string) []Commit {
	var commits []Commit
	for _, rec := range strings.Split(out, recordSep) {
		rec = strings.TrimSpace(rec)
		if rec == "" {
			continue
		}
		parts := strings.SplitN(rec, fieldSep, 3)
		if len(parts) < 2 {
			continue
		}
		c := Commit{SHA: parts[0], Subject: parts[1]}
		if len(parts) == 3 {
			c.Body = strings.TrimSpace(parts[2])
		}
		commits = append(commits, c)
	}
	return commits
}

// Add stages paths.
func (g *GitCLI) Add(ctx context.Context, paths ...string) error {
	_, err := g.git(ctx, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit records the staged changes.
func (g *GitCLI) Commit(ctx context.Context, message string) (string, error) {
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return "", err
	}
	out, err := g.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// ResetLastCommit drops HEAD and unstages its changes.
func (g *GitCLI) ResetLastCommit(ctx context.Context) error {
	_, err := g.git(ctx, "reset", "HEAD~1")
	return err
}

// Tag creates an annotated tag at HEAD.
func (g *GitCLI) Tag(ctx context.Context, name, message string) error {
	_, err := g.git(ctx, "tag", "-a", name, "-m", message)
	return err
}

// DeleteTag removes a local tag.
func (g *GitCLI) DeleteTag(ctx context.Context, name string) error {
	_, err := g.git(ctx, "tag", "-d", name)
	return err
}

// Push pushes refs to remote.
func (g *GitCLI) Push(ctx context.Context, remote string, refs ...string) error {
	_, err := g.git(ctx, append([]string{"push", remote}, refs...)...)
	return err
}

// DeleteRemoteTag removes a tag from remote.
func (g *GitCLI) DeleteRemoteTag(ctx context.Context, remote, name string) error {
	_, err := g.git(ctx, "push", remote, "--delete", "refs/tags/"+name)
	return err
}
