package release

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FileSystem is the file access the release tasks need.
type FileSystem interface {
	Exists(path string) bool
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Remove(path string) error
}

// Commit is one commit as seen by the analyzer and the changelog.
type Commit struct {
	SHA     string `json:"sha" yaml:"sha"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`
}

// SourceControl is the version control surface used by the git tasks.
type SourceControl interface {
	// Status returns the porcelain lines of uncommitted changes.
	Status(ctx context.Context) ([]string, error)
	CurrentBranch(ctx context.Context) (string, error)
	// LatestTag returns the most recent tag matching prefix, or "" when none exists.
	LatestTag(ctx context.Context, prefix string) (string, error)
	// CommitsSince lists commits reachable from HEAD but not from ref, newest
	// first. An empty ref lists the whole history.
	CommitsSince(ctx context.Context, ref string) ([]Commit, error)
	Add(ctx context.Context, paths ...string) error
	// Commit records the staged changes and returns the new commit SHA.
	Commit(ctx context.Context, message string) (string, error)
	// ResetLastCommit drops HEAD, leaving its changes in the working tree.
	ResetLastCommit(ctx context.Context) error
	Tag(ctx context.Context, name, message string) error
	DeleteTag(ctx context.Context, name string) error
	Push(ctx context.Context, remote string, refs ...string) error
	DeleteRemoteTag(ctx context.Context, remote, name string) error
}

// CommitAnalyzer derives the bump kind from a set of commits.
type CommitAnalyzer interface {
	AnalyzeForVersion(commits []Commit) BumpKind
}

// ReleaseRequest describes a hosted release to create.
type ReleaseRequest struct {
	TagName    string
	Name       string
	Body       string
	Draft      bool
	Prerelease bool
}

// ReleaseInfo identifies a created hosted release.
type ReleaseInfo struct {
	ID  int64  `json:"id"`
	URL string `json:"html_url"`
}

// ReleaseHost publishes releases to a code hosting service.
type ReleaseHost interface {
	CreateRelease(ctx context.Context, req ReleaseRequest) (*ReleaseInfo, error)
	DeleteRelease(ctx context.Context, id int64) error
}

// Services bundles the collaborators handed to every release task.
type Services struct {
	FS       FileSystem
	Git      SourceControl
	Analyzer CommitAnalyzer
	Host     ReleaseHost
	Logger   *zap.Logger
	Now      func() time.Time
}

func (s *Services) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Services) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
