package release

import (
	"github.com/BaSui01/releaseflow/workflow"
)

// Options is the read-only configuration every release task sees.
type Options struct {
	// Branch is the branch releases must be cut from; empty allows any.
	Branch string `json:"branch" yaml:"branch"`
	Remote string `json:"remote" yaml:"remote"`

	TagPrefix     string `json:"tag_prefix" yaml:"tag_prefix"`
	VersionFile   string `json:"version_file" yaml:"version_file"`
	VersionField  string `json:"version_field" yaml:"version_field"`
	ChangelogFile string `json:"changelog_file" yaml:"changelog_file"`
	// CommitMessage is a format string receiving the next version.
	CommitMessage string `json:"commit_message" yaml:"commit_message"`

	// Bump forces the bump kind instead of deriving it from commits.
	Bump BumpKind `json:"bump,omitempty" yaml:"bump,omitempty"`

	AllowDirty    bool `json:"allow_dirty" yaml:"allow_dirty"`
	SkipGit       bool `json:"skip_git" yaml:"skip_git"`
	SkipChangelog bool `json:"skip_changelog" yaml:"skip_changelog"`
	SkipRelease   bool `json:"skip_release" yaml:"skip_release"`
	DryRun        bool `json:"dry_run" yaml:"dry_run"`

	Draft      bool `json:"draft" yaml:"draft"`
	Prerelease bool `json:"prerelease" yaml:"prerelease"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Branch:        "main",
		Remote:        "origin",
		TagPrefix:     "v",
		VersionFile:   "VERSION",
		VersionField:  defaultVersionField,
		ChangelogFile: "CHANGELOG.md",
		CommitMessage: "chore(release): %s",
	}
}

func (o Options) versionFile() VersionFile {
	return NewVersionFile(o.VersionFile, o.VersionField)
}

type (
	// Context is the workflow context of a release run.
	Context = workflow.Context[Options, *Services]
	// Task is a release task.
	Task = workflow.Task[Options, *Services]
)

// NewContext creates the initial context of a release run.
func NewContext(opts Options, svc *Services) *Context {
	return workflow.NewContext(opts, svc, nil)
}

// Data keys published by the release tasks.
const (
	KeyCurrentVersion   = "currentVersion"
	KeyNextVersion      = "nextVersion"
	KeyBumpKind         = "bumpKind"
	KeyPreviousTag      = "previousTag"
	KeyCommits          = "commits"
	KeyChangelogContent = "changelogContent"
	KeyChangelogBackup  = "changelogBackup"
	KeyChangelogCreated = "changelogCreated"
	KeyTagName          = "tagName"
	KeyCommitSHA        = "commitSHA"
	KeyPushed           = "pushed"
	KeyReleaseURL       = "releaseURL"
	KeyReleaseID        = "releaseID"
)

// Task ids.
const (
	TaskPreflight     = "preflight"
	TaskDetermine     = "determine-version"
	TaskBumpVersion   = "bump-version"
	TaskChangelog     = "changelog"
	TaskCommit        = "commit"
	TaskTag           = "tag"
	TaskPush          = "push"
	TaskReleaseGate   = "release-gate"
	TaskCreateRelease = "create-release"
	TaskDone          = "done"
)

// Group ids.
const (
	GroupPrepare = "prepare"
	GroupGit     = "git"
	GroupPublish = "publish"
)
