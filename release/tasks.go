package release

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/releaseflow/types"
	"github.com/BaSui01/releaseflow/workflow"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTask(id, desc string) *workflow.TaskBuilder[Options, *Services] {
	return workflow.NewTask[Options, *Services](id).Describe(desc)
}

func taskLogger(wc *Context, id string) *zap.Logger {
	return wc.Services().logger().With(zap.String("task_id", id))
}

// pushed reports whether the release commit reached the remote. From then on
// the local commit and release files are kept so the branch matches the remote.
func pushed(wc *Context) bool {
	v, _ := workflow.Value[bool](wc, KeyPushed)
	return v
}

// dryRun reports whether side effects must be suppressed.
func dryRun(ctx context.Context, wc *Context) bool {
	return wc.Config().DryRun || types.DryRun(ctx)
}

// ---------------------------------------------------------------------------
// prepare
// ---------------------------------------------------------------------------

// PreflightTask checks the repository is in a releasable state. Its probes
// are read-only and run concurrently.
func PreflightTask() *Task {
	return newTask(TaskPreflight, "verify the repository is ready to release").
		Kind(workflow.TaskKindValidation).
		Phase(workflow.PhaseSetup).
		Tags("validation").
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			log := taskLogger(wc, TaskPreflight)
			log.Info("running preflight checks", zap.Bool("skip_git", opts.SkipGit))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if !svc.FS.Exists(opts.VersionFile) {
					return types.NotFound("version file %s does not exist", opts.VersionFile)
				}
				return nil
			})
			if !opts.SkipGit && !opts.AllowDirty {
				g.Go(func() error {
					changes, err := svc.Git.Status(gctx)
					if err != nil {
						return err
					}
					if len(changes) > 0 {
						return types.Conflict("working tree has %d uncommitted change(s)", len(changes))
					}
					return nil
				})
			}
			if !opts.SkipGit && opts.Branch != "" {
				g.Go(func() error {
					branch, err := svc.Git.CurrentBranch(gctx)
					if err != nil {
						return err
					}
					if branch != opts.Branch {
						return types.Conflict("releases must be cut from %s, current branch is %s", opts.Branch, branch)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return wc, nil
		}).
		MustBuild()
}

// DetermineVersionTask reads the current version and derives the next one
// from the commits since the previous release tag.
func DetermineVersionTask() *Task {
	return newTask(TaskDetermine, "determine the next version").
		DependsOn(TaskPreflight).
		Kind(workflow.TaskKindQuery).
		Phase(workflow.PhaseSetup).
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			log := taskLogger(wc, TaskDetermine)

			current, err := opts.versionFile().Read(svc.FS)
			if err != nil {
				return nil, err
			}

			log.Info("looking up previous release", zap.String("tag_prefix", opts.TagPrefix))
			prevTag, err := svc.Git.LatestTag(ctx, opts.TagPrefix)
			if err != nil {
				return nil, err
			}
			commits, err := svc.Git.CommitsSince(ctx, prevTag)
			if err != nil {
				return nil, err
			}

			kind := opts.Bump
			if kind == "" {
				kind = svc.Analyzer.AnalyzeForVersion(commits)
			}
			if kind == BumpNone {
				since := prevTag
				if since == "" {
					since = "the start of history"
				}
				return nil, types.Conflict("no releasable changes since %s", since)
			}

			next, err := Bump(current, kind)
			if err != nil {
				return nil, err
			}
			log.Info("next version determined",
				zap.String("current", current),
				zap.String("next", next),
				zap.String("bump", string(kind)),
				zap.Int("commits", len(commits)),
			)

			return wc.ForkAll(map[string]any{
				KeyCurrentVersion: current,
				KeyNextVersion:    next,
				KeyBumpKind:       string(kind),
				KeyPreviousTag:    prevTag,
				KeyCommits:        commits,
			}), nil
		}).
		MustBuild()
}

// BumpVersionTask writes the next version. Its undo writes the current
// version back.
func BumpVersionTask() *Task {
	return newTask(TaskBumpVersion, "write the next version to the version file").
		DependsOn(TaskDetermine).
		Tags("files").
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			next, err := workflow.Value[string](wc, KeyNextVersion)
			if err != nil {
				return nil, err
			}

			log := taskLogger(wc, TaskBumpVersion)
			log.Info("writing version", zap.String("file", opts.VersionFile), zap.String("version", next))
			if dryRun(ctx, wc) {
				log.Info("dry run, version file left unchanged")
				return wc, nil
			}
			if err := opts.versionFile().Write(svc.FS, next); err != nil {
				return nil, err
			}
			return wc, nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			opts, svc := wc.Config(), wc.Services()
			current, err := workflow.Value[string](wc, KeyCurrentVersion)
			if err != nil {
				return err
			}
			log := taskLogger(wc, TaskBumpVersion)
			if pushed(wc) {
				log.Warn("release commit already pushed, keeping version file", zap.String("file", opts.VersionFile))
				return nil
			}
			log.Info("restoring version", zap.String("file", opts.VersionFile), zap.String("version", current))
			if dryRun(ctx, wc) {
				return nil
			}
			return opts.versionFile().Write(svc.FS, current)
		}).
		MustBuild()
}

// ChangelogTask prepends the release notes to the changelog. Its undo puts
// the previous contents back.
func ChangelogTask() *Task {
	return newTask(TaskChangelog, "prepend release notes to the changelog").
		DependsOn(TaskBumpVersion).
		Tags("files").
		SkipWhen(func(_ context.Context, wc *Context) (workflow.SkipDecision, error) {
			if wc.Config().SkipChangelog {
				return workflow.Skip("skipChangelog enabled"), nil
			}
			return workflow.Proceed(), nil
		}).
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			next, err := workflow.Value[string](wc, KeyNextVersion)
			if err != nil {
				return nil, err
			}
			commits, err := workflow.Value[[]Commit](wc, KeyCommits)
			if err != nil {
				return nil, err
			}

			created := !svc.FS.Exists(opts.ChangelogFile)
			var existing string
			if !created {
				data, err := svc.FS.Read(opts.ChangelogFile)
				if err != nil {
					return nil, types.Failed("read %s", opts.ChangelogFile).WithCause(err)
				}
				existing = string(data)
			}

			section := RenderChangelog(next, svc.now(), commits)
			log := taskLogger(wc, TaskChangelog)
			log.Info("updating changelog", zap.String("file", opts.ChangelogFile), zap.Bool("create", created))

			if !dryRun(ctx, wc) {
				if err := svc.FS.Write(opts.ChangelogFile, []byte(PrependChangelog(existing, section))); err != nil {
					return nil, types.Failed("write %s", opts.ChangelogFile).WithCause(err)
				}
			} else {
				log.Info("dry run, changelog left unchanged")
			}

			return wc.ForkAll(map[string]any{
				KeyChangelogContent: section,
				KeyChangelogBackup:  existing,
				KeyChangelogCreated: created,
			}), nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			opts, svc := wc.Config(), wc.Services()
			log := taskLogger(wc, TaskChangelog)
			if dryRun(ctx, wc) {
				log.Info("dry run, nothing to restore")
				return nil
			}
			if pushed(wc) {
				log.Warn("release commit already pushed, keeping changelog", zap.String("file", opts.ChangelogFile))
				return nil
			}
			if created, _ := workflow.Value[bool](wc, KeyChangelogCreated); created {
				log.Info("removing changelog", zap.String("file", opts.ChangelogFile))
				return svc.FS.Remove(opts.ChangelogFile)
			}
			backup, err := workflow.Value[string](wc, KeyChangelogBackup)
			if err != nil {
				return err
			}
			log.Info("restoring changelog", zap.String("file", opts.ChangelogFile))
			return svc.FS.Write(opts.ChangelogFile, []byte(backup))
		}).
		MustBuild()
}

// ---------------------------------------------------------------------------
// git
// ---------------------------------------------------------------------------

// CommitTask commits the release files. With skipGit it ends the run. Its
// undo resets the commit unless it was already pushed.
func CommitTask() *Task {
	return newTask(TaskCommit, "commit the release changes").
		DependsOn(TaskChangelog).
		Tags("git").
		SkipWhen(func(_ context.Context, wc *Context) (workflow.SkipDecision, error) {
			if wc.Config().SkipGit {
				return workflow.SkipTo("skipGit enabled"), nil
			}
			return workflow.Proceed(), nil
		}).
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			next, err := workflow.Value[string](wc, KeyNextVersion)
			if err != nil {
				return nil, err
			}

			files := []string{opts.VersionFile}
			if wc.Has(KeyChangelogContent) {
				files = append(files, opts.ChangelogFile)
			}
			msg := fmt.Sprintf(opts.CommitMessage, next)

			log := taskLogger(wc, TaskCommit)
			log.Info("staging files", zap.Strings("files", files))
			if dryRun(ctx, wc) {
				log.Info("dry run, would commit", zap.String("message", msg))
				return wc, nil
			}
			if err := svc.Git.Add(ctx, files...); err != nil {
				return nil, err
			}
			log.Info("committing", zap.String("message", msg))
			sha, err := svc.Git.Commit(ctx, msg)
			if err != nil {
				return nil, err
			}
			return wc.Fork(KeyCommitSHA, sha), nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			log := taskLogger(wc, TaskCommit)
			sha, _ := workflow.Value[string](wc, KeyCommitSHA)
			if pushed(wc) {
				log.Warn("release commit already pushed, leaving it in place", zap.String("sha", sha))
				return nil
			}
			log.Info("resetting release commit", zap.String("sha", sha))
			if dryRun(ctx, wc) {
				return nil
			}
			return wc.Services().Git.ResetLastCommit(ctx)
		}).
		MustBuild()
}

// TagTask creates the release tag.
func TagTask() *Task {
	return newTask(TaskTag, "create the release tag").
		DependsOn(TaskCommit).
		Tags("git").
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			next, err := workflow.Value[string](wc, KeyNextVersion)
			if err != nil {
				return nil, err
			}
			name := TagName(opts.TagPrefix, next)

			log := taskLogger(wc, TaskTag)
			log.Info("creating tag", zap.String("tag", name))
			if !dryRun(ctx, wc) {
				if err := svc.Git.Tag(ctx, name, "Release "+name); err != nil {
					return nil, err
				}
			}
			return wc.Fork(KeyTagName, name), nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			name, err := workflow.Value[string](wc, KeyTagName)
			if err != nil {
				return err
			}
			taskLogger(wc, TaskTag).Info("deleting tag", zap.String("tag", name))
			if dryRun(ctx, wc) {
				return nil
			}
			return wc.Services().Git.DeleteTag(ctx, name)
		}).
		MustBuild()
}

// PushTask pushes the release commit and tag. Its undo deletes the remote
// tag; the pushed commit stays on the remote branch.
func PushTask() *Task {
	return newTask(TaskPush, "push the release commit and tag").
		DependsOn(TaskTag).
		Retryable(true).
		Tags("git", "remote").
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			name, err := workflow.Value[string](wc, KeyTagName)
			if err != nil {
				return nil, err
			}

			log := taskLogger(wc, TaskPush)
			log.Info("pushing", zap.String("remote", opts.Remote), zap.String("tag", name))
			if dryRun(ctx, wc) {
				return wc, nil
			}
			if err := svc.Git.Push(ctx, opts.Remote, "HEAD", "refs/tags/"+name); err != nil {
				return nil, err
			}
			return wc.Fork(KeyPushed, true), nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			opts := wc.Config()
			name, err := workflow.Value[string](wc, KeyTagName)
			if err != nil {
				return err
			}
			log := taskLogger(wc, TaskPush)
			log.Warn("deleting remote tag, the pushed commit is left in place",
				zap.String("remote", opts.Remote), zap.String("tag", name))
			if dryRun(ctx, wc) {
				return nil
			}
			return wc.Services().Git.DeleteRemoteTag(ctx, opts.Remote, name)
		}).
		MustBuild()
}

// ---------------------------------------------------------------------------
// publish
// ---------------------------------------------------------------------------

// ReleaseGateTask routes straight to done when hosted releases are disabled.
func ReleaseGateTask() *Task {
	return newTask(TaskReleaseGate, "decide whether to publish a hosted release").
		DependsOn(TaskPush).
		Kind(workflow.TaskKindQuery).
		Executes(workflow.Passthrough[Options, *Services]).
		NextTasks(func(_ context.Context, wc *Context) ([]string, error) {
			if wc.Config().SkipRelease {
				taskLogger(wc, TaskReleaseGate).Info("hosted release disabled, skipping to done")
				return []string{TaskDone}, nil
			}
			return nil, nil
		}).
		MustBuild()
}

// CreateReleaseTask publishes the hosted release for the tag.
func CreateReleaseTask() *Task {
	return newTask(TaskCreateRelease, "create the hosted release").
		DependsOn(TaskReleaseGate).
		Kind(workflow.TaskKindNotification).
		Tags("remote").
		Executes(func(ctx context.Context, wc *Context) (*Context, error) {
			opts, svc := wc.Config(), wc.Services()
			name, err := workflow.Value[string](wc, KeyTagName)
			if err != nil {
				return nil, err
			}
			body, _ := workflow.Value[string](wc, KeyChangelogContent)
			if body == "" {
				body = "Release " + name
			}

			log := taskLogger(wc, TaskCreateRelease)
			log.Info("creating hosted release", zap.String("tag", name), zap.Bool("draft", opts.Draft))
			if dryRun(ctx, wc) {
				return wc, nil
			}
			info, err := svc.Host.CreateRelease(ctx, ReleaseRequest{
				TagName:    name,
				Name:       name,
				Body:       body,
				Draft:      opts.Draft,
				Prerelease: opts.Prerelease,
			})
			if err != nil {
				return nil, err
			}
			return wc.ForkAll(map[string]any{
				KeyReleaseURL: info.URL,
				KeyReleaseID:  info.ID,
			}), nil
		}).
		Undoes(func(ctx context.Context, wc *Context) error {
			id, err := workflow.Value[int64](wc, KeyReleaseID)
			if err != nil || id == 0 {
				return nil
			}
			taskLogger(wc, TaskCreateRelease).Info("deleting hosted release", zap.Int64("release_id", id))
			if dryRun(ctx, wc) {
				return nil
			}
			return wc.Services().Host.DeleteRelease(ctx, id)
		}).
		MustBuild()
}

// DoneTask is the terminal no-op task.
func DoneTask() *Task {
	return newTask(TaskDone, "finish the release").
		DependsOn(TaskCreateRelease).
		Kind(workflow.TaskKindNotification).
		Phase(workflow.PhaseCleanup).
		Executes(func(_ context.Context, wc *Context) (*Context, error) {
			next, _ := workflow.Value[string](wc, KeyNextVersion)
			url, _ := workflow.Value[string](wc, KeyReleaseURL)
			taskLogger(wc, TaskDone).Info("release finished",
				zap.String("version", next),
				zap.String("release_url", url),
			)
			return wc, nil
		}).
		MustBuild()
}
