package workflow

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Shared test fixtures
// ---------------------------------------------------------------------------

type testConfig struct {
	SkipGit bool
}

// journal records the order in which task bodies and undos were called.
type journal struct {
	calls []string
}

func (j *journal) add(format string, args ...any) {
	j.calls = append(j.calls, fmt.Sprintf(format, args...))
}

type (
	tctx  = Context[testConfig, *journal]
	ttask = Task[testConfig, *journal]
)

func newTestContext(cfg testConfig) *tctx {
	return NewContext(cfg, &journal{}, nil)
}

var idSeq atomic.Int64

func sequentialIDs() func() string {
	return func() string {
		return fmt.Sprintf("run-%d", idSeq.Add(1))
	}
}

// recordingTask executes by journaling "exec:<id>" and publishing "<id>" = true.
func recordingTask(id string, deps ...string) *TaskBuilder[testConfig, *journal] {
	return NewTask[testConfig, *journal](id).
		Describe("test task " + id).
		DependsOn(deps...).
		Executes(func(_ context.Context, wc *tctx) (*tctx, error) {
			wc.Services().add("exec:%s", id)
			return wc.Fork(id, true), nil
		})
}

// undoable adds an undo that journals "undo:<id>".
func undoable(b *TaskBuilder[testConfig, *journal], id string) *TaskBuilder[testConfig, *journal] {
	return b.Undoes(func(_ context.Context, wc *tctx) error {
		wc.Services().add("undo:%s", id)
		return nil
	})
}

func failing(id string, err error, deps ...string) *TaskBuilder[testConfig, *journal] {
	return NewTask[testConfig, *journal](id).
		Describe("failing task " + id).
		DependsOn(deps...).
		Executes(func(_ context.Context, wc *tctx) (*tctx, error) {
			wc.Services().add("exec:%s", id)
			return nil, err
		})
}
