// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	logger, logs := testutil.ObservedLogger()
//	testutil.AssertSkipped(t, report, "commit", "skipGit enabled")
//	testutil.AssertRolledBack(t, report, "commit", "changelog", "bump-version")
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BaSui01/releaseflow/workflow"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文，用于验证运行开始前的取消
func CancelledContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 📝 日志辅助
// =============================================================================

// ObservedLogger 返回记录全部日志（Debug 及以上）的 logger 与日志集合
func ObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// AssertLogged 断言某条日志消息至少出现一次
func AssertLogged(t *testing.T, logs *observer.ObservedLogs, message string) {
	t.Helper()
	if logs.FilterMessage(message).Len() == 0 {
		t.Errorf("expected log message %q, got %d other entries", message, logs.Len())
	}
}

// =============================================================================
// 🔍 报告断言
// =============================================================================

// AssertSkipped 断言任务被跳过且原因一致
func AssertSkipped(t *testing.T, report *workflow.Report, taskID, reason string) {
	t.Helper()
	got, ok := report.SkipReason(taskID)
	if !assert.True(t, ok, "task %s was not skipped", taskID) {
		return
	}
	assert.Equal(t, reason, got, "skip reason of %s", taskID)
}

// AssertRolledBack 断言回滚按给定顺序执行且全部成功
func AssertRolledBack(t *testing.T, report *workflow.Report, taskIDs ...string) {
	t.Helper()
	require.True(t, report.RollbackRan, "rollback did not run")

	got := make([]string, 0, len(report.Rollback))
	for _, o := range report.Rollback {
		assert.True(t, o.Success, "undo of %s failed: %s", o.TaskID, o.Error)
		got = append(got, o.TaskID)
	}
	assert.Equal(t, taskIDs, got)
}

// AssertFailedAt 断言运行失败于指定任务
func AssertFailedAt(t *testing.T, report *workflow.Report, taskID string) {
	t.Helper()
	assert.False(t, report.Success)
	if assert.NotNil(t, report.Failed, "report has no failed task") {
		assert.Equal(t, taskID, report.Failed.ID)
	}
}

// =============================================================================
// 📦 数据工具
// =============================================================================

// MustParseJSON 解析 JSON 字符串，失败时 panic
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}
