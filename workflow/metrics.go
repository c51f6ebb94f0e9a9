package workflow

import "time"

// Task status labels shared by reports and metrics.
const (
	StatusExecuted = "executed"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// MetricsRecorder receives engine measurements. internal/metrics provides
// the Prometheus implementation.
type MetricsRecorder interface {
	RecordTask(taskID, status string, duration time.Duration)
	RecordUndo(taskID string, success bool, duration time.Duration)
	RecordRun(success bool, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordTask(string, string, time.Duration) {}
func (nopMetrics) RecordUndo(string, bool, time.Duration)   {}
func (nopMetrics) RecordRun(bool, time.Duration)            {}
