package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/releaseflow/types"
)

// SkippedTask records a bypassed task and why.
type SkippedTask struct {
	ID     string `json:"id" yaml:"id"`
	Reason string `json:"reason" yaml:"reason"`
}

// FailedTask records the task that stopped the run.
type FailedTask struct {
	ID    string          `json:"id" yaml:"id"`
	Code  types.ErrorCode `json:"code" yaml:"code"`
	Error string          `json:"error" yaml:"error"`
}

// TaskRecord is one step of the audit trail, in visit order.
type TaskRecord struct {
	ID        string        `json:"id" yaml:"id"`
	Status    string        `json:"status" yaml:"status"`
	Reason    string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Published []string      `json:"published,omitempty" yaml:"published,omitempty"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report describes what a run did. It is produced for every run, successful
// or not.
type Report struct {
	ExecutionID string        `json:"execution_id" yaml:"execution_id"`
	Success     bool          `json:"success" yaml:"success"`
	Executed    []string      `json:"executed" yaml:"executed"`
	Skipped     []SkippedTask `json:"skipped" yaml:"skipped"`
	Failed      *FailedTask   `json:"failed,omitempty" yaml:"failed,omitempty"`
	RollbackRan bool          `json:"rollback_ran" yaml:"rollback_ran"`
	Rollback    []UndoOutcome `json:"rollback,omitempty" yaml:"rollback,omitempty"`
	Records     []TaskRecord  `json:"records" yaml:"records"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

func newReport(executionID string) *Report {
	return &Report{
		ExecutionID: executionID,
		Executed:    []string{},
		Skipped:     []SkippedTask{},
		Records:     []TaskRecord{},
		StartedAt:   time.Now(),
	}
}

func (r *Report) recordExecuted(id string, published []string, d time.Duration) {
	r.Executed = append(r.Executed, id)
	r.Records = append(r.Records, TaskRecord{ID: id, Status: StatusExecuted, Published: published, Duration: d})
}

func (r *Report) recordSkipped(id, reason string, d time.Duration) {
	r.Skipped = append(r.Skipped, SkippedTask{ID: id, Reason: reason})
	r.Records = append(r.Records, TaskRecord{ID: id, Status: StatusSkipped, Reason: reason, Duration: d})
}

func (r *Report) recordFailed(id string, err *types.Error, d time.Duration) {
	r.Failed = &FailedTask{ID: id, Code: err.Code, Error: err.Error()}
	if id != "" {
		r.Records = append(r.Records, TaskRecord{ID: id, Status: StatusFailed, Error: err.Error(), Duration: d})
	}
}

// SkipReason returns the recorded reason for a skipped task.
func (r *Report) SkipReason(id string) (string, bool) {
	for _, s := range r.Skipped {
		if s.ID == id {
			return s.Reason, true
		}
	}
	return "", false
}

// SkippedIDs returns the skipped task ids in visit order.
func (r *Report) SkippedIDs() []string {
	out := make([]string, len(r.Skipped))
	for i, s := range r.Skipped {
		out[i] = s.ID
	}
	return out
}

// RollbackFailed reports whether any undo failed.
func (r *Report) RollbackFailed() bool {
	for _, o := range r.Rollback {
		if !o.Success {
			return true
		}
	}
	return false
}

// ExitCode maps the report to a process exit code: 0 on success, 1 on a
// forward failure, 2 when rollback was incomplete as well.
func (r *Report) ExitCode() int {
	switch {
	case r.Success:
		return 0
	case r.RollbackFailed():
		return 2
	default:
		return 1
	}
}

// Summary renders a short human-readable description.
func (r *Report) Summary() string {
	var sb strings.Builder

	status := "succeeded"
	if !r.Success {
		status = "failed"
	}
	fmt.Fprintf(&sb, "run %s %s in %s\n", r.ExecutionID, status, r.Duration.Round(time.Millisecond))

	for _, rec := range r.Records {
		switch rec.Status {
		case StatusSkipped:
			fmt.Fprintf(&sb, "  - %-20s skipped (%s)\n", rec.ID, rec.Reason)
		case StatusFailed:
			fmt.Fprintf(&sb, "  x %-20s failed: %s\n", rec.ID, rec.Error)
		default:
			fmt.Fprintf(&sb, "  + %-20s executed\n", rec.ID)
		}
	}

	if r.Failed != nil && r.Failed.ID == "" {
		fmt.Fprintf(&sb, "  x run aborted: %s\n", r.Failed.Error)
	}

	if r.RollbackRan {
		sb.WriteString("rollback:\n")
		for _, o := range r.Rollback {
			if o.Success {
				fmt.Fprintf(&sb, "  ~ %-20s undone\n", o.TaskID)
			} else {
				fmt.Fprintf(&sb, "  ! %-20s undo failed: %s\n", o.TaskID, o.Error)
			}
		}
	}

	return sb.String()
}

// ToJSON converts the report to an indented JSON string.
func (r *Report) ToJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML converts the report to a YAML string.
func (r *Report) ToYAML() (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}
	return string(data), nil
}
