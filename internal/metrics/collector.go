// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 workflow.MetricsRecorder
type Collector struct {
	registry *prometheus.Registry

	// 任务指标
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec

	// 回滚指标
	undoTotal    *prometheus.CounterVec
	undoDuration *prometheus.HistogramVec

	// 运行指标
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastRunSuccess prometheus.Gauge
	lastRunTime    prometheus.Gauge

	// 托管服务请求指标
	hostRequestsTotal   *prometheus.CounterVec
	hostRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
	mu     sync.Mutex
}

// NewCollector 创建指标收集器。registry 为 nil 时使用独立的新 Registry。
func NewCollector(namespace string, registry *prometheus.Registry, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// 任务指标
	c.tasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of visited tasks by outcome",
		},
		[]string{"task_id", "status"}, // status: executed, skipped, failed
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task_id"},
	)

	// 回滚指标
	c.undoTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_total",
			Help:      "Total number of undo invocations by outcome",
		},
		[]string{"task_id", "status"},
	)

	c.undoDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "undo_duration_seconds",
			Help:      "Undo duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task_id"},
	)

	// 运行指标
	c.runsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of workflow runs by outcome",
		},
		[]string{"status"},
	)

	c.runDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	c.lastRunSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last workflow run succeeded, 0 otherwise",
		},
	)

	c.lastRunTime = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last workflow run finished",
		},
	)

	// 托管服务请求指标
	c.hostRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_requests_total",
			Help:      "Total number of release host API requests",
		},
		[]string{"method", "status"},
	)

	c.hostRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "host_request_duration_seconds",
			Help:      "Release host API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Registry 返回底层的 Prometheus Registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// =============================================================================
// 🎯 工作流指标记录
// =============================================================================

// RecordTask 记录任务结果
func (c *Collector) RecordTask(taskID, status string, duration time.Duration) {
	c.tasksTotal.WithLabelValues(taskID, status).Inc()
	c.taskDuration.WithLabelValues(taskID).Observe(duration.Seconds())
}

// RecordUndo 记录回滚结果
func (c *Collector) RecordUndo(taskID string, success bool, duration time.Duration) {
	c.undoTotal.WithLabelValues(taskID, outcome(success)).Inc()
	c.undoDuration.WithLabelValues(taskID).Observe(duration.Seconds())
}

// RecordRun 记录一次完整运行
func (c *Collector) RecordRun(success bool, duration time.Duration) {
	c.runsTotal.WithLabelValues(outcome(success)).Inc()
	c.runDuration.Observe(duration.Seconds())
	if success {
		c.lastRunSuccess.Set(1)
	} else {
		c.lastRunSuccess.Set(0)
	}
	c.lastRunTime.SetToCurrentTime()
}

// =============================================================================
// 🌐 托管服务指标记录
// =============================================================================

// RecordHostRequest 记录托管服务 API 请求，status 为 0 表示请求未得到响应
func (c *Collector) RecordHostRequest(method string, status int, duration time.Duration) {
	c.hostRequestsTotal.WithLabelValues(method, statusCode(status)).Inc()
	c.hostRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// =============================================================================
// 📤 导出
// =============================================================================

// WriteTextfile 以 node_exporter textfile 格式写出当前指标
func (c *Collector) WriteTextfile(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		c.logger.Error("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		return err
	}
	c.logger.Debug("metrics textfile written", zap.String("path", path))
	return nil
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
