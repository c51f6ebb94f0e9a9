// =============================================================================
// 📦 ReleaseFlow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Release:   DefaultReleaseConfig(),
		GitHub:    DefaultGitHubConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultReleaseConfig 返回默认发布配置
func DefaultReleaseConfig() ReleaseConfig {
	return ReleaseConfig{
		WorkDir:       ".",
		Branch:        "main",
		Remote:        "origin",
		TagPrefix:     "v",
		VersionFile:   "VERSION",
		VersionField:  "version",
		ChangelogFile: "CHANGELOG.md",
		CommitMessage: "chore(release): %s",
		Timeout:       10 * time.Minute,
	}
}

// DefaultGitHubConfig 返回默认 GitHub 配置（未设置 owner 时不启用）
func DefaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIURL:            "https://api.github.com",
		RequestsPerSecond: 5,
		Timeout:           30 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		Insecure:     true,
		ServiceName:  "releaseflow",
		SampleRate:   1.0,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "releaseflow",
	}
}
