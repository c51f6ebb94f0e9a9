package mocks

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/releaseflow/release"
)

// FixedTime 是测试使用的固定时间
var FixedTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

// ReleaseServices 聚合一次发布测试所需的全部模拟协作者
type ReleaseServices struct {
	FS   *MockFileSystem
	Git  *MockSourceControl
	Host *MockReleaseHost
}

// NewReleaseServices 创建带 VERSION 文件和若干提交的默认模拟环境
func NewReleaseServices(version string, subjects ...string) *ReleaseServices {
	return &ReleaseServices{
		FS:   NewMockFileSystem().WithFile("VERSION", version+"\n"),
		Git:  NewMockSourceControl().WithCommits(subjects...),
		Host: NewMockReleaseHost(),
	}
}

// Services 转换为 release.Services
func (s *ReleaseServices) Services(logger *zap.Logger) *release.Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &release.Services{
		FS:       s.FS,
		Git:      s.Git,
		Analyzer: release.NewConventionalAnalyzer(),
		Host:     s.Host,
		Logger:   logger,
		Now:      func() time.Time { return FixedTime },
	}
}
