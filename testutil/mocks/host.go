// MockReleaseHost 的托管发布测试模拟实现。
//
// 记录创建与删除的发布，支持错误注入。
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/releaseflow/release"
)

// --- MockReleaseHost 结构 ---

// MockReleaseHost 是 release.ReleaseHost 的内存实现
type MockReleaseHost struct {
	mu sync.Mutex

	releases  map[int64]release.ReleaseRequest
	nextID    int64
	createErr error
	deleteErr error

	created []release.ReleaseRequest
	deleted []int64
}

// NewMockReleaseHost 创建新的 MockReleaseHost
func NewMockReleaseHost() *MockReleaseHost {
	return &MockReleaseHost{
		releases: make(map[int64]release.ReleaseRequest),
		nextID:   100,
	}
}

// WithCreateError 设置创建发布时返回的错误
func (m *MockReleaseHost) WithCreateError(err error) *MockReleaseHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
	return m
}

// WithDeleteError 设置删除发布时返回的错误
func (m *MockReleaseHost) WithDeleteError(err error) *MockReleaseHost {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
	return m
}

// --- ReleaseHost 接口实现 ---

// CreateRelease 创建发布
func (m *MockReleaseHost) CreateRelease(ctx context.Context, req release.ReleaseRequest) (*release.ReleaseInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	id := m.nextID
	m.nextID++
	m.releases[id] = req
	m.created = append(m.created, req)
	return &release.ReleaseInfo{
		ID:  id,
		URL: fmt.Sprintf("https://example.test/releases/%s", req.TagName),
	}, nil
}

// DeleteRelease 删除发布
func (m *MockReleaseHost) DeleteRelease(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.releases, id)
	m.deleted = append(m.deleted, id)
	return nil
}

// --- 查询方法 ---

// GetCreated 获取所有创建请求
func (m *MockReleaseHost) GetCreated() []release.ReleaseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]release.ReleaseRequest{}, m.created...)
}

// GetDeleted 获取所有被删除的发布 ID
func (m *MockReleaseHost) GetDeleted() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64{}, m.deleted...)
}

// Live 返回仍然存在的发布数量
func (m *MockReleaseHost) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.releases)
}
