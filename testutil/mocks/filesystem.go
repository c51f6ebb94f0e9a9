// MockFileSystem 的文件系统测试模拟实现。
//
// 基于内存存储，支持写入错误注入与写入记录查询。
package mocks

import (
	"errors"
	"io/fs"
	"sync"
)

// --- MockFileSystem 结构 ---

// MockFileSystem 是 release.FileSystem 的内存实现
type MockFileSystem struct {
	mu sync.RWMutex

	files       map[string][]byte
	writeErrors map[string]error
	readErrors  map[string]error

	// 写入记录（按顺序）
	writes []string
}

// NewMockFileSystem 创建新的 MockFileSystem
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files:       make(map[string][]byte),
		writeErrors: make(map[string]error),
		readErrors:  make(map[string]error),
	}
}

// WithFile 预置文件内容
func (m *MockFileSystem) WithFile(path, content string) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
	return m
}

// WithWriteError 设置写入指定路径时返回的错误
func (m *MockFileSystem) WithWriteError(path string, err error) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErrors[path] = err
	return m
}

// WithReadError 设置读取指定路径时返回的错误
func (m *MockFileSystem) WithReadError(path string, err error) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErrors[path] = err
	return m
}

// --- FileSystem 接口实现 ---

// Exists 检查文件是否存在
func (m *MockFileSystem) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

// Read 读取文件内容
func (m *MockFileSystem) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.readErrors[path]; ok {
		return nil, err
	}
	data, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// Write 写入文件内容
func (m *MockFileSystem) Write(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.writeErrors[path]; ok {
		return err
	}
	m.files[path] = append([]byte(nil), data...)
	m.writes = append(m.writes, path)
	return nil
}

// Remove 删除文件
func (m *MockFileSystem) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return nil
	}
	delete(m.files, path)
	return nil
}

// --- 查询方法 ---

// Content 返回文件内容，文件不存在时返回空字符串
func (m *MockFileSystem) Content(path string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return string(m.files[path])
}

// GetWrites 获取写入记录
func (m *MockFileSystem) GetWrites() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string{}, m.writes...)
}

// ErrDiskFull 是常用的写入失败错误
var ErrDiskFull = errors.New("no space left on device")
