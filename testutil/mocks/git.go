// MockSourceControl 的版本控制测试模拟实现。
//
// 在内存中模拟提交、标签与远端标签，记录每次调用，支持按操作注入错误。
package mocks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/BaSui01/releaseflow/release"
)

// --- MockSourceControl 结构 ---

// MockSourceControl 是 release.SourceControl 的内存实现
type MockSourceControl struct {
	mu sync.Mutex

	branch  string
	dirty   []string
	commits []release.Commit
	// 每个标签对应打标签时的提交数量
	tags       map[string]int
	remoteTags map[string]bool
	staged     []string

	errors map[string]error
	calls  []string
	seq    int
}

// NewMockSourceControl 创建位于 main 分支、工作区干净的 MockSourceControl
func NewMockSourceControl() *MockSourceControl {
	return &MockSourceControl{
		branch:     "main",
		tags:       make(map[string]int),
		remoteTags: make(map[string]bool),
		errors:     make(map[string]error),
	}
}

// WithBranch 设置当前分支
func (m *MockSourceControl) WithBranch(branch string) *MockSourceControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branch = branch
	return m
}

// WithDirty 设置未提交的变更
func (m *MockSourceControl) WithDirty(lines ...string) *MockSourceControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirty = lines
	return m
}

// WithCommits 追加历史提交（按时间从旧到新）
func (m *MockSourceControl) WithCommits(subjects ...string) *MockSourceControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range subjects {
		m.addCommitLocked(s)
	}
	return m
}

// WithTag 在当前 HEAD 打标签
func (m *MockSourceControl) WithTag(name string) *MockSourceControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[name] = len(m.commits)
	return m
}

// WithError 设置指定操作返回的错误，操作名与方法名一致，如 "Tag"、"Push"
func (m *MockSourceControl) WithError(op string, err error) *MockSourceControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[op] = err
	return m
}

func (m *MockSourceControl) addCommitLocked(subject string) string {
	m.seq++
	sha := fmt.Sprintf("%040x", m.seq)
	m.commits = append(m.commits, release.Commit{SHA: sha, Subject: subject})
	return sha
}

// record 记录调用并返回预设错误
func (m *MockSourceControl) record(op string, args ...string) error {
	call := op
	if len(args) > 0 {
		call += " " + strings.Join(args, " ")
	}
	m.calls = append(m.calls, call)
	return m.errors[op]
}

// --- SourceControl 接口实现 ---

// Status 返回未提交的变更
func (m *MockSourceControl) Status(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Status"); err != nil {
		return nil, err
	}
	return slices.Clone(m.dirty), nil
}

// CurrentBranch 返回当前分支
func (m *MockSourceControl) CurrentBranch(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CurrentBranch"); err != nil {
		return "", err
	}
	return m.branch, nil
}

// LatestTag 返回带前缀的最新标签
func (m *MockSourceControl) LatestTag(ctx context.Context, prefix string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("LatestTag", prefix); err != nil {
		return "", err
	}
	latest, best := "", ""
	for name := range m.tags {
		v, err := release.VersionFromTag(prefix, name)
		if err != nil {
			continue
		}
		if best == "" || release.CompareVersions(v, best) > 0 {
			latest, best = name, v
		}
	}
	return latest, nil
}

// CommitsSince 返回 ref 之后的提交（从新到旧）
func (m *MockSourceControl) CommitsSince(ctx context.Context, ref string) ([]release.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CommitsSince", ref); err != nil {
		return nil, err
	}
	start := 0
	if ref != "" {
		pos, ok := m.tags[ref]
		if !ok {
			return nil, fmt.Errorf("unknown revision %s", ref)
		}
		start = pos
	}
	out := slices.Clone(m.commits[start:])
	slices.Reverse(out)
	return out, nil
}

// Add 暂存文件
func (m *MockSourceControl) Add(ctx context.Context, paths ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Add", paths...); err != nil {
		return err
	}
	m.staged = append(m.staged, paths...)
	return nil
}

// Commit 提交暂存的文件
func (m *MockSourceControl) Commit(ctx context.Context, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Commit", message); err != nil {
		return "", err
	}
	m.staged = nil
	return m.addCommitLocked(message), nil
}

// ResetLastCommit 撤销最后一次提交
func (m *MockSourceControl) ResetLastCommit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ResetLastCommit"); err != nil {
		return err
	}
	if len(m.commits) == 0 {
		return fmt.Errorf("no commit to reset")
	}
	m.commits = m.commits[:len(m.commits)-1]
	return nil
}

// Tag 创建标签
func (m *MockSourceControl) Tag(ctx context.Context, name, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Tag", name); err != nil {
		return err
	}
	if _, ok := m.tags[name]; ok {
		return fmt.Errorf("tag %s already exists", name)
	}
	m.tags[name] = len(m.commits)
	return nil
}

// DeleteTag 删除本地标签
func (m *MockSourceControl) DeleteTag(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteTag", name); err != nil {
		return err
	}
	delete(m.tags, name)
	return nil
}

// Push 推送引用到远端
func (m *MockSourceControl) Push(ctx context.Context, remote string, refs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("Push", append([]string{remote}, refs...)...); err != nil {
		return err
	}
	for _, ref := range refs {
		if name, ok := strings.CutPrefix(ref, "refs/tags/"); ok {
			m.remoteTags[name] = true
		}
	}
	return nil
}

// DeleteRemoteTag 删除远端标签
func (m *MockSourceControl) DeleteRemoteTag(ctx context.Context, remote, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteRemoteTag", remote, name); err != nil {
		return err
	}
	delete(m.remoteTags, name)
	return nil
}

// --- 查询方法 ---

// GetCalls 获取所有调用记录，格式为 "Op arg1 arg2"
func (m *MockSourceControl) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.calls...)
}

// HasTag 检查本地标签是否存在
func (m *MockSourceControl) HasTag(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tags[name]
	return ok
}

// HasRemoteTag 检查远端标签是否存在
func (m *MockSourceControl) HasRemoteTag(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remoteTags[name]
}

// CommitCount 返回当前提交数量
func (m *MockSourceControl) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commits)
}

// HeadSubject 返回 HEAD 提交的标题
func (m *MockSourceControl) HeadSubject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commits) == 0 {
		return ""
	}
	return m.commits[len(m.commits)-1].Subject
}
