package mocks

import (
	"context"
	"sync"

	pkgif "github.com/dep2p/go-ucnode/pkg/interfaces"
)

// MockDiscovery 模拟 DiscoveryMechanism 接口实现
type MockDiscovery struct {
	// NameValue Name 的返回值
	NameValue string

	// 可覆盖的方法
	StartFunc func(ctx context.Context) error
	StopFunc  func() error

	mu         sync.Mutex
	startCalls int
	stopCalls  int
}

var _ pkgif.DiscoveryMechanism = (*MockDiscovery)(nil)

// NewMockDiscovery 创建带名称的 MockDiscovery
func NewMockDiscovery(name string) *MockDiscovery {
	return &MockDiscovery{NameValue: name}
}

// Name 返回机制名称
func (m *MockDiscovery) Name() string {
	return m.NameValue
}

// Start 启动发现
func (m *MockDiscovery) Start(ctx context.Context) error {
	m.mu.Lock()
	m.startCalls++
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

// Stop 停止发现
func (m *MockDiscovery) Stop() error {
	m.mu.Lock()
	m.stopCalls++
	m.mu.Unlock()
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// StartCalls 返回 Start 调用次数
func (m *MockDiscovery) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls
}

// StopCalls 返回 Stop 调用次数
func (m *MockDiscovery) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}
