package rocm

import (
	"fmt"
	"sync"
)

// MockLibrary 模拟 ROCm 库，用于测试和无硬件环境
type MockLibrary struct {
	mu          sync.RWMutex
	initialized bool
	devices     []mockDevice
	driver      string

	// InitErr 非空时 Initialize 返回该错误
	InitErr error
}

type mockDevice struct {
	name     string
	uniqueID []byte
	total    uint64
	used     uint64
}

// MockConfig Mock 库配置
type MockConfig struct {
	DeviceCount int      `json:"deviceCount"`
	Model       string   `json:"model"`
	VRAMPerGPU  uint64   `json:"vramPerGPU"` // bytes
	UUIDs       []string `json:"uuids,omitempty"`
	Driver      string   `json:"driver,omitempty"`
}

// DefaultMockConfig 默认 Mock 配置（模拟 4x MI250X 64GB GCD）
var DefaultMockConfig = MockConfig{
	DeviceCount: 4,
	Model:       "AMD Instinct MI250X",
	VRAMPerGPU:  64 * 1024 * 1024 * 1024, // 64GB
	Driver:      "6.3.6",
}

// NewMockLibrary 创建 Mock 库
// UUIDs 未指定的设备使用按索引生成的标识
func NewMockLibrary(config *MockConfig) *MockLibrary {
	if config == nil {
		config = &DefaultMockConfig
	}

	l := &MockLibrary{
		devices: make([]mockDevice, config.DeviceCount),
		driver:  config.Driver,
	}

	for i := 0; i < config.DeviceCount; i++ {
		id := fmt.Sprintf("%016x", 0x5bd0000000000000+uint64(i))
		if i < len(config.UUIDs) {
			id = config.UUIDs[i]
		}
		l.devices[i] = mockDevice{
			name:     config.Model,
			uniqueID: []byte(id),
			total:    config.VRAMPerGPU,
		}
	}

	return l
}

// Initialize 标记为已初始化
func (l *MockLibrary) Initialize() error {
	if l.InitErr != nil {
		return l.InitErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = true
	return nil
}

// Shutdown 标记为未初始化
func (l *MockLibrary) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = false
	return nil
}

// DeviceCount 返回模拟设备数
func (l *MockLibrary) DeviceCount() (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.initialized {
		return 0, ErrNotInitialized
	}
	return len(l.devices), nil
}

// MemoryUsed 返回模拟已用显存
func (l *MockLibrary) MemoryUsed(dev int) (uint64, error) {
	d, err := l.device(dev)
	return d.used, err
}

// MemoryTotal 返回模拟显存总量
func (l *MockLibrary) MemoryTotal(dev int) (uint64, error) {
	d, err := l.device(dev)
	return d.total, err
}

// UniqueID 返回模拟标识
func (l *MockLibrary) UniqueID(dev int) ([]byte, error) {
	d, err := l.device(dev)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), d.uniqueID...), nil
}

// Name 返回模拟型号
func (l *MockLibrary) Name(dev int) (string, error) {
	d, err := l.device(dev)
	return d.name, err
}

// DriverVersion 返回模拟驱动版本
func (l *MockLibrary) DriverVersion() (string, error) {
	if l.driver == "" {
		return "", fmt.Errorf("driver version: %w", ErrNotSupported)
	}
	return l.driver, nil
}

// SetMemoryUsed 设置设备已用显存（用于测试）
func (l *MockLibrary) SetMemoryUsed(dev int, used uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dev >= 0 && dev < len(l.devices) {
		l.devices[dev].used = used
	}
}

// SetUniqueID 设置设备原始标识（用于测试）
func (l *MockLibrary) SetUniqueID(dev int, raw []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dev >= 0 && dev < len(l.devices) {
		l.devices[dev].uniqueID = raw
	}
}

func (l *MockLibrary) device(dev int) (mockDevice, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.initialized {
		return mockDevice{}, ErrNotInitialized
	}
	if dev < 0 || dev >= len(l.devices) {
		return mockDevice{}, fmt.Errorf("device %d: %w", dev, ErrNoDevice)
	}
	return l.devices[dev], nil
}

// Ensure MockLibrary implements Library interface
var _ Library = (*MockLibrary)(nil)
