package rocm

import (
	"errors"
)

// Library ROCm 原生设备管理库的调用面
// 设备以从 0 开始的索引寻址
type Library interface {
	// Initialize 初始化库，重复调用无副作用
	Initialize() error

	// Shutdown 释放库状态
	Shutdown() error

	// DeviceCount 返回 GPU 设备数量
	DeviceCount() (int, error)

	// MemoryUsed 返回已用显存（bytes）
	MemoryUsed(dev int) (uint64, error)

	// MemoryTotal 返回显存总量（bytes）
	MemoryTotal(dev int) (uint64, error)

	// UniqueID 返回设备唯一标识的原始字节
	UniqueID(dev int) ([]byte, error)

	// Name 返回设备型号名称
	Name(dev int) (string, error)

	// DriverVersion 返回 amdgpu 驱动版本
	DriverVersion() (string, error)
}

var (
	// ErrNotInitialized is returned by queries made before Initialize.
	ErrNotInitialized = errors.New("rocm: library not initialized")
	// ErrNoDevice is returned for an index outside the enumerated device set.
	ErrNoDevice = errors.New("rocm: no such device")
	// ErrNotSupported is returned when the driver does not expose the queried attribute.
	ErrNotSupported = errors.New("rocm: attribute not supported")
)
