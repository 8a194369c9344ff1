package devapi

// Interface NVML 风格的设备查询接口
// 下游代码只依赖此接口，具体实现（NVIDIA 原生或 ROCm 转换层）在启动时选定后注入
type Interface interface {
	// Vendor 返回实际执行调用的厂商名称
	Vendor() string

	// Init 初始化底层原生库
	Init() error

	// Shutdown 关闭底层原生库
	Shutdown() error

	// DeviceGetCount 返回可枚举的设备数量
	DeviceGetCount() (int, error)

	// DeviceGetHandleByIndex 按索引获取设备句柄
	DeviceGetHandleByIndex(index int) (Handle, error)

	// DeviceGetUUID 获取设备 UUID
	DeviceGetUUID(h Handle) (string, error)

	// DeviceGetHandleByUUID 按 UUID 查找设备句柄
	DeviceGetHandleByUUID(uuid string) (Handle, error)

	// DeviceGetMemoryInfo 获取显存使用快照
	DeviceGetMemoryInfo(h Handle) (MemoryInfo, error)

	// DeviceGetName 获取设备型号名称
	DeviceGetName(h Handle) (string, error)

	// SystemGetDriverVersion 获取驱动版本
	SystemGetDriverVersion() (string, error)

	// DeviceGetCPUAffinity 获取设备理想的 CPU 亲和性位图
	DeviceGetCPUAffinity(h Handle, numCPUs int) ([]uint64, error)

	// DeviceGetMigMode 获取 MIG 模式（当前值，待生效值）
	DeviceGetMigMode(h Handle) (current, pending int, err error)

	// DeviceGetMaxMigDeviceCount 获取最大 MIG 设备数
	DeviceGetMaxMigDeviceCount(h Handle) (int, error)

	// DeviceGetMigDeviceHandleByIndex 获取 MIG 子设备句柄
	DeviceGetMigDeviceHandleByIndex(h Handle, index int) (Handle, error)

	// DeviceGetDeviceHandleFromMigDeviceHandle 由 MIG 子设备句柄获取父设备句柄
	DeviceGetDeviceHandleFromMigDeviceHandle(mig Handle) (Handle, error)
}

// Handle 设备句柄
// 在本层中句柄即设备索引，进程生命周期内保持稳定
type Handle int

// MemoryInfo 显存使用快照，单位 bytes
// 始终满足 Free == Total - Used
type MemoryInfo struct {
	Total uint64
	Free  uint64
	Used  uint64
}

// NewMemoryInfo 由已用量和总量构造 MemoryInfo
func NewMemoryInfo(op string, total, used uint64) (MemoryInfo, error) {
	if used > total {
		return MemoryInfo{}, Errorf(KindOther, op, "used memory %d exceeds total %d", used, total)
	}
	return MemoryInfo{
		Total: total,
		Free:  total - used,
		Used:  used,
	}, nil
}

// 厂商名称
const (
	VendorNVIDIA = "nvidia"
	VendorAMD    = "amd"
)
