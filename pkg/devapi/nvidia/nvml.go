//go:build !nonvml
// +build !nonvml

package nvidia

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
)

// Library 基于 go-nvml 的原生 NVIDIA 实现
// 句柄即设备索引，每次调用时通过 DeviceGetHandleByIndex 解析为 nvml.Device
type Library struct {
	nvml nvml.Interface
}

// Option Library 配置项
type Option func(*options)

type options struct {
	libraryPath string
	iface       nvml.Interface
}

// WithLibraryPath 指定 libnvidia-ml.so.1 路径
func WithLibraryPath(path string) Option {
	return func(o *options) {
		o.libraryPath = path
	}
}

// WithInterface 注入 nvml.Interface（用于测试）
func WithInterface(iface nvml.Interface) Option {
	return func(o *options) {
		o.iface = iface
	}
}

// New 创建 NVIDIA 实现
func New(opts ...Option) *Library {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	iface := o.iface
	if iface == nil {
		var libOpts []nvml.LibraryOption
		if o.libraryPath != "" {
			libOpts = append(libOpts, nvml.WithLibraryPath(o.libraryPath))
		}
		iface = nvml.New(libOpts...)
	}

	return &Library{nvml: iface}
}

// Vendor 返回厂商名称
func (l *Library) Vendor() string {
	return devapi.VendorNVIDIA
}

// Init 初始化 NVML
func (l *Library) Init() error {
	if ret := l.nvml.Init(); ret != nvml.SUCCESS {
		return devapi.NewError(devapi.KindOther, "nvmlInit", returnError{ret})
	}
	return nil
}

// Shutdown 关闭 NVML
func (l *Library) Shutdown() error {
	if ret := l.nvml.Shutdown(); ret != nvml.SUCCESS {
		return translate("nvmlShutdown", ret)
	}
	return nil
}

// DeviceGetCount 获取设备数量
func (l *Library) DeviceGetCount() (int, error) {
	count, ret := l.nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, translate("nvmlDeviceGetCount", ret)
	}
	return count, nil
}

// DeviceGetHandleByIndex 校验索引有效后返回句柄
func (l *Library) DeviceGetHandleByIndex(index int) (devapi.Handle, error) {
	if _, err := l.device("nvmlDeviceGetHandleByIndex", devapi.Handle(index)); err != nil {
		return 0, err
	}
	return devapi.Handle(index), nil
}

// DeviceGetUUID 获取设备 UUID
func (l *Library) DeviceGetUUID(h devapi.Handle) (string, error) {
	const op = "nvmlDeviceGetUUID"
	dev, err := l.device(op, h)
	if err != nil {
		return "", err
	}
	uuid, ret := dev.GetUUID()
	if ret != nvml.SUCCESS {
		return "", translate(op, ret)
	}
	return uuid, nil
}

// DeviceGetHandleByUUID 由 NVML 解析 UUID，再取回设备索引
func (l *Library) DeviceGetHandleByUUID(uuid string) (devapi.Handle, error) {
	const op = "nvmlDeviceGetHandleByUUID"
	dev, ret := l.nvml.DeviceGetHandleByUUID(uuid)
	if ret != nvml.SUCCESS {
		return 0, translateLookup(op, ret)
	}
	index, ret := dev.GetIndex()
	if ret != nvml.SUCCESS {
		return 0, translate(op, ret)
	}
	return devapi.Handle(index), nil
}

// DeviceGetMemoryInfo 获取显存信息
func (l *Library) DeviceGetMemoryInfo(h devapi.Handle) (devapi.MemoryInfo, error) {
	const op = "nvmlDeviceGetMemoryInfo"
	dev, err := l.device(op, h)
	if err != nil {
		return devapi.MemoryInfo{}, err
	}
	mem, ret := dev.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return devapi.MemoryInfo{}, translate(op, ret)
	}
	// NVML 的 Free 包含驱动保留部分，统一按 Total - Used 计算
	return devapi.NewMemoryInfo(op, mem.Total, mem.Used)
}

// DeviceGetName 获取设备型号
func (l *Library) DeviceGetName(h devapi.Handle) (string, error) {
	const op = "nvmlDeviceGetName"
	dev, err := l.device(op, h)
	if err != nil {
		return "", err
	}
	name, ret := dev.GetName()
	if ret != nvml.SUCCESS {
		return "", translate(op, ret)
	}
	return name, nil
}

// SystemGetDriverVersion 获取驱动版本
func (l *Library) SystemGetDriverVersion() (string, error) {
	v, ret := l.nvml.SystemGetDriverVersion()
	if ret != nvml.SUCCESS {
		return "", translate("nvmlSystemGetDriverVersion", ret)
	}
	return v, nil
}

// DeviceGetCPUAffinity 获取 CPU 亲和性位图
func (l *Library) DeviceGetCPUAffinity(h devapi.Handle, numCPUs int) ([]uint64, error) {
	const op = "nvmlDeviceGetCpuAffinity"
	dev, err := l.device(op, h)
	if err != nil {
		return nil, err
	}

	mask, ret := dev.GetCpuAffinity(numCPUs)
	if ret != nvml.SUCCESS {
		return nil, translate(op, ret)
	}

	out := make([]uint64, len(mask))
	for i, m := range mask {
		out[i] = uint64(m)
	}
	return out, nil
}

// DeviceGetMigMode 获取 MIG 模式
func (l *Library) DeviceGetMigMode(h devapi.Handle) (int, int, error) {
	const op = "nvmlDeviceGetMigMode"
	dev, err := l.device(op, h)
	if err != nil {
		return 0, 0, err
	}
	current, pending, ret := dev.GetMigMode()
	if ret != nvml.SUCCESS {
		return 0, 0, translate(op, ret)
	}
	return current, pending, nil
}

// DeviceGetMaxMigDeviceCount 获取最大 MIG 设备数
func (l *Library) DeviceGetMaxMigDeviceCount(h devapi.Handle) (int, error) {
	const op = "nvmlDeviceGetMaxMigDeviceCount"
	dev, err := l.device(op, h)
	if err != nil {
		return 0, err
	}
	count, ret := dev.GetMaxMigDeviceCount()
	if ret != nvml.SUCCESS {
		return 0, translate(op, ret)
	}
	return count, nil
}

// DeviceGetMigDeviceHandleByIndex MIG 子设备没有独立的设备索引，无法表示为 Handle
func (l *Library) DeviceGetMigDeviceHandleByIndex(devapi.Handle, int) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetMigDeviceHandleByIndex")
}

// DeviceGetDeviceHandleFromMigDeviceHandle 同上
func (l *Library) DeviceGetDeviceHandleFromMigDeviceHandle(devapi.Handle) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetDeviceHandleFromMigDeviceHandle")
}

// device 将索引句柄解析为 nvml.Device
func (l *Library) device(op string, h devapi.Handle) (nvml.Device, error) {
	dev, ret := l.nvml.DeviceGetHandleByIndex(int(h))
	if ret != nvml.SUCCESS {
		return nil, translateLookup(op, ret)
	}
	return dev, nil
}

// returnError 将 nvml.Return 包装为 error
type returnError struct {
	ret nvml.Return
}

func (e returnError) Error() string {
	return nvml.ErrorString(e.ret)
}

// translate 将 nvml.Return 映射到 devapi 错误类别
func translate(op string, ret nvml.Return) error {
	switch ret {
	case nvml.ERROR_NOT_SUPPORTED, nvml.ERROR_FUNCTION_NOT_FOUND:
		return devapi.NewError(devapi.KindNotSupported, op, returnError{ret})
	case nvml.ERROR_NOT_FOUND:
		return devapi.NewError(devapi.KindHandleNotFound, op, returnError{ret})
	default:
		return devapi.NewError(devapi.KindOther, op, returnError{ret})
	}
}

// translateLookup 句柄查找时 INVALID_ARGUMENT 表示索引或 UUID 不存在
func translateLookup(op string, ret nvml.Return) error {
	if ret == nvml.ERROR_INVALID_ARGUMENT {
		return devapi.NewError(devapi.KindHandleNotFound, op, returnError{ret})
	}
	return translate(op, ret)
}

// Ensure Library implements devapi.Interface
var _ devapi.Interface = (*Library)(nil)
