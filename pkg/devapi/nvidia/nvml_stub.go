//go:build nonvml
// +build nonvml

package nvidia

import (
	"errors"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
)

var errNoNVML = errors.New("NVML not available (built with nonvml tag)")

// Library stub - used when building without NVIDIA libraries
type Library struct{}

// Option is accepted for API compatibility and ignored.
type Option func()

// WithLibraryPath is ignored in nonvml builds.
func WithLibraryPath(string) Option { return func() {} }

// New returns the stub.
func New(...Option) *Library {
	return &Library{}
}

func (l *Library) Vendor() string { return devapi.VendorNVIDIA }

func (l *Library) Init() error {
	return devapi.NewError(devapi.KindOther, "nvmlInit", errNoNVML)
}

func (l *Library) Shutdown() error { return nil }

func (l *Library) DeviceGetCount() (int, error) {
	return 0, devapi.NewError(devapi.KindOther, "nvmlDeviceGetCount", errNoNVML)
}

func (l *Library) DeviceGetHandleByIndex(int) (devapi.Handle, error) {
	return 0, devapi.NewError(devapi.KindOther, "nvmlDeviceGetHandleByIndex", errNoNVML)
}

func (l *Library) DeviceGetUUID(devapi.Handle) (string, error) {
	return "", devapi.NewError(devapi.KindOther, "nvmlDeviceGetUUID", errNoNVML)
}

func (l *Library) DeviceGetHandleByUUID(string) (devapi.Handle, error) {
	return 0, devapi.NewError(devapi.KindOther, "nvmlDeviceGetHandleByUUID", errNoNVML)
}

func (l *Library) DeviceGetMemoryInfo(devapi.Handle) (devapi.MemoryInfo, error) {
	return devapi.MemoryInfo{}, devapi.NewError(devapi.KindOther, "nvmlDeviceGetMemoryInfo", errNoNVML)
}

func (l *Library) DeviceGetName(devapi.Handle) (string, error) {
	return "", devapi.NewError(devapi.KindOther, "nvmlDeviceGetName", errNoNVML)
}

func (l *Library) SystemGetDriverVersion() (string, error) {
	return "", devapi.NewError(devapi.KindOther, "nvmlSystemGetDriverVersion", errNoNVML)
}

func (l *Library) DeviceGetCPUAffinity(devapi.Handle, int) ([]uint64, error) {
	return nil, devapi.NewError(devapi.KindOther, "nvmlDeviceGetCpuAffinity", errNoNVML)
}

func (l *Library) DeviceGetMigMode(devapi.Handle) (int, int, error) {
	return 0, 0, devapi.NewError(devapi.KindOther, "nvmlDeviceGetMigMode", errNoNVML)
}

func (l *Library) DeviceGetMaxMigDeviceCount(devapi.Handle) (int, error) {
	return 0, devapi.NewError(devapi.KindOther, "nvmlDeviceGetMaxMigDeviceCount", errNoNVML)
}

func (l *Library) DeviceGetMigDeviceHandleByIndex(devapi.Handle, int) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetMigDeviceHandleByIndex")
}

func (l *Library) DeviceGetDeviceHandleFromMigDeviceHandle(devapi.Handle) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetDeviceHandleFromMigDeviceHandle")
}

// Compile-time interface check
var _ devapi.Interface = (*Library)(nil)
