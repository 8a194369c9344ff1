// Package shim answers the NVML-shaped device API on top of the ROCm native library.
package shim

import (
	"bytes"
	"errors"
	"unicode/utf8"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
	"github.com/zrs-products/hetero-devquery/pkg/devapi/rocm"
)

// Translator implements devapi.Interface by delegating to a rocm.Library.
// It holds no mutable state of its own.
type Translator struct {
	lib rocm.Library
}

// New returns a Translator over lib.
func New(lib rocm.Library) *Translator {
	return &Translator{lib: lib}
}

// Vendor reports the vendor that actually executes the calls.
func (t *Translator) Vendor() string {
	return devapi.VendorAMD
}

// Init initializes the native library.
func (t *Translator) Init() error {
	if err := t.lib.Initialize(); err != nil {
		return devapi.NewError(devapi.KindOther, "nvmlInit", err)
	}
	return nil
}

// Shutdown releases the native library.
func (t *Translator) Shutdown() error {
	if err := t.lib.Shutdown(); err != nil {
		return translate("nvmlShutdown", err)
	}
	return nil
}

// DeviceGetCount returns the number of enumerable devices.
func (t *Translator) DeviceGetCount() (int, error) {
	n, err := t.lib.DeviceCount()
	if err != nil {
		return 0, translate("nvmlDeviceGetCount", err)
	}
	return n, nil
}

// DeviceGetHandleByIndex is the identity mapping: the native library addresses
// devices by index, so the index is the handle.
func (t *Translator) DeviceGetHandleByIndex(index int) (devapi.Handle, error) {
	return devapi.Handle(index), nil
}

// DeviceGetUUID renders the native unique identifier as a UTF-8 string.
func (t *Translator) DeviceGetUUID(h devapi.Handle) (string, error) {
	raw, err := t.lib.UniqueID(int(h))
	if err != nil {
		return "", translate("nvmlDeviceGetUUID", err)
	}

	// fixed-size identifier buffers are NUL padded
	raw = bytes.TrimRight(raw, "\x00")
	if !utf8.Valid(raw) {
		return "", devapi.Errorf(devapi.KindOther, "nvmlDeviceGetUUID", "device %d: identifier is not valid UTF-8", h)
	}
	return string(raw), nil
}

// DeviceGetHandleByUUID scans every device and returns the first whose UUID matches.
// Devices that report no identifier are skipped.
func (t *Translator) DeviceGetHandleByUUID(uuid string) (devapi.Handle, error) {
	count, err := t.DeviceGetCount()
	if err != nil {
		return 0, err
	}

	for i := 0; i < count; i++ {
		h := devapi.Handle(i)
		got, err := t.DeviceGetUUID(h)
		if errors.Is(err, devapi.ErrNotSupported) {
			// device without an identifier cannot match
			continue
		}
		if err != nil {
			return 0, err
		}
		if got == uuid {
			return h, nil
		}
	}

	return 0, devapi.Errorf(devapi.KindHandleNotFound, "nvmlDeviceGetHandleByUUID",
		"could not associate the given UUID %q with any device", uuid)
}

// DeviceGetMemoryInfo builds the memory snapshot, deriving free from total and used.
func (t *Translator) DeviceGetMemoryInfo(h devapi.Handle) (devapi.MemoryInfo, error) {
	const op = "nvmlDeviceGetMemoryInfo"

	used, err := t.lib.MemoryUsed(int(h))
	if err != nil {
		return devapi.MemoryInfo{}, translate(op, err)
	}
	total, err := t.lib.MemoryTotal(int(h))
	if err != nil {
		return devapi.MemoryInfo{}, translate(op, err)
	}

	return devapi.NewMemoryInfo(op, total, used)
}

// DeviceGetName returns the product name reported by the native library.
func (t *Translator) DeviceGetName(h devapi.Handle) (string, error) {
	name, err := t.lib.Name(int(h))
	if err != nil {
		return "", translate("nvmlDeviceGetName", err)
	}
	return name, nil
}

// SystemGetDriverVersion returns the kernel driver version.
func (t *Translator) SystemGetDriverVersion() (string, error) {
	v, err := t.lib.DriverVersion()
	if err != nil {
		return "", translate("nvmlSystemGetDriverVersion", err)
	}
	return v, nil
}

// The calls below have no ROCm equivalent.

func (t *Translator) DeviceGetCPUAffinity(devapi.Handle, int) ([]uint64, error) {
	return nil, devapi.Unsupported("nvmlDeviceGetCpuAffinity")
}

func (t *Translator) DeviceGetMigMode(devapi.Handle) (int, int, error) {
	return 0, 0, devapi.Unsupported("nvmlDeviceGetMigMode")
}

func (t *Translator) DeviceGetMaxMigDeviceCount(devapi.Handle) (int, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetMaxMigDeviceCount")
}

func (t *Translator) DeviceGetMigDeviceHandleByIndex(devapi.Handle, int) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetMigDeviceHandleByIndex")
}

func (t *Translator) DeviceGetDeviceHandleFromMigDeviceHandle(devapi.Handle) (devapi.Handle, error) {
	return 0, devapi.Unsupported("nvmlDeviceGetDeviceHandleFromMigDeviceHandle")
}

// translate maps a native library error onto the nearest devapi kind.
func translate(op string, err error) error {
	switch {
	case errors.Is(err, rocm.ErrNotSupported):
		return devapi.NewError(devapi.KindNotSupported, op, err)
	case errors.Is(err, rocm.ErrNoDevice):
		return devapi.NewError(devapi.KindHandleNotFound, op, err)
	default:
		return devapi.NewError(devapi.KindOther, op, err)
	}
}

var _ devapi.Interface = (*Translator)(nil)
