package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
	"github.com/zrs-products/hetero-devquery/pkg/devapi/rocm"
	"github.com/zrs-products/hetero-devquery/pkg/shim"
)

// newTestAPI 基于 Mock ROCm 库的设备 API
func newTestAPI(t *testing.T, config *rocm.MockConfig) (devapi.Interface, *rocm.MockLibrary) {
	t.Helper()
	lib := rocm.NewMockLibrary(config)
	api := shim.New(lib)
	if err := api.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return api, lib
}

// nameless 模拟不支持型号查询的设备 API
type nameless struct {
	devapi.Interface
}

func (nameless) DeviceGetName(devapi.Handle) (string, error) {
	return "", devapi.Unsupported("nvmlDeviceGetName")
}

// brokenMemory 模拟显存查询失败的设备 API
type brokenMemory struct {
	devapi.Interface
}

func (brokenMemory) DeviceGetMemoryInfo(devapi.Handle) (devapi.MemoryInfo, error) {
	return devapi.MemoryInfo{}, devapi.NewError(devapi.KindOther, "nvmlDeviceGetMemoryInfo", errors.New("smu timeout"))
}

func TestSnapshot(t *testing.T) {
	api, lib := newTestAPI(t, &rocm.MockConfig{
		DeviceCount: 2,
		Model:       "AMD Instinct MI210",
		VRAMPerGPU:  64 * 1024 * 1024 * 1024,
		UUIDs:       []string{"AAA", "BBB"},
		Driver:      "6.3.6",
	})
	lib.SetMemoryUsed(1, 16*1024*1024*1024)

	inv, err := Snapshot(context.Background(), api)
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}

	if inv.Vendor != devapi.VendorAMD {
		t.Errorf("Expected vendor 'amd', got '%s'", inv.Vendor)
	}
	if inv.DriverVersion != "6.3.6" {
		t.Errorf("Expected driver '6.3.6', got '%s'", inv.DriverVersion)
	}
	if len(inv.Devices) != 2 {
		t.Fatalf("Expected 2 devices, got %d", len(inv.Devices))
	}

	for i, d := range inv.Devices {
		if d.Index != i {
			t.Errorf("Device %d: index %d", i, d.Index)
		}
		if d.MemoryFree != d.MemoryTotal-d.MemoryUsed {
			t.Errorf("Device %d: free %d != total %d - used %d", i, d.MemoryFree, d.MemoryTotal, d.MemoryUsed)
		}
		if d.Name != "AMD Instinct MI210" {
			t.Errorf("Device %d: unexpected name %q", i, d.Name)
		}
	}

	d, ok := inv.Lookup("BBB")
	if !ok {
		t.Fatal("Lookup(BBB) should find device 1")
	}
	if d.MemoryUsed != 16*1024*1024*1024 {
		t.Errorf("Expected 16GB used, got %d", d.MemoryUsed)
	}

	if _, ok := inv.Lookup("CCC"); ok {
		t.Error("Lookup(CCC) should not find a device")
	}

	if inv.TotalMemory() != 128*1024*1024*1024 {
		t.Errorf("TotalMemory() = %d", inv.TotalMemory())
	}
	if inv.FreeMemory() != 112*1024*1024*1024 {
		t.Errorf("FreeMemory() = %d", inv.FreeMemory())
	}
}

func TestSnapshot_NameNotSupported(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	inv, err := Snapshot(context.Background(), nameless{api})
	if err != nil {
		t.Fatalf("Snapshot() should tolerate NotSupported names: %v", err)
	}
	for _, d := range inv.Devices {
		if d.Name != "" {
			t.Errorf("Expected empty name, got %q", d.Name)
		}
	}
}

func TestSnapshot_DeviceError(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	_, err := Snapshot(context.Background(), brokenMemory{api})
	if !errors.Is(err, devapi.ErrOther) {
		t.Errorf("Expected KindOther error, got %v", err)
	}
}

func TestSnapshot_NotInitialized(t *testing.T) {
	api := shim.New(rocm.NewMockLibrary(nil))

	if _, err := Snapshot(context.Background(), api); err == nil {
		t.Error("Snapshot() should fail before Init")
	}
}

func TestSnapshot_Canceled(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Snapshot(ctx, api); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestInventory_Empty(t *testing.T) {
	inv := &Inventory{}

	if inv.TotalMemory() != 0 {
		t.Errorf("TotalMemory() should be 0 for empty inventory")
	}
	if inv.FreeMemory() != 0 {
		t.Errorf("FreeMemory() should be 0 for empty inventory")
	}
}
