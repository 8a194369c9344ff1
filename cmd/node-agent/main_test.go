package main

import (
	"context"
	"errors"
	"testing"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
	"github.com/zrs-products/hetero-devquery/pkg/devapi/rocm"
	"github.com/zrs-products/hetero-devquery/pkg/shim"
)

// failingShutdown 模拟关闭失败的设备 API
type failingShutdown struct {
	devapi.Interface
	shutdowns int
}

func (f *failingShutdown) Shutdown() error {
	f.shutdowns++
	return devapi.NewError(devapi.KindOther, "nvmlShutdown", errors.New("driver busy"))
}

func TestPrintOnce(t *testing.T) {
	if err := printOnce(context.Background(), shim.New(rocm.NewMockLibrary(nil))); err != nil {
		t.Fatalf("printOnce() failed: %v", err)
	}
}

func TestPrintOnce_ShutdownErrorLogged(t *testing.T) {
	api := &failingShutdown{Interface: shim.New(rocm.NewMockLibrary(nil))}

	if err := printOnce(context.Background(), api); err != nil {
		t.Fatalf("printOnce() should not fail on shutdown errors: %v", err)
	}
	if api.shutdowns != 1 {
		t.Errorf("Expected 1 Shutdown call, got %d", api.shutdowns)
	}
}

func TestPrintOnce_InitFailure(t *testing.T) {
	lib := rocm.NewMockLibrary(nil)
	lib.InitErr = errors.New("KFD device not found")

	if err := printOnce(context.Background(), shim.New(lib)); err == nil {
		t.Error("printOnce() should fail when the device API cannot initialize")
	}
}
