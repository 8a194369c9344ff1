package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zrs-products/hetero-devquery/pkg/install"
)

func TestLoadFromData(t *testing.T) {
	data := []byte(`
vendor: mock
probeCommand: /opt/rocm/bin/rocminfo
architectures: [gfx90a, gfx942]
mock:
  deviceCount: 2
  model: AMD Instinct MI300X
  vramPerGPU: 206158430208
agent:
  namespace: gpu-system
  collectInterval: 5s
`)

	config, err := LoadFromData(data)
	if err != nil {
		t.Fatalf("LoadFromData() failed: %v", err)
	}

	if config.Vendor != install.VendorMock {
		t.Errorf("Expected vendor 'mock', got '%s'", config.Vendor)
	}
	if len(config.Architectures) != 2 {
		t.Errorf("Expected 2 architectures, got %d", len(config.Architectures))
	}
	if config.Mock == nil || config.Mock.DeviceCount != 2 {
		t.Fatalf("Expected mock config with 2 devices, got %+v", config.Mock)
	}
	if config.Agent.Namespace != "gpu-system" {
		t.Errorf("Expected namespace 'gpu-system', got '%s'", config.Agent.Namespace)
	}
	if config.Agent.CollectInterval.Duration != 5*time.Second {
		t.Errorf("Expected collect interval 5s, got %v", config.Agent.CollectInterval.Duration)
	}
	// 未指定的字段保留默认值
	if config.Agent.ReportInterval.Duration != 30*time.Second {
		t.Errorf("Expected default report interval 30s, got %v", config.Agent.ReportInterval.Duration)
	}
	if config.SysfsRoot != "/" {
		t.Errorf("Expected default sysfs root '/', got '%s'", config.SysfsRoot)
	}

	ic := config.InstallConfig()
	if ic.ForceVendor != install.VendorMock || ic.ProbeCommand != "/opt/rocm/bin/rocminfo" {
		t.Errorf("InstallConfig() did not carry settings: %+v", ic)
	}
}

func TestLoadFromData_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty", "", "empty configuration data"},
		{"unknown vendor", "vendor: intel", "unknown vendor"},
		{"unknown field", "vendr: amd", "failed to parse YAML"},
		{"negative mock count", "mock:\n  deviceCount: -1", "mock.deviceCount"},
		{"zero interval", "agent:\n  collectInterval: 0s", "collectInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromData([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("vendor: nvidia\nnvmlLibraryPath: /usr/lib64/libnvidia-ml.so.1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if config.NVMLLibraryPath != "/usr/lib64/libnvidia-ml.so.1" {
		t.Errorf("unexpected library path %q", config.NVMLLibraryPath)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) should fail")
	}
}
