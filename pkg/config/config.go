// Package config loads the node agent configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/zrs-products/hetero-devquery/pkg/devapi/rocm"
	"github.com/zrs-products/hetero-devquery/pkg/install"
)

// Config is the on-disk configuration.
type Config struct {
	// Vendor forces a backend: "", "amd", "nvidia" or "mock".
	Vendor string `json:"vendor,omitempty"`

	ProbeCommand    string   `json:"probeCommand,omitempty"`
	Architectures   []string `json:"architectures,omitempty"`
	SysfsRoot       string   `json:"sysfsRoot,omitempty"`
	NVMLLibraryPath string   `json:"nvmlLibraryPath,omitempty"`

	Mock *rocm.MockConfig `json:"mock,omitempty"`

	Agent AgentConfig `json:"agent"`
}

// AgentConfig configures the inventory loop.
type AgentConfig struct {
	Namespace       string          `json:"namespace,omitempty"`
	CollectInterval metav1.Duration `json:"collectInterval,omitempty"`
	ReportInterval  metav1.Duration `json:"reportInterval,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SysfsRoot: "/",
		Agent: AgentConfig{
			Namespace:       "kube-system",
			CollectInterval: metav1.Duration{Duration: 10 * time.Second},
			ReportInterval:  metav1.Duration{Duration: 30 * time.Second},
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return LoadFromData(data)
}

// LoadFromData parses YAML on top of the defaults.
// This is useful for loading from Kubernetes ConfigMap data.
func LoadFromData(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty configuration data")
	}

	config := Default()
	if err := yaml.UnmarshalStrict(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks a Config for correctness.
func Validate(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	switch config.Vendor {
	case install.VendorAuto, install.VendorAMD, install.VendorNVIDIA, install.VendorMock:
	default:
		return fmt.Errorf("unknown vendor %q", config.Vendor)
	}

	if config.Mock != nil && config.Mock.DeviceCount < 0 {
		return fmt.Errorf("mock.deviceCount must not be negative")
	}

	if config.Agent.CollectInterval.Duration <= 0 {
		return fmt.Errorf("agent.collectInterval must be positive")
	}
	if config.Agent.ReportInterval.Duration <= 0 {
		return fmt.Errorf("agent.reportInterval must be positive")
	}

	return nil
}

// InstallConfig converts the file settings into an install.Config.
func (c *Config) InstallConfig() install.Config {
	return install.Config{
		ForceVendor:     c.Vendor,
		ProbeCommand:    c.ProbeCommand,
		Architectures:   c.Architectures,
		SysfsRoot:       c.SysfsRoot,
		NVMLLibraryPath: c.NVMLLibraryPath,
		Mock:            c.Mock,
	}
}
