// Package install selects, once per process, which devapi.Interface downstream
// code is handed: the native NVIDIA library or the ROCm shim.
package install

import (
	"context"
	"fmt"
	"sync"

	"k8s.io/klog/v2"

	"github.com/zrs-products/hetero-devquery/pkg/devapi"
	"github.com/zrs-products/hetero-devquery/pkg/devapi/nvidia"
	"github.com/zrs-products/hetero-devquery/pkg/devapi/rocm"
	"github.com/zrs-products/hetero-devquery/pkg/envbridge"
	"github.com/zrs-products/hetero-devquery/pkg/probe"
	"github.com/zrs-products/hetero-devquery/pkg/shim"
)

// Vendor selections accepted by Config.ForceVendor.
const (
	VendorAuto   = ""
	VendorAMD    = "amd"
	VendorNVIDIA = "nvidia"
	VendorMock   = "mock"
)

// State of an Installer.
type State int

const (
	StateUninitialized State = iota
	StateInstalled
)

func (s State) String() string {
	if s == StateInstalled {
		return "Installed"
	}
	return "Uninitialized"
}

// Prober decides whether the ROCm shim should be installed.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Config controls backend selection.
type Config struct {
	// ForceVendor skips the probe when set.
	ForceVendor string

	ProbeCommand    string
	Architectures   []string
	SysfsRoot       string
	NVMLLibraryPath string

	// Mock configures the mock ROCm library used for VendorMock.
	Mock *rocm.MockConfig

	// Test seams; nil selects the production implementation.
	Prober         Prober
	Env            envbridge.Env
	NewNative      func() devapi.Interface
	NewROCmLibrary func() rocm.Library
}

// Installer performs the selection exactly once.
type Installer struct {
	config Config

	once  sync.Once
	mu    sync.RWMutex
	state State
	api   devapi.Interface
	shim  bool
	err   error
}

// New returns an uninitialized Installer.
func New(config Config) *Installer {
	return &Installer{config: config}
}

// Install runs the capability probe, bridges the environment and builds the
// shim when the probe is positive; otherwise it selects the native NVIDIA
// library. Later calls return the first result without repeating any work.
func (i *Installer) Install(ctx context.Context) (devapi.Interface, error) {
	i.once.Do(func() {
		api, isShim, err := i.install(ctx)

		i.mu.Lock()
		defer i.mu.Unlock()
		i.api, i.shim, i.err = api, isShim, err
		i.state = StateInstalled
	})

	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.api, i.err
}

func (i *Installer) install(ctx context.Context) (devapi.Interface, bool, error) {
	useShim, err := i.useShim(ctx)
	if err != nil {
		return nil, false, err
	}

	if !useShim {
		klog.Info("Using native NVIDIA device library")
		return i.native(), false, nil
	}

	env := i.config.Env
	if env == nil {
		env = envbridge.OS
	}
	envbridge.Bridge(env)

	klog.Info("AMD accelerator detected, installing ROCm device shim")
	return shim.New(i.rocmLibrary()), true, nil
}

func (i *Installer) useShim(ctx context.Context) (bool, error) {
	switch i.config.ForceVendor {
	case VendorAMD, VendorMock:
		return true, nil
	case VendorNVIDIA:
		return false, nil
	case VendorAuto:
		return i.prober().Probe(ctx), nil
	default:
		return false, fmt.Errorf("unknown vendor %q", i.config.ForceVendor)
	}
}

func (i *Installer) prober() Prober {
	if i.config.Prober != nil {
		return i.config.Prober
	}
	return probe.New(
		probe.WithCommand(i.config.ProbeCommand),
		probe.WithArchitectures(i.config.Architectures...),
	)
}

func (i *Installer) native() devapi.Interface {
	if i.config.NewNative != nil {
		return i.config.NewNative()
	}
	var opts []nvidia.Option
	if i.config.NVMLLibraryPath != "" {
		opts = append(opts, nvidia.WithLibraryPath(i.config.NVMLLibraryPath))
	}
	return nvidia.New(opts...)
}

func (i *Installer) rocmLibrary() rocm.Library {
	if i.config.NewROCmLibrary != nil {
		return i.config.NewROCmLibrary()
	}
	if i.config.ForceVendor == VendorMock {
		return rocm.NewMockLibrary(i.config.Mock)
	}
	return rocm.NewSysfsLibrary(i.config.SysfsRoot)
}

// State returns the current state.
func (i *Installer) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// ShimInstalled reports whether the ROCm shim was selected.
func (i *Installer) ShimInstalled() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.shim
}

var (
	defaultMu        sync.Mutex
	defaultInstaller *Installer
)

// Configure sets the configuration of the process-wide installer. It must be
// called before the first Default or API call; later calls are rejected.
func Configure(config Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstaller != nil {
		return fmt.Errorf("device API installer already configured")
	}
	defaultInstaller = New(config)
	return nil
}

// Default returns the process-wide installer.
func Default() *Installer {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultInstaller == nil {
		defaultInstaller = New(Config{})
	}
	return defaultInstaller
}

// API installs (once) and returns the process-wide device API.
func API(ctx context.Context) (devapi.Interface, error) {
	return Default().Install(ctx)
}
