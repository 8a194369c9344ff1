// Package envbridge maps vendor-specific device visibility variables onto the
// canonical names downstream code reads.
package envbridge

import (
	"os"
	"sync"

	"k8s.io/klog/v2"
)

const (
	// CanonicalVisibleDevices is read by code written for NVIDIA devices.
	CanonicalVisibleDevices = "CUDA_VISIBLE_DEVICES"
	// HIPVisibleDevices is the HIP runtime's visibility variable.
	HIPVisibleDevices = "HIP_VISIBLE_DEVICES"
)

// Pair maps a vendor variable onto a canonical one.
type Pair struct {
	Vendor    string
	Canonical string
}

// Pairs are the variables bridged by Bridge.
var Pairs = []Pair{
	{Vendor: HIPVisibleDevices, Canonical: CanonicalVisibleDevices},
}

// Env is the environment Bridge reads and writes.
type Env interface {
	LookupEnv(key string) (string, bool)
	Setenv(key, value string) error
}

// OS is the process environment.
var OS Env = osEnv{}

type osEnv struct{}

func (osEnv) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }
func (osEnv) Setenv(key, value string) error      { return os.Setenv(key, value) }

// MapEnv is an in-memory Env. The zero value is an empty environment.
type MapEnv struct {
	mu   sync.Mutex
	vars map[string]string
}

// NewMapEnv returns a MapEnv seeded with vars.
func NewMapEnv(vars map[string]string) *MapEnv {
	m := &MapEnv{vars: make(map[string]string, len(vars))}
	for k, v := range vars {
		m.vars[k] = v
	}
	return m
}

// LookupEnv implements Env.
func (m *MapEnv) LookupEnv(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vars[key]
	return v, ok
}

// Setenv implements Env.
func (m *MapEnv) Setenv(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = map[string]string{}
	}
	m.vars[key] = value
	return nil
}

// Bridge copies each vendor variable into its canonical name when the canonical
// variable is unset. An already set canonical variable, even an empty one, is
// left untouched. It returns whether any variable was copied.
func Bridge(env Env) bool {
	bridged := false
	for _, p := range Pairs {
		if _, set := env.LookupEnv(p.Canonical); set {
			continue
		}
		v, ok := env.LookupEnv(p.Vendor)
		if !ok {
			continue
		}
		if err := env.Setenv(p.Canonical, v); err != nil {
			klog.Warningf("Failed to set %s from %s: %v", p.Canonical, p.Vendor, err)
			continue
		}
		klog.V(2).Infof("Bridged %s=%q into %s", p.Vendor, v, p.Canonical)
		bridged = true
	}
	return bridged
}
