package envbridge

import (
	"os"
	"testing"
)

func TestBridge(t *testing.T) {
	tests := []struct {
		name       string
		vars       map[string]string
		zero       bool
		wantValue  string
		wantSet    bool
		wantBridge bool
	}{
		{
			name:       "canonical unset",
			vars:       map[string]string{HIPVisibleDevices: "0,1"},
			wantValue:  "0,1",
			wantSet:    true,
			wantBridge: true,
		},
		{
			name:      "canonical already set",
			vars:      map[string]string{HIPVisibleDevices: "0,1", CanonicalVisibleDevices: "2"},
			wantValue: "2",
			wantSet:   true,
		},
		{
			name:      "canonical set but empty",
			vars:      map[string]string{HIPVisibleDevices: "0", CanonicalVisibleDevices: ""},
			wantValue: "",
			wantSet:   true,
		},
		{
			name:    "vendor variable absent",
			vars:    map[string]string{},
			wantSet: false,
		},
		{
			name:    "zero value environment",
			zero:    true,
			wantSet: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := NewMapEnv(tt.vars)
			if tt.zero {
				env = &MapEnv{}
			}

			if got := Bridge(env); got != tt.wantBridge {
				t.Errorf("Bridge() = %v, want %v", got, tt.wantBridge)
			}

			v, ok := env.LookupEnv(CanonicalVisibleDevices)
			if ok != tt.wantSet {
				t.Fatalf("canonical set = %v, want %v", ok, tt.wantSet)
			}
			if v != tt.wantValue {
				t.Errorf("canonical = %q, want %q", v, tt.wantValue)
			}
		})
	}
}

func TestBridge_Idempotent(t *testing.T) {
	env := NewMapEnv(map[string]string{HIPVisibleDevices: "0,1"})

	Bridge(env)
	// 之后修改厂商变量不再影响已设置的规范变量
	_ = env.Setenv(HIPVisibleDevices, "3")
	if Bridge(env) {
		t.Error("second Bridge() should be a no-op")
	}

	v, _ := env.LookupEnv(CanonicalVisibleDevices)
	if v != "0,1" {
		t.Errorf("canonical = %q, want %q", v, "0,1")
	}
}

func TestBridge_ProcessEnv(t *testing.T) {
	t.Setenv(HIPVisibleDevices, "1")
	t.Setenv(CanonicalVisibleDevices, "")
	os.Unsetenv(CanonicalVisibleDevices)

	if !Bridge(OS) {
		t.Fatal("Bridge(OS) should copy the vendor variable")
	}
	if got := os.Getenv(CanonicalVisibleDevices); got != "1" {
		t.Errorf("%s = %q, want %q", CanonicalVisibleDevices, got, "1")
	}
}

func TestMapEnv_ZeroValue(t *testing.T) {
	var env MapEnv

	if _, ok := env.LookupEnv(HIPVisibleDevices); ok {
		t.Fatal("zero MapEnv should be empty")
	}
	if err := env.Setenv(HIPVisibleDevices, "0,1"); err != nil {
		t.Fatalf("Setenv() failed: %v", err)
	}

	if !Bridge(&env) {
		t.Fatal("Bridge() should copy into a zero MapEnv")
	}
	if v, _ := env.LookupEnv(CanonicalVisibleDevices); v != "0,1" {
		t.Errorf("canonical = %q, want %q", v, "0,1")
	}
}
