package probe

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

const rocminfoMI250 = `ROCk module is loaded
=====================
HSA Agents
==========
*******
Agent 2
*******
  Name:                    gfx90a
  Uuid:                    GPU-5bd0a1f2c3e4d5f6
  Marketing Name:          AMD Instinct MI250X
  ISA Info:
    ISA 1
      Name:                    amdgcn-amd-amdhsa--gfx90a:sramecc+:xnack-
`

func staticRunner(out string, err error) RunnerFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(out), err
	}
}

func TestProbe(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
		want   bool
	}{
		{"supported architecture", staticRunner(rocminfoMI250, nil), true},
		{"unrelated tokens", staticRunner("Agent 1 Name: AMD EPYC 7763 gfx803", nil), false},
		{"empty output", staticRunner("", nil), false},
		{"non-zero exit", staticRunner("gfx90a", &exec.ExitError{}), false},
		{"other runner error", staticRunner("", errors.New("permission denied")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(WithRunner(tt.runner))
			assert.Equal(t, tt.want, p.Probe(context.Background()))
		})
	}
}

func TestProbe_MissingCommand(t *testing.T) {
	p := New(WithCommand("rocminfo-does-not-exist-on-this-host"))

	assert.False(t, p.Probe(context.Background()))
}

func TestProbe_RunsConfiguredCommand(t *testing.T) {
	var gotName string
	var gotArgs []string
	runner := RunnerFunc(func(ctx context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte("gfx1100"), nil
	})

	p := New(WithCommand("/opt/rocm/bin/rocminfo"), WithRunner(runner))

	assert.True(t, p.Probe(context.Background()))
	assert.Equal(t, "/opt/rocm/bin/rocminfo", gotName)
	assert.Empty(t, gotArgs)
}

func TestProbe_CustomArchitectures(t *testing.T) {
	p := New(WithRunner(staticRunner("Name: gfx1030", nil)), WithArchitectures("gfx1030"))

	assert.True(t, p.Probe(context.Background()))
}

func TestMatch(t *testing.T) {
	assert.True(t, Match([]byte("amdgcn-amd-amdhsa--gfx942:sramecc+"), DefaultArchitectures))
	assert.True(t, Match([]byte("a\tb\ngfx908\n"), DefaultArchitectures))
	assert.False(t, Match([]byte("gfx9 0a"), DefaultArchitectures))
	assert.False(t, Match([]byte("gfx90a"), nil))
}
