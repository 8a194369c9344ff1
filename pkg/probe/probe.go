// Package probe detects whether supported AMD accelerators are installed.
package probe

import (
	"bytes"
	"context"
	"os/exec"

	"k8s.io/klog/v2"
)

// DefaultCommand is the diagnostic tool that enumerates HSA agents.
const DefaultCommand = "rocminfo"

// DefaultArchitectures lists the gfx targets the shim is known to work on.
var DefaultArchitectures = []string{
	"gfx908",
	"gfx90a",
	"gfx940",
	"gfx941",
	"gfx942",
	"gfx1100",
}

// Runner executes a command and returns its combined stdout and stderr.
type Runner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

// CombinedOutput implements Runner.
func (ExecRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CombinedOutput implements Runner.
func (f RunnerFunc) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return f(ctx, name, args...)
}

// Prober runs the capability check.
type Prober struct {
	command string
	runner  Runner
	archs   []string
}

// Option configures a Prober.
type Option func(*Prober)

// WithCommand overrides the diagnostic command.
func WithCommand(name string) Option {
	return func(p *Prober) {
		if name != "" {
			p.command = name
		}
	}
}

// WithRunner overrides how the command is executed.
func WithRunner(r Runner) Option {
	return func(p *Prober) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithArchitectures replaces the architecture allow-list.
func WithArchitectures(codes ...string) Option {
	return func(p *Prober) {
		if len(codes) > 0 {
			p.archs = codes
		}
	}
}

// New returns a Prober using rocminfo and the default allow-list unless overridden.
func New(opts ...Option) *Prober {
	p := &Prober{
		command: DefaultCommand,
		runner:  ExecRunner{},
		archs:   DefaultArchitectures,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe reports whether an allow-listed architecture appears in the diagnostic output.
// A missing command, a non-zero exit or any other failure yields false.
func (p *Prober) Probe(ctx context.Context) bool {
	out, err := p.runner.CombinedOutput(ctx, p.command)
	if err != nil {
		klog.V(2).Infof("Capability probe %q failed: %v", p.command, err)
		return false
	}

	if !Match(out, p.archs) {
		klog.V(2).Infof("Capability probe %q found no supported architecture", p.command)
		return false
	}
	return true
}

// Match splits output on whitespace and reports whether any token contains one
// of the allowed architecture codes.
func Match(output []byte, allow []string) bool {
	for _, tok := range bytes.Fields(output) {
		for _, code := range allow {
			if bytes.Contains(tok, []byte(code)) {
				return true
			}
		}
	}
	return false
}
