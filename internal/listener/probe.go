package listener

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Reading is one sample on a 0-100 scale.
type Reading struct {
	Overall float64
	PerCore []float64 // nil when the probe has no breakdown
}

// Probe takes one sample. Failures are treated as transient.
type Probe interface {
	Sample(ctx context.Context) (Reading, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (Reading, error)

func (f ProbeFunc) Sample(ctx context.Context) (Reading, error) { return f(ctx) }

// CPUProbe reports CPU load since the previous call.
type CPUProbe struct{}

func (CPUProbe) Sample(ctx context.Context) (Reading, error) {
	total, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return Reading{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(total) == 0 {
		return Reading{}, fmt.Errorf("cpu percent: no data")
	}
	r := Reading{Overall: total[0]}
	// Per-core numbers are diagnostic only.
	if cores, err := cpu.PercentWithContext(ctx, 0, true); err == nil {
		r.PerCore = cores
	}
	return r, nil
}

// MemoryProbe reports used virtual memory.
type MemoryProbe struct{}

func (MemoryProbe) Sample(ctx context.Context) (Reading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Reading{}, fmt.Errorf("virtual memory: %w", err)
	}
	return Reading{Overall: vm.UsedPercent}, nil
}
