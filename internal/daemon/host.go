package daemon

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostLoad is a snapshot of the machine the scoring workers run on.
type HostLoad struct {
	CPUCount          int
	Load1             float64
	Load5             float64
	Load15            float64
	MemoryTotal       uint64
	MemoryUsedPercent float64
}

func sampleHost(ctx context.Context) (*HostLoad, error) {
	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, err
	}
	host := &HostLoad{CPUCount: count}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		host.Load1 = avg.Load1
		host.Load5 = avg.Load5
		host.Load15 = avg.Load15
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}
	host.MemoryTotal = vm.Total
	host.MemoryUsedPercent = vm.UsedPercent
	return host, nil
}
