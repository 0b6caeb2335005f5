package daemon

import (
	"context"
	"time"

	"grila/internal/api"
	"grila/internal/deps"
)

func (d *Daemon) statusPayload(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		StoreDriver:  status.StoreDriver,
		LockFilePath: status.LockFilePath,
		Worker: api.WorkerStatus{
			Command:        d.cfg.Worker.Command,
			Available:      deps.AllRequiredAvailable(status.Dependencies),
			TimeoutSeconds: d.cfg.Worker.TimeoutSeconds,
			MaxConcurrency: d.cfg.Grading.MaxConcurrency,
			ActiveJobs:     status.ActiveJobs,
		},
		Dependencies: DependencyPayload(status.Dependencies),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	if host := status.Host; host != nil {
		payload.Host = &api.HostStatus{
			CPUCount:          host.CPUCount,
			Load1:             host.Load1,
			Load5:             host.Load5,
			Load15:            host.Load15,
			MemoryTotal:       host.MemoryTotal,
			MemoryUsedPercent: host.MemoryUsedPercent,
		}
	}
	return payload
}

// DependencyPayload converts dependency checks into API DTOs.
func DependencyPayload(statuses []deps.Status) []api.DependencyStatus {
	out := make([]api.DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}
