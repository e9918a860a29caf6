// Package machine discovers what the host can offer a step: how many task
// slots an allocation provides and how many cores each node has. Values come
// from the merged config when present, from the batch scheduler environment
// otherwise, and from the local CPU count as a last resort.
package machine

import (
	"os"
	"runtime"
	"strconv"

	"github.com/polarlab/floe/internal/config"
)

// Info describes the resources available to the current invocation
type Info struct {
	// AvailableTasks is the number of MPI task slots the allocation offers
	AvailableTasks int
	// CoresPerNode is the core count of one compute node
	CoresPerNode int
}

// schedulerTaskVars are checked in order for an externally granted slot count
var schedulerTaskVars = []string{"SLURM_NTASKS", "PBS_NP", "FLOE_AVAILABLE_TASKS"}

// Discover determines the available resources for the given merged config.
// The [parallel] section wins over scheduler environment variables so that a
// machine config file can pin what the harness assumes.
func Discover(cfg *config.Config) Info {
	info := Info{
		AvailableTasks: runtime.NumCPU(),
		CoresPerNode:   runtime.NumCPU(),
	}

	for _, name := range schedulerTaskVars {
		if value := os.Getenv(name); value != "" {
			if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
				info.AvailableTasks = parsed
				break
			}
		}
	}

	if cfg != nil {
		if tasks, err := cfg.GetInt("parallel", "available_tasks"); err == nil && tasks > 0 {
			info.AvailableTasks = tasks
		}
		if cores, err := cfg.GetInt("parallel", "cores_per_node"); err == nil && cores > 0 {
			info.CoresPerNode = cores
		}
	}

	return info
}
