package machine

import (
	"runtime"
	"testing"

	"github.com/polarlab/floe/internal/config"
)

func TestDiscoverDefaults(t *testing.T) {
	info := Discover(nil)
	if info.AvailableTasks <= 0 {
		t.Errorf("AvailableTasks = %d, want > 0", info.AvailableTasks)
	}
	if info.CoresPerNode != runtime.NumCPU() {
		t.Errorf("CoresPerNode = %d, want %d", info.CoresPerNode, runtime.NumCPU())
	}
}

func TestDiscoverConfigWins(t *testing.T) {
	cfg := config.New()
	cfg.Set("parallel", "available_tasks", "8")
	cfg.Set("parallel", "cores_per_node", "36")

	info := Discover(cfg)
	if info.AvailableTasks != 8 {
		t.Errorf("AvailableTasks = %d, want 8", info.AvailableTasks)
	}
	if info.CoresPerNode != 36 {
		t.Errorf("CoresPerNode = %d, want 36", info.CoresPerNode)
	}
}

func TestDiscoverSchedulerEnv(t *testing.T) {
	t.Setenv("SLURM_NTASKS", "128")

	info := Discover(config.New())
	if info.AvailableTasks != 128 {
		t.Errorf("AvailableTasks = %d, want 128 from SLURM_NTASKS", info.AvailableTasks)
	}
}
