package ocean

import (
	"github.com/polarlab/floe/internal/config"
	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/validate"
)

// setDefault fills a config option only when no earlier layer set it, so
// machine and user configs always win over package defaults
func setDefault(cfg *config.Config, section, key, value, comment string) {
	if !cfg.Has(section, key) {
		cfg.SetWithComment(section, key, value, comment)
	}
}

// channelHooks carries the config defaults every baroclinic channel task
// shares
type channelHooks struct{}

func (channelHooks) Configure(tc *harness.TaskContext) error {
	cfg := tc.Config
	setDefault(cfg, "baroclinic_channel", "nx", "64", "number of cells across the channel")
	setDefault(cfg, "baroclinic_channel", "surface_temperature", "13.1", "initial surface temperature (C)")
	setDefault(cfg, "baroclinic_channel", "bottom_temperature", "10.1", "initial bottom temperature (C)")
	setDefault(cfg, "baroclinic_channel", "time_steps", "30", "forward integration length")
	setDefault(cfg, "baroclinic_channel", "viscosity", "10.0", "del2 horizontal viscosity")
	return nil
}

func (channelHooks) Validate(tc *harness.TaskContext) error {
	report := &validate.Report{}
	validate.CompareWithBaseline(report, tc.WorkDir, tc.Baseline,
		"forward", "output.flds", []string{"temperature"}, tc.Logger)
	return report.Err()
}

// newDefaultTask is the plain init + forward case
func newDefaultTask() (*harness.Task, error) {
	task := harness.NewTask("default", domain.WorkPath("baroclinic_channel/10km/default"), channelHooks{})

	initStep, err := newInitStep()
	if err != nil {
		return nil, err
	}
	forward, err := newForwardStep("forward", "forward", 4)
	if err != nil {
		return nil, err
	}

	if err := task.AddStep(initStep, true, ""); err != nil {
		return nil, err
	}
	if err := task.AddStep(forward, true, ""); err != nil {
		return nil, err
	}
	return task, nil
}

// decompHooks adds the decomposition check: forward runs at different task
// counts must agree bit for bit
type decompHooks struct {
	channelHooks
}

func (h decompHooks) Validate(tc *harness.TaskContext) error {
	report := &validate.Report{}
	validate.CompareSteps(report, tc.WorkDir, "4proc", "8proc", "output.flds",
		[]string{"temperature"}, tc.Executed, false, tc.Logger)
	validate.CompareWithBaseline(report, tc.WorkDir, tc.Baseline,
		"8proc", "output.flds", []string{"temperature"}, tc.Logger)
	return report.Err()
}

// newDecompTask runs forward twice at different task counts
func newDecompTask() (*harness.Task, error) {
	task := harness.NewTask("decomp", domain.WorkPath("baroclinic_channel/10km/decomp"), decompHooks{})

	initStep, err := newInitStep()
	if err != nil {
		return nil, err
	}
	if err := task.AddStep(initStep, true, ""); err != nil {
		return nil, err
	}

	for _, proc := range []struct {
		name   string
		ntasks int
	}{
		{"4proc", 4},
		{"8proc", 8},
	} {
		forward, err := newForwardStep(proc.name, proc.name, proc.ntasks)
		if err != nil {
			return nil, err
		}
		if err := task.AddStep(forward, true, ""); err != nil {
			return nil, err
		}
	}
	return task, nil
}
