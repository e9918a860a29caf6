package ocean

import (
	"context"

	"github.com/polarlab/floe/internal/dataset"
	"github.com/polarlab/floe/internal/harness"
)

// initBody builds the initial state for a baroclinic channel: a linear
// temperature profile over nx cells between the configured surface and
// bottom temperatures.
type initBody struct{}

func (initBody) Run(_ context.Context, sc *harness.StepContext) error {
	nx, err := sc.Config.GetInt("baroclinic_channel", "nx")
	if err != nil {
		return err
	}
	surface, err := sc.Config.GetFloat("baroclinic_channel", "surface_temperature")
	if err != nil {
		return err
	}
	bottom, err := sc.Config.GetFloat("baroclinic_channel", "bottom_temperature")
	if err != nil {
		return err
	}

	temperature := make([]float64, nx)
	for i := range temperature {
		fraction := float64(i) / float64(nx-1)
		temperature[i] = surface + (bottom-surface)*fraction
	}

	state := dataset.New()
	state.SetFloat64("temperature", []int{nx}, temperature)
	return state.Write(sc.Path("initial_state.flds"))
}

// forwardBody advances the initial state with simple viscous damping. The
// result is independent of the task count, which is what the decomp test
// relies on.
type forwardBody struct{}

func (forwardBody) Run(_ context.Context, sc *harness.StepContext) error {
	steps, err := sc.Config.GetInt("baroclinic_channel", "time_steps")
	if err != nil {
		return err
	}
	viscosity, err := sc.Config.GetFloat("baroclinic_channel", "viscosity")
	if err != nil {
		return err
	}

	state, err := dataset.Read(sc.Path("initial_state.flds"))
	if err != nil {
		return err
	}
	temperature, err := state.Float64("temperature")
	if err != nil {
		return err
	}

	// Explicit diffusion toward the neighbors' mean
	factor := viscosity * 1e-4
	for s := 0; s < steps; s++ {
		next := make([]float64, len(temperature))
		copy(next, temperature)
		for i := 1; i < len(temperature)-1; i++ {
			mean := (temperature[i-1] + temperature[i+1]) / 2
			next[i] = temperature[i] + factor*(mean-temperature[i])
		}
		temperature = next
	}

	out := dataset.New()
	out.SetFloat64("temperature", []int{len(temperature)}, temperature)
	return out.Write(sc.Path("output.flds"))
}

// ConstrainResources reads the configured task count for forward runs. The
// framework clamps against the machine afterwards.
func (forwardBody) ConstrainResources(sc *harness.StepContext) error {
	if !sc.Config.Has("baroclinic_channel", "forward_ntasks") {
		return nil
	}
	ntasks, err := sc.Config.GetInt("baroclinic_channel", "forward_ntasks")
	if err != nil {
		return err
	}
	sc.Step.Resources.NTasks = ntasks
	return nil
}

// newInitStep declares the init step
func newInitStep() (*harness.Step, error) {
	step := harness.NewStep("init", initBody{})
	if err := step.AddOutputFile(harness.OutputFile{
		Filename:     "initial_state.flds",
		ValidateVars: []string{"temperature"},
	}); err != nil {
		return nil, err
	}
	return step, nil
}

// newForwardStep declares a forward step reading init's state
func newForwardStep(name, subdir string, ntasks int) (*harness.Step, error) {
	step := harness.NewStep(name, forwardBody{}).
		WithSubdir(subdir).
		WithResources(harness.Resources{
			NTasks:         ntasks,
			MinTasks:       1,
			CPUsPerTask:    1,
			MinCPUsPerTask: 1,
			OpenMPThreads:  1,
		})
	if err := step.AddInputFile(harness.InputRecipe{
		Filename: "initial_state.flds",
		Target:   "../init/initial_state.flds",
	}); err != nil {
		return nil, err
	}
	if err := step.AddOutputFile(harness.OutputFile{
		Filename:     "output.flds",
		ValidateVars: []string{"temperature"},
	}); err != nil {
		return nil, err
	}
	return step, nil
}
