// Package ocean registers the ocean component's regression test cases.
package ocean

import (
	"github.com/polarlab/floe/internal/harness"
)

// New builds the ocean component with its baroclinic channel tasks
func New() (*harness.Component, error) {
	component := harness.NewComponent("ocean")

	defaultTask, err := newDefaultTask()
	if err != nil {
		return nil, err
	}
	if err := component.AddTask(defaultTask); err != nil {
		return nil, err
	}

	decompTask, err := newDecompTask()
	if err != nil {
		return nil, err
	}
	if err := component.AddTask(decompTask); err != nil {
		return nil, err
	}

	return component, nil
}
