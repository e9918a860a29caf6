// Package setup expands a task selection into a concrete graph bound to a
// work directory: config layering, Configure hooks, collision and
// dependency checks, recipe materialization, and the YAML setup snapshot
// the runner reads back.
package setup

import (
	"fmt"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
	"github.com/polarlab/floe/internal/harness"
	"github.com/polarlab/floe/internal/suite"
)

// Registry holds the registered components in insertion order. Component
// construction enumerates every task eagerly, so listing and numeric
// selection are stable across invocations.
type Registry struct {
	components map[string]*harness.Component
	order      []string
}

// NewRegistry returns an empty registry
func NewRegistry(components ...*harness.Component) (*Registry, error) {
	r := &Registry{components: make(map[string]*harness.Component)}
	for _, component := range components {
		if err := r.Add(component); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a component under its unique name
func (r *Registry) Add(component *harness.Component) error {
	if _, exists := r.components[component.Name]; exists {
		return errors.New(errors.ErrCodeDuplicateRegistered,
			"component already registered: "+component.Name)
	}
	r.components[component.Name] = component
	r.order = append(r.order, component.Name)
	return nil
}

// Components returns the components in registration order
func (r *Registry) Components() []*harness.Component {
	out := make([]*harness.Component, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.components[name])
	}
	return out
}

// Selection pairs a task with its owning component and any cached-step
// annotation from a suite manifest
type Selection struct {
	Component *harness.Component
	Task      *harness.Task
	Cached    suite.Entry
}

// TaskPaths returns every registered task path, components in registration
// order and tasks in insertion order. The position in this list is the
// task's number for numeric selection, starting at 1.
func (r *Registry) TaskPaths() []domain.WorkPath {
	var out []domain.WorkPath
	for _, name := range r.order {
		out = append(out, r.components[name].TaskPaths()...)
	}
	return out
}

// Lookup finds the task registered at a canonical path
func (r *Registry) Lookup(path domain.WorkPath) (Selection, error) {
	for _, name := range r.order {
		component := r.components[name]
		if task, ok := component.Task(path); ok {
			return Selection{Component: component, Task: task}, nil
		}
	}
	return Selection{}, errors.New(errors.ErrCodeUnknownTask, "no task registered at "+path.String()).
		WithSuggestion("Run 'floe list' to see the registered task paths")
}

// SelectPaths resolves task paths to selections, preserving order
func (r *Registry) SelectPaths(paths []string) ([]Selection, error) {
	selections := make([]Selection, 0, len(paths))
	for _, raw := range paths {
		path, err := domain.NewWorkPath(raw)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeUnknownTask, "invalid task path "+raw, err)
		}
		selection, err := r.Lookup(path)
		if err != nil {
			return nil, err
		}
		selections = append(selections, selection)
	}
	return selections, nil
}

// SelectNumbers resolves 1-based task numbers, as printed by 'floe list'
func (r *Registry) SelectNumbers(numbers []int) ([]Selection, error) {
	all := r.TaskPaths()
	selections := make([]Selection, 0, len(numbers))
	for _, n := range numbers {
		if n < 1 || n > len(all) {
			return nil, errors.New(errors.ErrCodeUnknownTask,
				fmt.Sprintf("task number %d out of range 1..%d", n, len(all)))
		}
		selection, err := r.Lookup(all[n-1])
		if err != nil {
			return nil, err
		}
		selections = append(selections, selection)
	}
	return selections, nil
}

// SelectSuite resolves a suite manifest, attaching each entry's cached-step
// annotation to its selection
func (r *Registry) SelectSuite(manifest *suite.Manifest) ([]Selection, error) {
	selections := make([]Selection, 0, len(manifest.Entries))
	for _, entry := range manifest.Entries {
		selection, err := r.Lookup(entry.TaskPath)
		if err != nil {
			return nil, err
		}
		selection.Cached = entry
		selections = append(selections, selection)
	}
	return selections, nil
}
