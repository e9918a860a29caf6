package harness

import (
	"fmt"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
)

// Component is an ordered collection of tasks for one model subsystem
// (ocean, sea ice, land ice), plus component-wide config defaults and the
// canonical copies of steps shared between tasks.
type Component struct {
	// Name is the component's work-directory segment, e.g. "ocean"
	Name string
	// ConfigFiles are component-wide default config files, merged after
	// machine defaults and before task packages
	ConfigFiles []string

	tasks map[domain.WorkPath]*Task
	order []domain.WorkPath

	shared map[domain.WorkPath]*Step
}

// NewComponent creates an empty component. Enumeration of tasks happens
// eagerly at construction but must stay cheap.
func NewComponent(name string) *Component {
	return &Component{
		Name:   name,
		tasks:  make(map[domain.WorkPath]*Task),
		shared: make(map[domain.WorkPath]*Step),
	}
}

// AddTask registers a task under its unique subdir path and binds the
// task's canonical path. Insertion order is the stable order used by
// listing and numbering tools.
func (c *Component) AddTask(task *Task) error {
	if err := task.Subdir.Validate(); err != nil {
		return errors.Wrap(errors.ErrCodeUnknownTask,
			fmt.Sprintf("task %s has an invalid subdir", task.Name), err)
	}
	path := domain.WorkPath(c.Name).Join(task.Subdir.String())
	if existing, ok := c.tasks[path]; ok {
		return errors.NewPathCollisionError(path.String(), existing.Name, task.Name)
	}
	task.Bind(path, "")
	c.tasks[path] = task
	c.order = append(c.order, path)
	return nil
}

// Tasks returns the component's tasks in insertion order
func (c *Component) Tasks() []*Task {
	out := make([]*Task, 0, len(c.order))
	for _, path := range c.order {
		out = append(out, c.tasks[path])
	}
	return out
}

// Task returns the task registered at the given canonical path
func (c *Component) Task(path domain.WorkPath) (*Task, bool) {
	task, ok := c.tasks[path]
	return task, ok
}

// TaskPaths returns the canonical task paths in insertion order
func (c *Component) TaskPaths() []domain.WorkPath {
	return append([]domain.WorkPath(nil), c.order...)
}

// AddSharedStep registers a step owned by the component rather than a
// single task, keyed by its canonical work-directory path. A second caller
// requesting the same canonical path receives the existing instance, which
// is what makes the shared-step directory layout deterministic.
func (c *Component) AddSharedStep(step *Step) *Step {
	path := domain.WorkPath(c.Name).Join(step.Subdir)
	if existing, ok := c.shared[path]; ok {
		return existing
	}
	step.Shared = true
	step.Bind(path, "")
	c.shared[path] = step
	return step
}

// SharedSteps returns the component-owned shared steps keyed by canonical path
func (c *Component) SharedSteps() map[domain.WorkPath]*Step {
	out := make(map[domain.WorkPath]*Step, len(c.shared))
	for path, step := range c.shared {
		out[path] = step
	}
	return out
}
