package harness

import (
	"fmt"
	"path"
	"strings"

	"github.com/polarlab/floe/internal/errors"
)

// resolveInput maps an input recipe to the canonical work path it reads
// from, or "" when the input comes from outside the work tree (downloads,
// database symlinks, absolute targets).
func resolveInput(step *Step, recipe InputRecipe) string {
	if recipe.URL != "" || recipe.Database != "" {
		return ""
	}
	if strings.HasPrefix(recipe.Target, "/") {
		return ""
	}
	return path.Join(step.Path().String(), recipe.Target)
}

// ValidateStepGraph checks a task's file edges and explicit dependencies
// before anything is materialized. Steps run strictly in add order and the
// framework never reorders them, so every edge must already point backward;
// a forward edge is indistinguishable from a cycle and both are rejected as
// configuration errors. Inputs that resolve inside the task's own subtree
// must be produced by an earlier step's declared output.
func ValidateStepGraph(task *Task) error {
	steps := task.Steps()

	index := make(map[string]int, len(steps))
	producers := make(map[string]int)
	for i, step := range steps {
		index[step.Name] = i
		for _, output := range step.Outputs() {
			producers[path.Join(step.Path().String(), output.Filename)] = i
		}
	}

	taskPrefix := task.Path().String() + "/"

	for i, step := range steps {
		for _, recipe := range step.Inputs() {
			resolved := resolveInput(step, recipe)
			if resolved == "" {
				continue
			}
			producer, produced := producers[resolved]
			if produced {
				if producer == i {
					return errors.New(errors.ErrCodeDependencyCycle,
						fmt.Sprintf("step %s reads its own output %s", step.Name, recipe.Filename))
				}
				if producer > i {
					return errors.NewDependencyCycleError(
						[]string{steps[producer].Name, step.Name, steps[producer].Name})
				}
				continue
			}
			// An input inside this task's subtree that nothing produces can
			// never exist at run time.
			if strings.HasPrefix(resolved, taskPrefix) {
				return errors.NewUnsatisfiedInputError(step.Name, recipe.Filename)
			}
		}

		for _, dep := range step.Dependencies() {
			depIndex, inTask := index[dep.Name]
			if !inTask {
				// Shared or cross-task dependency; ordering is the suite's concern
				continue
			}
			if depIndex == i {
				return errors.New(errors.ErrCodeDependencyCycle,
					fmt.Sprintf("step %s depends on itself", step.Name))
			}
			if depIndex > i {
				return errors.NewDependencyCycleError(
					[]string{dep.Name, step.Name, dep.Name})
			}
		}
	}

	return nil
}
