package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarlab/floe/internal/errors"
)

func TestAddTaskUniquePaths(t *testing.T) {
	ocean := NewComponent("ocean")

	require.NoError(t, ocean.AddTask(NewTask("default", "baroclinic_channel/10km/default", nil)))
	require.NoError(t, ocean.AddTask(NewTask("decomp", "baroclinic_channel/10km/decomp", nil)))

	// Two distinct tasks must never claim the same work-directory path
	err := ocean.AddTask(NewTask("other", "baroclinic_channel/10km/default", nil))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePathCollision))
}

func TestTaskOrderIsStable(t *testing.T) {
	ocean := NewComponent("ocean")
	require.NoError(t, ocean.AddTask(NewTask("c", "c", nil)))
	require.NoError(t, ocean.AddTask(NewTask("a", "a", nil)))
	require.NoError(t, ocean.AddTask(NewTask("b", "b", nil)))

	var names []string
	for _, task := range ocean.Tasks() {
		names = append(names, task.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestTaskLookupByPath(t *testing.T) {
	ocean := NewComponent("ocean")
	task := NewTask("default", "global_ocean/qu240/default", nil)
	require.NoError(t, ocean.AddTask(task))

	found, ok := ocean.Task("ocean/global_ocean/qu240/default")
	require.True(t, ok)
	assert.Same(t, task, found)
	assert.Equal(t, "ocean/global_ocean/qu240/default", task.Path().String())
}

func TestSharedStepDeduplicates(t *testing.T) {
	ocean := NewComponent("ocean")

	first := NewStep("mesh", noopBody{}).WithSubdir("global_ocean/qu240/mesh")
	second := NewStep("mesh", noopBody{}).WithSubdir("global_ocean/qu240/mesh")

	got1 := ocean.AddSharedStep(first)
	got2 := ocean.AddSharedStep(second)

	// Same canonical path yields the same instance, not a duplicate
	assert.Same(t, got1, got2)
	assert.True(t, got1.Shared)
	assert.Equal(t, "ocean/global_ocean/qu240/mesh", got1.Path().String())
}
