package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polarlab/floe/internal/domain"
	"github.com/polarlab/floe/internal/errors"
)

func mustPath(t *testing.T, value string) domain.WorkPath {
	t.Helper()
	p, err := domain.NewWorkPath(value)
	require.NoError(t, err)
	return p
}

func TestLookup(t *testing.T) {
	db := New()
	taskPath := mustPath(t, "ocean/global_ocean/qu240/init")
	db.Add(taskPath, "mesh", "culled_mesh.flds",
		"ocean/global_ocean/qu240/init/mesh/culled_mesh.20260815.flds")

	cached, err := db.Lookup(taskPath, "mesh", "culled_mesh.flds")
	require.NoError(t, err)
	assert.Equal(t, "ocean/global_ocean/qu240/init/mesh/culled_mesh.20260815.flds", cached)

	_, err = db.Lookup(taskPath, "mesh", "missing.flds")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCacheEntryMissing))
}

func TestAddDated(t *testing.T) {
	db := New()
	taskPath := mustPath(t, "ocean/global_ocean/qu240/init")
	date := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	cached := db.AddDated(taskPath, "mesh", "culled_mesh.flds", date)
	assert.Equal(t, "ocean/global_ocean/qu240/init/mesh/culled_mesh.20260829.flds", cached)

	looked, err := db.Lookup(taskPath, "mesh", "culled_mesh.flds")
	require.NoError(t, err)
	assert.Equal(t, cached, looked)
}

func TestSaveLoad(t *testing.T) {
	db := New()
	taskPath := mustPath(t, "ocean/baroclinic_channel/10km/default")
	db.Add(taskPath, "init", "initial_state.flds",
		"ocean/baroclinic_channel/10km/default/init/initial_state.20260801.flds")

	manifest := filepath.Join(t.TempDir(), "ocean_cache.yaml")
	require.NoError(t, db.Save(manifest))

	loaded, err := Load(manifest)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	cached, err := loaded.Lookup(taskPath, "init", "initial_state.flds")
	require.NoError(t, err)
	assert.Equal(t, "ocean/baroclinic_channel/10km/default/init/initial_state.20260801.flds", cached)
}

func TestLoadMissingManifest(t *testing.T) {
	db, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, db.Len())
}

func TestMerge(t *testing.T) {
	a := New()
	b := New()
	taskPath := mustPath(t, "ocean/global_ocean/qu240/init")
	a.Add(taskPath, "mesh", "mesh.flds", "old.flds")
	b.Add(taskPath, "mesh", "mesh.flds", "new.flds")
	b.Add(taskPath, "init", "state.flds", "state.flds")

	a.Merge(b)
	assert.Equal(t, 2, a.Len())
	cached, err := a.Lookup(taskPath, "mesh", "mesh.flds")
	require.NoError(t, err)
	assert.Equal(t, "new.flds", cached)
}
