package mapdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, m.OpenSqlite(""))
	require.NoError(t, m.Setup())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func loadFactory(t *testing.T) *mapdef.Definition {
	t.Helper()
	def, err := mapdef.NewFileSource("../mapdef/testdata").Definition(context.Background(), "factory")
	require.NoError(t, err)
	return def
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestManager(t).DB, zerolog.Nop())
	want := loadFactory(t)

	require.NoError(t, store.Save(ctx, want))

	got, err := store.Definition(ctx, "factory")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestManager(t).DB, zerolog.Nop())
	def := loadFactory(t)
	require.NoError(t, store.Save(ctx, def))

	delete(def.Layers, "basement")
	delete(def.StaticMarkers, "exit_gate3")
	def.DisplayName = "Factory (day)"
	require.NoError(t, store.Save(ctx, def))

	got, err := store.Definition(ctx, "factory")
	require.NoError(t, err)
	assert.Equal(t, "Factory (day)", got.DisplayName)
	assert.Len(t, got.Layers, 2)
	assert.Len(t, got.StaticMarkers, 1)
	assert.Contains(t, got.StaticMarkers, "office_key")
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	store := NewStore(newTestManager(t).DB, zerolog.Nop())
	def := loadFactory(t)
	def.DefaultLevel = 7

	err := store.Save(context.Background(), def)

	assert.True(t, errors.Is(err, mapdef.ErrInvalid))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(newTestManager(t).DB, zerolog.Nop())

	_, err := store.Definition(context.Background(), "labs")

	assert.True(t, errors.Is(err, mapdef.ErrNotFound))
}

func TestStore_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestManager(t).DB, zerolog.Nop())
	for _, id := range []string{"woods", "customs", "factory"} {
		def := loadFactory(t)
		def.ID = id
		require.NoError(t, store.Save(ctx, def))
	}

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customs", "factory", "woods"}, ids)

	require.NoError(t, store.Delete(ctx, "customs"))
	require.NoError(t, store.Delete(ctx, "customs"))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"factory", "woods"}, ids)
	_, err = store.Definition(ctx, "customs")
	assert.True(t, errors.Is(err, mapdef.ErrNotFound))

	var layers int64
	require.NoError(t, store.db.Model(&MapLayer{}).Where("map_id = ?", "customs").Count(&layers).Error)
	assert.Zero(t, layers)
}

func TestStore_Import(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newTestManager(t).DB, zerolog.Nop())

	n, err := store.Import(ctx, mapdef.NewFileSource("../mapdef/testdata"))

	require.NoError(t, err)
	assert.Equal(t, 1, n, "broken.json is skipped")
	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"factory"}, ids)
}

func TestManager_FallsBackToSqlite(t *testing.T) {
	m := NewManager(config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		Username: "nobody",
		Password: "nothing",
		Database: "none",
	}, zerolog.Nop())
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.Connect())

	assert.True(t, m.IsValid)
	assert.True(t, m.IsLocal)
	require.NoError(t, m.Setup())
}

func TestManager_DumpToDisk(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	require.NoError(t, NewStore(m.DB, zerolog.Nop()).Save(ctx, loadFactory(t)))

	path := filepath.Join(t.TempDir(), "maps.db")
	require.NoError(t, m.DumpToDisk(path))

	disk := NewManager(config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, disk.OpenSqlite(path))
	t.Cleanup(func() { _ = disk.Close() })

	got, err := NewStore(disk.DB, zerolog.Nop()).Definition(ctx, "factory")
	require.NoError(t, err)
	assert.Equal(t, loadFactory(t), got)
}

func TestManager_SetupWithoutConnection(t *testing.T) {
	m := NewManager(config.DatabaseConfig{}, zerolog.Nop())

	assert.Error(t, m.Setup())
	assert.Error(t, m.DumpToDisk("x.db"))
}
