package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/mapview"
	"github.com/dynamicmaps/overlay/internal/model/core"
	ootel "github.com/dynamicmaps/overlay/internal/otel"
	"github.com/dynamicmaps/overlay/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func vptr(x, y float64) *core.Vector2 { return &core.Vector2{X: x, Y: y} }

func fptr(v float64) *float64 { return &v }

func testDefinition(id string) *mapdef.Definition {
	return &mapdef.Definition{
		ID:     id,
		Bounds: []core.Vector2{{X: 0, Y: 0}, {X: 100, Y: 100}},
		Layers: map[string]mapdef.LayerDef{
			"ground": {Level: 0, Bounds: []mapdef.BoundsDef{{Min: vptr(0, 0), Max: vptr(100, 100), MaxHeight: fptr(3)}}},
			"roof":   {Level: 1, Bounds: []mapdef.BoundsDef{{Min: vptr(0, 0), Max: vptr(50, 50), MinHeight: fptr(3)}}},
		},
		StaticMarkers: map[string]mapdef.MarkerDef{
			"exit": {Category: "Extract", Position: core.MapPoint{X: 90, Y: 90}},
		},
	}
}

type fixture struct {
	world *world.Memory
	view  *mapview.View
	rec   *host.Recorder
}

func newFixture(t *testing.T, specs ...world.Spec) *fixture {
	t.Helper()
	w := world.NewMemory()
	w.SetInSession(true)
	for _, s := range specs {
		require.NoError(t, w.Spawn(s))
	}
	rec := host.NewRecorder()
	v := mapview.New(mapview.Options{Host: rec, Config: config.DefaultSnapshot(), Subscriber: w})
	require.NoError(t, v.LoadMap(testDefinition("factory")))
	return &fixture{world: w, view: v, rec: rec}
}

func hotZoneConfig(interval time.Duration) config.HotZonesConfig {
	cfg := config.DefaultSnapshot().HotZones
	cfg.Interval = interval
	return cfg
}

func newHotZones(t *testing.T, w world.World, cfg config.HotZonesConfig, sink PassSink) *HotZones {
	t.Helper()
	p, err := NewHotZones(HotZonesOptions{World: w, Config: cfg, Meter: noop.Meter{}, Sink: sink})
	require.NoError(t, err)
	t.Cleanup(func() { p.Scheduler().Stop() })
	return p
}

func hotZoneMarkers(v *mapview.View) map[string]*mapview.Marker {
	out := make(map[string]*mapview.Marker)
	for _, m := range v.Markers() {
		if m.Category() == HotZoneCategory {
			out[m.Name()] = m
		}
	}
	return out
}

var raidSpecs = []world.Spec{
	{ID: "boss", Nickname: "Reshala", Role: world.RoleBoss, Position: core.Position3D{X: 10, Z: 10}},
	{ID: "local", Nickname: "Me", Role: world.RolePMC, Local: true},
	{ID: "pmc", Nickname: "Usec", Role: world.RolePMC, Position: core.Position3D{X: 20, Z: 20}},
	{ID: "scav", Nickname: "Scav", Role: world.RoleScav, Position: core.Position3D{X: 30, Y: 5, Z: 30}},
	{ID: "gunner", Nickname: "Gunner", Role: world.RoleScav, EscortShooter: true},
}

func TestHotZones_ThreeEntitiesThreeMarkers(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	cfg := hotZoneConfig(time.Hour)
	p := newHotZones(t, f.world, cfg, nil)

	p.OnShowInRaid(f.view)

	markers := hotZoneMarkers(f.view)
	require.Len(t, markers, 3)
	assert.Equal(t, []string{"boss", "pmc", "scav"}, p.Owned())
	assert.Equal(t, cfg.BossColor, markers["boss"].Style().Color)
	assert.Equal(t, cfg.EnemyColor, markers["pmc"].Style().Color)
	assert.Equal(t, cfg.ScavColor, markers["scav"].Style().Color)
	assert.Equal(t, "Reshala", markers["boss"].Style().Label)
	assert.Equal(t, core.MapPoint{X: 30, Y: 30, Height: 5}, markers["scav"].Position())
	assert.Equal(t, "roof", markers["scav"].CurrentLayer().Name())
	assert.Equal(t, int64(1), p.Scheduler().Passes())
	assert.True(t, p.Scheduler().Running())
}

func TestHotZones_PassRebuildsMarkers(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)
	before := hotZoneMarkers(f.view)

	require.True(t, p.Scheduler().TryRun())

	after := hotZoneMarkers(f.view)
	require.Len(t, after, 3)
	for id, m := range after {
		assert.NotSame(t, before[id], m, id)
		assert.Nil(t, before[id].View(), "old marker of %s removed", id)
	}
	assert.Len(t, f.rec.Live(host.KindMarker), 4, "3 hot zones plus the static exit")
}

func TestHotZones_CorpseBeforeNextPass(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)
	pmc, ok := p.Marker("pmc")
	require.True(t, ok)

	require.NoError(t, f.world.Kill("pmc"))
	f.view.Update(16 * time.Millisecond)
	assert.False(t, f.view.HasMarker(pmc), "death notification removes the marker on the update path")

	require.True(t, p.Scheduler().TryRun())

	markers := hotZoneMarkers(f.view)
	assert.Len(t, markers, 2)
	assert.NotContains(t, markers, "pmc")
	assert.Equal(t, []string{"boss", "scav"}, p.Owned())
}

func TestHotZones_CorpseSweptWithoutUpdate(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)

	require.NoError(t, f.world.Kill("boss"))
	require.True(t, p.Scheduler().TryRun())

	assert.Equal(t, []string{"pmc", "scav"}, p.Owned())
	assert.NotContains(t, hotZoneMarkers(f.view), "boss")
}

func TestHotZones_ClassToggles(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	cfg := hotZoneConfig(time.Hour)
	cfg.ShowScavs = false
	cfg.ShowBosses = false
	p := newHotZones(t, f.world, cfg, nil)

	p.OnShowInRaid(f.view)

	assert.Equal(t, []string{"pmc"}, p.Owned())
}

func TestHotZones_OnMapChanged(t *testing.T) {
	f := newFixture(t,
		world.Spec{ID: "a", Role: world.RolePMC},
		world.Spec{ID: "b", Role: world.RoleScav},
	)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)
	before := hotZoneMarkers(f.view)
	require.Len(t, before, 2)

	def := testDefinition("customs")
	require.NoError(t, f.view.LoadMap(def))
	p.OnMapChanged(f.view, def)

	after := hotZoneMarkers(f.view)
	require.Len(t, after, 2)
	for id, m := range after {
		assert.NotSame(t, before[id], m)
		assert.Nil(t, before[id].View())
	}
	assert.Equal(t, []string{"a", "b"}, p.Owned())
	assert.Len(t, f.rec.Live(host.KindMarker), 3, "no orphaned markers")
}

func TestHotZones_OnMapChangedWithoutPriorLoad(t *testing.T) {
	f := newFixture(t, world.Spec{ID: "a", Role: world.RolePMC})
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)
	old, _ := p.Marker("a")

	// same view, same map: markers are still attached and must be replaced
	p.OnMapChanged(f.view, f.view.Definition())

	m, ok := p.Marker("a")
	require.True(t, ok)
	assert.NotSame(t, old, m)
	assert.False(t, f.view.HasMarker(old))
	assert.Len(t, hotZoneMarkers(f.view), 1)
}

func TestHotZones_RaidEnd(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)
	p.OnShowInRaid(f.view)

	p.OnRaidEnd(f.view)

	assert.Empty(t, hotZoneMarkers(f.view))
	assert.Empty(t, p.Owned())
	assert.False(t, p.Scheduler().Running())
	assert.False(t, p.Scheduler().Active())

	// a pass after raid end is a no-op
	require.True(t, p.Scheduler().TryRun())
	assert.Empty(t, hotZoneMarkers(f.view))
}

// offlineWorld reports no session while keeping its entities.
type offlineWorld struct {
	*world.Memory
	mu      sync.Mutex
	offline bool
}

func (w *offlineWorld) InSession() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.offline && w.Memory.InSession()
}

func (w *offlineWorld) setOffline(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.offline = v
}

type recordingSink struct {
	mu    sync.Mutex
	stats []PassStats
}

func (s *recordingSink) RecordPass(_ context.Context, st PassStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, st)
}

func (s *recordingSink) all() []PassStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PassStats(nil), s.stats...)
}

func TestHotZones_NotInSessionKeepsRegistry(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	w := &offlineWorld{Memory: f.world}
	sink := &recordingSink{}
	p := newHotZones(t, w, hotZoneConfig(time.Hour), sink)
	p.OnShowInRaid(f.view)
	before := hotZoneMarkers(f.view)

	w.setOffline(true)
	require.True(t, p.Scheduler().TryRun())

	after := hotZoneMarkers(f.view)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"boss", "pmc", "scav"}, p.Owned())

	stats := sink.all()
	require.Len(t, stats, 2)
	assert.False(t, stats[0].Skipped)
	assert.Equal(t, 3, stats[0].Added)
	assert.Equal(t, 5, stats[0].Alive)
	assert.Equal(t, "factory", stats[0].MapID)
	assert.True(t, stats[1].Skipped)
}

func TestHotZones_PeriodicPassPicksUpNewEntities(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(10*time.Millisecond), nil)
	p.OnShowInRaid(f.view)

	require.NoError(t, f.world.Spawn(world.Spec{ID: "late", Role: world.RolePMC}))

	assert.Eventually(t, func() bool {
		_, ok := p.Marker("late")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestHotZones_HideStopsLazily(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(10*time.Millisecond), nil)
	p.OnShowInRaid(f.view)

	p.OnHideInRaid(f.view)

	assert.Eventually(t, func() bool { return !p.Scheduler().Running() }, time.Second, 5*time.Millisecond)
	passes := p.Scheduler().Passes()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, passes, p.Scheduler().Passes())

	// markers stay while hidden
	assert.Len(t, hotZoneMarkers(f.view), 3)

	// showing again starts a new cycle with an immediate pass
	p.OnShowInRaid(f.view)
	assert.Equal(t, passes+1, p.Scheduler().Passes())
}

func TestHotZones_ShowTwiceDoesNotDoublePass(t *testing.T) {
	f := newFixture(t, raidSpecs...)
	p := newHotZones(t, f.world, hotZoneConfig(time.Hour), nil)

	p.OnShowInRaid(f.view)
	p.OnShowInRaid(f.view)

	assert.Equal(t, int64(1), p.Scheduler().Passes())
	assert.Len(t, hotZoneMarkers(f.view), 3)
}

func TestHotZones_Metrics(t *testing.T) {
	prov, err := ootel.New(ootel.Config{Enabled: true, ServiceName: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = prov.Shutdown(context.Background()) })

	f := newFixture(t, raidSpecs...)
	p, err := NewHotZones(HotZonesOptions{World: f.world, Config: hotZoneConfig(time.Hour), Meter: prov.Meter("test")})
	require.NoError(t, err)
	t.Cleanup(p.Scheduler().Stop)

	p.OnShowInRaid(f.view)
	p.Scheduler().TryRun()

	got, err := prov.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), got["provider.passes"])
	assert.Equal(t, int64(6), got["provider.markers.added"])
	assert.Equal(t, int64(3), got["provider.markers.removed"])
}
