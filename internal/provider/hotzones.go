package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dynamicmaps/overlay/internal/cache"
	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/mapview"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/dynamicmaps/overlay/internal/world"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HotZoneCategory is the marker category owned by HotZones.
const HotZoneCategory = "HotZone"

const instrumentationName = "github.com/dynamicmaps/overlay/internal/provider"

// PassStats summarizes one reconciliation pass.
type PassStats struct {
	Provider string
	MapID    string
	Removed  int
	Added    int
	Swept    int
	Alive    int
	Skipped  bool
	Duration time.Duration
	At       time.Time
}

// PassSink receives the stats of every pass, e.g. a time series writer.
type PassSink interface {
	RecordPass(ctx context.Context, s PassStats)
}

// HotZonesOptions configures a HotZones provider.
type HotZonesOptions struct {
	World  world.World
	Config config.HotZonesConfig
	Logger *slog.Logger
	// Meter defaults to the global OTel meter.
	Meter metric.Meter
	Sink  PassSink
}

type hotZoneEntry struct {
	entity world.Entity
	marker *mapview.Marker
}

// HotZones shows where hostile entities are. Every pass drops all of its
// markers and rebuilds them from the set of living entities.
type HotZones struct {
	world  world.World
	cfg    config.HotZonesConfig
	logger *slog.Logger
	sink   PassSink
	sched  *Scheduler

	passCounter metric.Int64Counter
	addCounter  metric.Int64Counter
	rmCounter   metric.Int64Counter
	passTime    metric.Float64Histogram

	mu       sync.Mutex
	view     *mapview.View
	registry *cache.Registry[string, hotZoneEntry]
}

// NewHotZones creates an idle provider.
func NewHotZones(opts HotZonesOptions) (*HotZones, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Meter
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	p := &HotZones{
		world:    opts.World,
		cfg:      opts.Config,
		logger:   logger.With("provider", HotZoneCategory),
		sink:     opts.Sink,
		registry: cache.NewRegistry[string, hotZoneEntry](),
	}
	p.sched = NewScheduler(opts.Config.Interval, p.reconcile)

	var err error
	if p.passCounter, err = m.Int64Counter("provider.passes",
		metric.WithDescription("Reconciliation passes performed")); err != nil {
		return nil, err
	}
	if p.addCounter, err = m.Int64Counter("provider.markers.added",
		metric.WithDescription("Markers added by reconciliation")); err != nil {
		return nil, err
	}
	if p.rmCounter, err = m.Int64Counter("provider.markers.removed",
		metric.WithDescription("Markers removed by reconciliation")); err != nil {
		return nil, err
	}
	if p.passTime, err = m.Float64Histogram("provider.pass.duration",
		metric.WithDescription("Reconciliation pass duration"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return p, nil
}

// Scheduler exposes the pass scheduler.
func (p *HotZones) Scheduler() *Scheduler { return p.sched }

// Owned returns the ids of the entities whose marker is currently shown, in
// order.
func (p *HotZones) Owned() []string {
	var out []string
	for _, id := range p.registry.Keys() {
		if e, ok := p.registry.Get(id); ok && e.marker.View() != nil {
			out = append(out, id)
		}
	}
	return out
}

// Marker returns the marker owned for entity id.
func (p *HotZones) Marker(id string) (*mapview.Marker, bool) {
	e, ok := p.registry.Get(id)
	return e.marker, ok
}

// OnShowInRaid implements Provider.
func (p *HotZones) OnShowInRaid(v *mapview.View) {
	p.mu.Lock()
	p.view = v
	p.mu.Unlock()

	if p.sched.Activate() {
		p.logger.Info("Hot zones started", "interval", p.cfg.Interval)
	}
}

// OnHideInRaid implements Provider. The schedule winds down at its next tick.
func (p *HotZones) OnHideInRaid(v *mapview.View) {
	p.sched.Deactivate()
}

// OnRaidEnd implements Provider.
func (p *HotZones) OnRaidEnd(v *mapview.View) {
	p.shutdown()
}

func (p *HotZones) shutdown() {
	p.sched.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.removeAllLocked()
	p.logger.Info("Hot zones stopped", "removed", n)
}

// OnMapChanged implements Provider. Every owned entity gets a fresh marker on v.
func (p *HotZones) OnMapChanged(v *mapview.View, def *mapdef.Definition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.view = v

	for _, id := range p.registry.Keys() {
		entry, _ := p.registry.Delete(id)
		p.removeMarker(entry.marker)

		style, ok := p.classify(entry.entity)
		if !ok {
			continue
		}
		if m := v.AddPlayerMarker(entry.entity, style); m != nil {
			p.registry.Set(id, hotZoneEntry{entity: entry.entity, marker: m})
		}
	}
}

// OnLevelSelected implements Provider. Owned markers restyle themselves, so
// the schedule is left alone.
func (p *HotZones) OnLevelSelected(v *mapview.View, level int) {
	p.logger.Debug("Level selected", "level", level, "owned", p.registry.Len())
}

// OnShowOutOfRaid implements Provider.
func (p *HotZones) OnShowOutOfRaid(v *mapview.View) {}

// OnHideOutOfRaid implements Provider.
func (p *HotZones) OnHideOutOfRaid(v *mapview.View) {}

// OnDisable implements Provider. It behaves like the end of a raid.
func (p *HotZones) OnDisable(v *mapview.View) {
	p.shutdown()
}

// reconcile removes every owned marker, adds one per qualifying living
// entity and sweeps the ones that died meanwhile.
func (p *HotZones) reconcile() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.sched.Active() || p.view == nil {
		return
	}

	start := time.Now()
	stats := PassStats{Provider: HotZoneCategory, MapID: p.view.MapID(), At: start}

	if !p.world.InSession() {
		p.logger.Debug("Live world unavailable, keeping markers")
		stats.Skipped = true
		p.record(stats)
		return
	}

	stats.Removed = p.removeAllLocked()

	alive := p.world.AlivePlayers()
	stats.Alive = len(alive)
	aliveIDs := make(map[string]struct{}, len(alive))
	for _, e := range alive {
		aliveIDs[e.ID()] = struct{}{}
		if e.IsLocal() || e.IsEscortShooter() || p.registry.Has(e.ID()) {
			continue
		}
		style, ok := p.classify(e)
		if !ok {
			continue
		}
		m := p.view.AddPlayerMarker(e, style)
		if m == nil {
			continue
		}
		p.registry.Set(e.ID(), hotZoneEntry{entity: e, marker: m})
		stats.Added++
	}

	for _, id := range p.registry.Keys() {
		entry, _ := p.registry.Get(id)
		if _, ok := aliveIDs[id]; ok && !entry.entity.HasCorpse() {
			continue
		}
		p.registry.Delete(id)
		p.removeMarker(entry.marker)
		stats.Swept++
	}

	stats.Duration = time.Since(start)
	p.logger.Debug("Hot zones updated",
		"removed", stats.Removed, "added", stats.Added, "swept", stats.Swept, "duration", stats.Duration)
	p.record(stats)
}

func (p *HotZones) record(s PassStats) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("provider", s.Provider),
		attribute.Bool("skipped", s.Skipped),
	)
	p.passCounter.Add(ctx, 1, attrs)
	p.addCounter.Add(ctx, int64(s.Added), attrs)
	p.rmCounter.Add(ctx, int64(s.Removed+s.Swept), attrs)
	p.passTime.Record(ctx, float64(s.Duration.Microseconds())/1000, attrs)
	if p.sink != nil {
		p.sink.RecordPass(ctx, s)
	}
}

func (p *HotZones) removeAllLocked() int {
	entries := p.registry.Reset()
	for _, e := range entries {
		p.removeMarker(e.marker)
	}
	return len(entries)
}

// removeMarker takes m off whatever view holds it. Markers whose entity died
// may already be gone.
func (p *HotZones) removeMarker(m *mapview.Marker) {
	if v := m.View(); v != nil {
		v.RemoveMapMarker(m)
	}
}

// classify picks the style for e, or reports false when its class is turned off.
func (p *HotZones) classify(e world.Entity) (core.MarkerStyle, bool) {
	style := core.MarkerStyle{
		Category:  HotZoneCategory,
		Label:     e.Nickname(),
		ImagePath: p.cfg.ImagePath,
	}
	switch {
	case e.IsBoss():
		style.Color = p.cfg.BossColor
		return style, p.cfg.ShowBosses
	case e.IsHostileFaction():
		style.Color = p.cfg.EnemyColor
		return style, p.cfg.ShowEnemyPlayers
	default:
		style.Color = p.cfg.ScavColor
		return style, p.cfg.ShowScavs
	}
}
