package provider

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/mapview"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/dynamicmaps/overlay/internal/world"
)

// LocalPlayerCategory is the category of the local player marker.
const LocalPlayerCategory = "LocalPlayer"

// Player keeps a marker on the local player and, when configured, jumps to
// the level the player stands on every time the map is shown.
type Player struct {
	world  world.World
	cfg    config.PlayerConfig
	logger *slog.Logger

	mu     sync.Mutex
	marker *mapview.Marker
	level  atomic.Int64
}

// NewPlayer creates the local player provider.
func NewPlayer(w world.World, cfg config.PlayerConfig, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{world: w, cfg: cfg, logger: logger.With("provider", LocalPlayerCategory)}
}

// Marker returns the current local player marker, or nil.
func (p *Player) Marker() *mapview.Marker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marker
}

// OnShowInRaid implements Provider.
func (p *Player) OnShowInRaid(v *mapview.View) {
	local, ok := p.world.LocalPlayer()
	if !ok {
		p.logger.Debug("No local player")
		return
	}

	p.mu.Lock()
	p.ensureMarkerLocked(v, local)
	p.mu.Unlock()

	if p.cfg.AutoSelectLevel {
		pos := geo.ProjectToMapSpace(local.Position())
		v.SelectLevelByCoords(pos.XY(), pos.Height)
	}
}

// OnHideInRaid implements Provider.
func (p *Player) OnHideInRaid(v *mapview.View) {}

// OnRaidEnd implements Provider.
func (p *Player) OnRaidEnd(v *mapview.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropMarkerLocked()
}

// OnMapChanged implements Provider.
func (p *Player) OnMapChanged(v *mapview.View, def *mapdef.Definition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropMarkerLocked()
	if local, ok := p.world.LocalPlayer(); ok {
		p.ensureMarkerLocked(v, local)
	}
}

// OnLevelSelected implements Provider.
func (p *Player) OnLevelSelected(v *mapview.View, level int) {
	p.level.Store(int64(level))
}

// Level returns the last level the view reported as selected.
func (p *Player) Level() int { return int(p.level.Load()) }

// OnShowOutOfRaid implements Provider.
func (p *Player) OnShowOutOfRaid(v *mapview.View) {}

// OnHideOutOfRaid implements Provider.
func (p *Player) OnHideOutOfRaid(v *mapview.View) {}

// OnDisable implements Provider.
func (p *Player) OnDisable(v *mapview.View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropMarkerLocked()
}

func (p *Player) ensureMarkerLocked(v *mapview.View, local world.Entity) {
	if !p.cfg.ShowMarker {
		return
	}
	if p.marker != nil && p.marker.View() == v && p.marker.Source().ID() == local.ID() {
		return
	}
	p.dropMarkerLocked()
	p.marker = v.AddPlayerMarker(local, core.MarkerStyle{
		Category:  LocalPlayerCategory,
		Color:     p.cfg.Color,
		ImagePath: p.cfg.ImagePath,
	})
}

func (p *Player) dropMarkerLocked() {
	if p.marker == nil {
		return
	}
	if v := p.marker.View(); v != nil {
		v.RemoveMapMarker(p.marker)
	}
	p.marker = nil
}
