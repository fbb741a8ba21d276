// Package session ties one map screen together: the view, the providers that
// feed it and the live world they observe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/export"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/mapview"
	"github.com/dynamicmaps/overlay/internal/provider"
	"github.com/dynamicmaps/overlay/internal/world"
	"github.com/peterstace/simplefeatures/geom"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrNoMap is returned by operations that need a loaded map.
	ErrNoMap = errors.New("no map loaded")
	// ErrUnknownLevel is returned when selecting a level the map does not have.
	ErrUnknownLevel = errors.New("unknown level")
)

// Options configures a Session.
type Options struct {
	Host   host.Host
	World  world.World
	Source mapdef.Source
	Config config.Snapshot
	Logger *slog.Logger
	// Meter is handed to providers that record metrics.
	Meter metric.Meter
	Sink  provider.PassSink
}

// Status describes the session for command replies.
type Status struct {
	MapID         string   `json:"mapID"`
	SelectedLevel int      `json:"selectedLevel"`
	Levels        []int    `json:"levels"`
	Markers       int      `json:"markers"`
	Shown         bool     `json:"shown"`
	InRaid        bool     `json:"inRaid"`
	HotZones      []string `json:"hotZones"`
}

// Session is one map screen.
type Session struct {
	view     *mapview.View
	world    world.World
	source   mapdef.Source
	logger   *slog.Logger
	hotZones *provider.HotZones
	player   *provider.Player

	mu        sync.Mutex
	providers []provider.Provider
	shown     bool
	inRaid    bool
}

// New creates a session with an unloaded view.
func New(opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		world:  opts.World,
		source: opts.Source,
		logger: logger,
		view: mapview.New(mapview.Options{
			Host:       opts.Host,
			Config:     opts.Config,
			Subscriber: opts.World,
			Logger:     logger,
		}),
	}

	s.player = provider.NewPlayer(opts.World, opts.Config.Player, logger)
	s.providers = append(s.providers, s.player)

	if opts.Config.HotZones.Enabled {
		hz, err := provider.NewHotZones(provider.HotZonesOptions{
			World:  opts.World,
			Config: opts.Config.HotZones,
			Logger: logger,
			Meter:  opts.Meter,
			Sink:   opts.Sink,
		})
		if err != nil {
			return nil, fmt.Errorf("creating hot zones provider: %w", err)
		}
		s.hotZones = hz
		s.providers = append(s.providers, hz)
	}
	s.view.OnLevelSelected(s.forwardLevel)
	return s, nil
}

func (s *Session) forwardLevel(level int) {
	for _, p := range s.providers {
		p.OnLevelSelected(s.view, level)
	}
}

// View returns the map view.
func (s *Session) View() *mapview.View { return s.view }

// HotZones returns the hot zone provider, or nil when it is disabled.
func (s *Session) HotZones() *provider.HotZones { return s.hotZones }

// Player returns the local player provider.
func (s *Session) Player() *provider.Player { return s.player }

// ChangeMap loads the definition of id and hands it to every provider.
// Asking for the map already loaded is a no-op.
func (s *Session) ChangeMap(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.view.MapID() == id {
		return nil
	}
	def, err := s.source.Definition(ctx, id)
	if err != nil {
		return err
	}
	if err := s.view.LoadMap(def); err != nil {
		return err
	}
	for _, p := range s.providers {
		p.OnMapChanged(s.view, def)
	}
	if s.shown {
		s.showLocked()
	}
	return nil
}

// UnloadMap disables the providers and unloads the view.
func (s *Session) UnloadMap() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		p.OnDisable(s.view)
	}
	s.view.UnloadMap()
}

// Show opens the map screen. Providers are told whether a raid is running.
func (s *Session) Show() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.view.Loaded() {
		return ErrNoMap
	}
	s.shown = true
	s.showLocked()
	return nil
}

func (s *Session) showLocked() {
	s.inRaid = s.world.InSession()
	for _, p := range s.providers {
		if s.inRaid {
			p.OnShowInRaid(s.view)
		} else {
			p.OnShowOutOfRaid(s.view)
		}
	}
	s.logger.Debug("Map shown", "mapID", s.view.MapID(), "inRaid", s.inRaid)
}

// Hide closes the map screen.
func (s *Session) Hide() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.shown {
		return
	}
	s.shown = false
	for _, p := range s.providers {
		if s.inRaid {
			p.OnHideInRaid(s.view)
		} else {
			p.OnHideOutOfRaid(s.view)
		}
	}
}

// EndRaid tells every provider the raid is over.
func (s *Session) EndRaid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inRaid = false
	for _, p := range s.providers {
		p.OnRaidEnd(s.view)
	}
	s.logger.Info("Raid ended", "mapID", s.view.MapID())
}

// Tick advances the view by one frame.
func (s *Session) Tick(dt time.Duration) {
	s.view.Update(dt)
}

// SelectLevel makes level the top level.
func (s *Session) SelectLevel(level int) error {
	levels := s.view.Levels()
	if len(levels) == 0 {
		return ErrNoMap
	}
	if !slices.Contains(levels, level) {
		return fmt.Errorf("%w: %d", ErrUnknownLevel, level)
	}
	s.view.SelectTopLevel(level)
	return nil
}

// LevelUp selects the next higher level and returns the selected level.
// At the top it stays put.
func (s *Session) LevelUp() (int, error) {
	return s.step(1)
}

// LevelDown selects the next lower level and returns the selected level.
func (s *Session) LevelDown() (int, error) {
	return s.step(-1)
}

func (s *Session) step(dir int) (int, error) {
	levels := s.view.Levels()
	if len(levels) == 0 {
		return 0, ErrNoMap
	}
	current := s.view.SelectedLevel()
	i := slices.Index(levels, current)
	if i < 0 {
		// the selected level has no layer of its own; start from the nearest
		i, _ = slices.BinarySearch(levels, current)
		if dir > 0 {
			i--
		}
	}
	next := min(max(i+dir, 0), len(levels)-1)
	if levels[next] != current {
		s.view.SelectTopLevel(levels[next])
	}
	return levels[next], nil
}

// Export returns the current markers as GeoJSON features.
func (s *Session) Export(opts export.Options) geom.GeoJSONFeatureCollection {
	return export.Markers(s.view, opts)
}

// Status reports the session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	shown, inRaid := s.shown, s.inRaid
	s.mu.Unlock()

	st := Status{
		MapID:         s.view.MapID(),
		SelectedLevel: s.view.SelectedLevel(),
		Levels:        s.view.Levels(),
		Markers:       s.view.MarkerCount(),
		Shown:         shown,
		InRaid:        inRaid,
	}
	if s.hotZones != nil {
		st.HotZones = s.hotZones.Owned()
	}
	return st
}

// Close ends the raid and releases the view.
func (s *Session) Close() {
	s.EndRaid()
	s.view.Close()
}
