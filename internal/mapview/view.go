// Package mapview keeps the layers and markers of the loaded map in sync with
// the host widget toolkit.
package mapview

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/dynamicmaps/overlay/internal/queue"
	"github.com/dynamicmaps/overlay/internal/world"
)

// PlayerCategory is the category of markers created by AddPlayerMarker.
const PlayerCategory = "players"

// Subscriber delivers death and removal notifications for an entity.
type Subscriber interface {
	Subscribe(id string, fn func(world.Notification)) (cancel func())
}

// Options configures a View.
type Options struct {
	Host       host.Host
	Config     config.Snapshot
	Subscriber Subscriber
	Logger     *slog.Logger
}

// View owns the layers and markers of at most one loaded map. Every container
// mutation happens under the view mutex; level listeners run after it is
// released.
type View struct {
	host   host.Host
	cfg    config.Snapshot
	subs   Subscriber
	logger *slog.Logger

	root            host.Handle
	layerContainer  host.Handle
	markerContainer host.Handle

	removals *queue.Queue[*Marker]

	mu               sync.Mutex
	def              *mapdef.Definition
	layers           []*Layer
	markers          []*Marker
	index            map[*Marker]struct{}
	selectedLevel    int
	transform        geo.Transform
	canvasSize       core.Vector2
	hiddenCategories map[string]bool
	listeners        []func(level int)

	// copies of mapID, selectedLevel and len(markers) readable without the
	// mutex, so log context providers can query a view that is logging
	pubMapID atomic.Pointer[string]
	pubLevel atomic.Int64
	pubCount atomic.Int64
}

// New creates an unloaded view.
func New(opts Options) *View {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := &View{
		host:             opts.Host,
		cfg:              opts.Config,
		subs:             opts.Subscriber,
		logger:           logger.With("component", "mapview"),
		removals:         queue.New[*Marker](),
		index:            make(map[*Marker]struct{}),
		hiddenCategories: make(map[string]bool),
	}
	v.root = v.host.NewContainer(nil, "MapView")
	v.layerContainer = v.host.NewContainer(v.root, "MapLayers")
	v.markerContainer = v.host.NewContainer(v.root, "MapMarkers")
	return v
}

// Host returns the host markers should be created with.
func (v *View) Host() host.Host { return v.host }

// MarkerContainer is the parent handle for markers of this view.
func (v *View) MarkerContainer() host.Handle { return v.markerContainer }

// Config returns the configuration snapshot the view runs with.
func (v *View) Config() config.Snapshot { return v.cfg }

// OnLevelSelected registers fn to be called with every selected level.
func (v *View) OnLevelSelected(fn func(level int)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners = append(v.listeners, fn)
}

// LoadMap shows def. Loading the definition already shown is a no-op. An
// invalid definition is rejected and the current map stays loaded.
func (v *View) LoadMap(def *mapdef.Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("loading map: %w", err)
	}

	v.mu.Lock()
	if v.def == def {
		v.mu.Unlock()
		return nil
	}

	rotation := def.CoordinateRotation
	layers := make([]*Layer, 0, len(def.Layers))
	for _, nl := range def.OrderedLayers() {
		l, err := NewLayer(v.host, v.layerContainer, nl.Name, nl.LayerDef, -rotation, v.cfg.Display)
		if err != nil {
			for _, created := range layers {
				created.destroy()
			}
			v.mu.Unlock()
			return fmt.Errorf("loading map %s: %w", def.ID, err)
		}
		layers = append(layers, l)
	}

	v.unloadLocked()

	v.def = def
	v.layers = layers
	v.canvasSize = geo.RotatedRectangle(geo.BoundingRectangle(def.Bounds), rotation)
	v.transform = geo.Transform{Offset: geo.Midpoint(def.Bounds), Rotation: rotation}
	v.root.SetSize(v.canvasSize)
	v.root.SetPosition(v.transform.Offset)
	v.root.SetRotation(rotation)

	for _, nm := range def.OrderedMarkers() {
		v.addStaticLocked(nm.Name, nm.MarkerDef)
	}

	listeners := v.selectLocked(def.DefaultLevel)
	v.mu.Unlock()

	v.logger.Info("Map loaded", "mapID", def.ID, "layers", len(layers), "staticMarkers", len(def.StaticMarkers))
	notify(listeners, def.DefaultLevel)
	return nil
}

// UnloadMap removes every marker and layer. It is a no-op when nothing is loaded.
func (v *View) UnloadMap() {
	v.mu.Lock()
	id := ""
	if v.def != nil {
		id = v.def.ID
	}
	v.unloadLocked()
	v.mu.Unlock()

	if id != "" {
		v.logger.Info("Map unloaded", "mapID", id)
	}
}

func (v *View) unloadLocked() {
	if v.def == nil {
		return
	}
	for _, m := range v.markers {
		m.detach()
	}
	v.markers = nil
	v.index = make(map[*Marker]struct{})
	for _, l := range v.layers {
		l.destroy()
	}
	v.layers = nil
	v.removals.Clear()
	v.def = nil
	v.selectedLevel = 0
	v.transform = geo.Transform{}
	v.canvasSize = core.Vector2{}
	v.publishLocked()
}

// AddMapMarker puts m on the view. It reports whether m is on the view
// afterwards: adding a marker twice is a no-op returning true, adding to an
// unloaded view returns false and leaves m untouched.
func (v *View) AddMapMarker(m *Marker) bool {
	if m == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.addLocked(m, nil)
}

func (v *View) addLocked(m *Marker, unsubscribe func()) bool {
	if v.def == nil {
		return false
	}
	if _, ok := v.index[m]; ok {
		return true
	}
	v.index[m] = struct{}{}
	v.markers = append(v.markers, m)
	v.publishLocked()
	m.attach(v, unsubscribe)
	if v.hiddenCategories[m.Category()] {
		m.setHidden(true)
	}
	return true
}

// AddStaticMarker creates and adds a marker from a static definition. It
// returns nil when no map is loaded.
func (v *View) AddStaticMarker(name string, def mapdef.MarkerDef) *Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.addStaticLocked(name, def)
}

func (v *View) addStaticLocked(name string, def mapdef.MarkerDef) *Marker {
	if v.def == nil {
		return nil
	}
	var linked *Layer
	for _, l := range v.layers {
		if l.Name() == def.LinkedLayer {
			linked = l
			break
		}
	}
	m := NewMarker(v.host, v.markerContainer, MarkerOptions{
		Name: name,
		Style: core.MarkerStyle{
			Category:  def.Category,
			Label:     name,
			Color:     def.Color,
			ImagePath: def.ImagePath,
			Size:      v.markerSize(),
			Scale:     1,
		},
		Position:            def.Position,
		Rotation:            def.Rotation,
		LinkedLayer:         linked,
		DisplayRotation:     -v.def.CoordinateRotation,
		Display:             v.cfg.Display,
		LayerLookupInterval: v.cfg.Marker.LayerLookupInterval,
	})
	v.addLocked(m, nil)
	return m
}

// AddPlayerMarker creates a marker bound to e. The marker searches every
// layer of the map and removes itself on the next Update after e dies or
// leaves the world. It returns nil when no map is loaded.
func (v *View) AddPlayerMarker(e world.Entity, style core.MarkerStyle) *Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.def == nil || e == nil {
		return nil
	}
	if style.Category == "" {
		style.Category = PlayerCategory
	}
	if style.Label == "" {
		style.Label = e.Nickname()
	}
	if style.Size == (core.Vector2{}) {
		style.Size = v.markerSize()
	}
	if style.Scale == 0 {
		style.Scale = 1
	}
	m := NewMarker(v.host, v.markerContainer, MarkerOptions{
		Name:                e.ID(),
		Style:               style,
		Source:              e,
		TraversableLayers:   v.layers,
		Display:             v.cfg.Display,
		LayerLookupInterval: v.cfg.Marker.LayerLookupInterval,
	})

	var cancel func()
	if v.subs != nil {
		cancel = v.subs.Subscribe(e.ID(), func(world.Notification) {
			v.removals.Push(m)
		})
	}
	v.addLocked(m, cancel)
	// the entity may have died before the subscription existed
	if e.HasCorpse() || !e.Reachable() {
		v.removals.Push(m)
	}
	return m
}

// RemoveMapMarker takes m off the view and destroys it. Removing a marker the
// view does not hold is a no-op.
func (v *View) RemoveMapMarker(m *Marker) {
	if m == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removeLocked(m)
}

func (v *View) removeLocked(m *Marker) bool {
	if _, ok := v.index[m]; !ok {
		return false
	}
	delete(v.index, m)
	for i, other := range v.markers {
		if other == m {
			v.markers = append(v.markers[:i], v.markers[i+1:]...)
			break
		}
	}
	v.publishLocked()
	m.detach()
	return true
}

// SelectTopLevel makes level the top visible level and notifies listeners.
func (v *View) SelectTopLevel(level int) {
	v.mu.Lock()
	listeners := v.selectLocked(level)
	v.mu.Unlock()
	notify(listeners, level)
}

func (v *View) selectLocked(level int) []func(int) {
	for _, l := range v.layers {
		l.OnTopLevelSelected(level)
	}
	for _, m := range v.markers {
		m.refresh()
	}
	v.selectedLevel = level
	v.publishLocked()
	return slices.Clone(v.listeners)
}

func (v *View) publishLocked() {
	id := ""
	if v.def != nil {
		id = v.def.ID
	}
	v.pubMapID.Store(&id)
	v.pubLevel.Store(int64(v.selectedLevel))
	v.pubCount.Store(int64(len(v.markers)))
}

func notify(listeners []func(int), level int) {
	for _, fn := range listeners {
		fn(level)
	}
}

// SelectLevelByCoords selects the level of the first layer, in ascending
// level order, containing the map point. Overlapping layers are not
// disambiguated further. It reports whether a layer matched.
func (v *View) SelectLevelByCoords(p core.Vector2, height float64) bool {
	v.mu.Lock()
	var match *Layer
	for _, l := range v.layers {
		if l.IsCoordInLayer(p, height) {
			match = l
			break
		}
	}
	if match == nil {
		v.mu.Unlock()
		return false
	}
	listeners := v.selectLocked(match.Level())
	v.mu.Unlock()

	notify(listeners, match.Level())
	return true
}

// SetCategoryVisible shows or hides every marker of category, including
// markers added later.
func (v *View) SetCategoryVisible(category string, visible bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if visible {
		delete(v.hiddenCategories, category)
	} else {
		v.hiddenCategories[category] = true
	}
	for _, m := range v.markers {
		if m.Category() == category {
			m.setHidden(!visible)
		}
	}
}

// Update applies queued removals and advances every marker by dt.
func (v *View) Update(dt time.Duration) {
	pending := v.removals.GetAndEmpty()

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range pending {
		if v.removeLocked(m) {
			v.logger.Debug("Removed marker of departed entity", "marker", m.Name())
		}
	}
	for _, m := range v.markers {
		m.Update(dt)
	}
}

func (v *View) markerSize() core.Vector2 {
	s := v.cfg.Marker.Size
	return core.Vector2{X: s, Y: s}
}

// Loaded reports whether a map is loaded.
func (v *View) Loaded() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.def != nil
}

// Definition returns the loaded definition or nil.
func (v *View) Definition() *mapdef.Definition {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.def
}

// MapID returns the id of the loaded map or "". It never blocks.
func (v *View) MapID() string {
	if id := v.pubMapID.Load(); id != nil {
		return *id
	}
	return ""
}

// SelectedLevel returns the current top level. It never blocks.
func (v *View) SelectedLevel() int {
	return int(v.pubLevel.Load())
}

// Levels returns the distinct levels of the loaded layers in ascending order.
func (v *View) Levels() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int, 0, len(v.layers))
	for _, l := range v.layers {
		if n := len(out); n > 0 && out[n-1] == l.Level() {
			continue
		}
		out = append(out, l.Level())
	}
	return out
}

// Layers returns the loaded layers in ascending level order.
func (v *View) Layers() []*Layer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*Layer(nil), v.layers...)
}

// Markers returns the active markers in insertion order.
func (v *View) Markers() []*Marker {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*Marker(nil), v.markers...)
}

// MarkerCount returns the number of active markers. It never blocks.
func (v *View) MarkerCount() int {
	return int(v.pubCount.Load())
}

// HasMarker reports whether m is on the view.
func (v *View) HasMarker(m *Marker) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.index[m]
	return ok
}

// Transform returns the map to canvas transform of the loaded map.
func (v *View) Transform() geo.Transform {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.transform
}

// CanvasSize returns the size of the rotated map canvas.
func (v *View) CanvasSize() core.Vector2 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.canvasSize
}

// Close unloads the map and destroys the view's containers.
func (v *View) Close() {
	v.UnloadMap()
	v.markerContainer.Destroy()
	v.layerContainer.Destroy()
	v.root.Destroy()
}
