package mapview

import (
	"sync"
	"time"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/dynamicmaps/overlay/internal/world"
)

// MarkerOptions describes a marker to create.
type MarkerOptions struct {
	Name     string
	Style    core.MarkerStyle
	Position core.MapPoint
	Rotation float64

	// Source binds the marker to a live entity. Position and rotation are
	// then re-derived from it on every Update.
	Source world.Entity

	// LinkedLayer pins a static marker to a layer; its alpha follows the
	// layer status.
	LinkedLayer *Layer
	// TraversableLayers are searched for the layer a bound marker is in.
	TraversableLayers []*Layer

	// DisplayRotation is added to the handle rotation to keep the glyph
	// upright on a rotated map.
	DisplayRotation float64

	Display             config.DisplayConfig
	LayerLookupInterval time.Duration
}

// Marker is a glyph on the map.
type Marker struct {
	name   string
	style  core.MarkerStyle
	handle host.Handle
	source world.Entity

	linked      *Layer
	traversable []*Layer

	displayRotation float64
	display         config.DisplayConfig
	lookupInterval  time.Duration

	mu            sync.Mutex
	position      core.MapPoint
	rotation      float64
	current       *Layer
	sinceLookup   time.Duration
	looked        bool
	lookups       int
	hidden        bool
	view          *View // non-owning
	unsubscribe   func()
	destroyed     bool
}

// NewMarker creates the visual content of a marker under parent. The marker
// is not shown on any view until it is added with View.AddMapMarker.
func NewMarker(h host.Host, parent host.Handle, opts MarkerOptions) *Marker {
	m := &Marker{
		name:            opts.Name,
		style:           opts.Style,
		source:          opts.Source,
		linked:          opts.LinkedLayer,
		traversable:     append([]*Layer(nil), opts.TraversableLayers...),
		displayRotation: opts.DisplayRotation,
		display:         opts.Display,
		lookupInterval:  opts.LayerLookupInterval,
		position:        opts.Position,
		rotation:        opts.Rotation,
	}
	m.handle = h.NewMarker(parent, opts.Name, opts.Style)

	m.mu.Lock()
	if m.source != nil {
		m.followSourceLocked()
	}
	m.applyLocked()
	m.mu.Unlock()
	return m
}

// Name returns the marker name.
func (m *Marker) Name() string { return m.name }

// Category returns the style category.
func (m *Marker) Category() string { return m.style.Category }

// Style returns the style the marker was created with.
func (m *Marker) Style() core.MarkerStyle { return m.style }

// Source returns the bound entity or nil.
func (m *Marker) Source() world.Entity { return m.source }

// Handle returns the host handle.
func (m *Marker) Handle() host.Handle { return m.handle }

// LinkedLayer returns the layer a static marker is pinned to.
func (m *Marker) LinkedLayer() *Layer { return m.linked }

// Position returns the current map position.
func (m *Marker) Position() core.MapPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Rotation returns the current rotation in degrees.
func (m *Marker) Rotation() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotation
}

// CurrentLayer returns the layer found by the last lookup, or the linked layer.
func (m *Marker) CurrentLayer() *Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.layerLocked()
}

// View returns the view the marker is shown on, or nil.
func (m *Marker) View() *View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Alpha returns the alpha the marker is drawn with.
func (m *Marker) Alpha() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alphaLocked()
}

// LayerLookups returns how many layer lookups the marker performed.
func (m *Marker) LayerLookups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// MoveAndRotate sets position and rotation explicitly. A bound marker is
// overwritten again by its source on the next Update.
func (m *Marker) MoveAndRotate(p core.MapPoint, rotation float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.position = p
	m.rotation = rotation
	m.applyLocked()
}

// Update advances the marker by one frame. Layer lookups are throttled to
// the configured interval, position follows the source every frame.
func (m *Marker) Update(dt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}

	if m.source != nil {
		m.followSourceLocked()
	}

	m.sinceLookup += dt
	if len(m.traversable) > 0 && (!m.looked || m.sinceLookup >= m.lookupInterval) {
		m.sinceLookup = 0
		m.looked = true
		m.lookups++
		m.lookupLayerLocked()
	}

	m.applyLocked()
}

// refresh reapplies the layer status after a level change.
func (m *Marker) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.applyLocked()
}

func (m *Marker) setHidden(hidden bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.hidden = hidden
	m.applyLocked()
}

func (m *Marker) attach(v *View, unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view = v
	m.unsubscribe = unsubscribe
	if !m.looked && len(m.traversable) > 0 {
		m.looked = true
		m.lookups++
		m.lookupLayerLocked()
	}
	m.applyLocked()
}

// detach releases the marker once it left its view.
func (m *Marker) detach() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.view = nil
	m.destroyed = true
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	m.handle.SetVisible(false)
	m.handle.Destroy()
}

// Discard destroys a marker that was never added to a view.
func (m *Marker) Discard() {
	if m.View() != nil {
		return
	}
	m.detach()
}

func (m *Marker) followSourceLocked() {
	if !m.source.Reachable() {
		return
	}
	m.position = geo.ProjectToMapSpace(m.source.Position())
	m.rotation = -m.source.Rotation()
}

// lookupLayerLocked keeps the previous layer when the marker is outside every
// layer.
func (m *Marker) lookupLayerLocked() {
	p := m.position.XY()
	for _, l := range m.traversable {
		if l.IsCoordInLayer(p, m.position.Height) {
			m.current = l
			return
		}
	}
}

func (m *Marker) layerLocked() *Layer {
	if m.linked != nil {
		return m.linked
	}
	return m.current
}

func (m *Marker) alphaLocked() float64 {
	l := m.layerLocked()
	if l == nil {
		return 1
	}
	switch l.Status() {
	case core.StatusActive:
		return 1
	case core.StatusUnderneath:
		return m.display.UnderneathMarkerAlpha
	default:
		return 0
	}
}

func (m *Marker) applyLocked() {
	m.handle.SetPosition(m.position.XY())
	m.handle.SetRotation(m.rotation + m.displayRotation)
	m.handle.SetAlpha(m.alphaLocked())
	m.handle.SetVisible(!m.hidden)
}
