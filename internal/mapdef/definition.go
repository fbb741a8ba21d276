// Package mapdef holds the static description of a map: its layers, their
// spatial bounds and the static markers drawn on them. Definitions are read
// only; a view never mutates the one it was loaded with.
package mapdef

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/model/core"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid map definition")
	// ErrNotFound is returned by a Source for an unknown map id.
	ErrNotFound = errors.New("map definition not found")
)

// Definition describes one map.
type Definition struct {
	ID                 string               `json:"id"`
	DisplayName        string               `json:"displayName"`
	CoordinateRotation float64              `json:"coordinateRotation"`
	Bounds             []core.Vector2       `json:"bounds"`
	DefaultLevel       int                  `json:"defaultLevel"`
	Layers             map[string]LayerDef  `json:"layers"`
	StaticMarkers      map[string]MarkerDef `json:"staticMarkers"`
}

// LayerDef describes one vertical level of a map.
type LayerDef struct {
	Level     int         `json:"level"`
	ImagePath string      `json:"imagePath"`
	Bounds    []BoundsDef `json:"bounds"`
}

// BoundsDef is one region of a layer, either a polygon or a Min/Max
// rectangle, optionally restricted to a height range.
type BoundsDef struct {
	Polygon   []core.Vector2 `json:"polygon,omitempty"`
	Min       *core.Vector2  `json:"min,omitempty"`
	Max       *core.Vector2  `json:"max,omitempty"`
	MinHeight *float64       `json:"minHeight,omitempty"`
	MaxHeight *float64       `json:"maxHeight,omitempty"`
}

// Region builds the geometry of b.
func (b BoundsDef) Region() (geo.Region, error) {
	switch {
	case len(b.Polygon) > 0:
		return geo.NewPolygonRegion(b.Polygon, b.MinHeight, b.MaxHeight)
	case b.Min != nil && b.Max != nil:
		return geo.NewRectRegion(*b.Min, *b.Max, b.MinHeight, b.MaxHeight)
	default:
		return geo.Region{}, errors.New("bounds need a polygon or min and max")
	}
}

// MarkerDef is a static marker placed on the map.
type MarkerDef struct {
	Category    string        `json:"category"`
	ImagePath   string        `json:"imagePath"`
	Color       core.Color    `json:"color"`
	Position    core.MapPoint `json:"position"`
	Rotation    float64       `json:"rotation"`
	LinkedLayer string        `json:"linkedLayer,omitempty"`
}

// NamedLayer pairs a layer definition with its name.
type NamedLayer struct {
	Name string
	LayerDef
}

// NamedMarker pairs a static marker definition with its name.
type NamedMarker struct {
	Name string
	MarkerDef
}

// Validate checks that d can be loaded.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalid)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if len(d.Layers) == 0 {
		return fmt.Errorf("%w: %s: no layers", ErrInvalid, d.ID)
	}

	hasDefault := false
	for name, l := range d.Layers {
		if name == "" {
			return fmt.Errorf("%w: %s: layer with empty name", ErrInvalid, d.ID)
		}
		if l.Level == d.DefaultLevel {
			hasDefault = true
		}
		for i, b := range l.Bounds {
			if _, err := b.Region(); err != nil {
				return fmt.Errorf("%w: %s: layer %q bounds %d: %v", ErrInvalid, d.ID, name, i, err)
			}
		}
	}
	if !hasDefault {
		return fmt.Errorf("%w: %s: default level %d has no layer", ErrInvalid, d.ID, d.DefaultLevel)
	}

	for name, m := range d.StaticMarkers {
		if m.LinkedLayer == "" {
			continue
		}
		if _, ok := d.Layers[m.LinkedLayer]; !ok {
			return fmt.Errorf("%w: %s: marker %q links unknown layer %q", ErrInvalid, d.ID, name, m.LinkedLayer)
		}
	}
	return nil
}

// OrderedLayers returns the layers by ascending level, then name.
func (d *Definition) OrderedLayers() []NamedLayer {
	out := make([]NamedLayer, 0, len(d.Layers))
	for name, l := range d.Layers {
		out = append(out, NamedLayer{Name: name, LayerDef: l})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// OrderedMarkers returns the static markers sorted by name.
func (d *Definition) OrderedMarkers() []NamedMarker {
	out := make([]NamedMarker, 0, len(d.StaticMarkers))
	for name, m := range d.StaticMarkers {
		out = append(out, NamedMarker{Name: name, MarkerDef: m})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Levels returns the distinct levels in ascending order.
func (d *Definition) Levels() []int {
	layers := d.OrderedLayers()
	out := make([]int, 0, len(layers))
	for _, l := range layers {
		if n := len(out); n > 0 && out[n-1] == l.Level {
			continue
		}
		out = append(out, l.Level)
	}
	return out
}
