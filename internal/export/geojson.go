// Package export renders the markers of a view as GeoJSON.
package export

import (
	"encoding/json"
	"io"

	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/mapview"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/peterstace/simplefeatures/geom"
)

// Options control the coordinates of exported features.
type Options struct {
	// Origin, when set, projects map space to WGS84 longitude/latitude,
	// treating map units as Web Mercator metres offset by Origin.
	Origin *core.Vector2
	// Categories limits the export to these categories. Empty means all.
	Categories []string
}

// Markers builds one point feature per marker shown on v, in view order.
func Markers(v *mapview.View, opts Options) geom.GeoJSONFeatureCollection {
	wanted := make(map[string]bool, len(opts.Categories))
	for _, c := range opts.Categories {
		wanted[c] = true
	}

	fc := geom.GeoJSONFeatureCollection{}
	for _, m := range v.Markers() {
		if len(wanted) > 0 && !wanted[m.Category()] {
			continue
		}
		f, ok := feature(v.MapID(), m, opts.Origin)
		if !ok {
			continue
		}
		fc = append(fc, f)
	}
	return fc
}

// feature reports false for markers whose position is not a finite point.
func feature(mapID string, m *mapview.Marker, origin *core.Vector2) (geom.GeoJSONFeature, bool) {
	pos := m.Position()
	xy := geom.XY{X: pos.X, Y: pos.Y}
	if origin != nil {
		xy.X, xy.Y = geo.LonLatFromMap(pos.XY(), *origin)
	}
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   xy,
		Z:    pos.Height,
		Type: geom.DimXYZ,
	})
	if err != nil {
		return geom.GeoJSONFeature{}, false
	}

	style := m.Style()
	props := map[string]any{
		"mapID":    mapID,
		"category": style.Category,
		"label":    style.Label,
		"rotation": m.Rotation(),
		"alpha":    m.Alpha(),
		"color":    style.Color,
	}
	if l := m.CurrentLayer(); l != nil {
		props["layer"] = l.Name()
		props["level"] = l.Level()
	}
	if src := m.Source(); src != nil {
		props["entityID"] = src.ID()
	}

	return geom.GeoJSONFeature{
		Geometry:   pt.AsGeometry(),
		ID:         m.Name(),
		Properties: props,
	}, true
}

// Write encodes fc to w.
func Write(w io.Writer, fc geom.GeoJSONFeatureCollection) error {
	enc := json.NewEncoder(w)
	return enc.Encode(fc)
}
