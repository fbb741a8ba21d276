package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dynamicmaps/overlay/internal/model/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Region is a closed area of the map plane, optionally limited to a height
// range. The zero Region contains nothing.
type Region struct {
	area      geom.Geometry
	valid     bool
	minHeight float64
	maxHeight float64
}

// NewPolygonRegion builds a region from the outline of a simple polygon. The
// ring does not need to be closed. minHeight and maxHeight may be nil for an
// unbounded height range. An outline enclosing no area (fewer than three
// points, collinear or repeated points) yields a region that contains nothing.
func NewPolygonRegion(outline []core.Vector2, minHeight, maxHeight *float64) (Region, error) {
	if minHeight != nil && maxHeight != nil && *minHeight > *maxHeight {
		return Region{}, fmt.Errorf("min height %v above max height %v", *minHeight, *maxHeight)
	}
	if signedArea(outline) == 0 {
		return Region{}, nil
	}

	g, err := geom.UnmarshalWKT(polygonWKT(outline))
	if err != nil {
		return Region{}, fmt.Errorf("invalid polygon: %w", err)
	}

	r := Region{
		area:      g,
		valid:     true,
		minHeight: math.Inf(-1),
		maxHeight: math.Inf(1),
	}
	if minHeight != nil {
		r.minHeight = *minHeight
	}
	if maxHeight != nil {
		r.maxHeight = *maxHeight
	}
	return r, nil
}

// NewRectRegion builds an axis aligned rectangular region spanning min and max.
func NewRectRegion(min, max core.Vector2, minHeight, maxHeight *float64) (Region, error) {
	return NewPolygonRegion([]core.Vector2{
		{X: min.X, Y: min.Y},
		{X: max.X, Y: min.Y},
		{X: max.X, Y: max.Y},
		{X: min.X, Y: max.Y},
	}, minHeight, maxHeight)
}

// Contains reports whether the point lies inside the region, boundary included.
func (r Region) Contains(p core.Vector2, height float64) bool {
	if !r.valid || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return false
	}
	if height < r.minHeight || height > r.maxHeight {
		return false
	}
	pt, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
	if err != nil {
		return false
	}
	return geom.Intersects(pt.AsGeometry(), r.area)
}

// Empty reports whether the region can contain no point.
func (r Region) Empty() bool { return !r.valid }

// Geometry returns the underlying polygon, the zero Geometry for an empty region.
func (r Region) Geometry() geom.Geometry {
	return r.area
}

// PointInLayer reports whether the point falls inside any of the regions
// declared for a layer. A layer without regions contains nothing.
func PointInLayer(p core.Vector2, height float64, regions []Region) bool {
	for _, r := range regions {
		if r.Contains(p, height) {
			return true
		}
	}
	return false
}

// signedArea is the shoelace area of the ring; NaN coordinates count as zero area.
func signedArea(outline []core.Vector2) float64 {
	if len(outline) < 3 {
		return 0
	}
	var sum float64
	for i, p := range outline {
		q := outline[(i+1)%len(outline)]
		sum += p.X*q.Y - q.X*p.Y
	}
	if math.IsNaN(sum) {
		return 0
	}
	return sum / 2
}

func polygonWKT(outline []core.Vector2) string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, p := range outline {
		if i > 0 {
			b.WriteString(",")
		}
		writeXY(&b, p)
	}
	if outline[0] != outline[len(outline)-1] {
		b.WriteString(",")
		writeXY(&b, outline[0])
	}
	b.WriteString("))")
	return b.String()
}

func writeXY(b *strings.Builder, p core.Vector2) {
	b.WriteString(strconv.FormatFloat(p.X, 'f', -1, 64))
	b.WriteString(" ")
	b.WriteString(strconv.FormatFloat(p.Y, 'f', -1, 64))
}
