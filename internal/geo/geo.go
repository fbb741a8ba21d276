package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Map space is the plane the map images are drawn in: world X becomes map X,
// world Z (northing) becomes map Y, and world Y (height) is kept aside for
// level selection. None of the functions in this file fail; degenerate input
// yields zero results.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses a "x,y,z" string into a core.Position3D. The height
// component is optional and defaults to 0.
func Position3DFromString(coords string) (core.Position3D, error) {
	coordsSplit := strings.Split(strings.Trim(coords, "[]"), ",")
	if len(coordsSplit) < 2 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	vals := make([]float64, 0, 3)
	for i := 0; i < len(coordsSplit) && i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[i]), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		vals = append(vals, v)
	}
	if len(vals) == 2 {
		return core.Position3D{X: vals[0], Z: vals[1]}, nil
	}
	return core.Position3D{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// ProjectToMapSpace maps a world position onto the map plane.
func ProjectToMapSpace(p core.Position3D) core.MapPoint {
	return core.MapPoint{X: p.X, Y: p.Z, Height: p.Y}
}

// Rotate rotates p counter-clockwise around the origin by degrees.
func Rotate(p core.Vector2, degrees float64) core.Vector2 {
	if degrees == 0 {
		return p
	}
	v := mgl64.Rotate2D(mgl64.DegToRad(degrees)).Mul2x1(mgl64.Vec2{p.X, p.Y})
	return core.Vector2{X: v[0], Y: v[1]}
}

// BoundingRectangle returns the size of the smallest axis aligned rectangle
// enclosing points.
func BoundingRectangle(points []core.Vector2) core.Vector2 {
	min, max, ok := extent(points)
	if !ok {
		return core.Vector2{}
	}
	return max.Sub(min)
}

// RotatedRectangle returns the axis aligned size of a rectangle of the given
// size once rotated by degrees.
func RotatedRectangle(size core.Vector2, degrees float64) core.Vector2 {
	if degrees == 0 {
		return size
	}
	corners := []core.Vector2{
		Rotate(core.Vector2{}, degrees),
		Rotate(core.Vector2{X: size.X}, degrees),
		Rotate(core.Vector2{Y: size.Y}, degrees),
		Rotate(size, degrees),
	}
	out := BoundingRectangle(corners)
	return core.Vector2{X: snap(out.X), Y: snap(out.Y)}
}

// Midpoint returns the center of the bounding rectangle of points.
func Midpoint(points []core.Vector2) core.Vector2 {
	min, max, ok := extent(points)
	if !ok {
		return core.Vector2{}
	}
	return core.Vector2{X: (min.X + max.X) / 2, Y: (min.Y + max.Y) / 2}
}

func extent(points []core.Vector2) (min, max core.Vector2, ok bool) {
	first := true
	for _, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		if first {
			min, max, first = p, p, false
			continue
		}
		min.X = math.Min(min.X, p.X)
		min.Y = math.Min(min.Y, p.Y)
		max.X = math.Max(max.X, p.X)
		max.Y = math.Max(max.Y, p.Y)
	}
	return min, max, !first
}

// snap removes floating point noise left by sin/cos at right angles.
func snap(v float64) float64 {
	r := math.Round(v)
	if math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// Transform places map space onto the display canvas: content is rotated by
// Rotation degrees and then moved by Offset.
type Transform struct {
	Offset   core.Vector2
	Rotation float64
}

// Apply converts a map space point to canvas space.
func (t Transform) Apply(p core.Vector2) core.Vector2 {
	return Rotate(p, t.Rotation).Add(t.Offset)
}

// Invert converts a canvas space point back to map space.
func (t Transform) Invert(p core.Vector2) core.Vector2 {
	return Rotate(p.Sub(t.Offset), -t.Rotation)
}
