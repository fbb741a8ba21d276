// internal/model/core/types.go
package core

import "math"

// Position3D is a world coordinate as reported by the simulation.
type Position3D struct {
	X float64 `json:"x"` // easting
	Y float64 `json:"y"` // height
	Z float64 `json:"z"` // northing
}

// Vector2 is a coordinate or size on the map plane.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v+o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v-o.
func (v Vector2) Sub(o Vector2) Vector2 {
	return Vector2{X: v.X - o.X, Y: v.Y - o.Y}
}

// ApproxEqual reports whether both components are within eps.
func (v Vector2) ApproxEqual(o Vector2, eps float64) bool {
	return math.Abs(v.X-o.X) <= eps && math.Abs(v.Y-o.Y) <= eps
}

// MapPoint is a position projected onto the map plane. Height is not plotted,
// it is only used to decide which level a point belongs to.
type MapPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Height float64 `json:"height"`
}

// XY drops the height.
func (p MapPoint) XY() Vector2 {
	return Vector2{X: p.X, Y: p.Y}
}

// Color is an RGBA color with components in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

var (
	Red    = Color{R: 1, A: 1}
	Yellow = Color{R: 1, G: 1, A: 1}
	Green  = Color{G: 1, A: 1}
	White  = Color{R: 1, G: 1, B: 1, A: 1}
)

// Lerp linearly interpolates between a and b, t is clamped to [0,1].
func Lerp(a, b Color, t float64) Color {
	t = math.Max(0, math.Min(1, t))
	return Color{
		R: a.R + (b.R-a.R)*t,
		G: a.G + (b.G-a.G)*t,
		B: a.B + (b.B-a.B)*t,
		A: a.A + (b.A-a.A)*t,
	}
}
