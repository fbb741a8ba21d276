package geo

import (
	"math"
	"testing"

	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestNewRectRegion_Contains(t *testing.T) {
	r, err := NewRectRegion(core.Vector2{X: 0, Y: 0}, core.Vector2{X: 100, Y: 50}, nil, nil)
	require.NoError(t, err)

	assert.True(t, r.Contains(core.Vector2{X: 50, Y: 25}, 0))
	assert.True(t, r.Contains(core.Vector2{X: 0, Y: 0}, 0), "boundary is inside")
	assert.False(t, r.Contains(core.Vector2{X: 150, Y: 25}, 0))
	assert.False(t, r.Contains(core.Vector2{X: 50, Y: -1}, 0))
}

func TestNewPolygonRegion_HeightRange(t *testing.T) {
	r, err := NewPolygonRegion([]core.Vector2{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}, ptr(2), ptr(5))
	require.NoError(t, err)

	assert.True(t, r.Contains(core.Vector2{X: 1, Y: 1}, 3))
	assert.False(t, r.Contains(core.Vector2{X: 1, Y: 1}, 1))
	assert.False(t, r.Contains(core.Vector2{X: 1, Y: 1}, 6))
	assert.False(t, r.Contains(core.Vector2{X: 9, Y: 9}, 3), "outside the triangle")
}

func TestNewPolygonRegion_Invalid(t *testing.T) {
	_, err := NewRectRegion(core.Vector2{}, core.Vector2{X: 1, Y: 1}, ptr(3), ptr(1))
	assert.Error(t, err, "inverted height range")
}

func TestNewPolygonRegion_Degenerate(t *testing.T) {
	tests := []struct {
		name    string
		outline []core.Vector2
	}{
		{"no points", nil},
		{"two points", []core.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		{"zero width", []core.Vector2{{X: 5, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 10}, {X: 5, Y: 10}}},
		{"collinear", []core.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}}},
		{"duplicate points", []core.Vector2{{X: 3, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 3}}},
		{"NaN", []core.Vector2{{X: math.NaN(), Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewPolygonRegion(tt.outline, nil, nil)
			require.NoError(t, err)
			assert.True(t, r.Empty())
			assert.False(t, r.Contains(core.Vector2{X: 5, Y: 7}, 0))
			assert.False(t, r.Contains(core.Vector2{}, 0))
		})
	}

	r, err := NewRectRegion(core.Vector2{X: 10, Y: 10}, core.Vector2{X: 10, Y: 40}, nil, nil)
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.False(t, r.Contains(core.Vector2{X: 10, Y: 20}, 0))
}

func TestRegion_ZeroValueContainsNothing(t *testing.T) {
	var r Region
	assert.False(t, r.Contains(core.Vector2{}, 0))
}

func TestPointInLayer(t *testing.T) {
	low, err := NewRectRegion(core.Vector2{X: 0, Y: 0}, core.Vector2{X: 10, Y: 10}, nil, ptr(0))
	require.NoError(t, err)
	high, err := NewRectRegion(core.Vector2{X: 20, Y: 20}, core.Vector2{X: 30, Y: 30}, ptr(0), nil)
	require.NoError(t, err)
	regions := []Region{low, high}

	assert.True(t, PointInLayer(core.Vector2{X: 5, Y: 5}, -2, regions))
	assert.True(t, PointInLayer(core.Vector2{X: 25, Y: 25}, 4, regions))
	assert.False(t, PointInLayer(core.Vector2{X: 5, Y: 5}, 4, regions))
	assert.False(t, PointInLayer(core.Vector2{X: 5, Y: 5}, 0, nil))
}

func TestRoundTrip_ProjectionIntoLayer(t *testing.T) {
	region, err := NewRectRegion(core.Vector2{X: -50, Y: -50}, core.Vector2{X: 50, Y: 50}, ptr(-5), ptr(5))
	require.NoError(t, err)
	tr := Transform{Offset: core.Vector2{X: 400, Y: 300}, Rotation: -90}

	world := core.Position3D{X: 12, Y: 1.5, Z: -33}
	projected := ProjectToMapSpace(world)
	canvas := tr.Apply(projected.XY())
	back := tr.Invert(canvas)

	assert.True(t, PointInLayer(back, projected.Height, []Region{region}))
}

func TestParseOutline(t *testing.T) {
	outline, err := ParseOutline("[[100.5,200.25],[300.75,400.5],[500,600]]")
	require.NoError(t, err)
	require.Len(t, outline, 3)
	assert.Equal(t, 100.5, outline[0].X)
	assert.Equal(t, 600.0, outline[2].Y)

	assert.Equal(t, "[[100.5,200.25],[300.75,400.5],[500,600]]", FormatOutline(outline))
}

func TestParseOutline_Invalid(t *testing.T) {
	_, err := ParseOutline("not valid json")
	require.Error(t, err)

	_, err = ParseOutline("[[100],[200,300]]")
	require.Error(t, err)
}
