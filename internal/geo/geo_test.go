package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/dynamicmaps/overlay/internal/model/core"
)

func TestPosition3DFromString_ValidWithHeight(t *testing.T) {
	pos, err := Position3DFromString("100.5,20,200.25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.X != 100.5 || pos.Y != 20 || pos.Z != 200.25 {
		t.Errorf("unexpected position %+v", pos)
	}
}

func TestPosition3DFromString_TwoComponentsArePlanar(t *testing.T) {
	pos, err := Position3DFromString("[100,200]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.X != 100 || pos.Y != 0 || pos.Z != 200 {
		t.Errorf("unexpected position %+v", pos)
	}
}

func TestPosition3DFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "100", "abc,1", "1,2,x"} {
		_, err := Position3DFromString(in)
		if !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%q: expected ErrInvalidCoordinates, got %v", in, err)
		}
	}
}

func TestProjectToMapSpace(t *testing.T) {
	got := ProjectToMapSpace(core.Position3D{X: 10, Y: 3, Z: -20})
	want := core.MapPoint{X: 10, Y: -20, Height: 3}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestBoundingRectangle(t *testing.T) {
	got := BoundingRectangle([]core.Vector2{{X: -10, Y: 5}, {X: 30, Y: -15}, {X: 0, Y: 0}})
	if got != (core.Vector2{X: 40, Y: 20}) {
		t.Errorf("unexpected size %+v", got)
	}
}

func TestBoundingRectangle_Degenerate(t *testing.T) {
	if got := BoundingRectangle(nil); got != (core.Vector2{}) {
		t.Errorf("expected zero size for no points, got %+v", got)
	}
	if got := BoundingRectangle([]core.Vector2{{X: 3, Y: 4}, {X: 3, Y: 4}}); got != (core.Vector2{}) {
		t.Errorf("expected zero size for duplicate points, got %+v", got)
	}
}

func TestRotatedRectangle(t *testing.T) {
	tests := []struct {
		name    string
		size    core.Vector2
		degrees float64
		want    core.Vector2
	}{
		{"no rotation", core.Vector2{X: 100, Y: 50}, 0, core.Vector2{X: 100, Y: 50}},
		{"quarter turn swaps", core.Vector2{X: 100, Y: 50}, 90, core.Vector2{X: 50, Y: 100}},
		{"half turn", core.Vector2{X: 100, Y: 50}, 180, core.Vector2{X: 100, Y: 50}},
		{"square at 45", core.Vector2{X: 10, Y: 10}, 45, core.Vector2{X: 10 * math.Sqrt2, Y: 10 * math.Sqrt2}},
		{"zero size", core.Vector2{}, 30, core.Vector2{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RotatedRectangle(tt.size, tt.degrees)
			if !got.ApproxEqual(tt.want, 1e-9) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestMidpoint(t *testing.T) {
	got := Midpoint([]core.Vector2{{X: -100, Y: -50}, {X: 300, Y: 150}})
	if got != (core.Vector2{X: 100, Y: 50}) {
		t.Errorf("unexpected midpoint %+v", got)
	}
	if got := Midpoint(nil); got != (core.Vector2{}) {
		t.Errorf("expected zero midpoint, got %+v", got)
	}
}

func TestRotate(t *testing.T) {
	got := Rotate(core.Vector2{X: 1, Y: 0}, 90)
	if !got.ApproxEqual(core.Vector2{X: 0, Y: 1}, 1e-12) {
		t.Errorf("expected (0,1), got %+v", got)
	}
}

func TestTransform_RoundTrip(t *testing.T) {
	tr := Transform{Offset: core.Vector2{X: 25, Y: -40}, Rotation: 37}
	p := core.Vector2{X: 123.4, Y: -56.7}

	back := tr.Invert(tr.Apply(p))
	if !back.ApproxEqual(p, 1e-9) {
		t.Errorf("expected %+v after round trip, got %+v", p, back)
	}
}

func TestLonLatFromMap_Origin(t *testing.T) {
	lon, lat := LonLatFromMap(core.Vector2{}, core.Vector2{})
	if math.Abs(lon) > 1e-9 || math.Abs(lat) > 1e-9 {
		t.Errorf("expected origin to map to 0,0, got %f,%f", lon, lat)
	}
}

func TestLonLatFromMap_Positive(t *testing.T) {
	lon, lat := LonLatFromMap(core.Vector2{X: 1000, Y: 1000}, core.Vector2{})
	if lon <= 0 || lat <= 0 {
		t.Errorf("expected positive lon/lat, got %f,%f", lon, lat)
	}
}
