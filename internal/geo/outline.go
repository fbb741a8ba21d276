package geo

import (
	"encoding/json"
	"fmt"

	"github.com/dynamicmaps/overlay/internal/model/core"
)

// ParseOutline parses a JSON array of coordinates into map points.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParseOutline(input string) ([]core.Vector2, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse outline JSON: %w", err)
	}

	outline := make([]core.Vector2, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		outline[i] = core.Vector2{X: coord[0], Y: coord[1]}
	}

	return outline, nil
}

// FormatOutline is the inverse of ParseOutline.
func FormatOutline(outline []core.Vector2) string {
	coords := make([][2]float64, len(outline))
	for i, p := range outline {
		coords[i] = [2]float64{p.X, p.Y}
	}
	b, _ := json.Marshal(coords)
	return string(b)
}
