package mapdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"gorm.io/datatypes"
)

// Models lists every table the store migrates.
var Models = []any{
	&MapDefinition{},
	&MapLayer{},
	&StaticMarker{},
}

// MapDefinition is a row of map_definitions.
type MapDefinition struct {
	ID                 string `gorm:"primaryKey;size:64"`
	DisplayName        string `gorm:"size:128"`
	CoordinateRotation float64
	// Bounds is stored as a JSON outline, "[[x1,y1],[x2,y2]]".
	Bounds        string `gorm:"type:text"`
	DefaultLevel  int
	UpdatedAt     time.Time
	Layers        []MapLayer     `gorm:"foreignKey:MapID;constraint:OnDelete:CASCADE"`
	StaticMarkers []StaticMarker `gorm:"foreignKey:MapID;constraint:OnDelete:CASCADE"`
}

// MapLayer is a row of map_layers.
type MapLayer struct {
	ID        uint   `gorm:"primaryKey"`
	MapID     string `gorm:"size:64;index;uniqueIndex:idx_layer_name"`
	Name      string `gorm:"size:64;uniqueIndex:idx_layer_name"`
	Level     int
	ImagePath string
	Bounds    datatypes.JSON
}

// StaticMarker is a row of static_markers.
type StaticMarker struct {
	ID          uint   `gorm:"primaryKey"`
	MapID       string `gorm:"size:64;index;uniqueIndex:idx_marker_name"`
	Name        string `gorm:"size:64;uniqueIndex:idx_marker_name"`
	Category    string `gorm:"size:64"`
	ImagePath   string
	Color       datatypes.JSON
	X           float64
	Y           float64
	Height      float64
	Rotation    float64
	LinkedLayer string `gorm:"size:64"`
}

func toJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || len(data) == 0 || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// fromDefinition converts a definition into rows.
func fromDefinition(def *mapdef.Definition) MapDefinition {
	row := MapDefinition{
		ID:                 def.ID,
		DisplayName:        def.DisplayName,
		CoordinateRotation: def.CoordinateRotation,
		Bounds:             geo.FormatOutline(def.Bounds),
		DefaultLevel:       def.DefaultLevel,
	}
	for _, l := range def.OrderedLayers() {
		row.Layers = append(row.Layers, MapLayer{
			MapID:     def.ID,
			Name:      l.Name,
			Level:     l.Level,
			ImagePath: l.ImagePath,
			Bounds:    toJSON(l.Bounds, "[]"),
		})
	}
	for _, sm := range def.OrderedMarkers() {
		row.StaticMarkers = append(row.StaticMarkers, StaticMarker{
			MapID:       def.ID,
			Name:        sm.Name,
			Category:    sm.Category,
			ImagePath:   sm.ImagePath,
			Color:       toJSON(sm.Color, "{}"),
			X:           sm.Position.X,
			Y:           sm.Position.Y,
			Height:      sm.Position.Height,
			Rotation:    sm.Rotation,
			LinkedLayer: sm.LinkedLayer,
		})
	}
	return row
}

// toDefinition converts rows back into a definition. The result is not validated.
func toDefinition(row MapDefinition) (*mapdef.Definition, error) {
	bounds, err := geo.ParseOutline(row.Bounds)
	if err != nil {
		return nil, fmt.Errorf("map %s bounds: %w", row.ID, err)
	}
	def := &mapdef.Definition{
		ID:                 row.ID,
		DisplayName:        row.DisplayName,
		CoordinateRotation: row.CoordinateRotation,
		Bounds:             bounds,
		DefaultLevel:       row.DefaultLevel,
		Layers:             make(map[string]mapdef.LayerDef, len(row.Layers)),
		StaticMarkers:      make(map[string]mapdef.MarkerDef, len(row.StaticMarkers)),
	}
	for _, l := range row.Layers {
		var lb []mapdef.BoundsDef
		if len(l.Bounds) > 0 {
			if err := json.Unmarshal(l.Bounds, &lb); err != nil {
				return nil, fmt.Errorf("layer %s bounds: %w", l.Name, err)
			}
		}
		def.Layers[l.Name] = mapdef.LayerDef{Level: l.Level, ImagePath: l.ImagePath, Bounds: lb}
	}
	for _, sm := range row.StaticMarkers {
		var c core.Color
		if len(sm.Color) > 0 {
			if err := json.Unmarshal(sm.Color, &c); err != nil {
				return nil, fmt.Errorf("marker %s color: %w", sm.Name, err)
			}
		}
		def.StaticMarkers[sm.Name] = mapdef.MarkerDef{
			Category:    sm.Category,
			ImagePath:   sm.ImagePath,
			Color:       c,
			Position:    core.MapPoint{X: sm.X, Y: sm.Y, Height: sm.Height},
			Rotation:    sm.Rotation,
			LinkedLayer: sm.LinkedLayer,
		}
	}
	return def, nil
}
