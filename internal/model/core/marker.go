// internal/model/core/marker.go
package core

// MarkerStyle describes how a marker glyph is drawn.
type MarkerStyle struct {
	Category  string
	Label     string
	Color     Color
	ImagePath string
	Size      Vector2
	Scale     float64
}

// LayerStatus is the visibility state of a map layer relative to the selected level.
type LayerStatus int

const (
	// StatusHidden is used for layers above the selected level.
	StatusHidden LayerStatus = iota
	// StatusUnderneath is used for layers below the selected level.
	StatusUnderneath
	// StatusActive is used for the selected level.
	StatusActive
)

func (s LayerStatus) String() string {
	switch s {
	case StatusHidden:
		return "hidden"
	case StatusUnderneath:
		return "underneath"
	case StatusActive:
		return "active"
	default:
		return "unknown"
	}
}

// StatusForLevel returns the status of a layer at layerLevel when selected is on top.
func StatusForLevel(layerLevel, selected int) LayerStatus {
	switch {
	case layerLevel == selected:
		return StatusActive
	case layerLevel < selected:
		return StatusUnderneath
	default:
		return StatusHidden
	}
}
