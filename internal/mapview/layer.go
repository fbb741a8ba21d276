package mapview

import (
	"fmt"
	"sync/atomic"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/geo"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/model/core"
)

// Layer is one vertical level of the loaded map.
type Layer struct {
	name    string
	level   int
	regions []geo.Region
	handle  host.Handle
	display config.DisplayConfig

	status atomic.Int32
}

// NewLayer creates the visual content of a layer under parent. The layer
// image is counter rotated by displayRotation.
func NewLayer(h host.Host, parent host.Handle, name string, def mapdef.LayerDef, displayRotation float64, display config.DisplayConfig) (*Layer, error) {
	regions := make([]geo.Region, 0, len(def.Bounds))
	for i, b := range def.Bounds {
		r, err := b.Region()
		if err != nil {
			return nil, fmt.Errorf("layer %s bounds %d: %w", name, i, err)
		}
		regions = append(regions, r)
	}

	l := &Layer{
		name:    name,
		level:   def.Level,
		regions: regions,
		display: display,
		handle:  h.NewLayer(parent, name, def.ImagePath),
	}
	l.handle.SetRotation(displayRotation)
	l.status.Store(int32(core.StatusHidden))
	return l, nil
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Level returns the layer level.
func (l *Layer) Level() int { return l.level }

// Status returns the status set by the last level selection.
func (l *Layer) Status() core.LayerStatus {
	return core.LayerStatus(l.status.Load())
}

// OnTopLevelSelected updates the layer for a newly selected top level.
func (l *Layer) OnTopLevelSelected(level int) {
	status := core.StatusForLevel(l.level, level)
	l.status.Store(int32(status))

	switch status {
	case core.StatusActive:
		l.handle.SetVisible(true)
		l.handle.SetAlpha(1)
	case core.StatusUnderneath:
		l.handle.SetVisible(true)
		l.handle.SetAlpha(l.display.UnderneathLayerAlpha)
	default:
		l.handle.SetVisible(false)
	}
}

// IsCoordInLayer reports whether a map space point at height lies in any of
// the layer's regions.
func (l *Layer) IsCoordInLayer(p core.Vector2, height float64) bool {
	return geo.PointInLayer(p, height, l.regions)
}

func (l *Layer) destroy() {
	l.handle.Destroy()
}
