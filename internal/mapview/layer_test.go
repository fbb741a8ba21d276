package mapview

import (
	"testing"

	"github.com/dynamicmaps/overlay/internal/config"
	"github.com/dynamicmaps/overlay/internal/host"
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayer_OnTopLevelSelected(t *testing.T) {
	rec := host.NewRecorder()
	display := config.DisplayConfig{UnderneathLayerAlpha: 0.4}
	l, err := NewLayer(rec, nil, "ground", mapdef.LayerDef{Level: 0, ImagePath: "ground.png"}, -45, display)
	require.NoError(t, err)

	tests := []struct {
		selected int
		status   core.LayerStatus
		visible  bool
		alpha    float64
	}{
		{0, core.StatusActive, true, 1},
		{1, core.StatusUnderneath, true, 0.4},
		{-1, core.StatusHidden, false, 0.4},
	}

	for _, tt := range tests {
		l.OnTopLevelSelected(tt.selected)
		n, _ := rec.Node(host.ID(l.handle))

		assert.Equal(t, tt.status, l.Status(), "selected %d", tt.selected)
		assert.Equal(t, tt.visible, n.Visible, "selected %d", tt.selected)
		if tt.visible {
			assert.Equal(t, tt.alpha, n.Alpha, "selected %d", tt.selected)
		}
		assert.Equal(t, -45.0, n.Rotation)
		assert.Equal(t, "ground.png", n.ImagePath)
	}
}

func TestLayer_NoBoundsContainsNothing(t *testing.T) {
	l, err := NewLayer(host.NewRecorder(), nil, "sky", mapdef.LayerDef{Level: 3}, 0, config.DisplayConfig{})
	require.NoError(t, err)

	assert.False(t, l.IsCoordInLayer(core.Vector2{}, 0))
	assert.Equal(t, core.StatusHidden, l.Status())
	assert.Equal(t, 3, l.Level())
	assert.Equal(t, "sky", l.Name())
}

func TestNewLayer_InvalidBounds(t *testing.T) {
	_, err := NewLayer(host.NewRecorder(), nil, "bad", mapdef.LayerDef{Bounds: []mapdef.BoundsDef{{}}}, 0, config.DisplayConfig{})
	assert.Error(t, err)
}
