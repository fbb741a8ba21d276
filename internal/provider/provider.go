// Package provider holds the dynamic marker providers. Each provider owns the
// markers of one category and keeps them in sync with the live world while
// the map is shown.
package provider

import (
	"github.com/dynamicmaps/overlay/internal/mapdef"
	"github.com/dynamicmaps/overlay/internal/mapview"
)

// Provider is the lifecycle contract every dynamic marker provider follows.
// Callbacks may arrive from any goroutine.
type Provider interface {
	OnShowInRaid(v *mapview.View)
	OnHideInRaid(v *mapview.View)
	OnRaidEnd(v *mapview.View)
	OnMapChanged(v *mapview.View, def *mapdef.Definition)
	// OnLevelSelected runs after v changed its top level. It must not
	// block on the view.
	OnLevelSelected(v *mapview.View, level int)
	OnShowOutOfRaid(v *mapview.View)
	OnHideOutOfRaid(v *mapview.View)
	OnDisable(v *mapview.View)
}
