// Package host is the boundary to the widget toolkit that actually draws the
// map. The overlay only ever creates and mutates handles; it never reads
// state back from them.
package host

import "github.com/dynamicmaps/overlay/internal/model/core"

// Kind tells what a handle was created as.
type Kind int

const (
	KindContainer Kind = iota
	KindLayer
	KindMarker
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindLayer:
		return "layer"
	case KindMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Handle is a piece of visual content owned by the host.
type Handle interface {
	SetPosition(p core.Vector2)
	SetRotation(degrees float64)
	SetScale(scale float64)
	SetSize(size core.Vector2)
	SetAlpha(alpha float64)
	SetVisible(visible bool)
	// Destroy releases the content. Calls after the first are ignored.
	Destroy()
}

// Host creates visual content. A nil parent attaches to the host root.
type Host interface {
	NewContainer(parent Handle, name string) Handle
	NewLayer(parent Handle, name, imagePath string) Handle
	NewMarker(parent Handle, name string, style core.MarkerStyle) Handle
}
