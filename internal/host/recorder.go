package host

import (
	"sort"
	"sync"

	"github.com/dynamicmaps/overlay/internal/model/core"
)

// Node is the recorded state of one handle.
type Node struct {
	ID        int
	Kind      Kind
	Name      string
	ParentID  int // 0 for the root
	ImagePath string
	Style     core.MarkerStyle
	Position  core.Vector2
	Rotation  float64
	Scale     float64
	Size      core.Vector2
	Alpha     float64
	Visible   bool
	Destroyed bool
	Updates   int
}

// Recorder is a headless Host that remembers every handle it creates. It is
// used by tests and by the command line runner.
type Recorder struct {
	mu     sync.Mutex
	nextID int
	nodes  map[int]*Node
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{nodes: make(map[int]*Node)}
}

type recordedHandle struct {
	r  *Recorder
	id int
}

func (r *Recorder) create(parent Handle, kind Kind, name string, init func(n *Node)) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n := &Node{
		ID:      r.nextID,
		Kind:    kind,
		Name:    name,
		Scale:   1,
		Alpha:   1,
		Visible: true,
	}
	if h, ok := parent.(*recordedHandle); ok && h.r == r {
		n.ParentID = h.id
	}
	if init != nil {
		init(n)
	}
	r.nodes[n.ID] = n
	return &recordedHandle{r: r, id: n.ID}
}

// NewContainer implements Host.
func (r *Recorder) NewContainer(parent Handle, name string) Handle {
	return r.create(parent, KindContainer, name, nil)
}

// NewLayer implements Host.
func (r *Recorder) NewLayer(parent Handle, name, imagePath string) Handle {
	return r.create(parent, KindLayer, name, func(n *Node) { n.ImagePath = imagePath })
}

// NewMarker implements Host.
func (r *Recorder) NewMarker(parent Handle, name string, style core.MarkerStyle) Handle {
	return r.create(parent, KindMarker, name, func(n *Node) {
		n.Style = style
		n.ImagePath = style.ImagePath
		n.Size = style.Size
		if style.Scale > 0 {
			n.Scale = style.Scale
		}
	})
}

func (h *recordedHandle) update(fn func(n *Node)) {
	h.r.mu.Lock()
	defer h.r.mu.Unlock()
	n := h.r.nodes[h.id]
	if n == nil || n.Destroyed {
		return
	}
	fn(n)
	n.Updates++
}

func (h *recordedHandle) SetPosition(p core.Vector2) { h.update(func(n *Node) { n.Position = p }) }
func (h *recordedHandle) SetRotation(d float64)      { h.update(func(n *Node) { n.Rotation = d }) }
func (h *recordedHandle) SetScale(s float64)         { h.update(func(n *Node) { n.Scale = s }) }
func (h *recordedHandle) SetSize(s core.Vector2)     { h.update(func(n *Node) { n.Size = s }) }
func (h *recordedHandle) SetAlpha(a float64)         { h.update(func(n *Node) { n.Alpha = a }) }
func (h *recordedHandle) SetVisible(v bool)          { h.update(func(n *Node) { n.Visible = v }) }

func (h *recordedHandle) Destroy() {
	h.update(func(n *Node) { n.Destroyed = true })
}

// ID returns the recorder id of h, or 0 if h was not created by a Recorder.
func ID(h Handle) int {
	if rh, ok := h.(*recordedHandle); ok {
		return rh.id
	}
	return 0
}

// Node returns a copy of the node with the given id.
func (r *Recorder) Node(id int) (Node, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Live returns copies of the nodes of the given kind that are not destroyed,
// ordered by creation.
func (r *Recorder) Live(kind Kind) []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Node
	for _, n := range r.nodes {
		if n.Kind == kind && !n.Destroyed {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Created returns how many handles of kind were ever created.
func (r *Recorder) Created(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := 0
	for _, n := range r.nodes {
		if n.Kind == kind {
			c++
		}
	}
	return c
}
