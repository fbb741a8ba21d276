package world

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dynamicmaps/overlay/internal/model/core"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrDuplicate     = errors.New("entity already exists")
)

// Role classifies a spawned entity.
type Role int

const (
	RoleScav Role = iota
	RolePMC
	RoleBoss
)

// ParseRole accepts "scav", "pmc" and "boss".
func ParseRole(s string) (Role, error) {
	switch s {
	case "scav":
		return RoleScav, nil
	case "pmc":
		return RolePMC, nil
	case "boss":
		return RoleBoss, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Spec describes an entity to spawn into a Memory world.
type Spec struct {
	ID            string
	Nickname      string
	Role          Role
	Local         bool
	EscortShooter bool
	Position      core.Position3D
	Rotation      float64
}

type entityState struct {
	Spec
	dead bool
}

// snapshot is immutable once published.
type snapshot struct {
	inSession bool
	entities  map[string]entityState
	alive     []string
}

// Memory is an in-process World. Readers never block: every mutation builds a
// new snapshot and publishes it atomically.
type Memory struct {
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]

	subMu  sync.Mutex
	nextID int
	subs   map[string]map[int]func(Notification)
}

// NewMemory creates an empty world that is not in session.
func NewMemory() *Memory {
	m := &Memory{subs: make(map[string]map[int]func(Notification))}
	m.snap.Store(&snapshot{entities: map[string]entityState{}})
	return m
}

func (m *Memory) mutate(fn func(s *snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.snap.Load()
	next := &snapshot{inSession: old.inSession, entities: make(map[string]entityState, len(old.entities))}
	for k, v := range old.entities {
		next.entities[k] = v
	}
	if err := fn(next); err != nil {
		return err
	}
	for id, e := range next.entities {
		if !e.dead {
			next.alive = append(next.alive, id)
		}
	}
	sort.Strings(next.alive)
	m.snap.Store(next)
	return nil
}

// SetInSession starts or ends the session. Ending it removes every entity and
// notifies their subscribers.
func (m *Memory) SetInSession(in bool) {
	var removed []string
	_ = m.mutate(func(s *snapshot) error {
		s.inSession = in
		if !in {
			for id := range s.entities {
				removed = append(removed, id)
			}
			s.entities = map[string]entityState{}
		}
		return nil
	})
	sort.Strings(removed)
	for _, id := range removed {
		m.notify(Notification{EntityID: id, Kind: Unregistered})
	}
}

// Spawn adds a living entity.
func (m *Memory) Spawn(spec Spec) error {
	return m.mutate(func(s *snapshot) error {
		if _, ok := s.entities[spec.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicate, spec.ID)
		}
		s.entities[spec.ID] = entityState{Spec: spec}
		return nil
	})
}

// Move updates position and rotation of a living entity.
func (m *Memory) Move(id string, pos core.Position3D, rotation float64) error {
	return m.mutate(func(s *snapshot) error {
		e, ok := s.entities[id]
		if !ok || e.dead {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		e.Position = pos
		e.Rotation = rotation
		s.entities[id] = e
		return nil
	})
}

// Kill turns an entity into a corpse and notifies its subscribers.
func (m *Memory) Kill(id string) error {
	err := m.mutate(func(s *snapshot) error {
		e, ok := s.entities[id]
		if !ok || e.dead {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		e.dead = true
		s.entities[id] = e
		return nil
	})
	if err == nil {
		m.notify(Notification{EntityID: id, Kind: Died})
	}
	return err
}

// Despawn removes an entity, alive or dead, and notifies its subscribers.
func (m *Memory) Despawn(id string) error {
	err := m.mutate(func(s *snapshot) error {
		if _, ok := s.entities[id]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, id)
		}
		delete(s.entities, id)
		return nil
	})
	if err == nil {
		m.notify(Notification{EntityID: id, Kind: Unregistered})
	}
	return err
}

// InSession implements World.
func (m *Memory) InSession() bool {
	return m.snap.Load().inSession
}

// AlivePlayers implements World. Entities are ordered by id.
func (m *Memory) AlivePlayers() []Entity {
	s := m.snap.Load()
	if !s.inSession {
		return nil
	}
	out := make([]Entity, 0, len(s.alive))
	for _, id := range s.alive {
		out = append(out, m.newRef(s, id))
	}
	return out
}

// LocalPlayer implements World.
func (m *Memory) LocalPlayer() (Entity, bool) {
	s := m.snap.Load()
	if !s.inSession {
		return nil, false
	}
	for _, id := range s.alive {
		if s.entities[id].Local {
			return m.newRef(s, id), true
		}
	}
	return nil, false
}

// Entity returns a live reference to id regardless of its state.
func (m *Memory) Entity(id string) (Entity, bool) {
	s := m.snap.Load()
	if _, ok := s.entities[id]; !ok {
		return nil, false
	}
	return m.newRef(s, id), true
}

func (m *Memory) newRef(s *snapshot, id string) *ref {
	r := &ref{w: m, id: id}
	e := s.entities[id]
	r.last.Store(&e)
	return r
}

// Subscribe implements World.
func (m *Memory) Subscribe(id string, fn func(Notification)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextID++
	sid := m.nextID
	if m.subs[id] == nil {
		m.subs[id] = make(map[int]func(Notification))
	}
	m.subs[id][sid] = fn

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs[id], sid)
		if len(m.subs[id]) == 0 {
			delete(m.subs, id)
		}
	}
}

// Subscribers returns the number of active subscriptions for id.
func (m *Memory) Subscribers(id string) int {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	return len(m.subs[id])
}

func (m *Memory) notify(n Notification) {
	m.subMu.Lock()
	ids := make([]int, 0, len(m.subs[n.EntityID]))
	for sid := range m.subs[n.EntityID] {
		ids = append(ids, sid)
	}
	sort.Ints(ids)
	fns := make([]func(Notification), 0, len(ids))
	for _, sid := range ids {
		fns = append(fns, m.subs[n.EntityID][sid])
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// ref reads through to the latest snapshot on every call, so bound markers
// always see the current position without taking a lock. Once the entity is
// gone it keeps answering with the last state it saw.
type ref struct {
	w    *Memory
	id   string
	last atomic.Pointer[entityState]
}

func (r *ref) state() (entityState, bool) {
	e, ok := r.w.snap.Load().entities[r.id]
	if ok {
		r.last.Store(&e)
		return e, true
	}
	if l := r.last.Load(); l != nil {
		return *l, false
	}
	return entityState{}, false
}

func (r *ref) ID() string { return r.id }

func (r *ref) Nickname() string {
	e, _ := r.state()
	return e.Nickname
}

// Position returns the last known position.
func (r *ref) Position() core.Position3D {
	e, _ := r.state()
	return e.Position
}

func (r *ref) Rotation() float64 {
	e, _ := r.state()
	return e.Rotation
}

func (r *ref) IsLocal() bool {
	e, _ := r.state()
	return e.Local
}

func (r *ref) HasCorpse() bool {
	e, _ := r.state()
	return e.dead
}

func (r *ref) IsBoss() bool {
	e, _ := r.state()
	return e.Role == RoleBoss
}

func (r *ref) IsHostileFaction() bool {
	e, _ := r.state()
	return e.Role == RolePMC
}

func (r *ref) IsEscortShooter() bool {
	e, _ := r.state()
	return e.EscortShooter
}

func (r *ref) Reachable() bool {
	_, ok := r.state()
	return ok
}
