// Package world is the read side of the host simulation: who is alive, where
// they are, and notifications when they die or leave.
package world

import "github.com/dynamicmaps/overlay/internal/model/core"

// Entity is a tracked player or bot.
type Entity interface {
	ID() string
	Nickname() string
	Position() core.Position3D
	// Rotation is the yaw in degrees.
	Rotation() float64
	IsLocal() bool
	HasCorpse() bool
	IsBoss() bool
	// IsHostileFaction reports an enemy operator as opposed to a generic hostile.
	IsHostileFaction() bool
	// IsEscortShooter marks the gunner of the escort vehicle; it never gets a marker.
	IsEscortShooter() bool
	// Reachable is false once the entity has been removed from the world.
	Reachable() bool
}

// NotificationKind tells why an entity stopped being trackable.
type NotificationKind int

const (
	Died NotificationKind = iota
	Unregistered
)

func (k NotificationKind) String() string {
	if k == Died {
		return "died"
	}
	return "unregistered"
}

// Notification is delivered to subscribers of an entity.
type Notification struct {
	EntityID string
	Kind     NotificationKind
}

// World is the live world query.
type World interface {
	// InSession is false while no raid is running; queries then return nothing.
	InSession() bool
	AlivePlayers() []Entity
	LocalPlayer() (Entity, bool)
	// Subscribe registers fn for notifications about id. fn may be called
	// from any goroutine. The returned func cancels the subscription.
	Subscribe(id string, fn func(Notification)) (cancel func())
}
