package domain

import (
	"github.com/smartcity/mobility/internal/geo"
)

// EntityKind identifies what a moving entity represents
type EntityKind string

const (
	KindPatrol    EntityKind = "patrol"
	KindAmbulance EntityKind = "ambulance"
	KindFire      EntityKind = "fire"
	KindTransit   EntityKind = "transit"
	KindCar       EntityKind = "car"
	KindBicycle   EntityKind = "bicycle"
	KindGeneric   EntityKind = "generic"
)

// Mode decides what happens when an entity reaches the end of its route
type Mode string

const (
	// ModeLooping wraps progress back to the start (tour animation)
	ModeLooping Mode = "looping"
	// ModeOneShot clamps at the end and arrives (dispatch simulation)
	ModeOneShot Mode = "one-shot"
)

// EntityState is the per-entity animation state machine:
// idle -> traveling -> (looping: traveling) | (one-shot: arrived).
type EntityState string

const (
	StateIdle      EntityState = "idle"
	StateTraveling EntityState = "traveling"
	StateArrived   EntityState = "arrived"
	// StateInactive marks an entity the scheduler removed after a failure
	StateInactive  EntityState = "inactive"
)

// Entity is a vehicle or simulated actor moving along a shared Route.
// The entity does not own its Route; several entities may point at the same one.
type Entity struct {
	ID       string      `json:"id"`
	Name     string      `json:"name,omitempty"`
	Kind     EntityKind  `json:"kind"`
	Route    *Route      `json:"-"`
	SpeedKmh float64     `json:"speed_kmh"`
	Progress float64     `json:"progress"`
	Mode     Mode        `json:"mode"`
	State    EntityState `json:"state"`

	// HomeRoute is reassigned on reset after a one-shot trip detached Route
	HomeRoute *Route `json:"-"`

	Position geo.GeoPoint   `json:"position"`
	Heading  float64        `json:"heading_radians"`
	Trail    []geo.GeoPoint `json:"trail,omitempty"`
}

// RouteID returns the id of the assigned route, or "" when detached
func (e *Entity) RouteID() string {
	if e.Route == nil {
		return ""
	}
	return e.Route.ID
}

// Active reports whether the scheduler should advance the entity
func (e *Entity) Active() bool {
	return e.State == StateTraveling
}

// Frame is what the rendering layer receives for one entity on one frame
type Frame struct {
	EntityID string         `json:"entity_id"`
	Kind     EntityKind     `json:"kind"`
	State    EntityState    `json:"state"`
	Position geo.GeoPoint   `json:"position"`
	Heading  float64        `json:"heading_radians"`
	Progress float64        `json:"progress"`
	Trail    []geo.GeoPoint `json:"trail,omitempty"`
}

// Snapshot copies the entity into a frame tuple
func (e *Entity) Snapshot() Frame {
	trail := make([]geo.GeoPoint, len(e.Trail))
	copy(trail, e.Trail)
	return Frame{
		EntityID: e.ID,
		Kind:     e.Kind,
		State:    e.State,
		Position: e.Position,
		Heading:  e.Heading,
		Progress: e.Progress,
		Trail:    trail,
	}
}
