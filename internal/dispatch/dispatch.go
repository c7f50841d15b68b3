// Package dispatch simulates emergency calls answered by one-shot vehicles.
//
// Events appear at random points of the known routes. The first pending event is
// given to the first idle vehicle, which drives along the closest route to the
// event and resolves it on arrival.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartcity/mobility/internal/animation"
	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// EventType is the kind of emergency
type EventType string

const (
	EventAccident EventType = "accident"
	EventFire     EventType = "fire"
	EventMedical  EventType = "medical"
	EventCrime    EventType = "crime"
)

// EventTypes lists every type MaybeSpawn picks from
var EventTypes = []EventType{EventAccident, EventFire, EventMedical, EventCrime}

// EventStatus tracks an event through pending -> responding -> resolved
type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusResponding EventStatus = "responding"
	StatusResolved   EventStatus = "resolved"
)

// Event is one emergency call
type Event struct {
	ID              string       `json:"id"`
	Type            EventType    `json:"type"`
	Location        geo.GeoPoint `json:"location"`
	Status          EventStatus  `json:"status"`
	AssignedVehicle string       `json:"assigned_vehicle,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Defaults
const (
	DefaultSpawnProbability = 0.3
	DefaultSpawnInterval    = 5 * time.Second
	DefaultStepInterval     = 250 * time.Millisecond
	// DefaultRouteProximity is the per-axis degree window a route must pass within
	DefaultRouteProximity = 0.01
	DefaultMaxEvents      = 100
)

// Stats summarizes fleet and event state
type Stats struct {
	IdleVehicles       int `json:"idle_vehicles"`
	RespondingVehicles int `json:"responding_vehicles"`
	PendingEvents      int `json:"pending_events"`
	RespondingEvents   int `json:"responding_events"`
	ResolvedEvents     int `json:"resolved_events"`
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithRand sets the random source used for spawning
func WithRand(rng *rand.Rand) Option {
	return func(d *Dispatcher) {
		if rng != nil {
			d.rng = rng
		}
	}
}

// WithSpawnProbability sets the chance that MaybeSpawn creates an event
func WithSpawnProbability(p float64) Option {
	return func(d *Dispatcher) {
		d.spawnProbability = math.Max(0, math.Min(1, p))
	}
}

// WithSpawnInterval sets how often Run calls MaybeSpawn
func WithSpawnInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.spawnInterval = interval
		}
	}
}

// WithClock overrides time.Now for event timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the dispatcher logger
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher owns the event queue and drives fleet vehicles through a scheduler
type Dispatcher struct {
	scheduler *animation.Scheduler
	routes    []*domain.Route

	mu        sync.Mutex
	fleet     []string
	events    []*Event
	byVehicle map[string]*Event

	rng              *rand.Rand
	spawnProbability float64
	spawnInterval    time.Duration
	now              func() time.Time
	logger           *slog.Logger
}

// New creates a dispatcher over routes. Fleet vehicles are added with AddVehicle.
func New(scheduler *animation.Scheduler, routes []*domain.Route, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		scheduler:        scheduler,
		routes:           routes,
		byVehicle:        make(map[string]*Event),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		spawnProbability: DefaultSpawnProbability,
		spawnInterval:    DefaultSpawnInterval,
		now:              time.Now,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DefaultFleet returns one patrol, one ambulance and one fire truck parked at
// the start of the first routes
func DefaultFleet(routes []*domain.Route) []*domain.Entity {
	if len(routes) == 0 {
		return nil
	}
	specs := []struct {
		id    string
		kind  domain.EntityKind
		speed float64
	}{
		{"patrol_1", domain.KindPatrol, 50},
		{"ambulance_1", domain.KindAmbulance, 70},
		{"fire_1", domain.KindFire, 60},
	}

	fleet := make([]*domain.Entity, 0, len(specs))
	for i, s := range specs {
		fleet = append(fleet, &domain.Entity{
			ID:        s.id,
			Kind:      s.kind,
			SpeedKmh:  s.speed,
			Mode:      domain.ModeOneShot,
			State:     domain.StateIdle,
			HomeRoute: routes[i%len(routes)],
		})
	}
	return fleet
}

// AddVehicle registers an idle one-shot vehicle with the scheduler
func (d *Dispatcher) AddVehicle(e *domain.Entity) error {
	e.Mode = domain.ModeOneShot
	e.Route = nil
	e.State = domain.StateIdle
	if err := d.scheduler.Add(e); err != nil {
		return fmt.Errorf("dispatch: failed to add vehicle: %w", err)
	}

	d.mu.Lock()
	d.fleet = append(d.fleet, e.ID)
	d.mu.Unlock()
	return nil
}

// MaybeSpawn creates an event at a random route point with the configured
// probability and returns it, or nil when nothing spawned
func (d *Dispatcher) MaybeSpawn() *Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.routes) == 0 || d.rng.Float64() >= d.spawnProbability {
		return nil
	}

	route := d.routes[d.rng.Intn(len(d.routes))]
	ev := &Event{
		ID:        uuid.NewString(),
		Type:      EventTypes[d.rng.Intn(len(EventTypes))],
		Location:  route.Points[d.rng.Intn(len(route.Points))],
		Status:    StatusPending,
		CreatedAt: d.now(),
	}
	d.appendLocked(ev)

	d.logger.Debug("Emergency event", "id", ev.ID, "type", ev.Type, "location", ev.Location.String())
	out := *ev
	return &out
}

// Report queues an event at a given location
func (d *Dispatcher) Report(typ EventType, location geo.GeoPoint) (Event, error) {
	if err := location.Validate(); err != nil {
		return Event{}, fmt.Errorf("dispatch: failed to report event: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ev := &Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Location:  location,
		Status:    StatusPending,
		CreatedAt: d.now(),
	}
	d.appendLocked(ev)
	return *ev, nil
}

// appendLocked adds ev and drops the oldest resolved events over DefaultMaxEvents
func (d *Dispatcher) appendLocked(ev *Event) {
	d.events = append(d.events, ev)
	for len(d.events) > DefaultMaxEvents {
		i := 0
		for i < len(d.events) && d.events[i].Status != StatusResolved {
			i++
		}
		if i == len(d.events) {
			return
		}
		d.events = append(d.events[:i], d.events[i+1:]...)
	}
}

// Step resolves vehicles that arrived and assigns the first pending event to
// the first idle vehicle. It reports whether an assignment was made.
func (d *Dispatcher) Step() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for vehicleID := range d.byVehicle {
		if e, ok := d.scheduler.Entity(vehicleID); ok && e.State == domain.StateArrived {
			d.resolveLocked(vehicleID)
		}
	}

	var ev *Event
	for _, e := range d.events {
		if e.Status == StatusPending {
			ev = e
			break
		}
	}
	if ev == nil {
		return false
	}

	vehicle, ok := d.firstIdleLocked()
	if !ok {
		return false
	}

	trip, err := d.tripTo(vehicle, ev)
	if err != nil {
		d.logger.Debug("No route near event", "event", ev.ID, "error", err)
		return false
	}

	if trip == nil {
		// Vehicle is already on scene
		ev.Status = StatusResolved
		ev.AssignedVehicle = vehicle.ID
		return true
	}

	if err := d.scheduler.Assign(vehicle.ID, trip); err != nil {
		d.logger.Warn("Failed to assign vehicle", "vehicle", vehicle.ID, "event", ev.ID, "error", err)
		return false
	}
	ev.Status = StatusResponding
	ev.AssignedVehicle = vehicle.ID
	d.byVehicle[vehicle.ID] = ev

	d.logger.Debug("Vehicle dispatched", "vehicle", vehicle.ID, "event", ev.ID, "length_m", trip.TotalLength())
	return true
}

func (d *Dispatcher) firstIdleLocked() (domain.Entity, bool) {
	for _, id := range d.fleet {
		if _, busy := d.byVehicle[id]; busy {
			continue
		}
		if e, ok := d.scheduler.Entity(id); ok && e.State == domain.StateIdle {
			return e, true
		}
	}
	return domain.Entity{}, false
}

// tripTo builds the vehicle's route to the event along the first route passing
// near it: from the route vertex nearest the vehicle to the one nearest the event.
// A nil route means the vehicle is already at the event.
func (d *Dispatcher) tripTo(vehicle domain.Entity, ev *Event) (*domain.Route, error) {
	var near *domain.Route
	for _, r := range d.routes {
		if passesNear(r, ev.Location, DefaultRouteProximity) {
			near = r
			break
		}
	}
	if near == nil {
		return nil, fmt.Errorf("dispatch: no route within %.2f° of %s", DefaultRouteProximity, ev.Location)
	}

	from := geo.NearestPoint(vehicle.Position, near.Points).Index
	to := geo.NearestPoint(ev.Location, near.Points).Index

	var path []geo.GeoPoint
	if from <= to {
		path = append(path, near.Points[from:to+1]...)
	} else {
		for i := from; i >= to; i-- {
			path = append(path, near.Points[i])
		}
	}
	if path[0] != vehicle.Position {
		path = append([]geo.GeoPoint{vehicle.Position}, path...)
	}
	if path[len(path)-1] != ev.Location {
		path = append(path, ev.Location)
	}
	if len(path) < 2 || geo.PolylineLength(path) == 0 {
		return nil, nil
	}

	route, err := domain.NewRoute("trip/"+ev.ID, fmt.Sprintf("%s to %s", vehicle.ID, ev.Type), near.Classification, path)
	if err != nil {
		return nil, err
	}
	route.Color = near.Color
	return route, nil
}

func passesNear(r *domain.Route, p geo.GeoPoint, window float64) bool {
	for _, c := range r.Points {
		if math.Abs(c.Lat-p.Lat) < window && math.Abs(c.Lon-p.Lon) < window {
			return true
		}
	}
	return false
}

// OnArrival resolves the event of a vehicle that reached it. Wire it into the
// scheduler with animation.WithArrival; Step also polls for arrivals.
func (d *Dispatcher) OnArrival(vehicleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolveLocked(vehicleID)
}

func (d *Dispatcher) resolveLocked(vehicleID string) {
	ev, ok := d.byVehicle[vehicleID]
	if !ok {
		return
	}
	delete(d.byVehicle, vehicleID)
	ev.Status = StatusResolved

	if err := d.scheduler.Release(vehicleID); err != nil {
		d.logger.Warn("Failed to release vehicle", "vehicle", vehicleID, "error", err)
	}
	d.logger.Debug("Event resolved", "event", ev.ID, "vehicle", vehicleID)
}

// Events returns copies of the tracked events in creation order
func (d *Dispatcher) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, *e)
	}
	return out
}

// Stats counts vehicles and events by state
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	var s Stats
	for _, id := range d.fleet {
		if _, busy := d.byVehicle[id]; busy {
			s.RespondingVehicles++
		} else {
			s.IdleVehicles++
		}
	}
	for _, e := range d.events {
		switch e.Status {
		case StatusPending:
			s.PendingEvents++
		case StatusResponding:
			s.RespondingEvents++
		case StatusResolved:
			s.ResolvedEvents++
		}
	}
	return s
}

// Reset drops every event. Call it alongside Scheduler.Reset, which parks the fleet.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = nil
	d.byVehicle = make(map[string]*Event)
}

// Run spawns events on the spawn interval and assigns vehicles until ctx is done
func (d *Dispatcher) Run(ctx context.Context) {
	spawn := time.NewTicker(d.spawnInterval)
	defer spawn.Stop()
	step := time.NewTicker(DefaultStepInterval)
	defer step.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-spawn.C:
			d.MaybeSpawn()
		case <-step.C:
			d.Step()
		}
	}
}
