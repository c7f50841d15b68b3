package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/telemetry"
)

// DefaultFrameInterval is roughly one display refresh at 60 Hz
const DefaultFrameInterval = 16 * time.Millisecond

var (
	// ErrEntityNotFound is returned when an entity id is unknown to the scheduler
	ErrEntityNotFound = errors.New("animation: entity not found")

	// ErrDuplicateEntity is returned when adding an id that is already scheduled
	ErrDuplicateEntity = errors.New("animation: duplicate entity id")
)

// FrameSink receives the frame tuples of every visible entity after each frame
type FrameSink func(frames []domain.Frame)

// ArrivalFunc is called once when a one-shot entity reaches the end of its trip
type ArrivalFunc func(entityID string)

// Option configures a Scheduler
type Option func(*Scheduler)

// WithInterval sets the frame loop period used by Play
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithTrailLength sets how many positions each entity keeps; 0 disables trails
func WithTrailLength(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.trailLength = n
		}
	}
}

// WithSink sets the renderer callback
func WithSink(sink FrameSink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithArrival sets the one-shot arrival callback
func WithArrival(fn ArrivalFunc) Option {
	return func(s *Scheduler) { s.onArrive = fn }
}

// WithNow replaces the wall clock used by the frame loop
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the scheduler logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler owns a set of entities and advances them frame by frame.
//
// All entities in a frame are advanced with the same delta. A failing entity is
// deactivated without stopping the others. The frame loop is owned through a
// cancel func so Pause and Reset never leave a stray loop behind.
type Scheduler struct {
	mu       sync.Mutex
	clock    *Clock
	entities []*domain.Entity
	byID     map[string]*domain.Entity

	cancel context.CancelFunc
	gen    uint64

	interval    time.Duration
	trailLength int
	sink        FrameSink
	onArrive    ArrivalFunc
	now         func() time.Time
	logger      *slog.Logger
	metrics     *telemetry.Instruments
}

// NewScheduler creates a paused scheduler
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:       NewClock(),
		byID:        make(map[string]*domain.Entity),
		interval:    DefaultFrameInterval,
		trailLength: DefaultTrailLength,
		now:         time.Now,
		logger:      slog.Default(),
		metrics:     telemetry.Metrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers an entity. An entity with a route starts traveling, one without
// stays idle until Assign. The first route seen is remembered as its home route.
func (s *Scheduler) Add(e *domain.Entity) error {
	if e.ID == "" {
		return fmt.Errorf("animation: failed to add entity: empty id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[e.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEntity, e.ID)
	}
	if e.Mode == "" {
		e.Mode = domain.ModeLooping
	}
	if e.HomeRoute == nil {
		e.HomeRoute = e.Route
	}
	if e.State == "" {
		e.State = domain.StateIdle
		if e.Route != nil {
			e.State = domain.StateTraveling
		}
	}
	if e.Route != nil {
		Place(e)
	} else if e.HomeRoute != nil {
		e.Position = e.HomeRoute.Start()
	}

	s.entities = append(s.entities, e)
	s.byID[e.ID] = e
	return nil
}

// Remove drops an entity from the scheduler
func (s *Scheduler) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, e := range s.entities {
		if e.ID == id {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			break
		}
	}
	return true
}

// Assign starts a one-shot trip for an existing entity
func (s *Scheduler) Assign(id string, route *domain.Route) error {
	if route == nil || !(route.TotalLength() > 0) {
		return fmt.Errorf("animation: failed to assign %s: %w", id, ErrDegenerateRoute)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	e.Route = route
	e.Mode = domain.ModeOneShot
	e.Progress = 0
	e.State = domain.StateTraveling
	e.Trail = e.Trail[:0]
	Place(e)
	return nil
}

// Release returns an arrived entity to idle so it can take another trip
func (s *Scheduler) Release(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, id)
	}
	if e.State == domain.StateArrived {
		e.State = domain.StateIdle
		e.Progress = 0
	}
	return nil
}

// Entity returns a copy of the entity with its own trail slice
func (s *Scheduler) Entity(id string) (domain.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return domain.Entity{}, false
	}
	out := *e
	out.Trail = e.Snapshot().Trail
	return out, true
}

// Entities returns copies of all entities in insertion order
func (s *Scheduler) Entities() []domain.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		c := *e
		c.Trail = e.Snapshot().Trail
		out = append(out, c)
	}
	return out
}

// Snapshot returns the current frame tuples without advancing
func (s *Scheduler) Snapshot() []domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesLocked()
}

// Frame advances every traveling entity to the given timestamp and emits the frame.
// It can be driven directly by callers that own their own render loop.
func (s *Scheduler) Frame(now time.Time) []domain.Frame {
	s.mu.Lock()
	frames, arrived := s.frameLocked(now)
	s.mu.Unlock()

	s.emit(frames, arrived)
	return frames
}

func (s *Scheduler) frameLocked(now time.Time) ([]domain.Frame, []string) {
	dt := s.clock.Tick(now)
	multiplier := s.clock.SpeedMultiplier()

	var arrived []string
	for _, e := range s.entities {
		ok, err := AdvanceTrail(e, dt, multiplier, s.trailLength)
		if err != nil {
			e.State = domain.StateInactive
			s.logger.Warn("Deactivating entity", "entity", e.ID, "error", err)
			s.metrics.EntitiesDeactivated.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("kind", string(e.Kind))))
			continue
		}
		if ok {
			arrived = append(arrived, e.ID)
		}
	}
	s.metrics.FramesTotal.Add(context.Background(), 1)
	return s.framesLocked(), arrived
}

func (s *Scheduler) framesLocked() []domain.Frame {
	frames := make([]domain.Frame, 0, len(s.entities))
	for _, e := range s.entities {
		if e.State == domain.StateInactive {
			continue
		}
		frames = append(frames, e.Snapshot())
	}
	return frames
}

// emit runs outside the lock so callbacks may call back into the scheduler
func (s *Scheduler) emit(frames []domain.Frame, arrived []string) {
	if s.sink != nil {
		s.sink(frames)
	}
	for _, id := range arrived {
		s.metrics.EntitiesArrived.Add(context.Background(), 1)
		if s.onArrive != nil {
			s.onArrive(id)
		}
	}
}

// Play starts the frame loop. It is a no-op while already playing.
// The loop stops on Pause or when ctx is done.
func (s *Scheduler) Play(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}
	s.clock.Play()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.gen++
	go s.loop(loopCtx, s.gen)

	s.logger.Debug("Animation playing", "entities", len(s.entities), "speed", s.clock.SpeedMultiplier())
}

func (s *Scheduler) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.stopped(gen)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			// Pause may have won the lock after the tick fired
			if ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			frames, arrived := s.frameLocked(s.now())
			s.mu.Unlock()

			s.emit(frames, arrived)
		}
	}
}

// stopped clears playback when the parent context ended the loop
func (s *Scheduler) stopped(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.clock.Pause()
	}
}

// Pause stops the frame loop and drops the clock baseline.
// No frame is computed after Pause returns.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		s.gen++
	}
	s.clock.Pause()
}

// Toggle flips between playing and paused and reports the new state
func (s *Scheduler) Toggle(ctx context.Context) bool {
	if s.Playing() {
		s.Pause()
		return false
	}
	s.Play(ctx)
	return true
}

// Playing reports whether the frame loop is running
func (s *Scheduler) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Reset zeroes progress and clears trails before returning, so the next frame
// never renders stale positions. Looping entities restart on their home route,
// one-shot entities go back to idle at its start.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entities {
		e.Progress = 0
		e.Trail = e.Trail[:0]

		switch {
		case e.Mode == domain.ModeLooping && e.HomeRoute != nil:
			e.Route = e.HomeRoute
			e.State = domain.StateTraveling
			Place(e)
		case e.HomeRoute != nil:
			e.Route = nil
			e.State = domain.StateIdle
			e.Position = e.HomeRoute.Start()
			e.Heading = 0
		default:
			e.Route = nil
			e.State = domain.StateIdle
		}
	}
	s.clock.ResetBaseline()
}

// SetSpeedMultiplier accepts one of SpeedMultipliers
func (s *Scheduler) SetSpeedMultiplier(m float64) error {
	if !SupportedMultiplier(m) {
		return fmt.Errorf("%w: %v", ErrUnsupportedMultiplier, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.SetSpeedMultiplier(m)
}

// SpeedMultiplier returns the active playback multiplier
func (s *Scheduler) SpeedMultiplier() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock.SpeedMultiplier()
}
