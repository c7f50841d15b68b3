// Package animation advances moving entities along their routes, one frame at a time.
package animation

import (
	"errors"
	"fmt"
	"math"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/pkg/utils"
)

// DefaultTrailLength is how many recent positions an entity keeps for drawing trails
const DefaultTrailLength = 15

var (
	// ErrNoRoute is returned when a traveling entity has no route assigned
	ErrNoRoute = errors.New("animation: entity has no route")

	// ErrDegenerateRoute is returned for routes with zero total length
	ErrDegenerateRoute = errors.New("animation: route has zero length")

	// ErrInvalidSpeed is returned for negative, NaN or infinite speeds
	ErrInvalidSpeed = errors.New("animation: invalid speed")
)

// Advance moves e forward by deltaSeconds of simulated time and keeps the
// default trail length. See AdvanceTrail.
func Advance(e *domain.Entity, deltaSeconds, speedMultiplier float64) error {
	_, err := AdvanceTrail(e, deltaSeconds, speedMultiplier, DefaultTrailLength)
	return err
}

// AdvanceTrail moves e forward and reports whether a one-shot entity arrived on this call.
//
// progress += speed(m/s) * dt * multiplier / routeLength. Looping entities wrap past
// the end and clear their trail. One-shot entities clamp at exactly 1, become arrived
// and detach their route. Entities that are not traveling are left untouched.
func AdvanceTrail(e *domain.Entity, deltaSeconds, speedMultiplier float64, trailLength int) (bool, error) {
	if e.State != domain.StateTraveling {
		return false, nil
	}

	route := e.Route
	if route == nil {
		return false, fmt.Errorf("entity %q: %w", e.ID, ErrNoRoute)
	}
	total := route.TotalLength()
	if !(total > 0) || math.IsInf(total, 0) {
		return false, fmt.Errorf("entity %q on route %q: %w", e.ID, route.ID, ErrDegenerateRoute)
	}
	if e.SpeedKmh < 0 || math.IsNaN(e.SpeedKmh) || math.IsInf(e.SpeedKmh, 0) {
		return false, fmt.Errorf("entity %q: %w: %v", e.ID, ErrInvalidSpeed, e.SpeedKmh)
	}
	if !(deltaSeconds > 0) {
		deltaSeconds = 0
	}
	if !(speedMultiplier > 0) {
		speedMultiplier = 0
	}

	increment := utils.MetersPerSecond(e.SpeedKmh) * deltaSeconds * speedMultiplier / total
	progress := e.Progress + increment

	if progress >= 1 {
		if e.Mode == domain.ModeOneShot {
			end := route.PositionAt(1)
			e.Progress = 1
			e.Position = end.Position
			e.Heading = end.Heading
			e.State = domain.StateArrived
			e.Route = nil
			e.Trail = pushTrail(e.Trail, end.Position, trailLength)
			return true, nil
		}
		progress = utils.Frac(progress)
		e.Trail = e.Trail[:0]
	}

	e.Progress = progress
	sample := route.PositionAt(progress)
	e.Position = sample.Position
	e.Heading = sample.Heading
	e.Trail = pushTrail(e.Trail, sample.Position, trailLength)
	return false, nil
}

// pushTrail appends p and evicts the oldest entries beyond limit
func pushTrail(trail []geo.GeoPoint, p geo.GeoPoint, limit int) []geo.GeoPoint {
	if limit <= 0 {
		return trail[:0]
	}
	trail = append(trail, p)
	if over := len(trail) - limit; over > 0 {
		trail = append(trail[:0], trail[over:]...)
	}
	return trail
}

// Place positions an entity on its route at its current progress without moving it
func Place(e *domain.Entity) {
	if e.Route == nil {
		return
	}
	sample := e.Route.PositionAt(e.Progress)
	e.Position = sample.Position
	e.Heading = sample.Heading
}
