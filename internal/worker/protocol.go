// Package worker runs geometry computations off the caller's goroutine behind a
// message-passing request/response protocol with correlation ids and timeouts.
package worker

import (
	"encoding/json"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/routing"
)

// MessageType names a request, a reply or a lifecycle signal
type MessageType string

// Lifecycle
const (
	// TypeReady is sent once, without an id, when the worker accepts requests
	TypeReady MessageType = "WORKER_READY"
	// TypeError replaces the reply when a request fails
	TypeError MessageType = "ERROR"
)

// Requests
const (
	TypeComputeLengthIndex     MessageType = "COMPUTE_LENGTH_INDEX"
	TypeInterpolatePosition    MessageType = "INTERPOLATE_POSITION"
	TypeStitchRoute            MessageType = "STITCH_ROUTE"
	TypeSimplifyRoute          MessageType = "SIMPLIFY_ROUTE"
	TypeSimplifyRouteTolerance MessageType = "SIMPLIFY_ROUTE_TOLERANCE"
	TypeFindNearestPoint       MessageType = "FIND_NEAREST_POINT"
)

// Replies
const (
	TypeLengthIndexComputed  MessageType = "LENGTH_INDEX_COMPUTED"
	TypePositionInterpolated MessageType = "POSITION_INTERPOLATED"
	TypeRouteStitched        MessageType = "ROUTE_STITCHED"
	TypeRouteSimplified      MessageType = "ROUTE_SIMPLIFIED"
	TypeNearestPointFound    MessageType = "NEAREST_POINT_FOUND"
)

// replyTypes maps each request to its successful reply
var replyTypes = map[MessageType]MessageType{
	TypeComputeLengthIndex:     TypeLengthIndexComputed,
	TypeInterpolatePosition:    TypePositionInterpolated,
	TypeStitchRoute:            TypeRouteStitched,
	TypeSimplifyRoute:          TypeRouteSimplified,
	TypeSimplifyRouteTolerance: TypeRouteSimplified,
	TypeFindNearestPoint:       TypeNearestPointFound,
}

// ReplyType returns the reply expected for a request type
func ReplyType(t MessageType) (MessageType, bool) {
	r, ok := replyTypes[t]
	return r, ok
}

// Message is the envelope exchanged in both directions.
// Replies carry the id of the request they answer.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// PointsRequest carries a polyline
type PointsRequest struct {
	Points []geo.GeoPoint `json:"points"`
}

// InterpolateRequest asks for the position at a normalized progress
type InterpolateRequest struct {
	Points   []geo.GeoPoint `json:"points"`
	Progress float64        `json:"progress"`
}

// SimplifyRequest keeps every Stride-th point, or drops points closer than
// ToleranceMeters for SIMPLIFY_ROUTE_TOLERANCE
type SimplifyRequest struct {
	Points          []geo.GeoPoint `json:"points"`
	Stride          int            `json:"stride,omitempty"`
	ToleranceMeters float64        `json:"tolerance_meters,omitempty"`
}

// SimplifyResponse is the reduced polyline
type SimplifyResponse struct {
	Points []geo.GeoPoint `json:"points"`
}

// StitchRequest runs the greedy stitcher over a street graph
type StitchRequest struct {
	Segments []domain.StreetSegment `json:"segments"`
	Options  routing.BuildOptions   `json:"options"`
}

// StitchResponse holds the stitched route, or nil when the attempt was rejected
type StitchResponse struct {
	Route *domain.Route `json:"route"`
}

// NearestRequest asks for the route vertex closest to Target
type NearestRequest struct {
	Points []geo.GeoPoint `json:"points"`
	Target geo.GeoPoint   `json:"target"`
}
