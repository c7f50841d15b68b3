package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/routing"
)

type handlerFunc func(payload json.RawMessage) (any, error)

// Worker answers geometry requests one at a time on its own goroutine
type Worker struct {
	logger   *slog.Logger
	handlers map[MessageType]handlerFunc
}

// New creates a worker with the full geometry handler set
func New(logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{logger: logger.With("component", "worker")}
	w.handlers = map[MessageType]handlerFunc{
		TypeComputeLengthIndex:     handleLengthIndex,
		TypeInterpolatePosition:    handleInterpolate,
		TypeStitchRoute:            handleStitch,
		TypeSimplifyRoute:          handleSimplifyStride,
		TypeSimplifyRouteTolerance: handleSimplifyTolerance,
		TypeFindNearestPoint:       handleNearest,
	}
	return w
}

// Serve announces readiness and answers requests until ctx is done or the
// connection closes
func (w *Worker) Serve(ctx context.Context, conn Conn) error {
	if err := conn.Send(Message{Type: TypeReady}); err != nil {
		return fmt.Errorf("worker: failed to announce readiness: %w", err)
	}
	w.logger.Debug("Worker ready")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-conn.Done():
			return nil
		case msg := <-conn.Receive():
			if err := conn.Send(w.handle(msg)); err != nil {
				return nil
			}
		}
	}
}

func (w *Worker) handle(msg Message) (reply Message) {
	reply = Message{ID: msg.ID}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Worker handler panicked", "type", msg.Type, "id", msg.ID, "panic", r)
			reply = Message{Type: TypeError, ID: msg.ID, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	handler, ok := w.handlers[msg.Type]
	if !ok {
		reply.Type = TypeError
		reply.Error = fmt.Sprintf("unknown message type: %s", msg.Type)
		return reply
	}

	result, err := handler(msg.Payload)
	if err == nil {
		reply.Payload, err = json.Marshal(result)
	}
	if err != nil {
		w.logger.Debug("Worker request failed", "type", msg.Type, "id", msg.ID, "error", err)
		reply.Type = TypeError
		reply.Error = err.Error()
		return reply
	}

	reply.Type, _ = ReplyType(msg.Type)
	return reply
}

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("invalid payload: %w", err)
	}
	return v, nil
}

func handleLengthIndex(payload json.RawMessage) (any, error) {
	req, err := decode[PointsRequest](payload)
	if err != nil {
		return nil, err
	}
	return ComputeLengthIndex(req.Points)
}

func handleInterpolate(payload json.RawMessage) (any, error) {
	req, err := decode[InterpolateRequest](payload)
	if err != nil {
		return nil, err
	}
	return InterpolatePosition(req.Points, req.Progress)
}

func handleStitch(payload json.RawMessage) (any, error) {
	req, err := decode[StitchRequest](payload)
	if err != nil {
		return nil, err
	}
	return StitchResponse{Route: routing.BuildRoute(req.Segments, req.Options)}, nil
}

func handleSimplifyStride(payload json.RawMessage) (any, error) {
	req, err := decode[SimplifyRequest](payload)
	if err != nil {
		return nil, err
	}
	return SimplifyResponse{Points: geo.SimplifyStride(req.Points, req.Stride)}, nil
}

func handleSimplifyTolerance(payload json.RawMessage) (any, error) {
	req, err := decode[SimplifyRequest](payload)
	if err != nil {
		return nil, err
	}
	return SimplifyResponse{Points: geo.SimplifyTolerance(req.Points, req.ToleranceMeters)}, nil
}

func handleNearest(payload json.RawMessage) (any, error) {
	req, err := decode[NearestRequest](payload)
	if err != nil {
		return nil, err
	}
	return FindNearestPoint(req.Points, req.Target)
}

// ComputeLengthIndex validates the polyline and builds its length index
func ComputeLengthIndex(points []geo.GeoPoint) (geo.LengthIndex, error) {
	return geo.BuildLengthIndex(points)
}

// InterpolatePosition samples a polyline at a normalized progress
func InterpolatePosition(points []geo.GeoPoint, progress float64) (geo.Sample, error) {
	idx, err := geo.BuildLengthIndex(points)
	if err != nil {
		return geo.Sample{}, err
	}
	return geo.Interpolate(idx, points, progress), nil
}

// FindNearestPoint returns the vertex of points closest to target
func FindNearestPoint(points []geo.GeoPoint, target geo.GeoPoint) (geo.Nearest, error) {
	if len(points) == 0 {
		return geo.Nearest{}, fmt.Errorf("%w: no points", geo.ErrInvalidRoute)
	}
	if err := target.Validate(); err != nil {
		return geo.Nearest{}, err
	}
	return geo.NearestPoint(target, points), nil
}

// rebuild restores the length index, which is not part of the wire form
func rebuild(r *domain.Route) (*domain.Route, error) {
	if r == nil {
		return nil, nil
	}
	out, err := domain.NewRoute(r.ID, r.Name, r.Classification, r.Points)
	if err != nil {
		return nil, err
	}
	out.Color = r.Color
	return out, nil
}
