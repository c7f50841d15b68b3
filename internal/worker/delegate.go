package worker

import (
	"context"
	"errors"
	"log/slog"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/routing"
)

// Delegate exposes typed geometry operations. Each call goes through the worker
// when one is attached and falls back to computing in-process when the worker
// is not ready, timed out or gone.
type Delegate struct {
	client *Client
	logger *slog.Logger
}

// NewDelegate wraps client; a nil client computes everything in-process
func NewDelegate(client *Client, logger *slog.Logger) *Delegate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Delegate{client: client, logger: logger}
}

func call[Resp any](ctx context.Context, d *Delegate, typ MessageType, req any, local func() (Resp, error)) (Resp, error) {
	if d.client != nil {
		var resp Resp
		err := d.client.Request(ctx, typ, req, &resp)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, ErrNotReady) && !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrClosed) {
			return resp, err
		}
		d.logger.Debug("Worker unavailable, computing in-process", "type", typ, "error", err)
	}
	return local()
}

// LengthIndex computes the per-segment and cumulative lengths of points
func (d *Delegate) LengthIndex(ctx context.Context, points []geo.GeoPoint) (geo.LengthIndex, error) {
	return call(ctx, d, TypeComputeLengthIndex, PointsRequest{Points: points}, func() (geo.LengthIndex, error) {
		return ComputeLengthIndex(points)
	})
}

// Interpolate samples points at a normalized progress
func (d *Delegate) Interpolate(ctx context.Context, points []geo.GeoPoint, progress float64) (geo.Sample, error) {
	req := InterpolateRequest{Points: points, Progress: progress}
	return call(ctx, d, TypeInterpolatePosition, req, func() (geo.Sample, error) {
		return InterpolatePosition(points, progress)
	})
}

// Stitch builds a route from street segments; a nil route means the attempt was rejected
func (d *Delegate) Stitch(ctx context.Context, segments []domain.StreetSegment, opts routing.BuildOptions) (*domain.Route, error) {
	req := StitchRequest{Segments: segments, Options: opts}
	resp, err := call(ctx, d, TypeStitchRoute, req, func() (StitchResponse, error) {
		return StitchResponse{Route: routing.BuildRoute(segments, opts)}, nil
	})
	if err != nil {
		return nil, err
	}
	return rebuild(resp.Route)
}

// Simplify keeps every stride-th point and the final point
func (d *Delegate) Simplify(ctx context.Context, points []geo.GeoPoint, stride int) ([]geo.GeoPoint, error) {
	req := SimplifyRequest{Points: points, Stride: stride}
	resp, err := call(ctx, d, TypeSimplifyRoute, req, func() (SimplifyResponse, error) {
		return SimplifyResponse{Points: geo.SimplifyStride(points, stride)}, nil
	})
	return resp.Points, err
}

// SimplifyTolerance drops points closer than toleranceMeters to the last kept one
func (d *Delegate) SimplifyTolerance(ctx context.Context, points []geo.GeoPoint, toleranceMeters float64) ([]geo.GeoPoint, error) {
	req := SimplifyRequest{Points: points, ToleranceMeters: toleranceMeters}
	resp, err := call(ctx, d, TypeSimplifyRouteTolerance, req, func() (SimplifyResponse, error) {
		return SimplifyResponse{Points: geo.SimplifyTolerance(points, toleranceMeters)}, nil
	})
	return resp.Points, err
}

// Nearest finds the vertex of points closest to target
func (d *Delegate) Nearest(ctx context.Context, points []geo.GeoPoint, target geo.GeoPoint) (geo.Nearest, error) {
	req := NearestRequest{Points: points, Target: target}
	return call(ctx, d, TypeFindNearestPoint, req, func() (geo.Nearest, error) {
		return FindNearestPoint(points, target)
	})
}
