package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/routing"
	"github.com/smartcity/mobility/internal/service"
	"github.com/smartcity/mobility/internal/worker"
)

// Handler contains all HTTP handlers
type Handler struct {
	catalog    *service.RouteCatalog
	delegate   *worker.Delegate
	directions *service.DirectionsService
}

// NewHandler creates a new handler
func NewHandler(catalog *service.RouteCatalog, delegate *worker.Delegate, directions *service.DirectionsService) *Handler {
	return &Handler{
		catalog:    catalog,
		delegate:   delegate,
		directions: directions,
	}
}

// PointsRequest is the body of the geometry endpoints
type PointsRequest struct {
	Points []geo.GeoPoint `json:"points"`
}

// InterpolateRequest samples a polyline at progress
type InterpolateRequest struct {
	Points   []geo.GeoPoint `json:"points"`
	Progress float64        `json:"progress"`
}

// SimplifyRequest uses ToleranceMeters when positive, else Stride
type SimplifyRequest struct {
	Points          []geo.GeoPoint `json:"points"`
	Stride          int            `json:"stride"`
	ToleranceMeters float64        `json:"tolerance_meters"`
}

// NearestRequest finds the vertex closest to Target
type NearestRequest struct {
	Points []geo.GeoPoint `json:"points"`
	Target geo.GeoPoint   `json:"target"`
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status := "ok"
	if err := h.catalog.Health(c.UserContext()); err != nil {
		slog.Warn("Dataset health check failed", "error", err)
		status = "degraded"
	}

	return c.JSON(fiber.Map{
		"status":       status,
		"service":      "mobility-engine",
		"version":      "1.0.0",
		"route_source": h.catalog.Source(),
	})
}

// ListRoutes returns route summaries without geometry
func (h *Handler) ListRoutes(c *fiber.Ctx) error {
	routes := h.catalog.Routes()
	summaries := make([]domain.RouteSummary, 0, len(routes))
	for _, r := range routes {
		summaries = append(summaries, r.Summary())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    summaries,
		"count":   len(summaries),
		"source":  h.catalog.Source(),
	})
}

// GetRoute returns one route with its points
func (h *Handler) GetRoute(c *fiber.Ctx) error {
	route, err := h.catalog.Route(c.Params("id"))
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    route,
		"summary": route.Summary(),
	})
}

// GetPosition interpolates a route position at ?progress= (0..1)
func (h *Handler) GetPosition(c *fiber.Ctx) error {
	route, err := h.catalog.Route(c.Params("id"))
	if err != nil {
		return toFiberError(err)
	}

	progress := c.QueryFloat("progress", 0)
	if progress < 0 || progress > 1 {
		return fiber.NewError(fiber.StatusBadRequest, "progress must be within [0, 1]")
	}

	sample, err := h.delegate.Interpolate(c.UserContext(), route.Points, progress)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"route_id": route.ID,
		"progress": progress,
		"data":     sample,
	})
}

// BuildRoute stitches a route from the loaded street graph
func (h *Handler) BuildRoute(c *fiber.Ctx) error {
	opts := routing.DefaultBuildOptions()
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&opts); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if opts.MinLengthKm > opts.MaxLengthKm && opts.MaxLengthKm > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "min_length_km exceeds max_length_km")
	}

	route, err := h.catalog.Build(c.UserContext(), opts)
	if err != nil {
		return toFiberError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    route,
		"summary": route.Summary(),
	})
}

// LengthIndex computes per-segment and cumulative lengths
func (h *Handler) LengthIndex(c *fiber.Ctx) error {
	var req PointsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	idx, err := h.delegate.LengthIndex(c.UserContext(), req.Points)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    idx,
	})
}

// Interpolate samples a polyline at a progress
func (h *Handler) Interpolate(c *fiber.Ctx) error {
	var req InterpolateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	sample, err := h.delegate.Interpolate(c.UserContext(), req.Points, req.Progress)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    sample,
	})
}

// Simplify reduces a polyline by stride or tolerance
func (h *Handler) Simplify(c *fiber.Ctx) error {
	var req SimplifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := geo.ValidatePoints(req.Points); err != nil {
		return toFiberError(err)
	}

	var (
		points []geo.GeoPoint
		err    error
	)
	if req.ToleranceMeters > 0 {
		points, err = h.delegate.SimplifyTolerance(c.UserContext(), req.Points, req.ToleranceMeters)
	} else {
		if req.Stride <= 0 {
			req.Stride = routing.DefaultStride
		}
		points, err = h.delegate.Simplify(c.UserContext(), req.Points, req.Stride)
	}
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    points,
		"count":   len(points),
	})
}

// Nearest finds the closest vertex to a target point
func (h *Handler) Nearest(c *fiber.Ctx) error {
	var req NearestRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	nearest, err := h.delegate.Nearest(c.UserContext(), req.Points, req.Target)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    nearest,
	})
}

// Directions returns a street route from Google Directions, or a mock route
func (h *Handler) Directions(c *fiber.Ctx) error {
	var req service.DirectionsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	res, err := h.directions.Route(c.UserContext(), req)
	if err != nil {
		return toFiberError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    res.Route,
		"summary": res.Route.Summary(),
		"is_mock": res.IsMock,
	})
}

// toFiberError maps domain errors to HTTP status codes
func toFiberError(err error) error {
	switch {
	case errors.Is(err, service.ErrRouteNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoStreetGraph), errors.Is(err, service.ErrRouteRejected):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, geo.ErrInvalidRoute), errors.Is(err, geo.ErrCoordinateOutOfRange),
		errors.Is(err, worker.ErrRemote):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		slog.Error("Request failed", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
	}
}
