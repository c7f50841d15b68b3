package service

import (
	"errors"

	"github.com/smartcity/mobility/internal/domain"
)

// DatasetRepository is re-exported from domain for convenience
type DatasetRepository = domain.DatasetRepository

var (
	// ErrRouteNotFound is returned for unknown route ids
	ErrRouteNotFound = errors.New("route not found")

	// ErrRouteRejected is returned when the stitcher could not build a long enough route
	ErrRouteRejected = errors.New("route rejected: street graph too sparse for the requested length")

	// ErrNoStreetGraph is returned when building is requested without street data
	ErrNoStreetGraph = errors.New("no street graph loaded")
)
