package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

// routeRecord is one entry of a route dataset file
type routeRecord struct {
	ID          string      `json:"id"`
	Nombre      string      `json:"nombre"`
	Tipo        string      `json:"tipo"`
	Color       string      `json:"color"`
	Coordenadas [][]float64 `json:"coordenadas"`
	Metadata    struct {
		Highway string `json:"highway"`
	} `json:"metadata"`
}

// ParseRouteDataset reads a route dataset: either a bare array of routes or an
// object with a "rutas" array. Routes with fewer than two valid points are skipped.
func ParseRouteDataset(data []byte, order CoordOrder) ([]*domain.Route, error) {
	var records []routeRecord
	if err := unmarshalList(data, "rutas", &records); err != nil {
		return nil, fmt.Errorf("ingest: failed to parse route dataset: %w", err)
	}

	routes := make([]*domain.Route, 0, len(records))
	dropped := 0
	for _, rec := range records {
		points := make([]geo.GeoPoint, 0, len(rec.Coordenadas))
		for _, c := range rec.Coordenadas {
			if len(c) < 2 {
				points = nil
				break
			}
			points = append(points, point(c[0], c[1], order))
		}
		if rec.ID == "" || !usable(points) {
			dropped++
			continue
		}

		class := rec.Metadata.Highway
		if class == "" {
			class = rec.Tipo
		}
		route, err := domain.NewRoute(rec.ID, rec.Nombre, domain.ClassifyHighway(class), points)
		if err != nil {
			dropped++
			continue
		}
		route.Color = rec.Color
		routes = append(routes, route)
	}

	skipped("route_dataset", dropped)
	return routes, nil
}

// VehicleRecord is one entry of a simulated vehicle dataset
type VehicleRecord struct {
	ID            string  `json:"id"`
	Nombre        string  `json:"nombre"`
	Tipo          string  `json:"tipo"`
	RutaID        string  `json:"ruta_id"`
	VelocidadKmh  float64 `json:"velocidad_kmh"`
	OffsetInicial float64 `json:"offset_inicial"`
}

// ParseVehicleDataset reads an array of vehicles, or an object with a "vehiculos" array
func ParseVehicleDataset(data []byte) ([]VehicleRecord, error) {
	var records []VehicleRecord
	if err := unmarshalList(data, "vehiculos", &records); err != nil {
		return nil, fmt.Errorf("ingest: failed to parse vehicle dataset: %w", err)
	}
	return records, nil
}

// Entities places looping vehicles on their routes at their initial offset.
// Vehicles referencing unknown routes are skipped.
func Entities(records []VehicleRecord, routes []*domain.Route) []*domain.Entity {
	byID := make(map[string]*domain.Route, len(routes))
	for _, r := range routes {
		byID[r.ID] = r
	}

	entities := make([]*domain.Entity, 0, len(records))
	dropped := 0
	for _, rec := range records {
		route, ok := byID[rec.RutaID]
		if !ok || rec.ID == "" || rec.VelocidadKmh < 0 {
			dropped++
			continue
		}
		offset := rec.OffsetInicial
		if offset < 0 || offset >= 1 {
			offset = 0
		}
		entities = append(entities, &domain.Entity{
			ID:       rec.ID,
			Name:     rec.Nombre,
			Kind:     VehicleKind(rec.Tipo),
			Route:    route,
			SpeedKmh: rec.VelocidadKmh,
			Progress: offset,
			Mode:     domain.ModeLooping,
		})
	}

	skipped("vehicle_dataset", dropped)
	return entities
}

// VehicleKind maps a dataset vehicle type to an entity kind
func VehicleKind(tipo string) domain.EntityKind {
	switch strings.ToLower(tipo) {
	case "camion", "autobus", "bus":
		return domain.KindTransit
	case "auto", "car":
		return domain.KindCar
	case "bicicleta", "bicycle":
		return domain.KindBicycle
	case "ambulancia", "ambulance":
		return domain.KindAmbulance
	case "patrulla", "policia", "patrol":
		return domain.KindPatrol
	case "bomberos", "fire":
		return domain.KindFire
	default:
		return domain.KindGeneric
	}
}

// unmarshalList decodes either a top-level array or the array under key
func unmarshalList(data []byte, key string, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return err
	}
	raw, ok := wrapper[key]
	if !ok {
		return fmt.Errorf("missing %q array", key)
	}
	return json.Unmarshal(raw, out)
}
