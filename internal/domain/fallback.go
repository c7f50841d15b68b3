package domain

import (
	"github.com/smartcity/mobility/internal/geo"
)

// CityCenter is the reference point of the bundled Hermosillo data
var CityCenter = geo.GeoPoint{Lat: 29.0729, Lon: -110.9559}

// RouteNames are assigned in order to generated routes
var RouteNames = []string{
	"Ruta Centro-Norte",
	"Ruta Centro-Sur",
	"Ruta Este-Oeste",
	"Ruta Periférico",
}

// FallbackRoutes returns the two hardcoded routes used when no street graph or
// dataset yields usable routes. Each call returns fresh values.
func FallbackRoutes() []*Route {
	specs := []struct {
		id, name string
		class    Classification
		color    string
		points   []geo.GeoPoint
	}{
		{
			id:    "ruta_fallback_1",
			name:  "Ruta Centro-Norte",
			class: ClassPrimary,
			color: "#3b82f6",
			points: []geo.GeoPoint{
				{Lat: 29.0729, Lon: -110.9559},
				{Lat: 29.0800, Lon: -110.9600},
				{Lat: 29.0890, Lon: -110.9550},
				{Lat: 29.0950, Lon: -110.9480},
			},
		},
		{
			id:    "ruta_fallback_2",
			name:  "Ruta Centro-Sur",
			class: ClassSecondary,
			color: "#10b981",
			points: []geo.GeoPoint{
				{Lat: 29.0729, Lon: -110.9559},
				{Lat: 29.0650, Lon: -110.9700},
				{Lat: 29.0580, Lon: -110.9800},
				{Lat: 29.0500, Lon: -110.9850},
			},
		},
	}

	routes := make([]*Route, 0, len(specs))
	for _, s := range specs {
		r, err := NewRoute(s.id, s.name, s.class, s.points)
		if err != nil {
			// static data, cannot fail
			panic(err)
		}
		r.Color = s.color
		routes = append(routes, r)
	}
	return routes
}
