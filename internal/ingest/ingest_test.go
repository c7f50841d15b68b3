package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
)

const streetsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": 1001,
      "properties": {"name": "Blvd. Luis Encinas", "highway": "primary"},
      "geometry": {"type": "LineString", "coordinates": [[-110.9559, 29.0729], [-110.9600, 29.0800]]}
    },
    {
      "type": "Feature",
      "properties": {"id": "way/2002", "name": "Calle Veracruz", "highway": "secondary_link"},
      "geometry": {"type": "MultiLineString", "coordinates": [
        [[-110.9600, 29.0800], [-110.9550, 29.0890]],
        [[-110.9550, 29.0890]]
      ]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Plaza", "highway": "pedestrian"},
      "geometry": {"type": "Point", "coordinates": [-110.95, 29.07]}
    },
    {
      "type": "Feature",
      "properties": {"highway": "residential"},
      "geometry": {"type": "LineString", "coordinates": [[-110.95, 129.07], [-110.96, 29.08]]}
    }
  ]
}`

func TestParseGeoJSON_NormalizesLonLat(t *testing.T) {
	segments, err := ParseGeoJSON([]byte(streetsGeoJSON), LonLat)
	require.NoError(t, err)
	require.Len(t, segments, 2, "point, one-point line and out-of-range line are skipped")

	first := segments[0]
	assert.Equal(t, "1001", first.ID)
	assert.Equal(t, "Blvd. Luis Encinas", first.Name)
	assert.Equal(t, geo.GeoPoint{Lat: 29.0729, Lon: -110.9559}, first.First())
	assert.Equal(t, domain.ClassPrimary, first.Classification())

	second := segments[1]
	assert.Equal(t, "way/2002#0", second.ID)
	assert.Equal(t, domain.ClassSecondary, second.Classification())
	assert.Equal(t, geo.GeoPoint{Lat: 29.0890, Lon: -110.9550}, second.Last())
}

func TestParseGeoJSON_LatLonOrder(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"highway":"trunk"},
	  "geometry":{"type":"LineString","coordinates":[[29.0729,-110.9559],[29.0800,-110.9600]]}}]}`

	segments, err := ParseGeoJSON([]byte(doc), LatLon)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "feature/0", segments[0].ID)
	assert.Equal(t, geo.GeoPoint{Lat: 29.0729, Lon: -110.9559}, segments[0].First())

	// Read in the wrong order the latitude -110 is out of range
	segments, err = ParseGeoJSON([]byte(doc), LonLat)
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestParseGeoJSON_Invalid(t *testing.T) {
	_, err := ParseGeoJSON([]byte(`{"type":`), LonLat)
	assert.Error(t, err)
}

const streetsOSM = `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6">
  <node id="1" lat="29.0729" lon="-110.9559"/>
  <node id="2" lat="29.0800" lon="-110.9600"/>
  <node id="3" lat="29.0890" lon="-110.9550"/>
  <way id="10">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="primary"/>
    <tag k="name" v="Blvd. Kino"/>
  </way>
  <way id="11">
    <nd ref="3"/>
    <nd ref="99"/>
    <tag k="highway" v="secondary"/>
  </way>
  <way id="12">
    <nd ref="1"/>
    <nd ref="3"/>
    <tag k="building" v="yes"/>
  </way>
  <way id="13">
    <nd ref="2"/>
    <tag k="highway" v="tertiary"/>
  </way>
</osm>`

func TestParseOSMXML(t *testing.T) {
	segments, err := ParseOSMXML([]byte(streetsOSM))
	require.NoError(t, err)
	require.Len(t, segments, 1, "missing nodes, non-highways and one-node ways are dropped")

	s := segments[0]
	assert.Equal(t, "way/10", s.ID)
	assert.Equal(t, "Blvd. Kino", s.Name)
	assert.Equal(t, "primary", s.Highway)
	assert.Equal(t, []geo.GeoPoint{
		{Lat: 29.0729, Lon: -110.9559},
		{Lat: 29.0800, Lon: -110.9600},
		{Lat: 29.0890, Lon: -110.9550},
	}, s.Points)
}

func TestParseOSMXML_Invalid(t *testing.T) {
	_, err := ParseOSMXML([]byte(`<notosm></notosm>`))
	assert.Error(t, err)

	_, err = ParseOSMXML([]byte(`<osm><node`))
	assert.Error(t, err)
}

const routeDataset = `{
  "escenario": "actual",
  "rutas": [
    {"id": "ruta_1", "nombre": "Ruta Centro-Norte", "tipo": "primary", "color": "#3b82f6",
     "coordenadas": [[29.0729, -110.9559], [29.0800, -110.9600], [29.0890, -110.9550]]},
    {"id": "ruta_2", "nombre": "Ruta Rota", "tipo": "secondary", "coordenadas": [[29.0729, -110.9559]]},
    {"id": "ruta_3", "nombre": "Ciclovía", "tipo": "bicicleta", "color": "#ec4899",
     "coordenadas": [[29.0729, -110.9559], [29.0650, -110.9700]],
     "metadata": {"highway": "secondary"}}
  ]
}`

func TestParseRouteDataset(t *testing.T) {
	routes, err := ParseRouteDataset([]byte(routeDataset), LatLon)
	require.NoError(t, err)
	require.Len(t, routes, 2)

	assert.Equal(t, "ruta_1", routes[0].ID)
	assert.Equal(t, "Ruta Centro-Norte", routes[0].Name)
	assert.Equal(t, domain.ClassPrimary, routes[0].Classification)
	assert.Equal(t, "#3b82f6", routes[0].Color)
	assert.Greater(t, routes[0].TotalLength(), 0.0)

	assert.Equal(t, domain.ClassSecondary, routes[1].Classification, "metadata highway wins over tipo")
}

func TestParseRouteDataset_BareArray(t *testing.T) {
	doc := `[{"id":"r","nombre":"R","coordenadas":[[-110.9559,29.0729],[-110.9600,29.0800]]}]`
	routes, err := ParseRouteDataset([]byte(doc), LonLat)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, geo.GeoPoint{Lat: 29.0729, Lon: -110.9559}, routes[0].Start())

	_, err = ParseRouteDataset([]byte(`{"routes": []}`), LonLat)
	assert.Error(t, err)
}

func TestVehicleDataset(t *testing.T) {
	routes, err := ParseRouteDataset([]byte(routeDataset), LatLon)
	require.NoError(t, err)

	records, err := ParseVehicleDataset([]byte(`[
	  {"id": "v1", "nombre": "Camión 1", "tipo": "camion", "ruta_id": "ruta_1", "velocidad_kmh": 45, "offset_inicial": 0.3},
	  {"id": "v2", "nombre": "Bici", "tipo": "bicicleta", "ruta_id": "ruta_3", "velocidad_kmh": 15, "offset_inicial": 1.5},
	  {"id": "v3", "nombre": "Perdido", "tipo": "auto", "ruta_id": "ruta_99", "velocidad_kmh": 40}
	]`))
	require.NoError(t, err)
	require.Len(t, records, 3)

	entities := Entities(records, routes)
	require.Len(t, entities, 2)

	assert.Equal(t, domain.KindTransit, entities[0].Kind)
	assert.Equal(t, 0.3, entities[0].Progress)
	assert.Equal(t, domain.ModeLooping, entities[0].Mode)
	assert.Equal(t, "ruta_1", entities[0].RouteID())

	assert.Equal(t, domain.KindBicycle, entities[1].Kind)
	assert.Zero(t, entities[1].Progress, "out-of-range offsets start at the beginning")
}

func TestVehicleKind(t *testing.T) {
	tests := map[string]domain.EntityKind{
		"camion":     domain.KindTransit,
		"Ambulancia": domain.KindAmbulance,
		"patrulla":   domain.KindPatrol,
		"bomberos":   domain.KindFire,
		"auto":       domain.KindCar,
		"patineta":   domain.KindGeneric,
	}
	for tipo, want := range tests {
		assert.Equal(t, want, VehicleKind(tipo), tipo)
	}
}

func TestParseCoordOrder(t *testing.T) {
	o, err := ParseCoordOrder("LatLon")
	require.NoError(t, err)
	assert.Equal(t, LatLon, o)

	o, err = ParseCoordOrder("lon,lat")
	require.NoError(t, err)
	assert.Equal(t, LonLat, o)

	_, err = ParseCoordOrder("xyz")
	assert.Error(t, err)
}

func TestLoadStreetFile(t *testing.T) {
	dir := t.TempDir()

	geojsonPath := filepath.Join(dir, "calles.geojson")
	require.NoError(t, os.WriteFile(geojsonPath, []byte(streetsGeoJSON), 0o600))
	segments, err := LoadStreetFile(geojsonPath, LonLat)
	require.NoError(t, err)
	assert.Len(t, segments, 2)

	osmPath := filepath.Join(dir, "calles.osm")
	require.NoError(t, os.WriteFile(osmPath, []byte(streetsOSM), 0o600))
	segments, err = LoadStreetFile(osmPath, LonLat)
	require.NoError(t, err)
	assert.Len(t, segments, 1)

	csvPath := filepath.Join(dir, "calles.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("a,b"), 0o600))
	_, err = LoadStreetFile(csvPath, LonLat)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadStreetFile(filepath.Join(dir, "missing.geojson"), LonLat)
	assert.Error(t, err)
}
