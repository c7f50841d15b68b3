package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/ingest"
)

// Schema creates the dataset tables. Street geometry is a GeoJSON LineString,
// route points are a JSON array of {lat, lon}.
const Schema = `
CREATE TABLE IF NOT EXISTS street_segments (
	id      TEXT PRIMARY KEY,
	name    TEXT NOT NULL DEFAULT '',
	highway TEXT NOT NULL DEFAULT '',
	geojson TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS routes (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT 'tertiary',
	color          TEXT NOT NULL DEFAULT '',
	points_json    TEXT NOT NULL
);
`

// PostgresRepository implements domain.DatasetRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates missing tables
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: failed to create schema: %w", err)
	}
	return nil
}

// ListStreetSegments loads the street graph. Rows with unreadable geometry are skipped.
func (r *PostgresRepository) ListStreetSegments(ctx context.Context) ([]domain.StreetSegment, error) {
	query := `
		SELECT id, name, highway, geojson
		FROM street_segments
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query street segments: %w", err)
	}
	defer rows.Close()

	var results []domain.StreetSegment
	for rows.Next() {
		var (
			s   domain.StreetSegment
			raw string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Highway, &raw); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan street segment row: %w", err)
		}
		s.Points, err = ingest.DecodeLine([]byte(raw))
		if err != nil {
			slog.Debug("Skipping street segment", "id", s.ID, "error", err)
			continue
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read street segments: %w", err)
	}

	return results, nil
}

// ListRoutes loads predefined routes. Invalid routes are skipped.
func (r *PostgresRepository) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	query := `
		SELECT id, name, classification, color, points_json
		FROM routes
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query routes: %w", err)
	}
	defer rows.Close()

	var results []*domain.Route
	for rows.Next() {
		var rec routeRow
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Classification, &rec.Color, &rec.PointsJSON); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan route row: %w", err)
		}
		route, err := rec.toRoute()
		if err != nil {
			slog.Debug("Skipping route", "id", rec.ID, "error", err)
			continue
		}
		results = append(results, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: failed to read routes: %w", err)
	}

	return results, nil
}

// SaveRoutes upserts routes in one transaction
func (r *PostgresRepository) SaveRoutes(ctx context.Context, routes []*domain.Route) error {
	query := `
		INSERT INTO routes (id, name, classification, color, points_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			classification = EXCLUDED.classification,
			color = EXCLUDED.color,
			points_json = EXCLUDED.points_json
	`

	batch := &pgx.Batch{}
	for _, route := range routes {
		points, err := json.Marshal(route.Points)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode route %s: %w", route.ID, err)
		}
		batch.Queue(query, route.ID, route.Name, string(route.Classification), route.Color, string(points))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: failed to save routes: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit routes: %w", err)
	}

	return nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// routeRow is the stored form of a route
type routeRow struct {
	ID             string
	Name           string
	Classification string
	Color          string
	PointsJSON     string
}

func (rec routeRow) toRoute() (*domain.Route, error) {
	var points []geo.GeoPoint
	if err := json.Unmarshal([]byte(rec.PointsJSON), &points); err != nil {
		return nil, fmt.Errorf("invalid points_json: %w", err)
	}
	route, err := domain.NewRoute(rec.ID, rec.Name, domain.ParseClassification(rec.Classification), points)
	if err != nil {
		return nil, err
	}
	route.Color = rec.Color
	return route, nil
}
