// Package sqlite is a file-backed dataset source for running without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/smartcity/mobility/internal/domain"
	"github.com/smartcity/mobility/internal/geo"
	"github.com/smartcity/mobility/internal/ingest"
)

const schema = `
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

// Repository implements domain.DatasetRepository on a SQLite file
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	slog.Debug("SQLite dataset opened", "path", path)
	return &Repository{db: db}, nil
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// ListStreetSegments loads the street graph. Rows with unreadable geometry are skipped.
func (r *Repository) ListStreetSegments(ctx context.Context) ([]domain.StreetSegment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, highway, geojson FROM street_segments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query street segments: %w", err)
	}
	defer rows.Close()

	var results []domain.StreetSegment
	for rows.Next() {
		var (
			s   domain.StreetSegment
			raw string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Highway, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan street segment row: %w", err)
		}
		points, err := ingest.DecodeLine([]byte(raw))
		if err != nil {
			slog.Debug("Skipping street segment", "id", s.ID, "error", err)
			continue
		}
		s.Points = points
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to read street segments: %w", err)
	}
	return results, nil
}

// SaveStreetSegments upserts street segments in one transaction
func (r *Repository) SaveStreetSegments(ctx context.Context, segments []domain.StreetSegment) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO street_segments (id, name, highway, geojson) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, highway = excluded.highway, geojson = excluded.geojson
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, s := range segments {
			raw, err := ingest.EncodeLine(s.Points)
			if err != nil {
				return fmt.Errorf("segment %s: %w", s.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, s.ID, s.Name, s.Highway, string(raw)); err != nil {
				return fmt.Errorf("segment %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// ListRoutes loads predefined routes. Invalid routes are skipped.
func (r *Repository) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, classification, color, points_json FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query routes: %w", err)
	}
	defer rows.Close()

	var results []*domain.Route
	for rows.Next() {
		var id, name, class, color, raw string
		if err := rows.Scan(&id, &name, &class, &color, &raw); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan route row: %w", err)
		}

		var points []geo.GeoPoint
		if err := json.Unmarshal([]byte(raw), &points); err != nil {
			slog.Debug("Skipping route", "id", id, "error", err)
			continue
		}
		route, err := domain.NewRoute(id, name, domain.ParseClassification(class), points)
		if err != nil {
			slog.Debug("Skipping route", "id", id, "error", err)
			continue
		}
		route.Color = color
		results = append(results, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to read routes: %w", err)
	}
	return results, nil
}

// SaveRoutes upserts routes in one transaction
func (r *Repository) SaveRoutes(ctx context.Context, routes []*domain.Route) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO routes (id, name, classification, color, points_json) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, classification = excluded.classification,
				color = excluded.color, points_json = excluded.points_json
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, route := range routes {
			raw, err := json.Marshal(route.Points)
			if err != nil {
				return fmt.Errorf("route %s: %w", route.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, route.ID, route.Name, string(route.Classification), route.Color, string(raw)); err != nil {
				return fmt.Errorf("route %s: %w", route.ID, err)
			}
		}
		return nil
	})
}

// Health checks database connectivity
func (r *Repository) Health(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: health check failed: %w", err)
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction error: %v, rollback error: %w", err, rbErr)
		}
		return fmt.Errorf("sqlite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit transaction: %w", err)
	}
	return nil
}
