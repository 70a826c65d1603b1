package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ifcatlas/api/internal/apperr"
)

// ModelFormat is the 3D asset format attached to a Building.
type ModelFormat string

const (
	ModelGLB  ModelFormat = "glb"
	ModelGLTF ModelFormat = "gltf"
)

// Building is one geolocated structure extracted from an IfcFile.
type Building struct {
	ID                string
	IfcFileID         string
	Name              *string
	Address           *string
	City              *string
	Country           *string
	Height            *float64
	FloorCount        *int
	Longitude         float64
	Latitude          float64
	ModelURL          *string
	ModelFormat       *string
	ModelSizeMB       *float64
	ModelGeneratedAt  *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BuildingStore persists Building records and answers spatial queries.
type BuildingStore struct {
	DB *sql.DB
}

// NewBuildingStore creates a new BuildingStore.
func NewBuildingStore(db *sql.DB) *BuildingStore {
	return &BuildingStore{DB: db}
}

const buildingColumns = `
	id, ifc_file_id, name, address, city, country, height, floor_count,
	ST_X(location::geometry), ST_Y(location::geometry),
	model_url, model_format, model_size_mb, model_generated_at,
	created_at, updated_at`

func scanBuilding(row interface{ Scan(...interface{}) error }) (*Building, error) {
	var b Building
	err := row.Scan(
		&b.ID, &b.IfcFileID, &b.Name, &b.Address, &b.City, &b.Country, &b.Height, &b.FloorCount,
		&b.Longitude, &b.Latitude,
		&b.ModelURL, &b.ModelFormat, &b.ModelSizeMB, &b.ModelGeneratedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// BBox is a bounding-box filter, longitude-first.
type BBox struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Query executes the bbox + cursor paginated spatial query described in
// spec.md §4.3. bbox is nil when no spatial predicate should be applied.
func (s *BuildingStore) Query(ctx context.Context, bbox *BBox, cursor string, limit int) ([]Building, error) {
	query := fmt.Sprintf(`SELECT %s FROM buildings WHERE 1=1`, buildingColumns)
	args := []interface{}{}
	argIdx := 1

	if bbox != nil {
		query += fmt.Sprintf(" AND ST_Within(location::geometry, ST_MakeEnvelope($%d,$%d,$%d,$%d,4326))",
			argIdx, argIdx+1, argIdx+2, argIdx+3)
		args = append(args, bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat)
		argIdx += 4
	}

	if cursor != "" {
		query += fmt.Sprintf(" AND id > $%d", argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += fmt.Sprintf(" ORDER BY id LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "query buildings", Err: err}
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, &apperr.DatabaseError{Op: "scan building", Err: err}
		}
		buildings = append(buildings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, &apperr.DatabaseError{Op: "query buildings rows", Err: err}
	}

	return buildings, nil
}

// Get fetches a single Building by ID, or nil if absent.
func (s *BuildingStore) Get(ctx context.Context, id string) (*Building, error) {
	query := fmt.Sprintf(`SELECT %s FROM buildings WHERE id = $1`, buildingColumns)
	row := s.DB.QueryRowContext(ctx, query, id)
	b, err := scanBuilding(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &apperr.DatabaseError{Op: "get building", Err: err}
	}
	return b, nil
}

// Delete removes a Building and returns its linked ifc_file_id so the
// caller can cascade-delete that record and its stored object.
func (s *BuildingStore) Delete(ctx context.Context, id string) (ifcFileID string, err error) {
	err = s.DB.QueryRowContext(ctx, `
		DELETE FROM buildings WHERE id = $1 RETURNING ifc_file_id`, id,
	).Scan(&ifcFileID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &apperr.DatabaseError{Op: "delete building", Err: err}
	}
	return ifcFileID, nil
}

// Insert creates a Building row. No HTTP handler calls it; the extraction
// worker performs the real writes out-of-process.
func (s *BuildingStore) Insert(ctx context.Context, b *Building) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO buildings (
			id, ifc_file_id, name, address, city, country, height, floor_count,
			location, model_url, model_format, model_size_mb, model_generated_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			ST_SetSRID(ST_MakePoint($9, $10), 4326)::geography, $11, $12, $13, $14,
			$15, $16
		)`,
		b.ID, b.IfcFileID, b.Name, b.Address, b.City, b.Country, b.Height, b.FloorCount,
		b.Longitude, b.Latitude, b.ModelURL, b.ModelFormat, b.ModelSizeMB, b.ModelGeneratedAt,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return &apperr.DatabaseError{Op: "insert building", Err: err}
	}
	return nil
}
