package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paincake00/geoclock/internal/entity"
	"github.com/paincake00/geoclock/internal/geo"
)

// geometry поля формы в колонке JSONB.
type geometry struct {
	Center      *geo.Coordinate  `json:"center,omitempty"`
	Radius      float64          `json:"radius,omitempty"`
	Coordinates []geo.Coordinate `json:"coordinates,omitempty"`
}

func encodeShape(s geo.Shape) (string, []byte, error) {
	typ, center, radius, coords := entity.ShapeFields(s)
	data, err := json.Marshal(geometry{Center: center, Radius: radius, Coordinates: coords})
	return typ, data, err
}

const geofenceColumns = `id::text, name, type, geometry, created_by, created_at`

// scanGeofence читает строку геозоны. При повреждённой геометрии возвращает геозону
// с формой geo.Unsupported и ошибку ErrCorruptGeofence.
func scanGeofence(row pgx.Row) (*entity.Geofence, error) {
	var (
		g    entity.Geofence
		typ  string
		raw  []byte
		geom geometry
	)
	if err := row.Scan(&g.ID, &g.Name, &typ, &raw, &g.CreatedBy, &g.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &geom); err != nil {
		g.Shape = geo.Unsupported{Type: typ}
		return &g, fmt.Errorf("%w: geometry: %w", entity.ErrCorruptGeofence, err)
	}
	shape, err := entity.StoredShape(typ, geom.Center, geom.Radius, geom.Coordinates)
	g.Shape = shape
	return &g, err
}

// readGeofence как scanGeofence, но повреждённая геозона только логируется.
// Она остаётся в выборке и не содержит ни одной точки.
func (r *PostgresRepo) readGeofence(row pgx.Row) (*entity.Geofence, error) {
	g, err := scanGeofence(row)
	if errors.Is(err, entity.ErrCorruptGeofence) {
		r.logger().Warn("corrupt geofence loaded as unsupported", map[string]interface{}{"id": g.ID, "error": err.Error()})
		return g, nil
	}
	return g, err
}

func (r *PostgresRepo) queryGeofences(ctx context.Context, sql string, args ...interface{}) ([]*entity.Geofence, error) {
	rows, err := r.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fences := []*entity.Geofence{}
	for rows.Next() {
		g, err := r.readGeofence(rows)
		if err != nil {
			return nil, err
		}
		fences = append(fences, g)
	}
	return fences, rows.Err()
}

// validID идентификаторы геозон в PostgreSQL имеют формат UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Geofence Repository

// Create сохраняет новую геозону в БД.
func (r *PostgresRepo) Create(ctx context.Context, g *entity.Geofence) error {
	typ, data, err := encodeShape(g.Shape)
	if err != nil {
		return err
	}
	sql := `INSERT INTO geofences (name, type, geometry, created_by, created_at)
			VALUES ($1, $2, $3, $4, NOW()) RETURNING id::text, created_at`
	return r.Pool.QueryRow(ctx, sql, g.Name, typ, data, g.CreatedBy).Scan(&g.ID, &g.CreatedAt)
}

// GetByID получает геозону по ID.
func (r *PostgresRepo) GetByID(ctx context.Context, id string) (*entity.Geofence, error) {
	if !validID(id) {
		return nil, entity.ErrNotFound
	}
	sql := `SELECT ` + geofenceColumns + ` FROM geofences WHERE id = $1`
	g, err := r.readGeofence(r.Pool.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	return g, err
}

// ListByOwner геозоны, созданные руководителем.
func (r *PostgresRepo) ListByOwner(ctx context.Context, owner string) ([]*entity.Geofence, error) {
	sql := `SELECT ` + geofenceColumns + ` FROM geofences WHERE created_by = $1 ORDER BY created_at`
	return r.queryGeofences(ctx, sql, owner)
}

// ListAll все геозоны. Каждая из них ограничивает отметки посещаемости.
func (r *PostgresRepo) ListAll(ctx context.Context) ([]*entity.Geofence, error) {
	sql := `SELECT ` + geofenceColumns + ` FROM geofences ORDER BY created_at`
	return r.queryGeofences(ctx, sql)
}

func (r *PostgresRepo) execOne(ctx context.Context, sql string, args ...interface{}) error {
	ct, err := r.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// UpdateShape заменяет геометрию, тип сохраняется вызывающим.
func (r *PostgresRepo) UpdateShape(ctx context.Context, id string, shape geo.Shape) error {
	if !validID(id) {
		return entity.ErrNotFound
	}
	typ, data, err := encodeShape(shape)
	if err != nil {
		return err
	}
	return r.execOne(ctx, `UPDATE geofences SET type=$1, geometry=$2 WHERE id=$3`, typ, data, id)
}

// Rename обновляет имя геозоны.
func (r *PostgresRepo) Rename(ctx context.Context, id, name string) error {
	if !validID(id) {
		return entity.ErrNotFound
	}
	return r.execOne(ctx, `UPDATE geofences SET name=$1 WHERE id=$2`, name, id)
}

// Delete удаляет геозону.
func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return entity.ErrNotFound
	}
	return r.execOne(ctx, `DELETE FROM geofences WHERE id=$1`, id)
}
