package repositories

import (
	"charge-station-locator/internal/domain"
	"charge-station-locator/internal/geo"
	"charge-station-locator/internal/ports"
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var _ ports.AreaStationDataset = (*SQLStationRepository)(nil)

// SQL-backed implementation of the StationDataset port.
// The same repository serves SQLite and Postgres; only placeholders differ.
type SQLStationRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSqliteStationRepository(db *sql.DB) *SQLStationRepository {
	return &SQLStationRepository{DB: db, Dialect: DialectSqlite}
}

func NewPostgresStationRepository(db *sql.DB) *SQLStationRepository {
	return &SQLStationRepository{DB: db, Dialect: DialectPostgres}
}

const selectStations = `
	SELECT
		station_id,
		name,
		latitude,
		longitude,
		charging_type,
		power_kw,
		available,
		address
	FROM stations
	`

// Return all stations in dataset order.
func (r *SQLStationRepository) ListStations(ctx context.Context) ([]domain.Station, error) {
	if r.DB == nil {
		return nil, errors.New("list stations: DB is nil")
	}

	rows, err := r.DB.QueryContext(ctx, selectStations+`ORDER BY position;`)
	if err != nil {
		return nil, fmt.Errorf("list stations: query stations table: %w", err)
	}
	defer rows.Close()

	stations, err := scanStations(rows)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	return stations, nil
}

// Return the stations inside the bounding box of the radius, in dataset order.
// The box is a pre-filter; stations near its corners may lie outside radiusKm.
func (r *SQLStationRepository) ListStationsWithin(
	ctx context.Context,
	center domain.Coordinate,
	radiusKm float64,
) ([]domain.Station, error) {
	if r.DB == nil {
		return nil, errors.New("list stations within: DB is nil")
	}
	if err := center.Validate(); err != nil {
		return nil, fmt.Errorf("list stations within: %w", err)
	}
	if !(radiusKm > 0) {
		return nil, fmt.Errorf("list stations within: %w", domain.ErrInvalidRadius)
	}

	box := geo.BoundingBox(center, radiusKm)

	where := `WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ? ORDER BY position;`
	if r.Dialect == DialectPostgres {
		where = `WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4 ORDER BY position;`
	}

	rows, err := r.DB.QueryContext(ctx, selectStations+where,
		box.MinLat, box.MaxLat, box.MinLon, box.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("list stations within: query stations table: %w", err)
	}
	defer rows.Close()

	stations, err := scanStations(rows)
	if err != nil {
		return nil, fmt.Errorf("list stations within: %w", err)
	}
	return stations, nil
}

func scanStations(rows *sql.Rows) ([]domain.Station, error) {
	stations := make([]domain.Station, 0, 64)
	for rows.Next() {
		var s domain.Station
		err := rows.Scan(
			&s.ID,
			&s.Name,
			&s.Coordinate.Latitude,
			&s.Coordinate.Longitude,
			&s.ChargingType,
			&s.PowerKW,
			&s.Available,
			&s.Address,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}

	return stations, nil
}
