package repositories

import (
	"charge-station-locator/internal/adapters/dataset"
	"database/sql"
	"errors"
	"fmt"
)

// Dialect selects the SQL flavour of a station repository.
type Dialect int

const (
	DialectSqlite Dialect = iota
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) availableType() string {
	if d == DialectPostgres {
		return "BOOLEAN"
	}
	return "INTEGER"
}

func (d Dialect) realType() string {
	if d == DialectPostgres {
		return "DOUBLE PRECISION"
	}
	return "REAL"
}

// Initialize the stations schema for the given dialect.
func InitSchema(db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createStationsQuery := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS stations (
		station_id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		latitude %[1]s NOT NULL,
		longitude %[1]s NOT NULL,
		charging_type TEXT NOT NULL,
		power_kw %[1]s NOT NULL,
		available %[2]s NOT NULL,
		address TEXT NOT NULL
	);
	`, d.realType(), d.availableType())

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_stations_lat_lon
	ON stations(latitude, longitude);
	`

	statements := []string{
		createStationsQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// Populate the stations table from a dataset JSON file.
// Existing rows with the same id are replaced; file order becomes dataset order.
func SeedFromJSON(db *sql.DB, d Dialect, jsonPath string) (int, error) {
	if db == nil {
		return 0, errors.New("seed stations: DB is nil")
	}

	stations, err := dataset.ParseFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed stations: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("seed stations: begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT OR REPLACE INTO stations (
		station_id, position, name, latitude, longitude,
		charging_type, power_kw, available, address
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	if d == DialectPostgres {
		query = `
		INSERT INTO stations (
			station_id, position, name, latitude, longitude,
			charging_type, power_kw, available, address
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (station_id) DO UPDATE SET
			position = EXCLUDED.position,
			name = EXCLUDED.name,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			charging_type = EXCLUDED.charging_type,
			power_kw = EXCLUDED.power_kw,
			available = EXCLUDED.available,
			address = EXCLUDED.address;
		`
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("seed stations: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range stations {
		_, err := stmt.Exec(
			s.ID, i, s.Name, s.Coordinate.Latitude, s.Coordinate.Longitude,
			s.ChargingType, s.PowerKW, s.Available, s.Address,
		)
		if err != nil {
			return 0, fmt.Errorf("seed stations: insert station_id=%s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("seed stations: commit tx: %w", err)
	}

	return len(stations), nil
}
