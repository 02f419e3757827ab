package main

import (
	"charge-station-locator/internal/adapters/repositories"
	"charge-station-locator/internal/config"
	"charge-station-locator/internal/platform/db"
	"database/sql"
	"flag"
	"log"
	"strings"
)

// dbtool creates the stations table and loads a JSON station dataset into
// SQLite or Postgres.
func main() {
	config.LoadDotEnv()

	driver := flag.String("driver", config.Get("DB_DRIVER", "sqlite"), "sqlite or postgres")
	seedPath := flag.String("seed", config.Get("SEED_PATH", "internal/adapters/dataset/stations.json"), "station JSON file")
	flag.Parse()

	var (
		conn    *sql.DB
		dialect repositories.Dialect
		err     error
	)
	switch strings.ToLower(*driver) {
	case "postgres":
		databaseURL := config.Get("DATABASE_URL", "")
		if strings.TrimSpace(databaseURL) == "" {
			log.Fatal("DATABASE_URL is required")
		}
		dialect = repositories.DialectPostgres
		conn, err = db.Open(databaseURL)
	case "sqlite":
		dialect = repositories.DialectSqlite
		conn, err = db.OpenSqlite(config.Get("DB_PATH", "data/stations.db"))
	default:
		log.Fatalf("unknown driver %q", *driver)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := initAndSeed(conn, dialect, *seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(conn *sql.DB, dialect repositories.Dialect, seedPath string) error {
	log.Printf("Initializing database schema driver=%s...", dialect)
	if err := repositories.InitSchema(conn, dialect); err != nil {
		return err
	}
	log.Println("Schema ready.")

	log.Printf("Seeding database from %s...", seedPath)
	n, err := repositories.SeedFromJSON(conn, dialect, seedPath)
	if err != nil {
		return err
	}
	log.Printf("Seeding complete. stations=%d", n)

	return nil
}
