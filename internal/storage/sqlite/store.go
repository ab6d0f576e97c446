// Package sqlite persists lookup outcomes and archived change sets
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/co-track/pkg/logger"
	_ "modernc.org/sqlite"
)

// Store is a SQLite database shared by the lookup cache and the archive
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (creating if needed) the database at dbPath
func Open(dbPath string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: storageLogger}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS lookup_outcomes (
			icao TEXT PRIMARY KEY,
			found INTEGER NOT NULL,
			source_age TEXT NOT NULL,
			fetched_at TEXT NOT NULL,
			registration TEXT,
			country TEXT,
			model_icao TEXT,
			manufacturer TEXT,
			model TEXT,
			operator_icao TEXT,
			operator TEXT,
			serial TEXT,
			year_built INTEGER
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create lookup_outcomes table: %w", err)
	}

	// field holds the numeric history field id, those never change meaning
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS change_sets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			aircraft_id INTEGER NOT NULL,
			icao TEXT,
			stamp INTEGER NOT NULL,
			utc TEXT NOT NULL,
			field INTEGER NOT NULL,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create change_sets table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_change_sets_aircraft_stamp ON change_sets(aircraft_id, stamp)",
		"CREATE INDEX IF NOT EXISTS idx_change_sets_utc ON change_sets(utc)",
		"CREATE INDEX IF NOT EXISTS idx_lookup_outcomes_fetched_at ON lookup_outcomes(fetched_at)",
	}
	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// timeLayout is fixed width so stored times sort as text. Time columns are
// declared TEXT, the driver would otherwise hand TIMESTAMP values back as
// time.Time and database/sql would render them as RFC3339.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime also accepts RFC3339, which is what databases created with
// TIMESTAMP columns return
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err == nil {
		return t, nil
	}
	if t, rfcErr := time.Parse(time.RFC3339Nano, s); rfcErr == nil {
		return t.UTC(), nil
	}
	return time.Time{}, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
