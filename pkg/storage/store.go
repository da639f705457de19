package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dougsko/rfdetect/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// Setting keys
const (
	KeyThreshold = "rssi_threshold"
)

// Store keeps device settings and the detection history in SQLite
type Store struct {
	db            *sql.DB
	dbPath        string
	maxDetections int
}

// NewStore opens or creates the database at dbPath. maxDetections bounds the
// history; zero or less keeps everything.
func NewStore(dbPath string, maxDetections int) (*Store, error) {
	if dbPath == "" {
		dbPath = "./rfdetect.db"
	}
	s := &Store{
		dbPath:        dbPath,
		maxDetections: maxDetections,
	}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", s.dbPath+"?_busy_timeout=10000&_journal_mode=WAL")
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serialises writers from the rf task and the API
	db.SetMaxOpenConns(1)
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	logging.Info("storage", "store initialized", logging.Fields{
		"path":           s.dbPath,
		"max_detections": s.maxDetections,
	})
	return nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		freq_hz INTEGER NOT NULL,
		rssi INTEGER NOT NULL,
		modulation TEXT NOT NULL DEFAULT '',
		threshold INTEGER NOT NULL,
		scan_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS detection_stats (
		id INTEGER PRIMARY KEY,
		total INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_detections_timestamp ON detections(timestamp DESC);

	INSERT OR IGNORE INTO detection_stats (id, total) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetInt returns the integer stored under key, or def when the key is
// missing or unreadable
func (s *Store) GetInt(key string, def int) int {
	var raw string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def
	}
	if err != nil {
		logging.Warnf("storage", "read %s: %v", key, err)
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		logging.Warnf("storage", "setting %s holds %q, using default %d", key, raw, def)
		return def
	}
	return v
}

// PutInt stores v under key. Nothing is written when the stored value is
// already v; the result reports whether a write happened.
func (s *Store) PutInt(key string, v int) (bool, error) {
	value := strconv.Itoa(v)
	res, err := s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
		WHERE settings.value <> excluded.value
	`, key, value)
	if err != nil {
		return false, fmt.Errorf("failed to store %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to store %s: %w", key, err)
	}
	if n > 0 {
		logging.Infof("storage", "saved %s=%d", key, v)
	}
	return n > 0, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
