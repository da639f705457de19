package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dougsko/rfdetect/pkg/logging"
)

// Detection is one recorded signal detection
type Detection struct {
	ID         int64     `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	FreqHz     uint32    `json:"freq_hz"`
	RSSI       int       `json:"rssi"`
	Modulation string    `json:"modulation"`
	Threshold  int       `json:"threshold"`
	ScanCount  int       `json:"scan_count"`
}

// FreqMHz returns the frequency in MHz
func (d Detection) FreqMHz() float64 {
	return float64(d.FreqHz) / 1e6
}

// DetectionStats summarises the history
type DetectionStats struct {
	Total           int            `json:"total"`
	Stored          int            `json:"stored"`
	ByModulation    map[string]int `json:"by_modulation"`
	StrongestRSSI   int            `json:"strongest_rssi"`
	StrongestFreqHz uint32         `json:"strongest_freq_hz"`
	LastCleanup     time.Time      `json:"last_cleanup"`
}

// RecordDetection appends a detection and trims the history to its bound
func (s *Store) RecordDetection(d Detection) (int64, error) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO detections (timestamp, freq_hz, rssi, modulation, threshold, scan_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.Timestamp.UTC(), d.FreqHz, d.RSSI, d.Modulation, d.Threshold, d.ScanCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get detection ID: %w", err)
	}

	if _, err := tx.Exec("UPDATE detection_stats SET total = total + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := s.cleanupOldDetections(tx); err != nil {
		logging.Warnf("storage", "failed to trim detection history: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit detection: %w", err)
	}
	return id, nil
}

func (s *Store) cleanupOldDetections(tx *sql.Tx) error {
	if s.maxDetections <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM detections").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxDetections {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM detections
		WHERE id IN (SELECT id FROM detections ORDER BY id ASC LIMIT ?)
	`, count-s.maxDetections)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE detection_stats SET last_cleanup = ? WHERE id = 1", time.Now().UTC())
	return err
}

// RecentDetections returns up to limit detections, newest first. A limit of
// zero or less returns the whole history.
func (s *Store) RecentDetections(limit int) ([]Detection, error) {
	query := `
		SELECT id, timestamp, freq_hz, rssi, modulation, threshold, scan_count
		FROM detections
		ORDER BY id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.FreqHz, &d.RSSI, &d.Modulation, &d.Threshold, &d.ScanCount); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DetectionStats returns totals over the history
func (s *Store) DetectionStats() (*DetectionStats, error) {
	stats := &DetectionStats{ByModulation: map[string]int{}}

	var lastCleanup sql.NullTime
	err := s.db.QueryRow("SELECT total, last_cleanup FROM detection_stats WHERE id = 1").
		Scan(&stats.Total, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get detection stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	rows, err := s.db.Query("SELECT modulation, COUNT(*) FROM detections GROUP BY modulation")
	if err != nil {
		return nil, fmt.Errorf("failed to count modulations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var mod string
		var n int
		if err := rows.Scan(&mod, &n); err != nil {
			return nil, fmt.Errorf("failed to scan modulation count: %w", err)
		}
		stats.ByModulation[mod] = n
		stats.Stored += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = s.db.QueryRow("SELECT rssi, freq_hz FROM detections ORDER BY rssi DESC, id DESC LIMIT 1").
		Scan(&stats.StrongestRSSI, &stats.StrongestFreqHz)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find strongest detection: %w", err)
	}
	return stats, nil
}
