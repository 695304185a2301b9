// Package database stores ingested event batches for the development
// collector.
package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/visiora/visiora-agent/internal/models"
)

// ErrInvalidEvent wraps every validation failure.
var ErrInvalidEvent = errors.New("invalid event")

type Database struct {
	db *sql.DB
}

// StoredEvent is one row of the events table.
type StoredEvent struct {
	ID         string
	ReceivedAt string
	Event      models.Event
}

func NewDatabase(databasePath string) (*Database, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", databasePath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	quoted := make([]string, 0, len(models.EventTypes))
	for _, t := range models.EventTypes {
		quoted = append(quoted, "'"+string(t)+"'")
	}

	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS events(
	  id             TEXT    PRIMARY KEY,
	  received_at    TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	  ts             TEXT    NOT NULL,
	  ts_unix_ms     INTEGER NOT NULL,
	  tracking_id    TEXT    NOT NULL,
	  visitor_id     TEXT    NOT NULL,
	  session_id     TEXT    NOT NULL,
	  event_type     TEXT    NOT NULL CHECK (event_type IN (` + strings.Join(quoted, ",") + `)),
	  event_name     TEXT,
	  page_url       TEXT    NOT NULL,
	  traffic_source TEXT,
	  device_type    TEXT,
	  data_json      TEXT    NOT NULL CHECK (json_valid(data_json))
	);
	CREATE INDEX IF NOT EXISTS idx_events_ts       ON events(ts_unix_ms);
	CREATE INDEX IF NOT EXISTS idx_events_type     ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_session  ON events(session_id);
	CREATE INDEX IF NOT EXISTS idx_events_tracking ON events(tracking_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// ValidateEvent checks the fields every record must carry.
func ValidateEvent(event models.Event) error {
	if event.TrackingID == "" {
		return fmt.Errorf("%w: tracking_id cannot be empty", ErrInvalidEvent)
	}
	if event.VisitorID == "" {
		return fmt.Errorf("%w: visitor_id cannot be empty", ErrInvalidEvent)
	}
	if event.SessionID == "" {
		return fmt.Errorf("%w: session_id cannot be empty", ErrInvalidEvent)
	}
	if !event.EventType.Valid() {
		return fmt.Errorf("%w: invalid event type: %q", ErrInvalidEvent, event.EventType)
	}
	if _, err := models.ParseTimestamp(event.Timestamp); err != nil {
		return fmt.Errorf("%w: timestamp: %v", ErrInvalidEvent, err)
	}
	return nil
}

// InsertEvents stores the whole batch or nothing.
func (d *Database) InsertEvents(events []models.Event) error {
	transaction, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	statement, err := transaction.Prepare(`INSERT INTO events(id, ts, ts_unix_ms, tracking_id, visitor_id, session_id, event_type, event_name, page_url, traffic_source, device_type, data_json)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,json(?))`)
	if err != nil {
		_ = transaction.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer statement.Close()

	for _, event := range events {
		if err := ValidateEvent(event); err != nil {
			_ = transaction.Rollback()
			return err
		}
		ts, _ := models.ParseTimestamp(event.Timestamp)

		jsonData, err := json.Marshal(event)
		if err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		if _, err := statement.Exec(
			uuid.NewString(),
			event.Timestamp,
			ts.UnixMilli(),
			event.TrackingID,
			event.VisitorID,
			event.SessionID,
			string(event.EventType),
			event.EventName,
			event.PageURL,
			event.TrafficSource,
			event.DeviceType,
			string(jsonData),
		); err != nil {
			_ = transaction.Rollback()
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}
	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountByType returns the number of stored records per event type. Types
// with no records are absent.
func (d *Database) CountByType() (map[models.EventType]int, error) {
	rows, err := d.db.Query(`SELECT event_type, COUNT(*) FROM events GROUP BY event_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.EventType]int)
	for rows.Next() {
		var (
			eventType string
			count     int
		)
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.EventType(eventType)] = count
	}
	return counts, rows.Err()
}

// RecentEvents returns up to limit records, newest first.
func (d *Database) RecentEvents(limit int) ([]StoredEvent, error) {
	rows, err := d.db.Query(`SELECT id, received_at, data_json FROM events ORDER BY ts_unix_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			stored StoredEvent
			data   string
		)
		if err := rows.Scan(&stored.ID, &stored.ReceivedAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &stored.Event); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", stored.ID, err)
		}
		events = append(events, stored)
	}
	return events, rows.Err()
}
