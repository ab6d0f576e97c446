package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yegors/co-track/internal/aircraft"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// ArchiveEntry is one locked change set of one aircraft
type ArchiveEntry struct {
	AircraftID int32
	Icao24     *transponder.Icao24
	ChangeSet  *aircraft.ChangeSet
}

// ArchivedChange is one field change read back from the archive
type ArchivedChange struct {
	AircraftID int32                 `json:"aircraft_id"`
	Stamp      int64                 `json:"stamp"`
	UTC        time.Time             `json:"utc"`
	Field      aircraft.HistoryField `json:"field"`
	FieldName  string                `json:"field_name"`
	Value      json.RawMessage       `json:"value"`
}

// Archive writes change sets and reads them back after the in-memory list
// has moved on
type Archive struct {
	store *Store
}

// Archive returns the change set archive backed by this store
func (s *Store) Archive() *Archive {
	return &Archive{store: s}
}

// Write stores every change of every entry in one transaction
func (a *Archive) Write(ctx context.Context, entries []ArchiveEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := a.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO change_sets (aircraft_id, icao, stamp, utc, field, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare change set insert statement: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for _, entry := range entries {
		cs := entry.ChangeSet
		if cs == nil || !cs.Locked() {
			return fmt.Errorf("refusing to archive an open change set for aircraft %d", entry.AircraftID)
		}

		var icao interface{}
		if entry.Icao24 != nil {
			icao = entry.Icao24.String()
		}

		for _, change := range cs.Changes() {
			value, err := json.Marshal(change.Untyped())
			if err != nil {
				return fmt.Errorf("failed to encode %s for aircraft %d: %w", change.Key(), entry.AircraftID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				entry.AircraftID,
				icao,
				cs.Stamp(),
				formatTime(cs.UTC()),
				int(change.Key()),
				string(value),
			); err != nil {
				return fmt.Errorf("failed to insert change for aircraft %d: %w", entry.AircraftID, err)
			}
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit change sets: %w", err)
	}

	a.store.logger.Debug("Archived change sets",
		logger.Int("change_sets", len(entries)),
		logger.Int("changes", rows))
	return nil
}

// Changes returns the archived changes of one aircraft stamped after
// afterStamp, oldest first, at most limit rows
func (a *Archive) Changes(ctx context.Context, aircraftID int32, afterStamp int64, limit int) ([]ArchivedChange, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := a.store.db.QueryContext(ctx, `
		SELECT aircraft_id, stamp, utc, field, value
		FROM change_sets
		WHERE aircraft_id = ? AND stamp > ?
		ORDER BY stamp ASC, id ASC
		LIMIT ?
	`, aircraftID, afterStamp, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change sets: %w", err)
	}
	defer rows.Close()

	var changes []ArchivedChange
	for rows.Next() {
		var (
			c     ArchivedChange
			utc   string
			field int
			value string
		)
		if err := rows.Scan(&c.AircraftID, &c.Stamp, &utc, &field, &value); err != nil {
			return nil, fmt.Errorf("failed to scan change set row: %w", err)
		}
		if c.UTC, err = parseTime(utc); err != nil {
			return nil, fmt.Errorf("bad utc %q in archive: %w", utc, err)
		}
		c.Field = aircraft.HistoryField(field)
		c.FieldName = c.Field.String()
		c.Value = json.RawMessage(value)
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change set rows: %w", err)
	}
	return changes, nil
}

// Prune drops changes recorded before cutoff
func (a *Archive) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.store.db.ExecContext(ctx, "DELETE FROM change_sets WHERE utc < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune change sets: %w", err)
	}
	return res.RowsAffected()
}
