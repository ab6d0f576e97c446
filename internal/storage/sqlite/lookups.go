package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/yegors/co-track/internal/lookup"
	"github.com/yegors/co-track/internal/transponder"
	"github.com/yegors/co-track/pkg/logger"
)

// LookupCache stores lookup outcomes so restarts do not have to ask the
// provider again. It implements lookup.Cache.
type LookupCache struct {
	store *Store
	clock func() time.Time
}

// Lookups returns the lookup cache backed by this store
func (s *Store) Lookups() *LookupCache {
	return &LookupCache{store: s, clock: time.Now}
}

// Get returns the cached outcomes for icaos fetched within maxAge
func (c *LookupCache) Get(ctx context.Context, icaos []transponder.Icao24, maxAge time.Duration) (map[transponder.Icao24]lookup.Outcome, error) {
	result := make(map[transponder.Icao24]lookup.Outcome)
	if len(icaos) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(icaos))
	args := make([]interface{}, 0, len(icaos)+1)
	for i, icao := range icaos {
		placeholders[i] = "?"
		args = append(args, icao.String())
	}
	args = append(args, formatTime(c.clock().Add(-maxAge)))

	query := fmt.Sprintf(`
		SELECT icao, found, source_age, registration, country, model_icao,
			manufacturer, model, operator_icao, operator, serial, year_built
		FROM lookup_outcomes
		WHERE icao IN (%s) AND fetched_at >= ?
	`, strings.Join(placeholders, ","))

	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lookup cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			icaoText, sourceAge string
			found               int
			yearBuilt           sql.NullInt64
			text                [8]sql.NullString
		)
		if err := rows.Scan(&icaoText, &found, &sourceAge, &text[0], &text[1], &text[2],
			&text[3], &text[4], &text[5], &text[6], &text[7], &yearBuilt); err != nil {
			return nil, fmt.Errorf("failed to scan lookup row: %w", err)
		}

		icao, ok := transponder.ParseIcao24(icaoText, true)
		if !ok {
			c.store.logger.Warn("Skipping cached lookup with bad address", logger.String("icao", icaoText))
			continue
		}
		age, err := parseTime(sourceAge)
		if err != nil {
			c.store.logger.Warn("Skipping cached lookup with bad source age", logger.String("icao", icaoText), logger.Error(err))
			continue
		}

		result[icao] = lookup.Outcome{
			Icao24:       icao,
			Found:        found != 0,
			SourceAge:    age,
			Registration: text[0].String,
			Country:      text[1].String,
			ModelIcao:    text[2].String,
			Manufacturer: text[3].String,
			Model:        text[4].String,
			OperatorIcao: text[5].String,
			Operator:     text[6].String,
			Serial:       text[7].String,
			YearBuilt:    int(yearBuilt.Int64),
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lookup rows: %w", err)
	}
	return result, nil
}

// Put upserts outcomes in a single transaction
func (c *LookupCache) Put(ctx context.Context, outcomes []lookup.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO lookup_outcomes (icao, found, source_age, fetched_at, registration, country,
			model_icao, manufacturer, model, operator_icao, operator, serial, year_built)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(icao) DO UPDATE SET
			found = excluded.found,
			source_age = excluded.source_age,
			fetched_at = excluded.fetched_at,
			registration = excluded.registration,
			country = excluded.country,
			model_icao = excluded.model_icao,
			manufacturer = excluded.manufacturer,
			model = excluded.model,
			operator_icao = excluded.operator_icao,
			operator = excluded.operator,
			serial = excluded.serial,
			year_built = excluded.year_built
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare lookup insert statement: %w", err)
	}
	defer stmt.Close()

	fetchedAt := formatTime(c.clock())
	for _, o := range outcomes {
		_, err := stmt.ExecContext(ctx,
			o.Icao24.String(),
			boolToInt(o.Found),
			formatTime(o.SourceAge),
			fetchedAt,
			o.Registration,
			o.Country,
			o.ModelIcao,
			o.Manufacturer,
			o.Model,
			o.OperatorIcao,
			o.Operator,
			o.Serial,
			o.YearBuilt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert lookup for %s: %w", o.Icao24, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lookup batch: %w", err)
	}

	c.store.logger.Debug("Cached lookup outcomes", logger.Int("count", len(outcomes)))
	return nil
}

// Prune drops outcomes fetched before cutoff
func (c *LookupCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.store.db.ExecContext(ctx,
		"DELETE FROM lookup_outcomes WHERE fetched_at < ?",
		formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune lookup cache: %w", err)
	}
	return res.RowsAffected()
}
