// Package occstore caches fetched occurrence records in a local SQLite
// database so repeat runs against the same species skip the network fetch.
package occstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"github.com/couchcryptid/sdm-pipeline/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	species    TEXT PRIMARY KEY,
	fetched_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS occurrences (
	species         TEXT NOT NULL,
	taxon_id        TEXT NOT NULL,
	scientific_name TEXT NOT NULL,
	lon             REAL NOT NULL,
	lat             REAL NOT NULL,
	event_date      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_occurrences_species ON occurrences(species);
`

// Store persists occurrence fetches keyed by species name.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open occurrence cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init occurrence cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the cached records for species. found is false when the
// species has never been fetched.
func (s *Store) Load(ctx context.Context, species string) (recs []domain.Occurrence, found bool, err error) {
	var fetchedAt string
	err = s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM fetches WHERE species = ?`, species).Scan(&fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query fetch stamp: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT taxon_id, scientific_name, lon, lat, event_date
		 FROM occurrences WHERE species = ?`, species)
	if err != nil {
		return nil, false, fmt.Errorf("query occurrences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var occ domain.Occurrence
		var date string
		if err := rows.Scan(&occ.TaxonID, &occ.ScientificName, &occ.Lon, &occ.Lat, &date); err != nil {
			return nil, false, fmt.Errorf("scan occurrence: %w", err)
		}
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return nil, false, fmt.Errorf("parse cached event date %q: %w", date, err)
		}
		occ.EventDate = t
		recs = append(recs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate occurrences: %w", err)
	}
	return recs, true, nil
}

// Save replaces the cached records for species in one transaction.
func (s *Store) Save(ctx context.Context, species string, recs []domain.Occurrence) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM occurrences WHERE species = ?`, species); err != nil {
		return fmt.Errorf("clear cached occurrences: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO occurrences (species, taxon_id, scientific_name, lon, lat, event_date)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, occ := range recs {
		_, err := stmt.ExecContext(ctx, species, occ.TaxonID, occ.ScientificName,
			occ.Lon, occ.Lat, occ.EventDate.UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert occurrence: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO fetches (species, fetched_at) VALUES (?, ?)
		 ON CONFLICT(species) DO UPDATE SET fetched_at = excluded.fetched_at`,
		species, domain.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("stamp fetch: %w", err)
	}

	return tx.Commit()
}
