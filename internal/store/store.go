// Package store provides the persistence adapter over the dashboard's
// document store. Reports live under category -> id -> document and
// anomalies under anomalyId -> document; both sides are JSON documents in a
// local sqlite database, so the engine reads and writes the exact shapes the
// dashboard uses.
//
// The anomaly side implements read-merge-write upserts: an update shallow-
// merges the newly computed fields over the stored document, pins the
// original firstDetected, and leaves dashboard-owned fields (reviewedBy)
// untouched. Concurrent runs resolve as last-writer-wins, which is acceptable
// at the job's daily cadence because anomaly identity is deterministic.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/munimap/anomaly-engine/internal/logger"
	"github.com/munimap/anomaly-engine/internal/models"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	category TEXT NOT NULL,
	id       TEXT NOT NULL,
	doc      TEXT NOT NULL,
	PRIMARY KEY (category, id)
);
CREATE TABLE IF NOT EXISTS anomalies (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
`

// Store is a handle to the report and anomaly document collections.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the document store at path.
// Use ":memory:" for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// A single connection keeps :memory: databases coherent and serializes
	// the per-anomaly read-modify-write transactions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutReport writes a report document under its category partition.
// The engine itself never calls this during detection; it exists for the
// ingestion path and for seeding test fixtures.
func (s *Store) PutReport(ctx context.Context, r models.Report) error {
	if r.ID == "" || r.Category == "" {
		return errors.New("report id and category must not be empty")
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", r.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO reports (category, id, doc) VALUES (?, ?, ?)`,
		r.Category, r.ID, string(doc))
	if err != nil {
		return fmt.Errorf("failed to write report %s: %w", r.ID, err)
	}
	return nil
}

// FetchReportsFlat reads the whole category -> id -> document collection and
// flattens it into one report list, with ID and Category taken from the
// partition keys. Malformed documents are logged and skipped; they must not
// abort the snapshot read.
func (s *Store) FetchReportsFlat(ctx context.Context) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, id, doc FROM reports`)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		var category, id, doc string
		if err := rows.Scan(&category, &id, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}

		var r models.Report
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			logger.Warn("store: skipping malformed report %s/%s: %v", category, id, err)
			continue
		}
		r.ID = id
		r.Category = category
		if r.Area == "" {
			r.Area = "—"
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return out, nil
}

// GetAnomaly returns the stored anomaly document for id as a generic JSON
// object, or ErrNotFound.
func (s *Store) GetAnomaly(ctx context.Context, id string) (map[string]any, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM anomalies WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read anomaly %s: %w", id, err)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anomaly %s: %w", id, err)
	}
	return out, nil
}

// ListAnomalies returns every stored anomaly document, raw, for the read API.
func (s *Store) ListAnomalies(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM anomalies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read anomalies: %w", err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly row: %w", err)
		}
		out = append(out, json.RawMessage(doc))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anomalies: %w", err)
	}
	return out, nil
}

// UpsertResult summarizes one batch of anomaly upserts.
type UpsertResult struct {
	Created int
	Updated int
	// CreatedIDs lists the ids that did not exist before this batch,
	// in input order.
	CreatedIDs []string
}

// UpsertAnomalies writes each anomaly under its deterministic id. An anomaly
// whose id already exists is shallow-merged over the stored document with
// firstDetected pinned to the original value; a new id is written as-is. In
// both cases lastUpdated is refreshed to now. Each upsert is one independent
// transaction; a failure aborts the batch (the whole run is the unit of
// retry).
func (s *Store) UpsertAnomalies(ctx context.Context, anomalies []models.Anomaly, now time.Time) (UpsertResult, error) {
	var res UpsertResult
	for i := range anomalies {
		created, err := s.upsertAnomaly(ctx, &anomalies[i], now)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
			res.CreatedIDs = append(res.CreatedIDs, anomalies[i].ID)
		} else {
			res.Updated++
		}
	}
	return res, nil
}

func (s *Store) upsertAnomaly(ctx context.Context, a *models.Anomaly, now time.Time) (created bool, err error) {
	if err := a.Validate(); err != nil {
		return false, fmt.Errorf("invalid anomaly: %w", err)
	}

	raw, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("failed to marshal anomaly %s: %w", a.ID, err)
	}
	var next map[string]any
	if err := json.Unmarshal(raw, &next); err != nil {
		return false, fmt.Errorf("failed to build anomaly document %s: %w", a.ID, err)
	}
	next["lastUpdated"] = now.UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin upsert for %s: %w", a.ID, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var existingDoc string
	scanErr := tx.QueryRowContext(ctx, `SELECT doc FROM anomalies WHERE id = ?`, a.ID).Scan(&existingDoc)

	var doc map[string]any
	switch {
	case errors.Is(scanErr, sql.ErrNoRows):
		created = true
		doc = next
	case scanErr != nil:
		err = fmt.Errorf("failed to read anomaly %s: %w", a.ID, scanErr)
		return false, err
	default:
		var existing map[string]any
		if uerr := json.Unmarshal([]byte(existingDoc), &existing); uerr != nil {
			// A corrupt stored document is replaced by the fresh one
			// rather than failing the run forever.
			logger.Warn("store: replacing corrupt anomaly document %s: %v", a.ID, uerr)
			created = true
			doc = next
			break
		}
		// Shallow-merge the new computation over the stored document.
		// Keys the engine never writes (reviewedBy) survive untouched,
		// and firstDetected stays pinned to the original.
		first := existing["firstDetected"]
		for k, v := range next {
			existing[k] = v
		}
		if first != nil {
			existing["firstDetected"] = first
		}
		doc = existing
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to marshal anomaly document %s: %w", a.ID, err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO anomalies (id, doc) VALUES (?, ?)`,
		a.ID, string(out)); err != nil {
		return false, fmt.Errorf("failed to write anomaly %s: %w", a.ID, err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit anomaly %s: %w", a.ID, err)
	}
	return created, nil
}
