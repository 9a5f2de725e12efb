// Copyright 2025 The ACE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package trajectorystore optionally persists Trajectory Records and
// Insight Bundles (spec §3) for replay, across a pluggable SQL backend
// selected by the Config DSN's scheme.
package trajectorystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hungson175/ace/pkg/bullet"
	"github.com/hungson175/ace/pkg/trajectory"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trajectories (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    query TEXT NOT NULL,
    context_json TEXT,
    generator_output TEXT,
    cited_bullet_ids_json TEXT,
    feedback_json TEXT,
    ground_truth TEXT,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trajectories_run_id ON trajectories(run_id);

CREATE TABLE IF NOT EXISTS insight_bundles (
    trajectory_id TEXT PRIMARY KEY,
    reasoning TEXT,
    error_identification TEXT,
    root_cause_analysis TEXT,
    correct_approach TEXT,
    key_insight TEXT,
    bullet_tags_json TEXT
);
`

// Store persists Trajectory Records and Insight Bundles over database/sql.
// Single writer concerns (SQLite's one-connection-at-a-time restriction)
// are handled by capping MaxConns, the same way the teacher's DBPool does
// for its own SQL-backed services.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens (and, for SQLite, creates) the database named by cfg.DSN and
// ensures the trajectory/insight schema exists.
func New(cfg Config) (*Store, error) {
	d, driverDSN, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.driverName(), driverDSN)
	if err != nil {
		return nil, fmt.Errorf("trajectorystore: failed to open %s database: %w", d, err)
	}

	if d == dialectSQLite {
		// SQLite allows only one writer; serialize all access through a
		// single connection to avoid "database is locked" errors.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("trajectorystore: failed to connect: %w", err)
	}

	s := &Store{db: db, dialect: d}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("trajectorystore: failed to initialize schema: %w", err)
	}
	return s, nil
}

// SaveTrajectory persists rec under runID, replacing any prior row with
// the same ID.
func (s *Store) SaveTrajectory(ctx context.Context, runID string, rec trajectory.Record) error {
	contextJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to marshal context: %w", err)
	}
	citedJSON, err := json.Marshal(rec.CitedBulletIDs)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to marshal cited bullet ids: %w", err)
	}
	feedbackJSON, err := json.Marshal(rec.EnvironmentFeedback)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to marshal environment feedback: %w", err)
	}

	if err := s.deleteTrajectory(ctx, rec.ID); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO trajectories
  (id, run_id, query, context_json, generator_output, cited_bullet_ids_json, feedback_json, ground_truth, created_at)
VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5), s.dialect.placeholder(6),
		s.dialect.placeholder(7), s.dialect.placeholder(8), s.dialect.placeholder(9))

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, runID, rec.Query, string(contextJSON), rec.GeneratorOutput,
		string(citedJSON), string(feedbackJSON), rec.GroundTruth, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to insert trajectory %q: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) deleteTrajectory(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM trajectories WHERE id = %s", s.dialect.placeholder(1))
	_, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to clear prior trajectory %q: %w", id, err)
	}
	return nil
}

// SaveInsight persists the Reflector's diagnosis of trajectoryID,
// replacing any prior bundle for the same trajectory.
func (s *Store) SaveInsight(ctx context.Context, trajectoryID string, bundle trajectory.InsightBundle) error {
	tagsJSON, err := json.Marshal(bundle.BulletTags)
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to marshal bullet tags: %w", err)
	}

	deleteQuery := fmt.Sprintf("DELETE FROM insight_bundles WHERE trajectory_id = %s", s.dialect.placeholder(1))
	if _, err := s.db.ExecContext(ctx, deleteQuery, trajectoryID); err != nil {
		return fmt.Errorf("trajectorystore: failed to clear prior insight bundle for %q: %w", trajectoryID, err)
	}

	insertQuery := fmt.Sprintf(`
INSERT INTO insight_bundles
  (trajectory_id, reasoning, error_identification, root_cause_analysis, correct_approach, key_insight, bullet_tags_json)
VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3),
		s.dialect.placeholder(4), s.dialect.placeholder(5), s.dialect.placeholder(6), s.dialect.placeholder(7))

	_, err = s.db.ExecContext(ctx, insertQuery,
		trajectoryID, bundle.Reasoning, bundle.ErrorIdentification, bundle.RootCauseAnalysis,
		bundle.CorrectApproach, bundle.KeyInsight, string(tagsJSON))
	if err != nil {
		return fmt.Errorf("trajectorystore: failed to insert insight bundle for %q: %w", trajectoryID, err)
	}
	return nil
}

// GetTrajectory loads a single persisted Trajectory Record by ID.
func (s *Store) GetTrajectory(ctx context.Context, id string) (trajectory.Record, error) {
	query := fmt.Sprintf(`
SELECT id, query, context_json, generator_output, cited_bullet_ids_json, feedback_json, ground_truth, created_at
FROM trajectories WHERE id = %s`, s.dialect.placeholder(1))

	row := s.db.QueryRowContext(ctx, query, id)
	return scanTrajectory(row)
}

// ListByRun returns every Trajectory Record persisted under runID,
// ordered by creation order, for replaying an adaptation run.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]trajectory.Record, error) {
	query := fmt.Sprintf(`
SELECT id, query, context_json, generator_output, cited_bullet_ids_json, feedback_json, ground_truth, created_at
FROM trajectories WHERE run_id = %s ORDER BY created_at ASC`, s.dialect.placeholder(1))

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("trajectorystore: failed to query run %q: %w", runID, err)
	}
	defer rows.Close()

	var out []trajectory.Record
	for rows.Next() {
		rec, err := scanTrajectory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trajectorystore: failed to iterate run %q: %w", runID, err)
	}
	return out, nil
}

// GetInsight loads the persisted Insight Bundle for a trajectory, if any.
func (s *Store) GetInsight(ctx context.Context, trajectoryID string) (trajectory.InsightBundle, error) {
	query := fmt.Sprintf(`
SELECT reasoning, error_identification, root_cause_analysis, correct_approach, key_insight, bullet_tags_json
FROM insight_bundles WHERE trajectory_id = %s`, s.dialect.placeholder(1))

	var bundle trajectory.InsightBundle
	var tagsJSON string
	err := s.db.QueryRowContext(ctx, query, trajectoryID).Scan(
		&bundle.Reasoning, &bundle.ErrorIdentification, &bundle.RootCauseAnalysis,
		&bundle.CorrectApproach, &bundle.KeyInsight, &tagsJSON)
	if err == sql.ErrNoRows {
		return trajectory.InsightBundle{}, fmt.Errorf("trajectorystore: no insight bundle for trajectory %q", trajectoryID)
	}
	if err != nil {
		return trajectory.InsightBundle{}, fmt.Errorf("trajectorystore: failed to query insight bundle: %w", err)
	}

	var tags []bullet.BulletTag
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		return trajectory.InsightBundle{}, fmt.Errorf("trajectorystore: failed to unmarshal bullet tags: %w", err)
	}
	bundle.BulletTags = tags
	return bundle, nil
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which have a
// Scan method with this exact signature.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrajectory(row rowScanner) (trajectory.Record, error) {
	var rec trajectory.Record
	var contextJSON, citedJSON, feedbackJSON string

	err := row.Scan(&rec.ID, &rec.Query, &contextJSON, &rec.GeneratorOutput,
		&citedJSON, &feedbackJSON, &rec.GroundTruth, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return trajectory.Record{}, fmt.Errorf("trajectorystore: trajectory not found")
	}
	if err != nil {
		return trajectory.Record{}, fmt.Errorf("trajectorystore: failed to scan trajectory: %w", err)
	}

	if contextJSON != "" && contextJSON != "null" {
		if err := json.Unmarshal([]byte(contextJSON), &rec.Context); err != nil {
			return trajectory.Record{}, fmt.Errorf("trajectorystore: failed to unmarshal context: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(citedJSON), &rec.CitedBulletIDs); err != nil {
		return trajectory.Record{}, fmt.Errorf("trajectorystore: failed to unmarshal cited bullet ids: %w", err)
	}
	if err := json.Unmarshal([]byte(feedbackJSON), &rec.EnvironmentFeedback); err != nil {
		return trajectory.Record{}, fmt.Errorf("trajectorystore: failed to unmarshal environment feedback: %w", err)
	}
	return rec, nil
}

// Close releases the underlying database connection(s).
func (s *Store) Close() error {
	return s.db.Close()
}
