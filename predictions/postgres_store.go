package predictions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by the predictions table created by
// the migrations in /migrations
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed prediction store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping checks database reachability
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Record inserts a prediction
func (s *PostgresStore) Record(ctx context.Context, rec *Record) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO predictions (id, request_id, input, premium, raw_output, clamped, clamp_reason, segment, model_version, cached, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.RequestID, input, rec.Premium, rec.RawOutput, rec.Clamped, rec.ClampReason,
		rec.Segment, rec.ModelVersion, rec.Cached, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// Get retrieves a prediction by ID
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, request_id, input, premium, raw_output, clamped, clamp_reason, segment, model_version, cached, created_at
		FROM predictions
		WHERE id = $1
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("prediction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return rec, nil
}

// ListRecent returns the newest predictions
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, input, premium, raw_output, clamped, clamp_reason, segment, model_version, cached, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating predictions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var (
		rec   Record
		input []byte
	)
	if err := sc.Scan(&rec.ID, &rec.RequestID, &input, &rec.Premium, &rec.RawOutput,
		&rec.Clamped, &rec.ClampReason, &rec.Segment, &rec.ModelVersion, &rec.Cached, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(input, &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return &rec, nil
}
