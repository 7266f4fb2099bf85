package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run is one pipeline execution. Success is the model's self-reported
// verdict; OTPMatch is the independently computed ground-truth check.
type Run struct {
	ID           uuid.UUID       `json:"id"`
	TargetName   string          `json:"target_name"`
	TargetPhone  string          `json:"target_phone"`
	Room         string          `json:"room_name"`
	CallStarted  *time.Time      `json:"call_started,omitempty"`
	CallEnded    *time.Time      `json:"call_ended,omitempty"`
	CodesSent    int             `json:"codes_sent"`
	Success      *bool           `json:"success,omitempty"`
	ExtractedOTP string          `json:"extracted_otp,omitempty"`
	OTPMatch     *bool           `json:"otp_match,omitempty"`
	Confidence   string          `json:"confidence,omitempty"`
	Transcript   json.RawMessage `json:"transcript,omitempty"`
	Analysis     json.RawMessage `json:"analysis,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ErrNotFound is returned when a run id has no row.
var ErrNotFound = errors.New("run not found")

// InsertRun records one pipeline execution and returns its id.
func (s *Store) InsertRun(ctx context.Context, run Run) (uuid.UUID, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (id, target_name, target_phone, room_name, call_started, call_ended,
			codes_sent, success, extracted_otp, otp_match, confidence, transcript, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())`,
		run.ID, run.TargetName, run.TargetPhone, run.Room, run.CallStarted, run.CallEnded,
		run.CodesSent, run.Success, nullable(run.ExtractedOTP), run.OTPMatch,
		nullable(run.Confidence), run.Transcript, run.Analysis,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, target_name, target_phone, room_name, call_started, call_ended,
			codes_sent, success, extracted_otp, otp_match, confidence, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var extractedOTP, confidence *string
		if err := rows.Scan(&r.ID, &r.TargetName, &r.TargetPhone, &r.Room, &r.CallStarted, &r.CallEnded,
			&r.CodesSent, &r.Success, &extractedOTP, &r.OTPMatch, &confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if extractedOTP != nil {
			r.ExtractedOTP = *extractedOTP
		}
		if confidence != nil {
			r.Confidence = *confidence
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its full transcript and analysis records.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	var extractedOTP, confidence *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, target_name, target_phone, room_name, call_started, call_ended,
			codes_sent, success, extracted_otp, otp_match, confidence, transcript, analysis, created_at
		FROM runs
		WHERE id = $1`, id).Scan(
		&r.ID, &r.TargetName, &r.TargetPhone, &r.Room, &r.CallStarted, &r.CallEnded,
		&r.CodesSent, &r.Success, &extractedOTP, &r.OTPMatch, &confidence, &r.Transcript, &r.Analysis, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if extractedOTP != nil {
		r.ExtractedOTP = *extractedOTP
	}
	if confidence != nil {
		r.Confidence = *confidence
	}
	return &r, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
