package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai_detector/internal/corpus"
	"ai_detector/internal/provenance"
)

var ErrNotFound = errors.New("not found")

// ReplaceSamples swaps the stored corpus for samples, keeping their order.
func (s *Store) ReplaceSamples(ctx context.Context, samples []corpus.Sample) error {
	if err := corpus.Validate(samples); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reference_samples`); err != nil {
		return fmt.Errorf("clear reference samples: %w", err)
	}
	insert := s.rebind(`INSERT INTO reference_samples(id, position, text, embedding) VALUES(?,?,?,?)`)
	for i, sample := range samples {
		var embedding sql.NullString
		if len(sample.Embedding) > 0 {
			raw, err := json.Marshal(sample.Embedding)
			if err != nil {
				return fmt.Errorf("encode embedding %s: %w", sample.ID, err)
			}
			embedding = sql.NullString{String: string(raw), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insert, sample.ID, i, sample.Text, embedding); err != nil {
			return fmt.Errorf("insert reference sample %s: %w", sample.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadSamples returns the stored corpus in its saved order.
func (s *Store) LoadSamples(ctx context.Context) ([]corpus.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM reference_samples ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query reference samples: %w", err)
	}
	defer rows.Close()

	out := []corpus.Sample{}
	for rows.Next() {
		var (
			sample    corpus.Sample
			embedding sql.NullString
		)
		if err := rows.Scan(&sample.ID, &sample.Text, &embedding); err != nil {
			return nil, fmt.Errorf("scan reference sample: %w", err)
		}
		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &sample.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding %s: %w", sample.ID, err)
			}
		}
		out = append(out, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference samples: %w", err)
	}
	return out, nil
}

// SaveReport stores the report JSON under its request id, replacing any
// earlier report with the same id.
func (s *Store) SaveReport(ctx context.Context, report provenance.Report, createdAt time.Time) error {
	if report.RequestID == "" {
		return errors.New("report has no request id")
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM reports WHERE request_id = ?`), report.RequestID); err != nil {
		return fmt.Errorf("clear report %s: %w", report.RequestID, err)
	}
	if _, err := tx.ExecContext(ctx,
		s.rebind(`INSERT INTO reports(request_id, created_at, status, body) VALUES(?,?,?,?)`),
		report.RequestID,
		createdAt.UTC().Format(time.RFC3339Nano),
		string(report.Status),
		string(body),
	); err != nil {
		return fmt.Errorf("insert report %s: %w", report.RequestID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type StoredReport struct {
	RequestID string
	CreatedAt time.Time
	Status    provenance.State
	Body      json.RawMessage
}

func (s *Store) LoadReport(ctx context.Context, requestID string) (StoredReport, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT request_id, created_at, status, body FROM reports WHERE request_id = ?`), requestID)
	var (
		out       StoredReport
		createdAt string
		status    string
		body      string
	)
	if err := row.Scan(&out.RequestID, &createdAt, &status, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredReport{}, fmt.Errorf("report %s: %w", requestID, ErrNotFound)
		}
		return StoredReport{}, fmt.Errorf("scan report: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return StoredReport{}, fmt.Errorf("parse created_at: %w", err)
	}
	out.CreatedAt = ts
	out.Status = provenance.State(status)
	out.Body = json.RawMessage(body)
	return out, nil
}
