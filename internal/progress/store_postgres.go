package progress

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/p-n-ai/pai-progress/internal/apperr"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// Schema is the DDL for the progress tables, including the event log.
//
//go:embed schema.sql
var Schema string

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(db *database.DB) (*PostgresStore, error) {
	if db == nil || db.Pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the progress tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return apperr.Storage("ensure schema", s.db.ApplySchema(ctx, Schema))
}

func (s *PostgresStore) GetYearProgress(ctx context.Context, studentID string, year int) (YearProgress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	yp := YearProgress{StudentID: studentID, Year: year}
	var attempts, summary []byte
	err := s.db.Pool.QueryRow(ctx,
		`SELECT total_modules, attempts, summary, version, completed_at, updated_at
		 FROM year_progress
		 WHERE student_id = $1 AND year = $2`,
		studentID, year,
	).Scan(&yp.TotalModules, &attempts, &summary, &yp.Version, &yp.CompletedAt, &yp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return YearProgress{}, apperr.NotFound("year progress", studentID+"/"+strconv.Itoa(year))
	}
	if err != nil {
		return YearProgress{}, apperr.Storage("get year progress", err)
	}

	if err := json.Unmarshal(attempts, &yp.Attempts); err != nil {
		return YearProgress{}, apperr.Storage("decode attempts", err)
	}
	if err := json.Unmarshal(summary, &yp.Summary); err != nil {
		return YearProgress{}, apperr.Storage("decode summary", err)
	}
	if yp.Attempts == nil {
		yp.Attempts = make(map[string]Attempt)
	}
	return yp, nil
}

func (s *PostgresStore) WriteYearProgress(ctx context.Context, yp YearProgress, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	attempts, err := json.Marshal(yp.Attempts)
	if err != nil {
		return fmt.Errorf("encode attempts: %w", err)
	}
	summary, err := json.Marshal(yp.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	next := expectedVersion + 1

	err = s.db.InTx(ctx, func(tx pgx.Tx) error {
		var query string
		args := []any{yp.StudentID, yp.Year, yp.TotalModules, attempts, summary, next, yp.CompletedAt, yp.UpdatedAt}
		if expectedVersion == 0 {
			query = `INSERT INTO year_progress
			         (student_id, year, total_modules, attempts, summary, version, completed_at, updated_at)
			         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			         ON CONFLICT (student_id, year) DO NOTHING`
		} else {
			query = `UPDATE year_progress
			         SET total_modules = $3, attempts = $4, summary = $5, version = $6,
			             completed_at = $7, updated_at = $8
			         WHERE student_id = $1 AND year = $2 AND version = $9`
			args = append(args, expectedVersion)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("write year_progress: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrVersionConflict
		}

		sm := yp.Summary
		_, err = tx.Exec(ctx,
			`INSERT INTO student_progress_summaries
			 (student_id, year, total_modules, completed_count, approved_count, average_percentage,
			  best_percentage, worst_percentage, is_year_complete, version, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			 ON CONFLICT (student_id, year) DO UPDATE SET
			   total_modules = EXCLUDED.total_modules,
			   completed_count = EXCLUDED.completed_count,
			   approved_count = EXCLUDED.approved_count,
			   average_percentage = EXCLUDED.average_percentage,
			   best_percentage = EXCLUDED.best_percentage,
			   worst_percentage = EXCLUDED.worst_percentage,
			   is_year_complete = EXCLUDED.is_year_complete,
			   version = EXCLUDED.version,
			   updated_at = EXCLUDED.updated_at`,
			yp.StudentID, yp.Year, yp.TotalModules, sm.CompletedCount, sm.ApprovedCount, sm.AveragePercentage,
			sm.BestPercentage, sm.WorstPercentage, sm.IsYearComplete, next, yp.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("write student_progress_summaries: %w", err)
		}
		return nil
	})
	if errors.Is(err, apperr.ErrVersionConflict) {
		return apperr.ErrVersionConflict
	}
	return apperr.Storage("write year progress", err)
}

func (s *PostgresStore) GetProfileSummary(ctx context.Context, studentID string, year int) (ProfileSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	ps := ProfileSummary{StudentID: studentID, Year: year}
	sm := &ps.Summary
	err := s.db.Pool.QueryRow(ctx,
		`SELECT total_modules, completed_count, approved_count, average_percentage,
		        best_percentage, worst_percentage, is_year_complete, version, updated_at
		 FROM student_progress_summaries
		 WHERE student_id = $1 AND year = $2`,
		studentID, year,
	).Scan(&ps.TotalModules, &sm.CompletedCount, &sm.ApprovedCount, &sm.AveragePercentage,
		&sm.BestPercentage, &sm.WorstPercentage, &sm.IsYearComplete, &ps.Version, &ps.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProfileSummary{}, apperr.NotFound("profile summary", studentID+"/"+strconv.Itoa(year))
	}
	if err != nil {
		return ProfileSummary{}, apperr.Storage("get profile summary", err)
	}
	return ps, nil
}
