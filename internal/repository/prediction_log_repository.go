package repository

import (
	"context"
	"fmt"
	"time"

	"snowday-platform/internal/models"
	"snowday-platform/pkg/database"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// PredictionLogRepository provides access to the prediction log. Entries are
// keyed by (date, school), appended pending, and mutated exactly once when
// resolved. Entries are never deleted.
type PredictionLogRepository interface {
	Append(ctx context.Context, entry *models.PredictionLogEntry) (bool, error)
	HasEntry(ctx context.Context, school string, date time.Time) (bool, error)
	ListPendingByDate(ctx context.Context, date time.Time) ([]models.PredictionLogEntry, error)
	Resolve(ctx context.Context, school string, date time.Time, actual models.SchoolStatus, correct bool, resolvedAt time.Time) (bool, error)
	ListRecentResolved(ctx context.Context, limit int) ([]models.PredictionLogEntry, error)
	CountPending(ctx context.Context) (int, error)
	CountResolved(ctx context.Context) (int, error)
}

// predictionLogRepository implements PredictionLogRepository over Postgres
type predictionLogRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPredictionLogRepository creates a new prediction log repository
func NewPredictionLogRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) PredictionLogRepository {
	return &predictionLogRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Append writes a log entry. Returns false without error when the
// (date, school) key already exists.
func (r *predictionLogRepository) Append(ctx context.Context, entry *models.PredictionLogEntry) (bool, error) {
	query := `
		INSERT INTO prediction_log (
			date, school, delay_probability, closure_probability, predicted_disruption,
			actual_status, correct, source, created_at, resolved_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (date, school) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, "append_log_entry", query,
		models.Day(entry.Date),
		entry.School,
		entry.DelayProbability,
		entry.ClosureProbability,
		entry.PredictedDisruption,
		entry.ActualStatus,
		entry.Correct,
		entry.Source,
		entry.CreatedAt,
		entry.ResolvedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}

	return rows > 0, nil
}

// HasEntry reports whether a log entry exists for the given key.
func (r *predictionLogRepository) HasEntry(ctx context.Context, school string, date time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM prediction_log WHERE school = $1 AND date = $2`

	var count int
	if err := r.db.GetContext(ctx, "has_log_entry", &count, query, school, models.Day(date)); err != nil {
		return false, fmt.Errorf("failed to check log entry: %w", err)
	}

	return count > 0, nil
}

// ListPendingByDate retrieves the unresolved entries for one date.
func (r *predictionLogRepository) ListPendingByDate(ctx context.Context, date time.Time) ([]models.PredictionLogEntry, error) {
	query := `
		SELECT date, school, delay_probability, closure_probability, predicted_disruption,
		       actual_status, correct, source, created_at, resolved_at
		FROM prediction_log
		WHERE actual_status IS NULL AND date = $1
		ORDER BY school
	`

	var entries []models.PredictionLogEntry
	if err := r.db.SelectContext(ctx, "list_pending", &entries, query, models.Day(date)); err != nil {
		return nil, fmt.Errorf("failed to list pending entries: %w", err)
	}

	return entries, nil
}

// Resolve sets the actual status and correctness on a pending entry. The
// guard on actual_status makes resolution one-way: re-running it on an
// already-resolved entry affects zero rows and returns false.
func (r *predictionLogRepository) Resolve(ctx context.Context, school string, date time.Time, actual models.SchoolStatus, correct bool, resolvedAt time.Time) (bool, error) {
	query := `
		UPDATE prediction_log
		SET actual_status = $1, correct = $2, resolved_at = $3
		WHERE school = $4 AND date = $5 AND actual_status IS NULL
	`

	result, err := r.db.ExecContext(ctx, "resolve_log_entry", query,
		actual, correct, resolvedAt, school, models.Day(date))
	if err != nil {
		return false, fmt.Errorf("failed to resolve log entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read resolve result: %w", err)
	}

	return rows > 0, nil
}

// ListRecentResolved retrieves the most recently resolved entries in
// chronological order.
func (r *predictionLogRepository) ListRecentResolved(ctx context.Context, limit int) ([]models.PredictionLogEntry, error) {
	query := `
		SELECT date, school, delay_probability, closure_probability, predicted_disruption,
		       actual_status, correct, source, created_at, resolved_at
		FROM (
			SELECT *
			FROM prediction_log
			WHERE actual_status IS NOT NULL
			ORDER BY resolved_at DESC, date DESC, school
			LIMIT $1
		) recent
		ORDER BY resolved_at, date, school
	`

	var entries []models.PredictionLogEntry
	if err := r.db.SelectContext(ctx, "list_recent_resolved", &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list resolved entries: %w", err)
	}

	return entries, nil
}

// CountPending returns the number of unresolved entries.
func (r *predictionLogRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM prediction_log WHERE actual_status IS NULL`
	if err := r.db.GetContext(ctx, "count_pending", &count, query); err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return count, nil
}

// CountResolved returns the number of resolved entries.
func (r *predictionLogRepository) CountResolved(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM prediction_log WHERE actual_status IS NOT NULL`
	if err := r.db.GetContext(ctx, "count_resolved", &count, query); err != nil {
		return 0, fmt.Errorf("failed to count resolved entries: %w", err)
	}
	return count, nil
}
