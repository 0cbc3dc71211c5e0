package repository

import (
	"context"
	"fmt"

	"snowday-platform/internal/models"
	"snowday-platform/pkg/database"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// HistoryRepository provides access to the append-only historical record
// store. Records are keyed by (school, date); appending an existing key is a
// no-op.
type HistoryRepository interface {
	Append(ctx context.Context, rec *models.HistoricalRecord) (bool, error)
	ListAll(ctx context.Context) ([]models.HistoricalRecord, error)
	ListBySchool(ctx context.Context, school string) ([]models.HistoricalRecord, error)
	HealthCheck(ctx context.Context) error
}

// historyRepository implements HistoryRepository over Postgres
type historyRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewHistoryRepository creates a new historical record repository
func NewHistoryRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) HistoryRepository {
	return &historyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Append writes a historical record. Returns false without error when the
// (school, date) key already exists.
func (r *historyRepository) Append(ctx context.Context, rec *models.HistoricalRecord) (bool, error) {
	query := `
		INSERT INTO historical_records (
			school, date, status, temperature_f, feels_like_f, snowfall_in, weather_type, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (school, date) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, "append_record", query,
		rec.School,
		models.Day(rec.Date),
		rec.Status,
		rec.TemperatureF,
		rec.FeelsLikeF,
		rec.SnowfallIn,
		rec.WeatherType,
		rec.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append historical record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}

	if rows == 0 {
		r.logger.Debug(ctx, "[REPO_RECORD_SKIP] Record already exists", logging.Fields{
			"school": rec.School,
			"date":   models.DateKey(rec.Date),
		})
		return false, nil
	}

	return true, nil
}

// ListAll retrieves every historical record, oldest first.
func (r *historyRepository) ListAll(ctx context.Context) ([]models.HistoricalRecord, error) {
	query := `
		SELECT school, date, status, temperature_f, feels_like_f, snowfall_in, weather_type, created_at
		FROM historical_records
		ORDER BY date, school
	`

	var records []models.HistoricalRecord
	if err := r.db.SelectContext(ctx, "list_records", &records, query); err != nil {
		return nil, fmt.Errorf("failed to list historical records: %w", err)
	}

	return records, nil
}

// ListBySchool retrieves one school's records, oldest first.
func (r *historyRepository) ListBySchool(ctx context.Context, school string) ([]models.HistoricalRecord, error) {
	query := `
		SELECT school, date, status, temperature_f, feels_like_f, snowfall_in, weather_type, created_at
		FROM historical_records
		WHERE school = $1
		ORDER BY date
	`

	var records []models.HistoricalRecord
	if err := r.db.SelectContext(ctx, "list_records_by_school", &records, query, school); err != nil {
		return nil, fmt.Errorf("failed to list records for school: %w", err)
	}

	return records, nil
}

// HealthCheck performs a repository health check
func (r *historyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
