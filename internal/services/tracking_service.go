package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"snowday-platform/internal/models"
	"snowday-platform/internal/repository"
	"snowday-platform/internal/scoring"
	"snowday-platform/internal/signal"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// StatusSource is the slice of the school-status oracle the tracker needs.
type StatusSource interface {
	SchoolStatuses(ctx context.Context) (map[string]models.SchoolStatusReport, error)
}

// Predictor produces tomorrow's per-school predictions for logging.
type Predictor interface {
	Predict(ctx context.Context) (*PredictionResult, error)
}

// accuracyWindow is the number of recent resolved entries the rolling
// accuracy report covers.
const accuracyWindow = 30

// TrackingService owns the prediction log and the historical record store:
// it resolves yesterday's predictions against observed outcomes, appends
// today's outcome records, logs tomorrow's predictions, and reports rolling
// accuracy. Callers must serialize LogDaily invocations; the read-modify-
// write against the log is not internally synchronized.
type TrackingService struct {
	logRepo   repository.PredictionLogRepository
	histRepo  repository.HistoryRepository
	statuses  StatusSource
	predictor Predictor
	weather   WeatherClient
	clock     clockwork.Clock
	schools   []string
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// LogOptions controls a daily logging run.
type LogOptions struct {
	// ForceLog bypasses the out-of-season guard.
	ForceLog bool
	// DryRun computes everything but writes nothing.
	DryRun bool
}

// LogResult summarizes one daily logging run.
type LogResult struct {
	Logged           int      `json:"logged"`
	Skipped          int      `json:"skipped"`
	Errors           []string `json:"errors,omitempty"`
	Resolved         int      `json:"resolved"`
	SavedForTomorrow int      `json:"saved_for_tomorrow"`
	DryRun           bool     `json:"dry_run,omitempty"`
}

// NewTrackingService creates a new tracking service
func NewTrackingService(
	logRepo repository.PredictionLogRepository,
	histRepo repository.HistoryRepository,
	statuses StatusSource,
	predictor Predictor,
	weather WeatherClient,
	clock clockwork.Clock,
	schools []string,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *TrackingService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TrackingService{
		logRepo:   logRepo,
		histRepo:  histRepo,
		statuses:  statuses,
		predictor: predictor,
		weather:   weather,
		clock:     clock,
		schools:   schools,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// LogDaily runs one daily tracking cycle: resolve today's pending entries,
// append today's outcome records, then log tomorrow's predictions. Each phase
// isolates its own failures so one bad write never blocks the rest of the
// run.
func (t *TrackingService) LogDaily(ctx context.Context, opts LogOptions) (*LogResult, error) {
	now := t.clock.Now()
	today := models.Day(now)
	tomorrow := today.AddDate(0, 0, 1)

	result := &LogResult{DryRun: opts.DryRun}

	if !opts.ForceLog && !inSeason(now) {
		result.Errors = append(result.Errors, "outside winter season; use force to log anyway")
		t.logger.Info(ctx, "[TRACK_SKIP_SEASON] Outside winter season, nothing logged", logging.Fields{
			"date": models.DateKey(today),
		})
		return result, nil
	}

	statuses, err := t.statuses.SchoolStatuses(ctx)
	if err != nil {
		t.logger.Error(ctx, "[TRACK_STATUS_ERROR] School statuses unavailable", logging.Fields{}, err)
		result.Errors = append(result.Errors, fmt.Sprintf("school statuses unavailable: %v", err))
	}

	t.resolvePhase(ctx, today, statuses, opts, result)
	t.recordPhase(ctx, today, statuses, opts, result)
	t.logPhase(ctx, tomorrow, opts, result)

	t.logger.Info(ctx, "[TRACK_COMPLETE] Daily tracking run finished", logging.Fields{
		"date":               models.DateKey(today),
		"resolved":           result.Resolved,
		"logged":             result.Logged,
		"skipped":            result.Skipped,
		"saved_for_tomorrow": result.SavedForTomorrow,
		"errors":             len(result.Errors),
		"dry_run":            opts.DryRun,
	})

	return result, nil
}

// resolvePhase resolves today's pending log entries against observed
// statuses. Entries without a resolvable status remain pending; that is not
// an error.
func (t *TrackingService) resolvePhase(ctx context.Context, today time.Time, statuses map[string]models.SchoolStatusReport, opts LogOptions, result *LogResult) {
	if len(statuses) == 0 {
		return
	}

	pending, err := t.logRepo.ListPendingByDate(ctx, today)
	if err != nil {
		t.logger.Error(ctx, "[TRACK_RESOLVE_ERROR] Failed to list pending entries", logging.Fields{}, err)
		result.Errors = append(result.Errors, fmt.Sprintf("list pending: %v", err))
		return
	}

	for _, entry := range pending {
		report, ok := statuses[entry.School]
		if !ok {
			continue
		}
		actual, ok := models.NormalizeStatus(report.Status)
		if !ok {
			continue
		}

		correct := entry.PredictedDisruption == actual.IsDisruption()
		if opts.DryRun {
			result.Resolved++
			continue
		}

		resolved, err := t.logRepo.Resolve(ctx, entry.School, entry.Date, actual, correct, t.clock.Now().UTC())
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resolve %s: %v", entry.School, err))
			continue
		}
		if resolved {
			result.Resolved++
			t.metrics.ResolvedEntriesTotal.Inc()
		}
	}
}

// recordPhase appends today's (conditions, outcome) pair for each school with
// a known status. Unknown statuses are skipped, never guessed.
func (t *TrackingService) recordPhase(ctx context.Context, today time.Time, statuses map[string]models.SchoolStatusReport, opts LogOptions, result *LogResult) {
	if len(statuses) == 0 {
		return
	}

	cond, forecast := t.fetchWeather(ctx, result)
	sig := signal.Extract(cond, forecast)

	temp, feelsLike := 0, 0
	if sig.TemperatureF != nil {
		temp = *sig.TemperatureF
	}
	if sig.WindChillF != nil {
		feelsLike = *sig.WindChillF
	}

	for _, school := range t.schools {
		report, ok := statuses[school]
		if !ok {
			result.Skipped++
			continue
		}
		status, ok := models.NormalizeStatus(report.Status)
		if !ok {
			t.logger.Warn(ctx, "[TRACK_STATUS_UNKNOWN] Unparseable school status, skipping", logging.Fields{
				"school": school,
				"status": report.Status,
			})
			t.metrics.RecordLogResult("skipped")
			result.Skipped++
			continue
		}

		if opts.DryRun {
			result.Logged++
			continue
		}

		rec := &models.HistoricalRecord{
			School:       school,
			Date:         today,
			Status:       status,
			TemperatureF: temp,
			FeelsLikeF:   feelsLike,
			SnowfallIn:   sig.SnowfallIn,
			WeatherType:  string(sig.WeatherType),
			CreatedAt:    t.clock.Now().UTC(),
		}
		added, err := t.histRepo.Append(ctx, rec)
		if err != nil {
			t.metrics.RecordLogResult("error")
			result.Errors = append(result.Errors, fmt.Sprintf("record %s: %v", school, err))
			continue
		}
		if added {
			t.metrics.RecordLogResult("logged")
			result.Logged++
		} else {
			t.metrics.RecordLogResult("skipped")
			result.Skipped++
		}
	}
}

// logPhase computes tomorrow's prediction and appends a pending log entry per
// school, skipping keys that already exist.
func (t *TrackingService) logPhase(ctx context.Context, tomorrow time.Time, opts LogOptions, result *LogResult) {
	prediction, err := t.predictor.Predict(ctx)
	if err != nil {
		t.logger.Error(ctx, "[TRACK_PREDICT_ERROR] Prediction for tomorrow failed", logging.Fields{}, err)
		result.Errors = append(result.Errors, fmt.Sprintf("predict: %v", err))
		return
	}

	for _, sp := range prediction.Schools {
		exists, err := t.logRepo.HasEntry(ctx, sp.School, tomorrow)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("check entry %s: %v", sp.School, err))
			continue
		}
		if exists {
			continue
		}

		if opts.DryRun {
			result.SavedForTomorrow++
			continue
		}

		entry := &models.PredictionLogEntry{
			Date:                tomorrow,
			School:              sp.School,
			DelayProbability:    sp.DelayProbability,
			ClosureProbability:  sp.ClosureProbability,
			PredictedDisruption: maxInt(sp.DelayProbability, sp.ClosureProbability) >= scoring.DisruptionThreshold,
			Source:              models.SourceLive,
			CreatedAt:           t.clock.Now().UTC(),
		}
		added, err := t.logRepo.Append(ctx, entry)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("log %s: %v", sp.School, err))
			continue
		}
		if added {
			result.SavedForTomorrow++
		}
	}
}

// fetchWeather fetches conditions and forecast for the record phase,
// tolerating individual failures.
func (t *TrackingService) fetchWeather(ctx context.Context, result *LogResult) (*models.CurrentConditions, *models.Forecast) {
	cond, err := t.weather.CurrentConditions(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "current conditions unavailable for record phase")
		cond = nil
	}
	forecast, err := t.weather.Forecast(ctx)
	if err != nil {
		result.Errors = append(result.Errors, "forecast unavailable for record phase")
		forecast = nil
	}
	return cond, forecast
}

// Accuracy reports rolling prediction accuracy over the most recent resolved
// entries.
func (t *TrackingService) Accuracy(ctx context.Context) (*models.AccuracyReport, error) {
	entries, err := t.logRepo.ListRecentResolved(ctx, accuracyWindow)
	if err != nil {
		return nil, fmt.Errorf("list resolved entries: %w", err)
	}
	pending, err := t.logRepo.CountPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("count pending entries: %w", err)
	}
	totalResolved, err := t.logRepo.CountResolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("count resolved entries: %w", err)
	}

	report := &models.AccuracyReport{
		Total:         len(entries),
		PendingCount:  pending,
		TotalResolved: totalResolved,
	}

	if len(entries) == 0 {
		if pending > 0 {
			report.Status = "collecting"
		} else {
			report.Status = "no-data"
		}
		return report, nil
	}

	for _, e := range entries {
		correct := e.Correct != nil && *e.Correct
		if correct {
			report.Correct++
		}
		if e.Source == models.SourceBacktest {
			report.BacktestResolved++
			if correct {
				report.BacktestCorrect++
			}
		} else {
			report.LiveResolved++
			if correct {
				report.LiveCorrect++
			}
		}
	}
	report.Accuracy = int(math.Round(100 * float64(report.Correct) / float64(len(entries))))
	report.Status = "tracking"

	// Streak scans backward from the most recent resolved entry until the
	// first miss.
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Correct == nil || !*entries[i].Correct {
			break
		}
		report.Streak++
	}

	t.metrics.RollingAccuracy.Set(float64(report.Accuracy))

	return report, nil
}

// SeedBacktest converts historical records into resolved backtest log
// entries by re-running the scorer against each record. Existing
// (date, school) keys are never duplicated. Returns the number of entries
// created.
func (t *TrackingService) SeedBacktest(ctx context.Context) (int, error) {
	records, err := t.histRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list historical records: %w", err)
	}

	created := 0
	for _, rec := range records {
		score, _ := scoring.SimulateFromRecord(rec)
		simulated := scoring.Blend(score, nil, nil)

		predicted := maxInt(simulated.DelayProbability, simulated.ClosureProbability) >= scoring.DisruptionThreshold
		correct := predicted == rec.Status.IsDisruption()
		status := rec.Status
		resolvedAt := t.clock.Now().UTC()

		entry := &models.PredictionLogEntry{
			Date:                rec.Date,
			School:              rec.School,
			DelayProbability:    simulated.DelayProbability,
			ClosureProbability:  simulated.ClosureProbability,
			PredictedDisruption: predicted,
			ActualStatus:        &status,
			Correct:             &correct,
			Source:              models.SourceBacktest,
			CreatedAt:           resolvedAt,
			ResolvedAt:          &resolvedAt,
		}

		added, err := t.logRepo.Append(ctx, entry)
		if err != nil {
			t.logger.Error(ctx, "[TRACK_SEED_ERROR] Failed to seed backtest entry", logging.Fields{
				"school": rec.School,
				"date":   models.DateKey(rec.Date),
			}, err)
			continue
		}
		if added {
			created++
		}
	}

	t.logger.Info(ctx, "[TRACK_SEED_COMPLETE] Backtest seeding finished", logging.Fields{
		"records": len(records),
		"created": created,
	})

	return created, nil
}

// inSeason reports whether the date falls in the months school weather
// disruptions occur.
func inSeason(t time.Time) bool {
	switch t.Month() {
	case time.November, time.December, time.January, time.February, time.March:
		return true
	default:
		return false
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
