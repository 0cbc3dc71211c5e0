package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"snowday-platform/internal/history"
	"snowday-platform/internal/models"
	"snowday-platform/internal/repository"
	"snowday-platform/internal/scoring"
	"snowday-platform/internal/signal"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// PredictionService composes the prediction pipeline: upstream fan-out,
// signal extraction, heuristic scoring, historical matching, blending, and
// per-school adjustment.
type PredictionService struct {
	weather WeatherClient
	history repository.HistoryRepository
	schools []string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// WeatherClient is the slice of the upstream fetcher the prediction pipeline
// needs.
type WeatherClient interface {
	CurrentConditions(ctx context.Context) (*models.CurrentConditions, error)
	Forecast(ctx context.Context) (*models.Forecast, error)
	Alerts(ctx context.Context) ([]models.Alert, error)
}

// PredictionResult is one full pipeline run: the district-wide prediction,
// the per-school adjustments, and any soft errors from degraded inputs.
type PredictionResult struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Prediction  models.Prediction         `json:"prediction"`
	Schools     []models.SchoolPrediction `json:"schools"`
	Errors      []string                  `json:"errors,omitempty"`
}

// NewPredictionService creates a new prediction service
func NewPredictionService(weather WeatherClient, historyRepo repository.HistoryRepository, schools []string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *PredictionService {
	return &PredictionService{
		weather: weather,
		history: historyRepo,
		schools: schools,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// pipelineInputs holds the fan-out fetch results. Failed fetches leave their
// field nil; scoring proceeds with reduced confidence.
type pipelineInputs struct {
	conditions *models.CurrentConditions
	forecast   *models.Forecast
	alerts     []models.Alert
	errors     []string
}

// fetchInputs fetches the independent upstream resources concurrently.
// Individual failures degrade to nil inputs, never to a pipeline failure.
func (s *PredictionService) fetchInputs(ctx context.Context) pipelineInputs {
	var in pipelineInputs
	errs := make([]string, 3)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cond, err := s.weather.CurrentConditions(gctx)
		if err != nil {
			s.logger.Warn(gctx, "[FETCH_CONDITIONS] Current conditions unavailable", logging.Fields{"error": err.Error()})
			errs[0] = "current conditions unavailable"
			return nil
		}
		in.conditions = cond
		return nil
	})
	g.Go(func() error {
		fc, err := s.weather.Forecast(gctx)
		if err != nil {
			s.logger.Warn(gctx, "[FETCH_FORECAST] Forecast unavailable", logging.Fields{"error": err.Error()})
			errs[1] = "forecast unavailable"
			return nil
		}
		in.forecast = fc
		return nil
	})
	g.Go(func() error {
		alerts, err := s.weather.Alerts(gctx)
		if err != nil {
			s.logger.Warn(gctx, "[FETCH_ALERTS] Alerts unavailable", logging.Fields{"error": err.Error()})
			errs[2] = "alerts unavailable"
			return nil
		}
		in.alerts = alerts
		return nil
	})
	g.Wait()

	for _, e := range errs {
		if e != "" {
			in.errors = append(in.errors, e)
		}
	}
	if in.conditions == nil && in.forecast == nil {
		in.errors = append(in.errors, "weather data completely unavailable; prediction based on school statuses only")
	}
	return in
}

// Predict runs the full prediction pipeline for tomorrow.
func (s *PredictionService) Predict(ctx context.Context) (*PredictionResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.PredictionsTotal.Inc()
		s.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	}()

	in := s.fetchInputs(ctx)

	sig := signal.Extract(in.conditions, in.forecast)
	text := signal.ForecastText(in.forecast)
	heuristic, factors := scoring.Score(sig, text, in.alerts)

	records, err := s.history.ListAll(ctx)
	if err != nil {
		// Historical store failure degrades to heuristic-only scoring.
		s.logger.Error(ctx, "[PREDICT_HISTORY] Historical record store unavailable", logging.Fields{}, err)
		in.errors = append(in.errors, "historical records unavailable")
		records = nil
	}

	var agg *models.HistoricalAggregate
	if q, ok := matchQuery(sig); ok {
		agg = history.Match(q, records, history.GlobalMatchLimit)
	}
	if agg != nil {
		s.metrics.HistoricalMatches.Observe(float64(agg.MatchCount))
	} else {
		s.metrics.HistoricalMatches.Observe(0)
	}

	prediction := scoring.Blend(heuristic, factors, agg)

	result := &PredictionResult{
		GeneratedAt: time.Now().UTC(),
		Prediction:  prediction,
		Schools:     make([]models.SchoolPrediction, 0, len(s.schools)),
		Errors:      in.errors,
	}

	q, hasSignal := matchQuery(sig)
	for _, school := range s.schools {
		var schoolAgg *models.HistoricalAggregate
		if hasSignal {
			schoolAgg = history.Match(q, history.FilterBySchool(records, school), history.SchoolMatchLimit)
		}
		result.Schools = append(result.Schools, scoring.AdjustForSchool(school, prediction, schoolAgg))
	}

	s.logger.Info(ctx, "[PREDICT_COMPLETE] Prediction generated", logging.Fields{
		"probability": prediction.Probability,
		"tier":        string(prediction.Tier),
		"factors":     len(prediction.Factors),
		"soft_errors": len(result.Errors),
	})

	return result, nil
}

// HistoricalPrediction searches the global record set for the given signal.
func (s *PredictionService) HistoricalPrediction(ctx context.Context, q models.MatchQuery) (*models.HistoricalAggregate, error) {
	records, err := s.history.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return history.Match(q, records, history.GlobalMatchLimit), nil
}

// SchoolHistoricalPrediction searches one school's record subset.
func (s *PredictionService) SchoolHistoricalPrediction(ctx context.Context, school string, q models.MatchQuery) (*models.HistoricalAggregate, error) {
	records, err := s.history.ListBySchool(ctx, school)
	if err != nil {
		return nil, err
	}
	return history.Match(q, records, history.SchoolMatchLimit), nil
}

// matchQuery builds the historical search query from a signal. Without an
// observation there is no temperature to compare on, and the search is
// skipped entirely.
func matchQuery(sig models.WeatherSignal) (models.MatchQuery, bool) {
	if sig.TemperatureF == nil || sig.WindChillF == nil {
		return models.MatchQuery{}, false
	}
	return models.MatchQuery{
		TemperatureF: *sig.TemperatureF,
		FeelsLikeF:   *sig.WindChillF,
		SnowfallIn:   sig.SnowfallIn,
		WeatherType:  string(sig.WeatherType),
	}, true
}
