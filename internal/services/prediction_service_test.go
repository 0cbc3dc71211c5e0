package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowday-platform/internal/models"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// One collector per test binary; prometheus rejects duplicate registration.
var testMetrics = metrics.NewCollector("services_test")

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger("test", "test", logging.FatalLevel)
}

type fakeWeather struct {
	conditions    *models.CurrentConditions
	forecast      *models.Forecast
	alerts        []models.Alert
	conditionsErr error
	forecastErr   error
	alertsErr     error
}

func (f *fakeWeather) CurrentConditions(ctx context.Context) (*models.CurrentConditions, error) {
	return f.conditions, f.conditionsErr
}

func (f *fakeWeather) Forecast(ctx context.Context) (*models.Forecast, error) {
	return f.forecast, f.forecastErr
}

func (f *fakeWeather) Alerts(ctx context.Context) ([]models.Alert, error) {
	return f.alerts, f.alertsErr
}

type fakeHistoryRepo struct {
	records []models.HistoricalRecord
	listErr error
}

func (f *fakeHistoryRepo) Append(ctx context.Context, rec *models.HistoricalRecord) (bool, error) {
	key := rec.School + models.DateKey(rec.Date)
	for _, r := range f.records {
		if r.School+models.DateKey(r.Date) == key {
			return false, nil
		}
	}
	f.records = append(f.records, *rec)
	return true, nil
}

func (f *fakeHistoryRepo) ListAll(ctx context.Context) ([]models.HistoricalRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.records, nil
}

func (f *fakeHistoryRepo) ListBySchool(ctx context.Context, school string) ([]models.HistoricalRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.HistoricalRecord
	for _, r := range f.records {
		if strings.EqualFold(r.School, school) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) HealthCheck(ctx context.Context) error { return nil }

func snowyWeather() *fakeWeather {
	return &fakeWeather{
		conditions: &models.CurrentConditions{TemperatureF: 18, WindMph: 15},
		forecast: &models.Forecast{
			Periods: []models.ForecastPeriod{
				{ShortForecast: "Heavy Snow", DetailedForecast: "Snow accumulation of 6 to 8 inches expected."},
			},
		},
		alerts: []models.Alert{{Event: "Winter Storm Warning", Severity: "Severe"}},
	}
}

func historicalStormDay(school string, offset int, status models.SchoolStatus) models.HistoricalRecord {
	return models.HistoricalRecord{
		School:       school,
		Date:         time.Date(2024, 1, 10+offset, 0, 0, 0, 0, time.UTC),
		Status:       status,
		TemperatureF: 18,
		FeelsLikeF:   6,
		SnowfallIn:   7,
		WeatherType:  "heavy-snow",
	}
}

func TestPredict_FullPipeline(t *testing.T) {
	repo := &fakeHistoryRepo{records: []models.HistoricalRecord{
		historicalStormDay("parkland-sd", 0, models.StatusClosed),
		historicalStormDay("parkland-sd", 1, models.StatusClosed),
		historicalStormDay("easton-asd", 2, models.StatusDelay),
	}}
	schools := []string{"parkland-sd", "easton-asd"}

	svc := NewPredictionService(snowyWeather(), repo, schools, testLogger(), testMetrics)

	result, err := svc.Predict(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Errors)
	assert.Equal(t, models.TierHigh, result.Prediction.Tier)
	assert.NotEmpty(t, result.Prediction.Factors)
	require.NotNil(t, result.Prediction.Historical)
	assert.Equal(t, 3, result.Prediction.Historical.MatchCount)
	assert.Equal(t, 100, result.Prediction.Historical.DisruptionRate)

	require.Len(t, result.Schools, 2)
	assert.Equal(t, "parkland-sd", result.Schools[0].School)
	assert.Equal(t, "easton-asd", result.Schools[1].School)
	// Parkland has two similar closure days, enough to re-blend.
	require.NotNil(t, result.Schools[0].Historical)
	assert.Equal(t, 2, result.Schools[0].Historical.MatchCount)
}

func TestPredict_WeatherPartiallyUnavailable(t *testing.T) {
	weather := snowyWeather()
	weather.conditionsErr = errors.New("observation endpoint down")

	svc := NewPredictionService(weather, &fakeHistoryRepo{}, []string{"parkland-sd"}, testLogger(), testMetrics)

	result, err := svc.Predict(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Errors, "current conditions unavailable")
	// Forecast signal still scores: heavy snow plus a severe alert.
	assert.GreaterOrEqual(t, result.Prediction.Probability, 40)
	// No observation means no historical search.
	assert.Nil(t, result.Prediction.Historical)
}

func TestPredict_WeatherCompletelyUnavailable(t *testing.T) {
	weather := &fakeWeather{
		conditionsErr: errors.New("down"),
		forecastErr:   errors.New("down"),
		alertsErr:     errors.New("down"),
	}

	svc := NewPredictionService(weather, &fakeHistoryRepo{}, []string{"parkland-sd"}, testLogger(), testMetrics)

	result, err := svc.Predict(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Errors, "weather data completely unavailable; prediction based on school statuses only")
	assert.Equal(t, 0, result.Prediction.Probability)
	assert.Equal(t, models.TierMinimal, result.Prediction.Tier)
}

func TestPredict_HistoryStoreUnavailable(t *testing.T) {
	repo := &fakeHistoryRepo{listErr: errors.New("connection refused")}

	svc := NewPredictionService(snowyWeather(), repo, []string{"parkland-sd"}, testLogger(), testMetrics)

	result, err := svc.Predict(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Errors, "historical records unavailable")
	assert.Nil(t, result.Prediction.Historical)
	// Heuristic scoring still runs.
	assert.Greater(t, result.Prediction.Probability, 0)
}

func TestHistoricalPrediction(t *testing.T) {
	repo := &fakeHistoryRepo{records: []models.HistoricalRecord{
		historicalStormDay("parkland-sd", 0, models.StatusClosed),
		historicalStormDay("easton-asd", 1, models.StatusOpen),
	}}

	svc := NewPredictionService(snowyWeather(), repo, nil, testLogger(), testMetrics)

	q := models.MatchQuery{TemperatureF: 18, FeelsLikeF: 6, SnowfallIn: 7, WeatherType: "heavy-snow"}
	agg, err := svc.HistoricalPrediction(context.Background(), q)
	require.NoError(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, 2, agg.MatchCount)
	assert.Equal(t, 50, agg.DisruptionRate)

	schoolAgg, err := svc.SchoolHistoricalPrediction(context.Background(), "parkland-sd", q)
	require.NoError(t, err)
	require.NotNil(t, schoolAgg)
	assert.Equal(t, 1, schoolAgg.MatchCount)
	assert.Equal(t, 100, schoolAgg.DisruptionRate)
}

func TestHistoricalPrediction_NoMatches(t *testing.T) {
	svc := NewPredictionService(snowyWeather(), &fakeHistoryRepo{}, nil, testLogger(), testMetrics)

	agg, err := svc.HistoricalPrediction(context.Background(), models.MatchQuery{TemperatureF: 60, FeelsLikeF: 60})
	require.NoError(t, err)
	assert.Nil(t, agg)
}

func TestHistoricalPrediction_RepoError(t *testing.T) {
	repo := &fakeHistoryRepo{listErr: fmt.Errorf("boom")}
	svc := NewPredictionService(snowyWeather(), repo, nil, testLogger(), testMetrics)

	_, err := svc.HistoricalPrediction(context.Background(), models.MatchQuery{})
	require.Error(t, err)
}
