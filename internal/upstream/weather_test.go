package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

var testMetrics = metrics.NewCollector("upstream_test")

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger("test", "test", logging.FatalLevel)
}

func newTestClient(cfg NWSClientConfig) *NWSClient {
	return NewNWSClient(cfg, testLogger(), testMetrics)
}

func TestCurrentConditions_ConvertsUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/geo+json", r.Header.Get("Accept"))
		w.Write([]byte(`{
			"properties": {
				"temperature": {"value": -10},
				"windSpeed": {"value": 32.18},
				"windDirection": {"value": 90},
				"textDescription": "Light Snow"
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{ObservationURL: server.URL, MaxRetries: 1})

	cond, err := client.CurrentConditions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 14.0, cond.TemperatureF)
	assert.InDelta(t, 20.0, cond.WindMph, 0.01)
	assert.Equal(t, "E", cond.WindDirection)
	assert.Equal(t, "Light Snow", cond.Description)
}

func TestCurrentConditions_NullValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"temperature": {"value": null}, "windSpeed": {"value": null}, "textDescription": ""}}`))
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{ObservationURL: server.URL, MaxRetries: 1})

	cond, err := client.CurrentConditions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, cond.TemperatureF)
	assert.Equal(t, 0.0, cond.WindMph)
}

func TestForecast(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"properties": {
				"periods": [
					{"startTime": "2025-01-15T18:00:00-05:00", "temperature": 20, "windSpeed": "15 mph", "shortForecast": "Heavy Snow", "detailedForecast": "Snow accumulation of 6 to 8 inches.", "isDaytime": false}
				]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{ForecastURL: server.URL, MaxRetries: 1})

	forecast, err := client.Forecast(context.Background())
	require.NoError(t, err)
	require.Len(t, forecast.Periods, 1)
	assert.Equal(t, "Heavy Snow", forecast.Periods[0].ShortForecast)
	assert.Equal(t, 20, forecast.Periods[0].TemperatureF)
	assert.False(t, forecast.Periods[0].IsDaytime)
}

func TestAlerts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"features": [
				{"properties": {"event": "Winter Storm Warning", "severity": "Severe"}},
				{"properties": {"event": "Wind Chill Advisory", "severity": "Moderate"}}
			]
		}`))
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{AlertsURL: server.URL, MaxRetries: 1})

	alerts, err := client.Alerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Winter Storm Warning", alerts[0].Event)
	assert.Equal(t, "Severe", alerts[0].Severity)
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"features": []}`))
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{AlertsURL: server.URL, MaxRetries: 3})

	alerts, err := client.Alerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSON_ExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(NWSClientConfig{AlertsURL: server.URL, MaxRetries: 2, Timeout: time.Second})

	_, err := client.Alerts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestCompassDirection(t *testing.T) {
	assert.Equal(t, "N", compassDirection(0))
	assert.Equal(t, "N", compassDirection(354))
	assert.Equal(t, "E", compassDirection(90))
	assert.Equal(t, "S", compassDirection(180))
	assert.Equal(t, "W", compassDirection(270))
	assert.Equal(t, "NNE", compassDirection(22.5))
}
