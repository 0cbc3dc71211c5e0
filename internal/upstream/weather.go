// Package upstream holds the collaborators the prediction core consumes:
// the weather-data fetcher and the school status oracle, both behind
// interfaces so the core can be tested against fakes.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"snowday-platform/internal/models"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// WeatherClient fetches weather inputs for the prediction pipeline.
type WeatherClient interface {
	CurrentConditions(ctx context.Context) (*models.CurrentConditions, error)
	Forecast(ctx context.Context) (*models.Forecast, error)
	Alerts(ctx context.Context) ([]models.Alert, error)
}

// StatusSource reports the current-day status of each school, keyed by school
// code. It is treated as an oracle of ground truth; how it observes statuses
// is out of scope here.
type StatusSource interface {
	SchoolStatuses(ctx context.Context) (map[string]models.SchoolStatusReport, error)
}

// NWSClientConfig points the client at the weather.gov endpoints for one
// location.
type NWSClientConfig struct {
	ObservationURL string
	ForecastURL    string
	AlertsURL      string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
}

// NWSClient implements WeatherClient against the National Weather Service
// API.
type NWSClient struct {
	cfg     NWSClientConfig
	client  *http.Client
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewNWSClient creates a weather.gov API client.
func NewNWSClient(cfg NWSClientConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *NWSClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &NWSClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
		metrics: metricsCollector,
	}
}

// nwsObservation mirrors the fields of a weather.gov latest-observation
// response this service reads. Values arrive metric.
type nwsObservation struct {
	Properties struct {
		Temperature struct {
			Value *float64 `json:"value"`
		} `json:"temperature"`
		WindSpeed struct {
			Value *float64 `json:"value"`
		} `json:"windSpeed"`
		WindDirection struct {
			Value *float64 `json:"value"`
		} `json:"windDirection"`
		TextDescription string `json:"textDescription"`
	} `json:"properties"`
}

type nwsForecast struct {
	Properties struct {
		Periods []struct {
			StartTime        time.Time `json:"startTime"`
			Temperature      int       `json:"temperature"`
			WindSpeed        string    `json:"windSpeed"`
			ShortForecast    string    `json:"shortForecast"`
			DetailedForecast string    `json:"detailedForecast"`
			IsDaytime        bool      `json:"isDaytime"`
		} `json:"periods"`
	} `json:"properties"`
}

type nwsAlerts struct {
	Features []struct {
		Properties struct {
			Event    string    `json:"event"`
			Severity string    `json:"severity"`
			Onset    time.Time `json:"onset"`
			Expires  time.Time `json:"expires"`
		} `json:"properties"`
	} `json:"features"`
}

// CurrentConditions fetches the latest observation.
func (c *NWSClient) CurrentConditions(ctx context.Context) (*models.CurrentConditions, error) {
	var obs nwsObservation
	if err := c.getJSON(ctx, "conditions", c.cfg.ObservationURL, &obs); err != nil {
		return nil, err
	}

	cond := &models.CurrentConditions{Description: obs.Properties.TextDescription}
	if obs.Properties.Temperature.Value != nil {
		cond.TemperatureF = celsiusToFahrenheit(*obs.Properties.Temperature.Value)
	}
	if obs.Properties.WindSpeed.Value != nil {
		cond.WindMph = kmhToMph(*obs.Properties.WindSpeed.Value)
	}
	if obs.Properties.WindDirection.Value != nil {
		cond.WindDirection = compassDirection(*obs.Properties.WindDirection.Value)
	}
	return cond, nil
}

// Forecast fetches the short-range forecast periods.
func (c *NWSClient) Forecast(ctx context.Context) (*models.Forecast, error) {
	var fc nwsForecast
	if err := c.getJSON(ctx, "forecast", c.cfg.ForecastURL, &fc); err != nil {
		return nil, err
	}

	out := &models.Forecast{Periods: make([]models.ForecastPeriod, 0, len(fc.Properties.Periods))}
	for _, p := range fc.Properties.Periods {
		out.Periods = append(out.Periods, models.ForecastPeriod{
			StartTime:        p.StartTime,
			TemperatureF:     p.Temperature,
			WindSpeed:        p.WindSpeed,
			ShortForecast:    p.ShortForecast,
			DetailedForecast: p.DetailedForecast,
			IsDaytime:        p.IsDaytime,
		})
	}
	return out, nil
}

// Alerts fetches the active alerts for the configured zone.
func (c *NWSClient) Alerts(ctx context.Context) ([]models.Alert, error) {
	var al nwsAlerts
	if err := c.getJSON(ctx, "alerts", c.cfg.AlertsURL, &al); err != nil {
		return nil, err
	}

	alerts := make([]models.Alert, 0, len(al.Features))
	for _, f := range al.Features {
		alerts = append(alerts, models.Alert{
			Event:    f.Properties.Event,
			Severity: f.Properties.Severity,
			Onset:    f.Properties.Onset,
			Expires:  f.Properties.Expires,
		})
	}
	return alerts, nil
}

// getJSON fetches a URL with bounded retries and decodes the JSON body.
// Backoff starts at 200ms and doubles per attempt.
func (c *NWSClient) getJSON(ctx context.Context, source, url string, dest interface{}) error {
	timer := time.Now()
	defer func() {
		c.metrics.UpstreamFetchDuration.WithLabelValues(source).Observe(time.Since(timer).Seconds())
	}()

	backoff := 200 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		lastErr = c.fetchOnce(ctx, url, dest)
		if lastErr == nil {
			return nil
		}

		c.logger.Warn(ctx, "[UPSTREAM_RETRY] Fetch attempt failed", logging.Fields{
			"source":  source,
			"attempt": attempt + 1,
			"error":   lastErr.Error(),
		})
	}

	c.metrics.RecordFetchError(source)
	return fmt.Errorf("fetch %s: %w", source, lastErr)
}

func (c *NWSClient) fetchOnce(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/geo+json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func kmhToMph(kmh float64) float64 {
	return kmh * 0.621371
}

// compassDirection converts degrees to a 16-point compass label.
func compassDirection(degrees float64) string {
	dirs := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	idx := int((degrees+11.25)/22.5) % len(dirs)
	if idx < 0 {
		idx += len(dirs)
	}
	return dirs[idx]
}
