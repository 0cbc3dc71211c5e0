package models

import "time"

// CurrentConditions is the latest observation from the upstream weather
// source.
type CurrentConditions struct {
	TemperatureF  float64 `json:"temperature_f"`
	WindMph       float64 `json:"wind_mph"`
	WindDirection string  `json:"wind_direction,omitempty"`
	Description   string  `json:"description,omitempty"`
}

// ForecastPeriod is one entry of the short-range forecast.
type ForecastPeriod struct {
	StartTime        time.Time `json:"start_time"`
	TemperatureF     int       `json:"temperature_f"`
	WindSpeed        string    `json:"wind_speed"`
	ShortForecast    string    `json:"short_forecast"`
	DetailedForecast string    `json:"detailed_forecast"`
	IsDaytime        bool      `json:"is_daytime"`
}

// Forecast is an ordered sequence of forecast periods, nearest first.
type Forecast struct {
	Periods []ForecastPeriod `json:"periods"`
}

// Alert is an active weather alert from the upstream source.
type Alert struct {
	Event    string    `json:"event"`
	Severity string    `json:"severity"`
	Onset    time.Time `json:"onset"`
	Expires  time.Time `json:"expires"`
}

// SchoolStatusReport is the current-day status of one school as observed by
// the status oracle.
type SchoolStatusReport struct {
	Status      string    `json:"status"`
	Source      string    `json:"source"`
	LastChecked time.Time `json:"last_checked"`
}
