package models

import (
	"strings"
	"time"
)

// SchoolStatus is the outcome of a school day.
type SchoolStatus string

const (
	StatusOpen                SchoolStatus = "open"
	StatusDelay               SchoolStatus = "delay"
	StatusClosed              SchoolStatus = "closed"
	StatusEarlyDismissal      SchoolStatus = "early-dismissal"
	StatusFlexibleInstruction SchoolStatus = "flexible-instruction"
)

// NormalizeStatus maps free-text status strings from upstream sources onto the
// canonical SchoolStatus values. The second return is false for strings that
// cannot be mapped; callers skip those rather than guess.
func NormalizeStatus(raw string) (SchoolStatus, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return "", false
	case s == "open" || s == "on time" || s == "normal":
		return StatusOpen, true
	case strings.Contains(s, "flexible") || strings.Contains(s, "virtual") || strings.Contains(s, "remote"):
		return StatusFlexibleInstruction, true
	case strings.Contains(s, "early"):
		return StatusEarlyDismissal, true
	case strings.Contains(s, "delay") || strings.Contains(s, "late start") || strings.Contains(s, "2 hour") || strings.Contains(s, "two hour"):
		return StatusDelay, true
	case strings.Contains(s, "clos") || strings.Contains(s, "cancel"):
		return StatusClosed, true
	default:
		return "", false
	}
}

// IsDisruption reports whether the status is anything other than a normal
// open day.
func (s SchoolStatus) IsDisruption() bool {
	return s != StatusOpen
}

// HistoricalRecord is one past (conditions, outcome) pair for a school.
// Records are append-only and uniquely keyed by (school, date); a second
// write for the same key is a no-op.
type HistoricalRecord struct {
	School       string       `json:"school" db:"school"`
	Date         time.Time    `json:"date" db:"date"`
	Status       SchoolStatus `json:"status" db:"status"`
	TemperatureF int          `json:"temperature_f" db:"temperature_f"`
	FeelsLikeF   int          `json:"feels_like_f" db:"feels_like_f"`
	SnowfallIn   float64      `json:"snowfall_in" db:"snowfall_in"`
	WeatherType  string       `json:"weather_type" db:"weather_type"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Day truncates a timestamp to its calendar date in UTC. Record and log keys
// compare dates, never times.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats a date the way log and record keys store it.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
