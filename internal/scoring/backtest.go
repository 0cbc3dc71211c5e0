package scoring

import (
	"fmt"
	"strings"

	"snowday-platform/internal/models"
)

// DisruptionThreshold is the probability at or above which a prediction
// counts as "disruption expected" for accuracy tracking.
const DisruptionThreshold = 40

// SimulateFromRecord re-runs the heuristic scorer against a stored historical
// record. Alert data is not preserved in records, so the alert contribution
// is estimated from snowfall and wind-chill severity bands. Results are an
// approximation and must only feed entries labeled source=backtest.
func SimulateFromRecord(rec models.HistoricalRecord) (int, []models.ScoringFactor) {
	total := 0
	var factors []models.ScoringFactor

	add := func(points int, description string) {
		total += points
		factors = append(factors, models.ScoringFactor{Description: description, Impact: points})
	}

	// Estimated alert contribution: conditions severe enough that a winter
	// storm warning or wind chill warning would almost certainly have been in
	// effect.
	switch {
	case rec.SnowfallIn >= 6 || rec.FeelsLikeF <= -10:
		add(40, "Estimated alert: severe winter conditions")
	case rec.SnowfallIn >= 3 || rec.FeelsLikeF <= 0:
		add(25, "Estimated alert: moderate winter conditions")
	}

	switch {
	case rec.FeelsLikeF <= -10:
		add(40, fmt.Sprintf("Extreme cold: wind chill %d°F", rec.FeelsLikeF))
	case rec.FeelsLikeF <= 0:
		add(25, fmt.Sprintf("Dangerous cold: wind chill %d°F", rec.FeelsLikeF))
	case rec.FeelsLikeF <= 10:
		add(10, fmt.Sprintf("Very cold: wind chill %d°F", rec.FeelsLikeF))
	}

	switch {
	case rec.SnowfallIn >= 6:
		add(45, fmt.Sprintf("Heavy snow forecast: %.1f inches", rec.SnowfallIn))
	case rec.SnowfallIn >= 3:
		add(30, fmt.Sprintf("Significant snow forecast: %.1f inches", rec.SnowfallIn))
	case rec.SnowfallIn >= 1:
		add(15, fmt.Sprintf("Snow forecast: %.1f inches", rec.SnowfallIn))
	}

	lower := strings.ToLower(rec.WeatherType)
	if strings.Contains(lower, "ice") || strings.Contains(lower, "freezing") {
		add(35, "Ice or freezing rain expected")
	}

	return clamp(total), models.DedupeFactors(factors)
}
