// Package scoring turns weather signals into delay/closure probabilities: an
// additive heuristic rule engine, a blend against historical match rates, and
// per-school adjustment.
package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"snowday-platform/internal/models"
	"snowday-platform/internal/signal"
)

// Probability ceiling. Full certainty is never reported.
const MaxProbability = 95

// winterAlertRe selects the alert events that count toward the score.
var winterAlertRe = regexp.MustCompile(`(?i)winter|snow|blizzard|ice|freez|chill|cold`)

// Score runs the additive rule table over a day's signal. Each matched rule
// adds its points and appends a factor; rules across categories are
// independent and cumulative. The result is clamped to [0, MaxProbability].
func Score(sig models.WeatherSignal, forecastText string, alerts []models.Alert) (int, []models.ScoringFactor) {
	total := 0
	var factors []models.ScoringFactor

	add := func(points int, description string) {
		total += points
		factors = append(factors, models.ScoringFactor{Description: description, Impact: points})
	}

	for _, a := range alerts {
		if !winterAlertRe.MatchString(a.Event) {
			continue
		}
		points := alertPoints(a.Severity)
		add(points, fmt.Sprintf("Active alert: %s (%s)", a.Event, strings.ToLower(a.Severity)))
	}

	if sig.WindChillF != nil {
		chill := *sig.WindChillF
		switch {
		case chill <= -10:
			add(40, fmt.Sprintf("Extreme cold: wind chill %d°F", chill))
		case chill <= 0:
			add(25, fmt.Sprintf("Dangerous cold: wind chill %d°F", chill))
		case chill <= 10:
			add(10, fmt.Sprintf("Very cold: wind chill %d°F", chill))
		}
	}

	if sig.SnowfallExplicit {
		switch {
		case sig.SnowfallIn >= 6:
			add(45, fmt.Sprintf("Heavy snow forecast: %.1f inches", sig.SnowfallIn))
		case sig.SnowfallIn >= 3:
			add(30, fmt.Sprintf("Significant snow forecast: %.1f inches", sig.SnowfallIn))
		case sig.SnowfallIn >= 1:
			add(15, fmt.Sprintf("Snow forecast: %.1f inches", sig.SnowfallIn))
		}
	}

	if signal.MentionsIce(forecastText) {
		add(35, "Ice or freezing rain expected")
	}

	if !sig.SnowfallExplicit && signal.MentionsSnow(forecastText) {
		lower := strings.ToLower(forecastText)
		switch {
		case strings.Contains(lower, "heavy"):
			add(25, "Heavy snow mentioned in forecast")
		case strings.Contains(lower, "light") || strings.Contains(lower, "flurries"):
			add(5, "Light snow or flurries mentioned in forecast")
		default:
			add(15, "Snow mentioned in forecast")
		}
	}

	return clamp(total), models.DedupeFactors(factors)
}

func alertPoints(severity string) int {
	switch strings.ToLower(severity) {
	case "extreme":
		return 50
	case "severe":
		return 40
	case "moderate":
		return 25
	default:
		return 15
	}
}

func clamp(p int) int {
	if p < 0 {
		return 0
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}
