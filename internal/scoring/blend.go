package scoring

import (
	"fmt"
	"math"

	"snowday-platform/internal/models"
)

// Blend weights: the heuristic carries 60%, the historical match rate 40%.
const (
	heuristicWeight  = 0.6
	historicalWeight = 0.4
)

// splitRatio is the tiered delay/closure split applied when no historical
// ratio is available. Higher severity shifts weight toward closure.
type splitRatio struct {
	threshold int
	closure   float64
	delay     float64
}

var splitTable = []splitRatio{
	{70, 0.60, 0.40},
	{55, 0.45, 0.55},
	{40, 0.35, 0.65},
	{0, 0.25, 0.75},
}

// Recommendation strings per tier. The high tier distinguishes whether
// closure or delay is the more likely outcome.
const (
	recommendHighClosure = "Closure likely. Prepare for a full snow day."
	recommendHighDelay   = "Major disruption likely. A delayed start is the most probable outcome."
	recommendModerate    = "Disruption possible. Check district announcements in the morning."
	recommendLow         = "Disruption unlikely, but keep an eye on the forecast."
	recommendMinimal     = "Normal school day expected."
)

// Blend combines a heuristic probability with an optional historical
// aggregate into the final prediction, splits it into delay and closure
// probabilities, and assigns the risk tier.
func Blend(heuristic int, factors []models.ScoringFactor, agg *models.HistoricalAggregate) models.Prediction {
	final := heuristic
	if agg != nil {
		final = round(float64(heuristic)*heuristicWeight + float64(agg.DisruptionRate)*historicalWeight)
		factors = append(factors, models.ScoringFactor{
			Description: fmt.Sprintf("Historical: %d%% disruption rate across %d similar days", agg.DisruptionRate, agg.MatchCount),
			Impact:      round(float64(agg.DisruptionRate) * historicalWeight),
		})
	}
	final = clamp(final)

	delay, closure := split(final, agg)

	p := models.Prediction{
		Probability:        final,
		DelayProbability:   delay,
		ClosureProbability: closure,
		Tier:               models.TierFor(final),
		Factors:            models.DedupeFactors(factors),
		Historical:         agg,
	}
	p.Recommendation = recommendation(p.Tier, closure, delay)
	return p
}

// split divides the final probability between delay and closure. With a
// historical aggregate the observed closure/delay ratio is used; otherwise
// the tiered table keyed on the final probability band.
func split(final int, agg *models.HistoricalAggregate) (delay, closure int) {
	if agg != nil && agg.DisruptionRate > 0 {
		closure = round(float64(final) * float64(agg.ClosureRate) / float64(agg.DisruptionRate))
		delay = round(float64(final) * float64(agg.DelayRate) / float64(agg.DisruptionRate))
		return delay, closure
	}
	for _, r := range splitTable {
		if final >= r.threshold {
			return round(float64(final) * r.delay), round(float64(final) * r.closure)
		}
	}
	return 0, 0
}

func recommendation(tier models.RiskTier, closure, delay int) string {
	switch tier {
	case models.TierHigh:
		if closure > delay {
			return recommendHighClosure
		}
		return recommendHighDelay
	case models.TierModerate:
		return recommendModerate
	case models.TierLow:
		return recommendLow
	default:
		return recommendMinimal
	}
}

// minSchoolMatches is the sample-size floor below which a school inherits the
// global probabilities unchanged.
const minSchoolMatches = 2

// AdjustForSchool re-blends the global prediction 60/40 with one school's own
// historical delay/closure rates, and recomputes the tier from the larger of
// the two adjusted probabilities.
func AdjustForSchool(school string, global models.Prediction, agg *models.HistoricalAggregate) models.SchoolPrediction {
	sp := models.SchoolPrediction{
		School:             school,
		DelayProbability:   global.DelayProbability,
		ClosureProbability: global.ClosureProbability,
		Historical:         agg,
	}

	if agg != nil && agg.MatchCount >= minSchoolMatches {
		sp.DelayProbability = round(float64(global.DelayProbability)*heuristicWeight + float64(agg.DelayRate)*historicalWeight)
		sp.ClosureProbability = round(float64(global.ClosureProbability)*heuristicWeight + float64(agg.ClosureRate)*historicalWeight)
	}

	peak := sp.DelayProbability
	if sp.ClosureProbability > peak {
		peak = sp.ClosureProbability
	}
	sp.Tier = models.TierFor(peak)
	return sp
}

func round(v float64) int {
	return int(math.Round(v))
}
