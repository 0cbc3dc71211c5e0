// Package history implements similarity retrieval over past weather-outcome
// records: a hand-tuned additive similarity score, nearest-neighbor selection,
// and aggregate disruption statistics.
package history

import (
	"math"
	"sort"
	"strings"

	"snowday-platform/internal/models"
)

// Result-set limits for the global and per-school searches.
const (
	GlobalMatchLimit = 8
	SchoolMatchLimit = 5

	// minSimilarity is the retention threshold; weaker matches carry no signal.
	minSimilarity = 5

	// maxSnowfallGap disqualifies candidates outright: a day with 6 more
	// inches of snow is not comparable no matter how close the temperatures.
	maxSnowfallGap = 5.0

	topMatchDetail = 3
)

// Category buckets a day by its dominant wintry driver.
type Category string

const (
	CategoryIce       Category = "ice"
	CategoryHeavySnow Category = "heavy-snow"
	CategoryLightSnow Category = "light-snow"
	CategoryColdOnly  Category = "cold-only"
)

// Categorize buckets snowfall and weather-type text into a match category.
func Categorize(snowfallIn float64, weatherType string) Category {
	lower := strings.ToLower(weatherType)
	switch {
	case strings.Contains(lower, "ice") || strings.Contains(lower, "freezing"):
		return CategoryIce
	case snowfallIn >= 3:
		return CategoryHeavySnow
	case snowfallIn >= 1 || strings.Contains(lower, "snow") || strings.Contains(lower, "flurries"):
		return CategoryLightSnow
	default:
		return CategoryColdOnly
	}
}

// similarity scores one candidate record against the query. A zero return
// means the candidate is excluded; disqualification by snowfall gap forces
// zero regardless of the other terms.
func similarity(q models.MatchQuery, r models.HistoricalRecord) int {
	if math.Abs(r.SnowfallIn-q.SnowfallIn) > maxSnowfallGap {
		return 0
	}

	score := 0

	qCat := Categorize(q.SnowfallIn, q.WeatherType)
	rCat := Categorize(r.SnowfallIn, r.WeatherType)
	switch {
	case qCat == rCat:
		score += 4
	case (qCat == CategoryColdOnly && rCat == CategoryHeavySnow) ||
		(qCat == CategoryHeavySnow && rCat == CategoryColdOnly):
		// Opposite extremes never compare favorably.
		score -= 6
	default:
		score -= 2
	}

	score += closenessPoints(math.Abs(float64(r.TemperatureF - q.TemperatureF)))
	score += closenessPoints(math.Abs(float64(r.FeelsLikeF - q.FeelsLikeF)))

	switch gap := math.Abs(r.SnowfallIn - q.SnowfallIn); {
	case gap <= 0.5:
		score += 4
	case gap <= 1:
		score += 3
	case gap <= 2:
		score += 2
	case gap <= 3:
		score += 1
	}

	qType := strings.ToLower(strings.TrimSpace(q.WeatherType))
	rType := strings.ToLower(strings.TrimSpace(r.WeatherType))
	if qType != "" && rType != "" {
		if qType == rType {
			score += 2
		} else if strings.Contains(qType, rType) || strings.Contains(rType, qType) {
			score += 1
		}
	}

	return score
}

// closenessPoints awards tiered points for a temperature gap in degrees.
func closenessPoints(gap float64) int {
	switch {
	case gap <= 5:
		return 3
	case gap <= 10:
		return 2
	case gap <= 15:
		return 1
	default:
		return 0
	}
}

// Match searches the record set for the most similar past days and aggregates
// their outcomes. Returns nil when no candidate qualifies; the caller's
// heuristic probability then stands alone.
func Match(q models.MatchQuery, records []models.HistoricalRecord, limit int) *models.HistoricalAggregate {
	if limit <= 0 {
		limit = GlobalMatchLimit
	}

	candidates := make([]models.MatchedRecord, 0, len(records))
	for _, r := range records {
		s := similarity(q, r)
		if s >= minSimilarity {
			candidates = append(candidates, models.MatchedRecord{Record: r, Similarity: s})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	// Stable keeps original record order on similarity ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	agg := &models.HistoricalAggregate{MatchCount: len(candidates)}
	for _, c := range candidates {
		switch c.Record.Status {
		case models.StatusClosed:
			agg.ClosedCount++
		case models.StatusDelay:
			agg.DelayCount++
		}
	}

	n := float64(agg.MatchCount)
	agg.DisruptionRate = int(math.Round(100 * float64(agg.ClosedCount+agg.DelayCount) / n))
	agg.ClosureRate = int(math.Round(100 * float64(agg.ClosedCount) / n))
	agg.DelayRate = int(math.Round(100 * float64(agg.DelayCount) / n))

	detail := len(candidates)
	if detail > topMatchDetail {
		detail = topMatchDetail
	}
	agg.TopMatches = append(agg.TopMatches, candidates[:detail]...)

	return agg
}

// FilterBySchool returns the subset of records belonging to one school,
// preserving order.
func FilterBySchool(records []models.HistoricalRecord, school string) []models.HistoricalRecord {
	out := make([]models.HistoricalRecord, 0, 16)
	for _, r := range records {
		if strings.EqualFold(r.School, school) {
			out = append(out, r)
		}
	}
	return out
}
