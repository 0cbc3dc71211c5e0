package models

import "time"

// WeatherType is the dominant weather category of a day's signal.
type WeatherType string

const (
	WeatherIce       WeatherType = "ice"
	WeatherHeavySnow WeatherType = "heavy-snow"
	WeatherSnow      WeatherType = "snow"
	WeatherFrigid    WeatherType = "frigid-temperature"
	WeatherWind      WeatherType = "wind"
	WeatherNone      WeatherType = "none"
)

// WeatherSignal is the normalized view of current conditions and short-range
// forecast text. Derived, never persisted. Missing upstream inputs leave the
// pointer fields nil and the numeric fields zero.
type WeatherSignal struct {
	TemperatureF     *int        `json:"temperature_f"`
	WindChillF       *int        `json:"wind_chill_f"`
	SnowfallIn       float64     `json:"snowfall_in"`
	SnowfallExplicit bool        `json:"snowfall_explicit"`
	WeatherType      WeatherType `json:"weather_type"`
}

// ScoringFactor is one contribution to a heuristic score. Order matters for
// display; duplicates by description are dropped, first occurrence wins.
type ScoringFactor struct {
	Description string `json:"description"`
	Impact      int    `json:"impact"`
}

// DedupeFactors removes factors with repeated descriptions, keeping the first
// occurrence and its original impact.
func DedupeFactors(factors []ScoringFactor) []ScoringFactor {
	seen := make(map[string]bool, len(factors))
	out := factors[:0]
	for _, f := range factors {
		if seen[f.Description] {
			continue
		}
		seen[f.Description] = true
		out = append(out, f)
	}
	return out
}

// RiskTier buckets a probability into a categorical severity level.
type RiskTier string

const (
	TierMinimal  RiskTier = "minimal"
	TierLow      RiskTier = "low"
	TierModerate RiskTier = "moderate"
	TierHigh     RiskTier = "high"
)

// TierFor maps a final probability onto its risk tier.
func TierFor(probability int) RiskTier {
	switch {
	case probability >= 70:
		return TierHigh
	case probability >= 40:
		return TierModerate
	case probability >= 15:
		return TierLow
	default:
		return TierMinimal
	}
}

// MatchQuery is the current-day signal used to search historical records.
type MatchQuery struct {
	TemperatureF int
	FeelsLikeF   int
	SnowfallIn   float64
	WeatherType  string
}

// MatchedRecord pairs a historical record with its similarity score.
type MatchedRecord struct {
	Record     HistoricalRecord `json:"record"`
	Similarity int              `json:"similarity"`
}

// HistoricalAggregate summarizes the outcomes of the best historical matches.
// Rates are whole percentages over MatchCount.
type HistoricalAggregate struct {
	MatchCount     int             `json:"match_count"`
	ClosedCount    int             `json:"closed_count"`
	DelayCount     int             `json:"delay_count"`
	DisruptionRate int             `json:"disruption_rate"`
	ClosureRate    int             `json:"closure_rate"`
	DelayRate      int             `json:"delay_rate"`
	TopMatches     []MatchedRecord `json:"top_matches,omitempty"`
}

// Prediction is the district-wide result of one scoring run.
type Prediction struct {
	Probability        int                  `json:"probability"`
	DelayProbability   int                  `json:"delay_probability"`
	ClosureProbability int                  `json:"closure_probability"`
	Tier               RiskTier             `json:"tier"`
	Recommendation     string               `json:"recommendation"`
	Factors            []ScoringFactor      `json:"factors"`
	Historical         *HistoricalAggregate `json:"historical,omitempty"`
}

// SchoolPrediction is a Prediction re-blended against one school's own
// historical record subset.
type SchoolPrediction struct {
	School             string               `json:"school"`
	DelayProbability   int                  `json:"delay_probability"`
	ClosureProbability int                  `json:"closure_probability"`
	Tier               RiskTier             `json:"tier"`
	Historical         *HistoricalAggregate `json:"historical,omitempty"`
}

// Prediction log entry sources.
const (
	SourceLive     = "live"
	SourceBacktest = "backtest"
)

// PredictionLogEntry is one logged prediction awaiting (or holding) its
// resolution against the observed outcome. An entry is mutated exactly once:
// ActualStatus transitions nil to a value and Correct is computed then.
type PredictionLogEntry struct {
	Date                time.Time     `json:"date" db:"date"`
	School              string        `json:"school" db:"school"`
	DelayProbability    int           `json:"delay_probability" db:"delay_probability"`
	ClosureProbability  int           `json:"closure_probability" db:"closure_probability"`
	PredictedDisruption bool          `json:"predicted_disruption" db:"predicted_disruption"`
	ActualStatus        *SchoolStatus `json:"actual_status,omitempty" db:"actual_status"`
	Correct             *bool         `json:"correct,omitempty" db:"correct"`
	Source              string        `json:"source" db:"source"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	ResolvedAt          *time.Time    `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Resolved reports whether the entry has reached its terminal state.
func (e *PredictionLogEntry) Resolved() bool {
	return e.ActualStatus != nil
}

// AccuracyReport summarizes prediction performance over the most recent
// resolved log entries.
type AccuracyReport struct {
	Total            int    `json:"total"`
	Correct          int    `json:"correct"`
	Accuracy         int    `json:"accuracy"`
	Status           string `json:"status"`
	Streak           int    `json:"streak"`
	PendingCount     int    `json:"pending_count"`
	TotalResolved    int    `json:"total_resolved"`
	LiveResolved     int    `json:"live_resolved"`
	LiveCorrect      int    `json:"live_correct"`
	BacktestResolved int    `json:"backtest_resolved"`
	BacktestCorrect  int    `json:"backtest_correct"`
}
