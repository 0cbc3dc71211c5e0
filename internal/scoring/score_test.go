package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snowday-platform/internal/models"
)

func intPtr(v int) *int { return &v }

func TestScore_WindChillTiers(t *testing.T) {
	tests := []struct {
		name     string
		chill    int
		expected int
	}{
		{"extreme cold", -12, 40},
		{"extreme cold boundary", -10, 40},
		{"dangerous cold", -5, 25},
		{"dangerous cold boundary", 0, 25},
		{"very cold", 7, 10},
		{"very cold boundary", 10, 10},
		{"merely cold", 11, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := models.WeatherSignal{WindChillF: intPtr(tt.chill)}
			total, _ := Score(sig, "", nil)
			assert.Equal(t, tt.expected, total)
		})
	}
}

func TestScore_NoObservationSkipsColdRules(t *testing.T) {
	total, factors := Score(models.WeatherSignal{}, "", nil)
	assert.Equal(t, 0, total)
	assert.Empty(t, factors)
}

func TestScore_SnowfallTiers(t *testing.T) {
	tests := []struct {
		name     string
		snowfall float64
		expected int
	}{
		{"heavy", 6, 45},
		{"above heavy", 8.5, 45},
		{"significant", 3, 30},
		{"light", 1, 15},
		{"trace", 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := models.WeatherSignal{SnowfallIn: tt.snowfall, SnowfallExplicit: true}
			total, _ := Score(sig, "", nil)
			assert.Equal(t, tt.expected, total)
		})
	}
}

func TestScore_SnowKeywordsOnlyWithoutExplicitAmount(t *testing.T) {
	// Keyword-estimated snowfall scores from the mention rules, not the
	// amount tiers.
	sig := models.WeatherSignal{SnowfallIn: 6, SnowfallExplicit: false}
	total, factors := Score(sig, "Heavy snow expected overnight.", nil)
	assert.Equal(t, 25, total)
	require.Len(t, factors, 1)
	assert.Equal(t, "Heavy snow mentioned in forecast", factors[0].Description)

	// An explicit amount suppresses the mention rules entirely.
	sig = models.WeatherSignal{SnowfallIn: 6, SnowfallExplicit: true}
	total, factors = Score(sig, "Heavy snow, 6 inches expected.", nil)
	assert.Equal(t, 45, total)
	require.Len(t, factors, 1)
	assert.Equal(t, "Heavy snow forecast: 6.0 inches", factors[0].Description)
}

func TestScore_SnowMentionVariants(t *testing.T) {
	total, _ := Score(models.WeatherSignal{}, "Snow likely in the afternoon.", nil)
	assert.Equal(t, 15, total)

	total, _ = Score(models.WeatherSignal{}, "A few flurries possible.", nil)
	assert.Equal(t, 5, total)
}

func TestScore_IceRule(t *testing.T) {
	total, factors := Score(models.WeatherSignal{}, "Freezing rain developing.", nil)
	assert.Equal(t, 35, total)
	require.Len(t, factors, 1)
	assert.Equal(t, "Ice or freezing rain expected", factors[0].Description)
}

func TestScore_AlertSeverity(t *testing.T) {
	tests := []struct {
		severity string
		expected int
	}{
		{"Extreme", 50},
		{"Severe", 40},
		{"Moderate", 25},
		{"Minor", 15},
		{"Unknown", 15},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			alerts := []models.Alert{{Event: "Winter Storm Warning", Severity: tt.severity}}
			total, factors := Score(models.WeatherSignal{}, "", alerts)
			assert.Equal(t, tt.expected, total)
			require.Len(t, factors, 1)
			assert.Contains(t, factors[0].Description, "Winter Storm Warning")
		})
	}
}

func TestScore_NonWinterAlertsIgnored(t *testing.T) {
	alerts := []models.Alert{
		{Event: "Flood Warning", Severity: "Severe"},
		{Event: "Air Quality Alert", Severity: "Moderate"},
	}
	total, factors := Score(models.WeatherSignal{}, "", alerts)
	assert.Equal(t, 0, total)
	assert.Empty(t, factors)
}

func TestScore_RulesAccumulate(t *testing.T) {
	sig := models.WeatherSignal{
		WindChillF:       intPtr(-12),
		SnowfallIn:       7,
		SnowfallExplicit: true,
	}
	total, factors := Score(sig, "Heavy snow, 6 to 8 inches expected.", nil)
	assert.Equal(t, 85, total)
	assert.Len(t, factors, 2)
}

func TestScore_ClampsAtCeiling(t *testing.T) {
	sig := models.WeatherSignal{
		WindChillF:       intPtr(-15),
		SnowfallIn:       10,
		SnowfallExplicit: true,
	}
	alerts := []models.Alert{{Event: "Blizzard Warning", Severity: "Extreme"}}
	total, _ := Score(sig, "Blizzard conditions with freezing rain.", alerts)
	assert.Equal(t, MaxProbability, total)
}

func TestScore_DuplicateAlertFactorsDeduped(t *testing.T) {
	alerts := []models.Alert{
		{Event: "Winter Weather Advisory", Severity: "Minor"},
		{Event: "Winter Weather Advisory", Severity: "Minor"},
	}
	total, factors := Score(models.WeatherSignal{}, "", alerts)
	// Both alerts count toward the total but the factor list shows one.
	assert.Equal(t, 30, total)
	assert.Len(t, factors, 1)
}
