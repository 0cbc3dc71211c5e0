package signal

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"snowday-platform/internal/models"
)

var (
	// snowAmountRe matches explicit snowfall amounts in forecast prose, with an
	// optional range: "6 to 8 inches", "around 3 inches", "1 inch".
	snowAmountRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:to\s+(\d+(?:\.\d+)?)\s*)?inch(?:es)?`)

	// iceRe matches icy precipitation on word boundaries so "ice" never fires
	// on words like "nice" or "service".
	iceRe = regexp.MustCompile(`(?i)\b(?:ice|icy|freezing rain|freezing drizzle|sleet|wintry mix)\b`)
)

// WindChill returns the perceived temperature for the given observation,
// rounded to the nearest degree. The NWS empirical formula only applies at or
// below 50°F with wind above 3 mph; outside that range the air temperature
// stands.
func WindChill(temperatureF, windMph float64) int {
	if temperatureF > 50 || windMph <= 3 {
		return int(math.Round(temperatureF))
	}
	v := math.Pow(windMph, 0.16)
	chill := 35.74 + 0.6215*temperatureF - 35.75*v + 0.4275*temperatureF*v
	return int(math.Round(chill))
}

// ParseSnowfall mines forecast prose for a snowfall estimate in inches.
// An explicit "N [to M] inch(es)" amount wins, taking the upper bound of a
// range. Without one, descriptive keywords map to bucket estimates. The
// second return reports whether the amount was explicit.
func ParseSnowfall(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}

	if m := snowAmountRe.FindStringSubmatch(text); m != nil {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			if m[2] != "" {
				if upper, err := strconv.ParseFloat(m[2], 64); err == nil && upper > amount {
					amount = upper
				}
			}
			return amount, true
		}
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "heavy snow") || strings.Contains(lower, "blizzard"):
		return 6, false
	case strings.Contains(lower, "moderate snow"):
		return 3, false
	case strings.Contains(lower, "light snow"):
		return 1.5, false
	case strings.Contains(lower, "snow shower"):
		return 1, false
	case strings.Contains(lower, "flurries") || strings.Contains(lower, "dusting"):
		return 0.5, false
	default:
		return 0, false
	}
}

// MentionsIce reports whether forecast prose mentions icy precipitation.
func MentionsIce(text string) bool {
	return iceRe.MatchString(text)
}

// MentionsSnow reports whether forecast prose mentions snow or flurries.
func MentionsSnow(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "snow") || strings.Contains(lower, "flurries")
}

// ClassifyWeatherType buckets a day's signal into its dominant category,
// evaluated in strict priority order: ice beats heavy snow by amount, which
// beats heavy snow by keyword, then snow, frigid wind chill, wind, none.
func ClassifyWeatherType(forecastText string, snowfallIn float64, windChillF int, windMph float64) models.WeatherType {
	lower := strings.ToLower(forecastText)

	switch {
	case MentionsIce(forecastText):
		return models.WeatherIce
	case snowfallIn >= 6:
		return models.WeatherHeavySnow
	case strings.Contains(lower, "heavy snow") || strings.Contains(lower, "blizzard"):
		return models.WeatherHeavySnow
	case MentionsSnow(forecastText):
		return models.WeatherSnow
	case windChillF <= 0:
		return models.WeatherFrigid
	case windMph >= 25 || strings.Contains(lower, "high wind") || strings.Contains(lower, "damaging wind"):
		return models.WeatherWind
	default:
		return models.WeatherNone
	}
}

// ForecastText concatenates the prose of the next few forecast periods.
// Four periods cover roughly the window between an evening prediction run and
// the following school morning.
func ForecastText(forecast *models.Forecast) string {
	if forecast == nil {
		return ""
	}
	periods := forecast.Periods
	if len(periods) > 4 {
		periods = periods[:4]
	}
	var b strings.Builder
	for _, p := range periods {
		b.WriteString(p.ShortForecast)
		b.WriteString(" ")
		b.WriteString(p.DetailedForecast)
		b.WriteString(" ")
	}
	return b.String()
}

// Extract derives the normalized WeatherSignal from an observation and
// short-range forecast. Either input may be nil; the missing pieces simply
// carry no signal.
func Extract(conditions *models.CurrentConditions, forecast *models.Forecast) models.WeatherSignal {
	var sig models.WeatherSignal

	text := ForecastText(forecast)
	sig.SnowfallIn, sig.SnowfallExplicit = ParseSnowfall(text)

	var windMph float64
	if conditions != nil {
		temp := int(math.Round(conditions.TemperatureF))
		chill := WindChill(conditions.TemperatureF, conditions.WindMph)
		sig.TemperatureF = &temp
		sig.WindChillF = &chill
		windMph = conditions.WindMph
	}

	chill := 99 // no observation means the frigid branch can never trigger
	if sig.WindChillF != nil {
		chill = *sig.WindChillF
	}
	sig.WeatherType = ClassifyWeatherType(text, sig.SnowfallIn, chill, windMph)

	return sig
}
