package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/state"
)

// Recommendation is the irrigation advice derived from predictions and weather
type Recommendation struct {
	Action        string  `json:"action"` // "ALLOW_IRRIGATION" or "DELAY_IRRIGATION"
	Reason        string  `json:"reason"`
	Confidence    string  `json:"confidence"`
	PredictedSoil float64 `json:"predicted_soil"`
	WeatherFactor bool    `json:"weather_factor"`
}

// Recommend applies the irrigation decision rules: expected rain delays,
// predicted soil recovery delays, low soil allows, otherwise normal allow.
func Recommend(currentSoil, predictedSoil float64, rainExpected bool, rainProbPct float64, confidence string) Recommendation {
	switch {
	case rainExpected || rainProbPct > 70:
		return Recommendation{
			Action:        "DELAY_IRRIGATION",
			Reason:        "Rain expected soon",
			Confidence:    confidence,
			PredictedSoil: predictedSoil,
			WeatherFactor: true,
		}
	case predictedSoil > currentSoil+5:
		return Recommendation{
			Action:        "DELAY_IRRIGATION",
			Reason:        "Soil moisture predicted to recover",
			Confidence:    confidence,
			PredictedSoil: predictedSoil,
		}
	case currentSoil < 30:
		return Recommendation{
			Action:        "ALLOW_IRRIGATION",
			Reason:        "Low soil moisture detected",
			Confidence:    confidence,
			PredictedSoil: predictedSoil,
		}
	default:
		return Recommendation{
			Action:        "ALLOW_IRRIGATION",
			Reason:        "Normal irrigation conditions",
			Confidence:    confidence,
			PredictedSoil: predictedSoil,
		}
	}
}

// RecommendFromWeather applies the report-time decision rules that use
// weather only, for the scheduled emails sent before sensor data is relevant.
func RecommendFromWeather(rainProbPct, humidity float64, raining bool) Recommendation {
	switch {
	case rainProbPct > 50 || raining:
		return Recommendation{Action: "DELAY_IRRIGATION", Reason: "Not recommended - Rain expected", WeatherFactor: true}
	case rainProbPct <= 30 && humidity < 70:
		return Recommendation{Action: "ALLOW_IRRIGATION", Reason: "Good for irrigation"}
	default:
		return Recommendation{Action: "DELAY_IRRIGATION", Reason: "Not recommended - High humidity or rain chance", WeatherFactor: true}
	}
}

// StatusInput collects everything the periodic status message renders
type StatusInput struct {
	Weather     state.WeatherSnapshot
	Reading     *models.SensorReading
	Online      bool
	LastSeen    time.Time
	Counters    state.DailyCounters
	ModelLoaded bool
	Now         time.Time
}

// RenderStatus builds the periodic farm status message. Sensor values are
// only shown when the device is online; an offline device is reported as such
// with its last-seen time, never with stale values presented as live.
func RenderStatus(in StatusInput) string {
	var b strings.Builder
	b.WriteString("*SMART IRRIGATION UPDATE*\n\n")

	b.WriteString("*Weather (OpenWeather)*\n")
	if in.Weather.FetchedAt.IsZero() {
		b.WriteString("- Status: API unavailable\n\n")
	} else {
		fmt.Fprintf(&b, "- Location: %s\n", in.Weather.City)
		fmt.Fprintf(&b, "- Temperature: %.1f C\n", in.Weather.Temperature)
		fmt.Fprintf(&b, "- Humidity: %.0f%%\n", in.Weather.Humidity)
		fmt.Fprintf(&b, "- Condition: %s\n", in.Weather.Description)
		fmt.Fprintf(&b, "- Rain Probability: %.0f%%\n\n", in.Weather.RainProbPct)
	}

	b.WriteString("*Live Sensors*\n")
	if in.Online && in.Reading != nil {
		b.WriteString("- Status: ONLINE\n")
		fmt.Fprintf(&b, "- Soil Moisture: %.1f%%\n", in.Reading.SoilMoisture)
		fmt.Fprintf(&b, "- Temperature: %.1f C\n", in.Reading.Temperature)
		fmt.Fprintf(&b, "- Humidity: %.1f%%\n", in.Reading.Humidity)
		fmt.Fprintf(&b, "- Light: %.0f%%\n", in.Reading.LightPct)
		if in.Reading.RainDetected {
			b.WriteString("- Rain Detected: Yes\n\n")
		} else {
			b.WriteString("- Rain Detected: No\n\n")
		}
	} else {
		b.WriteString("- Status: OFFLINE\n")
		fmt.Fprintf(&b, "- Last Update: %s\n", formatLastSeen(in.LastSeen, in.Now))
		b.WriteString("- Sensor Values: Not available\n\n")
	}

	b.WriteString("*System Status*\n")
	pump := "OFF"
	mode := "AUTO"
	if in.Reading != nil {
		if in.Reading.PumpStatus {
			pump = "ON"
		}
		mode = strings.ToUpper(string(in.Reading.Mode))
	}
	fmt.Fprintf(&b, "- Pump: %s\n", pump)
	fmt.Fprintf(&b, "- Mode: %s\n", mode)
	fmt.Fprintf(&b, "- Water Used Today: %.1f L\n", in.Counters.WaterLiters)
	if in.ModelLoaded {
		b.WriteString("- Forecast Model: ACTIVE\n\n")
	} else {
		b.WriteString("- Forecast Model: NOT TRAINED\n\n")
	}

	if !in.Weather.FetchedAt.IsZero() && in.Weather.RainProbPct > 60 {
		b.WriteString("*RAIN ALERT*\n")
		fmt.Fprintf(&b, "- High rain probability: %.0f%%\n", in.Weather.RainProbPct)
		b.WriteString("- Recommendation: Skip irrigation\n\n")
	}

	b.WriteString("*Data Sources*\n")
	b.WriteString("- Weather: OpenWeather API\n")
	if in.Online {
		b.WriteString("- Sensors: ESP32 (online)\n")
	} else {
		b.WriteString("- Sensors: ESP32 (offline)\n")
	}

	fmt.Fprintf(&b, "\nReport Time: %s", in.Now.Format("15:04:05 MST"))
	return b.String()
}

// RenderAlert builds one threshold alert message
func RenderAlert(t models.AlertType, value float64) string {
	switch t {
	case models.AlertSoilCritical:
		return fmt.Sprintf("*CRITICAL: Soil moisture at %.1f%%*\nRecommendation: Turn ON pump immediately", value)
	case models.AlertSoilLow:
		return fmt.Sprintf("*Soil moisture low: %.1f%%*\nIrrigation needed soon", value)
	case models.AlertSoilHigh:
		return fmt.Sprintf("*Soil moisture high: %.1f%%*\nRecommendation: Turn OFF pump", value)
	case models.AlertTemperatureHigh:
		return fmt.Sprintf("*High temperature: %.1f C*\nCheck crop stress and water demand", value)
	case models.AlertLightLow:
		return fmt.Sprintf("*Light level low: %.0f%%*", value)
	case models.AlertLightHigh:
		return fmt.Sprintf("*Light level very high: %.0f%%*", value)
	case models.AlertRainExpected:
		return fmt.Sprintf("*Rain expected: %.0f%% probability*\nRecommendation: Skip irrigation", value)
	case models.AlertDeviceOffline:
		return "*Device offline*\nESP32 stopped reporting, sensor values not available"
	case models.AlertPumpChanged:
		if value > 0 {
			return "*Pump turned ON*"
		}
		return "*Pump turned OFF*"
	default:
		return fmt.Sprintf("*Alert: %s (%.1f)*", t, value)
	}
}

// DailyEmailInput collects everything the scheduled report email renders
type DailyEmailInput struct {
	TimeOfDay string // "morning" or "evening"
	Weather   state.WeatherSnapshot
	Decision  Recommendation
	Counters  state.DailyCounters
	AvgSoil   *float64
	Now       time.Time
}

// RenderDailyEmail builds the HTML body for the scheduled weather report
func RenderDailyEmail(in DailyEmailInput) (subject, html string) {
	title := "Morning Weather Report"
	if in.TimeOfDay == "evening" {
		title = "Evening Weather Report"
	}
	subject = fmt.Sprintf("%s - %s", title, in.Now.Format("Jan 2, 2006"))

	status := "No"
	if in.Decision.Action == "ALLOW_IRRIGATION" {
		status = "Yes"
	}

	var rows strings.Builder
	fmt.Fprintf(&rows, "<tr><td>Temperature</td><td>%.1f&deg;C</td></tr>", in.Weather.Temperature)
	fmt.Fprintf(&rows, "<tr><td>Humidity</td><td>%.0f%%</td></tr>", in.Weather.Humidity)
	fmt.Fprintf(&rows, "<tr><td>Condition</td><td>%s</td></tr>", in.Weather.Description)
	fmt.Fprintf(&rows, "<tr><td>Rain Probability</td><td>%.0f%%</td></tr>", in.Weather.RainProbPct)
	if in.AvgSoil != nil {
		fmt.Fprintf(&rows, "<tr><td>Avg Soil Moisture (24h)</td><td>%.1f%%</td></tr>", *in.AvgSoil)
	}
	fmt.Fprintf(&rows, "<tr><td>Pump Cycles Today</td><td>%d on / %d off</td></tr>", in.Counters.PumpOnCount, in.Counters.PumpOffCount)
	fmt.Fprintf(&rows, "<tr><td>Water Used Today</td><td>%.1f L</td></tr>", in.Counters.WaterLiters)

	html = fmt.Sprintf(`<html><body>
<h2>%s - %s</h2>
<p>%s, %s</p>
<table border="0" cellpadding="6">%s</table>
<h3>Irrigation Decision</h3>
<p><strong>Recommended:</strong> %s</p>
<p>%s</p>
</body></html>`,
		title, in.Weather.City,
		in.Now.Format("Monday, January 2, 2006"), in.Now.Format("3:04 PM"),
		rows.String(),
		status, in.Decision.Reason)
	return subject, html
}

func formatLastSeen(lastSeen, now time.Time) string {
	if lastSeen.IsZero() {
		return "never"
	}
	d := now.Sub(lastSeen).Round(time.Second)
	return fmt.Sprintf("%s ago", d)
}
