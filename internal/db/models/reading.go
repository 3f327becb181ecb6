package models

import (
	"time"
)

// Mode is the irrigation control mode reported by the device
type Mode string

const (
	// ModeAuto device decides pump state from its own thresholds
	ModeAuto Mode = "auto"
	// ModeManual pump state is operator controlled
	ModeManual Mode = "manual"
)

// Source identifies where a reading originated
type Source string

const (
	SourceESP32      Source = "esp32"
	SourceSimulation Source = "simulation"
	SourceTest       Source = "test"
)

// SensorReading is one normalized sample from a device. Percentages are
// clamped to [0,100] before persistence; rows are append-only.
type SensorReading struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	Time         time.Time `gorm:"type:timestamptz;index;not null" json:"timestamp"`
	SoilMoisture float64   `gorm:"column:soil_moisture;not null" json:"soil_moisture_pct"`
	Temperature  float64   `gorm:"column:temperature" json:"temperature_c"`
	Humidity     float64   `gorm:"column:humidity" json:"humidity_pct"`
	RainPct      float64   `gorm:"column:rain_pct" json:"rain_pct"`
	LightPct     float64   `gorm:"column:light_pct" json:"light_pct"`
	Flow         float64   `gorm:"column:flow" json:"flow_rate"`
	PumpStatus   bool      `gorm:"column:pump_status" json:"pump_status"`
	Mode         Mode      `gorm:"type:varchar(10);default:'auto'" json:"mode"`
	RainDetected bool      `gorm:"column:rain_detected" json:"rain_detected"`
	Source       Source    `gorm:"type:varchar(20);default:'esp32'" json:"source"`
}

// TableName overrides the table name for SensorReading
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// ExogenousValues returns the reading's values for the named exogenous
// columns, in order. The bool is false when a column is unknown.
func (r *SensorReading) ExogenousValues(cols []string) ([]float64, bool) {
	vals := make([]float64, 0, len(cols))
	for _, c := range cols {
		switch c {
		case "temperature":
			vals = append(vals, r.Temperature)
		case "humidity":
			vals = append(vals, r.Humidity)
		case "rain_pct":
			vals = append(vals, r.RainPct)
		case "light_pct":
			vals = append(vals, r.LightPct)
		case "flow":
			vals = append(vals, r.Flow)
		default:
			return nil, false
		}
	}
	return vals, true
}
