package models

import (
	"time"
)

// AlertType identifies a threshold alert category. Each type carries its own
// send cooldown.
type AlertType string

const (
	AlertSoilLow         AlertType = "soil_low"
	AlertSoilCritical    AlertType = "soil_critical"
	AlertSoilHigh        AlertType = "soil_high"
	AlertTemperatureHigh AlertType = "temperature_high"
	AlertLightLow        AlertType = "light_low"
	AlertLightHigh       AlertType = "light_high"
	AlertRainExpected    AlertType = "rain_expected"
	AlertPumpChanged     AlertType = "pump_changed"
	AlertDeviceOffline   AlertType = "device_offline"
)

// AlertEvent is one alert that was actually dispatched to a sink
type AlertEvent struct {
	ID      uint      `gorm:"primarykey" json:"id"`
	Time    time.Time `gorm:"type:timestamptz;index;not null" json:"time"`
	Type    AlertType `gorm:"type:varchar(30);index;not null" json:"type"`
	Value   float64   `json:"value"`
	Message string    `json:"message"`
	Sink    string    `gorm:"type:varchar(20)" json:"sink"` // "telegram", "email"
}

// TableName overrides the table name for AlertEvent
func (AlertEvent) TableName() string {
	return "alert_events"
}
