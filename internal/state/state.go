package state

import (
	"sync"
	"time"

	"github.com/agrisense/irrigation-backend/internal/db/models"
)

// WeatherSnapshot is the last weather observation fetched from the provider.
// Zero-value snapshots mean the provider has not answered yet.
type WeatherSnapshot struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Description string    `json:"description"`
	RainProbPct float64   `json:"rain_probability_pct"`
	WindSpeed   float64   `json:"wind_speed"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// DailyCounters accumulate pump activity since local midnight
type DailyCounters struct {
	PumpOnCount  int       `json:"pump_on_count"`
	PumpOffCount int       `json:"pump_off_count"`
	WaterLiters  float64   `json:"water_liters"`
	Day          time.Time `json:"day"`
}

// SharedState is the in-memory snapshot the HTTP layer and background workers
// read. Each field group has exactly one writer goroutine; the mutex only
// guards against torn reads.
type SharedState struct {
	mu sync.RWMutex

	latest     *models.SensorReading
	lastSeen   time.Time
	weather    WeatherSnapshot
	cooldowns  map[models.AlertType]time.Time
	counters   DailyCounters
	startedAt  time.Time
	manualMode bool
}

// New creates an empty shared state
func New() *SharedState {
	return &SharedState{
		cooldowns: make(map[models.AlertType]time.Time),
		counters:  DailyCounters{Day: truncateDay(time.Now())},
		startedAt: time.Now(),
	}
}

// SetLatestReading records the newest accepted reading and refreshes the
// device-liveness clock. It also rolls the daily counters on pump transitions.
func (s *SharedState) SetLatestReading(r *models.SensorReading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollDayLocked(r.Time)
	if s.latest != nil && s.latest.PumpStatus != r.PumpStatus {
		if r.PumpStatus {
			s.counters.PumpOnCount++
		} else {
			s.counters.PumpOffCount++
		}
	}
	if r.PumpStatus && r.Flow > 0 {
		// flow is liters/min, readings arrive roughly every few seconds so
		// this is an approximation good enough for the daily summary
		s.counters.WaterLiters += r.Flow / 60.0
	}

	cp := *r
	s.latest = &cp
	s.lastSeen = time.Now()
	s.manualMode = r.Mode == models.ModeManual
}

// LatestReading returns a copy of the newest reading, or nil before first ingest
func (s *SharedState) LatestReading() *models.SensorReading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	cp := *s.latest
	return &cp
}

// LastSeen returns when the device last reported
func (s *SharedState) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// DeviceOnline reports whether the device reported within the window
func (s *SharedState) DeviceOnline(window time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastSeen.IsZero() && time.Since(s.lastSeen) < window
}

// SetWeather stores the newest provider snapshot
func (s *SharedState) SetWeather(w WeatherSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather = w
}

// Weather returns the last weather snapshot
func (s *SharedState) Weather() WeatherSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weather
}

// TryFireAlert reports whether an alert of the given type is past its
// cooldown, and arms the cooldown when it is. One call site per alert type
// keeps this race-free in practice; the lock makes it safe regardless.
func (s *SharedState) TryFireAlert(t models.AlertType, cooldown time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.cooldowns[t]
	if ok && time.Since(last) < cooldown {
		return false
	}
	s.cooldowns[t] = time.Now()
	return true
}

// Counters returns a copy of today's counters
func (s *SharedState) Counters() DailyCounters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

// ManualMode reports whether the device is currently in manual control
func (s *SharedState) ManualMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manualMode
}

// Uptime returns time since the state was created
func (s *SharedState) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startedAt)
}

// rollDayLocked resets the counters when the day changes
func (s *SharedState) rollDayLocked(at time.Time) {
	day := truncateDay(at)
	if !day.Equal(s.counters.Day) {
		s.counters = DailyCounters{Day: day}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
