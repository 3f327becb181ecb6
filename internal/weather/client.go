package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Client fetches current conditions and rain probability from OpenWeather.
// All methods are safe for concurrent use.
type Client struct {
	cfg     config.WeatherConfig
	baseURL string
	http    *http.Client
	logger  *utils.Logger
}

// NewClient creates an OpenWeather client
func NewClient(cfg config.WeatherConfig, logger *utils.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("weather"),
	}
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

type currentResponse struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Name string `json:"name"`
}

type forecastResponse struct {
	List []struct {
		Pop  float64 `json:"pop"`
		Rain struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

// Fetch retrieves current conditions plus the near-term rain probability.
// The probability is the maximum precipitation chance over the next four
// forecast slots (about 12 hours).
func (c *Client) Fetch(ctx context.Context) (state.WeatherSnapshot, error) {
	var snap state.WeatherSnapshot
	if !c.Enabled() {
		return snap, fmt.Errorf("%w: weather provider not configured", utils.ErrProvider)
	}

	var cur currentResponse
	if err := c.get(ctx, "/weather", &cur); err != nil {
		return snap, err
	}

	snap = state.WeatherSnapshot{
		City:        cur.Name,
		Temperature: cur.Main.Temp,
		Humidity:    cur.Main.Humidity,
		WindSpeed:   cur.Wind.Speed,
		FetchedAt:   time.Now().UTC(),
	}
	if len(cur.Weather) > 0 {
		snap.Description = cur.Weather[0].Description
	}

	// Forecast failures degrade to current conditions only
	var fc forecastResponse
	if err := c.get(ctx, "/forecast", &fc); err != nil {
		c.logger.Warn("Forecast fetch failed, rain probability unavailable", zap.Error(err))
		return snap, nil
	}
	for i, slot := range fc.List {
		if i >= 4 {
			break
		}
		if pct := slot.Pop * 100; pct > snap.RainProbPct {
			snap.RainProbPct = pct
		}
	}
	return snap, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	q := url.Values{}
	q.Set("q", c.cfg.City)
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build weather request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: weather request failed: %v", utils.ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: weather provider returned %d: %s", utils.ErrProvider, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode weather response: %v", utils.ErrProvider, err)
	}
	return nil
}
