package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/assistants/logging"
)

// Open-Meteo endpoints. Neither requires an API key.
const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// ErrLocationNotFound is returned when geocoding yields no match.
var ErrLocationNotFound = errors.New("location not found")

// Units selects metric (°C, km/h) or imperial (°F, mph) values.
type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

// ParseUnits maps free-form input to Units, defaulting to Metric.
func ParseUnits(s string) Units {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "imperial", "fahrenheit", "f", "us":
		return Imperial
	default:
		return Metric
	}
}

// TemperatureSymbol returns °C or °F.
func (u Units) TemperatureSymbol() string {
	if u == Imperial {
		return "°F"
	}
	return "°C"
}

// SpeedSymbol returns km/h or mph.
func (u Units) SpeedSymbol() string {
	if u == Imperial {
		return "mph"
	}
	return "km/h"
}

func (u Units) query(q url.Values) {
	if u == Imperial {
		q.Set("temperature_unit", "fahrenheit")
		q.Set("wind_speed_unit", "mph")
		q.Set("precipitation_unit", "inch")
	} else {
		q.Set("temperature_unit", "celsius")
		q.Set("wind_speed_unit", "kmh")
	}
}

// PrecipitationSymbol returns mm or in.
func (u Units) PrecipitationSymbol() string {
	if u == Imperial {
		return "in"
	}
	return "mm"
}

// Location is a geocoded place.
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
}

// DisplayName is "Name, Country".
func (l Location) DisplayName() string {
	if l.Country == "" {
		return l.Name
	}
	return l.Name + ", " + l.Country
}

// Current holds the current conditions at a location.
type Current struct {
	Time                string  `json:"time"`
	Temperature         float64 `json:"temperature_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	Humidity            float64 `json:"relative_humidity_2m"`
	Precipitation       float64 `json:"precipitation"`
	WeatherCode         int     `json:"weather_code"`
	CloudCover          float64 `json:"cloud_cover"`
	WindSpeed           float64 `json:"wind_speed_10m"`
	WindDirection       float64 `json:"wind_direction_10m"`
}

// Day is one day of a forecast.
type Day struct {
	Date                     string
	TemperatureMax           float64
	TemperatureMin           float64
	PrecipitationSum         float64
	PrecipitationProbability float64
	WeatherCode              int
	WindSpeedMax             float64
}

// ClientOptions configures a Client.
type ClientOptions struct {
	GeocodingURL string
	ForecastURL  string
	HTTPClient   *http.Client
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls; zero disables throttling.
	RequestsPerSecond float64
	Logger            logging.Logger
}

// Client talks to the Open-Meteo geocoding and forecast APIs.
type Client struct {
	geocodingURL string
	forecastURL  string
	httpClient   *http.Client
	timeout      time.Duration
	limiter      *rate.Limiter
	logger       logging.Logger
}

// NewClient creates a Client.
func NewClient(optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		GeocodingURL: DefaultGeocodingURL,
		ForecastURL:  DefaultForecastURL,
		HTTPClient:   http.DefaultClient,
		Timeout:      10 * time.Second,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		geocodingURL: opts.GeocodingURL,
		forecastURL:  opts.ForecastURL,
		httpClient:   opts.HTTPClient,
		timeout:      opts.Timeout,
		limiter:      limiter,
		logger:       opts.Logger,
	}
}

type geocodingResponse struct {
	Results []Location `json:"results"`
}

// Geocode resolves a place name to coordinates.
func (c *Client) Geocode(ctx context.Context, name string) (*Location, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var resp geocodingResponse
	if err := c.get(ctx, c.geocodingURL, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to geocode location: %w", err)
	}

	if len(resp.Results) == 0 {
		c.logger.Debug("weather.geocode.miss", "location", name)
		return nil, fmt.Errorf("%w: '%s'", ErrLocationNotFound, name)
	}

	loc := resp.Results[0]
	if loc.Timezone == "" {
		loc.Timezone = "UTC"
	}

	return &loc, nil
}

type currentResponse struct {
	Current *Current `json:"current"`
}

// Current fetches current conditions.
func (c *Client) Current(ctx context.Context, loc *Location, units Units) (*Current, error) {
	q := coordinates(loc)
	q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,cloud_cover,wind_speed_10m,wind_direction_10m")
	units.query(q)

	var resp currentResponse
	if err := c.get(ctx, c.forecastURL, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch weather data: %w", err)
	}

	if resp.Current == nil {
		return nil, errors.New("unexpected API response format: missing current block")
	}

	return resp.Current, nil
}

type dailyResponse struct {
	Daily *struct {
		Time                     []string  `json:"time"`
		TemperatureMax           []float64 `json:"temperature_2m_max"`
		TemperatureMin           []float64 `json:"temperature_2m_min"`
		PrecipitationSum         []float64 `json:"precipitation_sum"`
		PrecipitationProbability []float64 `json:"precipitation_probability_max"`
		WeatherCode              []int     `json:"weather_code"`
		WindSpeedMax             []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Forecast fetches a daily forecast of 1 to 16 days.
func (c *Client) Forecast(ctx context.Context, loc *Location, days int, units Units) ([]Day, error) {
	q := coordinates(loc)
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,weather_code,wind_speed_10m_max")
	q.Set("forecast_days", strconv.Itoa(ClampDays(days)))
	units.query(q)

	var resp dailyResponse
	if err := c.get(ctx, c.forecastURL, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch forecast data: %w", err)
	}

	d := resp.Daily
	if d == nil {
		return nil, errors.New("unexpected API response format: missing daily block")
	}

	at := func(xs []float64, i int) float64 {
		if i < len(xs) {
			return xs[i]
		}
		return 0
	}

	out := make([]Day, 0, len(d.Time))

	for i, date := range d.Time {
		day := Day{
			Date:                     date,
			TemperatureMax:           at(d.TemperatureMax, i),
			TemperatureMin:           at(d.TemperatureMin, i),
			PrecipitationSum:         at(d.PrecipitationSum, i),
			PrecipitationProbability: at(d.PrecipitationProbability, i),
			WindSpeedMax:             at(d.WindSpeedMax, i),
		}

		if i < len(d.WeatherCode) {
			day.WeatherCode = d.WeatherCode[i]
		}

		out = append(out, day)
	}

	return out, nil
}

// ClampDays bounds a forecast length to what the API serves.
func ClampDays(days int) int {
	return min(max(days, 1), 16)
}

func coordinates(loc *Location) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	q.Set("timezone", loc.Timezone)

	return q
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("weather.http.request", "url", endpoint, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
