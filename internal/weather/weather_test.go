package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/assistants/internal/testutil"
	"github.com/hupe1980/assistants/model"
	"github.com/hupe1980/assistants/tool"
)

type fakeOpenMeteo struct {
	mu           sync.Mutex
	forecastDays string
	units        string
}

func (f *fakeOpenMeteo) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Paris" {
			_, _ = w.Write([]byte(`{"generationtime_ms":0.5}`))
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{
				"name": "Paris", "country": "France", "latitude": 48.85341, "longitude": 2.3488, "timezone": "Europe/Paris",
			}},
		})
	})

	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		f.mu.Lock()
		f.units = q.Get("temperature_unit")
		f.mu.Unlock()

		if q.Get("current") != "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"current": map[string]any{
					"time": "2024-05-01T12:00", "temperature_2m": 18.4, "apparent_temperature": 17.9,
					"relative_humidity_2m": 62, "precipitation": 0.2, "weather_code": 61,
					"cloud_cover": 75, "wind_speed_10m": 12.5, "wind_direction_10m": 225,
				},
			})
			return
		}

		f.mu.Lock()
		f.forecastDays = q.Get("forecast_days")
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]any{
			"daily": map[string]any{
				"time":                          []string{"2024-05-01", "2024-05-02"},
				"temperature_2m_max":            []float64{21, 23.5},
				"temperature_2m_min":            []float64{11, 12.3},
				"precipitation_sum":             []float64{0, 3.4},
				"precipitation_probability_max": []float64{10, 80},
				"weather_code":                  []int{1, 63},
				"wind_speed_10m_max":            []float64{14, 22},
			},
		})
	})

	return mux
}

func (f *fakeOpenMeteo) lastUnits() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.units
}

func (f *fakeOpenMeteo) lastForecastDays() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.forecastDays
}

func newTestToolkit(t *testing.T) (*Toolkit, *fakeOpenMeteo) {
	t.Helper()

	fake := &fakeOpenMeteo{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := NewClient(func(o *ClientOptions) {
		o.GeocodingURL = srv.URL + "/v1/search"
		o.ForecastURL = srv.URL + "/v1/forecast"
		o.HTTPClient = srv.Client()
	})

	return NewToolkit(client), fake
}

var numberRe = regexp.MustCompile(`-?\d+(\.\d+)?°C`)

func TestCurrentWeather_Paris(t *testing.T) {
	tk, fake := newTestToolkit(t)

	out := tk.CurrentWeather(context.Background(), "Paris", Metric)

	assert.Contains(t, out, "Weather in Paris, France")
	assert.Regexp(t, numberRe, out)
	assert.Contains(t, out, "Rain (slight rain)")
	assert.Contains(t, out, "from SW")
	assert.Equal(t, "celsius", fake.lastUnits())
}

func TestCurrentWeather_Imperial(t *testing.T) {
	tk, fake := newTestToolkit(t)

	out := tk.CurrentWeather(context.Background(), "Paris", ParseUnits("Imperial"))

	assert.Contains(t, out, "°F")
	assert.Contains(t, out, "mph")
	assert.Equal(t, "fahrenheit", fake.lastUnits())
}

func TestCurrentWeather_UnknownLocation(t *testing.T) {
	tk, _ := newTestToolkit(t)

	assert.Equal(t, "Error: Location 'Atlantis' not found", tk.CurrentWeather(context.Background(), "Atlantis", Metric))
	assert.Equal(t, "Error: Location 'Atlantis' not found", tk.Forecast(context.Background(), "Atlantis", 3, Metric))
	assert.True(t, strings.HasPrefix(tk.CurrentWeather(context.Background(), " ", Metric), "Error"))
}

func TestCurrentWeather_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	tk := NewToolkit(NewClient(func(o *ClientOptions) { o.GeocodingURL = srv.URL }))

	out := tk.CurrentWeather(context.Background(), "Paris", Metric)
	assert.True(t, strings.HasPrefix(out, "Error getting weather for 'Paris'"), out)
}

func TestForecast(t *testing.T) {
	tk, fake := newTestToolkit(t)

	out := tk.Forecast(context.Background(), "Paris", 30, Metric)

	assert.Equal(t, "16", fake.lastForecastDays())
	assert.Contains(t, out, "2-Day Weather Forecast for Paris, France")
	assert.Contains(t, out, "2024-05-02: Rain - moderate rain, Temp: 12.3-23.5°C")
	assert.Contains(t, out, "Rain chance: 80%")
}

func TestClampDays(t *testing.T) {
	assert.Equal(t, 1, ClampDays(0))
	assert.Equal(t, 7, ClampDays(7))
	assert.Equal(t, 16, ClampDays(99))
}

func TestCompassDirection(t *testing.T) {
	assert.Equal(t, "N", CompassDirection(0))
	assert.Equal(t, "N", CompassDirection(350))
	assert.Equal(t, "E", CompassDirection(90))
	assert.Equal(t, "NW", CompassDirection(-45))
}

func TestDescribeCode(t *testing.T) {
	assert.Equal(t, "Clear", DescribeCode(0).Main)
	assert.Equal(t, "Unknown", DescribeCode(42).Main)
}

func TestAlerts(t *testing.T) {
	assert.Contains(t, Alerts("Oslo"), "not currently available for Oslo")
}

func TestNewAgent_Idempotent(t *testing.T) {
	tk, _ := newTestToolkit(t)
	m := model.NewScriptedModel()

	first := NewAgent(m, tk)
	second := NewAgent(m, tk)

	assert.Equal(t, tool.Names(first.Tools()), tool.Names(second.Tools()))
	assert.Equal(t, []string{"get_current_weather", "get_forecast", "get_weather_alerts"}, tool.Names(first.Tools()))
	assert.Equal(t, MaxHistory, first.MaxHistoryMessages())
}

func TestAgent_AnswersWithToolResult(t *testing.T) {
	tk, _ := newTestToolkit(t)

	m := model.NewScriptedModel(
		model.Call("get_current_weather", map[string]any{"location": "Paris"}),
	)

	res := testutil.RunAgent(t, NewAgent(m, tk), "What's the weather in Paris?")

	responses := res.FunctionResponses()["get_current_weather"]
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Text(), "Weather in Paris, France")

	// The echo fallback relays the tool output as the final answer.
	assert.Contains(t, res.Text, "Temperature: 18.4°C")
}
