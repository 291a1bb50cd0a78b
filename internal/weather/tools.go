package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/assistants/core"
	"github.com/hupe1980/assistants/tool"
)

// Toolkit exposes the weather tools backed by a Client.
type Toolkit struct {
	client *Client
}

// NewToolkit creates a Toolkit.
func NewToolkit(client *Client) *Toolkit {
	return &Toolkit{client: client}
}

// Tools returns get_current_weather, get_forecast and get_weather_alerts.
func (tk *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionTool(
			"get_current_weather",
			"Get current weather for a specific location. Returns temperature, conditions, humidity, wind speed, and more.",
			tool.Object(map[string]any{
				"location": tool.StringParam(`City name (e.g., "London", "New York", "Tokyo")`),
				"units":    tool.StringParam(`Temperature units - "metric" for Celsius (default) or "imperial" for Fahrenheit`),
			}, "location"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.CurrentWeather(tc.Context(), tool.String(args, "location", ""), ParseUnits(tool.String(args, "units", ""))), nil
			},
		),
		tool.NewFunctionTool(
			"get_forecast",
			"Get a daily weather forecast (default 7 days, up to 16) for a specific location. Shows daily temperature, conditions, and precipitation.",
			tool.Object(map[string]any{
				"location": tool.StringParam(`City name (e.g., "Paris", "Tokyo")`),
				"days":     tool.IntParam("Number of days to forecast (1-16, default 7)"),
				"units":    tool.StringParam(`Temperature units - "metric" for Celsius (default) or "imperial" for Fahrenheit`),
			}, "location"),
			func(tc *core.ToolContext, args map[string]any) (any, error) {
				return tk.Forecast(tc.Context(), tool.String(args, "location", ""), tool.Int(args, "days", 7), ParseUnits(tool.String(args, "units", ""))), nil
			},
		),
		tool.NewFunctionTool(
			"get_weather_alerts",
			"Get weather alerts and warnings for a specific location.",
			tool.Object(map[string]any{
				"location": tool.StringParam("City name"),
			}, "location"),
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return Alerts(tool.String(args, "location", "")), nil
			},
		),
	}
}

// CurrentWeather renders current conditions or an error string.
func (tk *Toolkit) CurrentWeather(ctx context.Context, location string, units Units) string {
	if strings.TrimSpace(location) == "" {
		return "Error: a location is required"
	}

	loc, err := tk.client.Geocode(ctx, location)
	if err != nil {
		return errorText(location, err)
	}

	cur, err := tk.client.Current(ctx, loc, units)
	if err != nil {
		return errorText(location, err)
	}

	cond := DescribeCode(cur.WeatherCode)
	temp := units.TemperatureSymbol()

	var sb strings.Builder

	fmt.Fprintf(&sb, "Weather in %s:\n", loc.DisplayName())
	fmt.Fprintf(&sb, "- Temperature: %.1f%s\n", cur.Temperature, temp)
	fmt.Fprintf(&sb, "- Feels like: %.1f%s\n", cur.ApparentTemperature, temp)
	fmt.Fprintf(&sb, "- Conditions: %s (%s)\n", cond.Main, cond.Description)
	fmt.Fprintf(&sb, "- Humidity: %.0f%%\n", cur.Humidity)
	fmt.Fprintf(&sb, "- Precipitation: %.1f%s\n", cur.Precipitation, units.PrecipitationSymbol())
	fmt.Fprintf(&sb, "- Wind: %.1f %s from %s (%.0f°)\n", cur.WindSpeed, units.SpeedSymbol(), CompassDirection(cur.WindDirection), cur.WindDirection)
	fmt.Fprintf(&sb, "- Cloud Coverage: %.0f%%\n", cur.CloudCover)
	fmt.Fprintf(&sb, "- Last Updated: %s", cur.Time)

	return sb.String()
}

// Forecast renders a daily forecast or an error string.
func (tk *Toolkit) Forecast(ctx context.Context, location string, days int, units Units) string {
	if strings.TrimSpace(location) == "" {
		return "Error: a location is required"
	}

	loc, err := tk.client.Geocode(ctx, location)
	if err != nil {
		return errorText(location, err)
	}

	forecast, err := tk.client.Forecast(ctx, loc, days, units)
	if err != nil {
		return errorText(location, err)
	}

	if len(forecast) == 0 {
		return fmt.Sprintf("Error: no forecast data available for %s", loc.DisplayName())
	}

	temp := units.TemperatureSymbol()
	lines := []string{fmt.Sprintf("%d-Day Weather Forecast for %s:", len(forecast), loc.DisplayName()), ""}

	for _, d := range forecast {
		cond := DescribeCode(d.WeatherCode)
		lines = append(lines, fmt.Sprintf("%s: %s - %s, Temp: %.1f-%.1f%s, Precipitation: %.1f%s, Rain chance: %.0f%%, Max wind: %.1f %s",
			d.Date, cond.Main, cond.Description, d.TemperatureMin, d.TemperatureMax, temp,
			d.PrecipitationSum, units.PrecipitationSymbol(), d.PrecipitationProbability, d.WindSpeedMax, units.SpeedSymbol()))
	}

	return strings.Join(lines, "\n")
}

// Alerts reports that severe weather alerts are not part of the free API.
func Alerts(location string) string {
	return fmt.Sprintf("Weather alerts are not currently available for %s in the free API tier. No severe weather warnings detected through standard monitoring.", location)
}

func errorText(location string, err error) string {
	if errors.Is(err, ErrLocationNotFound) {
		return fmt.Sprintf("Error: Location '%s' not found", location)
	}

	return fmt.Sprintf("Error getting weather for '%s': %v", location, err)
}
