package weather

import "math"

// Condition is the human readable form of a WMO weather code.
type Condition struct {
	Main        string
	Description string
}

var wmoCodes = map[int]Condition{
	0:  {"Clear", "clear sky"},
	1:  {"Mainly Clear", "mainly clear"},
	2:  {"Partly Cloudy", "partly cloudy"},
	3:  {"Overcast", "overcast"},
	45: {"Foggy", "fog"},
	48: {"Foggy", "depositing rime fog"},
	51: {"Drizzle", "light drizzle"},
	53: {"Drizzle", "moderate drizzle"},
	55: {"Drizzle", "dense drizzle"},
	56: {"Freezing Drizzle", "light freezing drizzle"},
	57: {"Freezing Drizzle", "dense freezing drizzle"},
	61: {"Rain", "slight rain"},
	63: {"Rain", "moderate rain"},
	65: {"Rain", "heavy rain"},
	66: {"Freezing Rain", "light freezing rain"},
	67: {"Freezing Rain", "heavy freezing rain"},
	71: {"Snow", "slight snow"},
	73: {"Snow", "moderate snow"},
	75: {"Snow", "heavy snow"},
	77: {"Snow", "snow grains"},
	80: {"Rain Showers", "slight rain showers"},
	81: {"Rain Showers", "moderate rain showers"},
	82: {"Rain Showers", "violent rain showers"},
	85: {"Snow Showers", "slight snow showers"},
	86: {"Snow Showers", "heavy snow showers"},
	95: {"Thunderstorm", "thunderstorm"},
	96: {"Thunderstorm", "thunderstorm with slight hail"},
	99: {"Thunderstorm", "thunderstorm with heavy hail"},
}

// DescribeCode maps a WMO code to a Condition.
func DescribeCode(code int) Condition {
	if c, ok := wmoCodes[code]; ok {
		return c
	}
	return Condition{"Unknown", "unknown conditions"}
}

var compass = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection converts degrees to one of eight compass points.
func CompassDirection(deg float64) string {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}

	return compass[int(math.Round(deg/45))%len(compass)]
}
