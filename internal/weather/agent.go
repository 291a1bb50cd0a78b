// Package weather is the weather assistant: current conditions and daily
// forecasts for any place, served by the free Open-Meteo API.
package weather

import (
	"github.com/hupe1980/assistants/agent"
	"github.com/hupe1980/assistants/internal/assistant"
	"github.com/hupe1980/assistants/internal/config"
	"github.com/hupe1980/assistants/logging"
	"github.com/hupe1980/assistants/model"
)

const (
	AgentName   = "weather_assistant"
	AppName     = "weather_assistant_app"
	UserID      = "default_user"
	SessionID   = "weather_session"
	Description = "A helpful weather assistant that provides accurate weather information for any location."
	MaxHistory  = 10
)

// Instruction is the system prompt of the weather assistant.
const Instruction = `You are a helpful weather assistant that provides accurate and timely weather information.

You have access to tools that can get current weather, forecasts, and weather alerts for any location in the world.

When a user asks about weather:
1. Use the appropriate tool to fetch the weather data
2. Present the information in a clear, conversational way
3. Provide relevant context (like if it's unusually hot/cold, if rain is expected, etc.)
4. Offer helpful suggestions when appropriate (like bringing an umbrella if rain is forecasted)

Always be friendly and helpful. Format temperatures with the appropriate unit (°C or °F).`

// Identity is the session identity used by the CLI.
var Identity = assistant.Identity{AppName: AppName, UserID: UserID, SessionID: SessionID}

// NewToolkitFromConfig builds a Toolkit whose client honours the configured
// timeout and request rate.
func NewToolkitFromConfig(cfg *config.Config, logger logging.Logger) *Toolkit {
	return NewToolkit(NewClient(func(o *ClientOptions) {
		o.Timeout = cfg.HTTP.Timeout
		o.RequestsPerSecond = cfg.HTTP.RequestsPerSecond
		o.Logger = logger
	}))
}

// NewAgent assembles the weather agent.
func NewAgent(m model.Model, tk *Toolkit) *agent.ModelAgent {
	return agent.NewModelAgent(AgentName, m, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Description = Description
		o.MaxHistoryMessages = MaxHistory
		o.Tools = tk.Tools()
	})
}

// REPLOptions returns the interactive loop settings.
func REPLOptions() assistant.REPLOptions {
	return assistant.REPLOptions{
		Prompt: "\nYou: ",
		Banner: []string{
			"Ask me about the weather in any location!",
			"Examples:",
			"  - What's the weather in New York?",
			"  - Give me a 5-day forecast for Tokyo",
			"  - Will it rain in London tomorrow?",
			"",
			"Type 'quit' or 'exit' to stop.",
		},
		Goodbye:      "Goodbye! Stay weather-aware!",
		ResetMessage: "Conversation reset!",
	}
}
