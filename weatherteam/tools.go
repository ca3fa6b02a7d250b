// Package weatherteam assembles the weather agent team demo: a root weather
// agent guarded by keyword and tool guardrails that delegates greetings and
// farewells to specialist sub-agents.
package weatherteam

import (
	"fmt"
	"strings"

	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/tool"
)

// Tool names exposed to models.
const (
	ToolNameGetWeather         = "get_weather"
	ToolNameGetWeatherStateful = "get_weather_stateful"
	ToolNameSayHello           = "say_hello"
	ToolNameSayGoodbye         = "say_goodbye"
)

// Session state keys read and written by the tools.
const (
	// StateKeyTemperatureUnit holds "Celsius" or "Fahrenheit"; missing means Celsius.
	StateKeyTemperatureUnit = "user_preference_temperature_unit"
	// StateKeyLastCity records the most recent city served by the stateful tool.
	StateKeyLastCity = "last_city_checked_stateful"
)

// UnitFahrenheit is the state value selecting Fahrenheit reports.
const UnitFahrenheit = "Fahrenheit"

// UnitCelsius is the state value (and default) selecting Celsius reports.
const UnitCelsius = "Celsius"

type weatherEntry struct {
	displayName string
	tempC       int
	condition   string
}

var weatherDB = map[string]weatherEntry{
	"newyork": {displayName: "New York", tempC: 25, condition: "sunny"},
	"london":  {displayName: "London", tempC: 15, condition: "cloudy"},
	"tokyo":   {displayName: "Tokyo", tempC: 18, condition: "light rain"},
}

func normalizeCity(city string) string {
	return strings.ReplaceAll(strings.ToLower(city), " ", "")
}

func unknownCityResult(city string) map[string]any {
	return map[string]any{
		"status":        "error",
		"error_message": fmt.Sprintf("Sorry, I don't have weather information for '%s'.", city),
	}
}

func successResult(report string) map[string]any {
	return map[string]any{"status": "success", "report": report}
}

var cityParams = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"city": map[string]any{
			"type":        "string",
			"description": "English name of the city (e.g. \"New York\", \"London\", \"Tokyo\")",
		},
	},
	"required": []string{"city"},
}

// NewGetWeatherTool returns the stateless weather lookup. Reports are always
// in Celsius regardless of session preferences.
func NewGetWeatherTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		ToolNameGetWeather,
		"Retrieve the current weather report for a city.",
		cityParams,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			city, _ := args["city"].(string)

			entry, ok := weatherDB[normalizeCity(city)]
			if !ok {
				return unknownCityResult(city), nil
			}

			report := fmt.Sprintf("The weather in %s is %s with a temperature of %d°C.",
				entry.displayName, entry.condition, entry.tempC)
			return successResult(report), nil
		},
	)
}

// NewGetWeatherStatefulTool returns the stateful weather lookup. It reads the
// preferred temperature unit from session state (defaulting to Celsius),
// converts the stored Celsius value when Fahrenheit is requested, and records
// the served city back into state. Repeating a call with the same arguments
// and the same session state yields the same report.
func NewGetWeatherStatefulTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		ToolNameGetWeatherStateful,
		"Retrieve the current weather report for a city, honoring the user's preferred temperature unit.",
		cityParams,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			city, _ := args["city"].(string)

			preferredUnit := UnitCelsius
			if v, ok := tc.GetState(StateKeyTemperatureUnit); ok {
				if s, ok := v.(string); ok && s != "" {
					preferredUnit = s
				}
			}

			tc.Logger().Debug("weather.lookup", "city", city, "unit", preferredUnit)

			entry, ok := weatherDB[normalizeCity(city)]
			if !ok {
				return unknownCityResult(city), nil
			}

			tempValue := float64(entry.tempC)
			tempUnit := "°C"
			if preferredUnit == UnitFahrenheit {
				tempValue = float64(entry.tempC)*9/5 + 32
				tempUnit = "°F"
			}

			report := fmt.Sprintf("The weather in %s is %s with a temperature of %.0f%s.",
				entry.displayName, entry.condition, tempValue, tempUnit)

			tc.SetState(StateKeyLastCity, city)

			return successResult(report), nil
		},
	)
}

// NewSayHelloTool returns the greeting tool. The name argument is optional;
// without it a generic greeting is produced.
func NewSayHelloTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		ToolNameSayHello,
		"Provide a friendly greeting, optionally addressing the user by name.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Name of the person to greet",
				},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			if name, _ := args["name"].(string); name != "" {
				return fmt.Sprintf("Hello, %s!", name), nil
			}
			return "Hello there!", nil
		},
	)
}

// NewSayGoodbyeTool returns the farewell tool.
func NewSayGoodbyeTool() *tool.FunctionTool {
	return tool.NewFunctionTool(
		ToolNameSayGoodbye,
		"Provide a polite farewell message to end the conversation.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return "Goodbye! Have a great day.", nil
		},
	)
}
