package weatherteam

import (
	"github.com/JasonXSong/adk-demos/agent"
	"github.com/JasonXSong/adk-demos/guardrail"
	"github.com/JasonXSong/adk-demos/model"
	"github.com/JasonXSong/adk-demos/tool"
)

// Agent names used for delegation routing.
const (
	RootAgentName     = "weather_agent"
	GreetingAgentName = "greeting_agent"
	FarewellAgentName = "farewell_agent"
)

// OutputKeyLastReport is the session state key that receives the root agent's
// final answer after each weather turn.
const OutputKeyLastReport = "last_weather_report"

// BlockedKeyword vetoes any user message containing it before the root
// agent's model is called.
const BlockedKeyword = "BLOCK"

// BlockedCity is refused by the stateful weather tool's guardrail.
const BlockedCity = "Paris"

const greetingInstruction = "You are the Greeting Agent. Your ONLY task is to provide a friendly greeting " +
	"using the 'say_hello' tool. If the user provides their name, pass it to the tool. " +
	"Do not engage in any other conversation or tasks."

const farewellInstruction = "You are the Farewell Agent. Your ONLY task is to provide a polite goodbye message " +
	"using the 'say_goodbye' tool. Do not perform any other actions."

const rootInstruction = "You are the main Weather Agent coordinating a team. Your main responsibility is to " +
	"provide weather information using the 'get_weather_stateful' tool. The tool honors the user's preferred " +
	"temperature unit, currently {{default \"Celsius\" .user_preference_temperature_unit}}. " +
	"Delegate greetings to 'greeting_agent' and farewells to 'farewell_agent'. " +
	"Handle only weather requests, greetings and farewells."

// Options configure the optional per-role model overrides of the team.
type Options struct {
	// GreetingModel backs the greeting agent; nil falls back to the root model.
	GreetingModel model.Model
	// FarewellModel backs the farewell agent; nil falls back to the root model.
	FarewellModel model.Model
}

// NewGreetingAgent builds the greeting specialist. Its description is what the
// root agent's model sees when deciding to delegate, so it states the single
// capability plainly.
func NewGreetingAgent(m model.Model) *agent.Agent {
	return agent.New(GreetingAgentName, m, func(o *agent.Options) {
		o.Description = "Handles simple greetings and hellos using the 'say_hello' tool."
		o.Instruction = agent.NewInstructionFromText(greetingInstruction)
		o.Tools = []tool.Tool{NewSayHelloTool()}
	})
}

// NewFarewellAgent builds the farewell specialist.
func NewFarewellAgent(m model.Model) *agent.Agent {
	return agent.New(FarewellAgentName, m, func(o *agent.Options) {
		o.Description = "Handles simple farewells and goodbyes using the 'say_goodbye' tool."
		o.Instruction = agent.NewInstructionFromText(farewellInstruction)
		o.Tools = []tool.Tool{NewSayGoodbyeTool()}
	})
}

// New assembles the full team rooted at the weather agent: the stateful
// weather tool, greeting and farewell delegates, the keyword and tool
// guardrails and the output key capturing the last report.
func New(m model.Model, optFns ...func(o *Options)) *agent.Agent {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	greetingModel := opts.GreetingModel
	if greetingModel == nil {
		greetingModel = m
	}
	farewellModel := opts.FarewellModel
	if farewellModel == nil {
		farewellModel = m
	}

	return agent.New(RootAgentName, m, func(o *agent.Options) {
		o.Description = "Main weather agent coordinating greetings, farewells and weather lookups."
		o.Instruction = agent.NewInstructionFromText(rootInstruction)
		o.Tools = []tool.Tool{NewGetWeatherStatefulTool()}
		o.SubAgents = []*agent.Agent{
			NewGreetingAgent(greetingModel),
			NewFarewellAgent(farewellModel),
		}
		o.OutputKey = OutputKeyLastReport
		o.BeforeModel = guardrail.ModelChain{guardrail.BlockKeyword(BlockedKeyword)}
		o.BeforeTool = guardrail.ToolChain{guardrail.BlockCityTool(ToolNameGetWeatherStateful, BlockedCity)}
	})
}
