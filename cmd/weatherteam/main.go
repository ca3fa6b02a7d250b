// Command weatherteam runs the weather agent team demo: a guarded root
// weather agent with greeting and farewell delegates, backed by a scripted
// offline model or a live OpenAI / Anthropic model.
package main

import (
	"fmt"
	"os"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JasonXSong/adk-demos/logging"
	"github.com/JasonXSong/adk-demos/model"
	"github.com/JasonXSong/adk-demos/model/anthropic"
	"github.com/JasonXSong/adk-demos/model/openai"
	"github.com/JasonXSong/adk-demos/weatherteam"
)

// Defaults for the session triple used by the demo conversation.
const (
	defaultAppName   = "weather_tutorial_agent_team"
	defaultUserID    = "user_1_agent_team"
	defaultSessionID = "session_001_agent_team"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WEATHERTEAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "weatherteam",
		Short: "Weather agent team demo with guardrails and delegation",
		Long: `Runs a multi-agent weather assistant. The root agent answers weather
questions with a stateful tool and delegates greetings and farewells to
specialist sub-agents. A keyword guardrail vetoes blocked requests before
the model runs and a tool guardrail refuses weather checks for Paris.

Without --interactive a scripted conversation is replayed, including a
mid-conversation switch to Fahrenheit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("provider", "scripted", "model provider: scripted, openai or anthropic")
	flags.String("model", "", "model name override for live providers")
	flags.String("app", defaultAppName, "application name scoping the session")
	flags.String("user", defaultUserID, "user id scoping the session")
	flags.String("session", defaultSessionID, "session id")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.Bool("interactive", false, "read turns from stdin instead of the scripted conversation")

	return cmd
}

func run(v *viper.Viper) error {
	logger := logging.NewSlogLogger(
		logging.ParseLevel(v.GetString("log-level")),
		v.GetString("log-format"),
		false,
	)

	models, err := buildModels(v.GetString("provider"), v.GetString("model"))
	if err != nil {
		return err
	}

	root := weatherteam.New(models.root, func(o *weatherteam.Options) {
		o.GreetingModel = models.greeting
		o.FarewellModel = models.farewell
	})

	app := &demoApp{
		root:      root,
		logger:    logger,
		appName:   v.GetString("app"),
		userID:    v.GetString("user"),
		sessionID: v.GetString("session"),
	}

	if v.GetBool("interactive") {
		return app.runInteractive()
	}
	return app.runScriptedConversation()
}

type teamModels struct {
	root     model.Model
	greeting model.Model
	farewell model.Model
}

func buildModels(provider, modelName string) (teamModels, error) {
	switch strings.ToLower(provider) {
	case "scripted", "":
		return teamModels{
			root:     weatherteam.NewScriptedModel(weatherteam.RoleRoot),
			greeting: weatherteam.NewScriptedModel(weatherteam.RoleGreeting),
			farewell: weatherteam.NewScriptedModel(weatherteam.RoleFarewell),
		}, nil
	case "openai":
		m := openai.NewModel(func(o *openai.Options) {
			if modelName != "" {
				o.Model = modelName
			}
		})
		return teamModels{root: m, greeting: m, farewell: m}, nil
	case "anthropic":
		m := anthropic.NewModel(func(o *anthropic.Options) {
			if modelName != "" {
				o.Model = anthropicsdk.Model(modelName)
			}
		})
		return teamModels{root: m, greeting: m, farewell: m}, nil
	default:
		return teamModels{}, fmt.Errorf("unknown provider %q (want scripted, openai or anthropic)", provider)
	}
}
