package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/JasonXSong/adk-demos/agent"
	"github.com/JasonXSong/adk-demos/core"
	"github.com/JasonXSong/adk-demos/logging"
	"github.com/JasonXSong/adk-demos/runner"
	"github.com/JasonXSong/adk-demos/session"
	"github.com/JasonXSong/adk-demos/weatherteam"
)

type demoApp struct {
	root      *agent.Agent
	logger    logging.Logger
	appName   string
	userID    string
	sessionID string
}

// runScriptedConversation replays the canonical tutorial conversation:
// delegation, stateful weather lookups, a unit preference flip and both
// guardrails firing.
func (a *demoApp) runScriptedConversation() error {
	r, store, key, err := a.bootstrap()
	if err != nil {
		return err
	}
	ctx := context.Background()

	turns := []string{
		"Hello there!",
		"What is the weather in London?",
		"Tell me the weather in New York.",
		"BLOCK the request for weather in Tokyo",
		"How about Paris?",
		"What is the weather in London?",
		"Thanks, bye!",
	}

	for i, text := range turns {
		// Flip the preferred unit before the New York turn so the second
		// weather report comes back in Fahrenheit.
		if i == 2 {
			fmt.Println("\n--- switching preferred unit to Fahrenheit ---")
			delta := map[string]any{weatherteam.StateKeyTemperatureUnit: weatherteam.UnitFahrenheit}
			if err := store.ApplyDelta(key, delta); err != nil {
				return fmt.Errorf("failed to update unit preference: %w", err)
			}
		}

		if err := a.runTurn(ctx, r, text); err != nil {
			return err
		}
	}

	return a.dumpState(store, key)
}

// runInteractive reads user turns from stdin until EOF or "quit".
func (a *demoApp) runInteractive() error {
	r, store, key, err := a.bootstrap()
	if err != nil {
		return err
	}
	ctx := context.Background()

	fmt.Println("Weather team ready. Ask about the weather, say hello, or type 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}
		if err := a.runTurn(ctx, r, text); err != nil {
			fmt.Fprintln(os.Stderr, "turn failed:", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	return a.dumpState(store, key)
}

func (a *demoApp) bootstrap() (*runner.Runner, core.SessionStore, core.SessionKey, error) {
	store := session.NewInMemoryStore()
	key := core.SessionKey{AppName: a.appName, UserID: a.userID, SessionID: a.sessionID}

	initialState := map[string]any{
		weatherteam.StateKeyTemperatureUnit: weatherteam.UnitCelsius,
	}
	if _, err := store.Create(key, initialState); err != nil {
		return nil, nil, core.SessionKey{}, fmt.Errorf("failed to create session: %w", err)
	}

	r := runner.New(a.root, func(o *runner.Options) {
		o.AppName = a.appName
		o.SessionStore = store
		o.Logger = a.logger
	})

	return r, store, key, nil
}

// runTurn submits one user message and prints the resulting event stream.
func (a *demoApp) runTurn(ctx context.Context, r *runner.Runner, text string) error {
	fmt.Printf("\n>>> user: %s\n", text)

	_, events, errs, err := r.Run(ctx, a.userID, a.sessionID, core.NewUserText(text))
	if err != nil {
		return err
	}

	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			a.printEvent(ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintln(os.Stderr, "!!! turn error:", err)
		}
	}

	return nil
}

func (a *demoApp) printEvent(ev core.Event) {
	if ev.IsEscalation() {
		code, msg := "", ""
		if ev.ErrorCode != nil {
			code = *ev.ErrorCode
		}
		if ev.ErrorMessage != nil {
			msg = *ev.ErrorMessage
		}
		fmt.Printf("!!! %s escalated [%s]: %s\n", ev.Author, code, msg)
		return
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		fmt.Printf("    (%s hands off to %s)\n", ev.Author, *ev.Actions.TransferToAgent)
		return
	}

	for _, fc := range ev.GetFunctionCalls() {
		fmt.Printf("    (%s calls %s %s)\n", ev.Author, fc.Name, fc.Arguments)
	}
	for _, fr := range ev.GetFunctionResponses() {
		if fr.Error != "" {
			fmt.Printf("    (%s failed: %s)\n", fr.Name, fr.Error)
		} else {
			fmt.Printf("    (%s returned %v)\n", fr.Name, fr.Response)
		}
	}

	if ev.IsFinalResponse() && ev.Content != nil {
		fmt.Printf("<<< %s: %s\n", ev.Author, ev.Content.FirstText())
	}
}

// dumpState prints the final session state so the guardrail flags and the
// recorded weather report are visible after the conversation.
func (a *demoApp) dumpState(store core.SessionStore, key core.SessionKey) error {
	sess, err := store.Get(key)
	if err != nil {
		return fmt.Errorf("failed to load final session: %w", err)
	}

	keys := make([]string, 0, len(sess.State))
	for k := range sess.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\n--- final session state ---")
	for _, k := range keys {
		fmt.Printf("%s = %v\n", k, sess.State[k])
	}

	return nil
}
