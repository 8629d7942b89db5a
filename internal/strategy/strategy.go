// Package strategy implements the server-flavor-specific hooks of
// spec.md §4.C: post-connect/reconnect scripting and the inbound filter
// that gates which raw lines ever reach the classifier.
package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// Chatter is the minimal capability a Strategy needs from a session to
// run its post-connect script: sending a line of chat. Strategies never
// see the full connection.Session so that C cannot reach past D into
// supervisor-owned state.
type Chatter interface {
	Chat(ctx context.Context, text string) error
}

// FilterResult is the decision filterInbound makes for one raw line.
type FilterResult struct {
	Pass bool
	Data string
}

// Strategy is the spec.md §4.C contract. Implementations must be safe
// for the bounded-retry semantics of onConnect/onReconnect: a failure is
// logged and swallowed by the caller, never propagated as a connection
// fault.
type Strategy interface {
	OnConnect(ctx context.Context, c Chatter, g model.GuildConfig) error
	OnReconnect(ctx context.Context, c Chatter, g model.GuildConfig) error
	FilterInbound(raw string, g model.GuildConfig) FilterResult
}

// maxScriptRetries bounds the post-connect/reconnect script retries of
// spec.md §4.C ("bounded retries (3)").
const maxScriptRetries = 3

// scriptStepWait is the fixed inter-step wait of spec.md §4.C.
const scriptStepWait = 500 * time.Millisecond

// runScript executes steps in order, retrying the whole script up to
// maxScriptRetries times on any step's error. After the last failed
// attempt it returns that attempt's step error; per spec.md §4.C's
// "failure of the script does NOT invalidate the connection", callers
// log the returned error themselves and move on.
func runScript(ctx context.Context, log zerolog.Logger, steps []func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= maxScriptRetries; attempt++ {
		lastErr = nil
		for _, step := range steps {
			if err := step(ctx); err != nil {
				lastErr = err
				log.Warn().Err(err).Int("attempt", attempt).Msg("strategy script step failed")
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(scriptStepWait):
			}
		}
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}
