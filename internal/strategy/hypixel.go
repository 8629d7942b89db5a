package strategy

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// HypixelStrategy is the authoritative variant named in spec.md's Design
// Notes: it runs the language + sub-area stabilization post-connect
// script and filters inbound text to guild-related chat only.
type HypixelStrategy struct {
	log zerolog.Logger
}

// NewHypixelStrategy builds a HypixelStrategy logging through log.
func NewHypixelStrategy(log zerolog.Logger) *HypixelStrategy {
	return &HypixelStrategy{log: log}
}

var _ Strategy = (*HypixelStrategy)(nil)

// OnConnect sets the client language then navigates to a guild-adjacent
// idle area so the session stays stable without drawing attention in a
// busy lobby.
func (h *HypixelStrategy) OnConnect(ctx context.Context, c Chatter, g model.GuildConfig) error {
	return runScript(ctx, h.log.With().Str("guild", g.ID).Logger(), []func(context.Context) error{
		func(ctx context.Context) error { return c.Chat(ctx, "/locraw") },
		func(ctx context.Context) error { return c.Chat(ctx, "/language en") },
		func(ctx context.Context) error { return c.Chat(ctx, "/lobby") },
	})
}

// OnReconnect re-runs the same stabilization script; Hypixel does not
// distinguish fresh logins from resumes in a way that changes the
// bootstrap sequence.
func (h *HypixelStrategy) OnReconnect(ctx context.Context, c Chatter, g model.GuildConfig) error {
	return h.OnConnect(ctx, c, g)
}

// guildChatPrefixes are the raw-line prefixes that mark a message as
// guild-related before it is worth handing to the classifier.
var guildChatPrefixes = []string{"Guild > ", "Officer > "}

// guildEventSuffixes catch membership/rank/MOTD lines that do not carry
// the "Guild > " prefix but are still guild-related.
var guildEventSuffixes = []string{
	"joined the guild!", "left the guild!", "the guild!",
	"to the guild!", "from the guild", "the guild.",
}

// FilterInbound is the first gate of spec.md §4.C: only lines that could
// plausibly be guild chat, a guild event, or a guild command's feedback
// are passed through to the classifier.
func (h *HypixelStrategy) FilterInbound(raw string, g model.GuildConfig) FilterResult {
	trimmed := strings.TrimSpace(raw)
	for _, p := range guildChatPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return FilterResult{Pass: true, Data: trimmed}
		}
	}
	for _, s := range guildEventSuffixes {
		if strings.Contains(trimmed, s) {
			return FilterResult{Pass: true, Data: trimmed}
		}
	}
	if strings.HasPrefix(trimmed, "MOTD:") ||
		strings.HasPrefix(trimmed, "Guild Members") ||
		strings.HasPrefix(trimmed, "The Guild has reached Level") ||
		strings.Contains(trimmed, "was promoted from") ||
		strings.Contains(trimmed, "was demoted from") ||
		strings.Contains(trimmed, "rank of") ||
		strings.Contains(trimmed, "muted") {
		return FilterResult{Pass: true, Data: trimmed}
	}
	return FilterResult{Pass: false}
}
