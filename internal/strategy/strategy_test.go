package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/wardenbridge/guildbridge/internal/catalog"
	"github.com/wardenbridge/guildbridge/internal/model"
)

func testStrategyGuild() model.GuildConfig {
	return model.GuildConfig{
		ID:      "guild-a",
		Name:    "Alpha",
		Tag:     "A",
		Account: model.AccountConfig{Username: "BotA", ChatLengthLimit: 256},
		Server:  model.ServerConfig{Flavor: catalog.FlavorHypixel},
	}
}

type countingChatter struct {
	calls   int
	failFor int
}

func (c *countingChatter) Chat(ctx context.Context, text string) error {
	c.calls++
	if c.calls <= c.failFor {
		return errors.New("chat failed")
	}
	return nil
}

func TestRunScriptGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			attempts++
			return errors.New("step always fails")
		},
	}

	err := runScript(context.Background(), zerolog.Nop(), steps)

	assert.Error(t, err)
	assert.Equal(t, "step always fails", err.Error())
	assert.Equal(t, maxScriptRetries, attempts)
}

func TestRunScriptSucceedsOnLaterAttempt(t *testing.T) {
	attempts := 0
	steps := []func(context.Context) error{
		func(ctx context.Context) error {
			attempts++
			if attempts < maxScriptRetries {
				return errors.New("not yet")
			}
			return nil
		},
	}

	err := runScript(context.Background(), zerolog.Nop(), steps)

	assert.NoError(t, err)
	assert.Equal(t, maxScriptRetries, attempts)
}

func TestRunScriptStopsAtFirstFailingStep(t *testing.T) {
	var calledSteps []int
	steps := []func(context.Context) error{
		func(ctx context.Context) error { calledSteps = append(calledSteps, 1); return nil },
		func(ctx context.Context) error { calledSteps = append(calledSteps, 2); return errors.New("boom") },
		func(ctx context.Context) error { calledSteps = append(calledSteps, 3); return nil },
	}

	err := runScript(context.Background(), zerolog.Nop(), steps)

	assert.Error(t, err)
	// every retry re-runs from the top, so step 3 never runs on any attempt.
	for _, s := range calledSteps {
		assert.NotEqual(t, 3, s)
	}
}

func TestHypixelStrategyOnConnectIdempotent(t *testing.T) {
	h := NewHypixelStrategy(zerolog.Nop())
	chatter := &countingChatter{}

	assert.NoError(t, h.OnConnect(context.Background(), chatter, testStrategyGuild()))
	firstCalls := chatter.calls
	assert.NoError(t, h.OnConnect(context.Background(), chatter, testStrategyGuild()))

	assert.Equal(t, firstCalls, chatter.calls-firstCalls, "repeated onConnect runs the same bounded script again, safely")
}

func TestHypixelStrategyOnReconnectMatchesOnConnect(t *testing.T) {
	h := NewHypixelStrategy(zerolog.Nop())
	chatter := &countingChatter{}

	assert.NoError(t, h.OnReconnect(context.Background(), chatter, testStrategyGuild()))
	assert.Equal(t, 3, chatter.calls)
}

func TestFilterInboundPassesGuildChatPrefixes(t *testing.T) {
	h := NewHypixelStrategy(zerolog.Nop())
	g := testStrategyGuild()

	res := h.FilterInbound("Guild > Alice: hello", g)
	assert.True(t, res.Pass)
	assert.Equal(t, "Guild > Alice: hello", res.Data)

	res = h.FilterInbound("Officer > Bob: psst", g)
	assert.True(t, res.Pass)
}

func TestFilterInboundPassesGuildEventSuffixes(t *testing.T) {
	h := NewHypixelStrategy(zerolog.Nop())
	g := testStrategyGuild()

	res := h.FilterInbound("Alice joined the guild!", g)
	assert.True(t, res.Pass)
}

func TestFilterInboundRejectsUnrelatedLines(t *testing.T) {
	h := NewHypixelStrategy(zerolog.Nop())
	g := testStrategyGuild()

	res := h.FilterInbound("Welcome to Hypixel Skyblock!", g)
	assert.False(t, res.Pass)
}
