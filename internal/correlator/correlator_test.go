package correlator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbridge/guildbridge/internal/model"
)

func TestInviteResolvesOnMatchingEvent(t *testing.T) {
	c := New(zerolog.Nop())
	id := c.CreateListener("guild-a", model.CommandInvite, "Steve", "/g invite Steve", time.Second)

	done := make(chan model.CommandResult, 1)
	go func() { done <- c.WaitForResult(id) }()

	c.Observe(model.ClassifiedRecord{
		Kind: model.RecordEvent,
		Raw:  "BotA invited Steve to the guild!",
		Ev:   model.Event{GuildID: "guild-a", Kind: model.EventInvite, Actor: "BotA", Target: "Steve"},
	})

	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, model.ResultCommand, res.Type)
}

func TestInviteTimesOutWithoutMatch(t *testing.T) {
	c := New(zerolog.Nop())
	id := c.CreateListener("guild-a", model.CommandInvite, "Steve", "/g invite Steve", 20*time.Millisecond)

	res := c.WaitForResult(id)
	assert.False(t, res.Success)
	assert.Equal(t, model.ResultTimeout, res.Type)
}

func TestCancelListenerCompletesSynchronously(t *testing.T) {
	c := New(zerolog.Nop())
	id := c.CreateListener("guild-a", model.CommandInvite, "Steve", "/g invite Steve", time.Minute)
	c.CancelListener(id)
	res := c.WaitForResult(id)
	assert.Equal(t, model.ResultCancelled, res.Type)
}

func TestObserveResolvesAtMostOnePending(t *testing.T) {
	c := New(zerolog.Nop())
	id1 := c.CreateListener("guild-a", model.CommandInvite, "Steve", "/g invite Steve", time.Second)
	id2 := c.CreateListener("guild-a", model.CommandInvite, "Alex", "/g invite Alex", time.Second)

	results := map[string]chan model.CommandResult{
		id1: make(chan model.CommandResult, 1),
		id2: make(chan model.CommandResult, 1),
	}
	go func() { results[id1] <- c.WaitForResult(id1) }()
	go func() { results[id2] <- c.WaitForResult(id2) }()

	c.Observe(model.ClassifiedRecord{
		Kind: model.RecordEvent,
		Raw:  "BotA invited Steve to the guild!",
		Ev:   model.Event{GuildID: "guild-a", Kind: model.EventInvite, Actor: "BotA", Target: "Steve"},
	})

	res1 := <-results[id1]
	require.True(t, res1.Success)

	select {
	case res2 := <-results[id2]:
		t.Fatalf("expected id2 to remain pending, got %+v", res2)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, c.Pending())
	c.CancelListener(id2)
}

func TestSetRankResolvesOnSystemMessage(t *testing.T) {
	c := New(zerolog.Nop())
	id := c.CreateListener("guild-a", model.CommandSetRank, "Steve", "/g setrank Steve Officer", time.Second)

	go c.Observe(model.ClassifiedRecord{
		Kind: model.RecordSystem,
		Raw:  "You have changed the rank of Steve to Officer",
		Sys: model.System{
			GuildID:    "guild-a",
			SystemKind: "setrank_ok",
			Payload:    map[string]string{"target": "Steve", "torank": "Officer"},
		},
	})

	res := c.WaitForResult(id)
	assert.True(t, res.Success)
}
