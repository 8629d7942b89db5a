package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbridge/guildbridge/internal/catalog"
	"github.com/wardenbridge/guildbridge/internal/model"
)

func testGuild() model.GuildConfig {
	return model.GuildConfig{
		ID:   "guild-a",
		Name: "Alpha",
		Tag:  "A",
		Account: model.AccountConfig{
			Username: "BotA",
		},
		Server: model.ServerConfig{Flavor: catalog.FlavorHypixel},
	}
}

func TestClassifyGuildChat(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Guild > Alice: hello there", testGuild())
	require.True(t, rec.IsChat())
	assert.Equal(t, "Alice", rec.Chat.Username)
	assert.Equal(t, "hello there", rec.Chat.Message)
	assert.Equal(t, model.ChatSubtypeGuild, rec.Chat.ChatSubtype)
}

func TestClassifyRankPrefixedChat(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Guild > [MVP+] Alice: hello", testGuild())
	require.True(t, rec.IsChat())
	assert.Equal(t, "MVP+", rec.Chat.Rank)
	assert.Equal(t, "Alice", rec.Chat.Username)
}

func TestClassifyColorCodedChat(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("§2Guild > §rAlice: hello", testGuild())
	require.True(t, rec.IsChat())
	assert.Equal(t, "Alice", rec.Chat.Username)
}

func TestClassifySelfEchoIgnored(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Guild > BotA: hello", testGuild())
	require.Equal(t, model.RecordIgnored, rec.Kind)
	assert.Equal(t, "self_echo", rec.IgnoredReason)
}

func TestClassifyOfficerChat(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Officer > Alice: secret", testGuild())
	require.True(t, rec.IsChat())
	assert.Equal(t, model.ChatSubtypeOfficer, rec.Chat.ChatSubtype)
}

func TestClassifyJoinIsEventNotChat(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Alice joined the guild!", testGuild())
	require.True(t, rec.IsEvent())
	assert.Equal(t, model.EventJoin, rec.Ev.Kind)
	assert.Equal(t, "Alice", rec.Ev.Target)
}

func TestClassifyKickEvent(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Alice was kicked from the guild by Bob!", testGuild())
	require.True(t, rec.IsEvent())
	assert.Equal(t, model.EventKick, rec.Ev.Kind)
	assert.Equal(t, "Alice", rec.Ev.Target)
	assert.Equal(t, "Bob", rec.Ev.Actor)
}

func TestClassifyPromoteEvent(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("Alice was promoted from Member to Officer", testGuild())
	require.True(t, rec.IsEvent())
	assert.Equal(t, model.EventPromote, rec.Ev.Kind)
	assert.Equal(t, "Member", rec.Ev.FromRank)
	assert.Equal(t, "Officer", rec.Ev.ToRank)
}

func TestClassifyLevelEventParsesInt(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("The Guild has reached Level 42!", testGuild())
	require.True(t, rec.IsEvent())
	assert.Equal(t, model.EventLevel, rec.Ev.Kind)
	assert.Equal(t, "42", rec.Ev.Payload["level"])
}

func TestClassifyIgnoreFilter(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("You are AFK.", testGuild())
	assert.Equal(t, model.RecordIgnored, rec.Kind)
	assert.Equal(t, "filtered_content", rec.IgnoredReason)
}

func TestClassifyUnknownFallsThrough(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	rec := cl.Classify("gibberish that matches nothing at all", testGuild())
	assert.Equal(t, model.RecordUnknown, rec.Kind)
}

func TestClassifyIdempotent(t *testing.T) {
	cl := New(catalog.NewDefault(), false)
	raw := "Guild > Alice: hello there"
	first := cl.Classify(raw, testGuild())
	second := cl.Classify(first.Raw, testGuild())
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Chat, second.Chat)
}

func TestSplitOnlineMembers(t *testing.T) {
	members := SplitOnlineMembers("[MVP+] Alice, Bob, [VIP] Carol")
	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, members)
}
