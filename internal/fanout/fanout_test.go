package fanout

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbridge/guildbridge/internal/model"
)

type fakeQueue struct {
	mu    sync.Mutex
	items []model.QueueItem
}

func (q *fakeQueue) Enqueue(item model.QueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

func (q *fakeQueue) all() []model.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.QueueItem(nil), q.items...)
}

func guildA() model.GuildConfig {
	return model.GuildConfig{ID: "a", Name: "Alpha", Tag: "ALP", Account: model.AccountConfig{Username: "BotA", ChatLengthLimit: 256}, Enabled: true}
}

func guildB() model.GuildConfig {
	return model.GuildConfig{ID: "b", Name: "Bravo", Tag: "BRV", Account: model.AccountConfig{Username: "BotB", ChatLengthLimit: 256}, Enabled: true}
}

func defaultCfg() model.InterGuildConfig {
	return model.InterGuildConfig{
		Enabled:             true,
		MaxDuplicatesPerWin: 2,
		DedupWindow:         30 * time.Second,
		RateLimit:           model.RateLimitConfig{Limit: 2, Window: 10 * time.Second},
	}
}

func chatRecord(username, message string, subtype model.ChatSubtype) model.ClassifiedRecord {
	return model.ClassifiedRecord{
		Kind: model.RecordChat,
		Raw:  username + ": " + message,
		Chat: model.GuildChat{GuildID: "a", Username: username, Message: message, ChatSubtype: subtype},
	}
}

func TestFanoutDeliversToPeer(t *testing.T) {
	q := &fakeQueue{}
	e := New(zerolog.Nop(), defaultCfg(), q)

	e.Handle(chatRecord("Alice", "hello", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})

	items := q.all()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].TargetGuildID)
	assert.Contains(t, items[0].RenderedText, "Alice")
	assert.Contains(t, items[0].RenderedText, "hello")
}

func TestFanoutSuppressesSameGuild(t *testing.T) {
	q := &fakeQueue{}
	e := New(zerolog.Nop(), defaultCfg(), q)

	e.Handle(chatRecord("Alice", "hello", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildA(), guildB()})

	items := q.all()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].TargetGuildID)
}

func TestFanoutDropsSelfEcho(t *testing.T) {
	q := &fakeQueue{}
	e := New(zerolog.Nop(), defaultCfg(), q)

	e.Handle(chatRecord("BotA", "hello", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})

	assert.Empty(t, q.all())
	assert.Equal(t, int64(1), e.Stats().LoopsDetected)
}

func TestFanoutDropsRelayFormat(t *testing.T) {
	q := &fakeQueue{}
	e := New(zerolog.Nop(), defaultCfg(), q)

	e.Handle(chatRecord("Carol", "Alice: hello", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})

	assert.Empty(t, q.all())
}

func TestFanoutDedupUpperBound(t *testing.T) {
	q := &fakeQueue{}
	cfg := defaultCfg()
	cfg.RateLimit.Limit = 100
	e := New(zerolog.Nop(), cfg, q)

	for i := 0; i < 5; i++ {
		e.Handle(chatRecord("Alice", "dup message", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	}

	items := q.all()
	assert.LessOrEqual(t, len(items), 2)
}

func TestFanoutIntraGuildDuplicateSuppressed(t *testing.T) {
	q := &fakeQueue{}
	cfg := defaultCfg()
	cfg.RateLimit.Limit = 100
	e := New(zerolog.Nop(), cfg, q)

	e.Handle(chatRecord("Alice", "same text", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	before := len(q.all())
	e.Handle(chatRecord("Alice", "same text", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	after := len(q.all())

	assert.Equal(t, before, after)
}

func TestFanoutRateLimitUpperBound(t *testing.T) {
	q := &fakeQueue{}
	cfg := defaultCfg()
	cfg.RateLimit.Limit = 2
	cfg.RateLimit.Window = time.Minute
	e := New(zerolog.Nop(), cfg, q)

	for i := 0; i < 5; i++ {
		e.Handle(chatRecord("User", "msg "+string(rune('a'+i)), model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	}

	assert.LessOrEqual(t, len(q.all()), 2)
}

func TestFanoutRateLimitSlidingWindowRejectsBurstAfterPartialWait(t *testing.T) {
	q := &fakeQueue{}
	cfg := defaultCfg()
	cfg.RateLimit.Limit = 2
	cfg.RateLimit.Window = 300 * time.Millisecond
	e := New(zerolog.Nop(), cfg, q)

	e.Handle(chatRecord("User", "msg one", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	e.Handle(chatRecord("User", "msg two", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	assert.Len(t, q.all(), 2, "first two sends within the window should pass")

	time.Sleep(150 * time.Millisecond)
	e.Handle(chatRecord("User", "msg three", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	assert.Len(t, q.all(), 2, "third send still falls inside the 300ms window of the first two and must be dropped")

	time.Sleep(200 * time.Millisecond)
	e.Handle(chatRecord("User", "msg four", model.ChatSubtypeGuild), guildA(), []model.GuildConfig{guildB()})
	assert.Len(t, q.all(), 3, "once the first two sends age out of the window, a new send is allowed")
}

func TestFanoutEventSharingAllowList(t *testing.T) {
	q := &fakeQueue{}
	e := New(zerolog.Nop(), defaultCfg(), q)

	rec := model.ClassifiedRecord{Kind: model.RecordEvent, Ev: model.Event{GuildID: "a", Kind: model.EventKick, Target: "Mallory", Actor: "BotA"}}
	e.Handle(rec, guildA(), []model.GuildConfig{guildB()})
	assert.Len(t, q.all(), 1)

	q2 := &fakeQueue{}
	e2 := New(zerolog.Nop(), defaultCfg(), q2)
	rec2 := model.ClassifiedRecord{Kind: model.RecordEvent, Ev: model.Event{GuildID: "a", Kind: model.EventMisc}}
	e2.Handle(rec2, guildA(), []model.GuildConfig{guildB()})
	assert.Empty(t, q2.all())
}

func TestRenderTruncatesToChatLengthLimit(t *testing.T) {
	target := guildB()
	target.Account.ChatLengthLimit = 20
	text, _, ok := Render(model.GuildChat{Username: "Alice", Message: "this message is definitely far too long for the limit"}, guildA(), target, model.InterGuildConfig{})
	require.True(t, ok)
	assert.LessOrEqual(t, len([]rune(text)), 20)
}
