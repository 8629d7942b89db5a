package connection_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbridge/guildbridge/internal/catalog"
	"github.com/wardenbridge/guildbridge/internal/classify"
	"github.com/wardenbridge/guildbridge/internal/connection"
	"github.com/wardenbridge/guildbridge/internal/connection/faketest"
	"github.com/wardenbridge/guildbridge/internal/model"
	"github.com/wardenbridge/guildbridge/internal/strategy"
)

func externalTestGuild() model.GuildConfig {
	return model.GuildConfig{
		ID:   "guild-a",
		Name: "Alpha",
		Tag:  "A",
		Account: model.AccountConfig{
			Username:        "BotA",
			ChatLengthLimit: 20,
		},
		Server:   model.ServerConfig{Flavor: catalog.FlavorHypixel},
		Commands: model.CommandsConfig{AllowedCommands: []string{"/g"}},
	}
}

func newExternalTestConnection(t *testing.T, sess *faketest.Session, cb connection.Callbacks) *connection.GuildConnection {
	t.Helper()
	log := zerolog.Nop()
	cl := classify.New(catalog.NewDefault(), false)
	strat := strategy.NewHypixelStrategy(log)
	return connection.New(log, externalTestGuild(), faketest.Factory(sess), strat, cl, cb)
}

func TestConnectAwaitsSpawnThenConnected(t *testing.T) {
	sess := faketest.NewSession()
	var events []connection.ConnEvent
	conn := newExternalTestConnection(t, sess, connection.Callbacks{
		OnConnEvent: func(ev connection.ConnEvent) { events = append(events, ev) },
	})

	go sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	require.NoError(t, conn.Connect(context.Background()))
	assert.True(t, conn.IsConnected())
	require.NotEmpty(t, events)
	assert.Equal(t, connection.ConnConnected, events[len(events)-1].Kind)
}

func TestSendMessageTruncates(t *testing.T) {
	sess := faketest.NewSession()
	conn := newExternalTestConnection(t, sess, connection.Callbacks{})
	sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	require.NoError(t, conn.Connect(context.Background()))

	require.NoError(t, conn.SendMessage(context.Background(), strings.Repeat("x", 50)))
	sent := sess.Sent()
	require.NotEmpty(t, sent)
	last := sent[len(sent)-1]
	assert.LessOrEqual(t, len([]rune(last)), 20)
	assert.True(t, strings.HasSuffix(last, "..."))
}

func TestExecuteCommandRejectsDisallowed(t *testing.T) {
	sess := faketest.NewSession()
	conn := newExternalTestConnection(t, sess, connection.Callbacks{})
	sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	require.NoError(t, conn.Connect(context.Background()))

	err := conn.ExecuteCommand(context.Background(), "/kick someone")
	require.Error(t, err)
}

func TestExecuteCommandAllowsAllowlisted(t *testing.T) {
	sess := faketest.NewSession()
	conn := newExternalTestConnection(t, sess, connection.Callbacks{})
	sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	require.NoError(t, conn.Connect(context.Background()))

	require.NoError(t, conn.ExecuteCommand(context.Background(), "/g invite Steve"))
	assert.Contains(t, sess.Sent(), "/g invite Steve")
}
