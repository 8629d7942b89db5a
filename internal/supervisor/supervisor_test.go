package supervisor

import (
	"context"
	"testing"
	"time"

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

func testGuild(id string, reconnect bool) model.GuildConfig {
	return model.GuildConfig{
		ID:      id,
		Name:    "Alpha",
		Tag:     "A",
		Enabled: true,
		Account: model.AccountConfig{
			Username:          "Bot" + id,
			ChatLengthLimit:   256,
			ReconnectEnabled:  reconnect,
			ReconnectBaseWait: time.Millisecond,
		},
		Server: model.ServerConfig{Flavor: catalog.FlavorHypixel},
	}
}

func newTestSupervisor(factory connection.Factory) *Supervisor {
	log := zerolog.Nop()
	cl := classify.New(catalog.NewDefault(), false)
	strategyFor := func(flavor string) strategy.Strategy { return strategy.NewHypixelStrategy(log) }
	return New(log, nil, factory, strategyFor, cl)
}

func TestStartAllConnectsEnabledGuilds(t *testing.T) {
	sess := faketest.NewSession()
	sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	sup := newTestSupervisor(faketest.Factory(sess))

	err := sup.StartAll(context.Background(), []model.GuildConfig{testGuild("a", false)})
	require.NoError(t, err)
	assert.True(t, sup.IsConnected("a"))
}

func TestStartAllFailsWhenNoGuildConnects(t *testing.T) {
	failingFactory := func(ctx context.Context, params connection.SessionParams) (connection.Session, error) {
		return nil, assertErr
	}
	sup := newTestSupervisor(failingFactory)

	err := sup.StartAll(context.Background(), []model.GuildConfig{testGuild("a", false)})
	assert.Error(t, err)
}

func TestSendMessageRequiresConnected(t *testing.T) {
	sup := newTestSupervisor(faketest.Factory(faketest.NewSession()))
	err := sup.SendMessage(context.Background(), "missing", "hi")
	assert.Error(t, err)
}

func TestStopAllDisconnectsAllGuilds(t *testing.T) {
	sess := faketest.NewSession()
	sess.Emit(connection.SessionEvent{Kind: connection.SessionSpawn})
	sup := newTestSupervisor(faketest.Factory(sess))

	require.NoError(t, sup.StartAll(context.Background(), []model.GuildConfig{testGuild("a", false)}))
	require.True(t, sup.IsConnected("a"))

	sup.StopAll()
	assert.False(t, sup.IsConnected("a"))
}

type dispatchErr struct{}

func (dispatchErr) Error() string { return "factory failed" }

var assertErr = dispatchErr{}
