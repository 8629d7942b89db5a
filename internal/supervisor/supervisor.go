// Package supervisor implements the Connection Supervisor (E) of
// spec.md §4.E: owns the map of Guild Connections, schedules
// reconnection, and multiplexes connection lifecycle, classified chat
// and classified events upward onto the event bus.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/classify"
	"github.com/wardenbridge/guildbridge/internal/connection"
	"github.com/wardenbridge/guildbridge/internal/errs"
	"github.com/wardenbridge/guildbridge/internal/events"
	"github.com/wardenbridge/guildbridge/internal/model"
	"github.com/wardenbridge/guildbridge/internal/strategy"
)

// StrategyFor resolves the Strategy (C) to use for a given server
// flavor. Supplied by the caller so Supervisor never hardcodes Hypixel.
type StrategyFor func(flavor string) strategy.Strategy

// Supervisor is spec.md §4.E's Connection Supervisor.
type Supervisor struct {
	log         zerolog.Logger
	bus         *events.Bus
	factory     connection.Factory
	strategyFor StrategyFor
	classifier  *classify.Classifier

	mu        sync.Mutex
	conns     map[string]*connection.GuildConnection
	guilds    map[string]model.GuildConfig
	timers    map[string]*time.Timer
	stopped   bool
}

// New builds a Supervisor. factory constructs game-server sessions;
// strategyFor resolves per-flavor Strategy implementations; bus is the
// event bus E publishes lifecycle/chat/event traffic on.
func New(log zerolog.Logger, bus *events.Bus, factory connection.Factory, strategyFor StrategyFor, classifier *classify.Classifier) *Supervisor {
	return &Supervisor{
		log:         log,
		bus:         bus,
		factory:     factory,
		strategyFor: strategyFor,
		classifier:  classifier,
		conns:       make(map[string]*connection.GuildConnection),
		guilds:      make(map[string]model.GuildConfig),
		timers:      make(map[string]*time.Timer),
	}
}

// StartAll implements spec.md §4.E's startAll(): launches all enabled
// connections concurrently; successCount==0 fails startup.
func (s *Supervisor) StartAll(ctx context.Context, guilds []model.GuildConfig) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, g := range guilds {
		if !g.Enabled {
			continue
		}
		g := g
		s.mu.Lock()
		s.guilds[g.ID] = g
		conn := connection.New(s.log, g, s.factory, s.strategyFor(g.Server.Flavor), s.classifier, s.callbacksFor(g.ID))
		s.conns[g.ID] = conn
		s.mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := conn.Connect(ctx); err != nil {
				s.log.Error().Err(err).Str("guild", g.ID).Msg("failed to start guild connection")
				s.scheduleReconnect(ctx, g.ID)
				return
			}
			mu.Lock()
			successCount++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if successCount == 0 && len(guilds) > 0 {
		return errs.New(errs.Network, "", "no guild connections started successfully", nil)
	}
	return nil
}

// StopAll implements spec.md §4.E's stopAll(): cancels all timers before
// disconnecting any session, then awaits completion.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	conns := make([]*connection.GuildConnection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *connection.GuildConnection) {
			defer wg.Done()
			c.Disconnect(context.Background(), true)
		}(c)
	}
	wg.Wait()
}

// scheduleReconnect implements spec.md §4.E's scheduleReconnect(): only
// if the guild allows reconnection, cancelling any prior timer first.
func (s *Supervisor) scheduleReconnect(ctx context.Context, guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	g, ok := s.guilds[guildID]
	if !ok || !g.Account.ReconnectEnabled {
		return
	}
	if t, exists := s.timers[guildID]; exists {
		t.Stop()
	}

	conn, ok := s.conns[guildID]
	if !ok {
		return
	}
	state := conn.State()
	delay := connection.CalcDelay(g.Account.ReconnectBaseWait, state.Attempt)

	s.timers[guildID] = time.AfterFunc(delay, func() {
		if err := conn.Reconnect(ctx); err != nil {
			s.log.Error().Err(err).Str("guild", guildID).Msg("reconnect attempt failed")
			s.scheduleReconnect(ctx, guildID)
		}
	})
}

// IsConnected implements the guard spec.md §4.E's sendMessage/
// executeCommand require.
func (s *Supervisor) IsConnected(guildID string) bool {
	s.mu.Lock()
	conn, ok := s.conns[guildID]
	s.mu.Unlock()
	return ok && conn.IsConnected()
}

// SendMessage implements spec.md §4.E's sendMessage, guarded by
// IsConnected.
func (s *Supervisor) SendMessage(ctx context.Context, guildID, text string) error {
	s.mu.Lock()
	conn, ok := s.conns[guildID]
	s.mu.Unlock()
	if !ok || !conn.IsConnected() {
		return errs.New(errs.Network, guildID, "guild is not connected", nil)
	}
	return conn.SendMessage(ctx, text)
}

// SendOfficerMessage is the officer-chat counterpart of SendMessage,
// used by the Delivery Queue (H) for QueueOfficer items.
func (s *Supervisor) SendOfficerMessage(ctx context.Context, guildID, text string) error {
	s.mu.Lock()
	conn, ok := s.conns[guildID]
	s.mu.Unlock()
	if !ok || !conn.IsConnected() {
		return errs.New(errs.Network, guildID, "guild is not connected", nil)
	}
	return conn.SendOfficerMessage(ctx, text)
}

// ExecuteCommand implements spec.md §4.E's executeCommand, guarded by
// IsConnected.
func (s *Supervisor) ExecuteCommand(ctx context.Context, guildID, cmd string) error {
	s.mu.Lock()
	conn, ok := s.conns[guildID]
	s.mu.Unlock()
	if !ok || !conn.IsConnected() {
		return errs.New(errs.Network, guildID, "guild is not connected", nil)
	}
	return conn.ExecuteCommand(ctx, cmd)
}

// GuildConfig returns the configuration for guildID, if known.
func (s *Supervisor) GuildConfig(guildID string) (model.GuildConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.guilds[guildID]
	return g, ok
}

// Guilds returns every guild this Supervisor knows about.
func (s *Supervisor) Guilds() []model.GuildConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.GuildConfig, 0, len(s.guilds))
	for _, g := range s.guilds {
		out = append(out, g)
	}
	return out
}

func (s *Supervisor) callbacksFor(guildID string) connection.Callbacks {
	return connection.Callbacks{
		OnClassified: func(rec model.ClassifiedRecord) {
			switch rec.Kind {
			case model.RecordChat:
				if s.bus != nil {
					_ = s.bus.PublishChat(rec)
				}
			case model.RecordEvent:
				if s.bus != nil {
					_ = s.bus.PublishEvent(rec)
				}
			case model.RecordSystem:
				if s.bus != nil {
					_ = s.bus.PublishSystem(rec)
				}
			}
		},
		OnConnEvent: func(ev connection.ConnEvent) {
			if s.bus != nil {
				reason := ""
				if ev.Err != nil {
					reason = ev.Err.Error()
				}
				_ = s.bus.PublishConn(events.ConnLifecycle{
					GuildID: ev.GuildID,
					Kind:    connEventKindString(ev.Kind),
					Reason:  ev.Reason,
					Err:     reason,
				})
			}
			if ev.Kind == connection.ConnDisconnected || ev.Kind == connection.ConnKicked || ev.Kind == connection.ConnFailed {
				s.scheduleReconnect(context.Background(), guildID)
			}
		},
	}
}

func connEventKindString(k connection.ConnEventKind) string {
	switch k {
	case connection.ConnConnected:
		return "connected"
	case connection.ConnDisconnected:
		return "disconnected"
	case connection.ConnKicked:
		return "kicked"
	case connection.ConnFailed:
		return "failed"
	case connection.ConnError:
		return "error"
	default:
		return "unknown"
	}
}
