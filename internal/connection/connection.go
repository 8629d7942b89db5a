// Package connection implements the Guild Connection (D) of spec.md
// §4.D: one state machine per guild owning a single game-server session,
// its reconnection policy, and the handoff of filtered text into the
// classifier.
package connection

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/classify"
	"github.com/wardenbridge/guildbridge/internal/errs"
	"github.com/wardenbridge/guildbridge/internal/model"
	"github.com/wardenbridge/guildbridge/internal/strategy"
)

// spawnWaitTimeout is the bound of spec.md §4.D's "awaits a spawn-ready
// signal under a 60-second deadline".
const spawnWaitTimeout = 60 * time.Second

// maxAttemptsPerRun is the bound of spec.md §4.D's "Max attempts per
// contiguous run".
const maxAttemptsPerRun = 5

// ConnEventKind enumerates the connection-lifecycle events D reports to
// its owning supervisor.
type ConnEventKind int

// Known ConnEventKind values.
const (
	ConnConnected ConnEventKind = iota
	ConnDisconnected
	ConnKicked
	ConnFailed
	ConnError
)

// ConnEvent is delivered to the supervisor-provided callback on every
// lifecycle transition.
type ConnEvent struct {
	GuildID string
	Kind    ConnEventKind
	Reason  string
	Err     error
}

// Callbacks are the two observer hooks spec.md §4.D exposes: classified
// traffic, and connection lifecycle. Both run on the connection's own
// goroutine and must not block.
type Callbacks struct {
	OnClassified func(model.ClassifiedRecord)
	OnConnEvent  func(ConnEvent)
}

// chatterAdapter lets the strategy package's Chatter interface be
// satisfied by a Session without importing connection into strategy.
type chatterAdapter struct{ s Session }

func (a chatterAdapter) Chat(ctx context.Context, text string) error { return a.s.Chat(ctx, text) }

// GuildConnection is one instance of spec.md §4.D's Guild Connection.
type GuildConnection struct {
	log       zerolog.Logger
	guild     model.GuildConfig
	strategy  strategy.Strategy
	classifer *classify.Classifier
	factory   Factory
	callbacks Callbacks

	// spawnTimeout bounds awaitSpawn; defaulted to spawnWaitTimeout by New
	// and overridable by tests that need to exercise the deadline path
	// without waiting out the real 60s.
	spawnTimeout time.Duration

	mu      sync.Mutex
	state   model.ConnectionState
	session Session
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a GuildConnection for g. factory creates the underlying
// Session; strat and cl implement C and B respectively.
func New(log zerolog.Logger, g model.GuildConfig, factory Factory, strat strategy.Strategy, cl *classify.Classifier, cb Callbacks) *GuildConnection {
	return &GuildConnection{
		log:          log.With().Str("guild", g.ID).Logger(),
		guild:        g,
		strategy:     strat,
		classifer:    cl,
		factory:      factory,
		callbacks:    cb,
		spawnTimeout: spawnWaitTimeout,
		state:        model.ConnectionState{GuildID: g.ID, Status: model.Disconnected, UpdatedAt: time.Now()},
	}
}

// State returns a snapshot of the connection's current state.
func (d *GuildConnection) State() model.ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsConnected reports whether the connection currently holds a live
// session.
func (d *GuildConnection) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Status == model.Connected
}

func (d *GuildConnection) setStatus(status model.ConnectionStatus) {
	d.mu.Lock()
	d.state.Status = status
	d.state.UpdatedAt = time.Now()
	d.mu.Unlock()
}

// Connect implements spec.md §4.D's connect(): create a session, await
// spawn-ready under a 60s deadline, run the strategy's post-connect
// script, and reset the attempt counter on success.
func (d *GuildConnection) Connect(ctx context.Context) error {
	d.setStatus(model.Connecting)

	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	attempt := d.state.Attempt + 1
	d.state.Attempt = attempt
	d.mu.Unlock()

	if attempt > maxAttemptsPerRun {
		cancel()
		d.setStatus(model.Failed)
		err := errs.New(errs.Network, d.guild.ID, "exceeded max connection attempts for this run", nil)
		d.emitConn(ConnFailed, "max_attempts", err)
		return err
	}

	sess, err := d.factory(ctx, SessionParams{
		GuildID:    d.guild.ID,
		Username:   d.guild.Account.Username,
		AuthMethod: string(d.guild.Account.AuthMethod),
		Host:       d.guild.Server.Host,
		Port:       d.guild.Server.Port,
		Version:    d.guild.Server.Version,
	})
	if err != nil {
		cancel()
		d.setStatus(model.Disconnected)
		wrapped := errs.New(errs.Network, d.guild.ID, "failed to establish session", err)
		d.emitConn(ConnError, "connect_failed", wrapped)
		return wrapped
	}

	if err := d.awaitSpawn(ctx, sess); err != nil {
		_ = sess.Quit(context.Background())
		cancel()
		d.setStatus(model.Disconnected)
		d.emitConn(ConnError, "spawn_timeout", err)
		return err
	}

	d.mu.Lock()
	d.session = sess
	d.state.HasSession = true
	d.state.ConnectedAt = time.Now()
	d.state.Attempt = 0
	d.mu.Unlock()
	d.setStatus(model.Connected)

	if err := d.strategy.OnConnect(ctx, chatterAdapter{sess}, d.guild); err != nil {
		d.log.Warn().Err(err).Msg("post-connect script failed; connection remains up")
	}

	d.emitConn(ConnConnected, "", nil)

	d.wg.Add(1)
	go d.pump(ctx, sess)

	return nil
}

func (d *GuildConnection) awaitSpawn(ctx context.Context, sess Session) error {
	deadline := time.NewTimer(d.spawnTimeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return errs.New(errs.Network, d.guild.ID, "session closed before spawn", nil)
			}
			if ev.Kind == SessionSpawn {
				return nil
			}
			if ev.Kind == SessionError {
				return errs.New(errs.Network, d.guild.ID, "session errored before spawn", ev.Err)
			}
		case <-deadline.C:
			return errs.New(errs.Timeout, d.guild.ID, "spawn wait deadline exceeded", nil)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pump reads session events until the session ends, classifying inbound
// messages that pass the strategy's inbound filter and forwarding
// lifecycle transitions to the supervisor callback.
func (d *GuildConnection) pump(ctx context.Context, sess Session) {
	defer d.wg.Done()
	for {
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case SessionMessage:
				d.handleMessage(ev.Text)
			case SessionEnd:
				d.setStatus(model.Disconnected)
				d.emitConn(ConnDisconnected, ev.Reason, nil)
				return
			case SessionKicked:
				d.setStatus(model.Disconnected)
				d.emitConn(ConnKicked, ev.Reason, nil)
				return
			case SessionError:
				d.emitConn(ConnError, "", ev.Err)
			case SessionHealth:
				// Health pulses are connectivity heartbeats only; no
				// classified record or lifecycle transition follows.
			}
		case <-ctx.Done():
			return
		}
	}
}

func (d *GuildConnection) handleMessage(raw string) {
	result := d.strategy.FilterInbound(raw, d.guild)
	if !result.Pass {
		return
	}
	rec := d.classifer.Classify(result.Data, d.guild)
	if rec.Kind == model.RecordIgnored {
		return
	}
	if d.callbacks.OnClassified != nil {
		d.callbacks.OnClassified(rec)
	}
}

func (d *GuildConnection) emitConn(kind ConnEventKind, reason string, err error) {
	if d.callbacks.OnConnEvent != nil {
		d.callbacks.OnConnEvent(ConnEvent{GuildID: d.guild.ID, Kind: kind, Reason: reason, Err: err})
	}
}

// CalcDelay implements spec.md §4.D's
// "calcDelay = baseDelay · min(attempt,5) + rand[0,5s)".
func CalcDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		attempt = 5
	}
	jitter := time.Duration(rand.Int63n(int64(5 * time.Second)))
	return base*time.Duration(attempt) + jitter
}

// Reconnect implements spec.md §4.D's reconnect(): disconnect(silent),
// wait calcDelay, connect(), then the strategy's reconnect script.
func (d *GuildConnection) Reconnect(ctx context.Context) error {
	d.setStatus(model.Reconnecting)
	d.Disconnect(context.Background(), true)

	d.mu.Lock()
	attempt := d.state.Attempt
	d.mu.Unlock()

	delay := CalcDelay(d.guild.Account.ReconnectBaseWait, attempt)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := d.Connect(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess != nil {
		if err := d.strategy.OnReconnect(ctx, chatterAdapter{sess}, d.guild); err != nil {
			d.log.Warn().Err(err).Msg("reconnect script failed; connection remains up")
		}
	}
	return nil
}

// SendMessage implements spec.md §4.D's sendMessage(): truncate to the
// guild's chatLengthLimit (append "..."), then emit on the session.
func (d *GuildConnection) SendMessage(ctx context.Context, text string) error {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return errs.New(errs.Network, d.guild.ID, "no active session", nil)
	}
	return sess.Chat(ctx, Truncate(text, d.guild.Account.ChatLengthLimit))
}

// SendOfficerMessage implements the officer-chat counterpart of
// SendMessage, prefixing Hypixel's officer-chat command so relayed
// text lands in /oc rather than /gc.
func (d *GuildConnection) SendOfficerMessage(ctx context.Context, text string) error {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return errs.New(errs.Network, d.guild.ID, "no active session", nil)
	}
	return sess.Chat(ctx, "/oc "+Truncate(text, d.guild.Account.ChatLengthLimit))
}

// Truncate shortens text to limit runes, appending "..." when it does,
// matching the truncation rule spec.md §4.D and §4.G's Renderer share.
func Truncate(text string, limit int) string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return text
	}
	const suffix = "..."
	cut := limit - len(suffix)
	if cut < 0 {
		cut = 0
	}
	runes := []rune(text)
	if cut > len(runes) {
		cut = len(runes)
	}
	return string(runes[:cut]) + suffix
}

// ExecuteCommand implements spec.md §4.D's executeCommand(): rejects
// unless cmd's first token is in the guild's allow-list.
func (d *GuildConnection) ExecuteCommand(ctx context.Context, cmd string) error {
	first := firstToken(cmd)
	if !d.guild.HasCommand(first) {
		return errs.New(errs.CommandRejected, d.guild.ID, fmt.Sprintf("command %q not in allow-list", first), nil)
	}
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess == nil {
		return errs.New(errs.Network, d.guild.ID, "no active session", nil)
	}
	return sess.Chat(ctx, cmd)
}

func firstToken(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// Disconnect implements spec.md §4.D's disconnect(silent): detach all
// listeners, close the session, transition to Disconnected. silent
// suppresses the ConnDisconnected callback (used by Reconnect, which
// reports its own lifecycle via Connect).
func (d *GuildConnection) Disconnect(ctx context.Context, silent bool) {
	d.mu.Lock()
	sess := d.session
	cancel := d.cancel
	d.session = nil
	d.state.HasSession = false
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sess != nil {
		_ = sess.Quit(ctx)
	}
	d.wg.Wait()

	d.setStatus(model.Disconnected)
	if !silent {
		d.emitConn(ConnDisconnected, "disconnect_requested", nil)
	}
}
