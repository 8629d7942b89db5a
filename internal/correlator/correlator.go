// Package correlator implements the Command Correlator (F) of spec.md
// §4.F: it registers pending outgoing chat commands and resolves them
// against the classified events/system records the Connection
// Supervisor publishes, within a deadline.
package correlator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// Matcher decides whether a classified record resolves a pending
// command of its kind. Matchers are small, per-command-kind predicates,
// per spec.md §4.F.
type Matcher func(rec model.ClassifiedRecord, pending model.PendingCommand) (resolved bool, success bool, message string)

// Correlator is spec.md §4.F's Command Correlator.
type Correlator struct {
	log      zerolog.Logger
	matchers map[model.CommandKind]Matcher

	mu      sync.Mutex
	pending map[string]*pendingEntry
	byGuild map[string][]string // guildID -> ordered listenerIDs, FIFO
}

type pendingEntry struct {
	cmd   model.PendingCommand
	timer *time.Timer
}

// New builds a Correlator with the default matcher set. Use
// RegisterMatcher to override or add kinds.
func New(log zerolog.Logger) *Correlator {
	c := &Correlator{
		log:      log,
		matchers: make(map[model.CommandKind]Matcher),
		pending:  make(map[string]*pendingEntry),
		byGuild:  make(map[string][]string),
	}
	registerDefaultMatchers(c)
	return c
}

// RegisterMatcher installs or replaces the Matcher for kind.
func (c *Correlator) RegisterMatcher(kind model.CommandKind, m Matcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matchers[kind] = m
}

// CreateListener implements spec.md §4.F's createListener(): registers
// a PendingCommand and returns its listenerId. The matching key is
// {guildId, kind, target} plus the listenerId for disambiguation, per
// spec.md §9's Open Question resolution (see DESIGN.md).
func (c *Correlator) CreateListener(guildID string, kind model.CommandKind, target, command string, timeout time.Duration) string {
	id := uuid.NewString()
	cmd := model.PendingCommand{
		ListenerID: id,
		GuildID:    guildID,
		Kind:       kind,
		Target:     target,
		Command:    command,
		DeadlineAt: time.Now().Add(timeout),
		Reply:      make(chan model.CommandResult, 1),
	}

	c.mu.Lock()
	entry := &pendingEntry{cmd: cmd}
	entry.timer = time.AfterFunc(timeout, func() { c.timeoutListener(id) })
	c.pending[id] = entry
	c.byGuild[guildID] = append(c.byGuild[guildID], id)
	c.mu.Unlock()

	return id
}

// WaitForResult implements spec.md §4.F's waitForResult(): blocks on the
// pending command's reply channel.
func (c *Correlator) WaitForResult(listenerID string) model.CommandResult {
	c.mu.Lock()
	entry, ok := c.pending[listenerID]
	c.mu.Unlock()
	if !ok {
		return model.CommandResult{Success: false, Type: model.ResultCancelled}
	}
	return <-entry.cmd.Reply
}

// CancelListener implements spec.md §4.F's cancelListener(): completes
// the reply channel with {type:cancelled} and removes the entry
// synchronously.
func (c *Correlator) CancelListener(listenerID string) {
	c.mu.Lock()
	entry, ok := c.pending[listenerID]
	if ok {
		c.removeLocked(listenerID)
	}
	c.mu.Unlock()
	if ok {
		entry.timer.Stop()
		entry.cmd.Reply <- model.CommandResult{Success: false, Type: model.ResultCancelled}
	}
}

func (c *Correlator) timeoutListener(listenerID string) {
	c.mu.Lock()
	entry, ok := c.pending[listenerID]
	if ok {
		c.removeLocked(listenerID)
	}
	c.mu.Unlock()
	if ok {
		entry.cmd.Reply <- model.CommandResult{Success: false, Type: model.ResultTimeout}
	}
}

func (c *Correlator) removeLocked(listenerID string) {
	entry, ok := c.pending[listenerID]
	if !ok {
		return
	}
	delete(c.pending, listenerID)
	ids := c.byGuild[entry.cmd.GuildID]
	for i, id := range ids {
		if id == listenerID {
			c.byGuild[entry.cmd.GuildID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

// Observe implements spec.md §4.F's matching rule: on every Event or
// System record for rec's guild, iterate pending commands for that
// guild in FIFO order and ask the matcher for each pending's kind
// whether the record resolves it. At most one pending command is
// resolved by any given record (spec.md §8's "Correlator exclusivity").
func (c *Correlator) Observe(rec model.ClassifiedRecord) {
	if !rec.IsEvent() && !rec.IsSystem() {
		return
	}
	guildID := rec.GuildIDOf()

	c.mu.Lock()
	ids := append([]string(nil), c.byGuild[guildID]...)
	c.mu.Unlock()

	for _, id := range ids {
		c.mu.Lock()
		entry, ok := c.pending[id]
		var matcher Matcher
		if ok {
			matcher = c.matchers[entry.cmd.Kind]
		}
		c.mu.Unlock()
		if !ok || matcher == nil {
			continue
		}

		resolved, success, message := matcher(rec, entry.cmd)
		if !resolved {
			continue
		}

		c.mu.Lock()
		c.removeLocked(id)
		c.mu.Unlock()
		entry.timer.Stop()
		entry.cmd.Reply <- model.CommandResult{Success: success, Type: model.ResultCommand, Message: message}
		return
	}
}

// Pending returns the number of outstanding pending commands, exposed
// for statistics/tests.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
