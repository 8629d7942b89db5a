// Package fanout implements the Fan-out Engine (G) of spec.md §4.G:
// duplicate/loop detection, same-source suppression, per-source rate
// limiting, and reformatting a classified record for each peer guild
// before handing it to the Delivery Queue.
package fanout

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// Enqueuer is the seam to the Delivery Queue (H); fanout never imports
// the queue package directly so the two can be wired and tested
// independently.
type Enqueuer interface {
	Enqueue(item model.QueueItem)
}

// defaultShareableEvents is the allow-list of spec.md §4.G's "Event
// sharing policy" when configuration does not override it.
var defaultShareableEvents = map[model.EventKind]struct{}{
	model.EventWelcome: {}, model.EventDisc: {}, model.EventKick: {},
	model.EventPromote: {}, model.EventDemote: {}, model.EventLevel: {}, model.EventMotd: {},
}

// relayFormats are the fixed self-relay text shapes of spec.md §4.G
// step 2, which catch a message this bridge itself produced coming back
// around through another guild's chat.
var relayFormats = []*regexp.Regexp{
	regexp.MustCompile(`^[a-zA-Z0-9_]{1,16}: .+$`),
	regexp.MustCompile(`^\[[^\]]+\] [a-zA-Z0-9_]{1,16}: .+$`),
	regexp.MustCompile(`^\[[^\]]+\] \[OFFICER\] [a-zA-Z0-9_]{1,16}: .+$`),
	regexp.MustCompile(`^[a-zA-Z0-9_]{1,16}: [a-zA-Z0-9_]{1,16}: .+$`),
}

// historySize bounds the per-guild ring buffer of spec.md §3's
// PerGuildHistory ("bounded ring (size ≈ 10)").
const historySize = 10

// Stats exposes the fan-out gate counters spec.md §7/§8 require
// ("loopsDetected", duplicate and rate-limit drops) for tests and
// operational visibility. Delivery drops are counted by queue.Stats.
type Stats struct {
	LoopsDetected    int64
	DuplicatesDropped int64
	RateLimited      int64
	FormatErrors     int64
	Fanned           int64
}

// Engine is spec.md §4.G's Fan-out Engine. It exclusively owns
// MessageHash, PerGuildHistory, and RateLimitWindow state.
type Engine struct {
	log   zerolog.Logger
	cfg   model.InterGuildConfig
	queue Enqueuer

	hashes *gocache.Cache

	historyMu sync.Mutex
	history   map[string][]model.HistoryEntry

	rateMu      sync.Mutex
	rateWindows map[string][]time.Time

	stats Stats
}

// New builds an Engine. cfg supplies the dedup window, max-duplicates
// bound and rate-limit settings of spec.md §9's "should be
// configuration" follow-up.
func New(log zerolog.Logger, cfg model.InterGuildConfig, queue Enqueuer) *Engine {
	if cfg.MaxDuplicatesPerWin <= 0 {
		cfg.MaxDuplicatesPerWin = 2
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 30 * time.Second
	}
	return &Engine{
		log:         log,
		cfg:         cfg,
		queue:       queue,
		hashes:      gocache.New(cfg.DedupWindow, cfg.DedupWindow),
		history:     make(map[string][]model.HistoryEntry),
		rateWindows: make(map[string][]time.Time),
	}
}

// Stats returns a snapshot of the drop/pass counters.
func (e *Engine) Stats() Stats {
	return Stats{
		LoopsDetected:     atomic.LoadInt64(&e.stats.LoopsDetected),
		DuplicatesDropped: atomic.LoadInt64(&e.stats.DuplicatesDropped),
		RateLimited:       atomic.LoadInt64(&e.stats.RateLimited),
		FormatErrors:      atomic.LoadInt64(&e.stats.FormatErrors),
		Fanned:            atomic.LoadInt64(&e.stats.Fanned),
	}
}

// Handle runs a ClassifiedRecord through spec.md §4.G's gate and, if it
// survives, renders and enqueues it for every enabled peer guild not
// suppressed by the per-target same-guild check.
func (e *Engine) Handle(rec model.ClassifiedRecord, source model.GuildConfig, peers []model.GuildConfig) {
	if !e.cfg.Enabled {
		return
	}

	switch rec.Kind {
	case model.RecordChat:
		e.handleChat(rec, source, peers)
	case model.RecordEvent:
		e.handleEvent(rec, source, peers)
	default:
		// System/Unknown/Ignored records are never fanned out.
	}
}

func (e *Engine) handleChat(rec model.ClassifiedRecord, source model.GuildConfig, peers []model.GuildConfig) {
	chat := rec.Chat

	if e.isSelfEchoOrRelay(chat, source) {
		atomic.AddInt64(&e.stats.LoopsDetected, 1)
		return
	}
	if e.recentIntraGuildDuplicate(source.ID, chat) {
		atomic.AddInt64(&e.stats.DuplicatesDropped, 1)
		return
	}
	if e.crossGuildHashDuplicate(source.ID, chat) {
		atomic.AddInt64(&e.stats.DuplicatesDropped, 1)
		return
	}
	if e.rateLimited(source.ID) {
		atomic.AddInt64(&e.stats.RateLimited, 1)
		return
	}

	if chat.ChatSubtype == model.ChatSubtypeOfficer && !e.cfg.OfficerToGuildChat && !e.cfg.OfficerToOfficerChat {
		return
	}

	for _, target := range peers {
		if isSameGuild(source, target) {
			continue
		}
		if chat.ChatSubtype == model.ChatSubtypeOfficer && !e.cfg.OfficerToGuildChat && !e.cfg.OfficerToOfficerChat {
			continue
		}
		text, kind, ok := Render(chat, source, target, e.cfg)
		if !ok {
			atomic.AddInt64(&e.stats.FormatErrors, 1)
			continue
		}
		e.queue.Enqueue(model.QueueItem{
			Kind:            kind,
			TargetGuildID:   target.ID,
			SourceGuildID:   source.ID,
			RenderedText:    text,
			MaxAttempts:     3,
			FirstEnqueuedAt: time.Now(),
		})
		atomic.AddInt64(&e.stats.Fanned, 1)
	}

	e.recordHistory(source.ID, chat)
}

func (e *Engine) handleEvent(rec model.ClassifiedRecord, source model.GuildConfig, peers []model.GuildConfig) {
	allow := e.cfg.ShareableEvents
	if len(allow) == 0 {
		if _, ok := defaultShareableEvents[rec.Ev.Kind]; !ok {
			return
		}
	} else {
		found := false
		for _, k := range allow {
			if model.EventKind(k) == rec.Ev.Kind {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}

	for _, target := range peers {
		if isSameGuild(source, target) {
			continue
		}
		text := RenderEvent(rec.Ev, source, target, e.cfg)
		e.queue.Enqueue(model.QueueItem{
			Kind:            model.QueueEvent,
			TargetGuildID:   target.ID,
			SourceGuildID:   source.ID,
			RenderedText:    text,
			MaxAttempts:     3,
			FirstEnqueuedAt: time.Now(),
		})
		atomic.AddInt64(&e.stats.Fanned, 1)
	}
}

// isSameGuild implements spec.md §4.G step 1 / Glossary's "same-guild
// suppression": id, name or tag equality.
func isSameGuild(a, b model.GuildConfig) bool {
	return a.ID == b.ID || a.Name == b.Name || (a.Tag != "" && a.Tag == b.Tag)
}

// isSelfEchoOrRelay implements spec.md §4.G step 2.
func (e *Engine) isSelfEchoOrRelay(chat model.GuildChat, source model.GuildConfig) bool {
	if strings.EqualFold(chat.Username, source.Account.Username) {
		return true
	}
	for _, re := range relayFormats {
		if re.MatchString(chat.Message) {
			return true
		}
	}
	return false
}

// recentIntraGuildDuplicate implements spec.md §4.G step 3.
func (e *Engine) recentIntraGuildDuplicate(guildID string, chat model.GuildChat) bool {
	key := historyKey(guildID, chat.ChatSubtype)
	now := time.Now()

	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	for _, entry := range e.history[key] {
		if entry.Username == chat.Username && entry.Message == chat.Message &&
			now.Sub(entry.Timestamp) <= e.cfg.DedupWindow {
			return true
		}
	}
	return false
}

func (e *Engine) recordHistory(guildID string, chat model.GuildChat) {
	key := historyKey(guildID, chat.ChatSubtype)
	entry := model.HistoryEntry{Username: chat.Username, Message: chat.Message, Timestamp: time.Now()}

	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	ring := e.history[key]
	ring = append(ring, entry)
	if len(ring) > historySize {
		ring = ring[len(ring)-historySize:]
	}
	e.history[key] = ring
}

func historyKey(guildID string, subtype model.ChatSubtype) string {
	return guildID + "|" + string(subtype)
}

// crossGuildHashDuplicate implements spec.md §4.G step 4: compute
// hash(subtype ∥ username ∥ text) lowercased and apply the
// maxDuplicatesPerWindow bound across all source guilds observed.
func (e *Engine) crossGuildHashDuplicate(sourceGuildID string, chat model.GuildChat) bool {
	key := hashKey(chat)

	if cached, ok := e.hashes.Get(key); ok {
		mh := cached.(*model.MessageHash)
		if mh.Count >= e.cfg.MaxDuplicatesPerWin {
			return true
		}
		mh.Count++
		mh.ObservedGuilds[sourceGuildID] = struct{}{}
		remaining := e.cfg.DedupWindow - time.Since(mh.FirstSeenAt)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		e.hashes.Set(key, mh, remaining)
		return false
	}

	mh := &model.MessageHash{
		Hash:           key,
		FirstSeenAt:    time.Now(),
		Count:          1,
		ObservedGuilds: map[string]struct{}{sourceGuildID: {}},
	}
	e.hashes.Set(key, mh, e.cfg.DedupWindow)
	return false
}

func hashKey(chat model.GuildChat) string {
	sum := sha1.Sum([]byte(strings.ToLower(string(chat.ChatSubtype) + chat.Username + chat.Message)))
	return hex.EncodeToString(sum[:])
}

// rateLimited implements spec.md §4.G step 5: a bounded sliding log of
// send timestamps per source guild. A record is dropped if the source
// already has ≥ limit entries within the last window, matching
// spec.md:188's "at most rateLimit.limit records per source in any
// window" invariant exactly rather than the burst-then-refill shape a
// token bucket would allow.
func (e *Engine) rateLimited(sourceGuildID string) bool {
	limit := e.cfg.RateLimit.Limit
	window := e.cfg.RateLimit.Window
	if limit <= 0 {
		limit = 2
	}
	if window <= 0 {
		window = 10 * time.Second
	}

	now := time.Now()
	cutoff := now.Add(-window)

	e.rateMu.Lock()
	defer e.rateMu.Unlock()

	timestamps := e.rateWindows[sourceGuildID]
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= limit {
		e.rateWindows[sourceGuildID] = kept
		return true
	}
	e.rateWindows[sourceGuildID] = append(kept, now)
	return false
}

// RunMaintenance implements spec.md §4.G's periodic maintenance:
// shrinking per-guild histories (already bounded on write, so this is
// a defensive re-trim) and forcing an eager expiry sweep of MessageHash
// entries so tests see determinism rather than waiting on go-cache's
// own janitor.
func (e *Engine) RunMaintenance() {
	e.hashes.DeleteExpired()

	e.historyMu.Lock()
	for k, ring := range e.history {
		if len(ring) > historySize {
			e.history[k] = ring[len(ring)-historySize:]
		}
	}
	e.historyMu.Unlock()
}

// RunMaintenanceLoop ticks RunMaintenance every interval until stop is
// closed, matching spec.md §4.G's "every 60s" cadence.
func (e *Engine) RunMaintenanceLoop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.RunMaintenance()
		case <-stop:
			return
		}
	}
}
