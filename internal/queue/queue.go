// Package queue implements the Delivery Queue (H) of spec.md §4.H: a
// single worker consuming QueueItems sequentially with a fixed
// inter-send gap, retrying unreachable or failed deliveries with
// bounded backoff before dropping them.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// Dispatcher is the seam to the Connection Supervisor (E) spec.md §4.H
// dispatches through.
type Dispatcher interface {
	IsConnected(guildID string) bool
	SendMessage(ctx context.Context, guildID, text string) error
	SendOfficerMessage(ctx context.Context, guildID, text string) error
}

// notConnectedBackoff is spec.md §4.H step 2's fixed re-enqueue delay
// for a target guild that is not currently Connected.
const notConnectedBackoff = 5 * time.Second

// Stats exposes the delivered/dropped counters spec.md §7 requires
// ("counters are exported in statistics").
type Stats struct {
	Delivered int64
	Dropped   int64
}

// Queue is spec.md §4.H's Delivery Queue. It exclusively owns the FIFO
// of pending QueueItems.
type Queue struct {
	log          zerolog.Logger
	dispatcher   Dispatcher
	interSendGap time.Duration

	redis    *redis.Client
	redisKey string

	mu     sync.Mutex
	items  []model.QueueItem
	wake   chan struct{}
	closed bool

	stats Stats
}

// New builds a Queue dispatching through dispatcher with the given
// inter-send gap. redisClient may be nil to disable snapshot
// persistence entirely.
func New(log zerolog.Logger, dispatcher Dispatcher, interSendGap time.Duration, redisClient *redis.Client) *Queue {
	if interSendGap <= 0 {
		interSendGap = time.Second
	}
	return &Queue{
		log:          log,
		dispatcher:   dispatcher,
		interSendGap: interSendGap,
		redis:        redisClient,
		redisKey:     "guildbridge:queue:snapshot",
		wake:         make(chan struct{}, 1),
	}
}

// Enqueue appends item to the tail of the FIFO. Retries re-enter here,
// preserving the per-target FIFO ordering of spec.md §5.
func (q *Queue) Enqueue(item model.QueueItem) {
	if item.FirstEnqueuedAt.IsZero() {
		item.FirstEnqueuedAt = time.Now()
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = 3
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the delivered/dropped counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Delivered: atomic.LoadInt64(&q.stats.Delivered),
		Dropped:   atomic.LoadInt64(&q.stats.Dropped),
	}
}

// Len reports the current queue depth, for tests and statistics.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Run is the single delivery worker of spec.md §4.H/§5: it consumes
// items one at a time with interSendGap between dispatches, until ctx is
// cancelled.
func (q *Queue) Run(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()

			q.process(ctx, item)

			select {
			case <-time.After(q.interSendGap):
			case <-ctx.Done():
				return
			}
			continue
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return
		}
	}
}

// Stop marks the queue closed; no further Enqueue calls are accepted.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *Queue) process(ctx context.Context, item model.QueueItem) {
	if item.SourceGuildID != "" && item.SourceGuildID == item.TargetGuildID {
		// Defensive double-check: G should never have produced this,
		// but H re-verifies per spec.md §4.H step 1.
		atomic.AddInt64(&q.stats.Dropped, 1)
		return
	}

	if !q.dispatcher.IsConnected(item.TargetGuildID) {
		q.retryOrDrop(item, notConnectedBackoff)
		return
	}

	var err error
	if item.Kind == model.QueueOfficer {
		err = q.dispatcher.SendOfficerMessage(ctx, item.TargetGuildID, item.RenderedText)
	} else {
		err = q.dispatcher.SendMessage(ctx, item.TargetGuildID, item.RenderedText)
	}
	if err != nil {
		item.Attempts++
		backoff := time.Duration(item.Attempts) * 2 * time.Second
		q.retryOrDropAt(item, backoff)
		return
	}

	atomic.AddInt64(&q.stats.Delivered, 1)
}

// retryOrDrop increments Attempts before deciding whether to retry,
// matching spec.md §4.H step 2 (not-connected path).
func (q *Queue) retryOrDrop(item model.QueueItem, backoff time.Duration) {
	item.Attempts++
	q.retryOrDropAt(item, backoff)
}

// retryOrDropAt assumes Attempts has already been incremented by the
// caller, matching spec.md §4.H step 3 (dispatch-failure path).
func (q *Queue) retryOrDropAt(item model.QueueItem, backoff time.Duration) {
	if item.Attempts >= item.MaxAttempts {
		atomic.AddInt64(&q.stats.Dropped, 1)
		q.log.Warn().Str("target", item.TargetGuildID).Int("attempts", item.Attempts).Msg("dropping queue item after max attempts")
		return
	}
	time.AfterFunc(backoff, func() { q.Enqueue(item) })
}

// Snapshot serializes the current queue contents to Redis so an
// in-process restart does not silently lose in-flight deliveries. Only
// meaningful if Queue was built with a non-nil redis.Client.
func (q *Queue) Snapshot(ctx context.Context) error {
	if q.redis == nil {
		return nil
	}
	q.mu.Lock()
	items := append([]model.QueueItem(nil), q.items...)
	q.mu.Unlock()

	data, err := msgpack.Marshal(items)
	if err != nil {
		return err
	}
	return q.redis.Set(ctx, q.redisKey, data, 0).Err()
}

// LoadSnapshot restores queue contents previously written by Snapshot,
// typically called once at startup before Run.
func (q *Queue) LoadSnapshot(ctx context.Context) error {
	if q.redis == nil {
		return nil
	}
	data, err := q.redis.Get(ctx, q.redisKey).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	var items []model.QueueItem
	if err := msgpack.Unmarshal(data, &items); err != nil {
		return err
	}
	q.mu.Lock()
	q.items = append(q.items, items...)
	q.mu.Unlock()
	return nil
}
