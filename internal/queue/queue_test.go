package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenbridge/guildbridge/internal/model"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      []string
	officer   []string
	failNext  int
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{connected: map[string]bool{}}
}

func (d *fakeDispatcher) IsConnected(guildID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected[guildID]
}

func (d *fakeDispatcher) SendMessage(ctx context.Context, guildID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		d.failNext--
		return assertErr
	}
	d.sent = append(d.sent, text)
	return nil
}

func (d *fakeDispatcher) SendOfficerMessage(ctx context.Context, guildID, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.officer = append(d.officer, text)
	return nil
}

func (d *fakeDispatcher) setConnected(guildID string, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected[guildID] = v
}

func (d *fakeDispatcher) sentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

var assertErr = &dispatchErr{"dispatch failed"}

type dispatchErr struct{ msg string }

func (e *dispatchErr) Error() string { return e.msg }

func TestQueueDeliversInOrder(t *testing.T) {
	d := newFakeDispatcher()
	d.setConnected("b", true)
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, TargetGuildID: "b", RenderedText: "first"})
	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, TargetGuildID: "b", RenderedText: "second"})

	require.Eventually(t, func() bool { return d.sentCount() >= 2 }, time.Second, 5*time.Millisecond)

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, d.sent)
}

func TestQueueDropsSameGuildLoop(t *testing.T) {
	d := newFakeDispatcher()
	d.setConnected("a", true)
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, SourceGuildID: "a", TargetGuildID: "a", RenderedText: "loop"})

	require.Eventually(t, func() bool { return q.Stats().Dropped == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, d.sentCount())
}

func TestQueueRetriesWhenTargetDisconnected(t *testing.T) {
	d := newFakeDispatcher()
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, TargetGuildID: "b", RenderedText: "wait for me", MaxAttempts: 3})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, d.sentCount())

	d.setConnected("b", true)
	require.Eventually(t, func() bool { return d.sentCount() == 1 }, 6*time.Second, 10*time.Millisecond)
}

func TestQueueDropsAfterMaxAttempts(t *testing.T) {
	d := newFakeDispatcher()
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, TargetGuildID: "never-connects", RenderedText: "gone", MaxAttempts: 1})

	require.Eventually(t, func() bool { return q.Stats().Dropped == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueueRetriesAfterDispatchFailure(t *testing.T) {
	d := newFakeDispatcher()
	d.setConnected("b", true)
	d.failNext = 1
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueGuild, TargetGuildID: "b", RenderedText: "retried", MaxAttempts: 3})

	require.Eventually(t, func() bool { return d.sentCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), q.Stats().Delivered)
}

func TestQueueSendsOfficerKindToOfficerChat(t *testing.T) {
	d := newFakeDispatcher()
	d.setConnected("b", true)
	q := New(zerolog.Nop(), d, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	q.Enqueue(model.QueueItem{Kind: model.QueueOfficer, TargetGuildID: "b", RenderedText: "officer only"})

	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.officer) == 1
	}, time.Second, 5*time.Millisecond)
}
