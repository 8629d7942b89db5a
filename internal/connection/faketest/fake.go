// Package faketest provides an in-memory connection.Session for testing
// GuildConnection and anything layered above it, without a real
// game-server protocol implementation (spec.md §1 Non-goals).
package faketest

import (
	"context"
	"sync"

	"github.com/wardenbridge/guildbridge/internal/connection"
)

// Session is a controllable fake implementing connection.Session. Tests
// push events with Emit and inspect sent chat via Sent.
type Session struct {
	events chan connection.SessionEvent

	mu   sync.Mutex
	sent []string
	quit bool
}

// NewSession returns a ready-to-use fake session with a buffered event
// channel.
func NewSession() *Session {
	return &Session{events: make(chan connection.SessionEvent, 64)}
}

// Events implements connection.Session.
func (s *Session) Events() <-chan connection.SessionEvent { return s.events }

// Chat implements connection.Session, recording the sent text.
func (s *Session) Chat(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

// Quit implements connection.Session, closing the event channel.
func (s *Session) Quit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.quit {
		s.quit = true
		close(s.events)
	}
	return nil
}

// Emit pushes an event onto the session's event channel.
func (s *Session) Emit(ev connection.SessionEvent) {
	s.events <- ev
}

// Sent returns every line of chat sent through this session so far.
func (s *Session) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

// Factory returns a connection.Factory that always hands back session,
// ignoring the requested params.
func Factory(session *Session) connection.Factory {
	return func(ctx context.Context, _ connection.SessionParams) (connection.Session, error) {
		return session, nil
	}
}
