package connection

import "context"

// SessionEventKind enumerates the event types the game-client
// collaborator of spec.md §6 emits: spawn | end | kicked | error |
// message | health.
type SessionEventKind int

// Known SessionEventKind values.
const (
	SessionSpawn SessionEventKind = iota
	SessionEnd
	SessionKicked
	SessionError
	SessionMessage
	SessionHealth
)

// SessionEvent is one event delivered on a Session's event channel.
type SessionEvent struct {
	Kind     SessionEventKind
	Reason   string
	LoggedIn bool
	Err      error
	Text     string
	HP       int
}

// Session is the game-client collaborator contract of spec.md §6. It is
// intentionally thin: this repo never implements game-server network
// framing (spec.md §1 Non-goals) and only consumes this interface.
type Session interface {
	// Events returns the channel events arrive on. It is closed when
	// the session has fully torn down.
	Events() <-chan SessionEvent
	// Chat sends one line of chat.
	Chat(ctx context.Context, text string) error
	// Quit tears the session down.
	Quit(ctx context.Context) error
}

// Factory constructs and connects a new Session for the given account.
// It corresponds to spec.md §6's "connect(config) -> handle".
type Factory func(ctx context.Context, account SessionParams) (Session, error)

// SessionParams is the subset of model.GuildConfig a Factory needs to
// establish a session, kept separate from model.GuildConfig so Factory
// implementations do not need to import the whole config tree.
type SessionParams struct {
	GuildID    string
	Username   string
	AuthMethod string
	Host       string
	Port       int
	Version    string
}
