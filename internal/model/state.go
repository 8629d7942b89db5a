package model

import "time"

// ConnectionStatus is one of the five states of spec.md §3's
// ConnectionState machine.
type ConnectionStatus int

// Known ConnectionStatus values.
const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

// String renders the status for logging.
func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ConnectionState tracks one guild's connection lifecycle. Mutated only by
// the owning GuildConnection.
type ConnectionState struct {
	GuildID     string
	Status      ConnectionStatus
	Attempt     int
	ConnectedAt time.Time
	UpdatedAt   time.Time
	HasSession  bool
}

// CommandKind enumerates the slash-command-originated chat commands F can
// register a listener for.
type CommandKind string

// Known CommandKind values.
const (
	CommandInvite    CommandKind = "invite"
	CommandKick      CommandKind = "kick"
	CommandPromote   CommandKind = "promote"
	CommandDemote    CommandKind = "demote"
	CommandSetRank   CommandKind = "setrank"
	CommandMute      CommandKind = "mute"
	CommandUnmute    CommandKind = "unmute"
	CommandBlacklist CommandKind = "blacklist"
	CommandExecute   CommandKind = "execute"
)

// ResultType enumerates how a PendingCommand resolved.
type ResultType string

// Known ResultType values.
const (
	ResultCommand   ResultType = "command_result"
	ResultTimeout   ResultType = "timeout"
	ResultCancelled ResultType = "cancelled"
)

// CommandResult is delivered on a PendingCommand's reply channel.
type CommandResult struct {
	Success bool
	Type    ResultType
	Message string
	Err     error
}

// PendingCommand is a single outstanding correlated chat command, keyed
// by ListenerID.
type PendingCommand struct {
	ListenerID string
	GuildID    string
	Kind       CommandKind
	Target     string
	Command    string
	DeadlineAt time.Time
	Reply      chan CommandResult
}

// QueueKind enumerates the three destinations QueueItem can dispatch to.
type QueueKind string

// Known QueueKind values.
const (
	QueueGuild  QueueKind = "guild"
	QueueOfficer QueueKind = "officer"
	QueueEvent  QueueKind = "event"
)

// QueueItem is one unit of work for the Delivery Queue (H).
type QueueItem struct {
	Kind            QueueKind
	TargetGuildID   string
	SourceGuildID   string
	RenderedText    string
	Attempts        int
	MaxAttempts     int
	FirstEnqueuedAt time.Time
}

// MessageHash tracks a cross-guild dedup observation within the sliding
// window of spec.md §4.G step 4.
type MessageHash struct {
	Hash           string
	FirstSeenAt    time.Time
	Count          int
	ObservedGuilds map[string]struct{}
}

// HistoryEntry is one entry of a PerGuildHistory ring buffer.
type HistoryEntry struct {
	Username  string
	Message   string
	Timestamp time.Time
}
