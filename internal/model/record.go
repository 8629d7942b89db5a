package model

import "time"

// ChatSubtype distinguishes guild chat from officer chat.
type ChatSubtype string

// Known ChatSubtype values.
const (
	ChatSubtypeGuild   ChatSubtype = "guild"
	ChatSubtypeOfficer ChatSubtype = "officer"
)

// EventKind enumerates the decoded Event.Kind values of spec.md §3.
type EventKind string

// Known EventKind values.
const (
	EventJoin     EventKind = "join"
	EventLeave    EventKind = "leave"
	EventKick     EventKind = "kick"
	EventPromote  EventKind = "promote"
	EventDemote   EventKind = "demote"
	EventInvite   EventKind = "invite"
	EventOnline   EventKind = "online"
	EventLevel    EventKind = "level"
	EventMotd     EventKind = "motd"
	EventMisc     EventKind = "misc"
	EventWelcome  EventKind = "welcome"
	EventDisc     EventKind = "disconnect"
)

// RecordKind tags the ClassifiedRecord union.
type RecordKind int

// Known RecordKind values.
const (
	RecordChat RecordKind = iota
	RecordEvent
	RecordSystem
	RecordUnknown
	RecordIgnored
)

// GuildChat is the ClassifiedRecord variant for guild/officer chat lines.
type GuildChat struct {
	GuildID     string
	Username    string
	Rank        string
	Message     string
	ChatSubtype ChatSubtype
}

// Event is the ClassifiedRecord variant for decoded lifecycle events.
type Event struct {
	GuildID  string
	Kind     EventKind
	Actor    string
	Target   string
	FromRank string
	ToRank   string
	Reason   string
	Payload  map[string]string
}

// System is the ClassifiedRecord variant for system/feedback messages,
// including command-rejection feedback the correlator matches against.
type System struct {
	GuildID    string
	SystemKind string
	Payload    map[string]string
}

// ClassifiedRecord is the tagged union produced by classify.Classify.
// Exactly one of Chat, Event, Sys is meaningful, selected by Kind.
type ClassifiedRecord struct {
	Kind RecordKind
	Raw  string

	Chat GuildChat
	Ev   Event
	Sys  System

	IgnoredReason string
	ClassifiedAt  time.Time
}

// IsChat reports whether the record is a GuildChat variant.
func (r ClassifiedRecord) IsChat() bool { return r.Kind == RecordChat }

// IsEvent reports whether the record is an Event variant.
func (r ClassifiedRecord) IsEvent() bool { return r.Kind == RecordEvent }

// IsSystem reports whether the record is a System variant.
func (r ClassifiedRecord) IsSystem() bool { return r.Kind == RecordSystem }

// GuildIDOf returns the owning guild id regardless of variant, or "" for
// Unknown/Ignored records which carry no guild association.
func (r ClassifiedRecord) GuildIDOf() string {
	switch r.Kind {
	case RecordChat:
		return r.Chat.GuildID
	case RecordEvent:
		return r.Ev.GuildID
	case RecordSystem:
		return r.Sys.GuildID
	default:
		return ""
	}
}
