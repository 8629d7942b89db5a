// Package events is the typed observer bus of spec.md §5/§9: the
// Connection Supervisor (E) publishes connection lifecycle and
// classified traffic on subjects scoped per guild and per kind, and the
// Fan-out Engine, Command Correlator and External Bridge subscribe.
// Subjects are explicit strings decoded into typed Go structs — this
// replaces the source's dynamically attached listeners (spec.md Design
// Notes) without resorting to a process-global service locator.
package events

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"

	"github.com/wardenbridge/guildbridge/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Subject builders. Every subject is guild-scoped so a subscriber can
// choose between "one guild" and "all guilds" with nats wildcards
// (`guild.*.chat`).
func ChatSubject(guildID string) string  { return fmt.Sprintf("guild.%s.chat", guildID) }
func EventSubject(guildID string) string { return fmt.Sprintf("guild.%s.event", guildID) }
func ConnSubject(guildID string) string  { return fmt.Sprintf("guild.%s.conn", guildID) }

// AllChatSubject subscribes to every guild's chat traffic.
const AllChatSubject = "guild.*.chat"

// AllEventSubject subscribes to every guild's decoded events.
const AllEventSubject = "guild.*.event"

// AllConnSubject subscribes to every guild's lifecycle transitions.
const AllConnSubject = "guild.*.conn"

// ConnLifecycle mirrors connection.ConnEvent without importing the
// connection package, keeping events the dependency leaf both D/E and
// F/G/I build on.
type ConnLifecycle struct {
	GuildID string `json:"guild_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Err     string `json:"err,omitempty"`
}

// Bus wraps a nats.Conn with typed Publish/Subscribe helpers for the
// three subject families above.
type Bus struct {
	conn *nats.Conn
}

// New wraps an already-connected *nats.Conn.
func New(conn *nats.Conn) *Bus { return &Bus{conn: conn} }

// PublishChat publishes a classified chat record for its guild.
func (b *Bus) PublishChat(rec model.ClassifiedRecord) error {
	return b.publish(ChatSubject(rec.Chat.GuildID), rec)
}

// PublishEvent publishes a classified event record for its guild.
func (b *Bus) PublishEvent(rec model.ClassifiedRecord) error {
	return b.publish(EventSubject(rec.Ev.GuildID), rec)
}

// PublishSystem publishes a classified system record for its guild, on
// the same subject family as events since F's matchers treat both as
// inbound feedback candidates.
func (b *Bus) PublishSystem(rec model.ClassifiedRecord) error {
	return b.publish(EventSubject(rec.Sys.GuildID), rec)
}

// PublishConn publishes a connection lifecycle transition.
func (b *Bus) PublishConn(ev ConnLifecycle) error {
	return b.publish(ConnSubject(ev.GuildID), ev)
}

func (b *Bus) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.conn.Publish(subject, data)
}

// SubscribeChat subscribes subject (ChatSubject(id) or AllChatSubject)
// and decodes each message before invoking handler.
func (b *Bus) SubscribeChat(subject string, handler func(model.ClassifiedRecord)) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var rec model.ClassifiedRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			return
		}
		handler(rec)
	})
}

// SubscribeEvent subscribes subject (EventSubject(id) or
// AllEventSubject) and decodes each message before invoking handler.
func (b *Bus) SubscribeEvent(subject string, handler func(model.ClassifiedRecord)) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var rec model.ClassifiedRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			return
		}
		handler(rec)
	})
}

// SubscribeConn subscribes subject (ConnSubject(id) or AllConnSubject)
// and decodes each message before invoking handler.
func (b *Bus) SubscribeConn(subject string, handler func(ConnLifecycle)) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev ConnLifecycle
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return
		}
		handler(ev)
	})
}
