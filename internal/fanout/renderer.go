package fanout

import (
	"fmt"

	"github.com/wardenbridge/guildbridge/internal/connection"
	"github.com/wardenbridge/guildbridge/internal/model"
)

// Render implements spec.md §4.G's Renderer for a GuildChat record:
// produce one line for target's chat channel, within target's
// chatLengthLimit, with the showTags/showSourceTag/[OFFICER] toggles of
// bridge.interGuild.*. The returned QueueKind tells the Delivery Queue
// whether to dispatch via guild or officer chat.
func Render(chat model.GuildChat, source, target model.GuildConfig, cfg model.InterGuildConfig) (string, model.QueueKind, bool) {
	if chat.Username == "" || chat.Message == "" {
		return "", "", false
	}

	prefix := ""
	if cfg.ShowSourceTag {
		prefix += "[SRC] "
	}
	if cfg.ShowTags && source.Tag != "" {
		prefix += fmt.Sprintf("[%s] ", source.Tag)
	}

	kind := model.QueueGuild
	if chat.ChatSubtype == model.ChatSubtypeOfficer {
		prefix += "[OFFICER] "
		if cfg.OfficerToOfficerChat {
			kind = model.QueueOfficer
		}
	}

	text := fmt.Sprintf("%s%s: %s", prefix, chat.Username, chat.Message)
	text = connection.Truncate(text, target.Account.ChatLengthLimit)
	return text, kind, true
}

// RenderEvent implements spec.md §4.G's Renderer for a shared Event
// record.
func RenderEvent(ev model.Event, source, target model.GuildConfig, cfg model.InterGuildConfig) string {
	prefix := ""
	if cfg.ShowSourceTag {
		prefix += "[SRC] "
	}
	if cfg.ShowTags && source.Tag != "" {
		prefix += fmt.Sprintf("[%s] ", source.Tag)
	}

	var body string
	switch ev.Kind {
	case model.EventKick:
		body = fmt.Sprintf("%s was kicked from %s by %s", ev.Target, source.Name, ev.Actor)
	case model.EventPromote:
		body = fmt.Sprintf("%s was promoted from %s to %s in %s", ev.Target, ev.FromRank, ev.ToRank, source.Name)
	case model.EventDemote:
		body = fmt.Sprintf("%s was demoted from %s to %s in %s", ev.Target, ev.FromRank, ev.ToRank, source.Name)
	case model.EventLevel:
		body = fmt.Sprintf("%s has reached Level %s!", source.Name, ev.Payload["level"])
	case model.EventMotd:
		body = fmt.Sprintf("%s's MOTD: %s", source.Name, ev.Payload["motd"])
	case model.EventWelcome:
		body = fmt.Sprintf("Welcome to %s, %s!", source.Name, ev.Target)
	case model.EventDisc:
		body = fmt.Sprintf("%s has disconnected", source.Name)
	default:
		body = fmt.Sprintf("%s: %s", source.Name, ev.Reason)
	}

	text := prefix + body
	return connection.Truncate(text, target.Account.ChatLengthLimit)
}
