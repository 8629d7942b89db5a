package bridge

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/wardenbridge/guildbridge/internal/events"
	"github.com/wardenbridge/guildbridge/internal/model"
)

// card colors, matching the rejected/failed/success/timeout distinction
// spec.md §7 requires I to surface as "distinct card types".
const (
	colorSuccess  = 0x43B581
	colorFailure  = 0xF04747
	colorTimeout  = 0xFAA61A
	colorRejected = 0x747F8D
	colorInfo     = 0x5865F2
)

type card struct {
	title       string
	description string
	color       int
}

func (c card) toEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       c.title,
		Description: c.description,
		Color:       c.color,
	}
}

func rejectedCard(reason string) card {
	return card{title: "Command Rejected", description: reason, color: colorRejected}
}

func executionFailedCard(err error) card {
	return card{title: "Execution Failed", description: err.Error(), color: colorFailure}
}

// resultCard renders the correlator's CommandResult per spec.md §4.I.
func resultCard(commandName, target string, result model.CommandResult) card {
	switch result.Type {
	case model.ResultTimeout:
		return card{title: "Command Timeout", description: fmt.Sprintf("%s %s: no game-server feedback within the deadline", commandName, target), color: colorTimeout}
	case model.ResultCancelled:
		return card{title: "Command Cancelled", description: fmt.Sprintf("%s %s was cancelled", commandName, target), color: colorRejected}
	default:
		if result.Success {
			msg := result.Message
			if msg == "" {
				msg = fmt.Sprintf("%s %s succeeded", commandName, target)
			}
			return card{title: "Command Succeeded", description: msg, color: colorSuccess}
		}
		msg := result.Message
		if msg == "" && result.Err != nil {
			msg = result.Err.Error()
		}
		if msg == "" {
			msg = fmt.Sprintf("%s %s failed", commandName, target)
		}
		return card{title: "Command Failed", description: msg, color: colorFailure}
	}
}

// eventCard renders a classified Event as an embed, mirroring
// fanout.RenderEvent's text but for the Discord notification channel.
func eventCard(ev model.Event, g model.GuildConfig) card {
	var desc string
	switch ev.Kind {
	case model.EventJoin:
		desc = fmt.Sprintf("%s joined %s", ev.Target, g.Name)
	case model.EventLeave:
		desc = fmt.Sprintf("%s left %s", ev.Target, g.Name)
	case model.EventKick:
		desc = fmt.Sprintf("%s was kicked by %s", ev.Target, ev.Actor)
	case model.EventPromote:
		desc = fmt.Sprintf("%s was promoted from %s to %s", ev.Target, ev.FromRank, ev.ToRank)
	case model.EventDemote:
		desc = fmt.Sprintf("%s was demoted from %s to %s", ev.Target, ev.FromRank, ev.ToRank)
	case model.EventInvite:
		desc = fmt.Sprintf("%s invited %s", ev.Actor, ev.Target)
	case model.EventLevel:
		desc = fmt.Sprintf("%s reached Level %s", g.Name, ev.Payload["level"])
	case model.EventMotd:
		desc = fmt.Sprintf("MOTD updated: %s", ev.Payload["motd"])
	default:
		desc = ev.Reason
	}
	return card{title: fmt.Sprintf("[%s] %s", g.Tag, ev.Kind), description: desc, color: colorInfo}
}

// connCard renders a connection lifecycle transition.
func connCard(ev events.ConnLifecycle, g model.GuildConfig) card {
	color := colorInfo
	switch ev.Kind {
	case "connected":
		color = colorSuccess
	case "disconnected", "kicked", "failed", "error":
		color = colorFailure
	}
	desc := ev.Reason
	if ev.Err != "" {
		desc = ev.Err
	}
	if desc == "" {
		desc = fmt.Sprintf("%s is now %s", g.Name, ev.Kind)
	}
	return card{title: fmt.Sprintf("[%s] Connection %s", g.Tag, ev.Kind), description: desc, color: color}
}
