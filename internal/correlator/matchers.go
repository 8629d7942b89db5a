package correlator

import (
	"strings"

	"github.com/wardenbridge/guildbridge/internal/model"
)

func registerDefaultMatchers(c *Correlator) {
	c.matchers[model.CommandInvite] = matchInvite
	c.matchers[model.CommandKick] = matchKick
	c.matchers[model.CommandPromote] = matchPromote
	c.matchers[model.CommandDemote] = matchDemote
	c.matchers[model.CommandSetRank] = matchSetRank
	c.matchers[model.CommandMute] = matchMute
	c.matchers[model.CommandUnmute] = matchUnmute
	c.matchers[model.CommandBlacklist] = matchBlacklist
	c.matchers[model.CommandExecute] = matchExecute
}

// sameTarget compares case-insensitively, matching the game-server
// username grammar's case-insensitive display conventions.
func sameTarget(a, b string) bool { return strings.EqualFold(a, b) }

// matchInvite resolves on an invite event naming the target, or a
// system record of kind command_error for the same target (spec.md
// §4.F's worked example).
func matchInvite(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsEvent() && rec.Ev.Kind == model.EventInvite && sameTarget(rec.Ev.Target, pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchKick(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsEvent() && rec.Ev.Kind == model.EventKick && sameTarget(rec.Ev.Target, pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchPromote(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsEvent() && rec.Ev.Kind == model.EventPromote && sameTarget(rec.Ev.Target, pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchDemote(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsEvent() && rec.Ev.Kind == model.EventDemote && sameTarget(rec.Ev.Target, pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchSetRank(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsSystem() && rec.Sys.SystemKind == "setrank_ok" && sameTarget(rec.Sys.Payload["target"], pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchMute(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsSystem() && rec.Sys.SystemKind == "mute_ok" && sameTarget(rec.Sys.Payload["target"], pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchUnmute(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsSystem() && rec.Sys.SystemKind == "unmute_ok" && sameTarget(rec.Sys.Payload["target"], pending.Target) {
		return true, true, rec.Raw
	}
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	return false, false, ""
}

func matchBlacklist(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" && sameTarget(rec.Sys.Payload["actor"], pending.Target) {
		return true, false, rec.Raw
	}
	// Hypixel's /block add has no dedicated success feedback line, so
	// this matcher only ever resolves the failure path. A blacklist that
	// actually succeeds never matches and simply times out; bridge
	// renders that as "Command Timeout", not as success — see
	// DESIGN.md's Open Question resolution.
	return false, false, ""
}

func matchExecute(rec model.ClassifiedRecord, pending model.PendingCommand) (bool, bool, string) {
	if rec.IsSystem() && rec.Sys.SystemKind == "command_error" {
		return true, false, rec.Raw
	}
	return false, false, ""
}
