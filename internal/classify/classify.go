// Package classify implements the two-stage pattern engine of spec.md
// §4.B: it strips color-code escapes, filters ignorable noise, and
// decodes the remaining text into a typed model.ClassifiedRecord using a
// catalog.Catalog.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/wardenbridge/guildbridge/internal/catalog"
	"github.com/wardenbridge/guildbridge/internal/model"
)

// colorCode matches a Minecraft-style "§" formatting escape followed by
// its one-character code.
var colorCode = regexp.MustCompile(`§[0-9a-fk-or]`)

// rankBrackets strips a leading "[RANK] " token from an online-member
// name, per spec.md §4.B's "rank brackets stripped" rule.
var rankBrackets = regexp.MustCompile(`^\[[^\]]+\]\s*`)

// Classifier applies one Catalog to raw server text.
type Classifier struct {
	catalog            *catalog.Catalog
	preserveColorCodes bool
}

// New builds a Classifier over cat. preserveColorCodes disables the
// color-escape stripping step of spec.md §4.B step 1.
func New(cat *catalog.Catalog, preserveColorCodes bool) *Classifier {
	return &Classifier{catalog: cat, preserveColorCodes: preserveColorCodes}
}

// Classify decodes raw into a ClassifiedRecord for guild g. It never
// panics to the caller: any internal failure downgrades to Unknown.
func (cl *Classifier) Classify(raw string, g model.GuildConfig) (rec model.ClassifiedRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec = model.ClassifiedRecord{Kind: model.RecordUnknown, Raw: raw}
		}
	}()

	text := raw
	if !cl.preserveColorCodes {
		text = colorCode.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)

	snap := cl.catalog.For(g.Server.Flavor)

	for _, re := range snap.Ignore {
		if re.MatchString(text) {
			return model.ClassifiedRecord{Kind: model.RecordIgnored, Raw: raw, IgnoredReason: "filtered_content"}
		}
	}

	// "joined."/"left." lines are events, never chat, regardless of
	// which list would otherwise match first.
	looksLikeMembershipEvent := strings.HasSuffix(text, "joined.") || strings.HasSuffix(text, "left.") ||
		strings.HasSuffix(text, "joined the guild!") || strings.HasSuffix(text, "left the guild!")

	if !looksLikeMembershipEvent {
		if m := matchFirst(snap.GuildChat, text); m != nil {
			if rec, ok := cl.chatRecord(raw, g, m, model.ChatSubtypeGuild); ok {
				return rec
			}
		}
		if m := matchFirst(snap.OfficerChat, text); m != nil {
			if rec, ok := cl.chatRecord(raw, g, m, model.ChatSubtypeOfficer); ok {
				return rec
			}
		}
	}

	for _, p := range snap.Events {
		if m := namedGroups(p.Regex, text); m != nil {
			return eventRecord(raw, g.ID, p.Kind, m)
		}
	}

	for _, p := range snap.System {
		if m := namedGroups(p.Regex, text); m != nil {
			return model.ClassifiedRecord{
				Kind: model.RecordSystem,
				Raw:  raw,
				Sys: model.System{
					GuildID:    g.ID,
					SystemKind: string(p.Kind),
					Payload:    m,
				},
			}
		}
	}

	return model.ClassifiedRecord{Kind: model.RecordUnknown, Raw: raw}
}

// chatRecord builds a GuildChat record from a regex match, applying the
// self-echo short-circuit of spec.md §3's invariant: a chat record whose
// username equals the bot's own account name for this guild is dropped
// at classification, not later in the fan-out gate.
func (cl *Classifier) chatRecord(raw string, g model.GuildConfig, m map[string]string, subtype model.ChatSubtype) (model.ClassifiedRecord, bool) {
	username := m["username"]
	if strings.EqualFold(username, g.Account.Username) {
		return model.ClassifiedRecord{Kind: model.RecordIgnored, Raw: raw, IgnoredReason: "self_echo"}, true
	}
	return model.ClassifiedRecord{
		Kind: model.RecordChat,
		Raw:  raw,
		Chat: model.GuildChat{
			GuildID:     g.ID,
			Username:    username,
			Rank:        m["rank"],
			Message:     m["message"],
			ChatSubtype: subtype,
		},
	}, true
}

func eventRecord(raw, guildID string, kind catalog.Kind, m map[string]string) model.ClassifiedRecord {
	ev := model.Event{
		GuildID:  guildID,
		Kind:     model.EventKind(kind),
		Actor:    m["actor"],
		Target:   m["target"],
		FromRank: m["fromrank"],
		ToRank:   m["torank"],
		Reason:   m["reason"],
		Payload:  map[string]string{},
	}

	for k, v := range m {
		switch k {
		case "actor", "target", "fromrank", "torank", "reason":
			continue
		case "online":
			ev.Payload["online_count"] = v
			if n, err := strconv.Atoi(v); err == nil {
				ev.Payload["online_count_parsed"] = strconv.Itoa(n)
			}
		case "level":
			if n, err := strconv.Atoi(v); err == nil {
				ev.Payload["level"] = strconv.Itoa(n)
			} else {
				ev.Payload["level"] = v
			}
		case "payload":
			ev.Payload["motd"] = v
		default:
			ev.Payload[k] = v
		}
	}

	return model.ClassifiedRecord{Kind: model.RecordEvent, Raw: raw, Ev: ev}
}

// SplitOnlineMembers splits a comma-separated online-member list,
// trimming whitespace and stripping leading rank brackets from each
// name, per spec.md §4.B.
func SplitOnlineMembers(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = rankBrackets.ReplaceAllString(p, "")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchFirst(patterns []*regexp.Regexp, text string) map[string]string {
	for _, re := range patterns {
		if m := namedGroups(re, text); m != nil {
			return m
		}
	}
	return nil
}

// namedGroups returns the named capture groups of re's first match
// against text, or nil if re does not match.
func namedGroups(re *regexp.Regexp, text string) map[string]string {
	idx := re.FindStringSubmatchIndex(text)
	if idx == nil {
		return nil
	}
	names := re.SubexpNames()
	out := make(map[string]string, len(names))
	for i, name := range names {
		if i == 0 || name == "" {
			continue
		}
		start, end := idx[2*i], idx[2*i+1]
		if start < 0 {
			continue
		}
		out[name] = text[start:end]
	}
	return out
}
