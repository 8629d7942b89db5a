package catalog

import "regexp"

// NewDefault returns a Catalog pre-registered with the Hypixel-flavored
// patterns confirmed by the original_source project name (SPEC_FULL.md
// §12): guild/officer chat, membership and rank events, and the system
// messages a correlator listener needs to resolve against.
func NewDefault() *Catalog {
	c := New()
	registerHypixel(c)
	return c
}

// FlavorHypixel is the server flavor key the default patterns register
// under.
const FlavorHypixel = "hypixel"

func registerHypixel(c *Catalog) {
	f := FlavorHypixel

	// Rank-prefixed and bare variants both need to match; rank is an
	// optional bracketed token between the separator and the username.
	c.RegisterGuildChat(f, regexp.MustCompile(`^Guild > (?:\[(?P<rank>[^\]]+)\] )?(?P<username>[a-zA-Z0-9_]{1,16})(?: \[[^\]]+\])?: (?P<message>.+)$`))
	c.RegisterOfficerChat(f, regexp.MustCompile(`^Officer > (?:\[(?P<rank>[^\]]+)\] )?(?P<username>[a-zA-Z0-9_]{1,16})(?: \[[^\]]+\])?: (?P<message>.+)$`))

	c.RegisterEvent(f, KindJoin, regexp.MustCompile(`^(?P<target>[a-zA-Z0-9_]{1,16}) joined the guild!$`))
	c.RegisterEvent(f, KindLeave, regexp.MustCompile(`^(?P<target>[a-zA-Z0-9_]{1,16}) left the guild!$`))
	c.RegisterEvent(f, KindKick, regexp.MustCompile(`^(?P<target>[a-zA-Z0-9_]{1,16}) was kicked from the guild by (?P<actor>[a-zA-Z0-9_]{1,16})!$`))
	c.RegisterEvent(f, KindPromote, regexp.MustCompile(`^(?P<target>[a-zA-Z0-9_]{1,16}) was promoted from (?P<fromrank>[\w ]+) to (?P<torank>[\w ]+)$`))
	c.RegisterEvent(f, KindDemote, regexp.MustCompile(`^(?P<target>[a-zA-Z0-9_]{1,16}) was demoted from (?P<fromrank>[\w ]+) to (?P<torank>[\w ]+)$`))
	c.RegisterEvent(f, KindInvite, regexp.MustCompile(`^(?P<actor>[a-zA-Z0-9_]{1,16}) invited (?P<target>[a-zA-Z0-9_]{1,16}) to the guild!$`))
	c.RegisterEvent(f, KindOnline, regexp.MustCompile(`^Guild Members?: \((?P<online>\d+)\)$`))
	c.RegisterEvent(f, KindLevel, regexp.MustCompile(`^The Guild has reached Level (?P<level>\d+)!$`))
	c.RegisterEvent(f, KindMotd, regexp.MustCompile(`^MOTD: (?P<payload>.+)$`))

	c.RegisterSystem(f, "command_error", regexp.MustCompile(`^(?:You cannot invite|(?P<actor>[a-zA-Z0-9_]{1,16}) is already in|I could not find) .*$`))
	c.RegisterSystem(f, "command_error", regexp.MustCompile(`^(?P<actor>[a-zA-Z0-9_]{1,16}) is not in your guild!$`))
	c.RegisterSystem(f, "setrank_ok", regexp.MustCompile(`^You have changed the rank of (?P<target>[a-zA-Z0-9_]{1,16}) to (?P<torank>[\w ]+)$`))
	c.RegisterSystem(f, "mute_ok", regexp.MustCompile(`^You have muted (?P<target>[a-zA-Z0-9_]{1,16}) for (?P<duration>\S+)$`))
	c.RegisterSystem(f, "unmute_ok", regexp.MustCompile(`^You have unmuted (?P<target>[a-zA-Z0-9_]{1,16})$`))

	c.RegisterIgnore(f, regexp.MustCompile(`^You are AFK\.?$`))
	c.RegisterIgnore(f, regexp.MustCompile(`^-{5,}$`))
}
