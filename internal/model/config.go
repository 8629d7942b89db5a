// Package model holds the value types shared across components: guild
// configuration, classified records, and the small structs each owning
// component (connection, correlator, fanout, queue) keeps state in.
package model

import (
	"strings"
	"time"
)

// AuthMethod identifies how a GuildConnection authenticates its session.
type AuthMethod string

// Known AuthMethod values.
const (
	AuthMethodMicrosoft AuthMethod = "microsoft"
	AuthMethodMojang    AuthMethod = "mojang"
	AuthMethodOffline   AuthMethod = "offline"
)

// AccountConfig describes the dedicated account a GuildConnection joins
// the game server under.
type AccountConfig struct {
	Username          string
	AuthMethod        AuthMethod
	SessionPath       string
	CachePath         string
	ProfilesFolder    string
	ChatLengthLimit   int
	ReconnectEnabled  bool
	ReconnectBaseWait time.Duration
}

// ServerConfig describes the game server a guild's session connects to.
type ServerConfig struct {
	Flavor  string
	Host    string
	Port    int
	Version string
}

// CommandsConfig lists the chat commands a GuildConnection is permitted
// to send verbatim.
type CommandsConfig struct {
	AllowedCommands []string
}

// GuildConfig is immutable once loaded. One exists per configured guild,
// enabled or not.
type GuildConfig struct {
	ID      string
	Name    string
	Tag     string
	Enabled bool

	Account  AccountConfig
	Server   ServerConfig
	Ranks    []string
	Commands CommandsConfig

	// DiscordChannelID/DiscordOfficerChannelID are the External Bridge's
	// (I) notification targets for this guild's chat/officer chat and
	// event cards.
	DiscordChannelID        string
	DiscordOfficerChannelID string
}

// HasCommand reports whether cmd is in the guild's allow-list, comparing
// the whole of cmd exactly and case sensitively. Callers pass only the
// command's first token (see connection.GuildConnection.ExecuteCommand).
func (g GuildConfig) HasCommand(cmd string) bool {
	for _, allowed := range g.Commands.AllowedCommands {
		if allowed == cmd {
			return true
		}
	}
	return false
}

// HasRank reports whether rank matches one of the guild's configured
// ranks, case-insensitively.
func (g GuildConfig) HasRank(rank string) bool {
	for _, r := range g.Ranks {
		if strings.EqualFold(r, rank) {
			return true
		}
	}
	return false
}

// RateLimitConfig configures the inter-guild rate limiter of fanout.G.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// InterGuildConfig configures fanout.G's bridge.interGuild.* settings.
type InterGuildConfig struct {
	Enabled              bool
	OfficerToGuildChat   bool
	OfficerToOfficerChat bool
	ShowTags             bool
	ShowSourceTag        bool
	ShareableEvents      []string
	MaxDuplicatesPerWin  int
	DedupWindow          time.Duration
	RateLimit            RateLimitConfig
}

// ChatParserConfig configures features.chatParser.* toggles.
type ChatParserConfig struct {
	PreserveColorCodes bool
}

// MessageCleanerConfig configures advanced.messageCleaner.*.
type MessageCleanerConfig struct {
	MaxLength int
}

// DiscordConfig configures the External Bridge's (I) concrete binding
// to Discord via discordgo.
type DiscordConfig struct {
	Token       string
	AppID       string
	GuildID     string
	AdminRoleID string
}

// BridgeConfig is the root configuration tree of spec.md §6.
type BridgeConfig struct {
	Guilds         []GuildConfig
	ChatParser     ChatParserConfig
	MessageCleaner MessageCleanerConfig
	InterGuild     InterGuildConfig
	Discord        DiscordConfig

	CorrelatorDefaultTimeout time.Duration
	QueueInterSendGap        time.Duration
	QueueMaxAttempts         int
	ReconnectMaxAttempts     int
	SpawnWaitTimeout         time.Duration
}
