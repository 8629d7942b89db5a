// Package bridge implements the External Bridge (I) of spec.md §4.I,
// concretely bound to Discord via github.com/bwmarrin/discordgo: it
// renders classified records and correlator results as embed cards,
// and adapts Discord's slash commands into moderation actions pushed
// back through the Connection Supervisor (E).
package bridge

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/errs"
	"github.com/wardenbridge/guildbridge/internal/events"
	"github.com/wardenbridge/guildbridge/internal/model"
)

// usernamePattern and timePattern implement spec.md §6's argument
// grammars.
var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)
	timePattern     = regexp.MustCompile(`^(\d+[smhd])+$`)
)

// Dispatcher is the seam to the Connection Supervisor (E).
type Dispatcher interface {
	IsConnected(guildID string) bool
	ExecuteCommand(ctx context.Context, guildID, cmd string) error
	GuildConfig(guildID string) (model.GuildConfig, bool)
	Guilds() []model.GuildConfig
}

// Correlator is the seam to the Command Correlator (F).
type Correlator interface {
	CreateListener(guildID string, kind model.CommandKind, target, command string, timeout time.Duration) string
	WaitForResult(listenerID string) model.CommandResult
	CancelListener(listenerID string)
}

// Bridge is spec.md §4.I's External Bridge.
type Bridge struct {
	log        zerolog.Logger
	session    *discordgo.Session
	dispatcher Dispatcher
	correlator Correlator
	bus        *events.Bus
	cfg        model.DiscordConfig
	defaultTimeout time.Duration

	registeredIDs []string
}

// New builds a Bridge. session must already be opened by the caller
// (cmd/bridge/main.go) — Bridge only calls its public API, never
// manages the gateway connection itself.
func New(log zerolog.Logger, session *discordgo.Session, dispatcher Dispatcher, corr Correlator, bus *events.Bus, cfg model.DiscordConfig, defaultTimeout time.Duration) *Bridge {
	if defaultTimeout <= 0 {
		defaultTimeout = 15 * time.Second
	}
	return &Bridge{
		log:            log,
		session:        session,
		dispatcher:     dispatcher,
		correlator:     corr,
		bus:            bus,
		cfg:            cfg,
		defaultTimeout: defaultTimeout,
	}
}

// Start registers slash commands, the interaction handler, and the
// event-bus subscriptions that render D/B's classified records as
// notification cards, per spec.md §4.I.
func (b *Bridge) Start() error {
	if err := b.registerCommands(); err != nil {
		return err
	}
	b.session.AddHandler(b.handleInteraction)

	if _, err := b.bus.SubscribeChat(events.AllChatSubject, b.onChat); err != nil {
		return err
	}
	if _, err := b.bus.SubscribeEvent(events.AllEventSubject, b.onEvent); err != nil {
		return err
	}
	if _, err := b.bus.SubscribeConn(events.AllConnSubject, b.onConn); err != nil {
		return err
	}
	return nil
}

func (b *Bridge) registerCommands() error {
	guildOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "guild",
		Description: "configured guild id",
		Required:    true,
	}
	usernameOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "username",
		Description: "game-server username",
		Required:    true,
	}

	commands := []*discordgo.ApplicationCommand{
		{Name: "invite", Description: "invite a player to a guild", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption}},
		{Name: "kick", Description: "kick a player from a guild", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption,
			{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "kick reason", Required: true}}},
		{Name: "promote", Description: "promote a player", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption}},
		{Name: "demote", Description: "demote a player", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption}},
		{Name: "setrank", Description: "set a player's rank", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption,
			{Type: discordgo.ApplicationCommandOptionString, Name: "rank", Description: "target rank", Required: true}}},
		{Name: "mute", Description: "mute a player or the whole guild", Options: []*discordgo.ApplicationCommandOption{guildOption,
			{Type: discordgo.ApplicationCommandOptionString, Name: "scope", Description: "global or player", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{{Name: "global", Value: "global"}, {Name: "player", Value: "player"}}},
			{Type: discordgo.ApplicationCommandOptionString, Name: "username", Description: "player username (scope=player)", Required: false},
			{Type: discordgo.ApplicationCommandOptionString, Name: "time", Description: "duration, e.g. 10m", Required: true}}},
		{Name: "unmute", Description: "unmute a player or the whole guild", Options: []*discordgo.ApplicationCommandOption{guildOption,
			{Type: discordgo.ApplicationCommandOptionString, Name: "scope", Description: "global or player", Required: true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{{Name: "global", Value: "global"}, {Name: "player", Value: "player"}}},
			{Type: discordgo.ApplicationCommandOptionString, Name: "username", Description: "player username (scope=player)", Required: false}}},
		{Name: "blacklist", Description: "blacklist a player from a guild", Options: []*discordgo.ApplicationCommandOption{guildOption, usernameOption}},
		{Name: "execute", Description: "execute a raw guild command (admin only)", Options: []*discordgo.ApplicationCommandOption{guildOption,
			{Type: discordgo.ApplicationCommandOptionString, Name: "raw", Description: "raw command, without leading /", Required: true}}},
	}

	for _, cmd := range commands {
		created, err := b.session.ApplicationCommandCreate(b.cfg.AppID, b.cfg.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
		b.registeredIDs = append(b.registeredIDs, created.ID)
	}
	return nil
}

func (b *Bridge) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.Warn().Err(err).Msg("failed to defer interaction reply")
		return
	}

	card := b.dispatchCommand(context.Background(), data, i)
	embed := card.toEmbed()
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}}); err != nil {
		b.log.Warn().Err(err).Msg("failed to edit deferred interaction reply")
	}
}

func optString(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// dispatchCommand implements spec.md §4.I: validate arguments, build
// the game-server command, correlate, dispatch, await, render.
func (b *Bridge) dispatchCommand(ctx context.Context, data discordgo.ApplicationCommandInteractionData, i *discordgo.InteractionCreate) card {
	guildID := optString(data, "guild")
	g, ok := b.dispatcher.GuildConfig(guildID)
	if !ok || !g.Enabled {
		return rejectedCard(fmt.Sprintf("guild %q is not configured or disabled", guildID))
	}
	if !b.dispatcher.IsConnected(guildID) {
		return rejectedCard(fmt.Sprintf("guild %q is not currently connected", guildID))
	}

	kind, target, gameCmd, err := buildGameCommand(data.Name, data, g)
	if err != nil {
		if kind == model.CommandExecute && !b.isAdmin(i) {
			return rejectedCard("execute requires the bridge admin role")
		}
		return rejectedCard(err.Error())
	}
	if kind == model.CommandExecute && !b.isAdmin(i) {
		return rejectedCard("execute requires the bridge admin role")
	}

	listenerID := b.correlator.CreateListener(guildID, kind, target, gameCmd, b.defaultTimeout)
	if err := b.dispatcher.ExecuteCommand(ctx, guildID, gameCmd); err != nil {
		b.correlator.CancelListener(listenerID)
		return executionFailedCard(err)
	}

	result := b.correlator.WaitForResult(listenerID)
	return resultCard(data.Name, target, result)
}

// buildGameCommand implements the table of spec.md §6's slash-command
// grammar: {kind, target, gameCommand}, or a validation error.
func buildGameCommand(name string, data discordgo.ApplicationCommandInteractionData, g model.GuildConfig) (model.CommandKind, string, string, error) {
	username := optString(data, "username")

	switch name {
	case "invite":
		if err := validateUsername(username); err != nil {
			return model.CommandInvite, "", "", err
		}
		return model.CommandInvite, username, "/g invite " + username, nil
	case "kick":
		if err := validateUsername(username); err != nil {
			return model.CommandKick, "", "", err
		}
		reason := optString(data, "reason")
		return model.CommandKick, username, "/g kick " + username + " " + reason, nil
	case "promote":
		if err := validateUsername(username); err != nil {
			return model.CommandPromote, "", "", err
		}
		return model.CommandPromote, username, "/g promote " + username, nil
	case "demote":
		if err := validateUsername(username); err != nil {
			return model.CommandDemote, "", "", err
		}
		return model.CommandDemote, username, "/g demote " + username, nil
	case "setrank":
		if err := validateUsername(username); err != nil {
			return model.CommandSetRank, "", "", err
		}
		rank := optString(data, "rank")
		if !g.HasRank(rank) {
			return model.CommandSetRank, "", "", errs.New(errs.CommandRejected, g.ID, fmt.Sprintf("rank %q is not configured for this guild", rank), nil)
		}
		return model.CommandSetRank, username, "/g setrank " + username + " " + rank, nil
	case "mute":
		return buildMuteCommand(model.CommandMute, "/g mute", data)
	case "unmute":
		return buildMuteCommand(model.CommandUnmute, "/g unmute", data)
	case "blacklist":
		if err := validateUsername(username); err != nil {
			return model.CommandBlacklist, "", "", err
		}
		return model.CommandBlacklist, username, "/block add " + username, nil
	case "execute":
		raw := strings.TrimSpace(optString(data, "raw"))
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "g ") || strings.HasPrefix(lower, "guild ") {
			return model.CommandExecute, "", "", errs.New(errs.CommandRejected, g.ID, "execute may not run a /g or /guild command", nil)
		}
		return model.CommandExecute, "", "/" + raw, nil
	default:
		return "", "", "", errs.New(errs.CommandRejected, g.ID, fmt.Sprintf("unknown command %q", name), nil)
	}
}

func buildMuteCommand(kind model.CommandKind, verb string, data discordgo.ApplicationCommandInteractionData) (model.CommandKind, string, string, error) {
	scope := optString(data, "scope")
	username := optString(data, "username")
	dur := optString(data, "time")

	if scope == "player" {
		if err := validateUsername(username); err != nil {
			return kind, "", "", err
		}
		if kind == model.CommandMute {
			if err := validateTime(dur); err != nil {
				return kind, "", "", err
			}
			return kind, username, fmt.Sprintf("%s %s %s", verb, username, dur), nil
		}
		return kind, username, fmt.Sprintf("%s %s", verb, username), nil
	}

	if kind == model.CommandMute {
		if err := validateTime(dur); err != nil {
			return kind, "", "", err
		}
		return kind, "", fmt.Sprintf("%s %s", verb, dur), nil
	}
	return kind, "", verb, nil
}

func validateUsername(u string) error {
	if !usernamePattern.MatchString(u) {
		return errs.New(errs.CommandRejected, "", fmt.Sprintf("invalid username %q", u), nil)
	}
	return nil
}

func validateTime(t string) error {
	if !timePattern.MatchString(t) {
		return errs.New(errs.CommandRejected, "", fmt.Sprintf("invalid duration %q", t), nil)
	}
	return nil
}

func (b *Bridge) isAdmin(i *discordgo.InteractionCreate) bool {
	if b.cfg.AdminRoleID == "" {
		return true
	}
	if i.Member == nil {
		return false
	}
	for _, role := range i.Member.Roles {
		if role == b.cfg.AdminRoleID {
			return true
		}
	}
	return false
}

// onChat renders a classified chat record as a notification in its
// guild's configured Discord channel.
func (b *Bridge) onChat(rec model.ClassifiedRecord) {
	g, ok := b.dispatcher.GuildConfig(rec.Chat.GuildID)
	if !ok {
		return
	}
	channel := g.DiscordChannelID
	if rec.Chat.ChatSubtype == model.ChatSubtypeOfficer {
		if g.DiscordOfficerChannelID != "" {
			channel = g.DiscordOfficerChannelID
		}
	}
	if channel == "" {
		return
	}
	text := rec.Chat.Username + ": " + rec.Chat.Message
	if _, err := b.session.ChannelMessageSend(channel, text); err != nil {
		b.log.Warn().Err(err).Str("guild", rec.Chat.GuildID).Msg("failed to relay chat to discord")
	}
}

// onEvent renders a classified event as an embed card.
func (b *Bridge) onEvent(rec model.ClassifiedRecord) {
	g, ok := b.dispatcher.GuildConfig(rec.Ev.GuildID)
	if !ok || g.DiscordChannelID == "" {
		return
	}
	embed := eventCard(rec.Ev, g).toEmbed()
	if _, err := b.session.ChannelMessageSendEmbed(g.DiscordChannelID, embed); err != nil {
		b.log.Warn().Err(err).Str("guild", rec.Ev.GuildID).Msg("failed to relay event to discord")
	}
}

// onConn renders a connection lifecycle transition as an embed card.
func (b *Bridge) onConn(ev events.ConnLifecycle) {
	g, ok := b.dispatcher.GuildConfig(ev.GuildID)
	if !ok || g.DiscordChannelID == "" {
		return
	}
	embed := connCard(ev, g).toEmbed()
	if _, err := b.session.ChannelMessageSendEmbed(g.DiscordChannelID, embed); err != nil {
		b.log.Warn().Err(err).Str("guild", ev.GuildID).Msg("failed to relay connection status to discord")
	}
}
