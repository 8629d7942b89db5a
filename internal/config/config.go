// Package config implements the Configuration component (K) of
// SPEC_FULL.md §11: it loads spec.md §6's configuration schema from
// YAML plus environment overrides via koanf, validates it with
// go-playground/validator, and produces immutable model.BridgeConfig
// values. Hot-reload and directory bootstrap remain out of scope
// (spec.md §1 Non-goals) — config is loaded once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/wardenbridge/guildbridge/internal/model"
)

// rawConfig is koanf's unmarshal target: plain structs with yaml/koanf
// tags, validated before being converted to the immutable model types
// the rest of the system consumes.
type rawConfig struct {
	Guilds []rawGuild `koanf:"guilds" validate:"dive"`

	Features struct {
		ChatParser struct {
			PreserveColorCodes bool `koanf:"preservecolorcodes"`
		} `koanf:"chatparser"`
	} `koanf:"features"`

	Advanced struct {
		MessageCleaner struct {
			MaxLength int `koanf:"maxlength"`
		} `koanf:"messagecleaner"`
	} `koanf:"advanced"`

	Bridge struct {
		InterGuild struct {
			Enabled              bool     `koanf:"enabled"`
			OfficerToGuildChat   bool     `koanf:"officertoguildchat"`
			OfficerToOfficerChat bool     `koanf:"officertoofficerchat"`
			ShowTags             bool     `koanf:"showtags"`
			ShowSourceTag        bool     `koanf:"showsourcetag"`
			ShareableEvents      []string `koanf:"shareableevents"`
			MaxDuplicatesPerWin  int      `koanf:"maxduplicatesperwindow"`
			DedupWindowSeconds   int      `koanf:"dedupwindowseconds"`
		} `koanf:"interguild"`

		RateLimit struct {
			InterGuild struct {
				Limit         int `koanf:"limit"`
				WindowSeconds int `koanf:"windowseconds"`
			} `koanf:"interguild"`
		} `koanf:"ratelimit"`

		Discord struct {
			Token       string `koanf:"token" validate:"required"`
			AppID       string `koanf:"appid"`
			GuildID     string `koanf:"guildid"`
			AdminRoleID string `koanf:"adminroleid"`
		} `koanf:"discord"`

		CorrelatorTimeoutSeconds int `koanf:"correlatortimeoutseconds"`
		QueueInterSendGapMillis  int `koanf:"queueintersendgapmillis"`
		QueueMaxAttempts         int `koanf:"queuemaxattempts"`
		ReconnectMaxAttempts     int `koanf:"reconnectmaxattempts"`
		SpawnWaitTimeoutSeconds  int `koanf:"spawnwaittimeoutseconds"`
	} `koanf:"bridge"`
}

type rawGuild struct {
	ID      string `koanf:"id" validate:"required"`
	Name    string `koanf:"name" validate:"required"`
	Tag     string `koanf:"tag"`
	Enabled bool   `koanf:"enabled"`

	DiscordChannelID        string `koanf:"discordchannelid"`
	DiscordOfficerChannelID string `koanf:"discordofficerchannelid"`

	Account struct {
		Username          string `koanf:"username" validate:"required"`
		SessionPath       string `koanf:"sessionpath"`
		CachePath         string `koanf:"cachepath"`
		ProfilesFolder    string `koanf:"profilesfolder"`
		AuthMethod        string `koanf:"authmethod" validate:"omitempty,oneof=microsoft mojang offline"`
		ChatLengthLimit   int    `koanf:"chatlengthlimit"`
		Reconnection      struct {
			Enabled        bool `koanf:"enabled"`
			RetryDelaySecs int  `koanf:"retrydelaysecs"`
		} `koanf:"reconnection"`
	} `koanf:"account"`

	Server struct {
		ServerName string `koanf:"servername" validate:"required"`
		Host       string `koanf:"host"`
		Port       int    `koanf:"port"`
		Version    string `koanf:"version"`
	} `koanf:"server"`

	Ranks    []string `koanf:"ranks"`
	Commands struct {
		AllowedCommands []string `koanf:"allowedcommands"`
	} `koanf:"commands"`
}

// Load reads path (YAML) then overlays environment variables prefixed
// GUILDBRIDGE_ (prefix removed, each underscore as the nesting separator), validates
// the result, and converts it into a model.BridgeConfig.
func Load(path string) (model.BridgeConfig, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return model.BridgeConfig{}, fmt.Errorf("load config file %s: %w", path, err)
	}

	envProvider := env.ProviderWithValue("GUILDBRIDGE_", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return model.BridgeConfig{}, fmt.Errorf("load config env overrides: %w", err)
	}

	var raw rawConfig
	if err := k.Unmarshal("", &raw); err != nil {
		return model.BridgeConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(raw); err != nil {
		return model.BridgeConfig{}, fmt.Errorf("validate config: %w", err)
	}

	return toBridgeConfig(raw), nil
}

func envTransform(key, value string) (string, interface{}) {
	return lowerUnderscoreToDot(strings.TrimPrefix(key, "GUILDBRIDGE_")), value
}

func lowerUnderscoreToDot(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", ".")
}

func toBridgeConfig(raw rawConfig) model.BridgeConfig {
	guilds := make([]model.GuildConfig, 0, len(raw.Guilds))
	for _, g := range raw.Guilds {
		guilds = append(guilds, model.GuildConfig{
			ID:                      g.ID,
			Name:                    g.Name,
			Tag:                     g.Tag,
			Enabled:                 g.Enabled,
			DiscordChannelID:        g.DiscordChannelID,
			DiscordOfficerChannelID: g.DiscordOfficerChannelID,
			Ranks:                   g.Ranks,
			Commands:                model.CommandsConfig{AllowedCommands: g.Commands.AllowedCommands},
			Account: model.AccountConfig{
				Username:          g.Account.Username,
				AuthMethod:        model.AuthMethod(g.Account.AuthMethod),
				SessionPath:       g.Account.SessionPath,
				CachePath:         g.Account.CachePath,
				ProfilesFolder:    g.Account.ProfilesFolder,
				ChatLengthLimit:   g.Account.ChatLengthLimit,
				ReconnectEnabled:  g.Account.Reconnection.Enabled,
				ReconnectBaseWait: time.Duration(g.Account.Reconnection.RetryDelaySecs) * time.Second,
			},
			Server: model.ServerConfig{
				Flavor:  g.Server.ServerName,
				Host:    g.Server.Host,
				Port:    g.Server.Port,
				Version: g.Server.Version,
			},
		})
	}

	return model.BridgeConfig{
		Guilds: guilds,
		ChatParser: model.ChatParserConfig{
			PreserveColorCodes: raw.Features.ChatParser.PreserveColorCodes,
		},
		MessageCleaner: model.MessageCleanerConfig{
			MaxLength: raw.Advanced.MessageCleaner.MaxLength,
		},
		InterGuild: model.InterGuildConfig{
			Enabled:              raw.Bridge.InterGuild.Enabled,
			OfficerToGuildChat:   raw.Bridge.InterGuild.OfficerToGuildChat,
			OfficerToOfficerChat: raw.Bridge.InterGuild.OfficerToOfficerChat,
			ShowTags:             raw.Bridge.InterGuild.ShowTags,
			ShowSourceTag:        raw.Bridge.InterGuild.ShowSourceTag,
			ShareableEvents:      raw.Bridge.InterGuild.ShareableEvents,
			MaxDuplicatesPerWin:  defaultInt(raw.Bridge.InterGuild.MaxDuplicatesPerWin, 2),
			DedupWindow:          defaultDuration(raw.Bridge.InterGuild.DedupWindowSeconds, 30*time.Second),
			RateLimit: model.RateLimitConfig{
				Limit:  defaultInt(raw.Bridge.RateLimit.InterGuild.Limit, 2),
				Window: defaultDuration(raw.Bridge.RateLimit.InterGuild.WindowSeconds, 10*time.Second),
			},
		},
		Discord: model.DiscordConfig{
			Token:       raw.Bridge.Discord.Token,
			AppID:       raw.Bridge.Discord.AppID,
			GuildID:     raw.Bridge.Discord.GuildID,
			AdminRoleID: raw.Bridge.Discord.AdminRoleID,
		},
		CorrelatorDefaultTimeout: defaultDuration(raw.Bridge.CorrelatorTimeoutSeconds, 15*time.Second),
		QueueInterSendGap:        defaultDurationMillis(raw.Bridge.QueueInterSendGapMillis, time.Second),
		QueueMaxAttempts:         defaultInt(raw.Bridge.QueueMaxAttempts, 3),
		ReconnectMaxAttempts:     defaultInt(raw.Bridge.ReconnectMaxAttempts, 5),
		SpawnWaitTimeout:         defaultDuration(raw.Bridge.SpawnWaitTimeoutSeconds, 60*time.Second),
	}
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func defaultDuration(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultDurationMillis(millis int, fallback time.Duration) time.Duration {
	if millis <= 0 {
		return fallback
	}
	return time.Duration(millis) * time.Millisecond
}
