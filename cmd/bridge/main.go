package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/bwmarrin/discordgo"
	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/wardenbridge/guildbridge/internal/bridge"
	"github.com/wardenbridge/guildbridge/internal/catalog"
	"github.com/wardenbridge/guildbridge/internal/classify"
	"github.com/wardenbridge/guildbridge/internal/config"
	"github.com/wardenbridge/guildbridge/internal/connection"
	"github.com/wardenbridge/guildbridge/internal/correlator"
	"github.com/wardenbridge/guildbridge/internal/errs"
	"github.com/wardenbridge/guildbridge/internal/events"
	"github.com/wardenbridge/guildbridge/internal/fanout"
	"github.com/wardenbridge/guildbridge/internal/model"
	"github.com/wardenbridge/guildbridge/internal/queue"
	"github.com/wardenbridge/guildbridge/internal/strategy"
	"github.com/wardenbridge/guildbridge/internal/supervisor"
)

func main() {
	kong.Parse(&CLI,
		kong.Name("guildbridge"),
		kong.Description("Multi-tenant game-server guild chat bridge."),
		kong.UsageOnError(),
	)

	log := newLogger(CLI.Debug)

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("guildbridge exited")
	}
}

func newLogger(debug bool) zerolog.Logger {
	if debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func run(log zerolog.Logger) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	natsConn, err := nats.Connect(CLI.NATSUrl)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer natsConn.Close()
	bus := events.New(natsConn)

	var redisClient *redis.Client
	if CLI.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: CLI.RedisAddr})
		defer redisClient.Close()
	}

	cat := catalog.NewDefault()
	classifier := classify.New(cat, cfg.ChatParser.PreserveColorCodes)

	strategyFor := func(flavor string) strategy.Strategy {
		switch flavor {
		case catalog.FlavorHypixel:
			return strategy.NewHypixelStrategy(log)
		default:
			return strategy.NewHypixelStrategy(log)
		}
	}

	sup := supervisor.New(log, bus, unimplementedFactory, strategyFor, classifier)

	q := queue.New(log, sup, cfg.QueueInterSendGap, redisClient)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.LoadSnapshot(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to load queue snapshot")
	}
	go q.Run(ctx)

	fanoutEngine := fanout.New(log, cfg.InterGuild, q)
	go fanoutEngine.RunMaintenanceLoop(ctx.Done(), 60*time.Second)

	corr := correlator.New(log)

	if _, err := bus.SubscribeChat(events.AllChatSubject, func(rec model.ClassifiedRecord) {
		source, ok := sup.GuildConfig(rec.GuildIDOf())
		if !ok {
			return
		}
		fanoutEngine.Handle(rec, source, sup.Guilds())
	}); err != nil {
		return fmt.Errorf("subscribe chat: %w", err)
	}

	if _, err := bus.SubscribeEvent(events.AllEventSubject, func(rec model.ClassifiedRecord) {
		corr.Observe(rec)
		source, ok := sup.GuildConfig(rec.GuildIDOf())
		if !ok {
			return
		}
		fanoutEngine.Handle(rec, source, sup.Guilds())
	}); err != nil {
		return fmt.Errorf("subscribe event: %w", err)
	}

	var discordSession *discordgo.Session
	if cfg.Discord.Token != "" {
		discordSession, err = discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return fmt.Errorf("construct discord session: %w", err)
		}
		if err := discordSession.Open(); err != nil {
			return fmt.Errorf("open discord session: %w", err)
		}
		defer discordSession.Close()

		br := bridge.New(log, discordSession, sup, corr, bus, cfg.Discord, cfg.CorrelatorDefaultTimeout)
		if err := br.Start(); err != nil {
			return fmt.Errorf("start external bridge: %w", err)
		}
	} else {
		log.Warn().Msg("bridge.discord.token not set; external bridge disabled")
	}

	if err := sup.StartAll(ctx, cfg.Guilds); err != nil {
		return fmt.Errorf("start guild connections: %w", err)
	}

	waitForShutdown(log)

	stopped := make(chan struct{})
	go func() {
		sup.StopAll()
		q.Stop()
		_ = q.Snapshot(context.Background())
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(CLI.ShutdownTimeout):
		log.Warn().Msg("shutdown timeout elapsed before all connections drained")
	}
	return nil
}

func waitForShutdown(log zerolog.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	s := <-sig
	log.Info().Str("signal", s.String()).Msg("shutting down")
}

// unimplementedFactory is the seam where a real game-client library
// (spec.md §1's out-of-scope network framing collaborator) plugs in.
// This repo never implements that protocol; wire a concrete
// connection.Factory here to run against a live game server.
func unimplementedFactory(ctx context.Context, account connection.SessionParams) (connection.Session, error) {
	return nil, errs.New(errs.Internal, account.GuildID, "no game-client session factory configured", nil)
}
