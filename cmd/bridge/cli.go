package main

import "time"

// CLI is the guildbridge command line, parsed by alecthomas/kong.
var CLI struct {
	Config    string `help:"Path to the YAML configuration file." short:"c" default:"config.yaml" type:"existingfile"`
	Debug     bool   `help:"Use a human-readable console log writer instead of JSON." env:"GUILDBRIDGE_DEBUG"`
	NATSUrl   string `help:"NATS server URL backing the internal event bus." default:"nats://127.0.0.1:4222" name:"nats-url" env:"GUILDBRIDGE_NATS_URL"`
	RedisAddr string `help:"Redis address for optional Delivery Queue snapshot persistence. Empty disables it." name:"redis-addr" env:"GUILDBRIDGE_REDIS_ADDR"`

	ShutdownTimeout time.Duration `help:"Grace period for StopAll/queue drain on SIGINT/SIGTERM." default:"10s" name:"shutdown-timeout"`
}
