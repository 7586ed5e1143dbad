// Command acerestreamerd runs the gateway: it loads configuration, builds
// the Services aggregate, and starts the long-lived tasks and HTTP server
// until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/acerestreamer/gateway/internal/app"
	"github.com/acerestreamer/gateway/internal/configstore"
	"github.com/acerestreamer/gateway/internal/obslog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := configstore.Open(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acerestreamerd: load config: %v\n", err)
		os.Exit(1)
	}

	c := cfg.Get()
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := obslog.Root(c.LogDev, level)

	services, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct services")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("config", *configPath).Str("listen_addr", c.ListenAddr).Msg("starting")
	if err := services.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("services stopped with an error")
	}
	log.Info().Msg("stopped")
}
