package main

import (
	"flag"

	"github.com/neuroforge/trainlink/internal/config"
	"github.com/neuroforge/trainlink/internal/logging"
	"github.com/neuroforge/trainlink/internal/trainer"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to trainerd toml config")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	logging.Init("trainerd")

	cfg, err := config.LoadServerConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	cfg = cfg.WithEnv()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	var store trainer.Store = trainer.NewMemoryStore()
	if cfg.RedisAddr != "" {
		store = trainer.NewRedisStore(cfg.RedisAddr)
		log.Info().Str("redis", cfg.RedisAddr).Msg("using redis store")
	}

	server := trainer.NewServer(store, trainer.HandlerConfig{
		AuthToken: cfg.AuthToken,
		TrainTick: cfg.TrainTick,
	}, cfg.CorsOrigins)

	if err := server.Run(cfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("trainerd stopped")
	}
}
