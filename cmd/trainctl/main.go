package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/neuroforge/trainlink/internal/config"
	"github.com/neuroforge/trainlink/internal/logging"
	"github.com/neuroforge/trainlink/internal/session"
	"github.com/rs/zerolog/log"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: trainctl <command> [flags]

commands:
  init     register a model definition from a file
  train    run a training job and stream progress
  query    inspect one layer of a registered model
  ping     check backend liveness
  status   show session state and pending requests
  history  list recent training runs from the local journal

run 'trainctl <command> -h' for command flags`)
}

func main() {
	logging.Init("trainctl")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "init":
		err = runInit(args)
	case "train":
		err = runTrain(args)
	case "query":
		err = runQuery(args)
	case "ping":
		err = runPing(args)
	case "status":
		err = runStatus(args)
	case "history":
		err = runHistory(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "trainctl: unknown command %q\n", command)
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("trainctl failed")
	}
}

// globalFlags are shared by every subcommand; command-specific flags sit
// next to them on the same flag set.
type globalFlags struct {
	host       string
	port       int
	authToken  string
	configPath string
}

func registerGlobal(fs *flag.FlagSet) *globalFlags {
	g := &globalFlags{}
	fs.StringVar(&g.host, "host", "", "backend host (overrides config)")
	fs.IntVar(&g.port, "port", 0, "backend port (overrides config)")
	fs.StringVar(&g.authToken, "auth", "", "bearer token (overrides config)")
	fs.StringVar(&g.configPath, "config", "", "path to trainctl toml config")
	return g
}

// resolve layers config file, env, then explicit flags.
func (g *globalFlags) resolve() (config.ClientConfig, error) {
	cfg, err := config.LoadClientConfig(g.configPath)
	if err != nil {
		return config.ClientConfig{}, err
	}
	cfg.Session = cfg.Session.WithEnv()
	if g.host != "" {
		cfg.Session.Host = g.host
	}
	if g.port > 0 {
		cfg.Session.Port = g.port
	}
	if g.authToken != "" {
		cfg.Session.AuthToken = g.authToken
	}
	return cfg, nil
}

func (g *globalFlags) client() (*session.Client, config.ClientConfig, error) {
	cfg, err := g.resolve()
	if err != nil {
		return nil, config.ClientConfig{}, err
	}
	client, err := session.NewClient(cfg.Session)
	if err != nil {
		return nil, config.ClientConfig{}, err
	}
	return client, cfg, nil
}
