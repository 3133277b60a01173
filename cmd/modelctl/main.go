// Command modelctl manages model records and artefacts from the shell.
//
// Without --server (or MODELCTL_SERVER) it opens the backends named by the
// server configuration directly; with it, every operation goes through the
// registry HTTP API using Basic auth.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"model-artefact-registry/internal/adapters/primary/cli"
	"model-artefact-registry/internal/adapters/secondary/registryclient"
	"model-artefact-registry/internal/bootstrap"
	"model-artefact-registry/internal/config"
	"model-artefact-registry/internal/core/services"
)

func main() {
	v := config.NewViper()

	cmd := cli.NewCommand(v, func(ctx context.Context) (cli.Registry, func(), error) {
		return openRegistry(ctx, v)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx, cmd)
	stop()
	os.Exit(code)
}

func openRegistry(ctx context.Context, v *viper.Viper) (cli.Registry, func(), error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, nil, err
	}
	initLogger(cfg)

	if cfg.Client.Server != "" {
		// no client timeout: artefact transfers are bounded by ctx only
		client := registryclient.New(cfg.Client.Server, cfg.Client.Username, cfg.Client.Password, 0)
		return client, func() {}, nil
	}

	stores, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	reg := cli.NewLocalRegistry(
		services.NewModelRecordService(stores.Records),
		services.NewModelArtefactService(stores.Artefacts),
	)
	return reg, stores.Close, nil
}

// initLogger keeps the CLI quiet unless LOGGER_LEVEL asks for more; output
// goes to stderr so it never mixes with command results.
func initLogger(cfg *config.Config) {
	log.SetOutput(os.Stderr)
	level := log.WarnLevel
	if _, set := os.LookupEnv("LOGGER_LEVEL"); set {
		if parsed, err := log.ParseLevel(cfg.Logger.Level); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
