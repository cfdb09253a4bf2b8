package main

import (
	"context"
	"errors"

	"github.com/pitabwire/util"

	"github.com/huhn511/arche"
	"github.com/huhn511/arche/config"
	"github.com/huhn511/arche/version"
)

func main() {
	cfg, err := config.FromEnv[config.ConfigurationDefault]()
	if err != nil {
		util.Log(context.Background()).WithError(err).Fatal("could not load configuration")
	}

	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = version.Version
	}

	serviceName := cfg.ServiceName

	ctx, svc := arche.NewService(serviceName,
		arche.WithConfig(&cfg),
		arche.WithLogger(),
		arche.WithWorkerPool(),
		arche.WithDatastore(),
		arche.WithCache(),
		arche.WithEvents(),
		arche.WithLocalization(),
	)
	defer svc.Stop(ctx)

	log := svc.Log(ctx).
		WithField("version", cfg.ServiceVersion).
		WithField("commit", version.Commit)

	if cfg.DoDatabaseMigrate() {
		if err = svc.MigrateDatastore(ctx); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migration complete")
		return
	}

	log.WithField("port", cfg.HTTPPort()).Info("starting service")
	if err = svc.Run(ctx, ""); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("service run failed")
	}
}
