package main

import (
	"context"
	"os"
	"time"

	"github.com/sahilchouksey/bca-library/app"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/database"
	"github.com/sahilchouksey/bca-library/services"
	"github.com/sahilchouksey/bca-library/utils/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error().Err(err).Msg("seeding failed")
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadENV(); err != nil {
		return err
	}
	env, err := config.Get()
	if err != nil {
		return err
	}
	logger.Configure(logger.Config{Level: env.LOG_LEVEL, Pretty: true})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	gw, err := app.ConnectGateway(ctx, env)
	if err != nil {
		return err
	}
	defer gw.Close()

	collections := app.Collections(env)
	seeder := database.NewSeeder(
		gw.Account,
		gw.Databases,
		services.NewSubjectService(gw.Databases, collections, time.Minute),
		collections,
	)
	return seeder.SeedAll(ctx)
}
