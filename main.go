package main

import (
	"os"

	"github.com/sahilchouksey/bca-library/app"
	"github.com/sahilchouksey/bca-library/utils/logger"
)

func main() {
	if err := app.SetupAndRunServer(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
