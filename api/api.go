package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/sahilchouksey/bca-library/config"
	"github.com/sahilchouksey/bca-library/utils/logger"
	"github.com/sahilchouksey/bca-library/utils/response"
)

// multipart framing on top of the largest accepted file
const bodyOverhead = 1 << 20

type APIServer struct {
	app           *fiber.App
	listenAddress string
	log           zerolog.Logger
}

func NewAPIServer(listenAddress string, maxUploadSize int64) *APIServer {
	app := fiber.New(fiber.Config{
		AppName:               config.AppName,
		BodyLimit:             int(maxUploadSize) + bodyOverhead,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return response.FromError(c, err)
		},
	})

	return &APIServer{
		app:           app,
		listenAddress: listenAddress,
		log:           logger.Component("api"),
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

func (s *APIServer) Run() error {
	s.log.Info().Str("address", s.listenAddress).Msg("Starting API Server")
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *APIServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
