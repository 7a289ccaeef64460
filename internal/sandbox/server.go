package sandbox

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sango-bank/sango_onboard/internal/config"
)

// Server wraps the Fiber application for the stand-in bank backend.
type Server struct {
	app *fiber.App
	cfg config.Config
}

// New instantiates the sandbox HTTP server and delegates route wiring to Setup.
func New(cfg config.Config, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := NewApp(cfg)

	if err := Setup(app, Deps{Cfg: cfg, Cache: cache, Logger: logger}); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg}, nil
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
