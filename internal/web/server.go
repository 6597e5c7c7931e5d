package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the rate endpoints over HTTP.
type Server struct {
	addr   string
	app    *fiber.App
	logger *zap.Logger
}

// NewServer creates a new web server instance. metrics may be nil, then
// /metrics is not mounted.
func NewServer(addr string, h *Handlers, metrics http.Handler, logger *zap.Logger) *Server {
	return &Server{
		addr:   addr,
		app:    NewApp(h, metrics, logger),
		logger: logger,
	}
}

// NewApp builds the fiber application with all routes.
func NewApp(h *Handlers, metrics http.Handler, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "p2prate",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(cors.New())
	app.Use(accessLog(logger))

	app.Get("/", h.Health)
	app.Get("/rate", h.Rate)
	app.Get("/debug", h.Debug)
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	return app
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("addr", s.addr))
	if err := s.app.Listen(s.addr); err != nil {
		return errors.Wrap(err, "listen")
	}

	return nil
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(started)),
			zap.Any("request_id", c.Locals("requestid")))
		return err
	}
}
