package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/THE-REBEL-A4IF-V4U/rebel-song-detect/backend"
)

// Server represents the HTTP API server
type Server struct {
	app      *fiber.App
	config   *backend.Config
	resolver *backend.Resolver
	detector *backend.SongDetector
	scratch  *backend.ScratchDir
	probe    *backend.StatusProbe
	metrics  *backend.Metrics
	limiter  *rate.Limiter
}

// NewServer creates a new API server instance
func NewServer(config *backend.Config, resolver *backend.Resolver, detector *backend.SongDetector, scratch *backend.ScratchDir, probe *backend.StatusProbe, metrics *backend.Metrics) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Rebel Song Detect",
		ServerHeader:          "rebel-song-detect",
		BodyLimit:             config.BodyLimitBytes,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	server := &Server{
		app:      app,
		config:   config,
		resolver: resolver,
		detector: detector,
		scratch:  scratch,
		probe:    probe,
		metrics:  metrics,
	}
	if config.RateLimitRPS > 0 {
		server.limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitBurst)
	}

	// Middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(server.observe)

	server.setupRoutes()

	return server
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.app.Get("/", s.handleRoot)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	s.app.Get("/media", s.rateLimit, s.handleMedia)
	s.app.Post("/song-detect", s.rateLimit, s.handleSongDetect)
}

// Listen starts the HTTP server
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server, letting in-flight requests
// finish their cleanup.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// rateLimit rejects requests once the process-wide token bucket is empty.
func (s *Server) rateLimit(c *fiber.Ctx) error {
	if s.limiter != nil && !s.limiter.Allow() {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success": false,
			"error":   "Rate limit exceeded, please try again later.",
		})
	}
	return c.Next()
}

// observe counts every request by matched route and final status.
func (s *Server) observe(c *fiber.Ctx) error {
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	s.metrics.ObserveHTTP(c.Method(), c.Route().Path, strconv.Itoa(status))
	return err
}

// errorHandler renders framework errors (unknown route, body too large,
// recovered panics) in the same shape as handler errors.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	backend.Logger.Warn("request failed", "path", c.Path(), "status", code, "error", err)
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}
