package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/papercomputeco/folio/api/mcp"
	"github.com/papercomputeco/folio/pkg/llm"
)

const (
	defaultMaxFileMB = 10
	defaultTopK      = 5

	// Published request limit for the document and ask endpoints.
	rateLimitMax    = 10
	rateLimitWindow = time.Minute
)

// Server is the HTTP API server for the folio document library.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server and registers its routes.
func NewServer(config Config) (*Server, error) {
	if config.Docstore == nil {
		return nil, errors.New("document store is required")
	}
	if config.VectorDriver == nil {
		return nil, errors.New("vector driver is required")
	}
	if config.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if config.Pool == nil {
		return nil, errors.New("ingest pool is required")
	}
	if config.Metrics == nil {
		return nil, errors.New("metrics aggregator is required")
	}
	if config.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	if config.MaxFileMB == 0 {
		config.MaxFileMB = defaultMaxFileMB
	}
	if config.DefaultTopK == 0 {
		config.DefaultTopK = defaultTopK
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,

		// The transport cap sits above the configured limit so the upload
		// handler can reject oversized files with the documented message.
		BodyLimit: (int(config.MaxFileMB) + 1) * 1024 * 1024,

		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
		},
	})

	app.Use(cors.New())

	s := &Server{
		config: config,
		logger: config.Logger,
		app:    app,
	}

	app.Get("/", s.handleRoot)
	app.Get("/ping", s.handlePing)

	v1 := app.Group("/api/v1")

	v1.Post("/upload", rateLimit(), s.handleUpload)
	v1.Post("/ask", rateLimit(), s.handleAsk)
	v1.Post("/ask/stream", rateLimit(), s.handleAskStream)
	v1.Get("/search", rateLimit(), s.handleSearch)
	v1.Get("/documents", rateLimit(), s.handleListDocuments)
	v1.Get("/documents/:id/status", rateLimit(), s.handleDocumentStatus)
	v1.Get("/documents/:id/chunks", rateLimit(), s.handleDocumentChunks)
	v1.Delete("/documents/:id", rateLimit(), s.handleDeleteDocument)
	v1.Get("/health", s.handleHealth)
	v1.Get("/metrics", s.handleMetrics)

	if config.MCP {
		mcpServer, err := mcp.NewServer(mcp.Config{
			VectorDriver:   config.VectorDriver,
			Embedder:       config.Embedder,
			Generator:      config.Generator,
			DefaultTopK:    config.DefaultTopK,
			ScoreThreshold: config.ScoreThreshold,
			Logger:         config.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating MCP server: %w", err)
		}
		app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))
	}

	return s, nil
}

// rateLimit returns a fresh per-route rate limiter, so each limited route
// keeps its own counter per client.
func rateLimit() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rateLimitMax,
		Expiration: rateLimitWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(llm.ErrorResponse{
				Error: "Rate limit exceeded",
			})
		},
	})
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
