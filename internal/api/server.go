package api

import (
	"fmt"

	"github.com/Lumos-Labs-HQ/orgseed/internal/logger"
	"github.com/Lumos-Labs-HQ/orgseed/internal/remote"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/Lumos-Labs-HQ/orgseed/internal/state"
	"github.com/gofiber/fiber/v2"
)

// Server exposes sequencing, load runs and rule restoration over HTTP.
type Server struct {
	app      *fiber.App
	remote   remote.Store
	state    state.Store
	sessions *seeder.Sessions
	log      logger.Logger
}

func NewServer(store remote.Store, snapshots state.Store, sessions *seeder.Sessions, log logger.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "orgseed",
		DisableStartupMessage: true,
	})

	server := &Server{
		app:      app,
		remote:   store,
		state:    snapshots,
		sessions: sessions,
		log:      logger.OrDefault(log),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Post("/sequence", s.handleSequence)

	// Runs
	api.Post("/runs", s.handleStartRun)
	api.Get("/runs", s.handleListRuns)
	api.Get("/runs/:id", s.handleGetRun)
	api.Get("/runs/:id/events", s.handleRunEvents)
	api.Post("/runs/:id/cancel", s.handleCancelRun)

	// Rules
	api.Get("/rules/pending", s.handlePendingRules)
	api.Post("/rules/:session/restore", s.handleRestoreRules)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start(port int) error {
	s.log.Infof("🚀 orgseed API listening on http://localhost:%d", port)
	return s.app.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown stops accepting requests and cancels every active run. Each
// run still restores the rules it suspended before this returns.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.sessions.CancelAll()
	return err
}
