// Package web serves a small local HTTP API exposing dictation status
// and latency metrics, useful for menu-bar style frontends and
// debugging.
package web

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voxlab/go-dictate/internal/log"
	"github.com/voxlab/go-dictate/pkg/dictation"
)

// Server wraps the fiber app and the coordinator it reports on.
type Server struct {
	app    *fiber.App
	coord  *dictation.Coordinator
	logger *slog.Logger
}

type statusResponse struct {
	Connection        string `json:"connection"`
	Connecting        bool   `json:"connecting"`
	Recording         string `json:"recording"`
	TurnID            string `json:"turn_id,omitempty"`
	Transcript        string `json:"transcript"`
	TranscriptVersion uint64 `json:"transcript_version"`
	Error             string `json:"error,omitempty"`
}

type metricsResponse struct {
	Turns   int                   `json:"turns"`
	Current dictation.TurnMetrics `json:"current"`
	Average dictation.TurnMetrics `json:"average"`
}

// NewServer builds the HTTP API around a coordinator.
func NewServer(coord *dictation.Coordinator) *Server {
	s := &Server{
		coord:  coord,
		logger: log.With("component", "web"),
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           5 * time.Second,
		WriteTimeout:          5 * time.Second,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/metrics", s.handleMetrics)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.coord.Snapshot()
	resp := statusResponse{
		Connection:        snap.Connection.String(),
		Connecting:        snap.Connecting,
		Recording:         snap.Recording.String(),
		TurnID:            snap.TurnID,
		Transcript:        snap.Transcript,
		TranscriptVersion: snap.TranscriptVersion,
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return c.JSON(resp)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	m := s.coord.Metrics()
	return c.JSON(metricsResponse{
		Turns:   m.Turns(),
		Current: m.Current(),
		Average: m.Average(),
	})
}

// Listen serves until Shutdown is called. It blocks.
func (s *Server) Listen(addr string) error {
	s.logger.Info("status api listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
