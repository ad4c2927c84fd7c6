package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/Lumos-Labs-HQ/orgseed/internal/graph"
	"github.com/Lumos-Labs-HQ/orgseed/internal/rules"
	"github.com/Lumos-Labs-HQ/orgseed/internal/seeder"
	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(Response{Success: true, Message: "ok"})
}

func (s *Server) handleSequence(c *fiber.Ctx) error {
	var req SequenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: "Invalid request"})
	}

	names, configs := selection(req.Entities)
	if len(names) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: "no entity type is enabled"})
	}

	schemas, err := seeder.DescribeAll(c.UserContext(), s.remote, names, s.log)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(Response{Message: err.Error()})
	}

	var described, skipped []string
	for _, name := range names {
		if _, ok := schemas[name]; ok {
			described = append(described, name)
		} else {
			skipped = append(skipped, name)
		}
	}

	return c.JSON(Response{
		Success: true,
		Data: SequenceResponse{
			Sequence: graph.BuildSequence(described, schemas, configs),
			Skipped:  skipped,
		},
	})
}

func (s *Server) handleStartRun(c *fiber.Ctx) error {
	var req StartRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: "Invalid request"})
	}
	if names, _ := selection(req.Entities); len(names) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: "no entity type is enabled"})
	}

	run, err := s.sessions.Start(context.Background(), req.SessionID, req.Entities, nil)
	if errors.Is(err, types.ErrInvalidSession) {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: err.Error()})
	}
	if errors.Is(err, seeder.ErrSessionActive) {
		return c.Status(fiber.StatusConflict).JSON(Response{Message: err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(Response{Message: err.Error()})
	}

	s.log.Infof("🌱 Started load session %s", run.ID)
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Success: true,
		Message: "Load session started",
		Data:    run.Info(),
	})
}

func (s *Server) handleListRuns(c *fiber.Ctx) error {
	return c.JSON(Response{Success: true, Data: s.sessions.List()})
}

func (s *Server) handleGetRun(c *fiber.Ctx) error {
	run, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(Response{Message: "session not found"})
	}

	return c.JSON(Response{
		Success: true,
		Data: RunDetail{
			RunInfo: run.Info(),
			Summary: run.Summary(),
			Created: run.Pool(),
			Events:  len(run.Events()),
		},
	})
}

// handleRunEvents streams progress events as server-sent events. The
// stream replays the session's history, follows it until the run is
// finalized and ends with a summary event.
func (s *Server) handleRunEvents(c *fiber.Ctx) error {
	run, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(Response{Message: "session not found"})
	}

	encode := s.app.Config().JSONEncoder

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		for ev := range run.Subscribe(ctx) {
			data, err := encode(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", ev.Seq, data)
			if err := w.Flush(); err != nil {
				return
			}
		}

		data, err := encode(run.Summary())
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: summary\ndata: %s\n\n", data)
		w.Flush()
	})
	return nil
}

func (s *Server) handleCancelRun(c *fiber.Ctx) error {
	run, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(Response{Message: "session not found"})
	}

	run.Cancel()
	return c.Status(fiber.StatusAccepted).JSON(Response{
		Success: true,
		Message: "Cancellation requested; the load stops before its next entity type",
		Data:    run.Info(),
	})
}

func (s *Server) handlePendingRules(c *fiber.Ctx) error {
	pending := []PendingSession{}
	if s.state == nil {
		return c.JSON(Response{Success: true, Data: pending})
	}

	ctx := c.UserContext()
	sessions, err := s.state.PendingSessions(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(Response{Message: err.Error()})
	}
	for _, session := range sessions {
		snaps, err := s.state.ListRuleSnapshots(ctx, session)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(Response{Message: err.Error()})
		}
		pending = append(pending, PendingSession{SessionID: session, Rules: snaps})
	}

	return c.JSON(Response{Success: true, Data: pending})
}

// handleRestoreRules reactivates the rules a session left suspended. It is
// refused while that session is still running in this process.
func (s *Server) handleRestoreRules(c *fiber.Ctx) error {
	session := c.Params("session")
	if err := types.ValidateSessionID(session); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(Response{Message: err.Error()})
	}
	if s.state == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{Message: "no state store configured"})
	}
	if run, ok := s.sessions.Get(session); ok && !run.Info().Done {
		return c.Status(fiber.StatusConflict).JSON(Response{Message: fmt.Sprintf("session %s is still running", session)})
	}

	manager := rules.NewManager(session, s.remote, s.state, s.log)
	report, err := manager.RestoreSession(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(Response{Message: err.Error(), Data: report})
	}

	return c.JSON(Response{
		Success: true,
		Message: fmt.Sprintf("Restored %d validation rule(s)", len(report.Restored)),
		Data:    report,
	})
}

// selection returns the enabled entity types in declared order, first
// occurrence winning.
func selection(entities []types.GenerationConfig) ([]string, map[string]types.GenerationConfig) {
	var names []string
	byName := make(map[string]types.GenerationConfig, len(entities))
	for _, e := range entities {
		if !e.Enabled || e.EntityType == "" {
			continue
		}
		if _, dup := byName[e.EntityType]; dup {
			continue
		}
		names = append(names, e.EntityType)
		byName[e.EntityType] = e
	}
	return names, byName
}
