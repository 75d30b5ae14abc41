package web

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/voxalabs/voxa/pkg/llm"
	"github.com/voxalabs/voxa/pkg/tts"
)

// healthProbeTimeout bounds each backend probe on /health.
const healthProbeTimeout = 5 * time.Second

// HealthResponse reports per-backend availability.
type HealthResponse struct {
	Status   string            `json:"status"` // ok or degraded
	Backends map[string]string `json:"backends"`
}

// handleHealth probes every configured backend. The endpoint itself always
// answers 200; degradation is reported in the body so load balancers keep
// routing while a single backend is down.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthProbeTimeout)
	defer cancel()

	backends := map[string]string{
		"llm": probeLLM(ctx, s.deps.LLM),
		"tts": probeTTS(ctx, s.deps.TTS),
	}
	if s.deps.STTFactory != nil {
		backends["stt"] = "configured"
	} else {
		backends["stt"] = "not_configured"
	}

	status := "ok"
	for _, st := range backends {
		if strings.HasPrefix(st, "error") {
			status = "degraded"
		}
	}

	return c.JSON(HealthResponse{Status: status, Backends: backends})
}

func probeLLM(ctx context.Context, p llm.Provider) string {
	if p == nil {
		return "not_configured"
	}
	if err := p.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

func probeTTS(ctx context.Context, p tts.Provider) string {
	if p == nil {
		return "not_configured"
	}
	if err := p.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}

// handleStatus reports uptime and session counts.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "running",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"sessions":       s.deps.Registry.Count(),
	})
}

// handleVoices returns the synthesis voice catalog.
func (s *Server) handleVoices(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"voices":  tts.MurfVoices,
		"default": tts.DefaultMurfVoice,
	})
}

// handleCleanup sweeps idle sessions and reports how many were removed.
func (s *Server) handleCleanup(c *fiber.Ctx) error {
	removed := s.deps.Registry.Sweep(s.deps.IdleTimeout)
	if s.deps.Metrics != nil && removed > 0 {
		s.deps.Metrics.SessionsSwept.Add(float64(removed))
	}
	return c.JSON(fiber.Map{"cleaned": removed})
}

// CreateSessionRequest optionally pins the ID of the new session.
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
}

// handleCreateSession creates (or returns) a conversation session.
func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	_ = c.BodyParser(&req) // empty body is fine

	sess, created := s.deps.Registry.GetOrCreate(req.SessionID)
	if created && s.deps.Metrics != nil {
		s.deps.Metrics.SessionsCreated.Inc()
		s.deps.Metrics.ActiveSessions.Set(float64(s.deps.Registry.Count()))
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"session_id": sess.ID,
		"created":    created,
	})
}

// handleDeleteSession removes a session and all its state.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if !s.deps.Registry.Remove(id) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ActiveSessions.Set(float64(s.deps.Registry.Count()))
	}
	return c.JSON(fiber.Map{"deleted": true, "session_id": id})
}

// ChatRequest is one non-streaming exchange.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse carries the reply and, when synthesis succeeded, its audio.
type ChatResponse struct {
	SessionID  string `json:"session_id"`
	Response   string `json:"response"`
	Audio      string `json:"audio,omitempty"` // base64 encoded
	Format     string `json:"format,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// handleChat runs one blocking exchange against the model.
func (s *Server) handleChat(c *fiber.Ctx) error {
	sess := s.deps.Registry.Get(c.Params("id"))
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	reply, audio, err := s.deps.Orchestrator.ChatTurn(c.Context(), sess, req.Text)
	if err != nil {
		s.logger.Error("chat turn failed", "error", err, "session_id", sess.ID)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "model backend unavailable",
		})
	}

	resp := ChatResponse{SessionID: sess.ID, Response: reply}
	if audio != nil {
		resp.Audio = base64.StdEncoding.EncodeToString(audio.Audio)
		resp.Format = strings.ToLower(string(audio.Format.Encoding))
		resp.SampleRate = audio.Format.SampleRate
	}
	return c.JSON(resp)
}

// HistoryEntry is one stored conversation message.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// handleGetHistory returns the session's conversation history in order.
func (s *Server) handleGetHistory(c *fiber.Ctx) error {
	sess := s.deps.Registry.Get(c.Params("id"))
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}

	history := sess.History()
	entries := make([]HistoryEntry, 0, len(history))
	for _, m := range history {
		entries = append(entries, HistoryEntry{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return c.JSON(fiber.Map{
		"session_id": sess.ID,
		"messages":   entries,
		"count":      len(entries),
	})
}

// handleClearHistory drops the session's conversation history but keeps the
// session itself alive.
func (s *Server) handleClearHistory(c *fiber.Ctx) error {
	sess := s.deps.Registry.Get(c.Params("id"))
	if sess == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session not found",
		})
	}

	sess.ClearHistory()
	return c.JSON(fiber.Map{"session_id": sess.ID, "cleared": true})
}
