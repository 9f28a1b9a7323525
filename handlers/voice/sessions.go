package voice

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/voicetutor/api/model"
	"github.com/voicetutor/api/services"
	"github.com/voicetutor/api/utils/middleware"
	"github.com/voicetutor/api/utils/response"
	"github.com/voicetutor/api/utils/validation"
)

// VoiceHandler handles voice tutoring session requests
type VoiceHandler struct {
	validator *validation.Validator
	sessions  *services.SessionService
	quota     *services.QuotaService
}

// NewVoiceHandler creates a new voice session handler
func NewVoiceHandler(sessions *services.SessionService, quota *services.QuotaService) *VoiceHandler {
	return &VoiceHandler{
		validator: validation.NewValidator(),
		sessions:  sessions,
		quota:     quota,
	}
}

// CreateSessionRequest represents the request to start a tutoring session
type CreateSessionRequest struct {
	StudentID   *uint  `json:"student_id" validate:"omitempty,min=1"`
	StudentName string `json:"student_name" validate:"required,max=100"`
	GradeBand   string `json:"grade_band" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=100"`
	DocumentIDs []uint `json:"document_ids" validate:"omitempty,max=20"`
}

// LogUsageRequest represents the usage beacon payload. Clients send it
// fire-and-forget on tab close, so the handler tolerates zero elapsed time.
type LogUsageRequest struct {
	ElapsedMS   int64  `json:"elapsed_ms" validate:"gte=0"`
	SessionType string `json:"session_type" validate:"omitempty,max=40"`
}

// CreateSession handles POST /api/v1/voice/sessions
func (h *VoiceHandler) CreateSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Missing required fields: "+err.Error())
	}

	result, err := h.sessions.CreateSession(c.Context(), services.CreateSessionRequest{
		UserID:      user.ID,
		StudentID:   req.StudentID,
		StudentName: req.StudentName,
		GradeBand:   model.GradeBand(req.GradeBand),
		Subject:     req.Subject,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRequest):
			return response.BadRequest(c, err.Error())
		case errors.Is(err, services.ErrStudentNotFound):
			return response.NotFound(c, "Student not found")
		case errors.Is(err, services.ErrNoAgentTemplate):
			return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
				"Voice tutoring is not configured for this grade band", "CONFIGURATION_ERROR", err.Error())
		default:
			return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
				"Failed to create tutoring session", "PROVIDER_ERROR", err.Error())
		}
	}

	return response.Created(c, result)
}

// EndSession handles POST /api/v1/voice/sessions/:id/end
func (h *VoiceHandler) EndSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id := c.Params("id")

	if _, err := h.loadOwnedSession(c, id, user); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to load session")
	}

	if err := h.sessions.EndSession(c.Context(), id); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
			"Failed to end session", "INTERNAL_ERROR", err.Error())
	}

	return response.SuccessWithMessage(c, "Session ended", nil)
}

// LogUsage handles POST /api/v1/voice/sessions/:id/usage
func (h *VoiceHandler) LogUsage(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id := c.Params("id")

	var req LogUsageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Invalid usage payload: "+err.Error())
	}

	if _, err := h.loadOwnedSession(c, id, user); err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			return response.NotFound(c, "Session not found")
		}
		return response.InternalServerError(c, "Failed to load session")
	}

	minutes := services.MinutesFromElapsed(req.ElapsedMS)
	if minutes == 0 {
		return response.Success(c, fiber.Map{"minutes_used": 0})
	}

	if err := h.quota.LogUsage(c.Context(), user.ID, &id, minutes, req.SessionType); err != nil {
		return response.InternalServerError(c, "Failed to log usage")
	}

	return response.Success(c, fiber.Map{"minutes_used": minutes})
}

// CheckAvailability handles GET /api/v1/voice/availability
//
// A denial is a structured {allowed:false, reason} payload with HTTP 200,
// not an error.
func (h *VoiceHandler) CheckAvailability(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	availability, err := h.quota.CheckAvailability(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check availability")
	}

	return response.Success(c, availability)
}

// Cleanup handles POST /api/v1/voice/cleanup (admin-only). It runs both
// sweeps; an external scheduler normally drives these, this endpoint exists
// for operators.
func (h *VoiceHandler) Cleanup(c *fiber.Ctx) error {
	expired, err := h.sessions.CleanupExpiredSessions(c.Context())
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
			"Cleanup failed", "INTERNAL_ERROR", err.Error())
	}
	orphaned, err := h.sessions.CleanupOrphanedSessions(c.Context())
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusInternalServerError,
			"Cleanup failed", "INTERNAL_ERROR", err.Error())
	}

	return response.SuccessWithMessage(c,
		fmt.Sprintf("Ended %d expired and %d orphaned sessions", expired, orphaned), nil)
}

// loadOwnedSession resolves the session and checks it belongs to the
// caller. Foreign sessions read as not found rather than forbidden, so ids
// cannot be enumerated.
func (h *VoiceHandler) loadOwnedSession(c *fiber.Ctx, id string, user *model.User) (*model.AgentSession, error) {
	session, err := h.sessions.GetSession(c.Context(), id)
	if err != nil {
		return nil, err
	}
	if session.UserID != user.ID && user.Role != "admin" {
		return nil, services.ErrSessionNotFound
	}
	return session, nil
}
