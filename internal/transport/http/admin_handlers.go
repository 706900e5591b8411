package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/store"
)

// AdminHandlers serves the read API and the shared-secret admin API.
// Every engine access goes through the hub loop.
type AdminHandlers struct {
	hub   *core.Hub
	admin *auth.AdminVerifier
	log   *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(hub *core.Hub, admin *auth.AdminVerifier, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		hub:   hub,
		admin: admin,
		log:   logger,
	}
}

// BanRequest represents the admin ban request body.
type BanRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Reason        string `json:"reason" binding:"max=200"`
	Password      string `json:"password" binding:"required"`
}

// UnbanRequest represents the admin unban request body.
type UnbanRequest struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	Password      string `json:"password" binding:"required"`
}

// BanResponse wraps the affected ban record.
type BanResponse struct {
	Ban store.Ban `json:"ban"`
	// Warning is set when the change applied but could not be persisted.
	Warning string `json:"warning,omitempty"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListBans returns the current ban list.
// GET /api/bans
func (h *AdminHandlers) ListBans(c *gin.Context) {
	var bans []store.Ban
	if err := h.hub.Do(c.Request.Context(), func(e *core.Engine) { bans = e.Bans() }); err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, bans)
}

// GetHistory returns the buffered message history.
// GET /api/history
func (h *AdminHandlers) GetHistory(c *gin.Context) {
	var messages []store.Message
	if err := h.hub.Do(c.Request.Context(), func(e *core.Engine) { messages = e.History() }); err != nil {
		h.unavailable(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// Ban bans a participant.
// POST /admin/ban
func (h *AdminHandlers) Ban(c *gin.Context) {
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid ban request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !h.authorize(c, req.Password) {
		return
	}

	var (
		rec    store.Ban
		banErr error
	)
	if err := h.hub.Do(c.Request.Context(), func(e *core.Engine) {
		rec, banErr = e.AdminBan(c.Request.Context(), req.ParticipantID, req.Reason)
	}); err != nil {
		h.unavailable(c, err)
		return
	}
	h.respond(c, rec, banErr, "admin ban")
}

// Unban lifts a ban.
// POST /admin/unban
func (h *AdminHandlers) Unban(c *gin.Context) {
	var req UnbanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid unban request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if !h.authorize(c, req.Password) {
		return
	}

	var (
		rec      store.Ban
		unbanErr error
	)
	if err := h.hub.Do(c.Request.Context(), func(e *core.Engine) {
		rec, unbanErr = e.AdminUnban(c.Request.Context(), req.ParticipantID)
	}); err != nil {
		h.unavailable(c, err)
		return
	}
	h.respond(c, rec, unbanErr, "admin unban")
}

func (h *AdminHandlers) authorize(c *gin.Context, password string) bool {
	if err := h.admin.Verify(password); err != nil {
		h.log.Warn().Str("remote", c.ClientIP()).Msg("rejected admin request")
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "invalid admin password"})
		return false
	}
	return true
}

func (h *AdminHandlers) respond(c *gin.Context, rec store.Ban, err error, action string) {
	var pErr *store.PersistenceError
	switch {
	case err == nil:
		h.log.Info().Str("participant_id", rec.ParticipantID).Msg(action)
		c.JSON(http.StatusOK, BanResponse{Ban: rec})
	case errors.Is(err, core.ErrTargetNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "participant not found"})
	case errors.Is(err, core.ErrNotBanned):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "participant is not banned"})
	case errors.As(err, &pErr):
		h.log.Error().Err(err).Str("participant_id", rec.ParticipantID).Msg(action + " not persisted")
		c.JSON(http.StatusInternalServerError, BanResponse{Ban: rec, Warning: "change applied but not saved"})
	default:
		h.log.Error().Err(err).Msg(action + " failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func (h *AdminHandlers) unavailable(c *gin.Context, err error) {
	h.log.Error().Err(err).Msg("engine unavailable")
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "server is shutting down"})
}
