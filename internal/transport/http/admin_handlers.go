package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/service/moderation"
)

// AdminHandlers serves the admin-only moderation endpoints. Routes using it
// must sit behind AuthMiddleware; the moderation service checks the stored
// role, so a stale token alone is not enough.
type AdminHandlers struct {
	moderation *moderation.Service
	log        *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(mod *moderation.Service, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		moderation: mod,
		log:        logger,
	}
}

// DeleteUser removes a user account.
// DELETE /api/admin/users/:username
func (h *AdminHandlers) DeleteUser(c *gin.Context) {
	requester := c.GetString(ContextKeyUsername)
	target := c.Param("username")

	err := h.moderation.DeleteUser(c.Request.Context(), requester, target)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin role required"})
		case errors.Is(err, moderation.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		case errors.Is(err, moderation.ErrLastAdmin):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "cannot delete the last admin"})
		default:
			h.log.Error().Err(err).Str("target", target).Msg("failed to delete user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": target})
}

// DeleteMessage removes a message from history.
// DELETE /api/admin/messages/:id
func (h *AdminHandlers) DeleteMessage(c *gin.Context) {
	requester := c.GetString(ContextKeyUsername)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	if err := h.moderation.DeleteMessage(c.Request.Context(), requester, id); err != nil {
		switch {
		case errors.Is(err, moderation.ErrForbidden):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin role required"})
		case errors.Is(err, moderation.ErrNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found"})
		default:
			h.log.Error().Err(err).Int64("id", id).Msg("failed to delete message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
