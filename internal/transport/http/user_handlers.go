package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/core"
	"github.com/rmacedo/salachat-server/internal/store"
)

// UserHandlers serves read-only user and history endpoints.
type UserHandlers struct {
	store        store.Store
	hub          *core.Hub
	historyLimit int
	log          *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, hub *core.Hub, historyLimit int, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store:        st,
		hub:          hub,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// UserListResponse carries a list of usernames.
type UserListResponse struct {
	Usernames []string `json:"usernames"`
}

// ListUsers returns every registered username in registration order.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	usernames, err := h.store.ListUsernames(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, UserListResponse{Usernames: usernames})
}

// OnlineUsers returns the usernames with at least one live session.
// GET /api/online
func (h *UserHandlers) OnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, UserListResponse{Usernames: h.hub.OnlineUsers()})
}

// ProfileResponse carries the display attributes for a username.
type ProfileResponse struct {
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

// Profile returns the display profile for a username. Unknown usernames get
// the default avatar and color so clients can always render something.
// GET /api/users/:username/profile
func (h *UserHandlers) Profile(c *gin.Context) {
	username := c.Param("username")

	user, err := h.store.GetUserByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, ProfileResponse{
				Avatar: store.DefaultAvatar,
				Color:  store.DefaultColor,
			})
			return
		}
		h.log.Error().Err(err).Str("username", username).Msg("failed to load profile")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{Avatar: user.Avatar, Color: user.Color})
}

// Messages returns recent history, oldest first. An optional limit query
// parameter caps the count below the configured default.
// GET /api/messages
func (h *UserHandlers) Messages(c *gin.Context) {
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		if n < limit {
			limit = n
		}
	}

	msgs, err := h.store.RecentMessages(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to load messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messageResponses(msgs)})
}
