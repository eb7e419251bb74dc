package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/auth"
	"github.com/rmacedo/salachat-server/internal/avatar"
)

// maxAvatarBytes caps the size of an uploaded avatar image.
const maxAvatarBytes = 5 << 20

// APIHandlers provides HTTP handlers for registration and login.
type APIHandlers struct {
	authService *auth.Service
	avatars     avatar.Storage
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, avatars avatar.Storage, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		avatars:     avatars,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the login response body.
type AuthResponse struct {
	UserResponse
	Token string `json:"token"`
}

// Register handles user registration. The body is multipart form data so an
// avatar image can be attached: fields username, password, optional color,
// optional file field avatar (PNG, JPEG or GIF).
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	color := c.PostForm("color")

	avatarRef := ""
	file, err := c.FormFile("avatar")
	if err == nil && file != nil {
		if file.Size > maxAvatarBytes {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "avatar too large"})
			return
		}
		src, err := file.Open()
		if err != nil {
			h.log.Error().Err(err).Msg("failed to open avatar upload")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		defer src.Close()

		ref, err := h.avatars.Save(c.Request.Context(), file.Header.Get("Content-Type"), src)
		if err != nil {
			if errors.Is(err, avatar.ErrUnsupportedType) {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "avatar must be a png, jpeg or gif image"})
				return
			}
			h.log.Error().Err(err).Msg("failed to store avatar")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		avatarRef = ref
	}

	user, err := h.authService.Register(c.Request.Context(), username, password, color, avatarRef)
	if err != nil {
		if avatarRef != "" {
			if rmErr := h.avatars.Remove(c.Request.Context(), avatarRef); rmErr != nil {
				h.log.Warn().Err(rmErr).Str("ref", avatarRef).Msg("failed to remove orphaned avatar")
			}
		}
		switch {
		case errors.Is(err, auth.ErrMissingField):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		default:
			h.log.Error().Err(err).Str("username", username).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", user.Username).Msg("user registered successfully")
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", user.Username).Msg("user logged in successfully")
	c.JSON(http.StatusOK, AuthResponse{UserResponse: userResponse(user), Token: token})
}
