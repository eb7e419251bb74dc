package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/auth"
	"github.com/rmacedo/salachat-server/internal/avatar"
	"github.com/rmacedo/salachat-server/internal/config"
	"github.com/rmacedo/salachat-server/internal/core"
	"github.com/rmacedo/salachat-server/internal/service/moderation"
	"github.com/rmacedo/salachat-server/internal/store"
)

// Deps bundles everything the HTTP layer serves.
type Deps struct {
	Store      store.Store
	Hub        *core.Hub
	Auth       *auth.Service
	Moderation *moderation.Service
	Avatars    avatar.Storage
}

// NewServer builds the HTTP server: REST API, websocket endpoint, and the
// uploads directory when avatars live on disk.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Avatars, logger)
	userHandlers := NewUserHandlers(deps.Store, deps.Hub, cfg.HistoryLimit, logger)
	adminHandlers := NewAdminHandlers(deps.Moderation, logger)

	router.GET("/health", healthHandler)

	api := router.Group("/api")
	{
		authLimited := api.Group("")
		authLimited.Use(RateLimitMiddleware(cfg.AuthRatePerSecond, cfg.AuthBurst))
		authLimited.POST("/register", apiHandlers.Register)
		authLimited.POST("/login", apiHandlers.Login)

		api.GET("/users", userHandlers.ListUsers)
		api.GET("/users/:username/profile", userHandlers.Profile)
		api.GET("/online", userHandlers.OnlineUsers)
		api.GET("/messages", userHandlers.Messages)

		admin := api.Group("/admin")
		admin.Use(AuthMiddleware(deps.Auth, logger))
		admin.DELETE("/users/:username", adminHandlers.DeleteUser)
		admin.DELETE("/messages/:id", adminHandlers.DeleteMessage)
	}

	router.GET("/ws", gin.WrapH(NewWSHandler(deps.Hub, cfg.AllowedOrigins, logger)))

	if disk, ok := deps.Avatars.(*avatar.Disk); ok {
		router.Static("/uploads", disk.Dir())
	}

	corsOrigins := cfg.AllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	handler := cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodDelete, stdhttp.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
