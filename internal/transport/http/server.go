package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/modchat-server/internal/auth"
	"github.com/vovakirdan/modchat-server/internal/config"
	"github.com/vovakirdan/modchat-server/internal/core"
	"github.com/vovakirdan/modchat-server/internal/metrics"
)

// NewServer builds the HTTP server: websocket endpoint, read API, admin API
// and metrics. m may be nil.
func NewServer(hub *core.Hub, identities *auth.Service, admin *auth.AdminVerifier, m *metrics.Metrics, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	handlers := NewAdminHandlers(hub, admin, logger)
	api := router.Group("/api")
	api.GET("/bans", handlers.ListBans)
	api.GET("/history", handlers.GetHistory)

	adminGroup := router.Group("/admin")
	adminGroup.POST("/ban", handlers.Ban)
	adminGroup.POST("/unban", handlers.Unban)

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{stdhttp.MethodGet, stdhttp.MethodPost, stdhttp.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, identities, cfg, logger))
	mux.Handle("/", corsHandler.Handler(router))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
