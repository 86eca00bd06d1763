package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/auth"
	"github.com/parleychat/parley-server/internal/config"
	"github.com/parleychat/parley-server/internal/store"
	"github.com/parleychat/parley-server/internal/transport/ws"
)

// NewServer builds the HTTP server hosting the REST API and the websocket
// endpoint.
func NewServer(cfg config.Config, st store.Store, authService *auth.Service, wsHandler *ws.Handler, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware(logger))

	apiHandlers := NewAPIHandlers(authService, logger)
	userHandlers := NewUserHandlers(st, logger)
	historyHandlers := NewHistoryHandlers(st, logger)

	engine.GET("/health", healthHandler)
	engine.GET("/ws", wsHandler.Handle)

	api := engine.Group("/api")
	api.POST("/signup", apiHandlers.Signup)
	api.POST("/login", apiHandlers.Login)

	authed := api.Group("", AuthMiddleware(authService, logger))
	authed.GET("/users", userHandlers.ListUsers)
	authed.GET("/rooms/:room/messages", historyHandlers.GroupHistory)
	authed.GET("/private/messages", historyHandlers.PrivateHistory)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
