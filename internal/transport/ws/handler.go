package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/auth"
	"github.com/parleychat/parley-server/internal/core"
)

// Handler upgrades authenticated HTTP requests and bridges each socket to
// the core router.
type Handler struct {
	transport *Transport
	router    *core.Router
	auth      *auth.Service
	rateLimit int
	log       *zerolog.Logger
}

// NewHandler builds a websocket handler.
func NewHandler(transport *Transport, router *core.Router, authService *auth.Service, rateLimit int, logger *zerolog.Logger) *Handler {
	return &Handler{
		transport: transport,
		router:    router,
		auth:      authService,
		rateLimit: rateLimit,
		log:       logger,
	}
}

// Handle serves GET /ws. The token is validated before the upgrade and the
// authenticated username seeds the connection's presence entry; the explicit
// register_user event remains supported on top of that.
func (h *Handler) Handle(c *gin.Context) {
	claims, err := h.auth.ValidateToken(bearerToken(c))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	connID := uuid.NewString()
	cl := h.transport.addClient(connID)
	defer h.transport.removeClient(connID)
	defer h.router.Disconnect(connID)

	if err := h.router.Register(connID, claims.Username); err != nil {
		h.log.Warn().Err(err).Str("conn_id", connID).Msg("presence registration failed")
	}

	h.log.Info().Str("conn_id", connID).Str("username", claims.Username).Msg("ws connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, connID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, cl)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", connID).Msg("ws connection closed with error")
		}
	}

	h.log.Info().Str("conn_id", connID).Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	limiter := newRateLimiter(h.rateLimit)
	defer limiter.stop()

	for {
		var frame Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}

		if !limiter.allow() {
			_ = h.transport.SendTo(connID, core.EventSystem, core.SystemNotice{
				Message: "Rate limit exceeded.",
			})
			continue
		}

		h.router.HandleEvent(ctx, connID, frame.Event, frame.Data)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, cl *client) error {
	for {
		select {
		case frame := <-cl.out:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				h.log.Error().Err(err).Str("conn_id", cl.id).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
