package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/parleychat/parley-server/internal/store"
)

// HistoryHandlers provides HTTP handlers for message history retrieval.
type HistoryHandlers struct {
	store store.MessageStore
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.MessageStore, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		store: st,
		log:   logger,
	}
}

// GroupMessageResponse represents a group message in API responses.
type GroupMessageResponse struct {
	ID       int64     `json:"id"`
	FromUser string    `json:"from_user"`
	Room     string    `json:"room"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}

// PrivateMessageResponse represents a private message in API responses.
type PrivateMessageResponse struct {
	ID       int64     `json:"id"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}

// GroupHistoryResponse represents the group history response body.
type GroupHistoryResponse struct {
	Messages []GroupMessageResponse `json:"messages"`
}

// PrivateHistoryResponse represents the private history response body.
type PrivateHistoryResponse struct {
	Messages []PrivateMessageResponse `json:"messages"`
}

// GroupHistory returns recent room messages in chronological order.
// GET /api/rooms/:room/messages?limit=50
func (h *HistoryHandlers) GroupHistory(c *gin.Context) {
	room := c.Param("room")
	limit := parseLimit(c.Query("limit"))

	msgs, err := h.store.RecentGroupMessages(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to query group history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]GroupMessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, GroupMessageResponse{
			ID:       msg.ID,
			FromUser: msg.FromUser,
			Room:     msg.Room,
			Message:  msg.Body,
			DateSent: msg.SentAt,
		})
	}

	c.JSON(http.StatusOK, GroupHistoryResponse{Messages: out})
}

// PrivateHistory returns recent messages between two users, in either
// direction, in chronological order.
// GET /api/private/messages?userA=a&userB=b&limit=50
func (h *HistoryHandlers) PrivateHistory(c *gin.Context) {
	userA := c.Query("userA")
	userB := c.Query("userB")
	if userA == "" || userB == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "userA and userB are required"})
		return
	}
	limit := parseLimit(c.Query("limit"))

	msgs, err := h.store.RecentPrivateMessages(c.Request.Context(), userA, userB, limit)
	if err != nil {
		h.log.Error().Err(err).Str("userA", userA).Str("userB", userB).Msg("failed to query private history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]PrivateMessageResponse, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, PrivateMessageResponse{
			ID:       msg.ID,
			FromUser: msg.FromUser,
			ToUser:   msg.ToUser,
			Message:  msg.Body,
			DateSent: msg.SentAt,
		})
	}

	c.JSON(http.StatusOK, PrivateHistoryResponse{Messages: out})
}

// parseLimit leaves clamping to the store; unparseable values fall back to
// the default.
func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
