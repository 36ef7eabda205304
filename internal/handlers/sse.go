package handlers

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

// SSEHandler pushes a user's notifications over Server-Sent Events.
type SSEHandler struct {
	hub        *services.SSEHub
	dispatcher *authz.Dispatcher
}

func NewSSEHandler(hub *services.SSEHub, dispatcher *authz.Dispatcher) *SSEHandler {
	return &SSEHandler{hub: hub, dispatcher: dispatcher}
}

// Stream holds the connection open and forwards events for the caller.
// EventSource cannot set headers, so the token may come as ?token=.
// GET /api/notifications/stream
func (h *SSEHandler) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if bearer, ok := authz.BearerToken(c.GetHeader("Authorization")); ok {
			token = bearer
		}
	}
	if token == "" {
		response.Error(c, authz.ErrUnauthenticated)
		return
	}

	access, err := h.dispatcher.AuthorizeToken(c.Request.Context(), token, "", authz.Authenticated)
	if err != nil {
		response.Error(c, err)
		return
	}
	userID := access.UserID()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID, events := h.hub.Subscribe(userID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("user_id", userID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
