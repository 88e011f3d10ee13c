package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	claims := sessionClaims(c)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, claims.UserID)
	defer cleanup()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, realtimePayload{
				Kind:      message.Kind,
				GuildID:   message.GuildID,
				RoundID:   message.RoundID,
				Text:      message.Text,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339),
				Source:    realtimeSourceBackend,
			})
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{
				"source":    realtimeSourceBackend,
				"timestamp": tick.UTC().Format(time.RFC3339),
			})
			return true
		}
	})
}
