package v1

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"gymmaster/internal/api/middleware"
	"gymmaster/internal/api/response"
	"gymmaster/internal/sse"
	jwtutil "gymmaster/pkg/jwt"
)

type SSEHandler struct {
	hub       *sse.Hub
	publicKey *rsa.PublicKey
}

func NewSSEHandler(hub *sse.Hub, publicKey *rsa.PublicKey) *SSEHandler {
	return &SSEHandler{hub: hub, publicKey: publicKey}
}

func RegisterSSERoutes(group *gin.RouterGroup, hub *sse.Hub, opts RouteOptions) {
	handler := NewSSEHandler(hub, opts.PublicKey)
	group.GET("/events", handler.Events)
}

// Events streams live dashboard updates. EventSource cannot set headers, so
// the token may also arrive as the access_token query parameter.
func (h *SSEHandler) Events(c *gin.Context) {
	if h.hub == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal, "event stream unavailable")
		return
	}

	tokenStr := middleware.TokenFromRequest(c)
	if tokenStr == "" {
		tokenStr = strings.TrimSpace(c.Query("access_token"))
	}
	if tokenStr == "" || h.publicKey == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return
	}

	claims, err := jwtutil.ParseAccessToken(tokenStr, h.publicKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			response.Fail(c, http.StatusUnauthorized, response.ErrTokenExpired, "token expired")
			return
		}
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	if userID == "" {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "stream unsupported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	client := sse.NewClient(userID, claims.Role)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	for _, item := range h.hub.Replay(client, c.GetHeader("Last-Event-ID")) {
		if err := writeSSEEvent(c, item); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-client.Done:
			return
		case item := <-client.Ch:
			if err := writeSSEEvent(c, item); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(c *gin.Context, item sse.Event) error {
	if item.ID != "" {
		if _, err := fmt.Fprintf(c.Writer, "id: %s\n", item.ID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\n", item.Type); err != nil {
		return err
	}
	for _, line := range strings.Split(item.Data, "\n") {
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(c.Writer, "\n")
	return err
}
