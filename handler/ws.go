package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"training-relay/client"
	"training-relay/dto"
	"training-relay/metrics"
	"training-relay/relay"
)

// VoiceWS upgrades the client connection and launches a relay session.
type VoiceWS struct {
	Backend  client.Backend
	Dialer   relay.Dialer
	Store    relay.ObjectStore
	Registry *relay.Registry
	Metrics  *metrics.Metrics
	Config   relay.Config
	Upgrader websocket.Upgrader
}

func (h *VoiceWS) Serve(c *gin.Context) {
	ctx := c.Request.Context()

	// Upgrade before validating: a rejection still needs a ws close frame
	// the browser can read.
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	params, err := relay.ParseParams(c.Request.URL.Query())
	if err != nil {
		h.reject(conn, "rejected", "invalid_params", err.Error())
		return
	}

	resolveCtx, cancel := context.WithTimeout(ctx, h.Config.BackendTimeout)
	resolved, err := h.Backend.ResolveSession(resolveCtx, dto.ResolveSessionRequest{
		UserId:       params.UserID,
		ScenarioId:   params.ScenarioID,
		AssignmentId: params.AssignmentID,
	})
	cancel()
	if err != nil {
		kind, code := classifyResolveError(err)
		h.reject(conn, kind, code, err.Error())
		return
	}

	session := relay.New(relay.Dependencies{
		Client:   conn,
		Dialer:   h.Dialer,
		Backend:  h.Backend,
		Store:    h.Store,
		Registry: h.Registry,
		Metrics:  h.Metrics,
		Params:   params,
		Resolved: resolved,
		Config:   h.Config,
	})

	if err := session.Run(ctx); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("session_id", resolved.SessionId.String()).
			Msg("relay session ended with error")
	}
}

func (h *VoiceWS) reject(conn *websocket.Conn, kind, code, message string) {
	frame, _ := json.Marshal(relay.ErrorFrame{Type: "error", Kind: kind, Code: code, Message: message})
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code),
		time.Now().Add(2*time.Second))
	_ = conn.Close()
}

func classifyResolveError(err error) (string, string) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return "rejected", "not_found"
		case http.StatusConflict:
			return "rejected", "conflict"
		case http.StatusForbidden:
			return "rejected", "forbidden"
		}
	}
	return "backend_error", "resolve_failed"
}
