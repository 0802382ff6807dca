package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/weiawesome/wes-io-chat/internal/audit"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

// WSHandler authenticates socket upgrades and hands connections to the
// session service.
type WSHandler struct {
	auth       service.Authenticator
	sessions   service.SessionService
	wsCfg      config.WebSocketConfig
	cookieName string
	upgrader   websocket.Upgrader
}

// NewWSHandler accepts upgrades from allowedOrigins, or from any origin when
// the list is empty.
func NewWSHandler(
	auth service.Authenticator,
	sessions service.SessionService,
	wsCfg config.WebSocketConfig,
	cookieName string,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		auth:       auth,
		sessions:   sessions,
		wsCfg:      wsCfg,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := log.Ctx(ctx)

	user, err := h.auth.VerifySessionToken(ctx, h.token(r))
	if err != nil {
		audit.Log(ctx, audit.ActionSocketAuthFail, "", "socket authentication failed")
		response.Write(w, http.StatusUnauthorized, "Please login to access this route")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// the request context ends with this handler; the connection outlives it
	connCtx := log.Enrich(context.WithoutCancel(ctx), log.FieldUserID, user.ID)
	client := hub.NewClient(connCtx, uuid.New().String(), conn, h.wsCfg)

	if err := h.sessions.Connect(client, user); err != nil {
		l.Warn().Err(err).Str(log.FieldConnID, client.ID).Msg("failed to activate session")
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.sessions.HandleMessage, h.sessions.Disconnect)
}

// token reads the session cookie, then a bearer header.
func (h *WSHandler) token(r *http.Request) string {
	if c, err := r.Cookie(h.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get(middleware.AuthHeaderKey)
	if strings.HasPrefix(authHeader, middleware.BearerPrefix) {
		return strings.TrimPrefix(authHeader, middleware.BearerPrefix)
	}
	return ""
}
