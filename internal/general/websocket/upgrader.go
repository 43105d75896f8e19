package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"delivery-dispatch/internal/general/contracts"
	"delivery-dispatch/internal/general/jwt"
	"delivery-dispatch/internal/general/logger"
	"delivery-dispatch/internal/general/metrics"
	"delivery-dispatch/internal/general/rooms"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 5 * time.Second
	wsCloseAckWindow = 2 * time.Second
	wsReadLimit      = 1 << 20 // 1 MiB
)

// CloseSessionExpired is sent when a connection outlives its credential.
const CloseSessionExpired = 4001

// EventRouter is the part of the dispatch service a connection talks to.
type EventRouter interface {
	Connect(ctx context.Context, m rooms.Member, s *jwt.Session) (rooms.RoomID, error)
	Disconnect(ctx context.Context, m rooms.Member, s *jwt.Session) error
	Handle(ctx context.Context, s *jwt.Session, in contracts.Inbound) (*contracts.Outbound, error)
}

type Config struct {
	AuthTimeout time.Duration
	SendBuffer  int
	PingPeriod  time.Duration
	PongWait    time.Duration
}

func (c Config) withDefaults() Config {
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = 5 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait / 2
	}
	return c
}

// WebSocket accepts client connections, authenticates their first frame and feeds
// every following frame into the event router.
type WebSocket struct {
	logger   *logger.Logger
	gk       *jwt.Gatekeeper
	router   EventRouter
	metrics  *metrics.Recorder
	cfg      Config
	upgrader websocket.Upgrader
}

// NewWebSocket creates the connection handler. rec may be nil.
func NewWebSocket(log *logger.Logger, gk *jwt.Gatekeeper, router EventRouter, rec *metrics.Recorder, cfg Config) *WebSocket {
	return &WebSocket{
		logger:  log,
		gk:      gk,
		router:  router,
		metrics: rec,
		cfg:     cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and runs the connection until either side closes it.
func (ws *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1) Upgrade HTTP -> WS
	raw, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	connID := uuid.NewString()
	ctx := ws.logger.WithConnectionID(r.Context(), connID)
	raw.SetReadLimit(wsReadLimit)

	// 2) Authenticate before anything else is read or joined
	session, err := ws.authenticate(r, raw)
	if err != nil {
		ws.rejectAuth(ctx, raw, err)
		return
	}

	c := newConn(connID, raw, ws.cfg.SendBuffer)
	room, _ := rooms.ForSession(session)
	c.Send(contracts.NewOutbound(contracts.EventAuthSuccess, contracts.AuthSuccess{
		SubjectID: session.SubjectID,
		Role:      session.Role.String(),
		Rooms:     []string{room.String()},
	}))

	// 3) Join the room; the router brings drivers online
	if _, err := ws.router.Connect(ctx, c, session); err != nil {
		ws.logger.Error(ctx, "ws_connect_failed", "Failed to register connection", err,
			map[string]any{"subject_id": session.SubjectID, "role": session.Role})
		_ = writeFrame(raw, contracts.NewError(contracts.CodeInternal, "failed to register connection"))
		writeClose(raw, websocket.CloseInternalServerErr, "internal error")
		_ = raw.Close()
		return
	}
	ws.metrics.ConnectionOpened()
	ws.logger.Info(ctx, "ws_connected", "WebSocket connected",
		map[string]any{"subject_id": session.SubjectID, "role": session.Role, "room": room.String()})

	teardown := func() {
		c.shutdown()
		if err := ws.router.Disconnect(context.WithoutCancel(ctx), c, session); err != nil {
			ws.logger.Error(ctx, "ws_disconnect_failed", "Failed to release connection", err,
				map[string]any{"subject_id": session.SubjectID})
		}
		ws.metrics.ConnectionClosed()
	}

	// 4) Writer owns the socket for data frames, pings and expiry
	go ws.writePump(ctx, c, session)
	ws.readPump(ctx, c, session)
	c.once.Do(teardown)
}

// authenticate takes the credential from the Authorization header or query when the client
// supplied one at upgrade time, otherwise from the first frame within AuthTimeout.
func (ws *WebSocket) authenticate(r *http.Request, raw *websocket.Conn) (*jwt.Session, error) {
	if credential, err := jwt.FromAuthorization(r); err == nil {
		return ws.gk.Authenticate(credential)
	}

	if err := raw.SetReadDeadline(time.Now().Add(ws.cfg.AuthTimeout)); err != nil {
		return nil, &jwt.AuthError{Kind: jwt.AuthMissing, Err: err}
	}
	mt, frame, err := raw.ReadMessage()
	if err != nil {
		return nil, &jwt.AuthError{Kind: jwt.AuthMissing, Err: err}
	}
	if mt != websocket.TextMessage {
		return nil, &jwt.AuthError{Kind: jwt.AuthInvalid, Err: jwt.ErrBadAuthMsg}
	}
	return jwt.ValidateWSAuth(frame, ws.gk)
}

func (ws *WebSocket) rejectAuth(ctx context.Context, raw *websocket.Conn, err error) {
	code, kind := contracts.CodeBadRequest, string(jwt.AuthInvalid)
	var ae *jwt.AuthError
	if errors.As(err, &ae) {
		code, kind = ae.Code(), string(ae.Kind)
	}
	ws.metrics.AuthFailure(kind)
	ws.logger.Warn(ctx, "ws_auth_failed", "WebSocket authentication failed",
		map[string]any{"reason": kind, "error": err.Error()})

	_ = writeFrame(raw, contracts.NewOutbound(contracts.EventAuthError, contracts.ErrorPayload{Code: code, Error: err.Error()}))
	writeClose(raw, websocket.ClosePolicyViolation, "authentication failed")
	_ = raw.Close()
}

func (ws *WebSocket) readPump(ctx context.Context, c *conn, s *jwt.Session) {
	_ = c.ws.SetReadDeadline(time.Now().Add(ws.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(ws.cfg.PongWait))
	})

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ws.logger.Warn(ctx, "ws_unexpected_close", "Connection closed unexpectedly",
					map[string]any{"subject_id": s.SubjectID, "error": err.Error()})
			} else {
				ws.logger.Info(ctx, "ws_connection_closed", "Connection closed",
					map[string]any{"subject_id": s.SubjectID})
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(ws.cfg.PongWait))

		var in contracts.Inbound
		if err := json.Unmarshal(payload, &in); err != nil || in.Type == "" {
			c.Send(contracts.NewError(contracts.CodeBadRequest, "bad json"))
			continue
		}

		// the writer closes with CloseSessionExpired; frames racing it are not applied
		if s.Expired(time.Now()) {
			continue
		}

		reply, err := ws.router.Handle(ctx, s, in)
		if err == nil && isHeartbeat(in.Type) {
			c.touch(time.Now())
		}
		if reply != nil && !c.Send(*reply) {
			ws.logger.Warn(ctx, "ws_reply_dropped", "Send buffer full, reply dropped",
				map[string]any{"subject_id": s.SubjectID, "type": in.Type})
		}
	}
}

func (ws *WebSocket) writePump(ctx context.Context, c *conn, s *jwt.Session) {
	ping := time.NewTicker(ws.cfg.PingPeriod)
	defer ping.Stop()

	var expired <-chan time.Time
	if !s.ExpiresAt.IsZero() {
		timer := time.NewTimer(time.Until(s.ExpiresAt))
		defer timer.Stop()
		expired = timer.C
	}

	// Closing the socket unblocks the reader, which then tears the connection down.
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			writeClose(c.ws, websocket.CloseNormalClosure, "bye")
			return

		case ev := <-c.send:
			if err := writeFrame(c.ws, ev); err != nil {
				ws.logger.Warn(ctx, "ws_write_failed", "Failed to write frame",
					map[string]any{"subject_id": s.SubjectID, "error": err.Error()})
				return
			}

		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				ws.logger.Warn(ctx, "ws_ping_failed", "Failed to send ping",
					map[string]any{"subject_id": s.SubjectID, "error": err.Error()})
				return
			}

		case <-expired:
			ws.logger.Info(ctx, "ws_session_expired", "Session expired, closing connection",
				map[string]any{"subject_id": s.SubjectID})
			writeClose(c.ws, CloseSessionExpired, "session expired")
			return
		}
	}
}
