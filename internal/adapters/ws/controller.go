// Package ws is the websocket transport adapter: it upgrades HTTP
// requests, runs the authentication handshake, and pumps frames between
// the network and the hub.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/auth"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
	"github.com/huddlehq/huddle/internal/hub"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Controller struct {
	hub  *hub.Hub
	auth auth.Authenticator
	cfg  *config.Config
}

func NewController(h *hub.Hub, authenticator auth.Authenticator, cfg *config.Config) *Controller {
	return &Controller{hub: h, auth: authenticator, cfg: cfg}
}

// Handle upgrades the request and runs the connection to completion. The
// first client frame must be an auth control message within the handshake
// timeout; a connection that never authenticates is dropped without ever
// touching the registry.
func (ctl *Controller) Handle(c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade")
		return
	}
	socket.SetReadLimit(ctl.cfg.ReadLimit)

	user, ok := ctl.handshake(c, socket)
	if !ok {
		_ = socket.Close()
		return
	}

	connID := domain.ConnID(uuid.NewString())
	conn := newConn(socket, ctl.cfg.SendBuffer)
	if err := ctl.hub.Connect(c.Request.Context(), connID, user, conn); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("connect")
		conn.Close()
		return
	}
	log.Info().Str("module", "ws").Str("conn", string(connID)).
		Str("user", string(user.ID)).Msg("connection active")

	go conn.writePump(c.Request.Context(), ctl.cfg.WriteTimeout, ctl.cfg.PingPeriod)
	ctl.readLoop(c, connID, conn, socket)
}

// handshake reads and verifies the auth frame. Failures are reported on
// the socket directly since the hub does not know this connection yet.
func (ctl *Controller) handshake(c *gin.Context, socket *websocket.Conn) (domain.User, bool) {
	_ = socket.SetReadDeadline(time.Now().Add(ctl.cfg.AuthTimeout))
	_, data, err := socket.ReadMessage()
	if err != nil {
		log.Debug().Err(err).Str("module", "ws").Msg("handshake read")
		return domain.User{}, false
	}

	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event != event.Auth {
		rejectSocket(socket, event.CodeBadPayload, "expected auth message")
		return domain.User{}, false
	}
	var req event.AuthRequest
	if err := event.DecodeControl(env.Payload, &req); err != nil {
		rejectSocket(socket, event.CodeBadPayload, "expected auth message")
		return domain.User{}, false
	}

	user, err := ctl.auth.Authenticate(c.Request.Context(), req.Token)
	if err != nil {
		log.Info().Err(err).Str("module", "ws").Msg("handshake rejected")
		rejectSocket(socket, "unauthenticated", "invalid or expired credentials")
		return domain.User{}, false
	}
	_ = socket.SetReadDeadline(time.Now().Add(readTimeout(ctl.cfg.PingPeriod)))
	return user, true
}

func (ctl *Controller) readLoop(c *gin.Context, connID domain.ConnID, conn *Conn, socket *websocket.Conn) {
	defer func() {
		conn.Close()
		ctl.hub.Disconnect(connID, "transport closed")
	}()

	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(readTimeout(ctl.cfg.PingPeriod)))
	})

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "ws").Str("conn", string(connID)).Msg("read loop exit")
			return
		}
		ctl.handleControl(c, connID, conn, data)
	}
}

// readTimeout leaves one missed ping of slack before a silent peer is
// considered gone.
func readTimeout(pingPeriod time.Duration) time.Duration {
	return pingPeriod + pingPeriod/2
}

func rejectSocket(socket *websocket.Conn, code, message string) {
	frame, err := event.Encode(event.Error, event.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = socket.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = socket.WriteMessage(websocket.TextMessage, frame)
}
