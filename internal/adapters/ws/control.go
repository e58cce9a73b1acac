package ws

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
)

// handleControl routes one inbound control frame to the hub. Malformed
// payloads answer with an error event on this connection only.
func (ctl *Controller) handleControl(c *gin.Context, connID domain.ConnID, conn *Conn, data []byte) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.replyError(conn, event.CodeBadPayload, "malformed frame")
		return
	}
	ctx := c.Request.Context()

	switch env.Event {
	case event.JoinRoom:
		var req event.JoinRoomRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleJoinRoom(ctx, connID, req.Room)

	case event.LeaveRoom:
		var req event.LeaveRoomRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleLeaveRoom(connID, req.Room)

	case event.TypingStart, event.TypingStop:
		var req event.TypingRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleTyping(connID, env.Event == event.TypingStart, req)

	case event.UpdateStatus:
		var req event.UpdateStatusRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleStatus(connID, req)

	case event.CallStart:
		var req event.CallStartRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleCallStart(ctx, connID, req)

	case event.CallJoin:
		var req event.CallJoinRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleCallJoin(ctx, connID, req)

	case event.CallLeave:
		var req event.CallLeaveRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleCallLeave(connID, req)

	case event.WebRTCOffer, event.WebRTCAnswer, event.WebRTCICECandidate:
		var req event.SignalRequest
		if !ctl.decode(conn, env.Payload, &req) {
			return
		}
		ctl.hub.HandleSignal(connID, env.Event, req)

	case event.Ping:
		ctl.reply(conn, event.Pong, nil)

	default:
		log.Warn().Str("module", "ws").Str("event", string(env.Event)).Msg("unknown control message")
		ctl.replyError(conn, event.CodeUnknownEvent, "unknown event")
	}
}

func (ctl *Controller) decode(conn *Conn, raw json.RawMessage, dst any) bool {
	if err := event.DecodeControl(raw, dst); err != nil {
		log.Debug().Err(err).Str("module", "ws").Msg("bad control payload")
		ctl.replyError(conn, event.CodeBadPayload, "bad payload")
		return false
	}
	return true
}

func (ctl *Controller) reply(conn *Conn, t event.Type, payload any) {
	frame, err := event.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", string(t)).Msg("encode reply")
		return
	}
	_ = conn.TrySend(frame)
}

func (ctl *Controller) replyError(conn *Conn, code, message string) {
	ctl.reply(conn, event.Error, event.ErrorPayload{Code: code, Message: message})
}
