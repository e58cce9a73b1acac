package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeControl_Validates(t *testing.T) {
	req := require.New(t)

	var join JoinRoomRequest
	req.NoError(DecodeControl(json.RawMessage(`{"room":"channel:10"}`), &join))
	req.Equal("channel:10", join.Room)

	req.ErrorIs(DecodeControl(json.RawMessage(`{}`), &JoinRoomRequest{}), ErrBadPayload)
	req.ErrorIs(DecodeControl(json.RawMessage(`not json`), &JoinRoomRequest{}), ErrBadPayload)
}

func TestDecodeControl_Status(t *testing.T) {
	req := require.New(t)

	var status UpdateStatusRequest
	req.NoError(DecodeControl(json.RawMessage(`{"status":"DO_NOT_DISTURB","customStatus":"focus"}`), &status))

	req.ErrorIs(DecodeControl(json.RawMessage(`{"status":"NAPPING"}`), &UpdateStatusRequest{}), ErrBadPayload)
}

// Typing names exactly one of channel or dm.
func TestDecodeControl_Typing(t *testing.T) {
	req := require.New(t)

	var typing TypingRequest
	req.NoError(DecodeControl(json.RawMessage(`{"channelId":"10"}`), &typing))
	req.NoError(DecodeControl(json.RawMessage(`{"dmId":"7"}`), &typing))

	req.ErrorIs(DecodeControl(json.RawMessage(`{}`), &TypingRequest{}), ErrBadPayload)
	req.ErrorIs(DecodeControl(json.RawMessage(`{"channelId":"10","dmId":"7"}`), &TypingRequest{}), ErrBadPayload)
}

func TestDecodeControl_Signal(t *testing.T) {
	req := require.New(t)

	var sig SignalRequest
	raw := json.RawMessage(`{"callId":"c1","targetUserId":"bob","signal":{"sdp":"v=0"}}`)
	req.NoError(DecodeControl(raw, &sig))
	req.JSONEq(`{"sdp":"v=0"}`, string(sig.Signal))

	req.ErrorIs(DecodeControl(json.RawMessage(`{"callId":"c1"}`), &SignalRequest{}), ErrBadPayload)
}

func TestEncode_Envelope(t *testing.T) {
	req := require.New(t)

	frame, err := Encode(UserTyping, TypingPayload{UserID: "u1", Username: "ada", ChannelID: "10"})
	req.NoError(err)

	var env Envelope
	req.NoError(json.Unmarshal(frame, &env))
	req.Equal(UserTyping, env.Event)

	var payload TypingPayload
	req.NoError(json.Unmarshal(env.Payload, &payload))
	req.Equal("ada", payload.Username)
}
