package hub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/event"
)

func startCall(t *testing.T, h *Hub, sender *fakeSender) domain.CallID {
	t.Helper()
	h.HandleCallStart(context.Background(), "conn-a", event.CallStartRequest{ChannelID: "10", Kind: "VIDEO"})
	var created event.CallCreatedPayload
	require.True(t, sender.last(t, event.CallCreated, &created))
	return created.Call.ID
}

func TestCallStart_Announces_To_Channel(t *testing.T) {
	req := require.New(t)
	h, reg := newTestHub(twoUserStore())
	senderA := connect(t, h, "conn-a", alice)
	senderB := connect(t, h, "conn-b", bob)

	callID := startCall(t, h, senderA)

	// The channel peer learns about the call; the initiator only gets the ack.
	var started event.CallStartedPayload
	req.True(senderB.last(t, event.CallStarted, &started))
	req.Equal(callID, started.Call.ID)
	req.Equal(domain.CallVideo, started.Call.Kind)
	req.Equal(domain.UserID("alice"), started.StartedBy.ID)
	req.Zero(senderA.count(t, event.CallStarted))

	// The initiator is in the call room and on the roster.
	req.True(reg.InRoom("conn-a", domain.CallRoom(string(callID))))
	req.True(h.IsParticipant("alice", callID))
	req.False(h.IsParticipant("bob", callID))
}

func TestCallStart_Unauthorized(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	sender := connect(t, h, "conn-a", alice)

	h.HandleCallStart(context.Background(), "conn-a", event.CallStartRequest{ChannelID: "99", Kind: "VOICE"})

	var e event.ErrorPayload
	req.True(sender.last(t, event.Error, &e))
	req.Equal(event.CodeUnauthorized, e.Code)
	req.Zero(sender.count(t, event.CallCreated))
}

func TestCallStart_Invalid_Kind(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	sender := connect(t, h, "conn-a", alice)

	h.HandleCallStart(context.Background(), "conn-a", event.CallStartRequest{ChannelID: "10", Kind: "HOLOGRAM"})

	var e event.ErrorPayload
	req.True(sender.last(t, event.Error, &e))
	req.Equal(event.CodeBadPayload, e.Code)
	req.Zero(sender.count(t, event.CallCreated))
}

func TestCallJoin_And_Leave(t *testing.T) {
	req := require.New(t)
	h, reg := newTestHub(twoUserStore())
	senderA := connect(t, h, "conn-a", alice)
	senderB := connect(t, h, "conn-b", bob)
	callID := startCall(t, h, senderA)

	h.HandleCallJoin(context.Background(), "conn-b", event.CallJoinRequest{CallID: string(callID)})

	var joined event.CallMemberPayload
	req.True(senderA.last(t, event.UserJoinedCall, &joined))
	req.Equal(domain.UserID("bob"), joined.UserID)
	var ack event.CallAckPayload
	req.True(senderB.last(t, event.CallJoined, &ack))
	req.Equal(callID, ack.CallID)
	req.True(h.IsParticipant("bob", callID))

	h.HandleCallLeave("conn-b", event.CallLeaveRequest{CallID: string(callID)})

	var left event.CallMemberPayload
	req.True(senderA.last(t, event.UserLeftCall, &left))
	req.Equal(domain.UserID("bob"), left.UserID)
	req.False(h.IsParticipant("bob", callID))
	req.False(reg.InRoom("conn-b", domain.CallRoom(string(callID))))

	// The last participant leaving destroys the session.
	h.HandleCallLeave("conn-a", event.CallLeaveRequest{CallID: string(callID)})
	req.False(h.IsParticipant("alice", callID))

	h.HandleCallJoin(context.Background(), "conn-b", event.CallJoinRequest{CallID: string(callID)})
	var e event.ErrorPayload
	req.True(senderB.last(t, event.Error, &e))
	req.Equal(event.CodeCallNotFound, e.Code)
}

func TestCallJoin_Unknown_Call(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	sender := connect(t, h, "conn-a", alice)

	h.HandleCallJoin(context.Background(), "conn-a", event.CallJoinRequest{CallID: "nope"})

	var e event.ErrorPayload
	req.True(sender.last(t, event.Error, &e))
	req.Equal(event.CodeCallNotFound, e.Code)
}

// Signaling blobs are relayed untouched to the call room, sender excluded,
// with the from/target hints attached.
func TestSignal_Relay_Is_Opaque(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	senderA := connect(t, h, "conn-a", alice)
	senderB := connect(t, h, "conn-b", bob)
	callID := startCall(t, h, senderA)
	h.HandleCallJoin(context.Background(), "conn-b", event.CallJoinRequest{CallID: string(callID)})

	blob := json.RawMessage(`{"sdp":"v=0...","type":"offer"}`)
	h.HandleSignal("conn-a", event.WebRTCOffer, event.SignalRequest{
		CallID:       string(callID),
		TargetUserID: "bob",
		Signal:       blob,
	})

	var relayed event.SignalPayload
	req.True(senderB.last(t, event.WebRTCOffer, &relayed))
	req.JSONEq(string(blob), string(relayed.Signal))
	req.Equal(domain.UserID("alice"), relayed.FromUserID)
	req.Equal(domain.UserID("bob"), relayed.TargetUserID)
	req.Zero(senderA.count(t, event.WebRTCOffer))
}

func TestSignal_Requires_Participation(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	senderA := connect(t, h, "conn-a", alice)
	senderB := connect(t, h, "conn-b", bob)
	callID := startCall(t, h, senderA)

	// Bob never joined the call.
	h.HandleSignal("conn-b", event.WebRTCOffer, event.SignalRequest{
		CallID:       string(callID),
		TargetUserID: "alice",
		Signal:       json.RawMessage(`{}`),
	})

	var e event.ErrorPayload
	req.True(senderB.last(t, event.Error, &e))
	req.Equal(event.CodeUnauthorized, e.Code)
	req.Zero(senderA.count(t, event.WebRTCOffer))
}

// Disconnecting while in a call behaves like leaving it: remaining
// participants are notified and an emptied session is destroyed.
func TestDisconnect_While_In_Call(t *testing.T) {
	req := require.New(t)
	h, _ := newTestHub(twoUserStore())
	senderA := connect(t, h, "conn-a", alice)
	senderB := connect(t, h, "conn-b", bob)
	callID := startCall(t, h, senderA)
	h.HandleCallJoin(context.Background(), "conn-b", event.CallJoinRequest{CallID: string(callID)})

	h.Disconnect("conn-b", "network drop")

	var left event.CallMemberPayload
	req.True(senderA.last(t, event.UserLeftCall, &left))
	req.Equal(domain.UserID("bob"), left.UserID)
	req.False(h.IsParticipant("bob", callID))

	h.Disconnect("conn-a", "network drop")
	req.False(h.IsParticipant("alice", callID))
	req.Zero(senderB.count(t, event.UserLeftCall))
}
