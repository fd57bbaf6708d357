package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-backend/internal/domain"
)

func newSignalingServer(t *testing.T) (*httptest.Server, *SignalingHub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewSignalingHub(nil, "test-instance", nil)

	router := gin.New()
	router.GET("/ws/signaling", func(c *gin.Context) {
		// test stand-in for the auth middleware
		c.Set("user_id", c.Query("uid"))
		hub.ServeWS(c)
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialSignaling(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/signaling?uid=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendSignal(t *testing.T, conn *websocket.Conn, signal domain.Signal) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(signal))
}

func joinRoomAndWait(t *testing.T, conn *websocket.Conn, roomID, role string) {
	t.Helper()
	sendSignal(t, conn, domain.Signal{Kind: domain.SignalJoinRoom, RoomID: roomID, Role: role})
	// joins are processed by the hub goroutine; give it a beat
	time.Sleep(30 * time.Millisecond)
}

func expectSignal(t *testing.T, conn *websocket.Conn, kind domain.SignalKind) domain.Signal {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var signal domain.Signal
	require.NoError(t, json.Unmarshal(payload, &signal))
	require.Equal(t, kind, signal.Kind)
	return signal
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, payload, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no message, got: %s", payload)
	}
}

func TestOfferReachesPeerNotSender(t *testing.T) {
	srv, _ := newSignalingServer(t)

	patient := dialSignaling(t, srv, "p1")
	doctor := dialSignaling(t, srv, "d1")

	joinRoomAndWait(t, patient, "room_1", "patient")
	joinRoomAndWait(t, doctor, "room_1", "doctor")

	// existing occupant learns about the newcomer
	joined := expectSignal(t, patient, domain.SignalJoinRoom)
	assert.Equal(t, "d1", joined.SenderID)
	assert.Equal(t, "doctor", joined.Role)

	sendSignal(t, patient, domain.Signal{
		Kind: domain.SignalOffer,
		SDP:  json.RawMessage(`{"sdp":"v=0"}`),
	})

	offer := expectSignal(t, doctor, domain.SignalOffer)
	assert.Equal(t, "p1", offer.SenderID)
	assert.Equal(t, "room_1", offer.RoomID)
	assert.JSONEq(t, `{"sdp":"v=0"}`, string(offer.SDP))

	// the sender never hears its own signal back
	expectSilence(t, patient)
}

func TestSenderIdentityComesFromAuth(t *testing.T) {
	srv, _ := newSignalingServer(t)

	patient := dialSignaling(t, srv, "p1")
	doctor := dialSignaling(t, srv, "d1")

	joinRoomAndWait(t, patient, "room_1", "patient")
	joinRoomAndWait(t, doctor, "room_1", "doctor")
	expectSignal(t, patient, domain.SignalJoinRoom)

	// a spoofed sender id in the payload is overwritten
	sendSignal(t, patient, domain.Signal{
		Kind:     domain.SignalOffer,
		SenderID: "someone-else",
		SDP:      json.RawMessage(`{}`),
	})

	offer := expectSignal(t, doctor, domain.SignalOffer)
	assert.Equal(t, "p1", offer.SenderID)
}

func TestRoomIsolation(t *testing.T) {
	srv, _ := newSignalingServer(t)

	p1 := dialSignaling(t, srv, "p1")
	d1 := dialSignaling(t, srv, "d1")
	d2 := dialSignaling(t, srv, "d2")

	joinRoomAndWait(t, p1, "room_1", "patient")
	joinRoomAndWait(t, d1, "room_1", "doctor")
	joinRoomAndWait(t, d2, "room_2", "doctor")
	expectSignal(t, p1, domain.SignalJoinRoom)

	sendSignal(t, p1, domain.Signal{Kind: domain.SignalOffer, SDP: json.RawMessage(`{}`)})

	expectSignal(t, d1, domain.SignalOffer)
	expectSilence(t, d2)
}

func TestRejoinMovesClient(t *testing.T) {
	srv, _ := newSignalingServer(t)

	patient := dialSignaling(t, srv, "p1")
	doctor := dialSignaling(t, srv, "d1")

	joinRoomAndWait(t, patient, "room_1", "patient")
	joinRoomAndWait(t, doctor, "room_1", "doctor")
	expectSignal(t, patient, domain.SignalJoinRoom)

	// second join moves the client; the old room sees a leave
	joinRoomAndWait(t, patient, "room_2", "patient")
	left := expectSignal(t, doctor, domain.SignalLeave)
	assert.Equal(t, "p1", left.SenderID)
	assert.Equal(t, "room_1", left.RoomID)

	sendSignal(t, doctor, domain.Signal{Kind: domain.SignalOffer, SDP: json.RawMessage(`{}`)})
	expectSilence(t, patient)
}

func TestTargetedSignalSkipsOthers(t *testing.T) {
	srv, _ := newSignalingServer(t)

	p1 := dialSignaling(t, srv, "p1")
	d1 := dialSignaling(t, srv, "d1")
	d2 := dialSignaling(t, srv, "d2")

	joinRoomAndWait(t, p1, "room_1", "patient")
	joinRoomAndWait(t, d1, "room_1", "doctor")
	joinRoomAndWait(t, d2, "room_1", "doctor")
	expectSignal(t, p1, domain.SignalJoinRoom)
	expectSignal(t, p1, domain.SignalJoinRoom)
	expectSignal(t, d1, domain.SignalJoinRoom)

	sendSignal(t, p1, domain.Signal{
		Kind:      domain.SignalICE,
		TargetID:  "d1",
		Candidate: json.RawMessage(`{"candidate":"c0"}`),
	})

	candidate := expectSignal(t, d1, domain.SignalICE)
	assert.Equal(t, "p1", candidate.SenderID)
	expectSilence(t, d2)
}

func TestDisconnectBroadcastsLeave(t *testing.T) {
	srv, hub := newSignalingServer(t)

	patient := dialSignaling(t, srv, "p1")
	doctor := dialSignaling(t, srv, "d1")

	joinRoomAndWait(t, patient, "room_1", "patient")
	joinRoomAndWait(t, doctor, "room_1", "doctor")
	expectSignal(t, patient, domain.SignalJoinRoom)

	doctor.Close()

	left := expectSignal(t, patient, domain.SignalLeave)
	assert.Equal(t, "d1", left.SenderID)

	// patient leaving too empties the room and drops its tracking state
	patient.Close()
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.rooms) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestUnknownKindIgnored(t *testing.T) {
	srv, _ := newSignalingServer(t)

	patient := dialSignaling(t, srv, "p1")
	doctor := dialSignaling(t, srv, "d1")

	joinRoomAndWait(t, patient, "room_1", "patient")
	joinRoomAndWait(t, doctor, "room_1", "doctor")
	expectSignal(t, patient, domain.SignalJoinRoom)

	sendSignal(t, patient, domain.Signal{Kind: domain.SignalKind("teleport")})
	expectSilence(t, doctor)

	// the connection survives a bad message
	sendSignal(t, patient, domain.Signal{Kind: domain.SignalOffer, SDP: json.RawMessage(`{}`)})
	expectSignal(t, doctor, domain.SignalOffer)
}
