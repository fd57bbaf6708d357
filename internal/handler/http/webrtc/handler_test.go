package webrtc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-backend/internal/relay"
)

func newTestRouter() (*gin.Engine, *relay.Mailbox) {
	gin.SetMode(gin.TestMode)
	mailbox := relay.NewMailbox(nil)
	handler := NewHandler(mailbox)

	router := gin.New()
	// test stand-in for the auth middleware
	router.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
	})

	router.POST("/v1/webrtc/signal", handler.PutSignal)
	router.GET("/v1/webrtc/signal", handler.TakeSignal)
	router.POST("/v1/webrtc/rooms/:roomID/join", handler.JoinRoom)
	router.POST("/v1/webrtc/rooms/:roomID/offer", handler.PutOffer)
	router.POST("/v1/webrtc/rooms/:roomID/answer", handler.PutAnswer)
	router.POST("/v1/webrtc/rooms/:roomID/ice-candidate", handler.PutCandidate)
	router.GET("/v1/webrtc/rooms/:roomID/signals", handler.DrainRoom)

	return router, mailbox
}

func doJSON(t *testing.T, router *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPutAndTakeSignal(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/webrtc/signal", "p1", gin.H{
		"type":      "offer",
		"target_id": "d1",
		"sdp":       gin.H{"sdp": "v=0"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/webrtc/signal", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Signal *struct {
				Type     string `json:"type"`
				SenderID string `json:"sender_id"`
			} `json:"signal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Data.Signal)
	assert.Equal(t, "offer", resp.Data.Signal.Type)
	assert.Equal(t, "p1", resp.Data.Signal.SenderID)

	// consumed on read
	w = doJSON(t, router, http.MethodGet, "/v1/webrtc/signal", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Data.Signal)
}

func TestPutSignalValidation(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/webrtc/signal", "p1", gin.H{
		"type":      "teleport",
		"target_id": "d1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/webrtc/signal", "p1", gin.H{
		"type": "offer",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnauthenticatedRejected(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodGet, "/v1/webrtc/signal", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoomDepositAndDrain(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/offer", "p1", gin.H{
		"sdp": gin.H{"sdp": "offer-sdp"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/answer", "d1", gin.H{
		"sdp": gin.H{"sdp": "answer-sdp"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	for i := 0; i < 3; i++ {
		w = doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/ice-candidate", "p1", gin.H{
			"candidate": gin.H{"n": i},
		})
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	w = doJSON(t, router, http.MethodGet, "/v1/webrtc/rooms/room_1/signals", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Offer *struct {
				SenderID string `json:"sender_id"`
			} `json:"offer"`
			Answer *struct {
				SenderID string `json:"sender_id"`
			} `json:"answer"`
			Candidates []json.RawMessage `json:"candidates"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.Offer)
	assert.Equal(t, "p1", resp.Data.Offer.SenderID)
	require.NotNil(t, resp.Data.Answer)
	assert.Equal(t, "d1", resp.Data.Answer.SenderID)
	assert.Len(t, resp.Data.Candidates, 3)

	// a second drain is empty
	w = doJSON(t, router, http.MethodGet, "/v1/webrtc/rooms/room_1/signals", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var second struct {
		Data struct {
			Offer      json.RawMessage   `json:"offer"`
			Answer     json.RawMessage   `json:"answer"`
			Candidates []json.RawMessage `json:"candidates"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Empty(t, second.Data.Offer)
	assert.Empty(t, second.Data.Answer)
	assert.Empty(t, second.Data.Candidates)
}

func TestJoinRoomAcknowledges(t *testing.T) {
	router, mailbox := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/join", "p1", gin.H{
		"role": "patient",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			RoomID string `json:"room_id"`
			UserID string `json:"user_id"`
			Joined bool   `json:"joined"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "room_1", resp.Data.RoomID)
	assert.Equal(t, "p1", resp.Data.UserID)
	assert.True(t, resp.Data.Joined)

	// joining records nothing in the mailbox
	assert.Zero(t, mailbox.Size())
}

func TestRoomDepositRequiresPayload(t *testing.T) {
	router, _ := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/offer", "p1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/webrtc/rooms/room_1/ice-candidate", "p1", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
