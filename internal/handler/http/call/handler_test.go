package call

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-backend/internal/domain"
	callService "telecare-backend/internal/service/call"
	apperrors "telecare-backend/pkg/errors"
)

type memStore struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*domain.Call
}

func (m *memStore) Create(_ context.Context, call *domain.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *call
	m.calls[call.ID] = &copied
	return nil
}

func (m *memStore) GetByID(_ context.Context, callID uuid.UUID) (*domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callID]
	if !ok {
		return nil, apperrors.CallNotFoundError()
	}
	copied := *call
	return &copied, nil
}

func (m *memStore) UpdateStatus(_ context.Context, callID uuid.UUID, status domain.CallStatus, endTime *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[callID]
	if !ok {
		return apperrors.CallNotFoundError()
	}
	call.Status = status
	call.EndTime = endTime
	return nil
}

func (m *memStore) GetUserCalls(_ context.Context, userID string) ([]*domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Call
	for _, call := range m.calls {
		if call.CallerID == userID || call.ReceiverID == userID {
			copied := *call
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) GetIncomingCalls(_ context.Context, userID string) ([]*domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Call
	for _, call := range m.calls {
		if call.ReceiverID == userID && call.Status == domain.CallStatusInitiated {
			copied := *call
			out = append(out, &copied)
		}
	}
	return out, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	store := &memStore{calls: make(map[uuid.UUID]*domain.Call)}
	svc := callService.NewService(store)
	handler := NewHandler(svc)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set("user_id", uid)
		}
	})

	router.POST("/v1/calls/initiate", handler.InitiateCall)
	router.POST("/v1/calls/:id/accept", handler.AcceptCall)
	router.POST("/v1/calls/:id/reject", handler.RejectCall)
	router.POST("/v1/calls/:id/end", handler.EndCall)
	router.GET("/v1/calls/incoming", handler.GetIncomingCalls)
	router.GET("/v1/calls/:id", handler.GetCall)
	router.GET("/v1/calls", handler.GetUserCalls)

	return router
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

type callEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		CallID     string `json:"call_id"`
		CallerID   string `json:"caller_id"`
		ReceiverID string `json:"receiver_id"`
		Status     string `json:"status"`
		SessionID  string `json:"session_id"`
		EndTime    string `json:"end_time"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decodeCall(t *testing.T, w *httptest.ResponseRecorder) callEnvelope {
	t.Helper()
	var resp callEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestInitiateAndAcceptOverHTTP(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/initiate", "p1", gin.H{
		"receiver_id": "d1",
		"call_type":   "video",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	created := decodeCall(t, w)
	require.True(t, created.Success)
	assert.Equal(t, "initiated", created.Data.Status)
	assert.NotEmpty(t, created.Data.SessionID)

	w = doJSON(t, router, http.MethodPost, "/v1/calls/"+created.Data.CallID+"/accept", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	accepted := decodeCall(t, w)
	assert.Equal(t, "accepted", accepted.Data.Status)
	assert.Empty(t, accepted.Data.EndTime)
}

func TestInvalidTransitionConflicts(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/initiate", "p1", gin.H{
		"receiver_id": "d1",
		"call_type":   "audio",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeCall(t, w)

	w = doJSON(t, router, http.MethodPost, "/v1/calls/"+created.Data.CallID+"/reject", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/v1/calls/"+created.Data.CallID+"/accept", "d1", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeCall(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_STATE", resp.Error.Code)
}

func TestUnknownCallIs404(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/"+uuid.NewString()+"/end", "p1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	resp := decodeCall(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CALL_NOT_FOUND", resp.Error.Code)
}

func TestMalformedCallIDRejected(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/not-a-uuid/accept", "d1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInitiateValidatesBody(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/initiate", "p1", gin.H{
		"receiver_id": "d1",
		"call_type":   "hologram",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIncomingCallsListing(t *testing.T) {
	router := newTestRouter()

	w := doJSON(t, router, http.MethodPost, "/v1/calls/initiate", "p1", gin.H{
		"receiver_id": "d1",
		"call_type":   "audio",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/calls/incoming", "d1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Calls []json.RawMessage `json:"calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Calls, 1)

	// nothing ringing for an uninvolved user
	w = doJSON(t, router, http.MethodGet, "/v1/calls/incoming", "d2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var other struct {
		Data struct {
			Calls []json.RawMessage `json:"calls"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &other))
	assert.Empty(t, other.Data.Calls)
}
