package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-backend/internal/domain"
)

func sdpSignal(kind domain.SignalKind, sender, payload string) *domain.Signal {
	return &domain.Signal{
		Kind:     kind,
		SenderID: sender,
		SDP:      json.RawMessage(fmt.Sprintf(`{"sdp":%q}`, payload)),
	}
}

func TestPutOverwritesPending(t *testing.T) {
	mb := NewMailbox(nil)

	mb.Put("d1", sdpSignal(domain.SignalOffer, "p1", "first"))
	mb.Put("d1", sdpSignal(domain.SignalOffer, "p1", "second"))

	got, ok := mb.Take("d1")
	require.True(t, ok)
	assert.JSONEq(t, `{"sdp":"second"}`, string(got.SDP))

	_, ok = mb.Take("d1")
	assert.False(t, ok, "take must consume the signal")
}

func TestTakeEmptyMailbox(t *testing.T) {
	mb := NewMailbox(nil)

	_, ok := mb.Take("nobody")
	assert.False(t, ok)
}

func TestRoomOfferAnswerSupersede(t *testing.T) {
	mb := NewMailbox(nil)

	mb.PutOffer("room_1", sdpSignal(domain.SignalOffer, "p1", "stale"))
	mb.PutOffer("room_1", sdpSignal(domain.SignalOffer, "p1", "fresh"))
	mb.PutAnswer("room_1", sdpSignal(domain.SignalAnswer, "d1", "reply"))

	offer, ok := mb.TakeOffer("room_1")
	require.True(t, ok)
	assert.JSONEq(t, `{"sdp":"fresh"}`, string(offer.SDP))

	answer, ok := mb.TakeAnswer("room_1")
	require.True(t, ok)
	assert.Equal(t, "d1", answer.SenderID)

	_, ok = mb.TakeOffer("room_1")
	assert.False(t, ok)
}

func TestCandidatesAccumulate(t *testing.T) {
	mb := NewMailbox(nil)

	for i := 0; i < 5; i++ {
		mb.PutCandidate("room_1", &domain.Signal{
			Kind:      domain.SignalICE,
			SenderID:  "p1",
			Candidate: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
		})
	}

	signals := mb.DrainRoom("room_1")
	require.Len(t, signals.Candidates, 5, "no candidate may be lost")
	for i, c := range signals.Candidates {
		assert.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(c.Candidate), "deposit order preserved")
	}
}

func TestDrainRoomExactlyOnce(t *testing.T) {
	mb := NewMailbox(nil)

	mb.PutOffer("room_1", sdpSignal(domain.SignalOffer, "p1", "o"))
	mb.PutAnswer("room_1", sdpSignal(domain.SignalAnswer, "d1", "a"))
	mb.PutCandidate("room_1", &domain.Signal{Kind: domain.SignalICE, SenderID: "p1"})

	first := mb.DrainRoom("room_1")
	require.NotNil(t, first.Offer)
	require.NotNil(t, first.Answer)
	require.Len(t, first.Candidates, 1)

	second := mb.DrainRoom("room_1")
	assert.Nil(t, second.Offer)
	assert.Nil(t, second.Answer)
	assert.Empty(t, second.Candidates)
}

func TestRoomIsolation(t *testing.T) {
	mb := NewMailbox(nil)

	mb.PutOffer("room_1", sdpSignal(domain.SignalOffer, "p1", "one"))
	mb.PutOffer("room_2", sdpSignal(domain.SignalOffer, "p2", "two"))
	mb.PutCandidate("room_1", &domain.Signal{Kind: domain.SignalICE, SenderID: "p1"})

	signals := mb.DrainRoom("room_2")
	require.NotNil(t, signals.Offer)
	assert.Equal(t, "p2", signals.Offer.SenderID)
	assert.Empty(t, signals.Candidates)

	// room_1 untouched
	remaining := mb.DrainRoom("room_1")
	require.NotNil(t, remaining.Offer)
	require.Len(t, remaining.Candidates, 1)
}

func TestConcurrentCandidateDeposits(t *testing.T) {
	mb := NewMailbox(nil)

	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mb.PutCandidate("room_1", &domain.Signal{
				Kind:      domain.SignalICE,
				Candidate: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)),
			})
		}(i)
	}
	wg.Wait()

	signals := mb.DrainRoom("room_1")
	assert.Len(t, signals.Candidates, n, "concurrent deposits must not clobber each other")
}
