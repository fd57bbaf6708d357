// Package relay moves WebRTC session descriptions and ICE candidates between
// peers without interpreting them. Two transports share the room naming
// scheme: the pull Mailbox here and the push websocket hub.
package relay

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"telecare-backend/internal/domain"
	"telecare-backend/pkg/cache"
	"telecare-backend/pkg/constants"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/metrics"
)

// Mailbox is the pull transport: senders deposit signals, receivers poll.
// A direct mailbox holds at most one pending signal per target (a newer
// offer supersedes a stale one), while ICE candidates accumulate under
// unique keys so none are lost.
type Mailbox struct {
	store   *cache.MemoryCache
	seq     atomic.Uint64
	metrics *metrics.Metrics
}

// NewMailbox creates a signal mailbox. metrics may be nil.
func NewMailbox(m *metrics.Metrics) *Mailbox {
	return &Mailbox{
		store:   cache.NewMemoryCache(constants.SignalTTL, 0),
		metrics: m,
	}
}

// StartJanitor begins periodic eviction of expired signals
func (mb *Mailbox) StartJanitor(ctx context.Context) {
	mb.store.StartJanitor(ctx, constants.SweepInterval)
}

// Put deposits a signal for a target, overwriting any undelivered one
func (mb *Mailbox) Put(targetID string, signal *domain.Signal) {
	mb.store.Set(targetID, signal, 0)
	mb.record(signal.Kind)
	logger.Debug("Signal deposited",
		zap.String("target_id", targetID),
		zap.String("kind", string(signal.Kind)))
}

// Take retrieves and removes the pending signal for a target; the second
// return is false when the mailbox is empty
func (mb *Mailbox) Take(targetID string) (*domain.Signal, bool) {
	value, ok := mb.store.Take(targetID)
	if !ok {
		return nil, false
	}
	return value.(*domain.Signal), true
}

// PutOffer stores the room's offer, superseding any prior one
func (mb *Mailbox) PutOffer(roomID string, signal *domain.Signal) {
	mb.store.Set(roomID+"_offer", signal, 0)
	mb.record(domain.SignalOffer)
}

// TakeOffer consumes the room's pending offer
func (mb *Mailbox) TakeOffer(roomID string) (*domain.Signal, bool) {
	value, ok := mb.store.Take(roomID + "_offer")
	if !ok {
		return nil, false
	}
	return value.(*domain.Signal), true
}

// PutAnswer stores the room's answer, superseding any prior one
func (mb *Mailbox) PutAnswer(roomID string, signal *domain.Signal) {
	mb.store.Set(roomID+"_answer", signal, 0)
	mb.record(domain.SignalAnswer)
}

// TakeAnswer consumes the room's pending answer
func (mb *Mailbox) TakeAnswer(roomID string) (*domain.Signal, bool) {
	value, ok := mb.store.Take(roomID + "_answer")
	if !ok {
		return nil, false
	}
	return value.(*domain.Signal), true
}

// PutCandidate appends an ICE candidate to the room. Each candidate gets its
// own key so concurrent deposits never clobber one another; the sequence
// counter disambiguates candidates landing on the same nanosecond.
func (mb *Mailbox) PutCandidate(roomID string, signal *domain.Signal) {
	key := fmt.Sprintf("%s_ice_%d_%06d", roomID, time.Now().UnixNano(), mb.seq.Add(1))
	mb.store.Set(key, signal, 0)
	mb.record(domain.SignalICE)
}

// DrainRoom consumes everything pending for a room: the offer, the answer,
// and all ICE candidates in deposit order. Each signal is returned exactly
// once; a second drain of an untouched room comes back empty.
func (mb *Mailbox) DrainRoom(roomID string) *domain.RoomSignals {
	signals := &domain.RoomSignals{}

	if offer, ok := mb.TakeOffer(roomID); ok {
		signals.Offer = offer
	}
	if answer, ok := mb.TakeAnswer(roomID); ok {
		signals.Answer = answer
	}
	for _, value := range mb.store.TakePrefix(roomID + "_ice_") {
		signals.Candidates = append(signals.Candidates, value.(*domain.Signal))
	}
	return signals
}

// Size reports the number of undelivered signals
func (mb *Mailbox) Size() int {
	return mb.store.Size()
}

func (mb *Mailbox) record(kind domain.SignalKind) {
	if mb.metrics != nil {
		mb.metrics.RecordSignal(string(kind), "mailbox")
	}
}
