package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	attrKind      = "kind"
	kindRecompute = "rating.recompute"
)

// ErrMalformedRequest marks a recompute message that can never be processed.
var ErrMalformedRequest = errors.New("malformed recompute request")

// RecomputeRequest asks a worker to re-derive a seller's rating aggregate
// from their stored reviews.
type RecomputeRequest struct {
	SellerID    uuid.UUID `json:"seller_id"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func encodeRecompute(req RecomputeRequest) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRecompute(data []byte) (RecomputeRequest, error) {
	var req RecomputeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return RecomputeRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req.SellerID == uuid.Nil {
		return RecomputeRequest{}, fmt.Errorf("%w: missing seller id", ErrMalformedRequest)
	}
	return req, nil
}

// RecomputePublisher queues recompute requests on a channel.
type RecomputePublisher struct {
	mq      *MQ
	channel string
	now     func() time.Time
}

func NewRecomputePublisher(m *MQ, channel string) *RecomputePublisher {
	return &RecomputePublisher{mq: m, channel: channel, now: time.Now}
}

// RequestRecompute publishes a recompute request for sellerID.
func (p *RecomputePublisher) RequestRecompute(ctx context.Context, sellerID uuid.UUID, reason string) error {
	data, err := encodeRecompute(RecomputeRequest{
		SellerID:    sellerID,
		Reason:      reason,
		RequestedAt: p.now().UTC(),
	})
	if err != nil {
		return err
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, map[string]string{attrKind: kindRecompute}); err != nil {
		return fmt.Errorf("publish recompute for %s: %w", sellerID, err)
	}
	return nil
}

// SubscribeRecompute decodes recompute requests from channel and passes them
// to fn. Messages that fail to decode are handed to onMalformed and
// acknowledged so they are not redelivered.
func SubscribeRecompute(
	ctx context.Context,
	m *MQ,
	channel string,
	fn func(ctx context.Context, req RecomputeRequest) error,
	onMalformed func(msg Message, err error),
) error {
	return m.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		req, err := decodeRecompute(msg.Data)
		if err != nil {
			if onMalformed != nil {
				onMalformed(msg, err)
			}
			return nil
		}
		return fn(ctx, req)
	})
}
