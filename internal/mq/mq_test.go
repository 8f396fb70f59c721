package mq

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rentshare/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWithoutBackend(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	assert.Nil(t, m)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.ErrorContains(t, err, "unknown mq backend")

	_, err = Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "rabbitmq url is required")
}

func TestRecomputeRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	m := New(backend)
	t.Cleanup(func() { _ = m.Close() })

	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	pub := NewRecomputePublisher(m, "ratings.recompute")
	pub.now = func() time.Time { return fixed }

	seller := uuid.New()
	require.NoError(t, pub.RequestRecompute(context.Background(), seller, "aggregate write failed"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan RecomputeRequest, 1)
	err := SubscribeRecompute(ctx, m, "ratings.recompute", func(_ context.Context, req RecomputeRequest) error {
		got <- req
		cancel()
		return nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)

	req := <-got
	assert.Equal(t, seller, req.SellerID)
	assert.Equal(t, "aggregate write failed", req.Reason)
	assert.Equal(t, fixed, req.RequestedAt)
}

func TestSubscribeRecomputeDropsMalformed(t *testing.T) {
	m := New(NewMemoryBackend())
	t.Cleanup(func() { _ = m.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := m.Publish(ctx, "c", []byte("not json"), nil)
	require.NoError(t, err)
	_, err = m.Publish(ctx, "c", []byte(`{"reason":"no seller"}`), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var malformed []error
	_ = SubscribeRecompute(ctx, m, "c", func(context.Context, RecomputeRequest) error {
		t.Error("handler must not see malformed requests")
		return nil
	}, func(_ Message, err error) {
		mu.Lock()
		defer mu.Unlock()
		malformed = append(malformed, err)
		if len(malformed) == 2 {
			cancel()
		}
	})

	require.Len(t, malformed, 2)
	for _, err := range malformed {
		assert.ErrorIs(t, err, ErrMalformedRequest)
	}
}

func TestMemoryBackendRedeliversOnError(t *testing.T) {
	m := New(NewMemoryBackend())
	t.Cleanup(func() { _ = m.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := m.Publish(ctx, "c", []byte("payload"), map[string]string{"k": "v"})
	require.NoError(t, err)

	var attempts atomic.Int32
	_ = m.Subscribe(ctx, "c", func(_ context.Context, msg Message) error {
		assert.Equal(t, "v", msg.Attributes["k"])
		if attempts.Add(1) < 3 {
			return errors.New("try again")
		}
		cancel()
		return nil
	})
	assert.Equal(t, int32(3), attempts.Load())
}

func TestMemoryBackendClosed(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	_, err := backend.Publish(context.Background(), "c", nil, nil)
	assert.Error(t, err)
}
