package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "test",
		Level:       zerolog.Disabled,
	})
}

func TestDecodeHandlerInvokesTypedHandler(t *testing.T) {
	logg := testLogger()

	raw, err := json.Marshal(events.UserBlocked{
		UserID:    9,
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)

	var got *events.UserBlocked
	handler := DecodeHandler("product-service", events.TopicUserBlocked, logg,
		func(ctx context.Context, payload *events.UserBlocked) error {
			got = payload
			return nil
		})

	require.NoError(t, handler(context.Background(), raw))
	require.NotNil(t, got)
	assert.Equal(t, int64(9), got.UserID)
}

func TestDecodeHandlerDropsMalformedPayload(t *testing.T) {
	logg := testLogger()

	called := false
	handler := DecodeHandler("product-service", events.TopicUserBlocked, logg,
		func(ctx context.Context, payload *events.UserBlocked) error {
			called = true
			return nil
		})

	// Decode failures are swallowed so the message is not retried.
	require.NoError(t, handler(context.Background(), []byte(`{"user_id":"oops"}`)))
	assert.False(t, called)
}

func TestDecodeHandlerPropagatesHandlerError(t *testing.T) {
	logg := testLogger()

	raw, err := json.Marshal(events.UserBlocked{UserID: 1, Timestamp: time.Now().UTC()})
	require.NoError(t, err)

	wantErr := errors.New("boom")
	handler := DecodeHandler("product-service", events.TopicUserBlocked, logg,
		func(ctx context.Context, payload *events.UserBlocked) error {
			return wantErr
		})

	assert.ErrorIs(t, handler(context.Background(), raw), wantErr)
}

func TestDispatchSwallowsHandlerError(t *testing.T) {
	logg := testLogger()

	w := &Worker{
		Service: "user-service",
		Topic:   events.TopicUserRegistered,
		Handler: func(ctx context.Context, data []byte) error {
			return errors.New("handler failed")
		},
		logg: logg,
	}

	// Must not panic and must not propagate; the message is already acked.
	w.dispatch(context.Background(), []byte(`{}`))
}

func TestWorkerDefaultRetryDelay(t *testing.T) {
	client := &Client{cfg: config.BusConfig{}}
	w := NewWorker(client, testLogger(), "user-service", events.TopicUserRegistered, nil)
	assert.Equal(t, 5*time.Second, w.delay)
}

func TestWorkerConfiguredRetryDelay(t *testing.T) {
	client := &Client{cfg: config.BusConfig{RetryDelay: 2 * time.Second}}
	w := NewWorker(client, testLogger(), "user-service", events.TopicUserRegistered, nil)
	assert.Equal(t, 2*time.Second, w.delay)
}
