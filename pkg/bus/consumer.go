package bus

import (
	"context"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
	"github.com/threadline/threadline-backend/pkg/metrics"
)

// Handler processes one raw message body. A returned error is logged
// and counted; the message is never redelivered.
type Handler func(ctx context.Context, data []byte) error

// Worker binds one durable queue to one topic and runs a receive loop
// for it. The loop survives broker outages: on any receive failure it
// waits a fixed delay and rebuilds the binding from scratch.
type Worker struct {
	Service string
	Topic   events.Topic
	Handler Handler

	client *Client
	logg   *logger.Logger
	delay  time.Duration
}

func NewWorker(client *Client, logg *logger.Logger, service string, topic events.Topic, handler Handler) *Worker {
	delay := client.cfg.RetryDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	return &Worker{
		Service: service,
		Topic:   topic,
		Handler: handler,
		client:  client,
		logg:    logg,
		delay:   delay,
	}
}

// Run blocks until ctx is cancelled. Each iteration declares the topic
// and queue, then receives until the stream breaks.
func (w *Worker) Run(ctx context.Context) {
	queue := w.client.QueueName(w.Service, w.Topic)
	logCtx := w.logg.WithFields(ctx, map[string]any{
		"topic": w.Topic.String(),
		"queue": queue,
	})

	for {
		if err := w.runOnce(ctx, queue, logCtx); err != nil {
			w.logg.Warn(logCtx, "consumer loop interrupted: "+err.Error())
		}

		select {
		case <-ctx.Done():
			w.logg.Info(logCtx, "consumer stopped")
			return
		case <-time.After(w.delay):
			metrics.ConsumerReconnects.WithLabelValues(w.Service, w.Topic.String()).Inc()
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, queue string, logCtx context.Context) error {
	if err := w.client.EnsureSubscription(ctx, queue, w.Topic); err != nil {
		return err
	}

	w.logg.Info(logCtx, "consumer bound")

	sub := w.client.Subscriber(queue)
	return sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		// Ack immediately. Delivery is at-most-once by choice; a
		// failed handler drops the message rather than looping it.
		msg.Ack()
		w.dispatch(msgCtx, msg.Data)
	})
}

func (w *Worker) dispatch(ctx context.Context, data []byte) {
	logCtx := w.logg.WithTopic(ctx, w.Topic.String())

	if err := w.Handler(ctx, data); err != nil {
		metrics.ConsumerDropped.WithLabelValues(w.Service, w.Topic.String()).Inc()
		w.logg.Error(logCtx, "handler failed, message dropped", err)
		return
	}
	metrics.ConsumerProcessed.WithLabelValues(w.Service, w.Topic.String()).Inc()
}

// DecodeHandler wraps a typed handler with registry decoding. Payloads
// that fail to decode are counted and dropped before the handler runs.
func DecodeHandler[T any](service string, topic events.Topic, logg *logger.Logger, fn func(ctx context.Context, payload *T) error) Handler {
	return func(ctx context.Context, data []byte) error {
		decoded, err := events.Decode(topic, data)
		if err != nil {
			metrics.ConsumerDecodeFailed.WithLabelValues(service, topic.String()).Inc()
			logg.Error(logg.WithTopic(ctx, topic.String()), "payload decode failed", err)
			return nil
		}
		payload, ok := decoded.(*T)
		if !ok {
			metrics.ConsumerDecodeFailed.WithLabelValues(service, topic.String()).Inc()
			return nil
		}
		return fn(ctx, payload)
	}
}
