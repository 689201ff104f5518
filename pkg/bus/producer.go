package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

// Producer publishes domain events synchronously, one at a time. Each
// publish blocks until the broker acknowledges, so callers know the
// event is on the wire before their HTTP response goes out.
type Producer struct {
	client  *Client
	logg    *logger.Logger
	timeout time.Duration

	mu         sync.Mutex
	publishers map[events.Topic]*pubsub.Publisher
}

func NewProducer(client *Client, logg *logger.Logger) *Producer {
	timeout := client.cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Producer{
		client:     client,
		logg:       logg,
		timeout:    timeout,
		publishers: make(map[events.Topic]*pubsub.Publisher),
	}
}

// PublishEvent marshals the payload and publishes it on the topic,
// blocking until the broker acks or the timeout fires.
func (p *Producer) PublishEvent(ctx context.Context, topic events.Topic, payload any) error {
	if !events.Known(topic) {
		return fmt.Errorf("unknown topic %q", topic)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling %s payload: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	publisher, ok := p.publishers[topic]
	if !ok {
		if err := p.client.EnsureTopic(ctx, topic); err != nil {
			return err
		}
		publisher = p.client.Publisher(topic)
		p.publishers[topic] = publisher
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result := publisher.Publish(publishCtx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"topic":        topic.String(),
			"event_id":     uuid.NewString(),
			"published_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	})

	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing on %s: %w", topic, err)
	}

	if p.logg != nil {
		p.logg.Debug(p.logg.WithTopic(ctx, topic.String()), "event published")
	}
	return nil
}

// Close flushes and stops every cached publisher.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, publisher := range p.publishers {
		publisher.Stop()
	}
	p.publishers = make(map[events.Topic]*pubsub.Publisher)
}
