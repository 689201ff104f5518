package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/threadline/threadline-backend/pkg/config"
	"github.com/threadline/threadline-backend/pkg/events"
	"github.com/threadline/threadline-backend/pkg/logger"
)

var errProjectIDRequired = errors.New("bus project id is required")

// Client wraps the Pub/Sub v2 client with fanout semantics: one topic
// per event name, one durable per-service subscription bound to it.
// Declares are idempotent so any service can boot first.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.BusConfig
}

func NewClient(ctx context.Context, cfg config.BusConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errProjectIDRequired
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{
		client:    psClient,
		projectID: cfg.ProjectID,
		cfg:       cfg,
	}

	if logg != nil {
		logg.Info(ctx, "bus client initialized")
	}

	return c, nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (c *Client) EnsureTopic(ctx context.Context, topic events.Topic) error {
	fullName := c.topicResourceName(topic.String())

	_, err := c.client.TopicAdminClient.GetTopic(
		ctx,
		&pubsubpb.GetTopicRequest{Topic: fullName},
	)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("checking topic %q: %w", topic, err)
	}

	_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: fullName})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating topic %q: %w", topic, err)
	}
	return nil
}

// EnsureSubscription creates the named durable subscription bound to
// the topic when it does not exist yet. The topic is ensured first.
func (c *Client) EnsureSubscription(ctx context.Context, queue string, topic events.Topic) error {
	if err := c.EnsureTopic(ctx, topic); err != nil {
		return err
	}

	fullName := c.subscriptionResourceName(queue)

	_, err := c.client.SubscriptionAdminClient.GetSubscription(
		ctx,
		&pubsubpb.GetSubscriptionRequest{Subscription: fullName},
	)
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.NotFound {
		return fmt.Errorf("checking subscription %q: %w", queue, err)
	}

	_, err = c.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:  fullName,
		Topic: c.topicResourceName(topic.String()),
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("creating subscription %q: %w", queue, err)
	}
	return nil
}

// Publisher returns a publisher handle for the topic.
func (c *Client) Publisher(topic events.Topic) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Publisher(c.topicResourceName(topic.String()))
}

// Subscriber returns a subscriber handle for the named queue.
func (c *Client) Subscriber(queue string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Subscriber(c.subscriptionResourceName(queue))
}

// QueueName applies the configured prefix to the per-service queue name.
func (c *Client) QueueName(service string, topic events.Topic) string {
	name := events.QueueName(service, topic)
	if prefix := strings.TrimSpace(c.cfg.QueuePrefix); prefix != "" {
		return prefix + "." + name
	}
	return name
}

// Ping verifies Pub/Sub connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("bus client not initialized")
	}
	_, err := c.client.TopicAdminClient.ListTopics(
		ctx,
		&pubsubpb.ListTopicsRequest{Project: "projects/" + c.projectID, PageSize: 1},
	).Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("pinging bus: %w", err)
	}
	return nil
}

// Close releases the Pub/Sub client resources.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) topicResourceName(name string) string {
	return fmt.Sprintf("projects/%s/topics/%s", c.projectID, name)
}

func (c *Client) subscriptionResourceName(name string) string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", c.projectID, name)
}
