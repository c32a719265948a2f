// Package pubsub wraps the Google Cloud Pub/Sub v2 client used to relay
// outbox events.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/stockhold/pkg/config"
	"github.com/angelmondragon/stockhold/pkg/logger"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("pubsub topic name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// topicGetter is the slice of the topic admin API used to verify topics.
type topicGetter interface {
	GetTopic(ctx context.Context, req *pubsubpb.GetTopicRequest, opts ...gax.CallOption) (*pubsubpb.Topic, error)
}

type Client struct {
	client  *pubsub.Client
	admin   topicGetter
	project string
	topics  []string
}

// NewClient connects to Pub/Sub and fails unless every configured topic
// already exists. Topics are provisioned outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	topics := TopicNames(cfg)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	ps, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, admin: ps.TopicAdminClient, project: project, topics: topics}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": project,
			"topics":  strings.Join(topics, ","),
		}), "pubsub client initialized")
	}
	return c, nil
}

// TopicNames returns the configured topics, trimmed and without duplicates.
func TopicNames(cfg config.PubSubConfig) []string {
	var names []string
	for _, raw := range []string{cfg.ReservationsTopic, cfg.InventoryTopic} {
		name := strings.TrimSpace(raw)
		if name == "" || contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Ping checks that every configured topic can be read.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotInitialized
	}
	for _, name := range c.topics {
		_, err := c.admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: c.resource(name)})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %q does not exist", name)
		case err != nil:
			return fmt.Errorf("checking topic %q: %w", name, err)
		}
	}
	return nil
}

// Publisher returns a handle for topic, which may be a bare ID or a full
// resource name. It returns nil for an empty name or an unconnected client.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil || strings.TrimSpace(topic) == "" {
		return nil
	}
	return c.client.Publisher(c.resource(topic))
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) resource(topic string) string {
	topic = strings.TrimSpace(topic)
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return "projects/" + c.project + "/topics/" + topic
}
