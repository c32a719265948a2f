package relay

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// Publisher sends messages to one topic. After a failed ordered publish the
// ordering key stays paused until Resume is called for it.
type Publisher interface {
	Publish(context.Context, *gcppubsub.Message) Result
	Resume(orderingKey string)
	Stop()
}

type Result interface {
	Get(context.Context) (serverID string, err error)
}

// Source builds the publisher for a topic. A nil return marks the topic as
// unpublishable.
type Source func(topic string, ordered bool) Publisher

type topicHandles interface {
	Publisher(topic string) *gcppubsub.Publisher
}

// GCPSource adapts a Pub/Sub client into a Source.
func GCPSource(client topicHandles) Source {
	return func(topic string, ordered bool) Publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = ordered
		return gcpPublisher{p}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) Result {
	return p.Publisher.Publish(ctx, msg)
}

func (p gcpPublisher) Resume(orderingKey string) { p.ResumePublish(orderingKey) }

// publisherCache builds each topic's publisher once and stops them all on close.
type publisherCache struct {
	source  Source
	ordered bool

	mu     sync.Mutex
	topics map[string]Publisher
}

func newPublisherCache(source Source, ordered bool) *publisherCache {
	return &publisherCache{source: source, ordered: ordered, topics: map[string]Publisher{}}
}

func (c *publisherCache) get(topic string) Publisher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.topics[topic]; ok {
		return p
	}
	p := c.source(topic, c.ordered)
	if p != nil {
		c.topics[topic] = p
	}
	return p
}

func (c *publisherCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, p := range c.topics {
		p.Stop()
		delete(c.topics, topic)
	}
}
