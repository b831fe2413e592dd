package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/sarpras-lapor/apiserver/config"
	"google.golang.org/api/option"
)

const defaultContentType = "application/octet-stream"

// PubSubClient wraps the Google Cloud Pub/Sub SDK client. Topic handles
// are cached per channel and flushed on Close.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends a message to the named topic and returns the server
// assigned message id.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	return topic.Publish(ctx, outgoingMessage(data, attrs)).Get(ctx)
}

// Subscribe consumes messages from the channel's subscription until ctx is
// done. A handler error nacks the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}
	sub, err := p.ensureSubscription(ctx, subscriptionName(channel, p.subscriptionSuffix), topic)
	if err != nil {
		return err
	}

	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, incomingMessage(msg)); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for name, topic := range p.topics {
		topic.Stop()
		delete(p.topics, name)
	}
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	p.topics[name] = topic
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{Topic: topic})
	}
	return sub, nil
}

// outgoingMessage copies attrs onto a Pub/Sub message. Pub/Sub has no
// content type field, so ContentTypeAttr always travels as an attribute,
// defaulting like the AMQP backend does.
func outgoingMessage(data []byte, attrs map[string]string) *pubsub.Message {
	out := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		if key == "" {
			continue
		}
		out[key] = value
	}
	if out[ContentTypeAttr] == "" {
		out[ContentTypeAttr] = defaultContentType
	}
	return &pubsub.Message{Data: data, Attributes: out}
}

func incomingMessage(msg *pubsub.Message) Message {
	attrs := make(map[string]string, len(msg.Attributes)+1)
	for key, value := range msg.Attributes {
		attrs[key] = value
	}
	if attrs[ContentTypeAttr] == "" {
		attrs[ContentTypeAttr] = defaultContentType
	}
	return Message{ID: msg.ID, Data: msg.Data, Attributes: attrs}
}

func subscriptionName(channel, suffix string) string {
	if suffix == "" {
		suffix = "-sub"
	}
	return channel + suffix
}
