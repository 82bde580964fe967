package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blogpost-backend/pkg/logger"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// PubSub publishes and consumes index events on a Google Cloud Pub/Sub topic.
type PubSub struct {
	client    *pubsub.Client
	topic     *pubsub.Topic
	topicName string
	subName   string
	log       *zap.Logger
}

func NewPubSub(ctx context.Context, projectID, topicName, credentialsFile string) (*PubSub, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	return &PubSub{
		client:    client,
		topic:     client.Topic(topicName),
		topicName: topicName,
		subName:   topicName + "-sub",
		log:       logger.Named("PubSub"),
	}, nil
}

// Publish waits for the server ack so that failures reach the caller's log.
func (p *PubSub) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": string(e.Type)},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Run receives until ctx is cancelled. Failed events are nacked for redelivery;
// undecodable messages are acked and dropped.
func (p *PubSub) Run(ctx context.Context, h Handler) error {
	sub, err := p.subscription(ctx)
	if err != nil {
		return err
	}

	p.log.Info("listening", zap.String("subscription", p.subName))
	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		e, err := Decode(msg.Data)
		if err != nil {
			p.log.Warn("dropping malformed message", zap.String("id", msg.ID), zap.Error(err))
			msg.Ack()
			return
		}
		if err := h.Handle(ctx, e); err != nil {
			p.log.Error("handle failed, nacking", zap.String("post_id", e.PostID), zap.Error(err))
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (p *PubSub) subscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(p.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check subscription %s: %w", p.subName, err)
	}
	if exists {
		return sub, nil
	}

	topicExists, err := p.topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", p.topicName, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", p.topicName)
	}

	sub, err = p.client.CreateSubscription(ctx, p.subName, pubsub.SubscriptionConfig{
		Topic:       p.topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create subscription %s: %w", p.subName, err)
	}
	p.log.Info("created subscription", zap.String("subscription", p.subName))
	return sub, nil
}

func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
