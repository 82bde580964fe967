package api

import (
	"context"
	"fmt"

	"blogpost-backend/internal/auth/rpc"
	"blogpost-backend/internal/post/events"
	"blogpost-backend/pkg/config"
	"blogpost-backend/pkg/logger"
	"blogpost-backend/pkg/natsconn"

	"go.uber.org/zap"
)

const localQueueCapacity = 500

// EventBus is the index event transport selected by EVENTS_DRIVER.
type EventBus struct {
	Publisher  events.Publisher
	Subscriber events.Subscriber
	NATS       *natsconn.Conn

	// inProcess is set when no external process can consume the events:
	// the local queue and an embedded NATS server.
	inProcess bool
	responder *rpc.Responder
}

// NewEventBus builds the transport. For the local driver handler is attached
// to the worker pool straight away.
func NewEventBus(ctx context.Context, cfg *config.Config, handler events.Handler) (*EventBus, error) {
	switch cfg.EventsDriver {
	case config.EventsDriverPubSub:
		ps, err := events.NewPubSub(ctx, cfg.GoogleProjectID, cfg.GooglePubSubTopic, cfg.GoogleCredentials)
		if err != nil {
			return nil, err
		}
		return &EventBus{Publisher: ps, Subscriber: ps}, nil

	case config.EventsDriverNATS:
		conn, err := natsconn.Connect(cfg.NATSURL, cfg.ServiceName)
		if err != nil {
			return nil, err
		}
		bus := events.NewNATS(conn.Conn, cfg.NATSIndexSubject)
		return &EventBus{
			Publisher:  bus,
			Subscriber: bus,
			NATS:       conn,
			inProcess:  cfg.NATSURL == natsconn.Embedded,
		}, nil

	case config.EventsDriverLocal, "":
		q := events.NewLocalQueue(handler, cfg.IndexWorkers, localQueueCapacity)
		q.Start()
		return &EventBus{Publisher: q}, nil

	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.EventsDriver)
	}
}

// StartConsumer runs the subscriber inside this process when nothing else
// could reach it.
func (b *EventBus) StartConsumer(ctx context.Context, handler events.Handler) {
	if !b.inProcess || b.Subscriber == nil {
		return
	}
	go func() {
		if err := b.Subscriber.Run(ctx, handler); err != nil {
			logger.Error("index consumer stopped", zap.Error(err))
		}
	}()
}

// StartTokenResponder answers token requests when a NATS connection exists.
func (b *EventBus) StartTokenResponder(ctx context.Context, cfg *config.Config, validator rpc.Introspector) error {
	if b.NATS == nil {
		return nil
	}
	b.responder = rpc.NewResponder(b.NATS.Conn, cfg.NATSTokenSubject, validator)
	return b.responder.Start(ctx)
}

func (b *EventBus) Close() {
	if b.responder != nil {
		b.responder.Stop()
	}
	if b.Publisher != nil {
		if err := b.Publisher.Close(); err != nil {
			logger.Warn("closing event publisher", zap.Error(err))
		}
	}
	if b.NATS != nil {
		b.NATS.Close()
	}
}
