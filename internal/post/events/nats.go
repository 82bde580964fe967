package events

import (
	"context"
	"encoding/json"
	"fmt"

	"blogpost-backend/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const natsQueueGroup = "post-indexer"

// NATS carries index events over a core NATS subject. Delivery is at most
// once: a failed event is logged and dropped.
type NATS struct {
	nc      *nats.Conn
	subject string
	log     *zap.Logger
}

func NewNATS(nc *nats.Conn, subject string) *NATS {
	return &NATS{nc: nc, subject: subject, log: logger.Named("NATSEvents")}
}

func (n *NATS) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := n.nc.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Run consumes in a queue group until ctx is cancelled.
func (n *NATS) Run(ctx context.Context, h Handler) error {
	sub, err := n.nc.QueueSubscribe(n.subject, natsQueueGroup, func(msg *nats.Msg) {
		e, err := Decode(msg.Data)
		if err != nil {
			n.log.Warn("dropping malformed message", zap.Error(err))
			return
		}
		if err := h.Handle(ctx, e); err != nil {
			n.log.Error("handle failed", zap.String("post_id", e.PostID), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", n.subject, err)
	}

	n.log.Info("listening", zap.String("subject", n.subject))
	<-ctx.Done()
	return sub.Drain()
}

// Close flushes buffered publishes. The connection is owned by the caller.
func (n *NATS) Close() error {
	return n.nc.Flush()
}
