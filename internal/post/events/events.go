package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	TypeIndexed Type = "post.indexed"
	TypeRemoved Type = "post.removed"
)

// Event tells the indexer that a post changed.
type Event struct {
	Type       Type      `json:"type"`
	PostID     string    `json:"post_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func Indexed(postID string) Event {
	return Event{Type: TypeIndexed, PostID: postID, OccurredAt: time.Now().UTC()}
}

func Removed(postID string) Event {
	return Event{Type: TypeRemoved, PostID: postID, OccurredAt: time.Now().UTC()}
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if e.Type != TypeIndexed && e.Type != TypeRemoved {
		return Event{}, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.PostID == "" {
		return Event{}, fmt.Errorf("event without post_id")
	}
	return e, nil
}

// Publisher hands events to a transport.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Handler consumes one event.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

type HandlerFunc func(ctx context.Context, e Event) error

func (f HandlerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Subscriber runs a consume loop until ctx is done.
type Subscriber interface {
	Run(ctx context.Context, h Handler) error
}
