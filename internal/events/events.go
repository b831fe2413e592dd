package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/mq"
	"github.com/sarpras-lapor/apiserver/types"
)

// Type names a domain event.
type Type string

const (
	LaporanCreated       Type = "laporan.created"
	LaporanUpdated       Type = "laporan.updated"
	LaporanStatusChanged Type = "laporan.status_changed"
	LaporanDeleted       Type = "laporan.deleted"
	SarprasCreated       Type = "sarpras.created"
	SarprasArchived      Type = "sarpras.archived"
)

// TypeAttr is the message attribute carrying the event type.
const TypeAttr = "type"

// Event is published after a write commits.
type Event struct {
	Type       Type         `json:"type"`
	LaporanID  int          `json:"laporan_id,omitempty"`
	SarprasID  int          `json:"sarpras_id,omitempty"`
	UserID     int          `json:"user_id,omitempty"`
	ActorID    int          `json:"actor_id"`
	Status     types.Status `json:"status,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Publisher encodes events onto an MQ channel. A nil *Publisher or one
// built without a broker drops events.
type Publisher struct {
	mq      *mq.MQ
	channel string
	now     func() time.Time
}

func NewPublisher(broker *mq.MQ, channel string) *Publisher {
	return &Publisher{mq: broker, channel: channel, now: time.Now}
}

// Enabled reports whether events are delivered anywhere.
func (p *Publisher) Enabled() bool {
	return p != nil && p.mq != nil
}

// Publish sends event, stamping OccurredAt when unset.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if !p.Enabled() {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		TypeAttr:           string(event.Type),
		mq.ContentTypeAttr: "application/json",
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Decode parses an event delivered by a subscriber.
func Decode(msg mq.Message) (Event, error) {
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return Event{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = Type(msg.Attributes[TypeAttr])
	}
	return event, nil
}
