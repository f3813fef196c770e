// Package event carries domain events from command handlers to the broker.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope represents a published domain event. Key groups every event of one
// order onto the same partition.
type Envelope struct {
	ID            string          `json:"id"`
	Key           string          `json:"key"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Data          json.RawMessage `json:"data"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
}

// New marshals data into an envelope.
func New(key, aggregateID, aggregateType, eventType string, data any, version int, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return Envelope{
		ID:            uuid.New().String(),
		Key:           key,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Data:          raw,
		Timestamp:     now,
		Version:       version,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Publisher delivers committed events.
type Publisher interface {
	Publish(ctx context.Context, events ...Envelope) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ...Envelope) error { return nil }

// Batch collects envelopes during a transaction for publication after commit.
type Batch struct {
	events []Envelope
	err    error
}

// Add appends an event; the first marshal error sticks and is reported by Err.
func (b *Batch) Add(key, aggregateID, aggregateType, eventType string, data any, version int, now time.Time) {
	if b.err != nil {
		return
	}
	env, err := New(key, aggregateID, aggregateType, eventType, data, version, now)
	if err != nil {
		b.err = err
		return
	}
	b.events = append(b.events, env)
}

func (b *Batch) Events() []Envelope { return b.events }

func (b *Batch) Err() error { return b.err }

func (b *Batch) Reset() {
	b.events = nil
	b.err = nil
}
