// Package projection consumes published domain events and records them in the
// event log.
package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/event"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"go.uber.org/zap"
)

type Projector struct {
	log    store.EventLog
	logger *zap.Logger
}

func NewProjector(log store.EventLog, logger *zap.Logger) *Projector {
	return &Projector{log: log, logger: logger.Named("projector")}
}

// HandleEvent has the kafka.MessageHandler signature. Undecodable messages are
// logged and dropped; only event log failures are returned for retry.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var e event.Envelope
	if err := json.Unmarshal(value, &e); err != nil {
		p.logger.Warn("dropping undecodable message", zap.ByteString("key", key), zap.Error(err))
		return nil
	}
	if e.ID == "" || e.AggregateID == "" {
		p.logger.Warn("dropping event without identity", zap.String("event_type", e.EventType))
		return nil
	}

	if err := validatePayload(e); err != nil {
		p.logger.Warn("dropping event",
			zap.String("event_id", e.ID),
			zap.String("event_type", e.EventType),
			zap.Error(err),
		)
		return nil
	}

	added, err := p.log.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.ID, err)
	}
	if !added {
		p.logger.Debug("duplicate event", zap.String("event_id", e.ID))
		return nil
	}

	p.logger.Info("event recorded",
		zap.String("event_id", e.ID),
		zap.String("aggregate_type", e.AggregateType),
		zap.String("aggregate_id", e.AggregateID),
		zap.String("event_type", e.EventType),
	)
	return nil
}

// Publish records events in-process. It lets the API run without a broker
// while still filling the event log.
func (p *Projector) Publish(ctx context.Context, events ...event.Envelope) error {
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		if err := p.HandleEvent(ctx, []byte(e.Key), value); err != nil {
			return err
		}
	}
	return nil
}

func validatePayload(e event.Envelope) error {
	var payload any
	switch e.AggregateType {
	case order.AggregateType:
		switch e.EventType {
		case order.EventOrderPlaced:
			payload = &order.OrderPlaced{}
		case order.EventOrderConfirmed, order.EventOrderShipped, order.EventOrderDelivered,
			order.EventOrderCompleted, order.EventOrderCancelled:
			payload = &order.StatusChanged{}
		}
	case claim.AggregateType:
		switch e.EventType {
		case claim.EventClaimRequested:
			payload = &claim.ClaimRequested{}
		case claim.EventClaimApproved, claim.EventClaimRejected, claim.EventClaimCompleted:
			payload = &claim.StatusChanged{}
		case claim.EventSettlementRecorded:
			payload = &claim.SettlementRecorded{}
		}
	case member.AggregateType:
		if e.EventType == member.EventMemberWithdrawn {
			payload = &member.MemberWithdrawn{}
		}
	}
	if payload == nil {
		return fmt.Errorf("unknown event %s/%s", e.AggregateType, e.EventType)
	}
	return e.Decode(payload)
}
