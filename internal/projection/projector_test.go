package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/event"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestProjector() (*Projector, *store.MemoryEventLog) {
	log := store.NewMemoryEventLog()
	return NewProjector(log, zap.NewNop()), log
}

func makeEvent(t *testing.T, aggregateID, aggregateType, eventType string, data any) (event.Envelope, []byte) {
	t.Helper()
	e, err := event.New(aggregateID, aggregateID, aggregateType, eventType, data, 1, testNow)
	require.NoError(t, err)
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	return e, raw
}

type failingLog struct{ store.EventLog }

func (failingLog) Append(context.Context, event.Envelope) (bool, error) {
	return false, errors.New("db down")
}

// ============================================
// Projector Tests
// ============================================

func TestProjector_RecordsOrderEvents(t *testing.T) {
	p, log := newTestProjector()
	ctx := context.Background()

	_, placed := makeEvent(t, "order-1", order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "order-1", OrderNumber: "ORD-20260601-AAAAAAAA", GrandTotal: 10000, PlacedAt: testNow,
	})
	_, confirmed := makeEvent(t, "order-1", order.AggregateType, order.EventOrderConfirmed, order.StatusChanged{
		OrderID: "order-1", From: order.StatusOrdered, To: order.StatusConfirmed, ChangedAt: testNow,
	})

	require.NoError(t, p.HandleEvent(ctx, []byte("order-1"), placed))
	require.NoError(t, p.HandleEvent(ctx, []byte("order-1"), confirmed))

	events, err := log.ListByAggregate(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, order.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, order.EventOrderConfirmed, events[1].EventType)
}

func TestProjector_RecordsClaimEvents(t *testing.T) {
	p, log := newTestProjector()
	ctx := context.Background()

	_, requested := makeEvent(t, "claim-1", claim.AggregateType, claim.EventClaimRequested, claim.ClaimRequested{
		ClaimID: "claim-1", OrderID: "order-1", Type: claim.TypeReturn, Quantity: 1, RefundAmount: 2000,
	})
	_, recorded := makeEvent(t, "claim-1", claim.AggregateType, claim.EventSettlementRecorded, claim.SettlementRecorded{
		SettlementID: "s-1", ClaimID: "claim-1", RefundAmount: 2000, PlatformRatio: "0.3", PlatformCost: 600, SellerCost: 1400,
	})

	require.NoError(t, p.HandleEvent(ctx, nil, requested))
	require.NoError(t, p.HandleEvent(ctx, nil, recorded))
	assert.Equal(t, 2, log.Len())
}

func TestProjector_DuplicateDeliveryIsIgnored(t *testing.T) {
	p, log := newTestProjector()
	ctx := context.Background()

	_, raw := makeEvent(t, "order-1", order.AggregateType, order.EventOrderShipped, order.StatusChanged{OrderID: "order-1"})

	require.NoError(t, p.HandleEvent(ctx, nil, raw))
	require.NoError(t, p.HandleEvent(ctx, nil, raw))
	assert.Equal(t, 1, log.Len())
}

func TestProjector_DropsInvalidMessages(t *testing.T) {
	tests := []struct {
		name  string
		value func(t *testing.T) []byte
	}{
		{
			name:  "not json",
			value: func(*testing.T) []byte { return []byte("{not json") },
		},
		{
			name: "unknown event type",
			value: func(t *testing.T) []byte {
				_, raw := makeEvent(t, "x", "Cart", "CartCleared", struct{}{})
				return raw
			},
		},
		{
			name: "missing identity",
			value: func(t *testing.T) []byte {
				raw, err := json.Marshal(event.Envelope{EventType: order.EventOrderPlaced})
				require.NoError(t, err)
				return raw
			},
		},
		{
			name: "payload of wrong shape",
			value: func(t *testing.T) []byte {
				_, raw := makeEvent(t, "order-1", order.AggregateType, order.EventOrderPlaced, []int{1, 2})
				return raw
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, log := newTestProjector()
			err := p.HandleEvent(context.Background(), nil, tt.value(t))
			assert.NoError(t, err)
			assert.Equal(t, 0, log.Len())
		})
	}
}

func TestProjector_AppendFailureIsReturned(t *testing.T) {
	p := NewProjector(failingLog{}, zap.NewNop())
	_, raw := makeEvent(t, "order-1", order.AggregateType, order.EventOrderCancelled, order.StatusChanged{OrderID: "order-1"})

	err := p.HandleEvent(context.Background(), nil, raw)
	assert.ErrorContains(t, err, "db down")
}

func TestProjector_PublishRecordsInProcess(t *testing.T) {
	p, log := newTestProjector()
	ctx := context.Background()

	placed, _ := makeEvent(t, "order-9", order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID: "order-9", GrandTotal: 5000, PlacedAt: testNow,
	})
	shipped, _ := makeEvent(t, "order-9", order.AggregateType, order.EventOrderShipped, order.StatusChanged{
		OrderID: "order-9", From: order.StatusConfirmed, To: order.StatusShipped, ChangedAt: testNow,
	})

	require.NoError(t, p.Publish(ctx, placed, shipped))
	require.NoError(t, p.Publish(ctx, placed))

	assert.Equal(t, 2, log.Len())
}

func TestProjector_PublishSurfacesAppendFailure(t *testing.T) {
	p := NewProjector(failingLog{}, zap.NewNop())
	e, _ := makeEvent(t, "order-9", order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{OrderID: "order-9"})

	assert.ErrorContains(t, p.Publish(context.Background(), e), "db down")
}
