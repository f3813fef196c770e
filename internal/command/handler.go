package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/auth"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/event"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
	"go.uber.org/zap"
)

var ErrNotOrderOwner = apperr.Forbidden("NOT_ORDER_OWNER", "order belongs to another member")

type Handler struct {
	store     store.Runner
	publisher event.Publisher
	sessions  auth.RevocationStore
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Handler)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(
	runner store.Runner,
	publisher event.Publisher,
	sessions auth.RevocationStore,
	logger *zap.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		store:     runner,
		publisher: publisher,
		sessions:  sessions,
		logger:    logger.Named("command"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ============================================
// Orders
// ============================================

// PlaceOrder stores a new ORDERED order and, when a discount was applied, its
// cost-share snapshot in the same transaction.
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	now := h.now()
	items := make([]order.ItemInput, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		items = append(items, order.ItemInput{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	o, err := order.New(order.NewOrderParams{
		MemberID:       cmd.MemberID,
		SellerID:       cmd.SellerID,
		Items:          items,
		Shipping:       cmd.Shipping,
		DiscountAmount: cmd.DiscountAmount,
		ShippingFee:    cmd.ShippingFee,
	}, now)
	if err != nil {
		return nil, err
	}

	var usage *discount.Usage
	if cmd.Discount != nil {
		usage, err = discount.NewUsage(o.ID, o.MemberID, discount.UsageInput{
			PolicyID:      cmd.Discount.PolicyID,
			PlatformRatio: cmd.Discount.PlatformRatio,
			SellerRatio:   cmd.Discount.SellerRatio,
		}, o.DiscountAmount, o.Subtotal, now)
		if err != nil {
			return nil, err
		}
	}

	var batch event.Batch
	err = h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		if err := tx.Orders().Insert(ctx, o); err != nil {
			return err
		}
		if usage != nil {
			if err := tx.Discounts().Insert(ctx, usage); err != nil {
				return err
			}
		}
		batch.Add(o.ID, o.ID, order.AggregateType, order.EventOrderPlaced, order.PlacedEvent(o), o.Version, now)
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.Int64("grand_total", o.GrandTotal.Int64()),
	)
	h.publish(ctx, &batch)
	return o, nil
}

func (h *Handler) ConfirmOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transition(ctx, orderID, order.CommandConfirm)
}

func (h *Handler) ShipOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transition(ctx, orderID, order.CommandShip)
}

func (h *Handler) DeliverOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transition(ctx, orderID, order.CommandDeliver)
}

func (h *Handler) CompleteOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transition(ctx, orderID, order.CommandComplete)
}

func (h *Handler) CancelOrder(ctx context.Context, orderID string) (*order.Order, error) {
	return h.transition(ctx, orderID, order.CommandCancel)
}

// transition applies cmd to the order under an exclusive lock. A rejected
// transition surfaces the state machine's StatusConflict unchanged.
func (h *Handler) transition(ctx context.Context, orderID string, cmd order.Command) (*order.Order, error) {
	var (
		before, after *order.Order
		batch         event.Batch
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		now := h.now()

		o, err := tx.Orders().LoadExclusive(ctx, orderID)
		if err != nil {
			return err
		}
		next, err := o.Apply(cmd, now)
		if err != nil {
			return err
		}
		if err := tx.Orders().Save(ctx, next); err != nil {
			return err
		}
		addStatusEvent(&batch, o, next, cmd.EventType(), now)
		before, after = o, next
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("order transitioned",
		zap.String("order_id", after.ID),
		zap.String("from", string(before.Status)),
		zap.String("status", string(after.Status)),
	)
	h.publish(ctx, &batch)
	return after, nil
}

func addStatusEvent(batch *event.Batch, before, after *order.Order, eventType string, now time.Time) {
	batch.Add(after.ID, after.ID, order.AggregateType, eventType, order.StatusChanged{
		OrderID:     after.ID,
		OrderNumber: after.OrderNumber,
		From:        before.Status,
		To:          after.Status,
		ChangedAt:   now,
	}, after.Version, now)
}

// ============================================
// Claims
// ============================================

// RequestClaim validates a claim against the order and its existing claims,
// all read while the order is exclusively locked, then stores the claim and
// its settlement split.
func (h *Handler) RequestClaim(ctx context.Context, cmd RequestClaim) (*claim.Claim, error) {
	var (
		created *claim.Claim
		batch   event.Batch
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		now := h.now()

		o, err := tx.Orders().LoadExclusive(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if !cmd.OnBehalf && o.MemberID != cmd.RequestedBy {
			return ErrNotOrderOwner
		}
		existing, err := tx.Claims().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		usage, err := tx.Discounts().FindByOrder(ctx, o.ID)
		if err != nil {
			return err
		}

		c, settlement, err := claim.Request(o, existing, usage, claim.RequestParams{
			OrderItemID:  cmd.OrderItemID,
			Type:         cmd.Type,
			Reason:       cmd.Reason,
			Note:         cmd.Note,
			Quantity:     cmd.Quantity,
			RefundAmount: cmd.RefundAmount,
			RequestedBy:  cmd.RequestedBy,
		}, now)
		if err != nil {
			return err
		}
		if err := tx.Claims().Insert(ctx, c); err != nil {
			return err
		}
		if err := tx.Settlements().Insert(ctx, settlement); err != nil {
			return err
		}

		batch.Add(o.ID, c.ID, claim.AggregateType, claim.EventClaimRequested, claim.RequestedEvent(c), c.Version, now)
		batch.Add(o.ID, c.ID, claim.AggregateType, claim.EventSettlementRecorded, claim.RecordedEvent(settlement), c.Version, now)
		created = c
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("claim requested",
		zap.String("claim_id", created.ID),
		zap.String("order_id", created.OrderID),
		zap.String("type", string(created.Type)),
		zap.Int("quantity", created.Quantity.Int()),
		zap.Int64("refund_amount", created.RefundAmount.Int64()),
	)
	h.publish(ctx, &batch)
	return created, nil
}

func (h *Handler) ApproveClaim(ctx context.Context, cmd ApproveClaim) (*claim.Claim, error) {
	return h.processClaim(ctx, cmd.ClaimID, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.Approve(cmd.AdminID, now)
	})
}

func (h *Handler) RejectClaim(ctx context.Context, cmd RejectClaim) (*claim.Claim, error) {
	return h.processClaim(ctx, cmd.ClaimID, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.Reject(cmd.AdminID, cmd.Reason, now)
	})
}

// processClaim applies an admin decision with an optimistic version check
// instead of a lock; a concurrent decision loses with ConcurrencyConflict.
func (h *Handler) processClaim(ctx context.Context, claimID string, decide func(*claim.Claim, time.Time) (*claim.Claim, error)) (*claim.Claim, error) {
	var (
		after *claim.Claim
		batch event.Batch
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		now := h.now()

		c, err := tx.Claims().LoadVersioned(ctx, claimID)
		if err != nil {
			return err
		}
		next, err := decide(c, now)
		if err != nil {
			return err
		}
		if err := tx.Claims().Save(ctx, next); err != nil {
			return err
		}
		batch.Add(next.OrderID, next.ID, claim.AggregateType, claim.StatusEventType(next.Status),
			claim.StatusChangedEvent(c, next), next.Version, now)
		after = next
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("claim processed",
		zap.String("claim_id", after.ID),
		zap.String("order_id", after.OrderID),
		zap.String("status", string(after.Status)),
		zap.String("processed_by", after.ProcessedBy),
	)
	h.publish(ctx, &batch)
	return after, nil
}

func (h *Handler) ScheduleReturnPickup(ctx context.Context, cmd ScheduleReturnPickup) (*claim.Claim, error) {
	return h.shipClaim(ctx, cmd.ClaimID, claim.EventReturnPickupScheduled, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.ScheduleReturnPickup(cmd.PickupAt, cmd.Address, now)
	})
}

func (h *Handler) RegisterReturnShipping(ctx context.Context, cmd RegisterShipping) (*claim.Claim, error) {
	return h.shipClaim(ctx, cmd.ClaimID, claim.EventReturnShipped, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.RegisterReturnShipping(cmd.Carrier, cmd.TrackingNumber, now)
	})
}

// ConfirmReturnReceived records the inspection. A failed inspection also
// publishes ClaimRejected.
func (h *Handler) ConfirmReturnReceived(ctx context.Context, cmd ConfirmReturnReceived) (*claim.Claim, error) {
	return h.shipClaim(ctx, cmd.ClaimID, claim.EventReturnReceived, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.ConfirmReturnReceived(cmd.AdminID, cmd.Inspection, cmd.Note, now)
	})
}

func (h *Handler) RegisterExchangeShipping(ctx context.Context, cmd RegisterShipping) (*claim.Claim, error) {
	return h.shipClaim(ctx, cmd.ClaimID, claim.EventExchangeShipped, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.RegisterExchangeShipping(cmd.Carrier, cmd.TrackingNumber, now)
	})
}

func (h *Handler) ConfirmExchangeDelivered(ctx context.Context, claimID string) (*claim.Claim, error) {
	return h.shipClaim(ctx, claimID, claim.EventExchangeDelivered, func(c *claim.Claim, now time.Time) (*claim.Claim, error) {
		return c.ConfirmExchangeDelivered(now)
	})
}

// shipClaim applies a shipping step under the same optimistic version check
// as processClaim.
func (h *Handler) shipClaim(ctx context.Context, claimID, eventType string, step func(*claim.Claim, time.Time) (*claim.Claim, error)) (*claim.Claim, error) {
	var (
		after *claim.Claim
		batch event.Batch
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		now := h.now()

		c, err := tx.Claims().LoadVersioned(ctx, claimID)
		if err != nil {
			return err
		}
		next, err := step(c, now)
		if err != nil {
			return err
		}
		if err := tx.Claims().Save(ctx, next); err != nil {
			return err
		}
		batch.Add(next.OrderID, next.ID, claim.AggregateType, eventType, claim.ShipmentUpdatedEvent(next), next.Version, now)
		if next.Status != c.Status {
			batch.Add(next.OrderID, next.ID, claim.AggregateType, claim.StatusEventType(next.Status),
				claim.StatusChangedEvent(c, next), next.Version, now)
		}
		after = next
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("claim_id", after.ID),
		zap.String("event", eventType),
		zap.String("status", string(after.Status)),
	}
	if after.Return != nil {
		fields = append(fields, zap.String("return_status", string(after.Return.Status)))
	}
	h.logger.Info("claim shipment updated", fields...)
	h.publish(ctx, &batch)
	return after, nil
}

// CompleteClaim finishes an APPROVED claim. Locks are taken on the order first,
// then on the claim. A whole-order CANCEL claim cancels the order as well; if
// the order can no longer be cancelled nothing is written.
func (h *Handler) CompleteClaim(ctx context.Context, claimID string) (*claim.Claim, error) {
	var (
		after *claim.Claim
		batch event.Batch
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		now := h.now()

		peek, err := tx.Claims().LoadVersioned(ctx, claimID)
		if err != nil {
			return err
		}
		o, err := tx.Orders().LoadExclusive(ctx, peek.OrderID)
		if err != nil {
			return err
		}
		c, err := tx.Claims().LoadExclusive(ctx, claimID)
		if err != nil {
			return err
		}
		next, err := c.Complete(now)
		if err != nil {
			return err
		}

		if next.Type == claim.TypeCancel && next.WholeOrder() && o.Status != order.StatusCancelled {
			cancelled, err := o.Cancel(now)
			if err != nil {
				return err
			}
			if err := tx.Orders().Save(ctx, cancelled); err != nil {
				return err
			}
			addStatusEvent(&batch, o, cancelled, order.EventOrderCancelled, now)
		}

		if err := tx.Claims().Save(ctx, next); err != nil {
			return err
		}
		batch.Add(next.OrderID, next.ID, claim.AggregateType, claim.EventClaimCompleted,
			claim.StatusChangedEvent(c, next), next.Version, now)
		after = next
		return batch.Err()
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("claim completed",
		zap.String("claim_id", after.ID),
		zap.String("order_id", after.OrderID),
		zap.String("type", string(after.Type)),
	)
	h.publish(ctx, &batch)
	return after, nil
}

// ============================================
// Members
// ============================================

func (h *Handler) RegisterMember(ctx context.Context, cmd RegisterMember) (*member.Member, error) {
	m, err := member.New(cmd.Email, cmd.Password, cmd.Name, cmd.Role, h.now())
	if err != nil {
		return nil, err
	}
	err = h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Members().Insert(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	h.logger.Info("member registered", zap.String("member_id", m.ID), zap.String("role", m.Role))
	return m, nil
}

// SeedAdmin registers the bootstrap admin account. An existing account with
// the same email is left as it is, so restarts are harmless.
func (h *Handler) SeedAdmin(ctx context.Context, email, password, name string) error {
	_, err := h.RegisterMember(ctx, RegisterMember{
		Email:    email,
		Password: password,
		Name:     name,
		Role:     member.RoleAdmin,
	})
	if errors.Is(err, store.ErrDuplicate) {
		h.logger.Info("admin already present", zap.String("email", email))
		return nil
	}
	return err
}

// WithdrawMember re-checks the password, marks the member withdrawn and
// revokes every session issued before now.
func (h *Handler) WithdrawMember(ctx context.Context, cmd WithdrawMember) error {
	var (
		batch event.Batch
		at    time.Time
	)
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		batch.Reset()
		at = h.now()

		m, err := tx.Members().LoadExclusive(ctx, cmd.MemberID)
		if err != nil {
			return err
		}
		withdrawn, err := m.Withdraw(cmd.Password, at)
		if err != nil {
			return err
		}
		if err := tx.Members().Save(ctx, withdrawn); err != nil {
			return err
		}
		batch.Add(m.ID, m.ID, member.AggregateType, member.EventMemberWithdrawn, member.MemberWithdrawn{
			MemberID:    m.ID,
			WithdrawnAt: at,
		}, withdrawn.Version, at)
		return batch.Err()
	})
	if err != nil {
		return err
	}

	h.logger.Info("member withdrawn", zap.String("member_id", cmd.MemberID))
	h.publish(ctx, &batch)

	if err := h.sessions.RevokeMember(ctx, cmd.MemberID, at); err != nil {
		h.logger.Error("revoke sessions failed", zap.String("member_id", cmd.MemberID), zap.Error(err))
		return fmt.Errorf("revoke sessions of member %s: %w", cmd.MemberID, err)
	}
	return nil
}

// publish delivers committed events. Failures are logged only: the state change
// has already committed and is not rolled back.
func (h *Handler) publish(ctx context.Context, batch *event.Batch) {
	events := batch.Events()
	if len(events) == 0 {
		return
	}
	if err := h.publisher.Publish(ctx, events...); err != nil {
		ids := make([]string, 0, len(events))
		for _, e := range events {
			ids = append(ids, e.ID)
		}
		h.logger.Error("publish events failed", zap.Strings("event_ids", ids), zap.Error(err))
	}
}
