package claim

import (
	"strings"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/google/uuid"
)

var (
	ErrNotAllowedForStatus      = apperr.StatusConflict("CLAIM_NOT_ALLOWED_FOR_ORDER_STATUS", "claim type is not allowed for the order status")
	ErrAlreadyCancelled         = apperr.StatusConflict("ALREADY_CANCELLED", "order is already cancelled")
	ErrQuantityExceedsClaimable = apperr.Validation("QUANTITY_EXCEEDS_CLAIMABLE", "quantity exceeds remaining claimable quantity")
	ErrAmountExceedsClaimable   = apperr.Validation("AMOUNT_EXCEEDS_CLAIMABLE", "refund amount exceeds remaining claimable amount")
	ErrInvalidRefundAmount      = apperr.Validation("INVALID_REFUND_AMOUNT", "refund amount must be positive")
	ErrClaimOrderMismatch       = apperr.Validation("CLAIM_ORDER_MISMATCH", "claim does not belong to the order")
)

// allowedStatuses holds the order statuses each claim type may be requested in.
// Post-delivery types are limited to DELIVERED.
var allowedStatuses = map[Type][]order.Status{
	TypeCancel:        {order.StatusOrdered, order.StatusConfirmed},
	TypeReturn:        {order.StatusDelivered},
	TypeExchange:      {order.StatusDelivered},
	TypePartialRefund: {order.StatusDelivered},
}

// AllowedFor reports whether t may be requested against an order in status s.
func (t Type) AllowedFor(s order.Status) bool {
	for _, v := range allowedStatuses[t] {
		if v == s {
			return true
		}
	}
	return false
}

// CheckEligibility validates t against the order's current status and its existing claims.
func CheckEligibility(o *order.Order, t Type, existing []*Claim) error {
	if !t.Valid() {
		return apperr.Wrapf(ErrUnknownType, "unknown claim type %q", t)
	}
	if o.Status == order.StatusCancelled {
		return apperr.Wrapf(ErrAlreadyCancelled, "order %s is already cancelled", o.ID)
	}
	if t == TypeCancel {
		for _, c := range existing {
			if c.Type == TypeCancel && c.Status.Active() {
				return apperr.Wrapf(ErrAlreadyCancelled, "order %s already has cancellation claim %s", o.ID, c.ID)
			}
		}
	}
	if !t.AllowedFor(o.Status) {
		return apperr.Wrapf(ErrNotAllowedForStatus, "%s claim is not allowed for order %s in status %s", t, o.ID, o.Status)
	}
	return nil
}

// Claimable is what is left to claim on a target.
type Claimable struct {
	OrderID     string      `json:"order_id"`
	OrderItemID string      `json:"order_item_id,omitempty"`
	Quantity    int         `json:"quantity"`
	Amount      money.Money `json:"amount"`
}

// RemainingClaimable computes the claimable quantity and amount for the whole
// order (itemID == "") or a single item. Active claims on the order bound both;
// item targets are additionally bounded by their own line.
func RemainingClaimable(o *order.Order, itemID string, existing []*Claim) (Claimable, error) {
	usedQty := 0
	usedAmount := money.Zero
	itemQty := 0
	itemAmount := money.Zero
	for _, c := range existing {
		if c.OrderID != o.ID {
			return Claimable{}, apperr.Wrapf(ErrClaimOrderMismatch, "claim %s belongs to order %s, not %s", c.ID, c.OrderID, o.ID)
		}
		if !c.Status.Active() {
			continue
		}
		var err error
		usedQty += c.Quantity.Int()
		if usedAmount, err = usedAmount.Add(c.RefundAmount); err != nil {
			return Claimable{}, err
		}
		if itemID != "" && c.Targets(itemID) {
			itemQty += c.Quantity.Int()
			if itemAmount, err = itemAmount.Add(c.RefundAmount); err != nil {
				return Claimable{}, err
			}
		}
	}

	remaining := Claimable{
		OrderID:  o.ID,
		Quantity: max(o.TotalQuantity()-usedQty, 0),
		Amount:   o.GrandTotal.SubFloor(usedAmount),
	}
	if itemID == "" {
		return remaining, nil
	}

	item, err := o.Item(itemID)
	if err != nil {
		return Claimable{}, err
	}
	remaining.OrderItemID = itemID
	remaining.Quantity = min(remaining.Quantity, max(item.Quantity.Int()-itemQty, 0))
	remaining.Amount = money.Min(remaining.Amount, item.LineTotal.SubFloor(itemAmount))
	return remaining, nil
}

// RequestParams is a validated-by-Request claim request.
type RequestParams struct {
	OrderItemID  string
	Type         Type
	Reason       Reason
	Note         string
	Quantity     int
	RefundAmount int64
	RequestedBy  string
}

// Request is the claim eligibility and cost engine. Given the order and its
// existing claims read under the same lock, it validates the request and
// returns the new claim together with its immutable settlement split.
func Request(o *order.Order, existing []*Claim, usage *discount.Usage, p RequestParams, now time.Time) (*Claim, *Settlement, error) {
	if err := CheckEligibility(o, p.Type, existing); err != nil {
		return nil, nil, err
	}
	if !p.Reason.Valid() {
		return nil, nil, apperr.Wrapf(ErrUnknownReason, "unknown claim reason %q", p.Reason)
	}

	remaining, err := RemainingClaimable(o, p.OrderItemID, existing)
	if err != nil {
		return nil, nil, err
	}

	qty, err := money.NewQuantity(p.Quantity)
	if err != nil {
		return nil, nil, err
	}
	if qty.Int() > remaining.Quantity {
		return nil, nil, apperr.Wrapf(ErrQuantityExceedsClaimable, "requested quantity %d exceeds remaining claimable quantity %d", qty, remaining.Quantity)
	}

	refund := money.Zero
	if p.Type != TypeExchange {
		refund, err = money.New(p.RefundAmount)
		if err != nil {
			return nil, nil, err
		}
		if !refund.IsPositive() {
			return nil, nil, ErrInvalidRefundAmount
		}
		if refund.GreaterThan(remaining.Amount) {
			return nil, nil, apperr.Wrapf(ErrAmountExceedsClaimable, "refund amount %d exceeds remaining claimable amount %d", refund, remaining.Amount)
		}
	}

	c := &Claim{
		ID:           uuid.New().String(),
		ClaimNumber:  NewClaimNumber(now),
		OrderID:      o.ID,
		OrderItemID:  p.OrderItemID,
		Type:         p.Type,
		Reason:       p.Reason,
		Note:         strings.TrimSpace(p.Note),
		Quantity:     qty,
		RefundAmount: refund,
		Status:       StatusRequested,
		RequestedBy:  p.RequestedBy,
		RequestedAt:  now,
		UpdatedAt:    now,
		Return:       newReturnShipment(p.Type, p.Reason),
	}
	return c, NewSettlement(c, usage, now), nil
}
