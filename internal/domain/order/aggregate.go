package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/google/uuid"
)

const AggregateType = "Order"

var (
	ErrOrderNotFound           = apperr.NotFound("ORDER_NOT_FOUND", "order not found")
	ErrItemNotFound            = apperr.NotFound("ORDER_ITEM_NOT_FOUND", "order item not found")
	ErrInvalidTransition       = apperr.StatusConflict("INVALID_ORDER_STATUS_TRANSITION", "invalid order status transition")
	ErrAlreadyCancelled        = apperr.StatusConflict("ORDER_ALREADY_CANCELLED", "order is already cancelled")
	ErrAlreadyCompleted        = apperr.StatusConflict("ORDER_ALREADY_COMPLETED", "order is already completed")
	ErrUnknownCommand          = apperr.Validation("UNKNOWN_ORDER_COMMAND", "unknown order command")
	ErrEmptyOrder              = apperr.Validation("EMPTY_ORDER", "order must have at least one item")
	ErrMissingMember           = apperr.Validation("MISSING_MEMBER", "member id is required")
	ErrDiscountExceedsSubtotal = apperr.Validation("DISCOUNT_EXCEEDS_SUBTOTAL", "discount must not exceed subtotal")
)

// Item is one ordered line.
type Item struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"product_id"`
	ProductName string         `json:"product_name"`
	Quantity    money.Quantity `json:"quantity"`
	UnitPrice   money.Money    `json:"unit_price"`
	LineTotal   money.Money    `json:"line_total"`
}

// ShippingInfo is the destination captured at checkout.
type ShippingInfo struct {
	ReceiverName  string `json:"receiver_name"`
	ReceiverPhone string `json:"receiver_phone"`
	ZipCode       string `json:"zip_code"`
	Address       string `json:"address"`
	AddressDetail string `json:"address_detail,omitempty"`
	Memo          string `json:"memo,omitempty"`
}

// Order is the order aggregate. Lifecycle methods never mutate the receiver;
// they return the next snapshot.
type Order struct {
	ID             string       `json:"id"`
	OrderNumber    string       `json:"order_number"`
	MemberID       string       `json:"member_id"`
	SellerID       int64        `json:"seller_id"`
	Status         Status       `json:"status"`
	Items          []Item       `json:"items"`
	Shipping       ShippingInfo `json:"shipping"`
	Subtotal       money.Money  `json:"subtotal"`
	DiscountAmount money.Money  `json:"discount_amount"`
	ShippingFee    money.Money  `json:"shipping_fee"`
	GrandTotal     money.Money  `json:"grand_total"`
	OrderedAt      time.Time    `json:"ordered_at"`
	ConfirmedAt    *time.Time   `json:"confirmed_at,omitempty"`
	ShippedAt      *time.Time   `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time   `json:"delivered_at,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CancelledAt    *time.Time   `json:"cancelled_at,omitempty"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Version        int          `json:"version"`
}

// ItemInput describes a line handed over by checkout.
type ItemInput struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// NewOrderParams carries everything checkout knows about a new order.
type NewOrderParams struct {
	MemberID       string
	SellerID       int64
	Items          []ItemInput
	Shipping       ShippingInfo
	DiscountAmount int64
	ShippingFee    int64
}

// New builds an ORDERED order with computed totals.
func New(p NewOrderParams, now time.Time) (*Order, error) {
	if strings.TrimSpace(p.MemberID) == "" {
		return nil, ErrMissingMember
	}
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	items := make([]Item, 0, len(p.Items))
	subtotal := money.Zero
	for _, in := range p.Items {
		qty, err := money.NewQuantity(in.Quantity)
		if err != nil {
			return nil, err
		}
		price, err := money.New(in.UnitPrice)
		if err != nil {
			return nil, err
		}
		line, err := price.Times(qty)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			ID:          uuid.New().String(),
			ProductID:   in.ProductID,
			ProductName: in.ProductName,
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   line,
		})
		if subtotal, err = subtotal.Add(line); err != nil {
			return nil, err
		}
	}

	discount, err := money.New(p.DiscountAmount)
	if err != nil {
		return nil, err
	}
	fee, err := money.New(p.ShippingFee)
	if err != nil {
		return nil, err
	}
	net, err := subtotal.Sub(discount)
	if err != nil {
		return nil, apperr.Wrapf(ErrDiscountExceedsSubtotal, "discount %d exceeds subtotal %d", discount, subtotal)
	}
	grand, err := net.Add(fee)
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:             uuid.New().String(),
		OrderNumber:    NewOrderNumber(now),
		MemberID:       p.MemberID,
		SellerID:       p.SellerID,
		Status:         StatusOrdered,
		Items:          items,
		Shipping:       p.Shipping,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingFee:    fee,
		GrandTotal:     grand,
		OrderedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewOrderNumber returns a human-readable order number such as ORD-20260115-1A2B3C4D.
func NewOrderNumber(now time.Time) string {
	return newNumber("ORD", now)
}

func newNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}

// Item returns the line with the given id.
func (o *Order) Item(itemID string) (Item, error) {
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, nil
		}
	}
	return Item{}, apperr.Wrapf(ErrItemNotFound, "order %s has no item %s", o.ID, itemID)
}

// TotalQuantity sums the quantity of every line.
func (o *Order) TotalQuantity() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity.Int()
	}
	return total
}

// Apply runs cmd through the state machine and returns the next snapshot.
func (o *Order) Apply(cmd Command, now time.Time) (*Order, error) {
	next, err := Transition(o.Status, cmd)
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			te.OrderID = o.ID
		}
		return nil, err
	}

	stamp := o.stampAfter(now)
	out := o.Clone()
	out.Status = next
	out.UpdatedAt = stamp
	switch cmd {
	case CommandConfirm:
		out.ConfirmedAt = &stamp
	case CommandShip:
		out.ShippedAt = &stamp
	case CommandDeliver:
		out.DeliveredAt = &stamp
	case CommandComplete:
		out.CompletedAt = &stamp
	case CommandCancel:
		out.CancelledAt = &stamp
	}
	return out, nil
}

func (o *Order) Confirm(now time.Time) (*Order, error)  { return o.Apply(CommandConfirm, now) }
func (o *Order) Ship(now time.Time) (*Order, error)     { return o.Apply(CommandShip, now) }
func (o *Order) Deliver(now time.Time) (*Order, error)  { return o.Apply(CommandDeliver, now) }
func (o *Order) Complete(now time.Time) (*Order, error) { return o.Apply(CommandComplete, now) }
func (o *Order) Cancel(now time.Time) (*Order, error)   { return o.Apply(CommandCancel, now) }

// stampAfter keeps lifecycle timestamps non-decreasing under clock skew.
func (o *Order) stampAfter(now time.Time) time.Time {
	latest := o.OrderedAt
	for _, ts := range []*time.Time{o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt} {
		if ts != nil && ts.After(latest) {
			latest = *ts
		}
	}
	if now.Before(latest) {
		return latest
	}
	return now
}

// Clone returns a deep copy safe to hand to another goroutine.
func (o *Order) Clone() *Order {
	out := *o
	out.Items = append([]Item(nil), o.Items...)
	out.ConfirmedAt = copyTime(o.ConfirmedAt)
	out.ShippedAt = copyTime(o.ShippedAt)
	out.DeliveredAt = copyTime(o.DeliveredAt)
	out.CompletedAt = copyTime(o.CompletedAt)
	out.CancelledAt = copyTime(o.CancelledAt)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CheckInvariants verifies the lifecycle timestamp rules against the status.
func (o *Order) CheckInvariants() error {
	if o.CompletedAt != nil && o.CancelledAt != nil {
		return fmt.Errorf("order %s: both completed_at and cancelled_at are set", o.ID)
	}

	stages := []struct {
		name string
		ts   *time.Time
	}{
		{"confirmed_at", o.ConfirmedAt},
		{"shipped_at", o.ShippedAt},
		{"delivered_at", o.DeliveredAt},
		{"completed_at", o.CompletedAt},
	}
	prev := o.OrderedAt
	for i, st := range stages {
		if st.ts == nil {
			for _, later := range stages[i+1:] {
				if later.ts != nil {
					return fmt.Errorf("order %s: %s set without %s", o.ID, later.name, st.name)
				}
			}
			break
		}
		if st.ts.Before(prev) {
			return fmt.Errorf("order %s: %s precedes an earlier stage", o.ID, st.name)
		}
		prev = *st.ts
	}

	if o.CancelledAt != nil {
		if o.ShippedAt != nil {
			return fmt.Errorf("order %s: cancelled after shipping", o.ID)
		}
		if o.CancelledAt.Before(prev) {
			return fmt.Errorf("order %s: cancelled_at precedes an earlier stage", o.ID)
		}
	}

	want := map[Status]bool{
		StatusOrdered:   o.ConfirmedAt == nil && o.CancelledAt == nil,
		StatusConfirmed: o.ConfirmedAt != nil && o.ShippedAt == nil && o.CancelledAt == nil,
		StatusShipped:   o.ShippedAt != nil && o.DeliveredAt == nil,
		StatusDelivered: o.DeliveredAt != nil && o.CompletedAt == nil,
		StatusCompleted: o.CompletedAt != nil,
		StatusCancelled: o.CancelledAt != nil,
	}
	if ok, known := want[o.Status]; !known || !ok {
		return fmt.Errorf("order %s: timestamps do not match status %s", o.ID, o.Status)
	}
	return nil
}
