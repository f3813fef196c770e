package order

import "time"

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"
)

var commandEvents = map[Command]string{
	CommandConfirm:  EventOrderConfirmed,
	CommandShip:     EventOrderShipped,
	CommandDeliver:  EventOrderDelivered,
	CommandComplete: EventOrderCompleted,
	CommandCancel:   EventOrderCancelled,
}

// EventType returns the event emitted after cmd commits.
func (c Command) EventType() string { return commandEvents[c] }

type OrderPlaced struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	MemberID    string    `json:"member_id"`
	SellerID    int64     `json:"seller_id"`
	GrandTotal  int64     `json:"grand_total"`
	PlacedAt    time.Time `json:"placed_at"`
}

// StatusChanged is the payload of every lifecycle event after OrderPlaced.
type StatusChanged struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	ChangedAt   time.Time `json:"changed_at"`
}

// PlacedEvent builds the OrderPlaced payload for o.
func PlacedEvent(o *Order) OrderPlaced {
	return OrderPlaced{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		MemberID:    o.MemberID,
		SellerID:    o.SellerID,
		GrandTotal:  o.GrandTotal.Int64(),
		PlacedAt:    o.OrderedAt,
	}
}
