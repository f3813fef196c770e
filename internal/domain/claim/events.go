package claim

import "time"

const (
	EventClaimRequested     = "ClaimRequested"
	EventClaimApproved      = "ClaimApproved"
	EventClaimRejected      = "ClaimRejected"
	EventClaimCompleted     = "ClaimCompleted"
	EventSettlementRecorded = "SettlementRecorded"

	EventReturnPickupScheduled = "ReturnPickupScheduled"
	EventReturnShipped         = "ReturnShipped"
	EventReturnReceived        = "ReturnReceived"
	EventExchangeShipped       = "ExchangeShipped"
	EventExchangeDelivered     = "ExchangeDelivered"
)

type ClaimRequested struct {
	ClaimID      string    `json:"claim_id"`
	ClaimNumber  string    `json:"claim_number"`
	OrderID      string    `json:"order_id"`
	OrderItemID  string    `json:"order_item_id,omitempty"`
	Type         Type      `json:"type"`
	Reason       Reason    `json:"reason"`
	Quantity     int       `json:"quantity"`
	RefundAmount int64     `json:"refund_amount"`
	RequestedAt  time.Time `json:"requested_at"`
}

type StatusChanged struct {
	ClaimID      string    `json:"claim_id"`
	OrderID      string    `json:"order_id"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	ProcessedBy  string    `json:"processed_by,omitempty"`
	RejectReason string    `json:"reject_reason,omitempty"`
	ChangedAt    time.Time `json:"changed_at"`
}

type SettlementRecorded struct {
	SettlementID  string    `json:"settlement_id"`
	ClaimID       string    `json:"claim_id"`
	OrderID       string    `json:"order_id"`
	RefundAmount  int64     `json:"refund_amount"`
	PlatformRatio string    `json:"platform_ratio"`
	PlatformCost  int64     `json:"platform_cost"`
	SellerCost    int64     `json:"seller_cost"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// ShipmentUpdated carries the return and exchange legs after a shipping step.
type ShipmentUpdated struct {
	ClaimID   string            `json:"claim_id"`
	OrderID   string            `json:"order_id"`
	Return    *ReturnShipment   `json:"return,omitempty"`
	Exchange  *ExchangeShipment `json:"exchange,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func ShipmentUpdatedEvent(c *Claim) ShipmentUpdated {
	return ShipmentUpdated{
		ClaimID:   c.ID,
		OrderID:   c.OrderID,
		Return:    c.Return,
		Exchange:  c.Exchange,
		UpdatedAt: c.UpdatedAt,
	}
}

func RequestedEvent(c *Claim) ClaimRequested {
	return ClaimRequested{
		ClaimID:      c.ID,
		ClaimNumber:  c.ClaimNumber,
		OrderID:      c.OrderID,
		OrderItemID:  c.OrderItemID,
		Type:         c.Type,
		Reason:       c.Reason,
		Quantity:     c.Quantity.Int(),
		RefundAmount: c.RefundAmount.Int64(),
		RequestedAt:  c.RequestedAt,
	}
}

func StatusChangedEvent(before, after *Claim) StatusChanged {
	return StatusChanged{
		ClaimID:      after.ID,
		OrderID:      after.OrderID,
		From:         before.Status,
		To:           after.Status,
		ProcessedBy:  after.ProcessedBy,
		RejectReason: after.RejectReason,
		ChangedAt:    after.UpdatedAt,
	}
}

func RecordedEvent(s *Settlement) SettlementRecorded {
	return SettlementRecorded{
		SettlementID:  s.ID,
		ClaimID:       s.ClaimID,
		OrderID:       s.OrderID,
		RefundAmount:  s.RefundAmount.Int64(),
		PlatformRatio: s.PlatformRatio.String(),
		PlatformCost:  s.PlatformCost.Int64(),
		SellerCost:    s.SellerCost.Int64(),
		RecordedAt:    s.CreatedAt,
	}
}

// StatusEventType names the event for a claim entering s.
func StatusEventType(s Status) string {
	switch s {
	case StatusApproved:
		return EventClaimApproved
	case StatusRejected:
		return EventClaimRejected
	case StatusCompleted:
		return EventClaimCompleted
	default:
		return EventClaimRequested
	}
}
