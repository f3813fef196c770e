package claim

import (
	"strings"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
)

// ReturnStatus tracks goods travelling back to the seller on an APPROVED
// RETURN or EXCHANGE claim.
type ReturnStatus string

const (
	ReturnPending         ReturnStatus = "PENDING"
	ReturnPickupScheduled ReturnStatus = "PICKUP_SCHEDULED"
	ReturnInTransit       ReturnStatus = "IN_TRANSIT"
	ReturnReceived        ReturnStatus = "RECEIVED"
)

type Inspection string

const (
	InspectionPassed Inspection = "PASSED"
	InspectionFailed Inspection = "FAILED"
)

func (i Inspection) Valid() bool { return i == InspectionPassed || i == InspectionFailed }

// FeePayer is who bears the return shipping fee.
type FeePayer string

const (
	FeePayerBuyer  FeePayer = "BUYER"
	FeePayerSeller FeePayer = "SELLER"
)

type ReturnShipment struct {
	Status         ReturnStatus `json:"status"`
	FeePaidBy      FeePayer     `json:"fee_paid_by"`
	PickupAt       *time.Time   `json:"pickup_at,omitempty"`
	PickupAddress  string       `json:"pickup_address,omitempty"`
	Carrier        string       `json:"carrier,omitempty"`
	TrackingNumber string       `json:"tracking_number,omitempty"`
	ReceivedAt     *time.Time   `json:"received_at,omitempty"`
	Inspection     Inspection   `json:"inspection,omitempty"`
	InspectionNote string       `json:"inspection_note,omitempty"`
}

type ExchangeShipment struct {
	Carrier        string     `json:"carrier"`
	TrackingNumber string     `json:"tracking_number"`
	ShippedAt      time.Time  `json:"shipped_at"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

var (
	ErrReturnNotRequired     = apperr.StatusConflict("RETURN_NOT_REQUIRED", "claim type has no return shipment")
	ErrNotExchange           = apperr.StatusConflict("NOT_AN_EXCHANGE", "claim is not an exchange")
	ErrClaimNotApproved      = apperr.StatusConflict("CLAIM_NOT_APPROVED", "claim must be approved first")
	ErrInvalidReturnStep     = apperr.StatusConflict("INVALID_RETURN_STATUS_TRANSITION", "invalid return shipment transition")
	ErrReturnNotReceived     = apperr.StatusConflict("RETURN_NOT_RECEIVED", "returned goods have not passed inspection")
	ErrExchangeNotShipped    = apperr.StatusConflict("EXCHANGE_NOT_SHIPPED", "exchange goods have not been shipped")
	ErrExchangeNotDelivered  = apperr.StatusConflict("EXCHANGE_NOT_DELIVERED", "exchange goods have not been delivered")
	ErrInvalidPickupTime     = apperr.Validation("INVALID_PICKUP_TIME", "pickup must be scheduled in the future")
	ErrPickupAddressRequired = apperr.Validation("PICKUP_ADDRESS_REQUIRED", "pickup address is required")
	ErrTrackingRequired      = apperr.Validation("TRACKING_REQUIRED", "carrier and tracking number are required")
	ErrUnknownInspection     = apperr.Validation("UNKNOWN_INSPECTION_RESULT", "inspection result must be PASSED or FAILED")
)

// newReturnShipment opens the return leg for claim types that send goods back.
// Seller-fault reasons move the shipping fee to the seller.
func newReturnShipment(t Type, r Reason) *ReturnShipment {
	if !t.RequiresReturn() {
		return nil
	}
	payer := FeePayerBuyer
	if r.SellerFault() {
		payer = FeePayerSeller
	}
	return &ReturnShipment{Status: ReturnPending, FeePaidBy: payer}
}

// returnStep checks the claim can move its return leg forward and returns a
// copy with a private ReturnShipment to mutate.
func (c *Claim) returnStep(now time.Time, from ...ReturnStatus) (*Claim, error) {
	if !c.Type.RequiresReturn() || c.Return == nil {
		return nil, apperr.Wrapf(ErrReturnNotRequired, "claim %s of type %s has no return shipment", c.ID, c.Type)
	}
	if c.Status != StatusApproved {
		return nil, apperr.Wrapf(ErrClaimNotApproved, "claim %s is %s", c.ID, c.Status)
	}
	allowed := false
	for _, s := range from {
		if c.Return.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return nil, apperr.Wrapf(ErrInvalidReturnStep, "claim %s return shipment is %s", c.ID, c.Return.Status)
	}
	out := c.Clone()
	out.UpdatedAt = now
	return out, nil
}

// ScheduleReturnPickup books a carrier pickup at the buyer's address.
func (c *Claim) ScheduleReturnPickup(at time.Time, address string, now time.Time) (*Claim, error) {
	if !at.After(now) {
		return nil, ErrInvalidPickupTime
	}
	if strings.TrimSpace(address) == "" {
		return nil, ErrPickupAddressRequired
	}
	out, err := c.returnStep(now, ReturnPending)
	if err != nil {
		return nil, err
	}
	out.Return.Status = ReturnPickupScheduled
	out.Return.PickupAt = &at
	out.Return.PickupAddress = strings.TrimSpace(address)
	return out, nil
}

// RegisterReturnShipping records the carrier and tracking number once the
// goods are on their way, whether picked up or sent by the buyer.
func (c *Claim) RegisterReturnShipping(carrier, tracking string, now time.Time) (*Claim, error) {
	if strings.TrimSpace(carrier) == "" || strings.TrimSpace(tracking) == "" {
		return nil, ErrTrackingRequired
	}
	out, err := c.returnStep(now, ReturnPending, ReturnPickupScheduled, ReturnInTransit)
	if err != nil {
		return nil, err
	}
	out.Return.Status = ReturnInTransit
	out.Return.Carrier = strings.TrimSpace(carrier)
	out.Return.TrackingNumber = strings.TrimSpace(tracking)
	return out, nil
}

// ConfirmReturnReceived records the seller's inspection. A failed inspection
// rejects the claim, releasing its claimable quantity and amount.
func (c *Claim) ConfirmReturnReceived(adminID string, result Inspection, note string, now time.Time) (*Claim, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrProcessorRequired
	}
	if !result.Valid() {
		return nil, apperr.Wrapf(ErrUnknownInspection, "unknown inspection result %q", result)
	}
	out, err := c.returnStep(now, ReturnInTransit)
	if err != nil {
		return nil, err
	}
	note = strings.TrimSpace(note)
	out.Return.Status = ReturnReceived
	out.Return.ReceivedAt = &now
	out.Return.Inspection = result
	out.Return.InspectionNote = note

	if result == InspectionFailed {
		out.Status = StatusRejected
		out.ProcessedBy = adminID
		out.ProcessedAt = &now
		out.RejectReason = "inspection failed"
		if note != "" {
			out.RejectReason += ": " + note
		}
	}
	return out, nil
}

// returnPassed reports whether the returned goods arrived and passed inspection.
func (c *Claim) returnPassed() bool {
	return c.Return != nil && c.Return.Status == ReturnReceived && c.Return.Inspection == InspectionPassed
}

// RegisterExchangeShipping sends the replacement once the original goods
// passed inspection.
func (c *Claim) RegisterExchangeShipping(carrier, tracking string, now time.Time) (*Claim, error) {
	if c.Type != TypeExchange {
		return nil, apperr.Wrapf(ErrNotExchange, "claim %s is a %s", c.ID, c.Type)
	}
	if strings.TrimSpace(carrier) == "" || strings.TrimSpace(tracking) == "" {
		return nil, ErrTrackingRequired
	}
	if c.Status != StatusApproved {
		return nil, apperr.Wrapf(ErrClaimNotApproved, "claim %s is %s", c.ID, c.Status)
	}
	if !c.returnPassed() {
		return nil, apperr.Wrapf(ErrReturnNotReceived, "claim %s: replacement ships after the return passes inspection", c.ID)
	}
	if c.Exchange != nil {
		return nil, apperr.Wrapf(ErrInvalidReturnStep, "claim %s replacement already shipped", c.ID)
	}
	out := c.Clone()
	out.Exchange = &ExchangeShipment{
		Carrier:        strings.TrimSpace(carrier),
		TrackingNumber: strings.TrimSpace(tracking),
		ShippedAt:      now,
	}
	out.UpdatedAt = now
	return out, nil
}

// ConfirmExchangeDelivered marks the replacement as delivered to the buyer.
func (c *Claim) ConfirmExchangeDelivered(now time.Time) (*Claim, error) {
	if c.Type != TypeExchange {
		return nil, apperr.Wrapf(ErrNotExchange, "claim %s is a %s", c.ID, c.Type)
	}
	if c.Status != StatusApproved {
		return nil, apperr.Wrapf(ErrClaimNotApproved, "claim %s is %s", c.ID, c.Status)
	}
	if c.Exchange == nil {
		return nil, apperr.Wrapf(ErrExchangeNotShipped, "claim %s replacement not shipped", c.ID)
	}
	if c.Exchange.DeliveredAt != nil {
		return nil, apperr.Wrapf(ErrInvalidReturnStep, "claim %s replacement already delivered", c.ID)
	}
	out := c.Clone()
	out.Exchange.DeliveredAt = &now
	out.UpdatedAt = now
	return out, nil
}

// checkReadyToComplete gates completion on the physical legs of the claim.
func (c *Claim) checkReadyToComplete() error {
	if !c.Type.RequiresReturn() {
		return nil
	}
	if !c.returnPassed() {
		return apperr.Wrapf(ErrReturnNotReceived, "claim %s cannot complete before the return passes inspection", c.ID)
	}
	if c.Type == TypeExchange && (c.Exchange == nil || c.Exchange.DeliveredAt == nil) {
		return apperr.Wrapf(ErrExchangeNotDelivered, "claim %s cannot complete before the replacement is delivered", c.ID)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Claim) Clone() *Claim {
	out := *c
	if c.Return != nil {
		r := *c.Return
		out.Return = &r
	}
	if c.Exchange != nil {
		e := *c.Exchange
		out.Exchange = &e
	}
	return &out
}
