package claim

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/google/uuid"
)

const AggregateType = "Claim"

type Type string

const (
	TypeCancel        Type = "CANCEL"
	TypeReturn        Type = "RETURN"
	TypeExchange      Type = "EXCHANGE"
	TypePartialRefund Type = "PARTIAL_REFUND"
)

var Types = []Type{TypeCancel, TypeReturn, TypeExchange, TypePartialRefund}

func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// RequiresReturn reports whether goods travel back to the seller.
func (t Type) RequiresReturn() bool {
	return t == TypeReturn || t == TypeExchange
}

type Reason string

const (
	ReasonChangeOfMind       Reason = "CHANGE_OF_MIND"
	ReasonWrongSize          Reason = "WRONG_SIZE"
	ReasonDefectiveProduct   Reason = "DEFECTIVE_PRODUCT"
	ReasonDamagedInTransit   Reason = "DAMAGED_IN_TRANSIT"
	ReasonWrongItemDelivered Reason = "WRONG_ITEM_DELIVERED"
	ReasonDelayedDelivery    Reason = "DELAYED_DELIVERY"
	ReasonOther              Reason = "OTHER"
)

var Reasons = []Reason{
	ReasonChangeOfMind,
	ReasonWrongSize,
	ReasonDefectiveProduct,
	ReasonDamagedInTransit,
	ReasonWrongItemDelivered,
	ReasonDelayedDelivery,
	ReasonOther,
}

func (r Reason) Valid() bool {
	for _, v := range Reasons {
		if v == r {
			return true
		}
	}
	return false
}

// SellerFault reports whether the reason points at the seller rather than the buyer.
func (r Reason) SellerFault() bool {
	switch r {
	case ReasonDefectiveProduct, ReasonDamagedInTransit, ReasonWrongItemDelivered, ReasonDelayedDelivery:
		return true
	}
	return false
}

type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
)

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Active reports whether the claim still consumes claimable quantity and amount.
func (s Status) Active() bool { return s != StatusRejected }

// APPROVED reaches REJECTED only through a failed return inspection.
var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusRejected},
	StatusApproved:  {StatusCompleted, StatusRejected},
	StatusRejected:  {},
	StatusCompleted: {},
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

var (
	ErrClaimNotFound        = apperr.NotFound("CLAIM_NOT_FOUND", "claim not found")
	ErrInvalidTransition    = apperr.StatusConflict("INVALID_CLAIM_STATUS_TRANSITION", "invalid claim status transition")
	ErrUnknownType          = apperr.Validation("UNKNOWN_CLAIM_TYPE", "unknown claim type")
	ErrUnknownReason        = apperr.Validation("UNKNOWN_CLAIM_REASON", "unknown claim reason")
	ErrRejectReasonRequired = apperr.Validation("REJECT_REASON_REQUIRED", "reject reason is required")
	ErrProcessorRequired    = apperr.Validation("PROCESSOR_REQUIRED", "processing admin id is required")
)

// Claim is a post-order request against a whole order or one of its items.
type Claim struct {
	ID           string         `json:"id"`
	ClaimNumber  string         `json:"claim_number"`
	OrderID      string         `json:"order_id"`
	OrderItemID  string         `json:"order_item_id,omitempty"`
	Type         Type           `json:"type"`
	Reason       Reason         `json:"reason"`
	Note         string         `json:"note,omitempty"`
	Quantity     money.Quantity `json:"quantity"`
	RefundAmount money.Money    `json:"refund_amount"`
	Status       Status         `json:"status"`
	RequestedBy  string         `json:"requested_by,omitempty"`
	ProcessedBy  string         `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	RejectReason string         `json:"reject_reason,omitempty"`
	RequestedAt  time.Time      `json:"requested_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Version      int            `json:"version"`

	Return   *ReturnShipment   `json:"return,omitempty"`
	Exchange *ExchangeShipment `json:"exchange,omitempty"`
}

// WholeOrder reports whether the claim targets the entire order.
func (c *Claim) WholeOrder() bool { return c.OrderItemID == "" }

// Targets reports whether the claim is against itemID.
func (c *Claim) Targets(itemID string) bool { return c.OrderItemID == itemID }

// NewClaimNumber returns a number such as CLM-20260115-1A2B3C4D.
func NewClaimNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("CLM-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Approve moves a REQUESTED claim to APPROVED.
func (c *Claim) Approve(adminID string, now time.Time) (*Claim, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrProcessorRequired
	}
	out, err := c.moveTo(StatusApproved, now)
	if err != nil {
		return nil, err
	}
	out.ProcessedBy = adminID
	out.ProcessedAt = &now
	return out, nil
}

// Reject moves a REQUESTED claim to REJECTED; the reason is mandatory.
func (c *Claim) Reject(adminID, reason string, now time.Time) (*Claim, error) {
	if strings.TrimSpace(adminID) == "" {
		return nil, ErrProcessorRequired
	}
	if strings.TrimSpace(reason) == "" {
		return nil, ErrRejectReasonRequired
	}
	if c.Status != StatusRequested {
		return nil, apperr.Wrapf(ErrInvalidTransition, "claim %s cannot be rejected from %s", c.ID, c.Status)
	}
	out, err := c.moveTo(StatusRejected, now)
	if err != nil {
		return nil, err
	}
	out.ProcessedBy = adminID
	out.ProcessedAt = &now
	out.RejectReason = reason
	return out, nil
}

// Complete moves an APPROVED claim to COMPLETED. RETURN and EXCHANGE claims
// need their goods received and passed, and an exchange its replacement delivered.
func (c *Claim) Complete(now time.Time) (*Claim, error) {
	if c.Status == StatusApproved {
		if err := c.checkReadyToComplete(); err != nil {
			return nil, err
		}
	}
	out, err := c.moveTo(StatusCompleted, now)
	if err != nil {
		return nil, err
	}
	out.CompletedAt = &now
	return out, nil
}

func (c *Claim) moveTo(target Status, now time.Time) (*Claim, error) {
	if !c.Status.CanTransitionTo(target) {
		return nil, apperr.Wrapf(ErrInvalidTransition, "claim %s cannot move from %s to %s", c.ID, c.Status, target)
	}
	out := c.Clone()
	out.Status = target
	out.UpdatedAt = now
	return out, nil
}
