package query

import (
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/example/ec-backoffice/internal/domain/order"
)

// Viewer identifies who is reading. Members see only their own orders; admins
// see everything.
type Viewer struct {
	MemberID string
	Admin    bool
}

func (v Viewer) owns(o *order.Order) bool {
	return v.Admin || (v.MemberID != "" && v.MemberID == o.MemberID)
}

// ClaimableSummary is what can still be claimed against an order or one of
// its items, together with the claim types its current status allows.
type ClaimableSummary struct {
	OrderID      string       `json:"order_id"`
	OrderStatus  order.Status `json:"order_status"`
	OrderItemID  string       `json:"order_item_id,omitempty"`
	Quantity     int          `json:"remaining_quantity"`
	Amount       money.Money  `json:"remaining_amount"`
	AllowedTypes []claim.Type `json:"allowed_types"`
}

// ClaimDetail pairs a claim with its settlement split.
type ClaimDetail struct {
	*claim.Claim
	Settlement *claim.Settlement `json:"settlement,omitempty"`
}
