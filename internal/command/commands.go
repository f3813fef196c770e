package command

import (
	"time"

	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/shopspring/decimal"
)

// Order Commands
type PlaceOrder struct {
	MemberID       string             `json:"member_id"`
	SellerID       int64              `json:"seller_id"`
	Items          []PlaceOrderItem   `json:"items"`
	Shipping       order.ShippingInfo `json:"shipping"`
	DiscountAmount int64              `json:"discount_amount"`
	ShippingFee    int64              `json:"shipping_fee"`
	Discount       *AppliedDiscount   `json:"discount,omitempty"`
}

type PlaceOrderItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// AppliedDiscount is the cost-share snapshot of the policy checkout applied.
type AppliedDiscount struct {
	PolicyID      string          `json:"policy_id"`
	PlatformRatio decimal.Decimal `json:"platform_ratio"`
	SellerRatio   decimal.Decimal `json:"seller_ratio"`
}

// Claim Commands
type RequestClaim struct {
	OrderID      string       `json:"order_id"`
	OrderItemID  string       `json:"order_item_id,omitempty"`
	Type         claim.Type   `json:"type"`
	Reason       claim.Reason `json:"reason"`
	Note         string       `json:"note,omitempty"`
	Quantity     int          `json:"quantity"`
	RefundAmount int64        `json:"refund_amount"`
	RequestedBy  string       `json:"-"`
	// OnBehalf lets an admin file a claim for any member's order.
	OnBehalf bool `json:"-"`
}

type ApproveClaim struct {
	ClaimID string `json:"claim_id"`
	AdminID string `json:"-"`
}

type RejectClaim struct {
	ClaimID string `json:"claim_id"`
	AdminID string `json:"-"`
	Reason  string `json:"reason"`
}

// Return and Exchange Shipping Commands
type ScheduleReturnPickup struct {
	ClaimID  string    `json:"-"`
	PickupAt time.Time `json:"pickup_at"`
	Address  string    `json:"address"`
}

// RegisterShipping records a carrier handoff for the return or the replacement.
type RegisterShipping struct {
	ClaimID        string `json:"-"`
	Carrier        string `json:"carrier"`
	TrackingNumber string `json:"tracking_number"`
}

type ConfirmReturnReceived struct {
	ClaimID    string           `json:"-"`
	AdminID    string           `json:"-"`
	Inspection claim.Inspection `json:"inspection"`
	Note       string           `json:"note,omitempty"`
}

// Member Commands
type RegisterMember struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
}

type WithdrawMember struct {
	MemberID string `json:"-"`
	Password string `json:"password"`
}
