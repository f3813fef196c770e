package claim

import (
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrSettlementNotFound = apperr.NotFound("SETTLEMENT_NOT_FOUND", "settlement not found")

// Settlement records how a claim's refund is split between platform and seller.
// It is written once with the claim and never recalculated.
type Settlement struct {
	ID              string          `json:"id"`
	ClaimID         string          `json:"claim_id"`
	OrderID         string          `json:"order_id"`
	DiscountUsageID string          `json:"discount_usage_id,omitempty"`
	RefundAmount    money.Money     `json:"refund_amount"`
	PlatformRatio   decimal.Decimal `json:"platform_ratio"`
	SellerRatio     decimal.Decimal `json:"seller_ratio"`
	PlatformCost    money.Money     `json:"platform_cost"`
	SellerCost      money.Money     `json:"seller_cost"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewSettlement applies the usage snapshot (or the baseline) to the claim's refund.
func NewSettlement(c *Claim, usage *discount.Usage, now time.Time) *Settlement {
	share := discount.ShareOf(usage)
	platform, seller := share.Split(c.RefundAmount)
	s := &Settlement{
		ID:            uuid.New().String(),
		ClaimID:       c.ID,
		OrderID:       c.OrderID,
		RefundAmount:  c.RefundAmount,
		PlatformRatio: share.PlatformRatio,
		SellerRatio:   share.SellerRatio,
		PlatformCost:  platform,
		SellerCost:    seller,
		CreatedAt:     now,
	}
	if usage != nil {
		s.DiscountUsageID = usage.ID
	}
	return s
}
