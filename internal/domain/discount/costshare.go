package discount

import (
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRatio  = apperr.Validation("INVALID_COST_SHARE_RATIO", "cost share ratios must be within [0,1] and sum to 1")
	ErrMissingPolicy = apperr.Validation("MISSING_DISCOUNT_POLICY", "discount policy id is required")
)

var one = decimal.NewFromInt(1)

// CostShare splits a cost between platform and seller.
type CostShare struct {
	PlatformRatio decimal.Decimal `json:"platform_ratio"`
	SellerRatio   decimal.Decimal `json:"seller_ratio"`
}

// Baseline is used when no discount was applied: the seller bears the whole cost.
func Baseline() CostShare {
	return CostShare{PlatformRatio: decimal.Zero, SellerRatio: one}
}

// NewCostShare validates both ratios.
func NewCostShare(platform, seller decimal.Decimal) (CostShare, error) {
	if platform.IsNegative() || seller.IsNegative() || platform.GreaterThan(one) || seller.GreaterThan(one) {
		return CostShare{}, apperr.Wrapf(ErrInvalidRatio, "ratios out of range: platform=%s seller=%s", platform, seller)
	}
	if !platform.Add(seller).Equal(one) {
		return CostShare{}, apperr.Wrapf(ErrInvalidRatio, "ratios must sum to 1: platform=%s seller=%s", platform, seller)
	}
	return CostShare{PlatformRatio: platform, SellerRatio: seller}, nil
}

// FromPlatformRatio derives the seller ratio as the complement.
func FromPlatformRatio(platform decimal.Decimal) (CostShare, error) {
	return NewCostShare(platform, one.Sub(platform))
}

// Split divides amount. The platform part is rounded half away from zero and
// the seller takes the remainder, so the parts always add back up to amount.
func (c CostShare) Split(amount money.Money) (platform, seller money.Money) {
	p := decimal.NewFromInt(amount.Int64()).Mul(c.PlatformRatio).Round(0).IntPart()
	if p < 0 {
		p = 0
	}
	if p > amount.Int64() {
		p = amount.Int64()
	}
	platform = money.Money(p)
	return platform, amount - platform
}

// Usage is the point-in-time record of a discount applied at checkout.
// Its CostShare is a snapshot; later policy edits never reach it.
type Usage struct {
	ID             string      `json:"id"`
	OrderID        string      `json:"order_id"`
	PolicyID       string      `json:"policy_id"`
	MemberID       string      `json:"member_id"`
	AppliedAmount  money.Money `json:"applied_amount"`
	OriginalAmount money.Money `json:"original_amount"`
	CostShare      CostShare   `json:"cost_share"`
	PlatformCost   money.Money `json:"platform_cost"`
	SellerCost     money.Money `json:"seller_cost"`
	UsedAt         time.Time   `json:"used_at"`
}

// UsageInput is what checkout reports about an applied discount.
type UsageInput struct {
	PolicyID      string
	PlatformRatio decimal.Decimal
	SellerRatio   decimal.Decimal
}

// NewUsage snapshots the cost share and splits the applied discount itself.
func NewUsage(orderID, memberID string, in UsageInput, applied, original money.Money, now time.Time) (*Usage, error) {
	if in.PolicyID == "" {
		return nil, ErrMissingPolicy
	}
	share, err := NewCostShare(in.PlatformRatio, in.SellerRatio)
	if err != nil {
		return nil, err
	}
	platform, seller := share.Split(applied)
	return &Usage{
		ID:             uuid.New().String(),
		OrderID:        orderID,
		PolicyID:       in.PolicyID,
		MemberID:       memberID,
		AppliedAmount:  applied,
		OriginalAmount: original,
		CostShare:      share,
		PlatformCost:   platform,
		SellerCost:     seller,
		UsedAt:         now,
	}, nil
}

// ShareOf returns the snapshot's cost share, or the baseline when u is nil.
func ShareOf(u *Usage) CostShare {
	if u == nil {
		return Baseline()
	}
	return u.CostShare
}
