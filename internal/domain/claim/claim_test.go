package claim

import (
	"testing"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func newOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := order.New(order.NewOrderParams{
		MemberID: "member-1",
		SellerID: 3,
		Items: []order.ItemInput{
			{ProductID: "prod-1", ProductName: "Linen Shirt", Quantity: 2, UnitPrice: 29900},
			{ProductID: "prod-2", ProductName: "Socks", Quantity: 3, UnitPrice: 4000},
		},
		ShippingFee: 3000,
	}, testNow.Add(-72*time.Hour))
	require.NoError(t, err)
	return o
}

func deliveredOrder(t *testing.T) *order.Order {
	t.Helper()
	o := newOrder(t)
	var err error
	for _, cmd := range []order.Command{order.CommandConfirm, order.CommandShip, order.CommandDeliver} {
		o, err = o.Apply(cmd, testNow.Add(-24*time.Hour))
		require.NoError(t, err)
	}
	return o
}

func orderIn(t *testing.T, status order.Status) *order.Order {
	t.Helper()
	o := newOrder(t)
	path := map[order.Status][]order.Command{
		order.StatusOrdered:   nil,
		order.StatusConfirmed: {order.CommandConfirm},
		order.StatusShipped:   {order.CommandConfirm, order.CommandShip},
		order.StatusDelivered: {order.CommandConfirm, order.CommandShip, order.CommandDeliver},
		order.StatusCompleted: {order.CommandConfirm, order.CommandShip, order.CommandDeliver, order.CommandComplete},
		order.StatusCancelled: {order.CommandCancel},
	}[status]
	var err error
	for _, cmd := range path {
		o, err = o.Apply(cmd, testNow.Add(-time.Hour))
		require.NoError(t, err)
	}
	return o
}

// ============================================
// Status Machine Tests
// ============================================

func TestStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusRequested, StatusApproved, true},
		{StatusRequested, StatusRejected, true},
		{StatusApproved, StatusCompleted, true},
		{StatusRequested, StatusCompleted, false},
		{StatusApproved, StatusRejected, true},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusRequested, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestClaim_ApproveThenComplete(t *testing.T) {
	c := &Claim{ID: "c1", Status: StatusRequested}

	approved, err := c.Approve("admin-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, "admin-1", approved.ProcessedBy)
	require.NotNil(t, approved.ProcessedAt)
	assert.Equal(t, StatusRequested, c.Status, "original is untouched")

	done, err := approved.Complete(testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = done.Complete(testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, apperr.KindStatusConflict, apperr.KindOf(err))
}

func TestClaim_Reject(t *testing.T) {
	c := &Claim{ID: "c1", Status: StatusRequested}

	_, err := c.Reject("admin-1", "  ", testNow)
	assert.ErrorIs(t, err, ErrRejectReasonRequired)

	_, err = c.Reject("", "no proof", testNow)
	assert.ErrorIs(t, err, ErrProcessorRequired)

	rejected, err := c.Reject("admin-1", "no proof of defect", testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	assert.Equal(t, "no proof of defect", rejected.RejectReason)
	assert.False(t, rejected.Status.Active())

	_, err = rejected.Approve("admin-1", testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved, err := c.Approve("admin-1", testNow)
	require.NoError(t, err)
	_, err = approved.Reject("admin-1", "changed my mind", testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition, "approved claims are only rejected by inspection")
}

func TestNewClaimNumber(t *testing.T) {
	assert.Regexp(t, `^CLM-20260310-[0-9A-F]{8}$`, NewClaimNumber(testNow))
}

// ============================================
// Eligibility Tests
// ============================================

func TestCheckEligibility_Matrix(t *testing.T) {
	allowed := map[Type][]order.Status{
		TypeCancel:        {order.StatusOrdered, order.StatusConfirmed},
		TypeReturn:        {order.StatusDelivered},
		TypeExchange:      {order.StatusDelivered},
		TypePartialRefund: {order.StatusDelivered},
	}

	for _, typ := range Types {
		for _, st := range order.Statuses {
			t.Run(string(typ)+"/"+string(st), func(t *testing.T) {
				err := CheckEligibility(orderIn(t, st), typ, nil)

				switch {
				case st == order.StatusCancelled:
					assert.ErrorIs(t, err, ErrAlreadyCancelled)
				case contains(allowed[typ], st):
					assert.NoError(t, err)
				default:
					assert.ErrorIs(t, err, ErrNotAllowedForStatus)
					assert.Equal(t, apperr.KindStatusConflict, apperr.KindOf(err))
				}
			})
		}
	}
}

func TestCheckEligibility_SecondCancel(t *testing.T) {
	o := orderIn(t, order.StatusConfirmed)
	existing := []*Claim{{ID: "c1", OrderID: o.ID, Type: TypeCancel, Status: StatusRequested, Quantity: 1}}

	err := CheckEligibility(o, TypeCancel, existing)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	existing[0].Status = StatusRejected
	assert.NoError(t, CheckEligibility(o, TypeCancel, existing))
}

func TestCheckEligibility_UnknownType(t *testing.T) {
	err := CheckEligibility(newOrder(t), Type("REPAIR"), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

// ============================================
// Claimable Tests
// ============================================

func TestRemainingClaimable(t *testing.T) {
	o := deliveredOrder(t)
	shirt := o.Items[0].ID
	socks := o.Items[1].ID

	existing := []*Claim{
		{ID: "a", OrderID: o.ID, OrderItemID: shirt, Quantity: 1, RefundAmount: 29900, Status: StatusApproved},
		{ID: "b", OrderID: o.ID, OrderItemID: socks, Quantity: 3, RefundAmount: 12000, Status: StatusRejected},
		{ID: "c", OrderID: o.ID, OrderItemID: socks, Quantity: 1, RefundAmount: 4000, Status: StatusRequested},
	}

	whole, err := RemainingClaimable(o, "", existing)
	require.NoError(t, err)
	assert.Equal(t, 3, whole.Quantity)
	assert.Equal(t, o.GrandTotal.SubFloor(33900), whole.Amount)

	item, err := RemainingClaimable(o, shirt, existing)
	require.NoError(t, err)
	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, money.Money(29900), item.Amount)

	item, err = RemainingClaimable(o, socks, existing)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.Equal(t, money.Money(8000), item.Amount)

	_, err = RemainingClaimable(o, "missing", existing)
	assert.ErrorIs(t, err, order.ErrItemNotFound)
}

func TestRemainingClaimable_RejectsForeignClaim(t *testing.T) {
	o := deliveredOrder(t)
	_, err := RemainingClaimable(o, "", []*Claim{{ID: "x", OrderID: "other", Quantity: 1, Status: StatusRequested}})
	assert.ErrorIs(t, err, ErrClaimOrderMismatch)
}

// ============================================
// Request Tests
// ============================================

func TestRequest_ReturnOneThenOverclaim(t *testing.T) {
	o := deliveredOrder(t)
	itemID := o.Items[0].ID

	c, s, err := Request(o, nil, nil, RequestParams{
		OrderItemID:  itemID,
		Type:         TypeReturn,
		Reason:       ReasonWrongSize,
		Quantity:     1,
		RefundAmount: 29900,
	}, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusRequested, c.Status)
	assert.Equal(t, money.Quantity(1), c.Quantity)
	assert.Equal(t, money.Money(29900), c.RefundAmount)
	assert.Equal(t, c.ID, s.ClaimID)

	_, _, err = Request(o, []*Claim{c}, nil, RequestParams{
		OrderItemID:  itemID,
		Type:         TypeReturn,
		Reason:       ReasonWrongSize,
		Quantity:     2,
		RefundAmount: 29900,
	}, testNow)
	assert.ErrorIs(t, err, ErrQuantityExceedsClaimable)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRequest_PartialRefundSplitsBySnapshot(t *testing.T) {
	o := deliveredOrder(t)
	usage, err := discount.NewUsage(o.ID, o.MemberID, discount.UsageInput{
		PolicyID:      "policy-spring",
		PlatformRatio: decimal.RequireFromString("0.3"),
		SellerRatio:   decimal.RequireFromString("0.7"),
	}, 5000, 50000, testNow.Add(-72*time.Hour))
	require.NoError(t, err)

	c, s, err := Request(o, nil, usage, RequestParams{
		Type:         TypePartialRefund,
		Reason:       ReasonDamagedInTransit,
		Quantity:     1,
		RefundAmount: 10000,
	}, testNow)

	require.NoError(t, err)
	assert.True(t, c.WholeOrder())
	assert.Equal(t, money.Money(3000), s.PlatformCost)
	assert.Equal(t, money.Money(7000), s.SellerCost)
	assert.Equal(t, usage.ID, s.DiscountUsageID)
}

func TestRequest_NoUsageFallsBackToSeller(t *testing.T) {
	o := deliveredOrder(t)

	_, s, err := Request(o, nil, nil, RequestParams{
		Type:         TypePartialRefund,
		Reason:       ReasonOther,
		Quantity:     1,
		RefundAmount: 10000,
	}, testNow)

	require.NoError(t, err)
	assert.Equal(t, money.Zero, s.PlatformCost)
	assert.Equal(t, money.Money(10000), s.SellerCost)
	assert.Empty(t, s.DiscountUsageID)
}

func TestRequest_ExchangeHasNoRefund(t *testing.T) {
	o := deliveredOrder(t)

	c, s, err := Request(o, nil, nil, RequestParams{
		OrderItemID:  o.Items[0].ID,
		Type:         TypeExchange,
		Reason:       ReasonWrongSize,
		Quantity:     1,
		RefundAmount: 29900,
	}, testNow)

	require.NoError(t, err)
	assert.Equal(t, money.Zero, c.RefundAmount)
	assert.Equal(t, money.Zero, s.PlatformCost)
	assert.Equal(t, money.Zero, s.SellerCost)
}

func TestRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		params  RequestParams
		wantErr error
	}{
		{
			name:    "zero quantity",
			params:  RequestParams{Type: TypeReturn, Reason: ReasonDefectiveProduct, Quantity: 0, RefundAmount: 100},
			wantErr: money.ErrInvalidQuantity,
		},
		{
			name:    "negative amount",
			params:  RequestParams{Type: TypeReturn, Reason: ReasonDefectiveProduct, Quantity: 1, RefundAmount: -1},
			wantErr: money.ErrNegativeAmount,
		},
		{
			name:    "zero amount",
			params:  RequestParams{Type: TypePartialRefund, Reason: ReasonDefectiveProduct, Quantity: 1},
			wantErr: ErrInvalidRefundAmount,
		},
		{
			name:    "amount over grand total",
			params:  RequestParams{Type: TypeReturn, Reason: ReasonDefectiveProduct, Quantity: 1, RefundAmount: 1_000_000},
			wantErr: ErrAmountExceedsClaimable,
		},
		{
			name:    "unknown reason",
			params:  RequestParams{Type: TypeReturn, Reason: "BORED", Quantity: 1, RefundAmount: 100},
			wantErr: ErrUnknownReason,
		},
	}

	o := deliveredOrder(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Request(o, nil, nil, tt.params, testNow)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}

func TestRequest_ItemAmountBoundedByLine(t *testing.T) {
	o := deliveredOrder(t)

	_, _, err := Request(o, nil, nil, RequestParams{
		OrderItemID:  o.Items[1].ID,
		Type:         TypeReturn,
		Reason:       ReasonChangeOfMind,
		Quantity:     1,
		RefundAmount: 12001,
	}, testNow)

	assert.ErrorIs(t, err, ErrAmountExceedsClaimable)
}

func contains(list []order.Status, s order.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
