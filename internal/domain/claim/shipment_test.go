package claim

import (
	"testing"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedClaim(t *testing.T, typ Type, reason Reason) *Claim {
	t.Helper()
	o := deliveredOrder(t)
	refund := int64(10000)
	if typ == TypeExchange {
		refund = 0
	}
	c, _, err := Request(o, nil, nil, RequestParams{
		OrderItemID:  o.Items[0].ID,
		Type:         typ,
		Reason:       reason,
		Quantity:     1,
		RefundAmount: refund,
	}, testNow)
	require.NoError(t, err)
	approved, err := c.Approve("admin-1", testNow)
	require.NoError(t, err)
	return approved
}

func receivedClaim(t *testing.T, typ Type, result Inspection) *Claim {
	t.Helper()
	c := approvedClaim(t, typ, ReasonWrongSize)
	c, err := c.RegisterReturnShipping("CJ", "6891-2210", testNow)
	require.NoError(t, err)
	c, err = c.ConfirmReturnReceived("admin-1", result, "tag removed", testNow.Add(48*time.Hour))
	require.NoError(t, err)
	return c
}

// ============================================
// Return Shipment Tests
// ============================================

func TestRequest_OpensReturnLegForReturnAndExchange(t *testing.T) {
	tests := []struct {
		typ    Type
		reason Reason
		payer  FeePayer
	}{
		{TypeReturn, ReasonChangeOfMind, FeePayerBuyer},
		{TypeReturn, ReasonDefectiveProduct, FeePayerSeller},
		{TypeExchange, ReasonWrongSize, FeePayerBuyer},
		{TypeExchange, ReasonWrongItemDelivered, FeePayerSeller},
	}

	for _, tt := range tests {
		t.Run(string(tt.typ)+"/"+string(tt.reason), func(t *testing.T) {
			c := approvedClaim(t, tt.typ, tt.reason)
			require.NotNil(t, c.Return)
			assert.Equal(t, ReturnPending, c.Return.Status)
			assert.Equal(t, tt.payer, c.Return.FeePaidBy)
		})
	}

	o := deliveredOrder(t)
	c, _, err := Request(o, nil, nil, RequestParams{Type: TypePartialRefund, Reason: ReasonOther, Quantity: 1, RefundAmount: 500}, testNow)
	require.NoError(t, err)
	assert.Nil(t, c.Return)
}

func TestReturn_PickupThenTransitThenPassed(t *testing.T) {
	c := approvedClaim(t, TypeReturn, ReasonChangeOfMind)

	_, err := c.ScheduleReturnPickup(testNow.Add(-time.Minute), "Seoul", testNow)
	assert.ErrorIs(t, err, ErrInvalidPickupTime)
	_, err = c.ScheduleReturnPickup(testNow.Add(time.Hour), " ", testNow)
	assert.ErrorIs(t, err, ErrPickupAddressRequired)

	scheduled, err := c.ScheduleReturnPickup(testNow.Add(24*time.Hour), "Seoul", testNow)
	require.NoError(t, err)
	assert.Equal(t, ReturnPickupScheduled, scheduled.Return.Status)
	assert.Equal(t, ReturnPending, c.Return.Status, "original is untouched")

	_, err = scheduled.ScheduleReturnPickup(testNow.Add(48*time.Hour), "Busan", testNow)
	assert.ErrorIs(t, err, ErrInvalidReturnStep)

	_, err = scheduled.ConfirmReturnReceived("admin-1", InspectionPassed, "", testNow)
	assert.ErrorIs(t, err, ErrInvalidReturnStep, "goods must be in transit first")

	shipped, err := scheduled.RegisterReturnShipping("CJ", "6891-2210", testNow)
	require.NoError(t, err)
	assert.Equal(t, ReturnInTransit, shipped.Return.Status)
	assert.Equal(t, "6891-2210", shipped.Return.TrackingNumber)

	_, err = shipped.Complete(testNow)
	assert.ErrorIs(t, err, ErrReturnNotReceived)
	assert.Equal(t, apperr.KindStatusConflict, apperr.KindOf(err))

	received, err := shipped.ConfirmReturnReceived("admin-1", InspectionPassed, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, received.Status)
	assert.Equal(t, ReturnReceived, received.Return.Status)
	require.NotNil(t, received.Return.ReceivedAt)

	done, err := received.Complete(testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestReturn_BuyerShipsWithoutPickup(t *testing.T) {
	c := approvedClaim(t, TypeReturn, ReasonChangeOfMind)

	_, err := c.RegisterReturnShipping("", "6891", testNow)
	assert.ErrorIs(t, err, ErrTrackingRequired)

	shipped, err := c.RegisterReturnShipping("Hanjin", "4455", testNow)
	require.NoError(t, err)
	assert.Equal(t, ReturnInTransit, shipped.Return.Status)
	assert.Nil(t, shipped.Return.PickupAt)

	corrected, err := shipped.RegisterReturnShipping("Hanjin", "4456", testNow)
	require.NoError(t, err)
	assert.Equal(t, "4456", corrected.Return.TrackingNumber)
}

func TestReturn_FailedInspectionRejects(t *testing.T) {
	c := receivedClaim(t, TypeReturn, InspectionFailed)

	assert.Equal(t, StatusRejected, c.Status)
	assert.Equal(t, "inspection failed: tag removed", c.RejectReason)
	assert.Equal(t, "admin-1", c.ProcessedBy)
	assert.Equal(t, InspectionFailed, c.Return.Inspection)
	assert.False(t, c.Status.Active(), "rejection releases the claimable quantity")

	_, err := c.Complete(testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReturn_StepsNeedApprovedReturnClaim(t *testing.T) {
	o := deliveredOrder(t)
	requested, _, err := Request(o, nil, nil, RequestParams{
		OrderItemID: o.Items[0].ID, Type: TypeReturn, Reason: ReasonWrongSize, Quantity: 1, RefundAmount: 1000,
	}, testNow)
	require.NoError(t, err)

	_, err = requested.RegisterReturnShipping("CJ", "1", testNow)
	assert.ErrorIs(t, err, ErrClaimNotApproved)

	refund := approvedClaim(t, TypePartialRefund, ReasonOther)
	_, err = refund.RegisterReturnShipping("CJ", "1", testNow)
	assert.ErrorIs(t, err, ErrReturnNotRequired)

	_, err = approvedClaim(t, TypeReturn, ReasonWrongSize).
		ConfirmReturnReceived("admin-1", Inspection("MAYBE"), "", testNow)
	assert.ErrorIs(t, err, ErrUnknownInspection)

	done, err := refund.Complete(testNow)
	require.NoError(t, err, "claims without goods complete directly")
	assert.Equal(t, StatusCompleted, done.Status)
}

// ============================================
// Exchange Shipment Tests
// ============================================

func TestExchange_ReplacementAfterPassedInspection(t *testing.T) {
	pending := approvedClaim(t, TypeExchange, ReasonWrongSize)
	_, err := pending.RegisterExchangeShipping("CJ", "7001", testNow)
	assert.ErrorIs(t, err, ErrReturnNotReceived)

	c := receivedClaim(t, TypeExchange, InspectionPassed)

	_, err = c.Complete(testNow)
	assert.ErrorIs(t, err, ErrExchangeNotDelivered)
	_, err = c.ConfirmExchangeDelivered(testNow)
	assert.ErrorIs(t, err, ErrExchangeNotShipped)

	shipped, err := c.RegisterExchangeShipping("CJ", "7001", testNow)
	require.NoError(t, err)
	require.NotNil(t, shipped.Exchange)
	assert.Nil(t, c.Exchange, "original is untouched")

	_, err = shipped.RegisterExchangeShipping("CJ", "7002", testNow)
	assert.ErrorIs(t, err, ErrInvalidReturnStep)

	delivered, err := shipped.ConfirmExchangeDelivered(testNow.Add(24 * time.Hour))
	require.NoError(t, err)
	require.NotNil(t, delivered.Exchange.DeliveredAt)
	assert.Nil(t, shipped.Exchange.DeliveredAt, "original is untouched")

	done, err := delivered.Complete(testNow.Add(25 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
}

func TestExchange_RejectsOtherTypes(t *testing.T) {
	c := receivedClaim(t, TypeReturn, InspectionPassed)

	_, err := c.RegisterExchangeShipping("CJ", "7001", testNow)
	assert.ErrorIs(t, err, ErrNotExchange)
	_, err = c.ConfirmExchangeDelivered(testNow)
	assert.ErrorIs(t, err, ErrNotExchange)
}
