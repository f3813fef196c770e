package query

import (
	"context"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/infrastructure/store"
)

// Handler answers reads straight from the transactional store. Orders and
// claims belonging to another member are reported as not found.
type Handler struct {
	store store.Runner
}

func NewHandler(runner store.Runner) *Handler {
	return &Handler{store: runner}
}

// Orders
func (h *Handler) GetOrder(ctx context.Context, v Viewer, orderID string) (*order.Order, error) {
	var o *order.Order
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = visibleOrder(ctx, tx, v, orderID)
		return err
	})
	return o, err
}

func (h *Handler) GetOrderByNumber(ctx context.Context, v Viewer, number string) (*order.Order, error) {
	var o *order.Order
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		found, err := tx.Orders().FindByNumber(ctx, number)
		if err != nil {
			return err
		}
		if !v.owns(found) {
			return apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", number)
		}
		o = found
		return nil
	})
	return o, err
}

// Claims
func (h *Handler) GetClaim(ctx context.Context, v Viewer, claimID string) (*ClaimDetail, error) {
	var detail *ClaimDetail
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		c, err := tx.Claims().LoadVersioned(ctx, claimID)
		if err != nil {
			return err
		}
		if _, err := visibleOrder(ctx, tx, v, c.OrderID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Wrapf(claim.ErrClaimNotFound, "claim %s not found", claimID)
			}
			return err
		}
		st, err := tx.Settlements().FindByClaim(ctx, c.ID)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}
		detail = &ClaimDetail{Claim: c, Settlement: st}
		return nil
	})
	return detail, err
}

// ListClaimsByOrder returns the order's claims oldest first.
func (h *Handler) ListClaimsByOrder(ctx context.Context, v Viewer, orderID string) ([]*claim.Claim, error) {
	var claims []*claim.Claim
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := visibleOrder(ctx, tx, v, orderID); err != nil {
			return err
		}
		var err error
		claims, err = tx.Claims().ListByOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []*claim.Claim{}
	}
	return claims, nil
}

func (h *Handler) GetSettlement(ctx context.Context, v Viewer, claimID string) (*claim.Settlement, error) {
	detail, err := h.GetClaim(ctx, v, claimID)
	if err != nil {
		return nil, err
	}
	if detail.Settlement == nil {
		return nil, apperr.Wrapf(claim.ErrSettlementNotFound, "no settlement for claim %s", claimID)
	}
	return detail.Settlement, nil
}

// ClaimableSummary reads the order under a shared lock so no claim or
// transition can commit between loading the order and its claims.
func (h *Handler) ClaimableSummary(ctx context.Context, v Viewer, orderID, itemID string) (*ClaimableSummary, error) {
	var summary *ClaimableSummary
	err := h.store.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().LoadShared(ctx, orderID)
		if err != nil {
			return err
		}
		if !v.owns(o) {
			return apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", orderID)
		}
		existing, err := tx.Claims().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		remaining, err := claim.RemainingClaimable(o, itemID, existing)
		if err != nil {
			return err
		}

		allowed := []claim.Type{}
		for _, t := range claim.Types {
			if claim.CheckEligibility(o, t, existing) == nil {
				allowed = append(allowed, t)
			}
		}
		summary = &ClaimableSummary{
			OrderID:      o.ID,
			OrderStatus:  o.Status,
			OrderItemID:  itemID,
			Quantity:     remaining.Quantity,
			Amount:       remaining.Amount,
			AllowedTypes: allowed,
		}
		return nil
	})
	return summary, err
}

func visibleOrder(ctx context.Context, tx store.Tx, v Viewer, orderID string) (*order.Order, error) {
	o, err := tx.Orders().LoadVersioned(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !v.owns(o) {
		return nil, apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", orderID)
	}
	return o, nil
}
