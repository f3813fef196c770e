package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
)

const (
	forUpdate = " FOR UPDATE"
	forShare  = " FOR SHARE"
)

// checkVersion turns a zero-row versioned UPDATE into a concurrency conflict.
func checkVersion(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save %s %s: %w", what, id, err)
	}
	if n == 0 {
		return apperr.Wrapf(ErrVersionConflict, "%s %s was modified concurrently", what, id)
	}
	return nil
}

// ============================================
// Orders
// ============================================

const orderColumns = `id, order_number, member_id, seller_id, status, items, shipping, subtotal, discount_amount, shipping_fee, grand_total, ordered_at, confirmed_at, shipped_at, delivered_at, completed_at, cancelled_at, updated_at, version`

type pgOrders struct{ tx *sql.Tx }

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o                                               order.Order
		items, shipping                                 []byte
		confirmed, shipped, delivered, completed, cancl sql.NullTime
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.MemberID, &o.SellerID, &o.Status, &items, &shipping,
		&o.Subtotal, &o.DiscountAmount, &o.ShippingFee, &o.GrandTotal,
		&o.OrderedAt, &confirmed, &shipped, &delivered, &completed, &cancl, &o.UpdatedAt, &o.Version,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("decode shipping of order %s: %w", o.ID, err)
	}
	o.ConfirmedAt = timePtr(confirmed)
	o.ShippedAt = timePtr(shipped)
	o.DeliveredAt = timePtr(delivered)
	o.CompletedAt = timePtr(completed)
	o.CancelledAt = timePtr(cancl)
	return &o, nil
}

func (r pgOrders) load(ctx context.Context, where, arg, lockClause string) (*order.Order, error) {
	row := r.tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE "+where+" = $1"+lockClause, arg)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", arg, translate(err))
	}
	return o, nil
}

func (r pgOrders) LoadExclusive(ctx context.Context, id string) (*order.Order, error) {
	return r.load(ctx, "id", id, forUpdate)
}

func (r pgOrders) LoadShared(ctx context.Context, id string) (*order.Order, error) {
	return r.load(ctx, "id", id, forShare)
}

func (r pgOrders) LoadVersioned(ctx context.Context, id string) (*order.Order, error) {
	return r.load(ctx, "id", id, "")
}

func (r pgOrders) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.load(ctx, "order_number", number, "")
}

func (r pgOrders) Insert(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("encode shipping: %w", err)
	}

	_, err = r.tx.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, 1)`,
		o.ID, o.OrderNumber, o.MemberID, o.SellerID, string(o.Status), items, shipping,
		o.Subtotal.Int64(), o.DiscountAmount.Int64(), o.ShippingFee.Int64(), o.GrandTotal.Int64(),
		o.OrderedAt, o.ConfirmedAt, o.ShippedAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order %s: %w", o.ID, translate(err))
	}
	o.Version = 1
	return nil
}

func (r pgOrders) Save(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("encode shipping: %w", err)
	}

	res, err := r.tx.ExecContext(ctx,
		`UPDATE orders SET status = $2, items = $3, shipping = $4, subtotal = $5, discount_amount = $6,
		 shipping_fee = $7, grand_total = $8, confirmed_at = $9, shipped_at = $10, delivered_at = $11,
		 completed_at = $12, cancelled_at = $13, updated_at = $14, version = version + 1
		 WHERE id = $1 AND version = $15`,
		o.ID, string(o.Status), items, shipping, o.Subtotal.Int64(), o.DiscountAmount.Int64(),
		o.ShippingFee.Int64(), o.GrandTotal.Int64(), o.ConfirmedAt, o.ShippedAt, o.DeliveredAt,
		o.CompletedAt, o.CancelledAt, o.UpdatedAt, o.Version,
	)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, translate(err))
	}
	if err := checkVersion(res, "order", o.ID); err != nil {
		return err
	}
	o.Version++
	return nil
}

// ============================================
// Claims
// ============================================

const claimColumns = `id, claim_number, order_id, order_item_id, type, reason, note, quantity, refund_amount, status, requested_by, processed_by, processed_at, reject_reason, requested_at, completed_at, updated_at, version, return_shipment, exchange_shipment`

type pgClaims struct{ tx *sql.Tx }

func scanClaim(row rowScanner) (*claim.Claim, error) {
	var (
		c                    claim.Claim
		processed, completed sql.NullTime
		ret, exchange        []byte
	)
	err := row.Scan(
		&c.ID, &c.ClaimNumber, &c.OrderID, &c.OrderItemID, &c.Type, &c.Reason, &c.Note,
		&c.Quantity, &c.RefundAmount, &c.Status, &c.RequestedBy, &c.ProcessedBy, &processed,
		&c.RejectReason, &c.RequestedAt, &completed, &c.UpdatedAt, &c.Version, &ret, &exchange,
	)
	if err != nil {
		return nil, err
	}
	c.ProcessedAt = timePtr(processed)
	c.CompletedAt = timePtr(completed)
	if len(ret) > 0 {
		if err := json.Unmarshal(ret, &c.Return); err != nil {
			return nil, fmt.Errorf("decode return shipment of claim %s: %w", c.ID, err)
		}
	}
	if len(exchange) > 0 {
		if err := json.Unmarshal(exchange, &c.Exchange); err != nil {
			return nil, fmt.Errorf("decode exchange shipment of claim %s: %w", c.ID, err)
		}
	}
	return &c, nil
}

// encodeShipments returns the claim's shipping legs as JSONB, or SQL NULL when absent.
func encodeShipments(c *claim.Claim) (ret, exchange any, err error) {
	if c.Return != nil {
		b, err := json.Marshal(c.Return)
		if err != nil {
			return nil, nil, fmt.Errorf("encode return shipment: %w", err)
		}
		ret = b
	}
	if c.Exchange != nil {
		b, err := json.Marshal(c.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("encode exchange shipment: %w", err)
		}
		exchange = b
	}
	return ret, exchange, nil
}

func (r pgClaims) load(ctx context.Context, id, lockClause string) (*claim.Claim, error) {
	row := r.tx.QueryRowContext(ctx, "SELECT "+claimColumns+" FROM claims WHERE id = $1"+lockClause, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrapf(claim.ErrClaimNotFound, "claim %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load claim %s: %w", id, translate(err))
	}
	return c, nil
}

func (r pgClaims) LoadExclusive(ctx context.Context, id string) (*claim.Claim, error) {
	return r.load(ctx, id, forUpdate)
}

func (r pgClaims) LoadVersioned(ctx context.Context, id string) (*claim.Claim, error) {
	return r.load(ctx, id, "")
}

func (r pgClaims) ListByOrder(ctx context.Context, orderID string) ([]*claim.Claim, error) {
	rows, err := r.tx.QueryContext(ctx,
		"SELECT "+claimColumns+" FROM claims WHERE order_id = $1 ORDER BY requested_at ASC, id ASC", orderID)
	if err != nil {
		return nil, fmt.Errorf("list claims of order %s: %w", orderID, translate(err))
	}
	defer rows.Close()

	claims := make([]*claim.Claim, 0)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

func (r pgClaims) Insert(ctx context.Context, c *claim.Claim) error {
	ret, exchange, err := encodeShipments(c)
	if err != nil {
		return err
	}
	_, err = r.tx.ExecContext(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 1, $18, $19)`,
		c.ID, c.ClaimNumber, c.OrderID, c.OrderItemID, string(c.Type), string(c.Reason), c.Note,
		c.Quantity.Int(), c.RefundAmount.Int64(), string(c.Status), c.RequestedBy, c.ProcessedBy, c.ProcessedAt,
		c.RejectReason, c.RequestedAt, c.CompletedAt, c.UpdatedAt, ret, exchange,
	)
	if err != nil {
		return fmt.Errorf("insert claim %s: %w", c.ID, translate(err))
	}
	c.Version = 1
	return nil
}

func (r pgClaims) Save(ctx context.Context, c *claim.Claim) error {
	ret, exchange, err := encodeShipments(c)
	if err != nil {
		return err
	}
	res, err := r.tx.ExecContext(ctx,
		`UPDATE claims SET status = $2, processed_by = $3, processed_at = $4, reject_reason = $5,
		 completed_at = $6, updated_at = $7, return_shipment = $9, exchange_shipment = $10, version = version + 1
		 WHERE id = $1 AND version = $8`,
		c.ID, string(c.Status), c.ProcessedBy, c.ProcessedAt, c.RejectReason, c.CompletedAt, c.UpdatedAt, c.Version,
		ret, exchange,
	)
	if err != nil {
		return fmt.Errorf("save claim %s: %w", c.ID, translate(err))
	}
	if err := checkVersion(res, "claim", c.ID); err != nil {
		return err
	}
	c.Version++
	return nil
}

// ============================================
// Settlements
// ============================================

type pgSettlements struct{ tx *sql.Tx }

func (r pgSettlements) Insert(ctx context.Context, s *claim.Settlement) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO settlements (id, claim_id, order_id, discount_usage_id, refund_amount, platform_ratio,
		 seller_ratio, platform_cost, seller_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ID, s.ClaimID, s.OrderID, s.DiscountUsageID, s.RefundAmount.Int64(), s.PlatformRatio,
		s.SellerRatio, s.PlatformCost.Int64(), s.SellerCost.Int64(), s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert settlement for claim %s: %w", s.ClaimID, translate(err))
	}
	return nil
}

func (r pgSettlements) FindByClaim(ctx context.Context, claimID string) (*claim.Settlement, error) {
	var s claim.Settlement
	err := r.tx.QueryRowContext(ctx,
		`SELECT id, claim_id, order_id, discount_usage_id, refund_amount, platform_ratio, seller_ratio,
		 platform_cost, seller_cost, created_at
		 FROM settlements WHERE claim_id = $1`, claimID,
	).Scan(&s.ID, &s.ClaimID, &s.OrderID, &s.DiscountUsageID, &s.RefundAmount, &s.PlatformRatio,
		&s.SellerRatio, &s.PlatformCost, &s.SellerCost, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrapf(claim.ErrSettlementNotFound, "settlement for claim %s not found", claimID)
	}
	if err != nil {
		return nil, fmt.Errorf("load settlement for claim %s: %w", claimID, translate(err))
	}
	return &s, nil
}

// ============================================
// Discount usages
// ============================================

type pgDiscounts struct{ tx *sql.Tx }

func (r pgDiscounts) Insert(ctx context.Context, u *discount.Usage) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO discount_usages (id, order_id, policy_id, member_id, applied_amount, original_amount,
		 platform_ratio, seller_ratio, platform_cost, seller_cost, used_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		u.ID, u.OrderID, u.PolicyID, u.MemberID, u.AppliedAmount.Int64(), u.OriginalAmount.Int64(),
		u.CostShare.PlatformRatio, u.CostShare.SellerRatio, u.PlatformCost.Int64(), u.SellerCost.Int64(), u.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert discount usage for order %s: %w", u.OrderID, translate(err))
	}
	return nil
}

func (r pgDiscounts) FindByOrder(ctx context.Context, orderID string) (*discount.Usage, error) {
	var u discount.Usage
	err := r.tx.QueryRowContext(ctx,
		`SELECT id, order_id, policy_id, member_id, applied_amount, original_amount, platform_ratio,
		 seller_ratio, platform_cost, seller_cost, used_at
		 FROM discount_usages WHERE order_id = $1`, orderID,
	).Scan(&u.ID, &u.OrderID, &u.PolicyID, &u.MemberID, &u.AppliedAmount, &u.OriginalAmount,
		&u.CostShare.PlatformRatio, &u.CostShare.SellerRatio, &u.PlatformCost, &u.SellerCost, &u.UsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load discount usage for order %s: %w", orderID, translate(err))
	}
	return &u, nil
}

// ============================================
// Members
// ============================================

const memberColumns = `id, email, password_hash, name, role, status, created_at, updated_at, withdrawn_at, version`

type pgMembers struct{ tx *sql.Tx }

func (r pgMembers) load(ctx context.Context, where, arg, lockClause string) (*member.Member, error) {
	var (
		m         member.Member
		withdrawn sql.NullTime
	)
	err := r.tx.QueryRowContext(ctx, "SELECT "+memberColumns+" FROM members WHERE "+where+" = $1"+lockClause, arg).
		Scan(&m.ID, &m.Email, &m.PasswordHash, &m.Name, &m.Role, &m.Status, &m.CreatedAt, &m.UpdatedAt, &withdrawn, &m.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrapf(member.ErrMemberNotFound, "member %s not found", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("load member %s: %w", arg, translate(err))
	}
	m.WithdrawnAt = timePtr(withdrawn)
	return &m, nil
}

func (r pgMembers) LoadExclusive(ctx context.Context, id string) (*member.Member, error) {
	return r.load(ctx, "id", id, forUpdate)
}

func (r pgMembers) LoadVersioned(ctx context.Context, id string) (*member.Member, error) {
	return r.load(ctx, "id", id, "")
}

func (r pgMembers) FindByEmail(ctx context.Context, email string) (*member.Member, error) {
	return r.load(ctx, "lower(email)", strings.ToLower(strings.TrimSpace(email)), "")
}

func (r pgMembers) Insert(ctx context.Context, m *member.Member) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO members (`+memberColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`,
		m.ID, m.Email, m.PasswordHash, m.Name, m.Role, string(m.Status), m.CreatedAt, m.UpdatedAt, m.WithdrawnAt,
	)
	if err != nil {
		return fmt.Errorf("insert member %s: %w", m.ID, translate(err))
	}
	m.Version = 1
	return nil
}

func (r pgMembers) Save(ctx context.Context, m *member.Member) error {
	res, err := r.tx.ExecContext(ctx,
		`UPDATE members SET name = $2, role = $3, status = $4, updated_at = $5, withdrawn_at = $6,
		 version = version + 1
		 WHERE id = $1 AND version = $7`,
		m.ID, m.Name, m.Role, string(m.Status), m.UpdatedAt, m.WithdrawnAt, m.Version,
	)
	if err != nil {
		return fmt.Errorf("save member %s: %w", m.ID, translate(err))
	}
	if err := checkVersion(res, "member", m.ID); err != nil {
		return err
	}
	m.Version++
	return nil
}
