package store

import (
	"context"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/event"
)

var (
	ErrDuplicate       = apperr.StatusConflict("DUPLICATE_RECORD", "record already exists")
	ErrVersionConflict = apperr.ConcurrencyConflict("record was modified concurrently", nil)
)

// Runner executes fn in one transaction. Locks taken through tx are held until
// fn returns; writes become visible only if fn returns nil.
type Runner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the repositories bound to one transaction.
type Tx interface {
	Orders() OrderRepository
	Claims() ClaimRepository
	Settlements() SettlementRepository
	Discounts() DiscountRepository
	Members() MemberRepository
}

// OrderRepository loads orders under one of three concurrency contracts:
// LoadExclusive blocks other writers and readers-for-share, LoadShared blocks
// writers only, LoadVersioned takes no lock and relies on Save's version check.
type OrderRepository interface {
	LoadExclusive(ctx context.Context, id string) (*order.Order, error)
	LoadShared(ctx context.Context, id string) (*order.Order, error)
	LoadVersioned(ctx context.Context, id string) (*order.Order, error)
	FindByNumber(ctx context.Context, number string) (*order.Order, error)
	Insert(ctx context.Context, o *order.Order) error
	// Save replaces the stored order if its version still equals o.Version,
	// then increments o.Version.
	Save(ctx context.Context, o *order.Order) error
}

type ClaimRepository interface {
	LoadExclusive(ctx context.Context, id string) (*claim.Claim, error)
	LoadVersioned(ctx context.Context, id string) (*claim.Claim, error)
	ListByOrder(ctx context.Context, orderID string) ([]*claim.Claim, error)
	Insert(ctx context.Context, c *claim.Claim) error
	Save(ctx context.Context, c *claim.Claim) error
}

type SettlementRepository interface {
	Insert(ctx context.Context, s *claim.Settlement) error
	FindByClaim(ctx context.Context, claimID string) (*claim.Settlement, error)
}

// DiscountRepository stores cost-share snapshots. FindByOrder returns nil, nil
// when no discount was applied.
type DiscountRepository interface {
	Insert(ctx context.Context, u *discount.Usage) error
	FindByOrder(ctx context.Context, orderID string) (*discount.Usage, error)
}

type MemberRepository interface {
	LoadExclusive(ctx context.Context, id string) (*member.Member, error)
	LoadVersioned(ctx context.Context, id string) (*member.Member, error)
	FindByEmail(ctx context.Context, email string) (*member.Member, error)
	Insert(ctx context.Context, m *member.Member) error
	Save(ctx context.Context, m *member.Member) error
}

// EventLog is the append-only record of published domain events.
type EventLog interface {
	// Append stores e unless an event with the same id exists; it reports whether e was new.
	Append(ctx context.Context, e event.Envelope) (bool, error)
	ListByAggregate(ctx context.Context, aggregateID string) ([]event.Envelope, error)
}

func orderKey(id string) string  { return "order:" + id }
func claimKey(id string) string  { return "claim:" + id }
func memberKey(id string) string { return "member:" + id }
