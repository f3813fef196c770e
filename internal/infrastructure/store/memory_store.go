package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/example/ec-backoffice/internal/domain/claim"
	"github.com/example/ec-backoffice/internal/domain/discount"
	"github.com/example/ec-backoffice/internal/domain/member"
	"github.com/example/ec-backoffice/internal/domain/order"
	"github.com/example/ec-backoffice/internal/lock"
)

// MemoryStore is an in-process Runner. Row locks are emulated with a
// KeyedLocker; writes are buffered per transaction and applied on commit after
// re-checking every expected version.
type MemoryStore struct {
	mu    sync.RWMutex
	locks *lock.KeyedLocker

	orders       map[string]*order.Order
	orderNumbers map[string]string
	claims       map[string]*claim.Claim
	settlements  map[string]*claim.Settlement // by claim id
	usages       map[string]*discount.Usage   // by order id
	members      map[string]*member.Member
	memberEmails map[string]string
}

func NewMemoryStore(locks *lock.KeyedLocker) *MemoryStore {
	return &MemoryStore{
		locks:        locks,
		orders:       make(map[string]*order.Order),
		orderNumbers: make(map[string]string),
		claims:       make(map[string]*claim.Claim),
		settlements:  make(map[string]*claim.Settlement),
		usages:       make(map[string]*discount.Usage),
		members:      make(map[string]*member.Member),
		memberEmails: make(map[string]string),
	}
}

func (s *MemoryStore) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		s:       s,
		held:    make(map[string]heldLock),
		orders:  make(map[string]*pending[*order.Order]),
		claims:  make(map[string]*pending[*claim.Claim]),
		members: make(map[string]*pending[*member.Member]),
	}
	defer tx.releaseAll()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

type heldLock struct {
	mode    lock.Mode
	release func()
}

type pending[T any] struct {
	v      T
	expect int
	insert bool
}

type memTx struct {
	s    *MemoryStore
	held map[string]heldLock

	orders      map[string]*pending[*order.Order]
	claims      map[string]*pending[*claim.Claim]
	members     map[string]*pending[*member.Member]
	settlements []*claim.Settlement
	usages      []*discount.Usage
}

func (tx *memTx) Orders() OrderRepository           { return memOrders{tx} }
func (tx *memTx) Claims() ClaimRepository           { return memClaims{tx} }
func (tx *memTx) Settlements() SettlementRepository { return memSettlements{tx} }
func (tx *memTx) Discounts() DiscountRepository     { return memDiscounts{tx} }
func (tx *memTx) Members() MemberRepository         { return memMembers{tx} }

// lock acquires key once per transaction. A shared hold is upgraded by
// releasing it before waiting for the exclusive one.
func (tx *memTx) lock(ctx context.Context, key string, mode lock.Mode) error {
	if h, ok := tx.held[key]; ok {
		if h.mode >= mode {
			return nil
		}
		h.release()
		delete(tx.held, key)
	}
	release, err := tx.s.locks.Acquire(ctx, key, mode)
	if err != nil {
		return err
	}
	tx.held[key] = heldLock{mode: mode, release: release}
	return nil
}

func (tx *memTx) releaseAll() {
	for key, h := range tx.held {
		h.release()
		delete(tx.held, key)
	}
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range tx.orders {
		cur, exists := s.orders[id]
		if p.insert {
			if _, taken := s.orderNumbers[p.v.OrderNumber]; exists || taken {
				return apperr.Wrapf(ErrDuplicate, "order %s already exists", id)
			}
			continue
		}
		if !exists || cur.Version != p.expect {
			return apperr.Wrapf(ErrVersionConflict, "order %s was modified concurrently", id)
		}
	}
	for id, p := range tx.claims {
		cur, exists := s.claims[id]
		if p.insert {
			if exists {
				return apperr.Wrapf(ErrDuplicate, "claim %s already exists", id)
			}
			continue
		}
		if !exists || cur.Version != p.expect {
			return apperr.Wrapf(ErrVersionConflict, "claim %s was modified concurrently", id)
		}
	}
	for id, p := range tx.members {
		cur, exists := s.members[id]
		if p.insert {
			if _, taken := s.memberEmails[strings.ToLower(p.v.Email)]; exists || taken {
				return apperr.Wrapf(ErrDuplicate, "member %s already exists", p.v.Email)
			}
			continue
		}
		if !exists || cur.Version != p.expect {
			return apperr.Wrapf(ErrVersionConflict, "member %s was modified concurrently", id)
		}
	}
	for _, st := range tx.settlements {
		if _, exists := s.settlements[st.ClaimID]; exists {
			return apperr.Wrapf(ErrDuplicate, "settlement for claim %s already exists", st.ClaimID)
		}
	}
	for _, u := range tx.usages {
		if _, exists := s.usages[u.OrderID]; exists {
			return apperr.Wrapf(ErrDuplicate, "discount usage for order %s already exists", u.OrderID)
		}
	}

	for id, p := range tx.orders {
		s.orders[id] = p.v
		s.orderNumbers[p.v.OrderNumber] = id
	}
	for id, p := range tx.claims {
		s.claims[id] = p.v
	}
	for id, p := range tx.members {
		s.members[id] = p.v
		s.memberEmails[strings.ToLower(p.v.Email)] = id
	}
	for _, st := range tx.settlements {
		s.settlements[st.ClaimID] = st
	}
	for _, u := range tx.usages {
		s.usages[u.OrderID] = u
	}
	return nil
}

// ============================================
// Orders
// ============================================

type memOrders struct{ tx *memTx }

func (r memOrders) LoadExclusive(ctx context.Context, id string) (*order.Order, error) {
	if err := r.tx.lock(ctx, orderKey(id), lock.Exclusive); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r memOrders) LoadShared(ctx context.Context, id string) (*order.Order, error) {
	if err := r.tx.lock(ctx, orderKey(id), lock.Shared); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r memOrders) LoadVersioned(_ context.Context, id string) (*order.Order, error) {
	return r.get(id)
}

func (r memOrders) get(id string) (*order.Order, error) {
	if p, ok := r.tx.orders[id]; ok {
		return p.v.Clone(), nil
	}
	r.tx.s.mu.RLock()
	defer r.tx.s.mu.RUnlock()
	if o, ok := r.tx.s.orders[id]; ok {
		return o.Clone(), nil
	}
	return nil, apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", id)
}

func (r memOrders) FindByNumber(ctx context.Context, number string) (*order.Order, error) {
	for _, p := range r.tx.orders {
		if p.v.OrderNumber == number {
			return p.v.Clone(), nil
		}
	}
	r.tx.s.mu.RLock()
	id, ok := r.tx.s.orderNumbers[number]
	r.tx.s.mu.RUnlock()
	if !ok {
		return nil, apperr.Wrapf(order.ErrOrderNotFound, "order %s not found", number)
	}
	return r.get(id)
}

func (r memOrders) Insert(_ context.Context, o *order.Order) error {
	if _, err := r.get(o.ID); err == nil {
		return apperr.Wrapf(ErrDuplicate, "order %s already exists", o.ID)
	}
	o.Version = 1
	r.tx.orders[o.ID] = &pending[*order.Order]{v: o.Clone(), insert: true}
	return nil
}

func (r memOrders) Save(_ context.Context, o *order.Order) error {
	if p, ok := r.tx.orders[o.ID]; ok {
		if p.v.Version != o.Version {
			return apperr.Wrapf(ErrVersionConflict, "order %s was modified concurrently", o.ID)
		}
		o.Version++
		p.v = o.Clone()
		return nil
	}
	expect := o.Version
	o.Version++
	r.tx.orders[o.ID] = &pending[*order.Order]{v: o.Clone(), expect: expect}
	return nil
}

// ============================================
// Claims
// ============================================

type memClaims struct{ tx *memTx }

func cloneClaim(c *claim.Claim) *claim.Claim {
	return c.Clone()
}

func (r memClaims) LoadExclusive(ctx context.Context, id string) (*claim.Claim, error) {
	if err := r.tx.lock(ctx, claimKey(id), lock.Exclusive); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r memClaims) LoadVersioned(_ context.Context, id string) (*claim.Claim, error) {
	return r.get(id)
}

func (r memClaims) get(id string) (*claim.Claim, error) {
	if p, ok := r.tx.claims[id]; ok {
		return cloneClaim(p.v), nil
	}
	r.tx.s.mu.RLock()
	defer r.tx.s.mu.RUnlock()
	if c, ok := r.tx.s.claims[id]; ok {
		return cloneClaim(c), nil
	}
	return nil, apperr.Wrapf(claim.ErrClaimNotFound, "claim %s not found", id)
}

func (r memClaims) ListByOrder(_ context.Context, orderID string) ([]*claim.Claim, error) {
	byID := make(map[string]*claim.Claim)
	r.tx.s.mu.RLock()
	for id, c := range r.tx.s.claims {
		if c.OrderID == orderID {
			byID[id] = cloneClaim(c)
		}
	}
	r.tx.s.mu.RUnlock()
	for id, p := range r.tx.claims {
		if p.v.OrderID == orderID {
			byID[id] = cloneClaim(p.v)
		}
	}

	out := make([]*claim.Claim, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (r memClaims) Insert(_ context.Context, c *claim.Claim) error {
	if _, err := r.get(c.ID); err == nil {
		return apperr.Wrapf(ErrDuplicate, "claim %s already exists", c.ID)
	}
	c.Version = 1
	r.tx.claims[c.ID] = &pending[*claim.Claim]{v: cloneClaim(c), insert: true}
	return nil
}

func (r memClaims) Save(_ context.Context, c *claim.Claim) error {
	if p, ok := r.tx.claims[c.ID]; ok {
		if p.v.Version != c.Version {
			return apperr.Wrapf(ErrVersionConflict, "claim %s was modified concurrently", c.ID)
		}
		c.Version++
		p.v = cloneClaim(c)
		return nil
	}
	expect := c.Version
	c.Version++
	r.tx.claims[c.ID] = &pending[*claim.Claim]{v: cloneClaim(c), expect: expect}
	return nil
}

// ============================================
// Settlements and discount usages
// ============================================

type memSettlements struct{ tx *memTx }

func (r memSettlements) Insert(_ context.Context, st *claim.Settlement) error {
	out := *st
	r.tx.settlements = append(r.tx.settlements, &out)
	return nil
}

func (r memSettlements) FindByClaim(_ context.Context, claimID string) (*claim.Settlement, error) {
	for _, st := range r.tx.settlements {
		if st.ClaimID == claimID {
			out := *st
			return &out, nil
		}
	}
	r.tx.s.mu.RLock()
	defer r.tx.s.mu.RUnlock()
	if st, ok := r.tx.s.settlements[claimID]; ok {
		out := *st
		return &out, nil
	}
	return nil, apperr.Wrapf(claim.ErrSettlementNotFound, "settlement for claim %s not found", claimID)
}

type memDiscounts struct{ tx *memTx }

func (r memDiscounts) Insert(_ context.Context, u *discount.Usage) error {
	out := *u
	r.tx.usages = append(r.tx.usages, &out)
	return nil
}

func (r memDiscounts) FindByOrder(_ context.Context, orderID string) (*discount.Usage, error) {
	for _, u := range r.tx.usages {
		if u.OrderID == orderID {
			out := *u
			return &out, nil
		}
	}
	r.tx.s.mu.RLock()
	defer r.tx.s.mu.RUnlock()
	if u, ok := r.tx.s.usages[orderID]; ok {
		out := *u
		return &out, nil
	}
	return nil, nil
}

// ============================================
// Members
// ============================================

type memMembers struct{ tx *memTx }

func cloneMember(m *member.Member) *member.Member {
	out := *m
	return &out
}

func (r memMembers) LoadExclusive(ctx context.Context, id string) (*member.Member, error) {
	if err := r.tx.lock(ctx, memberKey(id), lock.Exclusive); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r memMembers) LoadVersioned(_ context.Context, id string) (*member.Member, error) {
	return r.get(id)
}

func (r memMembers) get(id string) (*member.Member, error) {
	if p, ok := r.tx.members[id]; ok {
		return cloneMember(p.v), nil
	}
	r.tx.s.mu.RLock()
	defer r.tx.s.mu.RUnlock()
	if m, ok := r.tx.s.members[id]; ok {
		return cloneMember(m), nil
	}
	return nil, apperr.Wrapf(member.ErrMemberNotFound, "member %s not found", id)
}

func (r memMembers) FindByEmail(_ context.Context, email string) (*member.Member, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, p := range r.tx.members {
		if strings.ToLower(p.v.Email) == email {
			return cloneMember(p.v), nil
		}
	}
	r.tx.s.mu.RLock()
	id, ok := r.tx.s.memberEmails[email]
	r.tx.s.mu.RUnlock()
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	return r.get(id)
}

func (r memMembers) Insert(_ context.Context, m *member.Member) error {
	if _, err := r.get(m.ID); err == nil {
		return apperr.Wrapf(ErrDuplicate, "member %s already exists", m.ID)
	}
	m.Version = 1
	r.tx.members[m.ID] = &pending[*member.Member]{v: cloneMember(m), insert: true}
	return nil
}

func (r memMembers) Save(_ context.Context, m *member.Member) error {
	if p, ok := r.tx.members[m.ID]; ok {
		if p.v.Version != m.Version {
			return apperr.Wrapf(ErrVersionConflict, "member %s was modified concurrently", m.ID)
		}
		m.Version++
		p.v = cloneMember(m)
		return nil
	}
	expect := m.Version
	m.Version++
	r.tx.members[m.ID] = &pending[*member.Member]{v: cloneMember(m), expect: expect}
	return nil
}
