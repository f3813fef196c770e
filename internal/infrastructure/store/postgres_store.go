package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-backoffice/internal/apperr"
	"github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	name          TEXT NOT NULL,
	role          TEXT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	withdrawn_at  TIMESTAMPTZ,
	version       INT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	order_number    TEXT NOT NULL UNIQUE,
	member_id       TEXT NOT NULL,
	seller_id       BIGINT NOT NULL,
	status          TEXT NOT NULL,
	items           JSONB NOT NULL,
	shipping        JSONB NOT NULL,
	subtotal        BIGINT NOT NULL CHECK (subtotal >= 0),
	discount_amount BIGINT NOT NULL CHECK (discount_amount >= 0),
	shipping_fee    BIGINT NOT NULL CHECK (shipping_fee >= 0),
	grand_total     BIGINT NOT NULL CHECK (grand_total >= 0),
	ordered_at      TIMESTAMPTZ NOT NULL,
	confirmed_at    TIMESTAMPTZ,
	shipped_at      TIMESTAMPTZ,
	delivered_at    TIMESTAMPTZ,
	completed_at    TIMESTAMPTZ,
	cancelled_at    TIMESTAMPTZ,
	updated_at      TIMESTAMPTZ NOT NULL,
	version         INT NOT NULL,
	CHECK (completed_at IS NULL OR cancelled_at IS NULL)
);

CREATE TABLE IF NOT EXISTS claims (
	id            TEXT PRIMARY KEY,
	claim_number  TEXT NOT NULL UNIQUE,
	order_id      TEXT NOT NULL REFERENCES orders (id),
	order_item_id TEXT NOT NULL DEFAULT '',
	type          TEXT NOT NULL,
	reason        TEXT NOT NULL,
	note          TEXT NOT NULL DEFAULT '',
	quantity      INT NOT NULL CHECK (quantity > 0),
	refund_amount BIGINT NOT NULL CHECK (refund_amount >= 0),
	status        TEXT NOT NULL,
	requested_by  TEXT NOT NULL DEFAULT '',
	processed_by  TEXT NOT NULL DEFAULT '',
	processed_at  TIMESTAMPTZ,
	reject_reason TEXT NOT NULL DEFAULT '',
	requested_at  TIMESTAMPTZ NOT NULL,
	completed_at  TIMESTAMPTZ,
	updated_at    TIMESTAMPTZ NOT NULL,
	version       INT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_order_id ON claims (order_id);
ALTER TABLE claims ADD COLUMN IF NOT EXISTS return_shipment JSONB;
ALTER TABLE claims ADD COLUMN IF NOT EXISTS exchange_shipment JSONB;

CREATE TABLE IF NOT EXISTS discount_usages (
	id              TEXT PRIMARY KEY,
	order_id        TEXT NOT NULL UNIQUE REFERENCES orders (id),
	policy_id       TEXT NOT NULL,
	member_id       TEXT NOT NULL,
	applied_amount  BIGINT NOT NULL,
	original_amount BIGINT NOT NULL,
	platform_ratio  NUMERIC(7, 6) NOT NULL,
	seller_ratio    NUMERIC(7, 6) NOT NULL,
	platform_cost   BIGINT NOT NULL,
	seller_cost     BIGINT NOT NULL,
	used_at         TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settlements (
	id                TEXT PRIMARY KEY,
	claim_id          TEXT NOT NULL UNIQUE REFERENCES claims (id),
	order_id          TEXT NOT NULL REFERENCES orders (id),
	discount_usage_id TEXT NOT NULL DEFAULT '',
	refund_amount     BIGINT NOT NULL,
	platform_ratio    NUMERIC(7, 6) NOT NULL,
	seller_ratio      NUMERIC(7, 6) NOT NULL,
	platform_cost     BIGINT NOT NULL,
	seller_cost       BIGINT NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	CHECK (platform_cost + seller_cost = refund_amount)
);

CREATE TABLE IF NOT EXISTS events (
	id             TEXT PRIMARY KEY,
	aggregate_id   TEXT NOT NULL,
	aggregate_type TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	data           JSONB NOT NULL,
	version        INT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_aggregate_id ON events (aggregate_id);
`

// PoolConfig holds connection pool settings
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig matches the pool used in production
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(ctx context.Context, connStr string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	return db, nil
}

// PostgresStore runs transactions against PostgreSQL. Exclusive and shared
// loads map to SELECT ... FOR UPDATE / FOR SHARE and every transaction bounds
// its lock waits with lock_timeout.
type PostgresStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresStore(db *sql.DB, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// Init creates the tables if they do not exist
func (s *PostgresStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Run(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", translate(err))
	}

	committed := false
	defer func() {
		// Also runs when fn panics.
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("set lock timeout: %w", translate(err))
		}
	}

	if err := fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		return err
	}

	committed = true
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

// translate maps driver errors onto the application taxonomy.
func translate(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "55P03":
		return apperr.ConcurrencyConflict("lock wait timed out", err)
	case "40001", "40P01":
		return apperr.ConcurrencyConflict("transaction conflicted with a concurrent one", err)
	case "23505":
		return apperr.Wrapf(ErrDuplicate, "duplicate record: %s", pqErr.Constraint)
	}
	return err
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Orders() OrderRepository           { return pgOrders{t.tx} }
func (t *pgTx) Claims() ClaimRepository           { return pgClaims{t.tx} }
func (t *pgTx) Settlements() SettlementRepository { return pgSettlements{t.tx} }
func (t *pgTx) Discounts() DiscountRepository     { return pgDiscounts{t.tx} }
func (t *pgTx) Members() MemberRepository         { return pgMembers{t.tx} }

type rowScanner interface {
	Scan(dest ...any) error
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
