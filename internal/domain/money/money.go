package money

import (
	"fmt"
	"math"

	"github.com/example/ec-backoffice/internal/apperr"
)

var (
	ErrNegativeAmount   = apperr.Validation("NEGATIVE_AMOUNT", "amount must not be negative")
	ErrInvalidQuantity  = apperr.Validation("INVALID_QUANTITY", "quantity must be positive")
	ErrInsufficientFund = apperr.Validation("AMOUNT_UNDERFLOW", "subtraction would make amount negative")
	ErrAmountOverflow   = apperr.Validation("AMOUNT_OVERFLOW", "amount is too large")
)

// Money is a non-negative amount in the smallest currency unit (KRW has no minor unit).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// New validates v and returns it as Money.
func New(v int64) (Money, error) {
	if v < 0 {
		return Zero, apperr.Wrapf(ErrNegativeAmount, "amount must not be negative: %d", v)
	}
	return Money(v), nil
}

func (m Money) Int64() int64 { return int64(m) }

func (m Money) IsZero() bool { return m == 0 }

func (m Money) IsPositive() bool { return m > 0 }

// Add returns m+o, failing instead of wrapping past MaxInt64.
func (m Money) Add(o Money) (Money, error) {
	if o > math.MaxInt64-m {
		return Zero, apperr.Wrapf(ErrAmountOverflow, "%d + %d overflows", m, o)
	}
	return m + o, nil
}

// Sub returns m-o, failing rather than going negative.
func (m Money) Sub(o Money) (Money, error) {
	if o > m {
		return Zero, apperr.Wrapf(ErrInsufficientFund, "cannot subtract %d from %d", o, m)
	}
	return m - o, nil
}

// SubFloor returns m-o clamped at zero.
func (m Money) SubFloor(o Money) Money {
	if o > m {
		return Zero
	}
	return m - o
}

func (m Money) Times(q Quantity) (Money, error) {
	if q > 0 && m > Money(math.MaxInt64/int64(q)) {
		return Zero, apperr.Wrapf(ErrAmountOverflow, "%d x %d overflows", m, q)
	}
	return m * Money(q), nil
}

func (m Money) GreaterThan(o Money) bool { return m > o }

// Min returns the smaller of a and b.
func Min(a, b Money) Money {
	if a < b {
		return a
	}
	return b
}

func (m Money) String() string { return fmt.Sprintf("%d", int64(m)) }

// Quantity is a strictly positive item count.
type Quantity int

// NewQuantity validates v and returns it as Quantity.
func NewQuantity(v int) (Quantity, error) {
	if v <= 0 {
		return 0, apperr.Wrapf(ErrInvalidQuantity, "quantity must be positive: %d", v)
	}
	return Quantity(v), nil
}

func (q Quantity) Int() int { return int(q) }
