package discount

import (
	"testing"
	"time"

	"github.com/example/ec-backoffice/internal/domain/money"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCostShare(t *testing.T) {
	share, err := NewCostShare(decimal.RequireFromString("0.3"), decimal.RequireFromString("0.7"))
	require.NoError(t, err)
	assert.True(t, share.PlatformRatio.Equal(decimal.RequireFromString("0.3")))

	_, err = NewCostShare(decimal.RequireFromString("0.3"), decimal.RequireFromString("0.6"))
	assert.ErrorIs(t, err, ErrInvalidRatio)

	_, err = NewCostShare(decimal.RequireFromString("-0.1"), decimal.RequireFromString("1.1"))
	assert.ErrorIs(t, err, ErrInvalidRatio)
}

func TestCostShare_Split(t *testing.T) {
	tests := []struct {
		name         string
		platform     string
		amount       int64
		wantPlatform int64
		wantSeller   int64
	}{
		{"thirty seventy", "0.3", 10000, 3000, 7000},
		{"rounds half up", "0.5", 101, 51, 50},
		{"remainder to seller", "0.333", 1000, 333, 667},
		{"platform pays all", "1", 5000, 5000, 0},
		{"zero amount", "0.4", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			share, err := FromPlatformRatio(decimal.RequireFromString(tt.platform))
			require.NoError(t, err)

			p, s := share.Split(money.Money(tt.amount))

			assert.Equal(t, money.Money(tt.wantPlatform), p)
			assert.Equal(t, money.Money(tt.wantSeller), s)
		})
	}
}

func TestBaseline_SellerBearsEverything(t *testing.T) {
	p, s := Baseline().Split(12345)

	assert.Equal(t, money.Zero, p)
	assert.Equal(t, money.Money(12345), s)
	assert.Equal(t, Baseline(), ShareOf(nil))
}

func TestNewUsage(t *testing.T) {
	now := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	u, err := NewUsage("order-1", "member-1", UsageInput{
		PolicyID:      "policy-1",
		PlatformRatio: decimal.RequireFromString("0.3"),
		SellerRatio:   decimal.RequireFromString("0.7"),
	}, 5000, 50000, now)

	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, money.Money(1500), u.PlatformCost)
	assert.Equal(t, money.Money(3500), u.SellerCost)
	assert.Equal(t, u.CostShare, ShareOf(u))

	_, err = NewUsage("order-1", "member-1", UsageInput{}, 5000, 50000, now)
	assert.ErrorIs(t, err, ErrMissingPolicy)
}

func TestSplit_NoRoundingLeakage(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("platform + seller == amount", prop.ForAll(
		func(amount int64, permille int64) bool {
			share, err := FromPlatformRatio(decimal.New(permille, -3))
			if err != nil {
				return false
			}
			p, s := share.Split(money.Money(amount))
			return p+s == money.Money(amount) && p >= 0 && s >= 0
		},
		gen.Int64Range(0, 100_000_000),
		gen.Int64Range(0, 1000),
	))

	properties.TestingRun(t)
}
