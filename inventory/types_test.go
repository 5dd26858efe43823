package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(code string, remaining int64, cost int64, expiry time.Time, received time.Time) Batch {
	return Batch{
		ID:                BatchID("id-" + code),
		BatchCode:         code,
		QuantityInitial:   remaining,
		QuantityRemaining: remaining,
		UnitCost:          decimal.NewFromInt(cost),
		ExpiryDate:        expiry,
		PurchasedAt:       received,
	}
}

var (
	jan1 = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	feb1 = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)
)

// =============================================================================
// PLAN ALLOCATION
// =============================================================================

func TestPlanAllocation_TakesGreedilyInGivenOrder(t *testing.T) {
	batches := []Batch{
		batch("A1", 50, 120, jan1, jan1),
		batch("B1", 80, 110, feb1, jan1),
	}

	plan, err := PlanAllocation("p", batches, 70)
	require.NoError(t, err)

	require.Len(t, plan, 2)
	assert.Equal(t, BatchID("id-A1"), plan[0].BatchID)
	assert.Equal(t, int64(50), plan[0].Quantity)
	assert.Equal(t, BatchID("id-B1"), plan[1].BatchID)
	assert.Equal(t, int64(20), plan[1].Quantity)
	assert.True(t, plan[1].UnitCost.Equal(decimal.NewFromInt(110)))
}

func TestPlanAllocation_StopsOnceSatisfied(t *testing.T) {
	batches := []Batch{
		batch("A", 10, 1, jan1, jan1),
		batch("B", 10, 1, feb1, jan1),
	}

	plan, err := PlanAllocation("p", batches, 10)
	require.NoError(t, err)
	assert.Len(t, plan, 1)
}

func TestPlanAllocation_SkipsEmptyBatches(t *testing.T) {
	batches := []Batch{
		batch("EMPTY", 0, 1, jan1, jan1),
		batch("FULL", 5, 1, feb1, jan1),
	}

	plan, err := PlanAllocation("p", batches, 3)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, BatchID("id-FULL"), plan[0].BatchID)
}

func TestPlanAllocation_InsufficientStock(t *testing.T) {
	batches := []Batch{batch("A", 4, 1, jan1, jan1)}

	_, err := PlanAllocation("p", batches, 5)

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, ProductID("p"), stockErr.ProductID)
	assert.Equal(t, int64(4), stockErr.Available)
	assert.Equal(t, int64(1), stockErr.Shortfall())
	assert.True(t, IsClientError(err))
}

func TestPlanAllocation_NoBatches(t *testing.T) {
	_, err := PlanAllocation("p", nil, 1)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestPlanAllocation_RejectsNonPositiveQuantity(t *testing.T) {
	_, err := PlanAllocation("p", []Batch{batch("A", 4, 1, jan1, jan1)}, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// =============================================================================
// FIFO ORDER
// =============================================================================

func TestSortFIFO_ExpiryThenReceiptThenCode(t *testing.T) {
	later := jan1.Add(time.Hour)
	batches := []Batch{
		batch("late-expiry", 1, 1, feb1, jan1),
		batch("same-expiry-newer", 1, 1, jan1, later),
		batch("Z-same-everything", 1, 1, jan1, jan1),
		batch("A-same-everything", 1, 1, jan1, jan1),
	}

	SortFIFO(batches)

	codes := make([]string, len(batches))
	for i, b := range batches {
		codes[i] = b.BatchCode
	}
	assert.Equal(t, []string{"A-same-everything", "Z-same-everything", "same-expiry-newer", "late-expiry"}, codes)
}

// =============================================================================
// BATCH INVARIANTS
// =============================================================================

func TestBatchDecrement(t *testing.T) {
	b := batch("A", 10, 1, jan1, jan1)

	require.NoError(t, b.Decrement(10))
	assert.Equal(t, int64(0), b.QuantityRemaining)
	assert.False(t, b.Eligible())

	err := b.Decrement(1)
	assert.ErrorIs(t, err, ErrInvariantViolation)
	assert.Equal(t, int64(0), b.QuantityRemaining)

	assert.ErrorIs(t, b.Decrement(0), ErrInvariantViolation)
	assert.False(t, IsClientError(err))
}

func TestBatchCheckInvariant(t *testing.T) {
	b := batch("A", 10, 1, jan1, jan1)
	assert.NoError(t, b.CheckInvariant())

	b.QuantityRemaining = 11
	assert.ErrorIs(t, b.CheckInvariant(), ErrInvariantViolation)

	b.QuantityRemaining = -1
	assert.ErrorIs(t, b.CheckInvariant(), ErrInvariantViolation)
}

// =============================================================================
// UNIT SIZE
// =============================================================================

func TestParseUnitSize(t *testing.T) {
	size, err := ParseUnitSize("250", "g")
	require.NoError(t, err)
	assert.Equal(t, "250 g", size.String())

	_, err = ParseUnitSize("abc", "g")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseUnitSize("1", "lb")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseUnitSize("0", "kg")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDateOf(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	// 01:00 IST on March 2 is still March 1 in UTC
	at := time.Date(2025, time.March, 2, 1, 0, 0, 0, ist)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), DateOf(at))
}

// =============================================================================
// SALE MATH
// =============================================================================

func TestSaleTotals(t *testing.T) {
	s := Sale{
		Quantity:     70,
		SellingPrice: decimal.NewFromInt(150),
		Allocations: []Allocation{
			{Quantity: 50, UnitCost: decimal.NewFromInt(120)},
			{Quantity: 20, UnitCost: decimal.RequireFromString("110.50")},
		},
	}

	assert.True(t, s.Revenue().Equal(decimal.NewFromInt(10500)))
	assert.True(t, s.CostOfGoods().Equal(decimal.NewFromInt(8210)))
	assert.Equal(t, int64(70), s.AllocatedQuantity())
}
