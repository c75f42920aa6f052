package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equityTriggerBot/internal/domain"
)

var sbin = domain.InstrumentKey{Symbol: "SBIN-EQ", Exchange: "NSE"}

func TestApplyFill_WeightedAverage(t *testing.T) {
	l := New()

	pos := l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	assert.Equal(t, int64(10), pos.NetQty)
	assert.InDelta(t, 100.0, pos.AvgPrice, 1e-9)

	// Second buy at a higher price moves the average to the weighted mean.
	pos = l.ApplyFill(sbin, domain.Buy, 20, 130.0, 130.0)
	assert.Equal(t, int64(30), pos.NetQty)
	assert.InDelta(t, (10*100.0+20*130.0)/30, pos.AvgPrice, 1e-9)
	assert.Equal(t, int64(30), pos.BoughtQty)
}

func TestApplyFill_NetQtyInvariant(t *testing.T) {
	l := New()

	fills := []struct {
		side domain.OrderSide
		qty  int64
	}{
		{domain.Buy, 10},
		{domain.Sell, 4},
		{domain.Buy, 7},
		{domain.Sell, 13},
		{domain.Buy, 5},
	}

	var bought, sold int64
	for _, f := range fills {
		pos := l.ApplyFill(sbin, f.side, f.qty, 100.0, 100.0)
		if f.side == domain.Buy {
			bought += f.qty
		} else {
			sold += f.qty
		}
		require.Equal(t, bought-sold, pos.NetQty)
		require.Equal(t, bought, pos.BoughtQty)
		require.Equal(t, sold, pos.SoldQty)
	}
}

func TestApplyFill_SellToFlatResetsAverage(t *testing.T) {
	l := New()

	l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	pos := l.ApplyFill(sbin, domain.Sell, 10, 105.0, 105.0)

	assert.Equal(t, int64(0), pos.NetQty)
	assert.Zero(t, pos.AvgPrice)
	assert.Zero(t, pos.PnL)

	// The reset must be visible on the very next read.
	got := l.Get(sbin)
	assert.Zero(t, got.AvgPrice)
}

func TestApplyFill_PartialSellKeepsAverage(t *testing.T) {
	l := New()

	l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	pos := l.ApplyFill(sbin, domain.Sell, 4, 110.0, 110.0)

	assert.Equal(t, int64(6), pos.NetQty)
	assert.InDelta(t, 100.0, pos.AvgPrice, 1e-9)
	assert.InDelta(t, (110.0-100.0)*6, pos.PnL, 1e-9)
}

func TestApplyFill_FlipThroughZero(t *testing.T) {
	l := New()

	l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	// Sell past flat into a short.
	pos := l.ApplyFill(sbin, domain.Sell, 15, 100.0, 100.0)
	require.Equal(t, int64(-5), pos.NetQty)

	// Buying back toward flat: newNet stays <= 0 so the average resets
	// rather than averaging a short against buy prices.
	pos = l.ApplyFill(sbin, domain.Buy, 5, 95.0, 95.0)
	assert.Equal(t, int64(0), pos.NetQty)
	assert.Zero(t, pos.AvgPrice)
}

func TestMarkPrice(t *testing.T) {
	l := New()

	l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	l.MarkPrice(sbin, 104.0)

	pos := l.Get(sbin)
	assert.InDelta(t, 104.0, pos.LastPrice, 1e-9)
	assert.InDelta(t, 40.0, pos.PnL, 1e-9)

	// Marking an untraded instrument is a no-op.
	l.MarkPrice(domain.InstrumentKey{Symbol: "TCS-EQ", Exchange: "NSE"}, 3890.0)
	assert.Len(t, l.All(), 1)
}

func TestOpenFiltersFlatPositions(t *testing.T) {
	l := New()
	tcs := domain.InstrumentKey{Symbol: "TCS-EQ", Exchange: "NSE"}

	l.ApplyFill(sbin, domain.Buy, 10, 100.0, 100.0)
	l.ApplyFill(tcs, domain.Buy, 5, 3890.0, 3890.0)
	l.ApplyFill(tcs, domain.Sell, 5, 3900.0, 3900.0)

	open := l.Open()
	require.Len(t, open, 1)
	assert.Equal(t, sbin, open[0].Instrument)
	assert.Len(t, l.All(), 2)
}

func TestConcurrentFills(t *testing.T) {
	l := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			l.ApplyFill(sbin, domain.Buy, 2, 100.0, 100.0)
		}()
		go func() {
			defer wg.Done()
			l.ApplyFill(sbin, domain.Sell, 1, 100.0, 100.0)
		}()
	}
	wg.Wait()

	pos := l.Get(sbin)
	assert.Equal(t, int64(50), pos.NetQty)
	assert.Equal(t, int64(100), pos.BoughtQty)
	assert.Equal(t, int64(50), pos.SoldQty)
}
