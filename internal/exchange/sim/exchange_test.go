package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
)

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

var sbin = domain.InstrumentKey{Symbol: "SBIN-EQ", Exchange: "NSE"}

// newTestExchange returns an exchange that fills almost immediately and
// always succeeds, so tests can assert on post-conditions deterministically.
func newTestExchange(t *testing.T) *Exchange {
	t.Helper()
	ex, err := New(Config{
		Logger:            mockLogger{},
		FillDelayMin:      time.Millisecond,
		FillDelayMax:      2 * time.Millisecond,
		MarketSuccessRate: 1.0,
		LimitSuccessRate:  1.0,
	})
	require.NoError(t, err)
	return ex
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is required")

	_, err = New(Config{Logger: mockLogger{}, MarketOpen: "9x15"})
	assert.Error(t, err)

	_, err = New(Config{Logger: mockLogger{}, FillDelayMin: time.Second, FillDelayMax: time.Millisecond})
	assert.Error(t, err)
}

func TestGetLastPrice(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()

	price, err := ex.GetLastPrice(ctx, sbin)
	require.NoError(t, err)
	assert.Greater(t, price, 0.0)

	_, err = ex.GetLastPrice(ctx, domain.InstrumentKey{Symbol: "NOPE-EQ", Exchange: "NSE"})
	assert.ErrorIs(t, err, ports.ErrUnknownInstrument)
}

func TestPlaceMarketOrder_Validation(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()

	_, err := ex.PlaceMarketOrder(ctx, domain.InstrumentKey{Symbol: "NOPE-EQ", Exchange: "NSE"}, domain.Buy, 10)
	assert.ErrorIs(t, err, ports.ErrUnknownInstrument)

	_, err = ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 0)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

func TestOrderFillUpdatesPosition(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()

	outcomes := make(chan ports.OrderOutcome, 1)
	ex.OnOrderResolved(func(o ports.OrderOutcome) { outcomes <- o })

	ex.SetPrice(sbin, 500.0)
	ack, err := ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 10)
	require.NoError(t, err)
	require.NotEmpty(t, ack.OrderID)

	var outcome ports.OrderOutcome
	select {
	case outcome = <-outcomes:
	case <-time.After(2 * time.Second):
		t.Fatal("order never resolved")
	}

	require.Equal(t, domain.OrderStatusComplete, outcome.Order.Status)
	require.NotNil(t, outcome.Trade)
	assert.Equal(t, ack.OrderID, outcome.Trade.OrderID)
	assert.InDelta(t, 500.0, outcome.Trade.Price, 1e-9)

	pos, err := ex.GetPosition(ctx, sbin)
	require.NoError(t, err)
	assert.Equal(t, int64(10), pos.NetQty)
	assert.InDelta(t, 500.0, pos.AvgPrice, 1e-9)
}

func TestOrderFillsAtResolutionPrice(t *testing.T) {
	ex, err := New(Config{
		Logger:            mockLogger{},
		FillDelayMin:      30 * time.Millisecond,
		FillDelayMax:      40 * time.Millisecond,
		MarketSuccessRate: 1.0,
	})
	require.NoError(t, err)
	ctx := context.Background()

	outcomes := make(chan ports.OrderOutcome, 1)
	ex.OnOrderResolved(func(o ports.OrderOutcome) { outcomes <- o })

	ex.SetPrice(sbin, 500.0)
	_, err = ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 1)
	require.NoError(t, err)

	// Price moves while the order is in flight; the fill must pick up the
	// new price, not the one at submission.
	ex.SetPrice(sbin, 510.0)

	select {
	case outcome := <-outcomes:
		assert.InDelta(t, 510.0, outcome.Trade.Price, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("order never resolved")
	}
}

func TestOrderRejection(t *testing.T) {
	ex, err := New(Config{
		Logger:            mockLogger{},
		FillDelayMin:      time.Millisecond,
		FillDelayMax:      2 * time.Millisecond,
		MarketSuccessRate: 1e-9, // effectively always rejected
	})
	require.NoError(t, err)
	ctx := context.Background()

	outcomes := make(chan ports.OrderOutcome, 1)
	ex.OnOrderResolved(func(o ports.OrderOutcome) { outcomes <- o })

	_, err = ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 10)
	require.NoError(t, err)

	select {
	case outcome := <-outcomes:
		assert.Equal(t, domain.OrderStatusRejected, outcome.Order.Status)
		assert.Nil(t, outcome.Trade, "rejection must not produce a trade")
	case <-time.After(2 * time.Second):
		t.Fatal("order never resolved")
	}

	// No position mutation on rejection, but the order stays in the book
	// as a permanent rejected record.
	pos, err := ex.GetPosition(ctx, sbin)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos.NetQty)

	book, err := ex.GetOrderBook(ctx)
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Equal(t, domain.OrderStatusRejected, book[0].Status)
}

func TestExactlyOneTradePerFill(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()

	ex.SetPrice(sbin, 500.0)
	for i := 0; i < 5; i++ {
		_, err := ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 1)
		require.NoError(t, err)
	}
	ex.Wait()

	trades, err := ex.GetTradeBook(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 5)

	seen := make(map[string]bool)
	for _, tr := range trades {
		assert.False(t, seen[tr.OrderID], "order %s produced more than one trade", tr.OrderID)
		seen[tr.OrderID] = true
	}

	pos, err := ex.GetPosition(ctx, sbin)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos.NetQty)
}

func TestConcurrentFillsOnDifferentInstruments(t *testing.T) {
	ex := newTestExchange(t)
	ctx := context.Background()
	tcs := domain.InstrumentKey{Symbol: "TCS-EQ", Exchange: "NSE"}

	ex.SetPrice(sbin, 500.0)
	ex.SetPrice(tcs, 3900.0)
	for i := 0; i < 10; i++ {
		_, err := ex.PlaceMarketOrder(ctx, sbin, domain.Buy, 2)
		require.NoError(t, err)
		_, err = ex.PlaceMarketOrder(ctx, tcs, domain.Sell, 1)
		require.NoError(t, err)
	}
	ex.Wait()

	sbinPos, err := ex.GetPosition(ctx, sbin)
	require.NoError(t, err)
	assert.Equal(t, int64(20), sbinPos.NetQty)

	tcsPos, err := ex.GetPosition(ctx, tcs)
	require.NoError(t, err)
	assert.Equal(t, int64(-10), tcsPos.NetQty)
}
