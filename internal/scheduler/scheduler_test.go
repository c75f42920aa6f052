package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
	"equityTriggerBot/internal/registry"
)

// Mock implementations

type mockLogger struct {
	mu        sync.Mutex
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type placedOrder struct {
	Instrument domain.InstrumentKey
	Side       domain.OrderSide
	Quantity   int64
}

type mockExchange struct {
	mu        sync.Mutex
	prices    map[domain.InstrumentKey]float64
	priceErrs map[domain.InstrumentKey]error
	positions map[domain.InstrumentKey]*domain.Position
	placed    []placedOrder
	placeErr  error
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		prices:    make(map[domain.InstrumentKey]float64),
		priceErrs: make(map[domain.InstrumentKey]error),
		positions: make(map[domain.InstrumentKey]*domain.Position),
	}
}

func (m *mockExchange) GetLastPrice(ctx context.Context, key domain.InstrumentKey) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.priceErrs[key]; err != nil {
		return 0, err
	}
	price, ok := m.prices[key]
	if !ok || price == 0 {
		return 0, fmt.Errorf("%w: %s", ports.ErrStaleData, key)
	}
	return price, nil
}

func (m *mockExchange) GetQuote(ctx context.Context, key domain.InstrumentKey) (*domain.Quote, error) {
	price, err := m.GetLastPrice(ctx, key)
	if err != nil {
		return nil, err
	}
	return &domain.Quote{Instrument: key, LTP: price}, nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, key domain.InstrumentKey, side domain.OrderSide, quantity int64) (*ports.OrderAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.placed = append(m.placed, placedOrder{Instrument: key, Side: side, Quantity: quantity})
	return &ports.OrderAck{OrderID: uuid.NewString()}, nil
}

func (m *mockExchange) GetPosition(ctx context.Context, key domain.InstrumentKey) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pos, ok := m.positions[key]; ok {
		cp := *pos
		return &cp, nil
	}
	return &domain.Position{Instrument: key}, nil
}

func (m *mockExchange) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.positions))
	for _, pos := range m.positions {
		cp := *pos
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockExchange) GetOrderBook(ctx context.Context) ([]*domain.Order, error) { return nil, nil }
func (m *mockExchange) GetTradeBook(ctx context.Context) ([]*domain.Trade, error) { return nil, nil }
func (m *mockExchange) OnOrderResolved(handler ports.OrderResolvedHandler)        {}

func (m *mockExchange) placedOrders() []placedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]placedOrder(nil), m.placed...)
}

// Test fixtures

var (
	sbin = domain.InstrumentKey{Symbol: "SBIN-EQ", Exchange: "NSE"}
	tcs  = domain.InstrumentKey{Symbol: "TCS-EQ", Exchange: "NSE"}
)

type fixture struct {
	sched    *Scheduler
	exchange *mockExchange
	registry *registry.Registry
	clock    *fakeClock
	enabled  *Switch
	logger   *mockLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		exchange: newMockExchange(),
		registry: registry.New(),
		clock:    &fakeClock{now: time.Date(2024, 6, 3, 10, 0, 0, 0, time.Local)},
		enabled:  NewSwitch(true),
		logger:   &mockLogger{},
	}
	sched, err := New(Config{
		Logger:         f.logger,
		Clock:          f.clock,
		Exchange:       f.exchange,
		Registry:       f.registry,
		Switch:         f.enabled,
		TriggerTimeout: 5 * time.Minute,
	})
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *fixture) addTrigger(t *testing.T, trig *domain.Trigger) *domain.Trigger {
	t.Helper()
	trig.ID = uuid.NewString()
	trig.CreatedAt = f.clock.Now()
	require.NoError(t, f.registry.Add(trig))
	return trig
}

func entryPoints(baseline, points float64, qty int64, mode domain.TradeMode) *domain.Trigger {
	return &domain.Trigger{
		Direction:  domain.DirectionEntry,
		Instrument: sbin,
		Condition:  domain.ConditionPoints,
		Points:     points,
		Baseline:   baseline,
		Quantity:   qty,
		Mode:       mode,
	}
}

// Tests

func TestEntryPointsTrigger(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))

	// Below threshold: 104 < 100+5, no fire.
	f.exchange.prices[sbin] = 104
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())
	assert.True(t, f.registry.IsActive(trig.ID))

	// At threshold: exactly one BUY for 10 units, trigger retired.
	f.exchange.prices[sbin] = 105
	f.sched.Tick(context.Background())
	placed := f.exchange.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.Buy, placed[0].Side)
	assert.Equal(t, int64(10), placed[0].Quantity)
	assert.False(t, f.registry.IsActive(trig.ID))

	// Single-mode: never fires again.
	f.sched.Tick(context.Background())
	assert.Len(t, f.exchange.placedOrders(), 1)
}

func TestEntryPercentageTrigger(t *testing.T) {
	f := newFixture(t)
	f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionEntry,
		Instrument: sbin,
		Condition:  domain.ConditionPercentage,
		Percentage: 2,
		Baseline:   500,
		Quantity:   5,
		Mode:       domain.ModeSingle,
	})

	f.exchange.prices[sbin] = 509.99
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())

	f.exchange.prices[sbin] = 510
	f.sched.Tick(context.Background())
	require.Len(t, f.exchange.placedOrders(), 1)
}

func TestMultiModeReArms(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeMulti))

	f.exchange.prices[sbin] = 106
	f.sched.Tick(context.Background())
	f.sched.Tick(context.Background())

	// Fires on every qualifying tick with the same baseline.
	assert.Len(t, f.exchange.placedOrders(), 2)
	assert.True(t, f.registry.IsActive(trig.ID))
}

func TestTriggerTimeout(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))

	// Price qualifies, but the trigger aged out first: retire, never fire.
	f.clock.Advance(5*time.Minute + time.Second)
	f.exchange.prices[sbin] = 200
	f.sched.Tick(context.Background())

	assert.Empty(t, f.exchange.placedOrders())
	assert.False(t, f.registry.IsActive(trig.ID))
}

func TestStalePriceSkipsTrigger(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))

	// No price known yet: skip, keep waiting, no error surfaced.
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())
	assert.True(t, f.registry.IsActive(trig.ID))
	assert.Empty(t, f.logger.errorMsgs)
}

func TestExitPercentageTrigger(t *testing.T) {
	f := newFixture(t)
	f.exchange.positions[sbin] = &domain.Position{Instrument: sbin, NetQty: 10, AvgPrice: 100}
	trig := f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionExit,
		Instrument: sbin,
		Condition:  domain.ConditionPercentage,
		Percentage: 2,
		Mode:       domain.ModeSingle,
	})

	// 98.5 > 100*(1-0.02): holds.
	f.exchange.prices[sbin] = 98.5
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())

	// 97.9 <= 98: fires a SELL sized from the live position.
	f.exchange.prices[sbin] = 97.9
	f.sched.Tick(context.Background())
	placed := f.exchange.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.Sell, placed[0].Side)
	assert.Equal(t, int64(10), placed[0].Quantity)
	assert.False(t, f.registry.IsActive(trig.ID), "exit triggers always retire on fire")
}

func TestExitPointsTrigger(t *testing.T) {
	f := newFixture(t)
	f.exchange.positions[sbin] = &domain.Position{Instrument: sbin, NetQty: 7, AvgPrice: 520}
	f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionExit,
		Instrument: sbin,
		Condition:  domain.ConditionPoints,
		Points:     4,
		Mode:       domain.ModeSingle,
	})

	f.exchange.prices[sbin] = 516.5
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())

	f.exchange.prices[sbin] = 516
	f.sched.Tick(context.Background())
	placed := f.exchange.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, int64(7), placed[0].Quantity)
}

func TestExitWithNoPositionDoesNotFire(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionExit,
		Instrument: sbin,
		Condition:  domain.ConditionPoints,
		Points:     5,
		Mode:       domain.ModeSingle,
	})

	// Ledger shows no entry price: the stop has nothing to protect yet.
	f.exchange.prices[sbin] = 50
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())
	assert.True(t, f.registry.IsActive(trig.ID))
}

func TestExitFireWithVanishedPosition(t *testing.T) {
	f := newFixture(t)
	// Inconsistent mid-race state: average price still set, quantity gone.
	f.exchange.positions[sbin] = &domain.Position{Instrument: sbin, AvgPrice: 100}
	trig := f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionExit,
		Instrument: sbin,
		Condition:  domain.ConditionPoints,
		Points:     2,
		Mode:       domain.ModeSingle,
	})

	f.exchange.prices[sbin] = 97
	f.sched.Tick(context.Background())

	// The fire is dropped, not crashed, and the trigger is retired.
	assert.Empty(t, f.exchange.placedOrders())
	assert.False(t, f.registry.IsActive(trig.ID))
	assert.NotEmpty(t, f.logger.errorMsgs)
}

func TestShortPositionExitFlattensWithBuy(t *testing.T) {
	f := newFixture(t)
	f.exchange.positions[sbin] = &domain.Position{Instrument: sbin, NetQty: -10, AvgPrice: 100}
	f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionExit,
		Instrument: sbin,
		Condition:  domain.ConditionPoints,
		Points:     5,
		Mode:       domain.ModeSingle,
	})

	f.exchange.prices[sbin] = 94
	f.sched.Tick(context.Background())

	placed := f.exchange.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, domain.Buy, placed[0].Side)
	assert.Equal(t, int64(10), placed[0].Quantity)
}

func TestDisabledBotSkipsTick(t *testing.T) {
	f := newFixture(t)
	f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))
	f.exchange.prices[sbin] = 200

	f.enabled.Set(false)
	f.sched.Tick(context.Background())
	assert.Empty(t, f.exchange.placedOrders())

	f.enabled.Set(true)
	f.sched.Tick(context.Background())
	assert.Len(t, f.exchange.placedOrders(), 1)
}

func TestOneFailingTriggerDoesNotStallOthers(t *testing.T) {
	f := newFixture(t)

	f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))
	good := f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionEntry,
		Instrument: tcs,
		Condition:  domain.ConditionPoints,
		Points:     5,
		Baseline:   3890,
		Quantity:   2,
		Mode:       domain.ModeSingle,
	})

	f.exchange.priceErrs[sbin] = fmt.Errorf("%w: venue down", ports.ErrUnknownInstrument)
	f.exchange.prices[tcs] = 3900
	f.sched.Tick(context.Background())

	placed := f.exchange.placedOrders()
	require.Len(t, placed, 1)
	assert.Equal(t, tcs, placed[0].Instrument)
	assert.False(t, f.registry.IsActive(good.ID))
	assert.NotEmpty(t, f.logger.errorMsgs, "the failing trigger must be reported")
}

func TestCandleConditionSurfacesError(t *testing.T) {
	f := newFixture(t)
	// The service rejects candle triggers at creation; if one slips in,
	// evaluation must report it rather than treating it as false silently.
	f.addTrigger(t, &domain.Trigger{
		Direction:  domain.DirectionEntry,
		Instrument: sbin,
		Condition:  domain.ConditionCandle,
		CandleSize: "5m",
		Quantity:   1,
		Mode:       domain.ModeSingle,
	})

	f.exchange.prices[sbin] = 100
	f.sched.Tick(context.Background())

	assert.Empty(t, f.exchange.placedOrders())
	assert.NotEmpty(t, f.logger.errorMsgs)
}

func TestGatewayFailureKeepsTriggerArmed(t *testing.T) {
	f := newFixture(t)
	trig := f.addTrigger(t, entryPoints(100, 5, 10, domain.ModeSingle))
	f.exchange.prices[sbin] = 110
	f.exchange.placeErr = fmt.Errorf("venue unreachable")

	f.sched.Tick(context.Background())
	assert.True(t, f.registry.IsActive(trig.ID), "fire drops but the trigger stays armed")

	// Venue recovers: the next tick fires.
	f.exchange.mu.Lock()
	f.exchange.placeErr = nil
	f.exchange.mu.Unlock()
	f.sched.Tick(context.Background())
	assert.Len(t, f.exchange.placedOrders(), 1)
}
