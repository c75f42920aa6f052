package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ledger"
	"equityTriggerBot/internal/ports"
)

// Config holds configuration for the simulated exchange.
type Config struct {
	Logger ports.Logger
	Clock  ports.Clock

	// Fill latency window. Each order resolves after a uniformly random
	// delay within [FillDelayMin, FillDelayMax].
	FillDelayMin time.Duration
	FillDelayMax time.Duration

	// Success probability per order type.
	MarketSuccessRate float64
	LimitSuccessRate  float64

	// Market hours as "HH:MM"; prices only move inside the window.
	MarketOpen  string
	MarketClose string
}

// Exchange is an in-process venue: it accepts market orders, resolves them
// asynchronously with randomized latency and a stochastic success rate, and
// nets fills into a position ledger. It implements ports.ExchangeClient.
type Exchange struct {
	logger ports.Logger
	clock  ports.Clock
	cfg    Config

	scrips map[domain.InstrumentKey]domain.Instrument
	feed   *feed
	book   *ledger.Ledger

	mu      sync.Mutex // guards orders, trades, handler
	orders  map[string]*domain.Order
	trades  map[string]*domain.Trade
	handler ports.OrderResolvedHandler

	inflight sync.WaitGroup
}

// New creates a simulated exchange seeded with the built-in NSE scrip
// master.
func New(cfg Config) (*Exchange, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for simulated exchange")
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.RealClock{}
	}
	if cfg.FillDelayMax <= 0 {
		cfg.FillDelayMin = 500 * time.Millisecond
		cfg.FillDelayMax = 2 * time.Second
	}
	if cfg.FillDelayMin > cfg.FillDelayMax {
		return nil, fmt.Errorf("fill delay min %s exceeds max %s", cfg.FillDelayMin, cfg.FillDelayMax)
	}
	if cfg.MarketSuccessRate <= 0 || cfg.MarketSuccessRate > 1 {
		cfg.MarketSuccessRate = 0.95
	}
	if cfg.LimitSuccessRate <= 0 || cfg.LimitSuccessRate > 1 {
		cfg.LimitSuccessRate = 0.90
	}
	if cfg.MarketOpen == "" {
		cfg.MarketOpen = "09:15"
	}
	if cfg.MarketClose == "" {
		cfg.MarketClose = "15:30"
	}
	open, err := parseTimeOfDay(cfg.MarketOpen)
	if err != nil {
		return nil, fmt.Errorf("invalid market open time: %w", err)
	}
	closeAt, err := parseTimeOfDay(cfg.MarketClose)
	if err != nil {
		return nil, fmt.Errorf("invalid market close time: %w", err)
	}

	scripList := defaultScrips()
	scrips := make(map[domain.InstrumentKey]domain.Instrument, len(scripList))
	for _, s := range scripList {
		scrips[s.instrument.Key] = s.instrument
	}

	return &Exchange{
		logger: cfg.Logger,
		clock:  cfg.Clock,
		cfg:    cfg,
		scrips: scrips,
		feed:   newFeed(scripList, open, closeAt),
		book:   ledger.New(),
		orders: make(map[string]*domain.Order),
		trades: make(map[string]*domain.Trade),
	}, nil
}

// RunFeed drives the price feed until the context is cancelled, refreshing
// open-position marks after each step.
func (e *Exchange) RunFeed(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info(ctx, "Price feed started", map[string]interface{}{"interval": interval.String(), "instruments": len(e.scrips)})
	for {
		select {
		case <-ctx.Done():
			e.logger.Info(ctx, "Price feed stopped")
			return ctx.Err()
		case <-ticker.C:
			e.feed.step(e.clock.Now())
			for _, pos := range e.book.Open() {
				e.book.MarkPrice(pos.Instrument, e.feed.lastPrice(pos.Instrument))
			}
		}
	}
}

// OnOrderResolved registers the handler invoked once per terminal order.
func (e *Exchange) OnOrderResolved(handler ports.OrderResolvedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// GetLastPrice returns the last traded price for an instrument.
func (e *Exchange) GetLastPrice(ctx context.Context, key domain.InstrumentKey) (float64, error) {
	if _, ok := e.scrips[key]; !ok {
		return 0, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, key)
	}
	price := e.feed.lastPrice(key)
	if price == 0 {
		return 0, fmt.Errorf("%w: %s", ports.ErrStaleData, key)
	}
	return price, nil
}

// GetQuote returns the full latest snapshot for an instrument.
func (e *Exchange) GetQuote(ctx context.Context, key domain.InstrumentKey) (*domain.Quote, error) {
	if _, ok := e.scrips[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, key)
	}
	q, ok := e.feed.quote(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrStaleData, key)
	}
	return &q, nil
}

// PlaceMarketOrder accepts a market order and schedules its asynchronous
// resolution. The returned ack only means the venue took the order; the
// fill or rejection arrives through the OnOrderResolved handler.
func (e *Exchange) PlaceMarketOrder(ctx context.Context, key domain.InstrumentKey, side domain.OrderSide, quantity int64) (*ports.OrderAck, error) {
	if _, ok := e.scrips[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, key)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive, got %d", ports.ErrInvalidRequest, quantity)
	}

	now := e.clock.Now()
	order := &domain.Order{
		ID:         uuid.NewString(),
		Instrument: key,
		Side:       side,
		Type:       domain.OrderTypeMarket,
		Quantity:   quantity,
		Status:     domain.OrderStatusPending,
		PlacedAt:   now,
		UpdatedAt:  now,
	}

	e.mu.Lock()
	e.orders[order.ID] = order
	e.mu.Unlock()

	e.logger.Info(ctx, "Order accepted", map[string]interface{}{
		"orderID":    order.ID,
		"instrument": key.String(),
		"side":       side,
		"quantity":   quantity,
	})

	e.inflight.Add(1)
	go e.resolve(order.ID)

	return &ports.OrderAck{OrderID: order.ID}, nil
}

// resolve moves one order from pending to a terminal state after the
// randomized latency window. Runs detached from the submitting tick.
func (e *Exchange) resolve(orderID string) {
	defer e.inflight.Done()

	delay := e.cfg.FillDelayMin
	if span := e.cfg.FillDelayMax - e.cfg.FillDelayMin; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(delay)

	ctx := context.Background()
	now := e.clock.Now()

	e.mu.Lock()
	order, ok := e.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		e.mu.Unlock()
		return
	}

	successRate := e.cfg.MarketSuccessRate
	if order.Type == domain.OrderTypeLimit {
		successRate = e.cfg.LimitSuccessRate
	}

	if rand.Float64() >= successRate {
		order.Status = domain.OrderStatusRejected
		order.UpdatedAt = now
		outcome := ports.OrderOutcome{Order: copyOrder(order)}
		handler := e.handler
		e.mu.Unlock()

		e.logger.Warn(ctx, "Order rejected", map[string]interface{}{"orderID": order.ID, "instrument": order.Instrument.String()})
		if handler != nil {
			handler(outcome)
		}
		return
	}

	// Fill at the market price at resolution time, not submission time:
	// the gap between the two is the simulated slippage.
	fillPrice := e.feed.lastPrice(order.Instrument)
	order.Status = domain.OrderStatusComplete
	order.FillPrice = fillPrice
	order.UpdatedAt = now

	trade := &domain.Trade{
		ID:         uuid.NewString(),
		OrderID:    order.ID,
		Instrument: order.Instrument,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      fillPrice,
		ExecutedAt: now,
	}
	e.trades[trade.ID] = trade

	outcome := ports.OrderOutcome{Order: copyOrder(order), Trade: copyTrade(trade)}
	handler := e.handler
	e.mu.Unlock()

	// Ledger update happens outside e.mu; the ledger has its own lock and
	// nothing acquires e.mu while holding it.
	pos := e.book.ApplyFill(order.Instrument, order.Side, order.Quantity, fillPrice, fillPrice)

	e.logger.Info(ctx, "Order filled", map[string]interface{}{
		"orderID":    order.ID,
		"tradeID":    trade.ID,
		"instrument": order.Instrument.String(),
		"fillPrice":  fillPrice,
		"netQty":     pos.NetQty,
		"avgPrice":   pos.AvgPrice,
	})

	if handler != nil {
		handler(outcome)
	}
}

// GetPosition returns the current position for an instrument.
func (e *Exchange) GetPosition(ctx context.Context, key domain.InstrumentKey) (*domain.Position, error) {
	if _, ok := e.scrips[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrUnknownInstrument, key)
	}
	pos := e.book.Get(key)
	return &pos, nil
}

// GetPositions returns every position touched this session.
func (e *Exchange) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	all := e.book.All()
	out := make([]*domain.Position, 0, len(all))
	for i := range all {
		pos := all[i]
		out = append(out, &pos)
	}
	return out, nil
}

// GetOrderBook returns all orders placed this session, oldest first.
func (e *Exchange) GetOrderBook(ctx context.Context) ([]*domain.Order, error) {
	e.mu.Lock()
	out := make([]*domain.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, copyOrder(o))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

// GetTradeBook returns all trades executed this session, oldest first.
func (e *Exchange) GetTradeBook(ctx context.Context) ([]*domain.Trade, error) {
	e.mu.Lock()
	out := make([]*domain.Trade, 0, len(e.trades))
	for _, t := range e.trades {
		out = append(out, copyTrade(t))
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out, nil
}

// SetPrice overwrites an instrument's last traded price. Exposed for tests
// that need deterministic price movement.
func (e *Exchange) SetPrice(key domain.InstrumentKey, price float64) {
	e.feed.setPrice(key, price)
}

// Wait blocks until every in-flight order has reached a terminal state.
func (e *Exchange) Wait() {
	e.inflight.Wait()
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	return &cp
}

func copyTrade(t *domain.Trade) *domain.Trade {
	cp := *t
	return &cp
}

// parseTimeOfDay parses "HH:MM".
func parseTimeOfDay(s string) (timeOfDay, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return timeOfDay{}, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return timeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return timeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return timeOfDay{Hour: h, Minute: m}, nil
}
