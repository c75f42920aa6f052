package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
	"equityTriggerBot/internal/registry"
)

// Switch is the bot's global on/off state, shared by the trigger scheduler,
// the auto-exit scheduler, and the service surface.
type Switch struct {
	on atomic.Bool
}

// NewSwitch creates a switch in the given state.
func NewSwitch(on bool) *Switch {
	s := &Switch{}
	s.on.Store(on)
	return s
}

// Enabled reports whether the bot may fire triggers.
func (s *Switch) Enabled() bool { return s.on.Load() }

// Set flips the switch.
func (s *Switch) Set(on bool) { s.on.Store(on) }

// Config holds configuration for the trigger scheduler.
type Config struct {
	Logger   ports.Logger
	Clock    ports.Clock
	Exchange ports.ExchangeClient
	Registry *registry.Registry
	Switch   *Switch

	TickInterval   time.Duration // default 1s
	TriggerTimeout time.Duration // default 5m
}

// Scheduler scans the outstanding triggers against live prices on a fixed
// tick, fires qualifying ones through the exchange, and retires expired or
// single-shot triggers.
type Scheduler struct {
	logger   ports.Logger
	clock    ports.Clock
	exchange ports.ExchangeClient
	registry *registry.Registry
	enabled  *Switch

	tickInterval   time.Duration
	triggerTimeout time.Duration
}

// New creates a trigger scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Logger == nil || cfg.Exchange == nil || cfg.Registry == nil || cfg.Switch == nil {
		return nil, fmt.Errorf("missing required dependencies for scheduler")
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.RealClock{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.TriggerTimeout <= 0 {
		cfg.TriggerTimeout = 5 * time.Minute
	}
	return &Scheduler{
		logger:         cfg.Logger,
		clock:          cfg.Clock,
		exchange:       cfg.Exchange,
		registry:       cfg.Registry,
		enabled:        cfg.Switch,
		tickInterval:   cfg.TickInterval,
		triggerTimeout: cfg.TriggerTimeout,
	}, nil
}

// Run executes ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "Trigger scheduler started", map[string]interface{}{"tick": s.tickInterval.String(), "timeout": s.triggerTimeout.String()})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Trigger scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates every active trigger once. Exported so tests and callers
// can drive the scheduler without the timer.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.enabled.Enabled() {
		return
	}

	// The snapshot may be stale against concurrent add/retire calls; the
	// per-trigger IsActive re-check below guarantees retirement is never
	// lost across ticks.
	for _, trig := range s.registry.Active() {
		if err := s.evaluate(ctx, trig); err != nil {
			// One trigger's failure must not stall the rest of the tick.
			s.logger.Error(ctx, err, "Trigger evaluation failed", map[string]interface{}{
				"triggerID":  trig.ID,
				"instrument": trig.Instrument.String(),
			})
		}
	}
}

// evaluate runs one trigger through timeout, price, and condition checks,
// firing if the condition holds.
func (s *Scheduler) evaluate(ctx context.Context, trig *domain.Trigger) error {
	if !s.registry.IsActive(trig.ID) {
		return nil // retired mid-tick
	}

	now := s.clock.Now()
	if trig.Expired(now, s.triggerTimeout) {
		s.registry.Retire(trig.ID, domain.RetireExpired)
		s.logger.Info(ctx, "Trigger expired without firing", map[string]interface{}{
			"triggerID":  trig.ID,
			"instrument": trig.Instrument.String(),
			"age":        now.Sub(trig.CreatedAt).String(),
		})
		return nil
	}

	price, err := s.exchange.GetLastPrice(ctx, trig.Instrument)
	if err != nil {
		if errors.Is(err, ports.ErrStaleData) {
			// Waiting for data, not an error; try again next tick.
			s.logger.Debug(ctx, "No price yet for trigger instrument", map[string]interface{}{"triggerID": trig.ID, "instrument": trig.Instrument.String()})
			return nil
		}
		return fmt.Errorf("price read for trigger %s: %w", trig.ID, err)
	}

	fire, err := s.conditionMet(ctx, trig, price)
	if err != nil {
		return fmt.Errorf("condition check for trigger %s: %w", trig.ID, err)
	}
	if !fire {
		return nil
	}
	return s.fire(ctx, trig, price)
}

// conditionMet evaluates the trigger's price condition. Exit conditions read
// the entry price live from the ledger; with no open position they cannot
// fire.
func (s *Scheduler) conditionMet(ctx context.Context, trig *domain.Trigger, price float64) (bool, error) {
	switch trig.Direction {
	case domain.DirectionEntry:
		switch trig.Condition {
		case domain.ConditionPoints:
			return price >= trig.Baseline+trig.Points, nil
		case domain.ConditionPercentage:
			return price >= trig.Baseline*(1+trig.Percentage/100), nil
		case domain.ConditionCandle:
			return false, ports.ErrUnsupportedCondition
		}
	case domain.DirectionExit:
		pos, err := s.exchange.GetPosition(ctx, trig.Instrument)
		if err != nil {
			return false, fmt.Errorf("position read: %w", err)
		}
		entryPrice := pos.AvgPrice
		if entryPrice == 0 {
			return false, nil // nothing open, nothing to protect
		}
		switch trig.Condition {
		case domain.ConditionPoints:
			return price <= entryPrice-trig.Points, nil
		case domain.ConditionPercentage:
			return price <= entryPrice*(1-trig.Percentage/100), nil
		case domain.ConditionCandle:
			return false, ports.ErrUnsupportedCondition
		}
	}
	return false, fmt.Errorf("%w: direction %q condition %q", ports.ErrInvalidRequest, trig.Direction, trig.Condition)
}

// fire submits exactly one market order for the trigger and retires it
// according to its mode. Exit quantity is resolved from the ledger at fire
// time, never cached.
func (s *Scheduler) fire(ctx context.Context, trig *domain.Trigger, price float64) error {
	side := domain.Buy
	quantity := trig.Quantity

	if trig.Direction == domain.DirectionExit {
		pos, err := s.exchange.GetPosition(ctx, trig.Instrument)
		if err != nil {
			return fmt.Errorf("exit sizing: %w", err)
		}
		if pos.NetQty == 0 {
			// Position vanished between condition check and fire. Drop the
			// fire; the trigger has nothing left to close.
			s.registry.Retire(trig.ID, domain.RetireFired)
			return fmt.Errorf("exit fire for trigger %s: %w", trig.ID, ports.ErrNoPosition)
		}
		if pos.NetQty > 0 {
			side = domain.Sell
			quantity = pos.NetQty
		} else {
			side = domain.Buy
			quantity = -pos.NetQty
		}
	}

	ack, err := s.exchange.PlaceMarketOrder(ctx, trig.Instrument, side, quantity)
	if err != nil {
		// Gateway failure: the fire is dropped, the trigger stays active
		// and may fire on a later tick once the venue recovers.
		return fmt.Errorf("order submission for trigger %s: %w", trig.ID, err)
	}

	s.logger.Info(ctx, "Trigger fired", map[string]interface{}{
		"triggerID":  trig.ID,
		"instrument": trig.Instrument.String(),
		"direction":  trig.Direction,
		"side":       side,
		"quantity":   quantity,
		"price":      price,
		"orderID":    ack.OrderID,
	})

	// Exit triggers always retire on fire; entry triggers retire only in
	// single mode. Multi mode re-arms immediately with the same baseline.
	if trig.Direction == domain.DirectionExit || trig.Mode == domain.ModeSingle {
		s.registry.Retire(trig.ID, domain.RetireFired)
	}
	return nil
}
