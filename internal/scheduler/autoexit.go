package scheduler

import (
	"context"
	"fmt"
	"time"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
	"equityTriggerBot/internal/registry"
)

// AutoExitConfig holds configuration for the auto-exit scheduler.
type AutoExitConfig struct {
	Logger   ports.Logger
	Clock    ports.Clock
	Exchange ports.ExchangeClient
	Registry *registry.Registry
	Switch   *Switch

	CutoffHour    int           // e.g. 15
	CutoffMinute  int           // e.g. 25
	CheckInterval time.Duration // default 1m
	Cooldown      time.Duration // default 5m; sleep after firing so the edge is crossed once
}

// AutoExit is the end-of-day watchdog: once wall-clock time crosses the
// cutoff while the bot is enabled, it flattens every open position, disables
// the bot, and clears the trigger registry. It will not fire again until the
// bot is explicitly re-enabled for the next session.
type AutoExit struct {
	logger   ports.Logger
	clock    ports.Clock
	exchange ports.ExchangeClient
	registry *registry.Registry
	enabled  *Switch

	cutoffHour    int
	cutoffMinute  int
	checkInterval time.Duration
	cooldown      time.Duration
}

// NewAutoExit creates an auto-exit scheduler.
func NewAutoExit(cfg AutoExitConfig) (*AutoExit, error) {
	if cfg.Logger == nil || cfg.Exchange == nil || cfg.Registry == nil || cfg.Switch == nil {
		return nil, fmt.Errorf("missing required dependencies for auto-exit scheduler")
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.RealClock{}
	}
	if cfg.CutoffHour < 0 || cfg.CutoffHour > 23 || cfg.CutoffMinute < 0 || cfg.CutoffMinute > 59 {
		return nil, fmt.Errorf("invalid auto-exit cutoff %02d:%02d", cfg.CutoffHour, cfg.CutoffMinute)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &AutoExit{
		logger:        cfg.Logger,
		clock:         cfg.Clock,
		exchange:      cfg.Exchange,
		registry:      cfg.Registry,
		enabled:       cfg.Switch,
		cutoffHour:    cfg.CutoffHour,
		cutoffMinute:  cfg.CutoffMinute,
		checkInterval: cfg.CheckInterval,
		cooldown:      cfg.Cooldown,
	}, nil
}

// Run checks the cutoff until the context is cancelled.
func (a *AutoExit) Run(ctx context.Context) error {
	a.logger.Info(ctx, "Auto-exit scheduler started", map[string]interface{}{
		"cutoff": fmt.Sprintf("%02d:%02d", a.cutoffHour, a.cutoffMinute),
	})
	for {
		wait := a.checkInterval
		if a.Check(ctx) {
			wait = a.cooldown
		}
		select {
		case <-ctx.Done():
			a.logger.Info(ctx, "Auto-exit scheduler stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Check runs one cutoff evaluation and returns true when the auto-exit
// fired. Exported so tests can drive it without the timer.
func (a *AutoExit) Check(ctx context.Context) bool {
	if !a.enabled.Enabled() || !a.cutoffReached(a.clock.Now()) {
		return false
	}

	a.logger.Info(ctx, "Auto-exit cutoff reached, closing all positions")
	a.flattenAll(ctx)

	// Disable first so no trigger fires into the freshly flattened book,
	// then drop every outstanding trigger.
	a.enabled.Set(false)
	cleared := a.registry.Clear()
	a.logger.Info(ctx, "Bot disabled for the day", map[string]interface{}{"clearedTriggers": cleared})
	return true
}

func (a *AutoExit) cutoffReached(now time.Time) bool {
	h, m, _ := now.Clock()
	return h*60+m >= a.cutoffHour*60+a.cutoffMinute
}

// flattenAll submits one closing market order per instrument with nonzero
// net quantity, sized to the exact position. Per-instrument failures are
// logged and do not stop the sweep.
func (a *AutoExit) flattenAll(ctx context.Context) {
	positions, err := a.exchange.GetPositions(ctx)
	if err != nil {
		a.logger.Error(ctx, err, "Auto-exit failed to read positions")
		return
	}

	for _, pos := range positions {
		if pos.NetQty == 0 {
			continue
		}
		side := domain.Sell
		quantity := pos.NetQty
		if pos.NetQty < 0 {
			side = domain.Buy
			quantity = -pos.NetQty
		}
		ack, err := a.exchange.PlaceMarketOrder(ctx, pos.Instrument, side, quantity)
		if err != nil {
			a.logger.Error(ctx, err, "Auto-exit close order failed", map[string]interface{}{"instrument": pos.Instrument.String()})
			continue
		}
		a.logger.Info(ctx, "Auto-exit close order submitted", map[string]interface{}{
			"instrument": pos.Instrument.String(),
			"side":       side,
			"quantity":   quantity,
			"orderID":    ack.OrderID,
		})
	}
}
