package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"equityTriggerBot/internal/domain"
	"equityTriggerBot/internal/ports"
	"equityTriggerBot/internal/registry"
	"equityTriggerBot/internal/scheduler"
)

// priceFeed is the slice of the simulated venue the service drives itself:
// the quote generator loop. A real broker adapter would not need it.
type priceFeed interface {
	RunFeed(ctx context.Context, interval time.Duration) error
}

// Config holds the dependencies and settings for the bot service.
type Config struct {
	Logger    ports.Logger
	Clock     ports.Clock
	Exchange  ports.ExchangeClient
	Registry  *registry.Registry
	Switch    *scheduler.Switch
	Scheduler *scheduler.Scheduler
	AutoExit  *scheduler.AutoExit

	// Optional: audit persistence. When nil, terminal orders and trades are
	// only kept in the venue's in-memory books.
	OrderRepo ports.OrderRepository
	TradeRepo ports.TradeRepository

	// Optional: quote generator to run alongside the schedulers.
	Feed         priceFeed
	FeedInterval time.Duration
}

// BotService orchestrates the trading bot: trigger management, manual
// orders, status reads, and the run loop that drives the schedulers.
type BotService struct {
	logger    ports.Logger
	clock     ports.Clock
	exchange  ports.ExchangeClient
	registry  *registry.Registry
	enabled   *scheduler.Switch
	scheduler *scheduler.Scheduler
	autoExit  *scheduler.AutoExit
	orderRepo ports.OrderRepository
	tradeRepo ports.TradeRepository

	feed         priceFeed
	feedInterval time.Duration
}

// NewBotService creates the application service and registers the order
// resolution handler with the venue. Must be constructed before any order is
// submitted.
func NewBotService(cfg Config) (*BotService, error) {
	if cfg.Logger == nil || cfg.Exchange == nil || cfg.Registry == nil || cfg.Switch == nil ||
		cfg.Scheduler == nil || cfg.AutoExit == nil {
		return nil, fmt.Errorf("missing required dependencies for BotService")
	}
	if cfg.Clock == nil {
		cfg.Clock = ports.RealClock{}
	}
	if cfg.FeedInterval <= 0 {
		cfg.FeedInterval = time.Second
	}

	s := &BotService{
		logger:       cfg.Logger,
		clock:        cfg.Clock,
		exchange:     cfg.Exchange,
		registry:     cfg.Registry,
		enabled:      cfg.Switch,
		scheduler:    cfg.Scheduler,
		autoExit:     cfg.AutoExit,
		orderRepo:    cfg.OrderRepo,
		tradeRepo:    cfg.TradeRepo,
		feed:         cfg.Feed,
		feedInterval: cfg.FeedInterval,
	}
	s.exchange.OnOrderResolved(s.handleOrderResolved)
	return s, nil
}

// Run starts the schedulers (and the simulated feed, when configured) and
// blocks until the context is cancelled or a SIGINT/SIGTERM arrives. On
// shutdown every outstanding trigger is dropped so a restart begins clean.
func (s *BotService) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info(ctx, "Bot service starting", map[string]interface{}{"enabled": s.enabled.Enabled()})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.scheduler.Run(gctx) })
	g.Go(func() error { return s.autoExit.Run(gctx) })
	if s.feed != nil {
		g.Go(func() error { return s.feed.RunFeed(gctx, s.feedInterval) })
	}

	err := g.Wait()

	cleared := s.registry.Clear()
	s.logger.Info(ctx, "Bot service stopped", map[string]interface{}{"clearedTriggers": cleared})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// TriggerRequest carries the caller-supplied parameters for a new trigger.
type TriggerRequest struct {
	Direction  domain.TriggerDirection
	Instrument domain.InstrumentKey
	Condition  domain.ConditionKind
	Points     float64
	Percentage float64
	CandleSize string
	Quantity   int64 // entry order size; ignored for exits
	Mode       domain.TradeMode
}

// CreateTrigger validates the request, captures the baseline price for entry
// triggers, and registers the trigger for evaluation.
func (s *BotService) CreateTrigger(ctx context.Context, req TriggerRequest) (*domain.Trigger, error) {
	if err := s.validateTriggerRequest(req); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeSingle
	}

	// The instrument check and the entry baseline come from the same price
	// read. Exit triggers tolerate a not-yet-quoted instrument; entry
	// triggers cannot, the baseline is the price at creation.
	price, err := s.exchange.GetLastPrice(ctx, req.Instrument)
	if err != nil {
		if errors.Is(err, ports.ErrStaleData) && req.Direction == domain.DirectionExit {
			price = 0
		} else {
			return nil, fmt.Errorf("trigger creation for %s: %w", req.Instrument, err)
		}
	}

	trig := &domain.Trigger{
		ID:         uuid.NewString(),
		Direction:  req.Direction,
		Instrument: req.Instrument,
		Condition:  req.Condition,
		Points:     req.Points,
		Percentage: req.Percentage,
		Quantity:   req.Quantity,
		Mode:       mode,
		CreatedAt:  s.clock.Now(),
	}
	if req.Direction == domain.DirectionEntry {
		trig.Baseline = price
	}

	if err := s.registry.Add(trig); err != nil {
		return nil, fmt.Errorf("trigger registration: %w", err)
	}

	s.logger.Info(ctx, "Trigger created", map[string]interface{}{
		"triggerID":  trig.ID,
		"direction":  trig.Direction,
		"instrument": trig.Instrument.String(),
		"condition":  trig.Condition,
		"baseline":   trig.Baseline,
		"mode":       trig.Mode,
	})
	cp := *trig
	return &cp, nil
}

func (s *BotService) validateTriggerRequest(req TriggerRequest) error {
	if req.Direction != domain.DirectionEntry && req.Direction != domain.DirectionExit {
		return fmt.Errorf("%w: direction must be entry or exit", ports.ErrInvalidRequest)
	}
	if req.Mode != "" && req.Mode != domain.ModeSingle && req.Mode != domain.ModeMulti {
		return fmt.Errorf("%w: mode must be single or multi", ports.ErrInvalidRequest)
	}
	switch req.Condition {
	case domain.ConditionPoints:
		if req.Points <= 0 {
			return fmt.Errorf("%w: points threshold must be positive", ports.ErrInvalidRequest)
		}
	case domain.ConditionPercentage:
		if req.Percentage <= 0 {
			return fmt.Errorf("%w: percentage threshold must be positive", ports.ErrInvalidRequest)
		}
	case domain.ConditionCandle:
		return fmt.Errorf("trigger creation: %w", ports.ErrUnsupportedCondition)
	default:
		return fmt.Errorf("%w: unknown condition %q", ports.ErrInvalidRequest, req.Condition)
	}
	if req.Direction == domain.DirectionEntry && req.Quantity <= 0 {
		return fmt.Errorf("%w: entry quantity must be positive", ports.ErrInvalidRequest)
	}
	return nil
}

// CancelTrigger removes an outstanding trigger. Returns ErrNotFound when the
// id is unknown or the trigger already retired.
func (s *BotService) CancelTrigger(ctx context.Context, id string) error {
	if !s.registry.Retire(id, domain.RetireCancelled) {
		return fmt.Errorf("%w: trigger %s", ports.ErrNotFound, id)
	}
	s.logger.Info(ctx, "Trigger cancelled", map[string]interface{}{"triggerID": id})
	return nil
}

// ListActiveTriggers returns copies of every outstanding trigger, ordered by
// creation time.
func (s *BotService) ListActiveTriggers(ctx context.Context) []*domain.Trigger {
	triggers := s.registry.Active()
	sort.Slice(triggers, func(i, j int) bool {
		return triggers[i].CreatedAt.Before(triggers[j].CreatedAt)
	})
	return triggers
}

// SetBotEnabled flips the automation switch. Disabling stops trigger
// evaluation and the auto-exit sweep; outstanding triggers keep aging.
func (s *BotService) SetBotEnabled(ctx context.Context, enabled bool) {
	s.enabled.Set(enabled)
	s.logger.Info(ctx, "Bot switch changed", map[string]interface{}{"enabled": enabled})
}

// Status is the bot's externally visible state snapshot.
type Status struct {
	Enabled        bool
	ActiveTriggers int
	TriggerIDs     []string
	OpenPositions  []*domain.Position
	TradesToday    int
}

// Status reports the switch state, outstanding triggers, open positions, and
// today's trade count.
func (s *BotService) Status(ctx context.Context) (*Status, error) {
	st := &Status{Enabled: s.enabled.Enabled()}

	triggers := s.ListActiveTriggers(ctx)
	st.ActiveTriggers = len(triggers)
	st.TriggerIDs = make([]string, 0, len(triggers))
	for _, t := range triggers {
		st.TriggerIDs = append(st.TriggerIDs, t.ID)
	}

	positions, err := s.exchange.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("status position read: %w", err)
	}
	for _, pos := range positions {
		if pos.NetQty != 0 {
			st.OpenPositions = append(st.OpenPositions, pos)
		}
	}

	if s.tradeRepo != nil {
		count, err := s.tradeRepo.CountTradesToday(ctx)
		if err != nil {
			// Audit store trouble must not blank the whole status read.
			s.logger.Error(ctx, err, "Status trade count failed")
		} else {
			st.TradesToday = count
		}
	}
	return st, nil
}

// MarketBuy submits an immediate market buy, bypassing triggers.
func (s *BotService) MarketBuy(ctx context.Context, key domain.InstrumentKey, quantity int64) (*ports.OrderAck, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}
	ack, err := s.exchange.PlaceMarketOrder(ctx, key, domain.Buy, quantity)
	if err != nil {
		return nil, fmt.Errorf("market buy for %s: %w", key, err)
	}
	s.logger.Info(ctx, "Manual buy submitted", map[string]interface{}{"instrument": key.String(), "quantity": quantity, "orderID": ack.OrderID})
	return ack, nil
}

// MarketSell is the manual exit: it closes the full open position for the
// instrument, sized from the ledger at call time. Returns ErrNoPosition when
// the instrument is flat.
func (s *BotService) MarketSell(ctx context.Context, key domain.InstrumentKey) (*ports.OrderAck, error) {
	pos, err := s.exchange.GetPosition(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("manual exit position read for %s: %w", key, err)
	}
	if pos.NetQty == 0 {
		return nil, fmt.Errorf("manual exit for %s: %w", key, ports.ErrNoPosition)
	}
	side := domain.Sell
	quantity := pos.NetQty
	if pos.NetQty < 0 {
		side = domain.Buy
		quantity = -pos.NetQty
	}

	ack, err := s.exchange.PlaceMarketOrder(ctx, key, side, quantity)
	if err != nil {
		return nil, fmt.Errorf("manual exit for %s: %w", key, err)
	}
	s.logger.Info(ctx, "Manual exit submitted", map[string]interface{}{"instrument": key.String(), "side": side, "quantity": quantity, "orderID": ack.OrderID})
	return ack, nil
}

// OrderBook returns every order submitted this session, rejected ones
// included.
func (s *BotService) OrderBook(ctx context.Context) ([]*domain.Order, error) {
	return s.exchange.GetOrderBook(ctx)
}

// TradeBook returns every trade executed this session.
func (s *BotService) TradeBook(ctx context.Context) ([]*domain.Trade, error) {
	return s.exchange.GetTradeBook(ctx)
}

// handleOrderResolved persists each terminal order, and its trade when
// filled, to the audit store. Persistence failures are logged and swallowed:
// the venue's in-memory books stay authoritative for the session.
func (s *BotService) handleOrderResolved(outcome ports.OrderOutcome) {
	ctx := context.Background()

	s.logger.Info(ctx, "Order resolved", map[string]interface{}{
		"orderID":    outcome.Order.ID,
		"instrument": outcome.Order.Instrument.String(),
		"status":     outcome.Order.Status,
		"fillPrice":  outcome.Order.FillPrice,
	})

	if s.orderRepo != nil {
		if err := s.orderRepo.RecordOrder(ctx, outcome.Order); err != nil {
			s.logger.Error(ctx, err, "Failed to persist order", map[string]interface{}{"orderID": outcome.Order.ID})
		}
	}
	if outcome.Trade != nil && s.tradeRepo != nil {
		if err := s.tradeRepo.RecordTrade(ctx, outcome.Trade); err != nil {
			s.logger.Error(ctx, err, "Failed to persist trade", map[string]interface{}{"tradeID": outcome.Trade.ID})
		}
	}
}
