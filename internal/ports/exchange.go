package ports

import (
	"context"

	"equityTriggerBot/internal/domain"
)

// OrderAck is the synchronous acknowledgment returned when an order is
// accepted by the venue. The fill (or rejection) arrives later through the
// OrderResolvedHandler.
type OrderAck struct {
	OrderID string // Venue-assigned order ID
}

// OrderOutcome is the terminal result of one order, delivered asynchronously.
type OrderOutcome struct {
	Order *domain.Order // Order in its terminal state
	Trade *domain.Trade // Trade produced by the fill; nil when rejected
}

// OrderResolvedHandler receives each order's terminal outcome exactly once.
// Handlers run on the venue's resolution goroutine and must not block.
type OrderResolvedHandler func(outcome OrderOutcome)

// ExchangeClient is the venue surface the bot core consumes: price reads,
// market order submission, and ledger reads. The simulated exchange
// implements it in-process; a real broker adapter would sit behind the same
// interface.
type ExchangeClient interface {
	// GetLastPrice returns the last traded price for an instrument.
	// Returns ErrStaleData if no quote has been received yet and
	// ErrUnknownInstrument if the key is not in the scrip master.
	GetLastPrice(ctx context.Context, key domain.InstrumentKey) (float64, error)

	// GetQuote returns the full latest snapshot for an instrument.
	GetQuote(ctx context.Context, key domain.InstrumentKey) (*domain.Quote, error)

	// PlaceMarketOrder submits a market order. It returns synchronously once
	// the venue accepts the request; resolution is asynchronous.
	// Returns ErrUnknownInstrument when the venue rejects the request
	// synchronously.
	PlaceMarketOrder(ctx context.Context, key domain.InstrumentKey, side domain.OrderSide, quantity int64) (*OrderAck, error)

	// GetPosition returns the current position for an instrument. A flat
	// instrument yields a zero-valued position, never an error.
	GetPosition(ctx context.Context, key domain.InstrumentKey) (*domain.Position, error)

	// GetPositions returns every position with nonzero history this session.
	GetPositions(ctx context.Context) ([]*domain.Position, error)

	// GetOrderBook returns a snapshot of every order submitted this session,
	// including rejected ones.
	GetOrderBook(ctx context.Context) ([]*domain.Order, error)

	// GetTradeBook returns a snapshot of every trade executed this session.
	GetTradeBook(ctx context.Context) ([]*domain.Trade, error)

	// OnOrderResolved registers a handler for terminal order outcomes.
	// Must be called before the first order is submitted.
	OnOrderResolved(handler OrderResolvedHandler)
}
