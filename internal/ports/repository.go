package ports

import (
	"context"

	"equityTriggerBot/internal/domain"
)

// OrderRepository persists terminal orders for audit.
type OrderRepository interface {
	// RecordOrder saves an order in its terminal state.
	RecordOrder(ctx context.Context, order *domain.Order) error
	// FindOrdersByInstrument retrieves the most recent orders for an
	// instrument, up to a limit.
	FindOrdersByInstrument(ctx context.Context, key domain.InstrumentKey, limit int) ([]*domain.Order, error)
}

// TradeRepository persists trades for audit and PnL review.
type TradeRepository interface {
	// RecordTrade saves a trade record.
	RecordTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradesByInstrument retrieves the most recent trades for an
	// instrument, up to a limit.
	FindTradesByInstrument(ctx context.Context, key domain.InstrumentKey, limit int) ([]*domain.Trade, error)
	// CountTradesToday counts trades executed today across all instruments.
	CountTradesToday(ctx context.Context) (int, error)
}
