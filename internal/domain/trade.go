package domain

import "time"

// Trade is the immutable audit record produced exactly once per fill.
type Trade struct {
	ID         string        // Unique identifier (UUID)
	OrderID    string        // Order that produced this trade
	Instrument InstrumentKey // Instrument traded
	Side       OrderSide     // BUY or SELL
	Quantity   int64         // Filled quantity
	Price      float64       // Fill price
	ExecutedAt time.Time     // Fill timestamp
}
