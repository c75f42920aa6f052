package domain

import "time"

// Order is one market order submitted to the venue. Quantity is immutable
// once submitted; status only moves forward (see OrderStatus).
type Order struct {
	ID         string        // Unique identifier (UUID)
	Instrument InstrumentKey // Instrument the order trades
	Side       OrderSide     // BUY or SELL
	Type       OrderType     // Requested execution type
	Quantity   int64         // Requested quantity
	Status     OrderStatus   // pending, complete or rejected
	FillPrice  float64       // Resolved fill price (0 until complete)
	PlacedAt   time.Time     // Submission timestamp
	UpdatedAt  time.Time     // Timestamp of the last status transition
}
