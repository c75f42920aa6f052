package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the side that flattens this one.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType represents the requested execution type of an order.
// Only market orders are reachable through the bot; the limit type exists
// because the simulated venue models a lower success rate for it.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle state of an order.
// Transitions are one-directional: pending -> complete or pending -> rejected.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusComplete OrderStatus = "complete"
	OrderStatusRejected OrderStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusComplete || s == OrderStatusRejected
}

// TriggerDirection says whether a trigger opens or closes exposure.
type TriggerDirection string

const (
	DirectionEntry TriggerDirection = "entry"
	DirectionExit  TriggerDirection = "exit"
)

// ConditionKind is the price condition family a trigger evaluates.
type ConditionKind string

const (
	ConditionPoints     ConditionKind = "points"
	ConditionPercentage ConditionKind = "percentage"
	ConditionCandle     ConditionKind = "candle" // reserved, rejected at creation
)

// TradeMode controls whether an entry trigger retires after its first fire.
type TradeMode string

const (
	ModeSingle TradeMode = "single"
	ModeMulti  TradeMode = "multi"
)

// TriggerStatus is the lifecycle state of a trigger.
type TriggerStatus string

const (
	TriggerActive  TriggerStatus = "active"
	TriggerRetired TriggerStatus = "retired"
)

// RetireReason records why a trigger left the registry.
type RetireReason string

const (
	RetireFired     RetireReason = "fired"
	RetireExpired   RetireReason = "expired"
	RetireCancelled RetireReason = "cancelled"
	RetireShutdown  RetireReason = "shutdown"
)
