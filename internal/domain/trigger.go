package domain

import "time"

// Trigger is a standing entry or exit condition. Once its condition is
// satisfied by price it causes exactly one market order per fire.
type Trigger struct {
	ID         string           // Unique identifier (UUID)
	Direction  TriggerDirection // entry or exit
	Instrument InstrumentKey    // Instrument the trigger watches
	Condition  ConditionKind    // points, percentage or candle
	Points     float64          // Threshold in price points (points condition)
	Percentage float64          // Threshold in percent (percentage condition)
	CandleSize string           // Candle interval (candle condition, reserved)
	Baseline   float64          // Price captured at creation (entry triggers)
	Quantity   int64            // Order size for entry fires; exits size from the ledger
	Mode       TradeMode        // single retires after one fire, multi re-arms
	CreatedAt  time.Time        // Creation timestamp, drives the timeout check
	Status     TriggerStatus    // active or retired
}

// IsActive reports whether the trigger is still eligible for evaluation.
func (t *Trigger) IsActive() bool {
	return t.Status == TriggerActive
}

// Expired reports whether the trigger has outlived its timeout window
// without firing.
func (t *Trigger) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(t.CreatedAt) > timeout
}
