package ledger

import (
	"sync"

	"equityTriggerBot/internal/domain"
)

// Ledger holds the net position per instrument, mutated only by fills.
// A single mutex guards the whole map; every update is O(1) so hold time is
// negligible and per-instrument sharding isn't worth the complexity.
type Ledger struct {
	mu        sync.Mutex
	positions map[domain.InstrumentKey]*domain.Position
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		positions: make(map[domain.InstrumentKey]*domain.Position),
	}
}

// ApplyFill nets one fill into the instrument's position and returns a copy
// of the resulting state. The weighted average entry price is recomputed on
// buys and reset to zero whenever the net quantity returns to zero.
func (l *Ledger) ApplyFill(key domain.InstrumentKey, side domain.OrderSide, quantity int64, fillPrice, lastPrice float64) domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[key]
	if !ok {
		pos = &domain.Position{Instrument: key}
		l.positions[key] = pos
	}

	switch side {
	case domain.Buy:
		newNet := pos.NetQty + quantity
		if newNet > 0 {
			pos.AvgPrice = (float64(pos.NetQty)*pos.AvgPrice + float64(quantity)*fillPrice) / float64(newNet)
		} else {
			// Closed or flipped through zero; the old average no longer
			// describes the exposure.
			pos.AvgPrice = 0
		}
		pos.NetQty = newNet
		pos.BoughtQty += quantity
		pos.BuyValue += float64(quantity) * fillPrice
	case domain.Sell:
		pos.NetQty -= quantity
		pos.SoldQty += quantity
		pos.SellValue += float64(quantity) * fillPrice
		if pos.NetQty == 0 {
			pos.AvgPrice = 0
		}
	}

	pos.LastPrice = lastPrice
	if pos.NetQty != 0 {
		pos.PnL = (lastPrice - pos.AvgPrice) * float64(pos.NetQty)
	} else {
		pos.PnL = 0
	}

	return *pos
}

// Get returns a copy of the instrument's position. A never-traded instrument
// yields a zero-valued position.
func (l *Ledger) Get(key domain.InstrumentKey) domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	if pos, ok := l.positions[key]; ok {
		return *pos
	}
	return domain.Position{Instrument: key}
}

// Open returns copies of every position with nonzero net quantity.
func (l *Ledger) Open() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	open := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		if pos.NetQty != 0 {
			open = append(open, *pos)
		}
	}
	return open
}

// All returns copies of every position touched this session, flat or not.
func (l *Ledger) All() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()

	all := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		all = append(all, *pos)
	}
	return all
}

// MarkPrice refreshes LastPrice and PnL for an instrument without changing
// quantities. Used by the feed so open PnL tracks the market between fills.
func (l *Ledger) MarkPrice(key domain.InstrumentKey, lastPrice float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[key]
	if !ok {
		return
	}
	pos.LastPrice = lastPrice
	if pos.NetQty != 0 {
		pos.PnL = (lastPrice - pos.AvgPrice) * float64(pos.NetQty)
	}
}
