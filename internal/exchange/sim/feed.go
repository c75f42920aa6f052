package sim

import (
	"math/rand"
	"sync"
	"time"

	"equityTriggerBot/internal/domain"
)

// feed maintains the latest quote per instrument and advances each price on
// a small random walk. Prices only move inside the configured market-hours
// window; outside it the last quote holds.
type feed struct {
	marketOpen  timeOfDay
	marketClose timeOfDay

	mu     sync.RWMutex
	quotes map[domain.InstrumentKey]*domain.Quote
}

// timeOfDay is a wall-clock time within a day, timezone-agnostic.
type timeOfDay struct {
	Hour   int
	Minute int
}

func (d timeOfDay) minuteOfDay() int { return d.Hour*60 + d.Minute }

func minuteOf(t time.Time) int {
	h, m, _ := t.Clock()
	return h*60 + m
}

func newFeed(scrips []scrip, open, close timeOfDay) *feed {
	f := &feed{
		marketOpen:  open,
		marketClose: close,
		quotes:      make(map[domain.InstrumentKey]*domain.Quote, len(scrips)),
	}
	now := time.Now()
	for _, s := range scrips {
		base := s.basePrice
		f.quotes[s.instrument.Key] = &domain.Quote{
			Instrument: s.instrument.Key,
			LTP:        base,
			Open:       base * (0.98 + rand.Float64()*0.04),
			High:       base * (1.0 + rand.Float64()*0.03),
			Low:        base * (0.97 + rand.Float64()*0.02),
			Close:      base,
			Volume:     int64(100000 + rand.Intn(900000)),
			Timestamp:  now,
		}
	}
	return f
}

// step advances every price by up to ±0.5% when the market is open at now.
func (f *feed) step(now time.Time) {
	md := minuteOf(now)
	if md < f.marketOpen.minuteOfDay() || md > f.marketClose.minuteOfDay() {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.quotes {
		change := (rand.Float64() - 0.5) * 0.01
		q.LTP = round2(q.LTP * (1 + change))
		if q.LTP > q.High {
			q.High = q.LTP
		}
		if q.LTP < q.Low {
			q.Low = q.LTP
		}
		q.Volume += int64(100 + rand.Intn(900))
		q.Timestamp = now
	}
}

// lastPrice returns the LTP for an instrument, or 0 when no quote exists.
func (f *feed) lastPrice(key domain.InstrumentKey) float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if q, ok := f.quotes[key]; ok {
		return q.LTP
	}
	return 0
}

// quote returns a copy of the instrument's latest snapshot.
func (f *feed) quote(key domain.InstrumentKey) (domain.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if q, ok := f.quotes[key]; ok {
		return *q, true
	}
	return domain.Quote{}, false
}

// setPrice overwrites an instrument's LTP. Test hook; production code only
// moves prices through step.
func (f *feed) setPrice(key domain.InstrumentKey, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[key]
	if !ok {
		q = &domain.Quote{Instrument: key}
		f.quotes[key] = q
	}
	q.LTP = price
	q.Timestamp = time.Now()
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
