package domain

import "time"

// Quote is the latest price snapshot for one instrument as supplied by the
// feed. The schedulers only ever read LTP; the rest mirrors what a broker
// feed carries.
type Quote struct {
	Instrument InstrumentKey // Instrument the quote belongs to
	LTP        float64       // Last traded price
	Open       float64       // Session open
	High       float64       // Session high
	Low        float64       // Session low
	Close      float64       // Previous session close
	Volume     int64         // Cumulative session volume
	Timestamp  time.Time     // Time of the last update
}
