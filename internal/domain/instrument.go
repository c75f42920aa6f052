package domain

import "fmt"

// InstrumentKey identifies a tradable instrument by symbol and exchange.
// It is the key for prices, positions, and triggers.
type InstrumentKey struct {
	Symbol   string // Trading symbol (e.g., "SBIN-EQ")
	Exchange string // Exchange code (e.g., "NSE")
}

// String renders the key in "SYMBOL-EXCHANGE" form, matching the broker's
// scrip master convention.
func (k InstrumentKey) String() string {
	return fmt.Sprintf("%s-%s", k.Symbol, k.Exchange)
}

// Instrument is one entry of the instrument master.
type Instrument struct {
	Key   InstrumentKey
	Token string // Broker-assigned numeric token
	Name  string // Display name
}
