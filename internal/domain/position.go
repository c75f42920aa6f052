package domain

// Position is the running net position for one instrument, maintained by
// netting successive fills into a weighted average entry price.
type Position struct {
	Instrument InstrumentKey // Identity of the position
	NetQty     int64         // Signed net quantity (bought - sold)
	AvgPrice   float64       // Weighted average entry price; 0 while flat
	BoughtQty  int64         // Cumulative bought quantity
	SoldQty    int64         // Cumulative sold quantity
	BuyValue   float64       // Cumulative bought value
	SellValue  float64       // Cumulative sold value
	LastPrice  float64       // Last traded price seen at the latest fill
	PnL        float64       // Mark-to-market PnL: (LastPrice-AvgPrice)*NetQty, 0 while flat
}

// IsOpen reports whether the position carries exposure.
func (p *Position) IsOpen() bool {
	return p.NetQty != 0
}
