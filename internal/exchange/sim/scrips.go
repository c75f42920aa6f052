package sim

import "equityTriggerBot/internal/domain"

// scrip is one instrument master entry plus its seeded session-open price.
type scrip struct {
	instrument domain.Instrument
	basePrice  float64
}

// defaultScrips is the built-in NSE instrument master. Tokens and base
// prices mirror a plausible cash-equity session.
func defaultScrips() []scrip {
	nse := func(symbol, token, name string, base float64) scrip {
		return scrip{
			instrument: domain.Instrument{
				Key:   domain.InstrumentKey{Symbol: symbol, Exchange: "NSE"},
				Token: token,
				Name:  name,
			},
			basePrice: base,
		}
	}
	return []scrip{
		nse("SBIN-EQ", "3045", "STATE BANK OF INDIA", 520.50),
		nse("RELIANCE-EQ", "2885", "RELIANCE INDUSTRIES LTD", 2850.75),
		nse("TCS-EQ", "11536", "TATA CONSULTANCY SERVICES LTD", 3890.25),
		nse("INFY-EQ", "1594", "INFOSYS LIMITED", 1780.50),
		nse("HDFCBANK-EQ", "1333", "HDFC BANK LIMITED", 2650.75),
		nse("ICICIBANK-EQ", "4963", "ICICI BANK LIMITED", 1050.25),
		nse("KOTAKBANK-EQ", "1922", "KOTAK MAHINDRA BANK LIMITED", 1920.50),
		nse("LT-EQ", "11483", "LARSEN & TOUBRO LIMITED", 3420.75),
		nse("WIPRO-EQ", "3787", "WIPRO LIMITED", 680.25),
	}
}
