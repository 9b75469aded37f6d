package models

// Field names of a coin record in the durable store.
const (
	FieldName         = "name"
	FieldSymbol       = "symbol"
	FieldCurrentPrice = "current_price"
	FieldMarketCap    = "market_cap"
)

// MarketCoin is one entry of the top-by-market-cap listing.
type MarketCoin struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	MarketCap     float64 `json:"market_cap"`
	MarketCapRank int     `json:"market_cap_rank"`
}

// CoinFields builds the field map written when a coin is first catalogued.
// seedPrice is the price stored as current_price; it is never updated afterwards.
func CoinFields(c MarketCoin, seedPrice float64) map[string]any {
	return map[string]any{
		FieldName:         c.Name,
		FieldSymbol:       c.Symbol,
		FieldCurrentPrice: seedPrice,
		FieldMarketCap:    c.MarketCap,
	}
}

// CoinPrice is the body of a single-coin price lookup.
type CoinPrice struct {
	CoinID string  `json:"coinId"`
	Price  float64 `json:"price"`
}

// PriceEntry is one value of the coin listing, keyed by symbol.
type PriceEntry struct {
	Price float64 `json:"price"`
}
