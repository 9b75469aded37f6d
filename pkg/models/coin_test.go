package models

import "testing"

func TestCoinFields(t *testing.T) {
	c := MarketCoin{
		ID:           "dogecoin",
		Symbol:       "doge",
		Name:         "Dogecoin",
		CurrentPrice: 0.08,
		MarketCap:    5000000,
	}

	f := CoinFields(c, 0.09)
	if len(f) != 4 {
		t.Fatalf("got %d fields, want 4", len(f))
	}
	if f[FieldName] != "Dogecoin" {
		t.Errorf("name = %v", f[FieldName])
	}
	if f[FieldSymbol] != "doge" {
		t.Errorf("symbol = %v", f[FieldSymbol])
	}
	if f[FieldCurrentPrice] != 0.09 {
		t.Errorf("current_price = %v, want seed 0.09", f[FieldCurrentPrice])
	}
	if f[FieldMarketCap] != 5000000.0 {
		t.Errorf("market_cap = %v", f[FieldMarketCap])
	}
}
