package models

import "time"

// Candle represents an OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	VWAP      float64   `json:"vwap,omitempty"`
	Volume    float64   `json:"volume"`
}

// Quote is the latest observed price and volume of a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Headline is a news item routed to a symbol.
type Headline struct {
	Symbol      string    `json:"symbol"`
	Text        string    `json:"headline"`
	PublishedAt time.Time `json:"published_at"`
}

// MarketContext is everything a strategy may look at for one evaluation.
// Histories are ascending and bounded; the last element is the current bar.
type MarketContext struct {
	Symbol        string
	Timestamp     time.Time
	Price         float64
	Volume        float64
	PriceHistory  []float64
	VolumeHistory []float64
	Headlines     []string
}

// ContextFromCandles builds a context whose current bar is the last candle.
func ContextFromCandles(symbol string, window []Candle, headlines []string) MarketContext {
	mc := MarketContext{
		Symbol:        symbol,
		PriceHistory:  make([]float64, len(window)),
		VolumeHistory: make([]float64, len(window)),
		Headlines:     headlines,
	}
	for i, c := range window {
		mc.PriceHistory[i] = c.Close
		mc.VolumeHistory[i] = c.Volume
	}
	if n := len(window); n > 0 {
		last := window[n-1]
		mc.Timestamp = last.Timestamp
		mc.Price = last.Close
		mc.Volume = last.Volume
	}
	return mc
}
