package models

import "time"

// PriceBar is one OHLCV bar as returned by a market-data provider.
type PriceBar struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose *float64
	Volume   float64
}

// PriceHistory is a provider's answer for one ticker.
type PriceHistory struct {
	Ticker   string
	Source   string
	Interval string
	Bars     []PriceBar
}

// Empty reports whether the history carries no bars.
func (h *PriceHistory) Empty() bool {
	return h == nil || len(h.Bars) == 0
}
