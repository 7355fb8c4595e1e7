package models

import "time"

// MQuote is one price snapshot as returned by the quote source.
type MQuote struct {
	Symbol            string    `json:"symbol"`
	Name              string    `json:"name"`
	Price             float64   `json:"price"`
	Change            float64   `json:"change"`
	ChangesPercentage float64   `json:"changesPercentage"`
	DayLow            float64   `json:"dayLow"`
	DayHigh           float64   `json:"dayHigh"`
	Open              float64   `json:"open"`
	PreviousClose     float64   `json:"previousClose"`
	Volume            float64   `json:"volume"`
	MarketCap         float64   `json:"marketCap"`
	Timestamp         time.Time `json:"timestamp"`
	DataSource        string    `json:"dataSource"`
	IsMock            bool      `json:"isMock"`
}
