package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/models"
)

const DefaultFMPBaseURL = "https://financialmodelingprep.com/stable"

// FMPSource reads quotes from the Financial Modeling Prep "stable" API.
type FMPSource struct {
	baseURL string
	apiKey  string
	network interfaces.INetworkManager
}

func NewFMPSource(baseURL, apiKey string, netMgr interfaces.INetworkManager) *FMPSource {
	if baseURL == "" {
		baseURL = DefaultFMPBaseURL
	}
	return &FMPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		network: netMgr,
	}
}

// fmpQuote lists every field name the API has used for each value.
type fmpQuote struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Price             *float64 `json:"price"`
	CurrentPrice      *float64 `json:"currentPrice"`
	ChangesPercentage *float64 `json:"changesPercentage"`
	ChangePercentage  *float64 `json:"changePercentage"`
	ChangePercent     *float64 `json:"changePercent"`
	Change            *float64 `json:"change"`
	PriceChange       *float64 `json:"priceChange"`
	DayLow            *float64 `json:"dayLow"`
	Low               *float64 `json:"low"`
	DayHigh           *float64 `json:"dayHigh"`
	High              *float64 `json:"high"`
	Open              *float64 `json:"open"`
	OpenPrice         *float64 `json:"openPrice"`
	PreviousClose     *float64 `json:"previousClose"`
	Volume            *float64 `json:"volume"`
	MarketCap         *float64 `json:"marketCap"`
}

// -----------------------------------------------------------------------------

func (s *FMPSource) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	params := map[string]string{"symbol": symbol}
	if s.apiKey != "" {
		params["apikey"] = s.apiKey
	}

	body, err := s.network.Get(ctx, s.baseURL+"/quote", params)
	if err != nil {
		return models.MQuote{}, fmt.Errorf("fmp quote %s: %w", symbol, err)
	}
	return parseFMPQuote(symbol, body)
}

// -----------------------------------------------------------------------------

func parseFMPQuote(symbol string, body []byte) (models.MQuote, error) {
	var rows []fmpQuote
	if err := json.Unmarshal(body, &rows); err != nil {
		return models.MQuote{}, fmt.Errorf("fmp quote %s: unexpected response: %w", symbol, err)
	}
	if len(rows) == 0 {
		return models.MQuote{}, fmt.Errorf("fmp quote %s: no quote data received", symbol)
	}

	d := rows[0]
	price, ok := first(d.Price, d.CurrentPrice)
	if !ok {
		return models.MQuote{}, fmt.Errorf("fmp quote %s: response has no price", symbol)
	}

	q := models.MQuote{
		Symbol:     orDefault(d.Symbol, symbol),
		Name:       orDefault(d.Name, symbol),
		Price:      price,
		Timestamp:  time.Now().UTC(),
		DataSource: "FMP",
	}
	q.ChangesPercentage, _ = first(d.ChangesPercentage, d.ChangePercentage, d.ChangePercent)
	q.Change, _ = first(d.Change, d.PriceChange)
	q.DayLow, _ = first(d.DayLow, d.Low)
	q.DayHigh, _ = first(d.DayHigh, d.High)
	q.Open, _ = first(d.Open, d.OpenPrice)
	q.PreviousClose, _ = first(d.PreviousClose)
	q.Volume, _ = first(d.Volume)
	q.MarketCap, _ = first(d.MarketCap)
	return q, nil
}

func first(vals ...*float64) (float64, bool) {
	for _, v := range vals {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
