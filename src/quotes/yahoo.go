package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/models"
)

const DefaultYahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooSource builds quotes from the Yahoo Finance chart endpoint.
type YahooSource struct {
	baseURL string
	network interfaces.INetworkManager
}

func NewYahooSource(baseURL string, netMgr interfaces.INetworkManager) *YahooSource {
	if baseURL == "" {
		baseURL = DefaultYahooBaseURL
	}
	return &YahooSource{baseURL: strings.TrimRight(baseURL, "/"), network: netMgr}
}

// -----------------------------------------------------------------------------

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string  `json:"symbol"`
				ShortName            string  `json:"shortName"`
				LongName             string  `json:"longName"`
				RegularMarketTime    int64   `json:"regularMarketTime"`
				RegularMarketPrice   float64 `json:"regularMarketPrice"`
				RegularMarketDayHigh float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  float64 `json:"regularMarketVolume"`
				ChartPreviousClose   float64 `json:"chartPreviousClose"`
				PreviousClose        float64 `json:"previousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// -----------------------------------------------------------------------------

func (s *YahooSource) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	params := map[string]string{
		"interval":       "1d",
		"range":          "1d",
		"includePrePost": "false",
	}

	body, err := s.network.Get(ctx, s.baseURL+"/"+url.PathEscape(symbol), params)
	if err != nil {
		return models.MQuote{}, fmt.Errorf("network error for %s: %w", symbol, err)
	}
	return parseYahooChart(symbol, body)
}

// -----------------------------------------------------------------------------

func parseYahooChart(symbol string, data []byte) (models.MQuote, error) {
	var resp yahooChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return models.MQuote{}, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Chart.Error != nil {
		return models.MQuote{}, fmt.Errorf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return models.MQuote{}, fmt.Errorf("no result in response for %s", symbol)
	}

	result := resp.Chart.Result[0]
	meta := result.Meta

	var firstOpen, lastClose float64
	if len(result.Indicators.Quote) > 0 {
		ind := result.Indicators.Quote[0]
		for _, v := range ind.Open {
			if v != nil {
				firstOpen = *v
				break
			}
		}
		for i := len(ind.Close) - 1; i >= 0; i-- {
			if ind.Close[i] != nil {
				lastClose = *ind.Close[i]
				break
			}
		}
	}

	price := meta.RegularMarketPrice
	if price <= 0 {
		price = lastClose
	}
	if price <= 0 {
		return models.MQuote{}, fmt.Errorf("no valid price for %s", symbol)
	}

	prevClose := meta.ChartPreviousClose
	if prevClose <= 0 {
		prevClose = meta.PreviousClose
	}

	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}

	ts := time.Now().UTC()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0).UTC()
	}

	q := models.MQuote{
		Symbol:        orDefault(meta.Symbol, symbol),
		Name:          orDefault(name, symbol),
		Price:         price,
		DayLow:        meta.RegularMarketDayLow,
		DayHigh:       meta.RegularMarketDayHigh,
		Open:          firstOpen,
		PreviousClose: prevClose,
		Volume:        meta.RegularMarketVolume,
		Timestamp:     ts,
		DataSource:    "yahoo",
	}
	if prevClose > 0 {
		q.Change = round2(price - prevClose)
		q.ChangesPercentage = round2((price - prevClose) / prevClose * 100)
	}
	return q, nil
}
