package quotes

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"portfolio-stream/src/models"

	"github.com/shopspring/decimal"
)

var mockBasePrices = map[string]float64{
	"AAPL": 185, "MSFT": 410, "GOOGL": 175, "AMZN": 180,
	"TSLA": 245, "META": 485, "NVDA": 1180, "JPM": 195,
	"JNJ": 155, "V": 280, "SPY": 520, "QQQ": 440,
	"^GSPC": 5200, "^DJI": 39000, "^IXIC": 16500, "^RUT": 2100, "^VIX": 15,
}

// MockSource fabricates plausible quotes. Values are a pure function of the
// symbol and the current minute, so repeated reads within a minute agree.
type MockSource struct {
	now func() time.Time
}

func NewMockSource() *MockSource {
	return &MockSource{now: time.Now}
}

// -----------------------------------------------------------------------------

func (m *MockSource) GetQuote(_ context.Context, symbol string) (models.MQuote, error) {
	now := m.now().UTC()

	base, ok := mockBasePrices[symbol]
	if !ok {
		base = 100 + float64(hash64(symbol)%20000)/100
	}

	h := hash64(symbol + "@" + strconv.FormatInt(now.Unix()/60, 10))

	// fluctuation in [-2%, +2%]
	fluctuation := float64(h%4001)/1000 - 2
	price := base * (1 + fluctuation/100)
	change := price - base
	openDrift := (float64((h>>16)%1001)/1000 - 0.5) * 0.01

	return models.MQuote{
		Symbol:            symbol,
		Name:              symbol + " Company",
		Price:             round2(price),
		Change:            round2(change),
		ChangesPercentage: round2(change / base * 100),
		DayLow:            round2(price * 0.98),
		DayHigh:           round2(price * 1.02),
		Open:              round2(base * (1 + openDrift)),
		PreviousClose:     round2(base),
		Volume:            float64((h >> 8) % 10_000_000),
		MarketCap:         float64((h >> 24) % 1_000_000_000_000),
		Timestamp:         now,
		DataSource:        "mock",
		IsMock:            true,
	}, nil
}

// -----------------------------------------------------------------------------

func hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
