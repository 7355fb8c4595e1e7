package stream

import (
	"time"

	"portfolio-stream/src/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RecomputePortfolio sets TotalValue to the sum of quantity x current price and
// TotalReturn to the percentage gain over InitialInvestment, both rounded to
// two decimals. TotalReturn is zero when there is no positive initial
// investment.
func RecomputePortfolio(p *models.MPortfolio, now time.Time) {
	total := decimal.Zero
	for _, h := range p.Holdings {
		total = total.Add(decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(h.CurrentPrice)))
	}
	total = total.Round(2)
	p.TotalValue = total.InexactFloat64()

	initial := decimal.NewFromFloat(p.InitialInvestment)
	if initial.IsPositive() {
		p.TotalReturn = total.Sub(initial).Div(initial).Mul(hundred).Round(2).InexactFloat64()
	} else {
		p.TotalReturn = 0
	}

	p.LastUpdated = now.UTC()
}
