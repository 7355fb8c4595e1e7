package models

import "time"

// MHolding is one position inside a portfolio.
type MHolding struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	AssetType     string  `json:"type"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchasePrice"`
	CurrentPrice  float64 `json:"currentPrice"`
}

// MPortfolio is the persisted portfolio of one user.
type MPortfolio struct {
	UserID            string     `json:"user"`
	Name              string     `json:"name"`
	Currency          string     `json:"currency"`
	TotalValue        float64    `json:"totalValue"`
	InitialInvestment float64    `json:"initialInvestment"`
	TotalReturn       float64    `json:"totalReturn"`
	LastUpdated       time.Time  `json:"lastUpdated"`
	Holdings          []MHolding `json:"investments"`
}
