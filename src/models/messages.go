package models

import "encoding/json"

// -----------------------------------------------------------------------------
// Control messages (client -> server)
// -----------------------------------------------------------------------------

const (
	MsgSubscribeQuotes      = "subscribe_quotes"
	MsgUnsubscribeQuotes    = "unsubscribe_quotes"
	MsgSubscribePortfolio   = "subscribe_portfolio"
	MsgUnsubscribePortfolio = "unsubscribe_portfolio"
	MsgPing                 = "ping"
)

// MControlMessage keeps symbols raw so that a non-array value can be told
// apart from an absent one.
type MControlMessage struct {
	Type    string          `json:"type"`
	Symbols json.RawMessage `json:"symbols,omitempty"`
}

// -----------------------------------------------------------------------------
// Server messages (server -> client)
// -----------------------------------------------------------------------------

const (
	MsgConnectionEstablished   = "connection_established"
	MsgQuoteUpdate             = "quote_update"
	MsgPortfolioUpdate         = "portfolio_update"
	MsgSubscriptionConfirmed   = "subscription_confirmed"
	MsgUnsubscriptionConfirmed = "unsubscription_confirmed"
	MsgPong                    = "pong"
	MsgError                   = "error"

	SubscriptionQuotes    = "quotes"
	SubscriptionPortfolio = "portfolio"
)

type MConnectionEstablished struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

// MQuoteData is the normalized quote shape pushed to clients. Every field is
// always present.
type MQuoteData struct {
	Symbol            string  `json:"symbol"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	Change            float64 `json:"change"`
	ChangesPercentage float64 `json:"changesPercentage"`
	DayLow            float64 `json:"dayLow"`
	DayHigh           float64 `json:"dayHigh"`
	Volume            float64 `json:"volume"`
	Timestamp         string  `json:"timestamp"`
}

type MQuoteUpdate struct {
	Type      string     `json:"type"`
	Symbol    string     `json:"symbol"`
	Data      MQuoteData `json:"data"`
	Timestamp string     `json:"timestamp"`
}

type MPortfolioData struct {
	TotalValue  float64 `json:"totalValue"`
	DailyChange float64 `json:"dailyChange"`
	LastUpdated string  `json:"lastUpdated"`
}

type MPortfolioUpdate struct {
	Type      string         `json:"type"`
	Data      MPortfolioData `json:"data"`
	Timestamp string         `json:"timestamp"`
}

type MSubscriptionAck struct {
	Type         string   `json:"type"`
	Subscription string   `json:"subscription"`
	Symbols      []string `json:"symbols,omitempty"`
	Message      string   `json:"message,omitempty"`
}

type MPong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type MErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
