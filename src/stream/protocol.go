package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"portfolio-stream/src/models"
)

const (
	errInvalidFormat  = "Invalid message format"
	errInvalidSymbols = "Invalid symbols array"
	errRateLimited    = "Rate limit exceeded"

	msgConnected        = "WebSocket connection established"
	msgPortfolioEnabled = "Portfolio updates enabled"
)

// WebSocket close codes used by the stream.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseInternalError   = 1011
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

var errSymbolsNotList = errors.New("symbols must be a list of non-empty strings")

// -----------------------------------------------------------------------------

// parseSymbols decodes the raw "symbols" field. Symbols are trimmed,
// upper-cased and de-duplicated in order. An absent field yields nil unless
// required; an empty list is rejected only when required.
func parseSymbols(raw json.RawMessage, required bool) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if required {
			return nil, errSymbolsNotList
		}
		return nil, nil
	}

	var items []interface{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errSymbolsNotList
	}
	if required && len(items) == 0 {
		return nil, errSymbolsNotList
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, errSymbolsNotList
		}
		s = normalizeSymbol(s)
		if s == "" {
			return nil, errSymbolsNotList
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// decodeControlMessage reports false only for payloads that are not JSON.
// Valid JSON that is not an object, or whose type is not a string, decodes to
// an empty type and is treated as unknown.
func decodeControlMessage(data []byte) (models.MControlMessage, bool) {
	var msg models.MControlMessage
	if !json.Valid(data) {
		return msg, false
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return msg, true
	}
	if raw, ok := fields["type"]; ok {
		_ = json.Unmarshal(raw, &msg.Type)
	}
	msg.Symbols = fields["symbols"]
	return msg, true
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// -----------------------------------------------------------------------------
// Outbound message builders
// -----------------------------------------------------------------------------

func encode(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// every message type is a plain struct of strings and numbers
		panic(fmt.Sprintf("stream: encode %T: %v", v, err))
	}
	return b
}

func connectionEstablished(userID string, now time.Time) []byte {
	return encode(models.MConnectionEstablished{
		Type:      models.MsgConnectionEstablished,
		Message:   msgConnected,
		UserID:    userID,
		Timestamp: formatTime(now),
	})
}

func errorMessage(text string) []byte {
	return encode(models.MErrorMessage{Type: models.MsgError, Message: text})
}

func pong(now time.Time) []byte {
	return encode(models.MPong{Type: models.MsgPong, Timestamp: formatTime(now)})
}

func quotesConfirmed(symbols []string) []byte {
	return encode(models.MSubscriptionAck{
		Type:         models.MsgSubscriptionConfirmed,
		Subscription: models.SubscriptionQuotes,
		Symbols:      symbols,
		Message:      fmt.Sprintf("Subscribed to %d symbols", len(symbols)),
	})
}

func quotesUnsubscribed(symbols []string) []byte {
	return encode(models.MSubscriptionAck{
		Type:         models.MsgUnsubscriptionConfirmed,
		Subscription: models.SubscriptionQuotes,
		Symbols:      symbols,
	})
}

func portfolioConfirmed() []byte {
	return encode(models.MSubscriptionAck{
		Type:         models.MsgSubscriptionConfirmed,
		Subscription: models.SubscriptionPortfolio,
		Message:      msgPortfolioEnabled,
	})
}

func portfolioUnsubscribed() []byte {
	return encode(models.MSubscriptionAck{
		Type:         models.MsgUnsubscriptionConfirmed,
		Subscription: models.SubscriptionPortfolio,
	})
}

// -----------------------------------------------------------------------------

// normalizeQuote fills every field of the pushed shape; absent upstream values
// stay zero.
func normalizeQuote(symbol string, q models.MQuote, now time.Time) models.MQuoteData {
	name := q.Name
	if name == "" {
		name = q.Symbol
	}
	if name == "" {
		name = symbol
	}
	ts := q.Timestamp
	if ts.IsZero() {
		ts = now
	}
	return models.MQuoteData{
		Symbol:            symbol,
		Name:              name,
		Price:             q.Price,
		Change:            q.Change,
		ChangesPercentage: q.ChangesPercentage,
		DayLow:            q.DayLow,
		DayHigh:           q.DayHigh,
		Volume:            q.Volume,
		Timestamp:         formatTime(ts),
	}
}

func quoteUpdate(symbol string, q models.MQuote, now time.Time) []byte {
	return encode(models.MQuoteUpdate{
		Type:      models.MsgQuoteUpdate,
		Symbol:    symbol,
		Data:      normalizeQuote(symbol, q, now),
		Timestamp: formatTime(now),
	})
}

// placeholderQuote clears the client's row for a symbol it left.
func placeholderQuote(symbol string, now time.Time) []byte {
	return encode(models.MQuoteUpdate{
		Type:   models.MsgQuoteUpdate,
		Symbol: symbol,
		Data: models.MQuoteData{
			Symbol:    symbol,
			Name:      symbol,
			Timestamp: formatTime(now),
		},
		Timestamp: formatTime(now),
	})
}

func portfolioUpdate(p *models.MPortfolio, now time.Time) []byte {
	return encode(models.MPortfolioUpdate{
		Type: models.MsgPortfolioUpdate,
		Data: models.MPortfolioData{
			TotalValue:  p.TotalValue,
			DailyChange: p.TotalReturn,
			LastUpdated: formatTime(p.LastUpdated),
		},
		Timestamp: formatTime(now),
	})
}
