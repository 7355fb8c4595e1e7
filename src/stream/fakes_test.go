package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"
)

// -----------------------------------------------------------------------------

var connSeq atomic.Int64

type fakeConn struct {
	id string

	mu          sync.Mutex
	msgs        [][]byte
	open        bool
	failSend    bool
	closeCode   int
	closeReason string
	closeCalls  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1)), open: true}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return helpers.ErrConnectionClosed
	}
	if c.failSend {
		return helpers.ErrSendBufferFull
	}
	c.msgs = append(c.msgs, payload)
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.open {
		c.open = false
		c.closeCode = code
		c.closeReason = reason
	}
	return nil
}

func (c *fakeConn) setFailSend(v bool) {
	c.mu.Lock()
	c.failSend = v
	c.mu.Unlock()
}

// messages decodes everything received so far.
func (c *fakeConn) messages() []map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.msgs))
	for _, raw := range c.msgs {
		var m map[string]interface{}
		if err := json.Unmarshal(raw, &m); err != nil {
			panic(err)
		}
		out = append(out, m)
	}
	return out
}

func (c *fakeConn) ofType(t string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range c.messages() {
		if m["type"] == t {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.msgs = nil
	c.mu.Unlock()
}

func (c *fakeConn) closedWith() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// -----------------------------------------------------------------------------

type fakeQuotes struct {
	mu      sync.Mutex
	prices  map[string]float64
	failing map[string]bool
	calls   map[string]int
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		prices:  map[string]float64{"AAPL": 185.5, "MSFT": 410.25, "TSLA": 245, "GOOGL": 175},
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeQuotes) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[symbol]++
	if err := ctx.Err(); err != nil {
		return models.MQuote{}, err
	}
	if f.failing[symbol] {
		return models.MQuote{}, errors.New("upstream unavailable")
	}
	price, ok := f.prices[symbol]
	if !ok {
		price = 100
	}
	return models.MQuote{
		Symbol:    symbol,
		Name:      symbol + " Inc",
		Price:     price,
		Change:    1.5,
		DayLow:    price - 2,
		DayHigh:   price + 2,
		Volume:    1000,
		Timestamp: time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeQuotes) setFailing(symbol string, v bool) {
	f.mu.Lock()
	f.failing[symbol] = v
	f.mu.Unlock()
}

// -----------------------------------------------------------------------------

type fakeStore struct {
	mu         sync.Mutex
	portfolios map[string]models.MPortfolio
	saveErr    error
	saves      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{portfolios: make(map[string]models.MPortfolio)}
}

func (f *fakeStore) Initialize() error { return nil }
func (f *fakeStore) Close() error      { return nil }

func (f *fakeStore) LoadPortfolio(_ context.Context, userID string) (*models.MPortfolio, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.portfolios[userID]
	if !ok {
		return nil, helpers.NewStorageError("load", helpers.ErrPortfolioNotFound)
	}
	cp := p
	cp.Holdings = append([]models.MHolding(nil), p.Holdings...)
	return &cp, nil
}

func (f *fakeStore) SavePortfolio(_ context.Context, p *models.MPortfolio) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.portfolios[p.UserID] = *p
	return nil
}

func (f *fakeStore) get(userID string) models.MPortfolio {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.portfolios[userID]
}

// -----------------------------------------------------------------------------

type fakeAuth struct{}

func (fakeAuth) ValidateCredential(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", helpers.ErrMissingCredential
	}
	if token == "bad" {
		return "", helpers.NewAuthenticationError("credential rejected", errors.New("signature invalid"))
	}
	return "user-" + token, nil
}

// -----------------------------------------------------------------------------

type harness struct {
	svc    *Service
	quotes *fakeQuotes
	store  *fakeStore
}

// newHarness uses hour-long intervals; tests fire ticks by hand.
func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &models.MConfig{}
	cfg.Stream.QuoteIntervalSeconds = 3600
	cfg.Stream.PortfolioIntervalSeconds = 3600
	cfg.Quotes.FetchTimeoutSeconds = 1

	h := &harness{quotes: newFakeQuotes(), store: newFakeStore()}
	h.svc = NewService(cfg, fakeAuth{}, h.quotes, h.store, nil, logger.NewLoggerWithWriter(nil, "Stream", io.Discard))
	t.Cleanup(h.svc.Shutdown)
	return h
}

func (h *harness) connect(sessionID string) *fakeConn {
	c := newFakeConn()
	h.svc.Connect(sessionID, c)
	return c
}

func (h *harness) send(sessionID string, c *fakeConn, msg string) {
	h.svc.HandleMessage(sessionID, c, []byte(msg))
}
