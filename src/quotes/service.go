package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 5 * time.Second

// QuoteService is the quote source used by the stream core. It serves from a
// TTL cache, coalesces concurrent fetches of one symbol into a single upstream
// call, and substitutes mock quotes when the upstream fails.
type QuoteService struct {
	upstream     interfaces.IQuoteSource
	mock         *MockSource
	cache        *QuoteCache
	hours        *MarketHours
	group        singleflight.Group
	mockFallback bool
	openTTL      time.Duration
	closedTTL    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	Logger       *logger.Logger
}

// -----------------------------------------------------------------------------

// NewQuoteService picks the upstream provider named in cfg.Quotes.Provider.
func NewQuoteService(cfg *models.MConfig, netMgr interfaces.INetworkManager, log *logger.Logger) (*QuoteService, error) {
	var upstream interfaces.IQuoteSource
	switch cfg.Quotes.Provider {
	case "fmp", "":
		if cfg.Quotes.APIKey == "" {
			log.Warning("FMP API key is missing; upstream requests will likely fail")
		}
		upstream = NewFMPSource(cfg.Quotes.BaseURL, cfg.Quotes.APIKey, netMgr)
	case "yahoo":
		upstream = NewYahooSource(cfg.Quotes.BaseURL, netMgr)
	case "mock":
		upstream = NewMockSource()
	default:
		return nil, fmt.Errorf("unsupported quote provider: %s", cfg.Quotes.Provider)
	}

	return NewQuoteServiceWithSource(upstream, cfg.Quotes, log), nil
}

// NewQuoteServiceWithSource wraps an arbitrary upstream.
func NewQuoteServiceWithSource(upstream interfaces.IQuoteSource, qc models.MQuotesConfig, log *logger.Logger) *QuoteService {
	svc := &QuoteService{
		upstream:     upstream,
		mock:         NewMockSource(),
		cache:        NewQuoteCache(),
		hours:        NewMarketHours(),
		mockFallback: qc.MockFallbackEnabled(),
		openTTL:      time.Duration(qc.CacheTTLSeconds) * time.Second,
		closedTTL:    time.Duration(qc.ClosedMarketTTLSeconds) * time.Second,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		Logger:       log,
	}
	if qc.FetchTimeoutSeconds > 0 {
		svc.fetchTimeout = time.Duration(qc.FetchTimeoutSeconds) * time.Second
	}
	return svc
}

// -----------------------------------------------------------------------------

func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if q, ok := s.cache.Get(symbol); ok {
		return q, nil
	}

	// The shared fetch outlives any single caller: one caller giving up must
	// not fail the others waiting on the same symbol.
	ch := s.group.DoChan(symbol, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		q, err := s.upstream.GetQuote(fetchCtx, symbol)
		if err != nil {
			return nil, err
		}
		if !q.IsMock {
			s.cache.Set(symbol, q, s.ttlFor(symbol))
		}
		return q, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return models.MQuote{}, ctx.Err()
	case res = <-ch:
	}

	if res.Err == nil {
		if res.Shared {
			s.Logger.Debug("Coalesced quote fetch for %s", symbol)
		}
		return res.Val.(models.MQuote), nil
	}
	if ctx.Err() != nil {
		return models.MQuote{}, ctx.Err()
	}

	if s.mockFallback {
		s.Logger.Warning("Quote fetch for %s failed, serving mock data: %v", symbol, res.Err)
		return s.mock.GetQuote(ctx, symbol)
	}
	return models.MQuote{}, helpers.NewQuoteSourceError("quote fetch for "+symbol, res.Err)
}

// -----------------------------------------------------------------------------

func (s *QuoteService) ttlFor(symbol string) time.Duration {
	if s.hours.IsOpen(symbol, s.now()) {
		return s.openTTL
	}
	return s.closedTTL
}

// CachedSymbols reports how many symbols currently have a fresh quote.
func (s *QuoteService) CachedSymbols() int {
	return s.cache.Len()
}
