package stream

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
)

const portfolioKeyPrefix = "portfolio:"

// Symbols are upper-cased before they reach the scheduler, so a portfolio
// key can never collide with a symbol key.
func portfolioKey(sessionID string) string {
	return portfolioKeyPrefix + sessionID
}

// TickHandler receives timer ticks. ctx is cancelled as soon as the timer is
// stopped.
type TickHandler interface {
	OnSymbolTick(ctx context.Context, symbol string)
	OnPortfolioTick(ctx context.Context, sessionID string)
}

type timerHandle struct {
	cancel context.CancelFunc
}

// -----------------------------------------------------------------------------

// UpdateScheduler owns the timer handle table: at most one periodic timer per
// key. It stores no business data.
type UpdateScheduler struct {
	mu     sync.Mutex
	timers map[string]*timerHandle
	closed bool
	wg     sync.WaitGroup

	quoteInterval     time.Duration
	portfolioInterval time.Duration
	handler           TickHandler
	metrics           *metrics.Metrics
	Logger            *logger.Logger
}

func NewUpdateScheduler(quoteInterval, portfolioInterval time.Duration, handler TickHandler, m *metrics.Metrics, log *logger.Logger) *UpdateScheduler {
	return &UpdateScheduler{
		timers:            make(map[string]*timerHandle),
		quoteInterval:     quoteInterval,
		portfolioInterval: portfolioInterval,
		handler:           handler,
		metrics:           m,
		Logger:            log,
	}
}

// -----------------------------------------------------------------------------

// EnsureSymbolTimer starts the symbol's timer unless one is already running.
// It reports whether a timer was started.
func (s *UpdateScheduler) EnsureSymbolTimer(symbol string) bool {
	return s.ensure(symbol, s.quoteInterval, func(ctx context.Context) {
		s.metrics.Tick("symbol")
		s.handler.OnSymbolTick(ctx, symbol)
	})
}

func (s *UpdateScheduler) StopSymbolTimer(symbol string) bool {
	return s.stop(symbol)
}

// -----------------------------------------------------------------------------

func (s *UpdateScheduler) EnsurePortfolioTimer(sessionID string) bool {
	return s.ensure(portfolioKey(sessionID), s.portfolioInterval, func(ctx context.Context) {
		s.metrics.Tick("portfolio")
		s.handler.OnPortfolioTick(ctx, sessionID)
	})
}

func (s *UpdateScheduler) StopPortfolioTimer(sessionID string) bool {
	return s.stop(portfolioKey(sessionID))
}

// -----------------------------------------------------------------------------

func (s *UpdateScheduler) ensure(key string, interval time.Duration, tick func(context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.timers[key]; ok {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.timers[key] = &timerHandle{cancel: cancel}
	s.metrics.SetActiveTimers(len(s.timers))

	s.wg.Add(1)
	go s.run(ctx, key, interval, tick)

	s.Logger.Debug("Started timer %s (every %v)", key, interval)
	return true
}

// stop cancels without waiting for an in-flight tick to return. A tick that is
// already running sees a cancelled ctx and delivers nothing.
func (s *UpdateScheduler) stop(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.timers[key]
	if !ok {
		return false
	}
	h.cancel()
	delete(s.timers, key)
	s.metrics.SetActiveTimers(len(s.timers))

	s.Logger.Debug("Stopped timer %s", key)
	return true
}

// -----------------------------------------------------------------------------

func (s *UpdateScheduler) run(ctx context.Context, key string, interval time.Duration, tick func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.safeTick(ctx, key, tick)
		}
	}
}

func (s *UpdateScheduler) safeTick(ctx context.Context, key string, tick func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("Tick for %s panicked: %v", key, r)
		}
	}()
	tick(ctx)
}

// -----------------------------------------------------------------------------

func (s *UpdateScheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

func (s *UpdateScheduler) SymbolActive(symbol string) bool {
	return s.Active(symbol)
}

func (s *UpdateScheduler) PortfolioActive(sessionID string) bool {
	return s.Active(portfolioKey(sessionID))
}

func (s *UpdateScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Keys returns the running timer keys in sorted order.
func (s *UpdateScheduler) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.timers))
	for k := range s.timers {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// SymbolKeys returns only the symbol timers.
func (s *UpdateScheduler) SymbolKeys() []string {
	var out []string
	for _, k := range s.Keys() {
		if !strings.HasPrefix(k, portfolioKeyPrefix) {
			out = append(out, k)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Shutdown stops every timer and waits for running ticks to return. It must
// not be called from inside a tick.
func (s *UpdateScheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for key, h := range s.timers {
		h.cancel()
		delete(s.timers, key)
	}
	s.metrics.SetActiveTimers(0)
	s.mu.Unlock()

	s.wg.Wait()
}
