package stream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-stream/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	symbolTicks    atomic.Int32
	portfolioTicks atomic.Int32
	block          chan struct{}
	sawCancel      atomic.Bool
}

func (h *countingHandler) OnSymbolTick(ctx context.Context, _ string) {
	h.symbolTicks.Add(1)
	if h.block != nil {
		<-h.block
		h.sawCancel.Store(ctx.Err() != nil)
	}
}

func (h *countingHandler) OnPortfolioTick(context.Context, string) {
	h.portfolioTicks.Add(1)
}

func newTestScheduler(h TickHandler, every time.Duration) *UpdateScheduler {
	return NewUpdateScheduler(every, every, h, nil, logger.NewLoggerWithWriter(nil, "UpdateScheduler", io.Discard))
}

func TestSchedulerTicksUntilStopped(t *testing.T) {
	h := &countingHandler{}
	s := newTestScheduler(h, 10*time.Millisecond)
	defer s.Shutdown()

	require.True(t, s.EnsureSymbolTimer("AAPL"))
	require.Eventually(t, func() bool { return h.symbolTicks.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.True(t, s.StopSymbolTimer("AAPL"))
	assert.False(t, s.StopSymbolTimer("AAPL"))

	// a tick racing the stop may still land; after that nothing does
	time.Sleep(20 * time.Millisecond)
	settled := h.symbolTicks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, h.symbolTicks.Load())
}

func TestSchedulerAtMostOneTimerPerKey(t *testing.T) {
	s := newTestScheduler(&countingHandler{}, time.Hour)
	defer s.Shutdown()

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.EnsureSymbolTimer("AAPL") {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), started.Load())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"AAPL"}, s.Keys())
}

func TestSchedulerPortfolioKeysAreSeparate(t *testing.T) {
	h := &countingHandler{}
	s := newTestScheduler(h, 10*time.Millisecond)
	defer s.Shutdown()

	s.EnsureSymbolTimer("AAPL")
	s.EnsurePortfolioTimer("AAPL")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"AAPL"}, s.SymbolKeys())
	assert.True(t, s.PortfolioActive("AAPL"))
	require.Eventually(t, func() bool { return h.portfolioTicks.Load() >= 1 }, time.Second, 5*time.Millisecond)

	s.StopPortfolioTimer("AAPL")
	assert.True(t, s.SymbolActive("AAPL"))
	assert.False(t, s.PortfolioActive("AAPL"))
}

func TestStopCancelsInFlightTick(t *testing.T) {
	h := &countingHandler{block: make(chan struct{})}
	s := newTestScheduler(h, 5*time.Millisecond)

	s.EnsureSymbolTimer("AAPL")
	require.Eventually(t, func() bool { return h.symbolTicks.Load() == 1 }, time.Second, time.Millisecond)

	s.StopSymbolTimer("AAPL")
	close(h.block)
	s.Shutdown()

	assert.True(t, h.sawCancel.Load())
	assert.Equal(t, int32(1), h.symbolTicks.Load())
}

func TestSchedulerRejectsTimersAfterShutdown(t *testing.T) {
	s := newTestScheduler(&countingHandler{}, time.Hour)
	s.EnsureSymbolTimer("AAPL")
	s.Shutdown()

	assert.Zero(t, s.Len())
	assert.False(t, s.EnsureSymbolTimer("MSFT"))
}
