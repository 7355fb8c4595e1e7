package stream

import (
	"context"
	"errors"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
	"portfolio-stream/src/models"
)

// Dispatcher turns ticks into messages and delivers them. It never mutates
// the registries itself; a failed send is reported through onDeliveryFailure.
type Dispatcher struct {
	conns             *ConnectionRegistry
	subs              *SubscriptionRegistry
	quotes            interfaces.IQuoteSource
	store             interfaces.IPortfolioStore
	fetchTimeout      time.Duration
	onDeliveryFailure func(sessionID string, conn interfaces.ISessionConn)
	metrics           *metrics.Metrics
	now               func() time.Time
	Logger            *logger.Logger
}

// -----------------------------------------------------------------------------

// SendToSession queues payload on the session's current transport. A missing
// or closed transport is a silent no-op; a failed send tears the session down.
func (d *Dispatcher) SendToSession(sessionID string, payload []byte) bool {
	conn, ok := d.conns.Get(sessionID)
	if !ok || !conn.IsOpen() {
		return false
	}

	if err := conn.Send(payload); err != nil {
		d.metrics.DeliveryFailed()
		d.Logger.Warning("Delivery to %s failed: %v", sessionID, helpers.NewDeliveryError("send", err))
		if d.onDeliveryFailure != nil {
			d.onDeliveryFailure(sessionID, conn)
		}
		return false
	}

	d.metrics.MessageSent()
	return true
}

// -----------------------------------------------------------------------------

func (d *Dispatcher) fetchQuote(ctx context.Context, symbol string) (models.MQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, d.fetchTimeout)
	defer cancel()

	start := time.Now()
	q, err := d.quotes.GetQuote(ctx, symbol)
	d.metrics.ObserveQuoteLatency(time.Since(start).Seconds())
	return q, err
}

// -----------------------------------------------------------------------------

// BroadcastSymbol fetches one quote and pushes it to everyone subscribed to
// symbol at the time the quote arrives. A failed fetch skips the tick.
func (d *Dispatcher) BroadcastSymbol(ctx context.Context, symbol string) {
	if len(d.subs.Subscribers(symbol)) == 0 {
		return
	}

	q, err := d.fetchQuote(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			d.metrics.QuoteFailed()
			d.Logger.Warning("Skipping %s tick: %v", symbol, err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	payload := quoteUpdate(symbol, q, d.now())
	sessions := d.subs.Subscribers(symbol)
	for _, sid := range sessions {
		d.SendToSession(sid, payload)
	}
	d.Logger.Debug("Broadcast %s to %d sessions", symbol, len(sessions))
}

// -----------------------------------------------------------------------------

// PushQuote sends one quote for symbol to a single session, provided the
// session is still subscribed when the quote arrives.
func (d *Dispatcher) PushQuote(ctx context.Context, sessionID, symbol string) {
	q, err := d.fetchQuote(ctx, symbol)
	if err != nil {
		if ctx.Err() == nil {
			d.metrics.QuoteFailed()
			d.Logger.Warning("Initial quote for %s failed: %v", symbol, err)
		}
		return
	}
	if ctx.Err() != nil || !d.subs.IsSubscribed(symbol, sessionID) {
		return
	}
	d.SendToSession(sessionID, quoteUpdate(symbol, q, d.now()))
}

// -----------------------------------------------------------------------------

// BroadcastPortfolio recomputes, persists and pushes one session's portfolio.
// Missing portfolios and persistence failures skip the tick.
func (d *Dispatcher) BroadcastPortfolio(ctx context.Context, sessionID string) {
	if !d.subs.IsPortfolioSubscribed(sessionID) {
		return
	}

	p, err := d.store.LoadPortfolio(ctx, sessionID)
	if err != nil {
		if errors.Is(err, helpers.ErrPortfolioNotFound) {
			d.Logger.Debug("No portfolio for %s", sessionID)
		} else if ctx.Err() == nil {
			d.Logger.Error("Loading portfolio for %s failed: %v", sessionID, err)
		}
		return
	}

	d.refreshPrices(ctx, p)
	RecomputePortfolio(p, d.now())

	if err := d.store.SavePortfolio(ctx, p); err != nil {
		d.Logger.Error("Saving portfolio for %s failed, skipping update: %v", sessionID, err)
		return
	}
	if ctx.Err() != nil {
		return
	}

	d.SendToSession(sessionID, portfolioUpdate(p, d.now()))
}

// refreshPrices updates each holding's current price from the quote source.
// Holdings keep their stored price when no real quote is available.
func (d *Dispatcher) refreshPrices(ctx context.Context, p *models.MPortfolio) {
	for i := range p.Holdings {
		h := &p.Holdings[i]
		if h.Symbol == "" {
			continue
		}
		q, err := d.fetchQuote(ctx, normalizeSymbol(h.Symbol))
		if err != nil || q.IsMock || q.Price <= 0 {
			continue
		}
		h.CurrentPrice = q.Price
	}
}
