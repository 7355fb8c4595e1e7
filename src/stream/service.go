package stream

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
	"portfolio-stream/src/models"
)

const (
	defaultQuoteInterval     = 10 * time.Second
	defaultPortfolioInterval = 60 * time.Second
	defaultFetchTimeout      = 5 * time.Second
)

// -----------------------------------------------------------------------------

// Service is the subscription and fan-out engine. The transport layer hands
// it authenticated connections and raw control messages; everything else
// (registries, timers, delivery) lives here.
type Service struct {
	// lifecycle serializes connect/teardown against each other (write lock)
	// and against control-message mutations (read lock), so a session can
	// never gain subscriptions after its teardown.
	lifecycle sync.RWMutex
	closed    bool

	conns      *ConnectionRegistry
	subs       *SubscriptionRegistry
	scheduler  *UpdateScheduler
	dispatcher *Dispatcher
	auth       interfaces.IAuthenticator
	metrics    *metrics.Metrics

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
	now     func() time.Time
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewService(cfg *models.MConfig, auth interfaces.IAuthenticator, quotes interfaces.IQuoteSource, store interfaces.IPortfolioStore, m *metrics.Metrics, log *logger.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		conns:   NewConnectionRegistry(),
		auth:    auth,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		Logger:  log,
	}

	s.scheduler = NewUpdateScheduler(
		seconds(cfg.Stream.QuoteIntervalSeconds, defaultQuoteInterval),
		seconds(cfg.Stream.PortfolioIntervalSeconds, defaultPortfolioInterval),
		s, m, log.Named("UpdateScheduler"),
	)
	s.subs = NewSubscriptionRegistry(s.scheduler)
	s.dispatcher = &Dispatcher{
		conns:             s.conns,
		subs:              s.subs,
		quotes:            quotes,
		store:             store,
		fetchTimeout:      seconds(cfg.Quotes.FetchTimeoutSeconds, defaultFetchTimeout),
		onDeliveryFailure: s.dropSession,
		metrics:           m,
		now:               func() time.Time { return s.now() },
		Logger:            log.Named("Dispatcher"),
	}
	return s
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// -----------------------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------------------

// Authenticate resolves a bearer token to a session ID.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		s.metrics.AuthFailed("missing")
		return "", helpers.ErrMissingCredential
	}

	id, err := s.auth.ValidateCredential(ctx, token)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, helpers.ErrMissingCredential) {
			reason = "missing"
		}
		s.metrics.AuthFailed(reason)
		return "", err
	}
	return id, nil
}

// -----------------------------------------------------------------------------

// Connect registers conn as the live transport of sessionID. A transport
// already registered for the same session is torn down and closed with a
// policy-violation code. Returns false when the service is shutting down.
func (s *Service) Connect(sessionID string, conn interfaces.ISessionConn) bool {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		_ = conn.Close(CloseGoingAway, "Server shutting down")
		return false
	}

	prev := s.conns.Register(sessionID, conn)
	replaced := prev != nil && prev.ID() != conn.ID()
	if replaced {
		s.subs.RemoveSession(sessionID)
	}
	n := s.conns.Len()
	s.lifecycle.Unlock()

	s.metrics.ConnectionAccepted()
	s.metrics.SetConnections(n)

	if replaced {
		s.metrics.ConnectionReplaced()
		s.Logger.Info("Session %s reconnected, closing previous transport %s", sessionID, prev.ID())
		_ = prev.Close(ClosePolicyViolation, "Session replaced")
	}

	s.Logger.Info("Session %s connected (%d active)", sessionID, n)
	s.dispatcher.SendToSession(sessionID, connectionEstablished(sessionID, s.now()))
	return true
}

// -----------------------------------------------------------------------------

// Disconnect tears down every piece of state owned by sessionID, but only
// while conn is still its registered transport. Repeated calls are no-ops.
func (s *Service) Disconnect(sessionID string, conn interfaces.ISessionConn) bool {
	s.lifecycle.Lock()
	removed := s.conns.RemoveIf(sessionID, conn)
	var symbols []string
	var hadPortfolio bool
	if removed {
		symbols, hadPortfolio = s.subs.RemoveSession(sessionID)
	}
	n := s.conns.Len()
	s.lifecycle.Unlock()

	if !removed {
		return false
	}

	s.metrics.SetConnections(n)
	s.Logger.Info("Session %s disconnected (released %d symbols, portfolio=%t, %d active)",
		sessionID, len(symbols), hadPortfolio, n)
	return true
}

func (s *Service) dropSession(sessionID string, conn interfaces.ISessionConn) {
	if s.Disconnect(sessionID, conn) {
		_ = conn.Close(CloseInternalError, "Delivery failed")
	}
}

// DisconnectSession force-closes a session by ID.
func (s *Service) DisconnectSession(sessionID string) bool {
	conn, ok := s.conns.Get(sessionID)
	if !ok || !s.Disconnect(sessionID, conn) {
		return false
	}
	_ = conn.Close(CloseNormal, "Disconnected by server")
	return true
}

// -----------------------------------------------------------------------------
// Control messages
// -----------------------------------------------------------------------------

// HandleMessage processes one inbound control message from conn. Messages
// from a transport that is no longer registered are ignored.
func (s *Service) HandleMessage(sessionID string, conn interfaces.ISessionConn, data []byte) {
	msg, ok := decodeControlMessage(data)
	if !ok {
		s.metrics.MessageReceived("invalid")
		s.Logger.Warning("Malformed message from %s: %v", sessionID, helpers.NewProtocolError("payload is not valid JSON", nil))
		s.reply(sessionID, conn, errorMessage(errInvalidFormat))
		return
	}

	switch msg.Type {
	case models.MsgSubscribeQuotes:
		s.metrics.MessageReceived(msg.Type)
		s.subscribeQuotes(sessionID, conn, msg.Symbols)
	case models.MsgUnsubscribeQuotes:
		s.metrics.MessageReceived(msg.Type)
		s.unsubscribeQuotes(sessionID, conn, msg.Symbols)
	case models.MsgSubscribePortfolio:
		s.metrics.MessageReceived(msg.Type)
		if s.withSession(sessionID, conn, func() { s.subs.SubscribePortfolio(sessionID) }) {
			s.Logger.Info("Session %s subscribed to portfolio updates", sessionID)
			s.reply(sessionID, conn, portfolioConfirmed())
		}
	case models.MsgUnsubscribePortfolio:
		s.metrics.MessageReceived(msg.Type)
		if s.withSession(sessionID, conn, func() { s.subs.UnsubscribePortfolio(sessionID) }) {
			s.reply(sessionID, conn, portfolioUnsubscribed())
		}
	case models.MsgPing:
		s.metrics.MessageReceived(msg.Type)
		s.reply(sessionID, conn, pong(s.now()))
	default:
		s.metrics.MessageReceived("unknown")
		s.Logger.Warning("Unknown message type %q from %s", msg.Type, sessionID)
	}
}

// NotifyRateLimited tells the client one message was dropped.
func (s *Service) NotifyRateLimited(sessionID string, conn interfaces.ISessionConn) {
	s.metrics.RateLimited()
	s.reply(sessionID, conn, errorMessage(errRateLimited))
}

// -----------------------------------------------------------------------------

func (s *Service) subscribeQuotes(sessionID string, conn interfaces.ISessionConn, raw json.RawMessage) {
	symbols, err := parseSymbols(raw, true)
	if err != nil {
		s.reply(sessionID, conn, errorMessage(errInvalidSymbols))
		return
	}

	ok := s.withSession(sessionID, conn, func() {
		added := s.subs.Subscribe(sessionID, symbols)

		// queued under the read lock so Shutdown's wait covers them
		s.pending.Add(len(added))
		for _, sym := range added {
			go func(sym string) {
				defer s.pending.Done()
				s.dispatcher.PushQuote(s.ctx, sessionID, sym)
			}(sym)
		}
	})
	if !ok {
		return
	}

	s.Logger.Info("Session %s subscribed to: %s", sessionID, strings.Join(symbols, ", "))
	s.reply(sessionID, conn, quotesConfirmed(symbols))
}

// -----------------------------------------------------------------------------

func (s *Service) unsubscribeQuotes(sessionID string, conn interfaces.ISessionConn, raw json.RawMessage) {
	symbols, err := parseSymbols(raw, false)
	if err != nil {
		s.reply(sessionID, conn, errorMessage(errInvalidSymbols))
		return
	}

	if !s.withSession(sessionID, conn, func() { s.subs.Unsubscribe(sessionID, symbols) }) {
		return
	}

	now := s.now()
	for _, sym := range symbols {
		s.reply(sessionID, conn, placeholderQuote(sym, now))
	}
	s.reply(sessionID, conn, quotesUnsubscribed(symbols))
}

// -----------------------------------------------------------------------------

// withSession runs fn under the lifecycle read lock if conn is still the
// registered transport for sessionID.
func (s *Service) withSession(sessionID string, conn interfaces.ISessionConn, fn func()) bool {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if !s.conns.IsCurrent(sessionID, conn) {
		return false
	}
	fn()
	return true
}

func (s *Service) reply(sessionID string, conn interfaces.ISessionConn, payload []byte) {
	if !s.conns.IsCurrent(sessionID, conn) {
		return
	}
	s.dispatcher.SendToSession(sessionID, payload)
}

// -----------------------------------------------------------------------------
// Timer ticks
// -----------------------------------------------------------------------------

func (s *Service) OnSymbolTick(ctx context.Context, symbol string) {
	s.dispatcher.BroadcastSymbol(ctx, symbol)
}

func (s *Service) OnPortfolioTick(ctx context.Context, sessionID string) {
	s.dispatcher.BroadcastPortfolio(ctx, sessionID)
}

// -----------------------------------------------------------------------------
// Introspection
// -----------------------------------------------------------------------------

func (s *Service) Stats() models.MStreamStats {
	symbols, portfolio := s.subs.Counts()
	return models.MStreamStats{
		TotalConnections:       s.conns.Len(),
		SymbolSubscriptions:    symbols,
		PortfolioSubscriptions: portfolio,
		ActiveIntervals:        s.scheduler.Len(),
	}
}

func (s *Service) Subscriptions() models.MSubscriptionSnapshot {
	return s.subs.Snapshot()
}

func (s *Service) SessionIDs() []string {
	return s.conns.SessionIDs()
}

// -----------------------------------------------------------------------------

// Shutdown closes every session with a going-away code, stops all timers and
// waits for in-flight work. Must not be called from a tick.
func (s *Service) Shutdown() {
	s.lifecycle.Lock()
	if s.closed {
		s.lifecycle.Unlock()
		return
	}
	s.closed = true
	s.cancel()

	var open []interfaces.ISessionConn
	for _, id := range s.conns.SessionIDs() {
		conn, ok := s.conns.Get(id)
		if !ok {
			continue
		}
		s.conns.RemoveIf(id, conn)
		s.subs.RemoveSession(id)
		open = append(open, conn)
	}
	s.lifecycle.Unlock()

	for _, conn := range open {
		_ = conn.Close(CloseGoingAway, "Server shutting down")
	}

	s.scheduler.Shutdown()
	s.pending.Wait()
	s.metrics.SetConnections(0)
	s.Logger.Info("Stream service stopped (%d sessions closed)", len(open))
}
