package stream

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"portfolio-stream/src/helpers"
	"portfolio-stream/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) tick(symbol string) {
	h.svc.OnSymbolTick(context.Background(), symbol)
}

// -----------------------------------------------------------------------------

func TestConnectSendsEstablished(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	msgs := a.ofType(models.MsgConnectionEstablished)
	require.Len(t, msgs, 1)
	assert.Equal(t, "A", msgs[0]["userId"])
	assert.Equal(t, "WebSocket connection established", msgs[0]["message"])
	assert.NotEmpty(t, msgs[0]["timestamp"])
	assert.Equal(t, 1, h.svc.Stats().TotalConnections)
}

func TestSubscribeTwoSymbols(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL","MSFT"]}`)
	h.svc.pending.Wait()

	snap := h.svc.Subscriptions()
	assert.Equal(t, map[string][]string{"AAPL": {"A"}, "MSFT": {"A"}}, snap.Symbols)
	assert.Equal(t, []string{"AAPL", "MSFT"}, h.svc.scheduler.Keys())

	quotes := a.ofType(models.MsgQuoteUpdate)
	require.Len(t, quotes, 2)
	got := []string{quotes[0]["symbol"].(string), quotes[1]["symbol"].(string)}
	sort.Strings(got)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	acks := a.ofType(models.MsgSubscriptionConfirmed)
	require.Len(t, acks, 1)
	assert.Equal(t, "quotes", acks[0]["subscription"])
	assert.Equal(t, []interface{}{"AAPL", "MSFT"}, acks[0]["symbols"])
	assert.Equal(t, "Subscribed to 2 symbols", acks[0]["message"])
}

func TestSharedSymbolFanOutAndPartialUnsubscribe(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	b := h.connect("B")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("B", b, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()
	a.reset()
	b.reset()

	h.tick("AAPL")

	qa := a.ofType(models.MsgQuoteUpdate)
	qb := b.ofType(models.MsgQuoteUpdate)
	require.Len(t, qa, 1)
	require.Len(t, qb, 1)
	assert.Equal(t, qa[0]["data"], qb[0]["data"])
	assert.Equal(t, 185.5, qa[0]["data"].(map[string]interface{})["price"])

	h.send("A", a, `{"type":"unsubscribe_quotes","symbols":["AAPL"]}`)
	assert.Equal(t, []string{"B"}, h.svc.subs.Subscribers("AAPL"))
	assert.True(t, h.svc.scheduler.SymbolActive("AAPL"))

	a.reset()
	b.reset()
	h.tick("AAPL")
	assert.Empty(t, a.ofType(models.MsgQuoteUpdate))
	assert.Len(t, b.ofType(models.MsgQuoteUpdate), 1)
}

func TestLastUnsubscribeStopsTimer(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	b := h.connect("B")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("B", b, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("A", a, `{"type":"unsubscribe_quotes","symbols":["AAPL"]}`)
	h.send("B", b, `{"type":"unsubscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()

	_, present := h.svc.Subscriptions().Symbols["AAPL"]
	assert.False(t, present)
	assert.False(t, h.svc.scheduler.SymbolActive("AAPL"))

	a.reset()
	b.reset()
	h.tick("AAPL")
	h.tick("AAPL")
	assert.Zero(t, a.count())
	assert.Zero(t, b.count())
}

func TestQuoteFailureSkipsTick(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["TSLA"]}`)
	h.svc.pending.Wait()
	a.reset()

	h.quotes.setFailing("TSLA", true)
	h.tick("TSLA")

	assert.Zero(t, a.count())
	assert.True(t, h.svc.scheduler.SymbolActive("TSLA"))
	assert.Equal(t, []string{"A"}, h.svc.subs.Subscribers("TSLA"))

	h.quotes.setFailing("TSLA", false)
	h.tick("TSLA")
	assert.Len(t, a.ofType(models.MsgQuoteUpdate), 1)
}

func TestTransportCloseTearsDownSession(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	c := h.connect("C")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["MSFT"]}`)
	h.send("C", c, `{"type":"subscribe_quotes","symbols":["AAPL","MSFT"]}`)
	h.send("C", c, `{"type":"subscribe_portfolio"}`)
	h.svc.pending.Wait()

	require.True(t, h.svc.Disconnect("C", c))

	snap := h.svc.Subscriptions()
	assert.Equal(t, map[string][]string{"MSFT": {"A"}}, snap.Symbols)
	assert.Empty(t, snap.Portfolio)
	assert.Equal(t, []string{"MSFT"}, h.svc.scheduler.Keys())
	_, ok := h.svc.conns.Get("C")
	assert.False(t, ok)
}

func TestEmptySymbolsIsRejected(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	for _, msg := range []string{
		`{"type":"subscribe_quotes","symbols":[]}`,
		`{"type":"subscribe_quotes"}`,
		`{"type":"subscribe_quotes","symbols":"AAPL"}`,
		`{"type":"subscribe_quotes","symbols":["AAPL", 7]}`,
	} {
		h.send("A", a, msg)
	}

	errs := a.ofType(models.MsgError)
	require.Len(t, errs, 4)
	for _, e := range errs {
		assert.Equal(t, "Invalid symbols array", e["message"])
	}
	assert.Equal(t, models.MStreamStats{TotalConnections: 1}, h.svc.Stats())
}

// -----------------------------------------------------------------------------

func TestTeardownIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()

	assert.True(t, h.svc.Disconnect("A", a))
	first := h.svc.Stats()
	assert.False(t, h.svc.Disconnect("A", a))
	assert.Equal(t, first, h.svc.Stats())
	assert.Equal(t, models.MStreamStats{}, first)
}

func TestConcurrentTeardownLeavesNoState(t *testing.T) {
	h := newHarness(t)

	for round := 0; round < 50; round++ {
		ids := make([]string, 8)
		conns := make([]*fakeConn, 8)
		for i := range ids {
			ids[i] = fmt.Sprintf("U%d", i)
			conns[i] = h.connect(ids[i])
		}

		var removed atomic.Int32
		var wg sync.WaitGroup
		for i := range ids {
			id, c := ids[i], conns[i]
			unique := fmt.Sprintf("S%d", i)

			wg.Add(5)
			go func() {
				defer wg.Done()
				h.send(id, c, `{"type":"subscribe_quotes","symbols":["AAPL","MSFT","`+unique+`"]}`)
			}()
			go func() {
				defer wg.Done()
				h.send(id, c, `{"type":"subscribe_portfolio"}`)
			}()
			go func() {
				defer wg.Done()
				h.svc.OnSymbolTick(context.Background(), "AAPL")
			}()
			// close and error events firing together
			for j := 0; j < 2; j++ {
				go func() {
					defer wg.Done()
					if h.svc.Disconnect(id, c) {
						removed.Add(1)
					}
				}()
			}
		}
		wg.Wait()
		h.svc.pending.Wait()

		require.Equal(t, int32(len(ids)), removed.Load(), "round %d", round)
		require.Empty(t, h.svc.Subscriptions().Symbols, "round %d", round)
		require.Equal(t, models.MStreamStats{}, h.svc.Stats(), "round %d", round)
		require.Empty(t, h.svc.scheduler.Keys(), "round %d", round)
	}
}

func TestReconnectReplacesPreviousTransport(t *testing.T) {
	h := newHarness(t)
	old := h.connect("A")
	h.send("A", old, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()

	fresh := h.connect("A")

	code, reason := old.closedWith()
	assert.Equal(t, ClosePolicyViolation, code)
	assert.Equal(t, "Session replaced", reason)
	assert.Empty(t, h.svc.Subscriptions().Symbols)
	assert.Zero(t, h.svc.scheduler.Len())
	assert.Len(t, fresh.ofType(models.MsgConnectionEstablished), 1)

	// the old transport's late close must not unregister the new one
	assert.False(t, h.svc.Disconnect("A", old))
	cur, ok := h.svc.conns.Get("A")
	require.True(t, ok)
	assert.Equal(t, fresh.ID(), cur.ID())

	// nor may its late messages mutate the registry
	h.send("A", old, `{"type":"subscribe_quotes","symbols":["MSFT"]}`)
	assert.Empty(t, h.svc.Subscriptions().Symbols)
}

func TestMessagesAfterTeardownAreIgnored(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.svc.Disconnect("A", a)

	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("A", a, `{"type":"subscribe_portfolio"}`)

	assert.Equal(t, models.MStreamStats{}, h.svc.Stats())
}

func TestDeliveryFailureTearsDownOnlyThatSession(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	b := h.connect("B")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("B", b, `{"type":"subscribe_quotes","symbols":["AAPL","GOOGL"]}`)
	h.svc.pending.Wait()
	a.reset()

	b.setFailSend(true)
	h.tick("AAPL")

	assert.Len(t, a.ofType(models.MsgQuoteUpdate), 1)
	assert.Equal(t, []string{"A"}, h.svc.SessionIDs())
	assert.Equal(t, []string{"AAPL"}, h.svc.scheduler.Keys())
	code, _ := b.closedWith()
	assert.Equal(t, CloseInternalError, code)
}

// -----------------------------------------------------------------------------

func TestMalformedAndUnknownMessages(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	a.reset()

	h.send("A", a, `not json`)
	h.send("A", a, `{"type":"launch_rockets"}`)
	h.send("A", a, `{"type":5}`)
	h.send("A", a, `[1]`)
	h.send("A", a, `"hi"`)
	h.send("A", a, `null`)

	msgs := a.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgs[0]["type"])
	assert.Equal(t, "Invalid message format", msgs[0]["message"])
	assert.True(t, a.IsOpen())
}

func TestPingPong(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")

	h.send("A", a, `{"type":"ping"}`)

	pongs := a.ofType(models.MsgPong)
	require.Len(t, pongs, 1)
	assert.NotEmpty(t, pongs[0]["timestamp"])
}

func TestUnsubscribeSendsPlaceholders(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()
	a.reset()

	h.send("A", a, `{"type":"unsubscribe_quotes","symbols":["aapl","NFLX"]}`)

	msgs := a.messages()
	require.Len(t, msgs, 3)
	for i, sym := range []string{"AAPL", "NFLX"} {
		assert.Equal(t, "quote_update", msgs[i]["type"])
		data := msgs[i]["data"].(map[string]interface{})
		assert.Equal(t, sym, data["symbol"])
		assert.Equal(t, 0.0, data["price"])
	}
	assert.Equal(t, "unsubscription_confirmed", msgs[2]["type"])
	assert.Equal(t, "quotes", msgs[2]["subscription"])
}

func TestSubscribeAgainOnlyPushesNewSymbols(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()
	a.reset()

	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL","MSFT"]}`)
	h.svc.pending.Wait()

	quotes := a.ofType(models.MsgQuoteUpdate)
	require.Len(t, quotes, 1)
	assert.Equal(t, "MSFT", quotes[0]["symbol"])
	assert.Equal(t, 2, h.svc.scheduler.Len())
}

// -----------------------------------------------------------------------------

func TestPortfolioTickRecomputesAndPushes(t *testing.T) {
	h := newHarness(t)
	h.store.portfolios["A"] = models.MPortfolio{
		UserID:            "A",
		InitialInvestment: 2000,
		Holdings: []models.MHolding{
			{Symbol: "AAPL", Quantity: 10, CurrentPrice: 150},
			{Symbol: "XYZ", Quantity: 5, CurrentPrice: 20},
		},
	}
	h.quotes.setFailing("XYZ", true)

	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_portfolio"}`)
	acks := a.ofType(models.MsgSubscriptionConfirmed)
	require.Len(t, acks, 1)
	assert.Equal(t, "portfolio", acks[0]["subscription"])
	assert.True(t, h.svc.scheduler.PortfolioActive("A"))

	h.svc.OnPortfolioTick(context.Background(), "A")

	// 10 x 185.5 (fresh quote) + 5 x 20 (stored price)
	saved := h.store.get("A")
	assert.Equal(t, 1955.0, saved.TotalValue)
	assert.Equal(t, -2.25, saved.TotalReturn)
	assert.False(t, saved.LastUpdated.IsZero())

	updates := a.ofType(models.MsgPortfolioUpdate)
	require.Len(t, updates, 1)
	data := updates[0]["data"].(map[string]interface{})
	assert.Equal(t, 1955.0, data["totalValue"])
	assert.Equal(t, -2.25, data["dailyChange"])
}

func TestPortfolioSaveFailureSkipsPush(t *testing.T) {
	h := newHarness(t)
	h.store.portfolios["A"] = models.MPortfolio{UserID: "A", InitialInvestment: 100}
	h.store.saveErr = errors.New("disk full")

	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_portfolio"}`)
	h.svc.OnPortfolioTick(context.Background(), "A")

	assert.Empty(t, a.ofType(models.MsgPortfolioUpdate))
	assert.True(t, h.svc.subs.IsPortfolioSubscribed("A"))
	assert.True(t, h.svc.scheduler.PortfolioActive("A"))
}

func TestPortfolioUnsubscribeStopsTimer(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_portfolio"}`)
	h.send("A", a, `{"type":"unsubscribe_portfolio"}`)

	assert.False(t, h.svc.scheduler.PortfolioActive("A"))
	acks := a.ofType(models.MsgUnsubscriptionConfirmed)
	require.Len(t, acks, 1)
	assert.Equal(t, "portfolio", acks[0]["subscription"])

	h.svc.OnPortfolioTick(context.Background(), "A")
	assert.Empty(t, a.ofType(models.MsgPortfolioUpdate))
}

// -----------------------------------------------------------------------------

func TestAuthenticate(t *testing.T) {
	h := newHarness(t)

	id, err := h.svc.Authenticate(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "user-42", id)

	_, err = h.svc.Authenticate(context.Background(), "")
	assert.ErrorIs(t, err, helpers.ErrMissingCredential)

	_, err = h.svc.Authenticate(context.Background(), "bad")
	var authErr *helpers.AuthenticationError
	assert.True(t, errors.As(err, &authErr))
}

func TestDisconnectSessionByID(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.svc.pending.Wait()

	assert.True(t, h.svc.DisconnectSession("A"))
	assert.False(t, h.svc.DisconnectSession("A"))
	code, _ := a.closedWith()
	assert.Equal(t, CloseNormal, code)
	assert.Equal(t, models.MStreamStats{}, h.svc.Stats())
}

func TestShutdownClosesEverything(t *testing.T) {
	h := newHarness(t)
	a := h.connect("A")
	h.send("A", a, `{"type":"subscribe_quotes","symbols":["AAPL"]}`)
	h.send("A", a, `{"type":"subscribe_portfolio"}`)

	h.svc.Shutdown()

	code, _ := a.closedWith()
	assert.Equal(t, CloseGoingAway, code)
	assert.Equal(t, models.MStreamStats{}, h.svc.Stats())

	late := newFakeConn()
	assert.False(t, h.svc.Connect("B", late))
	assert.False(t, late.IsOpen())
}

// -----------------------------------------------------------------------------

// After any sequence of operations, every symbol key has subscribers and a
// timer, and every timer has a key.
func TestRegistryAndTimersStayInSync(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(7))

	sessions := []string{"A", "B", "C", "D"}
	symbols := []string{"AAPL", "MSFT", "TSLA", "GOOGL"}
	conns := map[string]*fakeConn{}
	for _, s := range sessions {
		conns[s] = h.connect(s)
	}

	for i := 0; i < 400; i++ {
		sid := sessions[rng.Intn(len(sessions))]
		sym := symbols[rng.Intn(len(symbols))]
		switch rng.Intn(6) {
		case 0, 1:
			h.send(sid, conns[sid], `{"type":"subscribe_quotes","symbols":["`+sym+`"]}`)
		case 2:
			h.send(sid, conns[sid], `{"type":"unsubscribe_quotes","symbols":["`+sym+`"]}`)
		case 3:
			h.send(sid, conns[sid], `{"type":"subscribe_portfolio"}`)
		case 4:
			h.send(sid, conns[sid], `{"type":"unsubscribe_portfolio"}`)
		case 5:
			h.svc.Disconnect(sid, conns[sid])
			conns[sid] = h.connect(sid)
		}

		snap := h.svc.Subscriptions()
		var keys []string
		for sym, ids := range snap.Symbols {
			require.NotEmpty(t, ids, "symbol %s has an empty set", sym)
			keys = append(keys, sym)
		}
		for _, id := range snap.Portfolio {
			keys = append(keys, portfolioKey(id))
		}
		sort.Strings(keys)
		if keys == nil {
			keys = []string{}
		}
		timers := h.svc.scheduler.Keys()
		require.Equal(t, keys, timers, "step %d", i)
	}
	h.svc.pending.Wait()
}
