package stream

import (
	"sort"
	"sync"

	"portfolio-stream/src/models"
)

// timerControl is the part of the scheduler the subscription registry drives.
type timerControl interface {
	EnsureSymbolTimer(symbol string) bool
	StopSymbolTimer(symbol string) bool
	EnsurePortfolioTimer(sessionID string) bool
	StopPortfolioTimer(sessionID string) bool
}

// SubscriptionRegistry owns symbol -> sessions and the portfolio set. It is the
// only caller of the scheduler's start/stop methods, and calls them while
// holding its own lock, so a timer exists exactly while its set is non-empty.
type SubscriptionRegistry struct {
	mu        sync.Mutex
	symbols   map[string]map[string]struct{}
	portfolio map[string]struct{}
	timers    timerControl
}

func NewSubscriptionRegistry(timers timerControl) *SubscriptionRegistry {
	return &SubscriptionRegistry{
		symbols:   make(map[string]map[string]struct{}),
		portfolio: make(map[string]struct{}),
		timers:    timers,
	}
}

// -----------------------------------------------------------------------------

// Subscribe adds sessionID to every symbol and returns the symbols it was not
// already subscribed to.
func (r *SubscriptionRegistry) Subscribe(sessionID string, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []string
	for _, sym := range symbols {
		set, ok := r.symbols[sym]
		if !ok {
			set = make(map[string]struct{})
			r.symbols[sym] = set
		}
		if _, ok := set[sessionID]; !ok {
			set[sessionID] = struct{}{}
			added = append(added, sym)
		}
		r.timers.EnsureSymbolTimer(sym)
	}
	return added
}

// -----------------------------------------------------------------------------

// Unsubscribe removes sessionID from each of symbols and returns the ones it
// was actually removed from. Symbols left without subscribers lose their key
// and their timer.
func (r *SubscriptionRegistry) Unsubscribe(sessionID string, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for _, sym := range symbols {
		if r.removeLocked(sym, sessionID) {
			removed = append(removed, sym)
		}
	}
	return removed
}

func (r *SubscriptionRegistry) removeLocked(symbol, sessionID string) bool {
	set, ok := r.symbols[symbol]
	if !ok {
		return false
	}
	if _, ok := set[sessionID]; !ok {
		return false
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.symbols, symbol)
		r.timers.StopSymbolTimer(symbol)
	}
	return true
}

// -----------------------------------------------------------------------------

// SubscribePortfolio reports whether the session was newly added.
func (r *SubscriptionRegistry) SubscribePortfolio(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, already := r.portfolio[sessionID]
	r.portfolio[sessionID] = struct{}{}
	r.timers.EnsurePortfolioTimer(sessionID)
	return !already
}

func (r *SubscriptionRegistry) UnsubscribePortfolio(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribePortfolioLocked(sessionID)
}

func (r *SubscriptionRegistry) unsubscribePortfolioLocked(sessionID string) bool {
	if _, ok := r.portfolio[sessionID]; !ok {
		return false
	}
	delete(r.portfolio, sessionID)
	r.timers.StopPortfolioTimer(sessionID)
	return true
}

// -----------------------------------------------------------------------------

// RemoveSession drops every subscription held by sessionID. It is safe to
// call for a session that holds none.
func (r *SubscriptionRegistry) RemoveSession(sessionID string) (symbols []string, hadPortfolio bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for sym, set := range r.symbols {
		if _, ok := set[sessionID]; ok {
			symbols = append(symbols, sym)
		}
	}
	for _, sym := range symbols {
		r.removeLocked(sym, sessionID)
	}
	sort.Strings(symbols)

	hadPortfolio = r.unsubscribePortfolioLocked(sessionID)
	return symbols, hadPortfolio
}

// -----------------------------------------------------------------------------

// Subscribers returns a copy of the symbol's subscriber set, sorted.
func (r *SubscriptionRegistry) Subscribers(symbol string) []string {
	r.mu.Lock()
	set := r.symbols[symbol]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

func (r *SubscriptionRegistry) IsSubscribed(symbol, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.symbols[symbol][sessionID]
	return ok
}

func (r *SubscriptionRegistry) IsPortfolioSubscribed(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.portfolio[sessionID]
	return ok
}

// SymbolsFor lists the symbols sessionID is subscribed to.
func (r *SubscriptionRegistry) SymbolsFor(sessionID string) []string {
	r.mu.Lock()
	var out []string
	for sym, set := range r.symbols {
		if _, ok := set[sessionID]; ok {
			out = append(out, sym)
		}
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}

// Counts returns the number of symbol keys and portfolio subscribers.
func (r *SubscriptionRegistry) Counts() (symbols, portfolio int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.symbols), len(r.portfolio)
}

// -----------------------------------------------------------------------------

func (r *SubscriptionRegistry) Snapshot() models.MSubscriptionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := models.MSubscriptionSnapshot{
		Symbols:   make(map[string][]string, len(r.symbols)),
		Portfolio: make([]string, 0, len(r.portfolio)),
	}
	for sym, set := range r.symbols {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		snap.Symbols[sym] = ids
	}
	for id := range r.portfolio {
		snap.Portfolio = append(snap.Portfolio, id)
	}
	sort.Strings(snap.Portfolio)
	return snap
}
