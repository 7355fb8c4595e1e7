package quotes

import (
	"strings"
	"sync"
	"time"

	"github.com/scmhub/calendar"
)

// Exchange suffix (Yahoo convention) to ISO 10383 MIC. Bare symbols and
// indices trade on the NYSE calendar.
var suffixMIC = map[string]string{
	"L":  "xlon",
	"PA": "xpar",
	"DE": "xfra",
	"AS": "xams",
	"BR": "xbru",
	"MI": "xmil",
	"MC": "xmad",
	"ST": "xsto",
	"CO": "xcse",
	"HE": "xhel",
	"VI": "xwbo",
	"SW": "xswx",
	"TO": "xtse",
	"V":  "xtsx",
	"T":  "xtks",
	"HK": "xhkg",
	"AX": "xasx",
	"KS": "xkrx",
	"TW": "xtai",
	"SS": "xshg",
	"SZ": "xshe",
}

const defaultMIC = "xnys"

func micForSymbol(symbol string) string {
	i := strings.LastIndexByte(symbol, '.')
	if i < 0 || i == len(symbol)-1 {
		return defaultMIC
	}
	if mic, ok := suffixMIC[strings.ToUpper(symbol[i+1:])]; ok {
		return mic
	}
	return defaultMIC
}

// -----------------------------------------------------------------------------

// TradingCalendar answers whether one exchange is trading at a given time.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

func loadTradingCalendar(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil && mic != defaultMIC {
		cal = calendar.GetCalendar(defaultMIC)
	}
	if cal != nil {
		return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
	}

	// Mon-Fri 09:30-16:00 New York
	nyLoc, err := time.LoadLocation("America/New_York")
	if err != nil {
		nyLoc = time.UTC
	}
	return &TradingCalendar{Fallback: true, Timezone: nyLoc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsOpen(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if !tc.Fallback {
		return tc.Calendar.IsOpen(t)
	}

	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// -----------------------------------------------------------------------------

// MarketHours lazily loads and caches one calendar per exchange.
type MarketHours struct {
	mu        sync.RWMutex
	calendars map[string]*TradingCalendar
}

func NewMarketHours() *MarketHours {
	return &MarketHours{calendars: make(map[string]*TradingCalendar)}
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the exchange listing symbol is trading at t.
func (m *MarketHours) IsOpen(symbol string, t time.Time) bool {
	return m.calendarFor(micForSymbol(symbol)).IsOpen(t)
}

func (m *MarketHours) calendarFor(mic string) *TradingCalendar {
	m.mu.RLock()
	tc, ok := m.calendars[mic]
	m.mu.RUnlock()
	if ok {
		return tc
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tc, ok := m.calendars[mic]; ok {
		return tc
	}
	tc = loadTradingCalendar(mic)
	m.calendars[mic] = tc
	return tc
}
