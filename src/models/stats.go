package models

// MStreamStats mirrors the /websocket-stats response.
type MStreamStats struct {
	TotalConnections       int `json:"totalConnections"`
	SymbolSubscriptions    int `json:"symbolSubscriptions"`
	PortfolioSubscriptions int `json:"portfolioSubscriptions"`
	ActiveIntervals        int `json:"activeIntervals"`
}

// MSubscriptionSnapshot is a point-in-time copy of the subscription registry.
type MSubscriptionSnapshot struct {
	Symbols   map[string][]string `json:"symbols"`
	Portfolio []string            `json:"portfolio"`
}
