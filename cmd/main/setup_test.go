package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedPortfolioWritesDemoHoldings(t *testing.T) {
	cfg := &models.MConfig{}
	cfg.Storage.DBType = "sqlite"
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "seed.db")

	store, err := setupStorage(cfg, logger.NewLoggerWithWriter(nil, "test", io.Discard))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, seedPortfolio(ctx, store, "42"))
	// seeding again replaces instead of duplicating
	require.NoError(t, seedPortfolio(ctx, store, "42"))

	p, err := store.LoadPortfolio(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Demo Portfolio", p.Name)
	assert.Equal(t, 10000.0, p.InitialInvestment)
	require.Len(t, p.Holdings, 3)

	symbols := make([]string, 0, len(p.Holdings))
	for _, h := range p.Holdings {
		symbols = append(symbols, h.Symbol)
	}
	assert.ElementsMatch(t, []string{"AAPL", "MSFT", "SPY"}, symbols)
}
