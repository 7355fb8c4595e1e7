package storage

import (
	"context"
	"fmt"

	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"
)

// Store is a portfolio store that can also seed data.
type Store interface {
	interfaces.IPortfolioStore
	UpsertPortfolio(ctx context.Context, p *models.MPortfolio) error
}

// NewStore returns the backend selected by storage.db_type. The caller
// still has to Initialize it.
func NewStore(cfg *models.MConfig, log *logger.Logger) (Store, error) {
	switch cfg.Storage.DBType {
	case "sqlite", "":
		return NewAsyncSQLiteDB(cfg, log.Named("SQLiteDB"))
	case "postgres":
		return NewPostgresDB(cfg, log.Named("PostgresDB"))
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Storage.DBType)
	}
}

// DemoPortfolio is the starter portfolio written by the -seed flag.
func DemoPortfolio(userID string) *models.MPortfolio {
	return &models.MPortfolio{
		UserID:            userID,
		Name:              "Demo Portfolio",
		Currency:          "USD",
		InitialInvestment: 10000,
		Holdings: []models.MHolding{
			{Symbol: "AAPL", Name: "Apple Inc.", AssetType: "stock", Quantity: 15, PurchasePrice: 150, CurrentPrice: 185},
			{Symbol: "MSFT", Name: "Microsoft Corporation", AssetType: "stock", Quantity: 8, PurchasePrice: 310, CurrentPrice: 410},
			{Symbol: "SPY", Name: "SPDR S&P 500 ETF", AssetType: "etf", Quantity: 5, PurchasePrice: 420, CurrentPrice: 450},
		},
	}
}
