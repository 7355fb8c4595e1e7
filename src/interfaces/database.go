package interfaces

import (
	"context"

	"portfolio-stream/src/models"
)

// -----------------------------------------------------------------------------
// IPortfolioStore defines the contract for portfolio persistence.
// -----------------------------------------------------------------------------

type IPortfolioStore interface {

	// Initialize opens the connection and creates missing tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// LoadPortfolio returns the portfolio owned by userID, or an error wrapping
	// helpers.ErrPortfolioNotFound.
	LoadPortfolio(ctx context.Context, userID string) (*models.MPortfolio, error)

	// -----------------------------------------------------------------------------

	// SavePortfolio persists recomputed totals and holding prices.
	SavePortfolio(ctx context.Context, p *models.MPortfolio) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
