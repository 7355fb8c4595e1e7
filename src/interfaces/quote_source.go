package interfaces

import (
	"context"

	"portfolio-stream/src/models"
)

// -----------------------------------------------------------------------------
// IQuoteSource returns the current quote for a symbol. Implementations own
// their caching and fallback behaviour; callers bound the call with ctx.
// -----------------------------------------------------------------------------

type IQuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (models.MQuote, error)
}
