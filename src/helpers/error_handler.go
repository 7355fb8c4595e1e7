package helpers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portfolio-stream/src/logger"
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	ErrMissingCredential = errors.New("authentication required")
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrConnectionClosed  = errors.New("connection closed")
	ErrSendBufferFull    = errors.New("send buffer full")
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type StreamError struct {
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ StreamError }
type AuthenticationError struct{ StreamError }
type ProtocolError struct{ StreamError }
type QuoteSourceError struct{ StreamError }
type StorageError struct{ StreamError }
type DeliveryError struct{ StreamError }

func NewAuthenticationError(msg string, cause error) *AuthenticationError {
	return &AuthenticationError{StreamError{Message: msg, Cause: cause}}
}

func NewProtocolError(msg string, cause error) *ProtocolError {
	return &ProtocolError{StreamError{Message: msg, Cause: cause}}
}

func NewQuoteSourceError(msg string, cause error) *QuoteSourceError {
	return &QuoteSourceError{StreamError{Message: msg, Cause: cause}}
}

func NewStorageError(msg string, cause error) *StorageError {
	return &StorageError{StreamError{Message: msg, Cause: cause}}
}

func NewDeliveryError(msg string, cause error) *DeliveryError {
	return &DeliveryError{StreamError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries+1 times, doubling baseDelay after
// every failure. It gives up early when ctx is done or fn returns a
// non-retryable error (see Permanent).
func RetryWithBackoff[T any](ctx context.Context, log *logger.Logger, operation string, maxRetries int, baseDelay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if attempt == maxRetries {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries+1, operation, err, delay)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%s: %w (last error: %v)", operation, ctx.Err(), lastErr)
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", operation, maxRetries+1, lastErr)
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
