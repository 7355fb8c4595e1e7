package main

import (
	"context"
	"time"

	"portfolio-stream/src/auth"
	"portfolio-stream/src/interfaces"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/models"
	"portfolio-stream/src/network"
	"portfolio-stream/src/quotes"
	"portfolio-stream/src/storage"
)

// -----------------------------------------------------------------------------

// setupStorage opens the configured portfolio store and creates its tables
func setupStorage(config *models.MConfig, appLogger *logger.Logger) (storage.Store, error) {
	store, err := storage.NewStore(config, appLogger.Named("Storage"))
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}
	appLogger.Info("Storage ready (%s)", config.Storage.DBType)
	return store, nil
}

// -----------------------------------------------------------------------------

// seedPortfolio replaces userID's portfolio with the demo one.
func seedPortfolio(ctx context.Context, store storage.Store, userID string) error {
	return store.UpsertPortfolio(ctx, storage.DemoPortfolio(userID))
}

// -----------------------------------------------------------------------------

// setupNetwork initializes the network manager
func setupNetwork(config *models.MConfig, appLogger *logger.Logger) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(config, appLogger.Named("NetworkManager"))
}

// -----------------------------------------------------------------------------

func setupQuotes(config *models.MConfig, netMgr interfaces.INetworkManager, appLogger *logger.Logger) (*quotes.QuoteService, error) {
	svc, err := quotes.NewQuoteService(config, netMgr, appLogger.Named("QuoteService"))
	if err != nil {
		return nil, err
	}
	appLogger.Info("Quote provider: %s (mock fallback: %t)", config.Quotes.Provider, config.Quotes.MockFallbackEnabled())
	return svc, nil
}

// -----------------------------------------------------------------------------

func setupAuth(config *models.MConfig) *auth.JWTManager {
	ttl := time.Duration(config.Auth.TokenTTLMinutes) * time.Minute
	return auth.NewJWTManager(config.Auth.JWTSecret, config.Auth.Issuer, ttl)
}
