package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-stream/src/config"
	"portfolio-stream/src/helpers"
	"portfolio-stream/src/logger"
	"portfolio-stream/src/metrics"
	"portfolio-stream/src/stream"

	_ "go.uber.org/automaxprocs"
)

const shutdownTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional .env file with secrets")
	issueToken := flag.String("issue-token", "", "print a signed token for the given user id and exit")
	seedUser := flag.String("seed", "", "write a demo portfolio for the given user id before serving")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Printf("Error loading env file: %v\n", err)
		os.Exit(1)
	}

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	jwtManager := setupAuth(cfg.MConfig)
	if *issueToken != "" {
		token, err := jwtManager.Generate(*issueToken)
		if err != nil {
			fmt.Printf("Error issuing token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)
	helpers.ApplyMemoryLimit(appLogger.Named("Runtime"))

	// 1. Storage
	store, err := setupStorage(cfg.MConfig, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init storage: %v", err)
	}
	defer store.Close()

	if *seedUser != "" {
		if err := seedPortfolio(context.Background(), store, *seedUser); err != nil {
			appLogger.Critical("Failed to seed portfolio: %v", err)
		}
		appLogger.Info("Seeded demo portfolio for user %s", *seedUser)
	}

	// 2. Quote source
	networkManager := setupNetwork(cfg.MConfig, appLogger)
	quoteService, err := setupQuotes(cfg.MConfig, networkManager, appLogger)
	if err != nil {
		appLogger.Critical("Failed to init quote source: %v", err)
	}

	// 3. Stream core
	appMetrics := metrics.NewMetrics()
	streamService := stream.NewService(cfg.MConfig, jwtManager, quoteService, store, appMetrics, appLogger.Named("StreamService"))

	// 4. Servers
	servers := startServers(cfg.MConfig, streamService, appMetrics, appLogger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received %v, shutting down...", sig)
	case err := <-servers.errs:
		appLogger.Error("Server failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	servers.stop(ctx)
	streamService.Shutdown()
	appLogger.Info("Shutdown complete")
}
