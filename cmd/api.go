package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/api"
	"example.com/auctionhouse/internal/cache"
	"example.com/auctionhouse/internal/repositories"
	"example.com/auctionhouse/internal/resolver"
	"example.com/auctionhouse/internal/services"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for auction management and bid placement`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := initDatabases(cfg)
	if err != nil {
		return err
	}

	// Initialize cache
	snapshotCache, err := cache.NewSnapshotCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		snapshotCache = cache.Disabled()
	}

	// Initialize repositories
	auctionRepo := repositories.NewAuctionRepository(db, readOnlyDB)
	bidRepo := repositories.NewBidRepository(db, readOnlyDB)
	snapshotRepo := repositories.NewSnapshotRepository(db, readOnlyDB)

	// Initialize services
	auctionService := services.NewAuctionService(auctionRepo)
	bidService := services.NewBidService(bidRepo, snapshotRepo, resolver.NewClient(cfg.Resolver), snapshotCache)

	// Initialize and start the server
	server := api.NewServer(cfg, auctionService, bidService)

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
