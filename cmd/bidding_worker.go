package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/cache"
	"example.com/auctionhouse/internal/messaging"
	"example.com/auctionhouse/internal/outbox"
	"example.com/auctionhouse/internal/projections"
	"example.com/auctionhouse/internal/repositories"
)

var biddingWorkerCmd = &cobra.Command{
	Use:   "bidding-worker",
	Short: "Start the bidding service worker",
	Long: `Start the bidding service background worker: consumes auction events
into the local auction projection and dispatches outbox events to the
bid-events queue`,
	RunE: runBiddingWorker,
}

func init() {
	rootCmd.AddCommand(biddingWorkerCmd)
}

func runBiddingWorker(cmd *cobra.Command, args []string) error {
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

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

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
	snapshotRepo := repositories.NewSnapshotRepository(db, readOnlyDB)
	outboxRepo := repositories.NewOutboxRepository(db)
	inboxRepo := repositories.NewInboxRepository(db)

	// Initialize the Service Bus sender for the bid-events queue
	sender, err := messaging.NewServiceBusClient(cfg.ServiceBus, cfg.ServiceBus.BidEventsQueue)
	if err != nil {
		return err
	}
	defer sender.Close()

	// Initialize the Service Bus receiver for the auction-events queue
	receiver, err := messaging.NewServiceBusClient(cfg.ServiceBus, cfg.ServiceBus.AuctionEventsQueue)
	if err != nil {
		return err
	}
	defer receiver.Close()

	// Initialize the outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, sender, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)

	// Initialize the auction event projector
	auctionProjector := projections.NewAuctionProjector(inboxRepo, snapshotRepo, snapshotCache)

	// Start the auction event processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.ServiceBus.AuctionEventsQueue).Msg("Starting auction event processor")
		return receiver.ProcessMessages(ctx, auctionProjector.Handle)
	})

	// Start the outbox dispatcher cron job
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Outbox.Interval).Msg("Starting outbox dispatcher job")
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Outbox.Interval),
			gocron.NewTask(func() {
				if err := dispatcher.Dispatch(ctx); err != nil {
					log.Error().Err(err).Msg("Outbox dispatch pass failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Bidding worker shutting down gracefully")
	return nil
}
