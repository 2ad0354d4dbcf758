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
	"example.com/auctionhouse/internal/messaging"
	"example.com/auctionhouse/internal/outbox"
	"example.com/auctionhouse/internal/projections"
	"example.com/auctionhouse/internal/repositories"
	"example.com/auctionhouse/internal/services"
	"example.com/auctionhouse/internal/tracing"
)

var auctionWorkerCmd = &cobra.Command{
	Use:   "auction-worker",
	Short: "Start the auction service worker",
	Long: `Start the auction service background worker: consumes bid events into
the auction record store, finishes ended auctions, and dispatches outbox
events to the auction-events queue`,
	RunE: runAuctionWorker,
}

func init() {
	rootCmd.AddCommand(auctionWorkerCmd)
}

func runAuctionWorker(cmd *cobra.Command, args []string) error {
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

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	// Initialize repositories
	auctionRepo := repositories.NewAuctionRepository(db, readOnlyDB)
	bidRepo := repositories.NewBidRepository(db, readOnlyDB)
	outboxRepo := repositories.NewOutboxRepository(db)
	inboxRepo := repositories.NewInboxRepository(db)

	// Initialize the finisher
	finisher := services.NewFinisher(auctionRepo, bidRepo, tracer, cfg.Finisher.BatchSize)

	// Initialize the Service Bus sender for the auction-events queue
	sender, err := messaging.NewServiceBusClient(cfg.ServiceBus, cfg.ServiceBus.AuctionEventsQueue)
	if err != nil {
		return err
	}
	defer sender.Close()

	// Initialize the Service Bus receiver for the bid-events queue
	receiver, err := messaging.NewServiceBusClient(cfg.ServiceBus, cfg.ServiceBus.BidEventsQueue)
	if err != nil {
		return err
	}
	defer receiver.Close()

	// Initialize the outbox dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, sender, cfg.Outbox.BatchSize, cfg.Outbox.MaxAttempts)

	// Initialize the bid event projector
	bidProjector := projections.NewBidProjector(inboxRepo, auctionRepo)

	// Start the bid event processor
	g.Go(func() error {
		log.Info().Str("queue", cfg.ServiceBus.BidEventsQueue).Msg("Starting bid event processor")
		return receiver.ProcessMessages(ctx, bidProjector.Handle)
	})

	// Start the finisher and outbox dispatcher cron jobs
	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		log.Info().Dur("interval", cfg.Finisher.Interval).Msg("Starting auction finisher job")
		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Finisher.Interval),
			gocron.NewTask(func() {
				if err := finisher.Run(ctx); err != nil {
					log.Error().Err(err).Msg("Auction finisher pass failed")
				}
			}),
		)
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

	log.Info().Msg("Auction worker shutting down gracefully")
	return nil
}
