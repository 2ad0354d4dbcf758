package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
	"example.com/auctionhouse/internal/tracing"
)

// Finisher closes ended auctions. Each pass scans for auctions past their
// end time that are still Open, determines the winner from the bid ledger,
// applies the terminal transition and publishes exactly one completion event
// per auction. Concurrent finishers are safe: the transition's optimistic
// status check lets exactly one writer through.
type Finisher struct {
	auctions  repositories.AuctionRepository
	bids      repositories.BidRepository
	tracer    tracing.Tracer
	batchSize int
}

// NewFinisher creates a new auction finisher
func NewFinisher(auctions repositories.AuctionRepository, bids repositories.BidRepository, tracer tracing.Tracer, batchSize int) *Finisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Finisher{
		auctions:  auctions,
		bids:      bids,
		tracer:    tracer,
		batchSize: batchSize,
	}
}

// Run executes one finisher pass. A failure on one auction is logged and
// left for the next tick; it never aborts the rest of the batch. The pass
// stops between auctions once the context is cancelled, so shutdown never
// interrupts an in-flight transition.
func (f *Finisher) Run(ctx context.Context) error {
	txn := f.tracer.StartTransaction("finish-ended-auctions")
	defer f.tracer.EndTransaction(txn)

	auctions, err := f.auctions.ListEndedOpen(ctx, f.batchSize)
	if err != nil {
		f.tracer.RecordError(txn, err)
		return errors.Wrap(err, "failed to scan for ended auctions")
	}

	if len(auctions) == 0 {
		return nil
	}

	log.Info().Int("count", len(auctions)).Msg("Found auctions that have ended")

	for _, auction := range auctions {
		if ctx.Err() != nil {
			return nil
		}

		if err := f.finishOne(ctx, auction); err != nil {
			if errors.Is(err, repositories.ErrConflict) {
				// Another finisher won the race; the auction is already
				// terminal and must not be published again.
				log.Debug().Str("auction_id", auction.ID.String()).Msg("Auction finished by a concurrent writer, skipping")
				continue
			}
			f.tracer.RecordError(txn, err)
			log.Error().Err(err).Str("auction_id", auction.ID.String()).Msg("Failed to finish auction, will retry next tick")
		}
	}

	return nil
}

// finishOne applies the transition rule for a single ended auction.
func (f *Finisher) finishOne(ctx context.Context, auction models.Auction) error {
	winning, err := f.bids.HighestQualifiedBid(ctx, auction.ID)
	if err != nil {
		return errors.Wrap(err, "failed to determine winning bid")
	}

	status := models.AuctionReserveNotMet
	var winner *string
	var soldAmount *int
	if winning != nil && winning.Amount > auction.ReservePrice {
		status = models.AuctionFinishedState
		winner = &winning.Bidder
		soldAmount = &winning.Amount
	}

	msg, err := models.NewOutboxMessage(auction.ID.String(), models.EventAuctionFinished, models.AuctionFinishedEvent{
		AuctionID: auction.ID,
		Seller:    auction.Seller,
		ItemSold:  winner != nil,
		Winner:    winner,
		Amount:    soldAmount,
	})
	if err != nil {
		return err
	}

	if err := f.auctions.Finish(ctx, auction.ID, status, winner, soldAmount, msg); err != nil {
		return err
	}

	event := log.Info().
		Str("auction_id", auction.ID.String()).
		Str("status", string(status))
	if winner != nil {
		event = event.Str("winner", *winner).Int("sold_amount", *soldAmount)
	}
	event.Msg("Auction finished")

	return nil
}
