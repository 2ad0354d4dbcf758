package projections

import (
	"context"
	"encoding/json"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
)

// BidProjector applies bid events to the auction record store's denormalized
// high bid cache. The raise-only write makes duplicates and out-of-order
// deliveries converge on max(amount).
type BidProjector struct {
	inbox    repositories.InboxRepository
	auctions repositories.AuctionRepository
}

// NewBidProjector creates a new bid event projector
func NewBidProjector(inbox repositories.InboxRepository, auctions repositories.AuctionRepository) *BidProjector {
	return &BidProjector{
		inbox:    inbox,
		auctions: auctions,
	}
}

// Handle applies one received bid event.
func (p *BidProjector) Handle(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var envelope models.Envelope
	if err := json.Unmarshal(message.Body, &envelope); err != nil {
		return errors.Wrap(err, "failed to unmarshal event envelope")
	}

	if envelope.EventType != models.EventBidPlaced {
		log.Warn().Str("event_type", envelope.EventType).Msg("Unknown bid event type")
		return nil
	}

	fresh, err := p.inbox.MarkProcessed(ctx, envelope.EventID, envelope.EventType)
	if err != nil {
		return err
	}
	if !fresh {
		log.Debug().Str("event_id", envelope.EventID.String()).Msg("Skipping redelivered bid event")
		return nil
	}

	var evt models.BidPlacedEvent
	if err := json.Unmarshal(envelope.Data, &evt); err != nil {
		return errors.Wrap(err, "failed to unmarshal BidPlaced")
	}

	if !evt.BidStatus.Ranks() {
		return nil
	}

	if err := p.auctions.RaiseHighBid(ctx, evt.AuctionID, evt.Amount); err != nil {
		return err
	}

	log.Info().
		Str("auction_id", evt.AuctionID.String()).
		Int("amount", evt.Amount).
		Msg("Applied bid placed event")

	return nil
}
