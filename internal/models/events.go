package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Event type definitions
const (
	EventAuctionCreated  = "AuctionCreated"
	EventAuctionUpdated  = "AuctionUpdated"
	EventAuctionDeleted  = "AuctionDeleted"
	EventBidPlaced       = "BidPlaced"
	EventAuctionFinished = "AuctionFinished"
)

// Envelope is the common bus message structure. EventID is the idempotency
// token consumers record before applying the payload.
type Envelope struct {
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// AuctionCreatedEvent announces a new auction and its terms.
type AuctionCreatedEvent struct {
	ID           uuid.UUID `json:"id"`
	Seller       string    `json:"seller"`
	ReservePrice int       `json:"reservePrice"`
	AuctionEnd   time.Time `json:"auctionEnd"`
}

// AuctionUpdatedEvent carries the mutable auction terms. UpdatedAt lets
// consumers drop stale out-of-order deliveries.
type AuctionUpdatedEvent struct {
	ID           uuid.UUID `json:"id"`
	ReservePrice int       `json:"reservePrice"`
	AuctionEnd   time.Time `json:"auctionEnd"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AuctionDeletedEvent removes an auction from downstream projections.
type AuctionDeletedEvent struct {
	ID uuid.UUID `json:"id"`
}

// BidPlacedEvent announces an accepted bid. Consumers merge Amount into
// their cached high bid with max(), never a blind overwrite.
type BidPlacedEvent struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auctionId"`
	Bidder    string    `json:"bidder"`
	Amount    int       `json:"amount"`
	BidTime   time.Time `json:"bidTime"`
	BidStatus BidStatus `json:"bidStatus"`
}

// AuctionFinishedEvent is the single authoritative completion event for an
// auction. Winner and Amount are set only when ItemSold is true.
type AuctionFinishedEvent struct {
	AuctionID uuid.UUID `json:"auctionId"`
	Seller    string    `json:"seller"`
	ItemSold  bool      `json:"itemSold"`
	Winner    *string   `json:"winner"`
	Amount    *int      `json:"amount"`
}

// NewOutboxMessage builds an outbox row carrying an enveloped event. The
// caller persists it in the same transaction as the state change.
func NewOutboxMessage(aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s event", eventType)
	}

	envelope := Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		Data:      body,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s envelope", eventType)
	}

	return &OutboxMessage{
		ID:          envelope.EventID,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxPending,
	}, nil
}
