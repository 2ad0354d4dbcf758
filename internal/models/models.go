package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// AuctionStatus is the lifecycle state of an auction. Transitions only move
// forward: Open -> Finished or Open -> ReserveNotMet.
type AuctionStatus string

const (
	AuctionOpen          AuctionStatus = "Open"
	AuctionFinishedState AuctionStatus = "Finished"
	AuctionReserveNotMet AuctionStatus = "ReserveNotMet"
)

// Terminal reports whether the status permits no further transitions.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionFinishedState || s == AuctionReserveNotMet
}

// BidStatus is the classification assigned to a bid when it is placed.
// Bids are immutable; the status never changes after the append.
type BidStatus string

const (
	BidAccepted             BidStatus = "Accepted"
	BidAcceptedBelowReserve BidStatus = "AcceptedBelowReserve"
	BidTooLow               BidStatus = "TooLow"
	BidFinished             BidStatus = "Finished"
)

// Ranks reports whether a bid with this status participates in the
// "current highest accepted bid" ordering.
func (s BidStatus) Ranks() bool {
	return s == BidAccepted || s == BidAcceptedBelowReserve
}

// Auction is the authoritative record for an auction. Winner and SoldAmount
// are set at most once, together with the terminal status transition.
// CurrentHighBid is a denormalized cache refreshed from BidPlaced events and
// only ever raised, never lowered.
type Auction struct {
	ID             uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt      time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"autoUpdateTime;index" json:"updated_at"`
	Seller         string        `gorm:"not null;index" json:"seller"`
	ReservePrice   int           `gorm:"not null;default:0" json:"reserve_price"`
	AuctionEnd     time.Time     `gorm:"not null;index" json:"auction_end"`
	Status         AuctionStatus `gorm:"not null;default:'Open';index" json:"status"`
	Winner         *string       `json:"winner"`
	SoldAmount     *int          `json:"sold_amount"`
	CurrentHighBid *int          `json:"current_high_bid"`
}

// Bid is one entry in the append-only bid ledger.
type Bid struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index" json:"auction_id"`
	Bidder    string    `gorm:"not null" json:"bidder"`
	Amount    int       `gorm:"not null" json:"amount"`
	BidTime   time.Time `gorm:"not null" json:"bid_time"`
	Status    BidStatus `gorm:"not null" json:"status"`
}

// OutboxMessage is a pending event publication, written in the same
// transaction as the state change it describes and drained asynchronously.
type OutboxMessage struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	AggregateID string     `gorm:"not null;index" json:"aggregate_id"`
	EventType   string     `gorm:"not null" json:"event_type"`
	Payload     []byte     `gorm:"type:jsonb;not null" json:"payload"`
	Status      string     `gorm:"not null;default:'pending';index" json:"status"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
	LastError   *string    `json:"last_error"`
	SentAt      *time.Time `json:"sent_at"`
}

// Outbox message states.
const (
	OutboxPending = "pending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// InboxEvent records an event id that a consumer has already applied.
// Insertion is the idempotency check: a duplicate key means a redelivery.
type InboxEvent struct {
	EventID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"event_id"`
	EventType  string    `gorm:"not null" json:"event_type"`
	ReceivedAt time.Time `gorm:"autoCreateTime" json:"received_at"`
}

// AuctionSnapshot is the bidding side's eventually consistent copy of the
// auction terms it needs to evaluate bids. It is written only by consuming
// auction events or by seeding from the synchronous fallback lookup, never
// by bid placement itself.
type AuctionSnapshot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Seller       string    `gorm:"not null" json:"seller"`
	ReservePrice int       `gorm:"not null;default:0" json:"reserve_price"`
	AuctionEnd   time.Time `gorm:"not null" json:"auction_end"`
	Finished     bool      `gorm:"not null;default:false" json:"finished"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SetupModels configures GORM models and runs migrations
func SetupModels(db *gorm.DB) error {
	err := db.AutoMigrate(
		&Auction{},
		&Bid{},
		&OutboxMessage{},
		&InboxEvent{},
		&AuctionSnapshot{},
	)
	if err != nil {
		return errors.Wrap(err, "failed to run auto migrations")
	}

	return nil
}
