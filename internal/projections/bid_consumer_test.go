package projections

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/auctionhouse/internal/models"
)

// Mock AuctionRepository for testing
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Auction), args.Error(1)
}

func (m *MockAuctionRepository) ListUpdatedSince(ctx context.Context, since time.Time, limit int) ([]models.Auction, error) {
	args := m.Called(ctx, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Auction), args.Error(1)
}

func (m *MockAuctionRepository) ListEndedOpen(ctx context.Context, limit int) ([]models.Auction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Auction), args.Error(1)
}

func (m *MockAuctionRepository) CreateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error {
	args := m.Called(ctx, auction, msg)
	return args.Error(0)
}

func (m *MockAuctionRepository) UpdateWithOutbox(ctx context.Context, auction *models.Auction, msg *models.OutboxMessage) error {
	args := m.Called(ctx, auction, msg)
	return args.Error(0)
}

func (m *MockAuctionRepository) DeleteWithOutbox(ctx context.Context, id uuid.UUID, msg *models.OutboxMessage) error {
	args := m.Called(ctx, id, msg)
	return args.Error(0)
}

func (m *MockAuctionRepository) RaiseHighBid(ctx context.Context, id uuid.UUID, amount int) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}

func (m *MockAuctionRepository) Finish(ctx context.Context, id uuid.UUID, status models.AuctionStatus, winner *string, soldAmount *int, msg *models.OutboxMessage) error {
	args := m.Called(ctx, id, status, winner, soldAmount, msg)
	return args.Error(0)
}

func TestBidProjectorRaisesHighBid(t *testing.T) {
	mockInbox := new(MockInboxRepository)
	mockAuctions := new(MockAuctionRepository)
	eventID := uuid.New()
	auctionID := uuid.New()

	mockInbox.On("MarkProcessed", mock.Anything, eventID, models.EventBidPlaced).Return(true, nil)
	mockAuctions.On("RaiseHighBid", mock.Anything, auctionID, 250).Return(nil)

	projector := NewBidProjector(mockInbox, mockAuctions)

	msg := envelopeMessage(t, eventID, models.EventBidPlaced, models.BidPlacedEvent{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Bidder:    "bob",
		Amount:    250,
		BidTime:   time.Now().UTC(),
		BidStatus: models.BidAccepted,
	})

	require.NoError(t, projector.Handle(context.Background(), msg))
	mockAuctions.AssertExpectations(t)
}

func TestBidProjectorBelowReserveBidStillRanks(t *testing.T) {
	mockInbox := new(MockInboxRepository)
	mockAuctions := new(MockAuctionRepository)
	eventID := uuid.New()
	auctionID := uuid.New()

	mockInbox.On("MarkProcessed", mock.Anything, eventID, models.EventBidPlaced).Return(true, nil)
	mockAuctions.On("RaiseHighBid", mock.Anything, auctionID, 80).Return(nil)

	projector := NewBidProjector(mockInbox, mockAuctions)

	msg := envelopeMessage(t, eventID, models.EventBidPlaced, models.BidPlacedEvent{
		ID:        uuid.New(),
		AuctionID: auctionID,
		Bidder:    "bob",
		Amount:    80,
		BidStatus: models.BidAcceptedBelowReserve,
	})

	require.NoError(t, projector.Handle(context.Background(), msg))
	mockAuctions.AssertExpectations(t)
}

func TestBidProjectorIgnoresNonRankingBid(t *testing.T) {
	mockInbox := new(MockInboxRepository)
	mockAuctions := new(MockAuctionRepository)
	eventID := uuid.New()

	mockInbox.On("MarkProcessed", mock.Anything, eventID, models.EventBidPlaced).Return(true, nil)

	projector := NewBidProjector(mockInbox, mockAuctions)

	msg := envelopeMessage(t, eventID, models.EventBidPlaced, models.BidPlacedEvent{
		ID:        uuid.New(),
		AuctionID: uuid.New(),
		Bidder:    "bob",
		Amount:    10,
		BidStatus: models.BidTooLow,
	})

	require.NoError(t, projector.Handle(context.Background(), msg))
	mockAuctions.AssertNotCalled(t, "RaiseHighBid", mock.Anything, mock.Anything, mock.Anything)
}

func TestBidProjectorSkipsRedeliveredEvent(t *testing.T) {
	mockInbox := new(MockInboxRepository)
	mockAuctions := new(MockAuctionRepository)
	eventID := uuid.New()

	mockInbox.On("MarkProcessed", mock.Anything, eventID, models.EventBidPlaced).Return(false, nil)

	projector := NewBidProjector(mockInbox, mockAuctions)

	msg := envelopeMessage(t, eventID, models.EventBidPlaced, models.BidPlacedEvent{
		ID:        uuid.New(),
		AuctionID: uuid.New(),
		Amount:    250,
		BidStatus: models.BidAccepted,
	})

	require.NoError(t, projector.Handle(context.Background(), msg))
	mockAuctions.AssertNotCalled(t, "RaiseHighBid", mock.Anything, mock.Anything, mock.Anything)
}

func TestBidProjectorIgnoresUnknownEventType(t *testing.T) {
	mockInbox := new(MockInboxRepository)
	mockAuctions := new(MockAuctionRepository)

	projector := NewBidProjector(mockInbox, mockAuctions)

	msg := envelopeMessage(t, uuid.New(), "SomethingElse", map[string]string{"k": "v"})

	require.NoError(t, projector.Handle(context.Background(), msg))
	mockInbox.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}
