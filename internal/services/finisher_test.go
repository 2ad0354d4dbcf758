package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/auctionhouse/config"
	"example.com/auctionhouse/internal/models"
	"example.com/auctionhouse/internal/repositories"
	"example.com/auctionhouse/internal/tracing"
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

func disabledTracer(t *testing.T) tracing.Tracer {
	t.Helper()
	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)
	return tracer
}

func endedAuction(reserve int) models.Auction {
	return models.Auction{
		ID:           uuid.New(),
		Seller:       "alice",
		ReservePrice: reserve,
		AuctionEnd:   time.Now().UTC().Add(-time.Minute),
		Status:       models.AuctionOpen,
	}
}

func TestFinisherRunsWhenTracerInitFails(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)

	// Workers log a tracer initialization failure and continue; the tracer
	// they pass on must still be safe to call
	tracer, err := tracing.NewTracer(config.TracingConfig{LicenseKey: "not-a-valid-key"})
	require.Error(t, err)
	require.NotNil(t, tracer)

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{endedAuction(100)}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, mock.Anything).Return(nil, nil)
	mockAuctions.On("Finish", mock.Anything, mock.Anything, models.AuctionReserveNotMet,
		(*string)(nil), (*int)(nil), mock.AnythingOfType("*models.OutboxMessage")).Return(nil)

	finisher := NewFinisher(mockAuctions, mockBids, tracer, 0)

	require.NotPanics(t, func() {
		require.NoError(t, finisher.Run(context.Background()))
	})
}

func TestFinisherDeclaresWinner(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)
	auction := endedAuction(100)

	winning := &models.Bid{
		ID:        uuid.New(),
		AuctionID: auction.ID,
		Bidder:    "bob",
		Amount:    250,
		Status:    models.BidAccepted,
	}

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{auction}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, auction.ID).Return(winning, nil)
	mockAuctions.On("Finish", mock.Anything, auction.ID, models.AuctionFinishedState,
		mock.MatchedBy(func(w *string) bool { return w != nil && *w == "bob" }),
		mock.MatchedBy(func(a *int) bool { return a != nil && *a == 250 }),
		mock.AnythingOfType("*models.OutboxMessage")).Return(nil)

	finisher := NewFinisher(mockAuctions, mockBids, disabledTracer(t), 0)

	require.NoError(t, finisher.Run(context.Background()))
	mockAuctions.AssertExpectations(t)
	mockBids.AssertExpectations(t)
}

func TestFinisherReserveNotMetWithoutQualifiedBid(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)
	auction := endedAuction(100)

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{auction}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, auction.ID).Return(nil, nil)
	mockAuctions.On("Finish", mock.Anything, auction.ID, models.AuctionReserveNotMet,
		(*string)(nil), (*int)(nil), mock.AnythingOfType("*models.OutboxMessage")).Return(nil)

	finisher := NewFinisher(mockAuctions, mockBids, disabledTracer(t), 0)

	require.NoError(t, finisher.Run(context.Background()))
	mockAuctions.AssertExpectations(t)
}

func TestFinisherReserveNotMetWhenReserveWasRaised(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)

	// The reserve was raised after the bid was accepted, so the highest
	// accepted bid no longer clears it
	auction := endedAuction(300)
	winning := &models.Bid{
		ID:        uuid.New(),
		AuctionID: auction.ID,
		Bidder:    "bob",
		Amount:    250,
		Status:    models.BidAccepted,
	}

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{auction}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, auction.ID).Return(winning, nil)
	mockAuctions.On("Finish", mock.Anything, auction.ID, models.AuctionReserveNotMet,
		(*string)(nil), (*int)(nil), mock.AnythingOfType("*models.OutboxMessage")).Return(nil)

	finisher := NewFinisher(mockAuctions, mockBids, disabledTracer(t), 0)

	require.NoError(t, finisher.Run(context.Background()))
	mockAuctions.AssertExpectations(t)
}

func TestFinisherSkipsConcurrentlyFinishedAuction(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)
	auction := endedAuction(100)

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{auction}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, auction.ID).Return(nil, nil)
	mockAuctions.On("Finish", mock.Anything, auction.ID, models.AuctionReserveNotMet,
		(*string)(nil), (*int)(nil), mock.AnythingOfType("*models.OutboxMessage")).
		Return(repositories.ErrConflict)

	finisher := NewFinisher(mockAuctions, mockBids, disabledTracer(t), 0)

	// Losing the optimistic check is not an error; the auction was already
	// finished elsewhere and must not be published again
	require.NoError(t, finisher.Run(context.Background()))
}

func TestFinisherFailureOnOneAuctionDoesNotAbortBatch(t *testing.T) {
	mockAuctions := new(MockAuctionRepository)
	mockBids := new(MockBidRepository)
	failing := endedAuction(100)
	healthy := endedAuction(100)

	mockAuctions.On("ListEndedOpen", mock.Anything, 100).Return([]models.Auction{failing, healthy}, nil)
	mockBids.On("HighestQualifiedBid", mock.Anything, failing.ID).Return(nil, errors.New("ledger query failed"))
	mockBids.On("HighestQualifiedBid", mock.Anything, healthy.ID).Return(nil, nil)
	mockAuctions.On("Finish", mock.Anything, healthy.ID, models.AuctionReserveNotMet,
		(*string)(nil), (*int)(nil), mock.AnythingOfType("*models.OutboxMessage")).Return(nil)

	finisher := NewFinisher(mockAuctions, mockBids, disabledTracer(t), 0)

	require.NoError(t, finisher.Run(context.Background()))
	mockAuctions.AssertExpectations(t)
	mockBids.AssertExpectations(t)
}
