package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/auctionhouse/internal/models"
)

func openSnapshot(reserve int, end time.Time) *models.AuctionSnapshot {
	return &models.AuctionSnapshot{
		ID:           uuid.New(),
		Seller:       "seller",
		ReservePrice: reserve,
		AuctionEnd:   end,
	}
}

func intPtr(v int) *int {
	return &v
}

func TestClassifyBidFirstBidAboveReserve(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now.Add(time.Hour))

	status := ClassifyBid(snapshot, nil, 150, now)

	require.Equal(t, models.BidAccepted, status)
}

func TestClassifyBidFirstBidAtOrBelowReserve(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now.Add(time.Hour))

	// Equal to the reserve does not clear it
	require.Equal(t, models.BidAcceptedBelowReserve, ClassifyBid(snapshot, nil, 100, now))
	require.Equal(t, models.BidAcceptedBelowReserve, ClassifyBid(snapshot, nil, 50, now))
}

func TestClassifyBidMustExceedCurrentHigh(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now.Add(time.Hour))

	// A bid equal to the current high never outranks it
	require.Equal(t, models.BidTooLow, ClassifyBid(snapshot, intPtr(200), 200, now))
	require.Equal(t, models.BidTooLow, ClassifyBid(snapshot, intPtr(200), 150, now))
	require.Equal(t, models.BidAccepted, ClassifyBid(snapshot, intPtr(200), 201, now))
}

func TestClassifyBidHigherButBelowReserve(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(500, now.Add(time.Hour))

	status := ClassifyBid(snapshot, intPtr(100), 200, now)

	require.Equal(t, models.BidAcceptedBelowReserve, status)
}

func TestClassifyBidEndedAuction(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now.Add(-time.Minute))

	status := ClassifyBid(snapshot, nil, 1000, now)

	require.Equal(t, models.BidFinished, status)
}

func TestClassifyBidAtExactEndTime(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now)

	// The boundary instant counts as ended
	status := ClassifyBid(snapshot, nil, 1000, now)

	require.Equal(t, models.BidFinished, status)
}

func TestClassifyBidFinishedSnapshot(t *testing.T) {
	now := time.Now().UTC()
	snapshot := openSnapshot(100, now.Add(time.Hour))
	snapshot.Finished = true

	// A snapshot flagged finished classifies as Finished even before the
	// recorded end time
	status := ClassifyBid(snapshot, intPtr(50), 1000, now)

	require.Equal(t, models.BidFinished, status)
}
