package services

import (
	"time"

	"example.com/auctionhouse/internal/models"
)

// ClassifyBid is the pure bid acceptance rule. Every comparison is a strict
// greater-than: a bid equal to the current high bid never outranks it, and a
// bid equal to the reserve does not clear it. A bid arriving at or after the
// auction's end is Finished regardless of amount.
func ClassifyBid(snapshot *models.AuctionSnapshot, highestAccepted *int, amount int, now time.Time) models.BidStatus {
	if snapshot.Finished || !snapshot.AuctionEnd.After(now) {
		return models.BidFinished
	}

	if highestAccepted == nil || amount > *highestAccepted {
		if amount > snapshot.ReservePrice {
			return models.BidAccepted
		}
		return models.BidAcceptedBelowReserve
	}

	return models.BidTooLow
}
