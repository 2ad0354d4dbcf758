package services

import "errors"

// Domain errors surfaced to callers. Validation and domain rejections are
// final; ErrUnavailable means the whole submission is safe to retry.
var (
	ErrInvalidAmount   = errors.New("bid amount must be a positive integer")
	ErrInvalidBidder   = errors.New("bidder is required")
	ErrSelfBid         = errors.New("sellers cannot bid on their own auction")
	ErrAuctionNotFound = errors.New("auction does not exist")
	ErrUnavailable     = errors.New("auction state could not be resolved")
	ErrAuctionClosed   = errors.New("auction is no longer open")
)
