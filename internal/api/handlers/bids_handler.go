package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/services"
)

// BidsHandler handles bid-related HTTP requests
type BidsHandler struct {
	bidService *services.BidService
}

// NewBidsHandler creates a new bids handler
func NewBidsHandler(bidService *services.BidService) *BidsHandler {
	return &BidsHandler{bidService: bidService}
}

// RegisterRoutes registers the bid routes
func (h *BidsHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/bids")
	{
		api.POST("", h.PlaceBid)
		api.GET("/:auctionId", h.GetBidsForAuction)
	}
}

// PlaceBidRequest is the payload for submitting a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID `json:"auctionId" binding:"required"`
	Bidder    string    `json:"bidder" binding:"required"`
	Amount    int       `json:"amount" binding:"required"`
}

// PlaceBid handles POST /api/bids
func (h *BidsHandler) PlaceBid(c *gin.Context) {
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bid, err := h.bidService.PlaceBid(c.Request.Context(), req.AuctionID, req.Bidder, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount), errors.Is(err, services.ErrInvalidBidder), errors.Is(err, services.ErrSelfBid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAuctionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
		case errors.Is(err, services.ErrUnavailable):
			log.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Bid rejected, auction state unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cannot accept bids on this auction at this time"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, bid)
}

// GetBidsForAuction handles GET /api/bids/:auctionId
func (h *BidsHandler) GetBidsForAuction(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	bids, err := h.bidService.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, bids)
}
