package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/auctionhouse/internal/services"
)

// AuctionsHandler handles auction-related HTTP requests
type AuctionsHandler struct {
	auctionService *services.AuctionService
}

// NewAuctionsHandler creates a new auctions handler
func NewAuctionsHandler(auctionService *services.AuctionService) *AuctionsHandler {
	return &AuctionsHandler{auctionService: auctionService}
}

// RegisterRoutes registers the auction routes
func (h *AuctionsHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/auctions")
	{
		api.POST("", h.CreateAuction)
		api.GET("", h.ListUpdatedSince)
		api.GET("/:id", h.GetAuction)
		api.PUT("/:id", h.UpdateAuction)
		api.DELETE("/:id", h.DeleteAuction)
	}

	// Point lookup for the bidding side's synchronous fallback resolver.
	router.GET("/internal/auctions/:id", h.ResolveAuction)
}

// CreateAuctionRequest is the payload for opening an auction
type CreateAuctionRequest struct {
	Seller       string    `json:"seller" binding:"required"`
	ReservePrice int       `json:"reservePrice"`
	AuctionEnd   time.Time `json:"auctionEnd" binding:"required"`
}

// UpdateAuctionRequest carries the mutable auction terms
type UpdateAuctionRequest struct {
	ReservePrice *int       `json:"reservePrice"`
	AuctionEnd   *time.Time `json:"auctionEnd"`
}

// CreateAuction handles POST /api/auctions
func (h *AuctionsHandler) CreateAuction(c *gin.Context) {
	var req CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.CreateAuction(c.Request.Context(), req.Seller, req.ReservePrice, req.AuctionEnd)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create auction")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, auction)
}

// GetAuction handles GET /api/auctions/:id
func (h *AuctionsHandler) GetAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	auction, err := h.auctionService.GetAuction(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, auction)
}

// UpdateAuction handles PUT /api/auctions/:id
func (h *AuctionsHandler) UpdateAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	var req UpdateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	auction, err := h.auctionService.UpdateAuction(c.Request.Context(), id, services.UpdateAuctionParams{
		ReservePrice: req.ReservePrice,
		AuctionEnd:   req.AuctionEnd,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAuctionNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
		case errors.Is(err, services.ErrAuctionClosed):
			c.JSON(http.StatusConflict, gin.H{"error": "auction is no longer open"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, auction)
}

// DeleteAuction handles DELETE /api/auctions/:id
func (h *AuctionsHandler) DeleteAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	if err := h.auctionService.DeleteAuction(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListUpdatedSince handles GET /api/auctions?since=<RFC3339>, the pull-based
// catch-up query for downstream projections.
func (h *AuctionsHandler) ListUpdatedSince(c *gin.Context) {
	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		since = parsed
	}

	auctions, err := h.auctionService.ListUpdatedSince(c.Request.Context(), since, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, auctions)
}

// ResolveAuction handles GET /internal/auctions/:id, returning the narrow
// snapshot the bid evaluator needs.
func (h *AuctionsHandler) ResolveAuction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	auction, err := h.auctionService.GetAuction(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrAuctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "auction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           auction.ID,
		"seller":       auction.Seller,
		"reservePrice": auction.ReservePrice,
		"auctionEnd":   auction.AuctionEnd,
	})
}
