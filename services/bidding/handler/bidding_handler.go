package handler

import (
	"context"
	"errors"
	"net/http"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, req bidding.PlaceBidRequest) (model.Bid, error)
	CancelBid(ctx context.Context, bidID, requesterID string) (model.Bid, error)
	GetAuction(ctx context.Context, auctionID string) (model.Listing, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetLeadingBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string, status model.BidStatus) ([]model.Bid, error)
	ResolveAutoBids(ctx context.Context, auctionID string) (*model.Bid, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// PlaceBidHandler handles POST /bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), bidding.PlaceBidRequest{
		AuctionID:  req.AuctionID,
		BidderID:   req.BidderID,
		Amount:     req.Amount,
		IsAutoBid:  req.IsAutoBid,
		MaxAutoBid: req.MaxAutoBid,
	})
	if err != nil {
		helpers.RespondError(c, "PlaceBidHandler", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  req.BidderID,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid recorded successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount.String(),
	})
}

// CancelBidHandler handles POST /bids/:bid_id/cancel
func (h *BiddingHandler) CancelBidHandler(c *gin.Context) {
	bidID := c.Param("bid_id")
	var req helpers.CancelBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CancelBidHandler", err)
		return
	}

	bid, err := h.service.CancelBid(c.Request.Context(), bidID, req.BidderID)
	if err != nil {
		helpers.RespondError(c, "CancelBidHandler", err, map[string]any{"bid_id": bidID, "bidder_id": req.BidderID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "bid cancelled successfully")
	helpers.LogSuccess("CancelBidHandler", "bid cancelled", map[string]any{"bid_id": bidID})
}

// GetAuctionHandler handles GET /auctions/:auction_id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	listing, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(listing), "auction retrieved successfully")
}

// GetBidsByAuctionHandler handles GET /auctions/:auction_id/bids
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.RespondError(c, "GetBidsByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetLeadingBidHandler handles GET /auctions/:auction_id/leading
func (h *BiddingHandler) GetLeadingBidHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.GetLeadingBid(c.Request.Context(), auctionID)
	if err != nil {
		// an auction without bids has no leader -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no leading bid found")
			utils.Info("GetLeadingBidHandler: no leading bid found", map[string]any{"auction_id": auctionID})
			return
		}
		helpers.RespondError(c, "GetLeadingBidHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "leading bid retrieved successfully")
	helpers.LogSuccess("GetLeadingBidHandler", "leading bid retrieved successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"amount":     bid.Amount.String(),
	})
}

// GetBidsByUserHandler handles GET /users/:user_id/bids?status=
func (h *BiddingHandler) GetBidsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	status := model.BidStatus(c.Query("status"))
	switch status {
	case "", model.BidActive, model.BidOutbid, model.BidWon, model.BidCancelled:
	default:
		utils.JSONError(c, http.StatusBadRequest, errors.New("unknown bid status "+string(status)), "invalid request")
		return
	}

	bids, err := h.service.GetBidsByUser(c.Request.Context(), userID, status)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		helpers.RespondError(c, "GetBidsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByUserHandler", "bids retrieved successfully", map[string]any{
		"user_id": userID,
		"count":   len(bids),
	})
}

// ResolveAutoBidsHandler handles POST /auctions/:auction_id/resolve-auto-bids
func (h *BiddingHandler) ResolveAutoBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bid, err := h.service.ResolveAutoBids(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "ResolveAutoBidsHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	if bid == nil {
		utils.JSONResponse(c, http.StatusOK, nil, "no proxy bid due")
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(*bid), "proxy bid placed")
	helpers.LogSuccess("ResolveAutoBidsHandler", "proxy bid placed", map[string]any{
		"auction_id": auctionID,
		"bid_id":     bid.BidID,
		"amount":     bid.Amount.String(),
	})
}
