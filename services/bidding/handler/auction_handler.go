package handler

import (
	"context"
	"errors"
	"net/http"

	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/lifecycle"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(ctx context.Context, req lifecycle.CreateAuctionRequest) (model.Listing, error)
	StartAuction(ctx context.Context, listingID, requesterID string, durationMinutes int) (model.Listing, error)
	CancelAuction(ctx context.Context, listingID, requesterID string) (model.Listing, error)
	CloseAuction(ctx context.Context, auctionID string) (model.Settlement, error)
}

type OrderServiceInterface interface {
	GetOrder(ctx context.Context, orderID string) (model.Order, error)
	GetOrderByAuction(ctx context.Context, auctionID string) (model.Order, error)
	MarkDelivered(ctx context.Context, orderID string) (model.Order, error)
}

// AuctionHandler serves the seller and admin side: lifecycle and orders
type AuctionHandler struct {
	auctions AuctionServiceInterface
	orders   OrderServiceInterface
}

func NewAuctionHandler(auctions AuctionServiceInterface, orders OrderServiceInterface) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, orders: orders}
}

// CreateAuctionHandler handles POST /auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	listing, err := h.auctions.CreateAuction(c.Request.Context(), lifecycle.CreateAuctionRequest{
		ListingID:       req.ListingID,
		SellerID:        req.SellerID,
		Title:           req.Title,
		StartingBid:     req.StartingBid,
		BidIncrement:    req.BidIncrement.Decimal,
		ReservePrice:    req.ReservePrice,
		DurationMinutes: req.DurationMinutes,
		Quantity:        req.Quantity,
	})
	if err != nil {
		helpers.RespondError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": req.SellerID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewAuctionResponse(listing), "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created", map[string]any{
		"auction_id": listing.ListingID,
		"seller_id":  listing.SellerID,
	})
}

// StartAuctionHandler handles POST /auctions/:auction_id/start
func (h *AuctionHandler) StartAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.SellerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "StartAuctionHandler", err)
		return
	}

	listing, err := h.auctions.StartAuction(c.Request.Context(), auctionID, req.RequesterID, req.DurationMinutes)
	if err != nil {
		helpers.RespondError(c, "StartAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(listing), "auction started successfully")
	helpers.LogSuccess("StartAuctionHandler", "auction started", map[string]any{"auction_id": auctionID})
}

// CancelAuctionHandler handles POST /auctions/:auction_id/cancel
func (h *AuctionHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	var req helpers.SellerActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CancelAuctionHandler", err)
		return
	}

	listing, err := h.auctions.CancelAuction(c.Request.Context(), auctionID, req.RequesterID)
	if err != nil {
		helpers.RespondError(c, "CancelAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewAuctionResponse(listing), "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled", map[string]any{"auction_id": auctionID})
}

// CloseAuctionHandler handles POST /auctions/:auction_id/close. A failed
// payment still ends the auction; the settlement is returned with the error.
func (h *AuctionHandler) CloseAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	settlement, err := h.auctions.CloseAuction(c.Request.Context(), auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrPaymentFailure) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"status":  http.StatusPaymentRequired,
				"message": "auction closed but payment failed",
				"error":   err.Error(),
				"data":    settlement,
			})
			utils.Warn("CloseAuctionHandler: payment failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
			return
		}
		helpers.RespondError(c, "CloseAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	message := "auction closed successfully"
	if settlement.Outcome == model.OutcomeSkipped {
		message = "auction already closed"
	}
	utils.JSONResponse(c, http.StatusOK, settlement, message)
	helpers.LogSuccess("CloseAuctionHandler", message, map[string]any{
		"auction_id": auctionID,
		"outcome":    string(settlement.Outcome),
	})
}

// GetAuctionOrderHandler handles GET /auctions/:auction_id/order
func (h *AuctionHandler) GetAuctionOrderHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	order, err := h.orders.GetOrderByAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.RespondError(c, "GetAuctionOrderHandler", err, map[string]any{"auction_id": auctionID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, order, "order retrieved successfully")
}

// GetOrderHandler handles GET /orders/:order_id
func (h *AuctionHandler) GetOrderHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		helpers.RespondError(c, "GetOrderHandler", err, map[string]any{"order_id": orderID})
		return
	}
	utils.JSONResponse(c, http.StatusOK, order, "order retrieved successfully")
}

// DeliverOrderHandler handles POST /orders/:order_id/deliver
func (h *AuctionHandler) DeliverOrderHandler(c *gin.Context) {
	orderID := c.Param("order_id")
	order, err := h.orders.MarkDelivered(c.Request.Context(), orderID)
	if err != nil {
		helpers.RespondError(c, "DeliverOrderHandler", err, map[string]any{"order_id": orderID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, order, "order delivered")
	helpers.LogSuccess("DeliverOrderHandler", "order delivered", map[string]any{
		"order_id":   orderID,
		"auction_id": order.AuctionID,
	})
}
