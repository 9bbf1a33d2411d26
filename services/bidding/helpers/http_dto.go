package helpers

import (
	model "auction-engine/internal/models"
	"time"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs. Money travels as decimal strings or JSON numbers.
type PlaceBidRequest struct {
	AuctionID  string              `json:"auction_id" binding:"required"`
	BidderID   string              `json:"bidder_id" binding:"required"`
	Amount     decimal.Decimal     `json:"amount" binding:"dgt0"`
	IsAutoBid  bool                `json:"is_auto_bid"`
	MaxAutoBid decimal.NullDecimal `json:"max_auto_bid" binding:"omitempty,dgt0"`
}

type CancelBidRequest struct {
	BidderID string `json:"bidder_id" binding:"required"`
}

type CreateAuctionRequest struct {
	ListingID       string              `json:"listing_id"`
	SellerID        string              `json:"seller_id" binding:"required"`
	Title           string              `json:"title" binding:"required"`
	StartingBid     decimal.Decimal     `json:"starting_bid" binding:"dgt0"`
	BidIncrement    decimal.NullDecimal `json:"bid_increment" binding:"omitempty,dgt0"`
	ReservePrice    decimal.NullDecimal `json:"reserve_price" binding:"omitempty,dgt0"`
	DurationMinutes int                 `json:"duration_minutes" binding:"gte=0"`
	Quantity        int                 `json:"quantity" binding:"gte=0"`
}

// SellerActionRequest identifies who starts or cancels an auction
type SellerActionRequest struct {
	RequesterID     string `json:"requester_id" binding:"required"`
	DurationMinutes int    `json:"duration_minutes" binding:"gte=0"`
}

type BidResponse struct {
	BidID      string              `json:"bid_id"`
	AuctionID  string              `json:"auction_id"`
	BidderID   string              `json:"bidder_id"`
	Amount     decimal.Decimal     `json:"amount"`
	IsAutoBid  bool                `json:"is_auto_bid"`
	MaxAutoBid decimal.NullDecimal `json:"max_auto_bid"`
	Status     model.BidStatus     `json:"status"`
	IsWinner   bool                `json:"is_winner"`
	CreatedAt  string              `json:"created_at"`
}

// AuctionResponse is the public view of an auction. The reserve amount
// stays private; only whether it exists and is met is exposed.
type AuctionResponse struct {
	AuctionID      string              `json:"auction_id"`
	SellerID       string              `json:"seller_id"`
	Title          string              `json:"title"`
	Status         model.AuctionStatus `json:"status"`
	ListingStatus  model.ListingStatus `json:"listing_status"`
	StartingBid    decimal.Decimal     `json:"starting_bid"`
	CurrentBid     decimal.Decimal     `json:"current_bid"`
	MinimumNextBid decimal.Decimal     `json:"minimum_next_bid"`
	BidIncrement   decimal.Decimal     `json:"bid_increment"`
	HasReserve     bool                `json:"has_reserve"`
	ReserveMet     bool                `json:"reserve_met"`
	Duration       int                 `json:"duration_minutes"`
	StartTime      string              `json:"start_time,omitempty"`
	EndTime        string              `json:"end_time,omitempty"`
	WinnerID       string              `json:"winner_id,omitempty"`
	Available      int                 `json:"available_quantity"`
}

func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:      b.BidID,
		AuctionID:  b.AuctionID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		IsAutoBid:  b.IsAutoBid,
		MaxAutoBid: b.MaxAutoBid,
		Status:     b.Status,
		IsWinner:   b.IsWinner,
		CreatedAt:  b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func NewAuctionResponse(l model.Listing) AuctionResponse {
	resp := AuctionResponse{
		AuctionID:      l.ListingID,
		SellerID:       l.SellerID,
		Title:          l.Title,
		Status:         l.Auction.Status,
		ListingStatus:  l.Status,
		StartingBid:    l.Auction.StartingBid,
		CurrentBid:     l.Auction.CurrentBid,
		MinimumNextBid: l.Auction.MinimumNextBid(),
		BidIncrement:   l.Auction.BidIncrement,
		HasReserve:     l.Auction.ReservePrice.Valid,
		ReserveMet:     l.Auction.ReserveMet,
		Duration:       l.Auction.Duration,
		WinnerID:       l.Auction.WinnerID,
		Available:      l.Inventory.Available(),
	}
	if !l.Auction.StartTime.IsZero() {
		resp.StartTime = l.Auction.StartTime.UTC().Format(time.RFC3339)
	}
	if !l.Auction.EndTime.IsZero() {
		resp.EndTime = l.Auction.EndTime.UTC().Format(time.RFC3339)
	}
	return resp
}
