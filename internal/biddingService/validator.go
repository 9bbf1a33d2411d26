package bidding

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceBidRequest is the input of PlaceBid. MaxAutoBid is only read when
// IsAutoBid is set.
type PlaceBidRequest struct {
	AuctionID  string
	BidderID   string
	Amount     decimal.Decimal
	IsAutoBid  bool
	MaxAutoBid decimal.NullDecimal
}

// validateBidRequest checks the request on its own, before any state is read
func validateBidRequest(req *PlaceBidRequest) error {
	if req.AuctionID == "" || req.BidderID == "" {
		return fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}
	if req.Amount.Exponent() < -2 && !req.Amount.Equal(req.Amount.Round(2)) {
		return fmt.Errorf("service: %w - amount has more than two decimal places", biddingerrors.ErrInvalidBid)
	}

	if !req.IsAutoBid {
		req.MaxAutoBid = decimal.NullDecimal{}
		return nil
	}
	if !req.MaxAutoBid.Valid || req.MaxAutoBid.Decimal.LessThan(req.Amount) {
		return fmt.Errorf("service: %w", biddingerrors.ErrInvalidAutoBid)
	}
	return nil
}

// checkAuctionOpen applies the liveness rules in order: auction enabled,
// active, and not past its end time
func checkAuctionOpen(listing model.Listing, now time.Time) error {
	a := listing.Auction
	if !a.IsAuction {
		return fmt.Errorf("service: listing %s: %w", listing.ListingID, biddingerrors.ErrNotAuction)
	}
	if a.Status != model.AuctionActive {
		return fmt.Errorf("service: auction %s is %s: %w", listing.ListingID, a.Status, biddingerrors.ErrAuctionNotActive)
	}
	if !a.EndTime.IsZero() && !now.Before(a.EndTime) {
		return fmt.Errorf("service: auction %s ended at %s: %w", listing.ListingID, a.EndTime.Format(time.RFC3339), biddingerrors.ErrAuctionClosed)
	}
	return nil
}

// checkBidder rejects bids from the seller of the listing
func checkBidder(listing model.Listing, bidderID string) error {
	if listing.SellerID == bidderID {
		return fmt.Errorf("service: %w", biddingerrors.ErrSellerBid)
	}
	return nil
}

// checkAmount enforces the minimum increment against the current state
func checkAmount(listing model.Listing, amount decimal.Decimal) error {
	minimum := listing.Auction.MinimumNextBid()
	if amount.LessThan(minimum) {
		return fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: minimum})
	}
	return nil
}
