package biddingerrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error kinds. Every specific error below wraps exactly one of these so
// callers can branch with errors.Is(err, ErrValidation) and friends.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidState        = errors.New("invalid state")
	ErrValidation          = errors.New("validation error")
	ErrPaymentFailure      = errors.New("payment failure")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrForbidden           = errors.New("forbidden")
)

// Repository-level errors
var (
	ErrListingNotFound = fmt.Errorf("listing %w", ErrNotFound)
	ErrAuctionNotFound = fmt.Errorf("auction %w", ErrNotFound)
	ErrBidNotFound     = fmt.Errorf("bid %w", ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrNoBids          = fmt.Errorf("no bids found for auction: %w", ErrNotFound)
	ErrUserNoBids      = fmt.Errorf("user has not placed any bids: %w", ErrNotFound)
	ErrStaleListing    = fmt.Errorf("listing was modified by another transaction: %w", ErrConcurrencyConflict)
)

// business logic errors
var (
	ErrInvalidBid          = fmt.Errorf("invalid bid: %w", ErrValidation)
	ErrInvalidListing      = fmt.Errorf("invalid listing: %w", ErrValidation)
	ErrBidTooLow           = fmt.Errorf("bid amount too low: %w", ErrValidation)
	ErrInvalidAutoBid      = fmt.Errorf("auto bid ceiling below bid amount: %w", ErrValidation)
	ErrSellerBid           = fmt.Errorf("seller cannot bid on own auction: %w", ErrValidation)
	ErrInvalidDuration     = fmt.Errorf("auction duration must be positive: %w", ErrValidation)
	ErrReserveMisconfig    = fmt.Errorf("reserve price below starting bid: %w", ErrValidation)
	ErrInsufficientStock   = fmt.Errorf("insufficient stock: %w", ErrValidation)
	ErrNotAuction          = fmt.Errorf("listing is not configured for auction: %w", ErrInvalidState)
	ErrAuctionNotActive    = fmt.Errorf("auction is not active: %w", ErrInvalidState)
	ErrAuctionNotScheduled = fmt.Errorf("auction can only be started from scheduled status: %w", ErrInvalidState)
	ErrAuctionClosed       = fmt.Errorf("auction has ended: %w", ErrInvalidState)
	ErrLeadingBid          = fmt.Errorf("cannot cancel the leading bid: %w", ErrInvalidState)
	ErrBidNotCancellable   = fmt.Errorf("bid cannot be cancelled: %w", ErrInvalidState)
	ErrOrderNotPaid        = fmt.Errorf("order payment is not completed: %w", ErrInvalidState)
	ErrNotBidOwner         = fmt.Errorf("not the owner of this bid: %w", ErrForbidden)
	ErrNotSeller           = fmt.Errorf("not the seller of this listing: %w", ErrForbidden)
	ErrPaymentDeclined     = fmt.Errorf("payment declined: %w", ErrPaymentFailure)
	ErrPaymentTimeout      = fmt.Errorf("payment timed out: %w", ErrPaymentFailure)
)

// BidTooLowError reports the minimum acceptable amount at the moment the bid
// was rejected. It matches ErrBidTooLow and ErrValidation via errors.Is.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount must be at least %s", e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }
