package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction. It only moves forward:
// scheduled -> active -> ended | cancelled.
type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "scheduled"
	AuctionActive    AuctionStatus = "active"
	AuctionEnded     AuctionStatus = "ended"
	AuctionCancelled AuctionStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionEnded || s == AuctionCancelled
}

// ListingStatus is the sale state of the listing that carries an auction
type ListingStatus string

const (
	ListingDraft    ListingStatus = "draft"
	ListingActive   ListingStatus = "active"
	ListingPaused   ListingStatus = "paused"
	ListingSold     ListingStatus = "sold"
	ListingArchived ListingStatus = "archived"
)

// Inventory holds the stock counters of a listing
type Inventory struct {
	TotalQuantity    int `json:"total_quantity"`
	ReservedQuantity int `json:"reserved_quantity"`
	SoldQuantity     int `json:"sold_quantity"`
}

// Available returns the quantity that can still be reserved
func (i Inventory) Available() int {
	return i.TotalQuantity - i.ReservedQuantity - i.SoldQuantity
}

// Reserve moves qty from available to reserved
func (i *Inventory) Reserve(qty int) bool {
	if qty <= 0 || i.Available() < qty {
		return false
	}
	i.ReservedQuantity += qty
	return true
}

// Release returns up to qty reserved units to available stock
func (i *Inventory) Release(qty int) {
	if qty > i.ReservedQuantity {
		qty = i.ReservedQuantity
	}
	i.ReservedQuantity -= qty
}

// Fulfill converts up to qty reserved units into sold units
func (i *Inventory) Fulfill(qty int) {
	if qty > i.ReservedQuantity {
		qty = i.ReservedQuantity
	}
	i.ReservedQuantity -= qty
	i.SoldQuantity += qty
}

// Auction is the auction sub-record embedded in a listing
type Auction struct {
	IsAuction    bool                `json:"is_auction"`
	Status       AuctionStatus       `json:"status"`
	StartingBid  decimal.Decimal     `json:"starting_bid"`
	CurrentBid   decimal.Decimal     `json:"current_bid"`
	ReservePrice decimal.NullDecimal `json:"reserve_price"`
	ReserveMet   bool                `json:"reserve_met"`
	BidIncrement decimal.Decimal     `json:"bid_increment"`
	Duration     int                 `json:"duration_minutes"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	WinnerID     string              `json:"winner_id,omitempty"`
}

// MinimumNextBid returns the lowest amount the next bid must reach
func (a Auction) MinimumNextBid() decimal.Decimal {
	base := a.CurrentBid
	if base.LessThan(a.StartingBid) {
		base = a.StartingBid
	}
	return base.Add(a.BidIncrement)
}

// MeetsReserve reports whether amount satisfies the reserve price, if any
func (a Auction) MeetsReserve(amount decimal.Decimal) bool {
	return !a.ReservePrice.Valid || amount.GreaterThanOrEqual(a.ReservePrice.Decimal)
}

// Listing is a catalog entry. The auction ID of an auction-enabled listing
// is its ListingID.
type Listing struct {
	ListingID string          `json:"listing_id"`
	SellerID  string          `json:"seller_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Status    ListingStatus   `json:"status"`
	Inventory Inventory       `json:"inventory"`
	Auction   Auction         `json:"auction"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BidStatus tags a ledger entry
type BidStatus string

const (
	BidActive    BidStatus = "active"
	BidOutbid    BidStatus = "outbid"
	BidWon       BidStatus = "won"
	BidCancelled BidStatus = "cancelled"
)

// Bid represents a user's bid on an auction. Amount is immutable once
// recorded; escalation appends a new Bid.
type Bid struct {
	BidID      string              `json:"bid_id"`
	AuctionID  string              `json:"auction_id"`
	BidderID   string              `json:"bidder_id"`
	Amount     decimal.Decimal     `json:"amount"`
	IsAutoBid  bool                `json:"is_auto_bid"`
	MaxAutoBid decimal.NullDecimal `json:"max_auto_bid"`
	IsWinner   bool                `json:"is_winner"`
	Status     BidStatus           `json:"status"`
	OutbidBy   string              `json:"outbid_by,omitempty"`
	Sequence   int64               `json:"-"`
	CreatedAt  time.Time           `json:"created_at"`
}

// PlacedBefore orders bids by creation time, falling back to ledger sequence
func (b Bid) PlacedBefore(other Bid) bool {
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return b.Sequence < other.Sequence
}

// Outranks reports whether b beats other for the lead: higher amount wins,
// earlier placement breaks ties.
func (b Bid) Outranks(other Bid) bool {
	if !b.Amount.Equal(other.Amount) {
		return b.Amount.GreaterThan(other.Amount)
	}
	return b.PlacedBefore(other)
}

// BidStatusChange flips the status of an existing ledger entry
type BidStatusChange struct {
	BidID    string    `json:"bid_id"`
	Status   BidStatus `json:"status"`
	OutbidBy string    `json:"outbid_by,omitempty"`
	IsWinner bool      `json:"is_winner,omitempty"`
}

// BidRound is one atomic unit of ledger work: the listing update guarded by
// its version, the bids appended and the status flips. Stores apply a round
// entirely or not at all.
type BidRound struct {
	Listing         Listing
	ExpectedVersion int64
	NewBids         []Bid
	StatusChanges   []BidStatusChange
}

// PaymentStatus of an order
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// OrderStatus of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Payment is the payment sub-record of an order
type Payment struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
}

// OrderItem is a single order line
type OrderItem struct {
	ListingID string          `json:"listing_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is the settlement artifact of a won auction
type Order struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	AuctionID   string          `json:"auction_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Payment     Payment         `json:"payment"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// SettlementOutcome is the result kind of Settle
type SettlementOutcome string

const (
	OutcomeSold          SettlementOutcome = "sold"
	OutcomeNoBids        SettlementOutcome = "no_bids"
	OutcomeReserveNotMet SettlementOutcome = "reserve_not_met"
	OutcomePaymentFailed SettlementOutcome = "payment_failed"
	// OutcomeSkipped means the auction was no longer active; nothing changed.
	OutcomeSkipped SettlementOutcome = "skipped"
)

// Settlement describes what a Settle call did
type Settlement struct {
	AuctionID  string            `json:"auction_id"`
	Outcome    SettlementOutcome `json:"outcome"`
	WinningBid *Bid              `json:"winning_bid,omitempty"`
	Order      *Order            `json:"order,omitempty"`
}

// SettlementCommit is the atomic state change at auction close: the ended
// listing, the bid flips and, on a sale, the pending order.
type SettlementCommit struct {
	Listing         Listing
	ExpectedVersion int64
	StatusChanges   []BidStatusChange
	Order           *Order
}
