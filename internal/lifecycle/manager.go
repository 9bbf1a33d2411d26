package lifecycle

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/locking"
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Settler closes an active auction. Closing an auction that is no longer
// active must be a no-op.
type Settler interface {
	Settle(ctx context.Context, auctionID string) (model.Settlement, error)
}

// Timer arranges for an auction to be closed at a point in time
type Timer interface {
	Schedule(auctionID string, at time.Time)
	Cancel(auctionID string)
}

type noopTimer struct{}

func (noopTimer) Schedule(string, time.Time) {}
func (noopTimer) Cancel(string)              {}

// CreateAuctionRequest describes a new auction-enabled listing
type CreateAuctionRequest struct {
	ListingID       string
	SellerID        string
	Title           string
	StartingBid     decimal.Decimal
	BidIncrement    decimal.Decimal
	ReservePrice    decimal.NullDecimal
	DurationMinutes int
	Quantity        int
}

// Manager drives the auction state machine:
// scheduled -> active -> ended | cancelled.
type Manager struct {
	repo             repository.AuctionDB
	settler          Settler
	locks            *locking.KeyedMutex
	timer            Timer
	notifier         notification.Port
	now              func() time.Time
	defaultIncrement decimal.Decimal
}

// Option configures a Manager
type Option func(*Manager)

// WithLocks shares the per-auction locks with bidding and settlement
func WithLocks(locks *locking.KeyedMutex) Option {
	return func(m *Manager) { m.locks = locks }
}

// WithTimer sets the close timer armed when an auction starts
func WithTimer(t Timer) Option {
	return func(m *Manager) { m.timer = t }
}

// WithNotifier sets where lifecycle notifications are sent
func WithNotifier(n notification.Port) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithDefaultIncrement sets the increment used when a listing omits one
func WithDefaultIncrement(inc decimal.Decimal) Option {
	return func(m *Manager) { m.defaultIncrement = inc }
}

// NewManager creates a lifecycle manager. Closing is delegated to settler.
func NewManager(repo repository.AuctionDB, settler Settler, opts ...Option) *Manager {
	m := &Manager{
		repo:             repo,
		settler:          settler,
		locks:            locking.NewKeyedMutex(),
		timer:            noopTimer{},
		notifier:         notification.LogNotifier{},
		now:              func() time.Time { return time.Now().UTC() },
		defaultIncrement: decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateAuction stores a new listing whose auction is scheduled
func (m *Manager) CreateAuction(ctx context.Context, req CreateAuctionRequest) (model.Listing, error) {
	if req.ListingID == "" {
		req.ListingID = utils.GenerateID()
	}
	if req.BidIncrement.IsZero() {
		req.BidIncrement = m.defaultIncrement
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if err := validateCreate(req); err != nil {
		return model.Listing{}, err
	}

	listing := model.Listing{
		ListingID: req.ListingID,
		SellerID:  req.SellerID,
		Title:     req.Title,
		Price:     req.StartingBid,
		Status:    model.ListingActive,
		Inventory: model.Inventory{TotalQuantity: req.Quantity},
		Auction: model.Auction{
			IsAuction:    true,
			Status:       model.AuctionScheduled,
			StartingBid:  req.StartingBid,
			CurrentBid:   decimal.Zero,
			ReservePrice: req.ReservePrice,
			BidIncrement: req.BidIncrement,
			Duration:     req.DurationMinutes,
		},
		Version:   1,
		UpdatedAt: m.now(),
	}
	if err := m.repo.CreateListing(ctx, listing); err != nil {
		return model.Listing{}, fmt.Errorf("lifecycle: failed to create auction: %w", err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id":   listing.ListingID,
		"seller_id":    listing.SellerID,
		"starting_bid": listing.Auction.StartingBid.StringFixed(2),
	})
	return listing, nil
}

func validateCreate(req CreateAuctionRequest) error {
	if req.SellerID == "" {
		return fmt.Errorf("lifecycle: %w - missing seller", biddingerrors.ErrInvalidListing)
	}
	if req.StartingBid.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("lifecycle: %w - starting bid must be positive", biddingerrors.ErrInvalidListing)
	}
	if req.BidIncrement.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("lifecycle: %w - bid increment must be positive", biddingerrors.ErrInvalidListing)
	}
	if req.Quantity < 1 {
		return fmt.Errorf("lifecycle: %w - quantity must be at least 1", biddingerrors.ErrInvalidListing)
	}
	if req.DurationMinutes < 0 {
		return fmt.Errorf("lifecycle: %w", biddingerrors.ErrInvalidDuration)
	}
	if req.ReservePrice.Valid && req.ReservePrice.Decimal.LessThan(req.StartingBid) {
		return fmt.Errorf("lifecycle: %w", biddingerrors.ErrReserveMisconfig)
	}
	return nil
}

// StartAuction moves a scheduled auction to active. The auction runs for
// durationMinutes, or for the duration stored on the listing when zero, and
// its close timer is armed for the end time.
func (m *Manager) StartAuction(ctx context.Context, listingID, requesterID string, durationMinutes int) (model.Listing, error) {
	if listingID == "" {
		return model.Listing{}, fmt.Errorf("lifecycle: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}

	unlock := m.locks.Lock(listingID)
	defer unlock()

	listing, err := m.load(ctx, listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if requesterID != "" && requesterID != listing.SellerID {
		return model.Listing{}, fmt.Errorf("lifecycle: auction %s: %w", listingID, biddingerrors.ErrNotSeller)
	}
	if listing.Auction.Status != model.AuctionScheduled {
		return model.Listing{}, fmt.Errorf("lifecycle: auction %s is %s: %w", listingID, listing.Auction.Status, biddingerrors.ErrAuctionNotScheduled)
	}

	if durationMinutes == 0 {
		durationMinutes = listing.Auction.Duration
	}
	if durationMinutes <= 0 {
		return model.Listing{}, fmt.Errorf("lifecycle: auction %s: %w", listingID, biddingerrors.ErrInvalidDuration)
	}

	now := m.now()
	next := listing
	next.Auction.Status = model.AuctionActive
	next.Auction.Duration = durationMinutes
	next.Auction.StartTime = now
	next.Auction.EndTime = now.Add(time.Duration(durationMinutes) * time.Minute)
	next.Auction.CurrentBid = listing.Auction.StartingBid
	next.Auction.ReserveMet = false

	started, err := m.repo.UpdateAuction(ctx, next, listing.Version)
	if err != nil {
		return model.Listing{}, fmt.Errorf("lifecycle: failed to start auction %s: %w", listingID, err)
	}
	m.timer.Schedule(listingID, started.Auction.EndTime)

	utils.Info("auction started", map[string]any{
		"auction_id": listingID,
		"end_time":   started.Auction.EndTime.Format(time.RFC3339),
	})
	return started, nil
}

// CancelAuction withdraws a scheduled or active auction without settlement.
// Open bids are cancelled and the listing returns to sale.
func (m *Manager) CancelAuction(ctx context.Context, listingID, requesterID string) (model.Listing, error) {
	if listingID == "" {
		return model.Listing{}, fmt.Errorf("lifecycle: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}

	unlock := m.locks.Lock(listingID)
	defer unlock()

	listing, err := m.load(ctx, listingID)
	if err != nil {
		return model.Listing{}, err
	}
	if requesterID != "" && requesterID != listing.SellerID {
		return model.Listing{}, fmt.Errorf("lifecycle: auction %s: %w", listingID, biddingerrors.ErrNotSeller)
	}
	if listing.Auction.Status.IsTerminal() {
		return model.Listing{}, fmt.Errorf("lifecycle: auction %s is %s: %w", listingID, listing.Auction.Status, biddingerrors.ErrAuctionClosed)
	}

	bids, err := m.repo.GetBidsByAuction(ctx, listingID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		return model.Listing{}, fmt.Errorf("lifecycle: failed to load bids for auction %s: %w", listingID, err)
	}

	var changes []model.BidStatusChange
	bidders := make(map[string]bool)
	var notify []string
	for _, b := range bids {
		if b.Status == model.BidActive || b.Status == model.BidOutbid {
			changes = append(changes, model.BidStatusChange{BidID: b.BidID, Status: model.BidCancelled})
		}
		if !bidders[b.BidderID] {
			bidders[b.BidderID] = true
			notify = append(notify, b.BidderID)
		}
	}

	next := listing
	next.Status = model.ListingActive
	next.Auction.Status = model.AuctionCancelled
	cancelled, err := m.repo.CommitBidRound(ctx, model.BidRound{
		Listing:         next,
		ExpectedVersion: listing.Version,
		StatusChanges:   changes,
	})
	if err != nil {
		return model.Listing{}, fmt.Errorf("lifecycle: failed to cancel auction %s: %w", listingID, err)
	}
	m.timer.Cancel(listingID)

	for _, bidderID := range notify {
		notification.Send(ctx, m.notifier, notification.New(bidderID, model.EventAuctionCancelled, map[string]any{
			"listing_id": listingID,
			"title":      listing.Title,
		}))
	}

	utils.Info("auction cancelled", map[string]any{
		"auction_id":     listingID,
		"cancelled_bids": len(changes),
	})
	return cancelled, nil
}

// CloseAuction ends an active auction and settles it. A duplicate close is
// reported as OutcomeSkipped.
func (m *Manager) CloseAuction(ctx context.Context, auctionID string) (model.Settlement, error) {
	s, err := m.settler.Settle(ctx, auctionID)
	if err != nil {
		return s, fmt.Errorf("lifecycle: close auction %s: %w", auctionID, err)
	}
	m.timer.Cancel(auctionID)
	return s, nil
}

func (m *Manager) load(ctx context.Context, listingID string) (model.Listing, error) {
	listing, err := m.repo.GetListing(ctx, listingID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrListingNotFound) {
			return model.Listing{}, fmt.Errorf("lifecycle: %s: %w", listingID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Listing{}, fmt.Errorf("lifecycle: failed to get auction %s: %w", listingID, err)
	}
	if !listing.Auction.IsAuction {
		return model.Listing{}, fmt.Errorf("lifecycle: listing %s: %w", listingID, biddingerrors.ErrNotAuction)
	}
	return listing, nil
}
