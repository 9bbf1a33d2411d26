package bidding

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
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// maxAttempts bounds PlaceBid retries after an optimistic write conflict
const maxAttempts = 2

// Clock returns the current time
type Clock func() time.Time

// BiddingService accepts bids, answers them with proxy bids and cancels
// non-leading bids. Every mutation of an auction runs under that auction's
// lock and is committed as a single round.
type BiddingService struct {
	repo     repository.AuctionDB
	locks    *locking.KeyedMutex
	notifier notification.Port
	now      Clock
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithLocks shares the per-auction locks with lifecycle and settlement
func WithLocks(locks *locking.KeyedMutex) Option {
	return func(s *BiddingService) { s.locks = locks }
}

// WithNotifier sets where bid notifications are sent
func WithNotifier(n notification.Port) Option {
	return func(s *BiddingService) { s.notifier = n }
}

// WithClock overrides time.Now
func WithClock(c Clock) Option {
	return func(s *BiddingService) { s.now = c }
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:     repo,
		locks:    locking.NewKeyedMutex(),
		notifier: notification.LogNotifier{},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates and records a bid. The bid, the outbid flips and at most
// one proxy response are committed together or not at all. A write conflict
// is retried once against fresh state.
func (s *BiddingService) PlaceBid(ctx context.Context, req PlaceBidRequest) (model.Bid, error) {
	if err := validateBidRequest(&req); err != nil {
		return model.Bid{}, err
	}

	var (
		bid   model.Bid
		notes []model.Notification
	)
	err := s.retryOnConflict("place bid", req.AuctionID, func() error {
		var err error
		bid, notes, err = s.placeBid(ctx, req)
		return err
	})
	if err != nil {
		return model.Bid{}, err
	}

	s.dispatch(ctx, notes)
	utils.Info("bid placed", map[string]any{
		"auction_id":  bid.AuctionID,
		"bid_id":      bid.BidID,
		"bidder_id":   bid.BidderID,
		"amount":      bid.Amount.StringFixed(2),
		"is_auto_bid": bid.IsAutoBid,
		"status":      string(bid.Status),
	})
	return bid, nil
}

func (s *BiddingService) placeBid(ctx context.Context, req PlaceBidRequest) (model.Bid, []model.Notification, error) {
	unlock := s.locks.Lock(req.AuctionID)
	defer unlock()

	listing, err := s.loadAuction(ctx, req.AuctionID)
	if err != nil {
		return model.Bid{}, nil, err
	}
	now := s.now()
	if err := checkAuctionOpen(listing, now); err != nil {
		return model.Bid{}, nil, err
	}
	if err := checkBidder(listing, req.BidderID); err != nil {
		return model.Bid{}, nil, err
	}
	if err := checkAmount(listing, req.Amount); err != nil {
		return model.Bid{}, nil, err
	}

	bids, err := s.loadBids(ctx, req.AuctionID)
	if err != nil {
		return model.Bid{}, nil, err
	}

	round := newBidRound(listing, bids)
	placed := round.place(req.BidderID, req.Amount, req.IsAutoBid, req.MaxAutoBid, now)
	s.proxyStep(round, now)

	if _, err := s.repo.CommitBidRound(ctx, round.commitRound()); err != nil {
		return model.Bid{}, nil, fmt.Errorf("service: failed to record bid for auction %s by bidder %s: %w", req.AuctionID, req.BidderID, err)
	}

	// the proxy step may already have outbid the new bid
	placed = round.bids[round.newBids[placed.BidID]]
	return placed, round.notes, nil
}

// ResolveAutoBids runs a single proxy escalation step for the auction's
// current leader. It returns the proxy bid placed, or nil when no standing
// proxy can answer.
func (s *BiddingService) ResolveAutoBids(ctx context.Context, auctionID string) (*model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	var (
		proxy *model.Bid
		notes []model.Notification
	)
	err := s.retryOnConflict("resolve auto bids", auctionID, func() error {
		var err error
		proxy, notes, err = s.resolveAutoBids(ctx, auctionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, notes)
	if proxy != nil {
		utils.Info("proxy bid placed", map[string]any{
			"auction_id": auctionID,
			"bid_id":     proxy.BidID,
			"bidder_id":  proxy.BidderID,
			"amount":     proxy.Amount.StringFixed(2),
		})
	}
	return proxy, nil
}

func (s *BiddingService) resolveAutoBids(ctx context.Context, auctionID string) (*model.Bid, []model.Notification, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	listing, err := s.loadAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if err := checkAuctionOpen(listing, now); err != nil {
		return nil, nil, err
	}
	bids, err := s.loadBids(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}

	round := newBidRound(listing, bids)
	proxy, ok := s.proxyStep(round, now)
	if !ok {
		return nil, nil, nil
	}
	if _, err := s.repo.CommitBidRound(ctx, round.commitRound()); err != nil {
		return nil, nil, fmt.Errorf("service: failed to record proxy bid for auction %s: %w", auctionID, err)
	}
	return &proxy, round.notes, nil
}

// proxyStep places at most one proxy bid answering the round's leader
func (s *BiddingService) proxyStep(round *bidRound, now time.Time) (model.Bid, bool) {
	candidate, amount, ok := nextProxyBid(round.listing, round.bids)
	if !ok {
		return model.Bid{}, false
	}
	ceiling := decimal.NullDecimal{Decimal: candidate.Ceiling, Valid: true}
	return round.place(candidate.BidderID, amount, true, ceiling, now), true
}

// CancelBid withdraws a non-leading bid on an open auction. Only the bidder
// may cancel; cancelling a proxy bid also withdraws that bidder's proxy.
func (s *BiddingService) CancelBid(ctx context.Context, bidID, requesterID string) (model.Bid, error) {
	if bidID == "" || requesterID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing bidID or requesterID", biddingerrors.ErrInvalidBid)
	}

	bid, err := s.repo.GetBid(ctx, bidID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get bid %s: %w", bidID, err)
	}
	if bid.BidderID != requesterID {
		return model.Bid{}, fmt.Errorf("service: bid %s: %w", bidID, biddingerrors.ErrNotBidOwner)
	}

	var cancelled model.Bid
	err = s.retryOnConflict("cancel bid", bid.AuctionID, func() error {
		var err error
		cancelled, err = s.cancelBid(ctx, bid.AuctionID, bidID)
		return err
	})
	if err != nil {
		return model.Bid{}, err
	}

	utils.Info("bid cancelled", map[string]any{
		"auction_id": cancelled.AuctionID,
		"bid_id":     cancelled.BidID,
		"bidder_id":  cancelled.BidderID,
	})
	return cancelled, nil
}

func (s *BiddingService) cancelBid(ctx context.Context, auctionID, bidID string) (model.Bid, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	listing, err := s.loadAuction(ctx, auctionID)
	if err != nil {
		return model.Bid{}, err
	}
	a := listing.Auction
	if a.Status.IsTerminal() || (!a.EndTime.IsZero() && !s.now().Before(a.EndTime)) {
		return model.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, biddingerrors.ErrAuctionClosed)
	}

	bids, err := s.loadBids(ctx, auctionID)
	if err != nil {
		return model.Bid{}, err
	}
	round := newBidRound(listing, bids)

	if leader, ok := round.leader(); ok && leader.BidID == bidID {
		return model.Bid{}, fmt.Errorf("service: bid %s: %w", bidID, biddingerrors.ErrLeadingBid)
	}
	var target model.Bid
	for _, b := range round.bids {
		if b.BidID == bidID {
			target = b
		}
	}
	if target.Status != model.BidActive && target.Status != model.BidOutbid {
		return model.Bid{}, fmt.Errorf("service: bid %s is %s: %w", bidID, target.Status, biddingerrors.ErrBidNotCancellable)
	}

	cancelled, _ := round.cancel(bidID)
	if _, err := s.repo.CommitBidRound(ctx, round.commitRound()); err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to cancel bid %s: %w", bidID, err)
	}
	return cancelled, nil
}

// GetAuction returns the auction-enabled listing
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (model.Listing, error) {
	if auctionID == "" {
		return model.Listing{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}
	return s.loadAuction(ctx, auctionID)
}

// GetBidsForAuction returns all bids for an auction, highest first and
// newest first among equal amounts
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}
	if _, err := s.loadAuction(ctx, auctionID); err != nil {
		return nil, err
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	sort.SliceStable(bids, func(i, j int) bool {
		if !bids[i].Amount.Equal(bids[j].Amount) {
			return bids[i].Amount.GreaterThan(bids[j].Amount)
		}
		return bids[j].PlacedBefore(bids[i])
	})
	return bids, nil
}

// GetLeadingBid returns the unique active bid of an auction
func (s *BiddingService) GetLeadingBid(ctx context.Context, auctionID string) (model.Bid, error) {
	if auctionID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	leading, err := s.repo.GetLeadingBid(ctx, auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to get leading bid for auction %s: %w", auctionID, err)
	}
	return leading, nil
}

// GetBidsByUser returns a user's bids, newest first, optionally filtered by status
func (s *BiddingService) GetBidsByUser(ctx context.Context, userID string, status model.BidStatus) ([]model.Bid, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for user %s: %w", userID, err)
	}
	if status == "" {
		return bids, nil
	}

	filtered := bids[:0]
	for _, b := range bids {
		if b.Status == status {
			filtered = append(filtered, b)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("service: no %s bids for user %s: %w", status, userID, biddingerrors.ErrUserNoBids)
	}
	return filtered, nil
}

func (s *BiddingService) loadAuction(ctx context.Context, auctionID string) (model.Listing, error) {
	listing, err := s.repo.GetListing(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrListingNotFound) {
			return model.Listing{}, fmt.Errorf("service: %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return model.Listing{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return listing, nil
}

func (s *BiddingService) loadBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrNoBids) {
			return nil, nil
		}
		return nil, fmt.Errorf("service: failed to load bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

func (s *BiddingService) retryOnConflict(op, auctionID string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, biddingerrors.ErrConcurrencyConflict) {
			return err
		}
		utils.Warn(op+": concurrency conflict", map[string]any{
			"auction_id": auctionID,
			"attempt":    attempt,
			"error":      err.Error(),
		})
	}
	return err
}

func (s *BiddingService) dispatch(ctx context.Context, notes []model.Notification) {
	for _, n := range notes {
		notification.Send(ctx, s.notifier, n)
	}
}
