package repository

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

//go:generate mockgen -source=repository.go -destination=mock_repository.go -package=repository

// CatalogStore reads and conditionally updates auction-enabled listings
type CatalogStore interface {
	CreateListing(ctx context.Context, listing model.Listing) error
	GetListing(ctx context.Context, listingID string) (model.Listing, error)
	ListActiveAuctions(ctx context.Context) ([]model.Listing, error)
	// UpdateAuction writes the listing's status and auction fields if the
	// stored version still equals expectedVersion.
	UpdateAuction(ctx context.Context, listing model.Listing, expectedVersion int64) (model.Listing, error)
	ReleaseInventory(ctx context.Context, items []model.OrderItem) error
	FulfillInventory(ctx context.Context, items []model.OrderItem) error
}

// BidLedger is the append-only bid record. Bids are never deleted; only
// their status changes.
type BidLedger interface {
	GetBid(ctx context.Context, bidID string) (model.Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetBidsByUser(ctx context.Context, userID string) ([]model.Bid, error)
	GetLeadingBid(ctx context.Context, auctionID string) (model.Bid, error)
	CommitBidRound(ctx context.Context, round model.BidRound) (model.Listing, error)
}

// OrderStore holds settlement orders
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (model.Order, error)
	GetOrderByAuction(ctx context.Context, auctionID string) (model.Order, error)
	UpdateOrder(ctx context.Context, order model.Order) error
}

// AuctionDB is the full storage surface used by the engine
type AuctionDB interface {
	CatalogStore
	BidLedger
	OrderStore
	// CommitSettlement applies the close of an auction atomically: the listing
	// update (version-checked), the bid flips, the order insert and the
	// reservation of the order's items.
	CommitSettlement(ctx context.Context, commit model.SettlementCommit) (model.Listing, error)
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu             sync.RWMutex
	listings       map[string]model.Listing // key: listingID
	bids           map[string][]model.Bid   // key: auctionID -> value: ledger in insertion order
	bidIndex       map[string]bidLocation   // key: bidID
	userBids       map[string][]string      // key: userID -> value: bidIDs
	orders         map[string]model.Order   // key: orderID
	orderByAuction map[string]string        // key: auctionID -> value: orderID
	seq            int64
}

type bidLocation struct {
	auctionID string
	index     int
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		listings:       make(map[string]model.Listing),
		bids:           make(map[string][]model.Bid),
		bidIndex:       make(map[string]bidLocation),
		userBids:       make(map[string][]string),
		orders:         make(map[string]model.Order),
		orderByAuction: make(map[string]string),
	}
}

// CreateListing stores a new listing with version 1
func (r *MemoryRepo) CreateListing(_ context.Context, listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ListingID == "" {
		return fmt.Errorf("create listing: %w", biddingerrors.ErrInvalidListing)
	}
	if _, ok := r.listings[listing.ListingID]; ok {
		return fmt.Errorf("create listing %s: already exists: %w", listing.ListingID, biddingerrors.ErrInvalidState)
	}
	listing.Version = 1
	if listing.UpdatedAt.IsZero() {
		listing.UpdatedAt = time.Now().UTC()
	}
	r.listings[listing.ListingID] = listing
	return nil
}

// AddListing adds a listing to the repository, replacing any existing one.
// This method is intended for tests and seeding only.
func (r *MemoryRepo) AddListing(listing model.Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if listing.Version == 0 {
		listing.Version = 1
	}
	r.listings[listing.ListingID] = listing
}

// GetListing returns a listing by ID
func (r *MemoryRepo) GetListing(_ context.Context, listingID string) (model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	return listing, nil
}

// ListActiveAuctions returns every listing whose auction is active
func (r *MemoryRepo) ListActiveAuctions(_ context.Context) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []model.Listing
	for _, l := range r.listings {
		if l.Auction.IsAuction && l.Auction.Status == model.AuctionActive {
			active = append(active, l)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Auction.EndTime.Before(active[j].Auction.EndTime) })
	return active, nil
}

// UpdateAuction applies a version-checked update of the auction fields
func (r *MemoryRepo) UpdateAuction(_ context.Context, listing model.Listing, expectedVersion int64) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.checkVersion(listing.ListingID, expectedVersion)
	if err != nil {
		return model.Listing{}, fmt.Errorf("update auction: %w", err)
	}
	return r.storeListing(current, listing), nil
}

// ReleaseInventory returns reserved units of every item to available stock
func (r *MemoryRepo) ReleaseInventory(_ context.Context, items []model.OrderItem) error {
	return r.adjustInventory(items, func(inv *model.Inventory, qty int) { inv.Release(qty) })
}

// FulfillInventory converts reserved units of every item into sold units
func (r *MemoryRepo) FulfillInventory(_ context.Context, items []model.OrderItem) error {
	return r.adjustInventory(items, func(inv *model.Inventory, qty int) { inv.Fulfill(qty) })
}

func (r *MemoryRepo) adjustInventory(items []model.OrderItem, apply func(*model.Inventory, int)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if _, ok := r.listings[item.ListingID]; !ok {
			return fmt.Errorf("adjust inventory for listing %s: %w", item.ListingID, biddingerrors.ErrListingNotFound)
		}
	}
	for _, item := range items {
		l := r.listings[item.ListingID]
		apply(&l.Inventory, item.Quantity)
		r.listings[item.ListingID] = l
	}
	return nil
}

// GetBid returns a single ledger entry
func (r *MemoryRepo) GetBid(_ context.Context, bidID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.bidIndex[bidID]
	if !ok {
		return model.Bid{}, fmt.Errorf("get bid %s: %w", bidID, biddingerrors.ErrBidNotFound)
	}
	return r.bids[loc.auctionID][loc.index], nil
}

// GetBidsByAuction returns all bids for an auction in ledger order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[auctionID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetBidsByUser returns all bids a user has placed, newest first
func (r *MemoryRepo) GetBidsByUser(_ context.Context, userID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.userBids[userID]
	if !ok || len(ids) == 0 {
		return nil, fmt.Errorf("get bids for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	bids := make([]model.Bid, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		loc := r.bidIndex[ids[i]]
		bids = append(bids, r.bids[loc.auctionID][loc.index])
	}
	return bids, nil
}

// GetLeadingBid returns the highest active bid for an auction
func (r *MemoryRepo) GetLeadingBid(_ context.Context, auctionID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		leading model.Bid
		found   bool
	)
	for _, b := range r.bids[auctionID] {
		if b.Status != model.BidActive {
			continue
		}
		if !found || b.Outranks(leading) {
			leading, found = b, true
		}
	}
	if !found {
		return model.Bid{}, fmt.Errorf("get leading bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return leading, nil
}

// CommitBidRound applies a bid round atomically
func (r *MemoryRepo) CommitBidRound(_ context.Context, round model.BidRound) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, err := r.checkVersion(round.Listing.ListingID, round.ExpectedVersion)
	if err != nil {
		return model.Listing{}, fmt.Errorf("commit bid round: %w", err)
	}
	if err := r.checkStatusChanges(listing.ListingID, round.StatusChanges); err != nil {
		return model.Listing{}, fmt.Errorf("commit bid round: %w", err)
	}

	for _, b := range round.NewBids {
		r.appendBid(b)
	}
	r.applyStatusChanges(round.StatusChanges)

	return r.storeListing(listing, round.Listing), nil
}

// CommitSettlement applies the close of an auction atomically
func (r *MemoryRepo) CommitSettlement(_ context.Context, commit model.SettlementCommit) (model.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, err := r.checkVersion(commit.Listing.ListingID, commit.ExpectedVersion)
	if err != nil {
		return model.Listing{}, fmt.Errorf("commit settlement: %w", err)
	}
	if err := r.checkStatusChanges(listing.ListingID, commit.StatusChanges); err != nil {
		return model.Listing{}, fmt.Errorf("commit settlement: %w", err)
	}

	inventory := listing.Inventory
	if commit.Order != nil {
		if _, exists := r.orderByAuction[commit.Order.AuctionID]; exists {
			return model.Listing{}, fmt.Errorf("commit settlement: order already exists for auction %s: %w", commit.Order.AuctionID, biddingerrors.ErrInvalidState)
		}
		for _, item := range commit.Order.Items {
			if item.ListingID != listing.ListingID {
				return model.Listing{}, fmt.Errorf("commit settlement: item listing %s: %w", item.ListingID, biddingerrors.ErrInvalidListing)
			}
			if !inventory.Reserve(item.Quantity) {
				return model.Listing{}, fmt.Errorf("commit settlement: listing %s: %w", item.ListingID, biddingerrors.ErrInsufficientStock)
			}
		}
	}

	r.applyStatusChanges(commit.StatusChanges)
	if commit.Order != nil {
		order := *commit.Order
		order.Items = append([]model.OrderItem(nil), order.Items...)
		r.orders[order.OrderID] = order
		r.orderByAuction[order.AuctionID] = order.OrderID
	}

	listing.Inventory = inventory
	return r.storeListing(listing, commit.Listing), nil
}

// GetOrder returns an order by ID
func (r *MemoryRepo) GetOrder(_ context.Context, orderID string) (model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[orderID]
	if !ok {
		return model.Order{}, fmt.Errorf("get order %s: %w", orderID, biddingerrors.ErrOrderNotFound)
	}
	return order, nil
}

// GetOrderByAuction returns the order created when the auction settled
func (r *MemoryRepo) GetOrderByAuction(_ context.Context, auctionID string) (model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.orderByAuction[auctionID]
	if !ok {
		return model.Order{}, fmt.Errorf("get order for auction %s: %w", auctionID, biddingerrors.ErrOrderNotFound)
	}
	return r.orders[id], nil
}

// UpdateOrder replaces the payment, status and delivery fields of an order
func (r *MemoryRepo) UpdateOrder(_ context.Context, order model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.orders[order.OrderID]
	if !ok {
		return fmt.Errorf("update order %s: %w", order.OrderID, biddingerrors.ErrOrderNotFound)
	}
	existing.Payment = order.Payment
	existing.Status = order.Status
	existing.DeliveredAt = order.DeliveredAt
	r.orders[order.OrderID] = existing
	return nil
}

// checkVersion must be called with r.mu held
func (r *MemoryRepo) checkVersion(listingID string, expected int64) (model.Listing, error) {
	listing, ok := r.listings[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	if listing.Version != expected {
		return model.Listing{}, fmt.Errorf("listing %s at version %d, expected %d: %w", listingID, listing.Version, expected, biddingerrors.ErrStaleListing)
	}
	return listing, nil
}

// checkStatusChanges must be called with r.mu held
func (r *MemoryRepo) checkStatusChanges(auctionID string, changes []model.BidStatusChange) error {
	for _, c := range changes {
		loc, ok := r.bidIndex[c.BidID]
		if !ok || loc.auctionID != auctionID {
			return fmt.Errorf("bid %s: %w", c.BidID, biddingerrors.ErrBidNotFound)
		}
	}
	return nil
}

// appendBid must be called with r.mu held
func (r *MemoryRepo) appendBid(b model.Bid) {
	r.seq++
	b.Sequence = r.seq
	r.bids[b.AuctionID] = append(r.bids[b.AuctionID], b)
	r.bidIndex[b.BidID] = bidLocation{auctionID: b.AuctionID, index: len(r.bids[b.AuctionID]) - 1}
	r.userBids[b.BidderID] = append(r.userBids[b.BidderID], b.BidID)
}

// applyStatusChanges must be called with r.mu held
func (r *MemoryRepo) applyStatusChanges(changes []model.BidStatusChange) {
	for _, c := range changes {
		loc := r.bidIndex[c.BidID]
		b := r.bids[loc.auctionID][loc.index]
		b.Status = c.Status
		if c.OutbidBy != "" {
			b.OutbidBy = c.OutbidBy
		}
		if c.IsWinner {
			b.IsWinner = true
		}
		r.bids[loc.auctionID][loc.index] = b
	}
}

// storeListing copies the mutable sale and auction fields of next onto
// current, bumps the version and stores the result. Inventory counters are
// only changed through the inventory operations. Must be called with r.mu held.
func (r *MemoryRepo) storeListing(current, next model.Listing) model.Listing {
	current.Status = next.Status
	current.Auction = next.Auction
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.listings[current.ListingID] = current
	return current
}
