package bidding

import (
	"auction-engine/internal/locking"
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/repository"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSeller = "seller-1"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ceiling(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d(s), Valid: true}
}

func requireAmount(t require.TestingT, want string, got decimal.Decimal) {
	require.True(t, d(want).Equal(got), "expected amount %s, got %s", want, got)
}

// activeListing returns an auction that started an hour ago and ends in an hour
func activeListing(id, startingBid, increment string) model.Listing {
	return model.Listing{
		ListingID: id,
		SellerID:  testSeller,
		Title:     "Vintage camera " + id,
		Price:     d(startingBid),
		Status:    model.ListingActive,
		Inventory: model.Inventory{TotalQuantity: 1},
		Auction: model.Auction{
			IsAuction:    true,
			Status:       model.AuctionActive,
			StartingBid:  d(startingBid),
			CurrentBid:   d(startingBid),
			BidIncrement: d(increment),
			Duration:     120,
			StartTime:    testNow.Add(-time.Hour),
			EndTime:      testNow.Add(time.Hour),
		},
		Version: 1,
	}
}

type fixture struct {
	repo     *repository.MemoryRepo
	notes    *notification.Recorder
	svc      *BiddingService
	clockNow time.Time
}

func newFixture(t *testing.T, listings ...model.Listing) *fixture {
	t.Helper()

	f := &fixture{
		repo:     repository.NewMemoryRepo(),
		notes:    notification.NewRecorder(),
		clockNow: testNow,
	}
	for _, l := range listings {
		f.repo.AddListing(l)
	}
	f.svc = NewBiddingService(f.repo,
		WithLocks(locking.NewKeyedMutex()),
		WithNotifier(f.notes),
		WithClock(func() time.Time { return f.clockNow }),
	)
	return f
}

func (f *fixture) bid(t *testing.T, auctionID, bidderID, amount string) model.Bid {
	t.Helper()
	b, err := f.svc.PlaceBid(context.Background(), PlaceBidRequest{AuctionID: auctionID, BidderID: bidderID, Amount: d(amount)})
	require.NoError(t, err)
	return b
}

func (f *fixture) autoBid(t *testing.T, auctionID, bidderID, amount, max string) model.Bid {
	t.Helper()
	b, err := f.svc.PlaceBid(context.Background(), PlaceBidRequest{
		AuctionID:  auctionID,
		BidderID:   bidderID,
		Amount:     d(amount),
		IsAutoBid:  true,
		MaxAutoBid: ceiling(max),
	})
	require.NoError(t, err)
	return b
}

// requireSingleLeader checks that exactly one bid is active and that it
// carries the auction's current bid
func (f *fixture) requireSingleLeader(t require.TestingT, auctionID string) model.Bid {
	ctx := context.Background()
	listing, err := f.repo.GetListing(ctx, auctionID)
	require.NoError(t, err)
	bids, err := f.repo.GetBidsByAuction(ctx, auctionID)
	require.NoError(t, err)

	var active []model.Bid
	for _, b := range bids {
		if b.Status == model.BidActive {
			active = append(active, b)
		}
	}
	require.Len(t, active, 1, "exactly one active bid expected")
	requireAmount(t, active[0].Amount.String(), listing.Auction.CurrentBid)
	return active[0]
}
