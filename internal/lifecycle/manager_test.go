package lifecycle

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/locking"
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/payment"
	"auction-engine/internal/repository"
	"auction-engine/internal/settlement"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSeller = "seller-1"

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type recordingTimer struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
	cancelled []string
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{scheduled: make(map[string]time.Time)}
}

func (r *recordingTimer) Schedule(auctionID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[auctionID] = at
}

func (r *recordingTimer) Cancel(auctionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scheduled, auctionID)
	r.cancelled = append(r.cancelled, auctionID)
}

type fixture struct {
	repo    *repository.MemoryRepo
	wallet  *payment.WalletGateway
	notes   *notification.Recorder
	timer   *recordingTimer
	bidding *bidding.BiddingService
	manager *Manager
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:   repository.NewMemoryRepo(),
		wallet: payment.NewWalletGateway(),
		notes:  notification.NewRecorder(),
		timer:  newRecordingTimer(),
		now:    testNow,
	}
	clock := func() time.Time { return f.now }
	locks := locking.NewKeyedMutex()

	f.bidding = bidding.NewBiddingService(f.repo,
		bidding.WithLocks(locks),
		bidding.WithNotifier(f.notes),
		bidding.WithClock(clock),
	)
	coord := settlement.NewCoordinator(f.repo, f.wallet,
		settlement.WithLocks(locks),
		settlement.WithNotifier(f.notes),
		settlement.WithClock(clock),
	)
	f.manager = NewManager(f.repo, coord,
		WithLocks(locks),
		WithTimer(f.timer),
		WithNotifier(f.notes),
		WithClock(clock),
		WithDefaultIncrement(d("5")),
	)
	return f
}

func (f *fixture) createAndStart(t *testing.T, id string) model.Listing {
	t.Helper()
	ctx := context.Background()
	_, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{
		ListingID:       id,
		SellerID:        testSeller,
		Title:           "Film camera",
		StartingBid:     d("50"),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	started, err := f.manager.StartAuction(ctx, id, testSeller, 0)
	require.NoError(t, err)
	return started
}

func (f *fixture) bid(t *testing.T, auctionID, bidderID, amount string) {
	t.Helper()
	_, err := f.bidding.PlaceBid(context.Background(), bidding.PlaceBidRequest{AuctionID: auctionID, BidderID: bidderID, Amount: d(amount)})
	require.NoError(t, err)
}

func TestCreateAuction(t *testing.T) {
	t.Parallel()

	valid := CreateAuctionRequest{
		SellerID:        testSeller,
		Title:           "Film camera",
		StartingBid:     d("50"),
		DurationMinutes: 60,
	}

	tests := []struct {
		name          string
		mutate        func(r *CreateAuctionRequest)
		expectedError error
	}{
		{name: "valid", mutate: func(*CreateAuctionRequest) {}},
		{name: "missing_seller", mutate: func(r *CreateAuctionRequest) { r.SellerID = "" }, expectedError: biddingerrors.ErrInvalidListing},
		{name: "zero_starting_bid", mutate: func(r *CreateAuctionRequest) { r.StartingBid = decimal.Zero }, expectedError: biddingerrors.ErrInvalidListing},
		{name: "negative_increment", mutate: func(r *CreateAuctionRequest) { r.BidIncrement = d("-1") }, expectedError: biddingerrors.ErrInvalidListing},
		{name: "negative_quantity", mutate: func(r *CreateAuctionRequest) { r.Quantity = -1 }, expectedError: biddingerrors.ErrInvalidListing},
		{name: "negative_duration", mutate: func(r *CreateAuctionRequest) { r.DurationMinutes = -5 }, expectedError: biddingerrors.ErrInvalidDuration},
		{
			name: "reserve_below_starting_bid",
			mutate: func(r *CreateAuctionRequest) {
				r.ReservePrice = decimal.NullDecimal{Decimal: d("40"), Valid: true}
			},
			expectedError: biddingerrors.ErrReserveMisconfig,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			req := valid
			tc.mutate(&req)
			listing, err := f.manager.CreateAuction(context.Background(), req)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)
				require.ErrorIs(t, err, biddingerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, listing.ListingID)
			require.Equal(t, model.AuctionScheduled, listing.Auction.Status)
			require.True(t, d("5").Equal(listing.Auction.BidIncrement))
			require.Equal(t, 1, listing.Inventory.TotalQuantity)

			stored, err := f.repo.GetListing(context.Background(), listing.ListingID)
			require.NoError(t, err)
			require.Equal(t, model.AuctionScheduled, stored.Auction.Status)
		})
	}
}

func TestStartAuction(t *testing.T) {
	t.Parallel()

	t.Run("starts_and_arms_timer", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		started := f.createAndStart(t, "a1")
		require.Equal(t, model.AuctionActive, started.Auction.Status)
		require.True(t, started.Auction.StartTime.Equal(testNow))
		require.True(t, started.Auction.EndTime.Equal(testNow.Add(time.Hour)))
		require.True(t, d("50").Equal(started.Auction.CurrentBid))
		require.Equal(t, testNow.Add(time.Hour), f.timer.scheduled["a1"])

		// bidding opens at starting bid plus one increment
		_, err := f.bidding.PlaceBid(context.Background(), bidding.PlaceBidRequest{AuctionID: "a1", BidderID: "alice", Amount: d("54")})
		require.ErrorIs(t, err, biddingerrors.ErrBidTooLow)
		f.bid(t, "a1", "alice", "55")
	})

	t.Run("explicit_duration_overrides_listing", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.manager.CreateAuction(context.Background(), CreateAuctionRequest{
			ListingID: "a1", SellerID: testSeller, StartingBid: d("10"), DurationMinutes: 60,
		})
		require.NoError(t, err)

		started, err := f.manager.StartAuction(context.Background(), "a1", testSeller, 15)
		require.NoError(t, err)
		require.Equal(t, 15, started.Auction.Duration)
		require.True(t, started.Auction.EndTime.Equal(testNow.Add(15*time.Minute)))
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		ctx := context.Background()

		_, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{ListingID: "nodur", SellerID: testSeller, StartingBid: d("10")})
		require.NoError(t, err)
		_, err = f.manager.StartAuction(ctx, "nodur", testSeller, 0)
		require.ErrorIs(t, err, biddingerrors.ErrInvalidDuration)

		f.createAndStart(t, "a1")
		_, err = f.manager.StartAuction(ctx, "a1", testSeller, 30)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotScheduled)

		_, err = f.manager.StartAuction(ctx, "nodur", "someone-else", 30)
		require.ErrorIs(t, err, biddingerrors.ErrForbidden)

		_, err = f.manager.StartAuction(ctx, "missing", testSeller, 30)
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})
}

func TestCancelAuction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.createAndStart(t, "a1")
	f.bid(t, "a1", "alice", "55")
	f.bid(t, "a1", "bob", "60")

	_, err := f.manager.CancelAuction(ctx, "a1", "alice")
	require.ErrorIs(t, err, biddingerrors.ErrNotSeller)

	cancelled, err := f.manager.CancelAuction(ctx, "a1", testSeller)
	require.NoError(t, err)
	require.Equal(t, model.AuctionCancelled, cancelled.Auction.Status)
	require.Equal(t, model.ListingActive, cancelled.Status)
	require.Contains(t, f.timer.cancelled, "a1")

	bids, err := f.repo.GetBidsByAuction(ctx, "a1")
	require.NoError(t, err)
	for _, b := range bids {
		require.Equal(t, model.BidCancelled, b.Status, b.BidID)
	}
	require.Len(t, f.notes.For("alice", model.EventAuctionCancelled), 1)
	require.Len(t, f.notes.For("bob", model.EventAuctionCancelled), 1)

	_, err = f.bidding.PlaceBid(ctx, bidding.PlaceBidRequest{AuctionID: "a1", BidderID: "carol", Amount: d("100")})
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)

	_, err = f.manager.CancelAuction(ctx, "a1", testSeller)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionClosed)

	// a cancelled auction is never settled
	s, err := f.manager.CloseAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeSkipped, s.Outcome)
}

func TestCancelAuction_Scheduled(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.CreateAuction(ctx, CreateAuctionRequest{ListingID: "a1", SellerID: testSeller, StartingBid: d("10"), DurationMinutes: 5})
	require.NoError(t, err)

	cancelled, err := f.manager.CancelAuction(ctx, "a1", testSeller)
	require.NoError(t, err)
	require.Equal(t, model.AuctionCancelled, cancelled.Auction.Status)

	_, err = f.manager.StartAuction(ctx, "a1", testSeller, 5)
	require.ErrorIs(t, err, biddingerrors.ErrAuctionNotScheduled)
}

func TestCloseAuction_FullFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.wallet.Deposit("bob", d("500"))
	require.NoError(t, err)

	f.createAndStart(t, "a1")
	f.bid(t, "a1", "alice", "55")
	f.bid(t, "a1", "bob", "60")

	f.now = testNow.Add(time.Hour)
	s, err := f.manager.CloseAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeSold, s.Outcome)
	require.Equal(t, "bob", s.Order.BuyerID)
	require.Contains(t, f.timer.cancelled, "a1")

	again, err := f.manager.CloseAuction(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, model.OutcomeSkipped, again.Outcome)
	require.True(t, d("440").Equal(f.wallet.Balance("bob")))
}

func TestStartAuction_ConflictIsReported(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	repo := repository.NewMockAuctionDB(ctrl)

	scheduled := model.Listing{
		ListingID: "a1",
		SellerID:  testSeller,
		Auction: model.Auction{
			IsAuction:    true,
			Status:       model.AuctionScheduled,
			StartingBid:  d("10"),
			BidIncrement: d("1"),
			Duration:     30,
		},
		Version: 3,
	}
	repo.EXPECT().GetListing(gomock.Any(), "a1").Return(scheduled, nil)
	repo.EXPECT().UpdateAuction(gomock.Any(), gomock.Any(), int64(3)).Return(model.Listing{}, biddingerrors.ErrStaleListing)

	timer := newRecordingTimer()
	m := NewManager(repo, nil, WithTimer(timer), WithClock(func() time.Time { return testNow }))

	_, err := m.StartAuction(context.Background(), "a1", testSeller, 0)
	require.ErrorIs(t, err, biddingerrors.ErrConcurrencyConflict)
	require.Empty(t, timer.scheduled)
}
