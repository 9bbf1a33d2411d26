package bidding

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/repository"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// Random sequences of manual and automatic bids keep the ledger consistent
func TestPlaceBid_LedgerProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		repo := repository.NewMemoryRepo()
		repo.AddListing(activeListing("a1", "10", "1"))
		f := &fixture{repo: repo, notes: notification.NewRecorder(), clockNow: testNow}
		f.svc = NewBiddingService(repo,
			WithNotifier(f.notes),
			WithClock(func() time.Time { return f.clockNow }),
		)

		bidders := []string{"u1", "u2", "u3", "u4"}
		current := d("10")
		steps := rapid.IntRange(1, 25).Draw(rt, "steps")

		for i := 0; i < steps; i++ {
			listing, err := f.svc.GetAuction(ctx, "a1")
			require.NoError(rt, err)
			minimum := listing.Auction.MinimumNextBid()

			bidder := rapid.SampledFrom(bidders).Draw(rt, "bidder")
			offset := rapid.IntRange(-3, 10).Draw(rt, "offset")
			amount := minimum.Add(decimal.NewFromInt(int64(offset)))
			if !amount.IsPositive() {
				amount = decimal.NewFromInt(1)
			}

			req := PlaceBidRequest{AuctionID: "a1", BidderID: bidder, Amount: amount}
			if rapid.Bool().Draw(rt, "auto") {
				headroom := rapid.IntRange(0, 20).Draw(rt, "headroom")
				req.IsAutoBid = true
				req.MaxAutoBid = decimal.NullDecimal{Decimal: amount.Add(decimal.NewFromInt(int64(headroom))), Valid: true}
			}

			_, err = f.svc.PlaceBid(ctx, req)
			if amount.LessThan(minimum) {
				require.Error(rt, err)
				require.True(rt, errors.Is(err, biddingerrors.ErrBidTooLow), "unexpected error %v", err)
				var tooLow *biddingerrors.BidTooLowError
				require.True(rt, errors.As(err, &tooLow))
				require.True(rt, tooLow.Minimum.Equal(minimum))
			} else {
				require.NoError(rt, err)
			}

			if rapid.Bool().Draw(rt, "resolve") {
				_, err := f.svc.ResolveAutoBids(ctx, "a1")
				require.NoError(rt, err)
			}

			after, err := f.svc.GetAuction(ctx, "a1")
			require.NoError(rt, err)
			require.True(rt, after.Auction.CurrentBid.GreaterThanOrEqual(current),
				"current bid went from %s to %s", current, after.Auction.CurrentBid)
			current = after.Auction.CurrentBid

			if _, err := repo.GetBidsByAuction(ctx, "a1"); err == nil {
				f.requireSingleLeader(rt, "a1")
			}
		}

		bids, err := repo.GetBidsByAuction(ctx, "a1")
		if errors.Is(err, biddingerrors.ErrNoBids) {
			return
		}
		require.NoError(rt, err)
		for _, b := range bids {
			if b.IsAutoBid {
				require.True(rt, b.MaxAutoBid.Valid)
				require.True(rt, b.Amount.LessThanOrEqual(b.MaxAutoBid.Decimal),
					"auto bid %s exceeds ceiling %s", b.Amount, b.MaxAutoBid.Decimal)
			}
		}
		requireSequenceOrder(rt, bids)
	})
}

func requireSequenceOrder(t require.TestingT, bids []model.Bid) {
	seen := make(map[int64]bool, len(bids))
	for _, b := range bids {
		require.False(t, seen[b.Sequence], "duplicate sequence %d", b.Sequence)
		seen[b.Sequence] = true
	}
}
