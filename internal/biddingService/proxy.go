package bidding

import (
	model "auction-engine/internal/models"
	"sort"

	"github.com/shopspring/decimal"
)

// proxyCandidate is a standing automatic bid able to answer the current leader
type proxyCandidate struct {
	BidderID   string
	Ceiling    decimal.Decimal
	Registered model.Bid // earliest auto bid of the bidder carrying this ceiling
}

// nextProxyBid picks the single proxy response to the current leader.
//
// Each bidder's standing proxy is their most recent auto bid, provided it was
// not cancelled. A proxy qualifies when it does not belong to the leader and
// its ceiling covers the next minimum bid. The highest ceiling wins; equal
// ceilings go to the earliest registration.
func nextProxyBid(listing model.Listing, bids []model.Bid) (proxyCandidate, decimal.Decimal, bool) {
	leader, ok := leadingBid(bids)
	if !ok {
		return proxyCandidate{}, decimal.Zero, false
	}
	next := listing.Auction.MinimumNextBid()

	latest := make(map[string]model.Bid)
	for _, b := range bids {
		if !b.IsAutoBid || !b.MaxAutoBid.Valid {
			continue
		}
		if cur, seen := latest[b.BidderID]; !seen || cur.PlacedBefore(b) {
			latest[b.BidderID] = b
		}
	}

	var candidates []proxyCandidate
	for bidderID, b := range latest {
		if bidderID == leader.BidderID {
			continue
		}
		if b.Status != model.BidActive && b.Status != model.BidOutbid {
			continue
		}
		if b.MaxAutoBid.Decimal.LessThan(next) {
			continue
		}
		candidates = append(candidates, proxyCandidate{
			BidderID:   bidderID,
			Ceiling:    b.MaxAutoBid.Decimal,
			Registered: registration(bids, bidderID, b.MaxAutoBid.Decimal),
		})
	}
	if len(candidates) == 0 {
		return proxyCandidate{}, decimal.Zero, false
	}

	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].Ceiling.Equal(candidates[j].Ceiling) {
			return candidates[i].Ceiling.GreaterThan(candidates[j].Ceiling)
		}
		return candidates[i].Registered.PlacedBefore(candidates[j].Registered)
	})
	return candidates[0], next, true
}

// registration finds the first auto bid of bidderID with the given ceiling
func registration(bids []model.Bid, bidderID string, ceiling decimal.Decimal) model.Bid {
	var (
		first model.Bid
		found bool
	)
	for _, b := range bids {
		if b.BidderID != bidderID || !b.IsAutoBid || !b.MaxAutoBid.Valid || !b.MaxAutoBid.Decimal.Equal(ceiling) {
			continue
		}
		if !found || b.PlacedBefore(first) {
			first, found = b, true
		}
	}
	return first
}
