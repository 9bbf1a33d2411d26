package bidding

import (
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/utils"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// bidRound accumulates one atomic unit of ledger work in memory. Nothing is
// visible to other callers until the round is committed.
type bidRound struct {
	listing  model.Listing
	expected int64
	bids     []model.Bid // snapshot plus bids placed in this round, ledger order
	newBids  map[string]int
	changes  []model.BidStatusChange
	changeAt map[string]int
	notes    []model.Notification
	nextSeq  int64
}

func newBidRound(listing model.Listing, snapshot []model.Bid) *bidRound {
	r := &bidRound{
		listing:  listing,
		expected: listing.Version,
		bids:     append([]model.Bid(nil), snapshot...),
		newBids:  make(map[string]int),
		changeAt: make(map[string]int),
	}
	for _, b := range snapshot {
		if b.Sequence > r.nextSeq {
			r.nextSeq = b.Sequence
		}
	}
	return r
}

// leader returns the highest active bid, earliest placement on ties
func (r *bidRound) leader() (model.Bid, bool) {
	return leadingBid(r.bids)
}

// place appends a new active bid and flips every other active bid to
// outbid, keeping exactly one active bid per auction
func (r *bidRound) place(bidderID string, amount decimal.Decimal, auto bool, ceiling decimal.NullDecimal, now time.Time) model.Bid {
	prev, hadLeader := r.leader()

	r.nextSeq++
	bid := model.Bid{
		BidID:      utils.GenerateID(),
		AuctionID:  r.listing.ListingID,
		BidderID:   bidderID,
		Amount:     amount,
		IsAutoBid:  auto,
		MaxAutoBid: ceiling,
		Status:     model.BidActive,
		Sequence:   r.nextSeq,
		CreatedAt:  now,
	}

	for i := range r.bids {
		if r.bids[i].Status == model.BidActive {
			r.setStatus(i, model.BidOutbid, bidderID, false)
		}
	}
	r.bids = append(r.bids, bid)
	r.newBids[bid.BidID] = len(r.bids) - 1

	a := &r.listing.Auction
	a.CurrentBid = amount
	if a.ReservePrice.Valid && a.MeetsReserve(amount) {
		a.ReserveMet = true
	}

	if hadLeader && prev.BidderID != bidderID {
		r.notes = append(r.notes, notification.New(prev.BidderID, model.EventOutbid, map[string]any{
			"listing_id": r.listing.ListingID,
			"title":      r.listing.Title,
			"amount":     amount.StringFixed(2),
			"your_bid":   prev.Amount.StringFixed(2),
		}))
	}
	r.notes = append(r.notes, notification.New(r.listing.SellerID, model.EventNewBid, map[string]any{
		"listing_id":  r.listing.ListingID,
		"title":       r.listing.Title,
		"bidder_id":   bidderID,
		"amount":      amount.StringFixed(2),
		"is_auto_bid": auto,
	}))
	return bid
}

// cancel flips a stored bid to cancelled
func (r *bidRound) cancel(bidID string) (model.Bid, bool) {
	for i := range r.bids {
		if r.bids[i].BidID == bidID {
			r.setStatus(i, model.BidCancelled, "", false)
			return r.bids[i], true
		}
	}
	return model.Bid{}, false
}

// setStatus updates the in-memory copy and records the change. Bids placed in
// this round are inserted with their final status, so only stored bids
// produce a status change.
func (r *bidRound) setStatus(i int, status model.BidStatus, outbidBy string, winner bool) {
	b := &r.bids[i]
	b.Status = status
	if outbidBy != "" {
		b.OutbidBy = outbidBy
	}
	if winner {
		b.IsWinner = true
	}
	if _, isNew := r.newBids[b.BidID]; isNew {
		return
	}

	change := model.BidStatusChange{BidID: b.BidID, Status: status, OutbidBy: outbidBy, IsWinner: winner}
	if idx, ok := r.changeAt[b.BidID]; ok {
		r.changes[idx] = change
		return
	}
	r.changeAt[b.BidID] = len(r.changes)
	r.changes = append(r.changes, change)
}

// commitRound returns the repository view of the round
func (r *bidRound) commitRound() model.BidRound {
	placed := make([]model.Bid, len(r.newBids))
	order := make([]int, 0, len(r.newBids))
	for _, idx := range r.newBids {
		order = append(order, idx)
	}
	sort.Ints(order)
	for i, idx := range order {
		placed[i] = r.bids[idx]
	}

	return model.BidRound{
		Listing:         r.listing,
		ExpectedVersion: r.expected,
		NewBids:         placed,
		StatusChanges:   append([]model.BidStatusChange(nil), r.changes...),
	}
}

func leadingBid(bids []model.Bid) (model.Bid, bool) {
	var (
		leading model.Bid
		found   bool
	)
	for _, b := range bids {
		if b.Status != model.BidActive {
			continue
		}
		if !found || b.Outranks(leading) {
			leading, found = b, true
		}
	}
	return leading, found
}
