package settlement

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/locking"
	model "auction-engine/internal/models"
	"auction-engine/internal/notification"
	"auction-engine/internal/payment"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPaymentMethod is recorded on orders created from won auctions
const DefaultPaymentMethod = "card"

// Coordinator closes auctions. The close itself (winner selection, ledger
// flips, order creation and stock reservation) runs under the auction lock;
// the payment capture runs after the lock is released.
type Coordinator struct {
	repo           repository.AuctionDB
	gateway        payment.Gateway
	locks          *locking.KeyedMutex
	notifier       notification.Port
	now            func() time.Time
	paymentTimeout time.Duration
	writeTimeout   time.Duration
	paymentMethod  string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLocks shares the per-auction locks with bidding and lifecycle
func WithLocks(locks *locking.KeyedMutex) Option {
	return func(c *Coordinator) { c.locks = locks }
}

// WithNotifier sets where settlement notifications are sent
func WithNotifier(n notification.Port) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithPaymentTimeout bounds each Charge call. Zero disables the bound.
func WithPaymentTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.paymentTimeout = d }
}

// WithWriteTimeout bounds the order and stock writes that follow a charge
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithPaymentMethod sets the method recorded on new orders
func WithPaymentMethod(method string) Option {
	return func(c *Coordinator) {
		if method != "" {
			c.paymentMethod = method
		}
	}
}

// NewCoordinator creates a settlement coordinator
func NewCoordinator(repo repository.AuctionDB, gateway payment.Gateway, opts ...Option) *Coordinator {
	c := &Coordinator{
		repo:           repo,
		gateway:        gateway,
		locks:          locking.NewKeyedMutex(),
		notifier:       notification.LogNotifier{},
		now:            func() time.Time { return time.Now().UTC() },
		paymentTimeout: 10 * time.Second,
		writeTimeout:   5 * time.Second,
		paymentMethod:  DefaultPaymentMethod,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// closing is what the locked part of Settle decided
type closing struct {
	settlement model.Settlement
	listing    model.Listing
	bids       []model.Bid
	notes      []model.Notification
}

// Settle ends an active auction and settles it. Calling Settle on an auction
// that is no longer active does nothing and reports OutcomeSkipped, so
// duplicate timer fires are harmless. When the payment fails the returned
// Settlement still describes the failed order alongside the error.
func (c *Coordinator) Settle(ctx context.Context, auctionID string) (model.Settlement, error) {
	if auctionID == "" {
		return model.Settlement{}, fmt.Errorf("settlement: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	closed, err := c.closeAuction(ctx, auctionID)
	if err != nil {
		return model.Settlement{}, err
	}
	c.dispatch(ctx, closed.notes)

	s := closed.settlement
	if s.Outcome != model.OutcomeSold {
		utils.Info("auction settled", map[string]any{
			"auction_id": auctionID,
			"outcome":    string(s.Outcome),
		})
		return s, nil
	}
	return c.capture(ctx, closed)
}

func (c *Coordinator) closeAuction(ctx context.Context, auctionID string) (closing, error) {
	unlock := c.locks.Lock(auctionID)
	defer unlock()

	listing, err := c.repo.GetListing(ctx, auctionID)
	if err != nil {
		if errors.Is(err, biddingerrors.ErrListingNotFound) {
			return closing{}, fmt.Errorf("settlement: %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
		}
		return closing{}, fmt.Errorf("settlement: failed to get auction %s: %w", auctionID, err)
	}
	if !listing.Auction.IsAuction {
		return closing{}, fmt.Errorf("settlement: %s: %w", auctionID, biddingerrors.ErrNotAuction)
	}
	if listing.Auction.Status != model.AuctionActive {
		utils.Debug("settle skipped, auction not active", map[string]any{
			"auction_id": auctionID,
			"status":     string(listing.Auction.Status),
		})
		return closing{settlement: model.Settlement{AuctionID: auctionID, Outcome: model.OutcomeSkipped}}, nil
	}

	bids, err := c.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		return closing{}, fmt.Errorf("settlement: failed to load bids for auction %s: %w", auctionID, err)
	}

	winner, found := winningBid(bids)
	switch {
	case !found:
		return c.closeUnsold(ctx, listing, bids, model.OutcomeNoBids)
	case !listing.Auction.MeetsReserve(winner.Amount):
		return c.closeUnsold(ctx, listing, bids, model.OutcomeReserveNotMet)
	default:
		return c.closeSold(ctx, listing, bids, winner)
	}
}

// closeUnsold ends the auction without a winner and returns the listing to sale
func (c *Coordinator) closeUnsold(ctx context.Context, listing model.Listing, bids []model.Bid, outcome model.SettlementOutcome) (closing, error) {
	next := listing
	next.Status = model.ListingActive
	next.Auction.Status = model.AuctionEnded

	committed, err := c.repo.CommitSettlement(ctx, model.SettlementCommit{
		Listing:         next,
		ExpectedVersion: listing.Version,
	})
	if err != nil {
		return closing{}, fmt.Errorf("settlement: failed to end auction %s: %w", listing.ListingID, err)
	}

	payload := map[string]any{
		"listing_id": listing.ListingID,
		"title":      listing.Title,
		"reason":     string(outcome),
	}
	notes := []model.Notification{notification.New(listing.SellerID, model.EventAuctionEndedNoWinner, payload)}
	if outcome == model.OutcomeReserveNotMet {
		for _, bidderID := range bidders(bids) {
			notes = append(notes, notification.New(bidderID, model.EventAuctionEndedNoWinner, payload))
		}
	}

	return closing{
		settlement: model.Settlement{AuctionID: listing.ListingID, Outcome: outcome},
		listing:    committed,
		bids:       bids,
		notes:      notes,
	}, nil
}

// closeSold ends the auction with a winner and creates the pending order.
// The order insert and the stock reservation commit with the auction end.
func (c *Coordinator) closeSold(ctx context.Context, listing model.Listing, bids []model.Bid, winner model.Bid) (closing, error) {
	now := c.now()

	next := listing
	next.Status = model.ListingSold
	next.Auction.Status = model.AuctionEnded
	next.Auction.WinnerID = winner.BidderID

	order := model.Order{
		OrderID:     utils.GenerateID(),
		OrderNumber: utils.GenerateOrderNumber(now),
		AuctionID:   listing.ListingID,
		BuyerID:     winner.BidderID,
		SellerID:    listing.SellerID,
		Items: []model.OrderItem{{
			ListingID: listing.ListingID,
			Quantity:  1,
			Price:     winner.Amount,
		}},
		TotalAmount: winner.Amount,
		Payment: model.Payment{
			Method: c.paymentMethod,
			Status: model.PaymentPending,
		},
		Status:    model.OrderPending,
		CreatedAt: now,
	}

	committed, err := c.repo.CommitSettlement(ctx, model.SettlementCommit{
		Listing:         next,
		ExpectedVersion: listing.Version,
		StatusChanges:   []model.BidStatusChange{{BidID: winner.BidID, Status: model.BidWon, IsWinner: true}},
		Order:           &order,
	})
	if err != nil {
		return closing{}, fmt.Errorf("settlement: failed to close auction %s: %w", listing.ListingID, err)
	}

	winner.Status = model.BidWon
	winner.IsWinner = true
	return closing{
		settlement: model.Settlement{
			AuctionID:  listing.ListingID,
			Outcome:    model.OutcomeSold,
			WinningBid: &winner,
			Order:      &order,
		},
		listing: committed,
		bids:    bids,
	}, nil
}

// capture charges the winner for a freshly created order. A failed or timed
// out charge marks the order failed and releases the reserved stock.
func (c *Coordinator) capture(ctx context.Context, closed closing) (model.Settlement, error) {
	s := closed.settlement
	order := *s.Order
	winner := *s.WinningBid
	listing := closed.listing

	chargeCtx := ctx
	if c.paymentTimeout > 0 {
		var cancel context.CancelFunc
		chargeCtx, cancel = context.WithTimeout(ctx, c.paymentTimeout)
		defer cancel()
	}
	receipt, chargeErr := c.gateway.Charge(chargeCtx, payment.ChargeRequest{
		OrderRef: order.OrderID,
		PayerID:  order.BuyerID,
		Amount:   order.TotalAmount,
		Method:   order.Payment.Method,
	})

	// the auction has ended either way, so the outcome of the charge must be
	// recorded even when the caller is gone
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.writeTimeout)
	defer cancel()

	if chargeErr != nil {
		switch {
		case errors.Is(chargeErr, biddingerrors.ErrPaymentFailure):
		case errors.Is(chargeErr, context.DeadlineExceeded):
			chargeErr = fmt.Errorf("%w: %w", biddingerrors.ErrPaymentTimeout, chargeErr)
		default:
			chargeErr = fmt.Errorf("%w: %w", biddingerrors.ErrPaymentDeclined, chargeErr)
		}
		return c.failPayment(ctx, s, listing, chargeErr)
	}

	paidAt := receipt.PaidAt
	order.Payment.Status = model.PaymentCompleted
	order.Payment.TransactionID = receipt.TransactionID
	order.Payment.PaidAt = &paidAt
	order.Status = model.OrderConfirmed
	if err := c.repo.UpdateOrder(ctx, order); err != nil {
		// the money moved; the gateway returns the same receipt on a retry
		return model.Settlement{}, fmt.Errorf("settlement: failed to record payment for order %s: %w", order.OrderID, err)
	}
	s.Order = &order

	amount := winner.Amount.StringFixed(2)
	notes := []model.Notification{
		notification.New(winner.BidderID, model.EventAuctionWon, map[string]any{
			"listing_id": listing.ListingID,
			"title":      listing.Title,
			"amount":     amount,
			"order_id":   order.OrderID,
		}),
		notification.New(winner.BidderID, model.EventOrderConfirmed, map[string]any{
			"order_id":     order.OrderID,
			"order_number": order.OrderNumber,
			"amount":       amount,
		}),
		notification.New(listing.SellerID, model.EventAuctionSold, map[string]any{
			"listing_id": listing.ListingID,
			"title":      listing.Title,
			"amount":     amount,
			"buyer_id":   winner.BidderID,
			"order_id":   order.OrderID,
		}),
	}
	for _, bidderID := range bidders(closed.bids) {
		if bidderID == winner.BidderID {
			continue
		}
		notes = append(notes, notification.New(bidderID, model.EventAuctionLost, map[string]any{
			"listing_id":  listing.ListingID,
			"title":       listing.Title,
			"winning_bid": amount,
		}))
	}
	c.dispatch(ctx, notes)

	utils.Info("auction settled", map[string]any{
		"auction_id":     listing.ListingID,
		"outcome":        string(s.Outcome),
		"winner_id":      winner.BidderID,
		"amount":         amount,
		"order_id":       order.OrderID,
		"transaction_id": order.Payment.TransactionID,
	})
	return s, nil
}

func (c *Coordinator) failPayment(ctx context.Context, s model.Settlement, listing model.Listing, chargeErr error) (model.Settlement, error) {
	order := *s.Order
	order.Payment.Status = model.PaymentFailed
	order.Payment.FailureReason = chargeErr.Error()

	if err := c.repo.UpdateOrder(ctx, order); err != nil {
		utils.Error("failed to record payment failure", map[string]any{
			"order_id": order.OrderID,
			"error":    err.Error(),
		})
	}
	if err := c.repo.ReleaseInventory(ctx, order.Items); err != nil {
		utils.Error("failed to release reserved stock", map[string]any{
			"order_id":   order.OrderID,
			"listing_id": listing.ListingID,
			"error":      err.Error(),
		})
	}

	payload := map[string]any{
		"listing_id": listing.ListingID,
		"title":      listing.Title,
		"amount":     order.TotalAmount.StringFixed(2),
		"order_id":   order.OrderID,
	}
	c.dispatch(ctx, []model.Notification{
		notification.New(order.BuyerID, model.EventPaymentFailed, payload),
		notification.New(order.SellerID, model.EventPaymentFailed, payload),
	})

	utils.Warn("auction payment failed", map[string]any{
		"auction_id": listing.ListingID,
		"order_id":   order.OrderID,
		"buyer_id":   order.BuyerID,
		"error":      chargeErr.Error(),
	})

	s.Outcome = model.OutcomePaymentFailed
	s.Order = &order
	return s, fmt.Errorf("settlement: payment for order %s: %w", order.OrderID, chargeErr)
}

// MarkDelivered records delivery of a paid order and converts its reserved
// stock into sold stock. Marking an already delivered order is a no-op.
func (c *Coordinator) MarkDelivered(ctx context.Context, orderID string) (model.Order, error) {
	if orderID == "" {
		return model.Order{}, fmt.Errorf("settlement: %w - empty order ID", biddingerrors.ErrValidation)
	}

	order, err := c.repo.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to get order %s: %w", orderID, err)
	}

	unlock := c.locks.Lock(order.AuctionID)
	defer unlock()

	// re-read under the lock so that two deliveries cannot both fulfil
	order, err = c.repo.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to get order %s: %w", orderID, err)
	}
	if order.Status == model.OrderDelivered {
		return order, nil
	}
	if order.Payment.Status != model.PaymentCompleted {
		return model.Order{}, fmt.Errorf("settlement: order %s payment is %s: %w", orderID, order.Payment.Status, biddingerrors.ErrOrderNotPaid)
	}

	if err := c.repo.FulfillInventory(ctx, order.Items); err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to fulfil order %s: %w", orderID, err)
	}
	deliveredAt := c.now()
	order.Status = model.OrderDelivered
	order.DeliveredAt = &deliveredAt
	if err := c.repo.UpdateOrder(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to update order %s: %w", orderID, err)
	}

	utils.Info("order delivered", map[string]any{
		"order_id":   order.OrderID,
		"auction_id": order.AuctionID,
	})
	return order, nil
}

// GetOrder returns an order by ID
func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	order, err := c.repo.GetOrder(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to get order %s: %w", orderID, err)
	}
	return order, nil
}

// GetOrderByAuction returns the order created when the auction sold
func (c *Coordinator) GetOrderByAuction(ctx context.Context, auctionID string) (model.Order, error) {
	order, err := c.repo.GetOrderByAuction(ctx, auctionID)
	if err != nil {
		return model.Order{}, fmt.Errorf("settlement: failed to get order for auction %s: %w", auctionID, err)
	}
	return order, nil
}

func (c *Coordinator) dispatch(ctx context.Context, notes []model.Notification) {
	for _, n := range notes {
		notification.Send(ctx, c.notifier, n)
	}
}

// winningBid is the highest active bid, earliest placement on ties
func winningBid(bids []model.Bid) (model.Bid, bool) {
	var (
		winner model.Bid
		found  bool
	)
	for _, b := range bids {
		if b.Status != model.BidActive {
			continue
		}
		if !found || b.Outranks(winner) {
			winner, found = b, true
		}
	}
	return winner, found
}

// bidders lists every distinct bidder in ledger order. A bidder whose bids
// were all cancelled has left the auction and is not listed.
func bidders(bids []model.Bid) []string {
	seen := make(map[string]bool, len(bids))
	var ids []string
	for _, b := range bids {
		if b.Status == model.BidCancelled || seen[b.BidderID] {
			continue
		}
		seen[b.BidderID] = true
		ids = append(ids, b.BidderID)
	}
	return ids
}
