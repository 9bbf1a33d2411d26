package scheduler

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/cache"
	model "auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Settler closes an auction; closing one that is no longer active is a no-op
type Settler interface {
	Settle(ctx context.Context, auctionID string) (model.Settlement, error)
}

// AuctionLister lists the auctions whose close timers must be armed
type AuctionLister interface {
	ListActiveAuctions(ctx context.Context) ([]model.Listing, error)
}

type timerEntry struct {
	timer *time.Timer
	at    time.Time
	gen   uint64
}

// Scheduler fires Settle at each auction's end time. Timers live in process
// memory, so Sweep re-arms them from storage on boot and periodically. An
// optional idempotency store holds a short close lease per auction so that a
// close firing twice, or on two instances, settles once. The lease expires on
// its own, so a claim left behind by a crashed instance is retried by a later
// sweep.
type Scheduler struct {
	settler Settler
	lister  AuctionLister

	idem          cache.IdempotencyStore
	lease         time.Duration
	sweepEvery    time.Duration
	settleTimeout time.Duration
	now           func() time.Time

	mu     sync.Mutex
	timers map[string]timerEntry
	gen    uint64
	closed bool

	inflight sync.WaitGroup
	loop     sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithIdempotencyStore dedupes close fires through store. Each close holds
// the auction's lease for the given duration; zero means twice the settle
// timeout.
func WithIdempotencyStore(store cache.IdempotencyStore, lease time.Duration) Option {
	return func(s *Scheduler) {
		s.idem = store
		s.lease = lease
	}
}

// WithSweepInterval sets how often Start re-arms timers from storage
func WithSweepInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.sweepEvery = d }
}

// WithSettleTimeout bounds a single timer-driven Settle call
func WithSettleTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.settleTimeout = d }
}

// WithClock overrides time.Now for computing timer delays
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler. Call Start to run the periodic sweep and Stop to
// release the timers.
func New(settler Settler, lister AuctionLister, opts ...Option) *Scheduler {
	s := &Scheduler{
		settler:       settler,
		lister:        lister,
		sweepEvery:    time.Minute,
		settleTimeout: 30 * time.Second,
		now:           time.Now,
		timers:        make(map[string]timerEntry),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.lease <= 0 {
		s.lease = 2 * s.settleTimeout
	}
	return s
}

func closeKey(auctionID string) string {
	return "auction-close:" + auctionID
}

// Schedule arms the close timer of an auction, replacing any earlier one.
// An end time in the past fires immediately.
func (s *Scheduler) Schedule(auctionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	if existing, ok := s.timers[auctionID]; ok {
		if existing.at.Equal(at) {
			return
		}
		existing.timer.Stop()
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	s.gen++
	gen := s.gen
	s.timers[auctionID] = timerEntry{
		timer: time.AfterFunc(delay, func() { s.fire(auctionID, gen) }),
		at:    at,
		gen:   gen,
	}
	utils.Debug("close timer armed", map[string]any{
		"auction_id": auctionID,
		"fires_in":   delay.String(),
	})
}

// Cancel disarms the close timer of an auction, if any
func (s *Scheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[auctionID]; ok {
		existing.timer.Stop()
		delete(s.timers, auctionID)
	}
}

// Pending returns the number of armed timers
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(auctionID string, gen uint64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if e, ok := s.timers[auctionID]; ok && e.gen == gen {
		delete(s.timers, auctionID)
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
	defer cancel()

	if s.idem != nil {
		fresh, err := s.idem.MarkProcessed(ctx, closeKey(auctionID), s.lease)
		switch {
		case err != nil:
			// Settle is itself idempotent, so an unreachable store only costs the dedupe
			utils.Warn("close dedupe unavailable", map[string]any{
				"auction_id": auctionID,
				"error":      err.Error(),
			})
		case !fresh:
			utils.Debug("close lease held elsewhere", map[string]any{"auction_id": auctionID})
			return
		}
	}

	result, err := s.settler.Settle(ctx, auctionID)
	if err != nil && !errors.Is(err, biddingerrors.ErrPaymentFailure) {
		utils.Error("timer close failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		if s.idem != nil {
			if ferr := s.idem.Forget(ctx, closeKey(auctionID)); ferr != nil {
				utils.Warn("failed to clear close dedupe key", map[string]any{
					"auction_id": auctionID,
					"error":      ferr.Error(),
				})
			}
		}
		return
	}

	utils.Info("auction closed by timer", map[string]any{
		"auction_id": auctionID,
		"outcome":    string(result.Outcome),
	})
}

// Sweep arms a close timer for every active auction and returns how many
// were armed. Auctions already past their end time close right away. An
// auction whose close lease is currently held is left to the holder; once the
// lease expires a later sweep picks it up again.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	listings, err := s.lister.ListActiveAuctions(ctx)
	if err != nil {
		return 0, fmt.Errorf("scheduler: failed to list active auctions: %w", err)
	}

	armed := 0
	for _, l := range listings {
		if l.Auction.EndTime.IsZero() || s.leaseHeld(ctx, l.ListingID) {
			continue
		}
		s.Schedule(l.ListingID, l.Auction.EndTime)
		armed++
	}
	return armed, nil
}

func (s *Scheduler) leaseHeld(ctx context.Context, auctionID string) bool {
	if s.idem == nil {
		return false
	}
	held, err := s.idem.IsProcessed(ctx, closeKey(auctionID))
	if err != nil {
		utils.Warn("close lease check failed", map[string]any{
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return false
	}
	return held
}

// Start runs an initial sweep and then re-sweeps every interval until ctx is
// done or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	armed, err := s.Sweep(ctx)
	if err != nil {
		return err
	}
	utils.Info("close timers armed", map[string]any{"count": armed})

	if s.sweepEvery <= 0 {
		return nil
	}
	s.loop.Add(1)
	go func() {
		defer s.loop.Done()
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					utils.Error("close timer sweep failed", map[string]any{"error": err.Error()})
				}
			}
		}
	}()
	return nil
}

// Stop disarms every timer and waits for the sweep loop and any close in
// progress to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for id, e := range s.timers {
			e.timer.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()

		close(s.stop)
		s.loop.Wait()
		s.inflight.Wait()
	})
}
