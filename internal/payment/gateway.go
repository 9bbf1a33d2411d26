package payment

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ChargeRequest asks the gateway to capture Amount from PayerID for OrderRef
type ChargeRequest struct {
	OrderRef string
	PayerID  string
	Amount   decimal.Decimal
	Method   string
}

// Receipt is returned for a captured charge
type Receipt struct {
	TransactionID string
	PaidAt        time.Time
}

// Gateway captures payments. Implementations must be idempotent per OrderRef:
// charging the same order twice returns the first receipt without moving money.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Receipt, error)
}

// GatewayFunc adapts a function to Gateway
type GatewayFunc func(ctx context.Context, req ChargeRequest) (Receipt, error)

// Charge calls f
func (f GatewayFunc) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	return f(ctx, req)
}

// ErrInsufficientFunds is returned when the payer's wallet cannot cover the charge
var ErrInsufficientFunds = fmt.Errorf("insufficient funds: %w", biddingerrors.ErrPaymentDeclined)

type transaction struct {
	receipt Receipt
	payerID string
	amount  decimal.Decimal
}

// WalletGateway charges internal user wallets. Successful charges are
// remembered by order reference so retries never double-charge.
type WalletGateway struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal // key: userID
	charges  map[string]transaction     // key: orderRef
	latency  time.Duration
}

// Option configures a WalletGateway
type Option func(*WalletGateway)

// WithLatency delays every charge by d to mimic a remote gateway
func WithLatency(d time.Duration) Option {
	return func(g *WalletGateway) { g.latency = d }
}

// NewWalletGateway creates a gateway with no wallets
func NewWalletGateway(opts ...Option) *WalletGateway {
	g := &WalletGateway{
		balances: make(map[string]decimal.Decimal),
		charges:  make(map[string]transaction),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Deposit credits amount to the user's wallet and returns the new balance
func (g *WalletGateway) Deposit(userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if userID == "" || amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("deposit: %w", biddingerrors.ErrValidation)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[userID] = g.balances[userID].Add(amount)
	return g.balances[userID], nil
}

// Balance returns the user's wallet balance
func (g *WalletGateway) Balance(userID string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[userID]
}

// Charge withdraws req.Amount from the payer's wallet
func (g *WalletGateway) Charge(ctx context.Context, req ChargeRequest) (Receipt, error) {
	if req.OrderRef == "" || req.PayerID == "" || req.Amount.LessThanOrEqual(decimal.Zero) {
		return Receipt{}, fmt.Errorf("charge: invalid request: %w", biddingerrors.ErrPaymentDeclined)
	}

	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return Receipt{}, timeoutError(ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return Receipt{}, timeoutError(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if tx, ok := g.charges[req.OrderRef]; ok {
		if tx.payerID != req.PayerID || !tx.amount.Equal(req.Amount) {
			return Receipt{}, fmt.Errorf("charge %s: reference reused with different terms: %w", req.OrderRef, biddingerrors.ErrPaymentDeclined)
		}
		return tx.receipt, nil
	}

	balance := g.balances[req.PayerID]
	if balance.LessThan(req.Amount) {
		utils.Warn("payment declined", map[string]any{
			"order_ref": req.OrderRef,
			"payer_id":  req.PayerID,
			"amount":    req.Amount.StringFixed(2),
			"reason":    ErrInsufficientFunds.Error(),
		})
		return Receipt{}, fmt.Errorf("charge %s: %w", req.OrderRef, ErrInsufficientFunds)
	}

	g.balances[req.PayerID] = balance.Sub(req.Amount)
	receipt := Receipt{
		TransactionID: "txn_" + utils.GenerateID(),
		PaidAt:        time.Now().UTC(),
	}
	g.charges[req.OrderRef] = transaction{receipt: receipt, payerID: req.PayerID, amount: req.Amount}
	return receipt, nil
}

func timeoutError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("charge: %w", biddingerrors.ErrPaymentTimeout)
	}
	return fmt.Errorf("charge: %v: %w", err, biddingerrors.ErrPaymentFailure)
}
