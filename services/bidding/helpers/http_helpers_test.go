package helpers

import (
	"auction-engine/internal/biddingerrors"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"bid_too_low_with_minimum", fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: decimal.NewFromInt(105)}), http.StatusConflict, "bid amount too low, minimum is 105.00"},
		{"bid_too_low", biddingerrors.ErrBidTooLow, http.StatusConflict, "bid amount too low"},
		{"no_bids", biddingerrors.ErrNoBids, http.StatusOK, "no bids found for auction"},
		{"user_no_bids", biddingerrors.ErrUserNoBids, http.StatusOK, "no bids found for user"},
		{"auction_not_found", fmt.Errorf("lifecycle: a1: %w", biddingerrors.ErrAuctionNotFound), http.StatusNotFound, "auction not found"},
		{"bid_not_found", biddingerrors.ErrBidNotFound, http.StatusNotFound, "bid not found"},
		{"order_not_found", biddingerrors.ErrOrderNotFound, http.StatusNotFound, "order not found"},
		{"invalid_bid", biddingerrors.ErrInvalidBid, http.StatusBadRequest, "invalid bid details"},
		{"seller_bid", biddingerrors.ErrSellerBid, http.StatusBadRequest, "invalid request"},
		{"not_owner", biddingerrors.ErrNotBidOwner, http.StatusForbidden, "operation not permitted"},
		{"stale", biddingerrors.ErrStaleListing, http.StatusConflict, "auction was modified concurrently, retry"},
		{"closed", biddingerrors.ErrAuctionClosed, http.StatusConflict, "auction has ended"},
		{"not_active", biddingerrors.ErrAuctionNotActive, http.StatusConflict, "auction is not active"},
		{"leading_bid", biddingerrors.ErrLeadingBid, http.StatusConflict, "operation not allowed in current state"},
		{"payment", biddingerrors.ErrPaymentTimeout, http.StatusPaymentRequired, "payment failed"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			status, message := MapErrorToHTTP(tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.message, message)
		})
	}
}

func TestRegisterValidators_DecimalBinding(t *testing.T) {
	t.Parallel()
	RegisterValidators()
	RegisterValidators()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/bind", func(c *gin.Context) {
		var req PlaceBidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleBindError(c, "bind", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"amount": req.Amount.String()})
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"number_amount", `{"auction_id":"a1","bidder_id":"u1","amount":100.50}`, http.StatusOK},
		{"string_amount", `{"auction_id":"a1","bidder_id":"u1","amount":"100.50"}`, http.StatusOK},
		{"with_ceiling", `{"auction_id":"a1","bidder_id":"u1","amount":"10","is_auto_bid":true,"max_auto_bid":"50"}`, http.StatusOK},
		{"null_ceiling", `{"auction_id":"a1","bidder_id":"u1","amount":"10","max_auto_bid":null}`, http.StatusOK},
		{"zero_amount", `{"auction_id":"a1","bidder_id":"u1","amount":0}`, http.StatusBadRequest},
		{"negative_amount", `{"auction_id":"a1","bidder_id":"u1","amount":"-5"}`, http.StatusBadRequest},
		{"missing_amount", `{"auction_id":"a1","bidder_id":"u1"}`, http.StatusBadRequest},
		{"zero_ceiling", `{"auction_id":"a1","bidder_id":"u1","amount":"10","max_auto_bid":"0"}`, http.StatusBadRequest},
		{"missing_bidder", `{"auction_id":"a1","amount":"10"}`, http.StatusBadRequest},
		{"malformed_amount", `{"auction_id":"a1","bidder_id":"u1","amount":"ten"}`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodPost, "/bind", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}
