package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// placeBidMatcher compares amounts numerically so "100" and "100.00" match
type placeBidMatcher struct {
	want bidding.PlaceBidRequest
}

func (m placeBidMatcher) Matches(x interface{}) bool {
	got, ok := x.(bidding.PlaceBidRequest)
	if !ok {
		return false
	}
	if got.AuctionID != m.want.AuctionID || got.BidderID != m.want.BidderID || got.IsAutoBid != m.want.IsAutoBid {
		return false
	}
	if got.MaxAutoBid.Valid != m.want.MaxAutoBid.Valid {
		return false
	}
	if got.MaxAutoBid.Valid && !got.MaxAutoBid.Decimal.Equal(m.want.MaxAutoBid.Decimal) {
		return false
	}
	return got.Amount.Equal(m.want.Amount)
}

func (m placeBidMatcher) String() string {
	return fmt.Sprintf("place bid %s by %s for %s", m.want.AuctionID, m.want.BidderID, m.want.Amount)
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	helpers.RegisterValidators()
	return gin.New()
}

func perform(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

// Test PlaceBidHandler
func TestPlaceBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.POST("/bids", handler.PlaceBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name: "success_valid_bid",
			requestBody: helpers.PlaceBidRequest{
				AuctionID: "auction1",
				BidderID:  "user1",
				Amount:    d("100"),
			},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction1", BidderID: "user1", Amount: d("100")}}).
					Return(model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "auction1",
						BidderID:  "user1",
						Amount:    d("100"),
						Status:    model.BidActive,
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				bidID := data["bid_id"].(string)
				_, parseErr := uuid.Parse(bidID)
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "auction1", data["auction_id"])
				require.Equal(t, "user1", data["bidder_id"])
				require.Equal(t, "100", data["amount"])
				require.Equal(t, "active", data["status"])
				require.Nil(t, data["max_auto_bid"])
			},
		},
		{
			name:        "success_auto_bid_with_string_amounts",
			requestBody: `{"auction_id":"auction2","bidder_id":"user2","amount":"55.50","is_auto_bid":true,"max_auto_bid":"120"}`,
			mockSetup: func() {
				want := bidding.PlaceBidRequest{
					AuctionID:  "auction2",
					BidderID:   "user2",
					Amount:     d("55.5"),
					IsAutoBid:  true,
					MaxAutoBid: decimal.NewNullDecimal(d("120")),
				}
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{want}).
					Return(model.Bid{
						BidID:      uuid.NewString(),
						AuctionID:  "auction2",
						BidderID:   "user2",
						Amount:     d("55.50"),
						IsAutoBid:  true,
						MaxAutoBid: decimal.NewNullDecimal(d("120")),
						Status:     model.BidActive,
						CreatedAt:  now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "55.5", data["amount"])
				require.Equal(t, "120", data["max_auto_bid"])
				require.Equal(t, true, data["is_auto_bid"])
			},
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_auction_id",
			requestBody:    helpers.PlaceBidRequest{BidderID: "user1", Amount: d("50")},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_bidder_id",
			requestBody:    helpers.PlaceBidRequest{AuctionID: "auction1", Amount: d("50")},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "invalid_amount_zero",
			requestBody:    helpers.PlaceBidRequest{AuctionID: "auction1", BidderID: "user1"},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "negative_amount",
			requestBody:    helpers.PlaceBidRequest{AuctionID: "auction1", BidderID: "user1", Amount: d("-10")},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "service_bid_too_low",
			requestBody: helpers.PlaceBidRequest{AuctionID: "auction3", BidderID: "user1", Amount: d("50")},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction3", BidderID: "user1", Amount: d("50")}}).
					Return(model.Bid{}, fmt.Errorf("service: %w", &biddingerrors.BidTooLowError{Minimum: d("105")}))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "minimum is 105.00",
		},
		{
			name:        "service_seller_bid",
			requestBody: helpers.PlaceBidRequest{AuctionID: "auction4", BidderID: "seller", Amount: d("60")},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction4", BidderID: "seller", Amount: d("60")}}).
					Return(model.Bid{}, biddingerrors.ErrSellerBid)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request",
		},
		{
			name:        "service_auction_closed",
			requestBody: helpers.PlaceBidRequest{AuctionID: "auction5", BidderID: "user1", Amount: d("60")},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction5", BidderID: "user1", Amount: d("60")}}).
					Return(model.Bid{}, biddingerrors.ErrAuctionClosed)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "auction has ended",
		},
		{
			name:        "service_auction_not_found",
			requestBody: helpers.PlaceBidRequest{AuctionID: "missing", BidderID: "user1", Amount: d("60")},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "missing", BidderID: "user1", Amount: d("60")}}).
					Return(model.Bid{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:        "service_generic_error",
			requestBody: helpers.PlaceBidRequest{AuctionID: "auction6", BidderID: "user1", Amount: d("100")},
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction6", BidderID: "user1", Amount: d("100")}}).
					Return(model.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
		{
			name:        "extremely_large_amount",
			requestBody: `{"auction_id":"auction7","bidder_id":"user1","amount":"1000000000000000000.01"}`,
			mockSetup: func() {
				mockService.EXPECT().
					PlaceBid(gomock.Any(), placeBidMatcher{bidding.PlaceBidRequest{AuctionID: "auction7", BidderID: "user1", Amount: d("1000000000000000000.01")}}).
					Return(model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "auction7",
						BidderID:  "user1",
						Amount:    d("1000000000000000000.01"),
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "1000000000000000000.01", data["amount"])
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			w, resp := perform(t, router, http.MethodPost, "/bids", tc.requestBody)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil && w.Code == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

func TestCancelBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.POST("/bids/:bid_id/cancel", handler.CancelBidHandler)

	tests := []struct {
		name           string
		bidID          string
		body           any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:  "success",
			bidID: "bid1",
			body:  helpers.CancelBidRequest{BidderID: "user1"},
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "bid1", "user1").
					Return(model.Bid{BidID: "bid1", BidderID: "user1", Status: model.BidCancelled}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bid cancelled successfully",
		},
		{
			name:           "missing_bidder",
			bidID:          "bid2",
			body:           `{}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:  "not_owner",
			bidID: "bid3",
			body:  helpers.CancelBidRequest{BidderID: "intruder"},
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "bid3", "intruder").
					Return(model.Bid{}, biddingerrors.ErrNotBidOwner)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "operation not permitted",
		},
		{
			name:  "leading_bid",
			bidID: "bid4",
			body:  helpers.CancelBidRequest{BidderID: "user1"},
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "bid4", "user1").
					Return(model.Bid{}, biddingerrors.ErrLeadingBid)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "operation not allowed in current state",
		},
		{
			name:  "unknown_bid",
			bidID: "bid5",
			body:  helpers.CancelBidRequest{BidderID: "user1"},
			mockSetup: func() {
				mockService.EXPECT().CancelBid(gomock.Any(), "bid5", "user1").
					Return(model.Bid{}, biddingerrors.ErrBidNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "bid not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			w, resp := perform(t, router, http.MethodPost, "/bids/"+tc.bidID+"/cancel", tc.body)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

// Test GetBidsByAuctionHandler
func TestGetBidsByAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/auctions/:auction_id/bids", handler.GetBidsByAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data []map[string]any)
	}{
		{
			name:      "success_multiple_bids",
			auctionID: "auction1",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auction1").
					Return([]model.Bid{
						{BidID: uuid.NewString(), AuctionID: "auction1", BidderID: "user2", Amount: d("150"), Status: model.BidActive, CreatedAt: now},
						{BidID: uuid.NewString(), AuctionID: "auction1", BidderID: "user1", Amount: d("100"), Status: model.BidOutbid, CreatedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []map[string]any) {
				require.Len(t, data, 2)
				require.Equal(t, "150", data[0]["amount"])
				require.Equal(t, "outbid", data[1]["status"])
			},
		},
		{
			name:      "service_no_bids_error",
			auctionID: "auction2",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auction2").
					Return(nil, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []map[string]any) {
				require.Len(t, data, 0)
			},
		},
		{
			name:      "service_nil_slice",
			auctionID: "auction3",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auction3").
					Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []map[string]any) {
				require.Len(t, data, 0)
			},
		},
		{
			name:      "unknown_auction",
			auctionID: "auction4",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auction4").
					Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:      "service_generic_error",
			auctionID: "auction5",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auction5").
					Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
		{
			name:      "extremely_large_number_of_bids",
			auctionID: "auction6",
			mockSetup: func() {
				bids := make([]model.Bid, 1000)
				for i := range bids {
					bids[i] = model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "auction6",
						BidderID:  fmt.Sprintf("user%d", i),
						Amount:    decimal.NewFromInt(int64(1000 - i)),
						CreatedAt: now,
					}
				}
				mockService.EXPECT().GetBidsForAuction(gomock.Any(), "auction6").Return(bids, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []map[string]any) {
				require.Len(t, data, 1000)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			w, resp := perform(t, router, http.MethodGet, fmt.Sprintf("/auctions/%s/bids", tc.auctionID), nil)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil && w.Code == http.StatusOK {
				dataRaw := resp["data"].([]any)
				data := make([]map[string]any, len(dataRaw))
				for i, v := range dataRaw {
					data[i] = v.(map[string]any)
				}
				tc.validateData(t, data)
			}
		})
	}
}

// Test GetLeadingBidHandler
func TestGetLeadingBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/auctions/:auction_id/leading", handler.GetLeadingBidHandler)

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:      "success_leading_bid",
			auctionID: "auction1",
			mockSetup: func() {
				mockService.EXPECT().GetLeadingBid(gomock.Any(), "auction1").
					Return(model.Bid{BidID: "b1", AuctionID: "auction1", BidderID: "user1", Amount: d("200"), Status: model.BidActive}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "leading bid retrieved successfully",
		},
		{
			name:      "no_bids",
			auctionID: "auction2",
			mockSetup: func() {
				mockService.EXPECT().GetLeadingBid(gomock.Any(), "auction2").
					Return(model.Bid{}, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "no leading bid found",
		},
		{
			name:      "service_generic_error",
			auctionID: "auction3",
			mockSetup: func() {
				mockService.EXPECT().GetLeadingBid(gomock.Any(), "auction3").
					Return(model.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			w, resp := perform(t, router, http.MethodGet, "/auctions/"+tc.auctionID+"/leading", nil)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

// Test GetBidsByUserHandler
func TestGetBidsByUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/users/:user_id/bids", handler.GetBidsByUserHandler)

	tests := []struct {
		name           string
		path           string
		mockSetup      func()
		expectedStatus int
		expectedCount  int
	}{
		{
			name: "all_bids",
			path: "/users/user1/bids",
			mockSetup: func() {
				mockService.EXPECT().GetBidsByUser(gomock.Any(), "user1", model.BidStatus("")).
					Return([]model.Bid{{BidID: "b2"}, {BidID: "b1"}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name: "filtered_by_status",
			path: "/users/user2/bids?status=won",
			mockSetup: func() {
				mockService.EXPECT().GetBidsByUser(gomock.Any(), "user2", model.BidWon).
					Return([]model.Bid{{BidID: "b3", Status: model.BidWon}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name: "user_without_bids",
			path: "/users/user3/bids",
			mockSetup: func() {
				mockService.EXPECT().GetBidsByUser(gomock.Any(), "user3", model.BidStatus("")).
					Return(nil, biddingerrors.ErrUserNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "unknown_status",
			path:           "/users/user4/bids?status=winning",
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "service_generic_error",
			path: "/users/user5/bids",
			mockSetup: func() {
				mockService.EXPECT().GetBidsByUser(gomock.Any(), "user5", model.BidStatus("")).
					Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()
			w, resp := perform(t, router, http.MethodGet, tc.path, nil)

			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedCount)
			}
		})
	}
}

func TestGetAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.GET("/auctions/:auction_id", handler.GetAuctionHandler)

	end := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	mockService.EXPECT().GetAuction(gomock.Any(), "auction1").Return(model.Listing{
		ListingID: "auction1",
		SellerID:  "seller1",
		Title:     "Guitar",
		Status:    model.ListingActive,
		Inventory: model.Inventory{TotalQuantity: 2, ReservedQuantity: 1},
		Auction: model.Auction{
			IsAuction:    true,
			Status:       model.AuctionActive,
			StartingBid:  d("100"),
			CurrentBid:   d("120"),
			BidIncrement: d("5"),
			ReservePrice: decimal.NewNullDecimal(d("500")),
			EndTime:      end,
		},
	}, nil)
	mockService.EXPECT().GetAuction(gomock.Any(), "missing").Return(model.Listing{}, biddingerrors.ErrAuctionNotFound)

	w, resp := perform(t, router, http.MethodGet, "/auctions/auction1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	require.Equal(t, "125", data["minimum_next_bid"])
	require.Equal(t, true, data["has_reserve"])
	require.Equal(t, false, data["reserve_met"])
	require.NotContains(t, data, "reserve_price")
	require.Equal(t, "2026-05-01T18:00:00Z", data["end_time"])
	require.Equal(t, float64(1), data["available_quantity"])

	w, resp = perform(t, router, http.MethodGet, "/auctions/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "auction not found", resp["message"])
}

func TestResolveAutoBidsHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := newTestRouter()
	router.POST("/auctions/:auction_id/resolve-auto-bids", handler.ResolveAutoBidsHandler)

	proxy := model.Bid{BidID: "b9", AuctionID: "auction1", BidderID: "user1", Amount: d("75"), IsAutoBid: true}
	mockService.EXPECT().ResolveAutoBids(gomock.Any(), "auction1").Return(&proxy, nil)
	mockService.EXPECT().ResolveAutoBids(gomock.Any(), "auction2").Return(nil, nil)
	mockService.EXPECT().ResolveAutoBids(gomock.Any(), "auction3").Return(nil, biddingerrors.ErrAuctionNotActive)

	w, resp := perform(t, router, http.MethodPost, "/auctions/auction1/resolve-auto-bids", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "75", resp["data"].(map[string]any)["amount"])

	w, resp = perform(t, router, http.MethodPost, "/auctions/auction2/resolve-auto-bids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "no proxy bid due", resp["message"])

	w, _ = perform(t, router, http.MethodPost, "/auctions/auction3/resolve-auto-bids", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}
