package integrationtests

import (
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/lifecycle"
	"auction-engine/internal/locking"
	"auction-engine/internal/notification"
	"auction-engine/internal/payment"
	"auction-engine/internal/repository"
	"auction-engine/internal/scheduler"
	"auction-engine/internal/server"
	"auction-engine/internal/settlement"
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testEnv is the whole engine wired the way main wires it, on the
// in-memory store and with a synchronous notification recorder
type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepo
	wallet *payment.WalletGateway
	notes  *notification.Recorder
}

// SetupTestEnv initializes the router with in-memory repository for integration testing.
func SetupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		repo:   repository.NewMemoryRepo(),
		wallet: payment.NewWalletGateway(),
		notes:  notification.NewRecorder(),
	}

	locks := locking.NewKeyedMutex()
	coordinator := settlement.NewCoordinator(env.repo, env.wallet,
		settlement.WithLocks(locks),
		settlement.WithNotifier(env.notes),
	)
	closeTimers := scheduler.New(coordinator, env.repo, scheduler.WithSweepInterval(0))
	t.Cleanup(closeTimers.Stop)

	manager := lifecycle.NewManager(env.repo, coordinator,
		lifecycle.WithLocks(locks),
		lifecycle.WithTimer(closeTimers),
		lifecycle.WithNotifier(env.notes),
		lifecycle.WithDefaultIncrement(decimal.NewFromInt(5)),
	)
	service := bidding.NewBiddingService(env.repo,
		bidding.WithLocks(locks),
		bidding.WithNotifier(env.notes),
	)

	env.router = server.SetupRouter(server.Services{
		Bidding:  service,
		Auctions: manager,
		Orders:   coordinator,
	})
	return env
}

// createActiveAuction creates and starts an auction through the API
func (e *testEnv) createActiveAuction(t *testing.T, body map[string]any) string {
	t.Helper()

	resp, w := ExecuteRequestAndParse(t, e.router, "POST", "/auctions", body)
	require.Equal(t, 201, w.Code, resp)
	id := resp["auction_id"].(string)

	_, w = ExecuteRequestAndParse(t, e.router, "POST", "/auctions/"+id+"/start", map[string]any{
		"requester_id": body["seller_id"],
	})
	require.Equal(t, 200, w.Code)
	return id
}

func (e *testEnv) deposit(t *testing.T, userID string, amount int64) {
	t.Helper()
	_, err := e.wallet.Deposit(userID, decimal.NewFromInt(amount))
	require.NoError(t, err)
}

// ExecuteRequest executes an HTTP request and returns the response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request on the given router and parses the response
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := ExecuteRequest(t, router, method, url, reqBody)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}
