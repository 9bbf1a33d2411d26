package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sync"

	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var registerOnce sync.Once

// RegisterValidators teaches gin's validator about decimal amounts: decimals
// are validated through their string form and the dgt0 tag requires a
// strictly positive amount. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
		if err := v.RegisterValidation("dgt0", decimalPositive); err != nil {
			utils.Fatal("failed to register dgt0 validation", map[string]any{"error": err.Error()})
		}
	})
}

func decimalValue(field reflect.Value) any {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		return d.String()
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		return d.Decimal.String()
	}
	return nil
}

func decimalPositive(fl validator.FieldLevel) bool {
	if fl.Field().Kind() != reflect.String {
		return false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message.
// Specific errors are matched before the kind they wrap.
func MapErrorToHTTP(err error) (int, string) {
	var tooLow *biddingerrors.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return http.StatusConflict, "bid amount too low, minimum is " + tooLow.Minimum.StringFixed(2)
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	case errors.Is(err, biddingerrors.ErrUserNoBids):
		return http.StatusOK, "no bids found for user"
	case errors.Is(err, biddingerrors.ErrAuctionNotFound), errors.Is(err, biddingerrors.ErrListingNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biddingerrors.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, biddingerrors.ErrNotFound):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, biddingerrors.ErrForbidden):
		return http.StatusForbidden, "operation not permitted"
	case errors.Is(err, biddingerrors.ErrConcurrencyConflict):
		return http.StatusConflict, "auction was modified concurrently, retry"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return http.StatusConflict, "auction has ended"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return http.StatusConflict, "auction is not active"
	case errors.Is(err, biddingerrors.ErrInvalidState):
		return http.StatusConflict, "operation not allowed in current state"
	case errors.Is(err, biddingerrors.ErrPaymentFailure):
		return http.StatusPaymentRequired, "payment failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error response and logs the failure
func RespondError(c *gin.Context, handlerName string, err error, ctx map[string]any) {
	status, message := MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	fields := map[string]any{"handler": handlerName, "error": err.Error()}
	if id := utils.RequestID(c); id != "" {
		fields["request_id"] = id
	}
	for k, v := range ctx {
		fields[k] = v
	}
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
		return
	}
	utils.Warn(handlerName+": request rejected", fields)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
