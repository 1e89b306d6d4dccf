package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/scoopcreamy/ninjapos/internal/catalog"
	"github.com/scoopcreamy/ninjapos/internal/checkout"
	"github.com/scoopcreamy/ninjapos/internal/commit"
	"github.com/scoopcreamy/ninjapos/internal/customer"
	"github.com/scoopcreamy/ninjapos/internal/kitchen"
	"github.com/scoopcreamy/ninjapos/internal/middleware"
	"github.com/scoopcreamy/ninjapos/internal/order"
	"github.com/scoopcreamy/ninjapos/internal/terminal"
)

type errorBody struct {
	Error         string `json:"error"`
	Step          string `json:"step,omitempty"`
	OrderID       string `json:"orderId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// errorStatus maps domain errors to responses. The first match wins.
var errorStatus = []struct {
	err    error
	status int
}{
	{catalog.ErrNotFound, http.StatusNotFound},
	{customer.ErrNotFound, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{terminal.ErrLineNotFound, http.StatusNotFound},

	{commit.ErrEmptyCart, http.StatusUnprocessableEntity},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity},
	{commit.ErrInvalidLine, http.StatusUnprocessableEntity},
	{commit.ErrInvalidMethod, http.StatusUnprocessableEntity},
	{checkout.ErrInvalidMethod, http.StatusUnprocessableEntity},
	{commit.ErrInsufficientTender, http.StatusUnprocessableEntity},
	{commit.ErrTableRequired, http.StatusUnprocessableEntity},
	{checkout.ErrPhoneRequired, http.StatusUnprocessableEntity},
	{checkout.ErrNameRequired, http.StatusUnprocessableEntity},
	{customer.ErrInvalidData, http.StatusUnprocessableEntity},
	{terminal.ErrOrderType, http.StatusUnprocessableEntity},

	{checkout.ErrWrongStep, http.StatusConflict},
	{checkout.ErrWizardClosed, http.StatusConflict},
	{checkout.ErrNoCustomer, http.StatusConflict},
	{terminal.ErrCheckoutOpen, http.StatusConflict},
	{terminal.ErrNoCheckout, http.StatusConflict},
	{commit.ErrNotPending, http.StatusConflict},
	{order.ErrNotPending, http.StatusConflict},
	{order.ErrConflict, http.StatusConflict},
	{customer.ErrPhoneTaken, http.StatusConflict},
	{kitchen.ErrIllegalTransition, http.StatusConflict},
	{kitchen.ErrNotReleased, http.StatusConflict},
}

func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorBody{
		Error:         msg,
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	})
}

// writeFailure renders err with the mapped status. A failed commit also
// reports the step and the order id so the client can retry in place.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	body := errorBody{
		Error:         err.Error(),
		CorrelationID: middleware.GetCorrelationID(r.Context()),
	}

	var ce *commit.Error
	if errors.As(err, &ce) {
		body.Step = string(ce.Step)
		body.OrderID = ce.OrderID
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("correlation_id", body.CorrelationID),
			zap.Error(err))
		if ce == nil {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
