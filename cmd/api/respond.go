package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lauracd1s/Proyecto-licore/internal/checkout"
	"github.com/lauracd1s/Proyecto-licore/internal/database"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/lauracd1s/Proyecto-licore/internal/store"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error     string                   `json:"error"`
	Shortages []database.StockShortage `json:"shortages,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pricing.ErrInvalidOffer),
		errors.Is(err, pricing.ErrInvalidCart),
		errors.Is(err, database.ErrInvalidInput),
		errors.Is(err, store.ErrInvalidPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCustomerNotFound),
		errors.Is(err, database.ErrOfferNotFound),
		errors.Is(err, database.ErrSaleNotFound),
		errors.Is(err, database.ErrBatchNotFound),
		errors.Is(err, checkout.ErrCartNotFound),
		errors.Is(err, checkout.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrCartClosed),
		errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrOfferExhausted),
		errors.Is(err, database.ErrOptimisticLockFailed),
		database.IsUniqueViolation(err):
		return http.StatusConflict
	case errors.Is(err, pricing.ErrProductInactive):
		return http.StatusUnprocessableEntity
	case errors.Is(err, database.ErrLockTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) (int, errorBody) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	var stockErr *database.InsufficientStockError
	if errors.As(err, &stockErr) {
		body.Shortages = stockErr.Shortages
	}
	return status, body
}

func (s *server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondJSON(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode JSON response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}
