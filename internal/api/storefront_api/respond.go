package storefront_api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/BearBump/xtreeshop/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func created(w http.ResponseWriter, data any, msg string) {
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: data, Message: msg})
}

func done(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// fail maps a service error onto a status code. Anything unknown is logged
// and hidden behind a 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, status, msg)
}

func classify(err error) (int, string) {
	var verr *models.ValidationError
	var cerr *models.ConflictError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &cerr):
		return http.StatusConflict, cerr.Message
	case errors.Is(err, models.ErrEmptyCart):
		return http.StatusBadRequest, "your cart is empty"
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, models.ErrPaymentDeclined):
		return http.StatusPaymentRequired, err.Error()
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "access denied"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict, "not enough stock"
	case errors.Is(err, models.ErrTicketClosed):
		return http.StatusConflict, "this ticket is closed"
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts, try again in a minute"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// decode reads a JSON body into dst. Unknown fields are rejected.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return models.NewValidationError("body", "invalid JSON payload")
	}
	return nil
}

func idParam(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError(name, "invalid id")
	}
	return id, nil
}
