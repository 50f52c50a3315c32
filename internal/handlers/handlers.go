package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"savingscredit/internal/middleware"
	"savingscredit/internal/money"
	"savingscredit/internal/services"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

var (
	errInvalidAmount = errors.New("invalid amount")
	errInvalidPage   = errors.New("page must be a positive integer")
	errInvalidLimit  = errors.New("limit must be between 1 and 100")
)

type envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, envelope{Success: false, Error: message})
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func respondPage[T, V any](w http.ResponseWriter, page services.Page[T], view func(T) V) {
	items := make([]V, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, view(item))
	}
	respondJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    items,
		Pagination: &pagination{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	})
}

// respondServiceError maps domain error kinds to status codes. Anything that
// is not a services.Error is logged and hidden behind a generic 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr, ok := services.AsError(err); ok {
		switch svcErr.Kind {
		case services.KindBadRequest:
			respondError(w, http.StatusBadRequest, svcErr.Message)
			return
		case services.KindNotFound:
			respondError(w, http.StatusNotFound, svcErr.Message)
			return
		case services.KindConflict:
			respondError(w, http.StatusConflict, svcErr.Message)
			return
		}
	}
	h.log.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
	respondError(w, http.StatusInternalServerError, "Internal server error")
}

func decodeJSON(r *http.Request, dest any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dest)
	if errors.Is(err, io.EOF) {
		return errors.New("request body is empty")
	}
	return err
}

// currentUser reads the id placed by middleware.Auth. Routes are always
// wrapped, so a miss is answered with 401 rather than a panic.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
	}
	return userID, ok
}

func parsePage(r *http.Request) (services.PageRequest, error) {
	query := r.URL.Query()
	req := services.PageRequest{Page: 1, Limit: services.DefaultPageSize}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return services.PageRequest{}, errInvalidPage
		}
		req.Page = page
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > services.MaxPageSize {
			return services.PageRequest{}, errInvalidLimit
		}
		req.Limit = limit
	}
	return req, nil
}

// amountMinor converts a request amount to minor units. Sign checks belong to
// the services so that status rules can take precedence.
func amountMinor(amount *decimal.Decimal) (int64, error) {
	if amount == nil {
		return 0, errors.New("amount is required")
	}
	minor, err := money.FromDecimal(*amount)
	if err != nil {
		if errors.Is(err, money.ErrTooManyDecimals) {
			return 0, err
		}
		return 0, errInvalidAmount
	}
	return minor, nil
}
