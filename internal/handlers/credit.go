package handlers

import (
	"net/http"
	"strings"

	"savingscredit/internal/models"
	"savingscredit/internal/money"
	"savingscredit/internal/services"
	"savingscredit/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type creditRequestBody struct {
	Amount         *decimal.Decimal `json:"amount"`
	Purpose        string           `json:"purpose" validate:"required"`
	DurationMonths int              `json:"durationMonths" validate:"required"`
}

// Range checks on purpose and duration live in the credit service so the
// messages stay identical for every caller.
func (h *Handler) RequestCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req creditRequestBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := amountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	request, err := h.credit.RequestCredit(r.Context(), services.CreditApplication{
		UserID:         userID,
		Amount:         amount,
		Purpose:        strings.TrimSpace(req.Purpose),
		DurationMonths: req.DurationMonths,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Credit request submitted successfully", viewCredit(request))
}

var creditStatuses = map[string]bool{
	models.CreditStatusPending:  true,
	models.CreditStatusApproved: true,
	models.CreditStatusRejected: true,
}

func (h *Handler) ListCreditRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !creditStatuses[status] {
		respondError(w, http.StatusBadRequest, "status must be one of: pending approved rejected")
		return
	}
	result, err := h.credit.ListCreditRequests(r.Context(), userID, status, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, result, viewCredit)
}

func (h *Handler) GetCreditRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	details, err := h.credit.GetCreditRequest(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", viewCreditDetails(details))
}

type repaymentBody struct {
	Amount *decimal.Decimal `json:"amount"`
}

type repaymentResponse struct {
	repaymentView
	RemainingBalance string `json:"remainingBalance"`
}

func (h *Handler) MakeRepayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req repaymentBody
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, err := amountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.credit.MakeRepayment(r.Context(), services.RepaymentRequest{
		UserID:    userID,
		RequestID: chi.URLParam(r, "id"),
		Amount:    amount,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Repayment successful", repaymentResponse{
		repaymentView:    viewRepayment(result.Repayment),
		RemainingBalance: money.FormatMinor(result.RemainingBalance),
	})
}

func (h *Handler) ListRepayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.credit.ListRepayments(r.Context(), userID, chi.URLParam(r, "id"), page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, result, viewRepayment)
}
