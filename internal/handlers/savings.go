package handlers

import (
	"context"
	"net/http"

	"savingscredit/internal/models"
	"savingscredit/internal/money"
	"savingscredit/internal/services"
	"savingscredit/internal/validator"

	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	Name           string           `json:"name" validate:"omitempty,max=100"`
	Currency       string           `json:"currency" validate:"omitempty,len=3"`
	InitialDeposit *decimal.Decimal `json:"initialDeposit"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var initial int64
	if req.InitialDeposit != nil {
		var err error
		if initial, err = money.FromDecimal(*req.InitialDeposit); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	account, err := h.savings.CreateAccount(r.Context(), services.CreateAccountRequest{
		UserID:         userID,
		Name:           req.Name,
		Currency:       req.Currency,
		InitialDeposit: initial,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, "Savings account created successfully", viewAccount(account))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	account, err := h.savings.GetAccount(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", viewAccount(account))
}

type updateAccountRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Currency *string `json:"currency" validate:"omitempty,len=3"`
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	account, err := h.savings.UpdateAccount(r.Context(), services.UpdateAccountRequest{
		UserID:   userID,
		Name:     req.Name,
		Currency: req.Currency,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Account updated successfully", viewAccount(account))
}

func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.savings.DeleteAccount(r.Context(), userID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Account deleted successfully", nil)
}

type balanceResponse struct {
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	balance, err := h.savings.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", balanceResponse{
		Balance:  money.FormatMinor(balance.Balance),
		Currency: balance.Currency,
	})
}

type movementRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	Description *string          `json:"description" validate:"omitempty,max=255"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.savings.Deposit, "Deposit successful")
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.savings.Withdraw, "Withdrawal successful")
}

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, apply func(context.Context, services.MovementRequest) (models.Transaction, error), message string) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req movementRequest
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
	txn, err := apply(r.Context(), services.MovementRequest{
		UserID:      userID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, message, viewTransaction(txn))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.savings.ListTransactions(r.Context(), userID, page)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondPage(w, result, viewTransaction)
}

func (h *Handler) FreezeAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.savings.Freeze(r.Context(), userID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Account frozen successfully", nil)
}

func (h *Handler) UnfreezeAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.savings.Unfreeze(r.Context(), userID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "Account unfrozen successfully", nil)
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	check, err := h.savings.SelfCheck(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, "", viewLedgerCheck(check))
}
