package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
	"savingscredit/internal/notifications"
	"savingscredit/internal/store"
	"savingscredit/internal/websocket"
)

type fakeTxRunner struct {
	err   error
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(db.Tx) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memSavings keeps one account per user and its transaction log in memory.
// It implements SavingsAccountStore, LedgerStore and TransactionStore with
// the same guard semantics as the SQL stores.
type memSavings struct {
	mu        sync.Mutex
	accounts  map[string]*models.SavingsAccount
	txns      []models.Transaction
	ledgerErr error
	ledgerHit int
}

func newMemSavings() *memSavings {
	return &memSavings{accounts: map[string]*models.SavingsAccount{}}
}

func (m *memSavings) Create(_ context.Context, input store.AccountInput) (models.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[input.UserID]; ok {
		return models.SavingsAccount{}, fmt.Errorf("duplicate account")
	}
	account := &models.SavingsAccount{
		ID:             input.ID,
		UserID:         input.UserID,
		Name:           input.Name,
		Balance:        input.InitialBalance,
		InitialBalance: input.InitialBalance,
		Currency:       input.Currency,
		Status:         models.AccountStatusActive,
		CreatedAt:      time.Now(),
	}
	m.accounts[input.UserID] = account
	return *account, nil
}

func (m *memSavings) FindByUserID(_ context.Context, userID string) (models.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return models.SavingsAccount{}, sql.ErrNoRows
	}
	return *account, nil
}

func (m *memSavings) UpdateDetails(_ context.Context, userID string, name, currency *string) (models.SavingsAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return models.SavingsAccount{}, sql.ErrNoRows
	}
	if name != nil {
		account.Name = *name
	}
	if currency != nil {
		account.Currency = *currency
	}
	return *account, nil
}

func (m *memSavings) SetStatus(_ context.Context, _ store.Execer, userID, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok || account.Status != from {
		return 0, nil
	}
	account.Status = to
	return 1, nil
}

func (m *memSavings) DeleteEmpty(_ context.Context, _ store.Execer, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok || account.Balance != 0 {
		return 0, nil
	}
	delete(m.accounts, userID)
	return 1, nil
}

func (m *memSavings) SelfCheck(_ context.Context, userID string) (store.LedgerCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[userID]
	if !ok {
		return store.LedgerCheck{}, sql.ErrNoRows
	}
	calculated := account.InitialBalance
	for _, txn := range m.txns {
		if txn.SavingsAccountID != account.ID {
			continue
		}
		if txn.Type == models.TransactionTypeDeposit {
			calculated += txn.Amount
		} else {
			calculated -= txn.Amount
		}
	}
	return store.LedgerCheck{
		AccountID:         account.ID,
		UserID:            userID,
		Currency:          account.Currency,
		StoredBalance:     account.Balance,
		CalculatedBalance: calculated,
		Difference:        account.Balance - calculated,
	}, nil
}

func (m *memSavings) UpdateBalanceAndCreateTransaction(_ context.Context, accountID string, newBalance int64, input store.TransactionInput) (models.SavingsAccount, models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerHit++
	if m.ledgerErr != nil {
		return models.SavingsAccount{}, models.Transaction{}, m.ledgerErr
	}
	var account *models.SavingsAccount
	for _, candidate := range m.accounts {
		if candidate.ID == accountID {
			account = candidate
		}
	}
	if account == nil || account.Balance != input.BalanceBefore || account.Status != models.AccountStatusActive {
		return models.SavingsAccount{}, models.Transaction{}, store.ErrBalanceChanged
	}
	account.Balance = newBalance
	txn := models.Transaction{
		ID:               input.ID,
		SavingsAccountID: accountID,
		Type:             input.Type,
		Amount:           input.Amount,
		BalanceBefore:    input.BalanceBefore,
		BalanceAfter:     input.BalanceAfter,
		Description:      input.Description,
		ReferenceNumber:  input.ReferenceNumber,
		Status:           models.TransactionStatusComplete,
		CreatedAt:        time.Now(),
	}
	m.txns = append(m.txns, txn)
	return *account, txn, nil
}

func (m *memSavings) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.Transaction
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].SavingsAccountID == accountID {
			rows = append(rows, m.txns[i])
		}
	}
	if offset >= len(rows) {
		return []models.Transaction{}, nil
	}
	rows = rows[offset:]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (m *memSavings) CountByAccount(_ context.Context, accountID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, txn := range m.txns {
		if txn.SavingsAccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (m *memSavings) ReferenceExists(_ context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range m.txns {
		if txn.ReferenceNumber == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSavings) txCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txns)
}

// memCredit implements CreditRequestStore and RepaymentStore.
type memCredit struct {
	mu         sync.Mutex
	requests   map[string]*models.CreditRequest
	repayments []models.CreditRepayment
	createErr  error
	limitErr   error
}

func newMemCredit() *memCredit {
	return &memCredit{requests: map[string]*models.CreditRequest{}}
}

func (m *memCredit) CreateRequest(_ context.Context, input store.CreditRequestInput) (models.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return models.CreditRequest{}, m.createErr
	}
	request := &models.CreditRequest{
		ID:             input.ID,
		UserID:         input.UserID,
		Amount:         input.Amount,
		Purpose:        input.Purpose,
		DurationMonths: input.DurationMonths,
		InterestRate:   input.InterestRate,
		Status:         models.CreditStatusPending,
		CreatedAt:      time.Now(),
	}
	m.requests[input.ID] = request
	return *request, nil
}

func (m *memCredit) FindPendingByUser(_ context.Context, userID string) (models.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, request := range m.requests {
		if request.UserID == userID && request.Status == models.CreditStatusPending {
			return *request, nil
		}
	}
	return models.CreditRequest{}, sql.ErrNoRows
}

func (m *memCredit) FindByID(_ context.Context, id string) (models.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[id]
	if !ok {
		return models.CreditRequest{}, sql.ErrNoRows
	}
	return *request, nil
}

func (m *memCredit) FindByIDForUser(ctx context.Context, id, userID string) (models.CreditRequest, error) {
	request, err := m.FindByID(ctx, id)
	if err != nil || request.UserID != userID {
		return models.CreditRequest{}, sql.ErrNoRows
	}
	return request, nil
}

func (m *memCredit) ListByUser(_ context.Context, userID, status string, limit, offset int) ([]models.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.CreditRequest
	for _, request := range m.requests {
		if request.UserID == userID && (status == "" || request.Status == status) {
			rows = append(rows, *request)
		}
	}
	return rows, nil
}

func (m *memCredit) CountByUser(ctx context.Context, userID, status string) (int, error) {
	rows, _ := m.ListByUser(ctx, userID, status, 0, 0)
	return len(rows), nil
}

func (m *memCredit) Decide(_ context.Context, _ store.Getter, decision store.CreditDecision) (models.CreditRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	request, ok := m.requests[decision.RequestID]
	if !ok || request.Status != models.CreditStatusPending {
		return models.CreditRequest{}, store.ErrNotPending
	}
	request.Status = decision.Status
	request.ApprovedBy = &decision.AdminID
	request.RejectionReason = decision.Reason
	return *request, nil
}

func (m *memCredit) SumByRequest(_ context.Context, requestID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(requestID), nil
}

func (m *memCredit) sumLocked(requestID string) int64 {
	var sum int64
	for _, repayment := range m.repayments {
		if repayment.CreditRequestID == requestID {
			sum += repayment.Amount
		}
	}
	return sum
}

func (m *memCredit) ReferenceExists(_ context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, repayment := range m.repayments {
		if repayment.ReferenceNumber == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCredit) CreateWithinLimit(_ context.Context, input store.RepaymentInput, totalOwed int64) (models.CreditRepayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.limitErr != nil {
		return models.CreditRepayment{}, m.limitErr
	}
	request, ok := m.requests[input.CreditRequestID]
	if !ok || request.Status != models.CreditStatusApproved {
		return models.CreditRepayment{}, store.ErrNotApproved
	}
	if m.sumLocked(input.CreditRequestID)+input.Amount > totalOwed {
		return models.CreditRepayment{}, store.ErrExceedsOwed
	}
	repayment := models.CreditRepayment{
		ID:              input.ID,
		CreditRequestID: input.CreditRequestID,
		Amount:          input.Amount,
		ReferenceNumber: input.ReferenceNumber,
		PaymentDate:     time.Now(),
		CreatedAt:       time.Now(),
	}
	m.repayments = append(m.repayments, repayment)
	return repayment, nil
}

func (m *memCredit) ListByRequest(_ context.Context, requestID string, limit, offset int) ([]models.CreditRepayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var rows []models.CreditRepayment
	for _, repayment := range m.repayments {
		if repayment.CreditRequestID == requestID {
			rows = append(rows, repayment)
		}
	}
	return rows, nil
}

func (m *memCredit) CountByRequest(ctx context.Context, requestID string) (int, error) {
	rows, _ := m.ListByRequest(ctx, requestID, 0, 0)
	return len(rows), nil
}

func (m *memCredit) repaymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.repayments)
}

type stubAuditStore struct {
	mu      sync.Mutex
	actions []string
	logFn   func(action string) error
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, _, action, _, _ string, _ any) error {
	if s.logFn != nil {
		if err := s.logFn(action); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
	err      error
}

func (s *stubNotifier) Notify(_ context.Context, msg notifications.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type stubHub struct {
	updates []websocket.BalanceUpdate
}

func (h *stubHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.updates = append(h.updates, update)
}
