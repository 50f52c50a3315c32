package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
	"savingscredit/internal/money"
	"savingscredit/internal/notifications"
	"savingscredit/internal/reference"
	"savingscredit/internal/store"
	"savingscredit/internal/websocket"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultAccountName = "My Savings Account"

type SavingsAccountStore interface {
	Create(ctx context.Context, input store.AccountInput) (models.SavingsAccount, error)
	FindByUserID(ctx context.Context, userID string) (models.SavingsAccount, error)
	UpdateDetails(ctx context.Context, userID string, name, currency *string) (models.SavingsAccount, error)
	SetStatus(ctx context.Context, tx store.Execer, userID, fromStatus, toStatus string) (int64, error)
	DeleteEmpty(ctx context.Context, tx store.Execer, userID string) (int64, error)
	SelfCheck(ctx context.Context, userID string) (store.LedgerCheck, error)
}

type LedgerStore interface {
	UpdateBalanceAndCreateTransaction(ctx context.Context, accountID string, newBalance int64, input store.TransactionInput) (models.SavingsAccount, models.Transaction, error)
}

type TransactionStore interface {
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error)
	CountByAccount(ctx context.Context, accountID string) (int, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
}

// Notifier is best effort: its error is logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, msg notifications.Message) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

type SavingsService struct {
	txRunner        db.TxRunner
	accounts        SavingsAccountStore
	ledger          LedgerStore
	transactions    TransactionStore
	audit           AuditStore
	refs            *reference.Generator
	notifier        Notifier
	hub             BalanceHub
	log             logrus.FieldLogger
	defaultCurrency string
}

type SavingsDeps struct {
	TxRunner        db.TxRunner
	Accounts        SavingsAccountStore
	Ledger          LedgerStore
	Transactions    TransactionStore
	Audit           AuditStore
	References      *reference.Generator
	Notifier        Notifier
	Hub             BalanceHub
	Log             logrus.FieldLogger
	DefaultCurrency string
}

func NewSavingsService(deps SavingsDeps) *SavingsService {
	refs := deps.References
	if refs == nil {
		refs = reference.NewTransactionGenerator()
	}
	currency := deps.DefaultCurrency
	if currency == "" {
		currency = "RWF"
	}
	return &SavingsService{
		txRunner:        deps.TxRunner,
		accounts:        deps.Accounts,
		ledger:          deps.Ledger,
		transactions:    deps.Transactions,
		audit:           deps.Audit,
		refs:            refs,
		notifier:        deps.Notifier,
		hub:             deps.Hub,
		log:             orDiscard(deps.Log),
		defaultCurrency: currency,
	}
}

type CreateAccountRequest struct {
	UserID         string
	Name           string
	Currency       string
	InitialDeposit int64
}

func (s *SavingsService) CreateAccount(ctx context.Context, req CreateAccountRequest) (models.SavingsAccount, error) {
	_, err := s.accounts.FindByUserID(ctx, req.UserID)
	if err == nil {
		return models.SavingsAccount{}, Conflict(MsgAccountExists)
	}
	if !store.IsNotFound(err) {
		return models.SavingsAccount{}, err
	}
	if req.InitialDeposit < 0 {
		return models.SavingsAccount{}, BadRequest(MsgNegativeDeposit)
	}
	if req.Name == "" {
		req.Name = DefaultAccountName
	}
	if req.Currency == "" {
		req.Currency = s.defaultCurrency
	}
	account, err := s.accounts.Create(ctx, store.AccountInput{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Name:           req.Name,
		Currency:       req.Currency,
		InitialBalance: req.InitialDeposit,
	})
	if db.IsUniqueViolation(err) {
		return models.SavingsAccount{}, Conflict(MsgAccountExists)
	}
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return account, nil
}

func (s *SavingsService) GetAccount(ctx context.Context, userID string) (models.SavingsAccount, error) {
	account, err := s.accounts.FindByUserID(ctx, userID)
	if store.IsNotFound(err) {
		return models.SavingsAccount{}, NotFound(MsgAccountNotFound)
	}
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return account, nil
}

type Balance struct {
	Balance  int64
	Currency string
}

func (s *SavingsService) GetBalance(ctx context.Context, userID string) (Balance, error) {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Balance: account.Balance, Currency: account.Currency}, nil
}

type MovementRequest struct {
	UserID      string
	Amount      int64
	Description *string
}

func (s *SavingsService) Deposit(ctx context.Context, req MovementRequest) (models.Transaction, error) {
	return s.move(ctx, models.TransactionTypeDeposit, req)
}

func (s *SavingsService) Withdraw(ctx context.Context, req MovementRequest) (models.Transaction, error) {
	return s.move(ctx, models.TransactionTypeWithdrawal, req)
}

func (s *SavingsService) move(ctx context.Context, txType string, req MovementRequest) (models.Transaction, error) {
	account, err := s.GetAccount(ctx, req.UserID)
	if err != nil {
		return models.Transaction{}, err
	}
	// Frozen wins over every other validation error.
	if account.Frozen() {
		return models.Transaction{}, BadRequest(MsgAccountFrozen)
	}
	if req.Amount <= 0 {
		return models.Transaction{}, BadRequest(MsgAmountPositive)
	}
	before := account.Balance
	description := "Deposit"
	if txType == models.TransactionTypeDeposit && req.Amount > math.MaxInt64-before {
		return models.Transaction{}, BadRequest(MsgAmountTooLarge)
	}
	after := before + req.Amount
	if txType == models.TransactionTypeWithdrawal {
		if req.Amount > before {
			return models.Transaction{}, BadRequest(MsgInsufficientBalance)
		}
		after = before - req.Amount
		description = "Withdrawal"
	}
	if req.Description != nil && *req.Description != "" {
		description = *req.Description
	}

	ref, err := s.refs.Generate(ctx, s.transactions.ReferenceExists)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("generate reference: %w", err)
	}
	updated, txn, err := s.ledger.UpdateBalanceAndCreateTransaction(ctx, account.ID, after, store.TransactionInput{
		ID:              uuid.NewString(),
		Type:            txType,
		Amount:          req.Amount,
		BalanceBefore:   before,
		BalanceAfter:    after,
		Description:     &description,
		ReferenceNumber: ref,
	})
	if errors.Is(err, store.ErrBalanceChanged) {
		return models.Transaction{}, Conflict(MsgAccountChanged)
	}
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"account_id": account.ID,
			"type":       txType,
		}).Error("ledger write failed")
		return models.Transaction{}, err
	}

	s.afterMovement(ctx, req.UserID, updated, txn)
	return txn, nil
}

// afterMovement runs the side effects of a committed movement. Nothing here
// can fail the request.
func (s *SavingsService) afterMovement(ctx context.Context, userID string, account models.SavingsAccount, txn models.Transaction) {
	if s.hub != nil {
		s.hub.BroadcastBalance(userID, websocket.BalanceUpdate{
			AccountID: account.ID,
			Balance:   money.FormatMinor(account.Balance),
			Currency:  account.Currency,
		})
	}
	title := "Deposit successful"
	verb := "deposited"
	if txn.Type == models.TransactionTypeWithdrawal {
		title = "Withdrawal successful"
		verb = "withdrew"
	}
	message := fmt.Sprintf("You %s %s %s. New balance: %s %s. Reference: %s",
		verb, money.FormatMinor(txn.Amount), account.Currency,
		money.FormatMinor(account.Balance), account.Currency, txn.ReferenceNumber)
	s.notify(ctx, notifications.Message{
		UserID:  userID,
		Type:    models.NotificationInApp,
		Title:   title,
		Message: message,
	})
}

func (s *SavingsService) notify(ctx context.Context, msg notifications.Message) {
	notifyBestEffort(ctx, s.notifier, s.log, msg)
}

func (s *SavingsService) ListTransactions(ctx context.Context, userID string, page PageRequest) (Page[models.Transaction], error) {
	page = page.Normalize()
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return Page[models.Transaction]{}, err
	}
	rows, err := s.transactions.ListByAccount(ctx, account.ID, page.Limit, page.Offset())
	if err != nil {
		return Page[models.Transaction]{}, err
	}
	total, err := s.transactions.CountByAccount(ctx, account.ID)
	if err != nil {
		return Page[models.Transaction]{}, err
	}
	return NewPage(rows, total, page), nil
}

func (s *SavingsService) Freeze(ctx context.Context, userID string) error {
	return s.transition(ctx, userID, models.AccountStatusActive, models.AccountStatusFrozen, store.AuditAccountFrozen, MsgAlreadyFrozen)
}

func (s *SavingsService) Unfreeze(ctx context.Context, userID string) error {
	return s.transition(ctx, userID, models.AccountStatusFrozen, models.AccountStatusActive, store.AuditAccountUnfrozen, MsgAlreadyActive)
}

func (s *SavingsService) transition(ctx context.Context, userID, from, to, action, alreadyMsg string) error {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	if account.Status != from {
		return BadRequest("%s", alreadyMsg)
	}
	err = s.txRunner.WithTx(ctx, func(tx db.Tx) error {
		rows, err := s.accounts.SetStatus(ctx, tx, userID, from, to)
		if err != nil {
			return err
		}
		if rows == 0 {
			return BadRequest("%s", alreadyMsg)
		}
		return s.audit.Log(ctx, tx, userID, action, "savings_account", account.ID, map[string]string{"from": from, "to": to})
	})
	if err != nil {
		return err
	}
	title := "Account frozen"
	if to == models.AccountStatusActive {
		title = "Account unfrozen"
	}
	s.notify(ctx, notifications.Message{
		UserID:  userID,
		Type:    models.NotificationInApp,
		Title:   title,
		Message: fmt.Sprintf("Your savings account %q is now %s.", account.Name, to),
	})
	return nil
}

type UpdateAccountRequest struct {
	UserID   string
	Name     *string
	Currency *string
}

func (s *SavingsService) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (models.SavingsAccount, error) {
	if _, err := s.GetAccount(ctx, req.UserID); err != nil {
		return models.SavingsAccount{}, err
	}
	account, err := s.accounts.UpdateDetails(ctx, req.UserID, req.Name, req.Currency)
	if store.IsNotFound(err) {
		return models.SavingsAccount{}, NotFound(MsgAccountNotFound)
	}
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return account, nil
}

func (s *SavingsService) DeleteAccount(ctx context.Context, userID string) error {
	account, err := s.GetAccount(ctx, userID)
	if err != nil {
		return err
	}
	if account.Balance != 0 {
		return BadRequest(MsgNonZeroDelete)
	}
	return s.txRunner.WithTx(ctx, func(tx db.Tx) error {
		rows, err := s.accounts.DeleteEmpty(ctx, tx, userID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return BadRequest(MsgNonZeroDelete)
		}
		return s.audit.Log(ctx, tx, userID, store.AuditAccountDeleted, "savings_account", account.ID, nil)
	})
}

func (s *SavingsService) SelfCheck(ctx context.Context, userID string) (store.LedgerCheck, error) {
	check, err := s.accounts.SelfCheck(ctx, userID)
	if store.IsNotFound(err) {
		return store.LedgerCheck{}, NotFound(MsgAccountNotFound)
	}
	if err != nil {
		return store.LedgerCheck{}, err
	}
	if check.Difference != 0 {
		s.log.WithFields(logrus.Fields{
			"account_id": check.AccountID,
			"difference": check.Difference,
		}).Warn("savings balance drifted from transaction log")
	}
	return check, nil
}
