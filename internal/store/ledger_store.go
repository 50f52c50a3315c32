package store

import (
	"context"
	"errors"
	"fmt"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
)

var (
	// ErrLedgerWrite wraps any storage failure of the balance/transaction pair.
	ErrLedgerWrite = errors.New("failed to record transaction")

	// ErrBalanceChanged means the account no longer holds balanceBefore or is
	// no longer active, so the update matched no row.
	ErrBalanceChanged = errors.New("account balance changed concurrently")

	ErrInvalidEntry = errors.New("inconsistent transaction entry")
)

type LedgerStore struct {
	runner db.TxRunner
}

type TransactionInput struct {
	ID              string
	Type            string
	Amount          int64
	BalanceBefore   int64
	BalanceAfter    int64
	Description     *string
	ReferenceNumber string
}

func NewLedgerStore(runner db.TxRunner) *LedgerStore {
	return &LedgerStore{runner: runner}
}

func (in TransactionInput) validate(newBalance int64) error {
	if in.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if in.BalanceAfter != newBalance {
		return fmt.Errorf("%w: balance after does not match new balance", ErrInvalidEntry)
	}
	switch in.Type {
	case models.TransactionTypeDeposit:
		if in.BalanceAfter != in.BalanceBefore+in.Amount {
			return fmt.Errorf("%w: deposit arithmetic", ErrInvalidEntry)
		}
	case models.TransactionTypeWithdrawal:
		if in.BalanceAfter != in.BalanceBefore-in.Amount {
			return fmt.Errorf("%w: withdrawal arithmetic", ErrInvalidEntry)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, in.Type)
	}
	if in.BalanceAfter < 0 {
		return fmt.Errorf("%w: negative balance", ErrInvalidEntry)
	}
	return nil
}

// UpdateBalanceAndCreateTransaction moves the account to newBalance and
// appends the matching transaction row in one database transaction. Either
// both rows are committed or neither is.
func (s *LedgerStore) UpdateBalanceAndCreateTransaction(ctx context.Context, accountID string, newBalance int64, input TransactionInput) (models.SavingsAccount, models.Transaction, error) {
	if err := input.validate(newBalance); err != nil {
		return models.SavingsAccount{}, models.Transaction{}, err
	}
	var account models.SavingsAccount
	var txn models.Transaction
	err := s.runner.WithTx(ctx, func(tx db.Tx) error {
		err := tx.GetContext(ctx, &account, `
			UPDATE savings_accounts
			SET balance = $2, updated_at = NOW()
			WHERE id = $1 AND balance = $3 AND status = 'active'
			RETURNING `+accountColumns,
			accountID, newBalance, input.BalanceBefore)
		if IsNotFound(err) {
			return ErrBalanceChanged
		}
		if err != nil {
			return err
		}
		return tx.GetContext(ctx, &txn, `
			INSERT INTO transactions (id, savings_account_id, type, amount, balance_before, balance_after, description, reference_number, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'completed')
			RETURNING `+transactionColumns,
			input.ID, accountID, input.Type, input.Amount, input.BalanceBefore, input.BalanceAfter,
			input.Description, input.ReferenceNumber)
	})
	if errors.Is(err, ErrBalanceChanged) {
		return models.SavingsAccount{}, models.Transaction{}, err
	}
	if err != nil {
		return models.SavingsAccount{}, models.Transaction{}, fmt.Errorf("%w: %w", ErrLedgerWrite, err)
	}
	return account, txn, nil
}
