package store

import (
	"context"

	"savingscredit/internal/models"
)

const transactionColumns = `id, savings_account_id, type, amount, balance_before, balance_after, description, reference_number, status, created_at`

// TransactionStore is read-only; rows are written by LedgerStore.
type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.Transaction, error) {
	rows := []models.Transaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE savings_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *TransactionStore) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM transactions WHERE savings_account_id = $1`, accountID)
	return count, err
}

func (s *TransactionStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference_number = $1)`, reference)
	return exists, err
}
