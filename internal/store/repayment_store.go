package store

import (
	"context"
	"errors"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
)

const repaymentColumns = `id, credit_request_id, amount, reference_number, payment_date, created_at`

var (
	// ErrExceedsOwed means the repayment would push the total paid past what
	// is owed, given the history at insert time.
	ErrExceedsOwed = errors.New("repayment exceeds amount owed")
	ErrNotApproved = errors.New("credit request is not approved")
)

type RepaymentStore struct {
	db     DB
	runner db.TxRunner
}

type RepaymentInput struct {
	ID              string
	CreditRequestID string
	Amount          int64
	ReferenceNumber string
}

func NewRepaymentStore(db DB, runner db.TxRunner) *RepaymentStore {
	return &RepaymentStore{db: db, runner: runner}
}

func (s *RepaymentStore) SumByRequest(ctx context.Context, requestID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_repayments
		WHERE credit_request_id = $1
	`, requestID)
	return sum, err
}

func (s *RepaymentStore) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM credit_repayments WHERE reference_number = $1)`, reference)
	return exists, err
}

// CreateWithinLimit locks the parent request and inserts the repayment only
// if the running total stays within totalOwed.
func (s *RepaymentStore) CreateWithinLimit(ctx context.Context, input RepaymentInput, totalOwed int64) (models.CreditRepayment, error) {
	var row models.CreditRepayment
	err := s.runner.WithTx(ctx, func(tx db.Tx) error {
		var locked string
		err := tx.GetContext(ctx, &locked, `
			SELECT id FROM credit_requests
			WHERE id = $1 AND status = 'approved'
			FOR UPDATE
		`, input.CreditRequestID)
		if IsNotFound(err) {
			return ErrNotApproved
		}
		if err != nil {
			return err
		}
		err = tx.GetContext(ctx, &row, `
			INSERT INTO credit_repayments (id, credit_request_id, amount, reference_number)
			SELECT $1, $2, $3, $4
			WHERE (SELECT COALESCE(SUM(amount), 0) FROM credit_repayments WHERE credit_request_id = $2) + $3 <= $5
			RETURNING `+repaymentColumns,
			input.ID, input.CreditRequestID, input.Amount, input.ReferenceNumber, totalOwed)
		if IsNotFound(err) {
			return ErrExceedsOwed
		}
		return err
	})
	if err != nil {
		return models.CreditRepayment{}, err
	}
	return row, nil
}

func (s *RepaymentStore) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]models.CreditRepayment, error) {
	rows := []models.CreditRepayment{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+repaymentColumns+`
		FROM credit_repayments
		WHERE credit_request_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *RepaymentStore) CountByRequest(ctx context.Context, requestID string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM credit_repayments WHERE credit_request_id = $1`, requestID)
	return count, err
}
