package store

import (
	"context"
	"errors"
	"strconv"

	"savingscredit/internal/models"
)

const creditColumns = `id, user_id, amount, purpose, duration_months, interest_rate::text AS interest_rate, status,
	approved_by, approved_at, rejection_reason, created_at, updated_at`

// PendingRequestIndex is the partial unique index allowing one pending
// request per user.
const PendingRequestIndex = "credit_requests_one_pending"

// ErrNotPending is returned by Decide when the request already left pending.
var ErrNotPending = errors.New("credit request is not pending")

type CreditStore struct {
	db DB
}

type CreditRequestInput struct {
	ID             string
	UserID         string
	Amount         int64
	Purpose        string
	DurationMonths int
	InterestRate   string
}

type CreditDecision struct {
	RequestID string
	Status    string
	AdminID   string
	Reason    *string
}

func NewCreditStore(db DB) *CreditStore {
	return &CreditStore{db: db}
}

func (s *CreditStore) CreateRequest(ctx context.Context, input CreditRequestInput) (models.CreditRequest, error) {
	var row models.CreditRequest
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO credit_requests (id, user_id, amount, purpose, duration_months, interest_rate, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+creditColumns,
		input.ID, input.UserID, input.Amount, input.Purpose, input.DurationMonths, input.InterestRate)
	if err != nil {
		return models.CreditRequest{}, err
	}
	return row, nil
}

func (s *CreditStore) FindPendingByUser(ctx context.Context, userID string) (models.CreditRequest, error) {
	var row models.CreditRequest
	err := s.db.GetContext(ctx, &row, `
		SELECT `+creditColumns+`
		FROM credit_requests
		WHERE user_id = $1 AND status = 'pending'
		LIMIT 1
	`, userID)
	if err != nil {
		return models.CreditRequest{}, err
	}
	return row, nil
}

func (s *CreditStore) FindByID(ctx context.Context, id string) (models.CreditRequest, error) {
	var row models.CreditRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+creditColumns+` FROM credit_requests WHERE id = $1`, id)
	if err != nil {
		return models.CreditRequest{}, err
	}
	return row, nil
}

// FindByIDForUser returns sql.ErrNoRows both for unknown ids and for
// requests owned by someone else.
func (s *CreditStore) FindByIDForUser(ctx context.Context, id, userID string) (models.CreditRequest, error) {
	var row models.CreditRequest
	err := s.db.GetContext(ctx, &row, `
		SELECT `+creditColumns+`
		FROM credit_requests
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return models.CreditRequest{}, err
	}
	return row, nil
}

func (s *CreditStore) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]models.CreditRequest, error) {
	query := `SELECT ` + creditColumns + ` FROM credit_requests WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)
	rows := []models.CreditRequest{}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *CreditStore) CountByUser(ctx context.Context, userID, status string) (int, error) {
	query := `SELECT COUNT(1) FROM credit_requests WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	var count int
	err := s.db.GetContext(ctx, &count, query, args...)
	return count, err
}

// Decide moves a pending request to approved or rejected.
func (s *CreditStore) Decide(ctx context.Context, tx Getter, decision CreditDecision) (models.CreditRequest, error) {
	var row models.CreditRequest
	err := tx.GetContext(ctx, &row, `
		UPDATE credit_requests
		SET status = $2,
		    approved_by = $3,
		    approved_at = CASE WHEN $2 = 'approved' THEN NOW() ELSE NULL END,
		    rejection_reason = $4,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+creditColumns,
		decision.RequestID, decision.Status, decision.AdminID, decision.Reason)
	if IsNotFound(err) {
		return models.CreditRequest{}, ErrNotPending
	}
	if err != nil {
		return models.CreditRequest{}, err
	}
	return row, nil
}
