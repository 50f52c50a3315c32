package store

import (
	"context"

	"savingscredit/internal/models"
)

const accountColumns = `id, user_id, name, balance, initial_balance, currency, status, created_at, updated_at`

type SavingsStore struct {
	db DB
}

type AccountInput struct {
	ID             string
	UserID         string
	Name           string
	Currency       string
	InitialBalance int64
}

// LedgerCheck compares the cached balance with the one rebuilt from the log.
type LedgerCheck struct {
	AccountID         string `db:"account_id"`
	UserID            string `db:"user_id"`
	Currency          string `db:"currency"`
	StoredBalance     int64  `db:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance"`
	Difference        int64  `db:"difference"`
}

type AccountWithUser struct {
	models.SavingsAccount
	Username string `db:"username"`
	Email    string `db:"email"`
}

func NewSavingsStore(db DB) *SavingsStore {
	return &SavingsStore{db: db}
}

func (s *SavingsStore) Create(ctx context.Context, input AccountInput) (models.SavingsAccount, error) {
	var row models.SavingsAccount
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO savings_accounts (id, user_id, name, balance, initial_balance, currency, status)
		VALUES ($1, $2, $3, $4, $4, $5, 'active')
		RETURNING `+accountColumns,
		input.ID, input.UserID, input.Name, input.InitialBalance, input.Currency)
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return row, nil
}

func (s *SavingsStore) FindByUserID(ctx context.Context, userID string) (models.SavingsAccount, error) {
	var row models.SavingsAccount
	err := s.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM savings_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return row, nil
}

// UpdateDetails leaves a field untouched when its pointer is nil.
func (s *SavingsStore) UpdateDetails(ctx context.Context, userID string, name, currency *string) (models.SavingsAccount, error) {
	var row models.SavingsAccount
	err := s.db.GetContext(ctx, &row, `
		UPDATE savings_accounts
		SET name = COALESCE($2, name), currency = COALESCE($3, currency), updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+accountColumns,
		userID, name, currency)
	if err != nil {
		return models.SavingsAccount{}, err
	}
	return row, nil
}

// SetStatus only moves the account out of fromStatus; zero rows affected
// means someone else already changed it.
func (s *SavingsStore) SetStatus(ctx context.Context, tx Execer, userID, fromStatus, toStatus string) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE savings_accounts
		SET status = $3, updated_at = NOW()
		WHERE user_id = $1 AND status = $2
	`, userID, fromStatus, toStatus)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SavingsStore) DeleteEmpty(ctx context.Context, tx Execer, userID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM savings_accounts WHERE user_id = $1 AND balance = 0`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const ledgerCheckQuery = `
	SELECT a.id AS account_id,
	       a.user_id,
	       a.currency,
	       a.balance AS stored_balance,
	       a.initial_balance + COALESCE(SUM(CASE WHEN t.type = 'deposit' THEN t.amount ELSE -t.amount END), 0) AS calculated_balance,
	       a.balance - (a.initial_balance + COALESCE(SUM(CASE WHEN t.type = 'deposit' THEN t.amount ELSE -t.amount END), 0)) AS difference
	FROM savings_accounts a
	LEFT JOIN transactions t ON t.savings_account_id = a.id
`

func (s *SavingsStore) SelfCheck(ctx context.Context, userID string) (LedgerCheck, error) {
	var row LedgerCheck
	err := s.db.GetContext(ctx, &row, ledgerCheckQuery+`
		WHERE a.user_id = $1
		GROUP BY a.id, a.user_id, a.currency, a.balance, a.initial_balance
	`, userID)
	if err != nil {
		return LedgerCheck{}, err
	}
	return row, nil
}

// Reconcile lists accounts whose cached balance drifted from the log.
func (s *SavingsStore) Reconcile(ctx context.Context) ([]LedgerCheck, error) {
	var rows []LedgerCheck
	err := s.db.SelectContext(ctx, &rows, ledgerCheckQuery+`
		GROUP BY a.id, a.user_id, a.currency, a.balance, a.initial_balance
		HAVING a.balance <> a.initial_balance + COALESCE(SUM(CASE WHEN t.type = 'deposit' THEN t.amount ELSE -t.amount END), 0)
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SavingsStore) CountAll(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM savings_accounts`)
	return count, err
}

func (s *SavingsStore) ListAllWithUsers(ctx context.Context, limit, offset int) ([]AccountWithUser, error) {
	var rows []AccountWithUser
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id, a.user_id, a.name, a.balance, a.initial_balance, a.currency, a.status,
		       a.created_at, a.updated_at, u.username, u.email
		FROM savings_accounts a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
