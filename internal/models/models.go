package models

import "time"

const (
	AccountStatusActive = "active"
	AccountStatusFrozen = "frozen"

	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionStatusComplete = "completed"

	CreditStatusPending  = "pending"
	CreditStatusApproved = "approved"
	CreditStatusRejected = "rejected"

	NotificationEmail = "email"
	NotificationSMS   = "sms"
	NotificationInApp = "in_app"
)

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    *string   `db:"first_name" json:"firstName,omitempty"`
	LastName     *string   `db:"last_name" json:"lastName,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// SavingsAccount amounts are minor units.
type SavingsAccount struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Name           string    `db:"name"`
	Balance        int64     `db:"balance"`
	InitialBalance int64     `db:"initial_balance"`
	Currency       string    `db:"currency"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (a SavingsAccount) Frozen() bool {
	return a.Status == AccountStatusFrozen
}

// Transaction rows are append-only.
type Transaction struct {
	ID               string    `db:"id"`
	SavingsAccountID string    `db:"savings_account_id"`
	Type             string    `db:"type"`
	Amount           int64     `db:"amount"`
	BalanceBefore    int64     `db:"balance_before"`
	BalanceAfter     int64     `db:"balance_after"`
	Description      *string   `db:"description"`
	ReferenceNumber  string    `db:"reference_number"`
	Status           string    `db:"status"`
	CreatedAt        time.Time `db:"created_at"`
}

type CreditRequest struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Amount          int64      `db:"amount"`
	Purpose         string     `db:"purpose"`
	DurationMonths  int        `db:"duration_months"`
	InterestRate    string     `db:"interest_rate"`
	Status          string     `db:"status"`
	ApprovedBy      *string    `db:"approved_by"`
	ApprovedAt      *time.Time `db:"approved_at"`
	RejectionReason *string    `db:"rejection_reason"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type CreditRepayment struct {
	ID              string    `db:"id"`
	CreditRequestID string    `db:"credit_request_id"`
	Amount          int64     `db:"amount"`
	ReferenceNumber string    `db:"reference_number"`
	PaymentDate     time.Time `db:"payment_date"`
	CreatedAt       time.Time `db:"created_at"`
}

type Notification struct {
	ID      string    `db:"id" json:"id"`
	UserID  string    `db:"user_id" json:"userId"`
	Type    string    `db:"type" json:"type"`
	Title   string    `db:"title" json:"title"`
	Message string    `db:"message" json:"message"`
	Read    bool      `db:"read" json:"read"`
	SentAt  time.Time `db:"sent_at" json:"sentAt"`
}
