package handlers

import (
	"time"

	"savingscredit/internal/models"
	"savingscredit/internal/money"
	"savingscredit/internal/services"
	"savingscredit/internal/store"
)

// Amounts leave the API as fixed two-decimal strings.

type userView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   *string   `json:"firstName,omitempty"`
	LastName    *string   `json:"lastName,omitempty"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func viewUser(u models.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		PhoneNumber: u.Phone,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

type accountView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Balance        string    `json:"balance"`
	InitialBalance string    `json:"initialBalance"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func viewAccount(a models.SavingsAccount) accountView {
	return accountView{
		ID:             a.ID,
		Name:           a.Name,
		Balance:        money.FormatMinor(a.Balance),
		InitialBalance: money.FormatMinor(a.InitialBalance),
		Currency:       a.Currency,
		Status:         a.Status,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type transactionView struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Amount          string    `json:"amount"`
	BalanceBefore   string    `json:"balanceBefore"`
	BalanceAfter    string    `json:"balanceAfter"`
	Description     *string   `json:"description,omitempty"`
	ReferenceNumber string    `json:"referenceNumber"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

func viewTransaction(t models.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		Type:            t.Type,
		Amount:          money.FormatMinor(t.Amount),
		BalanceBefore:   money.FormatMinor(t.BalanceBefore),
		BalanceAfter:    money.FormatMinor(t.BalanceAfter),
		Description:     t.Description,
		ReferenceNumber: t.ReferenceNumber,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
	}
}

type creditView struct {
	ID              string     `json:"id"`
	Amount          string     `json:"amount"`
	Purpose         string     `json:"purpose"`
	DurationMonths  int        `json:"durationMonths"`
	InterestRate    string     `json:"interestRate"`
	Status          string     `json:"status"`
	ApprovedBy      *string    `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `json:"approvedAt,omitempty"`
	RejectionReason *string    `json:"rejectionReason,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func viewCredit(c models.CreditRequest) creditView {
	return creditView{
		ID:              c.ID,
		Amount:          money.FormatMinor(c.Amount),
		Purpose:         c.Purpose,
		DurationMonths:  c.DurationMonths,
		InterestRate:    c.InterestRate,
		Status:          c.Status,
		ApprovedBy:      c.ApprovedBy,
		ApprovedAt:      c.ApprovedAt,
		RejectionReason: c.RejectionReason,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

type creditDetailsView struct {
	creditView
	TotalOwed        string `json:"totalOwed"`
	TotalRepaid      string `json:"totalRepaid"`
	RemainingBalance string `json:"remainingBalance"`
}

func viewCreditDetails(d services.CreditDetails) creditDetailsView {
	return creditDetailsView{
		creditView:       viewCredit(d.CreditRequest),
		TotalOwed:        money.FormatMinor(d.TotalOwed),
		TotalRepaid:      money.FormatMinor(d.TotalRepaid),
		RemainingBalance: money.FormatMinor(d.RemainingBalance),
	}
}

type repaymentView struct {
	ID              string    `json:"id"`
	CreditRequestID string    `json:"creditRequestId"`
	Amount          string    `json:"amount"`
	ReferenceNumber string    `json:"referenceNumber"`
	PaymentDate     time.Time `json:"paymentDate"`
}

func viewRepayment(r models.CreditRepayment) repaymentView {
	return repaymentView{
		ID:              r.ID,
		CreditRequestID: r.CreditRequestID,
		Amount:          money.FormatMinor(r.Amount),
		ReferenceNumber: r.ReferenceNumber,
		PaymentDate:     r.PaymentDate,
	}
}

type notificationView struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Read    bool      `json:"read"`
	SentAt  time.Time `json:"sentAt"`
}

func viewNotification(n models.Notification) notificationView {
	return notificationView{
		ID:      n.ID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
		Read:    n.Read,
		SentAt:  n.SentAt,
	}
}

type ledgerCheckView struct {
	AccountID         string `json:"accountId"`
	UserID            string `json:"userId"`
	Currency          string `json:"currency"`
	StoredBalance     string `json:"storedBalance"`
	CalculatedBalance string `json:"calculatedBalance"`
	Difference        string `json:"difference"`
	Consistent        bool   `json:"consistent"`
}

func viewLedgerCheck(c store.LedgerCheck) ledgerCheckView {
	return ledgerCheckView{
		AccountID:         c.AccountID,
		UserID:            c.UserID,
		Currency:          c.Currency,
		StoredBalance:     money.FormatMinor(c.StoredBalance),
		CalculatedBalance: money.FormatMinor(c.CalculatedBalance),
		Difference:        money.FormatMinor(c.Difference),
		Consistent:        c.Difference == 0,
	}
}

type adminAccountView struct {
	accountView
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func viewAdminAccount(a store.AccountWithUser) adminAccountView {
	return adminAccountView{
		accountView: viewAccount(a.SavingsAccount),
		UserID:      a.UserID,
		Username:    a.Username,
		Email:       a.Email,
	}
}
