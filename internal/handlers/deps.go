package handlers

import (
	"context"

	"savingscredit/internal/models"
	"savingscredit/internal/notifications"
	"savingscredit/internal/services"
	"savingscredit/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, input store.ProfileInput) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// AccountDirectory is the admin-side read view over savings accounts.
type AccountDirectory interface {
	ListAllWithUsers(ctx context.Context, limit, offset int) ([]store.AccountWithUser, error)
	CountAll(ctx context.Context) (int, error)
	Reconcile(ctx context.Context) ([]store.LedgerCheck, error)
}

type AdminStore interface {
	Status(ctx context.Context, userID string) (store.AdminStatus, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
	Roles(ctx context.Context, userID string) ([]string, error)
	CreateAdmin(ctx context.Context, tx store.Execer, userID string, isSuper bool, createdBy *string) error
	GrantRole(ctx context.Context, tx store.Execer, adminUserID, role string) error
	HasAnyAdmin(ctx context.Context) (bool, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID string, data any) error
	List(ctx context.Context, limit, offset int) ([]store.AuditLog, error)
	Count(ctx context.Context) (int, error)
}

type SavingsService interface {
	CreateAccount(ctx context.Context, req services.CreateAccountRequest) (models.SavingsAccount, error)
	GetAccount(ctx context.Context, userID string) (models.SavingsAccount, error)
	GetBalance(ctx context.Context, userID string) (services.Balance, error)
	Deposit(ctx context.Context, req services.MovementRequest) (models.Transaction, error)
	Withdraw(ctx context.Context, req services.MovementRequest) (models.Transaction, error)
	ListTransactions(ctx context.Context, userID string, page services.PageRequest) (services.Page[models.Transaction], error)
	Freeze(ctx context.Context, userID string) error
	Unfreeze(ctx context.Context, userID string) error
	UpdateAccount(ctx context.Context, req services.UpdateAccountRequest) (models.SavingsAccount, error)
	DeleteAccount(ctx context.Context, userID string) error
	SelfCheck(ctx context.Context, userID string) (store.LedgerCheck, error)
}

type CreditService interface {
	RequestCredit(ctx context.Context, app services.CreditApplication) (models.CreditRequest, error)
	ListCreditRequests(ctx context.Context, userID, status string, page services.PageRequest) (services.Page[models.CreditRequest], error)
	GetCreditRequest(ctx context.Context, userID, requestID string) (services.CreditDetails, error)
	MakeRepayment(ctx context.Context, req services.RepaymentRequest) (services.RepaymentResult, error)
	ListRepayments(ctx context.Context, userID, requestID string, page services.PageRequest) (services.Page[models.CreditRepayment], error)
	ApproveCredit(ctx context.Context, requestID, adminID string) (models.CreditRequest, error)
	RejectCredit(ctx context.Context, requestID, adminID, reason string) (models.CreditRequest, error)
}

type NotificationService interface {
	Create(ctx context.Context, msg notifications.Message) (models.Notification, error)
	List(ctx context.Context, userID string, unreadOnly bool, page services.PageRequest) (services.Page[models.Notification], error)
	MarkRead(ctx context.Context, userID, notificationID string) (models.Notification, error)
}
