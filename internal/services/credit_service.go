package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"savingscredit/internal/db"
	"savingscredit/internal/models"
	"savingscredit/internal/money"
	"savingscredit/internal/notifications"
	"savingscredit/internal/reference"
	"savingscredit/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// InterestRate is fixed when a request is created and never re-derived.
const InterestRate = "5.00"

const (
	MinDurationMonths = 1
	MaxDurationMonths = 120
	MinPurposeLength  = 10
	MaxPurposeLength  = 500
)

type CreditRequestStore interface {
	CreateRequest(ctx context.Context, input store.CreditRequestInput) (models.CreditRequest, error)
	FindPendingByUser(ctx context.Context, userID string) (models.CreditRequest, error)
	FindByID(ctx context.Context, id string) (models.CreditRequest, error)
	FindByIDForUser(ctx context.Context, id, userID string) (models.CreditRequest, error)
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]models.CreditRequest, error)
	CountByUser(ctx context.Context, userID, status string) (int, error)
	Decide(ctx context.Context, tx store.Getter, decision store.CreditDecision) (models.CreditRequest, error)
}

type RepaymentStore interface {
	SumByRequest(ctx context.Context, requestID string) (int64, error)
	ReferenceExists(ctx context.Context, reference string) (bool, error)
	CreateWithinLimit(ctx context.Context, input store.RepaymentInput, totalOwed int64) (models.CreditRepayment, error)
	ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]models.CreditRepayment, error)
	CountByRequest(ctx context.Context, requestID string) (int, error)
}

type CreditService struct {
	txRunner   db.TxRunner
	requests   CreditRequestStore
	repayments RepaymentStore
	audit      AuditStore
	refs       *reference.Generator
	notifier   Notifier
	log        logrus.FieldLogger
}

type CreditDeps struct {
	TxRunner   db.TxRunner
	Requests   CreditRequestStore
	Repayments RepaymentStore
	Audit      AuditStore
	References *reference.Generator
	Notifier   Notifier
	Log        logrus.FieldLogger
}

func NewCreditService(deps CreditDeps) *CreditService {
	refs := deps.References
	if refs == nil {
		refs = reference.NewRepaymentGenerator()
	}
	return &CreditService{
		txRunner:   deps.TxRunner,
		requests:   deps.Requests,
		repayments: deps.Repayments,
		audit:      deps.Audit,
		refs:       refs,
		notifier:   deps.Notifier,
		log:        orDiscard(deps.Log),
	}
}

// CreditDetails carries the derived balances next to the stored request.
type CreditDetails struct {
	models.CreditRequest
	TotalOwed        int64
	TotalRepaid      int64
	RemainingBalance int64
}

// TotalOwed is principal * (1 + rate/100), rounded half-even to minor units.
func TotalOwed(request models.CreditRequest) (int64, error) {
	rate, err := decimal.NewFromString(request.InterestRate)
	if err != nil {
		return 0, fmt.Errorf("parse interest rate %q: %w", request.InterestRate, err)
	}
	owed, err := money.ApplyPercent(request.Amount, rate)
	if err != nil {
		return 0, fmt.Errorf("total owed for %d at %s%%: %w", request.Amount, request.InterestRate, err)
	}
	return owed, nil
}

type CreditApplication struct {
	UserID         string
	Amount         int64
	Purpose        string
	DurationMonths int
}

func (s *CreditService) RequestCredit(ctx context.Context, app CreditApplication) (models.CreditRequest, error) {
	if app.Amount <= 0 {
		return models.CreditRequest{}, BadRequest(MsgAmountPositive)
	}
	if app.DurationMonths < MinDurationMonths || app.DurationMonths > MaxDurationMonths {
		return models.CreditRequest{}, BadRequest(MsgDurationRange)
	}
	if _, err := TotalOwed(models.CreditRequest{Amount: app.Amount, InterestRate: InterestRate}); err != nil {
		if errors.Is(err, money.ErrOutOfRange) {
			return models.CreditRequest{}, BadRequest(MsgAmountTooLarge)
		}
		return models.CreditRequest{}, err
	}
	purpose := strings.TrimSpace(app.Purpose)
	if n := utf8.RuneCountInString(purpose); n < MinPurposeLength || n > MaxPurposeLength {
		return models.CreditRequest{}, BadRequest(MsgPurposeLength)
	}
	_, err := s.requests.FindPendingByUser(ctx, app.UserID)
	if err == nil {
		return models.CreditRequest{}, Conflict(MsgPendingExists)
	}
	if !store.IsNotFound(err) {
		return models.CreditRequest{}, err
	}
	request, err := s.requests.CreateRequest(ctx, store.CreditRequestInput{
		ID:             uuid.NewString(),
		UserID:         app.UserID,
		Amount:         app.Amount,
		Purpose:        purpose,
		DurationMonths: app.DurationMonths,
		InterestRate:   InterestRate,
	})
	// A concurrent request slipped between the check and the insert.
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == store.PendingRequestIndex {
		return models.CreditRequest{}, Conflict(MsgPendingExists)
	}
	if err != nil {
		return models.CreditRequest{}, err
	}
	s.notify(ctx, notifications.Message{
		UserID:  app.UserID,
		Type:    models.NotificationInApp,
		Title:   "Credit request submitted",
		Message: fmt.Sprintf("Your credit request for %s over %d months is pending review.", money.FormatMinor(app.Amount), app.DurationMonths),
	})
	return request, nil
}

func (s *CreditService) ListCreditRequests(ctx context.Context, userID, status string, page PageRequest) (Page[models.CreditRequest], error) {
	switch status {
	case "", models.CreditStatusPending, models.CreditStatusApproved, models.CreditStatusRejected:
	default:
		return Page[models.CreditRequest]{}, BadRequest("Invalid status filter: %s", status)
	}
	page = page.Normalize()
	rows, err := s.requests.ListByUser(ctx, userID, status, page.Limit, page.Offset())
	if err != nil {
		return Page[models.CreditRequest]{}, err
	}
	total, err := s.requests.CountByUser(ctx, userID, status)
	if err != nil {
		return Page[models.CreditRequest]{}, err
	}
	return NewPage(rows, total, page), nil
}

// ownedRequest hides requests of other users behind the same NotFound as
// missing ones.
func (s *CreditService) ownedRequest(ctx context.Context, userID, requestID string) (models.CreditRequest, error) {
	request, err := s.requests.FindByIDForUser(ctx, requestID, userID)
	if store.IsNotFound(err) {
		return models.CreditRequest{}, NotFound(MsgCreditNotFound)
	}
	if err != nil {
		return models.CreditRequest{}, err
	}
	return request, nil
}

func (s *CreditService) details(ctx context.Context, request models.CreditRequest) (CreditDetails, error) {
	owed, err := TotalOwed(request)
	if err != nil {
		return CreditDetails{}, err
	}
	paid, err := s.repayments.SumByRequest(ctx, request.ID)
	if err != nil {
		return CreditDetails{}, err
	}
	return CreditDetails{
		CreditRequest:    request,
		TotalOwed:        owed,
		TotalRepaid:      paid,
		RemainingBalance: owed - paid,
	}, nil
}

func (s *CreditService) GetCreditRequest(ctx context.Context, userID, requestID string) (CreditDetails, error) {
	request, err := s.ownedRequest(ctx, userID, requestID)
	if err != nil {
		return CreditDetails{}, err
	}
	return s.details(ctx, request)
}

type RepaymentRequest struct {
	UserID    string
	RequestID string
	Amount    int64
}

type RepaymentResult struct {
	Repayment        models.CreditRepayment
	RemainingBalance int64
}

func (s *CreditService) MakeRepayment(ctx context.Context, req RepaymentRequest) (RepaymentResult, error) {
	request, err := s.ownedRequest(ctx, req.UserID, req.RequestID)
	if err != nil {
		return RepaymentResult{}, err
	}
	if request.Status != models.CreditStatusApproved {
		return RepaymentResult{}, BadRequest(MsgCreditNotApproved)
	}
	if req.Amount <= 0 {
		return RepaymentResult{}, BadRequest(MsgPaymentPositive)
	}
	current, err := s.details(ctx, request)
	if err != nil {
		return RepaymentResult{}, err
	}
	if req.Amount > current.RemainingBalance {
		return RepaymentResult{}, BadRequest(MsgPaymentExceeds, money.FormatMinor(current.RemainingBalance))
	}

	ref, err := s.refs.Generate(ctx, s.repayments.ReferenceExists)
	if err != nil {
		return RepaymentResult{}, fmt.Errorf("generate reference: %w", err)
	}
	repayment, err := s.repayments.CreateWithinLimit(ctx, store.RepaymentInput{
		ID:              uuid.NewString(),
		CreditRequestID: request.ID,
		Amount:          req.Amount,
		ReferenceNumber: ref,
	}, current.TotalOwed)
	switch {
	case errors.Is(err, store.ErrExceedsOwed):
		// Another repayment landed first; report against the fresh history.
		fresh, ferr := s.details(ctx, request)
		if ferr != nil {
			return RepaymentResult{}, ferr
		}
		return RepaymentResult{}, BadRequest(MsgPaymentExceeds, money.FormatMinor(fresh.RemainingBalance))
	case errors.Is(err, store.ErrNotApproved):
		return RepaymentResult{}, BadRequest(MsgCreditNotApproved)
	case err != nil:
		return RepaymentResult{}, err
	}

	remaining := current.RemainingBalance - req.Amount
	s.notify(ctx, notifications.Message{
		UserID:  req.UserID,
		Type:    models.NotificationInApp,
		Title:   "Repayment received",
		Message: fmt.Sprintf("We received %s. Remaining balance: %s. Reference: %s", money.FormatMinor(req.Amount), money.FormatMinor(remaining), ref),
	})
	return RepaymentResult{Repayment: repayment, RemainingBalance: remaining}, nil
}

func (s *CreditService) ListRepayments(ctx context.Context, userID, requestID string, page PageRequest) (Page[models.CreditRepayment], error) {
	if _, err := s.ownedRequest(ctx, userID, requestID); err != nil {
		return Page[models.CreditRepayment]{}, err
	}
	page = page.Normalize()
	rows, err := s.repayments.ListByRequest(ctx, requestID, page.Limit, page.Offset())
	if err != nil {
		return Page[models.CreditRepayment]{}, err
	}
	total, err := s.repayments.CountByRequest(ctx, requestID)
	if err != nil {
		return Page[models.CreditRepayment]{}, err
	}
	return NewPage(rows, total, page), nil
}

func (s *CreditService) ApproveCredit(ctx context.Context, requestID, adminID string) (models.CreditRequest, error) {
	return s.decide(ctx, store.CreditDecision{RequestID: requestID, Status: models.CreditStatusApproved, AdminID: adminID})
}

func (s *CreditService) RejectCredit(ctx context.Context, requestID, adminID, reason string) (models.CreditRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.CreditRequest{}, BadRequest("Rejection reason is required")
	}
	return s.decide(ctx, store.CreditDecision{RequestID: requestID, Status: models.CreditStatusRejected, AdminID: adminID, Reason: &reason})
}

func (s *CreditService) decide(ctx context.Context, decision store.CreditDecision) (models.CreditRequest, error) {
	current, err := s.requests.FindByID(ctx, decision.RequestID)
	if store.IsNotFound(err) {
		return models.CreditRequest{}, NotFound(MsgCreditNotFound)
	}
	if err != nil {
		return models.CreditRequest{}, err
	}
	if current.Status != models.CreditStatusPending {
		return models.CreditRequest{}, BadRequest(MsgCreditNotPending)
	}
	action := store.AuditCreditApproved
	if decision.Status == models.CreditStatusRejected {
		action = store.AuditCreditRejected
	}
	var decided models.CreditRequest
	err = s.txRunner.WithTx(ctx, func(tx db.Tx) error {
		row, err := s.requests.Decide(ctx, tx, decision)
		if errors.Is(err, store.ErrNotPending) {
			return BadRequest(MsgCreditNotPending)
		}
		if err != nil {
			return err
		}
		decided = row
		return s.audit.Log(ctx, tx, decision.AdminID, action, "credit_request", row.ID, map[string]any{
			"status": decision.Status,
			"reason": decision.Reason,
		})
	})
	if err != nil {
		return models.CreditRequest{}, err
	}

	message := fmt.Sprintf("Your credit request for %s has been approved.", money.FormatMinor(decided.Amount))
	if decided.Status == models.CreditStatusRejected {
		message = fmt.Sprintf("Your credit request for %s was rejected: %s", money.FormatMinor(decided.Amount), *decision.Reason)
	}
	s.notify(ctx, notifications.Message{
		UserID:  decided.UserID,
		Type:    models.NotificationInApp,
		Title:   "Credit request " + decided.Status,
		Message: message,
	})
	return decided, nil
}

func (s *CreditService) notify(ctx context.Context, msg notifications.Message) {
	notifyBestEffort(ctx, s.notifier, s.log, msg)
}
