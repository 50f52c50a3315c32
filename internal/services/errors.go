package services

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a user-correctable domain failure. Anything else reaching the
// HTTP layer is treated as internal.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// AsError unwraps err to a domain *Error.
func AsError(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	domainErr, ok := AsError(err)
	return ok && domainErr.Kind == kind
}

const (
	MsgAccountNotFound      = "Savings account not found"
	MsgAccountExists        = "Savings account already exists"
	MsgAccountFrozen        = "Account is frozen. Cannot perform transactions."
	MsgAlreadyFrozen        = "Account is already frozen"
	MsgAlreadyActive        = "Account is already active"
	MsgInsufficientBalance  = "Insufficient balance"
	MsgAmountPositive       = "Amount must be greater than 0"
	MsgAmountTooLarge       = "Amount is too large"
	MsgNegativeDeposit      = "Initial deposit cannot be negative"
	MsgNonZeroDelete        = "Cannot delete account with non-zero balance. Please withdraw all funds first."
	MsgAccountChanged       = "Account changed while processing the request. Please try again."
	MsgCreditNotFound       = "Credit request not found"
	MsgPendingExists        = "You already have a pending credit request"
	MsgDurationRange        = "Duration must be between 1 and 120 months"
	MsgPurposeLength        = "Purpose must be between 10 and 500 characters"
	MsgCreditNotApproved    = "Credit request must be approved before making repayments"
	MsgPaymentPositive      = "Payment amount must be greater than 0"
	MsgPaymentExceeds       = "Payment amount exceeds remaining balance. Remaining: %s"
	MsgCreditNotPending     = "Only pending credit requests can be reviewed"
	MsgNotificationNotFound = "Notification not found"
)
