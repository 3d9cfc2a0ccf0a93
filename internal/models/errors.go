package models

import "errors"

// Domain errors. The ledger engine and the stores return these; the HTTP
// layer maps them to status codes.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPaymentNotFound    = errors.New("recurring payment not found")
	ErrPaymentNotDue      = errors.New("recurring payment is not due")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateAccount   = errors.New("account number already exists")
	ErrInvalidCredentials = errors.New("invalid username or PIN")
	ErrInvalidPIN         = errors.New("PIN must be exactly 4 digits")
	ErrNotOwner           = errors.New("account not owned by caller")
	ErrNotBusiness        = errors.New("not a business account")
	ErrNoCustomerAccount  = errors.New("customer has no account")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidFrequency   = errors.New("frequency must be weekly, monthly, or yearly")
	ErrInvalidAccountType = errors.New("account type must be personal or business")
	ErrSameAccount        = errors.New("source and destination accounts are the same")
	ErrMissingField       = errors.New("missing required field")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnauthorized       = errors.New("not authorized for this resource")
)
