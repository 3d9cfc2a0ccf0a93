package service

import (
	"context"
	"fmt"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Invoice echoes the charge details back to the business caller.
type Invoice struct {
	Reason          string          `json:"reason"`
	Amount          decimal.Decimal `json:"amount"`
	Customer        string          `json:"customer"`
	BusinessAccount string          `json:"business_account"`
}

// Charge debits a customer in favor of one of the caller's business
// accounts. The customer authorizes the charge with their username and PIN.
// The customer's oldest account is debited.
func (s *Service) Charge(ctx context.Context, userID int64, businessNumber, customerUsername, customerPIN string, amount decimal.Decimal, reason, description string) (*models.TransferResult, *Invoice, error) {
	if businessNumber == "" || customerUsername == "" || customerPIN == "" || reason == "" {
		return nil, nil, fmt.Errorf("%w: all fields including reason are required", models.ErrMissingField)
	}
	if !amount.IsPositive() {
		return nil, nil, models.ErrInvalidAmount
	}

	business, err := s.store.FindAccountByNumber(ctx, businessNumber)
	if err != nil {
		return nil, nil, err
	}
	if business.UserID != userID {
		return nil, nil, models.ErrNotOwner
	}
	if business.AccountType != models.AccountTypeBusiness {
		return nil, nil, models.ErrNotBusiness
	}

	customer, err := s.store.FindUserByUsername(ctx, customerUsername)
	if err != nil {
		// Do not reveal whether the username exists.
		return nil, nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(customer.PINHash), []byte(customerPIN)); err != nil {
		return nil, nil, models.ErrInvalidCredentials
	}

	customerAccount, err := s.store.FindOldestAccountByUser(ctx, customer.ID)
	if err != nil {
		return nil, nil, err
	}
	if customerAccount.ID == business.ID {
		return nil, nil, models.ErrSameAccount
	}

	fullDescription := fmt.Sprintf("INVOICE: %s", reason)
	if description != "" {
		fullDescription += fmt.Sprintf(" - %s", description)
	}

	result, err := s.store.Transfer(ctx, customerAccount.ID, business.ID, amount, fullDescription, models.TransactionTypeCharge)
	if err != nil {
		return nil, nil, err
	}

	invoice := &Invoice{
		Reason:          reason,
		Amount:          amount,
		Customer:        customerUsername,
		BusinessAccount: businessNumber,
	}

	s.log.Infof("Charge %s: customer %s -> business %s", amount, customerUsername, businessNumber)
	s.publishTransaction(result.Transaction)
	return result, invoice, nil
}
