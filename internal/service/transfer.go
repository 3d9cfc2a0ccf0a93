package service

import (
	"context"
	"fmt"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Transfer moves amount from one of the caller's accounts to any other
// account. On any error no balance changes and no transaction is recorded.
func (s *Service) Transfer(ctx context.Context, userID int64, fromNumber, toNumber string, amount decimal.Decimal, description string) (*models.TransferResult, error) {
	if fromNumber == "" || toNumber == "" {
		return nil, fmt.Errorf("%w: from_account_number and to_account_number", models.ErrMissingField)
	}
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if fromNumber == toNumber {
		return nil, models.ErrSameAccount
	}

	from, err := s.store.FindAccountByNumber(ctx, fromNumber)
	if err != nil {
		return nil, err
	}
	if from.UserID != userID {
		return nil, models.ErrNotOwner
	}
	to, err := s.store.FindAccountByNumber(ctx, toNumber)
	if err != nil {
		return nil, err
	}

	result, err := s.store.Transfer(ctx, from.ID, to.ID, amount, description, models.TransactionTypeTransfer)
	if err != nil {
		return nil, err
	}

	s.log.Infof("Transfer %s: %s -> %s", amount, fromNumber, toNumber)
	s.publishTransaction(result.Transaction)
	return result, nil
}
