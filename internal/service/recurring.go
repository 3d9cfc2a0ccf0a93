package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ProcessResult aggregates one due-processing run.
type ProcessResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// CreateRecurringPayment schedules a recurring payment from one of the
// caller's business accounts. The first payment falls due one full cadence
// offset from now.
func (s *Service) CreateRecurringPayment(ctx context.Context, userID int64, businessNumber, recipientNumber string, amount decimal.Decimal, description, frequency string) (*models.RecurringPayment, error) {
	if businessNumber == "" || recipientNumber == "" {
		return nil, fmt.Errorf("%w: business and recipient account numbers", models.ErrMissingField)
	}
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if description == "" {
		description = "Salary Payment"
	}
	if frequency == "" {
		frequency = models.FrequencyMonthly
	}
	offset, ok := models.CadenceOffset(frequency)
	if !ok {
		return nil, models.ErrInvalidFrequency
	}

	business, err := s.store.FindAccountByNumber(ctx, businessNumber)
	if err != nil {
		return nil, err
	}
	if business.UserID != userID {
		return nil, models.ErrNotOwner
	}
	if business.AccountType != models.AccountTypeBusiness {
		return nil, models.ErrNotBusiness
	}

	recipient, err := s.store.FindAccountByNumber(ctx, recipientNumber)
	if err != nil {
		return nil, err
	}

	payment := &models.RecurringPayment{
		FromAccountID:   business.ID,
		ToAccountID:     recipient.ID,
		Amount:          amount,
		Description:     description,
		Frequency:       frequency,
		IsActive:        true,
		NextPaymentDate: time.Now().UTC().Add(offset),
	}
	if err := s.store.CreateRecurringPayment(ctx, payment); err != nil {
		return nil, err
	}
	payment.FromAccountNumber = business.AccountNumber
	payment.ToAccountNumber = recipient.AccountNumber

	s.log.Infof("Recurring payment %d created: %s %s from %s", payment.ID, frequency, amount, businessNumber)
	return payment, nil
}

// ListRecurringPayments lists recurring payments drawn from the caller's
// business accounts.
func (s *Service) ListRecurringPayments(ctx context.Context, userID int64) ([]models.RecurringPayment, error) {
	return s.store.FindRecurringPaymentsByUser(ctx, userID)
}

// CancelRecurringPayment deactivates a payment. The row is kept for history;
// cancelling an already-inactive payment succeeds silently.
func (s *Service) CancelRecurringPayment(ctx context.Context, userID, paymentID int64) error {
	payment, err := s.store.FindRecurringPaymentByID(ctx, paymentID)
	if err != nil {
		return err
	}

	source, err := s.store.FindAccountByID(ctx, payment.FromAccountID)
	if err != nil {
		return models.ErrUnauthorized
	}
	if source.UserID != userID || source.AccountType != models.AccountTypeBusiness {
		return models.ErrUnauthorized
	}

	if err := s.store.DeactivateRecurringPayment(ctx, paymentID); err != nil {
		return err
	}
	s.log.Infof("Recurring payment %d cancelled", paymentID)
	return nil
}

// ProcessDuePayments settles every active payment whose due date has passed.
// Each payment is settled independently: a failure (typically insufficient
// funds) is counted and the payment stays due for the next run, and never
// stops the rest of the batch. The store re-checks dueness under its own
// lock and advances the due date by the fixed cadence offset from the prior
// due date, so a payment settled by a concurrent run is skipped here, not
// settled again and not counted as failed.
func (s *Service) ProcessDuePayments(ctx context.Context, now time.Time) (ProcessResult, error) {
	due, err := s.store.FindDueRecurringPayments(ctx, now)
	if err != nil {
		return ProcessResult{}, err
	}

	var result ProcessResult
	for _, payment := range due {
		description := fmt.Sprintf("SALARY: %s", payment.Description)

		txn, err := s.store.SettleRecurringPayment(ctx, payment.ID, description, now)
		switch {
		case errors.Is(err, models.ErrPaymentNotDue) || errors.Is(err, models.ErrPaymentNotFound):
			// Settled or cancelled by a concurrent run since the due list
			// was read.
			continue
		case err != nil:
			s.log.Warnf("Recurring payment %d not settled: %v", payment.ID, err)
			result.Failed++
		default:
			result.Processed++
			s.publishTransaction(txn)
		}
	}

	s.log.Infof("Due payments run: %d processed, %d failed", result.Processed, result.Failed)
	return result, nil
}
