package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
)

// CreateRecurringPayment creates a new recurring payment in the database
func (r *Repository) CreateRecurringPayment(ctx context.Context, payment *models.RecurringPayment) error {
	query := `
		INSERT INTO bank.recurring_payments
			(from_account_id, to_account_id, amount, description, frequency, is_active, next_payment_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query,
		payment.FromAccountID, payment.ToAccountID, payment.Amount,
		payment.Description, payment.Frequency, payment.IsActive, payment.NextPaymentDate).
		Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create recurring payment: %w", err)
	}
	return nil
}

const recurringColumns = `id, from_account_id, to_account_id, amount, description, frequency, is_active, next_payment_date, created_at`

func scanRecurring(scan func(dest ...any) error) (*models.RecurringPayment, error) {
	payment := &models.RecurringPayment{}
	err := scan(&payment.ID, &payment.FromAccountID, &payment.ToAccountID,
		&payment.Amount, &payment.Description, &payment.Frequency,
		&payment.IsActive, &payment.NextPaymentDate, &payment.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
	}
	return payment, nil
}

// FindRecurringPaymentByID retrieves a recurring payment by id
func (r *Repository) FindRecurringPaymentByID(ctx context.Context, id int64) (*models.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + ` FROM bank.recurring_payments WHERE id = $1`
	return scanRecurring(r.db.QueryRowContext(ctx, query, id).Scan)
}

// FindRecurringPaymentsByUser lists recurring payments drawn from the user's
// business accounts, enriched with account numbers and the recipient's
// username for display.
func (r *Repository) FindRecurringPaymentsByUser(ctx context.Context, userID int64) ([]models.RecurringPayment, error) {
	query := `
		SELECT p.id, p.from_account_id, p.to_account_id, p.amount, p.description,
			p.frequency, p.is_active, p.next_payment_date, p.created_at,
			src.account_number, dst.account_number, ru.username
		FROM bank.recurring_payments p
		JOIN bank.accounts src ON src.id = p.from_account_id
		JOIN bank.accounts dst ON dst.id = p.to_account_id
		JOIN bank.users ru ON ru.id = dst.user_id
		WHERE src.user_id = $1 AND src.account_type = $2
		ORDER BY p.created_at, p.id`
	rows, err := r.db.QueryContext(ctx, query, userID, models.AccountTypeBusiness)
	if err != nil {
		return nil, fmt.Errorf("failed to list recurring payments: %w", err)
	}
	defer rows.Close()

	var payments []models.RecurringPayment
	for rows.Next() {
		var p models.RecurringPayment
		if err := rows.Scan(&p.ID, &p.FromAccountID, &p.ToAccountID, &p.Amount,
			&p.Description, &p.Frequency, &p.IsActive, &p.NextPaymentDate, &p.CreatedAt,
			&p.FromAccountNumber, &p.ToAccountNumber, &p.RecipientUsername); err != nil {
			return nil, fmt.Errorf("failed to scan recurring payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// DeactivateRecurringPayment clears the active flag. The row is kept;
// cancellation is a soft state transition and repeating it is a no-op.
func (r *Repository) DeactivateRecurringPayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE bank.recurring_payments SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel recurring payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to cancel recurring payment: %w", err)
	}
	if affected == 0 {
		return models.ErrPaymentNotFound
	}
	return nil
}

// FindDueRecurringPayments lists active payments whose next payment date has
// passed
func (r *Repository) FindDueRecurringPayments(ctx context.Context, now time.Time) ([]models.RecurringPayment, error) {
	query := `SELECT ` + recurringColumns + `
		FROM bank.recurring_payments
		WHERE is_active = TRUE AND next_payment_date <= $1
		ORDER BY next_payment_date, id`
	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due payments: %w", err)
	}
	defer rows.Close()

	var payments []models.RecurringPayment
	for rows.Next() {
		p, err := scanRecurring(rows.Scan)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// SettleRecurringPayment executes one due payment: re-reads the payment row
// under lock, verifies it is still active and still due at now, moves the
// funds, appends the salary transaction, and advances the next payment date
// by one cadence offset from the locked row's prior due date, all in one
// database transaction. A payment no longer due returns ErrPaymentNotDue
// with no mutation; a concurrent run that settled it first already advanced
// the due date past now. Insufficient funds aborts with no mutation, leaving
// the payment due for the next run.
func (r *Repository) SettleRecurringPayment(ctx context.Context, paymentID int64, description string, now time.Time) (*models.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	payment, err := scanRecurring(dbTx.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM bank.recurring_payments WHERE id = $1 FOR UPDATE`,
		paymentID).Scan)
	if err != nil {
		return nil, err
	}
	if !payment.IsActive {
		err = models.ErrPaymentNotFound
		return nil, err
	}
	if payment.NextPaymentDate.After(now) {
		err = models.ErrPaymentNotDue
		return nil, err
	}
	offset, ok := models.CadenceOffset(payment.Frequency)
	if !ok {
		err = fmt.Errorf("recurring payment %d has unknown frequency %q", paymentID, payment.Frequency)
		return nil, err
	}
	nextDue := payment.NextPaymentDate.Add(offset)

	fromBalance, toBalance, err := lockPair(ctx, dbTx, payment.FromAccountID, payment.ToAccountID)
	if err != nil {
		return nil, err
	}
	if fromBalance.LessThan(payment.Amount) {
		err = models.ErrInsufficientFunds
		return nil, err
	}

	if err = updateBalance(ctx, dbTx, payment.FromAccountID, fromBalance.Sub(payment.Amount)); err != nil {
		return nil, err
	}
	if err = updateBalance(ctx, dbTx, payment.ToAccountID, toBalance.Add(payment.Amount)); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		FromAccountID:   payment.FromAccountID,
		ToAccountID:     payment.ToAccountID,
		Amount:          payment.Amount,
		Description:     description,
		TransactionType: models.TransactionTypeSalary,
	}
	if err = insertTransaction(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	if _, err = dbTx.ExecContext(ctx,
		`UPDATE bank.recurring_payments SET next_payment_date = $1 WHERE id = $2`,
		nextDue, paymentID); err != nil {
		err = fmt.Errorf("failed to advance payment schedule: %w", err)
		return nil, err
	}

	if err = dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return txn, nil
}
