package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// lockAccount reads an account's balance inside tx, blocking concurrent
// ledger operations on the same row until commit.
func lockAccount(ctx context.Context, tx *sql.Tx, id int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM bank.accounts WHERE id = $1 FOR UPDATE`, id).
		Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, models.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock account %d: %w", id, err)
	}
	return balance, nil
}

// lockPair locks both accounts in ascending id order so that two transfers
// touching the same pair can never deadlock.
func lockPair(ctx context.Context, tx *sql.Tx, fromID, toID int64) (fromBalance, toBalance decimal.Decimal, err error) {
	if fromID < toID {
		if fromBalance, err = lockAccount(ctx, tx, fromID); err != nil {
			return
		}
		toBalance, err = lockAccount(ctx, tx, toID)
		return
	}
	if toBalance, err = lockAccount(ctx, tx, toID); err != nil {
		return
	}
	fromBalance, err = lockAccount(ctx, tx, fromID)
	return
}

func updateBalance(ctx context.Context, tx *sql.Tx, id int64, balance decimal.Decimal) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE bank.accounts SET balance = $1 WHERE id = $2`, balance, id); err != nil {
		return fmt.Errorf("failed to update balance of account %d: %w", id, err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn *models.Transaction) error {
	query := `
		INSERT INTO bank.transactions (from_account_id, to_account_id, amount, description, transaction_type, created_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query,
		txn.FromAccountID, txn.ToAccountID, txn.Amount, txn.Description, txn.TransactionType).
		Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// Transfer moves amount between two accounts and appends the transaction
// record as one database transaction. The balance check and both mutations
// happen under row locks; on any error nothing is committed.
func (r *Repository) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, description, transactionType string) (*models.TransferResult, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	fromBalance, toBalance, err := lockPair(ctx, dbTx, fromAccountID, toAccountID)
	if err != nil {
		return nil, err
	}

	if fromBalance.LessThan(amount) {
		err = models.ErrInsufficientFunds
		return nil, err
	}

	fromBalance = fromBalance.Sub(amount)
	toBalance = toBalance.Add(amount)
	if err = updateBalance(ctx, dbTx, fromAccountID, fromBalance); err != nil {
		return nil, err
	}
	if err = updateBalance(ctx, dbTx, toAccountID, toBalance); err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		FromAccountID:   fromAccountID,
		ToAccountID:     toAccountID,
		Amount:          amount,
		Description:     description,
		TransactionType: transactionType,
	}
	if err = insertTransaction(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	if err = dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return &models.TransferResult{
		Transaction: txn,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	}, nil
}

// FindTransactionsByAccount lists all transactions touching an account,
// newest first
func (r *Repository) FindTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	query := `
		SELECT id, from_account_id, to_account_id, amount, description, transaction_type, created_at
		FROM bank.transactions
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		var txn models.Transaction
		if err := rows.Scan(&txn.ID, &txn.FromAccountID, &txn.ToAccountID,
			&txn.Amount, &txn.Description, &txn.TransactionType, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}
