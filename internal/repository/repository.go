package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/dmarkov/bank-ledger/internal/service"
	"github.com/lib/pq"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// Compile-time check: the repository satisfies the ledger engine's store
// contract.
var _ service.Store = (*Repository)(nil)

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// CreateUserWithAccount creates a user and their first account in one
// database transaction, so neither row is committed without the other.
func (r *Repository) CreateUserWithAccount(ctx context.Context, user *models.User, account *models.Account) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	err = dbTx.QueryRowContext(ctx, `
		INSERT INTO bank.users (username, pin_hash, created_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		RETURNING id, created_at`,
		user.Username, user.PINHash).
		Scan(&user.ID, &user.CreatedAt)
	if isUniqueViolation(err) {
		err = models.ErrDuplicateUsername
		return err
	}
	if err != nil {
		err = fmt.Errorf("failed to create user: %w", err)
		return err
	}

	account.UserID = user.ID
	err = dbTx.QueryRowContext(ctx, `
		INSERT INTO bank.accounts (account_number, account_type, balance, user_id, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`,
		account.AccountNumber, account.AccountType, account.Balance, account.UserID).
		Scan(&account.ID, &account.CreatedAt)
	if isUniqueViolation(err) {
		err = models.ErrDuplicateAccount
		return err
	}
	if err != nil {
		err = fmt.Errorf("failed to create account: %w", err)
		return err
	}

	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registration: %w", err)
	}
	return nil
}

// FindUserByUsername retrieves a user by username
func (r *Repository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, pin_hash, created_at
		FROM bank.users
		WHERE username = $1`
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&user.ID, &user.Username, &user.PINHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

const accountColumns = `id, account_number, account_type, balance, user_id, created_at`

func scanAccount(row *sql.Row) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.AccountNumber, &account.AccountType,
		&account.Balance, &account.UserID, &account.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}

// FindAccountByID retrieves an account by its internal id
func (r *Repository) FindAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

// FindAccountByNumber retrieves an account by its account number
func (r *Repository) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE account_number = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, number))
}

// FindAccountsByUser retrieves all accounts owned by a user, oldest first
func (r *Repository) FindAccountsByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE user_id = $1 ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.AccountNumber, &account.AccountType,
			&account.Balance, &account.UserID, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// FindOldestAccountByUser retrieves the user's first account by creation
// time, id as tie-break. Used by the charge flow to pick the customer
// account deterministically.
func (r *Repository) FindOldestAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM bank.accounts
		WHERE user_id = $1
		ORDER BY created_at, id
		LIMIT 1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if err == models.ErrAccountNotFound {
		return nil, models.ErrNoCustomerAccount
	}
	return account, err
}

// FindAccountSummary retrieves the privacy-limited projection of an account
func (r *Repository) FindAccountSummary(ctx context.Context, number string) (*models.AccountSummary, error) {
	summary := &models.AccountSummary{}
	query := `
		SELECT a.account_number, a.account_type, u.username
		FROM bank.accounts a
		JOIN bank.users u ON u.id = a.user_id
		WHERE a.account_number = $1`
	err := r.db.QueryRowContext(ctx, query, number).
		Scan(&summary.AccountNumber, &summary.AccountType, &summary.OwnerUsername)
	if err == sql.ErrNoRows {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account summary: %w", err)
	}
	return summary, nil
}
