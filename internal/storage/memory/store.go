// Package memory holds an in-memory implementation of the ledger engine's
// store contract. It backs the tests; production uses the Postgres
// repository. A single mutex serializes every operation, which makes the
// atomic ledger operations trivially all-or-nothing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	nextUserID    int64
	nextAccountID int64
	nextTxnID     int64
	nextPaymentID int64

	users        map[int64]*models.User
	usersByName  map[string]*models.User
	accounts     map[int64]*models.Account
	byNumber     map[string]*models.Account
	transactions []models.Transaction
	payments     map[int64]*models.RecurringPayment
}

func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*models.User),
		usersByName: make(map[string]*models.User),
		accounts:    make(map[int64]*models.Account),
		byNumber:    make(map[string]*models.Account),
		payments:    make(map[int64]*models.RecurringPayment),
	}
}

// CreateUserWithAccount creates the user and their first account as one
// step: both duplicate checks run before either map mutates, so a rejected
// account leaves no user behind.
func (s *Store) CreateUserWithAccount(ctx context.Context, user *models.User, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[user.Username]; exists {
		return models.ErrDuplicateUsername
	}
	if _, exists := s.byNumber[account.AccountNumber]; exists {
		return models.ErrDuplicateAccount
	}

	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now().UTC()
	ucp := *user
	s.users[user.ID] = &ucp
	s.usersByName[user.Username] = &ucp

	s.nextAccountID++
	account.ID = s.nextAccountID
	account.UserID = user.ID
	account.CreatedAt = time.Now().UTC()
	acp := *account
	s.accounts[account.ID] = &acp
	s.byNumber[account.AccountNumber] = &acp
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByName[username]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[account.AccountNumber]; exists {
		return models.ErrDuplicateAccount
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	account.CreatedAt = time.Now().UTC()
	cp := *account
	s.accounts[account.ID] = &cp
	s.byNumber[account.AccountNumber] = &cp
	return nil
}

func (s *Store) FindAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byNumber[number]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

// accountsOfUser returns the user's accounts oldest first; callers hold the
// lock.
func (s *Store) accountsOfUser(userID int64) []*models.Account {
	var accounts []*models.Account
	for _, account := range s.accounts {
		if account.UserID == userID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts
}

func (s *Store) FindAccountsByUser(ctx context.Context, userID int64) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Account
	for _, account := range s.accountsOfUser(userID) {
		out = append(out, *account)
	}
	return out, nil
}

func (s *Store) FindOldestAccountByUser(ctx context.Context, userID int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.accountsOfUser(userID)
	if len(accounts) == 0 {
		return nil, models.ErrNoCustomerAccount
	}
	cp := *accounts[0]
	return &cp, nil
}

func (s *Store) FindAccountSummary(ctx context.Context, number string) (*models.AccountSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.byNumber[number]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	owner := s.users[account.UserID]
	summary := &models.AccountSummary{
		AccountNumber: account.AccountNumber,
		AccountType:   account.AccountType,
	}
	if owner != nil {
		summary.OwnerUsername = owner.Username
	}
	return summary, nil
}

// settle moves amount between two accounts and appends the transaction
// record; callers hold the lock, so the balance check and both mutations are
// one indivisible step.
func (s *Store) settle(fromID, toID int64, amount decimal.Decimal, description, transactionType string) (*models.TransferResult, error) {
	from, ok := s.accounts[fromID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	to, ok := s.accounts[toID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	if from.Balance.LessThan(amount) {
		return nil, models.ErrInsufficientFunds
	}

	from.Balance = from.Balance.Sub(amount)
	to.Balance = to.Balance.Add(amount)

	s.nextTxnID++
	txn := models.Transaction{
		ID:              s.nextTxnID,
		FromAccountID:   fromID,
		ToAccountID:     toID,
		Amount:          amount,
		Description:     description,
		TransactionType: transactionType,
		CreatedAt:       time.Now().UTC(),
	}
	s.transactions = append(s.transactions, txn)
	return &models.TransferResult{
		Transaction: &txn,
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
	}, nil
}

func (s *Store) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, description, transactionType string) (*models.TransferResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settle(fromAccountID, toAccountID, amount, description, transactionType)
}

func (s *Store) FindTransactionsByAccount(ctx context.Context, accountID int64) ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Transaction
	for _, txn := range s.transactions {
		if txn.FromAccountID == accountID || txn.ToAccountID == accountID {
			out = append(out, txn)
		}
	}
	// Newest first
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CreateRecurringPayment(ctx context.Context, payment *models.RecurringPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPaymentID++
	payment.ID = s.nextPaymentID
	payment.CreatedAt = time.Now().UTC()
	cp := *payment
	s.payments[payment.ID] = &cp
	return nil
}

func (s *Store) FindRecurringPaymentByID(ctx context.Context, id int64) (*models.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, models.ErrPaymentNotFound
	}
	cp := *payment
	return &cp, nil
}

func (s *Store) FindRecurringPaymentsByUser(ctx context.Context, userID int64) ([]models.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RecurringPayment
	for _, payment := range s.payments {
		src, ok := s.accounts[payment.FromAccountID]
		if !ok || src.UserID != userID || src.AccountType != models.AccountTypeBusiness {
			continue
		}
		cp := *payment
		cp.FromAccountNumber = src.AccountNumber
		if dst, ok := s.accounts[payment.ToAccountID]; ok {
			cp.ToAccountNumber = dst.AccountNumber
			if recipient, ok := s.users[dst.UserID]; ok {
				cp.RecipientUsername = recipient.Username
			}
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeactivateRecurringPayment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return models.ErrPaymentNotFound
	}
	payment.IsActive = false
	return nil
}

func (s *Store) FindDueRecurringPayments(ctx context.Context, now time.Time) ([]models.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RecurringPayment
	for _, payment := range s.payments {
		if payment.IsActive && !payment.NextPaymentDate.After(now) {
			out = append(out, *payment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SettleRecurringPayment re-checks, under the lock, that the payment is
// still active and still due at now before moving any money; a payment a
// concurrent run already settled comes back ErrPaymentNotDue because its
// due date has moved past now. The due date advances by one cadence offset
// from the prior due date.
func (s *Store) SettleRecurringPayment(ctx context.Context, paymentID int64, description string, now time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[paymentID]
	if !ok || !payment.IsActive {
		return nil, models.ErrPaymentNotFound
	}
	if payment.NextPaymentDate.After(now) {
		return nil, models.ErrPaymentNotDue
	}
	offset, ok := models.CadenceOffset(payment.Frequency)
	if !ok {
		return nil, fmt.Errorf("recurring payment %d has unknown frequency %q", paymentID, payment.Frequency)
	}
	result, err := s.settle(payment.FromAccountID, payment.ToAccountID, payment.Amount, description, models.TransactionTypeSalary)
	if err != nil {
		return nil, err
	}
	payment.NextPaymentDate = payment.NextPaymentDate.Add(offset)
	return result.Transaction, nil
}
