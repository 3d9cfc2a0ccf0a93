// Package service implements the ledger engine: every operation that reads
// or moves money lives here. The engine is stateless; the authenticated
// caller is always an explicit argument, never ambient state.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dmarkov/bank-ledger/internal/config"
	"github.com/dmarkov/bank-ledger/internal/events"
	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/dmarkov/bank-ledger/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Service handles business logic
type Service struct {
	store     Store
	publisher events.Publisher
	log       *logrus.Logger
	config    *config.Config
}

// NewService initializes a new service
func NewService(store Store, publisher events.Publisher, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, publisher: publisher, log: log, config: cfg}
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Register creates a new user with a hashed PIN and opens their first
// account. User and account commit together: a failed account creation
// leaves no user behind. On the rare account-number collision the whole
// creation is retried with a fresh number.
func (s *Service) Register(ctx context.Context, username, pin, accountType string) (*models.User, *models.Account, error) {
	if username == "" || pin == "" {
		return nil, nil, fmt.Errorf("%w: username and pin", models.ErrMissingField)
	}
	if !validPIN(pin) {
		return nil, nil, models.ErrInvalidPIN
	}
	if accountType == "" {
		accountType = models.AccountTypePersonal
	}
	if accountType != models.AccountTypePersonal && accountType != models.AccountTypeBusiness {
		return nil, nil, models.ErrInvalidAccountType
	}

	hashedPIN, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash pin: %w", err)
	}

	const maxAttempts = 5
	for attempt := 0; attempt < maxAttempts; attempt++ {
		number, err := utils.GenerateAccountNumber()
		if err != nil {
			return nil, nil, err
		}
		user := &models.User{
			Username: username,
			PINHash:  string(hashedPIN),
		}
		account := &models.Account{
			AccountNumber: number,
			AccountType:   accountType,
			Balance:       models.OpeningBalance,
		}
		err = s.store.CreateUserWithAccount(ctx, user, account)
		if err == models.ErrDuplicateAccount {
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		s.log.Infof("User registered: %s (account %s)", user.Username, account.AccountNumber)
		return user, account, nil
	}
	return nil, nil, fmt.Errorf("failed to generate a unique account number after %d attempts", maxAttempts)
}

// Login authenticates a user and returns a JWT token along with the user's
// accounts.
func (s *Service) Login(ctx context.Context, username, pin string) (*models.User, []models.Account, string, error) {
	if username == "" || pin == "" {
		return nil, nil, "", fmt.Errorf("%w: username and pin", models.ErrMissingField)
	}

	user, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		return nil, nil, "", models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PINHash), []byte(pin)); err != nil {
		return nil, nil, "", models.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", user.ID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	accounts, err := s.store.FindAccountsByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, "", err
	}

	s.log.Infof("User logged in: %s", user.Username)
	return user, accounts, tokenString, nil
}

// Accounts lists the caller's accounts
func (s *Service) Accounts(ctx context.Context, userID int64) ([]models.Account, error) {
	return s.store.FindAccountsByUser(ctx, userID)
}

// Transactions lists an account's transactions, newest first. The account
// must belong to the caller.
func (s *Service) Transactions(ctx context.Context, userID, accountID int64) ([]models.Transaction, error) {
	account, err := s.store.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, models.ErrNotOwner
	}
	return s.store.FindTransactionsByAccount(ctx, accountID)
}

// SearchAccount resolves an account number to its privacy-limited
// projection: number, kind, and owner username only.
func (s *Service) SearchAccount(ctx context.Context, accountNumber string) (*models.AccountSummary, error) {
	if accountNumber == "" {
		return nil, fmt.Errorf("%w: account_number", models.ErrMissingField)
	}
	return s.store.FindAccountSummary(ctx, accountNumber)
}

// publishTransaction emits a completion event. Publishing is best-effort and
// never fails the ledger operation.
func (s *Service) publishTransaction(txn *models.Transaction) {
	event := events.TransactionCompleted{
		EventID:         uuid.New().String(),
		TransactionID:   txn.ID,
		FromAccountID:   txn.FromAccountID,
		ToAccountID:     txn.ToAccountID,
		Amount:          txn.Amount,
		TransactionType: txn.TransactionType,
		OccurredAt:      txn.CreatedAt,
	}
	if err := s.publisher.Publish("transaction_completed", event); err != nil {
		s.log.Warnf("Failed to publish transaction event %d: %v", txn.ID, err)
	}
}
