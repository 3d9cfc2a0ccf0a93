package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmarkov/bank-ledger/internal/config"
	"github.com/dmarkov/bank-ledger/internal/events"
	"github.com/dmarkov/bank-ledger/internal/middleware"
	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/dmarkov/bank-ledger/internal/service"
	"github.com/dmarkov/bank-ledger/internal/storage/memory"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{JWTSecret: "test-secret"}
	svc := service.NewService(memory.NewStore(), events.NoopPublisher{}, log, cfg)
	h := NewHandler(svc, log)

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", h.Register).Methods("POST")
	api.HandleFunc("/login", h.Login).Methods("POST")
	authRouter := api.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/accounts", h.Accounts).Methods("GET")
	authRouter.HandleFunc("/accounts/{id:[0-9]+}/transactions", h.Transactions).Methods("GET")
	authRouter.HandleFunc("/transfer", h.Transfer).Methods("POST")
	return r
}

func doJSON(t *testing.T, r *mux.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type registerResponse struct {
	User    models.User    `json:"user"`
	Account models.Account `json:"account"`
}

func registerUser(t *testing.T, r *mux.Router, username, pin, accountType string) registerResponse {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"username": username, "pin": pin, "account_type": accountType,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status=%d body=%s", username, rec.Code, rec.Body)
	}
	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func loginUser(t *testing.T, r *mux.Router, username, pin string) string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "pin": pin,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status=%d body=%s", username, rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token == "" {
		t.Fatal("login returned empty token")
	}
	return resp.Token
}

func TestRegisterLoginAndTransferFlow(t *testing.T) {
	r := newTestRouter(t)
	alice := registerUser(t, r, "alice", "1234", "")
	bob := registerUser(t, r, "bob", "5678", "")
	token := loginUser(t, r, "alice", "1234")

	rec := doJSON(t, r, http.MethodPost, "/api/transfer", token, map[string]any{
		"from_account_number": alice.Account.AccountNumber,
		"to_account_number":   bob.Account.AccountNumber,
		"amount":              "50000.00",
		"description":         "rent",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: status=%d body=%s", rec.Code, rec.Body)
	}
	var resp struct {
		NewBalance  decimal.Decimal    `json:"new_balance"`
		Transaction models.Transaction `json:"transaction"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.NewBalance.Equal(decimal.RequireFromString("200000.00")) {
		t.Fatalf("new_balance = %s", resp.NewBalance)
	}
	if resp.Transaction.TransactionType != models.TransactionTypeTransfer {
		t.Fatalf("transaction type = %q", resp.Transaction.TransactionType)
	}

	// The transfer shows up newest-first on the account.
	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/accounts/%d/transactions", alice.Account.ID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions: status=%d body=%s", rec.Code, rec.Body)
	}
	var txns []models.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txns); err != nil {
		t.Fatal(err)
	}
	if len(txns) != 1 || txns[0].Description != "rent" {
		t.Fatalf("transactions=%+v", txns)
	}
}

func TestAuthRequired(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/api/accounts", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/api/accounts", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d, want 401", rec.Code)
	}
}

func TestTransactionsForeignAccountForbidden(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice", "1234", "")
	bob := registerUser(t, r, "bob", "5678", "")
	token := loginUser(t, r, "alice", "1234")

	rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/accounts/%d/transactions", bob.Account.ID), token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s, want 403", rec.Code, rec.Body)
	}
}

func TestRegisterRejectsBadPIN(t *testing.T) {
	r := newTestRouter(t)
	rec := doJSON(t, r, http.MethodPost, "/api/register", "", map[string]string{
		"username": "alice", "pin": "12ab",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s, want 400", rec.Code, rec.Body)
	}
}

func TestTransferInsufficientFundsReturns400(t *testing.T) {
	r := newTestRouter(t)
	alice := registerUser(t, r, "alice", "1234", "")
	bob := registerUser(t, r, "bob", "5678", "")
	token := loginUser(t, r, "alice", "1234")

	rec := doJSON(t, r, http.MethodPost, "/api/transfer", token, map[string]any{
		"from_account_number": alice.Account.AccountNumber,
		"to_account_number":   bob.Account.AccountNumber,
		"amount":              "999999.00",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s, want 400", rec.Code, rec.Body)
	}
}
