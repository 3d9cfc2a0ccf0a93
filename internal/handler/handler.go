package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmarkov/bank-ledger/internal/middleware"
	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/dmarkov/bank-ledger/internal/service"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUserNotFound),
		errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrPaymentNotFound),
		errors.Is(err, models.ErrNoCustomerAccount):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotOwner),
		errors.Is(err, models.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, models.ErrMissingField),
		errors.Is(err, models.ErrInvalidPIN),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidFrequency),
		errors.Is(err, models.ErrInvalidAccountType),
		errors.Is(err, models.ErrSameAccount),
		errors.Is(err, models.ErrNotBusiness),
		errors.Is(err, models.ErrDuplicateUsername),
		errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Errorf("Request failed: %v", err)
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body, writing a 400 on malformed input.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// callerID extracts the authenticated user id set by the auth middleware.
func (h *Handler) callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Not logged in"})
		return 0, false
	}
	return userID, true
}

// Register handles user registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		PIN         string `json:"pin"`
		AccountType string `json:"account_type"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, account, err := h.svc.Register(r.Context(), req.Username, req.PIN, req.AccountType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User and account created successfully",
		"user":    user,
		"account": account,
	})
}

// Login handles user authentication
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		PIN      string `json:"pin"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, accounts, token, err := h.svc.Login(r.Context(), req.Username, req.PIN)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Login successful",
		"token":    token,
		"user":     user,
		"accounts": accounts,
	})
}

// Logout acknowledges logout. Tokens are stateless; the client discards its
// copy.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
