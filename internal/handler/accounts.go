package handler

import (
	"net/http"
	"strconv"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/gorilla/mux"
)

// Accounts lists the caller's accounts
func (h *Handler) Accounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	accounts, err := h.svc.Accounts(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if accounts == nil {
		accounts = []models.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// Transactions lists one account's transactions, newest first
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	accountID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid account id"})
		return
	}

	transactions, err := h.svc.Transactions(r.Context(), userID, accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

// SearchAccount resolves an account number to its privacy-limited projection
func (h *Handler) SearchAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.callerID(w, r); !ok {
		return
	}
	var req struct {
		AccountNumber string `json:"account_number"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.svc.SearchAccount(r.Context(), req.AccountNumber)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
