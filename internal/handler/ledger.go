package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

// Transfer moves money between accounts
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	var req struct {
		FromAccountNumber string          `json:"from_account_number"`
		ToAccountNumber   string          `json:"to_account_number"`
		Amount            decimal.Decimal `json:"amount"`
		Description       string          `json:"description"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Transfer(r.Context(), userID, req.FromAccountNumber, req.ToAccountNumber, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Transfer successful",
		"transaction": result.Transaction,
		"new_balance": result.FromBalance,
	})
}

// Charge debits a customer in favor of the caller's business account
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	var req struct {
		BusinessAccountNumber string          `json:"business_account_number"`
		CustomerUsername      string          `json:"customer_username"`
		CustomerPIN           string          `json:"customer_pin"`
		Amount                decimal.Decimal `json:"amount"`
		Reason                string          `json:"reason"`
		Description           string          `json:"description"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, invoice, err := h.svc.Charge(r.Context(), userID,
		req.BusinessAccountNumber, req.CustomerUsername, req.CustomerPIN,
		req.Amount, req.Reason, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":              "Charge successful",
		"transaction":          result.Transaction,
		"business_new_balance": result.ToBalance,
		"invoice":              invoice,
	})
}
