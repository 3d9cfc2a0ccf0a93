package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// CreateRecurringPayment schedules a recurring payment
func (h *Handler) CreateRecurringPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	var req struct {
		BusinessAccountNumber  string          `json:"business_account_number"`
		RecipientAccountNumber string          `json:"recipient_account_number"`
		Amount                 decimal.Decimal `json:"amount"`
		Description            string          `json:"description"`
		Frequency              string          `json:"frequency"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	payment, err := h.svc.CreateRecurringPayment(r.Context(), userID,
		req.BusinessAccountNumber, req.RecipientAccountNumber,
		req.Amount, req.Description, req.Frequency)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":           "Recurring payment created successfully",
		"recurring_payment": payment,
	})
}

// ListRecurringPayments lists the caller's recurring payments
func (h *Handler) ListRecurringPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	payments, err := h.svc.ListRecurringPayments(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if payments == nil {
		payments = []models.RecurringPayment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// CancelRecurringPayment soft-cancels a recurring payment
func (h *Handler) CancelRecurringPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	paymentID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id"})
		return
	}

	if err := h.svc.CancelRecurringPayment(r.Context(), userID, paymentID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Recurring payment cancelled successfully"})
}

// ProcessRecurringPayments settles all due payments. Normally invoked by the
// in-process schedule; the endpoint stays available for external schedulers.
func (h *Handler) ProcessRecurringPayments(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ProcessDuePayments(r.Context(), time.Now().UTC())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Due payments processed",
		"processed": result.Processed,
		"failed":    result.Failed,
	})
}
