package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmarkov/bank-ledger/internal/models"
	"github.com/shopspring/decimal"
)

func TestCreateRecurringPaymentOffsets(t *testing.T) {
	s, _ := newTestService(t)
	merchant, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	_, empAcct := register(t, s, "employee", "2222", "")

	cases := []struct {
		frequency string
		days      int
	}{
		{models.FrequencyWeekly, 7},
		{models.FrequencyMonthly, 30},
		{models.FrequencyYearly, 365},
	}
	for _, tc := range cases {
		t.Run(tc.frequency, func(t *testing.T) {
			before := time.Now().UTC()
			payment, err := s.CreateRecurringPayment(context.Background(), merchant.ID,
				bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("5000.00"), "", tc.frequency)
			if err != nil {
				t.Fatalf("CreateRecurringPayment err=%v", err)
			}
			want := before.Add(time.Duration(tc.days) * 24 * time.Hour)
			if diff := payment.NextPaymentDate.Sub(want); diff < 0 || diff > time.Minute {
				t.Fatalf("next due %s, want ~%s", payment.NextPaymentDate, want)
			}
			if !payment.IsActive {
				t.Fatal("new payment should be active")
			}
			if payment.Description != "Salary Payment" {
				t.Fatalf("default description = %q", payment.Description)
			}
		})
	}
}

func TestCreateRecurringPaymentValidation(t *testing.T) {
	s, _ := newTestService(t)
	merchant, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	owner, personalAcct := register(t, s, "owner", "3333", "")
	_, empAcct := register(t, s, "employee", "2222", "")

	ctx := context.Background()
	if _, err := s.CreateRecurringPayment(ctx, owner.ID, personalAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("100"), "", ""); !errors.Is(err, models.ErrNotBusiness) {
		t.Fatalf("personal source err=%v", err)
	}
	if _, err := s.CreateRecurringPayment(ctx, owner.ID, bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("100"), "", ""); !errors.Is(err, models.ErrNotOwner) {
		t.Fatalf("foreign business err=%v", err)
	}
	if _, err := s.CreateRecurringPayment(ctx, merchant.ID, bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("100"), "", "daily"); !errors.Is(err, models.ErrInvalidFrequency) {
		t.Fatalf("bad frequency err=%v", err)
	}
	if _, err := s.CreateRecurringPayment(ctx, merchant.ID, bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("0"), "", ""); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("zero amount err=%v", err)
	}
	if _, err := s.CreateRecurringPayment(ctx, merchant.ID, bizAcct.AccountNumber, "0000000000", mustDecimal("100"), "", ""); !errors.Is(err, models.ErrAccountNotFound) {
		t.Fatalf("unknown recipient err=%v", err)
	}
}

func TestCancelRecurringPaymentIdempotent(t *testing.T) {
	s, _ := newTestService(t)
	merchant, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	stranger, _ := register(t, s, "stranger", "4444", "")
	_, empAcct := register(t, s, "employee", "2222", "")

	ctx := context.Background()
	payment, err := s.CreateRecurringPayment(ctx, merchant.ID, bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("5000.00"), "", "")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.CancelRecurringPayment(ctx, stranger.ID, payment.ID); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("stranger cancel err=%v", err)
	}
	if err := s.CancelRecurringPayment(ctx, merchant.ID, payment.ID); err != nil {
		t.Fatalf("first cancel err=%v", err)
	}
	// Cancelling again succeeds silently.
	if err := s.CancelRecurringPayment(ctx, merchant.ID, payment.ID); err != nil {
		t.Fatalf("second cancel err=%v", err)
	}

	got, err := s.store.FindRecurringPaymentByID(ctx, payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Fatal("payment still active after cancel")
	}

	if err := s.CancelRecurringPayment(ctx, merchant.ID, 9999); !errors.Is(err, models.ErrPaymentNotFound) {
		t.Fatalf("unknown payment err=%v", err)
	}
}

// seedDuePayment creates a payment whose due date has already passed.
func seedDuePayment(t *testing.T, s *Service, fromID, toID int64, amount decimal.Decimal, description, frequency string, due time.Time) *models.RecurringPayment {
	t.Helper()
	payment := &models.RecurringPayment{
		FromAccountID:   fromID,
		ToAccountID:     toID,
		Amount:          amount,
		Description:     description,
		Frequency:       frequency,
		IsActive:        true,
		NextPaymentDate: due,
	}
	if err := s.store.CreateRecurringPayment(context.Background(), payment); err != nil {
		t.Fatal(err)
	}
	return payment
}

func TestProcessDuePayments(t *testing.T) {
	s, store := newTestService(t)
	_, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	_, empAcct := register(t, s, "employee", "2222", "")

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	payment := seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("5000.00"), "Payroll", models.FrequencyMonthly, due)

	result, err := s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatalf("ProcessDuePayments err=%v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("result=%+v, want 1 processed", result)
	}

	if got := balanceOf(t, store, bizAcct.AccountNumber); !got.Equal(mustDecimal("245000.00")) {
		t.Fatalf("business balance = %s", got)
	}
	if got := balanceOf(t, store, empAcct.AccountNumber); !got.Equal(mustDecimal("255000.00")) {
		t.Fatalf("employee balance = %s", got)
	}

	txns, _ := store.FindTransactionsByAccount(context.Background(), empAcct.ID)
	if len(txns) != 1 || txns[0].TransactionType != models.TransactionTypeSalary {
		t.Fatalf("transactions=%+v", txns)
	}
	if txns[0].Description != "SALARY: Payroll" {
		t.Fatalf("description = %q", txns[0].Description)
	}

	// The due date advances by exactly 30 days from the prior due date, not
	// from now.
	updated, err := store.FindRecurringPaymentByID(context.Background(), payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if want := due.Add(30 * 24 * time.Hour); !updated.NextPaymentDate.Equal(want) {
		t.Fatalf("next due %s, want %s", updated.NextPaymentDate, want)
	}

	// A second run in immediate succession finds nothing due.
	result, err = s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("second run result=%+v, want 0/0", result)
	}
}

// Overlapping runs (the cron schedule racing the HTTP trigger) must settle
// each due payment exactly once: the settlement re-checks dueness under the
// store's lock, so whichever run gets there first advances the due date and
// the others skip the payment.
func TestProcessDuePaymentsConcurrentRunsSettleOnce(t *testing.T) {
	s, store := newTestService(t)
	_, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	_, empAcct := register(t, s, "employee", "2222", "")

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	const payments = 40
	seeded := make([]*models.RecurringPayment, payments)
	for i := range seeded {
		seeded[i] = seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("10.00"), "Payroll", models.FrequencyWeekly, due)
	}

	const runs = 4
	results := make(chan ProcessResult, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.ProcessDuePayments(context.Background(), now)
			if err != nil {
				t.Errorf("ProcessDuePayments err=%v", err)
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	var processed, failed int
	for result := range results {
		processed += result.Processed
		failed += result.Failed
	}
	if processed != payments || failed != 0 {
		t.Fatalf("processed=%d failed=%d across %d runs, want %d/0", processed, failed, runs, payments)
	}

	txns, err := store.FindTransactionsByAccount(context.Background(), empAcct.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != payments {
		t.Fatalf("salary transactions=%d, want %d", len(txns), payments)
	}
	if got := balanceOf(t, store, bizAcct.AccountNumber); !got.Equal(mustDecimal("249600.00")) {
		t.Fatalf("business balance = %s", got)
	}
	if got := balanceOf(t, store, empAcct.AccountNumber); !got.Equal(mustDecimal("250400.00")) {
		t.Fatalf("employee balance = %s", got)
	}

	// Every payment advanced by exactly one cadence offset.
	want := due.Add(7 * 24 * time.Hour)
	for _, payment := range seeded {
		updated, err := store.FindRecurringPaymentByID(context.Background(), payment.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !updated.NextPaymentDate.Equal(want) {
			t.Fatalf("payment %d next due %s, want %s", payment.ID, updated.NextPaymentDate, want)
		}
	}
}

func TestProcessDuePaymentsInsufficientFundsRetries(t *testing.T) {
	s, store := newTestService(t)
	_, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	employee, empAcct := register(t, s, "employee", "2222", "")

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	// More than the business has.
	payment := seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("300000.00"), "Payroll", models.FrequencyWeekly, due)

	result, err := s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 0 || result.Failed != 1 {
		t.Fatalf("result=%+v, want 1 failed", result)
	}

	// The payment stays due, untouched.
	unchanged, err := store.FindRecurringPaymentByID(context.Background(), payment.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !unchanged.NextPaymentDate.Equal(due) {
		t.Fatalf("due date moved to %s", unchanged.NextPaymentDate)
	}
	if got := balanceOf(t, store, bizAcct.AccountNumber); !got.Equal(mustDecimal("250000.00")) {
		t.Fatalf("business balance changed: %s", got)
	}

	// Fund the business and retry: the payment settles this time.
	if _, err := s.Transfer(context.Background(), employee.ID,
		empAcct.AccountNumber, bizAcct.AccountNumber, mustDecimal("100000.00"), "top up"); err != nil {
		t.Fatal(err)
	}
	result, err = s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("retry result=%+v, want 1 processed", result)
	}
}

// One payment's failure must not abort the rest of the batch.
func TestProcessDuePaymentsIsolatesFailures(t *testing.T) {
	s, store := newTestService(t)
	_, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	_, empAcct := register(t, s, "employee", "2222", "")

	now := time.Now().UTC()
	due := now.Add(-time.Hour)
	seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("900000.00"), "Too big", models.FrequencyMonthly, due)
	seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("1000.00"), "Fits", models.FrequencyMonthly, due)

	result, err := s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Fatalf("result=%+v, want 1 processed and 1 failed", result)
	}
	if got := balanceOf(t, store, empAcct.AccountNumber); !got.Equal(mustDecimal("251000.00")) {
		t.Fatalf("employee balance = %s", got)
	}
}

func TestProcessDuePaymentsSkipsInactive(t *testing.T) {
	s, _ := newTestService(t)
	merchant, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	_, empAcct := register(t, s, "employee", "2222", "")

	now := time.Now().UTC()
	payment := seedDuePayment(t, s, bizAcct.ID, empAcct.ID, mustDecimal("1000.00"), "Payroll", models.FrequencyMonthly, now.Add(-time.Hour))
	if err := s.CancelRecurringPayment(context.Background(), merchant.ID, payment.ID); err != nil {
		t.Fatal(err)
	}

	result, err := s.ProcessDuePayments(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("result=%+v, want nothing processed", result)
	}
}

func TestListRecurringPayments(t *testing.T) {
	s, _ := newTestService(t)
	merchant, bizAcct := register(t, s, "merchant", "1111", models.AccountTypeBusiness)
	stranger, _ := register(t, s, "stranger", "4444", "")
	_, empAcct := register(t, s, "employee", "2222", "")

	ctx := context.Background()
	if _, err := s.CreateRecurringPayment(ctx, merchant.ID, bizAcct.AccountNumber, empAcct.AccountNumber, mustDecimal("5000.00"), "Payroll", ""); err != nil {
		t.Fatal(err)
	}

	payments, err := s.ListRecurringPayments(ctx, merchant.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments=%d, want 1", len(payments))
	}
	p := payments[0]
	if p.FromAccountNumber != bizAcct.AccountNumber || p.ToAccountNumber != empAcct.AccountNumber || p.RecipientUsername != "employee" {
		t.Fatalf("payment projection=%+v", p)
	}

	// Strangers see nothing.
	payments, err = s.ListRecurringPayments(ctx, stranger.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(payments) != 0 {
		t.Fatalf("stranger payments=%d, want 0", len(payments))
	}
}
