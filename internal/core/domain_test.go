package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validTransaction() Transaction {
	return Transaction{
		FamilyID:    "fam-1",
		CategoryID:  "cat-1",
		Amount:      decimal.NewFromInt(10),
		Date:        time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Status:      StatusPaid,
		Description: "groceries",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []func(*Transaction){
		func(tx *Transaction) { tx.FamilyID = "" },
		func(tx *Transaction) { tx.Amount = decimal.Zero },
		func(tx *Transaction) { tx.Amount = decimal.NewFromInt(-5) },
		func(tx *Transaction) { tx.Date = time.Time{} },
		func(tx *Transaction) { tx.Description = "  " },
		func(tx *Transaction) { tx.Status = "returned" },
	}
	for i, mutate := range bads {
		tx := validTransaction()
		mutate(&tx)
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionBucketType(t *testing.T) {
	cases := []struct {
		cat  *Category
		want CategoryType
	}{
		{nil, CategoryVariable},
		{&Category{Type: CategoryFixed}, CategoryFixed},
		{&Category{Type: CategoryVariable}, CategoryVariable},
		{&Category{Type: CategoryBoth}, CategoryVariable},
		{&Category{Type: "garbage"}, CategoryVariable},
	}
	for i, tc := range cases {
		tx := validTransaction()
		tx.Category = tc.cat
		if got := tx.BucketType(); got != tc.want {
			t.Fatalf("case %d: got %s, want %s", i, got, tc.want)
		}
	}
}

func TestExpenseTemplateValidate(t *testing.T) {
	good := ExpenseTemplate{
		FamilyID:    "fam-1",
		Amount:      decimal.NewFromInt(60),
		Frequency:   FrequencyMonthly,
		DueDay:      5,
		Description: "rent",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	annual := good
	annual.Frequency = FrequencyAnnual
	if err := annual.Validate(); err != ErrInvalidDueMonth {
		t.Fatalf("annual template without due month: got %v", err)
	}
	annual.DueMonth = 6
	if err := annual.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bad := good
	bad.DueDay = 32
	if err := bad.Validate(); err != ErrInvalidDueDay {
		t.Fatalf("expected ErrInvalidDueDay, got %v", err)
	}
	bad = good
	bad.Frequency = "weekly"
	if err := bad.Validate(); err != ErrInvalidFrequency {
		t.Fatalf("expected ErrInvalidFrequency, got %v", err)
	}
}

func TestFamilyValidate(t *testing.T) {
	if err := (Family{Name: "Rossi"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Family{Name: "   "}).Validate(); err == nil {
		t.Fatalf("expected error for blank name")
	}
}
