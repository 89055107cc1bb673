package budget

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yabolb/familyflow/internal/core"
)

// testNow = day 10 of a 30-day month.
var testNow = time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	transactions  []core.Transaction
	templates     []core.ExpenseTemplate
	txErr         error
	tplErr        error
	templateCalls int
}

func (f *fakeStore) ListTransactions(_ context.Context, familyID string, from, to time.Time) ([]core.Transaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	var out []core.Transaction
	for _, tx := range f.transactions {
		if tx.FamilyID != familyID {
			continue
		}
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (f *fakeStore) ListActiveTemplates(_ context.Context, familyID string) ([]core.ExpenseTemplate, error) {
	f.templateCalls++
	if f.tplErr != nil {
		return nil, f.tplErr
	}
	var out []core.ExpenseTemplate
	for _, tpl := range f.templates {
		if tpl.FamilyID == familyID && tpl.Active {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func newTestAggregator(store *fakeStore, opts ...Option) *Aggregator {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewAggregator(store, store, opts...)
}

func tx(family string, day int, amount float64, cat *core.Category) core.Transaction {
	return core.Transaction{
		ID:          "tx",
		FamilyID:    family,
		Amount:      decimal.NewFromFloat(amount),
		Date:        time.Date(2026, 9, day, 10, 0, 0, 0, time.UTC),
		Status:      core.StatusPaid,
		Description: "t",
		Category:    cat,
	}
}

func fixedCat(name string) *core.Category {
	return &core.Category{Name: name, Type: core.CategoryFixed}
}

func varCat(name string) *core.Category {
	return &core.Category{Name: name, Icon: "🛒", Type: core.CategoryVariable}
}

func TestSummarizeEmptyFamily(t *testing.T) {
	agg := newTestAggregator(&fakeStore{})
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TopCategory != nil || got.SavingProposal != nil {
		t.Fatalf("expected nil top category and proposal, got %+v", got)
	}
	if got.TotalSpent != 0 || got.FixedTotal != 0 || got.AnnualProvision != 0 || got.MonthlyProjection != 0 {
		t.Fatalf("expected all-zero totals, got %+v", got)
	}
}

func TestSummarizeMissingTenant(t *testing.T) {
	store := &fakeStore{txErr: errors.New("should not be called")}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("missing tenant must not error: %v", err)
	}
	if !reflect.DeepEqual(got, ZeroSummary()) {
		t.Fatalf("expected zero summary, got %+v", got)
	}
}

func TestSummarizeUpstreamFailure(t *testing.T) {
	store := &fakeStore{txErr: errors.New("connection refused")}
	agg := newTestAggregator(store)
	_, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestSummarizeTemplatesOnly(t *testing.T) {
	// Current month, no transactions, two monthly templates and one
	// annual: projected fixed 100, provision 20, total 120.
	store := &fakeStore{
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(60), Frequency: core.FrequencyMonthly, DueDay: 1, Active: true, Description: "rent"},
			{FamilyID: "fam", Amount: decimal.NewFromInt(40), Frequency: core.FrequencyMonthly, DueDay: 5, Active: true, Description: "internet"},
			{FamilyID: "fam", Amount: decimal.NewFromInt(240), Frequency: core.FrequencyAnnual, DueDay: 1, DueMonth: 6, Active: true, Description: "insurance"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FixedTotal != 100 {
		t.Fatalf("fixed total: got %v, want 100", got.FixedTotal)
	}
	if got.AnnualProvision != 20 {
		t.Fatalf("annual provision: got %v, want 20", got.AnnualProvision)
	}
	if got.TotalSpent != 120 {
		t.Fatalf("total spent: got %v, want 120", got.TotalSpent)
	}
}

func TestSummarizePastMonthIgnoresTemplates(t *testing.T) {
	// Past month with fixed 80 and variable 120; templates irrelevant.
	past := core.NewMonth(2026, time.July)
	store := &fakeStore{
		transactions: []core.Transaction{
			{FamilyID: "fam", Amount: decimal.NewFromInt(80), Date: time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC), Category: fixedCat("Rent")},
			{FamilyID: "fam", Amount: decimal.NewFromInt(120), Date: time.Date(2026, 7, 9, 0, 0, 0, 0, time.UTC), Category: varCat("Food")},
		},
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(500), Frequency: core.FrequencyMonthly, DueDay: 1, Active: true, Description: "rent"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", past)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalSpent != 200 {
		t.Fatalf("total spent: got %v, want 200", got.TotalSpent)
	}
	if got.AnnualProvision != 0 {
		t.Fatalf("past month provision must be 0, got %v", got.AnnualProvision)
	}
	if store.templateCalls != 0 {
		t.Fatalf("templates must not be fetched for past months, got %d calls", store.templateCalls)
	}
}

func TestSummarizeLinearProjection(t *testing.T) {
	// Day 10 of a 30-day month with 100 of variable spend: daily average
	// 10, projected variable 300.
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 2, 40, varCat("Food")),
			tx("fam", 8, 60, varCat("Food")),
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MonthlyProjection != 300 {
		t.Fatalf("projection: got %v, want 300", got.MonthlyProjection)
	}
}

func TestSummarizeFixedPreferReal(t *testing.T) {
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 3, 75, fixedCat("Rent")),
		},
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(500), Frequency: core.FrequencyMonthly, DueDay: 1, Active: true, Description: "rent"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FixedTotal != 75 {
		t.Fatalf("fixed total: got %v, want real 75", got.FixedTotal)
	}

	// Same snapshot under the projected-only policy.
	agg = newTestAggregator(store, WithFixedPolicy(FixedPolicyProjectedOnly))
	got, err = agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FixedTotal != 500 {
		t.Fatalf("fixed total: got %v, want projected 500", got.FixedTotal)
	}
}

func TestSummarizeFutureMonthUsesProjection(t *testing.T) {
	future := core.NewMonth(2026, time.November)
	store := &fakeStore{
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(90), Frequency: core.FrequencyMonthly, DueDay: 1, Active: true, Description: "rent"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", future)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FixedTotal != 90 || got.TotalSpent != 90 {
		t.Fatalf("future month: got fixed %v total %v, want 90/90", got.FixedTotal, got.TotalSpent)
	}
}

func TestSummarizeTopCategoryStableTie(t *testing.T) {
	// A=50 then B=50 in transaction order: first seen wins.
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 1, 50, varCat("A")),
			tx("fam", 2, 50, varCat("B")),
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TopCategory == nil || got.TopCategory.Name != "A" {
		t.Fatalf("top category: got %+v, want A", got.TopCategory)
	}
	if got.SavingProposal == nil || got.SavingProposal.Category != "A" || got.SavingProposal.Amount != 5 {
		t.Fatalf("saving proposal: got %+v, want 10%% of A", got.SavingProposal)
	}
}

func TestSummarizeMonthOverMonthDelta(t *testing.T) {
	prev := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	beyondCutoff := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 4, 150, varCat("Food")),
			{FamilyID: "fam", Amount: decimal.NewFromInt(100), Date: prev, Category: varCat("Food")},
			// After the day-10 cutoff: must not count.
			{FamilyID: "fam", Amount: decimal.NewFromInt(999), Date: beyondCutoff, Category: varCat("Food")},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variable.Current != 150 || got.Variable.Previous != 100 {
		t.Fatalf("variable: got %+v", got.Variable)
	}
	if got.Variable.Percentage != 50 {
		t.Fatalf("percentage: got %v, want 50", got.Variable.Percentage)
	}
}

func TestSummarizePercentageZeroWhenNoPrevious(t *testing.T) {
	store := &fakeStore{
		transactions: []core.Transaction{tx("fam", 4, 150, varCat("Food"))},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Variable.Percentage != 0 {
		t.Fatalf("percentage: got %v, want 0", got.Variable.Percentage)
	}
}

func TestSummarizeAnnualProvisionExact(t *testing.T) {
	store := &fakeStore{
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(100), Frequency: core.FrequencyAnnual, DueDay: 1, DueMonth: 3, Active: true, Description: "tax"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 100.0 / 12.0
	if diff := got.AnnualProvision - want; diff > 0.005 || diff < -0.005 {
		t.Fatalf("provision: got %v, want ~%v", got.AnnualProvision, want)
	}
}

func TestSummarizeIdempotent(t *testing.T) {
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 1, 33.33, varCat("Food")),
			tx("fam", 5, 66.67, varCat("Transport")),
			tx("fam", 6, 80, fixedCat("Rent")),
		},
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(240), Frequency: core.FrequencyAnnual, DueDay: 1, DueMonth: 6, Active: true, Description: "insurance"},
		},
	}
	agg := newTestAggregator(store)
	first, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("summaries differ:\n%+v\n%+v", first, second)
	}
}

func TestSummarizeSkipsUnreadableAmounts(t *testing.T) {
	zero := tx("fam", 2, 10, varCat("Food"))
	zero.Amount = decimal.Zero
	store := &fakeStore{
		transactions: []core.Transaction{
			zero,
			tx("fam", 3, 25, varCat("Food")),
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SkippedRows != 1 {
		t.Fatalf("skipped rows: got %d, want 1", got.SkippedRows)
	}
	if got.Variable.Current != 25 {
		t.Fatalf("variable: got %v, want 25", got.Variable.Current)
	}
}

func TestSummarizeTotalInvariant(t *testing.T) {
	store := &fakeStore{
		transactions: []core.Transaction{
			tx("fam", 1, 12.5, varCat("Food")),
			tx("fam", 2, 30, fixedCat("Rent")),
		},
		templates: []core.ExpenseTemplate{
			{FamilyID: "fam", Amount: decimal.NewFromInt(120), Frequency: core.FrequencyAnnual, DueDay: 1, DueMonth: 1, Active: true, Description: "tax"},
		},
	}
	agg := newTestAggregator(store)
	got, err := agg.Summarize(context.Background(), "fam", core.MonthOf(testNow))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalSpent < 0 {
		t.Fatalf("total spent must be non-negative, got %v", got.TotalSpent)
	}
	sum := got.Variable.Current + got.FixedTotal + got.AnnualProvision
	if diff := got.TotalSpent - sum; diff > 0.01 || diff < -0.01 {
		t.Fatalf("total %v != variable %v + fixed %v + provision %v",
			got.TotalSpent, got.Variable.Current, got.FixedTotal, got.AnnualProvision)
	}
}
