package services

import (
	"testing"
	"time"

	"github.com/yabolb/familyflow/internal/core"
)

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		dueDay  int
		lastRun time.Time
		want    bool
	}{
		{
			name:    "never run, past due day - is due",
			dueDay:  10,
			lastRun: time.Time{},
			want:    true,
		},
		{
			name:    "never run, on due day - is due",
			dueDay:  15,
			lastRun: time.Time{},
			want:    true,
		},
		{
			name:    "never run, before due day - not due",
			dueDay:  20,
			lastRun: time.Time{},
			want:    false,
		},
		{
			name:    "already run this month - not due",
			dueDay:  10,
			lastRun: time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
			want:    false,
		},
		{
			name:    "run last month - is due",
			dueDay:  10,
			lastRun: time.Date(2025, 12, 10, 8, 0, 0, 0, time.UTC),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := core.ExpenseTemplate{
				Frequency: core.FrequencyMonthly,
				DueDay:    tt.dueDay,
				LastRunAt: tt.lastRun,
			}
			if got := checker.IsDue(tpl, now); got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_ClampsDueDay(t *testing.T) {
	checker := MonthlyChecker{}
	tpl := core.ExpenseTemplate{Frequency: core.FrequencyMonthly, DueDay: 31}

	// February has 28 days in 2026; day 31 clamps to the 28th.
	feb28 := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	if !checker.IsDue(tpl, feb28) {
		t.Error("due day 31 should clamp to Feb 28")
	}
	feb27 := time.Date(2026, 2, 27, 12, 0, 0, 0, time.UTC)
	if checker.IsDue(tpl, feb27) {
		t.Error("clamped due day not reached yet")
	}
}

func TestAnnualChecker_IsDue(t *testing.T) {
	checker := AnnualChecker{}

	tests := []struct {
		name     string
		dueMonth int
		dueDay   int
		lastRun  time.Time
		now      time.Time
		want     bool
	}{
		{
			name:     "never run, in due month past due day - is due",
			dueMonth: 6,
			dueDay:   10,
			now:      time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "never run, in due month before due day - not due",
			dueMonth: 6,
			dueDay:   20,
			now:      time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "never run, before due month - not due",
			dueMonth: 6,
			dueDay:   10,
			now:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "never run, after due month - catch-up run",
			dueMonth: 6,
			dueDay:   10,
			now:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want:     true,
		},
		{
			name:     "already run this year - not due",
			dueMonth: 6,
			dueDay:   10,
			lastRun:  time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
			want:     false,
		},
		{
			name:     "run last year - is due again",
			dueMonth: 6,
			dueDay:   10,
			lastRun:  time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
			now:      time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := core.ExpenseTemplate{
				Frequency: core.FrequencyAnnual,
				DueDay:    tt.dueDay,
				DueMonth:  tt.dueMonth,
				LastRunAt: tt.lastRun,
			}
			if got := checker.IsDue(tpl, tt.now); got != tt.want {
				t.Errorf("AnnualChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDuenessChecker(t *testing.T) {
	if _, err := GetDuenessChecker(core.FrequencyMonthly); err != nil {
		t.Errorf("monthly: unexpected error %v", err)
	}
	if _, err := GetDuenessChecker(core.FrequencyAnnual); err != nil {
		t.Errorf("annual: unexpected error %v", err)
	}
	if _, err := GetDuenessChecker(core.Frequency("weekly")); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
