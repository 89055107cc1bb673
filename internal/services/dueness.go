// Package services provides business logic and orchestration services.
//
// Dueness checking follows the strategy pattern: each template frequency
// has its own checker deciding whether the template should materialize
// into a transaction.
package services

import (
	"fmt"
	"time"

	"github.com/yabolb/familyflow/internal/core"
)

// DuenessChecker decides whether a template is due for materialization
// given its last run time and the current time.
type DuenessChecker interface {
	IsDue(tpl core.ExpenseTemplate, now time.Time) bool
}

// MonthlyChecker materializes once per month on or after the due day.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(tpl core.ExpenseTemplate, now time.Time) bool {
	last := tpl.LastRunAt
	if !last.IsZero() && last.Year() == now.Year() && last.Month() == now.Month() {
		return false
	}
	due := core.MonthOf(now).ClampDay(tpl.DueDay)
	return now.Day() >= due
}

// AnnualChecker materializes once per year, in the due month on or after
// the due day; later months of the same year also trigger a catch-up run.
type AnnualChecker struct{}

func (AnnualChecker) IsDue(tpl core.ExpenseTemplate, now time.Time) bool {
	last := tpl.LastRunAt
	if !last.IsZero() && last.Year() == now.Year() {
		return false
	}
	if int(now.Month()) < tpl.DueMonth {
		return false
	}
	if int(now.Month()) == tpl.DueMonth {
		due := core.MonthOf(now).ClampDay(tpl.DueDay)
		return now.Day() >= due
	}
	return true
}

var duenessStrategies = map[core.Frequency]DuenessChecker{
	core.FrequencyMonthly: MonthlyChecker{},
	core.FrequencyAnnual:  AnnualChecker{},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return checker, nil
}
