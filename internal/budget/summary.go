package budget

import (
	"github.com/shopspring/decimal"

	"github.com/yabolb/familyflow/internal/core"
)

// VariableSpend compares month-to-date variable spend against the same
// span of the previous month.
type VariableSpend struct {
	Current    float64 `json:"current"`
	Previous   float64 `json:"previous"`
	Percentage float64 `json:"percentage"`
}

// TopCategory is the variable category with the highest total this month.
type TopCategory struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Icon   string  `json:"icon"`
}

// SavingProposal suggests trimming 10% off the top spending category.
type SavingProposal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// SpendSummary is the aggregator's output, consumed by the HTTP layer and
// by the advisor's context builder. All monetary values are rounded to two
// decimal places here and nowhere earlier.
type SpendSummary struct {
	Variable          VariableSpend   `json:"variable"`
	TopCategory       *TopCategory    `json:"topCategory"`
	MonthlyProjection float64         `json:"monthlyProjection"`
	FixedTotal        float64         `json:"fixedTotal"`
	AnnualProvision   float64         `json:"annualProvision"`
	SavingProposal    *SavingProposal `json:"savingProposal"`
	TotalSpent        float64         `json:"totalSpent"`

	// SkippedRows counts rows whose amount could not be read and was
	// coerced to zero. A data-quality warning, not a failure.
	SkippedRows int `json:"skippedRows,omitempty"`
}

// ZeroSummary is what a missing tenant resolves to: all totals zero, no
// top category, no proposal, no error.
func ZeroSummary() SpendSummary {
	return SpendSummary{}
}

// result carries full-precision totals between the pure computation and
// the rounded output.
type result struct {
	variableCurrent  decimal.Decimal
	variablePrevious decimal.Decimal
	percentage       decimal.Decimal
	topCategory      *categoryGroup
	projection       decimal.Decimal
	fixedTotal       decimal.Decimal
	annualProvision  decimal.Decimal
	totalSpent       decimal.Decimal
	skipped          int
}

type categoryGroup struct {
	name  string
	icon  string
	total decimal.Decimal
}

func (r result) summary() SpendSummary {
	s := SpendSummary{
		Variable: VariableSpend{
			Current:    core.Round2Float(r.variableCurrent),
			Previous:   core.Round2Float(r.variablePrevious),
			Percentage: core.Round2Float(r.percentage),
		},
		MonthlyProjection: core.Round2Float(r.projection),
		FixedTotal:        core.Round2Float(r.fixedTotal),
		AnnualProvision:   core.Round2Float(r.annualProvision),
		TotalSpent:        core.Round2Float(r.totalSpent),
		SkippedRows:       r.skipped,
	}
	if r.topCategory != nil {
		s.TopCategory = &TopCategory{
			Name:   r.topCategory.name,
			Amount: core.Round2Float(r.topCategory.total),
			Icon:   r.topCategory.icon,
		}
		saving := r.topCategory.total.Mul(decimal.NewFromFloat(0.10))
		s.SavingProposal = &SavingProposal{
			Category: r.topCategory.name,
			Amount:   core.Round2Float(saving),
		}
	}
	return s
}
