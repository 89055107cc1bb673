// Package budget implements the monthly spend aggregation and projection
// engine: fixed vs. variable cost splitting, annual-cost amortization and
// a linear day-of-month projection, computed in a single pass over the
// family's rows for the target month.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/yabolb/familyflow/internal/core"
)

// ErrUpstream marks persistence or network read failures. Callers must
// never fold these into "zero spend"; an empty row set is a legitimate
// zero, a failed read is not.
var ErrUpstream = errors.New("upstream read failed")

// FixedPolicy controls how the effective fixed total is resolved for the
// current month. The prefer-real heuristic assumes recurring transactions
// have already been materialized from templates, which carries a known
// double-counting risk, so the policy is explicit rather than baked in.
type FixedPolicy int

const (
	// FixedPolicyPreferReal uses recorded fixed transactions when any
	// exist and falls back to the template projection otherwise.
	FixedPolicyPreferReal FixedPolicy = iota

	// FixedPolicyProjectedOnly always uses the template projection for
	// open months.
	FixedPolicyProjectedOnly

	// FixedPolicyRealOnly only counts recorded fixed transactions.
	FixedPolicyRealOnly
)

var twelve = decimal.NewFromInt(12)

// Aggregator computes monthly spend summaries. It is stateless: every call
// reads a fresh snapshot and recomputes from scratch.
type Aggregator struct {
	transactions TransactionReader
	templates    TemplateReader
	policy       FixedPolicy
	now          func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFixedPolicy overrides the default prefer-real fixed-total policy.
func WithFixedPolicy(p FixedPolicy) Option {
	return func(a *Aggregator) { a.policy = p }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(transactions TransactionReader, templates TemplateReader, opts ...Option) *Aggregator {
	a := &Aggregator{
		transactions: transactions,
		templates:    templates,
		policy:       FixedPolicyPreferReal,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summarize computes the spend summary for one family and month.
//
// The three reads (target-month transactions, comparison-month transactions
// truncated to today's day-of-month, active templates) are independent and
// run concurrently; aggregation waits for all of them. Templates are only
// fetched for the current or a future month, past months rely solely on
// recorded transactions.
func (a *Aggregator) Summarize(ctx context.Context, familyID string, target core.Month) (SpendSummary, error) {
	if familyID == "" {
		return ZeroSummary(), nil
	}

	now := a.now().UTC()
	position := target.Position(now)
	comparison := target.Prev()

	var (
		current   []core.Transaction
		previous  []core.Transaction
		templates []core.ExpenseTemplate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = a.transactions.ListTransactions(gctx, familyID, target.Start(), target.End())
		if err != nil {
			return fmt.Errorf("target month transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Truncate the comparison month to the same day-of-month as today
		// so a partial current month is compared against an equally
		// partial prior month.
		var err error
		previous, err = a.transactions.ListTransactions(gctx, familyID, comparison.Start(), comparison.DayEnd(now.Day()))
		if err != nil {
			return fmt.Errorf("comparison month transactions: %w", err)
		}
		return nil
	})
	if position != core.MonthPast {
		g.Go(func() error {
			var err error
			templates, err = a.templates.ListActiveTemplates(gctx, familyID)
			if err != nil {
				return fmt.Errorf("active templates: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SpendSummary{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	res := computeSummary(snapshot{
		position:    position,
		daysInMonth: target.Days(),
		daysElapsed: daysElapsed(target, position, now),
		current:     current,
		previous:    previous,
		templates:   templates,
		policy:      a.policy,
	})
	if res.skipped > 0 {
		slog.WarnContext(ctx, "Skipped rows with unreadable amounts",
			"family_id", familyID,
			"month", target.String(),
			"skipped", res.skipped)
	}
	return res.summary(), nil
}

// daysElapsed returns how many days of the target month have passed, used
// as the denominator of the daily average. Zero for future months.
func daysElapsed(target core.Month, position core.MonthPosition, now time.Time) int {
	switch position {
	case core.MonthCurrent:
		return now.Day()
	case core.MonthPast:
		return target.Days()
	default:
		return 0
	}
}

type snapshot struct {
	position    core.MonthPosition
	daysInMonth int
	daysElapsed int
	current     []core.Transaction
	previous    []core.Transaction
	templates   []core.ExpenseTemplate
	policy      FixedPolicy
}

// computeSummary is the pure single-pass aggregation. Deterministic for a
// given snapshot; no side effects, no hidden state.
func computeSummary(s snapshot) result {
	var res result

	// Partition the target month by resolved category type. Per-category
	// groups keep first-seen order so equal-sum ties resolve stably.
	var (
		realFixed decimal.Decimal
		variable  decimal.Decimal
		order     []string
		groups    = map[string]*categoryGroup{}
	)
	for _, tx := range s.current {
		amount, ok := readAmount(tx.Amount)
		if !ok {
			res.skipped++
			continue
		}
		if tx.BucketType() == core.CategoryFixed {
			realFixed = realFixed.Add(amount)
			continue
		}
		variable = variable.Add(amount)
		name, icon := categoryLabel(tx)
		g, seen := groups[name]
		if !seen {
			g = &categoryGroup{name: name, icon: icon}
			groups[name] = g
			order = append(order, name)
		}
		g.total = g.total.Add(amount)
	}

	// Template projections: monthly amounts as-is, annual amounts
	// amortized by twelve into a monthly provision.
	var projectedFixed, provision decimal.Decimal
	for _, tpl := range s.templates {
		amount, ok := readAmount(tpl.Amount)
		if !ok {
			res.skipped++
			continue
		}
		switch tpl.Frequency {
		case core.FrequencyMonthly:
			projectedFixed = projectedFixed.Add(amount)
		case core.FrequencyAnnual:
			provision = provision.Add(amount.Div(twelve))
		}
	}
	if s.position == core.MonthPast {
		// Closed months carry no forward-looking provision.
		provision = decimal.Zero
		projectedFixed = decimal.Zero
	}

	effectiveFixed := effectiveFixedTotal(s.position, s.policy, realFixed, projectedFixed)

	// Previous-month variable bucket, already truncated at read time.
	var prevVariable decimal.Decimal
	for _, tx := range s.previous {
		amount, ok := readAmount(tx.Amount)
		if !ok {
			res.skipped++
			continue
		}
		if tx.BucketType() != core.CategoryFixed {
			prevVariable = prevVariable.Add(amount)
		}
	}

	res.variableCurrent = variable
	res.variablePrevious = prevVariable
	if prevVariable.Sign() > 0 {
		res.percentage = variable.Sub(prevVariable).Div(prevVariable).Mul(decimal.NewFromInt(100))
	}

	res.fixedTotal = effectiveFixed
	res.annualProvision = provision
	res.totalSpent = variable.Add(effectiveFixed).Add(provision)

	// Linear projection: extrapolate the month-to-date daily average to
	// the full month, then add the fixed projection and the provision.
	switch s.position {
	case core.MonthCurrent:
		var projectedVariable decimal.Decimal
		if s.daysElapsed > 0 {
			dailyAverage := variable.Div(decimal.NewFromInt(int64(s.daysElapsed)))
			projectedVariable = dailyAverage.Mul(decimal.NewFromInt(int64(s.daysInMonth)))
		}
		res.projection = projectedVariable.Add(projectedFixed).Add(provision)
	case core.MonthFuture:
		res.projection = projectedFixed.Add(provision)
	default:
		// A closed month projects to what was actually spent.
		res.projection = res.totalSpent
	}

	// Top category: maximum variable group, first-seen wins on ties.
	for _, name := range order {
		g := groups[name]
		if res.topCategory == nil || g.total.GreaterThan(res.topCategory.total) {
			res.topCategory = g
		}
	}

	return res
}

// effectiveFixedTotal resolves the fixed total by month position and
// policy. Past months always use recorded transactions only: templates
// describe forward-looking obligations, not historical fact.
func effectiveFixedTotal(position core.MonthPosition, policy FixedPolicy, real, projected decimal.Decimal) decimal.Decimal {
	if position == core.MonthPast {
		return real
	}
	if position == core.MonthFuture {
		if policy == FixedPolicyRealOnly {
			return decimal.Zero
		}
		return projected
	}
	switch policy {
	case FixedPolicyProjectedOnly:
		return projected
	case FixedPolicyRealOnly:
		return real
	default:
		if real.Sign() > 0 {
			return real
		}
		return projected
	}
}

// readAmount validates a stored amount. Writes reject zero and negative
// values, so a non-positive amount here means the row was coerced at the
// read boundary and must be skipped, not summed.
func readAmount(d decimal.Decimal) (decimal.Decimal, bool) {
	if d.Sign() <= 0 {
		return decimal.Zero, false
	}
	return d, true
}

func categoryLabel(tx core.Transaction) (name, icon string) {
	if tx.Category == nil || tx.Category.Name == "" {
		return "Uncategorized", ""
	}
	return tx.Category.Name, tx.Category.Icon
}
