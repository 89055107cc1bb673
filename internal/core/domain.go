package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Category types decide fixed/variable bucketing during aggregation.
	CategoryFixed    CategoryType = "fixed"
	CategoryVariable CategoryType = "variable"
	CategoryBoth     CategoryType = "both"

	// Template frequencies.
	FrequencyMonthly Frequency = "monthly"
	FrequencyAnnual  Frequency = "annual"

	// Transaction statuses.
	StatusPaid    TransactionStatus = "paid"
	StatusPending TransactionStatus = "pending"
)

type (
	CategoryType      string
	Frequency         string
	TransactionStatus string

	// Family is the tenant boundary: every transaction and template belongs
	// to exactly one family, and aggregation never crosses it.
	Family struct {
		ID         string
		Name       string
		InviteCode string
		CreatedAt  time.Time
	}

	// Category classifies a transaction or template as structurally fixed
	// or variable. FamilyID is empty for system-wide categories.
	Category struct {
		ID       string
		FamilyID string
		Name     string
		Icon     string
		Type     CategoryType
	}

	// Transaction is one recorded expense event.
	Transaction struct {
		ID          string
		FamilyID    string
		CategoryID  string
		Amount      decimal.Decimal
		Date        time.Time
		Status      TransactionStatus
		Description string

		// Category is the resolved category, nil when the join failed.
		Category *Category
	}

	// ExpenseTemplate is a recurring obligation definition, not itself a
	// cash event. Annual templates carry a DueMonth; monthly ones do not.
	ExpenseTemplate struct {
		ID         string
		FamilyID   string
		CategoryID string
		Amount     decimal.Decimal
		Frequency  Frequency
		DueDay     int
		DueMonth   int
		Active     bool

		Description string
		LastRunAt   time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDueDay    = errors.New("invalid due day")
	ErrInvalidDueMonth  = errors.New("invalid due month")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyFamily      = errors.New("empty family id")
	ErrEmptyName        = errors.New("empty name")
)

// BucketType resolves the effective category type for bucketing. A
// transaction with no resolvable category counts as variable.
func (t Transaction) BucketType() CategoryType {
	if t.Category == nil {
		return CategoryVariable
	}
	switch t.Category.Type {
	case CategoryFixed:
		return CategoryFixed
	default:
		return CategoryVariable
	}
}

func (t Transaction) Validate() error {
	if t.FamilyID == "" {
		return ErrEmptyFamily
	}
	if t.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	desc := strings.TrimSpace(t.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	switch t.Status {
	case StatusPaid, StatusPending:
	default:
		return ErrInvalidStatus
	}
	return nil
}

func (ft Frequency) Valid() bool {
	return ft == FrequencyMonthly || ft == FrequencyAnnual
}

func (tpl ExpenseTemplate) Validate() error {
	if tpl.FamilyID == "" {
		return ErrEmptyFamily
	}
	if tpl.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if !tpl.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if tpl.DueDay < 1 || tpl.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if tpl.Frequency == FrequencyAnnual {
		if tpl.DueMonth < 1 || tpl.DueMonth > 12 {
			return ErrInvalidDueMonth
		}
	}
	if len(strings.TrimSpace(tpl.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(tpl.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nil
}

func (f Family) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	if len(f.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}
