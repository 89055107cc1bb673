package budget

import (
	"context"
	"time"

	"github.com/yabolb/familyflow/internal/core"
)

// Ports for the persistence collaborator. The aggregator only reads; row
// ownership stays with the storage layer.
type (
	// TransactionReader lists a family's transactions whose date falls in
	// [from, to], both ends inclusive.
	TransactionReader interface {
		ListTransactions(ctx context.Context, familyID string, from, to time.Time) ([]core.Transaction, error)
	}

	// TemplateReader lists a family's active expense templates.
	TemplateReader interface {
		ListActiveTemplates(ctx context.Context, familyID string) ([]core.ExpenseTemplate, error)
	}

	// FeedbackReader provides the two reads behind the feedback gate.
	FeedbackReader interface {
		// HasResponded reports whether at least one feedback record exists
		// for the user.
		HasResponded(ctx context.Context, userID string) (bool, error)

		// CountTransactions returns how many transactions the user has
		// recorded overall.
		CountTransactions(ctx context.Context, userID string) (int, error)
	}
)
