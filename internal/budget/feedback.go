package budget

import (
	"context"
	"fmt"
)

const (
	// FeedbackAskThreshold is how many transactions a user must have
	// recorded before the feedback prompt shows at all.
	FeedbackAskThreshold = 3

	// FeedbackReaskThreshold is the transaction count at which a prompt
	// the user dismissed becomes eligible again.
	FeedbackReaskThreshold = 5
)

// Eligibility is the gate's output triple.
type Eligibility struct {
	ShouldShow       bool `json:"shouldShow"`
	HasResponded     bool `json:"hasResponded"`
	TransactionCount int  `json:"transactionCount"`
}

// EvaluateEligibility is the pure feedback-gate predicate: show the prompt
// iff the user never responded and has recorded enough transactions. A
// client-side dismissal suppresses it until the re-ask threshold.
func EvaluateEligibility(hasResponded bool, transactionCount int, dismissed bool) Eligibility {
	threshold := FeedbackAskThreshold
	if dismissed {
		threshold = FeedbackReaskThreshold
	}
	return Eligibility{
		ShouldShow:       !hasResponded && transactionCount >= threshold,
		HasResponded:     hasResponded,
		TransactionCount: transactionCount,
	}
}

// FeedbackGate wires the predicate to its two external reads.
type FeedbackGate struct {
	reader FeedbackReader
}

func NewFeedbackGate(reader FeedbackReader) *FeedbackGate {
	return &FeedbackGate{reader: reader}
}

// Check evaluates feedback eligibility for a user. The two reads are
// independent but cheap, so they run sequentially.
func (g *FeedbackGate) Check(ctx context.Context, userID string, dismissed bool) (Eligibility, error) {
	responded, err := g.reader.HasResponded(ctx, userID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("%w: feedback records: %w", ErrUpstream, err)
	}
	count, err := g.reader.CountTransactions(ctx, userID)
	if err != nil {
		return Eligibility{}, fmt.Errorf("%w: transaction count: %w", ErrUpstream, err)
	}
	return EvaluateEligibility(responded, count, dismissed), nil
}
