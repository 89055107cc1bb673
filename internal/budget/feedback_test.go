package budget

import (
	"context"
	"errors"
	"testing"
)

func TestEvaluateEligibility(t *testing.T) {
	cases := []struct {
		name       string
		responded  bool
		count      int
		dismissed  bool
		shouldShow bool
	}{
		{"below threshold", false, 2, false, false},
		{"at threshold", false, 3, false, true},
		{"above threshold", false, 10, false, true},
		{"already responded", true, 10, false, false},
		{"dismissed below reask", false, 4, true, false},
		{"dismissed at reask", false, 5, true, true},
		{"dismissed and responded", true, 9, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateEligibility(tc.responded, tc.count, tc.dismissed)
			if got.ShouldShow != tc.shouldShow {
				t.Fatalf("shouldShow: got %v, want %v", got.ShouldShow, tc.shouldShow)
			}
			if got.HasResponded != tc.responded || got.TransactionCount != tc.count {
				t.Fatalf("echoed inputs wrong: %+v", got)
			}
		})
	}
}

type fakeFeedbackReader struct {
	responded bool
	count     int
	err       error
}

func (f fakeFeedbackReader) HasResponded(context.Context, string) (bool, error) {
	return f.responded, f.err
}

func (f fakeFeedbackReader) CountTransactions(context.Context, string) (int, error) {
	return f.count, f.err
}

func TestFeedbackGateCheck(t *testing.T) {
	gate := NewFeedbackGate(fakeFeedbackReader{responded: false, count: 7})
	got, err := gate.Check(context.Background(), "user-1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.ShouldShow {
		t.Fatalf("expected eligible, got %+v", got)
	}
}

func TestFeedbackGateUpstreamError(t *testing.T) {
	gate := NewFeedbackGate(fakeFeedbackReader{err: errors.New("db down")})
	_, err := gate.Check(context.Background(), "user-1", false)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}
