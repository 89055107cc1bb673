package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"

	"github.com/yabolb/familyflow/internal/budget"
	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/energy"
	"github.com/yabolb/familyflow/internal/storage"
)

const historyWindow = 20

// SummaryProvider produces the month's spend summary for grounding.
type SummaryProvider interface {
	Summarize(ctx context.Context, familyID string, target core.Month) (budget.SpendSummary, error)
}

// PriceProvider supplies current electricity spot prices.
type PriceProvider interface {
	Prices(ctx context.Context) (energy.Snapshot, error)
}

// TranscriptStore persists chat turns across sessions.
type TranscriptStore interface {
	AppendChatMessage(ctx context.Context, m storage.ChatMessage) error
	ListRecentChatMessages(ctx context.Context, familyID string, limit int) ([]storage.ChatMessage, error)
}

// TextGenerator answers a conversation with a model reply.
type TextGenerator interface {
	Generate(ctx context.Context, conv Conversation) (string, error)
}

// Advisor answers budget questions grounded in the family's current month
// and electricity prices. Missing grounding data degrades the context, it
// never fails the chat.
type Advisor struct {
	summaries SummaryProvider
	prices    PriceProvider
	store     TranscriptStore
	generator TextGenerator
	now       func() time.Time
}

func New(summaries SummaryProvider, prices PriceProvider, store TranscriptStore, generator TextGenerator) *Advisor {
	return &Advisor{
		summaries: summaries,
		prices:    prices,
		store:     store,
		generator: generator,
		now:       time.Now,
	}
}

// Chat answers prompt for the family, persisting both sides of the
// exchange.
func (a *Advisor) Chat(ctx context.Context, familyID, userID, prompt string) (string, error) {
	if familyID == "" {
		return "", errors.New("missing family id")
	}

	var (
		summary budget.SpendSummary
		snap    energy.Snapshot
		history []storage.ChatMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.summaries.Summarize(gctx, familyID, core.MonthOf(a.now()))
		if err != nil {
			slog.WarnContext(gctx, "Advisor context: summary unavailable", "error", err)
			return nil
		}
		summary = s
		return nil
	})
	g.Go(func() error {
		if a.prices == nil {
			return nil
		}
		s, err := a.prices.Prices(gctx)
		if err != nil {
			slog.WarnContext(gctx, "Advisor context: prices unavailable", "error", err)
			return nil
		}
		snap = s
		return nil
	})
	g.Go(func() error {
		h, err := a.store.ListRecentChatMessages(gctx, familyID, historyWindow)
		if err != nil {
			return fmt.Errorf("load chat history: %w", err)
		}
		history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	turns := make([]Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}

	conv, err := BuildConversation(turns, prompt)
	if err != nil {
		return "", err
	}
	conv = conv.WithContext(a.groundingContext(summary, snap))

	reply, err := a.generator.Generate(ctx, conv)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}

	for _, m := range []storage.ChatMessage{
		{FamilyID: familyID, UserID: userID, Role: RoleUser, Content: prompt},
		{FamilyID: familyID, Role: RoleModel, Content: reply},
	} {
		if err := a.store.AppendChatMessage(ctx, m); err != nil {
			slog.WarnContext(ctx, "Could not persist chat turn", "role", m.Role, "error", err)
		}
	}

	return reply, nil
}

// groundingContext renders the household's numbers into a prefix for the
// first user turn.
func (a *Advisor) groundingContext(summary budget.SpendSummary, snap energy.Snapshot) string {
	var b strings.Builder
	b.WriteString("You are a household budgeting assistant. Answer briefly and concretely.\n")
	fmt.Fprintf(&b, "This month so far: variable spending %.2f (previous month to date %.2f), fixed costs %.2f, projected month total %.2f.\n",
		summary.Variable.Current, summary.Variable.Previous, summary.FixedTotal, summary.MonthlyProjection)
	if summary.TopCategory != nil {
		fmt.Fprintf(&b, "Largest variable category: %s at %.2f.\n", summary.TopCategory.Name, summary.TopCategory.Amount)
	}
	if len(snap.Points) > 0 {
		fmt.Fprintf(&b, "Electricity spot price: avg %.1f ct/kWh today (min %.1f, max %.1f).",
			snap.Average, snap.Min, snap.Max)
		if cheapest, ok := snap.CheapestHour(); ok {
			fmt.Fprintf(&b, " Cheapest hour starts %s.", cheapest.Format("15:04"))
		}
	}
	return b.String()
}

// GeminiGenerator calls the Generative Language API.
type GeminiGenerator struct {
	svc   *generativelanguage.Service
	model string
}

// NewGeminiGenerator builds a generator with an API key. model is the bare
// model name, e.g. "gemini-1.5-flash".
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	svc, err := generativelanguage.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("generativelanguage service: %w", err)
	}
	return &GeminiGenerator{svc: svc, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, conv Conversation) (string, error) {
	req := &generativelanguage.GenerateContentRequest{}
	for _, t := range conv.Turns() {
		req.Contents = append(req.Contents, &generativelanguage.Content{
			Role:  t.Role,
			Parts: []*generativelanguage.Part{{Text: t.Content}},
		})
	}

	resp, err := g.svc.Models.GenerateContent("models/"+g.model, req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("model returned no candidates")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
