package advisor

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/yabolb/familyflow/internal/budget"
	"github.com/yabolb/familyflow/internal/core"
	"github.com/yabolb/familyflow/internal/energy"
	"github.com/yabolb/familyflow/internal/storage"
)

func TestBuildConversation(t *testing.T) {
	tests := []struct {
		name    string
		history []Turn
		prompt  string
		want    []Turn
		wantErr error
	}{
		{
			name:   "no history",
			prompt: "how much did we spend?",
			want:   []Turn{{Role: RoleUser, Content: "how much did we spend?"}},
		},
		{
			name:    "empty prompt rejected",
			prompt:  "   ",
			wantErr: ErrEmptyPrompt,
		},
		{
			name: "leading model turns dropped",
			history: []Turn{
				{Role: RoleModel, Content: "welcome!"},
				{Role: RoleUser, Content: "hi"},
				{Role: RoleModel, Content: "hello"},
			},
			prompt: "tips?",
			want: []Turn{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleModel, Content: "hello"},
				{Role: RoleUser, Content: "tips?"},
			},
		},
		{
			name: "empty turns skipped",
			history: []Turn{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleModel, Content: "  "},
				{Role: RoleModel, Content: "hello"},
			},
			prompt: "tips?",
			want: []Turn{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleModel, Content: "hello"},
				{Role: RoleUser, Content: "tips?"},
			},
		},
		{
			name: "consecutive same-role turns merged",
			history: []Turn{
				{Role: RoleUser, Content: "first"},
				{Role: RoleUser, Content: "second"},
			},
			prompt: "third",
			want: []Turn{
				{Role: RoleUser, Content: "first\nsecond\nthird"},
			},
		},
		{
			name:    "unknown role rejected",
			history: []Turn{{Role: "system", Content: "x"}},
			prompt:  "hi",
			wantErr: ErrBadRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, err := BuildConversation(tt.history, tt.prompt)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got error %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(conv.Turns(), tt.want) {
				t.Errorf("turns = %+v, want %+v", conv.Turns(), tt.want)
			}
		})
	}
}

func TestConversation_WithContext(t *testing.T) {
	conv, err := BuildConversation(nil, "question")
	if err != nil {
		t.Fatal(err)
	}
	got := conv.WithContext("numbers here")
	if want := "numbers here\n\nquestion"; got.Turns()[0].Content != want {
		t.Errorf("got %q, want %q", got.Turns()[0].Content, want)
	}

	// Original stays untouched.
	if conv.Turns()[0].Content != "question" {
		t.Error("WithContext mutated the receiver")
	}
}

type fakeTranscript struct {
	history  []storage.ChatMessage
	appended []storage.ChatMessage
}

func (f *fakeTranscript) AppendChatMessage(_ context.Context, m storage.ChatMessage) error {
	f.appended = append(f.appended, m)
	return nil
}

func (f *fakeTranscript) ListRecentChatMessages(_ context.Context, _ string, _ int) ([]storage.ChatMessage, error) {
	return f.history, nil
}

type fakeSummaries struct{ summary budget.SpendSummary }

func (f fakeSummaries) Summarize(context.Context, string, core.Month) (budget.SpendSummary, error) {
	return f.summary, nil
}

type failingSummaries struct{}

func (failingSummaries) Summarize(context.Context, string, core.Month) (budget.SpendSummary, error) {
	return budget.SpendSummary{}, errors.New("store down")
}

type fakePrices struct{ snap energy.Snapshot }

func (f fakePrices) Prices(context.Context) (energy.Snapshot, error) { return f.snap, nil }

type fakeGenerator struct {
	gotConv Conversation
	reply   string
}

func (f *fakeGenerator) Generate(_ context.Context, conv Conversation) (string, error) {
	f.gotConv = conv
	return f.reply, nil
}

func TestAdvisor_Chat(t *testing.T) {
	store := &fakeTranscript{history: []storage.ChatMessage{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleModel, Content: "hello"},
	}}
	gen := &fakeGenerator{reply: "cut back on dining out"}
	summary := budget.SpendSummary{
		Variable:   budget.VariableSpend{Current: 420.50},
		FixedTotal: 900,
	}

	adv := New(fakeSummaries{summary}, fakePrices{}, store, gen)

	reply, err := adv.Chat(context.Background(), "fam-1", "user-1", "any tips?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if reply != "cut back on dining out" {
		t.Errorf("reply = %q", reply)
	}

	turns := gen.gotConv.Turns()
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	if turns[0].Role != RoleUser {
		t.Error("conversation must open with a user turn")
	}

	if len(store.appended) != 2 {
		t.Fatalf("persisted %d turns, want 2", len(store.appended))
	}
	if store.appended[0].Role != RoleUser || store.appended[0].Content != "any tips?" {
		t.Errorf("first persisted turn = %+v", store.appended[0])
	}
	if store.appended[1].Role != RoleModel {
		t.Errorf("second persisted turn = %+v", store.appended[1])
	}
}

func TestAdvisor_Chat_SummaryFailureDegrades(t *testing.T) {
	store := &fakeTranscript{}
	gen := &fakeGenerator{reply: "ok"}
	adv := New(failingSummaries{}, fakePrices{}, store, gen)

	if _, err := adv.Chat(context.Background(), "fam-1", "user-1", "hello"); err != nil {
		t.Fatalf("summary failure must not fail the chat: %v", err)
	}
}

func TestAdvisor_Chat_MissingFamily(t *testing.T) {
	adv := New(fakeSummaries{}, fakePrices{}, &fakeTranscript{}, &fakeGenerator{})
	if _, err := adv.Chat(context.Background(), "", "user-1", "hi"); err == nil {
		t.Error("expected error for missing family id")
	}
}
