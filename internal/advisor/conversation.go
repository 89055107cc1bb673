// Package advisor implements the family budget chat advisor backed by the
// Generative Language API.
package advisor

import (
	"errors"
	"strings"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

var (
	ErrEmptyPrompt = errors.New("empty prompt")
	ErrBadRole     = errors.New("unknown chat role")
)

// Turn is one message in a conversation.
type Turn struct {
	Role    string
	Content string
}

// Conversation is a validated, model-ready message sequence. The first
// turn is always a user turn and no turn has empty content; build one with
// BuildConversation rather than constructing the slice by hand.
type Conversation struct {
	turns []Turn
}

// BuildConversation assembles the transcript sent to the model from stored
// history plus the new prompt. Leading model turns are dropped so the
// sequence always opens with a user turn, empty turns are skipped, and
// consecutive turns with the same role are merged.
func BuildConversation(history []Turn, prompt string) (Conversation, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Conversation{}, ErrEmptyPrompt
	}

	var turns []Turn
	for _, t := range history {
		if t.Role != RoleUser && t.Role != RoleModel {
			return Conversation{}, ErrBadRole
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if len(turns) == 0 && t.Role != RoleUser {
			continue
		}
		if len(turns) > 0 && turns[len(turns)-1].Role == t.Role {
			turns[len(turns)-1].Content += "\n" + content
			continue
		}
		turns = append(turns, Turn{Role: t.Role, Content: content})
	}

	if len(turns) > 0 && turns[len(turns)-1].Role == RoleUser {
		turns[len(turns)-1].Content += "\n" + prompt
	} else {
		turns = append(turns, Turn{Role: RoleUser, Content: prompt})
	}

	return Conversation{turns: turns}, nil
}

// Turns returns the validated sequence.
func (c Conversation) Turns() []Turn {
	return c.turns
}

// WithContext returns a copy whose first user turn is prefixed with the
// given grounding context.
func (c Conversation) WithContext(context string) Conversation {
	context = strings.TrimSpace(context)
	if context == "" || len(c.turns) == 0 {
		return c
	}
	turns := make([]Turn, len(c.turns))
	copy(turns, c.turns)
	turns[0].Content = context + "\n\n" + turns[0].Content
	return Conversation{turns: turns}
}
