package orchestration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxturn/voxturn-core/core/llms"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Utterance is one thing said in the conversation. Immutable once created.
type Utterance struct {
	ID        string
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}

// conversationHistory is the append-only record of the session. Only the
// orchestrator's turn goroutine appends; readers get copies.
type conversationHistory struct {
	mu         sync.RWMutex
	utterances []Utterance
}

func newConversationHistory() *conversationHistory {
	return &conversationHistory{}
}

func (h *conversationHistory) Append(speaker Speaker, text string) Utterance {
	utterance := Utterance{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: time.Now(),
	}

	h.mu.Lock()
	h.utterances = append(h.utterances, utterance)
	h.mu.Unlock()

	return utterance
}

func (h *conversationHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.utterances)
}

// Snapshot returns a point-in-time copy of the conversation so far.
func (h *conversationHistory) Snapshot() []Utterance {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshot := make([]Utterance, len(h.utterances))
	copy(snapshot, h.utterances)
	return snapshot
}

// Messages renders the history as the message list sent to the LLM adapter.
func (h *conversationHistory) Messages() []llms.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	messages := make([]llms.Message, 0, len(h.utterances))
	for _, utterance := range h.utterances {
		role := llms.MessageRoleUser
		if utterance.Speaker == SpeakerAgent {
			role = llms.MessageRoleAssistant
		}
		messages = append(messages, llms.Message{
			Role:    role,
			Content: utterance.Text,
		})
	}
	return messages
}
