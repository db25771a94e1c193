package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hostwise/whatsapp-concierge/internal/store"
	"github.com/hostwise/whatsapp-concierge/pkg/logging"
)

const (
	defaultHistoryLimit = 20
	draftTemperature    = 0.1
)

// HistorySource loads prior conversation turns for prompt context.
type HistorySource interface {
	ListRecentMessages(ctx context.Context, conversationID uuid.UUID, limit int) ([]store.MessageRecord, error)
}

// DraftResult is a generated reply plus its confidence verdict. Err is set
// when generation itself failed; the zero verdict then applies.
type DraftResult struct {
	Response   string
	Confidence float64
	ShouldSend bool
	Reasoning  string
	Err        error
}

// Drafter generates candidate replies to guest messages.
type Drafter struct {
	llm          LLMClient
	history      HistorySource
	modelID      string
	historyLimit int
	timeout      time.Duration
	logger       *logging.Logger
}

func NewDrafter(llm LLMClient, history HistorySource, modelID string, historyLimit int, timeout time.Duration, logger *logging.Logger) *Drafter {
	if logger == nil {
		logger = logging.Default()
	}
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Drafter{
		llm:          llm,
		history:      history,
		modelID:      modelID,
		historyLimit: historyLimit,
		timeout:      timeout,
		logger:       logger,
	}
}

// Draft builds the prompt from the conversation history and property record,
// asks the model for a reply, and classifies its confidence. A missing
// property still yields a draft; the classifier decides whether it is safe
// to send.
func (d *Drafter) Draft(ctx context.Context, conversationID uuid.UUID, incoming string, property *PropertyContext) DraftResult {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var history []store.MessageRecord
	if d.history != nil {
		var err error
		history, err = d.history.ListRecentMessages(ctx, conversationID, d.historyLimit)
		if err != nil {
			// History is context, not correctness. Draft without it.
			d.logger.Warn("ai: history fetch failed", "conversation_id", conversationID, "error", err)
			history = nil
		}
	}

	messages := make([]ChatMessage, 0, len(history)+1)
	for _, msg := range history {
		role := ChatRoleAssistant
		if msg.Direction == "inbound" {
			role = ChatRoleUser
		}
		content := msg.Text
		if content == "" {
			content = fmt.Sprintf("[%s message]", msg.MessageType)
		}
		messages = append(messages, ChatMessage{Role: role, Content: content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: incoming})

	resp, err := d.llm.Complete(ctx, LLMRequest{
		Model:       d.modelID,
		System:      []string{BuildSystemPrompt(property)},
		Messages:    messages,
		Temperature: draftTemperature,
	})
	if err != nil {
		return DraftResult{Err: fmt.Errorf("ai: draft reply: %w", err)}
	}

	verdict := ClassifyDraft(resp.Text, incoming)
	return DraftResult{
		Response:   resp.Text,
		Confidence: verdict.Confidence,
		ShouldSend: verdict.ShouldSend,
		Reasoning:  verdict.Reasoning,
	}
}
