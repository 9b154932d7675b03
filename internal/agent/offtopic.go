package agent

import (
	"context"
	"log"
	"strings"

	"portfolio-bot/internal/llm"
)

// OffTopicAgent handles messages outside the database domain. It has no
// tools: a single prompted completion shapes the polite redirect, with a
// fixed fallback when the provider is unavailable.
type OffTopicAgent struct {
	provider llm.Provider
}

func NewOffTopicAgent(provider llm.Provider) *OffTopicAgent {
	return &OffTopicAgent{provider: provider}
}

// Run produces the acknowledgement + specialization + examples response.
func (a *OffTopicAgent) Run(ctx context.Context, threadID, userMessage string) *Result {
	resp, err := a.provider.Chat(ctx, &llm.ChatRequest{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: userMessage}},
		SystemPrompt: offTopicSystemPrompt,
		MaxTokens:    512,
		Temperature:  0.5,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil {
			log.Printf("[off-topic] provider failed, using fallback: %v", err)
		}
		return &Result{Text: offTopicFallback}
	}
	return &Result{Text: resp.Content}
}
