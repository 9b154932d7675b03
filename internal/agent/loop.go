package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/llm"
	"portfolio-bot/internal/tool"
)

// Invocation records one tool call made during an agent run. Invocations are
// not persisted; agent wrappers inspect them after the loop.
type Invocation struct {
	Name        string
	Arguments   json.RawMessage
	Observation string
	IsError     bool
}

// loopRunner drives the Reasoning → ToolPending → ToolObserved cycle against
// the LLM provider until it produces final text or the step limit is hit.
type loopRunner struct {
	provider  llm.Provider
	tools     *tool.Registry
	bus       *eventbus.Bus
	stepLimit int
}

func newLoopRunner(provider llm.Provider, tools *tool.Registry, bus *eventbus.Bus, stepLimit int) *loopRunner {
	if stepLimit <= 0 {
		stepLimit = 10
	}
	return &loopRunner{provider: provider, tools: tools, bus: bus, stepLimit: stepLimit}
}

// run executes the tool loop. It returns the final text, the tool calls made
// along the way, and an error only for terminal provider failures,
// cancellation, or reaching the step limit; tool failures stay inside the
// loop as observations.
func (l *loopRunner) run(ctx context.Context, systemPrompt string, messages []llm.Message) (string, []Invocation, error) {
	var invocations []Invocation

	for step := 0; step < l.stepLimit; step++ {
		req := &llm.ChatRequest{
			Messages:     messages,
			Tools:        l.tools.Definitions(),
			SystemPrompt: systemPrompt,
			MaxTokens:    2048,
			Temperature:  0.1,
		}
		l.publish(eventbus.TopicLLMRequest, req)

		resp, err := l.provider.Chat(ctx, req)
		if err != nil {
			return "", invocations, fmt.Errorf("LLM call: %w", err)
		}
		l.publish(eventbus.TopicLLMResponse, resp)

		if len(resp.ToolCalls) == 0 {
			return resp.Content, invocations, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			// Cancellation is observed at the tool boundary.
			if err := ctx.Err(); err != nil {
				return "", invocations, err
			}

			inv := l.executeCall(ctx, tc)
			invocations = append(invocations, inv)

			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    inv.Observation,
				ToolCallID: tc.ID,
			})
		}
	}

	return "", invocations, fmt.Errorf("step limit of %d reached without a final answer", l.stepLimit)
}

func (l *loopRunner) executeCall(ctx context.Context, tc llm.ToolCall) Invocation {
	inv := Invocation{Name: tc.Name, Arguments: tc.Arguments}
	l.publish(eventbus.TopicToolCall, tc)

	t, err := l.tools.Get(tc.Name)
	if err != nil {
		inv.Observation = fmt.Sprintf("Error: tool %q not found", tc.Name)
		inv.IsError = true
	} else {
		res, err := t.Execute(ctx, tc.Arguments)
		switch {
		case err != nil:
			inv.Observation = "Error executing tool: " + err.Error()
			inv.IsError = true
		case res.IsError:
			inv.Observation = "Error: " + res.Error
			if res.Output != "" {
				inv.Observation = res.Output
			}
			inv.IsError = true
		default:
			inv.Observation = res.Output
		}
	}

	l.publish(eventbus.TopicToolResult, map[string]string{"name": tc.Name, "result": inv.Observation})
	log.Printf("[agent] tool %s -> %s", tc.Name, truncate(inv.Observation, 120))
	return inv
}

func (l *loopRunner) publish(topic eventbus.Topic, payload any) {
	if l.bus != nil {
		l.bus.Publish(topic, payload)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
