package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"portfolio-bot/internal/database"
	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/format"
	"portfolio-bot/internal/llm"
	"portfolio-bot/internal/memory"
	"portfolio-bot/internal/tool"
)

// Result is an agent's outcome for one message.
type Result struct {
	Text        string
	FilePath    string // generated CSV to upload, when present
	Invocations []Invocation
}

// SQLQueryAgent runs the generate → execute → format workflow through an
// LLM tool loop. The wrapper, not the model, owns the post-processing
// contract: a successful execution always stores a query record.
type SQLQueryAgent struct {
	loop      *loopRunner
	store     *memory.Store
	formatter *format.Formatter
}

// NewSQLQueryAgent builds the agent over a restricted tool subset.
func NewSQLQueryAgent(provider llm.Provider, tools *tool.Registry, store *memory.Store, formatter *format.Formatter, bus *eventbus.Bus, stepLimit int) *SQLQueryAgent {
	subset := tools.Subset(tool.NameGenerateSQL, tool.NameExecuteSQL, tool.NameFormatResult)
	return &SQLQueryAgent{
		loop:      newLoopRunner(provider, subset, bus, stepLimit),
		store:     store,
		formatter: formatter,
	}
}

// Run answers a database question. It never returns an error: failures
// become user-facing text per the propagation policy.
func (a *SQLQueryAgent) Run(ctx context.Context, threadID, question string, history []memory.Message) *Result {
	userMessage := question
	if context3 := historyContext(history, 3); context3 != "" {
		userMessage = fmt.Sprintf("Question: %s\n\nPrevious conversation:\n%s\n\nPlease answer the question using the available tools.",
			question, context3)
	}

	finalText, invocations, err := a.loop.run(ctx, sqlQuerySystemPrompt,
		[]llm.Message{{Role: llm.RoleUser, Content: userMessage}})

	sql, result, formatted := inspectInvocations(invocations)

	// The store step is mandatory after any successful execution,
	// regardless of how the loop ended.
	if result != nil && result.Success {
		if sql == "" {
			sql = result.Query
		}
		a.store.StoreSQLQuery(threadID, sql, question, result)
		log.Printf("[sql-agent] stored query record for thread %s", threadID)
	}

	if err != nil {
		if ctx.Err() != nil {
			return &Result{Text: "", Invocations: invocations}
		}
		log.Printf("[sql-agent] loop failed: %v", err)
		if result != nil {
			// We still have results; format them ourselves.
			return &Result{Text: a.formatter.Format(result, question), Invocations: invocations}
		}
		return &Result{
			Text:        "I encountered an error processing your query: " + err.Error(),
			Invocations: invocations,
		}
	}

	text := strings.TrimSpace(finalText)
	// Prefer the format tool's own output over whatever the model wrote,
	// and recover when the model echoed raw JSON.
	if formatted != "" {
		text = formatted
	} else if result != nil && looksLikeRawJSON(text) {
		text = a.formatter.Format(result, question)
	} else if text == "" && result != nil {
		text = a.formatter.Format(result, question)
	}
	if text == "" {
		text = "I couldn't process your query. Please try again."
	}

	return &Result{Text: text, Invocations: invocations}
}

// inspectInvocations extracts the generated SQL, the execution result, and
// the formatted output from the loop's tool calls, keeping the most recent
// of each.
func inspectInvocations(invocations []Invocation) (sql string, result *database.QueryResult, formatted string) {
	for _, inv := range invocations {
		if inv.IsError {
			continue
		}
		switch inv.Name {
		case tool.NameGenerateSQL:
			if !strings.HasPrefix(inv.Observation, "ERROR:") {
				sql = tool.StripSQLFences(inv.Observation)
			}
		case tool.NameExecuteSQL:
			if parsed, ok := tool.ParseQueryResult(inv.Observation); ok {
				result = parsed
			}
		case tool.NameFormatResult:
			formatted = inv.Observation
		}
	}
	return sql, result, formatted
}

// historyContext renders the last n turns as role-prefixed lines.
func historyContext(history []memory.Message, n int) string {
	if len(history) == 0 {
		return ""
	}
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	var lines []string
	for _, m := range history[start:] {
		role := "User"
		if m.Role == memory.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func looksLikeRawJSON(s string) bool {
	return strings.HasPrefix(s, "{") ||
		strings.Contains(s, `"success"`) ||
		strings.Contains(s, `"row_count"`)
}
