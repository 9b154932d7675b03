package agent

import (
	"context"
	"encoding/json"
	"strings"

	"portfolio-bot/internal/tool"
)

// SQLRetrievalAgent returns a previously executed SQL statement from the
// thread's history. Like the export agent it is a reuse path with no LLM:
// it never regenerates or re-executes SQL.
type SQLRetrievalAgent struct {
	history tool.Tool
}

func NewSQLRetrievalAgent(tools *tool.Registry) *SQLRetrievalAgent {
	history, _ := tools.Get(tool.NameGetSQLHistory)
	return &SQLRetrievalAgent{history: history}
}

// descriptionPatterns mark where the query description starts in a
// retrieval request. Each pattern comes before any shorter pattern that it
// contains.
var descriptionPatterns = []string{
	"sql you used to find",
	"sql you used for",
	"sql you used to",
	"sql used for",
	"sql used to",
	"query you used for",
	"query used for",
	"sql for",
	"query for",
}

// Run looks up the requested SQL and renders it in a fenced code block.
func (a *SQLRetrievalAgent) Run(ctx context.Context, threadID, userMessage string) *Result {
	out := &Result{}

	description := extractDescription(userMessage)
	args, _ := json.Marshal(map[string]string{
		"thread_id":         threadID,
		"query_description": description,
	})

	inv := Invocation{Name: a.history.Name(), Arguments: args}
	res, err := a.history.Execute(ctx, args)
	if err != nil || res.IsError {
		inv.IsError = true
		if err != nil {
			inv.Observation = err.Error()
		} else {
			inv.Observation = res.Error
		}
		out.Invocations = append(out.Invocations, inv)
		out.Text = noSQLHistoryMessage
		return out
	}
	inv.Observation = res.Output
	out.Invocations = append(out.Invocations, inv)

	var payload tool.SQLHistoryPayload
	if json.Unmarshal([]byte(res.Output), &payload) != nil || !payload.SQLFound {
		out.Text = noSQLHistoryMessage
		return out
	}

	var b strings.Builder
	b.WriteString("Here is the SQL query")
	if payload.Question != "" {
		b.WriteString(" I used for \"")
		b.WriteString(payload.Question)
		b.WriteString("\"")
	}
	b.WriteString(":\n```sql\n")
	b.WriteString(payload.SQLStatement)
	b.WriteString("\n```")
	out.Text = b.String()
	return out
}

// extractDescription pulls the fragment after retrieval phrases like
// "sql for" or "sql you used to", so the lookup can match by question.
func extractDescription(message string) string {
	lower := strings.ToLower(message)
	for _, pattern := range descriptionPatterns {
		if idx := strings.Index(lower, pattern); idx >= 0 {
			desc := lower[idx+len(pattern):]
			desc = strings.Trim(desc, " ?.!\"'")
			return desc
		}
	}
	return ""
}
