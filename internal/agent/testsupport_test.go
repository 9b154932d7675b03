package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"portfolio-bot/internal/database"
	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/export"
	"portfolio-bot/internal/format"
	"portfolio-bot/internal/llm"
	"portfolio-bot/internal/memory"
	"portfolio-bot/internal/sqlcheck"
	"portfolio-bot/internal/tool"
)

// workflowProvider simulates a tool-calling model that follows the
// generate → execute → format trajectory. The same instance also answers the
// generate_sql tool's inner completion and the off-topic agent's prompt.
type workflowProvider struct {
	genSQL         func(question string) string
	failGeneration bool
	calls          int
}

func (p *workflowProvider) Name() string         { return "workflow" }
func (p *workflowProvider) DefaultModel() string { return "test-model" }

func (p *workflowProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	p.calls++

	// Inner completion issued by the generate_sql tool.
	if strings.HasPrefix(req.SystemPrompt, "You are a SQL query generator") {
		if p.failGeneration {
			return nil, &llm.LLMError{Type: llm.ErrorServerError, Message: "generation backend down"}
		}
		return &llm.Response{Content: p.genSQL(questionFromPrompt(req))}, nil
	}

	// Off-topic agent completion.
	if strings.HasPrefix(req.SystemPrompt, "You are the off-topic responder") {
		return &llm.Response{
			Content: "I'm focused on app portfolio analytics! Try asking about apps, revenue, installs, or countries.",
		}, nil
	}

	// Tool-loop turns.
	last := req.Messages[len(req.Messages)-1]
	if last.Role == llm.RoleTool {
		switch lastToolName(req.Messages) {
		case tool.NameGenerateSQL:
			if strings.HasPrefix(last.Content, "ERROR:") {
				return &llm.Response{Content: "I couldn't generate SQL for that question. Please try rephrasing it."}, nil
			}
			args, _ := json.Marshal(map[string]string{"sql_query": last.Content})
			return toolCallResponse(tool.NameExecuteSQL, args), nil
		case tool.NameExecuteSQL:
			args, _ := json.Marshal(map[string]any{
				"results":  json.RawMessage(last.Content),
				"question": firstQuestion(req.Messages),
			})
			return toolCallResponse(tool.NameFormatResult, args), nil
		case tool.NameFormatResult:
			return &llm.Response{Content: last.Content}, nil
		}
	}

	// Initial turn: start the trajectory.
	args, _ := json.Marshal(map[string]string{"question": firstQuestion(req.Messages)})
	return toolCallResponse(tool.NameGenerateSQL, args), nil
}

func toolCallResponse(name string, args json.RawMessage) *llm.Response {
	return &llm.Response{
		ToolCalls:  []llm.ToolCall{{ID: "call_" + name, Name: name, Arguments: args}},
		StopReason: "tool_use",
	}
}

// questionFromPrompt recovers the question from the generate_sql tool's
// user prompt.
func questionFromPrompt(req *llm.ChatRequest) string {
	content := req.Messages[len(req.Messages)-1].Content
	const marker = "Generate a SQL query for this question: "
	if idx := strings.Index(content, marker); idx >= 0 {
		rest := content[idx+len(marker):]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			return rest[:nl]
		}
		return rest
	}
	return content
}

// firstQuestion recovers the original question from the loop's first user
// message, unwrapping the conversation-context framing.
func firstQuestion(messages []llm.Message) string {
	for _, m := range messages {
		if m.Role != llm.RoleUser {
			continue
		}
		content := m.Content
		if strings.HasPrefix(content, "Question: ") {
			content = strings.TrimPrefix(content, "Question: ")
			if nl := strings.Index(content, "\n"); nl >= 0 {
				content = content[:nl]
			}
		}
		return content
	}
	return ""
}

// lastToolName finds which tool call the trailing observation answers.
func lastToolName(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == llm.RoleAssistant && len(m.ToolCalls) > 0 {
			return m.ToolCalls[len(m.ToolCalls)-1].Name
		}
	}
	return ""
}

// defaultGenSQL maps the scenario questions onto their expected SQL.
func defaultGenSQL(question string) string {
	lower := strings.ToLower(question)
	switch {
	case strings.Contains(lower, "ios"):
		return "SELECT COUNT(DISTINCT app_name) FROM app_portfolio WHERE platform = 'iOS'"
	case strings.Contains(lower, "how many apps"):
		return "SELECT COUNT(DISTINCT app_name) FROM app_portfolio"
	case strings.Contains(lower, "country"):
		return "SELECT country, SUM(in_app_revenue) AS revenue FROM app_portfolio GROUP BY country ORDER BY revenue DESC"
	default:
		return "SELECT COUNT(*) FROM app_portfolio"
	}
}

// scriptedFailProvider always fails, for fallback-path tests.
type scriptedFailProvider struct{}

func (p *scriptedFailProvider) Name() string         { return "down" }
func (p *scriptedFailProvider) DefaultModel() string { return "test-model" }

func (p *scriptedFailProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.Response, error) {
	return nil, &llm.LLMError{Type: llm.ErrorNetwork, Message: "connection refused"}
}

// testStack is the fully wired system over a seeded temp database.
type testStack struct {
	orch     *Orchestrator
	store    *memory.Store
	registry *tool.Registry
	provider *workflowProvider
	bus      *eventbus.Bus
	exportTo string
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "app_portfolio.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Seed(); err != nil {
		t.Fatal(err)
	}

	provider := &workflowProvider{genSQL: defaultGenSQL}
	store := memory.NewStore(memory.DefaultOptions())
	formatter := format.New()
	bus := eventbus.New()
	exportDir := t.TempDir()

	registry := tool.NewRegistry()
	registry.Register(tool.NewGenerateSQLTool(provider))
	registry.Register(tool.NewExecuteSQLTool(db, sqlcheck.NewValidator("app_portfolio"), bus))
	registry.Register(tool.NewFormatResultTool(formatter))
	registry.Register(tool.NewGenerateCSVTool(export.NewWriter(exportDir)))
	registry.Register(tool.NewGetSQLHistoryTool(store))
	registry.Register(tool.NewGetCachedResultsTool(store))

	orch := NewOrchestrator(
		NewRouter(),
		NewSQLQueryAgent(provider, registry, store, formatter, bus, 10),
		NewCSVExportAgent(registry, bus),
		NewSQLRetrievalAgent(registry),
		NewOffTopicAgent(provider),
		store,
		bus,
		time.Minute,
	)

	return &testStack{
		orch:     orch,
		store:    store,
		registry: registry,
		provider: provider,
		bus:      bus,
		exportTo: exportDir,
	}
}

func (s *testStack) process(t *testing.T, threadID, message string) *Result {
	t.Helper()
	result, err := s.orch.Process(context.Background(), threadID, message)
	if err != nil {
		t.Fatalf("process %q: %v", message, err)
	}
	return result
}

func assertNoInvocationOf(t *testing.T, result *Result, names ...string) {
	t.Helper()
	for _, inv := range result.Invocations {
		for _, name := range names {
			if inv.Name == name {
				t.Fatalf("forbidden tool %s was invoked", name)
			}
		}
	}
}
