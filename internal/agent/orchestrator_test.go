package agent

import (
	"context"
	"strings"
	"testing"

	"portfolio-bot/internal/tool"
)

func TestScenarioSimpleCount(t *testing.T) {
	s := newTestStack(t)

	result := s.process(t, "T1", "how many apps do we have?")
	if result.Text != "49" {
		t.Fatalf("expected \"49\", got %q", result.Text)
	}

	last := s.store.GetLastSQLQuery("T1")
	if last == nil {
		t.Fatal("expected query record")
	}
	if last.SQL != "SELECT COUNT(DISTINCT app_name) FROM app_portfolio" {
		t.Fatalf("unexpected stored SQL: %q", last.SQL)
	}
	if last.Question != "how many apps do we have?" {
		t.Fatalf("unexpected stored question: %q", last.Question)
	}
}

func TestScenarioFollowUp(t *testing.T) {
	s := newTestStack(t)

	s.process(t, "T1", "how many apps do we have?")
	result := s.process(t, "T1", "what about iOS apps?")

	if result.Text != "21" {
		t.Fatalf("expected \"21\", got %q", result.Text)
	}
	last := s.store.GetLastSQLQuery("T1")
	if !strings.Contains(last.SQL, "platform = 'iOS'") {
		t.Fatalf("unexpected follow-up SQL: %q", last.SQL)
	}
}

func TestScenarioExportWithoutPriorQuery(t *testing.T) {
	s := newTestStack(t)

	result := s.process(t, "T2", "export this as csv")
	if !strings.Contains(result.Text, "Please run a query first") {
		t.Fatalf("expected guidance message, got %q", result.Text)
	}
	if result.FilePath != "" {
		t.Fatalf("no file must be produced, got %q", result.FilePath)
	}
}

func TestScenarioExportWithCachedResults(t *testing.T) {
	s := newTestStack(t)

	s.process(t, "T1", "how many apps do we have?")
	result := s.process(t, "T1", "export this as csv")

	if result.Text != "CSV report generated." {
		t.Fatalf("expected confirmation, got %q", result.Text)
	}
	if result.FilePath == "" {
		t.Fatal("expected generated file path")
	}
	if !strings.Contains(result.FilePath, "app_portfolio_export_") {
		t.Fatalf("unexpected export filename: %q", result.FilePath)
	}

	assertNoInvocationOf(t, result, tool.NameExecuteSQL, tool.NameGenerateSQL)
}

func TestScenarioSQLRetrievalByDescription(t *testing.T) {
	s := newTestStack(t)

	s.process(t, "T1", "how many apps do we have?")
	s.process(t, "T1", "what about iOS apps?")
	result := s.process(t, "T1", "show me the SQL you used for how many apps")

	if !strings.Contains(result.Text, "```sql\n") {
		t.Fatalf("expected fenced sql block, got %q", result.Text)
	}
	if !strings.Contains(result.Text, "SELECT COUNT(DISTINCT app_name) FROM app_portfolio") {
		t.Fatalf("expected the first stored SQL, got %q", result.Text)
	}

	assertNoInvocationOf(t, result, tool.NameExecuteSQL, tool.NameGenerateSQL)
}

func TestScenarioOffTopic(t *testing.T) {
	s := newTestStack(t)

	result := s.process(t, "T3", "Tell me a joke")
	if !strings.Contains(result.Text, "app portfolio") {
		t.Fatalf("expected specialization statement, got %q", result.Text)
	}
	if len(result.Invocations) != 0 {
		t.Fatalf("off-topic agent must make no tool calls, got %d", len(result.Invocations))
	}
}

func TestExactlyOneQueryRecordPerRun(t *testing.T) {
	s := newTestStack(t)

	s.process(t, "T1", "how many apps do we have?")
	if n := len(s.store.GetSQLQueries("T1")); n != 1 {
		t.Fatalf("expected exactly 1 query record, got %d", n)
	}

	s.process(t, "T1", "what about iOS apps?")
	if n := len(s.store.GetSQLQueries("T1")); n != 2 {
		t.Fatalf("expected exactly 2 query records, got %d", n)
	}
}

func TestGenerationFailureStoresNoRecord(t *testing.T) {
	s := newTestStack(t)
	s.provider.failGeneration = true

	result := s.process(t, "T1", "how many apps do we have?")
	if result.Text == "" {
		t.Fatal("expected user-facing error text")
	}
	if n := len(s.store.GetSQLQueries("T1")); n != 0 {
		t.Fatalf("no record must be stored on failure, got %d", n)
	}
}

func TestAssistantMessageAlwaysPersisted(t *testing.T) {
	s := newTestStack(t)
	s.provider.failGeneration = true

	s.process(t, "T1", "how many apps do we have?")

	msgs := s.store.GetMessages("T1")
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(msgs))
	}
	if msgs[1].Role != "assistant" || msgs[1].Content == "" {
		t.Fatalf("expected persisted assistant error text, got %+v", msgs[1])
	}
}

func TestCachedResultsMatchExecution(t *testing.T) {
	s := newTestStack(t)

	s.process(t, "T1", "how many apps do we have?")

	cached := s.store.GetLastQueryResults("T1")
	if cached == nil || !cached.Success {
		t.Fatal("expected successful cached results")
	}
	if cached.RowCount != 1 {
		t.Fatalf("expected 1 row, got %d", cached.RowCount)
	}
	if cached.Data[0][cached.Columns[0]] != float64(49) {
		t.Fatalf("expected cached 49, got %v", cached.Data[0])
	}
}

func TestStreamChunksInOrder(t *testing.T) {
	s := newTestStack(t)

	var chunks []Chunk
	for chunk := range s.orch.Stream(context.Background(), "T1", "how many apps do we have?") {
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	var full strings.Builder
	for _, c := range chunks {
		full.WriteString(c.Text)
	}
	if full.String() != "49" {
		t.Fatalf("reassembled stream mismatch: %q", full.String())
	}
}

func TestStreamCarriesFilePathOnFinalChunk(t *testing.T) {
	s := newTestStack(t)
	s.process(t, "T1", "how many apps do we have?")

	var chunks []Chunk
	for chunk := range s.orch.Stream(context.Background(), "T1", "export this as csv") {
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, c := range chunks[:len(chunks)-1] {
		if c.FilePath != "" {
			t.Fatal("file path must only ride the final chunk")
		}
	}
	if chunks[len(chunks)-1].FilePath == "" {
		t.Fatal("expected file path on final chunk")
	}
}

func TestCancelledRequestPersistsNothing(t *testing.T) {
	s := newTestStack(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.orch.Process(ctx, "T1", "how many apps do we have?")
	if err == nil {
		t.Fatal("expected cancellation error")
	}

	for _, m := range s.store.GetMessages("T1") {
		if m.Role == "assistant" {
			t.Fatal("cancelled request must not persist an assistant message")
		}
	}
}
