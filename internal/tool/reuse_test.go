package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"portfolio-bot/internal/database"
	"portfolio-bot/internal/export"
	"portfolio-bot/internal/memory"
)

func cachedResult() *database.QueryResult {
	return &database.QueryResult{
		Success: true,
		Data: []map[string]any{
			{"app_name": "Puzzle Quest", "installs": int64(1000)},
			{"app_name": "Word Tower", "installs": int64(1137)},
		},
		Columns:  []string{"app_name", "installs"},
		RowCount: 2,
		Query:    "SELECT app_name, installs FROM app_portfolio",
	}
}

func TestGenerateCSVTool(t *testing.T) {
	tl := NewGenerateCSVTool(export.NewWriter(t.TempDir()))

	args, _ := json.Marshal(map[string]any{
		"data":    []map[string]any{{"app_name": "Puzzle Quest", "installs": 1000}},
		"columns": []string{"app_name", "installs"},
	})
	res, err := tl.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.Error)
	}
	if !strings.HasSuffix(res.Output, ".csv") {
		t.Fatalf("expected csv path, got %q", res.Output)
	}
}

func TestGenerateCSVToolEmptyData(t *testing.T) {
	tl := NewGenerateCSVTool(export.NewWriter(t.TempDir()))

	res, err := tl.Execute(context.Background(), json.RawMessage(`{"data": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected error for empty data")
	}
}

func TestGetSQLHistoryToolFindsByDescription(t *testing.T) {
	store := memory.NewStore(memory.DefaultOptions())
	store.StoreSQLQuery("t1", "SELECT COUNT(DISTINCT app_name) FROM app_portfolio", "how many apps do we have?", cachedResult())
	tl := NewGetSQLHistoryTool(store)

	res, err := tl.Execute(context.Background(),
		json.RawMessage(`{"thread_id": "t1", "query_description": "how many apps"}`))
	if err != nil {
		t.Fatal(err)
	}

	var payload SQLHistoryPayload
	if err := json.Unmarshal([]byte(res.Output), &payload); err != nil {
		t.Fatal(err)
	}
	if !payload.SQLFound {
		t.Fatal("expected SQL found")
	}
	if payload.SQLStatement != "SELECT COUNT(DISTINCT app_name) FROM app_portfolio" {
		t.Fatalf("unexpected SQL: %q", payload.SQLStatement)
	}
	if payload.Timestamp == "" {
		t.Fatal("expected timestamp")
	}
}

func TestGetSQLHistoryToolEmptyThread(t *testing.T) {
	tl := NewGetSQLHistoryTool(memory.NewStore(memory.DefaultOptions()))

	res, err := tl.Execute(context.Background(), json.RawMessage(`{"thread_id": "t9"}`))
	if err != nil {
		t.Fatal(err)
	}

	var payload SQLHistoryPayload
	if err := json.Unmarshal([]byte(res.Output), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.SQLFound {
		t.Fatal("expected no SQL for empty thread")
	}
	if !strings.Contains(payload.Message, "run a query first") {
		t.Fatalf("expected guidance message, got %q", payload.Message)
	}
}

func TestGetCachedResultsTool(t *testing.T) {
	store := memory.NewStore(memory.DefaultOptions())
	tl := NewGetCachedResultsTool(store)

	// Miss before any query.
	payload := tl.Lookup("t1")
	if payload.ResultsFound {
		t.Fatal("expected cache miss")
	}

	store.StoreSQLQuery("t1", "SELECT app_name, installs FROM app_portfolio", "list apps", cachedResult())

	payload = tl.Lookup("t1")
	if !payload.ResultsFound {
		t.Fatal("expected cache hit")
	}
	if payload.RowCount != 2 {
		t.Fatalf("expected 2 rows, got %d", payload.RowCount)
	}
	if len(payload.Columns) != 2 || payload.Columns[0] != "app_name" {
		t.Fatalf("expected column order preserved, got %v", payload.Columns)
	}

	// The JSON surface matches the Lookup result.
	res, err := tl.Execute(context.Background(), json.RawMessage(`{"thread_id": "t1"}`))
	if err != nil {
		t.Fatal(err)
	}
	var decoded CachedResultsPayload
	if err := json.Unmarshal([]byte(res.Output), &decoded); err != nil {
		t.Fatal(err)
	}
	if !decoded.ResultsFound || decoded.RowCount != 2 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}
