package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"portfolio-bot/internal/export"
	"portfolio-bot/internal/memory"
)

// GenerateCSVTool writes result rows to a CSV file and returns its path.
type GenerateCSVTool struct {
	writer *export.Writer
}

func NewGenerateCSVTool(writer *export.Writer) *GenerateCSVTool {
	return &GenerateCSVTool{writer: writer}
}

func (t *GenerateCSVTool) Name() string { return NameGenerateCSV }

func (t *GenerateCSVTool) Description() string {
	return "Generate a CSV file from query result rows. Returns the path to the generated file."
}

func (t *GenerateCSVTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"data": {"type": "array", "items": {"type": "object"}, "description": "Result rows to export"},
			"columns": {"type": "array", "items": {"type": "string"}, "description": "Column order for the header row"},
			"filename": {"type": "string", "description": "Optional filename for the CSV file"}
		},
		"required": ["data"]
	}`)
}

type generateCSVArgs struct {
	Data     []map[string]any `json:"data"`
	Columns  []string         `json:"columns"`
	Filename string           `json:"filename"`
}

func (t *GenerateCSVTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in generateCSVArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &Result{Error: "invalid arguments: " + err.Error(), IsError: true}, nil
	}

	if len(in.Columns) == 0 && len(in.Data) > 0 {
		in.Columns = columnsFromRow(in.Data[0])
	}

	path, err := t.writer.Generate(in.Data, in.Columns, in.Filename)
	if err != nil {
		return &Result{Error: err.Error(), IsError: true}, nil
	}
	return &Result{Output: path}, nil
}

// columnsFromRow is a fallback when the caller did not supply column order;
// it picks the canonical schema order for known columns, then the rest.
func columnsFromRow(row map[string]any) []string {
	canonical := []string{
		"id", "app_name", "platform", "date", "country",
		"installs", "in_app_revenue", "ads_revenue", "ua_cost",
	}
	var cols []string
	seen := make(map[string]bool, len(row))
	for _, c := range canonical {
		if _, ok := row[c]; ok {
			cols = append(cols, c)
			seen[c] = true
		}
	}
	for k := range row {
		if !seen[k] {
			cols = append(cols, k)
		}
	}
	return cols
}

// SQLHistoryPayload is the structured output of get_sql_history.
type SQLHistoryPayload struct {
	SQLFound     bool   `json:"sql_found"`
	SQLStatement string `json:"sql_statement,omitempty"`
	Question     string `json:"question,omitempty"`
	Timestamp    string `json:"query_timestamp,omitempty"`
	Message      string `json:"message"`
}

// GetSQLHistoryTool retrieves previously executed SQL for a thread.
type GetSQLHistoryTool struct {
	store *memory.Store
}

func NewGetSQLHistoryTool(store *memory.Store) *GetSQLHistoryTool {
	return &GetSQLHistoryTool{store: store}
}

func (t *GetSQLHistoryTool) Name() string { return NameGetSQLHistory }

func (t *GetSQLHistoryTool) Description() string {
	return "Retrieve a previously executed SQL query for this thread, optionally matched by a description of the original question."
}

func (t *GetSQLHistoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"thread_id": {"type": "string", "description": "The conversation thread identifier"},
			"query_description": {"type": "string", "description": "Optional description of the query to find"}
		},
		"required": ["thread_id"]
	}`)
}

type sqlHistoryArgs struct {
	ThreadID         string `json:"thread_id"`
	QueryDescription string `json:"query_description"`
}

func (t *GetSQLHistoryTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in sqlHistoryArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &Result{Error: "invalid arguments: " + err.Error(), IsError: true}, nil
	}

	rec := t.store.FindSQLByDescription(in.ThreadID, in.QueryDescription)

	payload := SQLHistoryPayload{}
	if rec == nil {
		payload.Message = "No SQL queries found for this thread. Please run a query first."
	} else {
		payload.SQLFound = true
		payload.SQLStatement = rec.SQL
		payload.Question = rec.Question
		payload.Timestamp = rec.Timestamp.Format("2006-01-02 15:04:05")
		if in.QueryDescription != "" {
			payload.Message = "Found SQL query matching: " + in.QueryDescription
		} else {
			payload.Message = "Retrieved last SQL query from thread history."
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return &Result{Error: err.Error(), IsError: true}, nil
	}
	return &Result{Output: string(data)}, nil
}

// CachedResultsPayload is the structured output of get_cached_results.
type CachedResultsPayload struct {
	ResultsFound bool             `json:"results_found"`
	Data         []map[string]any `json:"data,omitempty"`
	Columns      []string         `json:"columns,omitempty"`
	RowCount     int              `json:"row_count"`
	SQLQuery     string           `json:"sql_query,omitempty"`
	Timestamp    string           `json:"query_timestamp,omitempty"`
	Message      string           `json:"message"`
}

// GetCachedResultsTool retrieves the last successful query results for a
// thread, enabling export without re-execution.
type GetCachedResultsTool struct {
	store *memory.Store
}

func NewGetCachedResultsTool(store *memory.Store) *GetCachedResultsTool {
	return &GetCachedResultsTool{store: store}
}

func (t *GetCachedResultsTool) Name() string { return NameGetCachedResults }

func (t *GetCachedResultsTool) Description() string {
	return "Retrieve the most recent successful query results for this thread from the cache."
}

func (t *GetCachedResultsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"thread_id": {"type": "string", "description": "The conversation thread identifier"}
		},
		"required": ["thread_id"]
	}`)
}

type cachedResultsArgs struct {
	ThreadID string `json:"thread_id"`
}

func (t *GetCachedResultsTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in cachedResultsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &Result{Error: "invalid arguments: " + err.Error(), IsError: true}, nil
	}

	payload := t.Lookup(in.ThreadID)
	data, err := json.Marshal(payload)
	if err != nil {
		return &Result{Error: err.Error(), IsError: true}, nil
	}
	return &Result{Output: string(data)}, nil
}

// Lookup builds the cached-results payload for a thread; Execute returns it
// serialized as JSON.
func (t *GetCachedResultsTool) Lookup(threadID string) *CachedResultsPayload {
	results := t.store.GetLastQueryResults(threadID)
	if results == nil {
		return &CachedResultsPayload{
			Message: "No previous query results found. Please run a query first.",
		}
	}

	payload := &CachedResultsPayload{
		ResultsFound: true,
		Data:         results.Data,
		Columns:      results.Columns,
		RowCount:     results.RowCount,
		SQLQuery:     results.Query,
		Message:      fmt.Sprintf("Retrieved %d rows from last query.", results.RowCount),
	}
	if rec := t.store.GetLastSQLQuery(threadID); rec != nil {
		payload.Timestamp = rec.Timestamp.Format("2006-01-02 15:04:05")
	}
	return payload
}
