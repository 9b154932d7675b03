package tool

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"portfolio-bot/internal/database"
	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/format"
	"portfolio-bot/internal/llm"
	"portfolio-bot/internal/sqlcheck"
)

// DatabaseSchema is the static schema included in SQL generation prompts.
const DatabaseSchema = `
CREATE TABLE app_portfolio (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    app_name TEXT NOT NULL,
    platform TEXT NOT NULL CHECK(platform IN ('iOS', 'Android')),
    date DATE NOT NULL,
    country TEXT NOT NULL,
    installs INTEGER DEFAULT 0,
    in_app_revenue DECIMAL(10, 2) DEFAULT 0.0,
    ads_revenue DECIMAL(10, 2) DEFAULT 0.0,
    ua_cost DECIMAL(10, 2) DEFAULT 0.0
);

Indexes:
- idx_app_name ON app_portfolio(app_name)
- idx_platform ON app_portfolio(platform)
- idx_date ON app_portfolio(date)
- idx_country ON app_portfolio(country)
`

const generateSQLSystemPrompt = `You are a SQL query generator for an app portfolio database.

Database Schema:
` + DatabaseSchema + `

Rules:
1. Generate ONLY SELECT queries (no INSERT, UPDATE, DELETE, DROP, etc.)
2. Always reference the 'app_portfolio' table
3. Use proper SQL syntax for SQLite
4. Consider conversation context when provided
5. Use appropriate aggregations (COUNT, SUM, AVG, MAX, MIN) when needed
6. Include WHERE clauses for filtering when appropriate
7. Use ORDER BY for sorting when relevant
8. Use LIMIT for top-N queries

Return ONLY the SQL query, no explanations or markdown formatting.`

// GenerateSQLTool converts a natural-language question into SQL using the
// LLM provider.
type GenerateSQLTool struct {
	provider llm.Provider
}

func NewGenerateSQLTool(provider llm.Provider) *GenerateSQLTool {
	return &GenerateSQLTool{provider: provider}
}

func (t *GenerateSQLTool) Name() string { return NameGenerateSQL }

func (t *GenerateSQLTool) Description() string {
	return "Generate a SQL SELECT query for the app_portfolio database from a natural language question. Pass recent conversation history for follow-up questions."
}

func (t *GenerateSQLTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"question": {"type": "string", "description": "The user's natural language question"},
			"conversation_history": {"type": "array", "items": {"type": "string"}, "description": "Recent conversation turns for context"}
		},
		"required": ["question"]
	}`)
}

type generateSQLArgs struct {
	Question            string   `json:"question"`
	ConversationHistory []string `json:"conversation_history"`
}

func (t *GenerateSQLTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in generateSQLArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &Result{Output: "ERROR: invalid arguments: " + err.Error(), IsError: true}, nil
	}

	userPrompt := "Generate a SQL query for this question: " + in.Question
	if len(in.ConversationHistory) > 0 {
		history := in.ConversationHistory
		if len(history) > 3 {
			history = history[len(history)-3:]
		}
		userPrompt += "\n\nPrevious conversation context:\n" + strings.Join(history, "\n")
	}

	resp, err := t.provider.Chat(ctx, &llm.ChatRequest{
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: userPrompt}},
		SystemPrompt: generateSQLSystemPrompt,
		MaxTokens:    1024,
		Temperature:  0.1,
	})
	if err != nil {
		return &Result{Output: "ERROR: failed to generate SQL: " + err.Error(), IsError: true}, nil
	}

	sql := StripSQLFences(resp.Content)
	if sql == "" {
		return &Result{Output: "ERROR: SQL generation produced empty output", IsError: true}, nil
	}

	log.Printf("[tool] generated SQL: %s", truncate(sql, 120))
	return &Result{Output: sql}, nil
}

// StripSQLFences removes markdown code fencing from generated SQL.
func StripSQLFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// ExecuteSQLTool validates and runs SQL against the analytics database.
// Validation and execution failures are returned inside the QueryResult.
type ExecuteSQLTool struct {
	db        *database.DB
	validator *sqlcheck.Validator
	bus       *eventbus.Bus
}

func NewExecuteSQLTool(db *database.DB, validator *sqlcheck.Validator, bus *eventbus.Bus) *ExecuteSQLTool {
	return &ExecuteSQLTool{db: db, validator: validator, bus: bus}
}

func (t *ExecuteSQLTool) Name() string { return NameExecuteSQL }

func (t *ExecuteSQLTool) Description() string {
	return "Execute a SQL SELECT query against the app_portfolio database and return structured results. Only SELECT queries are allowed."
}

func (t *ExecuteSQLTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"sql_query": {"type": "string", "description": "The SQL SELECT query to execute"}
		},
		"required": ["sql_query"]
	}`)
}

type executeSQLArgs struct {
	SQLQuery string `json:"sql_query"`
}

func (t *ExecuteSQLTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in executeSQLArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return resultJSON(&database.QueryResult{Error: "invalid arguments: " + err.Error()})
	}

	query := StripSQLFences(in.SQLQuery)

	if err := t.validator.Validate(query); err != nil {
		log.Printf("[tool] rejected SQL: %v", err)
		return resultJSON(&database.QueryResult{
			Data:  []map[string]any{},
			Error: err.Error(),
			Query: query,
		})
	}

	result := t.db.Query(ctx, query)
	if t.bus != nil {
		t.bus.Publish(eventbus.TopicSQLExecuted, result)
	}
	if result.Success {
		log.Printf("[tool] executed SQL, %d rows returned", result.RowCount)
	} else {
		log.Printf("[tool] SQL execution failed: %s", result.Error)
	}
	return resultJSON(result)
}

// resultJSON marshals a QueryResult into the tool observation.
func resultJSON(result *database.QueryResult) (*Result, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return &Result{Output: "", Error: err.Error(), IsError: true}, nil
	}
	return &Result{Output: string(data)}, nil
}

// ParseQueryResult decodes a QueryResult from a tool observation.
func ParseQueryResult(observation string) (*database.QueryResult, bool) {
	var result database.QueryResult
	if err := json.Unmarshal([]byte(observation), &result); err != nil {
		return nil, false
	}
	return &result, true
}

// FormatResultTool renders query results for chat display.
type FormatResultTool struct {
	formatter *format.Formatter
}

func NewFormatResultTool(formatter *format.Formatter) *FormatResultTool {
	return &FormatResultTool{formatter: formatter}
}

func (t *FormatResultTool) Name() string { return NameFormatResult }

func (t *FormatResultTool) Description() string {
	return "Format SQL query results for chat display, choosing simple text or a markdown table and adding assumption notes."
}

func (t *FormatResultTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"results": {"type": "object", "description": "The result object returned by execute_sql"},
			"question": {"type": "string", "description": "The original user question"}
		},
		"required": ["results", "question"]
	}`)
}

type formatResultArgs struct {
	Results  json.RawMessage `json:"results"`
	Question string          `json:"question"`
}

func (t *FormatResultTool) Execute(ctx context.Context, args json.RawMessage) (*Result, error) {
	var in formatResultArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return &Result{Output: "Error formatting results: " + err.Error(), IsError: true}, nil
	}

	result, ok := ParseQueryResult(string(in.Results))
	if !ok {
		return &Result{Output: "Error formatting results: malformed result payload", IsError: true}, nil
	}

	return &Result{Output: t.formatter.Format(result, in.Question)}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
