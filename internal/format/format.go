// Package format renders query results for chat display.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"portfolio-bot/internal/database"
	"portfolio-bot/internal/sqlcheck"
)

// Formatter renders QueryResults as simple text or markdown tables.
type Formatter struct{}

func New() *Formatter {
	return &Formatter{}
}

// Format renders a result for chat. A single row with at most three columns
// renders as simple text; anything else becomes a pipe table. An assumptions
// note is appended to multi-row results when the question or SQL carries
// aggregation, ordering, ranking, or timeframe indicators.
func (f *Formatter) Format(result *database.QueryResult, question string) string {
	if result == nil {
		return "No results found."
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "Unknown error"
		}
		return "Error: " + msg
	}
	if len(result.Data) == 0 {
		return "No results found."
	}

	var out string
	if len(result.Data) == 1 && len(result.Columns) <= 3 {
		out = f.formatSimple(result)
	} else {
		out = f.formatTable(result)
	}

	if len(result.Data) > 1 {
		if note := assumptions(result.Query, question); note != "" {
			out += "\n\n*Note: " + note + "*"
		}
	}
	return out
}

// formatSimple renders a single row without markdown.
func (f *Formatter) formatSimple(result *database.QueryResult) string {
	row := result.Data[0]
	cols := displayColumns(result.Columns)

	switch len(cols) {
	case 0:
		return "No results found."
	case 1:
		return formatValue(row[cols[0]])
	case 2:
		return fmt.Sprintf("%s: %s", formatValue(row[cols[0]]), formatValue(row[cols[1]]))
	default:
		parts := make([]string, 0, len(cols))
		for _, col := range cols {
			parts = append(parts, fmt.Sprintf("%s: %s", col, formatValue(row[col])))
		}
		return strings.Join(parts, ", ")
	}
}

// formatTable renders rows as a markdown pipe table with a separator row.
func (f *Formatter) formatTable(result *database.QueryResult) string {
	cols := displayColumns(result.Columns)
	if len(cols) == 0 {
		return "Empty result set."
	}

	lines := make([]string, 0, len(result.Data)+2)
	lines = append(lines, strings.Join(cols, " | "))

	separators := make([]string, len(cols))
	for i := range separators {
		separators[i] = "---"
	}
	lines = append(lines, strings.Join(separators, " | "))

	for _, row := range result.Data {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = formatValue(row[col])
		}
		lines = append(lines, strings.Join(values, " | "))
	}
	return strings.Join(lines, "\n")
}

// displayColumns filters the internal id column from display.
func displayColumns(columns []string) []string {
	display := make([]string, 0, len(columns))
	for _, col := range columns {
		if col == "id" {
			continue
		}
		display = append(display, col)
	}
	if len(display) == 0 {
		return columns
	}
	return display
}

// formatValue renders a cell: integers without decimals, decimals to two
// places, nil as empty.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', 2, 64)
	case float32:
		return formatValue(float64(val))
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

var limitRE = regexp.MustCompile(`LIMIT\s+(\d+)`)

// assumptions builds the note fragments for a result, joined with "; ".
func assumptions(query, question string) string {
	upperQuery := strings.ToUpper(query)
	lowerQuery := strings.ToLower(query)
	lowerQuestion := strings.ToLower(question)

	var parts []string

	if strings.Contains(lowerQuery, "date") || strings.Contains(lowerQuery, "time") {
		if strings.Contains(query, "2024") || strings.Contains(query, "2025") {
			parts = append(parts, "Timeframe based on dates in query")
		} else {
			parts = append(parts, "Timeframe: All available data")
		}
	}

	switch {
	case strings.Contains(upperQuery, "SUM"):
		parts = append(parts, "Total values calculated across all matching records")
	case strings.Contains(upperQuery, "AVG"):
		parts = append(parts, "Average calculated across all matching records")
	case strings.Contains(upperQuery, "COUNT"):
		parts = append(parts, "Count includes all matching records")
	}

	if strings.Contains(upperQuery, "ORDER BY") {
		if strings.Contains(upperQuery, "DESC") {
			parts = append(parts, "Results sorted in descending order")
		} else {
			parts = append(parts, "Results sorted in ascending order")
		}
	}

	if strings.Contains(lowerQuestion, "popular") {
		switch {
		case strings.Contains(lowerQuery, "installs"):
			parts = append(parts, "Popularity defined by number of installs")
		case strings.Contains(lowerQuery, "revenue"):
			parts = append(parts, "Popularity defined by revenue")
		default:
			parts = append(parts, "Popularity metric inferred from query context")
		}
	}

	if m := limitRE.FindStringSubmatch(upperQuery); m != nil {
		parts = append(parts, "Showing top "+m[1]+" results")
	} else if containsAny(lowerQuestion, "top", "best", "most") {
		if sqlcheck.ClassifyQuery(query) == sqlcheck.TypeAggregation {
			parts = append(parts, "Ranking inferred from the question")
		}
	}

	return strings.Join(parts, "; ")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
