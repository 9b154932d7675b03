package sqlcheck

import (
	"regexp"
	"strings"
)

// QueryType is the coarse shape of a query. The formatter uses it when
// deciding whether to add a ranking fragment to its assumptions note.
type QueryType string

const (
	TypeSimpleCount QueryType = "simple_count"
	TypeAggregation QueryType = "aggregation"
	TypeList        QueryType = "list"
	TypeComplex     QueryType = "complex"
)

var countRE = regexp.MustCompile(`SELECT\s+COUNT\s*\(`)

// ClassifyQuery determines the query's shape.
func ClassifyQuery(query string) QueryType {
	upper := strings.ToUpper(query)

	if countRE.MatchString(upper) && !strings.Contains(upper, "GROUP BY") {
		return TypeSimpleCount
	}

	if strings.Contains(upper, "GROUP BY") {
		return TypeAggregation
	}

	for _, fn := range []string{"SUM(", "AVG(", "MAX(", "MIN(", "COUNT("} {
		if strings.Contains(upper, fn) {
			return TypeAggregation
		}
	}

	for _, kw := range []string{"JOIN", "UNION", "CASE", "HAVING"} {
		if strings.Contains(upper, kw) {
			return TypeComplex
		}
	}

	return TypeList
}
