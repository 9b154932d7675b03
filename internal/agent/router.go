package agent

import (
	"log"
	"regexp"
	"strings"
	"sync"

	"portfolio-bot/internal/memory"
)

// Intent is the coarse class of a user request.
type Intent string

const (
	IntentSQLQuery     Intent = "SQL_QUERY"
	IntentCSVExport    Intent = "CSV_EXPORT"
	IntentSQLRetrieval Intent = "SQL_RETRIEVAL"
	IntentOffTopic     Intent = "OFF_TOPIC"
)

// Classification is a routing decision.
type Classification struct {
	Intent     Intent
	Confidence float64
	Reasoning  string
}

// Router classifies inbound messages into intents using keyword heuristics,
// without an LLM call. It remembers each thread's last intent so short
// follow-ups can inherit it.
type Router struct {
	mu          sync.Mutex
	lastIntents map[string]Intent
}

func NewRouter() *Router {
	return &Router{lastIntents: make(map[string]Intent)}
}

// Gap phrases match when the first word appears before the second; literal
// phrases match when they appear verbatim.
var csvGapPhrases = [][2]string{
	{"export", "csv"},
	{"download", "csv"},
}

var csvLiteralPhrases = []string{"save as csv", "csv file"}

var sqlRetrievalGapPhrases = [][2]string{
	{"show", "sql"},
	{"sql", "used"},
}

var sqlRetrievalLiteralPhrases = []string{"what sql", "which sql", "sql query", "sql statement"}

var offTopicMarkers = []string{
	"hello", "hi", "greetings", "how are you", "what can you do",
	"joke", "weather", "temperature", "thanks", "thank you", "bye", "goodbye",
}

var dbKeywords = []string{
	"app", "apps", "revenue", "install", "installs", "country", "platform",
	"ios", "android", "sql", "data", "table", "count", "how many",
	"query", "database", "csv", "export",
}

var followUpMarkers = []string{"what about", "how about", "same for", "and"}

var wordRE = regexp.MustCompile(`[a-z0-9']+`)

// Classify maps a message to exactly one intent. Ties break in rule order:
// CSV export, SQL retrieval, off-topic, follow-up inheritance, SQL query.
func (r *Router) Classify(threadID, message string, history []memory.Message) Classification {
	cls := r.classify(threadID, message, history)

	r.mu.Lock()
	r.lastIntents[threadID] = cls.Intent
	r.mu.Unlock()

	log.Printf("[router] thread=%s intent=%s confidence=%.1f (%s)",
		threadID, cls.Intent, cls.Confidence, cls.Reasoning)
	return cls
}

func (r *Router) classify(threadID, message string, history []memory.Message) Classification {
	lower := strings.ToLower(message)
	words := wordRE.FindAllString(lower, -1)

	if matchesGapPhrases(lower, words, csvGapPhrases) || containsAny(lower, csvLiteralPhrases) {
		return Classification{
			Intent:     IntentCSVExport,
			Confidence: 0.9,
			Reasoning:  "message requests a CSV export or file download",
		}
	}

	if matchesGapPhrases(lower, words, sqlRetrievalGapPhrases) || containsAny(lower, sqlRetrievalLiteralPhrases) {
		return Classification{
			Intent:     IntentSQLRetrieval,
			Confidence: 0.9,
			Reasoning:  "message asks to see a SQL statement",
		}
	}

	if hasOffTopicMarker(lower, words) && !hasDatabaseKeyword(lower, words) {
		return Classification{
			Intent:     IntentOffTopic,
			Confidence: 0.7,
			Reasoning:  "greeting or chitchat without database context",
		}
	}

	if inherited, ok := r.followUpIntent(threadID, lower, words, history); ok {
		return Classification{
			Intent:     inherited,
			Confidence: 0.8,
			Reasoning:  "short follow-up inherits the previous intent",
		}
	}

	return Classification{
		Intent:     IntentSQLQuery,
		Confidence: 0.8,
		Reasoning:  "default classification: database question",
	}
}

// followUpIntent inherits the thread's previous intent for short follow-up
// messages, when that intent was SQL_QUERY or CSV_EXPORT and an assistant
// reply exists to follow up on.
func (r *Router) followUpIntent(threadID, lower string, words []string, history []memory.Message) (Intent, bool) {
	if len(words) >= 6 || !lastAssistantExists(history) {
		return "", false
	}

	marker := false
	for _, m := range followUpMarkers {
		if m == "and" {
			if containsWord(words, "and") {
				marker = true
				break
			}
		} else if strings.Contains(lower, m) {
			marker = true
			break
		}
	}
	if !marker {
		return "", false
	}

	r.mu.Lock()
	prev, ok := r.lastIntents[threadID]
	r.mu.Unlock()
	if ok && (prev == IntentSQLQuery || prev == IntentCSVExport) {
		return prev, true
	}
	return "", false
}

func lastAssistantExists(history []memory.Message) bool {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == memory.RoleAssistant {
			return true
		}
	}
	return false
}

func matchesGapPhrases(lower string, words []string, phrases [][2]string) bool {
	for _, p := range phrases {
		first := indexOfWord(words, p[0])
		second := indexOfWord(words, p[1])
		if first >= 0 && second >= 0 && first < second {
			return true
		}
	}
	return false
}

func hasOffTopicMarker(lower string, words []string) bool {
	for _, m := range offTopicMarkers {
		if strings.Contains(m, " ") {
			if strings.Contains(lower, m) {
				return true
			}
		} else if containsWord(words, m) {
			return true
		}
	}
	return false
}

func hasDatabaseKeyword(lower string, words []string) bool {
	for _, kw := range dbKeywords {
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
		} else if containsWord(words, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsWord(words []string, word string) bool {
	for _, w := range words {
		if w == word {
			return true
		}
	}
	return false
}

func indexOfWord(words []string, word string) int {
	for i, w := range words {
		if w == word {
			return i
		}
	}
	return -1
}
