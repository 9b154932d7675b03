package agent

import (
	"fmt"
	"testing"

	"portfolio-bot/internal/memory"
)

func TestRouterCSVExport(t *testing.T) {
	r := NewRouter()

	for _, msg := range []string{
		"export this as csv",
		"can you export the results to CSV?",
		"save as csv please",
		"download the data as csv",
		"give me a csv file",
	} {
		cls := r.Classify("t", msg, nil)
		if cls.Intent != IntentCSVExport {
			t.Fatalf("%q: expected CSV_EXPORT, got %s", msg, cls.Intent)
		}
		if cls.Confidence != 0.9 {
			t.Fatalf("%q: expected confidence 0.9, got %v", msg, cls.Confidence)
		}
	}
}

func TestRouterSQLRetrieval(t *testing.T) {
	r := NewRouter()

	for _, msg := range []string{
		"show me the SQL you used for how many apps",
		"what sql was that?",
		"which sql did you run",
		"display the sql query please",
		"what was the sql used for the revenue question",
	} {
		cls := r.Classify("t", msg, nil)
		if cls.Intent != IntentSQLRetrieval {
			t.Fatalf("%q: expected SQL_RETRIEVAL, got %s", msg, cls.Intent)
		}
	}
}

func TestRouterOffTopic(t *testing.T) {
	r := NewRouter()

	for _, msg := range []string{
		"Tell me a joke",
		"hello!",
		"how are you today",
		"what's the weather like",
	} {
		cls := r.Classify("t", msg, nil)
		if cls.Intent != IntentOffTopic {
			t.Fatalf("%q: expected OFF_TOPIC, got %s", msg, cls.Intent)
		}
		if cls.Confidence != 0.7 {
			t.Fatalf("%q: expected confidence 0.7, got %v", msg, cls.Confidence)
		}
	}
}

func TestRouterGreetingWithDatabaseContextIsQuery(t *testing.T) {
	r := NewRouter()

	cls := r.Classify("t", "hi, how many apps do we have?", nil)
	if cls.Intent != IntentSQLQuery {
		t.Fatalf("expected SQL_QUERY for greeting with db keyword, got %s", cls.Intent)
	}
}

func TestRouterDefaultsToSQLQuery(t *testing.T) {
	r := NewRouter()

	cls := r.Classify("t", "how many apps do we have?", nil)
	if cls.Intent != IntentSQLQuery {
		t.Fatalf("expected SQL_QUERY, got %s", cls.Intent)
	}
	if cls.Confidence != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", cls.Confidence)
	}
}

func TestRouterFollowUpInheritsIntent(t *testing.T) {
	r := NewRouter()
	history := []memory.Message{
		{Role: memory.RoleUser, Content: "how many apps do we have?"},
		{Role: memory.RoleAssistant, Content: "49"},
	}

	// Establish the previous intent on this thread.
	r.Classify("t1", "how many apps do we have?", nil)

	cls := r.Classify("t1", "what about iOS?", history)
	if cls.Intent != IntentSQLQuery {
		t.Fatalf("expected inherited SQL_QUERY, got %s", cls.Intent)
	}
}

func TestRouterFollowUpNeedsAssistantHistory(t *testing.T) {
	r := NewRouter()
	r.Classify("t1", "how many apps?", nil)

	// Short follow-up but nothing to follow up on. "same for" carries no
	// db keyword and no off-topic marker, so we land on the default.
	cls := r.Classify("t1", "same for last year", nil)
	if cls.Intent != IntentSQLQuery {
		t.Fatalf("expected default SQL_QUERY, got %s", cls.Intent)
	}
}

func TestRouterFollowUpDoesNotInheritRetrieval(t *testing.T) {
	r := NewRouter()
	history := []memory.Message{
		{Role: memory.RoleAssistant, Content: "```sql\nSELECT 1\n```"},
	}
	r.Classify("t1", "show me the sql", history)

	cls := r.Classify("t1", "and now?", history)
	if cls.Intent != IntentSQLQuery {
		t.Fatalf("retrieval must not be inherited; got %s", cls.Intent)
	}
}

func TestRouterIsTotal(t *testing.T) {
	r := NewRouter()

	inputs := []string{
		"x", "?", "1234", "export", "sql", "hello hello hello hello hello hello",
		"¿cuántas apps tenemos?", "\nnewline\n",
	}
	for i, msg := range inputs {
		cls := r.Classify(fmt.Sprintf("t%d", i), msg, nil)
		switch cls.Intent {
		case IntentSQLQuery, IntentCSVExport, IntentSQLRetrieval, IntentOffTopic:
		default:
			t.Fatalf("%q: unmapped intent %q", msg, cls.Intent)
		}
		if cls.Confidence < 0 || cls.Confidence > 1 {
			t.Fatalf("%q: confidence out of range: %v", msg, cls.Confidence)
		}
	}
}

func TestRouterThreadsAreIndependent(t *testing.T) {
	r := NewRouter()
	history := []memory.Message{{Role: memory.RoleAssistant, Content: "done"}}

	r.Classify("a", "export this as csv", history)
	r.Classify("b", "how many apps?", history)

	// Thread a inherits CSV_EXPORT; thread b inherits SQL_QUERY.
	if cls := r.Classify("a", "and again", history); cls.Intent != IntentCSVExport {
		t.Fatalf("thread a: expected CSV_EXPORT, got %s", cls.Intent)
	}
	if cls := r.Classify("b", "and again", history); cls.Intent != IntentSQLQuery {
		t.Fatalf("thread b: expected SQL_QUERY, got %s", cls.Intent)
	}
}
