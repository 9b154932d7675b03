package agent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/memory"
)

// chunkSize is the streamed fragment length, in runes.
const chunkSize = 50

// Chunk is one streamed fragment of a response. The final chunk of an export
// run carries the CSV file path for the transport to upload.
type Chunk struct {
	Text     string
	FilePath string
}

// Orchestrator is the single entry point per inbound message: it loads
// history, classifies intent, dispatches to the matching agent, persists the
// reply, and streams chunks outward.
type Orchestrator struct {
	router    *Router
	sqlQuery  *SQLQueryAgent
	csvExport *CSVExportAgent
	retrieval *SQLRetrievalAgent
	offTopic  *OffTopicAgent
	store     *memory.Store
	bus       *eventbus.Bus
	locks     *threadLocks
	timeout   time.Duration
}

// NewOrchestrator wires the router and the four agents.
func NewOrchestrator(
	router *Router,
	sqlQuery *SQLQueryAgent,
	csvExport *CSVExportAgent,
	retrieval *SQLRetrievalAgent,
	offTopic *OffTopicAgent,
	store *memory.Store,
	bus *eventbus.Bus,
	timeout time.Duration,
) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{
		router:    router,
		sqlQuery:  sqlQuery,
		csvExport: csvExport,
		retrieval: retrieval,
		offTopic:  offTopic,
		store:     store,
		bus:       bus,
		locks:     newThreadLocks(10 * time.Minute),
		timeout:   timeout,
	}
}

// Process handles one inbound message and returns the final result.
// Processing for the same thread id is serialized; distinct threads run
// concurrently.
func (o *Orchestrator) Process(ctx context.Context, threadID, userMessage string) (*Result, error) {
	release := o.locks.acquire(threadID)
	defer release()

	messageID := uuid.NewString()
	log.Printf("[orchestrator] thread=%s message=%s processing", threadID, messageID)

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.store.AddUserMessage(threadID, userMessage)
	history := o.store.GetMessages(threadID)

	cls := o.router.Classify(threadID, userMessage, history)
	if o.bus != nil {
		o.bus.Publish(eventbus.TopicIntentClassified, cls)
	}

	result := o.dispatch(ctx, cls.Intent, threadID, userMessage, history)

	// A cancelled request persists nothing; the transport is gone.
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Printf("[orchestrator] thread=%s message=%s cancelled", threadID, messageID)
		return nil, ctx.Err()
	}

	if result.Text == "" {
		result.Text = "Sorry, something went wrong processing your request. Please try again."
		if o.bus != nil {
			o.bus.Publish(eventbus.TopicError, map[string]string{
				"thread_id":  threadID,
				"message_id": messageID,
			})
		}
	}

	o.store.AddAssistantMessage(threadID, result.Text)
	log.Printf("[orchestrator] thread=%s message=%s intent=%s done (%d chars)",
		threadID, messageID, cls.Intent, len(result.Text))
	return result, nil
}

// dispatch routes to the agent owning the intent. Agents convert their own
// failures to user-facing text, so dispatch always yields a Result.
func (o *Orchestrator) dispatch(ctx context.Context, intent Intent, threadID, userMessage string, history []memory.Message) *Result {
	switch intent {
	case IntentCSVExport:
		return o.csvExport.Run(ctx, threadID, userMessage)
	case IntentSQLRetrieval:
		return o.retrieval.Run(ctx, threadID, userMessage)
	case IntentOffTopic:
		return o.offTopic.Run(ctx, threadID, userMessage)
	default:
		return o.sqlQuery.Run(ctx, threadID, userMessage, history)
	}
}

// Stream processes the message and emits the response as an in-order, finite
// sequence of chunks. The channel closes when the response is complete or
// the context is cancelled; no chunks follow termination.
func (o *Orchestrator) Stream(ctx context.Context, threadID, userMessage string) <-chan Chunk {
	out := make(chan Chunk)

	go func() {
		defer close(out)

		result, err := o.Process(ctx, threadID, userMessage)
		if err != nil {
			return
		}

		runes := []rune(result.Text)
		for start := 0; start < len(runes); start += chunkSize {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			chunk := Chunk{Text: string(runes[start:end])}
			if end == len(runes) {
				chunk.FilePath = result.FilePath
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
