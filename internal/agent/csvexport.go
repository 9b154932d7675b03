package agent

import (
	"context"
	"encoding/json"
	"log"

	"portfolio-bot/internal/eventbus"
	"portfolio-bot/internal/tool"
)

// CSVExportAgent exports the thread's cached results to a CSV file. It is a
// pure reuse path: it never generates or executes SQL, and it runs its two
// tools deterministically without an LLM in the loop.
type CSVExportAgent struct {
	cached tool.Tool
	csv    tool.Tool
	bus    *eventbus.Bus
}

func NewCSVExportAgent(tools *tool.Registry, bus *eventbus.Bus) *CSVExportAgent {
	cached, _ := tools.Get(tool.NameGetCachedResults)
	csv, _ := tools.Get(tool.NameGenerateCSV)
	return &CSVExportAgent{cached: cached, csv: csv, bus: bus}
}

// Run retrieves cached results and writes them to a CSV file.
func (a *CSVExportAgent) Run(ctx context.Context, threadID, userMessage string) *Result {
	out := &Result{}

	lookupArgs, _ := json.Marshal(map[string]string{"thread_id": threadID})
	inv := a.invoke(ctx, a.cached, lookupArgs)
	out.Invocations = append(out.Invocations, inv)

	var payload tool.CachedResultsPayload
	if inv.IsError || json.Unmarshal([]byte(inv.Observation), &payload) != nil || !payload.ResultsFound {
		out.Text = noCachedResultsMessage
		return out
	}

	csvArgs, err := json.Marshal(map[string]any{
		"data":    payload.Data,
		"columns": payload.Columns,
	})
	if err != nil {
		out.Text = "I encountered an error preparing the CSV export: " + err.Error()
		return out
	}

	inv = a.invoke(ctx, a.csv, csvArgs)
	out.Invocations = append(out.Invocations, inv)
	if inv.IsError {
		log.Printf("[csv-agent] export failed: %s", inv.Observation)
		out.Text = "I encountered an error generating the CSV file. Please try again."
		return out
	}

	if a.bus != nil {
		a.bus.Publish(eventbus.TopicCSVGenerated, inv.Observation)
	}
	out.Text = csvGeneratedMessage
	out.FilePath = inv.Observation
	return out
}

func (a *CSVExportAgent) invoke(ctx context.Context, t tool.Tool, args json.RawMessage) Invocation {
	inv := Invocation{Name: t.Name(), Arguments: args}
	if a.bus != nil {
		a.bus.Publish(eventbus.TopicToolCall, map[string]string{"name": t.Name()})
	}

	res, err := t.Execute(ctx, args)
	switch {
	case err != nil:
		inv.Observation = err.Error()
		inv.IsError = true
	case res.IsError:
		inv.Observation = res.Error
		inv.IsError = true
	default:
		inv.Observation = res.Output
	}
	return inv
}
