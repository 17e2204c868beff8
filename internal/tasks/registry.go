package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/llm"
	"forexcopilot/internal/queue"
)

// Registry binds the three task types to queue.Handler closures over the
// shared Store, Emitter, and forex.Service dependencies (§4.F common
// contract). Handler names match the task type strings so shared-mode
// workers, which dispatch by registered name, resolve them identically to
// memory-mode direct enqueue.
type Registry struct {
	store   Store
	emitter events.Emitter
	forex   *forex.Service
	oracle  llm.Oracle
}

// NewRegistry constructs a Registry. oracle may be nil, in which case the
// report step skips narrative generation.
func NewRegistry(store Store, emitter events.Emitter, svc *forex.Service, oracle llm.Oracle) *Registry {
	return &Registry{store: store, emitter: emitter, forex: svc, oracle: oracle}
}

// RegisterAll registers all three task-type handlers by name on q, so
// either queue backend can dispatch them.
func (r *Registry) RegisterAll(q *queue.Queue) {
	q.Register(string(TypeMarketAnalysis), r.handleMarketAnalysis)
	q.Register(string(TypeAutoTrade), r.handleAutoTrade)
	q.Register(string(TypeForecast), r.handleForecast)
}

// decode round-trips kwargs["record"]/kwargs["input"] through JSON into
// typed values, since shared-mode jobs arrive as JSON-decoded
// map[string]interface{} and memory-mode jobs pass the same shape for a
// single re-entrant decode path (§3 queued-job invariant: memory mode
// also tolerates arbitrary callables, but handlers registered through
// this Registry always speak the one wire shape).
func decode(v interface{}, out interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (r *Registry) handleMarketAnalysis(ctx context.Context, _ []interface{}, kwargs map[string]interface{}) error {
	var rec Record
	var in MarketAnalysisInput
	if err := decode(kwargs["record"], &rec); err != nil {
		return fmt.Errorf("tasks: decode record: %w", err)
	}
	if err := decode(kwargs["input"], &in); err != nil {
		return fmt.Errorf("tasks: decode input: %w", err)
	}
	RunMarketAnalysis(ctx, rec, in, r.store, r.emitter, r.forex, r.oracle)
	return nil
}

func (r *Registry) handleAutoTrade(ctx context.Context, _ []interface{}, kwargs map[string]interface{}) error {
	var rec Record
	var in AutoTradeInput
	if err := decode(kwargs["record"], &rec); err != nil {
		return fmt.Errorf("tasks: decode record: %w", err)
	}
	if err := decode(kwargs["input"], &in); err != nil {
		return fmt.Errorf("tasks: decode input: %w", err)
	}
	RunAutoTrade(ctx, rec, in, r.store, r.emitter, r.forex)
	return nil
}

func (r *Registry) handleForecast(ctx context.Context, _ []interface{}, kwargs map[string]interface{}) error {
	var rec Record
	var in ForecastInput
	if err := decode(kwargs["record"], &rec); err != nil {
		return fmt.Errorf("tasks: decode record: %w", err)
	}
	if err := decode(kwargs["input"], &in); err != nil {
		return fmt.Errorf("tasks: decode input: %w", err)
	}
	RunForecast(ctx, rec, in, r.store, r.emitter, r.forex)
	return nil
}

// Enqueue submits a task record by type onto q (either backend), wrapping
// record+input into the kwargs shape Registry handlers decode.
func (r *Registry) Enqueue(ctx context.Context, q *queue.Queue, taskType Type, rec Record, input interface{}) bool {
	kwargs := map[string]interface{}{"record": rec, "input": input}
	return q.EnqueueNamed(ctx, rec.ID, string(taskType), nil, kwargs)
}
