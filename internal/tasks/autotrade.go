package tasks

import (
	"context"
	"fmt"
	"time"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
)

const autoTradeConfidenceThreshold = 0.7

// AutoTradeInput is the body of an auto_trade task request.
type AutoTradeInput struct {
	CurrencyPairs []string
	UserLimits    UserLimits
	Iterations    int // bounded monitoring loop length (§4.F: "finite in demo")
	IterationGap  time.Duration
}

// RunAutoTrade drives the {initialize engine, monitor markets, execute
// trades, manage positions} step machine (§4.F). User limits are not
// checked for presence: a zero MaxPositionSize makes BuildTrade size
// positions at 1000. Runs a bounded monitoring loop, opening simulated positions via
// the risk engine when a signal clears the confidence threshold and
// closing positions that reach take-profit/stop-loss on later rate
// re-fetches.
func RunAutoTrade(ctx context.Context, rec Record, in AutoTradeInput, store Store, emitter events.Emitter, svc *forex.Service) {
	topic := rec.ID
	rec.Status = StatusRunning
	now := time.Now().UTC()
	rec.StartTime = &now
	_ = store.Update(ctx, rec)

	iterations := in.Iterations
	if iterations <= 0 {
		iterations = 5
	}
	gap := in.IterationGap
	if gap <= 0 {
		gap = 2 * time.Second
	}

	emitProgress(emitter, topic, "Initializing engine", events.Progress(0.1))
	rec.CompleteStep(0)
	_ = store.Update(ctx, rec)

	var open []Position

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			failRecord(ctx, store, rec, "cancelled")
			emitter.Emit(topic, events.NewFrame(rec.ID, "auto-trade cancelled", events.TypeError, nil, nil))
			return
		default:
		}

		svc.GetRates(ctx)
		emitProgress(emitter, topic, "Monitoring markets", events.Progress(0.1+0.3*float64(i+1)/float64(iterations)))

		for _, pair := range in.CurrencyPairs {
			normalized := forex.NormalizePair(pair)
			history := svc.History(normalized)
			if len(history) == 0 {
				continue
			}
			mc := forex.AnalyzeMarket(normalized, history)
			signal := forex.GenerateSignal(mc)

			if ok, _ := CanExecuteSignal(signal, autoTradeConfidenceThreshold); ok && signal.Action != forex.ActionHold {
				price, has := svc.CurrentPrice(normalized)
				if !has {
					continue
				}
				pos := BuildTrade(signal, in.UserLimits, price)
				open = append(open, pos)
				emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("opened %s position on %s", pos.Action, pos.Pair), events.TypeInfo, nil, pos))
			}
		}

		var stillOpen []Position
		for _, pos := range open {
			price, has := svc.CurrentPrice(pos.Pair)
			if !has {
				stillOpen = append(stillOpen, pos)
				continue
			}
			closed, shouldClose := EvaluatePosition(pos, price)
			if shouldClose {
				emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("closed %s position on %s (profit %.4f)", closed.Action, closed.Pair, closed.Profit), events.TypeInfo, nil, closed))
				continue
			}
			stillOpen = append(stillOpen, pos)
		}
		open = stillOpen

		select {
		case <-ctx.Done():
			failRecord(ctx, store, rec, "cancelled")
			emitter.Emit(topic, events.NewFrame(rec.ID, "auto-trade cancelled", events.TypeError, nil, nil))
			return
		case <-time.After(gap):
		}
	}
	rec.CompleteStep(1)
	rec.CompleteStep(2)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Managing positions", events.Progress(0.9))
	rec.CompleteStep(3)
	rec.Status = StatusCompleted
	end := time.Now().UTC()
	rec.EndTime = &end
	_ = store.Update(ctx, rec)

	emitter.Emit(topic, events.NewFrame(rec.ID, "auto-trade monitoring complete", events.TypeSuccess, events.Progress(1.0), map[string]interface{}{
		"open_positions": len(open),
	}))
}

func failRecord(ctx context.Context, store Store, rec Record, _ string) {
	rec.Status = StatusFailed
	end := time.Now().UTC()
	rec.EndTime = &end
	_ = store.Update(ctx, rec)
}
