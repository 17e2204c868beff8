package tasks

import (
	"context"
	"fmt"
	"time"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/llm"
)

// MarketAnalysisInput is the body of a market_analysis task request
// (§6 POST /api/tasks/create).
type MarketAnalysisInput struct {
	CurrencyPairs    []string
	IncludeForecast  bool
	ForecastHorizon  forex.Horizon
	AnalysisPeriod   time.Duration
}

// RunMarketAnalysis drives the {fetch data, analyze markets, generate
// signals, create report} step machine (§4.F), emitting one progress
// frame per step and one info frame per pair, grounded on
// original_source/app/ai/strategy_engine.py and ai_forex_engine.py.
func RunMarketAnalysis(ctx context.Context, rec Record, in MarketAnalysisInput, store Store, emitter events.Emitter, svc *forex.Service, oracle llm.Oracle) {
	topic := rec.ID
	rec.Status = StatusRunning
	now := time.Now().UTC()
	rec.StartTime = &now
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Fetching market data", events.Progress(0.2))
	svc.GetRates(ctx)
	rec.CompleteStep(0)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Analyzing markets", events.Progress(0.4))

	var signals []pairSignal
	for _, pair := range in.CurrencyPairs {
		normalized := forex.NormalizePair(pair)
		history := svc.History(normalized)
		if len(history) == 0 {
			emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("no data available for %s", normalized), events.TypeWarning, nil, nil))
			continue
		}
		mc := forex.AnalyzeMarket(normalized, history)
		signal := forex.GenerateSignal(mc)
		signals = append(signals, pairSignal{pair: normalized, signal: signal})

		emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("%s signal: %s", normalized, signal.Action), events.TypeInfo, nil, map[string]interface{}{
			"pair":       normalized,
			"action":     signal.Action,
			"confidence": signal.Confidence,
			"reasons":    signal.Reasons,
		}))
	}
	rec.CompleteStep(1)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Generating signals", events.Progress(0.6))
	if in.IncludeForecast {
		horizon := in.ForecastHorizon
		if horizon == "" {
			horizon = forex.HorizonIntraday
		}
		for _, ps := range signals {
			price, ok := svc.CurrentPrice(ps.pair)
			if !ok {
				continue
			}
			history := svc.History(ps.pair)
			forecast := forex.ForecastPair(ps.pair, horizon, history, price)
			emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("%s forecast ready", ps.pair), events.TypeInfo, nil, forecast))
		}
	}
	rec.CompleteStep(2)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Generating report", events.Progress(0.8))
	narrative := summarizeSignals(ctx, oracle, signals)
	fileURL := fmt.Sprintf("/artifacts/%s_market_analysis.pdf", rec.ID)
	rec.ResultFileURL = fileURL
	rec.CompleteStep(3)
	rec.Status = StatusCompleted
	end := time.Now().UTC()
	rec.EndTime = &end
	_ = store.Update(ctx, rec)

	emitter.Emit(topic, events.NewFrame(rec.ID, "market analysis complete", events.TypeSuccess, events.Progress(1.0), map[string]interface{}{
		"file_url":  fileURL,
		"narrative": narrative,
	}))
}

type pairSignal struct {
	pair   string
	signal forex.TradingSignal
}

// summarizeSignals asks the configured Oracle for a short narrative
// covering every pair's signal. Returns "" when no oracle is configured.
func summarizeSignals(ctx context.Context, oracle llm.Oracle, signals []pairSignal) string {
	if oracle == nil || len(signals) == 0 {
		return ""
	}
	prompt := "Summarize these forex trading signals for a report:\n"
	for _, s := range signals {
		prompt += fmt.Sprintf("- %s: %s (confidence %.2f)\n", s.pair, s.signal.Action, s.signal.Confidence)
	}
	narrative, err := oracle.Complete(ctx, prompt)
	if err != nil {
		return ""
	}
	return narrative
}

func emitProgress(emitter events.Emitter, topic, message string, progress *float64) {
	emitter.Emit(topic, events.NewFrame(topic, message, events.TypeProgress, progress, nil))
}
