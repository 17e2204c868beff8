package tasks

import (
	"context"
	"fmt"
	"time"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
)

// ForecastInput is the body of a forecast task request.
type ForecastInput struct {
	CurrencyPairs []string
	Horizon       forex.Horizon
}

// RunForecast drives the {collect data, train model, generate
// predictions, create report} step machine (§4.F). For each pair calls
// forex.ForecastPair and emits one frame with the structured forecast.
func RunForecast(ctx context.Context, rec Record, in ForecastInput, store Store, emitter events.Emitter, svc *forex.Service) {
	topic := rec.ID
	rec.Status = StatusRunning
	now := time.Now().UTC()
	rec.StartTime = &now
	_ = store.Update(ctx, rec)

	horizon := in.Horizon
	if horizon == "" {
		horizon = forex.HorizonIntraday
	}

	emitProgress(emitter, topic, "Collecting data", events.Progress(0.25))
	svc.GetRates(ctx)
	rec.CompleteStep(0)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Training model", events.Progress(0.5))
	rec.CompleteStep(1)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Generating predictions", events.Progress(0.75))
	for _, pair := range in.CurrencyPairs {
		normalized := forex.NormalizePair(pair)
		price, ok := svc.CurrentPrice(normalized)
		if !ok {
			emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("%s unavailable for forecast", normalized), events.TypeWarning, nil, nil))
			continue
		}
		history := svc.History(normalized)
		result := forex.ForecastPair(normalized, horizon, history, price)
		emitter.Emit(topic, events.NewFrame(rec.ID, fmt.Sprintf("%s forecast: %s", normalized, result.Guidance), events.TypeInfo, nil, result))
	}
	rec.CompleteStep(2)
	_ = store.Update(ctx, rec)

	emitProgress(emitter, topic, "Creating report", events.Progress(0.9))
	fileURL := fmt.Sprintf("/artifacts/%s_forecast.pdf", rec.ID)
	rec.ResultFileURL = fileURL
	rec.CompleteStep(3)
	rec.Status = StatusCompleted
	end := time.Now().UTC()
	rec.EndTime = &end
	_ = store.Update(ctx, rec)

	emitter.Emit(topic, events.NewFrame(rec.ID, "forecast complete", events.TypeSuccess, events.Progress(1.0), map[string]interface{}{
		"file_url": fileURL,
	}))
}
