package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"forexcopilot/internal/events"
	"forexcopilot/internal/forex"
	"forexcopilot/internal/httpmw"
	"forexcopilot/internal/tasks"
)

var bodyValidator = validator.New()

type createTaskBody struct {
	Title                string          `json:"title" validate:"required"`
	Description          string          `json:"description"`
	TaskType             tasks.Type      `json:"task_type" validate:"required,oneof=market_analysis auto_trade forecast"`
	Priority             string          `json:"priority" validate:"omitempty,oneof=low medium high"`
	CurrencyPairs        []string        `json:"currency_pairs" validate:"required,min=1,dive,required"`
	AutoTradeEnabled     bool            `json:"auto_trade_enabled"`
	UserLimits           *userLimitsBody `json:"user_limits" validate:"omitempty"`
	AnalysisPeriodHours  float64         `json:"analysis_period_hours" validate:"gte=0"`
	IncludeForecast      bool            `json:"include_forecast"`
	ForecastHorizonHours float64         `json:"forecast_horizon_hours" validate:"gte=0"`
}

type userLimitsBody struct {
	MaxPositionSize float64 `json:"max_position_size" validate:"gte=0"`
}

func horizonFromHours(hours float64) forex.Horizon {
	switch {
	case hours >= 168:
		return forex.Horizon1Week
	case hours >= 24:
		return forex.Horizon1Day
	default:
		return forex.HorizonIntraday
	}
}

// createTask handles POST /api/tasks/create (§6). Returns the initial
// task record with status "running" once enqueued.
func (d Dependencies) createTask(w http.ResponseWriter, r *http.Request) {
	var body createTaskBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpmw.WriteEnvelope(w, http.StatusBadRequest, httpmw.Envelope{Status: "error", Message: "malformed request body", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}

	if err := bodyValidator.Struct(body); err != nil {
		httpmw.WriteEnvelope(w, http.StatusBadRequest, httpmw.Envelope{Status: "error", Message: "validation failed: " + err.Error(), RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}

	user, _ := httpmw.UserFrom(r.Context())
	id := uuid.NewString()
	rec := tasks.NewRecord(id, user.UserID, body.Title, body.Description, body.Priority, tasks.StepNamesFor(body.TaskType))
	rec.Status = tasks.StatusRunning
	now := time.Now().UTC()
	rec.StartTime = &now

	if err := d.Store.Create(r.Context(), rec); err != nil {
		httpmw.WriteEnvelope(w, http.StatusInternalServerError, httpmw.Envelope{Status: "error", Message: "failed to persist task", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}

	var input interface{}
	switch body.TaskType {
	case tasks.TypeMarketAnalysis:
		input = tasks.MarketAnalysisInput{
			CurrencyPairs:   body.CurrencyPairs,
			IncludeForecast: body.IncludeForecast,
			ForecastHorizon: horizonFromHours(body.ForecastHorizonHours),
			AnalysisPeriod:  time.Duration(body.AnalysisPeriodHours * float64(time.Hour)),
		}
	case tasks.TypeAutoTrade:
		limits := tasks.UserLimits{}
		if body.UserLimits != nil {
			limits.MaxPositionSize = body.UserLimits.MaxPositionSize
		}
		input = tasks.AutoTradeInput{
			CurrencyPairs: body.CurrencyPairs,
			UserLimits:    limits,
		}
	case tasks.TypeForecast:
		input = tasks.ForecastInput{
			CurrencyPairs: body.CurrencyPairs,
			Horizon:       horizonFromHours(body.ForecastHorizonHours),
		}
	}

	if ok := d.Registry.Enqueue(r.Context(), d.Queue, body.TaskType, rec, input); !ok {
		rec.Status = tasks.StatusFailed
		_ = d.Store.Update(r.Context(), rec)
		httpmw.WriteEnvelope(w, http.StatusServiceUnavailable, httpmw.Envelope{Status: "error", Message: "task queue is unavailable", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}

	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "task created", Data: rec, RequestID: httpmw.RequestIDFrom(r.Context())})
}

// listTasks handles GET /api/tasks/. It always returns an empty list:
// Store has no per-user listing, only lookups by id, so no records of the
// caller are looked up or returned.
func (d Dependencies) listTasks(w http.ResponseWriter, r *http.Request) {
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "listing is delegated to the configured task store", Data: []tasks.Record{}, RequestID: httpmw.RequestIDFrom(r.Context())})
}

func (d Dependencies) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := d.Store.Get(r.Context(), id)
	if err != nil {
		httpmw.WriteEnvelope(w, http.StatusNotFound, httpmw.Envelope{Status: "error", Message: "task not found", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "ok", Data: rec, RequestID: httpmw.RequestIDFrom(r.Context())})
}

func (d Dependencies) transitionTask(action string, target tasks.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, err := d.Store.Get(r.Context(), id)
		if err != nil {
			httpmw.WriteEnvelope(w, http.StatusNotFound, httpmw.Envelope{Status: "error", Message: "task not found", RequestID: httpmw.RequestIDFrom(r.Context())})
			return
		}
		rec.Status = target
		if target == tasks.StatusFailed || target == tasks.StatusCompleted {
			end := time.Now().UTC()
			rec.EndTime = &end
		}
		if err := d.Store.Update(r.Context(), rec); err != nil {
			httpmw.WriteEnvelope(w, http.StatusInternalServerError, httpmw.Envelope{Status: "error", Message: "failed to update task", RequestID: httpmw.RequestIDFrom(r.Context())})
			return
		}
		emitTaskEvent(d.Manager, id, "task "+action+"ed", eventTypeForTransition(action))
		httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "task " + action + "ed", Data: rec, RequestID: httpmw.RequestIDFrom(r.Context())})
	}
}

func eventTypeForTransition(action string) events.Type {
	if action == "stop" {
		return events.TypeWarning
	}
	return events.TypeInfo
}

func (d Dependencies) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := d.Store.Get(r.Context(), id)
	if err != nil {
		httpmw.WriteEnvelope(w, http.StatusNotFound, httpmw.Envelope{Status: "error", Message: "task not found", RequestID: httpmw.RequestIDFrom(r.Context())})
		return
	}
	rec.Status = tasks.StatusFailed
	end := time.Now().UTC()
	rec.EndTime = &end
	_ = d.Store.Update(r.Context(), rec)
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{Status: "success", Message: "task deleted", RequestID: httpmw.RequestIDFrom(r.Context())})
}
