package api

import (
	"net/http"

	"forexcopilot/internal/forex"
	"forexcopilot/internal/httpmw"
)

// forexRates handles GET /api/forex/rates, proxying §4.D's cached fetch.
func (d Dependencies) forexRates(w http.ResponseWriter, r *http.Request) {
	snap := d.Forex.GetRates(r.Context())
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
		Status:    "success",
		Message:   "ok",
		Data:      snap,
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}

// forexNews handles GET /api/forex/news. News aggregation is an external
// collaborator out of this system's core scope (§1); the endpoint exists
// to complete the documented surface and returns an empty feed.
func (d Dependencies) forexNews(w http.ResponseWriter, r *http.Request) {
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
		Status:    "success",
		Message:   "ok",
		Data:      map[string]interface{}{"items": []interface{}{}},
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}

// forexSentiment handles GET /api/forex/sentiment, deriving a coarse
// bullish/bearish/neutral read from the same trend classification §4.D
// already computes for signals, rather than a separate sentiment model.
func (d Dependencies) forexSentiment(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	if pair == "" {
		pair = "EUR/USD"
	}
	history := d.Forex.History(pair)
	if len(history) == 0 {
		httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
			Status:    "success",
			Message:   "insufficient data",
			Data:      map[string]interface{}{"pair": pair, "sentiment": "neutral"},
			RequestID: httpmw.RequestIDFrom(r.Context()),
		})
		return
	}
	mc := forex.AnalyzeMarket(pair, history)
	sentiment := "neutral"
	switch mc.Trend {
	case forex.TrendBullish:
		sentiment = "bullish"
	case forex.TrendBearish:
		sentiment = "bearish"
	}
	httpmw.WriteEnvelope(w, http.StatusOK, httpmw.Envelope{
		Status:    "success",
		Message:   "ok",
		Data:      map[string]interface{}{"pair": pair, "sentiment": sentiment, "market_condition": mc},
		RequestID: httpmw.RequestIDFrom(r.Context()),
	})
}
