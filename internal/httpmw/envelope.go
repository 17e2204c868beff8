// Package httpmw implements the middleware chain (§4.E) as a single
// ordered chi.Router.Use pipeline, grounded on the teacher's
// cmd/server/main.go router assembly and
// fairyhunter13-ai-cv-evaluator/internal/adapter/httpserver's
// middleware/responses shape.
package httpmw

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
)

// Envelope is the `{status, message, data, requestId}` shape wrapping
// every JSON API response (§6).
type Envelope struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"requestId"`
}

// WriteEnvelope writes an envelope-shaped JSON response directly — used by
// handlers for success and error responses alike. When EnvelopeWrap is in
// the chain it recognizes the body as already enveloped and only fills in
// its requestId.
func WriteEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

type envelopeRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	header http.Header
}

func (r *envelopeRecorder) WriteHeader(status int) {
	r.status = status
}

func (r *envelopeRecorder) Write(b []byte) (int, error) {
	return r.buf.Write(b)
}

func (r *envelopeRecorder) Header() http.Header {
	if r.header == nil {
		r.header = make(http.Header)
	}
	return r.header
}

// EnvelopeWrap wraps successful JSON responses under apiPrefix into the
// envelope shape (§4.E step 2). Already-enveloped bodies only get their
// requestId filled in — this makes the wrap idempotent (§8).
func EnvelopeWrap(apiPrefix string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || !strings.HasPrefix(r.URL.Path, apiPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			rec := &envelopeRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			for k, vals := range rec.header {
				for _, v := range vals {
					w.Header().Add(k, v)
				}
			}

			requestID := RequestIDFrom(r.Context())

			if rec.status >= 400 || rec.status == 0 {
				if rec.status == 0 {
					rec.status = http.StatusOK
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(rec.status)
				_, _ = w.Write(rec.buf.Bytes())
				return
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "" && !strings.Contains(contentType, "application/json") {
				w.WriteHeader(rec.status)
				_, _ = w.Write(rec.buf.Bytes())
				return
			}

			body := rec.buf.Bytes()
			var existing map[string]interface{}
			if len(body) > 0 {
				if err := json.Unmarshal(body, &existing); err == nil && isEnvelopeShaped(existing) {
					existing["requestId"] = requestID
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(rec.status)
					_ = json.NewEncoder(w).Encode(existing)
					return
				}
			}

			var data interface{}
			message := "OK"
			if len(body) > 0 {
				if err := json.Unmarshal(body, &data); err == nil {
					if m, ok := data.(map[string]interface{}); ok {
						if msg, ok := m["message"].(string); ok {
							message = msg
						}
					}
				}
			}

			env := Envelope{Status: "success", Message: message, Data: data, RequestID: requestID}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.status)
			_ = json.NewEncoder(w).Encode(env)
		})
	}
}

func isEnvelopeShaped(m map[string]interface{}) bool {
	_, hasStatus := m["status"]
	_, hasMessage := m["message"]
	_, hasData := m["data"]
	return hasStatus && hasMessage && hasData
}
