package forex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGetRates_FetchesAndDerivesPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"rates": map[string]float64{"EUR": 0.9, "JPY": 150.0},
		})
	}))
	defer srv.Close()

	svc := New(Config{UpstreamURL: srv.URL, MinFetchIntervalSeconds: 1}, zap.NewNop())
	snap := svc.GetRates(context.Background())

	if snap.LatestRates["EUR/USD"] != 1/0.9 {
		t.Fatalf("expected EUR/USD derived from the USD-base rate, got %v", snap.LatestRates["EUR/USD"])
	}
	if snap.LatestRates["USD/JPY"] != 150.0 {
		t.Fatalf("expected USD/JPY passthrough, got %v", snap.LatestRates["USD/JPY"])
	}
}

func TestGetRates_FallsBackOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := New(Config{UpstreamURL: srv.URL, MinFetchIntervalSeconds: 1}, zap.NewNop())
	snap := svc.GetRates(context.Background())

	if len(snap.LatestRates) == 0 {
		t.Fatalf("expected a static fallback table when upstream fails")
	}
	if svc.Stats().RateFailureStreak != 1 {
		t.Fatalf("expected the failure streak to advance to 1, got %d", svc.Stats().RateFailureStreak)
	}
}

func TestGetRates_RespectsMinFetchInterval(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"rates": map[string]float64{"EUR": 0.9}})
	}))
	defer srv.Close()

	svc := New(Config{UpstreamURL: srv.URL, MinFetchIntervalSeconds: 5}, zap.NewNop())
	svc.GetRates(context.Background())
	svc.GetRates(context.Background())

	if calls != 1 {
		t.Fatalf("expected the second call within the min-fetch interval to reuse the cache, got %d upstream calls", calls)
	}
}

func TestGetRates_BackoffWindowSuppressesRefetch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := New(Config{UpstreamURL: srv.URL, MinFetchIntervalSeconds: 0.001}, zap.NewNop())
	svc.GetRates(context.Background())
	time.Sleep(5 * time.Millisecond)
	svc.GetRates(context.Background())

	if calls != 1 {
		t.Fatalf("expected the backoff window to suppress the second fetch attempt, got %d calls", calls)
	}
}

func TestRecordFailure_StreakSevenNeverReachesNinety(t *testing.T) {
	svc := New(Config{}, zap.NewNop())
	err := context.DeadlineExceeded

	var waits []time.Duration
	for i := 0; i < 7; i++ {
		before := time.Now()
		svc.recordFailure(err)
		svc.mu.Lock()
		wait := svc.nextRetry.Sub(before)
		svc.mu.Unlock()
		waits = append(waits, wait)
	}

	want := []time.Duration{2, 4, 8, 16, 32, 64, 64}
	for i, w := range want {
		got := waits[i].Round(time.Second)
		if got != w*time.Second {
			t.Fatalf("streak %d: expected a %s backoff, got %s", i+1, w*time.Second, got)
		}
	}
	if waits[6] >= 90*time.Second {
		t.Fatalf("streak 7 produced a real 90s backoff (%s), which the min(90, 2^streak) formula never reaches", waits[6])
	}
}

func TestCurrentPrice_UnknownPairReturnsFalse(t *testing.T) {
	svc := New(Config{}, zap.NewNop())
	if _, ok := svc.CurrentPrice("XXX/YYY"); ok {
		t.Fatalf("expected an unknown pair to report false")
	}
}
