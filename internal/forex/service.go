package forex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultUpstreamURL = "https://api.exchangerate-api.com/v4/latest/USD"
	historyCap         = 240
	// maxBackoffSeconds is the spec-documented cap in min(90, 2^streak).
	// It is vestigial: 2^6=64 is already below 90 and the exponent never
	// grows past streak 6 before the geometric sequence plateaus, so 90
	// itself is never produced by the formula.
	maxBackoffSeconds = 90
	// backoffLibraryMaxInterval is what we actually hand to
	// cenkalti/backoff/v4's ExponentialBackOff.MaxInterval. The library
	// clamps once currentInterval >= MaxInterval/Multiplier, so setting
	// it to the spec's 90s would let the 7th consecutive failure jump
	// straight to a real, reachable 90s value the formula itself never
	// reaches. Capping at 64s keeps the clamp below the point the formula
	// plateaus at, so NextBackOff never diverges from min(90, 2^streak).
	backoffLibraryMaxInterval = 64
)

// fallbackRates is returned when there is no cache and the service is
// inside a backoff window — a static last-resort table.
var fallbackRates = map[string]float64{
	"EUR": 0.92, "GBP": 0.79, "JPY": 149.5, "CHF": 0.88,
	"AUD": 1.52, "CAD": 1.36, "NZD": 1.64, "PKR": 278.0,
}

// Config configures the rate-fetch cadence and upstream timeouts.
type Config struct {
	MinFetchIntervalSeconds float64
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	TotalTimeout            time.Duration
	UpstreamURL             string
}

// Snapshot is the point-in-time rates view returned by GetRates.
type Snapshot struct {
	LatestRates    map[string]float64
	LatestUSDBase  map[string]float64
	FetchedAt      time.Time
}

// RuntimeStats feeds the ops snapshot (§4.G).
type RuntimeStats struct {
	RateFailureStreak       int
	NextRatesRetryInSeconds float64
}

// Service is the ForexDataService (§4.D).
type Service struct {
	cfg    Config
	logger *zap.Logger
	client *http.Client

	mu                sync.Mutex
	latestUSDBase     map[string]float64
	latestRates       map[string]float64
	history           map[string][]float64
	lastFetch         time.Time
	failureStreak     int
	nextRetry         time.Time
	lastErrorLoggedAt time.Time
	lastErrorText     string
	retryBackoff      *backoff.ExponentialBackOff
}

// New constructs a Service with sane defaults.
func New(cfg Config, logger *zap.Logger) *Service {
	if cfg.MinFetchIntervalSeconds <= 0 {
		cfg.MinFetchIntervalSeconds = 3
	}
	if cfg.MinFetchIntervalSeconds < 1 {
		cfg.MinFetchIntervalSeconds = 1
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.TotalTimeout <= 0 {
		cfg.TotalTimeout = 12 * time.Second
	}
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = defaultUpstreamURL
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}

	return &Service{
		cfg:          cfg,
		logger:       logger,
		client:       &http.Client{Transport: transport, Timeout: cfg.TotalTimeout},
		history:      make(map[string][]float64),
		retryBackoff: newRateRetryBackOff(),
	}
}

// newRateRetryBackOff produces the doubling 2,4,8,16,32,64(cap) second
// sequence the §4.D backoff policy specifies (min(90, 2^streak)), driven by
// github.com/cenkalti/backoff/v4 instead of a hand-rolled power function.
func newRateRetryBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = backoffLibraryMaxInterval * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type upstreamResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// GetRates implements the cached, backoff-aware rate fetch (§4.D).
func (s *Service) GetRates(ctx context.Context) Snapshot {
	s.mu.Lock()
	if !s.lastFetch.IsZero() && time.Since(s.lastFetch) < time.Duration(s.cfg.MinFetchIntervalSeconds*float64(time.Second)) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	inBackoff := time.Now().Before(s.nextRetry)
	if inBackoff {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if len(snap.LatestUSDBase) > 0 {
			return snap
		}
		return Snapshot{LatestUSDBase: fallbackRates, LatestRates: derivePairs(fallbackRates), FetchedAt: time.Now().UTC()}
	}
	s.mu.Unlock()

	rates, err := s.fetchUpstream(ctx)
	if err != nil {
		s.recordFailure(err)
		s.mu.Lock()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if len(snap.LatestUSDBase) > 0 {
			return snap
		}
		return Snapshot{LatestUSDBase: fallbackRates, LatestRates: derivePairs(fallbackRates), FetchedAt: time.Now().UTC()}
	}

	s.mu.Lock()
	s.lastFetch = time.Now().UTC()
	s.failureStreak = 0
	s.nextRetry = time.Time{}
	s.retryBackoff.Reset()
	s.latestUSDBase = rates
	derived := derivePairs(rates)
	s.latestRates = derived
	for pair, price := range derived {
		if price <= 0 {
			continue
		}
		hist := append(s.history[pair], price)
		if len(hist) > historyCap {
			hist = hist[len(hist)-historyCap:]
		}
		s.history[pair] = hist
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap
}

func (s *Service) snapshotLocked() Snapshot {
	base := make(map[string]float64, len(s.latestUSDBase))
	for k, v := range s.latestUSDBase {
		base[k] = v
	}
	rates := make(map[string]float64, len(s.latestRates))
	for k, v := range s.latestRates {
		rates[k] = v
	}
	return Snapshot{LatestUSDBase: base, LatestRates: rates, FetchedAt: s.lastFetch}
}

func (s *Service) fetchUpstream(ctx context.Context) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TotalTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UpstreamURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("forex: upstream status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var parsed upstreamResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Rates, nil
}

// derivePairs implements the exact cross-pair derivations from
// forex_data_service.py (positive-float filtered).
func derivePairs(usdBase map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	put := func(pair string, value float64) {
		if value > 0 && !math.IsInf(value, 0) && !math.IsNaN(value) {
			out[pair] = value
		}
	}
	if v, ok := usdBase["EUR"]; ok && v > 0 {
		put("EUR/USD", 1/v)
	}
	if v, ok := usdBase["GBP"]; ok && v > 0 {
		put("GBP/USD", 1/v)
	}
	if v, ok := usdBase["JPY"]; ok {
		put("USD/JPY", v)
	}
	if v, ok := usdBase["CHF"]; ok {
		put("USD/CHF", v)
	}
	if v, ok := usdBase["AUD"]; ok && v > 0 {
		put("AUD/USD", 1/v)
	}
	if v, ok := usdBase["CAD"]; ok {
		put("USD/CAD", v)
	}
	if v, ok := usdBase["NZD"]; ok && v > 0 {
		put("NZD/USD", 1/v)
	}
	if v, ok := usdBase["PKR"]; ok {
		put("USD/PKR", v)
	}
	return out
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	s.failureStreak++
	wait := s.retryBackoff.NextBackOff()
	s.nextRetry = time.Now().Add(wait)
	streak := s.failureStreak
	backoffSeconds := wait.Seconds()
	shouldLog := time.Since(s.lastErrorLoggedAt) > 30*time.Second || s.lastErrorText != err.Error()
	if shouldLog {
		s.lastErrorLoggedAt = time.Now()
		s.lastErrorText = err.Error()
	}
	s.mu.Unlock()

	if shouldLog {
		s.logger.Warn("forex: rate fetch failed", zap.Error(err), zap.Int("failure_streak", streak), zap.Float64("backoff_seconds", backoffSeconds))
	}
}

// Stats returns the current failure streak and retry timing for ops (§4.G).
func (s *Service) Stats() RuntimeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	remaining := time.Until(s.nextRetry).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return RuntimeStats{RateFailureStreak: s.failureStreak, NextRatesRetryInSeconds: remaining}
}

// History returns a copy of the bounded price history for a pair.
func (s *Service) History(pair string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.history[pair]
	out := make([]float64, len(hist))
	copy(out, hist)
	return out
}

// CurrentPrice resolves the latest known price for a normalized pair,
// looking at direct pairs then USD-base currencies.
func (s *Service) CurrentPrice(pair string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.latestRates[pair]; ok {
		return v, true
	}
	parts := strings.Split(pair, "/")
	if len(parts) == 2 {
		base, quote := 1.0, 1.0
		if parts[0] != "USD" {
			base = s.latestUSDBase[parts[0]]
		}
		if parts[1] != "USD" {
			quote = s.latestUSDBase[parts[1]]
		}
		if base > 0 && quote > 0 {
			return quote / base, true
		}
	}
	return 0, false
}
