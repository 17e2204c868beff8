// Package forex implements the ForexDataService (§4.D): rate acquisition,
// technical indicators, and forecast synthesis. Indicator formulas are
// ported verbatim from original_source/app/ai_forex_engine.py.
package forex

import (
	"math"
	"strings"
)

// RSI computes the Wilder-style relative strength index over period
// samples. Returns 50 on insufficient history; 100 when average loss is
// zero.
func RSI(prices []float64, period int) float64 {
	if period <= 0 {
		period = 14
	}
	if len(prices) < period+1 {
		return 50.0
	}

	deltas := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		deltas[i-1] = prices[i] - prices[i-1]
	}

	var gainSum, lossSum float64
	for i := 0; i < period; i++ {
		d := deltas[i]
		if d > 0 {
			gainSum += d
		} else {
			lossSum += -d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}

// EMA computes the exponential moving average, seeded with the first
// sample and a multiplier of 2/(period+1).
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	multiplier := 2.0 / (float64(period) + 1.0)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = (p-ema)*multiplier + ema
	}
	return ema
}

// MACD returns (line, signal, histogram). All three are zero when history
// has fewer than 26 samples.
func MACD(prices []float64) (line, signal, histogram float64) {
	if len(prices) < 26 {
		return 0, 0, 0
	}
	series := make([]float64, 0, len(prices)-25)
	for i := 26; i <= len(prices); i++ {
		series = append(series, EMA(prices[:i], 12)-EMA(prices[:i], 26))
	}
	line = series[len(series)-1]
	signal = EMA(series, 9)
	histogram = line - signal
	return line, signal, histogram
}

// SupportResistance returns (support, resistance) as the min/max over the
// trailing 50 samples (or the whole history if shorter).
func SupportResistance(prices []float64) (support, resistance float64) {
	window := prices
	if len(window) > 50 {
		window = window[len(window)-50:]
	}
	if len(window) == 0 {
		return 0, 0
	}
	support, resistance = window[0], window[0]
	for _, p := range window {
		if p < support {
			support = p
		}
		if p > resistance {
			resistance = p
		}
	}
	return support, resistance
}

// SMA is the simple moving average over the trailing `period` samples.
func SMA(prices []float64, period int) float64 {
	window := prices
	if len(window) > period {
		window = window[len(window)-period:]
	}
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, p := range window {
		sum += p
	}
	return sum / float64(len(window))
}

// Trend classifies SMA(20) vs SMA(50) vs the current price.
type Trend string

const (
	TrendBullish  Trend = "BULLISH"
	TrendBearish  Trend = "BEARISH"
	TrendSideways Trend = "SIDEWAYS"
)

// ClassifyTrend implements analyze_market_conditions' trend branch.
func ClassifyTrend(prices []float64) Trend {
	if len(prices) == 0 {
		return TrendSideways
	}
	sma20 := SMA(prices, 20)
	sma50 := SMA(prices, 50)
	current := prices[len(prices)-1]
	if current > sma20 && sma20 > sma50 {
		return TrendBullish
	}
	if current < sma20 && sma20 < sma50 {
		return TrendBearish
	}
	return TrendSideways
}

// Volatility is the population standard deviation over the trailing 20
// samples.
func Volatility(prices []float64) float64 {
	window := prices
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	if len(window) == 0 {
		return 0
	}
	mean := SMA(window, len(window))
	var sumSq float64
	for _, p := range window {
		d := p - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(window)))
}

// MarketCondition is the closed record type replacing the source's
// duck-typed market-condition dict (REDESIGN FLAGS).
type MarketCondition struct {
	Pair            string
	CurrentPrice    float64
	RSI             float64
	MACDLine        float64
	MACDSignal      float64
	MACDHistogram   float64
	Support         float64
	Resistance      float64
	Trend           Trend
	Volatility      float64
}

// AnalyzeMarket builds a MarketCondition from a price history.
func AnalyzeMarket(pair string, prices []float64) MarketCondition {
	line, signal, histogram := MACD(prices)
	support, resistance := SupportResistance(prices)
	var current float64
	if len(prices) > 0 {
		current = prices[len(prices)-1]
	}
	return MarketCondition{
		Pair:          pair,
		CurrentPrice:  current,
		RSI:           RSI(prices, 14),
		MACDLine:      line,
		MACDSignal:    signal,
		MACDHistogram: histogram,
		Support:       support,
		Resistance:    resistance,
		Trend:         ClassifyTrend(prices),
		Volatility:    Volatility(prices),
	}
}

// PrecisionDigits returns 2 for JPY/PKR-quoted pairs, else 4 (§4.D).
func PrecisionDigits(pair string) int {
	upper := strings.ToUpper(pair)
	for _, sub := range []string{"JPY", "PKR"} {
		if strings.Contains(upper, sub) {
			return 2
		}
	}
	return 4
}
