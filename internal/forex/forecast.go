package forex

import (
	"errors"
	"strings"
)

// ErrUnavailablePair names the case of a pair with no resolvable current
// price. No function in this module returns it: the forecast task emits a
// warning frame for such a pair and goes on with the next one.
var ErrUnavailablePair = errors.New("forex: unavailable pair")

// Action is the closed trading-signal action type (REDESIGN FLAGS).
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradingSignal is the closed record type replacing the source's
// duck-typed signal dict.
type TradingSignal struct {
	Pair       string
	Action     Action
	Confidence float64
	StopLoss   float64
	TakeProfit float64
	Reasons    []string
}

type vote struct {
	action     Action
	confidence float64
	reason     string
}

// GenerateSignal is the BUY/SELL/HOLD weighted-vote algorithm, ported
// verbatim from original_source/app/ai/strategy_engine.py::generate_signal.
func GenerateSignal(mc MarketCondition) TradingSignal {
	var votes []vote

	if mc.RSI < 30 {
		votes = append(votes, vote{ActionBuy, 0.7, "RSI oversold"})
	} else if mc.RSI > 70 {
		votes = append(votes, vote{ActionSell, 0.7, "RSI overbought"})
	}

	if mc.MACDHistogram > 0 {
		votes = append(votes, vote{ActionBuy, 0.6, "MACD bullish crossover"})
	} else if mc.MACDHistogram < 0 {
		votes = append(votes, vote{ActionSell, 0.6, "MACD bearish crossover"})
	}

	switch mc.Trend {
	case TrendBullish:
		votes = append(votes, vote{ActionBuy, 0.8, "Strong uptrend"})
	case TrendBearish:
		votes = append(votes, vote{ActionSell, 0.8, "Strong downtrend"})
	}

	if mc.Support > 0 && mc.CurrentPrice <= mc.Support*1.01 {
		votes = append(votes, vote{ActionBuy, 0.9, "Price at support"})
	} else if mc.Resistance > 0 && mc.CurrentPrice >= mc.Resistance*0.99 {
		votes = append(votes, vote{ActionSell, 0.9, "Price at resistance"})
	}

	total := len(votes)
	signal := TradingSignal{Pair: mc.Pair, Action: ActionHold}
	if total == 0 {
		return signal
	}

	var buySum, sellSum float64
	var buyReasons, sellReasons []string
	for _, v := range votes {
		switch v.action {
		case ActionBuy:
			buySum += v.confidence
			buyReasons = append(buyReasons, v.reason)
		case ActionSell:
			sellSum += v.confidence
			sellReasons = append(sellReasons, v.reason)
		}
	}
	buyConfidence := buySum / float64(total)
	sellConfidence := sellSum / float64(total)

	switch {
	case buyConfidence > sellConfidence && buyConfidence > 0.5:
		signal.Action = ActionBuy
		signal.Confidence = buyConfidence
		signal.StopLoss = mc.Support
		signal.TakeProfit = mc.CurrentPrice * 1.02
		signal.Reasons = buyReasons
	case sellConfidence > buyConfidence && sellConfidence > 0.5:
		signal.Action = ActionSell
		signal.Confidence = sellConfidence
		signal.StopLoss = mc.Resistance
		signal.TakeProfit = mc.CurrentPrice * 0.98
		signal.Reasons = sellReasons
	}
	return signal
}

// Horizon selects the lookback and base magnitude of a forecast.
type Horizon string

const (
	HorizonIntraday Horizon = "intraday"
	Horizon1Day     Horizon = "1d"
	Horizon1Week    Horizon = "1w"
)

// ForecastResult is the closed record type for forecast_pair's output.
type ForecastResult struct {
	Pair            string
	Horizon         Horizon
	CombinedBias    float64
	ExpectedLowPct  float64
	ExpectedMidPct  float64
	ExpectedHighPct float64
	TargetLow       float64
	TargetMid       float64
	TargetHigh      float64
	Confidence      float64
	Guidance        string
}

func lookbackFor(horizon Horizon) int {
	switch horizon {
	case Horizon1Day:
		return 20
	case Horizon1Week:
		return 60
	default:
		return 8
	}
}

func baseMagnitudeFor(horizon Horizon) float64 {
	switch horizon {
	case Horizon1Day:
		return 0.55
	case Horizon1Week:
		return 1.60
	default:
		return 0.25
	}
}

// NormalizePair maps "eur/usd", "EURUSD", "eur-usd" to the canonical
// "EUR/USD" form.
func NormalizePair(pair string) string {
	p := strings.ToUpper(strings.TrimSpace(pair))
	p = strings.ReplaceAll(p, "-", "")
	p = strings.ReplaceAll(p, "/", "")
	if len(p) != 6 {
		return strings.ToUpper(strings.TrimSpace(pair))
	}
	return p[:3] + "/" + p[3:]
}

// ForecastPair synthesizes the short-horizon forecast (§4.D). currentPrice
// must already be resolved by the caller (cache lookup or USD-base
// derivation); callers skip a pair whose price cannot be resolved.
func ForecastPair(pair string, horizon Horizon, prices []float64, currentPrice float64) ForecastResult {
	trend := ClassifyTrend(prices)
	trendScore := 0.0
	switch trend {
	case TrendBullish:
		trendScore = 1.0
	case TrendBearish:
		trendScore = -1.0
	}

	lookback := lookbackFor(horizon)
	momentumScore := momentum(prices, lookback)

	combinedBias := 0.65*trendScore + 0.35*momentumScore

	vol := Volatility(prices)
	volMultiplier := volatilityMultiplier(vol, prices)
	riskMultiplier := riskMultiplier(trend, momentumScore)

	base := baseMagnitudeFor(horizon)
	magnitude := base * volMultiplier * riskMultiplier

	midPct := combinedBias * magnitude
	lowPct := midPct - magnitude*0.5
	highPct := midPct + magnitude*0.5

	confidence := confidenceFor(len(prices), trendScore, momentumScore, vol, prices)

	return ForecastResult{
		Pair:            pair,
		Horizon:         horizon,
		CombinedBias:    combinedBias,
		ExpectedLowPct:  lowPct,
		ExpectedMidPct:  midPct,
		ExpectedHighPct: highPct,
		TargetLow:       currentPrice * (1 + lowPct/100),
		TargetMid:       currentPrice * (1 + midPct/100),
		TargetHigh:      currentPrice * (1 + highPct/100),
		Confidence:      confidence,
		Guidance:        guidanceFor(combinedBias),
	}
}

// momentum computes a thresholded (±0.05%) lookback return.
func momentum(prices []float64, lookback int) float64 {
	if len(prices) <= lookback {
		return 0
	}
	past := prices[len(prices)-1-lookback]
	current := prices[len(prices)-1]
	if past == 0 {
		return 0
	}
	change := (current - past) / past * 100
	if change > 0.05 {
		return 1.0
	}
	if change < -0.05 {
		return -1.0
	}
	return 0.0
}

func volatilityMultiplier(vol float64, prices []float64) float64 {
	mean := SMA(prices, len(prices))
	if mean == 0 {
		return 1.0
	}
	relative := vol / mean * 100
	switch {
	case relative > 1.0:
		return 1.6
	case relative < 0.2:
		return 0.7
	default:
		return 1.0
	}
}

func riskMultiplier(trend Trend, momentumScore float64) float64 {
	aligned := (trend == TrendBullish && momentumScore > 0) || (trend == TrendBearish && momentumScore < 0)
	if aligned {
		return 0.85
	}
	if trend == TrendSideways && momentumScore == 0 {
		return 1.05
	}
	return 1.0
}

func confidenceFor(historyLen int, trendScore, momentumScore, vol float64, prices []float64) float64 {
	confidence := 45.0 + float64(min(historyLen, 240))/240.0*35.0
	if (trendScore > 0 && momentumScore > 0) || (trendScore < 0 && momentumScore < 0) {
		confidence += 12
	}

	mean := SMA(prices, len(prices))
	highVol := mean != 0 && vol/mean*100 > 1.0
	if highVol {
		confidence -= 8
	}

	if confidence < 45 {
		confidence = 45
	}
	if confidence > 92 {
		confidence = 92
	}
	return confidence
}

func guidanceFor(bias float64) string {
	switch {
	case bias > 0.3:
		return "Momentum and trend both favor further upside; consider scaling into long exposure with a defined stop."
	case bias < -0.3:
		return "Momentum and trend both favor further downside; consider scaling into short exposure with a defined stop."
	default:
		return "Signals are mixed; favor range-bound tactics over a directional bet until conviction improves."
	}
}
