package forex

import "testing"

func risingPrices(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1.10 + 0.0005*float64(i)
	}
	return out
}

func TestForecastPair_ConfidenceWithinBounds(t *testing.T) {
	for _, horizon := range []Horizon{HorizonIntraday, Horizon1Day, Horizon1Week} {
		result := ForecastPair("EUR/USD", horizon, risingPrices(90), 1.15)
		if result.Confidence < 45 || result.Confidence > 92 {
			t.Fatalf("expected confidence in [45, 92] for horizon %s, got %v", horizon, result.Confidence)
		}
	}
}

func TestForecastPair_TargetsBracketMid(t *testing.T) {
	result := ForecastPair("EUR/USD", Horizon1Day, risingPrices(90), 1.15)
	if !(result.TargetLow <= result.TargetMid && result.TargetMid <= result.TargetHigh) {
		t.Fatalf("expected TargetLow <= TargetMid <= TargetHigh, got low=%v mid=%v high=%v", result.TargetLow, result.TargetMid, result.TargetHigh)
	}
}

func TestNormalizePair(t *testing.T) {
	cases := map[string]string{
		"eur/usd":  "EUR/USD",
		"EURUSD":   "EUR/USD",
		"eur-usd":  "EUR/USD",
		"EUR/USD":  "EUR/USD",
		"notapair": "NOTAPAIR",
	}
	for in, want := range cases {
		if got := NormalizePair(in); got != want {
			t.Errorf("NormalizePair(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateSignal_NoVotesIsHold(t *testing.T) {
	mc := MarketCondition{Pair: "EUR/USD", RSI: 50, MACDHistogram: 0, Trend: TrendSideways}
	signal := GenerateSignal(mc)
	if signal.Action != ActionHold {
		t.Fatalf("expected HOLD when no indicator votes fire, got %v", signal.Action)
	}
}

func TestGenerateSignal_OversoldRSIAtSupportVotesBuy(t *testing.T) {
	mc := MarketCondition{
		Pair:          "EUR/USD",
		CurrentPrice:  1.0995,
		RSI:           25,
		MACDHistogram: 0.001,
		Trend:         TrendBullish,
		Support:       1.10,
		Resistance:    1.20,
	}
	signal := GenerateSignal(mc)
	if signal.Action != ActionBuy {
		t.Fatalf("expected BUY when RSI/MACD/trend/support all align bullish, got %v", signal.Action)
	}
	if signal.Confidence <= 0.5 {
		t.Fatalf("expected confidence above the 0.5 acceptance threshold, got %v", signal.Confidence)
	}
}

func TestGenerateSignal_OverboughtAtResistanceVotesSell(t *testing.T) {
	mc := MarketCondition{
		Pair:          "EUR/USD",
		CurrentPrice:  1.1988,
		RSI:           75,
		MACDHistogram: -0.001,
		Trend:         TrendBearish,
		Support:       1.10,
		Resistance:    1.20,
	}
	signal := GenerateSignal(mc)
	if signal.Action != ActionSell {
		t.Fatalf("expected SELL when indicators align bearish, got %v", signal.Action)
	}
}
