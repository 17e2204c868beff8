package tasks

import (
	"testing"

	"forexcopilot/internal/forex"
)

func TestCanExecuteSignal_RejectsLowConfidence(t *testing.T) {
	signal := forex.TradingSignal{Action: forex.ActionBuy, Confidence: 0.5}
	ok, reason := CanExecuteSignal(signal, 0.7)
	if ok {
		t.Fatalf("expected a sub-threshold confidence to be rejected")
	}
	if reason == "" {
		t.Fatalf("expected a rejection reason")
	}
}

func TestCanExecuteSignal_AcceptsAtOrAboveThreshold(t *testing.T) {
	signal := forex.TradingSignal{Action: forex.ActionBuy, Confidence: 0.7}
	ok, _ := CanExecuteSignal(signal, 0.7)
	if !ok {
		t.Fatalf("expected confidence exactly at the threshold to be accepted")
	}
}

func TestBuildTrade_SizesQuantityFromMaxPositionSize(t *testing.T) {
	signal := forex.TradingSignal{Pair: "EUR/USD", Action: forex.ActionBuy, StopLoss: 1.09, TakeProfit: 1.12}
	pos := BuildTrade(signal, UserLimits{MaxPositionSize: 2000}, 1.10)

	if pos.Quantity != 2000.0/1.10 {
		t.Fatalf("expected quantity = max_position_size / entry_price, got %v", pos.Quantity)
	}
	if pos.Status != "OPEN" {
		t.Fatalf("expected a freshly built position to be OPEN, got %s", pos.Status)
	}
}

func TestBuildTrade_DefaultsMaxPositionSizeWhenUnset(t *testing.T) {
	signal := forex.TradingSignal{Pair: "EUR/USD", Action: forex.ActionBuy}
	pos := BuildTrade(signal, UserLimits{}, 1.10)
	if pos.Quantity != 1000.0/1.10 {
		t.Fatalf("expected the 1000 default position size to apply, got quantity %v", pos.Quantity)
	}
}

func TestBuildTrade_ZeroEntryPriceYieldsZeroQuantity(t *testing.T) {
	signal := forex.TradingSignal{Pair: "EUR/USD", Action: forex.ActionBuy}
	pos := BuildTrade(signal, UserLimits{MaxPositionSize: 500}, 0)
	if pos.Quantity != 0 {
		t.Fatalf("expected zero entry price to yield zero quantity, got %v", pos.Quantity)
	}
}

func TestEvaluatePosition_ClosesAtTakeProfit(t *testing.T) {
	pos := Position{Action: forex.ActionBuy, EntryPrice: 1.10, Quantity: 100, TakeProfit: 1.12, StopLoss: 1.08}
	// pnl = (1.12 - 1.10) * 100 = 2.0 == takeProfitThreshold, should close
	closed, ok := EvaluatePosition(pos, 1.12)
	if !ok {
		t.Fatalf("expected the position to close once pnl reaches the take-profit threshold")
	}
	if closed.Status != "CLOSED" {
		t.Fatalf("expected status CLOSED, got %s", closed.Status)
	}
}

func TestEvaluatePosition_ClosesAtStopLoss(t *testing.T) {
	pos := Position{Action: forex.ActionBuy, EntryPrice: 1.10, Quantity: 100, TakeProfit: 1.12, StopLoss: 1.08}
	closed, ok := EvaluatePosition(pos, 1.08)
	if !ok {
		t.Fatalf("expected the position to close once pnl reaches the stop-loss threshold")
	}
	if closed.Profit >= 0 {
		t.Fatalf("expected a negative realized profit at the stop-loss boundary, got %v", closed.Profit)
	}
}

func TestEvaluatePosition_StaysOpenBetweenThresholds(t *testing.T) {
	pos := Position{Action: forex.ActionBuy, EntryPrice: 1.10, Quantity: 100, TakeProfit: 1.12, StopLoss: 1.08}
	_, ok := EvaluatePosition(pos, 1.105)
	if ok {
		t.Fatalf("expected the position to remain open between its stop-loss and take-profit thresholds")
	}
}

func TestEvaluatePosition_SellSideProfitsOnDecline(t *testing.T) {
	pos := Position{Action: forex.ActionSell, EntryPrice: 1.20, Quantity: 100, TakeProfit: 1.18, StopLoss: 1.22}
	closed, ok := EvaluatePosition(pos, 1.18)
	if !ok {
		t.Fatalf("expected a SELL position to close once price falls to its take-profit level")
	}
	if closed.Profit <= 0 {
		t.Fatalf("expected a positive profit when a SELL position closes in its favor, got %v", closed.Profit)
	}
}
