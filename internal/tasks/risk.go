package tasks

import (
	"strings"
	"time"

	"forexcopilot/internal/forex"
)

// UserLimits bounds a simulated position's size (auto_trade task input).
type UserLimits struct {
	MaxPositionSize float64
}

// Position is a simulated open/closed trade, ported from
// original_source/app/ai/risk_engine.py's dict-shaped position.
type Position struct {
	Pair       string
	Action     forex.Action
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time
	Status     string // "OPEN" | "CLOSED"
	ClosePrice float64
	Profit     float64
}

// CanExecuteSignal gates signal execution on a minimum confidence,
// ported from RiskEngine.can_execute_signal.
func CanExecuteSignal(signal forex.TradingSignal, minConfidence float64) (bool, string) {
	if signal.Confidence < minConfidence {
		return false, "confidence too low"
	}
	return true, ""
}

// BuildTrade opens a simulated Position at a known entry price, sizing
// quantity as max_position_size / entry_price, ported from
// RiskEngine.build_trade.
func BuildTrade(signal forex.TradingSignal, limits UserLimits, entryPrice float64) Position {
	maxPositionSize := limits.MaxPositionSize
	if maxPositionSize <= 0 {
		maxPositionSize = 1000
	}
	quantity := 0.0
	if entryPrice > 0 {
		quantity = maxPositionSize / entryPrice
	}
	return Position{
		Pair:       signal.Pair,
		Action:     signal.Action,
		EntryPrice: entryPrice,
		Quantity:   quantity,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		OpenedAt:   time.Now().UTC(),
		Status:     "OPEN",
	}
}

// EvaluatePosition closes a Position once its P&L crosses the
// take-profit or stop-loss threshold implied by entry price and
// quantity, ported from RiskEngine.evaluate_position. Returns ok=false
// when the position should remain open.
func EvaluatePosition(pos Position, currentPrice float64) (Position, bool) {
	action := forex.Action(strings.ToUpper(string(pos.Action)))

	var pnl float64
	if action == forex.ActionBuy {
		pnl = (currentPrice - pos.EntryPrice) * pos.Quantity
	} else {
		pnl = (pos.EntryPrice - currentPrice) * pos.Quantity
	}

	var takeProfitThreshold, stopLossThreshold float64
	if action == forex.ActionBuy {
		takeProfitThreshold = (pos.TakeProfit - pos.EntryPrice) * pos.Quantity
		stopLossThreshold = -(pos.EntryPrice - pos.StopLoss) * pos.Quantity
	} else {
		takeProfitThreshold = (pos.EntryPrice - pos.TakeProfit) * pos.Quantity
		stopLossThreshold = -(pos.StopLoss - pos.EntryPrice) * pos.Quantity
	}

	if pnl < takeProfitThreshold && pnl > stopLossThreshold {
		return pos, false
	}

	closed := pos
	closed.Status = "CLOSED"
	closed.ClosePrice = currentPrice
	closed.Profit = pnl
	return closed, true
}
