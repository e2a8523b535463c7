// Package backtest simulates trading strategies against historical candles
// and reduces the outcome to performance metrics.
package backtest

import (
	"fmt"

	"github.com/tradeforge/backtester/internal/strategy"
)

// ApplyRisk overlays stop-loss and take-profit exits onto a signal sequence.
// It tracks a flat/long state machine: a Buy while flat opens a position at
// that bar's close, and on every later bar the close is compared against the
// entry price. A breach of entry*(1-stopLoss) or entry*(1+takeProfit)
// overwrites that bar's signal with a forced Sell regardless of what the
// strategy emitted. The input slice is not modified.
//
// stopLoss and takeProfit must each lie in (0, 1).
func ApplyRisk(signals []strategy.Signal, closes []float64, stopLoss, takeProfit float64) ([]strategy.Signal, error) {
	if stopLoss <= 0 || stopLoss >= 1 {
		return nil, fmt.Errorf("%w: stop_loss %g outside (0, 1)", strategy.ErrInvalidParameter, stopLoss)
	}
	if takeProfit <= 0 || takeProfit >= 1 {
		return nil, fmt.Errorf("%w: take_profit %g outside (0, 1)", strategy.ErrInvalidParameter, takeProfit)
	}
	if len(signals) != len(closes) {
		return nil, fmt.Errorf("%w: %d signals for %d closes", ErrSimulation, len(signals), len(closes))
	}

	out := make([]strategy.Signal, len(signals))
	copy(out, signals)

	var holding bool
	var entryPrice float64

	for i := range out {
		if holding {
			stopPrice := entryPrice * (1 - stopLoss)
			targetPrice := entryPrice * (1 + takeProfit)

			switch {
			case closes[i] <= stopPrice:
				out[i].Action = strategy.Sell
				out[i].Strength = -1
				out[i].Reason = fmt.Sprintf("stop-loss: close %.4f below %.4f", closes[i], stopPrice)
				holding = false
			case closes[i] >= targetPrice:
				out[i].Action = strategy.Sell
				out[i].Strength = -1
				out[i].Reason = fmt.Sprintf("take-profit: close %.4f above %.4f", closes[i], targetPrice)
				holding = false
			case out[i].Action == strategy.Sell:
				holding = false
			}
			continue
		}

		if out[i].Action == strategy.Buy {
			holding = true
			entryPrice = closes[i]
		}
	}

	return out, nil
}
