package backtest

import (
	"errors"
	"fmt"
	"time"

	"github.com/tradeforge/backtester/internal/strategy"
)

// ErrSimulation marks an internal invariant break during a simulation run,
// such as misaligned inputs or a negative share count.
var ErrSimulation = errors.New("simulation error")

// EquityPoint is one bar of the equity curve.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Cash     float64   `json:"cash"`
	Holdings float64   `json:"holdings"`
	Total    float64   `json:"total"`
}

// Trade is one closed round trip. Every trade in a finished ledger has an
// exit: positions still open at the end of data are force-closed at the last
// available close.
type Trade struct {
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Shares     float64   `json:"shares"`
	Return     float64   `json:"return"`
	Side       string    `json:"side"`
	ExitReason string    `json:"exit_reason,omitempty"`
}

// Simulate replays a signal sequence in a single forward pass. At a Buy bar
// while flat it deploys positionSize of the current total value, paying
// commission on top; at a Sell bar while holding it liquidates, paying
// commission out of the proceeds. A position still open after the last bar is
// force-closed at the final close. Returns one equity point per bar and the
// closed-trade ledger.
func Simulate(
	signals []strategy.Signal,
	closes []float64,
	times []time.Time,
	initialCapital, positionSize, commissionRate float64,
) ([]EquityPoint, []Trade, error) {
	if initialCapital <= 0 {
		return nil, nil, fmt.Errorf("%w: initial_capital %g must be positive", strategy.ErrInvalidParameter, initialCapital)
	}
	if positionSize <= 0 || positionSize > 1 {
		return nil, nil, fmt.Errorf("%w: position_size %g outside (0, 1]", strategy.ErrInvalidParameter, positionSize)
	}
	if commissionRate < 0 || commissionRate >= 1 {
		return nil, nil, fmt.Errorf("%w: commission_rate %g outside [0, 1)", strategy.ErrInvalidParameter, commissionRate)
	}
	if len(signals) != len(closes) || len(signals) != len(times) {
		return nil, nil, fmt.Errorf("%w: %d signals, %d closes, %d times", ErrSimulation, len(signals), len(closes), len(times))
	}

	cash := initialCapital
	var shares float64
	var holding bool
	var open Trade

	curve := make([]EquityPoint, 0, len(signals))
	var trades []Trade

	for i, sig := range signals {
		close := closes[i]

		switch {
		case sig.Action == strategy.Buy && !holding:
			deploy := (cash + shares*close) * positionSize
			bought := deploy * (1 - commissionRate) / close
			if bought < 0 {
				return nil, nil, fmt.Errorf("%w: negative share count %g at bar %d", ErrSimulation, bought, i)
			}
			cash -= bought * close * (1 + commissionRate)
			shares = bought
			holding = true
			open = Trade{
				EntryTime:  times[i],
				EntryPrice: close,
				Shares:     bought,
				Side:       "long",
			}
		case sig.Action == strategy.Sell && holding:
			cash += shares * close * (1 - commissionRate)
			open.ExitTime = times[i]
			open.ExitPrice = close
			open.Return = (close - open.EntryPrice) / open.EntryPrice
			open.ExitReason = sig.Reason
			trades = append(trades, open)
			shares = 0
			holding = false
		}

		curve = append(curve, EquityPoint{
			Time:     times[i],
			Cash:     cash,
			Holdings: shares * close,
			Total:    cash + shares*close,
		})
	}

	// Force-close a position left open at the end of data so every trade
	// appears in the ledger.
	if holding {
		last := len(closes) - 1
		close := closes[last]
		cash += shares * close * (1 - commissionRate)
		open.ExitTime = times[last]
		open.ExitPrice = close
		open.Return = (close - open.EntryPrice) / open.EntryPrice
		open.ExitReason = "end of data"
		trades = append(trades, open)
		shares = 0

		curve[last] = EquityPoint{
			Time:     times[last],
			Cash:     cash,
			Holdings: 0,
			Total:    cash,
		}
	}

	return curve, trades, nil
}
