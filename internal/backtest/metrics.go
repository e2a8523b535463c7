package backtest

import (
	"math"
	"time"
)

// DefaultPeriodsPerYear is the annualization factor for daily bars.
const DefaultPeriodsPerYear = 252

// Metrics is the fixed set of scalar statistics derived from one backtest
// run. Degenerate inputs (no trades, flat curve) resolve to sentinel values,
// never NaN; ProfitFactor is +Inf when there are winners and no losers.
type Metrics struct {
	TotalReturn          float64       `json:"total_return"`
	AnnualizedReturn     float64       `json:"annualized_return"`
	SharpeRatio          float64       `json:"sharpe_ratio"`
	SortinoRatio         float64       `json:"sortino_ratio"`
	MaxDrawdown          float64       `json:"max_drawdown"`
	WinRate              float64       `json:"win_rate"`
	ProfitFactor         float64       `json:"profit_factor"`
	TradeCount           int           `json:"trade_count"`
	CommissionPaid       float64       `json:"commission_paid"`
	AvgTradeDuration     time.Duration `json:"avg_trade_duration"`
	AvgProfitPerTrade    float64       `json:"avg_profit_per_trade"`
	MaxConsecutiveLosses int           `json:"max_consecutive_losses"`
	MaxConsecutiveWins   int           `json:"max_consecutive_wins"`
}

// ComputeMetrics reduces an equity curve and trade ledger to Metrics.
// Period returns are the n-1 consecutive percentage changes of total value;
// the first bar has no return. periodsPerYear annualizes them (use
// DefaultPeriodsPerYear for daily bars).
func ComputeMetrics(curve []EquityPoint, trades []Trade, initialCapital, commissionRate, periodsPerYear float64) Metrics {
	var m Metrics
	m.TradeCount = len(trades)
	if len(curve) == 0 {
		return m
	}
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}

	final := curve[len(curve)-1].Total
	if initialCapital > 0 {
		m.TotalReturn = (final - initialCapital) / initialCapital
	}

	returns := periodReturns(curve)
	mean := meanOf(returns)
	m.AnnualizedReturn = mean * periodsPerYear

	if std := sampleStd(returns, mean); std > 0 {
		m.SharpeRatio = m.AnnualizedReturn / (std * math.Sqrt(periodsPerYear))
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if dstd := sampleStd(downside, meanOf(downside)); dstd > 0 {
		m.SortinoRatio = m.AnnualizedReturn / (dstd * math.Sqrt(periodsPerYear))
	}

	m.MaxDrawdown = maxDrawdown(curve)

	var wins, losses int
	var grossWin, grossLoss float64
	var consecWins, consecLosses int
	var totalDuration time.Duration
	var totalReturn float64
	for _, t := range trades {
		totalDuration += t.ExitTime.Sub(t.EntryTime)
		totalReturn += t.Return
		m.CommissionPaid += t.Shares * (t.EntryPrice + t.ExitPrice) * commissionRate

		if t.Return > 0 {
			wins++
			grossWin += t.Return
			consecWins++
			consecLosses = 0
		} else {
			losses++
			grossLoss += t.Return
			consecLosses++
			consecWins = 0
		}
		if consecWins > m.MaxConsecutiveWins {
			m.MaxConsecutiveWins = consecWins
		}
		if consecLosses > m.MaxConsecutiveLosses {
			m.MaxConsecutiveLosses = consecLosses
		}
	}

	if len(trades) > 0 {
		m.WinRate = float64(wins) / float64(len(trades))
		m.AvgTradeDuration = totalDuration / time.Duration(len(trades))
		m.AvgProfitPerTrade = totalReturn / float64(len(trades))
	}

	switch {
	case grossLoss < 0:
		m.ProfitFactor = grossWin / -grossLoss
	case grossWin > 0:
		m.ProfitFactor = math.Inf(1)
	}

	return m
}

// periodReturns derives the percentage change series of total value. The
// first bar has no prior value and is omitted, not treated as zero.
func periodReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Total
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, curve[i].Total/prev-1)
	}
	return returns
}

// maxDrawdown is the worst peak-to-trough decline as a negative fraction,
// zero for a flat or rising curve.
func maxDrawdown(curve []EquityPoint) float64 {
	var worst float64
	runningMax := math.Inf(-1)
	for _, p := range curve {
		if p.Total > runningMax {
			runningMax = p.Total
		}
		if runningMax > 0 {
			if dd := p.Total/runningMax - 1; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the ddof=1 standard deviation; zero when fewer than two
// observations exist.
func sampleStd(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}
