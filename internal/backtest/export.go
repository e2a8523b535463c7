package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

// jsonFloat serializes non-finite values to defined sentinels instead of
// failing: NaN becomes 0 and infinities become "+inf"/"-inf" strings, since
// encoding/json rejects them outright.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`0`), nil
	case math.IsInf(v, 1):
		return []byte(`"+inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	}
	return json.Marshal(v)
}

// MarshalJSON keeps serialized metrics free of values encoding/json cannot
// represent; ProfitFactor in particular may be +Inf.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type metricsJSON struct {
		TotalReturn          jsonFloat     `json:"total_return"`
		AnnualizedReturn     jsonFloat     `json:"annualized_return"`
		SharpeRatio          jsonFloat     `json:"sharpe_ratio"`
		SortinoRatio         jsonFloat     `json:"sortino_ratio"`
		MaxDrawdown          jsonFloat     `json:"max_drawdown"`
		WinRate              jsonFloat     `json:"win_rate"`
		ProfitFactor         jsonFloat     `json:"profit_factor"`
		TradeCount           int           `json:"trade_count"`
		CommissionPaid       jsonFloat     `json:"commission_paid"`
		AvgTradeDuration     time.Duration `json:"avg_trade_duration"`
		AvgProfitPerTrade    jsonFloat     `json:"avg_profit_per_trade"`
		MaxConsecutiveLosses int           `json:"max_consecutive_losses"`
		MaxConsecutiveWins   int           `json:"max_consecutive_wins"`
	}
	return json.Marshal(metricsJSON{
		TotalReturn:          jsonFloat(m.TotalReturn),
		AnnualizedReturn:     jsonFloat(m.AnnualizedReturn),
		SharpeRatio:          jsonFloat(m.SharpeRatio),
		SortinoRatio:         jsonFloat(m.SortinoRatio),
		MaxDrawdown:          jsonFloat(m.MaxDrawdown),
		WinRate:              jsonFloat(m.WinRate),
		ProfitFactor:         jsonFloat(m.ProfitFactor),
		TradeCount:           m.TradeCount,
		CommissionPaid:       jsonFloat(m.CommissionPaid),
		AvgTradeDuration:     m.AvgTradeDuration,
		AvgProfitPerTrade:    jsonFloat(m.AvgProfitPerTrade),
		MaxConsecutiveLosses: m.MaxConsecutiveLosses,
		MaxConsecutiveWins:   m.MaxConsecutiveWins,
	})
}

// WriteResultJSON serializes a full result, metrics sanitized via
// Metrics.MarshalJSON.
func WriteResultJSON(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteTradesCSV writes the trade ledger as CSV, one row per closed trade.
func WriteTradesCSV(w io.Writer, trades []Trade) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"Trade#", "Side", "EntryTime", "Entry", "ExitTime", "Exit", "Shares", "Return", "Reason"}); err != nil {
		return err
	}
	for i, t := range trades {
		row := []string{
			fmt.Sprintf("%d", i+1),
			t.Side,
			t.EntryTime.Format(time.RFC3339),
			fmt.Sprintf("%.4f", t.EntryPrice),
			t.ExitTime.Format(time.RFC3339),
			fmt.Sprintf("%.4f", t.ExitPrice),
			fmt.Sprintf("%.8f", t.Shares),
			fmt.Sprintf("%.6f", t.Return),
			t.ExitReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve as CSV, one row per bar.
func WriteEquityCSV(w io.Writer, curve []EquityPoint) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"Time", "Cash", "Holdings", "Total"}); err != nil {
		return err
	}
	for _, p := range curve {
		row := []string{
			p.Time.Format(time.RFC3339),
			fmt.Sprintf("%.2f", p.Cash),
			fmt.Sprintf("%.2f", p.Holdings),
			fmt.Sprintf("%.2f", p.Total),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
