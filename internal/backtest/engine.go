package backtest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/strategy"
	"github.com/tradeforge/backtester/internal/tfutils"
)

// RunConfig holds the scalar inputs of one backtest run. StopLoss and
// TakeProfit are optional: leaving both zero disables the risk overlay,
// otherwise each must lie in (0, 1).
type RunConfig struct {
	Strategy       string         `json:"strategy"`
	Params         map[string]any `json:"params,omitempty"`
	InitialCapital float64        `json:"initial_capital"`
	StopLoss       float64        `json:"stop_loss,omitempty"`
	TakeProfit     float64        `json:"take_profit,omitempty"`
	PositionSize   float64        `json:"position_size"`
	CommissionRate float64        `json:"commission_rate"`

	// PeriodsPerYear annualizes period returns. Zero derives it from the
	// dataset's timeframe, falling back to DefaultPeriodsPerYear.
	PeriodsPerYear float64 `json:"periods_per_year,omitempty"`
}

// Validate checks the backtest scalars eagerly, before any simulation work.
func (c RunConfig) Validate() error {
	if c.Strategy == "" {
		return fmt.Errorf("%w: strategy name is empty", strategy.ErrInvalidParameter)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w: initial_capital %g must be positive", strategy.ErrInvalidParameter, c.InitialCapital)
	}
	if c.PositionSize <= 0 || c.PositionSize > 1 {
		return fmt.Errorf("%w: position_size %g outside (0, 1]", strategy.ErrInvalidParameter, c.PositionSize)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission_rate %g outside [0, 1)", strategy.ErrInvalidParameter, c.CommissionRate)
	}
	if c.riskEnabled() {
		if c.StopLoss <= 0 || c.StopLoss >= 1 {
			return fmt.Errorf("%w: stop_loss %g outside (0, 1)", strategy.ErrInvalidParameter, c.StopLoss)
		}
		if c.TakeProfit <= 0 || c.TakeProfit >= 1 {
			return fmt.Errorf("%w: take_profit %g outside (0, 1)", strategy.ErrInvalidParameter, c.TakeProfit)
		}
	}
	return nil
}

func (c RunConfig) riskEnabled() bool { return c.StopLoss != 0 || c.TakeProfit != 0 }

// Result is the aggregate outcome of one backtest run.
type Result struct {
	ID          string            `json:"id"`
	Strategy    string            `json:"strategy"`
	Symbol      string            `json:"symbol,omitempty"`
	Timeframe   string            `json:"timeframe,omitempty"`
	Params      map[string]any    `json:"params,omitempty"`
	RanAt       time.Time         `json:"ran_at"`
	Signals     []strategy.Signal `json:"signals"`
	EquityCurve []EquityPoint     `json:"equity_curve"`
	Trades      []Trade           `json:"trades"`
	Metrics     Metrics           `json:"metrics"`
}

// Engine wires the registry, risk overlay, simulator, and metrics into one
// pipeline. It holds no per-run state, so a single Engine may serve many
// concurrent runs over shared read-only datasets.
type Engine struct {
	registry *strategy.Registry
	logger   *slog.Logger
}

func NewEngine(registry *strategy.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Run executes one backtest: construct the strategy with validated
// parameters, generate signals, overlay risk exits, simulate the portfolio,
// and compute metrics. All validation happens before the first simulated bar.
func (e *Engine) Run(ds *candle.Dataset, cfg RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if ds == nil || ds.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", candle.ErrInvalidDataset)
	}

	strat, err := e.registry.Create(cfg.Strategy, ds, cfg.Params)
	if err != nil {
		return nil, err
	}

	signals, err := strat.GenerateSignals()
	if err != nil {
		return nil, fmt.Errorf("generating signals for %q: %w", cfg.Strategy, err)
	}

	closes := ds.Closes()
	times := ds.Times()

	if cfg.riskEnabled() {
		signals, err = ApplyRisk(signals, closes, cfg.StopLoss, cfg.TakeProfit)
		if err != nil {
			return nil, err
		}
	}

	curve, trades, err := Simulate(signals, closes, times, cfg.InitialCapital, cfg.PositionSize, cfg.CommissionRate)
	if err != nil {
		return nil, err
	}

	periodsPerYear := cfg.PeriodsPerYear
	if periodsPerYear <= 0 {
		periodsPerYear = tfutils.PeriodsPerYear(ds.At(0).Timeframe)
	}

	metrics := ComputeMetrics(curve, trades, cfg.InitialCapital, cfg.CommissionRate, periodsPerYear)

	result := &Result{
		ID:          uuid.NewString(),
		Strategy:    strat.Name(),
		Symbol:      ds.At(0).Symbol,
		Timeframe:   ds.At(0).Timeframe,
		Params:      cfg.Params,
		RanAt:       time.Now().UTC(),
		Signals:     signals,
		EquityCurve: curve,
		Trades:      trades,
		Metrics:     metrics,
	}

	e.logger.Info("backtest complete",
		"strategy", result.Strategy,
		"symbol", result.Symbol,
		"bars", ds.Len(),
		"trades", metrics.TradeCount,
		"total_return", metrics.TotalReturn,
		"max_drawdown", metrics.MaxDrawdown,
	)
	return result, nil
}
