package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tradeforge/backtester/internal/backtest"
	"github.com/tradeforge/backtester/internal/candle"
	"github.com/tradeforge/backtester/internal/config"
	"github.com/tradeforge/backtester/internal/db"
	"github.com/tradeforge/backtester/internal/exchange"
	"github.com/tradeforge/backtester/internal/market"
	"github.com/tradeforge/backtester/internal/strategy"
	"github.com/tradeforge/backtester/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "backtester",
		Short:         "Rule-based trading strategy backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	root.AddCommand(
		newRunCmd(&configPath),
		newSweepCmd(&configPath),
		newStrategiesCmd(),
		newFetchCmd(&configPath),
		newResultsCmd(&configPath),
	)
	return root
}

// setup wires storage, exchange, loader, and engine from configuration.
func setup(configPath string) (config.Config, *backtest.Engine, *market.Loader, db.Storage, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, nil, err
	}

	logger := utils.NewLogger(cfg.LogLevel)

	var store db.Storage
	if cfg.DBConnStr != "" {
		store, err = db.NewPostgres(cfg.DBConnStr)
		if err != nil {
			return config.Config{}, nil, nil, nil, err
		}
	} else {
		store = db.NewMemory()
	}

	var exch exchange.Exchange
	if cfg.WallexAPIKey != "" {
		exch = exchange.NewWallexExchange(cfg.WallexAPIKey, logger)
	}

	cache := candle.NewDatasetCache(cfg.CacheEntries, cfg.CacheTTL)
	loader := market.NewLoader(store, exch, cache, logger)

	registry := strategy.NewDefaultRegistry(logger)
	engine := backtest.NewEngine(registry, logger)

	return cfg, engine, loader, store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newRunCmd(configPath *string) *cobra.Command {
	var outDir string
	var save bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest and print its metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, loader, store, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := cfg.Validate(); err != nil {
				return err
			}
			from, to, err := cfg.Range()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			ds, err := loader.GetDataset(ctx, cfg.Symbol, cfg.Timeframe, from, to)
			if err != nil {
				return err
			}

			res, err := engine.Run(ds, cfg.RunConfig())
			if err != nil {
				return err
			}

			printMetrics(cmd, res)

			if save {
				if err := store.SaveResult(ctx, res); err != nil {
					return err
				}
				cmd.Printf("saved result %s\n", res.ID)
			}
			if outDir != "" {
				if err := exportResult(outDir, res); err != nil {
					return err
				}
				cmd.Printf("wrote result files to %s\n", outDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for trades/equity CSV and result JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the result to storage")
	return cmd
}

func newSweepCmd(configPath *string) *cobra.Command {
	var gridPath string
	var workers int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one backtest per parameter set in a JSON grid file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, engine, loader, store, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			data, err := os.ReadFile(gridPath)
			if err != nil {
				return fmt.Errorf("reading grid file: %w", err)
			}
			var grid []map[string]any
			if err := json.Unmarshal(data, &grid); err != nil {
				return fmt.Errorf("parsing grid file: %w", err)
			}

			from, to, err := cfg.Range()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			ds, err := loader.GetDataset(ctx, cfg.Symbol, cfg.Timeframe, from, to)
			if err != nil {
				return err
			}

			if workers <= 0 {
				workers = cfg.SweepWorkers
			}
			results, err := engine.Sweep(ctx, ds, cfg.RunConfig(), grid, workers)
			if err != nil {
				return err
			}

			for i, res := range results {
				cmd.Printf("[%d] params=%v total_return=%.4f sharpe=%.2f max_drawdown=%.4f trades=%d\n",
					i, res.Params, res.Metrics.TotalReturn, res.Metrics.SharpeRatio,
					res.Metrics.MaxDrawdown, res.Metrics.TradeCount)
			}
			if best := backtest.BestBy(results, func(m backtest.Metrics) float64 { return m.TotalReturn }); best != nil {
				cmd.Printf("best: params=%v total_return=%.4f\n", best.Params, best.Metrics.TotalReturn)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&gridPath, "grid", "g", "grid.json", "JSON file with an array of parameter maps")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent runs (default from config)")
	return cmd
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List registered strategies and their parameters",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := strategy.NewDefaultRegistry(utils.NewLogger("error"))
			for _, d := range registry.List() {
				cmd.Printf("%s - %s\n", d.Name, d.Description)
				for _, p := range d.Schema.Params {
					if p.Type == strategy.TypeBool {
						cmd.Printf("  %-16s %-6s default=%v  %s\n", p.Name, p.Type, p.Default, p.Description)
						continue
					}
					cmd.Printf("  %-16s %-6s default=%v [%g, %g]  %s\n",
						p.Name, p.Type, p.Default, p.Min, p.Max, p.Description)
				}
			}
			return nil
		},
	}
}

func newFetchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download candles for the configured symbol and range into storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, loader, store, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			from, to, err := cfg.Range()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			ds, err := loader.GetDataset(ctx, cfg.Symbol, cfg.Timeframe, from, to)
			if err != nil {
				return err
			}
			cmd.Printf("fetched %d candles for %s %s\n", ds.Len(), cfg.Symbol, cfg.Timeframe)
			return nil
		},
	}
}

func newResultsCmd(configPath *string) *cobra.Command {
	var strategyName string
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored backtest results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, store, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := signalContext()
			defer cancel()

			summaries, err := store.GetResultSummaries(ctx, strategyName, limit)
			if err != nil {
				return err
			}
			for _, s := range summaries {
				cmd.Printf("%s  %s %s %s  return=%.4f sharpe=%.2f drawdown=%.4f trades=%d\n",
					s.RanAt.Format("2006-01-02 15:04"), s.Strategy, s.Symbol, s.Timeframe,
					s.TotalReturn, s.SharpeRatio, s.MaxDrawdown, s.TradeCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategyName, "strategy", "s", "", "Filter by strategy name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum results to list")
	return cmd
}

func printMetrics(cmd *cobra.Command, res *backtest.Result) {
	m := res.Metrics
	cmd.Printf("Backtest %s (%s %s, %s)\n", res.ID, res.Symbol, res.Timeframe, res.Strategy)
	cmd.Printf("  total_return=%.4f annualized=%.4f sharpe=%.2f sortino=%.2f\n",
		m.TotalReturn, m.AnnualizedReturn, m.SharpeRatio, m.SortinoRatio)
	cmd.Printf("  max_drawdown=%.4f win_rate=%.2f profit_factor=%.2f\n",
		m.MaxDrawdown, m.WinRate, m.ProfitFactor)
	cmd.Printf("  trades=%d commission=%.2f avg_duration=%s avg_profit=%.4f\n",
		m.TradeCount, m.CommissionPaid, m.AvgTradeDuration, m.AvgProfitPerTrade)
	cmd.Printf("  max_consec_wins=%d max_consec_losses=%d\n",
		m.MaxConsecutiveWins, m.MaxConsecutiveLosses)
}

func exportResult(dir string, res *backtest.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	trades, err := os.Create(filepath.Join(dir, "trades.csv"))
	if err != nil {
		return err
	}
	defer trades.Close()
	if err := backtest.WriteTradesCSV(trades, res.Trades); err != nil {
		return err
	}

	equity, err := os.Create(filepath.Join(dir, "equity.csv"))
	if err != nil {
		return err
	}
	defer equity.Close()
	if err := backtest.WriteEquityCSV(equity, res.EquityCurve); err != nil {
		return err
	}

	result, err := os.Create(filepath.Join(dir, "result.json"))
	if err != nil {
		return err
	}
	defer result.Close()
	return backtest.WriteResultJSON(result, res)
}
