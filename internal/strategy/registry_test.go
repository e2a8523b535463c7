package strategy

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeforge/backtester/internal/candle"
)

func TestDefaultRegistryContents(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	var names []string
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"combined", "ma_crossover", "macd_crossover", "rsi_threshold"}, names)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())

	_, err := r.Get("no_such_strategy")
	assert.ErrorIs(t, err, ErrStrategyNotFound)
}

func TestRegistryCreate(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	ds := newTestDataset(t, syntheticTrend(60))

	t.Run("valid", func(t *testing.T) {
		s, err := r.Create("ma_crossover", ds, map[string]any{
			"short_window": 5,
			"long_window":  20,
		})
		require.NoError(t, err)
		assert.Equal(t, "ma_crossover", s.Name())
		assert.Equal(t, 20, s.WarmupPeriod())
	})

	t.Run("defaults when raw is nil", func(t *testing.T) {
		s, err := r.Create("rsi_threshold", ds, nil)
		require.NoError(t, err)
		assert.Equal(t, 14, s.WarmupPeriod())
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := r.Create("ma_crossover", ds, map[string]any{
			"short_window": 30,
			"long_window":  20,
		})
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.Create("momentum", ds, nil)
		assert.ErrorIs(t, err, ErrStrategyNotFound)
	})
}

func TestRegistryReregisterReplaces(t *testing.T) {
	r := NewRegistry(slog.Default())
	ds := newTestDataset(t, syntheticTrend(60))

	r.Register(Descriptor{
		Name:   "custom",
		Schema: MACrossoverSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewMACrossover(ds, ps)
		},
	})
	r.Register(Descriptor{
		Name:   "custom",
		Schema: RSIThresholdSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewRSIThreshold(ds, ps)
		},
	})

	s, err := r.Create("custom", ds, nil)
	require.NoError(t, err)
	assert.Equal(t, "rsi_threshold", s.Name())
	assert.Len(t, r.List(), 1)
}
