package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tradeforge/backtester/internal/candle"
)

// Constructor builds a strategy instance from a dataset and an
// already-validated parameter set.
type Constructor func(ds *candle.Dataset, ps ParamSet) (Strategy, error)

// Descriptor is one registry entry: a strategy name, its parameter schema,
// and a constructor.
type Descriptor struct {
	Name        string
	Description string
	Schema      Schema
	New         Constructor
}

// Registry maps strategy names to descriptors. It is constructed explicitly
// and passed to callers; there is no package-level instance.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
	logger  *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]Descriptor),
		logger:  logger,
	}
}

// Register adds a descriptor under its name. Registering a name twice
// replaces the earlier entry.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.Name]; exists {
		r.logger.Warn("overwriting registered strategy", "name", d.Name)
	}
	r.entries[d.Name] = d
}

// Get returns the descriptor for a name, or ErrStrategyNotFound.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrStrategyNotFound, name)
	}
	return d, nil
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Create looks up a strategy by name, validates raw parameters against its
// schema, and constructs an instance. Missing parameters fall back to schema
// defaults.
func (r *Registry) Create(name string, ds *candle.Dataset, raw map[string]any) (Strategy, error) {
	d, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	ps, err := d.Schema.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("strategy %q: %w", name, err)
	}
	return d.New(ds, ps)
}

// NewDefaultRegistry returns a registry populated with all built-in
// strategies.
func NewDefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(Descriptor{
		Name:        "ma_crossover",
		Description: "Buy/sell on short vs long moving average crossovers",
		Schema:      MACrossoverSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewMACrossover(ds, ps)
		},
	})
	r.Register(Descriptor{
		Name:        "rsi_threshold",
		Description: "Buy oversold, sell overbought on RSI threshold crossings",
		Schema:      RSIThresholdSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewRSIThreshold(ds, ps)
		},
	})
	r.Register(Descriptor{
		Name:        "macd_crossover",
		Description: "Buy/sell on MACD line vs signal line crossovers",
		Schema:      MACDCrossoverSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewMACDCrossover(ds, ps)
		},
	})
	r.Register(Descriptor{
		Name:        "combined",
		Description: "Trade when two of three indicator rules agree",
		Schema:      CombinedSchema(),
		New: func(ds *candle.Dataset, ps ParamSet) (Strategy, error) {
			return NewCombined(ds, ps)
		},
	})
	return r
}
