package strategy

import (
	"fmt"
	"math"
	"strconv"
)

// ParamType enumerates the value types a strategy parameter may take.
type ParamType string

const (
	TypeInt   ParamType = "int"
	TypeFloat ParamType = "float"
	TypeBool  ParamType = "bool"
)

// ParamSpec declares one tunable parameter: its type, default, and bounds.
// Min/Max are ignored for bool parameters.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Default     any       `json:"default"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Description string    `json:"description"`
}

// CrossCheck validates a constraint spanning multiple parameters. It runs
// only after every per-field check has passed, so it may assume all named
// parameters exist with their declared types.
type CrossCheck func(ps ParamSet) error

// Schema is the full parameter contract of one strategy.
type Schema struct {
	Params []ParamSpec
	Cross  []CrossCheck
}

// ParamSet is an immutable mapping from parameter name to validated, typed
// value. It is only ever produced by Schema.Validate.
type ParamSet struct {
	values map[string]any
}

// Int returns the named int parameter. It panics on a name absent from the
// schema; validation guarantees presence for declared parameters.
func (ps ParamSet) Int(name string) int {
	v, ok := ps.values[name].(int)
	if !ok {
		panic(fmt.Sprintf("parameter %q is not a validated int", name))
	}
	return v
}

// Float returns the named float parameter.
func (ps ParamSet) Float(name string) float64 {
	v, ok := ps.values[name].(float64)
	if !ok {
		panic(fmt.Sprintf("parameter %q is not a validated float", name))
	}
	return v
}

// Bool returns the named bool parameter.
func (ps ParamSet) Bool(name string) bool {
	v, ok := ps.values[name].(bool)
	if !ok {
		panic(fmt.Sprintf("parameter %q is not a validated bool", name))
	}
	return v
}

// Values returns a copy of the underlying mapping.
func (ps ParamSet) Values() map[string]any {
	out := make(map[string]any, len(ps.values))
	for k, v := range ps.values {
		out[k] = v
	}
	return out
}

// Validate checks raw input against the schema and returns a typed parameter
// set. Missing values fall back to the spec default; a missing value without
// a default, a failed coercion, a value outside [min, max], or a failed
// cross-field check all fail with ErrInvalidParameter naming the offending
// field and bound. Cross-field checks run only after every per-field check
// has passed.
func (s Schema) Validate(raw map[string]any) (ParamSet, error) {
	values := make(map[string]any, len(s.Params))

	for _, spec := range s.Params {
		rv, present := raw[spec.Name]
		if !present {
			if spec.Default == nil {
				return ParamSet{}, fmt.Errorf("%w: missing required parameter %q", ErrInvalidParameter, spec.Name)
			}
			rv = spec.Default
		}

		switch spec.Type {
		case TypeInt:
			v, err := coerceInt(rv)
			if err != nil {
				return ParamSet{}, fmt.Errorf("%w: parameter %q: %v", ErrInvalidParameter, spec.Name, err)
			}
			if float64(v) < spec.Min || float64(v) > spec.Max {
				return ParamSet{}, fmt.Errorf("%w: parameter %q value %d outside [%g, %g]",
					ErrInvalidParameter, spec.Name, v, spec.Min, spec.Max)
			}
			values[spec.Name] = v
		case TypeFloat:
			v, err := coerceFloat(rv)
			if err != nil {
				return ParamSet{}, fmt.Errorf("%w: parameter %q: %v", ErrInvalidParameter, spec.Name, err)
			}
			if v < spec.Min || v > spec.Max {
				return ParamSet{}, fmt.Errorf("%w: parameter %q value %g outside [%g, %g]",
					ErrInvalidParameter, spec.Name, v, spec.Min, spec.Max)
			}
			values[spec.Name] = v
		case TypeBool:
			v, err := coerceBool(rv)
			if err != nil {
				return ParamSet{}, fmt.Errorf("%w: parameter %q: %v", ErrInvalidParameter, spec.Name, err)
			}
			values[spec.Name] = v
		default:
			return ParamSet{}, fmt.Errorf("%w: parameter %q has unknown type %q", ErrInvalidParameter, spec.Name, spec.Type)
		}
	}

	ps := ParamSet{values: values}
	for _, check := range s.Cross {
		if err := check(ps); err != nil {
			return ParamSet{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
		}
	}
	return ps, nil
}

// Defaults validates the schema's own defaults with zero overrides. A schema
// whose defaults do not validate is a programming error.
func (s Schema) Defaults() (ParamSet, error) {
	return s.Validate(nil)
}

func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %g is not an integer", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as int", n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to int", v)
	}
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("value %g is not finite", n)
		}
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as float", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot coerce %T to float", v)
	}
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			return false, fmt.Errorf("cannot parse %q as bool", b)
		}
		return parsed, nil
	default:
		return false, fmt.Errorf("cannot coerce %T to bool", v)
	}
}
