// Package objective provides the standard test objectives the CLI and
// server expose by name. Every objective reports a cost; the smooth ones
// also provide analytic gradients (and Hessians where cheap), so
// gradient-based solvers never fall back to finite differences.
package objective

import (
	"fmt"
	"sort"

	"github.com/cwbudde/optrun/internal/engine"
)

// Func is a named objective. Dim is the required dimension, 0 for
// any-dimensional objectives. DefaultBounds returns per-coordinate box
// bounds for the requested dimension, used by population solvers when
// the caller supplies none.
type Func interface {
	engine.CostFunction
	Name() string
	Dim() int
	DefaultBounds(dim int) (lower, upper []float64)
}

// Minimum is a known minimum of an objective, used in tests and
// documentation output.
type Minimum struct {
	X      []float64
	F      float64
	Global bool
}

type factory func(dim int) (Func, error)

var registry = map[string]factory{
	"sphere":     func(int) (Func, error) { return Sphere{}, nil },
	"rosenbrock": func(int) (Func, error) { return Rosenbrock{A: 1, B: 100}, nil },
	"rastrigin":  func(int) (Func, error) { return Rastrigin{A: 10}, nil },
	"himmelblau": func(int) (Func, error) { return Himmelblau{}, nil },
	"quadratic": func(dim int) (Func, error) {
		if dim < 1 {
			return nil, fmt.Errorf("objective quadratic: dimension must be at least 1")
		}
		center := make([]float64, dim)
		for i := range center {
			center[i] = 1
		}
		return Quadratic{Center: center}, nil
	},
}

// ByName returns the named objective, configured for dim where the
// objective is dimension-generic.
func ByName(name string, dim int) (Func, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q (have %v)", name, Names())
	}
	obj, err := f(dim)
	if err != nil {
		return nil, err
	}
	if want := obj.Dim(); want != 0 && dim != 0 && dim != want {
		return nil, fmt.Errorf("objective %s requires dimension %d, got %d", name, want, dim)
	}
	return obj, nil
}

// Names returns the registered objective names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkDim(name string, x []float64, want int) error {
	if len(x) == 0 {
		return fmt.Errorf("objective %s: empty parameter vector", name)
	}
	if want != 0 && len(x) != want {
		return fmt.Errorf("objective %s: dimension must be %d, got %d", name, want, len(x))
	}
	return nil
}

func constBounds(dim int, lo, hi float64) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		lower[i] = lo
		upper[i] = hi
	}
	return lower, upper
}
