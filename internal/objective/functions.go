package objective

import (
	"math"

	"github.com/cwbudde/optrun/internal/linalg"
)

// Sphere is f(x) = sum x_i^2, any dimension, minimum 0 at the origin.
type Sphere struct{}

func (Sphere) Name() string { return "sphere" }
func (Sphere) Dim() int     { return 0 }

func (Sphere) Cost(x []float64) (float64, error) {
	if err := checkDim("sphere", x, 0); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum, nil
}

func (Sphere) Gradient(x []float64) ([]float64, error) {
	if err := checkDim("sphere", x, 0); err != nil {
		return nil, err
	}
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g, nil
}

func (Sphere) Hessian(x []float64) ([][]float64, error) {
	if err := checkDim("sphere", x, 0); err != nil {
		return nil, err
	}
	h := make([][]float64, len(x))
	for i := range h {
		h[i] = make([]float64, len(x))
		h[i][i] = 2
	}
	return h, nil
}

func (Sphere) DefaultBounds(dim int) ([]float64, []float64) {
	return constBounds(dim, -5.12, 5.12)
}

func (Sphere) Minima() []Minimum {
	return []Minimum{{X: []float64{0, 0}, F: 0, Global: true}}
}

// Quadratic is f(x) = sum (x_i - c_i)^2 with the minimum shifted to
// Center. It is the smoke-test objective for convergence scenarios: the
// solvers must find Center, not the origin.
type Quadratic struct {
	Center []float64
}

func (q Quadratic) Name() string { return "quadratic" }
func (q Quadratic) Dim() int     { return len(q.Center) }

func (q Quadratic) Cost(x []float64) (float64, error) {
	if err := checkDim("quadratic", x, len(q.Center)); err != nil {
		return 0, err
	}
	sum := 0.0
	for i, v := range x {
		d := v - q.Center[i]
		sum += d * d
	}
	return sum, nil
}

func (q Quadratic) Gradient(x []float64) ([]float64, error) {
	if err := checkDim("quadratic", x, len(q.Center)); err != nil {
		return nil, err
	}
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * (v - q.Center[i])
	}
	return g, nil
}

func (q Quadratic) Hessian(x []float64) ([][]float64, error) {
	if err := checkDim("quadratic", x, len(q.Center)); err != nil {
		return nil, err
	}
	h := make([][]float64, len(x))
	for i := range h {
		h[i] = make([]float64, len(x))
		h[i][i] = 2
	}
	return h, nil
}

func (q Quadratic) DefaultBounds(dim int) ([]float64, []float64) {
	lower := make([]float64, dim)
	upper := make([]float64, dim)
	for i := range lower {
		c := 0.0
		if i < len(q.Center) {
			c = q.Center[i]
		}
		lower[i] = c - 10
		upper[i] = c + 10
	}
	return lower, upper
}

func (q Quadratic) Minima() []Minimum {
	return []Minimum{{X: linalg.Clone(q.Center), F: 0, Global: true}}
}

// Rosenbrock is the banana valley
// f(x) = sum (A - x_i)^2 + B (x_{i+1} - x_i^2)^2, minimum 0 at
// (A, A^2, ...) for the standard A=1, B=100.
type Rosenbrock struct {
	A, B float64
}

func (Rosenbrock) Name() string { return "rosenbrock" }
func (Rosenbrock) Dim() int     { return 0 }

func (r Rosenbrock) Cost(x []float64) (float64, error) {
	if len(x) < 2 {
		return 0, checkDim("rosenbrock", x, 2)
	}
	sum := 0.0
	for i := 0; i < len(x)-1; i++ {
		a := r.A - x[i]
		b := x[i+1] - x[i]*x[i]
		sum += a*a + r.B*b*b
	}
	return sum, nil
}

func (r Rosenbrock) Gradient(x []float64) ([]float64, error) {
	if len(x) < 2 {
		return nil, checkDim("rosenbrock", x, 2)
	}
	g := make([]float64, len(x))
	for i := 0; i < len(x)-1; i++ {
		b := x[i+1] - x[i]*x[i]
		g[i] += -2*(r.A-x[i]) - 4*r.B*x[i]*b
		g[i+1] += 2 * r.B * b
	}
	return g, nil
}

func (Rosenbrock) DefaultBounds(dim int) ([]float64, []float64) {
	return constBounds(dim, -5, 10)
}

func (r Rosenbrock) Minima() []Minimum {
	return []Minimum{{X: []float64{r.A, r.A * r.A}, F: 0, Global: true}}
}

// Rastrigin is the highly multimodal
// f(x) = A n + sum (x_i^2 - A cos(2 pi x_i)), minimum 0 at the origin.
// Gradient methods stall in its local minima; it is the population
// solvers' benchmark.
type Rastrigin struct {
	A float64
}

func (Rastrigin) Name() string { return "rastrigin" }
func (Rastrigin) Dim() int     { return 0 }

func (r Rastrigin) Cost(x []float64) (float64, error) {
	if err := checkDim("rastrigin", x, 0); err != nil {
		return 0, err
	}
	sum := r.A * float64(len(x))
	for _, v := range x {
		sum += v*v - r.A*math.Cos(2*math.Pi*v)
	}
	return sum, nil
}

func (r Rastrigin) Gradient(x []float64) ([]float64, error) {
	if err := checkDim("rastrigin", x, 0); err != nil {
		return nil, err
	}
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2*v + r.A*2*math.Pi*math.Sin(2*math.Pi*v)
	}
	return g, nil
}

func (Rastrigin) DefaultBounds(dim int) ([]float64, []float64) {
	return constBounds(dim, -5.12, 5.12)
}

func (Rastrigin) Minima() []Minimum {
	return []Minimum{{X: []float64{0, 0}, F: 0, Global: true}}
}

// Himmelblau is f(x, y) = (x^2 + y - 11)^2 + (x + y^2 - 7)^2, a
// two-dimensional objective with four global minima at cost 0.
type Himmelblau struct{}

func (Himmelblau) Name() string { return "himmelblau" }
func (Himmelblau) Dim() int     { return 2 }

func (Himmelblau) Cost(x []float64) (float64, error) {
	if err := checkDim("himmelblau", x, 2); err != nil {
		return 0, err
	}
	f1 := x[0]*x[0] + x[1] - 11
	f2 := x[0] + x[1]*x[1] - 7
	return f1*f1 + f2*f2, nil
}

func (Himmelblau) Gradient(x []float64) ([]float64, error) {
	if err := checkDim("himmelblau", x, 2); err != nil {
		return nil, err
	}
	f1 := x[0]*x[0] + x[1] - 11
	f2 := x[0] + x[1]*x[1] - 7
	return []float64{
		4*x[0]*f1 + 2*f2,
		2*f1 + 4*x[1]*f2,
	}, nil
}

func (Himmelblau) DefaultBounds(dim int) ([]float64, []float64) {
	return constBounds(dim, -5, 5)
}

func (Himmelblau) Minima() []Minimum {
	return []Minimum{
		{X: []float64{3, 2}, F: 0, Global: true},
		{X: []float64{-2.805118, 3.131312}, F: 0, Global: true},
		{X: []float64{-3.779310, -3.283186}, F: 0, Global: true},
		{X: []float64{3.584428, -1.848126}, F: 0, Global: true},
	}
}
