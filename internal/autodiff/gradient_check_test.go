package autodiff

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cgds-ml/cgds/internal/tensor"
)

// numericalGradient computes ∂f/∂x_i by central finite differences.
func numericalGradient(f func(x []float64) float64, x []float64, i int, eps float64) float64 {
	hi := make([]float64, len(x))
	lo := make([]float64, len(x))
	copy(hi, x)
	copy(lo, x)
	hi[i] += eps
	lo[i] -= eps
	return (f(hi) - f(lo)) / (2 * eps)
}

// checkGradients compares autodiff gradients of a scalar graph against
// finite differences at the given point.
func checkGradients(t *testing.T, point []float64, build func(x *Variable) *Variable, eval func(x []float64) float64) {
	t.Helper()
	const eps = 1e-6

	x := NewVariable(tensor.FromSlice(point, tensor.Shape{len(point)}))
	out := build(x)
	require.Equal(t, 1, out.Len(), "gradient check requires a scalar output")
	grad := Grad(out, []*Variable{x}, GradOptions{})[0].Data().Data()

	for i := range point {
		want := numericalGradient(eval, point, i, eps)
		if math.Abs(grad[i]-want) > 1e-5*math.Max(1, math.Abs(want)) {
			t.Errorf("grad[%d] = %g, finite differences give %g", i, grad[i], want)
		}
	}
}

func TestGradientCheckPolynomial(t *testing.T) {
	// f(x) = Σ (x² · 3x − 2x) = Σ (3x³ − 2x)
	checkGradients(t, []float64{0.5, -1.2, 2.0},
		func(x *Variable) *Variable {
			cubed := Mul(Mul(x, x), Scale(x, 3))
			return Sum(Sub(cubed, Scale(x, 2)))
		},
		func(x []float64) float64 {
			total := 0.0
			for _, v := range x {
				total += 3*v*v*v - 2*v
			}
			return total
		})
}

func TestGradientCheckRational(t *testing.T) {
	// f(x) = Σ x / √(x² + 1), smooth and bounded.
	checkGradients(t, []float64{0.3, -0.7, 1.5, -2.2},
		func(x *Variable) *Variable {
			ones := NewVariable(tensor.Ones(tensor.Shape{x.Len()}))
			denom := Sqrt(Add(Mul(x, x), ones))
			return Sum(Div(x, denom))
		},
		func(x []float64) float64 {
			total := 0.0
			for _, v := range x {
				total += v / math.Sqrt(v*v+1)
			}
			return total
		})
}

func TestGradientCheckQuadraticForm(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	const n = 5
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, rng.NormFloat64())
		}
	}
	point := make([]float64, n)
	for i := range point {
		point[i] = rng.NormFloat64()
	}

	// f(x) = xᵀMx
	checkGradients(t, point,
		func(x *Variable) *Variable {
			return Dot(x, MatVec(m, x))
		},
		func(x []float64) float64 {
			v := mat.NewVecDense(n, x)
			out := mat.NewVecDense(n, nil)
			out.MulVec(m, v)
			return mat.Dot(v, out)
		})
}

func TestGradientCheckSecondOrder(t *testing.T) {
	// f(x) = Σ x³. ∇f = 3x²; contracting the Hessian 6·diag(x) with a
	// probe v gives 6·x⊙v, checked against finite differences of ∇f.
	const eps = 1e-6
	point := []float64{0.8, -1.1, 0.25}
	probe := []float64{1, -2, 0.5}

	gradAt := func(x []float64) []float64 {
		out := make([]float64, len(x))
		for i, v := range x {
			out[i] = 3 * v * v
		}
		return out
	}

	x := NewVariable(tensor.FromSlice(point, tensor.Shape{len(point)}))
	f := Sum(Mul(Mul(x, x), x))
	gx := Grad(f, []*Variable{x}, GradOptions{CreateGraph: true})[0]
	hv := Grad(gx, []*Variable{x}, GradOptions{GradOutputs: tensor.FromSlice(probe, tensor.Shape{len(probe)})})[0]

	for i := range point {
		// (Hv)_i by finite differences: perturb along probe.
		hi := make([]float64, len(point))
		lo := make([]float64, len(point))
		for j := range point {
			hi[j] = point[j] + eps*probe[j]
			lo[j] = point[j] - eps*probe[j]
		}
		want := (gradAt(hi)[i] - gradAt(lo)[i]) / (2 * eps)
		if math.Abs(hv.Data().At(i)-want) > 1e-4 {
			t.Errorf("hvp[%d] = %g, finite differences give %g", i, hv.Data().At(i), want)
		}
	}
}
