package optim

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/checkpoint"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// noopReducer satisfies the reducer contract without doing anything, which
// is all single-process accumulation needs.
type noopReducer struct{}

func (noopReducer) RebuildBuckets() error                     { return nil }
func (noopReducer) PrepareForBackward(_ []*autodiff.Variable) {}

// bilinearLoss builds f = xᵀBy from the current parameter values.
func bilinearLoss(b mat.Matrix, x, y *autodiff.Variable) *autodiff.Variable {
	return autodiff.Dot(x, autodiff.MatVec(b, y))
}

// randomCoupling returns a well-conditioned coupling matrix: a dominant
// diagonal keeps every singular value away from zero so the competitive
// update contracts in all modes at a usable rate.
func randomCoupling(n int, rng *rand.Rand) *mat.Dense {
	b := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := 0.3 * rng.NormFloat64()
			if i == j {
				v += 2
			}
			b.Set(i, j, v)
		}
	}
	return b
}

func TestCGDScalarBilinearStep(t *testing.T) {
	// f = x·y with x = 2, y = 3 and η = 1. Both cross blocks are 1, so
	//   Δx = η(1 + η²)⁻¹(y + ηx) = 5/2,  x ← 2 − 5/2 = −1/2
	//   δy = η(x − Δx) = −1/2,           y ← 3 − 1/2 = 5/2
	x := autodiff.NewLeaf(2)
	y := autodiff.NewLeaf(3)
	opt := NewCGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, CGDConfig{LRX: 1, LRY: 1})

	require.NoError(t, opt.Step(autodiff.Dot(x, y)))

	assert.InDelta(t, -0.5, x.Data().At(0), 1e-10)
	assert.InDelta(t, 2.5, y.Data().At(0), 1e-10)
	assert.GreaterOrEqual(t, opt.LastIterations(), 1)
}

func TestCGDConvergesOnBilinearGame(t *testing.T) {
	// Simultaneous gradient descent-ascent cycles on xᵀBy; the
	// competitive update contracts toward the (0, 0) equilibrium.
	rng := rand.New(rand.NewSource(5))
	const n = 3
	b := randomCoupling(n, rng)

	x := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))
	y := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))
	opt := NewCGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, CGDConfig{LRX: 0.5, LRY: 0.5})

	initial := x.Data().Norm() + y.Data().Norm()
	for i := 0; i < 100; i++ {
		require.NoError(t, opt.Step(bilinearLoss(b, x, y)))
	}
	final := x.Data().Norm() + y.Data().Norm()

	assert.Less(t, final, 0.1*initial)
}

func TestCGDDefaults(t *testing.T) {
	opt := NewCGD(nil, nil, CGDConfig{})
	assert.Equal(t, 0.01, opt.GetLR())

	opt = NewCGD(nil, nil, CGDConfig{LRX: 0.2})
	assert.Equal(t, 0.2, opt.GetLR())
	assert.Equal(t, 0.2, opt.lrY, "LRY defaults to LRX")
}

func TestACGDConvergesOnBilinearGame(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	const n = 4
	b := randomCoupling(n, rng)

	x := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))
	y := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))
	opt := NewACGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, ACGDConfig{LR: 0.2})

	initial := x.Data().Norm() + y.Data().Norm()
	for i := 0; i < 150; i++ {
		require.NoError(t, opt.Step(bilinearLoss(b, x, y)))
	}
	final := x.Data().Norm() + y.Data().Norm()

	assert.Less(t, final, 0.1*initial)
	assert.GreaterOrEqual(t, opt.LastIterations(), 1)
}

func TestACGDMultiParameterPlayers(t *testing.T) {
	// Players made of several differently-shaped parameters exercise the
	// flatten/unflatten layout end to end.
	rng := rand.New(rand.NewSource(15))
	x1 := autodiff.NewVariable(tensor.RandN(tensor.Shape{2}, rng))
	x2 := autodiff.NewVariable(tensor.RandN(tensor.Shape{3}, rng))
	y1 := autodiff.NewVariable(tensor.RandN(tensor.Shape{5}, rng))
	b := randomCoupling(5, rng)

	xParams := []*autodiff.Variable{x1, x2}
	yParams := []*autodiff.Variable{y1}
	opt := NewACGD(xParams, yParams, ACGDConfig{LR: 0.1})

	loss := func() *autodiff.Variable {
		return autodiff.Dot(autodiff.Concat(x1, x2), autodiff.MatVec(b, y1))
	}

	initial := x1.Data().Norm() + x2.Data().Norm() + y1.Data().Norm()
	for i := 0; i < 120; i++ {
		require.NoError(t, opt.Step(loss()))
	}
	final := x1.Data().Norm() + x2.Data().Norm() + y1.Data().Norm()
	assert.Less(t, final, 0.5*initial)
}

func TestACGDAccumulateMatchesGraphMode(t *testing.T) {
	// With a no-op reducer, distributed accumulation must follow exactly
	// the same trajectory as the pure graph mode.
	run := func(distributed bool) ([]float64, []float64) {
		rng := rand.New(rand.NewSource(21))
		const n = 3
		b := randomCoupling(n, rng)
		x := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))
		y := autodiff.NewVariable(tensor.RandN(tensor.Shape{n}, rng))

		config := ACGDConfig{LR: 0.1}
		if distributed {
			config.XReducer = noopReducer{}
			config.YReducer = noopReducer{}
		}
		opt := NewACGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, config)
		for i := 0; i < 10; i++ {
			require.NoError(t, opt.Step(bilinearLoss(b, x, y)))
		}
		return x.Data().Data(), y.Data().Data()
	}

	gx, gy := run(false)
	ax, ay := run(true)
	for i := range gx {
		assert.InDelta(t, gx[i], ax[i], 1e-12)
		assert.InDelta(t, gy[i], ay[i], 1e-12)
	}
}

func TestACGDStateRoundTripResumesTraining(t *testing.T) {
	// Snapshot mid-training, keep going, then rebuild from the snapshot:
	// both runs must produce the same remaining trajectory.
	rng := rand.New(rand.NewSource(27))
	const n = 3
	b := randomCoupling(n, rng)
	x0 := tensor.RandN(tensor.Shape{n}, rng)
	y0 := tensor.RandN(tensor.Shape{n}, rng)

	x := autodiff.NewVariable(x0.Clone())
	y := autodiff.NewVariable(y0.Clone())
	opt := NewACGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, ACGDConfig{LR: 0.1})
	for i := 0; i < 10; i++ {
		require.NoError(t, opt.Step(bilinearLoss(b, x, y)))
	}

	path := filepath.Join(t.TempDir(), "acgd.cgds")
	require.NoError(t, checkpoint.Save(path, opt.State()))
	midX, midY := x.Data().Clone(), y.Data().Clone()

	for i := 0; i < 5; i++ {
		require.NoError(t, opt.Step(bilinearLoss(b, x, y)))
	}

	x2 := autodiff.NewVariable(midX.Clone())
	y2 := autodiff.NewVariable(midY.Clone())
	opt2 := NewACGD([]*autodiff.Variable{x2}, []*autodiff.Variable{y2}, ACGDConfig{LR: 0.1})
	state, err := checkpoint.Load(path)
	require.NoError(t, err)
	require.NoError(t, opt2.SetState(state))
	for i := 0; i < 5; i++ {
		require.NoError(t, opt2.Step(bilinearLoss(b, x2, y2)))
	}

	for i := 0; i < n; i++ {
		assert.InDelta(t, x.Data().At(i), x2.Data().At(i), 1e-12)
		assert.InDelta(t, y.Data().At(i), y2.Data().At(i), 1e-12)
	}
}

func TestACGDSetStateRejectsWrongSizes(t *testing.T) {
	x := autodiff.NewLeaf(1, 2)
	y := autodiff.NewLeaf(3)
	opt := NewACGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, ACGDConfig{})

	err := opt.SetState(checkpoint.State{Tensors: map[string]*tensor.Tensor{
		"vx": tensor.Vector(1, 2, 3), // x player has 2 elements
		"vy": tensor.Vector(1),
	}})
	require.Error(t, err)
}

func TestACGDDefaults(t *testing.T) {
	opt := NewACGD(nil, nil, ACGDConfig{})
	assert.Equal(t, 0.01, opt.GetLR())
	assert.Equal(t, 0.99, opt.beta2)
	assert.Equal(t, 1e-8, opt.eps)
}

func TestOptimizersImplementInterface(t *testing.T) {
	var _ Optimizer = (*CGD)(nil)
	var _ Optimizer = (*ACGD)(nil)
}

func TestACGDUncoupledLoss(t *testing.T) {
	// A loss independent of x yields a zero x gradient and a structurally
	// zero cross block; the step degenerates gracefully instead of failing.
	x := autodiff.NewLeaf(1, 2)
	y := autodiff.NewLeaf(3)
	opt := NewACGD([]*autodiff.Variable{x}, []*autodiff.Variable{y}, ACGDConfig{LR: 0.1})

	loss := autodiff.Sum(autodiff.Mul(y, y))
	require.NoError(t, opt.Step(loss))

	assert.Equal(t, []float64{1, 2}, x.Data().Data(), "uncoupled player stays put")
	assert.NotEqual(t, 3.0, y.Data().At(0), "maximizer still ascends its own gradient")
}
