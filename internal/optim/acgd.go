package optim

import (
	"fmt"
	"math"

	"github.com/cgds-ml/cgds/internal/autodiff"
	"github.com/cgds-ml/cgds/internal/cgd"
	"github.com/cgds-ml/cgds/internal/checkpoint"
	"github.com/cgds-ml/cgds/internal/tensor"
)

// ACGD implements adaptive competitive gradient descent.
//
// Per-parameter learning rates are derived from an exponential moving
// average of squared gradients, Adam style:
//
//	v ← β₂·v + (1−β₂)·g²
//	lr_i = lr / (√(v̂_i) + ε)
//
// and the linear system is solved with the split sqrt(lr) preconditioner so
// the implicit operator stays close to symmetric positive semi-definite even
// when the two players' rate vectors differ elementwise. Each solve warm
// starts from the previous step's solution.
//
// With reducers configured, every backward pass runs in accumulation mode so
// data-parallel gradient synchronization observes it; the loss scalar serves
// as the reduction trigger.
type ACGD struct {
	xParams []*autodiff.Variable
	yParams []*autodiff.Variable
	lr      float64
	beta2   float64
	eps     float64
	tol     float64
	atol    float64
	nsteps  int

	xReducer cgd.Reducer
	yReducer cgd.Reducer

	step     int
	vx       *tensor.Tensor
	vy       *tensor.Tensor
	prevSol  *tensor.Tensor
	lastIter int
}

// ACGDConfig holds configuration for the ACGD optimizer.
type ACGDConfig struct {
	LR     float64 // base learning rate (default: 0.01)
	Beta2  float64 // squared-gradient EMA decay (default: 0.99)
	Eps    float64 // adaptivity damping term (default: 1e-8)
	Tol    float64 // relative CG tolerance (default: 1e-10)
	ATol   float64 // absolute CG tolerance (default: 1e-16)
	NSteps int     // CG iteration cap (default: len of x player)

	// XReducer and YReducer enable distributed accumulation mode. Leave
	// nil for single-process training.
	XReducer cgd.Reducer
	YReducer cgd.Reducer
}

// NewACGD creates an ACGD optimizer over the two players' parameter sets.
func NewACGD(xParams, yParams []*autodiff.Variable, config ACGDConfig) *ACGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Beta2 == 0 {
		config.Beta2 = 0.99
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &ACGD{
		xParams:  xParams,
		yParams:  yParams,
		lr:       config.LR,
		beta2:    config.Beta2,
		eps:      config.Eps,
		tol:      config.Tol,
		atol:     config.ATol,
		nsteps:   config.NSteps,
		xReducer: config.XReducer,
		yReducer: config.YReducer,
		vx:       tensor.Zeros(tensor.Shape{autodiff.VariablesSize(xParams)}),
		vy:       tensor.Zeros(tensor.Shape{autodiff.VariablesSize(yParams)}),
	}
}

// distributed reports whether accumulation mode is required.
func (a *ACGD) distributed() bool {
	return a.xReducer != nil || a.yReducer != nil
}

// Step performs one adaptive competitive update of both players.
func (a *ACGD) Step(loss *autodiff.Variable) error {
	gradX := flatGrad(loss, a.xParams)
	gradY := flatGrad(loss, a.yParams)

	a.step++
	lrX := a.adaptLR(a.vx, gradX.Data())
	lrY := a.adaptLR(a.vy, gradY.Data())
	sqrtLrX := lrX.Sqrt()

	// Bucket rebuild happens on the very first backward pass of training.
	rebuild := a.step == 1
	modeX, modeY := cgd.Graph(), cgd.Graph()
	if a.distributed() {
		modeX = cgd.Accumulate(loss, a.xReducer, rebuild)
		modeY = cgd.Accumulate(loss, a.yReducer, false)
	}

	// b = √lrX ⊙ (∇xf + D_xy (lrY ⊙ ∇yf))
	hvp, err := cgd.HvpVec(gradY, a.xParams, gradY.Data().Mul(lrY), modeX, true)
	if err != nil {
		return err
	}
	b := gradX.Data().Add(hvp).Mul(sqrtLrX)

	solveOpts := cgd.SolveOptions{
		X0:      a.prevSol,
		Precond: cgd.SplitLR(lrX, lrY),
		Tol:     a.tol,
		ATol:    a.atol,
		NSteps:  a.nsteps,
	}
	if a.distributed() {
		solveOpts.Accumulate = true
		solveOpts.Trigger = loss
		solveOpts.XReducer = a.xReducer
		solveOpts.YReducer = a.yReducer
	}
	sol, iters, err := cgd.ConjugateGradient(gradX, gradY, a.xParams, a.yParams, b, solveOpts)
	if err != nil {
		return err
	}
	a.lastIter = iters
	a.prevSol = sol.Clone()

	dx := sol.Mul(sqrtLrX)
	applyUpdate(a.xParams, dx, -1)

	// δy = lrY ⊙ (∇yf − D_yx Δx): the maximizing player's best response to
	// the x move that was just applied.
	hcg, err := cgd.HvpVec(gradX, a.yParams, dx, modeY, false)
	if err != nil {
		return err
	}
	dy := gradY.Data().Sub(hcg).Mul(lrY)
	applyUpdate(a.yParams, dy, 1)
	return nil
}

// adaptLR updates the squared-gradient average in place and returns the
// bias-corrected per-parameter learning-rate vector.
func (a *ACGD) adaptLR(v, grad *tensor.Tensor) *tensor.Tensor {
	vd := v.Data()
	for i, g := range grad.Data() {
		vd[i] = a.beta2*vd[i] + (1-a.beta2)*g*g
	}
	correction := 1 - math.Pow(a.beta2, float64(a.step))
	lr := tensor.Zeros(v.Shape())
	ld := lr.Data()
	for i := range vd {
		ld[i] = a.lr / (math.Sqrt(vd[i]/correction) + a.eps)
	}
	return lr
}

// State snapshots the optimizer's adaptive state so training can resume
// from a checkpoint. Parameter values are the players' own concern and are
// not included.
func (a *ACGD) State() checkpoint.State {
	tensors := map[string]*tensor.Tensor{
		"vx": a.vx.Clone(),
		"vy": a.vy.Clone(),
	}
	if a.prevSol != nil {
		tensors["prev_sol"] = a.prevSol.Clone()
	}
	return checkpoint.State{Step: int64(a.step), Tensors: tensors}
}

// SetState restores a snapshot produced by State.
func (a *ACGD) SetState(s checkpoint.State) error {
	vx, ok := s.Tensors["vx"]
	if !ok || vx.Len() != a.vx.Len() {
		return fmt.Errorf("optim: state vx missing or sized for a different x player")
	}
	vy, ok := s.Tensors["vy"]
	if !ok || vy.Len() != a.vy.Len() {
		return fmt.Errorf("optim: state vy missing or sized for a different y player")
	}
	a.step = int(s.Step)
	a.vx = vx.Clone()
	a.vy = vy.Clone()
	a.prevSol = nil
	if sol, ok := s.Tensors["prev_sol"]; ok {
		a.prevSol = sol.Clone()
	}
	return nil
}

// ZeroGrad clears gradient buffers on both players.
func (a *ACGD) ZeroGrad() {
	autodiff.ZeroGrad(a.xParams)
	autodiff.ZeroGrad(a.yParams)
}

// GetLR returns the base learning rate.
func (a *ACGD) GetLR() float64 { return a.lr }

// LastIterations returns the CG iteration count of the most recent step.
func (a *ACGD) LastIterations() int { return a.lastIter }
